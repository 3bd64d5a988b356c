package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/actionplan/internal/ir"
)

// marshalRecord converts an input or output record to canonical JSON TEXT.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalRecord(rec ir.IRObject) (string, error) {
	if rec == nil {
		rec = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

// unmarshalRecord parses canonical JSON TEXT to IRObject.
// Uses ir.IRObject.UnmarshalJSON which properly handles large integers via json.Number
// to avoid float64 precision loss for values > 2^53. Refs decode back to ir.IRRef.
func unmarshalRecord(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return obj, nil
}

// marshalDeps stores dependency IDs as a JSON array.
func marshalDeps(deps []int64) (string, error) {
	if len(deps) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(deps)
	if err != nil {
		return "", fmt.Errorf("marshal depends_on: %w", err)
	}
	return string(data), nil
}

func unmarshalDeps(data string) ([]int64, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var deps []int64
	if err := json.Unmarshal([]byte(data), &deps); err != nil {
		return nil, fmt.Errorf("unmarshal depends_on: %w", err)
	}
	return deps, nil
}
