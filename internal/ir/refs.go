package ir

import (
	"fmt"
	"strings"
)

// refKey is the reserved object key under which IRRef is encoded.
const refKey = "$ref"

// IRRef references a path inside another action's output.
//
// Refs are placed into inputs at plan time, when the referenced action has
// not run yet. They are validated against the referenced action's declared
// output schema while planning and replaced by the live value right before
// the referencing action's run phase.
type IRRef struct {
	ActionID int64    `json:"action_id"`
	Path     []string `json:"path"`
}

func (IRRef) irValue() {}

// String renders the ref as "#<id>.output.<path>".
func (r IRRef) String() string {
	if len(r.Path) == 0 {
		return fmt.Sprintf("#%d.output", r.ActionID)
	}
	return fmt.Sprintf("#%d.output.%s", r.ActionID, strings.Join(r.Path, "."))
}

// encode is the stored form of a ref: {"$ref":{"action_id":N,"path":[...]}}.
func (r IRRef) encode() IRObject {
	path := make(IRArray, len(r.Path))
	for i, p := range r.Path {
		path[i] = IRString(p)
	}
	return IRObject{refKey: IRObject{
		"action_id": IRInt(r.ActionID),
		"path":      path,
	}}
}

// decodeRef recognizes the stored form produced by encode.
func decodeRef(obj IRObject) (IRRef, bool) {
	if len(obj) != 1 {
		return IRRef{}, false
	}
	inner, ok := obj[refKey].(IRObject)
	if !ok {
		return IRRef{}, false
	}
	id, ok := inner["action_id"].(IRInt)
	if !ok {
		return IRRef{}, false
	}
	ref := IRRef{ActionID: int64(id)}
	if path, ok := inner["path"].(IRArray); ok {
		for _, p := range path {
			s, ok := p.(IRString)
			if !ok {
				return IRRef{}, false
			}
			ref.Path = append(ref.Path, string(s))
		}
	}
	return ref, true
}

// Resolve replaces every IRRef inside v using lookup. The input value is not
// modified; a resolved copy is returned.
func Resolve(v IRValue, lookup func(IRRef) (IRValue, error)) (IRValue, error) {
	switch val := v.(type) {
	case IRRef:
		resolved, err := lookup(val)
		if err != nil {
			return nil, err
		}
		return Clone(resolved), nil
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			r, err := Resolve(elem, lookup)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = r
		}
		return out, nil
	case IRObject:
		out := make(IRObject, len(val))
		for k, elem := range val {
			r, err := Resolve(elem, lookup)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = r
		}
		return out, nil
	default:
		return v, nil
	}
}
