package store

import (
	"testing"

	"github.com/roach88/actionplan/internal/ir"
)

func TestMarshalRecord_Nil(t *testing.T) {
	json, err := marshalRecord(nil)
	if err != nil {
		t.Fatalf("marshalRecord() failed: %v", err)
	}
	if json != "{}" {
		t.Errorf("marshalRecord() = %q, want %q", json, "{}")
	}
}

func TestMarshalRecord_WithValues(t *testing.T) {
	rec := ir.IRObject{
		"title":    ir.IRString("crash on start"),
		"priority": ir.IRInt(3),
		"open":     ir.IRBool(true),
	}
	json, err := marshalRecord(rec)
	if err != nil {
		t.Fatalf("marshalRecord() failed: %v", err)
	}

	// Canonical JSON has deterministic key ordering
	expected := `{"open":true,"priority":3,"title":"crash on start"}`
	if json != expected {
		t.Errorf("marshalRecord() = %q, want %q", json, expected)
	}
}

func TestMarshalRecord_NestedAndArray(t *testing.T) {
	rec := ir.IRObject{
		"issue": ir.IRObject{
			"labels": ir.IRArray{ir.IRString("bug"), ir.IRString("ui")},
			"author": ir.IRString("pat"),
		},
	}
	json, err := marshalRecord(rec)
	if err != nil {
		t.Fatalf("marshalRecord() failed: %v", err)
	}

	expected := `{"issue":{"author":"pat","labels":["bug","ui"]}}`
	if json != expected {
		t.Errorf("marshalRecord() = %q, want %q", json, expected)
	}
}

func TestUnmarshalRecord_Empty(t *testing.T) {
	for _, data := range []string{"", "{}"} {
		rec, err := unmarshalRecord(data)
		if err != nil {
			t.Fatalf("unmarshalRecord(%q) failed: %v", data, err)
		}
		if rec == nil || len(rec) != 0 {
			t.Errorf("unmarshalRecord(%q) = %v, want empty object", data, rec)
		}
	}
}

func TestUnmarshalRecord_InvalidJSON(t *testing.T) {
	if _, err := unmarshalRecord("not valid json"); err == nil {
		t.Error("unmarshalRecord() should fail on invalid JSON")
	}
}

func TestUnmarshalRecord_LargeInteger(t *testing.T) {
	// 2^53 + 1 loses precision as float64
	largeInt := int64(9007199254740993)

	rec, err := unmarshalRecord(`{"large":9007199254740993}`)
	if err != nil {
		t.Fatalf("unmarshalRecord() failed: %v", err)
	}

	val, ok := rec["large"].(ir.IRInt)
	if !ok {
		t.Fatalf("rec[large] is not IRInt: %T", rec["large"])
	}
	if int64(val) != largeInt {
		t.Errorf("rec[large] = %d, want %d", val, largeInt)
	}
}

func TestUnmarshalRecord_RejectsFloat(t *testing.T) {
	if _, err := unmarshalRecord(`{"pi":3.14159}`); err == nil {
		t.Error("unmarshalRecord() should reject float values")
	}
}

func TestMarshalRecord_RefRoundtrip(t *testing.T) {
	rec := ir.IRObject{
		"commit": ir.IRRef{ActionID: 4, Path: []string{"sha"}},
	}

	json, err := marshalRecord(rec)
	if err != nil {
		t.Fatalf("marshalRecord() failed: %v", err)
	}

	restored, err := unmarshalRecord(json)
	if err != nil {
		t.Fatalf("unmarshalRecord() failed: %v", err)
	}

	ref, ok := restored["commit"].(ir.IRRef)
	if !ok {
		t.Fatalf("restored[commit] = %T, want ir.IRRef", restored["commit"])
	}
	if ref.ActionID != 4 || len(ref.Path) != 1 || ref.Path[0] != "sha" {
		t.Errorf("restored ref = %v, want #4.output.sha", ref)
	}
}

func TestMarshalDeps(t *testing.T) {
	tests := []struct {
		deps []int64
		want string
	}{
		{nil, "[]"},
		{[]int64{}, "[]"},
		{[]int64{2, 5}, "[2,5]"},
	}
	for _, tt := range tests {
		got, err := marshalDeps(tt.deps)
		if err != nil {
			t.Fatalf("marshalDeps(%v) failed: %v", tt.deps, err)
		}
		if got != tt.want {
			t.Errorf("marshalDeps(%v) = %q, want %q", tt.deps, got, tt.want)
		}
	}
}

func TestUnmarshalDeps(t *testing.T) {
	deps, err := unmarshalDeps("[3,1]")
	if err != nil {
		t.Fatalf("unmarshalDeps() failed: %v", err)
	}
	if len(deps) != 2 || deps[0] != 3 || deps[1] != 1 {
		t.Errorf("unmarshalDeps() = %v, want [3 1]", deps)
	}

	deps, err = unmarshalDeps("[]")
	if err != nil {
		t.Fatalf("unmarshalDeps([]) failed: %v", err)
	}
	if deps != nil {
		t.Errorf("unmarshalDeps([]) = %v, want nil", deps)
	}

	if _, err := unmarshalDeps("{"); err == nil {
		t.Error("unmarshalDeps() should fail on invalid JSON")
	}
}
