package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionplan/internal/schema"
)

func compileAt(t *testing.T, src, path string) (*ActionSchema, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return CompileAction(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileActionBasic(t *testing.T) {
	as, err := compileAt(t, `
		action: Triage: {
			subscribe: ["IncomingIssue"]
			input: {
				title:  string
				author: string
			}
			output: {
				assignee: string
				severity: "low" | "medium" | "high"
			}
		}
	`, "action.Triage")
	require.NoError(t, err)

	assert.Equal(t, "Triage", as.Name)
	assert.Equal(t, []string{"IncomingIssue"}, as.Subscribe)

	require.NotNil(t, as.Input)
	assert.Equal(t, schema.KindRecord, as.Input.Kind)
	require.Len(t, as.Input.Fields, 2)
	assert.Equal(t, "title", as.Input.Fields[0].Name, "declaration order kept")
	assert.Equal(t, "author", as.Input.Fields[1].Name)

	sev, ok := as.Output.Field("severity")
	require.True(t, ok)
	assert.Equal(t, schema.KindEnum, sev.Type.Kind)
	assert.ElementsMatch(t, []string{"low", "medium", "high"}, sev.Type.Values)
}

func TestCompileActionNoSchemas(t *testing.T) {
	as, err := compileAt(t, `action: Dummy: {}`, "action.Dummy")
	require.NoError(t, err)
	assert.Nil(t, as.Input)
	assert.Nil(t, as.Output)
	assert.Empty(t, as.Subscribe)
}

func TestCompileActionOptionalFields(t *testing.T) {
	as, err := compileAt(t, `
		action: Review: {
			input: {
				commit:    string
				reviewer?: string
			}
		}
	`, "action.Review")
	require.NoError(t, err)

	commit, ok := as.Input.Field("commit")
	require.True(t, ok)
	assert.False(t, commit.Optional)

	reviewer, ok := as.Input.Field("reviewer")
	require.True(t, ok)
	assert.True(t, reviewer.Optional)
}

func TestCompileActionAllTypes(t *testing.T) {
	as, err := compileAt(t, `
		action: Everything: {
			input: {
				s: string
				i: int
				b: bool
				l: [...string]
				n: { inner: int }
				a: _
				k: "fixed"
				r: _ @ref(Commit.output)
			}
		}
	`, "action.Everything")
	require.NoError(t, err)

	kinds := map[string]schema.Kind{}
	for _, f := range as.Input.Fields {
		kinds[f.Name] = f.Type.Kind
	}
	assert.Equal(t, map[string]schema.Kind{
		"s": schema.KindString,
		"i": schema.KindInt,
		"b": schema.KindBool,
		"l": schema.KindArray,
		"n": schema.KindRecord,
		"a": schema.KindAny,
		"k": schema.KindEnum,
		"r": schema.KindRef,
	}, kinds)

	l, _ := as.Input.Field("l")
	assert.Equal(t, schema.KindString, l.Type.Elem.Kind)

	k, _ := as.Input.Field("k")
	assert.Equal(t, []string{"fixed"}, k.Type.Values)

	r, _ := as.Input.Field("r")
	assert.Equal(t, "Commit.output", r.Type.Ref)
}

func TestCompileActionWholeRecordRef(t *testing.T) {
	as, err := compileAt(t, `
		action: Merge: {
			input: _ @ref(Commit.output)
		}
	`, "action.Merge")
	require.NoError(t, err)
	assert.Equal(t, schema.Ref("Commit.output"), as.Input)
}

func TestCompileActionArrayOfRefs(t *testing.T) {
	as, err := compileAt(t, `
		action: Merge: {
			input: {
				review_results: [...] @ref(Review.output)
			}
		}
	`, "action.Merge")
	require.NoError(t, err)

	f, ok := as.Input.Field("review_results")
	require.True(t, ok)
	assert.Equal(t, schema.Array(schema.Ref("Review.output")), f.Type)
}

func TestCompileActionRejectsNonRecordInput(t *testing.T) {
	_, err := compileAt(t, `action: Bad: { input: string }`, "action.Bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a struct")
}

func TestCompileActionRejectsFloat(t *testing.T) {
	_, err := compileAt(t, `
		action: Bad: {
			output: { score: float }
		}
	`, "action.Bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "score", ce.Field)
}

func TestCompileActionRejectsNumber(t *testing.T) {
	_, err := compileAt(t, `action: Bad: { input: { n: number } }`, "action.Bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}

func TestCompileActionBadSubscribe(t *testing.T) {
	_, err := compileAt(t, `action: Bad: { subscribe: [1] }`, "action.Bad")
	require.Error(t, err)
}

func TestCompileActionValueError(t *testing.T) {
	v := cuecontext.New().CompileString(`x: 1 & 2`)
	_, err := CompileAction(v.LookupPath(cue.ParsePath("x")))
	require.Error(t, err)
}

func TestCompileTypeEmptyRef(t *testing.T) {
	v := cuecontext.New().CompileString(`f: _ @ref()`)
	require.NoError(t, v.Err())
	_, err := CompileType(v.LookupPath(cue.ParsePath("f")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "@ref")
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "input", Message: "must be a struct"}
	assert.Equal(t, "input: must be a struct", err.Error())
}
