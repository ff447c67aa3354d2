package value

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeLabel(t *testing.T) {
	assert.Equal(t, "null", TypeLabel(nil))
	assert.Equal(t, "boolean", TypeLabel(true))
	assert.Equal(t, "number", TypeLabel(json.Number("42")))
	assert.Equal(t, "string", TypeLabel("hi"))
	assert.Equal(t, "array", TypeLabel([]any{1}))
	assert.Equal(t, "object", TypeLabel(map[string]any{}))
}

func TestCloneDeepCopies(t *testing.T) {
	original := map[string]any{"a": []any{1, map[string]any{"b": 2}}}
	cloned := Clone(original).(map[string]any)

	inner := cloned["a"].([]any)[1].(map[string]any)
	inner["b"] = 999

	origInner := original["a"].([]any)[1].(map[string]any)
	assert.EqualValues(t, 2, origInner["b"], "mutating the clone must not affect the original")
}

func TestCloneProducesStructurallyIdenticalTree(t *testing.T) {
	original := map[string]any{
		"a": []any{json.Number("1"), map[string]any{"b": "c"}},
		"d": nil,
	}
	cloned := Clone(original)
	if diff := cmp.Diff(original, cloned); diff != "" {
		t.Fatalf("clone diverged from original (-want +got):\n%s", diff)
	}
}

func TestEqualStructural(t *testing.T) {
	a := map[string]any{"x": []any{json.Number("1"), "y"}}
	b := map[string]any{"x": []any{json.Number("1.0"), "y"}}
	assert.True(t, Equal(a, b))

	c := map[string]any{"x": []any{json.Number("2"), "y"}}
	assert.False(t, Equal(a, c))
}

func TestGetPathObjectAndArray(t *testing.T) {
	root := map[string]any{
		"a": []any{
			map[string]any{"b": "found"},
		},
	}
	v, ok := GetPath(root, "a.0.b")
	require.True(t, ok)
	assert.Equal(t, "found", v)

	_, ok = GetPath(root, "a.5.b")
	assert.False(t, ok)

	_, ok = GetPath(root, "missing")
	assert.False(t, ok)
}

func TestGetPathNonContainerFails(t *testing.T) {
	_, ok := GetPath("scalar", "x")
	assert.False(t, ok)
}

func TestEncodeSortKeysIdempotent(t *testing.T) {
	v := map[string]any{"b": 1, "a": 2}
	first, err := Encode(v, true)
	require.NoError(t, err)
	decoded, err := Decode([]byte(first))
	require.NoError(t, err)
	second, err := Encode(decoded, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, `{"a":2,"b":1}`, first)
}

func TestTruncIntegralStaysInteger(t *testing.T) {
	v, err := Trunc(42.9)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	assert.Equal(t, "number", TypeLabel(v))

	v, err = Trunc(-42.9)
	require.NoError(t, err)
	assert.Equal(t, int64(-42), v)
}

func TestTruncRejectsNonFinite(t *testing.T) {
	_, err := Trunc(1.0 / zero())
	assert.Error(t, err)
}

func zero() float64 { return 0 }
