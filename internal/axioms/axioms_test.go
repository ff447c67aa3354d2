package axioms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lcod/internal/registry"
	"lcod/internal/value"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestContext(t *testing.T) *registry.Context {
	t.Helper()
	reg := registry.New()
	Register(reg)
	return registry.NewContext(reg)
}

func TestStreamReadAndCloseRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	handle := ctx.Streams.RegisterChunks([][]byte{[]byte("hello "), []byte("world")}, "utf-8")

	out, err := ctx.Call("lcod://contract/core/stream/read@1", map[string]any{
		"stream": map[string]any{"id": handle.ID, "encoding": handle.Encoding},
	}, nil)
	require.NoError(t, err)
	result := out.(map[string]any)
	assert.Equal(t, "hello world", result["chunk"])
	assert.Equal(t, false, result["done"])

	out, err = ctx.Call("lcod://contract/core/stream/read@1", map[string]any{
		"stream": map[string]any{"id": handle.ID, "encoding": handle.Encoding},
	}, nil)
	require.NoError(t, err)
	result = out.(map[string]any)
	assert.Equal(t, true, result["done"])

	out, err = ctx.Call("lcod://contract/core/stream/close@1", map[string]any{
		"stream": map[string]any{"id": handle.ID, "encoding": handle.Encoding},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"closed": true}, out)
}

func TestStreamReadMissingHandleIsBadRequest(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Call("lcod://contract/core/stream/read@1", map[string]any{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrBadRequest)
}

func TestStreamReadUnknownHandle(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Call("lcod://contract/core/stream/read@1", map[string]any{
		"stream": map[string]any{"id": "stream-999", "encoding": "utf-8"},
	}, nil)
	require.Error(t, err)
}

func TestRawInputAxiomReturnsSnapshot(t *testing.T) {
	ctx := newTestContext(t)
	ctx.SetRawInput(map[string]any{"x": 1})

	out, err := ctx.Call("lcod://axiom/state/raw_input@1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1}, out)
}

func TestRawInputAxiomNilWhenUnset(t *testing.T) {
	ctx := newTestContext(t)
	out, err := ctx.Call("lcod://axiom/state/raw_input@1", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestFileWriteThenReadRoundTrips(t *testing.T) {
	ctx := newTestContext(t)
	path := t.TempDir() + "/out.txt"

	writeOut, err := ctx.Call("lcod://contract/core/fs/write-file@1", map[string]any{
		"path": path, "data": "hello there",
	}, nil)
	require.NoError(t, err)
	w := writeOut.(map[string]any)
	assert.EqualValues(t, 11, w["bytesWritten"])

	readOut, err := ctx.Call("lcod://contract/core/fs/read-file@1", map[string]any{
		"path": path,
	}, nil)
	require.NoError(t, err)
	r := readOut.(map[string]any)
	assert.Equal(t, "hello there", r["data"])
	assert.Equal(t, "utf-8", r["encoding"])
}

func TestFileWriteCreateParents(t *testing.T) {
	ctx := newTestContext(t)
	path := t.TempDir() + "/nested/dir/out.txt"

	_, err := ctx.Call("lcod://contract/core/fs/write-file@1", map[string]any{
		"path": path, "data": "x", "createParents": true,
	}, nil)
	require.NoError(t, err)

	out, err := ctx.Call("lcod://contract/core/fs/read-file@1", map[string]any{"path": path}, nil)
	require.NoError(t, err)
	assert.Equal(t, "x", out.(map[string]any)["data"])
}

func TestSha256Contract(t *testing.T) {
	ctx := newTestContext(t)
	out, err := ctx.Call("lcod://contract/core/hash/sha256@1", map[string]any{"data": "abc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", out.(map[string]any)["hex"])
}

func TestJSONParseContract(t *testing.T) {
	ctx := newTestContext(t)
	out, err := ctx.Call("lcod://contract/core/parse/json@1", map[string]any{"text": `{"a":1}`}, nil)
	require.NoError(t, err)
	parsed := out.(map[string]any)["value"].(map[string]any)
	n, ok := value.AsNumber(parsed["a"])
	require.True(t, ok)
	assert.Equal(t, float64(1), n)
}

func TestJSONParseContractRejectsInvalidJSON(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Call("lcod://contract/core/parse/json@1", map[string]any{"text": `{bad`}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrBadRequest)
}
