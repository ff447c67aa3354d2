// Package axioms implements the kernel's built-in axiom contracts: the
// stream read/close wrappers around internal/kstream and the raw-input
// snapshot accessor. These are the thin component-shaped boundary that
// compose documents call through; the real state lives in internal/kstream
// and internal/registry.
package axioms

import (
	"fmt"

	"lcod/internal/kstream"
	"lcod/internal/registry"
	"lcod/internal/value"
)

func asHandle(v value.Value) (kstream.Handle, bool) {
	switch h := v.(type) {
	case kstream.Handle:
		return h, true
	case map[string]any:
		id, ok := h["id"].(string)
		if !ok {
			return kstream.Handle{}, false
		}
		encoding, _ := h["encoding"].(string)
		return kstream.Handle{ID: id, Encoding: encoding}, true
	default:
		return kstream.Handle{}, false
	}
}

func streamReadContract(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	raw, ok := in["stream"]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%w: stream handle required", registry.ErrBadRequest)
	}
	handle, ok := asHandle(raw)
	if !ok {
		return nil, fmt.Errorf("%w: malformed stream handle", registry.ErrBadRequest)
	}

	maxBytes := 0
	if n, ok := value.AsNumber(in["maxBytes"]); ok {
		maxBytes = int(n)
	}
	decode, _ := in["decode"].(string)

	result, err := ctx.Streams.Read(handle, maxBytes, decode)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"done":     result.Done,
		"chunk":    result.Chunk,
		"encoding": result.Encoding,
		"bytes":    result.Bytes,
		"seq":      result.Seq,
		"stream":   map[string]any{"id": result.Stream.ID, "encoding": result.Stream.Encoding},
	}, nil
}

func streamCloseContract(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	raw, ok := in["stream"]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%w: stream handle required", registry.ErrBadRequest)
	}
	handle, ok := asHandle(raw)
	if !ok {
		return nil, fmt.Errorf("%w: malformed stream handle", registry.ErrBadRequest)
	}
	if err := ctx.Streams.Close(handle); err != nil {
		return nil, err
	}
	return map[string]any{"closed": true}, nil
}

// Register wires the built-in axiom components onto reg under their
// reserved URIs: stream read/close, the raw-input snapshot, and the
// filesystem/hash/JSON axioms.
func Register(reg *registry.Registry) {
	reg.MustRegister("lcod://contract/core/stream/read@1", streamReadContract)
	reg.MustRegister("lcod://contract/core/stream/close@1", streamCloseContract)
	reg.MustRegister("lcod://axiom/state/raw_input@1", rawInputAxiom)
	RegisterFS(reg)
	RegisterHashAndJSON(reg)
}
