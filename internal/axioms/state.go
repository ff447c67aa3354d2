package axioms

import (
	"lcod/internal/registry"
	"lcod/internal/value"
)

// rawInputAxiom returns the snapshot of the top-level compose invocation's
// original input, as recorded by Context.SetRawInput (runner.Run seeds it at
// the start of a run).
func rawInputAxiom(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	snapshot := ctx.RawInput()
	if snapshot == nil {
		return nil, nil
	}
	return snapshot, nil
}
