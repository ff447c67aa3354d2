package tooling

import (
	"errors"
	"fmt"

	"lcod/internal/registry"
	"lcod/internal/value"
)

// composeRunSlot implements lcod://contract/compose/run_slot@1: a
// compose-level handle onto Context.RunSlot. With optional=true, a missing
// slot resolves to {ran:false} rather than propagating ErrSlotNotFound; any
// other slot failure is captured into an `error` field rather than
// propagated, so a calling compose document can branch on it.
func composeRunSlot(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	slotName, _ := in["slot"].(string)
	if slotName == "" {
		return nil, fmt.Errorf("%w: slot must be provided", registry.ErrBadRequest)
	}
	state := in["state"]
	slotVars := in["slotVars"]
	optional, _ := in["optional"].(bool)

	result, err := ctx.RunSlot(slotName, state, slotVars)
	if err == nil {
		return map[string]any{"ran": true, "result": result}, nil
	}

	var notFound *registry.ErrSlotNotFound
	if optional && errors.As(err, &notFound) {
		return map[string]any{"ran": false, "result": nil}, nil
	}

	return map[string]any{
		"ran": true,
		"error": map[string]any{
			"message": err.Error(),
			"code":    "slot_execution_failed",
		},
	}, nil
}

// RegisterComposeContracts wires the compose-level contracts onto reg.
func RegisterComposeContracts(reg *registry.Registry) {
	reg.MustRegister("lcod://contract/compose/run_slot@1", composeRunSlot)
}
