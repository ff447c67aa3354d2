// Package flow implements the flow primitives: if/foreach/
// while/break/continue/check_abort, each a Registry handler that drives
// the Context's slot-executor stack.
package flow

import (
	"errors"
	"fmt"

	"lcod/internal/registry"
	"lcod/internal/value"
)

// isTruthy implements flow/if's truthiness convention: null and false are
// false, everything else — including 0, "", and empty arrays/objects — is
// true.
func isTruthy(v value.Value) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func flowIf(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	name := "else"
	if isTruthy(in["cond"]) {
		name = "then"
	}
	result, err := ctx.RunSlot(name, nil, nil)
	if err != nil {
		var notFound *registry.ErrSlotNotFound
		if errors.As(err, &notFound) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	return result, nil
}

func listFromInput(in map[string]any) ([]any, error) {
	if raw, ok := in["list"]; ok {
		if arr, ok := raw.([]any); ok {
			return arr, nil
		}
		return nil, fmt.Errorf("%w: flow/foreach expected array for `list`", registry.ErrBadRequest)
	}
	if raw, ok := in["stream"]; ok {
		if raw == nil {
			return nil, nil
		}
		if arr, ok := raw.([]any); ok {
			return arr, nil
		}
		return nil, fmt.Errorf("%w: flow/foreach stream must be an array-shaped value in this runtime", registry.ErrBadRequest)
	}
	return nil, nil
}

// collectPathValue resolves collectPath against the view {"$": iterState,
// "$slot": slotVars}.
func collectPathValue(path string, iterState value.Value, slotVars map[string]any) (value.Value, bool) {
	root := map[string]any{"$": iterState, "$slot": slotVars}
	return value.GetPath(root, path)
}

func metaCollectPath(meta value.Value) string {
	m, ok := meta.(map[string]any)
	if !ok {
		return ""
	}
	cp, _ := m["collectPath"].(string)
	return cp
}

func flowForeach(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	items, err := listFromInput(in)
	if err != nil {
		return nil, err
	}
	collectPath := metaCollectPath(meta)

	var results []any

	if len(items) == 0 {
		slotVars := map[string]any{"item": nil, "index": -1}
		elseState, err := ctx.RunSlot("else", nil, slotVars)
		if err != nil {
			var notFound *registry.ErrSlotNotFound
			if !errors.As(err, &notFound) {
				return nil, err
			}
		} else if collectPath != "" {
			if val, ok := collectPathValue(collectPath, elseState, slotVars); ok {
				results = append(results, val)
			}
		}
		return map[string]any{"results": results}, nil
	}

	for index, item := range items {
		if err := ctx.EnsureNotCancelled(); err != nil {
			return nil, err
		}
		slotVars := map[string]any{"item": item, "index": index}
		iterState, err := ctx.RunSlot("body", nil, slotVars)
		if err != nil {
			var signal *registry.ErrFlowSignal
			if errors.As(err, &signal) {
				if signal.Kind == registry.SignalContinue {
					continue
				}
				if signal.Kind == registry.SignalBreak {
					break
				}
			}
			return nil, err
		}
		if collectPath != "" {
			val, ok := collectPathValue(collectPath, iterState, slotVars)
			if !ok {
				val = nil
			}
			results = append(results, val)
		} else {
			results = append(results, item)
		}
	}
	return map[string]any{"results": results}, nil
}

func flowBreak(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	return nil, &registry.ErrFlowSignal{Kind: registry.SignalBreak}
}

func flowContinue(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	return nil, &registry.ErrFlowSignal{Kind: registry.SignalContinue}
}

func flowCheckAbort(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	if err := ctx.EnsureNotCancelled(); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		num, ok := value.AsNumber(v)
		if !ok {
			return 0, false
		}
		return int(num), true
	}
}

// flowWhile runs condition/body slots alternately against an externally
// threaded loop state, passed as each slot's local state so `$.`-style
// paths inside condition/body/else resolve against it directly.
// condition must return an object with a boolean `continue`; body's
// returned state is taken from its `state` key when present, else from
// the whole returned value — both slot shapes are accepted.
func flowWhile(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	state := in["state"]

	maxIterations, ok := asInt(in["maxIterations"])
	if !ok {
		return nil, fmt.Errorf("%w: flow/while requires integer `maxIterations`", registry.ErrBadRequest)
	}

	iterations := 0
	for {
		if err := ctx.EnsureNotCancelled(); err != nil {
			return nil, err
		}

		condResult, err := ctx.RunSlot("condition", state, nil)
		if err != nil {
			return nil, err
		}
		condObj, _ := condResult.(map[string]any)
		cont, _ := condObj["continue"].(bool)

		if !cont {
			if iterations == 0 {
				elseResult, err := ctx.RunSlot("else", state, nil)
				if err != nil {
					var notFound *registry.ErrSlotNotFound
					if !errors.As(err, &notFound) {
						return nil, err
					}
				} else {
					state = nextState(elseResult, state)
				}
			}
			break
		}

		if iterations >= maxIterations {
			return nil, fmt.Errorf("%w: flow/while exceeded maxIterations=%d", registry.ErrBadRequest, maxIterations)
		}

		bodyResult, err := ctx.RunSlot("body", state, nil)
		if err != nil {
			var signal *registry.ErrFlowSignal
			if errors.As(err, &signal) {
				if signal.Kind == registry.SignalContinue {
					iterations++
					continue
				}
				if signal.Kind == registry.SignalBreak {
					iterations++
					break
				}
			}
			return nil, err
		}
		state = nextState(bodyResult, state)
		iterations++
	}

	return map[string]any{"state": state, "iterations": iterations}, nil
}

func nextState(slotResult, fallback value.Value) value.Value {
	if m, ok := slotResult.(map[string]any); ok {
		if s, present := m["state"]; present {
			return s
		}
	}
	if slotResult == nil {
		return fallback
	}
	return slotResult
}

// Register wires the built-in flow components onto reg under their
// reserved URIs.
func Register(reg *registry.Registry) {
	reg.MustRegister("lcod://flow/if@1", flowIf)
	reg.MustRegister("lcod://flow/foreach@1", flowForeach)
	reg.MustRegister("lcod://flow/while@1", flowWhile)
	reg.MustRegister("lcod://flow/break@1", flowBreak)
	reg.MustRegister("lcod://flow/continue@1", flowContinue)
	reg.MustRegister("lcod://flow/check_abort@1", flowCheckAbort)
}
