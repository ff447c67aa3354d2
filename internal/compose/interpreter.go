package compose

import (
	"strings"
	"time"

	"lcod/internal/logging"
	"lcod/internal/registry"
	"lcod/internal/value"
)

var stepLog = logging.Named("kernel.compose.step")

// getPath walks root (an object or array) by dotted segments, exactly the
// way value.GetPath does; kept as a thin wrapper so call sites read like
// the mapping-DSL prose.
func getPath(root value.Value, path string) (value.Value, bool) {
	return value.GetPath(root, path)
}

// resolveValue implements the path half of the mapping DSL: "$." against
// state, "$slot." against slot vars, the state sentinel, and structural
// recursion through arrays/objects. The result sentinel, which only has a
// meaning on the output side of applyOutputs, resolves to nil here. Any
// other value passes through unchanged.
func resolveValue(val any, state, slot map[string]any) any {
	switch v := val.(type) {
	case string:
		switch {
		case v == StateSentinel:
			return state
		case v == ResultSentinel:
			return nil
		case strings.HasPrefix(v, "$."):
			resolved, ok := getPath(state, strings.TrimPrefix(v, "$."))
			if !ok {
				return nil
			}
			return resolved
		case strings.HasPrefix(v, "$slot."):
			resolved, ok := getPath(slot, strings.TrimPrefix(v, "$slot."))
			if !ok {
				return nil
			}
			return resolved
		default:
			return v
		}
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = resolveValue(item, state, slot)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = resolveValue(item, state, slot)
		}
		return out
	default:
		return v
	}
}

func unwrapOptional(val any) (bool, any) {
	if m, ok := val.(map[string]any); ok {
		if flag, ok := m[OptionalFlag].(bool); ok && flag {
			return true, m["value"]
		}
	}
	return false, val
}

func isPathLike(val any) bool {
	s, ok := val.(string)
	if !ok {
		return false
	}
	return strings.HasPrefix(s, "$.") || strings.HasPrefix(s, "$slot.") || s == StateSentinel
}

func valueToObject(v value.Value) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// buildInput assembles a step's call input object: spread descriptors
// first (in declaration order), then the remaining keys, with the
// `bindings` and `tooling/test_checker`'s `compose` carve-outs copied
// verbatim.
func buildInput(step Step, state, slot map[string]any) map[string]any {
	result := make(map[string]any)

	if spreadsRaw, ok := step.Inputs[SpreadKey]; ok {
		if spreads, ok := spreadsRaw.([]any); ok {
			for _, descRaw := range spreads {
				desc, ok := descRaw.(map[string]any)
				if !ok {
					continue
				}
				resolved := resolveValue(desc["source"], state, slot)
				optional, _ := desc["optional"].(bool)
				resolvedMap, isMap := resolved.(map[string]any)
				if !isMap {
					continue
				}
				if pickRaw, ok := desc["pick"].([]any); ok {
					for _, nameRaw := range pickRaw {
						name, ok := nameRaw.(string)
						if !ok {
							continue
						}
						if v, ok := resolvedMap[name]; ok {
							result[name] = v
						} else if !optional {
							result[name] = nil
						}
					}
				} else {
					for k, v := range resolvedMap {
						result[k] = v
					}
				}
			}
		}
	}

	for _, key := range sortedKeys(step.Inputs) {
		if key == SpreadKey {
			continue
		}
		raw := step.Inputs[key]
		if key == "bindings" {
			result[key] = raw
			continue
		}
		if step.Call == testCheckerURI && key == "compose" {
			result[key] = raw
			continue
		}
		optional, inner := unwrapOptional(raw)
		resolved := resolveValue(inner, state, slot)
		if optional && isPathLike(inner) && resolved == nil {
			continue
		}
		result[key] = resolved
	}
	return result
}

// applyOutputs merges a call's result into state per the `out` mapping:
// spread descriptors fan result keys into state first, then plain
// alias→mapping entries assign individual keys.
func applyOutputs(state map[string]any, mappings map[string]any, output value.Value) {
	if spreadsRaw, ok := mappings[SpreadKey]; ok {
		if outputObj, ok := output.(map[string]any); ok {
			if spreads, ok := spreadsRaw.([]any); ok {
				for _, descRaw := range spreads {
					desc, ok := descRaw.(map[string]any)
					if !ok {
						continue
					}
					source, _ := desc["source"].(string)
					if source == "" {
						source = "$"
					}
					optional, _ := desc["optional"].(bool)

					var payload value.Value
					var havePayload bool
					switch {
					case source == "$" || source == ResultSentinel:
						payload, havePayload = outputObj, true
					case strings.HasPrefix(source, "$."):
						payload, havePayload = getPath(outputObj, strings.TrimPrefix(source, "$."))
					default:
						payload, havePayload = outputObj, true
					}
					if !havePayload {
						continue
					}
					payloadMap, isMap := payload.(map[string]any)
					if !isMap {
						if !optional {
							continue
						}
						continue
					}
					if pickRaw, ok := desc["pick"].([]any); ok {
						for _, nameRaw := range pickRaw {
							name, ok := nameRaw.(string)
							if !ok {
								continue
							}
							if v, ok := payloadMap[name]; ok {
								state[name] = v
							} else if !optional {
								state[name] = nil
							}
						}
					} else {
						for k, v := range payloadMap {
							state[k] = v
						}
					}
				}
			}
		}
	}

	for _, alias := range sortedKeys(mappings) {
		if alias == SpreadKey {
			continue
		}
		optional, inner := unwrapOptional(mappings[alias])
		var resolved value.Value
		fromPath := false
		if s, ok := inner.(string); ok {
			fromPath = true
			if s == "$" {
				resolved = output
			} else if outputObj, ok := output.(map[string]any); ok {
				resolved = outputObj[s]
			}
		} else {
			resolved = inner
		}
		if optional && fromPath && resolved == nil {
			continue
		}
		state[alias] = resolved
	}
}

func serializeSlotsMap(m map[string][]Step) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, steps := range m {
		list := make([]any, len(steps))
		for i, s := range steps {
			list[i] = stepToValue(s)
		}
		out[k] = list
	}
	return out
}

// buildMeta assembles the `meta` value passed alongside a step's input:
// the serialized slot tree (under both "children" and "slots", matching
// the source's dual-key introspection payload), collectPath, and the
// current slot variables.
func buildMeta(step Step, slot map[string]any, slotsMap map[string][]Step) map[string]any {
	meta := map[string]any{}
	if serialized := serializeSlotsMap(slotsMap); serialized != nil {
		meta["children"] = serialized
		meta["slots"] = serialized
	}
	if step.CollectPath != "" {
		meta["collectPath"] = step.CollectPath
	}
	meta["slot"] = slot
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func mergeStepChildren(target map[string][]Step, source *StepChildren, overwrite bool) {
	if source == nil {
		return
	}
	if source.List != nil {
		if overwrite {
			target["children"] = source.List
		} else if _, ok := target["children"]; !ok {
			target["children"] = source.List
		}
		return
	}
	for key, steps := range source.Map {
		if overwrite {
			target[key] = steps
		} else if _, ok := target[key]; !ok {
			target[key] = steps
		}
	}
}

// normalizeChildrenMap merges a step's `children` and `slots` fields into a
// single name→steps map. `slots` entries overwrite `children` entries of
// the same name; a bare `children` list is exposed under the default
// "children" key, with "body" accepted as a synonym when "children" is
// otherwise absent.
func normalizeChildrenMap(children, slots *StepChildren) map[string][]Step {
	out := make(map[string][]Step)
	mergeStepChildren(out, children, false)
	mergeStepChildren(out, slots, true)
	if _, ok := out["children"]; !ok {
		if body, ok := out["body"]; ok {
			out["children"] = body
		}
	}
	return out
}

// composeSlotHandler is the slot executor the interpreter installs before
// invoking each step's component, so that component can call back into
// runSlot to execute one of the step's declared child lists.
type composeSlotHandler struct {
	slots       map[string][]Step
	parentState map[string]any
}

func (h *composeSlotHandler) RunSlot(ctx *registry.Context, name string, localState, slotVars value.Value) (value.Value, error) {
	var localMap map[string]any
	if localState == nil {
		localMap = value.Clone(h.parentState).(map[string]any)
	} else {
		localMap = valueToObject(localState)
	}
	slotMap := valueToObject(slotVars)

	steps, ok := h.slots[name]
	if !ok {
		switch name {
		case "children":
			steps, ok = h.slots["body"]
		case "body":
			steps, ok = h.slots["children"]
		}
	}
	if !ok {
		steps, ok = h.slots["children"]
	}
	if !ok {
		return nil, &registry.ErrSlotNotFound{Name: name}
	}

	return runSteps(ctx, steps, localMap, slotMap)
}

func stepTags(step Step) map[string]value.Value {
	return map[string]value.Value{
		"logger":      "kernel.compose.step",
		"componentId": step.Call,
	}
}

func mergedLogFields(ctx *registry.Context, step Step, extra map[string]any) map[string]any {
	fields := make(map[string]any, len(extra)+2)
	for k, v := range ctx.LogTags() {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	fields["componentId"] = step.Call
	return fields
}

func logStepStart(ctx *registry.Context, step Step, index int, inputKeys, slotKeys []string, hasChildren bool) {
	fields := mergedLogFields(ctx, step, map[string]any{
		"phase":     "start",
		"stepIndex": index,
	})
	if step.CollectPath != "" {
		fields["collectPath"] = step.CollectPath
	}
	if len(inputKeys) > 0 {
		fields["inputKeys"] = inputKeys
	}
	if len(slotKeys) > 0 {
		fields["slotKeys"] = slotKeys
	}
	if hasChildren {
		fields["hasChildren"] = true
	}
	stepLog.Debugw("step start", flatten(fields)...)
}

func logStepSuccess(ctx *registry.Context, step Step, index int, duration time.Duration, output value.Value) {
	fields := mergedLogFields(ctx, step, map[string]any{
		"phase":      "success",
		"stepIndex":  index,
		"durationMs": float64(duration.Microseconds()) / 1000.0,
		"resultType": value.TypeLabel(output),
	})
	switch v := output.(type) {
	case map[string]any:
		if len(v) > 0 {
			fields["resultKeys"] = sortedKeys(v)
		}
	case []any:
		fields["resultLength"] = len(v)
	}
	stepLog.Debugw("step success", flatten(fields)...)
}

func logStepError(ctx *registry.Context, step Step, index int, duration time.Duration, err error) {
	fields := mergedLogFields(ctx, step, map[string]any{
		"phase":      "error",
		"stepIndex":  index,
		"durationMs": float64(duration.Microseconds()) / 1000.0,
		"error":      err.Error(),
	})
	if cause := underlyingCause(err); cause != "" {
		fields["rootCause"] = cause
	}
	stepLog.Errorw("step error", flatten(fields)...)
}

func underlyingCause(err error) string {
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return ""
		}
		inner := u.Unwrap()
		if inner == nil {
			return ""
		}
		if _, ok := inner.(unwrapper); !ok {
			return inner.Error()
		}
		err = inner
	}
}

func flatten(fields map[string]any) []any {
	out := make([]any, 0, len(fields)*2)
	for _, k := range sortedKeys(fields) {
		out = append(out, k, fields[k])
	}
	return out
}

// runSteps drives one step list to completion against a shared state
// object. It never
// retries and never swallows an error: FlowSignal and Cancelled sentinels
// propagate unchanged to the caller, which for foreach/while is exactly
// what lets them catch break/continue.
func runSteps(ctx *registry.Context, steps []Step, state map[string]any, slot map[string]any) (map[string]any, error) {
	for index, step := range steps {
		if err := ctx.EnsureNotCancelled(); err != nil {
			return nil, err
		}

		input := buildInput(step, state, slot)
		slotsMap := normalizeChildrenMap(step.Children, step.Slots)
		meta := buildMeta(step, slot, slotsMap)

		ctx.PushSlotExecutor(&composeSlotHandler{slots: slotsMap, parentState: state})

		inputKeys := sortedKeys(input)
		var slotKeys []string
		if len(slot) > 0 {
			slotKeys = sortedKeys(slot)
		}
		hasChildren := false
		for _, list := range slotsMap {
			if len(list) > 0 {
				hasChildren = true
				break
			}
		}
		logStepStart(ctx, step, index, inputKeys, slotKeys, hasChildren)

		started := time.Now()
		ctx.PushScope()
		output, err := ctx.Call(step.Call, input, meta)
		ctx.PopScope()
		ctx.PopSlotExecutor()
		duration := time.Since(started)

		if err != nil {
			logStepError(ctx, step, index, duration, err)
			return nil, err
		}

		applyOutputs(state, step.Out, output)
		logStepSuccess(ctx, step, index, duration, output)
	}
	return state, nil
}

// RunCompose runs steps against initialState, returning the final state
// object. A non-object initialState is wrapped under the "input" key
// rather than discarded").
func RunCompose(ctx *registry.Context, steps []Step, initialState value.Value) (value.Value, error) {
	stateMap, ok := initialState.(map[string]any)
	if !ok {
		stateMap = map[string]any{"input": initialState}
	}
	final, err := runSteps(ctx, steps, stateMap, map[string]any{})
	if err != nil {
		return nil, err
	}
	return final, nil
}
