package tooling

import (
	"encoding/json"
	"fmt"
	"strings"

	"lcod/internal/compose"
	"lcod/internal/logging"
	"lcod/internal/registry"
	"lcod/internal/value"
)

var scopeLog = logging.Named("tooling.registry_scope")

const registryScopeURI = "lcod://tooling/registry/scope@1"

func parseBindings(v value.Value) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	bindings := make(map[string]string, len(m))
	for contract, impl := range m {
		if implURI, ok := impl.(string); ok {
			bindings[contract] = implURI
		}
	}
	if len(bindings) == 0 {
		return nil
	}
	return bindings
}

func inlineMetadata(obj map[string]any) *registry.Metadata {
	keys := func(field string) []string {
		m, ok := obj[field].(map[string]any)
		if !ok {
			return nil
		}
		out := make([]string, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		return out
	}
	meta := &registry.Metadata{Inputs: keys("inputs"), Outputs: keys("outputs"), Slots: keys("slots")}
	if len(meta.Inputs) == 0 && len(meta.Outputs) == 0 && len(meta.Slots) == 0 {
		return nil
	}
	return meta
}

// registerInlineComponent compiles one inline compose-defined component and
// registers it under its own id in the shared registry. The registration is
// not removed when the enclosing scope returns.
// Re-registering an id already present is a silent no-op rather than a
// Conflict: a registry/scope step inside a loop body runs its setup every
// iteration, and the inline definition is always identical across runs.
func registerInlineComponent(reg *registry.Registry, obj map[string]any) error {
	id, _ := obj["id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		scopeLog.Warnw("skipping inline component without a valid id")
		return nil
	}
	if reg.Has(id) {
		return nil
	}

	composeField, ok := obj["compose"].([]any)
	if !ok {
		if _, hasManifest := obj["manifest"]; hasManifest {
			scopeLog.Warnw("inline component manifest not supported", "componentId", id)
			return nil
		}
		scopeLog.Warnw("inline component missing a supported definition", "componentId", id)
		return nil
	}

	raw, err := json.Marshal(composeField)
	if err != nil {
		return fmt.Errorf("inline component %q: %w", id, err)
	}
	steps, err := compose.ParseCompose(raw)
	if err != nil {
		return fmt.Errorf("failed to parse inline component %q: %w", id, err)
	}
	rewriteInlineScriptInputs(steps)

	meta := inlineMetadata(obj)
	handler := func(ctx *registry.Context, input, _ value.Value) (value.Value, error) {
		seed, ok := input.(map[string]any)
		if !ok {
			seed = map[string]any{}
		}
		result, err := compose.RunCompose(ctx, steps, seed)
		if err != nil {
			return nil, err
		}
		if resultMap, ok := result.(map[string]any); ok {
			if entry, present := resultMap["entry"]; present {
				return entry, nil
			}
			if logs, present := resultMap["logs"]; present {
				return logs, nil
			}
		}
		return result, nil
	}

	return reg.RegisterWithMetadata(id, handler, meta)
}

// rewriteInlineScriptInputs rewrites an inline component's top-level
// lcod://tooling/script@1 steps that declare `input: {}` to `input:
// "__lcod_state__"`, so the script sees the component's whole running state
// by default instead of an empty object.
func rewriteInlineScriptInputs(steps []compose.Step) {
	for i := range steps {
		if steps[i].Call != scriptURI {
			continue
		}
		if in, ok := steps[i].Inputs["input"].(map[string]any); ok && len(in) == 0 {
			steps[i].Inputs["input"] = compose.StateSentinel
		}
	}
}

func registerInlineComponents(reg *registry.Registry, v value.Value) error {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if err := registerInlineComponent(reg, obj); err != nil {
			return err
		}
	}
	return nil
}

// registryScope implements lcod://tooling/registry/scope@1: pushes a
// binding-frame override for the duration of its children slot, always
// popping the frame on the way out even when the slot or registration
// fails. Inline components it registers stay registered after it returns.
func registryScope(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	bindings := parseBindings(in["bindings"])

	ctx.EnterRegistryScope(bindings)
	defer ctx.LeaveRegistryScope()

	if err := registerInlineComponents(ctx.Registry(), in["components"]); err != nil {
		return nil, err
	}

	if hasChildrenSlot(meta) {
		return ctx.RunSlot("children", nil, nil)
	}
	return map[string]any{}, nil
}

// RegisterRegistryScope wires the registry-scope component onto reg.
func RegisterRegistryScope(reg *registry.Registry) {
	reg.MustRegister(registryScopeURI, registryScope)
}
