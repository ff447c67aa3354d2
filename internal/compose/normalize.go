package compose

import (
	"sort"
	"strings"
)

// Reserved keys of the normalized mapping DSL.
const (
	SpreadKey     = "__lcod_spreads__"
	OptionalFlag  = "__lcod_optional__"
	StateSentinel = "__lcod_state__"
	ResultSentinel = "__lcod_result__"
)

type mappingKind int

const (
	kindInput mappingKind = iota
	kindOutput
)

func defaultSuffixPath(suffix string) string {
	trimmed := strings.TrimPrefix(suffix, ".")
	if trimmed == "" {
		return ""
	}
	return "$." + trimmed
}

func sentinelFor(kind mappingKind) string {
	if kind == kindInput {
		return StateSentinel
	}
	return ResultSentinel
}

// normalizeSpreadSource expands the identity-sugar "=" into either a
// suffix-relative path or the whole-state/whole-result sentinel.
func normalizeSpreadSource(raw any, suffix string, hasSuffix bool, kind mappingKind) string {
	expand := func() string {
		if hasSuffix && suffix != "" {
			return defaultSuffixPath(suffix)
		}
		return sentinelFor(kind)
	}
	switch v := raw.(type) {
	case string:
		if v == "=" {
			return expand()
		}
		return v
	case map[string]any:
		if src, ok := v["source"]; ok {
			return normalizeSpreadSource(src, suffix, hasSuffix, kind)
		}
		if src, ok := v["path"]; ok {
			return normalizeSpreadSource(src, suffix, hasSuffix, kind)
		}
		return expand()
	default:
		return expand()
	}
}

// normalizeSpreadEntries turns one "...key" value (string/object/array) into
// one or more spread descriptors {source, optional?, pick?}.
func normalizeSpreadEntries(raw any, suffix string, hasSuffix bool, kind mappingKind) []any {
	switch v := raw.(type) {
	case []any:
		var out []any
		for _, item := range v {
			out = append(out, normalizeSpreadEntries(item, suffix, hasSuffix, kind)...)
		}
		return out
	case map[string]any:
		descriptor := map[string]any{}
		var sourceRaw any = "="
		if src, ok := v["source"]; ok {
			sourceRaw = src
		} else if src, ok := v["path"]; ok {
			sourceRaw = src
		}
		descriptor["source"] = normalizeSpreadSource(sourceRaw, suffix, hasSuffix, kind)
		if optional, ok := v["optional"].(bool); ok {
			descriptor["optional"] = optional
		}
		if pick, ok := v["pick"].([]any); ok {
			var selections []any
			for _, item := range pick {
				if s, ok := item.(string); ok {
					selections = append(selections, s)
				}
			}
			if len(selections) > 0 {
				descriptor["pick"] = selections
			}
		}
		return []any{descriptor}
	default:
		return []any{map[string]any{"source": normalizeSpreadSource(raw, suffix, hasSuffix, kind)}}
	}
}

// normalizeValue expands identity sugar at depth 0 and recurses into nested
// objects/arrays.
func normalizeValue(val any, key string, kind mappingKind, depth int) any {
	if s, ok := val.(string); ok && s == "=" && depth == 0 {
		if kind == kindInput {
			return "$." + key
		}
		return key
	}
	if m, ok := val.(map[string]any); ok {
		return normalizeMap(m, kind, depth+1)
	}
	if arr, ok := val.([]any); ok {
		out := make([]any, len(arr))
		for i, item := range arr {
			if m, ok := item.(map[string]any); ok {
				out[i] = normalizeMap(m, kind, depth+1)
			} else {
				out[i] = item
			}
		}
		return out
	}
	return val
}

// normalizeMap rewrites one inputs/out object: "=" sugar, "?" optional
// wrapping, and "..." spread collection. Key iteration is sorted so spread
// descriptor order (and therefore downstream assembly) is deterministic
// regardless of map-iteration randomization.
func normalizeMap(m map[string]any, kind mappingKind, depth int) map[string]any {
	normalized := make(map[string]any, len(m))
	var spreads []any

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, rawKey := range keys {
		val := m[rawKey]
		if depth == 0 && strings.HasPrefix(rawKey, "...") {
			suffix := strings.TrimPrefix(rawKey, "...")
			spreads = append(spreads, normalizeSpreadEntries(val, suffix, suffix != "", kind)...)
			continue
		}
		optional := depth == 0 && strings.HasSuffix(rawKey, "?")
		key := rawKey
		if optional {
			key = strings.TrimSuffix(rawKey, "?")
		}
		normalizedValue := normalizeValue(val, key, kind, depth)
		if optional {
			normalized[key] = map[string]any{
				OptionalFlag: true,
				"value":      normalizedValue,
			}
		} else {
			normalized[key] = normalizedValue
		}
	}
	if len(spreads) > 0 {
		normalized[SpreadKey] = spreads
	}
	return normalized
}

func normalizeChildrenField(c *StepChildren) *StepChildren {
	if c == nil {
		return nil
	}
	if c.List != nil {
		out := make([]Step, len(c.List))
		for i, s := range c.List {
			out[i] = normalizeStep(s)
		}
		return &StepChildren{List: out}
	}
	out := make(map[string][]Step, len(c.Map))
	for k, list := range c.Map {
		ns := make([]Step, len(list))
		for i, s := range list {
			ns[i] = normalizeStep(s)
		}
		out[k] = ns
	}
	return &StepChildren{Map: out}
}

// normalizeStep applies normalizeMap to a step's inputs/out and recurses
// into children/slots. Idempotent: renormalizing an already-normalized
// step is a no-op because normalizeMap only rewrites depth-0 sugar
// that no longer appears once expanded.
func normalizeStep(step Step) Step {
	if len(step.Inputs) > 0 {
		step.Inputs = normalizeMap(step.Inputs, kindInput, 0)
	}
	if len(step.Out) > 0 {
		step.Out = normalizeMap(step.Out, kindOutput, 0)
	}
	step.Children = normalizeChildrenField(step.Children)
	step.Slots = normalizeChildrenField(step.Slots)
	return step
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
