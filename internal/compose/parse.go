package compose

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"lcod/internal/registry"
)

// testCheckerURI is the one call target whose "compose" input key is a
// carve-out: copied verbatim, never path-resolved.
const testCheckerURI = "lcod://tooling/test_checker@1"

// ParseCompose normalizes a JSON-encoded compose document — either a bare
// step array or {"compose": [...]} — into a list of Steps. normalizeStep is
// applied directly against the decoded document; there is no external
// bootstrap normalizer component or fallback merge pass.
func ParseCompose(raw []byte) ([]Step, error) {
	composeRaw, err := extractComposeRaw(raw)
	if err != nil {
		return nil, err
	}

	var steps []Step
	dec := json.NewDecoder(bytes.NewReader(composeRaw))
	dec.UseNumber()
	if err := dec.Decode(&steps); err != nil {
		return nil, fmt.Errorf("%w: invalid compose document: %v", registry.ErrBadRequest, err)
	}

	for i := range steps {
		steps[i] = normalizeStep(steps[i])
	}
	return steps, nil
}

// ParseComposeYAML accepts a YAML-encoded compose document (the on-disk
// format a manifest-driven loader reads) and re-expresses it as JSON before
// delegating to ParseCompose.
func ParseComposeYAML(raw []byte) ([]Step, error) {
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("%w: invalid YAML compose document: %v", registry.ErrBadRequest, err)
	}
	jsonBytes, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", registry.ErrBadRequest, err)
	}
	return ParseCompose(jsonBytes)
}

func extractComposeRaw(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return trimmed, nil
	}
	var wrapper struct {
		Compose json.RawMessage `json:"compose"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: invalid compose document: %v", registry.ErrBadRequest, err)
	}
	if len(wrapper.Compose) == 0 {
		return nil, fmt.Errorf("%w: compose document missing compose array", registry.ErrBadRequest)
	}
	return wrapper.Compose, nil
}
