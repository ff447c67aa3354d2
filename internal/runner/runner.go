// Package runner assembles a fully-wired Registry (flow primitives, built-in
// axioms, tooling components) and runs a parsed compose document against it.
// It is the one place cmd/lcod and tests share for "give me a kernel and run
// this document" instead of each re-wiring the component set by hand.
package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"lcod/internal/axioms"
	"lcod/internal/compose"
	"lcod/internal/flow"
	"lcod/internal/manifest"
	"lcod/internal/registry"
	"lcod/internal/tooling"
	"lcod/internal/value"
)

// NewRegistry returns a Registry with every built-in component wired in:
// flow/if, foreach, while, break, continue; the stream/raw-input/fs/hash/json
// axioms; and the logging, registry-scope, run_slot, and script tooling
// components.
func NewRegistry() *registry.Registry {
	reg := registry.New()
	flow.Register(reg)
	axioms.Register(reg)
	tooling.Register(reg)
	return reg
}

// LoadDocument reads a compose document from path, dispatching on its
// extension (.yaml/.yml decode as YAML, everything else as JSON).
func LoadDocument(path string) ([]compose.Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose document %q: %w", path, err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return compose.ParseComposeYAML(data)
	default:
		return compose.ParseCompose(data)
	}
}

// LoadManifest looks for an lcp.toml alongside the compose document at
// documentPath. A missing manifest is not an error — manifest canonicalization
// is opt-in (spec §6) — it simply returns a nil *manifest.Manifest.
func LoadManifest(documentPath string) (*manifest.Manifest, error) {
	path := filepath.Join(filepath.Dir(documentPath), "lcp.toml")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return manifest.Load(path)
}

// Run parses the document at documentPath, wires a fresh Registry and
// Context, seeds the context's raw-input snapshot with input, and runs the
// document to completion.
func Run(documentPath string, input value.Value) (value.Value, error) {
	steps, err := LoadDocument(documentPath)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry()
	ctx := registry.NewContext(reg)
	defer ctx.Close()
	ctx.SetRawInput(input)

	return compose.RunCompose(ctx, steps, input)
}
