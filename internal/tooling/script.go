package tooling

import (
	"fmt"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"lcod/internal/registry"
	"lcod/internal/value"
)

const scriptURI = "lcod://tooling/script@1"

// scriptAllowedPackages is the stdlib whitelist the embedded interpreter
// may import. This is a courtesy against accidental footguns in compose
// documents, not a security sandbox: a Go interpreter has no capability
// model, so nothing here stops a determined script from reaching the host.
var scriptAllowedPackages = map[string]bool{
	"strings":         true,
	"strconv":         true,
	"fmt":             true,
	"math":            true,
	"regexp":          true,
	"encoding/json":   true,
	"encoding/base64": true,
	"time":            true,
	"sort":            true,
	"bytes":           true,
	"errors":          true,
}

func validateScriptImports(code string) error {
	var forbidden []string
	inImportBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inImportBlock = true
		case inImportBlock && strings.HasPrefix(trimmed, ")"):
			inImportBlock = false
		case inImportBlock:
			pkg := strings.Trim(trimmed, `"`)
			if pkg != "" && !scriptAllowedPackages[pkg] {
				forbidden = append(forbidden, pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			pkg := strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`)
			if pkg != "" && !scriptAllowedPackages[pkg] {
				forbidden = append(forbidden, pkg)
			}
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("%w: forbidden script imports: %v", registry.ErrBadRequest, forbidden)
	}
	return nil
}

func wrapScriptCode(code string) string {
	if strings.Contains(code, "package main") {
		return code
	}
	return "package main\n\n" + code
}

// runScript evaluates code in a fresh yaegi interpreter. code must define
// func Run(input any) (any, error); its return value becomes the step's
// output.
func runScript(code string, input value.Value) (value.Value, error) {
	if err := validateScriptImports(code); err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("script: load stdlib: %w", err)
	}

	if _, err := i.Eval(wrapScriptCode(code)); err != nil {
		return nil, fmt.Errorf("%w: script evaluation failed: %v", registry.ErrBadRequest, err)
	}

	runFn, err := i.Eval("main.Run")
	if err != nil {
		return nil, fmt.Errorf("%w: script must define func Run(input any) (any, error): %v", registry.ErrBadRequest, err)
	}

	run, ok := runFn.Interface().(func(any) (any, error))
	if !ok {
		return nil, fmt.Errorf("%w: Run has the wrong signature, expected func(any) (any, error)", registry.ErrBadRequest)
	}

	return run(input)
}

func scriptComponent(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	code, _ := in["code"].(string)
	if code == "" {
		return nil, fmt.Errorf("%w: script component requires `code`", registry.ErrBadRequest)
	}
	return runScript(code, in["input"])
}

// RegisterScript wires the script bridge onto reg.
func RegisterScript(reg *registry.Registry) {
	reg.MustRegister(scriptURI, scriptComponent)
}
