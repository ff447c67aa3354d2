package axioms

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"lcod/internal/registry"
	"lcod/internal/value"
)

func sha256Contract(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	data, err := requireString(in, "data")
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(data))
	return map[string]any{"hex": hex.EncodeToString(sum[:])}, nil
}

func jsonParseContract(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	text, err := requireString(in, "text")
	if err != nil {
		return nil, err
	}
	parsed, err := value.Decode([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", registry.ErrBadRequest, err)
	}
	return map[string]any{"value": parsed}, nil
}

// RegisterHashAndJSON wires the hash and JSON-parse axioms onto reg.
func RegisterHashAndJSON(reg *registry.Registry) {
	reg.MustRegister("lcod://contract/core/hash/sha256@1", sha256Contract)
	reg.MustRegister("lcod://contract/core/parse/json@1", jsonParseContract)
}
