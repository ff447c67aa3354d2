package axioms

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lcod/internal/registry"
	"lcod/internal/value"
)

func requireString(in map[string]any, key string) (string, error) {
	v, ok := in[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: missing or invalid `%s`", registry.ErrBadRequest, key)
	}
	return v, nil
}

func optionalBool(in map[string]any, key string, fallback bool) bool {
	if v, ok := in[key].(bool); ok {
		return v
	}
	return fallback
}

func readFileContract(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	path, err := requireString(in, "path")
	if err != nil {
		return nil, err
	}
	encoding, _ := in["encoding"].(string)
	if encoding == "" {
		encoding = "utf-8"
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to stat file %q: %w", path, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read file %q: %w", path, err)
	}

	var data string
	switch encoding {
	case "base64":
		data = base64.StdEncoding.EncodeToString(raw)
	case "hex":
		data = hex.EncodeToString(raw)
	default:
		encoding = "utf-8"
		data = string(raw)
	}

	return map[string]any{
		"data":     data,
		"encoding": encoding,
		"size":     info.Size(),
		"mtime":    info.ModTime().UTC().Format(time.RFC3339),
	}, nil
}

func writeFileContract(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	path, err := requireString(in, "path")
	if err != nil {
		return nil, err
	}
	data, err := requireString(in, "data")
	if err != nil {
		return nil, err
	}
	encoding, _ := in["encoding"].(string)
	append := optionalBool(in, "append", false)
	createParents := optionalBool(in, "createParents", false)

	var raw []byte
	switch encoding {
	case "base64":
		raw, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 payload: %v", registry.ErrBadRequest, err)
		}
	case "hex":
		raw, err = hex.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hex payload: %v", registry.ErrBadRequest, err)
		}
	default:
		raw = []byte(data)
	}

	if createParents {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("unable to create parent directories for %q: %w", path, err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to open file %q: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(raw); err != nil {
		return nil, fmt.Errorf("unable to write file %q: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to stat file %q: %w", path, err)
	}

	return map[string]any{
		"bytesWritten": int64(len(raw)),
		"mtime":        info.ModTime().UTC().Format(time.RFC3339),
	}, nil
}

// RegisterFS wires the filesystem axioms onto reg.
func RegisterFS(reg *registry.Registry) {
	reg.MustRegister("lcod://contract/core/fs/read-file@1", readFileContract)
	reg.MustRegister("lcod://contract/core/fs/write-file@1", writeFileContract)
}
