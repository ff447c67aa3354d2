package tooling

import (
	"fmt"
	"os"
	"time"

	"lcod/internal/registry"
	"lcod/internal/value"
)

const (
	logContractURI = "lcod://contract/tooling/log@1"
	kernelLogURI   = "lcod://kernel/log@1"
	logContextURI  = "lcod://tooling/log.context@1"
)

var allowedLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true,
}

// stableTags keeps only the scalar-valued entries of an object, the shape a
// log tag set is allowed to carry on the wire.
func stableTags(v value.Value) map[string]any {
	out := map[string]any{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, val := range m {
		switch val.(type) {
		case string, bool, int, int64, float64:
			out[k] = val
		default:
			if _, isNum := value.AsNumber(val); isNum {
				out[k] = val
			}
		}
	}
	return out
}

func writeFallback(entry map[string]any) {
	encoded, err := value.Encode(entry, true)
	if err != nil {
		return
	}
	level, _ := entry["level"].(string)
	if level == "error" || level == "fatal" {
		fmt.Fprintln(os.Stderr, encoded)
		return
	}
	fmt.Fprintln(os.Stdout, encoded)
}

// emitLog builds and emits one structured log entry. kernelTags forces a
// `component: kernel` tag, the way lcod://kernel/log@1 auto-tags its
// callers as opposed to the raw contract entry point.
func emitLog(ctx *registry.Context, input value.Value, kernelTags bool) (value.Value, error) {
	payload, _ := input.(map[string]any)
	if payload == nil {
		payload = map[string]any{}
	}

	level, _ := payload["level"].(string)
	if level == "" || !allowedLevels[level] {
		return nil, fmt.Errorf("%w: log payload missing or invalid 'level'", registry.ErrBadRequest)
	}
	message, _ := payload["message"].(string)
	if message == "" {
		return nil, fmt.Errorf("%w: log payload missing 'message'", registry.ErrBadRequest)
	}

	entry := map[string]any{"level": level, "message": message}
	if data, ok := payload["data"]; ok {
		if _, isObj := data.(map[string]any); !isObj {
			return nil, fmt.Errorf("%w: log 'data' must be an object", registry.ErrBadRequest)
		}
		entry["data"] = data
	}
	if errVal, ok := payload["error"]; ok {
		if _, isObj := errVal.(map[string]any); !isObj {
			return nil, fmt.Errorf("%w: log 'error' must be an object", registry.ErrBadRequest)
		}
		entry["error"] = errVal
	}

	tags := ctx.LogTags()
	if tags == nil {
		tags = map[string]any{}
	}
	if kernelTags {
		tags["component"] = "kernel"
		tags["runId"] = ctx.RunID()
	}
	if extra, ok := payload["tags"]; ok {
		for k, v := range stableTags(extra) {
			tags[k] = v
		}
	}
	if len(tags) > 0 {
		entry["tags"] = tags
	}

	if ts, ok := payload["timestamp"]; ok {
		tsStr, ok := ts.(string)
		if !ok {
			return nil, fmt.Errorf("%w: log 'timestamp' must be a string", registry.ErrBadRequest)
		}
		entry["timestamp"] = tsStr
	} else {
		entry["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}

	if target, ok := ctx.BindingFor(logContractURI); ok && target != logContractURI && target != kernelLogURI {
		result, err := ctx.Call(target, entry, nil)
		if err != nil {
			writeFallback(map[string]any{
				"level":     "error",
				"message":   "log contract handler failed",
				"data":      map[string]any{"error": err.Error()},
				"timestamp": time.Now().UTC().Format(time.RFC3339),
				"tags":      tags,
			})
			return nil, nil
		}
		if result == nil {
			return entry, nil
		}
		return result, nil
	}

	writeFallback(entry)
	return entry, nil
}

func logContractImpl(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	return emitLog(ctx, input, false)
}

func kernelLogImpl(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	return emitLog(ctx, input, true)
}

// logContext pushes tags onto the log-tag stack for the duration of its
// children slot, popping them again on the way out regardless of outcome.
func logContext(ctx *registry.Context, input, meta value.Value) (value.Value, error) {
	in, _ := input.(map[string]any)
	tags := stableTags(in["tags"])
	pushed := len(tags) > 0
	if pushed {
		ctx.PushLogTags(tags)
		defer ctx.PopLogTags()
	}

	if hasChildrenSlot(meta) {
		return ctx.RunSlot("children", nil, nil)
	}
	return map[string]any{}, nil
}

func hasChildrenSlot(meta value.Value) bool {
	m, ok := meta.(map[string]any)
	if !ok {
		return false
	}
	_, present := m["children"]
	return present
}

// RegisterLogging wires the log/log.context components onto reg.
func RegisterLogging(reg *registry.Registry) {
	reg.MustRegister(logContractURI, logContractImpl)
	reg.MustRegister(kernelLogURI, kernelLogImpl)
	reg.MustRegister(logContextURI, logContext)
}
