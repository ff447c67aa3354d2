// Package logging provides the kernel's structured, category-keyed logging.
//
// Every subsystem gets a named child logger off a single zap core; there is
// no second ad hoc log format living alongside it. Verbosity is controlled
// by LCOD_LOG_LEVEL (trace|debug|info|warn|error|fatal); zap has no native
// trace level so trace is mapped onto Debug with a `trace: true` field.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	root   *zap.Logger
	atom   zap.AtomicLevel
	traceM bool
)

func init() {
	atom = zap.NewAtomicLevel()
	atom.SetLevel(levelFromEnv())
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		atom,
	)
	root = zap.New(core)
}

func levelFromEnv() zapcore.Level {
	switch strings.ToLower(os.Getenv("LCOD_LOG_LEVEL")) {
	case "trace":
		traceM = true
		return zapcore.DebugLevel
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	case "info", "":
		return zapcore.InfoLevel
	default:
		return zapcore.InfoLevel
	}
}

// Named returns a logger scoped to the given subsystem name, e.g.
// logging.Named("compose") or logging.Named("registry").
func Named(name string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	l := root.Named(name).Sugar()
	if traceM {
		l = l.With("trace", true)
	}
	return l
}

// SetLevel overrides the configured level at runtime (tests, CLI --verbose).
func SetLevel(level zapcore.Level) {
	atom.SetLevel(level)
}

// Sync flushes the underlying zap core; call on process exit.
func Sync() {
	_ = root.Sync()
}
