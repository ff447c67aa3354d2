package registry

import (
	"sync/atomic"

	"github.com/google/uuid"

	"lcod/internal/kstream"
	"lcod/internal/value"
)

// SlotExecutor runs one named slot against the caller-supplied local state
// and slot variables. The compose interpreter
// pushes one of these before invoking each step's component and pops it
// on the way out — LIFO.
type SlotExecutor interface {
	RunSlot(ctx *Context, name string, localState, slotVars value.Value) (value.Value, error)
}

// SlotExecutorFunc adapts a function to SlotExecutor.
type SlotExecutorFunc func(ctx *Context, name string, localState, slotVars value.Value) (value.Value, error)

func (f SlotExecutorFunc) RunSlot(ctx *Context, name string, localState, slotVars value.Value) (value.Value, error) {
	return f(ctx, name, localState, slotVars)
}

// Context is the single mutable execution handle threaded through every
// component call. It carries cancellation, the active
// registry-scope binding frames, the slot-executor stack, the stream
// manager, and the log-tag stack. A Context is never shared across
// concurrent executions; each top-level run allocates its own.
type Context struct {
	registry *Registry
	Streams  *kstream.Manager
	runID    string

	cancelled atomic.Bool

	scopeDepth int

	bindingFrames []map[string]string
	slotStack     []SlotExecutor
	logTagStack   []map[string]value.Value

	rawInput value.Value
}

// NewContext creates a fresh execution context backed by reg, with its own
// stream manager.
func NewContext(reg *Registry) *Context {
	runID := uuid.NewString()
	return &Context{
		registry: reg,
		Streams:  kstream.NewWithPrefix(runID[:8]),
		runID:    runID,
	}
}

// Registry returns the backing registry, so handlers can make nested calls.
func (c *Context) Registry() *Registry { return c.registry }

// RunID identifies this Context uniquely, generated once at NewContext and
// threaded into kernel log entries and stream handle ID prefixes so output
// from concurrent runs can be told apart when aggregated.
func (c *Context) RunID() string { return c.runID }

// Call is a convenience forward to c.registry.Call(c, ...).
func (c *Context) Call(uri string, input, meta value.Value) (value.Value, error) {
	if err := c.EnsureNotCancelled(); err != nil {
		return nil, err
	}
	return c.registry.Call(c, uri, input, meta)
}

// --- Cancellation ---

// Cancel marks the context cancelled. Safe to call concurrently and more
// than once.
func (c *Context) Cancel() { c.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (c *Context) Cancelled() bool { return c.cancelled.Load() }

// EnsureNotCancelled returns ErrCancelled once Cancel has been observed.
// Every step boundary and loop iteration calls this before doing work.
func (c *Context) EnsureNotCancelled() error {
	if c.cancelled.Load() {
		return ErrCancelled
	}
	return nil
}

// --- Scope depth (diagnostic nesting counter) ---

// PushScope increments the nesting counter, returning the new depth. Used by
// the interpreter purely for log indentation / recursion-guard diagnostics,
// never for correctness.
func (c *Context) PushScope() int {
	c.scopeDepth++
	return c.scopeDepth
}

// PopScope decrements the nesting counter.
func (c *Context) PopScope() {
	if c.scopeDepth > 0 {
		c.scopeDepth--
	}
}

// ScopeDepth reports the current nesting depth.
func (c *Context) ScopeDepth() int { return c.scopeDepth }

// --- Registry-scope binding frames ---

// EnterRegistryScope pushes a new binding frame that shadows the registry's
// base table and any enclosing frames for the lifetime of the scope. The
// caller MUST pair this with LeaveRegistryScope, including on the error
// path — internal/tooling/registryscope.go defers the LeaveRegistryScope.
func (c *Context) EnterRegistryScope(bindings map[string]string) {
	frame := make(map[string]string, len(bindings))
	for k, v := range bindings {
		frame[k] = v
	}
	c.bindingFrames = append(c.bindingFrames, frame)
}

// LeaveRegistryScope pops the innermost binding frame. Calling it with no
// active frame is a no-op — defensive against mismatched defers during
// panics, never relied upon for correct nesting.
func (c *Context) LeaveRegistryScope() {
	if len(c.bindingFrames) == 0 {
		return
	}
	c.bindingFrames = c.bindingFrames[:len(c.bindingFrames)-1]
}

// BindingFor walks the frame stack top-to-bottom looking for contractURI,
// returning the first match. It does not consult the registry's base table
// — Registry.Call does that itself as the final fallback.
func (c *Context) BindingFor(contractURI string) (string, bool) {
	for i := len(c.bindingFrames) - 1; i >= 0; i-- {
		if impl, ok := c.bindingFrames[i][contractURI]; ok {
			return impl, true
		}
	}
	return "", false
}

// --- Slot-executor stack ---

// PushSlotExecutor installs exec as the handler for runSlot calls made while
// it's on top of the stack.
func (c *Context) PushSlotExecutor(exec SlotExecutor) {
	c.slotStack = append(c.slotStack, exec)
}

// PopSlotExecutor removes the top-of-stack executor.
func (c *Context) PopSlotExecutor() {
	if len(c.slotStack) == 0 {
		return
	}
	c.slotStack = c.slotStack[:len(c.slotStack)-1]
}

// RunSlot dispatches to the executor on top of the slot stack. With no
// executor installed it returns ErrNoSlotExecutor.
func (c *Context) RunSlot(name string, localState, slotVars value.Value) (value.Value, error) {
	if err := c.EnsureNotCancelled(); err != nil {
		return nil, err
	}
	if len(c.slotStack) == 0 {
		return nil, ErrNoSlotExecutor
	}
	exec := c.slotStack[len(c.slotStack)-1]
	return exec.RunSlot(c, name, localState, slotVars)
}

// --- Log-tag stack ---

// PushLogTags merges tags onto the top of the log-tag stack for the
// duration of the enclosing scope (tooling/log.context).
func (c *Context) PushLogTags(tags map[string]value.Value) {
	frame := make(map[string]value.Value, len(tags))
	for k, v := range tags {
		frame[k] = v
	}
	c.logTagStack = append(c.logTagStack, frame)
}

// PopLogTags removes the innermost tag frame.
func (c *Context) PopLogTags() {
	if len(c.logTagStack) == 0 {
		return
	}
	c.logTagStack = c.logTagStack[:len(c.logTagStack)-1]
}

// LogTags flattens the tag stack bottom-to-top so inner frames override
// outer ones with the same key, for attaching to a structured log line.
func (c *Context) LogTags() map[string]value.Value {
	if len(c.logTagStack) == 0 {
		return nil
	}
	out := make(map[string]value.Value)
	for _, frame := range c.logTagStack {
		for k, v := range frame {
			out[k] = v
		}
	}
	return out
}

// --- Raw input snapshot ---

// SetRawInput records the top-level compose invocation's original input, so
// nested components can recover it via `lcod://axiom/state/raw_input@1`.
func (c *Context) SetRawInput(v value.Value) { c.rawInput = v }

// RawInput returns the snapshot set by SetRawInput.
func (c *Context) RawInput() value.Value { return c.rawInput }

// Close releases resources owned by this context (its stream manager). A
// Context is not reusable afterward.
func (c *Context) Close() {
	c.Streams.CloseAll()
}
