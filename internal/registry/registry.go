// Package registry implements the kernel's contract registry and execution
// Context: a guarded-map dispatch table (RWMutex, typed NotFound/Conflict
// errors) binding contract URIs to concrete implementations.
package registry

import (
	"fmt"
	"sync"

	"lcod/internal/logging"
	"lcod/internal/value"
)

var log = logging.Named("registry")

// HandlerFunc implements one component URI. It receives the live Context so
// it can call other components, run slots, or register stream handles.
type HandlerFunc func(ctx *Context, input value.Value, meta value.Value) (value.Value, error)

// Metadata is optional introspection data attached alongside a handler.
type Metadata struct {
	Inputs  []string
	Outputs []string
	Slots   []string
}

type registration struct {
	handler HandlerFunc
	meta    *Metadata
}

// Registry is the shared, long-lived URI→implementation table plus the base
// contract→implementation binding table. A single Registry can
// back many concurrent Contexts; all of its methods are safe for concurrent
// use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]*registration
	bindings map[string]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		handlers: make(map[string]*registration),
		bindings: make(map[string]string),
	}
}

// Register binds uri to handler. Re-registering the same uri is always a
// Conflict — this registry rejects duplicate registration outright, matching the
// teacher's tools.Registry behavior (fail fast on accidental double-wiring)
// rather than the silently-overwriting policy of some reference runtimes.
func (r *Registry) Register(uri string, h HandlerFunc) error {
	return r.RegisterWithMetadata(uri, h, nil)
}

// RegisterWithMetadata registers h under uri and attaches introspection
// metadata. The metadata never influences dispatch; it exists purely for
// introspection through Registry.Metadata to describe a component's shape.
func (r *Registry) RegisterWithMetadata(uri string, h HandlerFunc, meta *Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[uri]; exists {
		return fmt.Errorf("%w: %s already registered", ErrConflict, uri)
	}
	r.handlers[uri] = &registration{handler: h, meta: meta}
	log.Debugw("registered component", "uri", uri)
	return nil
}

// MustRegister panics on registration failure. Reserved for bootstrap code
// paths (cmd/lcod wiring built-in axioms) where a conflict indicates a
// programming error, never a runtime condition.
func (r *Registry) MustRegister(uri string, h HandlerFunc) {
	if err := r.Register(uri, h); err != nil {
		panic(err)
	}
}

// SetBinding sets a base-table contract→implementation binding. It is
// shadowed by any Context's active registry-scope frames.
func (r *Registry) SetBinding(contractURI, implURI string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[contractURI] = implURI
}

// baseBinding returns the registry-wide binding for contractURI, if any.
func (r *Registry) baseBinding(contractURI string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	impl, ok := r.bindings[contractURI]
	return impl, ok
}

func (r *Registry) lookup(uri string) (*registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.handlers[uri]
	return reg, ok
}

// Metadata returns the registered metadata for uri, if any was attached.
func (r *Registry) Metadata(uri string) (*Metadata, bool) {
	reg, ok := r.lookup(uri)
	if !ok || reg.meta == nil {
		return nil, false
	}
	return reg.meta, true
}

// Has reports whether uri is registered directly (ignoring bindings).
func (r *Registry) Has(uri string) bool {
	_, ok := r.lookup(uri)
	return ok
}

// Call resolves uri — following exactly one level of contract→implementation
// binding via ctx's active scope frames, falling back to the registry's base
// table — then invokes the resolved handler. A call that targets an
// implementation URI with no binding entry is dispatched as-is.
func (r *Registry) Call(ctx *Context, uri string, input, meta value.Value) (value.Value, error) {
	target := uri
	if impl, ok := ctx.BindingFor(uri); ok {
		target = impl
	} else if impl, ok := r.baseBinding(uri); ok {
		target = impl
	}

	reg, ok := r.lookup(target)
	if !ok {
		return nil, &ErrNotFound{Kind: "component", URI: target}
	}
	return reg.handler(ctx, input, meta)
}
