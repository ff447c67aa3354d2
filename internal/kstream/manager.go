// Package kstream implements the kernel's stream manager: opaque
// chunked byte-stream handles with partial reads, carry-over residuals, and
// encoding selection, backed by a mutex-guarded map.
package kstream

import (
	"encoding/base64"
	"fmt"
	"sync"
	"unicode/utf8"

	"lcod/internal/logging"
)

var log = logging.Named("kstream")

// Handle is the opaque wire value identifying a registered stream: {"id": "stream-N", "encoding": "..."}.
type Handle struct {
	ID       string `json:"id"`
	Encoding string `json:"encoding"`
}

type entry struct {
	handle   Handle
	encoding string
	chunks   [][]byte
	index    int
	pending  []byte
	done     bool
	seq      uint64
}

// Manager owns all stream entries for a single Context. It must never be
// shared across Contexts.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	counter uint64
	prefix  string
}

// New creates an empty stream manager whose handle IDs are bare "stream-N".
func New() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// NewWithPrefix creates an empty stream manager whose handle IDs are
// "stream-<prefix>-N", so handles from distinct Contexts never collide when
// logged or inspected together.
func NewWithPrefix(prefix string) *Manager {
	return &Manager{entries: make(map[string]*entry), prefix: prefix}
}

// RegisterChunks allocates a fresh stream handle and transfers ownership
// of chunks to the new entry.
func (m *Manager) RegisterChunks(chunks [][]byte, encoding string) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	var id string
	if m.prefix != "" {
		id = fmt.Sprintf("stream-%s-%d", m.prefix, m.counter)
	} else {
		id = fmt.Sprintf("stream-%d", m.counter)
	}
	h := Handle{ID: id, Encoding: encoding}
	m.entries[id] = &entry{
		handle:   h,
		encoding: encoding,
		chunks:   chunks,
	}
	log.Debugw("registered stream", "id", id, "encoding", encoding, "chunks", len(chunks))
	return h
}

// ReadResult is the value returned by Read.
type ReadResult struct {
	Done     bool   `json:"done"`
	Chunk    string `json:"chunk,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Bytes    int    `json:"bytes,omitempty"`
	Seq      uint64 `json:"seq,omitempty"`
	Stream   Handle `json:"stream"`
}

// ErrUnknownHandle is returned when a handle doesn't name a live entry.
type ErrUnknownHandle struct{ ID string }

func (e *ErrUnknownHandle) Error() string { return "unknown stream handle: " + e.ID }

// Read drains pending bytes, then pulls whole chunks until maxBytes is met
// or chunks are exhausted. Overflow past maxBytes is retained in pending,
// never discarded.
//
// maxBytes <= 0 means unbounded (read everything remaining).
func (m *Manager) Read(h Handle, maxBytes int, decode string) (ReadResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[h.ID]
	if !ok {
		return ReadResult{}, &ErrUnknownHandle{ID: h.ID}
	}

	if e.done && len(e.pending) == 0 {
		return ReadResult{Done: true, Stream: e.handle}, nil
	}

	buffer := e.pending
	e.pending = nil

	if maxBytes > 0 {
		for len(buffer) < maxBytes && e.index < len(e.chunks) {
			buffer = append(buffer, e.chunks[e.index]...)
			e.index++
		}
	} else {
		for e.index < len(e.chunks) {
			buffer = append(buffer, e.chunks[e.index]...)
			e.index++
		}
	}

	if e.index >= len(e.chunks) {
		e.done = true
	}

	if len(buffer) == 0 {
		return ReadResult{Done: true, Stream: e.handle}, nil
	}

	if maxBytes > 0 && len(buffer) > maxBytes {
		e.pending = append([]byte(nil), buffer[maxBytes:]...)
		buffer = buffer[:maxBytes]
	} else {
		e.pending = nil
	}

	encoding := decode
	if encoding == "" {
		encoding = e.encoding
	}
	encoded, normalized, err := encodeChunk(buffer, encoding)
	if err != nil {
		return ReadResult{}, err
	}

	seq := e.seq
	e.seq++

	return ReadResult{
		Done:     false,
		Chunk:    encoded,
		Encoding: normalized,
		Bytes:    len(buffer),
		Seq:      seq,
		Stream:   e.handle,
	}, nil
}

// ErrEncoding is returned when utf-8 decoding of non-UTF-8 bytes is
// requested.
type ErrEncoding struct{ Reason string }

func (e *ErrEncoding) Error() string { return "stream encoding error: " + e.Reason }

func encodeChunk(buffer []byte, encoding string) (string, string, error) {
	switch encoding {
	case "utf-8", "utf8":
		if !utf8.Valid(buffer) {
			return "", "", &ErrEncoding{Reason: "invalid utf-8 bytes"}
		}
		return string(buffer), "utf-8", nil
	case "base64":
		return base64.StdEncoding.EncodeToString(buffer), "base64", nil
	default:
		// Any encoding other than utf-8/base64 — including "hex" — falls
		// back to base64.
		return base64.StdEncoding.EncodeToString(buffer), "base64", nil
	}
}

// Close removes the entry, erroring on an unknown handle.
func (m *Manager) Close(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[h.ID]; !ok {
		return &ErrUnknownHandle{ID: h.ID}
	}
	delete(m.entries, h.ID)
	return nil
}

// CloseAll implicitly closes every owned handle; called when the owning
// Context is destroyed.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.entries {
		delete(m.entries, id)
	}
}

// Contains reports whether h names a live entry.
func (m *Manager) Contains(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[h.ID]
	return ok
}
