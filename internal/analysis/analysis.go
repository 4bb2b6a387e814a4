// Package analysis defines the narrow capability the core server loop
// requires of the language frontend: apply a change set, produce a cheap
// snapshot, and let a snapshot report whether it has gone stale. The real
// parser/resolver/type-inferencer is out of scope (spec §1); this package
// is the seam between the core and that external collaborator.
package analysis

import (
	"sync"

	"github.com/EricCrosson/nil/internal/vfs"
)

// Snapshot is an immutable, cheap-to-clone view of analysis state at a
// given commit. Workers hold a Snapshot for the lifetime of one request and
// must never observe writes committed after the Snapshot was produced
// (spec §3).
type Snapshot interface {
	// Cancelled reports whether the analysis layer has observed that the
	// request this snapshot belongs to should stop. The diagnostics
	// scheduler drops a computation whose snapshot reports a non-nil error.
	// The dispatcher has no dedicated mapping for this error: a request
	// handler that returns it gets an InternalError response, not a
	// server-cancelled one.
	Cancelled() error

	// Content returns the text of file at the version this snapshot was
	// taken, falling back to the live VFS content when the frontend has
	// not (yet) ingested that file. Used by handlers that only need raw
	// text rather than a parsed tree.
	Content(id vfs.FileId) (string, bool)
}

// Host swallows change sets and mints Snapshots. It is the Go analogue of
// nil's AnalysisHost, generalized behind an interface per spec §6 so the
// core never depends on a concrete evaluator.
type Host interface {
	ApplyChange(vfs.ChangeSet)
	Snapshot() Snapshot
}

// memHost is a minimal, real (not mocked) implementation sufficient to run
// the event loop, dispatcher, and diagnostics scheduler end-to-end without
// a real attribute-set evaluator wired in. It keeps the latest content per
// FileId and hands out copy-on-write snapshots, matching the "persistent /
// MVCC" guidance of spec §9: apply_change never invalidates a live
// snapshot because each snapshot owns its own map.
type memHost struct {
	mu      sync.Mutex
	content map[vfs.FileId]string
}

// NewMemHost returns the default in-process Host implementation.
func NewMemHost() Host {
	return &memHost{content: make(map[vfs.FileId]string)}
}

func (h *memHost) ApplyChange(cs vfs.ChangeSet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range cs.Changes {
		h.content[c.File] = c.Content
	}
}

func (h *memHost) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	clone := make(map[vfs.FileId]string, len(h.content))
	for k, v := range h.content {
		clone[k] = v
	}
	return &memSnapshot{content: clone}
}

type memSnapshot struct {
	content map[vfs.FileId]string
}

func (s *memSnapshot) Cancelled() error { return nil }

func (s *memSnapshot) Content(id vfs.FileId) (string, bool) {
	c, ok := s.content[id]
	return c, ok
}
