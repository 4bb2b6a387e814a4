// Package reqqueue tracks in-flight requests in both directions: inbound
// requests the client may cancel, and outbound requests the server itself
// issued and is waiting to resume a callback for once a response arrives
// (spec §3, §4.5).
package reqqueue

import (
	"sync"

	"github.com/sourcegraph/jsonrpc2"
)

// Incoming tracks inbound request IDs the event loop has dispatched but not
// yet replied to, so a "$/cancelRequest" notification can find them.
type Incoming struct {
	mu  sync.Mutex
	ids map[jsonrpc2.ID]struct{}
}

func NewIncoming() *Incoming {
	return &Incoming{ids: make(map[jsonrpc2.ID]struct{})}
}

// Register records id as in-flight.
func (q *Incoming) Register(id jsonrpc2.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids[id] = struct{}{}
}

// Complete reports whether id was in-flight and, if so, removes it. It is
// used both by normal response delivery and by cancellation: whichever one
// observes the ID first wins, and the other silently drops its result
// (spec invariant: exactly one response is sent per in-flight id).
func (q *Incoming) Complete(id jsonrpc2.ID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.ids[id]; !ok {
		return false
	}
	delete(q.ids, id)
	return true
}

// Cancel is Complete under the name the dispatcher's cancel-notification
// handler reads more naturally; it is the same map, the same semantics.
func (q *Incoming) Cancel(id jsonrpc2.ID) bool {
	return q.Complete(id)
}

// Outgoing tracks requests the server itself sent to the client
// (workspace/configuration, …) and the one-shot callback to resume with,
// on the event-loop goroutine, once a result is ready. It is keyed by a
// correlation id the caller mints itself (see lsp.nextCorrID), since the
// wire-level request/response pairing for calls this server originates is
// already handled internally by the jsonrpc2 transport's Call method; this
// queue exists only to carry the "resume on the event loop" obligation
// spec invariant 5 requires.
type Outgoing struct {
	mu        sync.Mutex
	callbacks map[uint64]func(result interface{}, err error)
}

func NewOutgoing() *Outgoing {
	return &Outgoing{callbacks: make(map[uint64]func(result interface{}, err error))}
}

// Register stores cb, keyed by id, to be invoked exactly once with the
// call's result (or error).
func (q *Outgoing) Register(id uint64, cb func(result interface{}, err error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.callbacks[id] = cb
}

// Complete removes and returns the callback registered for id, if any.
func (q *Outgoing) Complete(id uint64) (func(result interface{}, err error), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cb, ok := q.callbacks[id]
	if ok {
		delete(q.callbacks, id)
	}
	return cb, ok
}
