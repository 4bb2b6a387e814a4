package lsp

import (
	"runtime/debug"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/EricCrosson/nil/internal/protocol"
)

// guardRequest wraps a request handler body so a panic becomes a failed
// response instead of taking down the worker goroutine that runs it. It
// is the Go analogue of nil's catch_unwind-based harness: Go has no
// thread-locals, so there is no separate "panic location" side channel to
// thread through the way the original needed — the recovering goroutine
// is always exactly the one that panicked, and its stack trace is
// captured directly from runtime/debug.
func guardRequest(id jsonrpc2.ID, fn func() (interface{}, error)) func() Event {
	return func() (ev Event) {
		defer func() {
			if r := recover(); r != nil {
				ev = requestResultEvent{
					id:  id,
					err: protocol.NewError(protocol.CodeInternalError, "panic in request handler: %v\nLocation: %s", r, debug.Stack()),
				}
			}
		}()
		result, err := fn()
		return requestResultEvent{id: id, result: result, err: err}
	}
}

// guardTask wraps a non-reply-bearing task (notification handling,
// outgoing calls, diagnostics computation) the same way, for callers that
// already know how to turn a panic into an appropriate Event themselves.
// The task constructors in this package do not use it; see
// workerPool.runTask for what happens to their panics.
func guardTask(task func() Event, onPanic func(r interface{}, stack []byte) Event) func() Event {
	return func() (ev Event) {
		defer func() {
			if r := recover(); r != nil {
				ev = onPanic(r, debug.Stack())
			}
		}()
		return task()
	}
}
