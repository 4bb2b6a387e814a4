package lsp

import (
	"context"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/EricCrosson/nil/internal/protocol"
)

// Event is the unit of work the event loop consumes from its events
// channel: either the outcome of a task the worker pool ran, or a
// loop-internal signal (flake load finished, parent process exited).
// Every Event is handled by dispatchEvent, on the loop goroutine; state it
// shares with Handle (such as the opened-document map) is still locked.
type Event interface{ isEvent() }

// requestResultEvent carries the outcome of a client-originated request
// that was handed to the worker pool: the handler ran to completion (or
// failed) off the loop goroutine, and this event resumes the loop to send
// the reply.
type requestResultEvent struct {
	id     jsonrpc2.ID
	result interface{}
	err    error
}

func (requestResultEvent) isEvent() {}

// outgoingResultEvent carries the outcome of a request this server sent to
// the client (e.g. workspace/configuration); dispatchEvent looks up and
// invokes the registered callback by id.
type outgoingResultEvent struct {
	id     uint64
	result interface{}
	err    error
}

func (outgoingResultEvent) isEvent() {}

// diagnosticsReadyEvent carries a completed diagnostics computation for a
// single file, stamped with the version the scheduler assigned to it
// (nextVersion) so it can be discarded if a newer computation for the same
// file has since been scheduled (spec §4.6).
type diagnosticsReadyEvent struct {
	uri         protocol.DocumentURI
	version     uint64
	diagnostics []protocol.Diagnostic
	err         error
}

func (diagnosticsReadyEvent) isEvent() {}

// flakeLoadedEvent carries the outcome of bootstrapping flake.nix/flake.lock
// (spec §4.5).
type flakeLoadedEvent struct {
	result flakeLoadResult
	err    error
}

func (flakeLoadedEvent) isEvent() {}

func (s *Server) dispatchEvent(ctx context.Context, ev Event) (shutdown bool) {
	switch ev := ev.(type) {
	case requestResultEvent:
		s.reply(ctx, ev.id, ev.result, ev.err)
	case outgoingResultEvent:
		if cb, ok := s.outgoing.Complete(ev.id); ok {
			cb(ev.result, ev.err)
		}
	case diagnosticsReadyEvent:
		s.handleDiagnosticsReady(ctx, ev)
	case flakeLoadedEvent:
		s.handleFlakeLoaded(ctx, ev)
	case loopTickEvent:
		// no-op: only here to make the loop re-check shutdown/exit state.
	default:
		s.log.Error().Interface("event", ev).Msg("unhandled event type")
	}
	return s.pendingExit
}
