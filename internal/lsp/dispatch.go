package lsp

import (
	"context"
	"encoding/json"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/EricCrosson/nil/internal/protocol"
)

// requestRoutes and notificationRoutes are the dispatch tables: declarative
// data mapping an LSP method name to the function that handles it, rather
// than a long method-per-RPC switch. Adding a method means adding a table
// entry, not touching Handle itself (spec §9, "dispatcher as data").
type requestHandler func(s *Server, ctx context.Context, id jsonrpc2.ID, raw *json.RawMessage)
type notificationHandler func(s *Server, ctx context.Context, raw *json.RawMessage)

var requestRoutes = map[string]requestHandler{
	"initialize": handleInitialize,
	"shutdown":   handleShutdown,
}

var notificationRoutes = map[string]notificationHandler{
	"initialized":                      handleInitialized,
	"exit":                             handleExit,
	"$/cancelRequest":                  handleCancelRequest,
	"textDocument/didOpen":             handleDidOpen,
	"textDocument/didChange":           handleDidChange,
	"textDocument/didClose":            handleDidClose,
	"workspace/didChangeConfiguration": handleDidChangeConfiguration,
	"workspace/didChangeWatchedFiles":  handleDidChangeWatchedFiles,
}

// Handle implements jsonrpc2.Handler. It is the sole entry point by which
// messages from the client reach the server: requests are registered in
// the incoming queue and routed to a handler, notifications are routed
// directly. Handlers that do real work submit a task to the worker pool
// and return; the loop resumes via the resulting Event.
func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	s.bindOnce.Do(func() {
		s.conn = conn
		s.client = NewClient(conn)
	})

	if req.Notif {
		handler, ok := notificationRoutes[req.Method]
		if !ok {
			s.log.Debug().Str("method", req.Method).Msg("unhandled notification")
			return
		}
		handler(s, ctx, req.Params)
		return
	}

	if s.getState() == stateShuttingDown && req.Method != "shutdown" {
		s.conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
			Code:    int64(protocol.CodeInvalidRequest),
			Message: "server is shutting down",
		})
		return
	}

	s.incoming.Register(req.ID)
	handler, ok := requestRoutes[req.Method]
	if !ok {
		s.reply(ctx, req.ID, nil, protocol.NewError(protocol.CodeMethodNotFound, "method not found: %s", req.Method))
		return
	}
	handler(s, ctx, req.ID, req.Params)
}

func decodeParams[T any](raw *json.RawMessage) (*T, error) {
	var params T
	if raw == nil {
		return &params, nil
	}
	if err := json.Unmarshal(*raw, &params); err != nil {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "invalid params: %s", err)
	}
	return &params, nil
}

func handleInitialize(s *Server, ctx context.Context, id jsonrpc2.ID, raw *json.RawMessage) {
	params, err := decodeParams[protocol.InitializeParams](raw)
	if err != nil {
		s.reply(ctx, id, nil, err)
		return
	}
	s.submit(guardRequest(id, func() (interface{}, error) {
		return s.initialize(params)
	}))
}

func handleShutdown(s *Server, ctx context.Context, id jsonrpc2.ID, raw *json.RawMessage) {
	s.setState(stateShuttingDown)
	s.reply(ctx, id, nil, nil)
}

func handleInitialized(s *Server, ctx context.Context, raw *json.RawMessage) {
	s.setState(stateInitialized)
	s.loadFlake(ctx)
	s.loadConfiguration(ctx)
}

func handleExit(s *Server, ctx context.Context, raw *json.RawMessage) {
	s.pendingExit = true
	s.events <- loopTickEvent{}
}

// handleCancelRequest synthesizes and sends the cancellation response
// itself: Cancel only wins the race against a handler that is already
// replying, so the response must go out here, not be left for a handler
// that may never produce one (spec §4.2, §8 scenario 2 — exactly one
// response per in-flight id, carrying CodeServerCancelled).
func handleCancelRequest(s *Server, ctx context.Context, raw *json.RawMessage) {
	params, err := decodeParams[protocol.CancelParams](raw)
	if err != nil {
		return
	}
	if s.incoming.Cancel(params.ID) {
		s.conn.ReplyWithError(ctx, params.ID, &jsonrpc2.Error{
			Code:    int64(protocol.CodeServerCancelled),
			Message: "request cancelled",
		})
	}
}

func handleDidOpen(s *Server, ctx context.Context, raw *json.RawMessage) {
	params, err := decodeParams[protocol.DidOpenTextDocumentParams](raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("didOpen: invalid params")
		return
	}
	doc := params.TextDocument
	id := s.vfsStore.SetURIContent(doc.URI, doc.Text)

	s.openedMu.Lock()
	s.opened[doc.URI] = &openedFile{}
	s.openedMu.Unlock()

	s.applyPendingChange(ctx)
	s.scheduleDiagnostics(ctx, doc.URI, id)
}

func handleDidChange(s *Server, ctx context.Context, raw *json.RawMessage) {
	params, err := decodeParams[protocol.DidChangeTextDocumentParams](raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("didChange: invalid params")
		return
	}
	uri := params.TextDocument.URI
	id, err := s.vfsStore.FileForURI(uri)
	if err != nil {
		s.log.Warn().Str("uri", string(uri)).Msg("didChange for unknown document")
		return
	}
	for _, change := range params.ContentChanges {
		if change.Range == nil {
			if applyErr := s.vfsStore.ChangeFileContent(id, nil, change.Text); applyErr != nil {
				s.log.Warn().Err(applyErr).Msg("didChange: failed to apply full-document change")
			}
			continue
		}
		byteRange, rangeErr := s.vfsStore.ByteRange(id, *change.Range)
		if rangeErr != nil {
			s.log.Warn().Err(rangeErr).Msg("didChange: range out of bounds")
			continue
		}
		if applyErr := s.vfsStore.ChangeFileContent(id, byteRange, change.Text); applyErr != nil {
			s.log.Warn().Err(applyErr).Msg("didChange: failed to apply incremental change")
		}
	}
	s.applyPendingChange(ctx)
	s.scheduleDiagnostics(ctx, uri, id)
}

func handleDidClose(s *Server, ctx context.Context, raw *json.RawMessage) {
	params, err := decodeParams[protocol.DidCloseTextDocumentParams](raw)
	if err != nil {
		return
	}
	s.openedMu.Lock()
	delete(s.opened, params.TextDocument.URI)
	s.openedMu.Unlock()
}

func handleDidChangeConfiguration(s *Server, ctx context.Context, raw *json.RawMessage) {
	params, err := decodeParams[protocol.DidChangeConfigurationParams](raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("didChangeConfiguration: invalid params")
		return
	}
	var settings map[string]interface{}
	if len(params.Settings) > 0 {
		if unmarshalErr := json.Unmarshal(params.Settings, &settings); unmarshalErr != nil {
			s.log.Warn().Err(unmarshalErr).Msg("didChangeConfiguration: settings is not an object")
			return
		}
	}
	s.applyConfigurationUpdate(ctx, settings)
}

// handleDidChangeWatchedFiles is a no-op at the core level: watched-file
// reload is not part of the server loop's contract (spec §4.2).
func handleDidChangeWatchedFiles(s *Server, ctx context.Context, raw *json.RawMessage) {}

// applyPendingChange drains the vfs's pending change set into the analysis
// host, keeping the two in lockstep without ever holding both the vfs lock
// and the host lock at once (spec invariant).
func (s *Server) applyPendingChange(ctx context.Context) {
	changes := s.vfsStore.TakeChange()
	if len(changes.Changes) == 0 {
		return
	}
	s.host.ApplyChange(changes)
}

// loopTickEvent carries no payload; it exists only to wake the select loop
// so it re-evaluates shutdown/exit state after a notification handler that
// isn't itself Event-bearing (exit) has mutated that state.
type loopTickEvent struct{}

func (loopTickEvent) isEvent() {}
