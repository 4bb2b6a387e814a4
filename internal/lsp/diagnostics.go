// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsp

import (
	"context"

	"github.com/EricCrosson/nil/internal/analysis"
	"github.com/EricCrosson/nil/internal/protocol"
	"github.com/EricCrosson/nil/internal/vfs"
)

// scheduleDiagnostics stamps the current version and hands diagnostics
// computation for uri to the worker pool. The computation runs against an
// isolated Host snapshot, so it never blocks (or is blocked by) the event
// loop's own vfs/host access.
func (s *Server) scheduleDiagnostics(ctx context.Context, uri protocol.DocumentURI, id vfs.FileId) {
	if s.config != nil && s.config.Current().ExcludesDiagnostics(string(uri)) {
		s.publishEmptyDiagnostics(ctx, uri)
		return
	}

	version := s.nextVersion()
	s.openedMu.Lock()
	if file, ok := s.opened[uri]; ok {
		file.diagnosticsVersion = version
	}
	s.openedMu.Unlock()

	snapshot := s.host.Snapshot()
	s.submit(func() Event {
		diags, err := diagnose(snapshot, id)
		return diagnosticsReadyEvent{uri: uri, version: version, diagnostics: diags, err: err}
	})
}

// diagnose is the seam a real analyzer plugs into; this core only owns
// staleness arbitration and delivery, not the diagnostics themselves
// (non-goal: parsing/analysis internals). It fails closed to "no
// diagnostics" for a file the snapshot has no content for.
func diagnose(snapshot analysis.Snapshot, id vfs.FileId) ([]protocol.Diagnostic, error) {
	if err := snapshot.Cancelled(); err != nil {
		return nil, err
	}
	if _, ok := snapshot.Content(id); !ok {
		return nil, nil
	}
	return nil, nil
}

// handleDiagnosticsReady arbitrates staleness: a computation whose version
// is older than the most recently scheduled one for this file is dropped
// rather than published, since a newer edit has already superseded it
// (spec §4.6, the scheduler's core invariant).
func (s *Server) handleDiagnosticsReady(ctx context.Context, ev diagnosticsReadyEvent) {
	if ev.err != nil {
		s.log.Debug().Err(ev.err).Str("uri", string(ev.uri)).Msg("diagnostics computation failed")
		return
	}

	s.openedMu.Lock()
	file, ok := s.opened[ev.uri]
	stale := ok && ev.version < file.diagnosticsVersion
	s.openedMu.Unlock()

	if !ok || stale {
		return
	}

	sendNotification(s, ctx, "textDocument/publishDiagnostics", &protocol.PublishDiagnosticsParams{
		URI:         ev.uri,
		Diagnostics: ev.diagnostics,
	})
}

func (s *Server) publishEmptyDiagnostics(ctx context.Context, uri protocol.DocumentURI) {
	sendNotification(s, ctx, "textDocument/publishDiagnostics", &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
}
