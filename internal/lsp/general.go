// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lsp

import (
	"context"
	"net/url"

	"github.com/EricCrosson/nil/internal/config"
	"github.com/EricCrosson/nil/internal/protocol"
)

// initialize handles the "initialize" request: it derives the workspace
// root, installs the configuration store, and advertises capabilities.
// It runs on a worker goroutine (see handleInitialize) but touches no
// shared state beyond what the event loop has not yet published, since
// s.config is only read by other handlers after "initialized" fires.
func (s *Server) initialize(params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	if s.getState() != stateCreated {
		return nil, protocol.NewError(protocol.CodeInvalidRequest, "server already initialized")
	}
	s.setState(stateInitializing)

	rootPath, err := rootPathFromParams(params)
	if err != nil {
		return nil, err
	}
	s.config = config.NewStore(config.Default(rootPath))

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: 2, // incremental
		},
	}, nil
}

// rootPathFromParams derives a filesystem root from InitializeParams,
// preferring the first workspace folder and falling back to rootUri, the
// same precedence nil's UrlExt::to_file_path-based root derivation uses.
func rootPathFromParams(params *protocol.InitializeParams) (string, error) {
	if len(params.WorkspaceFolders) > 0 {
		return filePathFromURI(string(params.WorkspaceFolders[0].URI))
	}
	if params.RootURI != nil {
		return filePathFromURI(string(*params.RootURI))
	}
	return "", protocol.NewError(protocol.CodeInvalidParams, "initialize requires rootUri or workspaceFolders")
}

func filePathFromURI(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", protocol.NewError(protocol.CodeInvalidParams, "invalid root URI %q: %s", uri, err)
	}
	if parsed.Scheme != "file" {
		return "", protocol.NewError(protocol.CodeInvalidParams, "unsupported root URI scheme %q", parsed.Scheme)
	}
	return parsed.Path, nil
}

// loadConfiguration fetches the client's current settings for this
// server's configuration section and applies them, mirroring nil's
// load_config (spec §4.3).
func (s *Server) loadConfiguration(ctx context.Context) {
	params := &protocol.ConfigurationParams{
		Items: []protocol.ConfigurationItem{{Section: config.ConfigSection}},
	}
	sendRequest[[]interface{}](s, ctx, "workspace/configuration", params, func(s *Server, result []interface{}, err error) {
		if err != nil {
			s.log.Warn().Err(err).Msg("workspace/configuration request failed")
			return
		}
		var settings map[string]interface{}
		if len(result) > 0 {
			settings, _ = result[0].(map[string]interface{})
		}
		s.applyConfigurationUpdate(ctx, settings)
	})
}

// applyConfigurationUpdate merges raw into the shared configuration and,
// if the update affects already-published diagnostics, recomputes them
// for every open document (spec §4.3, §4.6).
func (s *Server) applyConfigurationUpdate(ctx context.Context, raw map[string]interface{}) {
	if s.config == nil {
		return
	}
	validationErrs, diagnosticsAffecting := s.config.Update(raw)
	for _, msg := range validationErrs {
		_ = sendShowMessage(s, ctx, protocol.Warning, msg)
	}
	if !diagnosticsAffecting {
		return
	}
	s.openedMu.Lock()
	uris := make([]protocol.DocumentURI, 0, len(s.opened))
	for uri := range s.opened {
		uris = append(uris, uri)
	}
	s.openedMu.Unlock()

	for _, uri := range uris {
		if id, err := s.vfsStore.FileForURI(uri); err == nil {
			s.scheduleDiagnostics(ctx, uri, id)
		}
	}
}

func sendShowMessage(s *Server, ctx context.Context, typ protocol.MessageType, message string) error {
	sendNotification(s, ctx, "window/showMessage", &protocol.ShowMessageParams{Type: typ, Message: message})
	return nil
}
