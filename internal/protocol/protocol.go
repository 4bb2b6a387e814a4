// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package protocol defines the subset of the Language Server Protocol wire
// types the core server loop actually speaks. Concrete feature handlers
// (goto, completion, hover, ...) are out of scope; their Params/Result
// types live here only to the extent the dispatcher needs to route and
// (de)serialize them.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
)

// DocumentURI is the URI of a text document, as sent over the wire.
type DocumentURI string

// ErrorCode mirrors the LSP-defined JSON-RPC error codes used by this core.
type ErrorCode int64

const (
	CodeParseError           ErrorCode = -32700
	CodeInvalidRequest       ErrorCode = -32600
	CodeMethodNotFound       ErrorCode = -32601
	CodeInvalidParams        ErrorCode = -32602
	CodeInternalError        ErrorCode = -32603
	CodeServerNotInitialized ErrorCode = -32002
	CodeRequestCancelled     ErrorCode = -32800
	CodeServerCancelled      ErrorCode = -32802
)

// LspError is a protocol-level error carrying a code a client can act on.
// It mirrors nil's LspError: its Display/Error text is shown verbatim in
// the editor, so it should never leak internal detail.
type LspError struct {
	Code    ErrorCode
	Message string
}

func (e *LspError) Error() string { return e.Message }

func NewError(code ErrorCode, format string, args ...interface{}) *LspError {
	return &LspError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// MessageType is the severity of a window/showMessage notification.
type MessageType float64

const (
	Error   MessageType = 1
	Warning MessageType = 2
	Info    MessageType = 3
	Log     MessageType = 4
)

type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	URI   DocumentURI `json:"uri"`
	Range Range       `json:"range"`
}

type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int32 `json:"version"`
}

type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int32       `json:"version"`
	Text       string      `json:"text"`
}

// WorkspaceFolder is a root folder offered at initialize time.
type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

type InitializeParams struct {
	ProcessID             *int32            `json:"processId,omitempty"`
	RootURI               *DocumentURI      `json:"rootUri,omitempty"`
	WorkspaceFolders       []WorkspaceFolder `json:"workspaceFolders,omitempty"`
	InitializationOptions  json.RawMessage   `json:"initializationOptions,omitempty"`
}

type ServerCapabilities struct {
	TextDocumentSync   int                 `json:"textDocumentSync"`
	HoverProvider      bool                `json:"hoverProvider,omitempty"`
	CompletionProvider *struct{}           `json:"completionProvider,omitempty"`
	DefinitionProvider bool                `json:"definitionProvider,omitempty"`
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

type InitializedParams struct{}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

type DidChangeConfigurationParams struct {
	Settings json.RawMessage `json:"settings"`
}

type FileEvent struct {
	URI  DocumentURI `json:"uri"`
	Type int         `json:"type"`
}

type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

// CancelParams is sent with method "$/cancelRequest".
type CancelParams struct {
	ID jsonrpc2.ID `json:"id"`
}

type Diagnostic struct {
	Range    Range       `json:"range"`
	Severity int         `json:"severity,omitempty"`
	Message  string      `json:"message"`
	Source   string      `json:"source,omitempty"`
}

type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type ConfigurationItem struct {
	ScopeURI *DocumentURI `json:"scopeUri,omitempty"`
	Section  string       `json:"section,omitempty"`
}

type ConfigurationParams struct {
	Items []ConfigurationItem `json:"items"`
}

// Client is the set of requests/notifications the core sends to the
// editor. Concrete feature replies travel through Reply on the inbound
// Conn directly; Client covers only what the core itself originates.
type Client interface {
	ShowMessage(ctx context.Context, params *ShowMessageParams) error
	PublishDiagnostics(ctx context.Context, params *PublishDiagnosticsParams) error
	Configuration(ctx context.Context, params *ConfigurationParams) ([]json.RawMessage, error)
}
