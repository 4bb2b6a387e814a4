package lsp

import (
	"context"
	"encoding/json"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/EricCrosson/nil/internal/protocol"
)

// clientProxy implements protocol.Client by issuing requests/notifications
// over a jsonrpc2.Conn. It is the thin "outgoing half" of the transport;
// everything it sends is fire-and-forget from the caller's perspective
// except Configuration, which blocks until the client replies. The server
// core itself sends notifications through sendNotification and issues
// workspace/configuration through sendRequest, not through this type.
type clientProxy struct {
	conn *jsonrpc2.Conn
}

// NewClient wraps conn as a protocol.Client.
func NewClient(conn *jsonrpc2.Conn) protocol.Client {
	return &clientProxy{conn: conn}
}

func (c *clientProxy) ShowMessage(ctx context.Context, params *protocol.ShowMessageParams) error {
	return c.conn.Notify(ctx, "window/showMessage", params)
}

func (c *clientProxy) PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams) error {
	return c.conn.Notify(ctx, "textDocument/publishDiagnostics", params)
}

func (c *clientProxy) Configuration(ctx context.Context, params *protocol.ConfigurationParams) ([]json.RawMessage, error) {
	var result []json.RawMessage
	if err := c.conn.Call(ctx, "workspace/configuration", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}
