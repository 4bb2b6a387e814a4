package lsp

import (
	"testing"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/require"

	"github.com/EricCrosson/nil/internal/protocol"
)

func TestGuardRequestConvertsPanicToErrorResponse(t *testing.T) {
	id := jsonrpc2.ID{Num: 42}
	task := guardRequest(id, func() (interface{}, error) {
		panic("handler exploded")
	})

	ev := task()
	result, ok := ev.(requestResultEvent)
	require.True(t, ok)
	require.Equal(t, id, result.id)
	require.Error(t, result.err)

	var lspErr *protocol.LspError
	require.ErrorAs(t, result.err, &lspErr)
	require.Equal(t, protocol.CodeInternalError, lspErr.Code)
}

func TestGuardRequestPassesThroughNormalResult(t *testing.T) {
	id := jsonrpc2.ID{Num: 1}
	task := guardRequest(id, func() (interface{}, error) {
		return "ok", nil
	})

	ev := task()
	result := ev.(requestResultEvent)
	require.Equal(t, "ok", result.result)
	require.NoError(t, result.err)
}
