package reqqueue_test

import (
	"testing"

	"github.com/EricCrosson/nil/internal/lsp/reqqueue"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/require"
)

func TestIncomingCompleteIsOneShot(t *testing.T) {
	q := reqqueue.NewIncoming()
	id := jsonrpc2.ID{Num: 7}
	q.Register(id)

	require.True(t, q.Complete(id))
	require.False(t, q.Complete(id), "a second completion of the same id must report false")
}

func TestIncomingCancelRacesCompletion(t *testing.T) {
	q := reqqueue.NewIncoming()
	id := jsonrpc2.ID{Num: 7}
	q.Register(id)

	// Client cancels first: the cancel wins, and the worker's eventual
	// Complete call (its response arriving) must then observe false.
	require.True(t, q.Cancel(id))
	require.False(t, q.Complete(id))
}

func TestOutgoingCallbackInvokedOnce(t *testing.T) {
	q := reqqueue.NewOutgoing()
	var gotResult interface{}
	var gotErr error
	calls := 0
	q.Register(1, func(result interface{}, err error) {
		calls++
		gotResult, gotErr = result, err
	})

	cb, ok := q.Complete(1)
	require.True(t, ok)
	cb("hello", nil)
	require.Equal(t, 1, calls)
	require.Equal(t, "hello", gotResult)
	require.NoError(t, gotErr)

	_, ok = q.Complete(1)
	require.False(t, ok)
}

func TestOutgoingUnknownIDIsNoOp(t *testing.T) {
	q := reqqueue.NewOutgoing()
	_, ok := q.Complete(42)
	require.False(t, ok)
}
