package lsp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsSubmittedTasks(t *testing.T) {
	events := make(chan Event, 8)
	pool := newWorkerPool(2, events)
	defer pool.Close()

	pool.Submit(func() Event {
		return loopTickEvent{}
	})

	select {
	case ev := <-events:
		require.IsType(t, loopTickEvent{}, ev)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task result")
	}
}

func TestWorkerPoolRecoversFromUnguardedPanic(t *testing.T) {
	events := make(chan Event, 8)
	pool := newWorkerPool(1, events)
	defer pool.Close()

	pool.Submit(func() Event {
		panic("boom")
	})
	pool.Submit(func() Event {
		return loopTickEvent{}
	})

	select {
	case ev := <-events:
		require.IsType(t, loopTickEvent{}, ev, "a panicking task must not take down the worker goroutine")
	case <-time.After(time.Second):
		t.Fatal("timed out: worker goroutine appears to have died")
	}
}
