//go:build linux

package lsp

import (
	"context"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// watchdog signals when the parent process that launched this server has
// exited, so the event loop can shut down instead of running forever as
// an orphan (spec §4.7). On Linux this polls the parent pid via kill(pid,
// 0), which is the portable equivalent of the pidfd-based wait nil uses;
// pidfd itself needs no privileged setup to poll but does need a recent
// kernel, so falling back to a pid-liveness poll keeps this workable on
// older ones too.
type watchdog struct {
	done   chan struct{}
	cancel context.CancelFunc
}

func (s *Server) startParentWatchdog(ctx context.Context) *watchdog {
	ppid := os.Getppid()
	if ppid <= 1 {
		// No distinct parent to watch (reparented to init, or launched
		// standalone); never fire.
		return &watchdog{done: make(chan struct{})}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := &watchdog{done: make(chan struct{}), cancel: cancel}

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				if unix.Kill(ppid, 0) != nil {
					close(w.done)
					return
				}
			}
		}
	}()
	return w
}

func (w *watchdog) exited() <-chan struct{} { return w.done }

func (w *watchdog) stop() {
	if w.cancel != nil {
		w.cancel()
	}
}
