// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lsp implements the event loop that drives a language server:
// requests and notifications arrive over a jsonrpc2 connection and are
// handled by Server.Handle on that connection's goroutine, long-running
// work is handed to a worker pool, and worker results come back to this
// loop's goroutine as Events. Vfs writes, opened-document bookkeeping and
// configuration updates from notifications therefore happen on the
// connection goroutine, not on the loop goroutine; the state they share
// with the loop is guarded by its own locks.
package lsp

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/jsonrpc2"
	errors "golang.org/x/xerrors"

	"github.com/EricCrosson/nil/internal/analysis"
	"github.com/EricCrosson/nil/internal/config"
	"github.com/EricCrosson/nil/internal/lsp/reqqueue"
	"github.com/EricCrosson/nil/internal/protocol"
	"github.com/EricCrosson/nil/internal/resolver"
	"github.com/EricCrosson/nil/internal/vfs"
)

type serverState int32

const (
	stateCreated serverState = iota
	stateInitializing
	stateInitialized
	stateShuttingDown
)

// openedFile tracks the version of the most recently scheduled diagnostics
// computation for one open document, so an older computation that arrives
// later can be discarded rather than published (spec §4.6).
type openedFile struct {
	diagnosticsVersion uint64
}

// Server is the language server's event loop. Its state is reached from
// the loop goroutine, the jsonrpc2 connection goroutine (Handle) and worker
// goroutines; host, vfs, config, the opened-document map and the
// lifecycle state are each guarded by their own synchronization.
type Server struct {
	id string

	bindOnce sync.Once
	conn     *jsonrpc2.Conn
	client   protocol.Client
	log      zerolog.Logger

	host     analysis.Host
	vfsStore *vfs.VFS
	config   *config.Store
	resolver resolver.Resolver

	stateMu sync.Mutex
	state   serverState

	// pendingExit is set by handleExit on the connection goroutine, which
	// then sends a loopTickEvent; the event loop reads it only after
	// receiving an event.
	pendingExit bool

	openedMu sync.Mutex
	opened   map[protocol.DocumentURI]*openedFile

	versionCounter atomic.Uint64

	incoming *reqqueue.Incoming
	outgoing *reqqueue.Outgoing
	corrID   atomic.Uint64

	workerPool *workerPool
	events     chan Event

	flakeInfo atomic.Pointer[vfs.FlakeInfo]
}

// Options configures a Server beyond what InitializeParams carries.
type Options struct {
	Host     analysis.Host
	Resolver resolver.Resolver
	Workers  int
	Logger   zerolog.Logger
}

// NewServer constructs a Server. It implements jsonrpc2.Handler itself, so
// the natural way to wire it up is to pass it directly as the handler
// argument to jsonrpc2.NewConn; the server binds itself to the resulting
// *jsonrpc2.Conn the first time Handle is invoked, since the conn cannot
// exist before the handler that references it does (see Handle).
func NewServer(opts Options) *Server {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
		if opts.Workers < 1 {
			opts.Workers = 1
		}
	}
	s := &Server{
		id:       uuid.NewString(),
		log:      opts.Logger.With().Str("component", "lsp").Logger(),
		host:     opts.Host,
		vfsStore: vfs.New(),
		resolver: opts.Resolver,
		opened:   make(map[protocol.DocumentURI]*openedFile),
		incoming: reqqueue.NewIncoming(),
		outgoing: reqqueue.NewOutgoing(),
		events:   make(chan Event, 64),
	}
	s.workerPool = newWorkerPool(opts.Workers, s.events)
	return s
}

// Bind attaches conn to the server. It must be called once, with the conn
// returned from jsonrpc2.NewConn(ctx, stream, srv), before Run; Handle
// also binds lazily (via the same sync.Once) as a safety net for callers
// that skip this step, but Run needs the conn immediately and cannot wait
// for the first incoming message to arrive.
func (s *Server) Bind(conn *jsonrpc2.Conn) {
	s.bindOnce.Do(func() {
		s.conn = conn
		s.client = NewClient(conn)
	})
}

// nextVersion returns a monotonically increasing version, used to stamp
// diagnostics computations so staleness can be detected on arrival
// (spec §4.6).
func (s *Server) nextVersion() uint64 {
	return s.versionCounter.Add(1)
}

func (s *Server) nextCorrID() uint64 {
	return s.corrID.Add(1)
}

func (s *Server) setState(state serverState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *Server) getState() serverState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Run drives the event loop until the connection closes or the process is
// asked to exit. dispatchEvent is only ever called from here; Handle is
// called by the jsonrpc2 connection on its own goroutine, not by Run.
func (s *Server) Run(ctx context.Context) error {
	defer s.workerPool.Close()

	watchdog := s.startParentWatchdog(ctx)
	defer watchdog.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.conn.DisconnectNotify():
			return nil
		case ev, ok := <-s.events:
			if !ok {
				return nil
			}
			if done := s.dispatchEvent(ctx, ev); done {
				return nil
			}
		case <-watchdog.exited():
			return errors.New("parent process exited; shutting down")
		}
	}
}

// submit hands fn to the worker pool; its return value arrives back on the
// event loop as an Event. Diagnostics tasks close over a host snapshot
// taken before submit; other tasks (initialize, the flake bootstrap,
// outgoing calls) call methods on the live Server from the worker
// goroutine.
func (s *Server) submit(fn func() Event) {
	s.workerPool.Submit(fn)
}

// reply sends result (or err) for the client-originated request id,
// provided it has not already been completed by a racing cancellation
// (spec invariant: exactly one response per in-flight request id).
func (s *Server) reply(ctx context.Context, id jsonrpc2.ID, result interface{}, err error) {
	if !s.incoming.Complete(id) {
		return
	}
	if err != nil {
		s.conn.ReplyWithError(ctx, id, toJSONRPCError(err))
		return
	}
	if replyErr := s.conn.Reply(ctx, id, result); replyErr != nil {
		s.log.Error().Err(replyErr).Msg("failed to send response")
	}
}

func toJSONRPCError(err error) *jsonrpc2.Error {
	var lspErr *protocol.LspError
	if errors.As(err, &lspErr) {
		return &jsonrpc2.Error{Code: int64(lspErr.Code), Message: lspErr.Message}
	}
	return &jsonrpc2.Error{Code: int64(protocol.CodeInternalError), Message: err.Error()}
}

// sendRequest issues method to the client asynchronously: the call runs on
// a worker goroutine so the event loop never blocks on network I/O, and
// callback resumes on the event loop once a result is ready (spec
// invariant 5).
func sendRequest[T any](s *Server, ctx context.Context, method string, params interface{}, callback func(*Server, T, error)) {
	id := s.nextCorrID()
	s.outgoing.Register(id, func(result interface{}, err error) {
		var typed T
		if result != nil {
			typed = result.(T)
		}
		callback(s, typed, err)
	})
	s.submit(func() Event {
		var result T
		err := s.conn.Call(ctx, method, params, &result)
		return outgoingResultEvent{id: id, result: result, err: err}
	})
}

func sendNotification(s *Server, ctx context.Context, method string, params interface{}) {
	if err := s.conn.Notify(ctx, method, params); err != nil {
		s.log.Warn().Err(err).Str("method", method).Msg("failed to deliver notification")
	}
}
