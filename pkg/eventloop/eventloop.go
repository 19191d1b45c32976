// Package eventloop drives outbound requests to the external runtime:
// an unbounded task queue, a single worker that performs one framed TCP
// round trip per task, response routing back to the waiting caller, and
// the typed call API on top.
package eventloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/aribermeki/framebridge/pkg/pending"
	"github.com/aribermeki/framebridge/pkg/wire"
)

const logPrefix = "eventloop:worker"

const (
	defaultAddr        = "127.0.0.1:5555"
	defaultDialTimeout = 5 * time.Second
	defaultCallTimeout = 10 * time.Second
	defaultYield       = 10 * time.Millisecond
)

// Options configures an EventLoop. Zero values fall back to defaults.
type Options struct {
	// Addr is the host:port of the runtime peer.
	Addr string
	// DialTimeout bounds each connection attempt.
	DialTimeout time.Duration
	// CallTimeout bounds how long a caller waits for a response.
	CallTimeout time.Duration
	// Yield is the pause between round trips, bounding CPU usage under
	// bursty load.
	Yield time.Duration
	// MaxPending is the correlation id ring size.
	MaxPending int
}

// DefaultOptions returns the default event loop configuration.
func DefaultOptions() Options {
	return Options{
		Addr:        defaultAddr,
		DialTimeout: defaultDialTimeout,
		CallTimeout: defaultCallTimeout,
		Yield:       defaultYield,
		MaxPending:  pending.DefaultMaxID,
	}
}

// EventLoop owns the outbound side of the bridge. Concurrent callers
// may enqueue simultaneously; the single worker serializes all
// transport access.
type EventLoop struct {
	opts    Options
	pending *pending.Registry
	queue   *Queue
	running atomic.Bool
}

// New creates an EventLoop with the given options.
func New(opts Options) *EventLoop {
	if opts.Addr == "" {
		opts.Addr = defaultAddr
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Yield <= 0 {
		opts.Yield = defaultYield
	}

	return &EventLoop{
		opts:    opts,
		pending: pending.NewRegistry(opts.MaxPending),
		queue:   NewQueue(),
	}
}

// Pending exposes the correlation registry.
func (l *EventLoop) Pending() *pending.Registry {
	return l.pending
}

// Run drains the queue one task at a time until ctx is cancelled. Each
// task is a full connect-send-receive round trip; transport failures
// fail the task's own handle, never the worker. On exit every
// outstanding entry is cancelled with a terminated error.
func (l *EventLoop) Run(ctx context.Context) {
	l.running.Store(true)
	defer l.running.Store(false)
	defer l.pending.CancelAll(NewError(CodeLoopTerminated, "event loop terminated"))

	slog.Info(fmt.Sprintf("%s - Worker started, peer at %s", logPrefix, l.opts.Addr))

	for {
		task, err := l.queue.Get(ctx)
		if err != nil {
			slog.Info(fmt.Sprintf("%s - Worker cancelled: %v", logPrefix, err))
			return
		}

		l.process(ctx, task)

		select {
		case <-ctx.Done():
			slog.Info(fmt.Sprintf("%s - Worker cancelled during yield", logPrefix))
			return
		case <-time.After(l.opts.Yield):
		}
	}
}

// process performs the round trip for one task and routes the outcome.
func (l *EventLoop) process(ctx context.Context, task Task) {
	payload, err := l.roundTrip(ctx, task.Request)
	if err == nil {
		err = l.RouteResponse(payload, task.Handle)
		if err == nil {
			return
		}
	}

	slog.Warn(fmt.Sprintf("%s - Request %d (%s) failed: %v", logPrefix, task.Request.ID, task.Request.Method, err))
	if task.Handle != nil {
		task.Handle.Complete(nil, err)
	} else {
		l.pending.Resolve(task.Request.ID, nil, err)
	}
}

// roundTrip opens a fresh connection to the peer, writes the framed
// request and reads the framed response. The transport is not
// multiplexed: one connection per request/response pair.
func (l *EventLoop) roundTrip(ctx context.Context, req wire.Request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s - encode request %d: %w", logPrefix, req.ID, err)
	}

	dialer := net.Dialer{Timeout: l.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", l.opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("%s - connect to %s: %w", logPrefix, l.opts.Addr, err)
	}
	defer conn.Close()

	// A stalled peer must not wedge the worker: the whole round trip is
	// bounded by the call timeout, and worker cancellation closes the
	// connection out from under a blocked read.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	conn.SetDeadline(time.Now().Add(l.opts.CallTimeout))

	if err := wire.WriteFrame(conn, payload); err != nil {
		return nil, err
	}
	return wire.ReadFrame(conn)
}

// RouteResponse decodes a response payload and delivers it. When the
// task carried its own handle it is completed directly; otherwise the
// response is resolved through the shared registry by correlation id.
// A nonzero code becomes a RemoteError.
func (l *EventLoop) RouteResponse(payload []byte, handle *pending.Handle) error {
	resp, err := wire.DecodeResponse(payload)
	if err != nil {
		return err
	}

	var remoteErr error
	if resp.Code != 0 {
		remoteErr = NewRemoteError(resp.Code, resp.Msg)
	}

	if handle != nil {
		if remoteErr != nil {
			handle.Complete(nil, remoteErr)
		} else {
			handle.Complete(resp.Result, nil)
		}
		return nil
	}

	if remoteErr != nil {
		l.pending.Resolve(resp.ID, nil, remoteErr)
	} else {
		l.pending.Resolve(resp.ID, resp.Result, nil)
	}
	return nil
}

// Stats describes the current state of the event loop for diagnostics.
type Stats struct {
	Pending       int  `json:"pending"`
	QueueDepth    int  `json:"queueDepth"`
	WorkerRunning bool `json:"workerRunning"`
}

// Stats returns a snapshot of pending entries, queue depth and worker
// liveness.
func (l *EventLoop) Stats() Stats {
	return Stats{
		Pending:       l.pending.Len(),
		QueueDepth:    l.queue.Len(),
		WorkerRunning: l.running.Load(),
	}
}
