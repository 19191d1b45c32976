package eventloop_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/aribermeki/framebridge/pkg/eventloop"
	"github.com/aribermeki/framebridge/pkg/peer"
	"github.com/aribermeki/framebridge/pkg/wire"
)

// startPeer runs a stub runtime on a free port and returns its address.
func startPeer(t *testing.T, handler peer.Handler) string {
	t.Helper()

	srv, err := peer.Listen("127.0.0.1:0", handler)
	if err != nil {
		t.Fatalf("eventloop:integration_test - listen failed: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	go srv.Serve(context.Background())
	return srv.Addr()
}

// startLoop runs an event loop worker against addr until test cleanup.
func startLoop(t *testing.T, opts eventloop.Options) *eventloop.EventLoop {
	t.Helper()

	loop := eventloop.New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return loop
}

func mathHandler(_ context.Context, method string, args []any) (any, error) {
	switch method {
	case "add":
		return args[0].(float64) + args[1].(float64), nil
	case "mul":
		return nil, peer.Errorf(1, "boom")
	case "whoami":
		return map[string]any{"name": "stub", "version": 1}, nil
	default:
		return nil, fmt.Errorf("unknown method %q", method)
	}
}

func TestCall_Success(t *testing.T) {
	addr := startPeer(t, mathHandler)
	loop := startLoop(t, eventloop.Options{Addr: addr, Yield: time.Millisecond})

	result, err := eventloop.Call[int](context.Background(), loop, "add", []any{2, 3})
	if err != nil {
		t.Fatalf("eventloop:integration_test - call failed: %v", err)
	}
	if result != 5 {
		t.Errorf("eventloop:integration_test - result = %d, want 5", result)
	}
	if loop.Pending().Len() != 0 {
		t.Errorf("eventloop:integration_test - pending entry outlived the call")
	}
}

func TestCall_RemoteError(t *testing.T) {
	addr := startPeer(t, mathHandler)
	loop := startLoop(t, eventloop.Options{Addr: addr, Yield: time.Millisecond})

	_, err := eventloop.Call[int](context.Background(), loop, "mul", []any{2, 3})
	var remote *eventloop.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("eventloop:integration_test - err = %v, want RemoteError", err)
	}
	if remote.Code != 1 || remote.Msg != "boom" {
		t.Errorf("eventloop:integration_test - remote = (%d, %q), want (1, boom)", remote.Code, remote.Msg)
	}
}

func TestCall_StructuredResult(t *testing.T) {
	addr := startPeer(t, mathHandler)
	loop := startLoop(t, eventloop.Options{Addr: addr, Yield: time.Millisecond})

	type identity struct {
		Name    string `json:"name"`
		Version int    `json:"version"`
	}
	result, err := eventloop.Call[identity](context.Background(), loop, "whoami", nil)
	if err != nil {
		t.Fatalf("eventloop:integration_test - call failed: %v", err)
	}
	if result.Name != "stub" || result.Version != 1 {
		t.Errorf("eventloop:integration_test - result = %+v", result)
	}
}

func TestCallFunc_Converter(t *testing.T) {
	addr := startPeer(t, mathHandler)
	loop := startLoop(t, eventloop.Options{Addr: addr, Yield: time.Millisecond})

	result, err := eventloop.CallFunc(context.Background(), loop, "add", []any{1, 2},
		func(raw json.RawMessage) (string, error) {
			return string(raw), nil
		})
	if err != nil {
		t.Fatalf("eventloop:integration_test - call failed: %v", err)
	}
	if result != "3" {
		t.Errorf("eventloop:integration_test - converted result = %q, want 3", result)
	}
}

func TestCall_SingleValueArgsWrapped(t *testing.T) {
	var gotArgs []any
	addr := startPeer(t, func(_ context.Context, _ string, args []any) (any, error) {
		gotArgs = args
		return nil, nil
	})
	loop := startLoop(t, eventloop.Options{Addr: addr, Yield: time.Millisecond})

	if _, err := eventloop.Call[any](context.Background(), loop, "single", "value"); err != nil {
		t.Fatalf("eventloop:integration_test - call failed: %v", err)
	}
	if len(gotArgs) != 1 || gotArgs[0] != "value" {
		t.Errorf("eventloop:integration_test - args = %v, want [value]", gotArgs)
	}
}

func TestCall_Timeout(t *testing.T) {
	// A peer that accepts connections but never answers.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("eventloop:integration_test - listen failed: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	loop := startLoop(t, eventloop.Options{
		Addr:        ln.Addr().String(),
		CallTimeout: 100 * time.Millisecond,
		Yield:       time.Millisecond,
	})

	_, err = eventloop.Call[int](context.Background(), loop, "add", []any{2, 3})
	var loopErr *eventloop.Error
	if !errors.As(err, &loopErr) || loopErr.Code != eventloop.CodeRequestTimeout {
		t.Fatalf("eventloop:integration_test - err = %v, want REQUEST_TIMEOUT", err)
	}
	if loop.Pending().Len() != 0 {
		t.Errorf("eventloop:integration_test - pending entry survived the timeout")
	}

	// The freed id must be available for subsequent allocations.
	for i := 0; i < eventloop.DefaultOptions().MaxPending; i++ {
		if _, err := loop.Pending().NextID(); err != nil {
			t.Fatalf("eventloop:integration_test - id %d not reusable: %v", i, err)
		}
	}
}

func TestCall_ConnectionRefused(t *testing.T) {
	// Grab a port and close it again so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("eventloop:integration_test - listen failed: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	loop := startLoop(t, eventloop.Options{
		Addr:        addr,
		CallTimeout: 2 * time.Second,
		Yield:       time.Millisecond,
	})

	_, err = eventloop.Call[int](context.Background(), loop, "add", []any{2, 3})
	if err == nil {
		t.Fatal("eventloop:integration_test - expected transport failure")
	}
	var loopErr *eventloop.Error
	if errors.As(err, &loopErr) && loopErr.Code == eventloop.CodeRequestTimeout {
		t.Errorf("eventloop:integration_test - transport failure reported as timeout: %v", err)
	}

	// The worker survives transport failures: a healthy peer works next.
	good := startPeer(t, mathHandler)
	loop2 := startLoop(t, eventloop.Options{Addr: good, Yield: time.Millisecond})
	if _, err := eventloop.Call[int](context.Background(), loop2, "add", []any{1, 1}); err != nil {
		t.Errorf("eventloop:integration_test - call after failure: %v", err)
	}
}

func TestCalls_Serialized(t *testing.T) {
	var mu sync.Mutex
	active, maxActive := 0, 0

	addr := startPeer(t, func(_ context.Context, _ string, args []any) (any, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return args[0], nil
	})
	loop := startLoop(t, eventloop.Options{Addr: addr, Yield: time.Millisecond})

	results := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func(n int) {
			got, err := eventloop.Call[int](context.Background(), loop, "echo", []any{n})
			if err == nil && got != n {
				err = fmt.Errorf("got %d, want %d", got, n)
			}
			results <- err
		}(i)
	}
	for i := 0; i < 5; i++ {
		if err := <-results; err != nil {
			t.Errorf("eventloop:integration_test - concurrent call failed: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if maxActive > 1 {
		t.Errorf("eventloop:integration_test - %d round trips in flight, want 1", maxActive)
	}
}

func TestNotify_LeavesNoPendingEntry(t *testing.T) {
	received := make(chan string, 1)
	addr := startPeer(t, func(_ context.Context, method string, _ []any) (any, error) {
		received <- method
		return nil, nil
	})
	loop := startLoop(t, eventloop.Options{Addr: addr, Yield: time.Millisecond})

	loop.Notify("tick", map[string]any{"i": 1})

	select {
	case method := <-received:
		if method != "tick" {
			t.Errorf("eventloop:integration_test - peer got %q, want tick", method)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("eventloop:integration_test - peer never received the notification")
	}
	if loop.Pending().Len() != 0 {
		t.Errorf("eventloop:integration_test - Notify registered a pending entry")
	}
}

func TestRoundTripWireShapes(t *testing.T) {
	// Capture the raw frames the worker sends.
	frames := make(chan []byte, 1)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("eventloop:integration_test - listen failed: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		payload, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		frames <- payload
		req, _ := wire.DecodeRequest(payload)
		resp, _ := wire.Response{ID: req.ID, Code: 0, Msg: "", Result: "ok"}.MarshalJSON()
		wire.WriteFrame(conn, resp)
	}()

	loop := startLoop(t, eventloop.Options{Addr: ln.Addr().String(), Yield: time.Millisecond})
	result, err := eventloop.Call[string](context.Background(), loop, "probe", []any{true})
	if err != nil {
		t.Fatalf("eventloop:integration_test - call failed: %v", err)
	}
	if result != "ok" {
		t.Errorf("eventloop:integration_test - result = %q, want ok", result)
	}

	payload := <-frames
	req, err := wire.DecodeRequest(payload)
	if err != nil {
		t.Fatalf("eventloop:integration_test - sent frame not a request array: %v", err)
	}
	if req.ID != 1 || req.Method != "probe" {
		t.Errorf("eventloop:integration_test - sent (%d, %q), want (1, probe)", req.ID, req.Method)
	}
}
