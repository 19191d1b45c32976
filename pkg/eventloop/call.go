package eventloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aribermeki/framebridge/pkg/pending"
	"github.com/aribermeki/framebridge/pkg/wire"
)

const callLogPrefix = "eventloop:call"

// CallRaw sends a request to the runtime peer and waits for its raw
// JSON result. The pending entry is removed on every exit path: no
// entry outlives its call.
func (l *EventLoop) CallRaw(ctx context.Context, method string, args any) (json.RawMessage, error) {
	handle := pending.NewHandle()
	id, err := l.pending.Add(handle)
	if err != nil {
		return nil, err
	}
	defer l.pending.Pop(id)

	req := wire.Request{ID: id, Method: method, Args: wire.NormalizeArgs(args)}
	l.queue.Put(Task{Request: req, Handle: handle})

	waitCtx, cancel := context.WithTimeout(ctx, l.opts.CallTimeout)
	defer cancel()

	result, err := handle.Await(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewError(CodeRequestTimeout, fmt.Sprintf("no response for %q within %s", method, l.opts.CallTimeout))
		}
		return nil, err
	}

	raw, _ := result.(json.RawMessage)
	return raw, nil
}

// Call sends a request and decodes the result into T. Structured types
// are validated by the JSON decode; primitives come back converted.
func Call[T any](ctx context.Context, l *EventLoop, method string, args any) (T, error) {
	var out T
	raw, err := l.CallRaw(ctx, method, args)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%s - decode %q result: %w", callLogPrefix, method, err)
	}
	return out, nil
}

// CallFunc sends a request and applies a caller-supplied conversion to
// the raw result.
func CallFunc[T any](ctx context.Context, l *EventLoop, method string, args any, convert func(json.RawMessage) (T, error)) (T, error) {
	var zero T
	raw, err := l.CallRaw(ctx, method, args)
	if err != nil {
		return zero, err
	}
	return convert(raw)
}

// Notify enqueues a fire-and-forget request. No pending entry is
// created; the attached handle absorbs the peer's reply (or the
// transport failure) without anyone awaiting it.
func (l *EventLoop) Notify(method string, args any) {
	req := wire.Request{ID: 0, Method: method, Args: wire.NormalizeArgs(args)}
	l.queue.Put(Task{Request: req, Handle: pending.NewHandle()})
}
