// Package host defines how decoder output reaches the embedding host.
// The bridge itself never evaluates scripts; it hands them to a Sink
// owned by whatever hosts the webview.
package host

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Sink receives scripts produced by the decoder for host evaluation.
type Sink interface {
	Eval(ctx context.Context, script string) error
}

// NoOpSink is a Sink that discards scripts (for in-process usage
// without a host).
type NoOpSink struct{}

// Eval is a no-op.
func (s *NoOpSink) Eval(_ context.Context, _ string) error {
	return nil
}

// CallbackSink is a Sink that calls a callback function (for testing).
type CallbackSink struct {
	callback func(ctx context.Context, script string) error
}

// NewCallbackSink creates a new CallbackSink.
func NewCallbackSink(cb func(ctx context.Context, script string) error) *CallbackSink {
	return &CallbackSink{callback: cb}
}

// Eval calls the callback.
func (s *CallbackSink) Eval(ctx context.Context, script string) error {
	return s.callback(ctx, script)
}

// WriterSink writes one script per line to an io.Writer. The host reads
// the stream and evaluates each line; this matches a runtime that
// drives the bridge over stdin/stdout.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a WriterSink on w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Eval writes the script followed by a newline.
func (s *WriterSink) Eval(_ context.Context, script string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.w, script); err != nil {
		return fmt.Errorf("host: write script: %w", err)
	}
	return nil
}
