package pending

import (
	"context"
	"sync"
)

type outcome struct {
	result any
	err    error
}

// Handle is a single-assignment completion slot. Exactly one caller
// awaits it; the first Complete wins and later calls are ignored.
type Handle struct {
	once sync.Once
	ch   chan outcome
}

// NewHandle creates an unresolved completion handle.
func NewHandle() *Handle {
	return &Handle{ch: make(chan outcome, 1)}
}

// Complete delivers the result or error. A non-nil error takes
// precedence over the result. Subsequent calls are no-ops.
func (h *Handle) Complete(result any, err error) {
	h.once.Do(func() {
		if err != nil {
			h.ch <- outcome{err: err}
			return
		}
		h.ch <- outcome{result: result}
	})
}

// Await blocks until the handle is completed or the context ends.
func (h *Handle) Await(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-h.ch:
		return out.result, out.err
	}
}
