package eventloop

import (
	"context"
	"sync"

	"github.com/aribermeki/framebridge/pkg/pending"
	"github.com/aribermeki/framebridge/pkg/wire"
)

// Task pairs an outbound request with the completion handle that will
// receive its outcome. A nil handle marks a fire-and-forget request.
type Task struct {
	Request wire.Request
	Handle  *pending.Handle
}

// Queue is an unbounded FIFO of outbound tasks. Put never blocks; Get
// suspends until an item arrives or the context ends.
type Queue struct {
	mu     sync.Mutex
	items  []Task
	signal chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Put appends a task to the queue.
func (q *Queue) Put(t Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Get removes and returns the oldest task, blocking until one is
// available or ctx is cancelled.
func (q *Queue) Get(ctx context.Context) (Task, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			t := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return t, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Task{}, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
