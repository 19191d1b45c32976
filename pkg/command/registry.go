package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

const logPrefix = "command:registry"

// DefaultPoolSize is the default number of sync handlers that may run
// concurrently.
const DefaultPoolSize = 4

// Registry maps command names to handlers. Registration is write-once
// per name; there is no unregister.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Handler
	pool     chan struct{}
}

// NewRegistry creates an empty registry. poolSize bounds concurrently
// running sync handlers; zero or less falls back to DefaultPoolSize.
func NewRegistry(poolSize int) *Registry {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &Registry{
		commands: make(map[string]Handler),
		pool:     make(chan struct{}, poolSize),
	}
}

// Register stores the handler under name. Registering a name twice
// fails with DUPLICATE_COMMAND.
func (r *Registry) Register(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return NewError(CodeDuplicateCommand, fmt.Sprintf("command %q is already registered", name))
	}
	r.commands[name] = h
	slog.Debug(fmt.Sprintf("%s - Registered command %q", logPrefix, name))
	return nil
}

// Dispatch resolves name and invokes its handler with args. Unknown
// names fail with COMMAND_NOT_FOUND; handler failures propagate
// unchanged.
func (r *Registry) Dispatch(ctx context.Context, name string, args []any) (any, error) {
	r.mu.RLock()
	h, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		return nil, NewError(CodeCommandNotFound, fmt.Sprintf("command %q not found", name))
	}

	if h.kind == kindAsync {
		return h.async(ctx, args)
	}
	return r.runSync(ctx, h.sync, args)
}

// runSync executes a blocking handler on the worker pool and waits for
// its result, honoring context cancellation while queued or running.
func (r *Registry) runSync(ctx context.Context, fn SyncFunc, args []any) (any, error) {
	select {
	case r.pool <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	done := make(chan struct{})
	var result any
	var err error
	go func() {
		defer close(done)
		defer func() { <-r.pool }()
		result, err = fn(args)
	}()

	select {
	case <-done:
		return result, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}
