// Package command implements the bridge command registry and dispatcher.
// Commands are registered once at startup under a unique name and are
// invoked with an ordered list of JSON-decoded arguments.
package command

import "context"

// Error codes for registry and dispatch failures.
const (
	CodeDuplicateCommand = "DUPLICATE_COMMAND"
	CodeCommandNotFound  = "COMMAND_NOT_FOUND"
)

// Error is a structured error from the command registry.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewError creates a new command Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// AsyncFunc is a handler that cooperates with the bridge: it must honor
// the context and never block its goroutine on long computations.
type AsyncFunc func(ctx context.Context, args []any) (any, error)

// SyncFunc is a plain blocking handler. The dispatcher runs it on a
// bounded worker pool so it cannot stall concurrent dispatches.
type SyncFunc func(args []any) (any, error)

type handlerKind int

const (
	kindAsync handlerKind = iota
	kindSync
)

// Handler is the sync/async command union. Build one with Async or Sync.
type Handler struct {
	kind  handlerKind
	async AsyncFunc
	sync  SyncFunc
}

// Async wraps a context-aware handler that is invoked inline.
func Async(fn AsyncFunc) Handler {
	return Handler{kind: kindAsync, async: fn}
}

// Sync wraps a blocking handler that is executed on the worker pool.
func Sync(fn SyncFunc) Handler {
	return Handler{kind: kindSync, sync: fn}
}
