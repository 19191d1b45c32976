package eventloop

import "fmt"

// Error codes for event loop failures.
const (
	CodeRequestTimeout = "REQUEST_TIMEOUT"
	CodeLoopTerminated = "LOOP_TERMINATED"
)

// Error is a structured error from the event loop.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewError creates a new event loop Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// RemoteError is an error reported by the runtime peer: a response with
// a nonzero code and a human-readable diagnostic.
type RemoteError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("[API-%d] %s", e.Code, e.Msg)
}

// NewRemoteError creates a new RemoteError.
func NewRemoteError(code int, msg string) *RemoteError {
	return &RemoteError{Code: code, Msg: msg}
}
