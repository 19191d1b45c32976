package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const logPrefix = "ipc:decoder"

// Error codes for decode failures. These never propagate as errors;
// they only tag the diagnostic script and the log line.
const (
	CodeMalformedEnvelope = "MALFORMED_ENVELOPE"
	CodeMalformedBody     = "MALFORMED_BODY"
)

// Dispatcher resolves a command name and executes it with the given
// ordered arguments.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args []any) (any, error)
}

// Decoder parses inbound wire text and routes it through a Dispatcher.
type Decoder struct {
	dispatcher Dispatcher
}

// NewDecoder creates a Decoder backed by the given dispatcher.
func NewDecoder(d Dispatcher) *Decoder {
	return &Decoder{dispatcher: d}
}

// HandleMessage processes one inbound message and always returns a
// script for the host to evaluate. It never panics and never returns an
// error: envelope and body failures become console.error scripts, and
// dispatch failures become error-callback scripts.
func (d *Decoder) HandleMessage(ctx context.Context, raw string) string {
	tag := uuid.NewString()

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return d.diagnostic(tag, CodeMalformedEnvelope, fmt.Sprintf("envelope is not a JSON object: %v", err))
	}
	if env.Body == "" {
		return d.diagnostic(tag, CodeMalformedEnvelope, "envelope has no body")
	}

	var msg Message
	if err := json.Unmarshal([]byte(env.Body), &msg); err != nil {
		return d.diagnostic(tag, CodeMalformedBody, fmt.Sprintf("body is not a valid message: %v", err))
	}
	if msg.Cmd == "" || msg.ResultID == "" || msg.ErrorID == "" {
		return d.diagnostic(tag, CodeMalformedBody, "body is missing cmd, result_id or error_id")
	}
	if msg.Payload == nil {
		msg.Payload = []any{}
	}

	slog.Debug(fmt.Sprintf("%s - [%s] Dispatching %q with %d args (uri=%s)", logPrefix, tag, msg.Cmd, len(msg.Payload), env.URI))

	result, err := d.dispatcher.Dispatch(ctx, msg.Cmd, msg.Payload)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - [%s] Command %q failed: %v", logPrefix, tag, msg.Cmd, err))
		return errorScript(msg.ErrorID, err)
	}
	return resultScript(tag, &msg, result)
}

// diagnostic logs a decode failure and returns a console.error script
// carrying the same information.
func (d *Decoder) diagnostic(tag, code, detail string) string {
	slog.Warn(fmt.Sprintf("%s - [%s] %s: %s", logPrefix, tag, code, detail))
	quoted, _ := json.Marshal(fmt.Sprintf("IPC error: %s: %s", code, detail))
	return fmt.Sprintf("console.error(%s);", quoted)
}

// resultScript builds the success-callback script embedding the JSON
// dispatch result. A result that cannot be serialized is reported
// through the error callback instead.
func resultScript(tag string, msg *Message, result any) string {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - [%s] Command %q result not serializable: %v", logPrefix, tag, msg.Cmd, err))
		return errorScript(msg.ErrorID, fmt.Errorf("result of %q is not serializable: %w", msg.Cmd, err))
	}
	return fmt.Sprintf("window._%s(%s);", msg.ResultID, data)
}

// errorScript builds the error-callback script carrying the failure
// message as a JSON string.
func errorScript(errorID string, err error) string {
	quoted, _ := json.Marshal(err.Error())
	return fmt.Sprintf("window._%s(%s);", errorID, quoted)
}
