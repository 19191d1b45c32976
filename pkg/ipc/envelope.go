// Package ipc decodes inbound messages from the host runtime and turns
// them into scripts the host evaluates. Decode failures never escape
// this package; they are converted into diagnostic scripts instead.
package ipc

// Envelope is the outer JSON object delivered by the host runtime. The
// runtime wraps each message in an HTTP-like record whose body field
// holds the JSON-encoded inner message; the remaining fields only feed
// debug logging.
type Envelope struct {
	Method  string            `json:"method,omitempty"`
	URI     string            `json:"uri,omitempty"`
	Version string            `json:"version,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body"`
}

// Message is the inner command invocation carried in an envelope body.
// ResultID and ErrorID are host-side callback tokens: the host exposes
// window._<token> functions that consume the outcome.
type Message struct {
	Cmd      string `json:"cmd"`
	ResultID string `json:"result_id"`
	ErrorID  string `json:"error_id"`
	Payload  []any  `json:"payload"`
}
