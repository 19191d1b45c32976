// Package wire implements the bridge wire protocol: fixed-shape JSON
// arrays for requests and responses, plus length-prefixed framing.
package wire

import (
	"encoding/json"
	"fmt"
)

// Error codes for wire decode failures.
const (
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeMalformedRequest  = "MALFORMED_REQUEST"
)

// Error is a structured error from the wire codec.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewError creates a new wire Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Request is an outbound call destined for the runtime peer.
// On the wire it is the fixed 3-element array [id, method, args].
type Request struct {
	ID     int
	Method string
	Args   []any
}

// MarshalJSON encodes the request as [id, method, args].
func (r Request) MarshalJSON() ([]byte, error) {
	args := r.Args
	if args == nil {
		args = []any{}
	}
	return json.Marshal([]any{r.ID, r.Method, args})
}

// DecodeRequest parses a request from its wire form. The array must have
// exactly three elements with the expected types.
func DecodeRequest(data []byte) (*Request, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, NewError(CodeMalformedRequest, fmt.Sprintf("request is not a JSON array: %v", err))
	}
	if len(arr) != 3 {
		return nil, NewError(CodeMalformedRequest, fmt.Sprintf("request array has %d elements, want 3", len(arr)))
	}

	var req Request
	if err := json.Unmarshal(arr[0], &req.ID); err != nil {
		return nil, NewError(CodeMalformedRequest, fmt.Sprintf("request id: %v", err))
	}
	if err := json.Unmarshal(arr[1], &req.Method); err != nil {
		return nil, NewError(CodeMalformedRequest, fmt.Sprintf("request method: %v", err))
	}
	if err := json.Unmarshal(arr[2], &req.Args); err != nil {
		return nil, NewError(CodeMalformedRequest, fmt.Sprintf("request args: %v", err))
	}
	return &req, nil
}

// Response is a reply from the runtime peer. On the wire it is the fixed
// 4-element array [id, code, msg, result]. Code 0 signals success; any
// other value signals a remote error described by Msg.
type Response struct {
	ID     int
	Code   int
	Msg    string
	Result any
}

// MarshalJSON encodes the response as [id, code, msg, result].
func (r Response) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.ID, r.Code, r.Msg, r.Result})
}

// DecodeResponse parses a response from its wire form. Anything other
// than a 4-element array with the expected element types is a hard
// decode failure. Result is retained as json.RawMessage so callers can
// decode it into their own types.
func DecodeResponse(data []byte) (*Response, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, NewError(CodeMalformedResponse, fmt.Sprintf("response is not a JSON array: %v", err))
	}
	if len(arr) != 4 {
		return nil, NewError(CodeMalformedResponse, fmt.Sprintf("response array has %d elements, want 4", len(arr)))
	}

	var resp Response
	if err := json.Unmarshal(arr[0], &resp.ID); err != nil {
		return nil, NewError(CodeMalformedResponse, fmt.Sprintf("response id: %v", err))
	}
	if err := json.Unmarshal(arr[1], &resp.Code); err != nil {
		return nil, NewError(CodeMalformedResponse, fmt.Sprintf("response code: %v", err))
	}
	if err := json.Unmarshal(arr[2], &resp.Msg); err != nil {
		return nil, NewError(CodeMalformedResponse, fmt.Sprintf("response msg: %v", err))
	}
	resp.Result = json.RawMessage(arr[3])
	return &resp, nil
}

// NormalizeArgs coerces caller-supplied arguments into the ordered list
// form the protocol requires: nil becomes an empty list, a list is kept
// as-is, and any single value is wrapped as a one-element list.
// JSON safety of the elements is enforced later by marshaling.
func NormalizeArgs(args any) []any {
	switch v := args.(type) {
	case nil:
		return []any{}
	case []any:
		if v == nil {
			return []any{}
		}
		return v
	default:
		return []any{args}
	}
}
