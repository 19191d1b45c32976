// Package pending correlates in-flight outbound requests with their
// completion handles. Request ids are allocated from a bounded ring so
// the number of simultaneously outstanding requests is capped.
package pending

import (
	"fmt"
	"sync"
)

// DefaultMaxID is the default ring size; ids are issued in [0, DefaultMaxID).
const DefaultMaxID = 255

// CodeRegistryExhausted signals that every id in the ring is in flight.
const CodeRegistryExhausted = "REGISTRY_EXHAUSTED"

// Error is a structured error from the pending registry.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewError creates a new pending Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Registry tracks completion handles keyed by request id.
type Registry struct {
	mu      sync.Mutex
	entries map[int]*Handle
	counter int
	maxID   int
}

// NewRegistry creates a registry with the given ring size. A size of
// zero or less falls back to DefaultMaxID.
func NewRegistry(maxID int) *Registry {
	if maxID <= 0 {
		maxID = DefaultMaxID
	}
	return &Registry{
		entries: make(map[int]*Handle),
		maxID:   maxID,
	}
}

// NextID returns the next free request id, scanning the ring starting
// just past the last issued id and wrapping. Fails when every id is in
// flight.
func (r *Registry) NextID() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextIDLocked()
}

func (r *Registry) nextIDLocked() (int, error) {
	for i := 0; i < r.maxID; i++ {
		r.counter = (r.counter + 1) % r.maxID
		if _, busy := r.entries[r.counter]; !busy {
			return r.counter, nil
		}
	}
	return 0, NewError(CodeRegistryExhausted, fmt.Sprintf("all %d request ids are in flight", r.maxID))
}

// Register stores the handle under the given id. Callers must only use
// ids obtained from NextID; registering a foreign id overwrites.
func (r *Registry) Register(id int, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = h
}

// Add allocates an id and registers the handle under it in one step, so
// concurrent callers cannot race between allocation and registration.
func (r *Registry) Add(h *Handle) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.nextIDLocked()
	if err != nil {
		return 0, err
	}
	r.entries[id] = h
	return id, nil
}

// Pop removes and returns the handle for the given id. The second
// return value reports whether an entry was present.
func (r *Registry) Pop(id int) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return h, ok
}

// Resolve pops the entry for id and completes it with the error or the
// result; the error takes precedence. A response for an unknown id
// (already timed out, or never registered) is silently dropped.
func (r *Registry) Resolve(id int, result any, err error) {
	h, ok := r.Pop(id)
	if !ok {
		return
	}
	h.Complete(result, err)
}

// CancelAll completes every outstanding handle with the given error and
// clears the table. Used when the bridge shuts down.
func (r *Registry) CancelAll(err error) {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[int]*Handle)
	r.mu.Unlock()

	for _, h := range entries {
		h.Complete(nil, err)
	}
}

// Len returns the number of outstanding entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
