// Package transport is the request-issuing and Server-Sent-Events decoding
// primitive the provider adapters talk through. It knows nothing about LLM
// payloads: it moves JSON bodies and SSE frames.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Transport issues plain requests and opens event streams.
// Implementations must be safe for concurrent use.
type Transport interface {
	DoGet(ctx context.Context, url string, headers map[string]string) (*Response, error)
	DoPost(ctx context.Context, url string, headers map[string]string, payload any) (*Response, error)
	OpenEventSource(ctx context.Context, req *Request) (EventSource, error)
}

// Request describes a streaming call. Payload is JSON-encoded when non-nil.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Payload any
}

// Response is a fully read, successful (2xx) response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// StatusError is returned for any non-2xx response. Body holds the raw
// response body so callers can surface the provider's own message.
type StatusError struct {
	StatusCode int
	URL        string
	Body       []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, truncate(string(e.Body), 512))
}

// ---------------------------------------------------------------------------
// Event source
// ---------------------------------------------------------------------------

// EventKind tags an Event.
type EventKind int

const (
	// EventOpen is produced once, before any message, when the stream is established.
	EventOpen EventKind = iota
	// EventMessage carries one dispatched SSE event.
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one item read from an EventSource.
type Event struct {
	Kind EventKind
	Name string // SSE "event:" field, empty for the default event type
	ID   string
	Data string
}

// EventSource is a pull-based stream of events. Next blocks until the next
// event is available, returns io.EOF once the server closes the stream
// cleanly, and any other error on transport failure. Close releases the
// underlying connection and may be called more than once.
type EventSource interface {
	Next() (Event, error)
	Close() error
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
