package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/voocel/unillm/transport"
)

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrorTypeUnsupported  ErrorType = "unsupported_operation" // Provider cannot perform the requested service
	ErrorTypeTransport    ErrorType = "transport_failure"     // Network or HTTP-level failure
	ErrorTypeMalformed    ErrorType = "malformed_response"    // Unexpected JSON shape or missing field
	ErrorTypeCredential   ErrorType = "credential_missing"    // No usable credential for the target
	ErrorTypeStreamDecode ErrorType = "stream_decode"         // A single stream frame failed to parse
	ErrorTypeValidation   ErrorType = "validation"            // Request rejected before it was sent
)

// Sentinels for errors.Is. Matching compares Type only.
var (
	ErrUnsupportedOperation = &Error{Type: ErrorTypeUnsupported}
	ErrTransportFailure     = &Error{Type: ErrorTypeTransport}
	ErrMalformedResponse    = &Error{Type: ErrorTypeMalformed}
	ErrCredentialMissing    = &Error{Type: ErrorTypeCredential}
	ErrStreamDecode         = &Error{Type: ErrorTypeStreamDecode}
	ErrValidation           = &Error{Type: ErrorTypeValidation}
)

// Error is a structured error with categorization and a retry hint.
// The library itself never retries; Retryable only informs the caller.
type Error struct {
	Type     ErrorType `json:"type"`
	Message  string    `json:"message"`
	Provider string    `json:"provider,omitempty"`
	Model    string    `json:"model,omitempty"`
	Cause    error     `json:"-"`

	// HTTP details (if applicable).
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`

	Retryable bool `json:"retryable"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Cause != nil && msg == "" {
		msg = e.Cause.Error()
	} else if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Provider != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Provider, e.Type, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Type == t.Type
	}
	return false
}

func (e *Error) IsRetryable() bool { return e.Retryable }

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

func NewUnsupportedError(kind AdapterKind, message string) *Error {
	return &Error{Type: ErrorTypeUnsupported, Provider: kind.String(), Message: message}
}

func NewMalformedError(kind AdapterKind, model, message string, cause error) *Error {
	return &Error{Type: ErrorTypeMalformed, Provider: kind.String(), Model: model, Message: message, Cause: cause}
}

func NewStreamDecodeError(kind AdapterKind, model string, cause error) *Error {
	return &Error{Type: ErrorTypeStreamDecode, Provider: kind.String(), Model: model, Message: "decode stream frame", Cause: cause}
}

func NewValidationError(kind AdapterKind, message string) *Error {
	return &Error{Type: ErrorTypeValidation, Provider: kind.String(), Message: message}
}

// NewCredentialError names where the credential was expected to come from.
func NewCredentialError(kind AdapterKind, source string) *Error {
	return &Error{
		Type:     ErrorTypeCredential,
		Provider: kind.String(),
		Message:  fmt.Sprintf("no credential found (expected %s)", source),
	}
}

// NewHTTPError builds a transport failure carrying the upstream status.
func NewHTTPError(kind AdapterKind, statusCode int, body string) *Error {
	return &Error{
		Type:       ErrorTypeTransport,
		Provider:   kind.String(),
		Message:    fmt.Sprintf("HTTP %d", statusCode),
		StatusCode: statusCode,
		Body:       body,
		Retryable:  isRetryableStatus(statusCode),
	}
}

// NewTransportError wraps a failure reported by the transport collaborator.
// A *transport.StatusError keeps its status code; network timeouts are
// flagged retryable; context cancellation never is.
func NewTransportError(kind AdapterKind, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		if e.Provider == "" {
			e.Provider = kind.String()
		}
		return e
	}

	var se *transport.StatusError
	if errors.As(err, &se) {
		he := NewHTTPError(kind, se.StatusCode, string(se.Body))
		he.Cause = err
		return he
	}

	out := &Error{Type: ErrorTypeTransport, Provider: kind.String(), Cause: err}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return out
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		out.Retryable = true
	}
	return out
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// ---------------------------------------------------------------------------
// Predicates
// ---------------------------------------------------------------------------

func IsUnsupported(err error) bool       { return errors.Is(err, ErrUnsupportedOperation) }
func IsTransportFailure(err error) bool  { return errors.Is(err, ErrTransportFailure) }
func IsMalformed(err error) bool         { return errors.Is(err, ErrMalformedResponse) }
func IsCredentialMissing(err error) bool { return errors.Is(err, ErrCredentialMissing) }
func IsStreamDecode(err error) bool      { return errors.Is(err, ErrStreamDecode) }
func IsValidation(err error) bool        { return errors.Is(err, ErrValidation) }

// IsRetryableError reports the retry hint of a structured error.
func IsRetryableError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsRetryable()
	}
	return false
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
