package unillm

import "github.com/voocel/unillm/providers"

// Error is the structured error returned by every client call.
type Error = providers.Error

// ErrorType represents different categories of errors
type ErrorType = providers.ErrorType

const (
	ErrorTypeUnsupported  = providers.ErrorTypeUnsupported
	ErrorTypeTransport    = providers.ErrorTypeTransport
	ErrorTypeMalformed    = providers.ErrorTypeMalformed
	ErrorTypeCredential   = providers.ErrorTypeCredential
	ErrorTypeStreamDecode = providers.ErrorTypeStreamDecode
	ErrorTypeValidation   = providers.ErrorTypeValidation
)

// Sentinels for errors.Is.
var (
	ErrUnsupportedOperation = providers.ErrUnsupportedOperation
	ErrTransportFailure     = providers.ErrTransportFailure
	ErrMalformedResponse    = providers.ErrMalformedResponse
	ErrCredentialMissing    = providers.ErrCredentialMissing
	ErrStreamDecode         = providers.ErrStreamDecode
	ErrValidation           = providers.ErrValidation
)

// Error predicates
var (
	IsUnsupported       = providers.IsUnsupported
	IsTransportFailure  = providers.IsTransportFailure
	IsMalformed         = providers.IsMalformed
	IsCredentialMissing = providers.IsCredentialMissing
	IsStreamDecode      = providers.IsStreamDecode
	IsValidation        = providers.IsValidation
	IsRetryableError    = providers.IsRetryableError
	StatusCode          = providers.StatusCode
)
