package session

import (
	"errors"
	"fmt"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

var (
	// ErrInvalidTimeWindow is returned when executeAfter is not strictly before executeBefore
	ErrInvalidTimeWindow = errors.New("invalid time window")
	// ErrUnresolvableMethod is returned when an allowed method has neither selector nor entrypoint
	ErrUnresolvableMethod = errors.New("allowed method has neither selector nor entrypoint")
	// ErrAmbiguousMethod is returned when an allowed method's selector and entrypoint disagree
	ErrAmbiguousMethod = errors.New("allowed method selector does not match its entrypoint")
	// ErrMissingSignature is returned when redeeming a grant that was never signed
	ErrMissingSignature = errors.New("grant has no signature")
	// ErrUnsupportedVersion is returned for protocol versions other than v1 and v2
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	// ErrUnsupportedFlow is returned for unknown flows
	ErrUnsupportedFlow = errors.New("unsupported session flow")
	// ErrSignerFailure wraps errors returned by the account while signing
	ErrSignerFailure = errors.New("account failed to sign grant")
	// ErrSignAborted is returned when a before-sign hook vetoes a request
	ErrSignAborted = errors.New("grant signing aborted")
	// ErrNilGrant is returned when no grant is supplied for redemption
	ErrNilGrant = errors.New("grant is nil")
	// ErrMalformedNumber is returned for identifiers or amounts that are not valid felts
	ErrMalformedNumber = starknet.ErrMalformedNumber
)

// SessionError represents a session-protocol error with a stable code
type SessionError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.err
}

// Common error codes
const (
	ErrCodeInvalidTimeWindow  = "invalid_time_window"
	ErrCodeInvalidMethod      = "invalid_allowed_method"
	ErrCodeMissingSignature   = "missing_signature"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeUnsupportedFlow    = "unsupported_flow"
	ErrCodeMalformedNumber    = "malformed_number"
	ErrCodeInvalidRequest     = "invalid_request"
	ErrCodeSignerFailure      = "signer_failure"
	ErrCodeInternal           = "internal_error"
)

// NewSessionError creates a new session error
func NewSessionError(code, message string, details map[string]interface{}) *SessionError {
	return &SessionError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// AsSessionError classifies err under a stable code. Errors that already are
// SessionErrors are returned unchanged.
func AsSessionError(err error) *SessionError {
	if err == nil {
		return nil
	}
	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		return sessionErr
	}

	code := ErrCodeInternal
	switch {
	case errors.Is(err, ErrInvalidTimeWindow):
		code = ErrCodeInvalidTimeWindow
	case errors.Is(err, ErrUnresolvableMethod), errors.Is(err, ErrAmbiguousMethod):
		code = ErrCodeInvalidMethod
	case errors.Is(err, ErrMissingSignature), errors.Is(err, ErrNilGrant):
		code = ErrCodeMissingSignature
	case errors.Is(err, ErrSignerFailure), errors.Is(err, ErrSignAborted):
		code = ErrCodeSignerFailure
	case errors.Is(err, ErrUnsupportedVersion):
		code = ErrCodeUnsupportedVersion
	case errors.Is(err, ErrUnsupportedFlow):
		code = ErrCodeUnsupportedFlow
	case errors.Is(err, ErrMalformedNumber), errors.Is(err, starknet.ErrFeltOverflow),
		errors.Is(err, starknet.ErrShortStringTooLong), errors.Is(err, starknet.ErrShortStringNotASCII):
		code = ErrCodeMalformedNumber
	}
	return &SessionError{Code: code, Message: err.Error(), err: err}
}
