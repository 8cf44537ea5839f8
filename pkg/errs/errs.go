// Package errs defines the gateway's internal failure taxonomy.
//
// Every component in the request pipeline returns either success or a
// *errs.Error. The HTTP error mapper is the single place where these are
// translated into external responses, so the mapping from Kind to
// (status, code) lives here next to the kinds themselves.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an internal failure.
type Kind int

const (
	// KindSessionInvalid covers missing/malformed credentials, unknown
	// sessions, partner mismatches, missing relationship selection and
	// signature failures. Intentionally coarse so responses do not leak
	// which check failed.
	KindSessionInvalid Kind = iota

	// KindSessionServiceUnavailable means the session store could not be
	// consulted (breaker open or read failure).
	KindSessionServiceUnavailable

	// KindInsufficientPermissions means the session is valid but lacks a
	// permission the route requires.
	KindInsufficientPermissions

	// KindDownstreamUnavailable means the upstream breaker is open or the
	// proxy could not reach the upstream.
	KindDownstreamUnavailable

	// KindCircuitOpen is a breaker-open rejection from a breaker that is
	// neither "redis" nor "downstream".
	KindCircuitOpen

	// KindGateway surfaces an upstream application error status as-is.
	KindGateway

	// KindInternal is everything else.
	KindInternal
)

// Stable external error codes, one per kind.
const (
	CodeInvalidSession         = "INVALID_SESSION"
	CodeSessionUnavailable     = "SESSION_SERVICE_UNAVAILABLE"
	CodeInsufficientPermission = "INSUFFICIENT_PERMISSIONS"
	CodeServiceUnavailable     = "SERVICE_TEMPORARILY_UNAVAILABLE"
	CodeCircuitBreakerOpen     = "CIRCUIT_BREAKER_OPEN"
	CodeGatewayError           = "GATEWAY_ERROR"
	CodeInternalError          = "INTERNAL_ERROR"
)

// Error is the typed failure passed from pipeline components to the error
// mapper. Message is safe for external exposure; the wrapped cause is not.
type Error struct {
	Kind    Kind
	Message string

	// Breaker is the originating breaker policy name for breaker-open
	// rejections, empty otherwise.
	Breaker string

	// status overrides the kind's default status for KindGateway.
	status int

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Status returns the external HTTP status for this error.
func (e *Error) Status() int {
	if e.Kind == KindGateway && e.status != 0 {
		return e.status
	}
	switch e.Kind {
	case KindSessionInvalid, KindSessionServiceUnavailable:
		return http.StatusUnauthorized
	case KindInsufficientPermissions:
		return http.StatusForbidden
	case KindDownstreamUnavailable, KindCircuitOpen:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the stable external error code for this error.
func (e *Error) Code() string {
	switch e.Kind {
	case KindSessionInvalid:
		return CodeInvalidSession
	case KindSessionServiceUnavailable:
		return CodeSessionUnavailable
	case KindInsufficientPermissions:
		return CodeInsufficientPermission
	case KindDownstreamUnavailable:
		return CodeServiceUnavailable
	case KindCircuitOpen:
		return CodeCircuitBreakerOpen
	case KindGateway:
		return CodeGatewayError
	default:
		return CodeInternalError
	}
}

// SessionInvalid builds a 401 INVALID_SESSION error.
func SessionInvalid(message string) *Error {
	return &Error{Kind: KindSessionInvalid, Message: message}
}

// SessionInvalidf is SessionInvalid with formatting.
func SessionInvalidf(format string, args ...any) *Error {
	return &Error{Kind: KindSessionInvalid, Message: fmt.Sprintf(format, args...)}
}

// SessionUnavailable builds a 401 SESSION_SERVICE_UNAVAILABLE error.
func SessionUnavailable(message string, cause error) *Error {
	return &Error{Kind: KindSessionServiceUnavailable, Message: message, cause: cause}
}

// InsufficientPermissions builds a 403 INSUFFICIENT_PERMISSIONS error.
func InsufficientPermissions(message string) *Error {
	return &Error{Kind: KindInsufficientPermissions, Message: message}
}

// DownstreamUnavailable builds a 503 SERVICE_TEMPORARILY_UNAVAILABLE error.
func DownstreamUnavailable(message string, cause error) *Error {
	return &Error{Kind: KindDownstreamUnavailable, Message: message, cause: cause}
}

// Gateway surfaces an upstream status >= 400 with the GATEWAY_ERROR code.
func Gateway(status int, message string) *Error {
	return &Error{Kind: KindGateway, Message: message, status: status}
}

// Internal builds a 500 INTERNAL_ERROR wrapping the cause.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: cause}
}

// BreakerOpen maps a breaker-open rejection to the kind the error mapper
// must render, keyed by the originating policy name.
func BreakerOpen(name string, cause error) *Error {
	switch name {
	case "redis":
		return &Error{
			Kind:    KindSessionServiceUnavailable,
			Message: "session service temporarily unavailable",
			Breaker: name,
			cause:   cause,
		}
	case "downstream":
		return &Error{
			Kind:    KindDownstreamUnavailable,
			Message: "service temporarily unavailable",
			Breaker: name,
			cause:   cause,
		}
	default:
		return &Error{
			Kind:    KindCircuitOpen,
			Message: "circuit breaker open",
			Breaker: name,
			cause:   cause,
		}
	}
}

// From converts an arbitrary error into a *Error, passing typed errors
// through unchanged and wrapping everything else as KindInternal.
func From(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return Internal("internal error", err)
}
