package authflow

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeAuthRejected       = "AUTH_REJECTED"
	textCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	textCodeMalformedResponse  = "MALFORMED_RESPONSE"
	textCodeBackendRejected    = "BACKEND_REJECTED"
	textCodeFlowBusy           = "FLOW_BUSY"
	textCodeInvalidFlowJump    = "INVALID_FLOW_TRANSITION"
	textCodeNoPendingUser      = "NO_PENDING_USER"
)

// ErrAuthRejected is the explicit backend rejection: HTTP 401/403 or a
// success=false identity payload. It always clears or blocks a session and
// is never retried silently.
var ErrAuthRejected = goerrors.New("authentication rejected", goerrors.CategoryAuth).
	WithTextCode(textCodeAuthRejected).
	WithCode(goerrors.CodeUnauthorized)

// ErrBackendUnavailable covers everything without an explicit rejection
// signal: network failures, unexpected statuses. Session state must be
// preserved when it is returned.
var ErrBackendUnavailable = goerrors.New("backend unavailable", goerrors.CategoryOperation).
	WithTextCode(textCodeBackendUnavailable)

// ErrMalformedResponse is a well-delivered but undecodable payload. Treated
// as transient, same as a network blip.
var ErrMalformedResponse = goerrors.New("malformed backend response", goerrors.CategoryOperation).
	WithTextCode(textCodeMalformedResponse)

// ErrFlowBusy is returned when a view submission is issued while the
// previous one for the same flow is still in flight.
var ErrFlowBusy = goerrors.New("a submission is already in flight", goerrors.CategoryConflict).
	WithTextCode(textCodeFlowBusy).
	WithCode(goerrors.CodeConflict)

// ErrInvalidFlowTransition is returned when a requested view change is not
// in the transition graph.
var ErrInvalidFlowTransition = goerrors.New("invalid credential flow transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidFlowJump).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidSessionTransition is returned when a session state change is not
// allowed, e.g. anything trying to move back to unresolved.
var ErrInvalidSessionTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode("INVALID_SESSION_TRANSITION").
	WithCode(goerrors.CodeBadRequest)

// ErrNoPendingUser is returned when a code submission has no user id to bind
// to, e.g. a reset attempted without a forgot-password round trip.
var ErrNoPendingUser = goerrors.New("no pending user for this step", goerrors.CategoryValidation).
	WithTextCode(textCodeNoPendingUser).
	WithCode(goerrors.CodeBadRequest)

// BusinessRejection wraps a backend success=false reason: the request
// worked, the backend said no (wrong OTP, duplicate email). State is left
// unchanged by callers and the reason is surfaced inline.
func BusinessRejection(reason string) *goerrors.Error {
	if reason == "" {
		reason = "request rejected"
	}
	return goerrors.New(reason, goerrors.CategoryValidation).
		WithTextCode(textCodeBackendRejected).
		WithCode(goerrors.CodeBadRequest)
}

// FieldRejection scopes a backend rejection to one input field.
func FieldRejection(field, reason string) *goerrors.Error {
	return BusinessRejection(reason).WithMetadata(map[string]any{"field": field})
}

// IsAuthRejection reports whether err is an explicit authentication
// rejection, the only failure class that evicts a session.
func IsAuthRejection(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	switch richErr.Category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return true
	default:
		return false
	}
}

// IsTransient reports whether err should be treated as a temporary condition
// that must not evict the session or abort the flow.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		// unclassified errors get the conservative treatment
		return true
	}
	return richErr.Category == goerrors.CategoryOperation
}

// IsBusinessRejection reports whether err is a backend success=false with a
// human readable reason.
func IsBusinessRejection(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryValidation
}

// messageFromError extracts the human readable message to surface inline.
func messageFromError(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}

// FieldFromError returns the input field a rejection is scoped to, if any.
func FieldFromError(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return ""
	}
	if richErr.Metadata == nil {
		return ""
	}
	if field, ok := richErr.Metadata["field"].(string); ok {
		return field
	}
	return ""
}
