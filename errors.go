package adminAuth

import "errors"

var (
	// ErrDuplicateEmail is returned when an email is already held by another account,
	// compared case-insensitively.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUnknownEmail is returned by the local backend when no account has the email.
	ErrUnknownEmail = errors.New("email not registered")
	// ErrInvalidCredential is returned when a secret does not match.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrPermissionDenied is returned when the actor may not perform the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound is returned when the target account does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrConnectivity is returned when a backend cannot be reached.
	ErrConnectivity = errors.New("backend unreachable")

	// ErrInvalidRole is returned for role values outside the known set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidInput is returned for empty names, emails, or secrets.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotAuthenticated is returned by operations on the current user when no session is current.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSuperseded is returned when a login or registration completed after a logout or
	// a newer login; its result was discarded.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrTooManyAttempts is returned by Login while the email or client IP is throttled.
	ErrTooManyAttempts = errors.New("too many login attempts")
	// ErrNotStarted is returned by operations invoked before Service.Start.
	ErrNotStarted = errors.New("service not started")
	// ErrServiceClosed is returned by operations invoked after Service.Close.
	ErrServiceClosed = errors.New("service closed")
)
