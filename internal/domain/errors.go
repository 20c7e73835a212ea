package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrPermissionDeny = errors.New("permission denied")

	// ErrUnknownRole and ErrNodeNotFound are validation failures, distinct
	// from ordinary negative results; callers should treat them as
	// configuration errors, not retry them.
	ErrUnknownRole  = errors.New("unknown role")
	ErrNodeNotFound = errors.New("node not found")

	// ErrInjectionDetected is a first-class outcome, not an internal fault.
	// The pipeline rejects the request before any external call.
	ErrInjectionDetected = errors.New("query contains suspicious patterns")

	// ErrUnavailable is returned when the retrieval/generation collaborators
	// have not been wired into the pipeline.
	ErrUnavailable = errors.New("collaborator not configured")
)
