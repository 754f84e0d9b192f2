package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. The API layer maps
// each of these to a distinct HTTP status so the UI can render a specific
// message instead of a generic failure.

var (
	// Registry errors
	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidProject  = errors.New("invalid project definition")

	// Ledger errors
	ErrCreditNotFound = errors.New("credit not found")
	ErrAlreadyJoined  = errors.New("contributor already joined this project")
	ErrAlreadyDecided = errors.New("credit already decided")
	ErrEmptyReason    = errors.New("reject reason must not be empty")

	// Workflow errors
	ErrMissingIdentity = errors.New("contributor email and name are required")
	ErrInvalidDecision = errors.New("decision must be approve or reject")

	// Admin errors
	ErrForbidden = errors.New("admin secret mismatch")
)
