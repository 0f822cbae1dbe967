package ingest

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ingestion core. DuplicateRecord is deliberately
// absent: a recognized duplicate is an Outcome, not an error.
var (
	ErrValidation       = errors.New("validation failed")
	ErrIdentityConflict = errors.New("identity conflict")
	ErrUnknownReference = errors.New("unknown reference")
	ErrStorageConflict  = errors.New("storage conflict")
	ErrTimeout          = errors.New("ingestion timed out")
	ErrNotFound         = errors.New("entity not found")

	ErrUnknownWebform = fmt.Errorf("unknown webform: %w", ErrUnknownReference)
	ErrUnknownPerson  = fmt.Errorf("unknown person: %w", ErrUnknownReference)
	ErrUnknownWebsite = fmt.Errorf("unknown website: %w", ErrUnknownReference)
)

// ValidationError is a malformed or missing required field. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Required-field failures reported per record.
var (
	ErrMissingEmail    = &ValidationError{Field: "email", Reason: "missing email"}
	ErrMissingURL      = &ValidationError{Field: "url", Reason: "missing url"}
	ErrMissingName     = &ValidationError{Field: "name", Reason: "missing name"}
	ErrMissingIdentity = &ValidationError{Field: "person_id", Reason: "person_id or email in payload is required"}
)

// ConflictError describes candidate keys that resolved to different
// stored entities.
type ConflictError struct {
	Kind    string
	Matches []Match
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s keys resolve to different entities %v", ErrIdentityConflict, e.Kind, e.Matches)
}

func (e *ConflictError) Unwrap() error { return ErrIdentityConflict }

// Class maps an ingestion error to a short stable label used in batch
// error lists, metrics and API error codes.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrIdentityConflict):
		return "identity_conflict"
	case errors.Is(err, ErrUnknownReference):
		return "unknown_reference"
	case errors.Is(err, ErrStorageConflict):
		return "storage_conflict"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "internal"
}
