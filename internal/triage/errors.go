package triage

import "fmt"

// ValidationError reports an input that failed an enum or range constraint.
// Nothing is written when one is returned; the caller fixes and resubmits.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a referenced identifier that does not exist.
type NotFoundError struct {
	Kind string // "email" or "follow_up"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// ReferentialError reports an obligation created against a nonexistent email.
// Unreachable through the atomic ingestion path; guards direct tracker use.
type ReferentialError struct {
	EmailID int64
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("follow-up references nonexistent email %d", e.EmailID)
}

// StorageError reports a durability failure. Fatal to the enclosing unit of
// work; retry policy belongs to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
