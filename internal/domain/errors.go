package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur while building KYC records and dossiers.
var (
	// ErrFormat indicates that a document field failed its format constraint.
	ErrFormat = errors.New("invalid field format")

	// ErrIncompleteDossier indicates that a required document is missing
	// from a dossier.
	ErrIncompleteDossier = errors.New("incomplete dossier")

	// ErrUnknownKind indicates that a document kind is not one of the five
	// supported kinds.
	ErrUnknownKind = errors.New("unknown document kind")

	// ErrUnvalidatedRecord indicates that a document record was not produced
	// by its constructor and therefore never passed format validation.
	ErrUnvalidatedRecord = errors.New("document record was not validated")
)

// FormatError reports a field that failed its format constraint when a
// document record was constructed. A record that produced a FormatError
// does not exist.
type FormatError struct {
	// Kind is the document kind being constructed.
	Kind Kind

	// Field is the JSON name of the offending field.
	Field string

	// Expected describes the constraint, e.g. "exactly 12 characters".
	Expected string

	// Value is the normalized value that was rejected.
	Value string
}

// Error implements the error interface for FormatError.
func (e *FormatError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: field %s: expected %s", e.Kind, e.Field, e.Expected)
	}
	return fmt.Sprintf("%s: field %s: expected %s, got %q", e.Kind, e.Field, e.Expected, e.Value)
}

// Unwrap returns ErrFormat so callers can match with errors.Is.
func (e *FormatError) Unwrap() error { return ErrFormat }

// NewFormatError creates a new FormatError with the given details.
func NewFormatError(kind Kind, field, expected, value string) *FormatError {
	return &FormatError{
		Kind:     kind,
		Field:    field,
		Expected: expected,
		Value:    value,
	}
}

// IncompleteDossierError names every required role that was missing when a
// dossier was assembled.
type IncompleteDossierError struct {
	// Missing lists the absent roles in canonical order.
	Missing []Role
}

// Error implements the error interface for IncompleteDossierError.
func (e *IncompleteDossierError) Error() string {
	names := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		names[i] = string(r)
	}
	return fmt.Sprintf("incomplete dossier: missing %s", strings.Join(names, ", "))
}

// Unwrap returns ErrIncompleteDossier so callers can match with errors.Is.
func (e *IncompleteDossierError) Unwrap() error { return ErrIncompleteDossier }

// Has reports whether role is among the missing roles.
func (e *IncompleteDossierError) Has(role Role) bool {
	for _, r := range e.Missing {
		if r == role {
			return true
		}
	}
	return false
}

// NewIncompleteDossierError creates an IncompleteDossierError for the given roles.
func NewIncompleteDossierError(missing ...Role) *IncompleteDossierError {
	return &IncompleteDossierError{Missing: missing}
}

// ExtractionError represents a failure of the external extraction service
// for a single document. It never affects other documents of the dossier.
type ExtractionError struct {
	// Source names the document (usually a file name) that failed.
	Source string

	// Stage is "load", "classify" or "extract".
	Stage string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for ExtractionError.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error: source=%s, stage=%s, err=%v", e.Source, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExtractionError) Unwrap() error { return e.Err }

// NewExtractionError creates a new ExtractionError with the given details.
func NewExtractionError(source, stage string, err error) *ExtractionError {
	return &ExtractionError{
		Source: source,
		Stage:  stage,
		Err:    err,
	}
}
