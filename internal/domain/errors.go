package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the caller's expected revision is stale.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates invalid input data.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVersionMismatch indicates the version does not belong to the artifact.
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrGenerationFailed indicates the model call or its reply was unusable.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrValidationFailed indicates JSON schema validation failed.
	ErrValidationFailed = errors.New("validation failed")
)

// InputValidationError reports a caller-supplied value that violates a
// length or count constraint.
type InputValidationError struct {
	Field      string
	Constraint string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Constraint)
}

func (e *InputValidationError) Unwrap() error { return ErrInvalidInput }

// NewInputError builds an InputValidationError.
func NewInputError(field, constraint string) *InputValidationError {
	return &InputValidationError{Field: field, Constraint: constraint}
}

// SchemaValidationError carries the first failing path of a model reply
// and the type that was expected there.
type SchemaValidationError struct {
	Path     string
	Expected string
	Message  string
}

func (e *SchemaValidationError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("schema validation failed at %s: expected %s", e.Path, e.Expected)
	}
	return fmt.Sprintf("schema validation failed at %s: %s", e.Path, e.Message)
}

func (e *SchemaValidationError) Unwrap() error { return ErrValidationFailed }
