package registry

import (
	"errors"
	"fmt"
)

// ==================== Sentinel Errors ====================
// These can be checked with errors.Is()

var (
	// ErrEmptyBaseDir is returned when a base directory is empty
	ErrEmptyBaseDir = errors.New("base directory cannot be empty")

	// ErrInvalidBaseDir is returned for base directories that cannot be
	// stored as a key (relative paths, NUL bytes)
	ErrInvalidBaseDir = errors.New("invalid base directory")

	// ErrNotDirectory is returned when a base directory exists but is not a directory
	ErrNotDirectory = errors.New("not a directory")

	// ErrIsDirectory is returned when the registry path points at a directory
	ErrIsDirectory = errors.New("registry path is a directory")

	// ErrInvalidHostType is returned when a key carries an unknown host type
	ErrInvalidHostType = errors.New("invalid host type")

	// ErrInvalidPID is returned for non-positive process IDs
	ErrInvalidPID = errors.New("process ID must be positive")

	// ErrBucketNotFound is returned when a required bucket is missing
	ErrBucketNotFound = errors.New("registry bucket not found")
)

// ==================== Structured Error Types ====================

// DatabaseError wraps bbolt failures with the operation and bucket involved.
type DatabaseError struct {
	// Op is the operation that failed (e.g., "open", "create bucket", "delete bucket")
	Op string

	// Bucket names the bucket involved (empty if not applicable)
	Bucket string

	// Err is the underlying error
	Err error
}

func (e *DatabaseError) Error() string {
	if e.Bucket != "" {
		return fmt.Sprintf("registry %s [bucket: %s]: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// ValidationError reports an input that was rejected before touching the store.
type ValidationError struct {
	// Field is the name of the field that failed validation
	Field string

	// Value is the rejected value
	Value string

	// Err is the underlying sentinel error (e.g., ErrEmptyBaseDir)
	Err error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("validation failed [%s=%q]: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("validation failed [%s]: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
