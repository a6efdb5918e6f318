package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrValidation      = errors.New("validation failed")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrExternalService = errors.New("external service failure")
	ErrTemporary       = errors.New("temporary failure")
	ErrPersistence     = errors.New("persistence failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// DuplicateFileError is returned when the gateway already holds a file with
// the same display name and the caller did not ask to overwrite it.
type DuplicateFileError struct {
	DisplayName string
	ExistingRef string
}

func (e *DuplicateFileError) Error() string {
	return fmt.Sprintf("file %q already exists", e.DisplayName)
}

func (e *DuplicateFileError) Is(target error) bool {
	return target == ErrConflict
}
