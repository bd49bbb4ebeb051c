package domain

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed filter or pagination input.
	ErrValidation = errors.New("validation failed")
	// ErrInternal marks persistence, transaction and other unexpected failures.
	ErrInternal = errors.New("internal error")

	// ErrQuizNotFound indicates the quiz could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrQuestionNotFound indicates a question id is not part of the quiz.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
)

// Internal wraps err with a stack trace and marks it as ErrInternal.
// NotFound and Validation errors pass through unchanged.
func Internal(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrInternal) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInternal, pkgerrors.Wrap(err, msg))
}

// TxFailure marks a failed transaction as ErrInternal. A NotFound or
// Validation error raised inside the transaction is flattened into the
// message so it cannot leak out as a caller error.
func TxFailure(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return fmt.Errorf("%w: %w", ErrInternal, pkgerrors.Errorf("%s: %v", msg, err))
	}
	return Internal(err, msg)
}

// Validation builds an ErrValidation with a message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
