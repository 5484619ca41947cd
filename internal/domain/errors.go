package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz id does not exist in the store.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizClosed indicates the quiz is not currently offered to students.
	ErrQuizClosed = errors.New("quiz is not open to students")
	// ErrAttemptActive is returned when a session tries to start a second attempt.
	ErrAttemptActive = errors.New("an attempt is already in progress")
	// ErrNoAttempt is returned when an operation requires an active attempt.
	ErrNoAttempt = errors.New("no attempt in progress")
	// ErrValidation wraps user-input validation failures (missing name/email,
	// out-of-range answer indices). Callers match it with errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyDocument indicates no text could be extracted from an upload.
	ErrEmptyDocument = errors.New("document contains no extractable text")
	// ErrNoContent indicates the generator found no usable sentences.
	ErrNoContent = errors.New("text has no sentences suitable for question generation")
	// ErrPersistFailed wraps a storage write failure. The in-memory mutation
	// is kept; the caller surfaces the divergence instead of rolling back.
	ErrPersistFailed = errors.New("persist failed")
)
