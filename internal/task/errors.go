package task

import "errors"

// Sentinel errors returned by stores and task operations.
var (
	// ErrNotFound indicates the task or posting does not exist.
	ErrNotFound = errors.New("task: not found")

	// ErrResumeNotFound indicates the resume does not exist for the owner.
	ErrResumeNotFound = errors.New("task: resume not found")

	// ErrAlreadyClaimed indicates another worker claimed the task first.
	ErrAlreadyClaimed = errors.New("task: already claimed")

	// ErrInvalidTransition indicates a forbidden status change.
	ErrInvalidTransition = errors.New("task: invalid status transition")

	// ErrValidation marks request and recurrence validation failures.
	ErrValidation = errors.New("task: validation failed")
)
