package task

import (
	"context"
	"time"
)

// Store persists tasks and postings. Every method is atomic at single-row
// granularity; callers never rely on multi-row transactions.
type Store interface {
	// CreateTask inserts a new task. The ID must be set by the caller.
	CreateTask(ctx context.Context, t *Task) error

	// GetTask returns the task with the given ID or ErrNotFound.
	GetTask(ctx context.Context, id string) (*Task, error)

	// UpdateTask writes the mutable fields of t. It never re-activates a
	// task that was deactivated concurrently: if the stored row is inactive,
	// it stays inactive and its next execution time stays empty.
	UpdateTask(ctx context.Context, t *Task) error

	// ClaimTask atomically moves a due recurring task to running and returns
	// the claimed row. It returns ErrAlreadyClaimed when the task is no
	// longer recurring, active and due at now.
	ClaimTask(ctx context.Context, id string, now time.Time) (*Task, error)

	// QueryDueRecurringTasks returns active recurring tasks whose next
	// execution time is at or before now, earliest first, at most limit.
	QueryDueRecurringTasks(ctx context.Context, now time.Time, limit int) ([]*Task, error)

	// ReleaseStaleClaims returns active recurring tasks stuck in running
	// since before olderThan, or created before olderThan and never started,
	// to recurring, and reports how many were released.
	ReleaseStaleClaims(ctx context.Context, olderThan time.Time) (int, error)

	// UpsertPosting inserts p unless a posting with the same owner and
	// canonical key exists. It reports whether a row was created.
	UpsertPosting(ctx context.Context, p *Posting) (bool, error)

	// UpdatePostingScore writes the score and analysis of a posting.
	// Repeated calls overwrite the previous values.
	UpdatePostingScore(ctx context.Context, id string, score int, analysis Analysis) error

	// ListTaskPostings returns the postings first found by the given task.
	ListTaskPostings(ctx context.Context, taskID string) ([]*Posting, error)
}

// ResumeStore resolves resumes.
type ResumeStore interface {
	CreateResume(ctx context.Context, r *Resume) error

	// GetResume returns the resume owned by ownerID or ErrResumeNotFound.
	GetResume(ctx context.Context, ownerID, id string) (*Resume, error)
}
