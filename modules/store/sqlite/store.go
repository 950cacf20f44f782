package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/jobagent/internal/task"
)

// timeLayout is fixed width so stored timestamps compare as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements task.Store and task.ResumeStore on a SQLite database.
type Store struct {
	db *sql.DB
}

// Compile-time interface guards.
var (
	_ task.Store       = (*Store)(nil)
	_ task.ResumeStore = (*Store)(nil)
)

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const taskColumns = `id, owner_id, instructions, status, interval_hours, max_executions,
	execution_count, last_execution_at, next_execution_at, is_active,
	started_at, completed_at, execution_result, error, created_at, updated_at`

// CreateTask implements task.Store.
func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	instr, err := json.Marshal(t.Instructions)
	if err != nil {
		return fmt.Errorf("sqlite: encode instructions: %w", err)
	}
	result, err := encodeResult(t.Result)
	if err != nil {
		return err
	}

	var interval, maxExec any
	maxExec = 0
	if t.Recurrence != nil {
		interval = t.Recurrence.IntervalHours
		maxExec = t.Recurrence.MaxExecutions
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, string(instr), string(t.Status), interval, maxExec,
		t.ExecutionCount, nullTime(t.LastExecutionAt), nullTime(t.NextExecutionAt), t.IsActive,
		nullTime(t.StartedAt), nullTime(t.CompletedAt), result, t.Error,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create task %s: %w", t.ID, err)
	}
	return nil
}

// GetTask implements task.Store.
func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get task %s: %w", id, err)
	}
	return t, nil
}

// UpdateTask implements task.Store. The SET expressions read the row as it
// was before the update, so a concurrent deactivation always wins.
func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	instr, err := json.Marshal(t.Instructions)
	if err != nil {
		return fmt.Errorf("sqlite: encode instructions: %w", err)
	}
	result, err := encodeResult(t.Result)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET
			instructions      = ?,
			status            = ?,
			execution_count   = ?,
			last_execution_at = ?,
			next_execution_at = CASE WHEN is_active THEN ? ELSE NULL END,
			is_active         = (is_active AND ?),
			started_at        = ?,
			completed_at      = ?,
			execution_result  = ?,
			error             = ?,
			updated_at        = ?
		 WHERE id = ?`,
		string(instr), string(t.Status), t.ExecutionCount,
		nullTime(t.LastExecutionAt), nullTime(t.NextExecutionAt), t.IsActive,
		nullTime(t.StartedAt), nullTime(t.CompletedAt), result, t.Error,
		formatTime(time.Now()), t.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update task %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return task.ErrNotFound
	}
	return nil
}

// ClaimTask implements task.Store.
func (s *Store) ClaimTask(ctx context.Context, id string, now time.Time) (*task.Task, error) {
	ts := formatTime(now)
	row := s.db.QueryRowContext(ctx,
		`UPDATE tasks SET status = 'running', started_at = ?, updated_at = ?
		 WHERE id = ?
		   AND status = 'recurring'
		   AND is_active = 1
		   AND next_execution_at IS NOT NULL
		   AND next_execution_at <= ?
		 RETURNING `+taskColumns,
		ts, ts, id, ts,
	)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrAlreadyClaimed
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: claim task %s: %w", id, err)
	}
	return t, nil
}

// QueryDueRecurringTasks implements task.Store.
func (s *Store) QueryDueRecurringTasks(ctx context.Context, now time.Time, limit int) ([]*task.Task, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE interval_hours IS NOT NULL
		   AND is_active = 1
		   AND status = 'recurring'
		   AND next_execution_at IS NOT NULL
		   AND next_execution_at <= ?
		 ORDER BY next_execution_at, id
		 LIMIT ?`,
		formatTime(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query due tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan due task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: query due tasks: %w", err)
	}
	return out, nil
}

// ReleaseStaleClaims implements task.Store.
func (s *Store) ReleaseStaleClaims(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'recurring', updated_at = ?
		 WHERE interval_hours IS NOT NULL
		   AND is_active = 1
		   AND ((status = 'running' AND started_at IS NOT NULL AND started_at < ?)
		     OR (status = 'pending' AND created_at < ?))`,
		formatTime(time.Now()), formatTime(olderThan), formatTime(olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: release stale claims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: release stale claims: %w", err)
	}
	return int(n), nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(sc rowScanner) (*task.Task, error) {
	var (
		t                      task.Task
		instr, status          string
		createdAt, updatedAt   string
		interval               sql.NullInt64
		maxExec                int
		lastAt, nextAt         sql.NullString
		startedAt, completedAt sql.NullString
		result                 sql.NullString
	)
	if err := sc.Scan(
		&t.ID, &t.OwnerID, &instr, &status, &interval, &maxExec,
		&t.ExecutionCount, &lastAt, &nextAt, &t.IsActive,
		&startedAt, &completedAt, &result, &t.Error, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	t.Status = task.Status(status)
	if err := json.Unmarshal([]byte(instr), &t.Instructions); err != nil {
		return nil, fmt.Errorf("decode instructions: %w", err)
	}
	if interval.Valid {
		t.Recurrence = &task.Recurrence{IntervalHours: int(interval.Int64), MaxExecutions: maxExec}
	}
	if result.Valid && result.String != "" {
		t.Result = &task.Result{}
		if err := json.Unmarshal([]byte(result.String), t.Result); err != nil {
			return nil, fmt.Errorf("decode execution result: %w", err)
		}
	}

	var err error
	if t.LastExecutionAt, err = parseNullTime(lastAt); err != nil {
		return nil, err
	}
	if t.NextExecutionAt, err = parseNullTime(nextAt); err != nil {
		return nil, err
	}
	if t.StartedAt, err = parseNullTime(startedAt); err != nil {
		return nil, err
	}
	if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeResult(r *task.Result) (any, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode execution result: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
