package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flemzord/jobagent/internal/task"
)

// Store implements task.Store and task.ResumeStore on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time interface guards.
var (
	_ task.Store       = (*Store)(nil)
	_ task.ResumeStore = (*Store)(nil)
)

// Open connects to cfg.DSN, verifies the connection and migrates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}
	if err := migrate(connectCtx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const taskColumns = `id, owner_id, instructions, status, interval_hours, max_executions,
	execution_count, last_execution_at, next_execution_at, is_active,
	started_at, completed_at, execution_result, error, created_at, updated_at`

// CreateTask implements task.Store.
func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	instr, err := json.Marshal(t.Instructions)
	if err != nil {
		return fmt.Errorf("postgres: encode instructions: %w", err)
	}
	result, err := encodeResult(t.Result)
	if err != nil {
		return err
	}

	var interval *int
	maxExec := 0
	if t.Recurrence != nil {
		iv := t.Recurrence.IntervalHours
		interval = &iv
		maxExec = t.Recurrence.MaxExecutions
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		t.ID, t.OwnerID, instr, string(t.Status), interval, maxExec,
		t.ExecutionCount, t.LastExecutionAt, t.NextExecutionAt, t.IsActive,
		t.StartedAt, t.CompletedAt, result, t.Error, t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: create task %s: %w", t.ID, err)
	}
	return nil
}

// GetTask implements task.Store.
func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, task.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get task %s: %w", id, err)
	}
	return t, nil
}

// UpdateTask implements task.Store. Like every UPDATE in Postgres, the SET
// expressions see the pre-update row, so a concurrent deactivation wins.
func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	instr, err := json.Marshal(t.Instructions)
	if err != nil {
		return fmt.Errorf("postgres: encode instructions: %w", err)
	}
	result, err := encodeResult(t.Result)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET
			instructions      = $1,
			status            = $2,
			execution_count   = $3,
			last_execution_at = $4,
			next_execution_at = CASE WHEN is_active THEN $5::timestamptz ELSE NULL END,
			is_active         = (is_active AND $6::boolean),
			started_at        = $7,
			completed_at      = $8,
			execution_result  = $9,
			error             = $10,
			updated_at        = now()
		 WHERE id = $11`,
		instr, string(t.Status), t.ExecutionCount,
		t.LastExecutionAt, t.NextExecutionAt, t.IsActive,
		t.StartedAt, t.CompletedAt, result, t.Error, t.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update task %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return task.ErrNotFound
	}
	return nil
}

// ClaimTask implements task.Store. Row-level locking on UPDATE makes
// concurrent claims of one row serialize; the loser re-evaluates the WHERE
// clause against the committed row and matches nothing.
func (s *Store) ClaimTask(ctx context.Context, id string, now time.Time) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE tasks SET status = 'running', started_at = $2, updated_at = $2
		 WHERE id = $1
		   AND status = 'recurring'
		   AND is_active
		   AND next_execution_at IS NOT NULL
		   AND next_execution_at <= $2
		 RETURNING `+taskColumns,
		id, now.UTC(),
	)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, task.ErrAlreadyClaimed
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: claim task %s: %w", id, err)
	}
	return t, nil
}

// QueryDueRecurringTasks implements task.Store.
func (s *Store) QueryDueRecurringTasks(ctx context.Context, now time.Time, limit int) ([]*task.Task, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE interval_hours IS NOT NULL
		   AND is_active
		   AND status = 'recurring'
		   AND next_execution_at IS NOT NULL
		   AND next_execution_at <= $1
		 ORDER BY next_execution_at, id
		 LIMIT $2`,
		now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: query due tasks: %w", err)
	}
	defer rows.Close()

	var out []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan due task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query due tasks: %w", err)
	}
	return out, nil
}

// ReleaseStaleClaims implements task.Store.
func (s *Store) ReleaseStaleClaims(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = 'recurring', updated_at = now()
		 WHERE interval_hours IS NOT NULL
		   AND is_active
		   AND ((status = 'running' AND started_at < $1)
		     OR (status = 'pending' AND created_at < $1))`,
		olderThan.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: release stale claims: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// UpsertPosting implements task.Store.
func (s *Store) UpsertPosting(ctx context.Context, p *task.Posting) (bool, error) {
	status := p.ApplicationStatus
	if status == "" {
		status = task.ApplicationNotApplied
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO postings (id, task_id, owner_id, canonical_key, title, company, location,
			salary, url, work_type, description, source_platform, posted_at, saved,
			application_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (owner_id, canonical_key) DO NOTHING`,
		p.ID, p.TaskID, p.OwnerID, p.CanonicalKey, p.Title, p.Company, p.Location,
		p.Salary, p.URL, p.WorkType, p.Description, p.SourcePlatform, p.PostedAt, p.Saved,
		status, p.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("postgres: upsert posting %s: %w", p.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdatePostingScore implements task.Store.
func (s *Store) UpdatePostingScore(ctx context.Context, id string, score int, analysis task.Analysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("postgres: encode analysis: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE postings SET match_score = $1, analysis = $2 WHERE id = $3`, score, data, id)
	if err != nil {
		return fmt.Errorf("postgres: update posting score %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return task.ErrNotFound
	}
	return nil
}

// ListTaskPostings implements task.Store.
func (s *Store) ListTaskPostings(ctx context.Context, taskID string) ([]*task.Posting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, task_id, owner_id, canonical_key, title, company, location, salary,
			url, work_type, description, source_platform, posted_at, match_score, analysis,
			saved, application_status, created_at
		 FROM postings WHERE task_id = $1 ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list postings for %s: %w", taskID, err)
	}
	defer rows.Close()

	var out []*task.Posting
	for rows.Next() {
		var (
			p        task.Posting
			analysis []byte
		)
		if err := rows.Scan(
			&p.ID, &p.TaskID, &p.OwnerID, &p.CanonicalKey, &p.Title, &p.Company, &p.Location, &p.Salary,
			&p.URL, &p.WorkType, &p.Description, &p.SourcePlatform, &p.PostedAt, &p.MatchScore, &analysis,
			&p.Saved, &p.ApplicationStatus, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan posting: %w", err)
		}
		if len(analysis) > 0 {
			p.Analysis = &task.Analysis{}
			if err := json.Unmarshal(analysis, p.Analysis); err != nil {
				return nil, fmt.Errorf("postgres: decode analysis: %w", err)
			}
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list postings for %s: %w", taskID, err)
	}
	return out, nil
}

// CreateResume implements task.ResumeStore.
func (s *Store) CreateResume(ctx context.Context, r *task.Resume) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resumes (id, owner_id, name, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.OwnerID, r.Name, r.Content, r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: create resume %s: %w", r.ID, err)
	}
	return nil
}

// GetResume implements task.ResumeStore.
func (s *Store) GetResume(ctx context.Context, ownerID, id string) (*task.Resume, error) {
	var r task.Resume
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, content, created_at FROM resumes WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(&r.ID, &r.OwnerID, &r.Name, &r.Content, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, task.ErrResumeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get resume %s: %w", id, err)
	}
	return &r, nil
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(sc rowScanner) (*task.Task, error) {
	var (
		t             task.Task
		instr, result []byte
		status        string
		interval      *int
		maxExecutions int
	)
	if err := sc.Scan(
		&t.ID, &t.OwnerID, &instr, &status, &interval, &maxExecutions,
		&t.ExecutionCount, &t.LastExecutionAt, &t.NextExecutionAt, &t.IsActive,
		&t.StartedAt, &t.CompletedAt, &result, &t.Error, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.Status = task.Status(status)
	if err := json.Unmarshal(instr, &t.Instructions); err != nil {
		return nil, fmt.Errorf("decode instructions: %w", err)
	}
	if interval != nil {
		t.Recurrence = &task.Recurrence{IntervalHours: *interval, MaxExecutions: maxExecutions}
	}
	if len(result) > 0 {
		t.Result = &task.Result{}
		if err := json.Unmarshal(result, t.Result); err != nil {
			return nil, fmt.Errorf("decode execution result: %w", err)
		}
	}
	return &t, nil
}

// encodeResult returns nil for a nil result so the column stays NULL.
func encodeResult(r *task.Result) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode execution result: %w", err)
	}
	return data, nil
}
