package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flemzord/jobagent/internal/task"
)

const postingColumns = `id, task_id, owner_id, canonical_key, title, company, location, salary,
	url, work_type, description, source_platform, posted_at, match_score, analysis,
	saved, application_status, created_at`

// UpsertPosting implements task.Store. The (owner_id, canonical_key) unique
// constraint makes concurrent inserts of the same posting race-free.
func (s *Store) UpsertPosting(ctx context.Context, p *task.Posting) (bool, error) {
	status := p.ApplicationStatus
	if status == "" {
		status = task.ApplicationNotApplied
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO postings (id, task_id, owner_id, canonical_key, title, company, location,
			salary, url, work_type, description, source_platform, posted_at, saved,
			application_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (owner_id, canonical_key) DO NOTHING`,
		p.ID, p.TaskID, p.OwnerID, p.CanonicalKey, p.Title, p.Company, p.Location,
		p.Salary, p.URL, p.WorkType, p.Description, p.SourcePlatform, nullTime(p.PostedAt), p.Saved,
		status, formatTime(p.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: upsert posting %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: upsert posting %s: %w", p.ID, err)
	}
	return n == 1, nil
}

// UpdatePostingScore implements task.Store.
func (s *Store) UpdatePostingScore(ctx context.Context, id string, score int, analysis task.Analysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("sqlite: encode analysis: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE postings SET match_score = ?, analysis = ? WHERE id = ?`,
		score, string(data), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update posting score %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return task.ErrNotFound
	}
	return nil
}

// ListTaskPostings implements task.Store.
func (s *Store) ListTaskPostings(ctx context.Context, taskID string) ([]*task.Posting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list postings for %s: %w", taskID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*task.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan posting: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list postings for %s: %w", taskID, err)
	}
	return out, nil
}

func scanPosting(sc rowScanner) (*task.Posting, error) {
	var (
		p         task.Posting
		postedAt  sql.NullString
		score     sql.NullInt64
		analysis  sql.NullString
		createdAt string
	)
	if err := sc.Scan(
		&p.ID, &p.TaskID, &p.OwnerID, &p.CanonicalKey, &p.Title, &p.Company, &p.Location, &p.Salary,
		&p.URL, &p.WorkType, &p.Description, &p.SourcePlatform, &postedAt, &score, &analysis,
		&p.Saved, &p.ApplicationStatus, &createdAt,
	); err != nil {
		return nil, err
	}

	var err error
	if p.PostedAt, err = parseNullTime(postedAt); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if score.Valid {
		v := int(score.Int64)
		p.MatchScore = &v
	}
	if analysis.Valid && analysis.String != "" {
		p.Analysis = &task.Analysis{}
		if err := json.Unmarshal([]byte(analysis.String), p.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
	}
	return &p, nil
}

// CreateResume implements task.ResumeStore.
func (s *Store) CreateResume(ctx context.Context, r *task.Resume) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resumes (id, owner_id, name, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.OwnerID, r.Name, r.Content, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create resume %s: %w", r.ID, err)
	}
	return nil
}

// GetResume implements task.ResumeStore.
func (s *Store) GetResume(ctx context.Context, ownerID, id string) (*task.Resume, error) {
	var (
		r         task.Resume
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, content, created_at FROM resumes WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	).Scan(&r.ID, &r.OwnerID, &r.Name, &r.Content, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrResumeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get resume %s: %w", id, err)
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &r, nil
}
