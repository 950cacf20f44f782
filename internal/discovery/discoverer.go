package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/jobagent/internal/security"
	"github.com/flemzord/jobagent/internal/task"
)

const (
	// candidateFactor over-fetches so duplicates and filtered listings do
	// not leave the target unmet.
	candidateFactor = 3
	maxCandidates   = 150
)

// PostingWriter is the persistence the Discoverer needs.
type PostingWriter interface {
	UpsertPosting(ctx context.Context, p *task.Posting) (bool, error)
}

// Request carries the search criteria of one execution.
type Request struct {
	OwnerID     string
	TaskID      string
	SearchTerms []string
	Location    string
	TargetCount int
}

// Config holds the Discoverer dependencies. Filter, Logger, Now and NewID
// are optional.
type Config struct {
	Source Source
	Store  PostingWriter
	Filter *security.URLFilter
	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

// Discoverer implements the discovery port on top of a Source.
type Discoverer struct {
	source Source
	store  PostingWriter
	filter *security.URLFilter
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// New creates a Discoverer.
func New(cfg Config) (*Discoverer, error) {
	if cfg.Source == nil {
		return nil, errors.New("discovery: source is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("discovery: store is required")
	}
	d := &Discoverer{
		source: cfg.Source,
		store:  cfg.Store,
		filter: cfg.Filter,
		logger: cfg.Logger,
		now:    cfg.Now,
		newID:  cfg.NewID,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newID == nil {
		d.newID = func() string { return uuid.NewString() }
	}
	return d, nil
}

// SourceName returns the name of the underlying source.
func (d *Discoverer) SourceName() string {
	return d.source.Name()
}

// Discover searches the source and stores up to TargetCount postings the
// owner has not seen before. Duplicates are skipped silently. On a store
// failure the postings created so far are returned with the error.
func (d *Discoverer) Discover(ctx context.Context, req Request) ([]*task.Posting, error) {
	if req.TargetCount <= 0 {
		return nil, nil
	}

	limit := min(req.TargetCount*candidateFactor, maxCandidates)
	candidates, err := d.source.Search(ctx, Query{
		SearchTerms: req.SearchTerms,
		Location:    req.Location,
		Limit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: %s: %w", d.source.Name(), err)
	}

	platform := d.source.Name()
	seen := make(map[string]struct{}, len(candidates))
	created := make([]*task.Posting, 0, req.TargetCount)
	var duplicates, filtered int

	for _, c := range candidates {
		if len(created) >= req.TargetCount {
			break
		}
		if strings.TrimSpace(c.Title) == "" {
			filtered++
			continue
		}
		if c.URL != "" {
			if err := d.filter.Check(c.URL); err != nil {
				filtered++
				d.logger.Debug("candidate filtered", "url", c.URL, "error", err)
				continue
			}
		}

		key := CanonicalKey(platform, c)
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}

		p := d.posting(req, platform, key, c)
		ok, err := d.store.UpsertPosting(ctx, p)
		if err != nil {
			return created, fmt.Errorf("discovery: storing posting: %w", err)
		}
		if !ok {
			duplicates++
			continue
		}
		created = append(created, p)
	}

	d.logger.Info("discovery finished",
		"source", platform,
		"task_id", req.TaskID,
		"candidates", len(candidates),
		"created", len(created),
		"duplicates", duplicates,
		"filtered", filtered,
	)
	return created, nil
}

func (d *Discoverer) posting(req Request, platform, key string, c Candidate) *task.Posting {
	return &task.Posting{
		ID:                d.newID(),
		TaskID:            req.TaskID,
		OwnerID:           req.OwnerID,
		CanonicalKey:      key,
		Title:             strings.TrimSpace(c.Title),
		Company:           strings.TrimSpace(c.Company),
		Location:          strings.TrimSpace(c.Location),
		Salary:            strings.TrimSpace(c.Salary),
		URL:               strings.TrimSpace(c.URL),
		WorkType:          strings.TrimSpace(c.WorkType),
		Description:       PlainText(c.Description),
		SourcePlatform:    platform,
		PostedAt:          c.PostedAt,
		ApplicationStatus: task.ApplicationNotApplied,
		CreatedAt:         d.now().UTC(),
	}
}
