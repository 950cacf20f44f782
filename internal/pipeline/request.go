package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/jobagent/internal/task"
)

// Request defaults and bounds.
const (
	DefaultLocation    = "Sydney NSW"
	DefaultTargetCount = 5
	MaxTargetCount     = 50
)

// Request asks for a new task.
type Request struct {
	OwnerID     string   `json:"owner_id"`
	ResumeID    string   `json:"resume_id"`
	SearchTerms []string `json:"job_titles"`
	Location    string   `json:"location,omitempty"`
	TargetCount int      `json:"job_required,omitempty"`
	Evaluator   string   `json:"ai_model,omitempty"`

	// Recurrence makes the task recurring when set.
	Recurrence *task.Recurrence `json:"recurrence,omitempty"`
}

func (r *Request) applyDefaults(defaultEvaluator string) {
	terms := make([]string, 0, len(r.SearchTerms))
	for _, s := range r.SearchTerms {
		if s = strings.TrimSpace(s); s != "" {
			terms = append(terms, s)
		}
	}
	r.SearchTerms = terms
	r.Location = strings.TrimSpace(r.Location)
	if r.Location == "" {
		r.Location = DefaultLocation
	}
	if r.TargetCount == 0 {
		r.TargetCount = DefaultTargetCount
	}
	if r.Evaluator == "" {
		r.Evaluator = defaultEvaluator
	}
}

// validate checks the fields that need no store access.
func (r *Request) validate() error {
	var errs []error
	if strings.TrimSpace(r.OwnerID) == "" {
		errs = append(errs, fmt.Errorf("%w: owner_id is required", task.ErrValidation))
	}
	if strings.TrimSpace(r.ResumeID) == "" {
		errs = append(errs, fmt.Errorf("%w: resume_id is required", task.ErrValidation))
	}
	if len(r.SearchTerms) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one job title is required", task.ErrValidation))
	}
	if r.TargetCount < 1 || r.TargetCount > MaxTargetCount {
		errs = append(errs, fmt.Errorf("%w: job_required must be between 1 and %d, got %d",
			task.ErrValidation, MaxTargetCount, r.TargetCount))
	}
	if r.Evaluator == "" {
		errs = append(errs, fmt.Errorf("%w: ai_model is required", task.ErrValidation))
	}
	if r.Recurrence != nil {
		if err := r.Recurrence.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidationMessages splits an error returned by Create into one message per
// problem, without the sentinel prefix. It is used to report every problem to
// a caller at once.
func ValidationMessages(err error) []string {
	if err == nil {
		return nil
	}
	prefix := task.ErrValidation.Error() + ": "
	var out []string
	for line := range strings.SplitSeq(err.Error(), "\n") {
		if line = strings.TrimSpace(strings.TrimPrefix(line, prefix)); line != "" {
			out = append(out, line)
		}
	}
	return out
}
