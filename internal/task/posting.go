package task

import "time"

// ApplicationStatus values for a posting.
const (
	ApplicationNotApplied = "not_applied"
)

// Posting is one discovered job listing, unique per (OwnerID, CanonicalKey).
type Posting struct {
	ID           string
	TaskID       string
	OwnerID      string
	CanonicalKey string

	Title          string
	Company        string
	Location       string
	Salary         string
	URL            string
	WorkType       string
	Description    string
	SourcePlatform string
	PostedAt       *time.Time

	MatchScore        *int
	Analysis          *Analysis
	Saved             bool
	ApplicationStatus string

	CreatedAt time.Time
}

// Analysis is the structured evaluation attached to a scored posting.
type Analysis struct {
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Gaps            []string `json:"gaps"`
	Recommendations []string `json:"recommendations"`
	Reasoning       string   `json:"reasoning"`

	// Error is set when the evaluation failed.
	Error string `json:"error,omitempty"`
}

// FailedAnalysis is the record stored for a posting whose evaluation failed.
func FailedAnalysis(err error) Analysis {
	return Analysis{
		Error:           err.Error(),
		Summary:         "Analysis failed",
		Strengths:       []string{},
		Gaps:            []string{"Analysis error occurred"},
		Recommendations: []string{"Please check system logs"},
		Reasoning:       "Error during analysis: " + err.Error(),
	}
}

// MatchResult is the outcome of evaluating one posting. It is not persisted
// as its own entity; its score and analysis are written onto the posting.
type MatchResult struct {
	PostingID string
	Title     string
	Score     int
	Analysis  Analysis
	Success   bool
	Err       error
}

// Resume is the candidate document postings are matched against.
type Resume struct {
	ID        string
	OwnerID   string
	Name      string
	Content   string
	CreatedAt time.Time
}
