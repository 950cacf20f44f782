package pipeline

import (
	"testing"

	"github.com/flemzord/jobagent/internal/task"
)

func results(scores ...int) []task.MatchResult {
	out := make([]task.MatchResult, len(scores))
	for i, s := range scores {
		if s < 0 {
			out[i] = task.MatchResult{Success: false}
			continue
		}
		out[i] = task.MatchResult{Score: s, Success: true}
	}
	return out
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        []task.MatchResult
		avg       float64
		ok, fail  int
		hi, lo    int
	}{
		{"failed items excluded", results(80, 60, -1, 40), 60, 3, 1, 80, 40},
		{"all failed", results(-1, -1), 0, 0, 2, 0, 0},
		{"empty", nil, 0, 0, 0, 0, 0},
		{"zero scores count", results(0, 100), 50, 2, 0, 100, 0},
		{"rounded", results(1, 2, 2), 1.67, 3, 0, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var res task.Result
			Aggregate(&res, tt.in)
			if res.AverageScore != tt.avg {
				t.Errorf("average = %v, want %v", res.AverageScore, tt.avg)
			}
			if res.SuccessfulAnalyses != tt.ok || res.FailedAnalyses != tt.fail || res.JobsAnalyzed != len(tt.in) {
				t.Errorf("counts = %d/%d/%d", res.SuccessfulAnalyses, res.FailedAnalyses, res.JobsAnalyzed)
			}
			if res.MaxScore != tt.hi || res.MinScore != tt.lo {
				t.Errorf("max/min = %d/%d, want %d/%d", res.MaxScore, res.MinScore, tt.hi, tt.lo)
			}
		})
	}
}

func TestDistinctTitles(t *testing.T) {
	t.Parallel()

	in := []string{"a", "b", "a", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	got := distinctTitles(in)
	if len(got) != maxResultTitles {
		t.Fatalf("len = %d, want %d", len(got), maxResultTitles)
	}
	if got[2] != "c" {
		t.Errorf("got[2] = %q, want c (duplicates dropped)", got[2])
	}
}
