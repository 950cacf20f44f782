package pipeline

import (
	"math"

	"github.com/flemzord/jobagent/internal/task"
)

// maxResultTitles caps the search terms echoed in a result.
const maxResultTitles = 10

// Aggregate fills the match statistics of res from results. Failed
// evaluations count as analyzed but are excluded from the score statistics.
func Aggregate(res *task.Result, results []task.MatchResult) {
	res.JobsAnalyzed = len(results)
	res.SuccessfulAnalyses = 0
	res.FailedAnalyses = 0
	res.Distribution = task.Distribution{}

	sum := 0
	for _, r := range results {
		if !r.Success {
			res.FailedAnalyses++
			continue
		}
		if res.SuccessfulAnalyses == 0 || r.Score > res.MaxScore {
			res.MaxScore = r.Score
		}
		if res.SuccessfulAnalyses == 0 || r.Score < res.MinScore {
			res.MinScore = r.Score
		}
		res.SuccessfulAnalyses++
		sum += r.Score
		res.Distribution.Add(r.Score)
	}

	if res.SuccessfulAnalyses == 0 {
		res.AverageScore, res.MaxScore, res.MinScore = 0, 0, 0
		return
	}
	avg := float64(sum) / float64(res.SuccessfulAnalyses)
	res.AverageScore = math.Round(avg*100) / 100
}

func distinctTitles(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, min(len(terms), maxResultTitles))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxResultTitles {
			break
		}
	}
	return out
}
