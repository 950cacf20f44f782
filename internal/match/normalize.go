package match

import (
	"fmt"
	"strings"

	"github.com/flemzord/jobagent/internal/task"
)

const notProvided = "Not provided"

// ClampScore bounds a score to [0, 100].
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// NormalizeAnalysis coerces a loosely typed analysis into the fixed shape.
// Missing or blank text fields become "Not provided". List fields accept an
// array (elements are stringified) or a single string, anything else yields
// an empty list.
func NormalizeAnalysis(raw map[string]any) task.Analysis {
	return task.Analysis{
		Summary:         textField(raw, "summary"),
		Strengths:       listField(raw, "strengths"),
		Gaps:            listField(raw, "gaps"),
		Recommendations: listField(raw, "recommendations"),
		Reasoning:       textField(raw, "reasoning"),
	}
}

func textField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return notProvided
		}
		return v
	case nil:
		return notProvided
	default:
		return fmt.Sprint(v)
	}
}

func listField(raw map[string]any, key string) []string {
	switch v := raw[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return []string{}
		}
		return []string{v}
	default:
		return []string{}
	}
}
