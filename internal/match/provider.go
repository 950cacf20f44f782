package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/flemzord/jobagent/internal/provider"
	"github.com/flemzord/jobagent/internal/task"
)

const (
	evaluationTemperature = 0.3
	evaluationMaxTokens   = 2000

	// maxReasoningFromText caps the reasoning kept when only a bare score
	// could be read from a reply.
	maxReasoningFromText = 500
)

// ErrUnparseable is returned when a model reply carries neither a JSON
// evaluation nor a recognizable score.
var ErrUnparseable = errors.New("match: unparseable evaluation")

const systemPrompt = "You are an expert HR analyst specializing in resume-job matching. " +
	"Return ONLY a valid JSON object with keys 'matching_score' (0-100) and 'ai_analysis' " +
	"(with fields summary, strengths, gaps, recommendations, reasoning). No extra text or code fences."

// ProviderMatcher evaluates postings by prompting an LLM provider.
type ProviderMatcher struct {
	provider provider.Provider
}

// NewProviderMatcher wraps p as a Matcher.
func NewProviderMatcher(p provider.Provider) *ProviderMatcher {
	return &ProviderMatcher{provider: p}
}

// Match implements Matcher.
func (m *ProviderMatcher) Match(ctx context.Context, resume task.Resume, posting task.Posting) (Evaluation, error) {
	prompt, err := buildPrompt(resume, posting)
	if err != nil {
		return Evaluation{}, err
	}

	resp, err := m.provider.Complete(ctx, provider.CompletionRequest{
		Messages: []provider.LLMMessage{
			{Role: provider.MessageRoleSystem, Content: systemPrompt},
			{Role: provider.MessageRoleUser, Content: prompt},
		},
		MaxTokens:   evaluationMaxTokens,
		Temperature: provider.Float64(evaluationTemperature),
		JSONOutput:  true,
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("match: %s: %w", m.provider.ModelName(), err)
	}
	return ParseEvaluation(resp.Content)
}

type promptResume struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

type promptJob struct {
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	Location    string `json:"location,omitempty"`
	Salary      string `json:"salary,omitempty"`
	WorkType    string `json:"work_type,omitempty"`
	Description string `json:"description,omitempty"`
}

func buildPrompt(resume task.Resume, posting task.Posting) (string, error) {
	resumeJSON, err := json.MarshalIndent(promptResume{Name: resume.Name, Content: resume.Content}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("match: encoding resume: %w", err)
	}
	jobJSON, err := json.MarshalIndent(promptJob{
		Title:       posting.Title,
		Company:     posting.Company,
		Location:    posting.Location,
		Salary:      posting.Salary,
		WorkType:    posting.WorkType,
		Description: posting.Description,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("match: encoding posting: %w", err)
	}

	var b strings.Builder
	b.WriteString("Analyze how well this resume matches the job posting. ")
	b.WriteString("Rate from 0-100 where 90+ means an exceptional match, 70-89 a good match, ")
	b.WriteString("50-69 a moderate match and below 50 a weak match.\n\n")
	b.WriteString("RESUME:\n")
	b.Write(resumeJSON)
	b.WriteString("\n\nJOB POSTING:\n")
	b.Write(jobJSON)
	b.WriteString("\n\nWeigh skills (40%), experience level (30%), industry (15%), education (10%) and culture fit (5%).\n")
	b.WriteString("Return your analysis as JSON:\n")
	b.WriteString(`{"matching_score": <0-100>, "ai_analysis": {"summary": "...", "strengths": ["..."], "gaps": ["..."], "recommendations": ["..."], "reasoning": "..."}}`)
	return b.String(), nil
}

var (
	codeFence    = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	scorePattern = regexp.MustCompile(`(?i)(?:matching_score|score)"?\s*[:=]\s*"?(\d{1,3})`)
)

// ParseEvaluation extracts a score and analysis from a model reply. It
// accepts a bare JSON object, one wrapped in code fences or surrounded by
// prose, and as a last resort a "score: NN" line.
func ParseEvaluation(content string) (Evaluation, error) {
	text := strings.TrimSpace(content)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	if obj, ok := extractObject(text); ok {
		if ev, ok := evaluationFromObject(obj); ok {
			return ev, nil
		}
	}

	if m := scorePattern.FindStringSubmatch(content); m != nil {
		score, err := strconv.Atoi(m[1])
		if err == nil {
			reasoning := content
			if utf8.RuneCountInString(reasoning) > maxReasoningFromText {
				reasoning = string([]rune(reasoning)[:maxReasoningFromText]) + "..."
			}
			return Evaluation{
				Score: score,
				Analysis: map[string]any{
					"summary":   "Analysis completed with limited parsing",
					"reasoning": reasoning,
				},
			}, nil
		}
	}

	return Evaluation{}, ErrUnparseable
}

func extractObject(text string) (map[string]any, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, false
	}

	dec := json.NewDecoder(strings.NewReader(text[start : end+1]))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	return obj, true
}

func evaluationFromObject(obj map[string]any) (Evaluation, bool) {
	score, ok := numberField(obj["matching_score"])
	if !ok {
		return Evaluation{}, false
	}

	analysis, _ := obj["ai_analysis"].(map[string]any)
	if analysis == nil {
		// Some models flatten the analysis next to the score.
		analysis = obj
	}
	return Evaluation{Score: score, Analysis: analysis}, true
}

func numberField(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return scoreFromFloat(f)
	case float64:
		return scoreFromFloat(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return scoreFromFloat(f)
	default:
		return 0, false
	}
}

// scoreFromFloat clamps before converting so huge values cannot overflow int.
func scoreFromFloat(f float64) (int, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	return int(math.Round(math.Max(0, math.Min(100, f)))), true
}
