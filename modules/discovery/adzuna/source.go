package adzuna

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/flemzord/jobagent/internal/discovery"
)

// Source searches the Adzuna job search API.
type Source struct {
	config  Config
	appID   string
	appKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ discovery.Source = (*Source)(nil)

// NewSource returns a Source. cfg must be valid.
func NewSource(cfg Config, logger *slog.Logger) *Source {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		config:  cfg,
		appID:   cfg.appID(),
		appKey:  cfg.appKey(),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger.With("source", "adzuna"),
	}
}

// Name implements discovery.Source.
func (s *Source) Name() string {
	return "adzuna"
}

type searchResponse struct {
	Count   int      `json:"count"`
	Results []result `json:"results"`
}

type result struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Company      named    `json:"company"`
	Location     named    `json:"location"`
	SalaryMin    *float64 `json:"salary_min"`
	SalaryMax    *float64 `json:"salary_max"`
	RedirectURL  string   `json:"redirect_url"`
	Created      string   `json:"created"`
	ContractTime string   `json:"contract_time"`
	ContractType string   `json:"contract_type"`
}

type named struct {
	DisplayName string `json:"display_name"`
}

// Search implements discovery.Source. Each search term is queried in turn,
// newest first, until Limit candidates are collected. A failure after some
// candidates were collected is logged and the partial list returned.
func (s *Source) Search(ctx context.Context, q discovery.Query) ([]discovery.Candidate, error) {
	seen := make(map[string]bool)
	var out []discovery.Candidate

	for _, term := range q.SearchTerms {
		for page := 1; page <= s.config.MaxPages; page++ {
			if q.Limit > 0 && len(out) >= q.Limit {
				return out, nil
			}

			results, err := s.fetchPage(ctx, term, q.Location, page)
			if err != nil {
				if len(out) == 0 {
					return nil, err
				}
				s.logger.Warn("search page failed, returning partial results",
					"term", term, "page", page, "error", err)
				return out, nil
			}

			for _, r := range results {
				if r.ID != "" && seen[r.ID] {
					continue
				}
				seen[r.ID] = true
				out = append(out, toCandidate(r))
			}
			if len(results) < s.config.ResultsPerPage {
				break
			}
		}
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Source) fetchPage(ctx context.Context, term, location string, page int) ([]result, error) {
	params := url.Values{}
	params.Set("app_id", s.appID)
	params.Set("app_key", s.appKey)
	params.Set("results_per_page", strconv.Itoa(s.config.ResultsPerPage))
	params.Set("what", term)
	if location != "" {
		params.Set("where", location)
	}
	params.Set("sort_by", "date")
	params.Set("content-type", "application/json")

	endpoint := fmt.Sprintf("%s/%s/search/%d?%s", s.config.BaseURL, s.config.Country, page, params.Encode())

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("adzuna: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The URL carries the app key; report the host only.
		return nil, fmt.Errorf("adzuna: request to %s failed: %w", req.URL.Host, unwrapURLError(err))
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("adzuna: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("adzuna: decode response: %w", err)
	}
	return sr.Results, nil
}

// unwrapURLError drops the *url.Error wrapper, whose message includes the
// full request URL.
func unwrapURLError(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}

var titleCaser = cases.Title(language.English)

func toCandidate(r result) discovery.Candidate {
	c := discovery.Candidate{
		ExternalID:  r.ID,
		Title:       strings.TrimSpace(r.Title),
		Company:     strings.TrimSpace(r.Company.DisplayName),
		Location:    strings.TrimSpace(r.Location.DisplayName),
		Salary:      formatSalary(r.SalaryMin, r.SalaryMax),
		URL:         r.RedirectURL,
		WorkType:    workType(r.ContractTime, r.ContractType),
		Description: r.Description,
	}
	if r.Created != "" {
		if t, err := time.Parse(time.RFC3339, r.Created); err == nil {
			t = t.UTC()
			c.PostedAt = &t
		}
	}
	return c
}

func formatSalary(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil && *lo != *hi:
		return fmt.Sprintf("$%.0f - $%.0f", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf("$%.0f", *lo)
	case hi != nil:
		return fmt.Sprintf("$%.0f", *hi)
	default:
		return ""
	}
}

// workType renders e.g. "full_time" and "permanent" as "Full Time, Permanent".
func workType(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(strings.ReplaceAll(p, "_", " ")); p != "" {
			out = append(out, titleCaser.String(p))
		}
	}
	return strings.Join(out, ", ")
}
