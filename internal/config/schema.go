// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for jobagent.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/jobagent/internal/security"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Pipeline tunes task execution and the recurrence cycle.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Security holds optional security settings.
	Security SecurityConfig `yaml:"security,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "store.sqlite").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// PipelineConfig holds the orchestration settings. Zero values select the
// defaults below.
type PipelineConfig struct {
	DefaultEvaluator string        `yaml:"default_evaluator"`
	MatchConcurrency int           `yaml:"match_concurrency"`
	MatchTimeout     time.Duration `yaml:"match_timeout"`
	DiscoverTimeout  time.Duration `yaml:"discover_timeout"`
	CycleSchedule    string        `yaml:"cycle_schedule"`
	CycleTimeout     time.Duration `yaml:"cycle_timeout"`
	CycleBatchSize   int           `yaml:"cycle_batch_size"`
	CycleConcurrency int           `yaml:"cycle_concurrency"`
	StaleAfter       time.Duration `yaml:"stale_after"`
}

// Pipeline defaults.
const (
	DefaultEvaluator        = "deepseek"
	DefaultMatchConcurrency = 3
	DefaultMatchTimeout     = 60 * time.Second
	DefaultDiscoverTimeout  = 2 * time.Minute
	DefaultCycleSchedule    = "*/5 * * * *"
	DefaultCycleTimeout     = 30 * time.Minute
	DefaultCycleBatchSize   = 100
	DefaultStaleAfter       = 6 * time.Hour
)

// WithDefaults returns a copy with every zero field set to its default.
func (p PipelineConfig) WithDefaults() PipelineConfig {
	if p.DefaultEvaluator == "" {
		p.DefaultEvaluator = DefaultEvaluator
	}
	if p.MatchConcurrency == 0 {
		p.MatchConcurrency = DefaultMatchConcurrency
	}
	if p.MatchTimeout == 0 {
		p.MatchTimeout = DefaultMatchTimeout
	}
	if p.DiscoverTimeout == 0 {
		p.DiscoverTimeout = DefaultDiscoverTimeout
	}
	if p.CycleSchedule == "" {
		p.CycleSchedule = DefaultCycleSchedule
	}
	if p.CycleTimeout == 0 {
		p.CycleTimeout = DefaultCycleTimeout
	}
	if p.CycleBatchSize == 0 {
		p.CycleBatchSize = DefaultCycleBatchSize
	}
	if p.CycleConcurrency == 0 {
		p.CycleConcurrency = p.CycleBatchSize
	}
	if p.StaleAfter == 0 {
		p.StaleAfter = DefaultStaleAfter
	}
	return p
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// URLFilter screens the links of discovered postings.
	URLFilter security.URLFilterConfig `yaml:"url_filter"`
}
