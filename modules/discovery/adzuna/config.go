package adzuna

import (
	"errors"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultBaseURL        = "https://api.adzuna.com/v1/api/jobs"
	defaultCountry        = "au"
	defaultResultsPerPage = 50
	defaultMaxPages       = 3
)

// Config holds the discovery.adzuna module configuration.
type Config struct {
	AppID     string `yaml:"app_id"`
	AppIDEnv  string `yaml:"app_id_env"`
	AppKey    string `yaml:"app_key"`
	AppKeyEnv string `yaml:"app_key_env"`

	// Country is the two-letter Adzuna market, e.g. "au", "gb", "us".
	Country string `yaml:"country"`

	BaseURL        string        `yaml:"base_url"`
	ResultsPerPage int           `yaml:"results_per_page"`
	MaxPages       int           `yaml:"max_pages"`
	Timeout        time.Duration `yaml:"timeout"`

	// RequestsPerSecond and Burst shape calls to the API host.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

func (c *Config) defaults() {
	if c.AppIDEnv == "" && c.AppID == "" {
		c.AppIDEnv = "ADZUNA_APP_ID"
	}
	if c.AppKeyEnv == "" && c.AppKey == "" {
		c.AppKeyEnv = "ADZUNA_APP_KEY"
	}
	if c.Country == "" {
		c.Country = defaultCountry
	}
	c.Country = strings.ToLower(c.Country)
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.ResultsPerPage <= 0 {
		c.ResultsPerPage = defaultResultsPerPage
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

func (c *Config) appID() string {
	if c.AppID != "" {
		return c.AppID
	}
	return os.Getenv(c.AppIDEnv)
}

func (c *Config) appKey() string {
	if c.AppKey != "" {
		return c.AppKey
	}
	return os.Getenv(c.AppKeyEnv)
}

func (c *Config) validate() error {
	var errs []error
	if c.appID() == "" {
		errs = append(errs, errors.New("discovery.adzuna: app_id is required"))
	}
	if c.appKey() == "" {
		errs = append(errs, errors.New("discovery.adzuna: app_key is required"))
	}
	if len(c.Country) != 2 {
		errs = append(errs, errors.New("discovery.adzuna: country must be a two-letter code"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, errors.New("discovery.adzuna: base_url must be an http(s) URL"))
	}
	if c.ResultsPerPage > 50 {
		errs = append(errs, errors.New("discovery.adzuna: results_per_page must be at most 50"))
	}
	return errors.Join(errs...)
}
