package gemini

import (
	"errors"
	"os"
	"time"
)

const (
	defaultModel   = "gemini-2.0-flash"
	defaultKey     = "google"
	defaultTimeout = 60 * time.Second
)

// Config holds the provider.gemini module configuration.
type Config struct {
	// Key is the evaluator key the provider is registered under.
	Key       string        `yaml:"key"`
	APIKey    string        `yaml:"api_key"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Key == "" {
		c.Key = defaultKey
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.APIKeyEnv == "" && c.APIKey == "" {
		c.APIKeyEnv = "GEMINI_API_KEY"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) apiKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv(c.APIKeyEnv)
}

func (c *Config) validate() error {
	if c.apiKey() == "" {
		return errors.New("provider.gemini: api key is empty (set api_key or " + c.APIKeyEnv + ")")
	}
	return nil
}
