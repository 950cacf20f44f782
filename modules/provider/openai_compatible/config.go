package openaicompat

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Config holds the module configuration: one entry per named endpoint. The
// endpoint name is the evaluator key requests select it with.
type Config struct {
	Endpoints map[string]EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig configures one OpenAI-compatible chat completions API.
type EndpointConfig struct {
	BaseURL   string            `yaml:"base_url"`
	APIKey    string            `yaml:"api_key"`
	APIKeyEnv string            `yaml:"api_key_env"`
	Model     string            `yaml:"model"`
	MaxTokens int               `yaml:"max_tokens"`
	Headers   map[string]string `yaml:"headers"`
	Timeout   time.Duration     `yaml:"timeout"`

	// JSONMode sends response_format json_object. Not every compatible
	// backend accepts it.
	JSONMode bool `yaml:"json_mode"`
}

// defaults sets default values for unset fields.
func (c *EndpointConfig) defaults() {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.BaseURL != "" {
		c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	}
}

// apiKey returns the inline key, falling back to the named environment
// variable.
func (c *EndpointConfig) apiKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}

// validate returns an error if required fields are missing.
func (c *EndpointConfig) validate(name string) error {
	if c.BaseURL == "" {
		return errMissingField(name, "base_url")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("provider.openai_compatible: %s: base_url is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider.openai_compatible: %s: base_url scheme must be http or https, got %q", name, u.Scheme)
	}
	if c.apiKey() == "" {
		return fmt.Errorf("provider.openai_compatible: %s: one of api_key or api_key_env is required", name)
	}
	if c.Model == "" {
		return errMissingField(name, "model")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("provider.openai_compatible: %s: max_tokens must not be negative", name)
	}
	return nil
}

func (c *Config) validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("provider.openai_compatible: at least one endpoint is required")
	}
	var errs []error
	for name, ep := range c.Endpoints {
		if err := ep.validate(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// errMissingField returns a validation error for a missing required field.
func errMissingField(endpoint, field string) error {
	return fmt.Errorf("provider.openai_compatible: %s: %s is required", endpoint, field)
}
