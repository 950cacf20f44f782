// Package gemini provides the provider.gemini module, which evaluates
// postings with Google's Gemini models through google.golang.org/genai.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/jobagent/internal/core"
	"github.com/flemzord/jobagent/internal/provider"
	"github.com/flemzord/jobagent/internal/security"
)

func init() {
	core.RegisterModule(&Module{})
}

// generator is the subset of *genai.Models the provider calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Module is the provider.gemini module.
type Module struct {
	config Config
	logger *slog.Logger
	client *Client
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.gemini",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	if err := m.config.validate(); err != nil {
		return err
	}

	key := m.config.apiKey()
	if svc, ok := ctx.Service("security.credentials"); ok {
		if creds, ok := svc.(*security.CredentialStore); ok {
			creds.Set("provider.gemini.api_key", key)
		}
	}

	cc := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: m.config.Timeout},
	}
	if m.config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: m.config.BaseURL}
	}
	gc, err := genai.NewClient(context.TODO(), cc)
	if err != nil {
		return fmt.Errorf("provider.gemini: create client: %w", err)
	}

	m.client = &Client{models: gc.Models, model: m.config.Model}
	m.logger.Info("provider endpoint configured", "evaluator", m.config.Key, "model", m.config.Model)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Providers implements provider.Set.
func (m *Module) Providers() map[string]provider.Provider {
	if m.client == nil {
		return nil
	}
	return map[string]provider.Provider{m.config.Key: m.client}
}

// Client adapts a Gemini model to provider.Provider.
type Client struct {
	models generator
	model  string
}

// ModelName implements provider.Provider.
func (c *Client) ModelName() string {
	return c.model
}

// Complete implements provider.Provider. System messages become the system
// instruction; the remaining messages are sent as user/model turns.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	var (
		contents []*genai.Content
		system   []string
	)
	for _, msg := range req.Messages {
		switch msg.Role {
		case provider.MessageRoleSystem:
			system = append(system, msg.Content)
		case provider.MessageRoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return provider.CompletionResponse{}, mapError(ctx, err)
	}
	return convertResponse(resp)
}

// convertResponse concatenates the text parts of the first candidate.
func convertResponse(resp *genai.GenerateContentResponse) (provider.CompletionResponse, error) {
	var out provider.CompletionResponse
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return out, fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return out, errors.New("gemini: empty response")
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		var b strings.Builder
		for _, part := range cand.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
		out.Content = b.String()
	}

	switch cand.FinishReason {
	case genai.FinishReasonStop:
		out.FinishReason = provider.FinishReasonStop
	case genai.FinishReasonMaxTokens:
		out.FinishReason = provider.FinishReasonLength
	case genai.FinishReasonSafety:
		out.FinishReason = provider.FinishReasonFiltering
	default:
		out.FinishReason = provider.FinishReason(strings.ToLower(string(cand.FinishReason)))
	}

	if u := resp.UsageMetadata; u != nil {
		out.Usage = provider.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// mapError converts genai API errors to provider sentinel errors.
func mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	}

	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", provider.ErrRateLimit, err)
	case code >= 500:
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %w", provider.ErrAuthentication, err)
	case code == 0:
		// Transport failure before any HTTP status.
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	default:
		return fmt.Errorf("gemini: %w", err)
	}
}

// Compile-time interface assertions.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ provider.Set      = (*Module)(nil)
	_ provider.Provider = (*Client)(nil)
)
