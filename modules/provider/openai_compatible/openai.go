// Package openaicompat provides the provider.openai_compatible module. It
// serves any number of named endpoints that implement the OpenAI chat
// completions API (OpenAI, DeepSeek, Azure OpenAI, Mistral, vLLM...), each
// exposed as an evaluator under its name.
package openaicompat

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/flemzord/jobagent/internal/core"
	"github.com/flemzord/jobagent/internal/provider"
	"github.com/flemzord/jobagent/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Module is the provider.openai_compatible module.
type Module struct {
	config  Config
	clients map[string]*Client
	logger  *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai_compatible",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	for name, ep := range m.config.Endpoints {
		ep.defaults()
		m.config.Endpoints[name] = ep
	}
	return nil
}

// Provision implements core.Provisioner. API keys are registered with the
// credential store so the log redactor masks them.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	m.clients = make(map[string]*Client, len(m.config.Endpoints))

	var creds *security.CredentialStore
	if svc, ok := ctx.Service("security.credentials"); ok {
		creds, _ = svc.(*security.CredentialStore)
	}

	for _, name := range slices.Sorted(maps.Keys(m.config.Endpoints)) {
		ep := m.config.Endpoints[name]
		c := NewClient(name, ep)
		if creds != nil && c.apiKey != "" {
			creds.Set(fmt.Sprintf("provider.%s.api_key", name), c.apiKey)
		}
		m.clients[name] = c
		m.logger.Info("provider endpoint configured", "evaluator", name, "model", ep.Model)
	}
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Providers implements provider.Set.
func (m *Module) Providers() map[string]provider.Provider {
	out := make(map[string]provider.Provider, len(m.clients))
	for name, c := range m.clients {
		out[name] = c
	}
	return out
}

// Compile-time interface assertions.
var (
	_ core.Module            = (*Module)(nil)
	_ core.Configurable      = (*Module)(nil)
	_ core.Provisioner       = (*Module)(nil)
	_ core.Validator         = (*Module)(nil)
	_ provider.Set           = (*Module)(nil)
	_ provider.Provider      = (*Client)(nil)
	_ provider.HealthChecker = (*Client)(nil)
)
