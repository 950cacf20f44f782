// Package adzuna provides the discovery.adzuna module: a discovery.Source
// backed by the Adzuna job search API.
package adzuna

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/jobagent/internal/core"
	"github.com/flemzord/jobagent/internal/discovery"
	"github.com/flemzord/jobagent/internal/security"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
)

// Module is the discovery.adzuna module. It registers the
// "discovery.source" service.
type Module struct {
	config Config
	logger *slog.Logger
	source *Source
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "discovery.adzuna",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("discovery.adzuna: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if svc, ok := ctx.Service("security.credentials"); ok {
		if creds, ok := svc.(*security.CredentialStore); ok {
			if key := m.config.appKey(); key != "" {
				creds.Set("discovery.adzuna.app_key", key)
			}
		}
	}

	m.source = NewSource(m.config, m.logger)
	ctx.RegisterService("discovery.source", m.source)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Source returns the provisioned source.
func (m *Module) Source() discovery.Source {
	return m.source
}
