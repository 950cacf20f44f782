// Package postgres implements the task and resume stores on PostgreSQL
// through a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/jobagent/internal/core"
	"github.com/flemzord/jobagent/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module is the store.postgres module.
type Module struct {
	config Config
	logger *slog.Logger
	store  *Store
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.postgres",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("postgres: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. It connects eagerly so that a bad
// DSN fails startup instead of the first cycle.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if err := m.config.validate(); err != nil {
		return err
	}
	if svc, ok := ctx.Service("security.credentials"); ok {
		if creds, ok := svc.(*security.CredentialStore); ok {
			creds.Set("store.postgres.dsn", m.config.DSN)
		}
	}

	store, err := Open(context.TODO(), m.config)
	if err != nil {
		return err
	}
	m.store = store

	ctx.RegisterService("task.store", store)
	ctx.RegisterService("task.resumes", store)
	m.logger.Info("postgres store provisioned", "max_conns", m.config.MaxConns)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.store == nil {
		return fmt.Errorf("postgres: not provisioned")
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()
	if err := m.store.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.store != nil {
		m.logger.Info("postgres store stopping")
		m.store.Close()
	}
	return nil
}
