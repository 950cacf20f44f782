// Package gateway provides the HTTP control surface: health, status,
// Prometheus metrics, task submission and deactivation, and due-cycle
// triggers. It binds to loopback by default and follows the module pattern.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/jobagent/internal/core"
	"github.com/flemzord/jobagent/internal/metrics"
	"github.com/flemzord/jobagent/internal/pipeline"
	"github.com/flemzord/jobagent/internal/recurrence"
	"github.com/flemzord/jobagent/internal/security"
	"github.com/flemzord/jobagent/internal/task"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// TaskService is the part of the pipeline orchestrator the gateway drives.
type TaskService interface {
	Submit(ctx context.Context, req pipeline.Request) (*task.Task, error)
	Deactivate(ctx context.Context, ownerID, id string) (*task.Task, error)
}

// CycleRunner runs one due cycle.
type CycleRunner interface {
	RunDueCycle(ctx context.Context) (recurrence.CycleSummary, error)
}

// Pinger is implemented by stores that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EvaluatorLister lists the registered evaluator keys.
type EvaluatorLister interface {
	Keys() []string
}

// Gateway is the HTTP gateway module. It is a leaf module: nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	counters  *Counters
	webhooks  *WebhookDispatcher
	audit     *security.AuditLogger
	limiter   *security.RateLimiter // per client host, auth attempts
	submits   *security.RateLimiter // per owner, task submissions
	startedAt time.Time

	// Resolved lazily at Start() via the service registry.
	tasks      TaskService
	cycles     CycleRunner
	store      Pinger
	evaluators EvaluatorLister
	metrics    *metrics.Metrics
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.counters = &Counters{}
	g.webhooks = NewWebhookDispatcher(g.logger)
	g.limiter = security.NewRateLimiter(g.config.RateLimit)
	g.submits = security.NewRateLimiter(g.config.SubmitRateLimit)

	if svc, ok := ctx.Service("security.audit"); ok {
		if audit, ok := svc.(*security.AuditLogger); ok {
			g.audit = audit
		}
	}
	if svc, ok := ctx.Service("security.credentials"); ok {
		if creds, ok := svc.(*security.CredentialStore); ok {
			registerSecrets(creds, g.config)
		}
	}
	return nil
}

func registerSecrets(creds *security.CredentialStore, cfg Config) {
	if cfg.Auth.BearerToken != "" {
		creds.Set("gateway.bearer_token", cfg.Auth.BearerToken)
	}
	if cfg.Auth.BasicPass != "" {
		creds.Set("gateway.basic_pass", cfg.Auth.BasicPass)
	}
	for source, wh := range cfg.Webhooks {
		if wh.Secret != "" {
			creds.Set("gateway.webhook."+source, wh.Secret)
		}
	}
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	for source, wh := range g.config.Webhooks {
		if wh.Secret == "" {
			return errors.New("gateway: webhook " + source + " requires a secret")
		}
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()

	if wh, ok := g.config.Webhooks["cycle"]; ok && g.cycles != nil {
		g.webhooks.Register("cycle", cycleWebhook{runner: g.cycles, counters: g.counters}, wh.Secret)
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolveServices binds optional services. Endpoints whose service is
// missing answer 503.
func (g *Gateway) resolveServices() {
	if g.appCtx == nil {
		return
	}
	if svc, ok := g.appCtx.Service("pipeline.orchestrator"); ok {
		if s, ok := svc.(TaskService); ok {
			g.tasks = s
		}
	}
	if svc, ok := g.appCtx.Service("recurrence.scheduler"); ok {
		if s, ok := svc.(CycleRunner); ok {
			g.cycles = s
		}
	}
	if svc, ok := g.appCtx.Service("task.store"); ok {
		if s, ok := svc.(Pinger); ok {
			g.store = s
		}
	}
	if svc, ok := g.appCtx.Service("match.evaluators"); ok {
		if s, ok := svc.(EvaluatorLister); ok {
			g.evaluators = s
		}
	}
	if svc, ok := g.appCtx.Service("metrics"); ok {
		if m, ok := svc.(*metrics.Metrics); ok {
			g.metrics = m
		}
	}
}

// Stop implements core.Stopper.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
