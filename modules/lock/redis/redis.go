// Package redis provides the lock.redis module: a recurrence.Locker backed
// by Redis so that only one process runs a due cycle at a time.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/jobagent/internal/core"
	"github.com/flemzord/jobagent/internal/recurrence"
	"github.com/flemzord/jobagent/internal/security"
)

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
	_ recurrence.Locker = (*Locker)(nil)
)

// Config holds the lock.redis module configuration.
type Config struct {
	URL         string        `yaml:"url"`
	KeyPrefix   string        `yaml:"key_prefix"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

func (c *Config) defaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
}

// Module is the lock.redis module. It registers the "recurrence.locker"
// service.
type Module struct {
	config Config
	logger *slog.Logger
	locker *Locker
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "lock.redis",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("lock.redis: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.URL == "" {
		return errors.New("lock.redis: url is required")
	}
	if svc, ok := ctx.Service("security.credentials"); ok {
		if creds, ok := svc.(*security.CredentialStore); ok {
			creds.Set("lock.redis.url", m.config.URL)
		}
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), m.config.DialTimeout)
	defer cancel()

	client, err := Dial(dialCtx, m.config.URL)
	if err != nil {
		return fmt.Errorf("lock.redis: %w", err)
	}
	m.locker = NewLocker(client, m.config.KeyPrefix)
	ctx.RegisterService("recurrence.locker", m.locker)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.locker == nil {
		return errors.New("lock.redis: not provisioned")
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.locker == nil {
		return nil
	}
	return m.locker.client.Close()
}

// Dial parses url and verifies connectivity.
func Dial(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		// The URL may carry a password.
		return nil, errors.New("invalid redis url")
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another process is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements recurrence.Locker with SET NX PX.
type Locker struct {
	client *goredis.Client
	prefix string
}

// NewLocker returns a Locker that namespaces keys with prefix.
func NewLocker(client *goredis.Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

// TryLock implements recurrence.Locker.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key = l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("lock.redis: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("lock.redis: release %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
