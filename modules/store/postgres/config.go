package postgres

import (
	"errors"
	"time"
)

// Config holds the Postgres store module configuration.
type Config struct {
	// DSN is a postgres:// connection URL.
	DSN string `yaml:"dsn"`

	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32 `yaml:"max_conns"`

	// ConnectTimeout bounds the initial connect and ping. Defaults to 10s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

func (c *Config) defaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.DSN == "" {
		errs = append(errs, errors.New("postgres: dsn is required"))
	}
	if c.MaxConns < 0 {
		errs = append(errs, errors.New("postgres: max_conns must be non-negative"))
	}
	return errors.Join(errs...)
}
