package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/jobagent/internal/core"
	"github.com/flemzord/jobagent/internal/cron"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry and that pipeline values
// are usable.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validatePipeline(cfg.Pipeline)...)

	return errors.Join(errs...)
}

func validatePipeline(p PipelineConfig) []error {
	var errs []error

	ints := []struct {
		name string
		v    int
	}{
		{"match_concurrency", p.MatchConcurrency},
		{"cycle_batch_size", p.CycleBatchSize},
		{"cycle_concurrency", p.CycleConcurrency},
	}
	for _, f := range ints {
		if f.v < 0 {
			errs = append(errs, fmt.Errorf("config: pipeline.%s must not be negative, got %d", f.name, f.v))
		}
	}

	durations := []struct {
		name string
		v    time.Duration
	}{
		{"match_timeout", p.MatchTimeout},
		{"discover_timeout", p.DiscoverTimeout},
		{"cycle_timeout", p.CycleTimeout},
		{"stale_after", p.StaleAfter},
	}
	for _, f := range durations {
		if f.v < 0 {
			errs = append(errs, fmt.Errorf("config: pipeline.%s must not be negative", f.name))
		}
	}

	if p.CycleSchedule != "" {
		if err := cron.ParseSchedule(p.CycleSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: pipeline.cycle_schedule: %w", err))
		}
	}
	return errs
}

// Module namespaces with cardinality rules.
const (
	NamespaceStore     = "store"
	NamespaceProvider  = "provider"
	NamespaceDiscovery = "discovery"
)

// ValidateRoles checks that the configured modules can form a running
// service: exactly one store, at least one provider and exactly one
// discovery source.
func ValidateRoles(cfg *Config) error {
	counts := make(map[string][]string)
	for id := range cfg.Modules {
		ns, _, _ := strings.Cut(id, ".")
		counts[ns] = append(counts[ns], id)
	}

	var errs []error
	exactlyOne := func(ns string) {
		switch n := len(counts[ns]); {
		case n == 0:
			errs = append(errs, fmt.Errorf("config: a %s module must be configured%s", ns, compiledHint(ns)))
		case n > 1:
			errs = append(errs, fmt.Errorf("config: exactly one %s module allowed, got %s", ns, strings.Join(sorted(counts[ns]), ", ")))
		}
	}
	exactlyOne(NamespaceStore)
	exactlyOne(NamespaceDiscovery)
	if len(counts[NamespaceProvider]) == 0 {
		errs = append(errs, fmt.Errorf("config: at least one provider module must be configured%s", compiledHint(NamespaceProvider)))
	}
	return errors.Join(errs...)
}

// compiledHint lists the compiled modules that could fill a missing role.
func compiledHint(ns string) string {
	mods := core.GetModulesByNamespace(ns)
	if len(mods) == 0 {
		return ""
	}
	ids := make([]string, len(mods))
	for i, m := range mods {
		ids[i] = string(m.ID)
	}
	return " (available: " + strings.Join(ids, ", ") + ")"
}
