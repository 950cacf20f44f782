package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/jobagent/internal/config"
	"github.com/flemzord/jobagent/internal/task"
)

func TestRenderConfig_LoadsAndValidates(t *testing.T) {
	t.Setenv("JOBAGENT_POSTGRES_DSN", "postgres://localhost/jobagent")
	t.Setenv("JOBAGENT_API_TOKEN", "token")

	tests := []struct {
		evaluator string
		store     string
		gateway   bool
		module    string
	}{
		{"deepseek", "sqlite", false, "provider.openai_compatible"},
		{"openai", "postgres", true, "provider.openai_compatible"},
		{"google", "sqlite", true, "provider.gemini"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.evaluator, tt.store), func(t *testing.T) {
			a := defaultAnswers()
			a.Evaluator = tt.evaluator
			a.Store = tt.store
			a.Gateway = tt.gateway
			a.Country = " GB "

			body, err := renderConfig(a)
			if err != nil {
				t.Fatalf("renderConfig() error = %v", err)
			}
			path := filepath.Join(t.TempDir(), "jobagent.yaml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatal(err)
			}

			cfg, err := config.Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v\n%s", err, body)
			}
			if err := errors.Join(config.Validate(cfg), config.ValidateRoles(cfg)); err != nil {
				t.Fatalf("validation error = %v\n%s", err, body)
			}
			if cfg.Pipeline.DefaultEvaluator != tt.evaluator {
				t.Errorf("default_evaluator = %q", cfg.Pipeline.DefaultEvaluator)
			}
			for _, id := range []string{"store." + tt.store, "discovery.adzuna", tt.module} {
				if _, ok := cfg.Modules[id]; !ok {
					t.Errorf("module %s missing:\n%s", id, body)
				}
			}
			if _, ok := cfg.Modules["gateway.http"]; ok != tt.gateway {
				t.Errorf("gateway.http present = %v, want %v", ok, tt.gateway)
			}
			if !strings.Contains(body, "country: gb") {
				t.Errorf("country not normalized:\n%s", body)
			}
		})
	}
}

func TestRenderConfig_UnknownEvaluator(t *testing.T) {
	a := defaultAnswers()
	a.Evaluator = "claude"
	if _, err := renderConfig(a); err == nil {
		t.Error("expected error for unknown evaluator")
	}
}

func TestInitCmd_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "jobagent.yaml")

	cmd := initCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--yes", "--output", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(data), "default_evaluator: deepseek") {
		t.Errorf("unexpected config:\n%s", data)
	}

	again := initCmd()
	again.SetOut(&bytes.Buffer{})
	again.SetArgs([]string{"--yes", "--output", path})
	if err := again.Execute(); err == nil {
		t.Error("expected error when the file exists without --force")
	}
}

func TestGlobalFlags_Params(t *testing.T) {
	g := &globalFlags{configPath: "x.yaml", logLevel: "debug"}
	params, err := g.params()
	if err != nil {
		t.Fatalf("params() error = %v", err)
	}
	if params.LogLevel != slog.LevelDebug || params.ConfigPath != "x.yaml" {
		t.Errorf("params = %+v", params)
	}

	g.logLevel = "loud"
	if _, err := g.params(); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestValidationError(t *testing.T) {
	err := errors.Join(
		fmt.Errorf("%w: owner_id is required", task.ErrValidation),
		fmt.Errorf("%w: ai_model is required", task.ErrValidation),
	)
	got := validationError(err).Error()
	want := "validation failed:\n  - owner_id is required\n  - ai_model is required"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	other := errors.New("resume r1 not found")
	if validationError(other) != other {
		t.Error("non-validation errors should pass through")
	}
}

func TestReadInput_Stdin(t *testing.T) {
	got, err := readInput(strings.NewReader("Go engineer"), "-")
	if err != nil || got != "Go engineer" {
		t.Errorf("readInput() = %q, %v", got, err)
	}
	if _, err := readInput(nil, filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRootCmd_Commands(t *testing.T) {
	root := rootCmd()
	for _, path := range [][]string{
		{"task", "run"},
		{"task", "deactivate"},
		{"resume", "add"},
		{"cycle", "run"},
		{"service", "install"},
		{"service", "run"},
		{"config", "check"},
		{"mcp"},
		{"init"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not found", path)
		}
	}
}
