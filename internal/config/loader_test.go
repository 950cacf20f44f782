package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobagent.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_ExpandsEnvAndDecodesPipeline(t *testing.T) {
	t.Setenv("JOBAGENT_TEST_DB", "/tmp/jobs.db")

	path := writeConfig(t, `
version: "1"
pipeline:
  default_evaluator: ${JOBAGENT_TEST_EVALUATOR:-google}
  match_timeout: 45s
  cycle_schedule: "0 * * * *"
security:
  url_filter:
    deny_domains: [spam.example.com]
modules:
  store.sqlite:
    path: ${JOBAGENT_TEST_DB}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.DefaultEvaluator != "google" {
		t.Errorf("default evaluator = %q, want google", cfg.Pipeline.DefaultEvaluator)
	}
	if cfg.Pipeline.MatchTimeout != 45*time.Second {
		t.Errorf("match timeout = %v", cfg.Pipeline.MatchTimeout)
	}
	if got := cfg.Security.URLFilter.DenyDomains; len(got) != 1 || got[0] != "spam.example.com" {
		t.Errorf("deny domains = %v", got)
	}

	node := cfg.Modules["store.sqlite"]
	var store struct {
		Path string `yaml:"path"`
	}
	if err := node.Decode(&store); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if store.Path != "/tmp/jobs.db" {
		t.Errorf("path = %q", store.Path)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\nmodules:\n  x.y:\n    key: ${JOBAGENT_TEST_SURELY_UNSET}\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "JOBAGENT_TEST_SURELY_UNSET") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestParse_ReportsEachMissingVariableOnce(t *testing.T) {
	_, err := Parse([]byte("a: ${JOBAGENT_TEST_UNSET_A}\nb: ${JOBAGENT_TEST_UNSET_B}\nc: ${JOBAGENT_TEST_UNSET_A}\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := err.Error(), "unresolved variables: JOBAGENT_TEST_UNSET_A, JOBAGENT_TEST_UNSET_B"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestParse_EmptyVariableBeatsFallback(t *testing.T) {
	t.Setenv("JOBAGENT_TEST_EMPTY", "")

	cfg, err := Parse([]byte("version: \"1${JOBAGENT_TEST_EMPTY:-9}\"\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Version != "1" {
		t.Errorf("version = %q, want 1", cfg.Version)
	}
}

func TestResolve_Sorted(t *testing.T) {
	t.Parallel()

	cfg := &Config{Modules: map[string]yaml.Node{"store.sqlite": {}, "discovery.adzuna": {}, "gateway.http": {}}}
	got := Resolve(cfg)
	want := []string{"discovery.adzuna", "gateway.http", "store.sqlite"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}
