package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// evaluatorPreset is the configuration proposed for an evaluator choice.
type evaluatorPreset struct {
	Module  string
	BaseURL string
	Model   string
	KeyEnv  string
}

var evaluatorPresets = map[string]evaluatorPreset{
	"deepseek": {Module: "provider.openai_compatible", BaseURL: "https://api.deepseek.com", Model: "deepseek-chat", KeyEnv: "DEEPSEEK_API_KEY"},
	"openai":   {Module: "provider.openai_compatible", BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini", KeyEnv: "OPENAI_API_KEY"},
	"google":   {Module: "provider.gemini", Model: "gemini-2.0-flash", KeyEnv: "GEMINI_API_KEY"},
}

// initAnswers holds what the init form collects.
type initAnswers struct {
	Evaluator string
	Model     string
	APIKeyEnv string
	Country   string
	Store     string
	Gateway   bool
	Bind      string

	// Preset is filled by renderConfig.
	Preset evaluatorPreset
}

func defaultAnswers() initAnswers {
	p := evaluatorPresets["deepseek"]
	return initAnswers{
		Evaluator: "deepseek",
		Model:     p.Model,
		APIKeyEnv: p.KeyEnv,
		Country:   "au",
		Store:     "sqlite",
		Bind:      "127.0.0.1:8080",
	}
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = defaultConfigPath()
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			answers := defaultAnswers()
			if !yes {
				if err := askInit(&answers); err != nil {
					return err
				}
			}
			body, err := renderConfig(answers)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(output), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(output, []byte(body), 0o600); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", output)
			fmt.Fprintf(out, "Export ADZUNA_APP_ID, ADZUNA_APP_KEY and %s, then run: jobagent config check\n", answers.APIKeyEnv)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the file (default: user config dir)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the defaults without prompting")
	return cmd
}

func defaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "jobagent", "jobagent.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "jobagent", "jobagent.yaml")
	}
	return "jobagent.yaml"
}

func askInit(a *initAnswers) error {
	evaluator := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Which model should score postings?").
			Options(
				huh.NewOption("DeepSeek", "deepseek"),
				huh.NewOption("OpenAI", "openai"),
				huh.NewOption("Google Gemini", "google"),
			).
			Value(&a.Evaluator),
	))
	if err := evaluator.Run(); err != nil {
		return err
	}
	p := evaluatorPresets[a.Evaluator]
	a.Model, a.APIKeyEnv = p.Model, p.KeyEnv

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Model").Value(&a.Model).Validate(required("model")),
			huh.NewInput().
				Title("Environment variable holding the API key").
				Value(&a.APIKeyEnv).
				Validate(required("variable name")),
			huh.NewInput().
				Title("Job board country code").
				Placeholder("au").
				Value(&a.Country).
				Validate(func(s string) error {
					if len(strings.TrimSpace(s)) != 2 {
						return errors.New("use a two-letter country code")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should tasks be stored?").
				Options(
					huh.NewOption("SQLite file in the data directory", "sqlite"),
					huh.NewOption("PostgreSQL (dsn from JOBAGENT_POSTGRES_DSN)", "postgres"),
				).
				Value(&a.Store),
			huh.NewConfirm().Title("Expose the HTTP API?").Value(&a.Gateway),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	if a.Gateway {
		return huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Listen address").Value(&a.Bind).Validate(required("address")),
		)).Run()
	}
	return nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

var configTemplate = template.Must(template.New("config").Parse(`version: "1"

pipeline:
  default_evaluator: {{ .Evaluator }}
  cycle_schedule: "0 * * * *"

modules:
{{- if eq .Store "postgres" }}
  store.postgres:
    dsn: ${JOBAGENT_POSTGRES_DSN}
{{- else }}
  store.sqlite: {}
{{- end }}

  discovery.adzuna:
    app_id_env: ADZUNA_APP_ID
    app_key_env: ADZUNA_APP_KEY
    country: {{ .Country }}
{{ if eq .Preset.Module "provider.gemini" }}
  provider.gemini:
    key: {{ .Evaluator }}
    model: {{ .Model }}
    api_key_env: {{ .APIKeyEnv }}
{{- else }}
  provider.openai_compatible:
    endpoints:
      {{ .Evaluator }}:
        base_url: {{ .Preset.BaseURL }}
        model: {{ .Model }}
        api_key_env: {{ .APIKeyEnv }}
        json_mode: true
{{- end }}
{{- if .Gateway }}

  gateway.http:
    bind: "{{ .Bind }}"
    auth:
      bearer_token: ${JOBAGENT_API_TOKEN}
{{- end }}
`))

// renderConfig produces a configuration file for the answers. Secrets are
// referenced by environment variable, never written inline.
func renderConfig(a initAnswers) (string, error) {
	p, ok := evaluatorPresets[a.Evaluator]
	if !ok {
		return "", fmt.Errorf("unknown evaluator %q", a.Evaluator)
	}
	a.Preset = p
	a.Country = strings.ToLower(strings.TrimSpace(a.Country))

	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, a); err != nil {
		return "", err
	}
	return buf.String(), nil
}
