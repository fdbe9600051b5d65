package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/alnah/go-sopdoc/internal/config"
)

// ErrEnvConfig indicates a SOPDOC_* variable that could not be parsed.
var ErrEnvConfig = errors.New("invalid environment variable")

// envPrefix marks the variables owned by sopdoc.
const envPrefix = "SOPDOC_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	// Tier 1 - Essential
	ConfigPath string        `env:"SOPDOC_CONFIG"`
	Timeout    time.Duration `env:"SOPDOC_TIMEOUT"`
	Workers    int           `env:"SOPDOC_WORKERS"`

	// Tier 2 - Export output
	OutputDir  string `env:"SOPDOC_OUTPUT_DIR"`
	Style      string `env:"SOPDOC_STYLE"`
	AssetPath  string `env:"SOPDOC_ASSET_PATH"`
	DateFormat string `env:"SOPDOC_DATE_FORMAT"`

	// Tier 3 - Drafts and suggestions
	DraftPath string `env:"SOPDOC_DRAFT_PATH"`
	DraftSlot string `env:"SOPDOC_DRAFT_SLOT"`
	NoDraft   bool   `env:"SOPDOC_NO_DRAFT"`
	APIKey    string `env:"SOPDOC_API_KEY"`
	GeminiKey string `env:"GEMINI_API_KEY"`
	Model     string `env:"SOPDOC_MODEL"`
}

// knownEnvVars lists valid SOPDOC_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"SOPDOC_CONFIG":      true,
	"SOPDOC_TIMEOUT":     true,
	"SOPDOC_WORKERS":     true,
	"SOPDOC_OUTPUT_DIR":  true,
	"SOPDOC_STYLE":       true,
	"SOPDOC_ASSET_PATH":  true,
	"SOPDOC_DATE_FORMAT": true,
	"SOPDOC_DRAFT_PATH":  true,
	"SOPDOC_DRAFT_SLOT":  true,
	"SOPDOC_NO_DRAFT":    true,
	"SOPDOC_API_KEY":     true,
	"SOPDOC_MODEL":       true,
	"SOPDOC_CONTAINER":   true, // read by doctor
}

// loadEnvConfig reads configuration from environment variables.
// Unlike flags, a malformed value is reported rather than ignored, so a
// typo in SOPDOC_TIMEOUT never silently falls back to the default.
func loadEnvConfig() (*envConfig, error) {
	cfg := &envConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvConfig, err)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: SOPDOC_TIMEOUT cannot be negative, got %s", ErrEnvConfig, cfg.Timeout)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: SOPDOC_WORKERS cannot be negative, got %d", ErrEnvConfig, cfg.Workers)
	}
	return cfg, nil
}

// apiKey returns SOPDOC_API_KEY, falling back to GEMINI_API_KEY.
func (e *envConfig) apiKey() string {
	if e.APIKey != "" {
		return e.APIKey
	}
	return e.GeminiKey
}

// warnUnknownEnvVars logs warnings for unrecognized SOPDOC_* variables.
// Helps catch typos like SOPDOC_WORKER instead of SOPDOC_WORKERS.
func warnUnknownEnvVars(w io.Writer) {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, envPrefix) && !knownEnvVars[name] {
			fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
		}
	}
}

// applyEnvConfig overlays set environment values onto cfg.
// Precedence: CLI flags > env vars > config file > defaults
// (CLI flags are applied afterwards by each command).
func applyEnvConfig(e *envConfig, cfg *config.Config) {
	if e.Timeout > 0 {
		cfg.Export.Timeout = e.Timeout
	}
	if e.Workers > 0 {
		cfg.Export.Workers = e.Workers
	}
	if e.OutputDir != "" {
		cfg.Export.OutputDir = e.OutputDir
	}
	if e.Style != "" {
		cfg.Assets.Style = e.Style
	}
	if e.AssetPath != "" {
		cfg.Assets.BasePath = e.AssetPath
	}
	if e.DateFormat != "" {
		cfg.Export.DateFormat = e.DateFormat
	}
	if e.DraftPath != "" {
		cfg.Draft.Path = e.DraftPath
	}
	if e.DraftSlot != "" {
		cfg.Draft.Slot = e.DraftSlot
	}
	if e.NoDraft {
		cfg.Draft.Enabled = false
	}
	if key := e.apiKey(); key != "" {
		cfg.Suggest.APIKey = key
	}
	if e.Model != "" {
		cfg.Suggest.Model = e.Model
	}
}
