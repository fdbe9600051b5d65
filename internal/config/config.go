// Package config loads the YAML configuration of the sopdoc CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/alnah/go-sopdoc/internal/dateutil"
	"github.com/alnah/go-sopdoc/internal/fileutil"
	"github.com/alnah/go-sopdoc/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// AppDir is the directory name used under the user config directory.
const AppDir = "go-sopdoc"

// Field limits.
const (
	MaxPathLength       = 4096
	MaxStyleNameLength  = 64
	MaxSlotLength       = 64
	MaxModelLength      = 100
	MaxAPIKeyLength     = 256
	MaxBackgroundLength = 32
	MaxScale            = 4.0
	MaxWorkers          = 32
	MaxSuggestCount     = 60
	MaxHistoryLimit     = 10000
)

// Config holds all configuration for editing and export.
type Config struct {
	Export  ExportConfig  `yaml:"export"`
	Draft   DraftConfig   `yaml:"draft"`
	History HistoryConfig `yaml:"history"`
	Assets  AssetsConfig  `yaml:"assets"`
	Suggest SuggestConfig `yaml:"suggest"`
}

// ExportConfig defines rasterization and artifact options.
type ExportConfig struct {
	Scale            float64       `yaml:"scale"`            // device scale factor (default: 3)
	Quality          int           `yaml:"quality"`          // JPEG quality 1-100 (default: 95)
	SettleDelay      time.Duration `yaml:"settleDelay"`      // wait after readiness (default: 300ms)
	ReadyTimeout     time.Duration `yaml:"readyTimeout"`     // readiness barrier cap (default: 10s)
	Timeout          time.Duration `yaml:"timeout"`          // whole export (default: 2m)
	Background       string        `yaml:"background"`       // page background color
	DateFormat       string        `yaml:"dateFormat"`       // footer date layout or preset
	AllowCrossOrigin bool          `yaml:"allowCrossOrigin"` // load remote images into the canvas
	Workers          int           `yaml:"workers"`          // batch exporters, 0 = auto
	OutputDir        string        `yaml:"outputDir"`        // empty = next to the project file
}

// DraftConfig defines the autosave slot.
type DraftConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Path     string        `yaml:"path"`     // SQLite file; empty = DefaultDraftPath()
	Slot     string        `yaml:"slot"`     // slot name (default: sop_draft)
	Debounce time.Duration `yaml:"debounce"` // quiet interval (default: 500ms)
}

// HistoryConfig bounds the undo stack.
type HistoryConfig struct {
	Limit int `yaml:"limit"` // 0 = unbounded
}

// AssetsConfig defines template and stylesheet loading.
type AssetsConfig struct {
	BasePath string `yaml:"basePath"` // empty = embedded assets
	Style    string `yaml:"style"`    // stylesheet name (default: "default")
}

// SuggestConfig defines the step suggestion service.
type SuggestConfig struct {
	Model  string `yaml:"model"`
	APIKey string `yaml:"apiKey"` // usually supplied through the environment
	Count  int    `yaml:"count"`  // steps requested, 0 = one page
}

var (
	cssColor = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]+|rgba?\([0-9.,\s%]+\))$`)
	slotName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// Validate checks value ranges and field lengths.
// Called automatically by LoadConfig, but available for callers
// who build a Config from flags or the environment.
func (c *Config) Validate() error {
	if err := c.Export.validate(); err != nil {
		return err
	}
	if err := c.Draft.validate(); err != nil {
		return err
	}
	if c.History.Limit < 0 || c.History.Limit > MaxHistoryLimit {
		return fmt.Errorf("%w: history.limit must be between 0 and %d, got %d", ErrInvalidValue, MaxHistoryLimit, c.History.Limit)
	}
	if err := validateFieldLength("assets.basePath", c.Assets.BasePath, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("assets.style", c.Assets.Style, MaxStyleNameLength); err != nil {
		return err
	}
	if err := validateFieldLength("suggest.model", c.Suggest.Model, MaxModelLength); err != nil {
		return err
	}
	if err := validateFieldLength("suggest.apiKey", c.Suggest.APIKey, MaxAPIKeyLength); err != nil {
		return err
	}
	if c.Suggest.Count < 0 || c.Suggest.Count > MaxSuggestCount {
		return fmt.Errorf("%w: suggest.count must be between 0 and %d, got %d", ErrInvalidValue, MaxSuggestCount, c.Suggest.Count)
	}
	return nil
}

func (e *ExportConfig) validate() error {
	if e.Scale <= 0 || e.Scale > MaxScale {
		return fmt.Errorf("%w: export.scale must be in (0, %g], got %g", ErrInvalidValue, MaxScale, e.Scale)
	}
	if e.Quality < 1 || e.Quality > 100 {
		return fmt.Errorf("%w: export.quality must be between 1 and 100, got %d", ErrInvalidValue, e.Quality)
	}
	for name, d := range map[string]time.Duration{
		"export.settleDelay":  e.SettleDelay,
		"export.readyTimeout": e.ReadyTimeout,
		"export.timeout":      e.Timeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s cannot be negative, got %s", ErrInvalidValue, name, d)
		}
	}
	if err := validateFieldLength("export.background", e.Background, MaxBackgroundLength); err != nil {
		return err
	}
	if e.Background != "" && !cssColor.MatchString(e.Background) {
		return fmt.Errorf("%w: export.background %q is not a CSS color", ErrInvalidValue, e.Background)
	}
	if e.DateFormat != "" {
		if _, err := dateutil.ParseDateFormat(e.DateFormat); err != nil {
			return fmt.Errorf("export.dateFormat: %w", err)
		}
	}
	if e.Workers < 0 || e.Workers > MaxWorkers {
		return fmt.Errorf("%w: export.workers must be between 0 and %d, got %d", ErrInvalidValue, MaxWorkers, e.Workers)
	}
	return validateFieldLength("export.outputDir", e.OutputDir, MaxPathLength)
}

func (d *DraftConfig) validate() error {
	if err := validateFieldLength("draft.path", d.Path, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("draft.slot", d.Slot, MaxSlotLength); err != nil {
		return err
	}
	if d.Slot != "" && !slotName.MatchString(d.Slot) {
		return fmt.Errorf("%w: draft.slot %q may only contain letters, digits, '.', '_' and '-'", ErrInvalidValue, d.Slot)
	}
	if d.Debounce < 0 {
		return fmt.Errorf("%w: draft.debounce cannot be negative, got %s", ErrInvalidValue, d.Debounce)
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Export: ExportConfig{
			Scale:            3,
			Quality:          95,
			SettleDelay:      300 * time.Millisecond,
			ReadyTimeout:     10 * time.Second,
			Timeout:          2 * time.Minute,
			Background:       "#ffffff",
			DateFormat:       dateutil.DefaultDisplayFormat,
			AllowCrossOrigin: true,
		},
		Draft: DraftConfig{
			Enabled:  true,
			Slot:     "sop_draft",
			Debounce: 500 * time.Millisecond,
		},
		Assets:  AssetsConfig{Style: "default"},
		Suggest: SuggestConfig{Model: "gemini-2.5-flash"},
	}
}

// DefaultDraftPath returns the SQLite draft file under the user config directory.
func DefaultDraftPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(dir, AppDir, "drafts.db"), nil
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Keys missing from the file keep their DefaultConfig value.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	configPath := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath searches for a config file by name.
// Extensions: .yaml, .yml. Locations: current directory, then ~/.config/go-sopdoc/.
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	tried := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		p := name + ext
		if fileutil.FileExists(p) {
			return p, nil
		}
		tried = append(tried, p)
	}

	if dir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			p := filepath.Join(dir, AppDir, name+ext)
			if fileutil.FileExists(p) {
				return p, nil
			}
			tried = append(tried, p)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
