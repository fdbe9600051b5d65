package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	sopdoc "github.com/alnah/go-sopdoc"
	"github.com/alnah/go-sopdoc/internal/config"
	"github.com/alnah/go-sopdoc/internal/hints"
)

// settings is the resolved configuration of one command invocation.
type settings struct {
	cfg    *config.Config
	env    *envConfig
	logger *slog.Logger
	quiet  bool
}

// loadSettings resolves the configuration: a config file named by --config
// or SOPDOC_CONFIG (else env.Config), then SOPDOC_* overrides.
// Commands apply their own flags on top.
func loadSettings(common commonFlags, env *Environment) (*settings, error) {
	warnUnknownEnvVars(env.Stderr)

	envCfg, err := loadEnvConfig()
	if err != nil {
		return nil, err
	}

	name := common.config
	if name == "" {
		name = envCfg.ConfigPath
	}

	var cfg config.Config
	if name != "" {
		loaded, err := config.LoadConfig(name)
		if err != nil {
			if errors.Is(err, config.ErrConfigNotFound) {
				return nil, withHint(fmt.Errorf("loading config: %w", err), hints.ForConfigNotFound(configSearchPaths(name)))
			}
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = *loaded
	} else {
		cfg = *env.Config
	}

	applyEnvConfig(envCfg, &cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &settings{
		cfg:    &cfg,
		env:    envCfg,
		logger: newLogger(env.Stderr, common),
		quiet:  common.quiet,
	}, nil
}

// configSearchPaths lists the user-level locations tried for a config name.
func configSearchPaths(name string) []string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(dir, config.AppDir, name+".yaml")}
}

// newLogger builds the diagnostic logger: warnings by default,
// debug with --verbose, errors only with --quiet.
func newLogger(w io.Writer, common commonFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case common.verbose:
		level = slog.LevelDebug
	case common.quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// sessionOptions returns the session options shared by editing commands.
func (s *settings) sessionOptions() []sopdoc.SessionOption {
	return []sopdoc.SessionOption{
		sopdoc.WithLogger(s.logger),
		sopdoc.WithHistoryLimit(s.cfg.History.Limit),
		sopdoc.WithAutosaveDelay(s.cfg.Draft.Debounce),
	}
}

// draftPath returns the configured draft database path.
func (s *settings) draftPath() (string, error) {
	if s.cfg.Draft.Path != "" {
		return s.cfg.Draft.Path, nil
	}
	return config.DefaultDraftPath()
}

// openDrafts opens the draft store used for autosave, or returns nil when
// drafts are disabled.
func (s *settings) openDrafts(env *Environment) (*sopdoc.DraftStore, error) {
	if !s.cfg.Draft.Enabled {
		return nil, nil
	}
	return s.openDraftStore(env)
}

// openDraftStore opens the configured draft slot whether or not autosave is enabled.
func (s *settings) openDraftStore(env *Environment) (*sopdoc.DraftStore, error) {
	path, err := s.draftPath()
	if err != nil {
		return nil, err
	}
	drafts, err := env.OpenDrafts(path, s.cfg.Draft.Slot)
	if err != nil {
		return nil, fmt.Errorf("opening drafts: %w", err)
	}
	return drafts, nil
}

// exportOptions translates the export configuration into exporter options.
func (s *settings) exportOptions() []sopdoc.ExportOption {
	e := s.cfg.Export
	opts := []sopdoc.ExportOption{
		sopdoc.WithScale(e.Scale),
		sopdoc.WithQuality(e.Quality),
		sopdoc.WithSettleDelay(e.SettleDelay),
		sopdoc.WithCrossOrigin(e.AllowCrossOrigin),
		sopdoc.WithAssetPath(s.cfg.Assets.BasePath),
		sopdoc.WithStyle(s.cfg.Assets.Style),
		sopdoc.WithExportLogger(s.logger),
	}
	if e.ReadyTimeout > 0 {
		opts = append(opts, sopdoc.WithReadyTimeout(e.ReadyTimeout))
	}
	if e.Timeout > 0 {
		opts = append(opts, sopdoc.WithExportTimeout(e.Timeout))
	}
	if e.Background != "" {
		opts = append(opts, sopdoc.WithBackground(e.Background))
	}
	if e.DateFormat != "" {
		opts = append(opts, sopdoc.WithDateFormat(e.DateFormat))
	}
	return opts
}

// suggester builds the step suggester from the suggest section.
func (s *settings) suggester(env *Environment) sopdoc.Suggester {
	return env.NewSuggester(s.cfg.Suggest.APIKey, s.cfg.Suggest.Model, s.logger)
}

// printf writes a progress line unless --quiet.
func (s *settings) printf(w io.Writer, format string, args ...any) {
	if !s.quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// newSession creates a session over doc, with autosave to drafts when non-nil.
func (s *settings) newSession(doc *sopdoc.Document, drafts *sopdoc.DraftStore, extra ...sopdoc.SessionOption) (*sopdoc.Session, error) {
	opts := s.sessionOptions()
	if doc != nil {
		opts = append(opts, sopdoc.WithDocument(*doc))
	}
	if drafts != nil {
		opts = append(opts, sopdoc.WithStore(drafts))
	}
	return sopdoc.NewSession(append(opts, extra...)...)
}

// closeSession flushes pending autosaves and closes the draft store.
func closeSession(sess *sopdoc.Session, drafts *sopdoc.DraftStore) {
	_ = sess.Close()
	if drafts != nil {
		_ = drafts.Close()
	}
}

// background is the command context: canceled on SIGINT/SIGTERM.
func background() (context.Context, context.CancelFunc) {
	return notifyContext(context.Background())
}
