package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	sopdoc "github.com/alnah/go-sopdoc"
	"github.com/alnah/go-sopdoc/internal/config"
)

// Environment holds injectable dependencies for testability.
// Includes I/O, time, base configuration and the factories for the
// exporter pool, the step suggester and the draft store.
type Environment struct {
	Now    func() time.Time
	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config // base configuration when no file is given

	NewPool      func(size int, opts ...sopdoc.ExportOption) Pool
	NewSuggester func(apiKey, model string, logger *slog.Logger) sopdoc.Suggester
	OpenDrafts   func(path, slot string) (*sopdoc.DraftStore, error)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:          time.Now,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		Config:       config.DefaultConfig(),
		NewPool:      newExporterPool,
		NewSuggester: sopdoc.NewSuggester,
		OpenDrafts:   sopdoc.OpenDraftStore,
	}
}

// Exporter is the part of *sopdoc.Exporter the CLI uses.
type Exporter interface {
	Export(ctx context.Context, doc sopdoc.Document) (*sopdoc.Artifact, error)
	RenderHTML(ctx context.Context, doc sopdoc.Document) (string, error)
}

// Compile-time interface implementation check.
var _ Exporter = (*sopdoc.Exporter)(nil)

// Pool abstracts exporter pool operations for testability.
type Pool interface {
	Acquire(ctx context.Context) (Exporter, error)
	Release(Exporter)
	Size() int
	Close() error
}
