package main

import (
	"context"
	"errors"
	"os"

	sopdoc "github.com/alnah/go-sopdoc"
	"github.com/alnah/go-sopdoc/internal/assets"
	"github.com/alnah/go-sopdoc/internal/config"
	"github.com/alnah/go-sopdoc/internal/dateutil"
	"github.com/alnah/go-sopdoc/internal/hints"
)

// Exit codes for the sopdoc CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Command completed
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or document
	ExitIO      = 3 // File not found, permission denied, draft storage
	ExitBrowser = 4 // Browser, rasterization or PDF assembly errors
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser/export errors (exit 4)
	if errors.Is(err, sopdoc.ErrBrowserConnect) ||
		errors.Is(err, sopdoc.ErrPageCreate) ||
		errors.Is(err, sopdoc.ErrPageLoad) ||
		errors.Is(err, sopdoc.ErrRasterization) ||
		errors.Is(err, sopdoc.ErrResourceUnready) ||
		errors.Is(err, sopdoc.ErrArtifactAssembly) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadProject) ||
		errors.Is(err, ErrWriteOutput) ||
		errors.Is(err, ErrNoInput) ||
		errors.Is(err, ErrNoDraft) ||
		errors.Is(err, sopdoc.ErrPersistence) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrEnvConfig) ||
		errors.Is(err, ErrUnknownCommand) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrOutputExists) ||
		errors.Is(err, ErrUnknownStep) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, dateutil.ErrInvalidDateFormat) ||
		errors.Is(err, assets.ErrStyleNotFound) ||
		errors.Is(err, assets.ErrTemplateNotFound) ||
		errors.Is(err, assets.ErrInvalidAssetName) ||
		errors.Is(err, assets.ErrInvalidBasePath) ||
		errors.Is(err, sopdoc.ErrMalformedDocument) ||
		errors.Is(err, sopdoc.ErrUnknownMetaField) ||
		errors.Is(err, sopdoc.ErrInvalidImage) ||
		errors.Is(err, sopdoc.ErrInvalidPageSize) ||
		errors.Is(err, sopdoc.ErrEmptyTitle) ||
		errors.Is(err, sopdoc.ErrSuggestionsDisabled) {
		return ExitUsage
	}

	// Remaining export failures (timeouts, internal errors) count as browser errors.
	if errors.Is(err, sopdoc.ErrExportFailed) {
		return ExitBrowser
	}

	return ExitGeneral
}

// hintedError attaches an actionable hint to an error without changing its chain.
type hintedError struct {
	err  error
	hint string
}

func (e *hintedError) Error() string { return e.err.Error() }
func (e *hintedError) Unwrap() error { return e.err }

// withHint wraps err with hint. An empty hint returns err unchanged.
func withHint(err error, hint string) error {
	if err == nil || hint == "" {
		return err
	}
	return &hintedError{err: err, hint: hint}
}

// hintFor returns the hint suffix printed after an error message.
// Batch failures were already reported with their hints.
func hintFor(err error) string {
	var be *batchError
	if errors.As(err, &be) {
		return ""
	}
	var he *hintedError
	if errors.As(err, &he) {
		return he.hint
	}
	switch {
	case errors.Is(err, sopdoc.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	case errors.Is(err, context.DeadlineExceeded):
		return hints.ForTimeout()
	case errors.Is(err, assets.ErrStyleNotFound):
		return hints.ForStyleNotFound(assets.StyleNames())
	case errors.Is(err, sopdoc.ErrMalformedDocument):
		return hints.ForMalformedDocument()
	case errors.Is(err, sopdoc.ErrInvalidImage):
		return hints.ForInvalidImage(sopdoc.MaxImageBytes)
	case errors.Is(err, sopdoc.ErrSuggestionsDisabled):
		return hints.ForSuggestionsDisabled()
	}
	return ""
}
