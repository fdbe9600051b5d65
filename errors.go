package sopdoc

import "errors"

// Sentinel errors for library operations.
var (
	// Document errors.
	ErrMalformedDocument = errors.New("malformed document")
	ErrUnknownMetaField  = errors.New("unknown metadata field")
	ErrInvalidImage      = errors.New("invalid image payload")

	// Export errors. Every export failure wraps ErrExportFailed plus its cause.
	ErrExportFailed     = errors.New("export failed")
	ErrExportInProgress = errors.New("export already in progress")
	ErrResourceUnready  = errors.New("resources not ready")
	ErrRasterization    = errors.New("rasterization failed")
	ErrArtifactAssembly = errors.New("artifact assembly failed")
	ErrBrowserConnect   = errors.New("failed to connect to browser")
	ErrPageCreate       = errors.New("failed to create browser page")
	ErrPageLoad         = errors.New("failed to load page")
	ErrInvalidPageSize  = errors.New("invalid page size")

	// Persistence errors.
	ErrPersistence = errors.New("persistence failure")

	// Suggestion errors.
	ErrSuggestionsDisabled = errors.New("step suggestions are disabled (no API key configured)")
	ErrEmptyTitle          = errors.New("title cannot be empty")
	ErrSuggestion          = errors.New("step suggestion failed")
)
