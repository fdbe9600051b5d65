// Package assets provides the page template and stylesheets used to render
// SOP documents for export.
//
// Assets come from two places:
//
//	EmbeddedLoader    built-in template and styles compiled into the binary
//	FilesystemLoader  a user directory on disk
//	AssetResolver     custom directory first, embedded as fallback
//
// A custom directory mirrors the embedded layout:
//
//	{basePath}/
//	├── styles/
//	│   └── {name}.css
//	└── templates/
//	    └── document.html
//
// Asset names are validated before use. FilesystemLoader resolves symlinks
// and refuses paths that escape basePath.
package assets

// DefaultStyleName is the built-in page stylesheet.
const DefaultStyleName = "default"

// DocumentTemplateName is the page template every export renders through.
const DocumentTemplateName = "document"

// AssetLoader loads stylesheets and HTML templates by name.
type AssetLoader interface {
	// LoadStyle loads a stylesheet by name (without .css).
	// Returns ErrStyleNotFound or ErrInvalidAssetName.
	LoadStyle(name string) (string, error)

	// LoadTemplate loads an HTML template by name (without .html).
	// Returns ErrTemplateNotFound or ErrInvalidAssetName.
	LoadTemplate(name string) (string, error)
}

var defaultLoader = NewEmbeddedLoader()

// LoadStyle loads an embedded stylesheet.
func LoadStyle(name string) (string, error) {
	return defaultLoader.LoadStyle(name)
}

// LoadTemplate loads an embedded template.
func LoadTemplate(name string) (string, error) {
	return defaultLoader.LoadTemplate(name)
}
