package sopdoc

import "github.com/alnah/go-sopdoc/internal/fileutil"

// Fallback base names used when a title sanitizes to nothing.
const (
	DefaultExportName  = "sop_document"
	DefaultProjectName = "sop_project"
)

// ExportFilename returns the PDF file name derived from a document title.
func ExportFilename(title string) string {
	return fileutil.SanitizeName(title, DefaultExportName) + ".pdf"
}

// ProjectFilename returns the project file name derived from a document title.
func ProjectFilename(title string) string {
	return fileutil.SanitizeName(title, DefaultProjectName) + ".json"
}
