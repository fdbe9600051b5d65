package sopdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var errNoPages = errors.New("no pages to assemble")

// pdfcpu otherwise creates a config directory under the user's home.
var disableConfigDir sync.Once

// pdfWriter places each raster full-bleed on its own page of fixed size.
type pdfWriter struct {
	size  PageSize
	pages [][]byte
}

// Compile-time interface check.
var _ ArtifactWriter = (*pdfWriter)(nil)

// NewPDFWriter returns an ArtifactWriter producing a PDF with one image
// page per raster, each page exactly size.
func NewPDFWriter(size PageSize) (ArtifactWriter, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	disableConfigDir.Do(api.DisableConfigDir)
	return &pdfWriter{size: size}, nil
}

func (w *pdfWriter) AddPage(r Raster) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("page %d: empty raster", len(w.pages)+1)
	}
	w.pages = append(w.pages, bytes.Clone(r.Data))
	return nil
}

// Finish writes the PDF. Page order is AddPage order.
func (w *pdfWriter) Finish(out io.Writer) error {
	if len(w.pages) == 0 {
		return errNoPages
	}

	imp, err := api.Import(fmt.Sprintf("dimensions:%g %g, position:full", w.size.Width, w.size.Height), types.MILLIMETRES)
	if err != nil {
		return fmt.Errorf("page layout: %w", err)
	}

	readers := make([]io.Reader, len(w.pages))
	for i, p := range w.pages {
		readers[i] = bytes.NewReader(p)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ImportImages(nil, out, readers, imp, conf); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}
