package sopdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alnah/go-sopdoc/internal/assets"
	"github.com/alnah/go-sopdoc/internal/dateutil"
	"github.com/alnah/go-sopdoc/internal/render"
)

// Export defaults.
const (
	DefaultScale        = 3.0
	DefaultQuality      = 95
	DefaultSettleDelay  = 300 * time.Millisecond
	DefaultReadyTimeout = 10 * time.Second
	DefaultBackground   = "#ffffff"
	defaultExportTime   = 2 * time.Minute
)

// PageSize is a physical page size in millimetres.
type PageSize struct {
	Width  float64
	Height float64
}

// A4Landscape is the only layout the page template is designed for.
var A4Landscape = PageSize{Width: 297, Height: 210}

// Validate checks that both dimensions are positive.
func (p PageSize) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: %.1fx%.1f mm", ErrInvalidPageSize, p.Width, p.Height)
	}
	return nil
}

// RasterOptions configures page rasterization.
type RasterOptions struct {
	Scale            float64 // device pixel ratio
	Quality          int     // JPEG quality 1-100
	AllowCrossOrigin bool    // let the renderer load cross-origin images
}

// Raster is one rasterized page.
type Raster struct {
	Data   []byte
	Format string // "jpeg" or "png"
}

// Surface is a rendered document whose page subtrees can be rasterized.
// Implementations are not required to support concurrent Rasterize calls.
type Surface interface {
	// WaitReady blocks until fonts and every image reached a terminal state
	// (loaded or errored). A context deadline means some resource never settled.
	WaitReady(ctx context.Context) error
	// PageCount returns the number of page subtrees found in the document.
	PageCount(ctx context.Context) (int, error)
	// Rasterize captures page subtree i (0-based).
	Rasterize(ctx context.Context, i int) (Raster, error)
	Close() error
}

// Renderer loads printable HTML into a Surface.
type Renderer interface {
	Open(ctx context.Context, html string, opts RasterOptions) (Surface, error)
	Close() error
}

// ArtifactWriter assembles rasterized pages into the output artifact.
type ArtifactWriter interface {
	AddPage(r Raster) error
	Finish(w io.Writer) error
}

// ArtifactWriterFactory starts a new artifact for the given page size.
type ArtifactWriterFactory func(size PageSize) (ArtifactWriter, error)

// Artifact is a finished export.
type Artifact struct {
	Filename string
	Data     []byte
	Pages    int
}

// exporterConfig holds Exporter settings.
type exporterConfig struct {
	raster       RasterOptions
	pageSize     PageSize
	settleDelay  time.Duration
	readyTimeout time.Duration
	timeout      time.Duration
	background   string
	dateFormat   string
	assetPath    string
	style        string
	logger       *slog.Logger
}

// ExportOption configures an Exporter.
type ExportOption func(*Exporter)

// WithScale sets the rasterization device pixel ratio.
// Panics if s <= 0 (programmer error).
func WithScale(s float64) ExportOption {
	if s <= 0 {
		panic("sopdoc: WithScale must be positive")
	}
	return func(e *Exporter) { e.cfg.raster.Scale = s }
}

// WithQuality sets the JPEG quality of rasterized pages (clamped to 1-100).
func WithQuality(q int) ExportOption {
	return func(e *Exporter) { e.cfg.raster.Quality = min(max(q, 1), 100) }
}

// WithCrossOrigin allows the renderer to load cross-origin images.
func WithCrossOrigin(allow bool) ExportOption {
	return func(e *Exporter) { e.cfg.raster.AllowCrossOrigin = allow }
}

// WithSettleDelay sets the fixed pause after the readiness barrier.
func WithSettleDelay(d time.Duration) ExportOption {
	return func(e *Exporter) { e.cfg.settleDelay = max(d, 0) }
}

// WithReadyTimeout bounds the readiness barrier. On timeout the export
// continues, treating unsettled resources as ready.
func WithReadyTimeout(d time.Duration) ExportOption {
	return func(e *Exporter) { e.cfg.readyTimeout = d }
}

// WithExportTimeout bounds a whole export. Panics if d <= 0.
func WithExportTimeout(d time.Duration) ExportOption {
	if d <= 0 {
		panic("sopdoc: WithExportTimeout duration must be positive")
	}
	return func(e *Exporter) { e.cfg.timeout = d }
}

// WithBackground sets the page background color.
func WithBackground(color string) ExportOption {
	return func(e *Exporter) { e.cfg.background = color }
}

// WithDateFormat sets the footer date layout using dateutil tokens
// (e.g. "DD-MM-YYYY", "MMMM D, YYYY").
func WithDateFormat(format string) ExportOption {
	return func(e *Exporter) { e.cfg.dateFormat = format }
}

// WithPageSize sets the physical page size of the artifact.
func WithPageSize(p PageSize) ExportOption {
	return func(e *Exporter) { e.cfg.pageSize = p }
}

// WithAssetPath overrides the embedded page template and styles with
// files from dir (styles/<name>.css, templates/document.html).
func WithAssetPath(dir string) ExportOption {
	return func(e *Exporter) { e.cfg.assetPath = dir }
}

// WithStyle selects the page stylesheet by name.
func WithStyle(name string) ExportOption {
	return func(e *Exporter) { e.cfg.style = name }
}

// WithRenderer replaces the headless Chrome renderer.
func WithRenderer(r Renderer) ExportOption {
	return func(e *Exporter) { e.renderer = r }
}

// WithArtifactWriter replaces the PDF writer.
func WithArtifactWriter(f ArtifactWriterFactory) ExportOption {
	return func(e *Exporter) { e.newWriter = f }
}

// WithExportLogger sets the exporter logger.
func WithExportLogger(l *slog.Logger) ExportOption {
	return func(e *Exporter) { e.cfg.logger = l }
}

// Exporter turns a document into a paginated print artifact.
//
// An export runs strictly sequentially: readiness barrier, settle delay,
// then one page at a time through the renderer and into the artifact writer.
// Exporter is not reentrant; a second Export on the same Exporter must
// wait for the first (ExporterPool or Session enforce this).
type Exporter struct {
	cfg       exporterConfig
	renderer  Renderer
	newWriter ArtifactWriterFactory
	pages     *render.Renderer
}

// NewExporter creates an Exporter. The browser is launched lazily on first export.
func NewExporter(opts ...ExportOption) (*Exporter, error) {
	e := &Exporter{
		cfg: exporterConfig{
			raster: RasterOptions{
				Scale:            DefaultScale,
				Quality:          DefaultQuality,
				AllowCrossOrigin: true,
			},
			pageSize:     A4Landscape,
			settleDelay:  DefaultSettleDelay,
			readyTimeout: DefaultReadyTimeout,
			timeout:      defaultExportTime,
			background:   DefaultBackground,
			dateFormat:   dateutil.DefaultDisplayFormat,
			style:        assets.DefaultStyleName,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.logger == nil {
		e.cfg.logger = discardLogger()
	}
	if err := e.cfg.pageSize.Validate(); err != nil {
		return nil, err
	}
	if _, err := dateutil.ParseDateFormat(e.cfg.dateFormat); err != nil {
		return nil, err
	}

	loader, err := assets.NewAssetResolver(e.cfg.assetPath)
	if err != nil {
		return nil, fmt.Errorf("loading export assets: %w", err)
	}
	css, err := loader.LoadStyle(e.cfg.style)
	if err != nil {
		return nil, fmt.Errorf("loading export assets: %w", err)
	}
	tmpl, err := loader.LoadTemplate(assets.DocumentTemplateName)
	if err != nil {
		return nil, fmt.Errorf("loading export assets: %w", err)
	}
	e.pages, err = render.New(tmpl, css)
	if err != nil {
		return nil, fmt.Errorf("initializing page renderer: %w", err)
	}

	if e.renderer == nil {
		e.renderer = newRodRenderer(e.cfg.timeout, e.cfg.raster.AllowCrossOrigin)
	}
	if e.newWriter == nil {
		e.newWriter = NewPDFWriter
	}
	return e, nil
}

// Close releases the renderer (headless Chrome).
func (e *Exporter) Close() error {
	if e.renderer != nil {
		return e.renderer.Close()
	}
	return nil
}

// RenderHTML returns the printable HTML for doc without rasterizing it.
func (e *Exporter) RenderHTML(ctx context.Context, doc Document) (string, error) {
	return e.pages.Render(ctx, e.view(doc))
}

// Export renders, rasterizes and assembles doc. doc is never modified.
// Any failure aborts the whole export: no partial artifact is returned and
// the error wraps ErrExportFailed plus its cause, so the call can be retried.
// Recovers from internal panics to prevent crashes from propagating to callers.
func (e *Exporter) Export(ctx context.Context, doc Document) (art *Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			art = nil
			err = fmt.Errorf("%w: internal error: %v", ErrExportFailed, r)
		}
	}()

	start := time.Now()
	art, err = e.export(ctx, doc.Clone())
	if err != nil {
		e.cfg.logger.Error("export failed", "document", doc.Meta.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	e.cfg.logger.Info("export finished",
		"document", doc.Meta.ID, "pages", art.Pages, "bytes", len(art.Data), "elapsed", time.Since(start))
	return art, nil
}

func (e *Exporter) export(ctx context.Context, doc Document) (*Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.timeout)
	defer cancel()

	pages := Paginate(doc.Steps)
	htmlContent, err := e.pages.Render(ctx, e.view(doc))
	if err != nil {
		return nil, fmt.Errorf("rendering pages: %w", err)
	}

	surface, err := e.renderer.Open(ctx, htmlContent, e.cfg.raster)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := surface.Close(); cerr != nil {
			e.cfg.logger.Debug("closing render surface", "error", cerr)
		}
	}()

	if err := e.waitReady(ctx, surface); err != nil {
		return nil, err
	}
	if err := sleepContext(ctx, e.cfg.settleDelay); err != nil {
		return nil, err
	}

	n, err := surface.PageCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRasterization, err)
	}
	if n != len(pages) {
		return nil, fmt.Errorf("%w: rendered %d pages, expected %d", ErrRasterization, n, len(pages))
	}

	writer, err := e.newWriter(e.cfg.pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactAssembly, err)
	}
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raster, err := surface.Rasterize(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", ErrRasterization, i+1, err)
		}
		if err := writer.AddPage(raster); err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrArtifactAssembly, i+1, err)
		}
		e.cfg.logger.Debug("rasterized page", "page", i+1, "of", len(pages), "bytes", len(raster.Data))
	}

	var buf bytes.Buffer
	if err := writer.Finish(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactAssembly, err)
	}

	return &Artifact{
		Filename: ExportFilename(doc.Meta.Title),
		Data:     buf.Bytes(),
		Pages:    len(pages),
	}, nil
}

// waitReady runs the readiness barrier. A barrier timeout degrades to
// "ready" with a warning; any other failure aborts the export.
func (e *Exporter) waitReady(ctx context.Context, s Surface) error {
	readyCtx := ctx
	if e.cfg.readyTimeout > 0 {
		var cancel context.CancelFunc
		readyCtx, cancel = context.WithTimeout(ctx, e.cfg.readyTimeout)
		defer cancel()
	}

	err := s.WaitReady(readyCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrResourceUnready) {
		e.cfg.logger.Warn("readiness barrier timed out, continuing with unsettled resources",
			"timeout", e.cfg.readyTimeout, "error", err)
		return nil
	}
	return fmt.Errorf("%w: readiness barrier: %v", ErrRasterization, err)
}

// view converts a document into the page template's view model.
func (e *Exporter) view(doc Document) render.Document {
	pages := Paginate(doc.Steps)
	out := render.Document{
		Meta: render.Meta{
			Title:     doc.Meta.Title,
			SOPID:     doc.Meta.SOPID,
			Date:      dateutil.FormatDisplayDate(doc.Meta.Date, e.cfg.dateFormat),
			Author:    doc.Meta.Author,
			CycleTime: doc.Meta.CycleTime,
			Version:   doc.Meta.Version,
		},
		Background: e.cfg.background,
		Pages:      make([]render.Page, 0, len(pages)),
	}
	for _, p := range pages {
		rp := render.Page{Number: p.Number, Total: p.Total, Slots: make([]render.Slot, 0, PageCapacity)}
		for i, s := range p.Slots {
			slot := render.Slot{Number: DisplayNumber(p.Number, i), Empty: s.Empty}
			if !s.Empty {
				slot.Description = s.Step.Description
				slot.Image = s.Step.Image
				slot.Fit = string(s.Step.ImageFit.Resolved())
			}
			rp.Slots = append(rp.Slots, slot)
		}
		out.Pages = append(out.Pages, rp)
	}
	return out
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// discardLogger returns a logger that drops every record.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
