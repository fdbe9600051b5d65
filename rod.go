package sopdoc

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-sopdoc/internal/fileutil"
	"github.com/alnah/go-sopdoc/internal/process"
)

// CSS pixels per millimetre at 96 dpi.
const pxPerMM = 96 / 25.4

// pageSelector matches one page subtree in the rendered document.
const pageSelector = ".sop-page-export"

// readinessScript resolves once web fonts and every <img> reached a terminal
// state. Broken images count as settled.
const readinessScript = `() => {
	window.scrollTo(0, 0);
	const images = Array.from(document.images).map((img) => {
		if (img.complete) return Promise.resolve();
		return new Promise((resolve) => {
			img.addEventListener("load", resolve, { once: true });
			img.addEventListener("error", resolve, { once: true });
		});
	});
	const fonts = document.fonts ? document.fonts.ready : Promise.resolve();
	return Promise.all([fonts, ...images]).then(() => images.length);
}`

// Compile-time interface checks.
var (
	_ Renderer = (*rodRenderer)(nil)
	_ Surface  = (*rodSurface)(nil)
)

// rodRenderer loads documents in headless Chrome via go-rod.
// Rod downloads Chromium on first run if none is found.
type rodRenderer struct {
	mu               sync.Mutex
	browser          *rod.Browser
	launcher         *launcher.Launcher
	timeout          time.Duration
	allowCrossOrigin bool
	viewport         PageSize
}

func newRodRenderer(timeout time.Duration, allowCrossOrigin bool) *rodRenderer {
	return &rodRenderer{timeout: timeout, allowCrossOrigin: allowCrossOrigin, viewport: A4Landscape}
}

// ensureBrowser lazily launches and connects to the browser. Caller holds mu.
func (r *rodRenderer) ensureBrowser() error {
	if r.browser != nil {
		return nil
	}

	l := launcher.New()

	// Pre-installed browser (Docker/containerized environments).
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	// NoSandbox is required in CI and containers.
	if os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}
	if r.allowCrossOrigin {
		l = l.Set("disable-web-security").Set("allow-file-access-from-files")
	}

	u, err := l.Launch()
	if err != nil {
		l.Cleanup()
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}
	r.browser = browser
	r.launcher = l
	return nil
}

// Open writes html to a temp file and loads it at the A4 landscape viewport
// with the requested device pixel ratio.
func (r *rodRenderer) Open(ctx context.Context, html string, opts RasterOptions) (Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	err := r.ensureBrowser()
	browser := r.browser
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	path, cleanup, err := fileutil.WriteTempFile(html, "html")
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	s := &rodSurface{page: page, cleanup: cleanup, quality: opts.Quality}

	scale := opts.Scale
	if scale <= 0 {
		scale = DefaultScale
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             int(math.Round(r.viewport.Width * pxPerMM)),
		Height:            int(math.Round(r.viewport.Height * pxPerMM)),
		DeviceScaleFactor: scale,
	}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: setting viewport: %v", ErrPageCreate, err)
	}

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			_ = s.Close()
			return nil, context.DeadlineExceeded
		}
	}
	loading := page.Context(ctx).Timeout(timeout)
	if err := loading.Navigate("file://" + path); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := loading.WaitLoad(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	return s, nil
}

// Close shuts the browser down and reaps its process tree.
func (r *rodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		process.KillProcessGroup(r.launcher.PID())
		r.launcher.Kill()
		r.launcher.Cleanup()
		r.launcher = nil
	}
	return err
}

// rodSurface is one loaded document tab.
type rodSurface struct {
	page    *rod.Page
	cleanup func()
	quality int
}

func (s *rodSurface) WaitReady(ctx context.Context) error {
	if _, err := s.page.Context(ctx).Eval(readinessScript); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrResourceUnready, ctx.Err())
		}
		return err
	}
	return nil
}

func (s *rodSurface) PageCount(ctx context.Context) (int, error) {
	els, err := s.page.Context(ctx).Elements(pageSelector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// Rasterize captures page subtree i as JPEG at the surface's device scale.
func (s *rodSurface) Rasterize(ctx context.Context, i int) (Raster, error) {
	els, err := s.page.Context(ctx).Elements(pageSelector)
	if err != nil {
		return Raster{}, err
	}
	if i < 0 || i >= len(els) {
		return Raster{}, fmt.Errorf("page %d out of range (%d pages)", i+1, len(els))
	}
	quality := s.quality
	if quality <= 0 {
		quality = DefaultQuality
	}
	data, err := els[i].Screenshot(proto.PageCaptureScreenshotFormatJpeg, quality)
	if err != nil {
		return Raster{}, err
	}
	return Raster{Data: data, Format: "jpeg"}, nil
}

func (s *rodSurface) Close() error {
	defer s.cleanup()
	return s.page.Close()
}
