package sopdoc

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"sync"
	"sync/atomic"
	"testing"
)

// seqIDs returns a deterministic IDGenerator: id-1, id-2, ...
func seqIDs() IDGenerator {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

// stepsN builds n steps with ids s1..sn.
func stepsN(n int) []Step {
	out := make([]Step, n)
	for i := range out {
		out[i] = Step{ID: fmt.Sprintf("s%d", i+1), Order: i + 1, Description: fmt.Sprintf("step %d", i+1)}
	}
	return out
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}
	return buf.Bytes()
}

// ---------------------------------------------------------------------------
// Mock renderer, surface and artifact writer
// ---------------------------------------------------------------------------

type mockSurface struct {
	pages      int
	readyErr   error
	countErr   error
	rasterErr  error
	failPage   int // 0-based page whose Rasterize fails; -1 for none
	panicOnHit bool

	mu         sync.Mutex
	rasterized []int
	closed     bool
}

func (s *mockSurface) WaitReady(ctx context.Context) error {
	if s.readyErr != nil {
		return s.readyErr
	}
	return ctx.Err()
}

func (s *mockSurface) PageCount(context.Context) (int, error) {
	return s.pages, s.countErr
}

func (s *mockSurface) Rasterize(_ context.Context, i int) (Raster, error) {
	if s.panicOnHit {
		panic("surface exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rasterized = append(s.rasterized, i)
	if s.failPage == i && s.rasterErr != nil {
		return Raster{}, s.rasterErr
	}
	return Raster{Data: []byte{byte(i)}, Format: "jpeg"}, nil
}

func (s *mockSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type mockRenderer struct {
	surface *mockSurface
	openErr error

	mu     sync.Mutex
	html   []string
	opens  int
	closed bool
}

func (r *mockRenderer) Open(_ context.Context, html string, _ RasterOptions) (Surface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens++
	r.html = append(r.html, html)
	if r.openErr != nil {
		return nil, r.openErr
	}
	return r.surface, nil
}

func (r *mockRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// mockWriter records pages and writes "pages:N" on Finish.
type mockWriter struct {
	pages     []Raster
	addErr    error
	finishErr error
}

func (w *mockWriter) AddPage(r Raster) error {
	if w.addErr != nil {
		return w.addErr
	}
	w.pages = append(w.pages, r)
	return nil
}

func (w *mockWriter) Finish(out io.Writer) error {
	if w.finishErr != nil {
		return w.finishErr
	}
	_, err := fmt.Fprintf(out, "pages:%d", len(w.pages))
	return err
}
