package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sopdoc "github.com/alnah/go-sopdoc"
	"github.com/alnah/go-sopdoc/internal/config"
	"github.com/alnah/go-sopdoc/internal/store"
)

// ---------------------------------------------------------------------------
// Test Infrastructure - Fake exporter and pool
// ---------------------------------------------------------------------------

// fakeExporter returns a small fake PDF whose content records the page count.
type fakeExporter struct {
	mu        sync.Mutex
	titles    []string
	failTitle string // documents with this title fail to export
}

func (e *fakeExporter) Export(_ context.Context, doc sopdoc.Document) (*sopdoc.Artifact, error) {
	e.mu.Lock()
	e.titles = append(e.titles, doc.Meta.Title)
	e.mu.Unlock()

	if e.failTitle != "" && doc.Meta.Title == e.failTitle {
		return nil, fmt.Errorf("%w: %w: page 1", sopdoc.ErrExportFailed, sopdoc.ErrRasterization)
	}
	pages := sopdoc.PageCount(len(doc.Steps))
	return &sopdoc.Artifact{
		Filename: sopdoc.ExportFilename(doc.Meta.Title),
		Data:     fmt.Appendf(nil, "%%PDF-fake pages:%d", pages),
		Pages:    pages,
	}, nil
}

func (e *fakeExporter) RenderHTML(_ context.Context, doc sopdoc.Document) (string, error) {
	return "<html>" + doc.Meta.Title + "</html>", nil
}

func (e *fakeExporter) exported() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.titles...)
}

// fakePool hands out a single shared fakeExporter.
type fakePool struct {
	exp        *fakeExporter
	acquireErr error

	size     atomic.Int32
	opts     atomic.Int32
	acquired atomic.Int32
	released atomic.Int32
	closed   atomic.Bool
}

func (p *fakePool) Acquire(context.Context) (Exporter, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.acquired.Add(1)
	return p.exp, nil
}

func (p *fakePool) Release(Exporter) { p.released.Add(1) }
func (p *fakePool) Size() int       { return int(p.size.Load()) }
func (p *fakePool) Close() error {
	p.closed.Store(true)
	return nil
}

// ---------------------------------------------------------------------------
// Test Infrastructure - Fake suggester and draft slots
// ---------------------------------------------------------------------------

// fakeSuggester returns canned descriptions, trimmed to count.
type fakeSuggester struct {
	mu        sync.Mutex
	out       []string
	err       error
	gotTitle  string
	gotCount  int
	gotAPIKey string
}

func (s *fakeSuggester) Suggest(_ context.Context, title string, count int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gotTitle, s.gotCount = title, count
	if s.err != nil {
		return nil, s.err
	}
	return s.out[:min(count, len(s.out))], nil
}

// sharedSlots keeps the in-memory draft usable after a command closes it,
// so that one test can run several commands against the same draft.
type sharedSlots struct {
	*store.Memory
}

func (sharedSlots) Close() error { return nil }

// ---------------------------------------------------------------------------
// Test Infrastructure - Environment
// ---------------------------------------------------------------------------

// testEnv bundles an Environment with its captured output and fakes.
type testEnv struct {
	*Environment
	stdout    *bytes.Buffer
	stderr    *bytes.Buffer
	pool      *fakePool
	suggester *fakeSuggester
	slots     *store.Memory
	draftPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	te := &testEnv{
		stdout:    &bytes.Buffer{},
		stderr:    &bytes.Buffer{},
		pool:      &fakePool{exp: &fakeExporter{}},
		suggester: &fakeSuggester{},
		slots:     store.NewMemory(),
	}

	cfg := config.DefaultConfig()
	cfg.Draft.Path = filepath.Join(t.TempDir(), "drafts.db")
	cfg.Draft.Debounce = time.Hour // only Close flushes

	te.Environment = &Environment{
		Now:    func() time.Time { return time.Date(2024, time.March, 7, 9, 0, 0, 0, time.UTC) },
		Stdout: te.stdout,
		Stderr: te.stderr,
		Config: cfg,
		NewPool: func(size int, opts ...sopdoc.ExportOption) Pool {
			te.pool.size.Store(int32(size))
			te.pool.opts.Store(int32(len(opts)))
			return te.pool
		},
		NewSuggester: func(apiKey, _ string, _ *slog.Logger) sopdoc.Suggester {
			te.suggester.mu.Lock()
			te.suggester.gotAPIKey = apiKey
			te.suggester.mu.Unlock()
			return te.suggester
		},
		OpenDrafts: func(path, slot string) (*sopdoc.DraftStore, error) {
			te.draftPath = path
			return sopdoc.NewDraftStore(sharedSlots{te.slots}, slot), nil
		},
	}
	return te
}

// run invokes runMain with "sopdoc" prepended and returns the exit code.
func (te *testEnv) run(args ...string) int {
	return runMain(append([]string{"sopdoc"}, args...), te.Environment)
}

// draft returns the stored draft, or nil.
func (te *testEnv) draft(t *testing.T) *sopdoc.Document {
	t.Helper()
	doc, err := sopdoc.NewDraftStore(sharedSlots{te.slots}, te.Config.Draft.Slot).Load(context.Background())
	if err != nil {
		t.Fatalf("loading draft: %v", err)
	}
	return doc
}

// ---------------------------------------------------------------------------
// Test Infrastructure - Project files
// ---------------------------------------------------------------------------

// seqIDs returns a deterministic IDGenerator.
func seqIDs() sopdoc.IDGenerator {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

// makeDoc builds a document with n steps "Step 1".."Step n".
func makeDoc(title string, n int) sopdoc.Document {
	gen := seqIDs()
	doc := sopdoc.Document{
		Meta:  sopdoc.Metadata{ID: gen(), Title: title, Date: "2024-03-07"},
		Steps: make([]sopdoc.Step, 0, n),
	}
	for i := range n {
		doc.Steps = append(doc.Steps, sopdoc.Step{
			ID:          gen(),
			Order:       i + 1,
			Description: fmt.Sprintf("Step %d", i+1),
		})
	}
	return doc
}

// writeProjectFile saves doc as a project file under dir.
func writeProjectFile(t *testing.T, dir, name string, doc sopdoc.Document) string {
	t.Helper()
	data, err := sopdoc.EncodeDocument(doc)
	if err != nil {
		t.Fatalf("encoding %s: %v", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("creating dir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// readProjectFile loads a project file written by a command.
func readProjectFile(t *testing.T, path string) sopdoc.Document {
	t.Helper()
	doc, err := readProject(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return doc
}

// pngBytes is a minimal valid PNG header, enough for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00\x90wS\xde")
