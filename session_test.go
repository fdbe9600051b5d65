package sopdoc

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alnah/go-sopdoc/internal/store"
)

// countingStore records every save.
type countingStore struct {
	mu      sync.Mutex
	saves   []Document
	clears  int
	saveErr error
	stored  *Document
}

func (c *countingStore) Save(_ context.Context, doc Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saveErr != nil {
		return c.saveErr
	}
	c.saves = append(c.saves, doc.Clone())
	d := doc.Clone()
	c.stored = &d
	return nil
}

func (c *countingStore) Load(context.Context) (*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stored == nil {
		return nil, nil
	}
	d := c.stored.Clone()
	return &d, nil
}

func (c *countingStore) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	c.stored = nil
	return nil
}

func (c *countingStore) saveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.saves)
}

func newTestSession(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()
	opts = append([]SessionOption{WithIDGenerator(seqIDs())}, opts...)
	s, err := NewSession(opts...)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// ---------------------------------------------------------------------------
// TestSession - Editing and history
// ---------------------------------------------------------------------------

func TestSession_AddEditUndoRedo(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	original := s.Document()

	s.AddStep()
	afterAdd := s.Document()

	id := afterAdd.Steps[2].ID
	s.BeginEdit()
	s.UpdateStep(id, DescriptionPatch("Check"))
	s.UpdateStep(id, DescriptionPatch("Check the line"))
	if !s.CommitEdit() {
		t.Fatal("CommitEdit() = false, want true")
	}
	edited := s.Document()

	if past, _ := s.HistoryDepth(); past != 2 {
		t.Fatalf("past depth = %d, want 2 (add + one edit scope)", past)
	}

	s.Undo()
	if diff := cmp.Diff(afterAdd, s.Document()); diff != "" {
		t.Errorf("first undo mismatch (-want +got):\n%s", diff)
	}
	s.Undo()
	if diff := cmp.Diff(original, s.Document()); diff != "" {
		t.Errorf("second undo mismatch (-want +got):\n%s", diff)
	}
	if s.CanUndo() {
		t.Error("CanUndo() = true after undoing everything")
	}

	s.Redo()
	s.Redo()
	if diff := cmp.Diff(edited, s.Document()); diff != "" {
		t.Errorf("redo mismatch (-want +got):\n%s", diff)
	}
	if s.CanRedo() {
		t.Error("CanRedo() = true after redoing everything")
	}
}

func TestSession_NoOpEditRecordsNothing(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.BeginEdit()
	if s.CommitEdit() {
		t.Error("CommitEdit() without change = true")
	}
	if s.CanUndo() {
		t.Error("no-op edit scope should not create history")
	}
}

func TestSession_RemoveLastStepOnEmpty(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, WithDocument(Document{Steps: []Step{}}))
	if s.RemoveLastStep() {
		t.Error("RemoveLastStep() on empty = true")
	}
	if past, future := s.HistoryDepth(); past != 0 || future != 0 {
		t.Errorf("HistoryDepth() = %d/%d, want 0/0", past, future)
	}
}

func TestSession_RemoveLastStep(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	if !s.RemoveLastStep() {
		t.Fatal("RemoveLastStep() = false")
	}
	if n := len(s.Document().Steps); n != DefaultStepCount-1 {
		t.Errorf("steps = %d, want %d", n, DefaultStepCount-1)
	}
	s.Undo()
	if n := len(s.Document().Steps); n != DefaultStepCount {
		t.Errorf("steps after undo = %d, want %d", n, DefaultStepCount)
	}
}

func TestSession_UndoCommitsOpenScope(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.BeginEdit()
	if err := s.UpdateMeta(MetaTitle, "Draft title"); err != nil {
		t.Fatal(err)
	}
	if !s.Undo() {
		t.Fatal("Undo() = false, want the open edit to be undone")
	}
	if got := s.Document().Meta.Title; got != "" {
		t.Errorf("title after undo = %q, want empty", got)
	}
}

func TestSession_BeginEditTwiceKeepsBothEdits(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	original := s.Document()

	s.BeginEdit()
	if err := s.UpdateMeta(MetaTitle, "A"); err != nil {
		t.Fatal(err)
	}
	s.BeginEdit()
	if err := s.UpdateMeta(MetaAuthor, "B"); err != nil {
		t.Fatal(err)
	}
	if !s.CommitEdit() {
		t.Fatal("CommitEdit() = false, want the second edit recorded")
	}

	if past, _ := s.HistoryDepth(); past != 2 {
		t.Fatalf("past depth = %d, want 2", past)
	}
	if !s.Undo() || s.Document().Meta.Title != "A" || s.Document().Meta.Author != "" {
		t.Fatalf("first undo = %+v, want title A and no author", s.Document().Meta)
	}
	if !s.Undo() {
		t.Fatal("second Undo() = false")
	}
	if diff := cmp.Diff(original, s.Document()); diff != "" {
		t.Errorf("document after undoing both edits mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_UpdateStepUnknownID(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	before := s.Document()
	if s.UpdateStep("gone", DescriptionPatch("late")) {
		t.Error("UpdateStep(unknown) = true")
	}
	if !before.Equal(s.Document()) {
		t.Error("unknown id changed the document")
	}
}

func TestSession_CycleImageFit(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	id := s.Document().Steps[0].ID

	for _, want := range []ImageFit{FitCover, FitFill, FitContain} {
		got, ok := s.CycleImageFit(id)
		if !ok || got != want {
			t.Fatalf("CycleImageFit() = %q, %v, want %q", got, ok, want)
		}
	}
	if past, _ := s.HistoryDepth(); past != 3 {
		t.Errorf("past depth = %d, want one entry per cycle", past)
	}
	s.Undo()
	if got := s.Document().Steps[0].ImageFit; got != FitFill {
		t.Errorf("fit after undo = %q, want fill", got)
	}
	if _, ok := s.CycleImageFit("missing"); ok {
		t.Error("CycleImageFit(missing) ok = true")
	}
}

func TestSession_SetStepImage(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	id := s.Document().Steps[1].ID

	if _, err := s.SetStepImage(id, []byte("plain text")); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("SetStepImage(text) error = %v, want ErrInvalidImage", err)
	}
	ok, err := s.SetStepImage(id, pngBytes(t))
	if err != nil || !ok {
		t.Fatalf("SetStepImage(png) = %v, %v", ok, err)
	}
	if !s.Document().Steps[1].HasImage() {
		t.Fatal("image not set")
	}
	if !s.ClearStepImage(id) || s.Document().Steps[1].HasImage() {
		t.Error("ClearStepImage() did not remove the image")
	}
	s.Undo()
	s.Undo()
	if s.Document().Steps[1].HasImage() {
		t.Error("undo should remove the image again")
	}
}

func TestSession_EditRollsBackOnError(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	before := s.Document()
	boom := errors.New("boom")

	err := s.Edit(func(m *Model) error {
		m.AddStep()
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Edit() error = %v, want boom", err)
	}
	if diff := cmp.Diff(before, s.Document()); diff != "" {
		t.Errorf("failed Edit changed the document (-want +got):\n%s", diff)
	}
	if s.CanUndo() {
		t.Error("failed Edit recorded history")
	}

	if err := s.Edit(func(m *Model) error { return m.UpdateMeta(MetaAuthor, "QA") }); err != nil {
		t.Fatal(err)
	}
	if past, _ := s.HistoryDepth(); past != 1 {
		t.Errorf("past depth = %d, want 1", past)
	}
}

func TestSession_ApplySuggestedSteps(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	if s.ApplySuggestedSteps(nil) {
		t.Error("ApplySuggestedSteps(nil) = true")
	}
	if !s.ApplySuggestedSteps([]string{"Prepare", "Run", "Verify"}) {
		t.Fatal("ApplySuggestedSteps() = false")
	}
	doc := s.Document()
	if len(doc.Steps) != 3 || doc.Steps[2].Description != "Verify" {
		t.Errorf("steps = %+v", doc.Steps)
	}
	s.Undo()
	if n := len(s.Document().Steps); n != DefaultStepCount {
		t.Errorf("steps after undo = %d, want %d", n, DefaultStepCount)
	}
}

type fakeSuggester struct {
	gotTitle string
	gotCount int
	out      []string
	err      error
}

func (f *fakeSuggester) Suggest(_ context.Context, title string, count int) ([]string, error) {
	f.gotTitle, f.gotCount = title, count
	return f.out, f.err
}

func TestSession_SuggestSteps(t *testing.T) {
	t.Parallel()

	t.Run("applies suggestions for the title", func(t *testing.T) {
		t.Parallel()

		fs := &fakeSuggester{out: []string{"One", "Two"}}
		s := newTestSession(t, WithSuggester(fs))
		_ = s.UpdateMeta(MetaTitle, "Changeover")

		got, err := s.SuggestSteps(context.Background(), 0)
		if err != nil {
			t.Fatal(err)
		}
		if fs.gotTitle != "Changeover" || fs.gotCount != DefaultStepCount {
			t.Errorf("suggester called with %q/%d", fs.gotTitle, fs.gotCount)
		}
		if len(got) != 2 || len(s.Document().Steps) != 2 {
			t.Errorf("suggestions not applied: %v", got)
		}
	})

	t.Run("disabled by default", func(t *testing.T) {
		t.Parallel()

		s := newTestSession(t)
		before := s.Document()
		_, err := s.SuggestSteps(context.Background(), 3)
		if !errors.Is(err, ErrSuggestionsDisabled) {
			t.Errorf("error = %v, want ErrSuggestionsDisabled", err)
		}
		if !before.Equal(s.Document()) {
			t.Error("failed suggestion changed the document")
		}
	})
}

// ---------------------------------------------------------------------------
// TestSession - Load / Save / Replace
// ---------------------------------------------------------------------------

func TestSession_LoadClearsHistory(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.AddStep()
	s.AddStep()
	s.Undo()

	err := s.Load(strings.NewReader(`{"meta":{"id":"m","title":"Loaded"},"steps":[{"id":"a","description":"x","image":null}]}`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.CanUndo() || s.CanRedo() {
		t.Error("Load() should clear history")
	}
	if got := s.Document().Meta.Title; got != "Loaded" {
		t.Errorf("title = %q, want Loaded", got)
	}
}

func TestSession_LoadMalformedKeepsState(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.AddStep()
	before := s.Document()

	err := s.Load(strings.NewReader(`{"meta":{},"steps":"nope"}`))
	if !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("Load() error = %v, want ErrMalformedDocument", err)
	}
	if diff := cmp.Diff(before, s.Document()); diff != "" {
		t.Errorf("document changed (-want +got):\n%s", diff)
	}
	if !s.CanUndo() {
		t.Error("failed Load should keep history")
	}
}

func TestSession_SaveRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	_ = s.UpdateMeta(MetaTitle, "Line Clearance")

	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		t.Fatal(err)
	}
	if got := s.ProjectFilename(); got != "line_clearance.json" {
		t.Errorf("ProjectFilename() = %q", got)
	}

	other := newTestSession(t)
	if err := other.Load(&buf); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(s.Document(), other.Document()); diff != "" {
		t.Errorf("save/load mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_Pages(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	for range 7 {
		s.AddStep()
	}
	pages := s.Pages()
	if len(pages) != 3 || len(pages[2].Steps()) != 1 {
		t.Errorf("13 steps paginated into %d pages", len(pages))
	}
}

func TestNewSession_InvalidDocument(t *testing.T) {
	t.Parallel()

	_, err := NewSession(WithDocument(Document{Steps: []Step{{ID: "a"}, {ID: "a"}}}))
	if !errors.Is(err, ErrMalformedDocument) {
		t.Errorf("NewSession() error = %v, want ErrMalformedDocument", err)
	}
}

// ---------------------------------------------------------------------------
// TestSession - Autosave and draft restore
// ---------------------------------------------------------------------------

func TestSession_AutosaveDebounces(t *testing.T) {
	t.Parallel()

	cs := &countingStore{}
	s := newTestSession(t, WithStore(cs), WithAutosaveDelay(40*time.Millisecond))

	for _, title := range []string{"a", "ab", "abc", "abcd"} {
		_ = s.UpdateMeta(MetaTitle, title)
	}
	waitFor(t, time.Second, func() bool { return cs.saveCount() >= 1 })
	time.Sleep(80 * time.Millisecond)

	if n := cs.saveCount(); n != 1 {
		t.Fatalf("saves = %d, want 1 for a burst of edits", n)
	}
	cs.mu.Lock()
	got := cs.saves[0].Meta.Title
	cs.mu.Unlock()
	if got != "abcd" {
		t.Errorf("saved title = %q, want latest state", got)
	}
}

func TestSession_AutosaveFailureKeepsEditing(t *testing.T) {
	t.Parallel()

	cs := &countingStore{saveErr: errors.New("disk full")}
	s := newTestSession(t, WithStore(cs), WithAutosaveDelay(time.Hour))

	s.AddStep()
	s.Flush()
	if n := len(s.Document().Steps); n != DefaultStepCount+1 {
		t.Errorf("steps = %d, in-memory document should stay authoritative", n)
	}
}

func TestSession_ResetClearsDraftImmediately(t *testing.T) {
	t.Parallel()

	cs := &countingStore{}
	s := newTestSession(t, WithStore(cs), WithAutosaveDelay(time.Hour))
	s.AddStep()
	s.Flush()
	oldID := s.Document().Meta.ID

	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if d, _ := cs.Load(context.Background()); d != nil {
		t.Error("draft should be removed on reset")
	}
	doc := s.Document()
	if doc.Meta.ID == oldID || len(doc.Steps) != DefaultStepCount {
		t.Errorf("Reset() should produce a fresh document, got id %q with %d steps", doc.Meta.ID, len(doc.Steps))
	}
	if s.CanUndo() || s.CanRedo() {
		t.Error("Reset() should clear history")
	}
}

func TestSession_Restore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ds := NewMemoryDraftStore()
	draft := Document{Meta: Metadata{ID: "m", Title: "Recovered"}, Steps: stepsN(2)}
	if err := ds.Save(ctx, draft); err != nil {
		t.Fatal(err)
	}

	s := newTestSession(t, WithStore(ds))
	s.AddStep()
	ok, err := s.Restore(ctx)
	if err != nil || !ok {
		t.Fatalf("Restore() = %v, %v", ok, err)
	}
	if diff := cmp.Diff(draft, s.Document()); diff != "" {
		t.Errorf("restored document mismatch (-want +got):\n%s", diff)
	}
	if s.CanUndo() {
		t.Error("Restore() should clear history")
	}
}

func TestSession_RestoreMalformedIgnored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	slots := store.NewMemory()
	if err := slots.Put(ctx, DefaultDraftSlot, []byte(`{"meta":{},"steps":`)); err != nil {
		t.Fatal(err)
	}

	s := newTestSession(t, WithStore(NewDraftStore(slots, "")))
	before := s.Document()
	ok, err := s.Restore(ctx)
	if ok || err != nil {
		t.Errorf("Restore() = %v, %v, want false, nil", ok, err)
	}
	if !before.Equal(s.Document()) {
		t.Error("malformed draft replaced the document")
	}
}

func TestSession_RestoreWithoutStore(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	if ok, err := s.Restore(context.Background()); ok || err != nil {
		t.Errorf("Restore() = %v, %v, want false, nil", ok, err)
	}
}

// ---------------------------------------------------------------------------
// TestSession - Export
// ---------------------------------------------------------------------------

// blockingExporter holds every export until release is closed.
type blockingExporter struct {
	started chan Document
	release chan struct{}
}

func (b *blockingExporter) Export(_ context.Context, doc Document) (*Artifact, error) {
	b.started <- doc
	<-b.release
	return &Artifact{Filename: ExportFilename(doc.Meta.Title), Pages: PageCount(len(doc.Steps))}, nil
}

func TestSession_ExportSnapshotAndSingleFlight(t *testing.T) {
	t.Parallel()

	be := &blockingExporter{started: make(chan Document, 1), release: make(chan struct{})}
	s := newTestSession(t, WithExporter(be))
	_ = s.UpdateMeta(MetaTitle, "Before")

	done := make(chan *Artifact, 1)
	go func() {
		art, err := s.Export(context.Background())
		if err != nil {
			t.Errorf("Export() error = %v", err)
		}
		done <- art
	}()

	snap := <-be.started
	if !s.Exporting() {
		t.Error("Exporting() = false during export")
	}
	if _, err := s.Export(context.Background()); !errors.Is(err, ErrExportInProgress) {
		t.Errorf("concurrent Export() error = %v, want ErrExportInProgress", err)
	}

	_ = s.UpdateMeta(MetaTitle, "After")
	close(be.release)
	art := <-done

	if snap.Meta.Title != "Before" || art.Filename != "before.pdf" {
		t.Errorf("export used %q/%q, want the snapshot taken at start", snap.Meta.Title, art.Filename)
	}
	if s.Exporting() {
		t.Error("Exporting() = true after export finished")
	}
}

func TestSession_ExportWithoutExporter(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	if _, err := s.Export(context.Background()); !errors.Is(err, ErrExportFailed) {
		t.Errorf("Export() error = %v, want ErrExportFailed", err)
	}
}
