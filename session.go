package sopdoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DocumentExporter produces an artifact from a document snapshot.
// Exporter and ExporterPool implement it.
type DocumentExporter interface {
	Export(ctx context.Context, doc Document) (*Artifact, error)
}

// Compile-time interface checks.
var (
	_ DocumentExporter = (*Exporter)(nil)
	_ DocumentExporter = (*ExporterPool)(nil)
)

// sessionConfig holds Session settings.
type sessionConfig struct {
	store         Store
	historyLimit  int
	autosaveDelay time.Duration
	logger        *slog.Logger
	idGen         IDGenerator
	exporter      DocumentExporter
	suggester     Suggester
	doc           *Document
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

// WithStore enables autosave and draft restore through s.
func WithStore(s Store) SessionOption {
	return func(c *sessionConfig) { c.store = s }
}

// WithHistoryLimit caps the undo depth (0 = unbounded).
func WithHistoryLimit(n int) SessionOption {
	return func(c *sessionConfig) { c.historyLimit = n }
}

// WithAutosaveDelay sets the autosave quiet interval.
func WithAutosaveDelay(d time.Duration) SessionOption {
	return func(c *sessionConfig) { c.autosaveDelay = d }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(c *sessionConfig) { c.logger = l }
}

// WithIDGenerator replaces the UUID generator for step and document ids.
func WithIDGenerator(gen IDGenerator) SessionOption {
	return func(c *sessionConfig) { c.idGen = gen }
}

// WithExporter sets the exporter used by Session.Export.
func WithExporter(e DocumentExporter) SessionOption {
	return func(c *sessionConfig) { c.exporter = e }
}

// WithSuggester sets the step suggestion service.
func WithSuggester(s Suggester) SessionOption {
	return func(c *sessionConfig) { c.suggester = s }
}

// WithDocument starts the session on doc instead of a fresh document.
func WithDocument(doc Document) SessionOption {
	return func(c *sessionConfig) { c.doc = &doc }
}

// Session is one editor lifetime: the live document, its undo history,
// autosave and export. All methods are safe for concurrent use and are
// applied in call order.
type Session struct {
	mu        sync.Mutex
	model     *Model
	history   *History
	autosave  *autosaver // nil without a store
	store     Store
	exporter  DocumentExporter
	suggester Suggester
	idGen     IDGenerator
	logger    *slog.Logger
	exporting atomic.Bool
}

// NewSession creates a session. Without WithDocument it starts on a fresh
// document of DefaultStepCount placeholder steps.
func NewSession(opts ...SessionOption) (*Session, error) {
	cfg := sessionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = discardLogger()
	}
	if cfg.idGen == nil {
		cfg.idGen = newID
	}
	if cfg.suggester == nil {
		cfg.suggester = disabledSuggester{}
	}

	doc := newDocument(cfg.idGen)
	if cfg.doc != nil {
		if cfg.doc.Steps == nil {
			return nil, fmt.Errorf("%w: steps must be a sequence", ErrMalformedDocument)
		}
		if err := cfg.doc.Validate(); err != nil {
			return nil, err
		}
		doc = cfg.doc.Clone()
	}

	s := &Session{
		model:     NewModel(doc, cfg.idGen),
		history:   NewHistory(cfg.historyLimit),
		store:     cfg.store,
		exporter:  cfg.exporter,
		suggester: cfg.suggester,
		idGen:     cfg.idGen,
		logger:    cfg.logger,
	}
	if cfg.store != nil {
		s.autosave = newAutosaver(cfg.store, cfg.autosaveDelay, cfg.logger)
	}
	return s, nil
}

// Document returns a deep copy of the live document.
func (s *Session) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Document()
}

// changed schedules the autosave of the live document. Caller holds mu.
func (s *Session) changed() {
	if s.autosave != nil {
		s.autosave.Schedule(s.model.Document())
	}
}

// ---------------------------------------------------------------------------
// Atomic actions
// ---------------------------------------------------------------------------

// AddStep appends a placeholder step as one undoable action.
func (s *Session) AddStep() Step {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Record(s.model.Document())
	step := s.model.AddStep()
	s.changed()
	return step
}

// RemoveLastStep drops the last step as one undoable action.
// On an empty document nothing happens and no history entry is made.
func (s *Session) RemoveLastStep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model.StepCount() == 0 {
		return false
	}
	s.history.Record(s.model.Document())
	s.model.RemoveLastStep()
	s.changed()
	return true
}

// Reset replaces the document with a fresh one (new meta id), clears the
// history and removes the stored draft immediately. The fresh document is
// autosaved afterwards like any other change. A failing draft removal is
// returned but the reset itself always happens.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.model.Replace(newDocument(s.idGen)); err != nil {
		return err
	}
	s.history.Clear()

	var err error
	if s.autosave != nil {
		err = s.autosave.Clear(ctx)
		if err != nil {
			s.logger.Warn("clearing draft failed", "error", err)
		}
	}
	s.changed()
	s.logger.Info("document reset", "document", s.model.doc.Meta.ID)
	return err
}

// ApplySuggestedSteps replaces all steps with new ones built from
// descriptions, as one undoable action. An empty list changes nothing.
func (s *Session) ApplySuggestedSteps(descriptions []string) bool {
	if len(descriptions) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Record(s.model.Document())
	s.model.ReplaceSteps(descriptions)
	s.changed()
	return true
}

// SuggestSteps asks the suggestion service for count steps matching the
// current title and applies them. count <= 0 means DefaultStepCount.
// The session is not locked while the service runs; edits made in the
// meantime are replaced by the suggestion.
func (s *Session) SuggestSteps(ctx context.Context, count int) ([]string, error) {
	if count <= 0 {
		count = DefaultStepCount
	}
	title := s.Document().Meta.Title

	descs, err := s.suggester.Suggest(ctx, title, count)
	if err != nil {
		return nil, err
	}
	s.ApplySuggestedSteps(descs)
	return descs, nil
}

// ---------------------------------------------------------------------------
// Field edits
// ---------------------------------------------------------------------------

// BeginEdit opens an edit scope (input focus). Changes made until CommitEdit
// collapse into a single undo entry. An open scope is committed first.
func (s *Session) BeginEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.BeginEdit(s.model.Document())
}

// CommitEdit closes the edit scope (input blur). Returns true when the
// document changed and an undo entry was recorded.
func (s *Session) CommitEdit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CommitEdit(s.model.Document())
}

// Edit runs fn inside its own edit scope. fn receives the Model under the
// session lock and must not call back into the Session.
func (s *Session) Edit(fn func(m *Model) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.BeginEdit(s.model.Document())
	err := fn(s.model)
	if err != nil {
		if rerr := s.restorePending(); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	if s.history.CommitEdit(s.model.Document()) {
		s.changed()
	}
	return nil
}

// restorePending rolls the model back to the open edit snapshot and drops it.
// Caller holds mu.
func (s *Session) restorePending() error {
	if s.history.pending == nil {
		return nil
	}
	snap := *s.history.pending
	s.history.CancelEdit()
	return s.model.Replace(snap)
}

// UpdateStep merges patch into the step with id. Unknown ids are ignored
// and reported as false. The change joins the open edit scope, if any.
func (s *Session) UpdateStep(id string, patch StepPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.model.UpdateStep(id, patch) {
		s.logger.Debug("update for unknown step ignored", "step", id)
		return false
	}
	s.changed()
	return true
}

// UpdateMeta sets one metadata field. The change joins the open edit scope.
func (s *Session) UpdateMeta(field MetaField, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.model.UpdateMeta(field, value); err != nil {
		return err
	}
	s.changed()
	return nil
}

// SetStepImage encodes data as the image of step id inside its own edit
// scope. Returns ErrInvalidImage for non-image payloads; an unknown id is
// ignored (false, nil).
func (s *Session) SetStepImage(id string, data []byte) (bool, error) {
	img, err := EncodeImage(data)
	if err != nil {
		return false, err
	}
	return s.scopedStepUpdate(id, ImagePatch(img)), nil
}

// ClearStepImage removes the image of step id inside its own edit scope.
func (s *Session) ClearStepImage(id string) bool {
	return s.scopedStepUpdate(id, ImagePatch(""))
}

// CycleImageFit advances the image fit of step id (contain, cover, fill)
// inside its own edit scope and returns the new mode.
func (s *Session) CycleImageFit(id string) (ImageFit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next ImageFit
	found := false
	for _, st := range s.model.doc.Steps {
		if st.ID == id {
			next = st.ImageFit.Next()
			found = true
			break
		}
	}
	if !found {
		return "", false
	}
	s.scopedUpdateLocked(id, FitPatch(next))
	return next, true
}

func (s *Session) scopedStepUpdate(id string, patch StepPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scopedUpdateLocked(id, patch)
}

// scopedUpdateLocked applies patch between BeginEdit and CommitEdit.
// Caller holds mu.
func (s *Session) scopedUpdateLocked(id string, patch StepPatch) bool {
	s.history.BeginEdit(s.model.Document())
	ok := s.model.UpdateStep(id, patch)
	s.history.CommitEdit(s.model.Document())
	if ok {
		s.changed()
	}
	return ok
}

// ---------------------------------------------------------------------------
// Undo / Redo
// ---------------------------------------------------------------------------

// Undo restores the previous document. An open edit scope is committed
// first so the in-progress edit is what gets undone.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.CommitEdit(s.model.Document())
	prev, ok := s.history.Undo(s.model.Document())
	if !ok {
		return false
	}
	s.model.doc = prev
	s.changed()
	return true
}

// Redo re-applies the next document.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.CommitEdit(s.model.Document())
	next, ok := s.history.Redo(s.model.Document())
	if !ok {
		return false
	}
	s.model.doc = next
	s.changed()
	return true
}

// CanUndo reports whether Undo would change the document.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether Redo would change the document.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// HistoryDepth returns the number of undo and redo entries.
func (s *Session) HistoryDepth() (past, future int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.PastLen(), s.history.FutureLen()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads a project file and replaces the document, clearing history.
// Malformed input returns ErrMalformedDocument and leaves the session as is.
func (s *Session) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading project: %w", err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}
	return s.Replace(doc)
}

// Replace substitutes the whole document after validation and clears history.
func (s *Session) Replace(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.model.Replace(doc); err != nil {
		return err
	}
	s.history.Clear()
	s.changed()
	return nil
}

// Save writes the document as a project file.
func (s *Session) Save(w io.Writer) error {
	data, err := EncodeDocument(s.Document())
	if err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing project: %w", err)
	}
	return nil
}

// ProjectFilename returns the project file name for the current title.
func (s *Session) ProjectFilename() string {
	return ProjectFilename(s.Document().Meta.Title)
}

// Pages paginates the live document.
func (s *Session) Pages() []Page {
	return Paginate(s.Document().Steps)
}

// ---------------------------------------------------------------------------
// Persistence and export
// ---------------------------------------------------------------------------

// Restore loads the stored draft, if any, replacing the document and
// clearing history. Returns false when there is no store or no draft.
// A malformed draft is logged and ignored (false, nil); other storage
// errors are returned.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	doc, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrMalformedDocument) {
			s.logger.Warn("ignoring malformed draft", "error", err)
			return false, nil
		}
		return false, err
	}
	if doc == nil {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.model.Replace(*doc); err != nil {
		s.logger.Warn("ignoring malformed draft", "error", err)
		return false, nil
	}
	s.history.Clear()
	s.changed()
	s.logger.Info("draft restored", "document", doc.Meta.ID, "steps", len(doc.Steps))
	return true, nil
}

// Export renders a snapshot of the document. Edits made while the export
// runs do not affect it. A second Export while one is running returns
// ErrExportInProgress.
func (s *Session) Export(ctx context.Context) (*Artifact, error) {
	if s.exporter == nil {
		return nil, fmt.Errorf("%w: no exporter configured", ErrExportFailed)
	}
	if !s.exporting.CompareAndSwap(false, true) {
		return nil, ErrExportInProgress
	}
	defer s.exporting.Store(false)

	return s.exporter.Export(ctx, s.Document())
}

// Exporting reports whether an export is running.
func (s *Session) Exporting() bool {
	return s.exporting.Load()
}

// Flush writes any pending autosave now.
func (s *Session) Flush() {
	if s.autosave != nil {
		s.autosave.Flush()
	}
}

// Close flushes the pending autosave. It does not close the store or the
// exporter, which the caller owns.
func (s *Session) Close() error {
	s.Flush()
	return nil
}
