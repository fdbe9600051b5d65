package sopdoc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alnah/go-sopdoc/internal/store"
)

// DefaultDraftSlot is the slot name autosaved drafts are written to.
const DefaultDraftSlot = "sop_draft"

// DefaultAutosaveDelay is the quiet interval before a pending autosave is written.
const DefaultAutosaveDelay = 500 * time.Millisecond

// Store persists a single document slot.
// Load returns (nil, nil) when nothing is stored. Implementations must report
// malformed stored content as an error rather than panic.
type Store interface {
	Save(ctx context.Context, doc Document) error
	Load(ctx context.Context) (*Document, error)
	Clear(ctx context.Context) error
}

// DraftStore adapts byte-level slot storage to a single named document slot.
type DraftStore struct {
	slots store.Slots
	name  string
}

// Compile-time interface check.
var _ Store = (*DraftStore)(nil)

// NewDraftStore adapts slots to a single document slot named name
// (DefaultDraftSlot when empty).
func NewDraftStore(slots store.Slots, name string) *DraftStore {
	if name == "" {
		name = DefaultDraftSlot
	}
	return &DraftStore{slots: slots, name: name}
}

// NewMemoryDraftStore returns a draft store kept in process memory.
func NewMemoryDraftStore() *DraftStore {
	return NewDraftStore(store.NewMemory(), DefaultDraftSlot)
}

// OpenDraftStore opens a SQLite-backed draft store at path using slot name
// (DefaultDraftSlot when empty). Close releases the database.
func OpenDraftStore(path, slot string) (*DraftStore, error) {
	db, err := store.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return NewDraftStore(db, slot), nil
}

// Save overwrites the slot with doc.
func (s *DraftStore) Save(ctx context.Context, doc Document) error {
	data, err := EncodeDocument(doc)
	if err != nil {
		return fmt.Errorf("%w: encoding draft: %v", ErrPersistence, err)
	}
	if err := s.slots.Put(ctx, s.name, data); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Load reads the slot. Malformed content wraps both ErrPersistence and ErrMalformedDocument.
func (s *DraftStore) Load(ctx context.Context) (*Document, error) {
	data, ok, err := s.slots.Get(ctx, s.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return nil, nil
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return &doc, nil
}

// Clear empties the slot.
func (s *DraftStore) Clear(ctx context.Context) error {
	if err := s.slots.Delete(ctx, s.name); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// SavedAt returns when the slot was last written. ok is false when the slot
// is empty or the backing storage does not track write times.
func (s *DraftStore) SavedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	ts, tracks := s.slots.(interface {
		UpdatedAt(ctx context.Context, slot string) (time.Time, bool, error)
	})
	if !tracks {
		return time.Time{}, false, nil
	}
	t, ok, err = ts.UpdatedAt(ctx, s.name)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return t, ok, nil
}

// Close releases the underlying storage.
func (s *DraftStore) Close() error {
	return s.slots.Close()
}

// autosaver debounces writes of the latest document to a Store.
// Each Schedule cancels the pending write and restarts the quiet interval.
type autosaver struct {
	store   Store
	delay   time.Duration
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending *Document
	gen     uint64
	floor   uint64 // generations at or below this were cancelled

	writeMu sync.Mutex
	written uint64
}

func newAutosaver(s Store, delay time.Duration, logger *slog.Logger) *autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &autosaver{store: s, delay: delay, timeout: 5 * time.Second, logger: logger}
}

// Schedule queues doc for writing after the quiet interval.
func (a *autosaver) Schedule(doc Document) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pending = &doc
	a.gen++
	gen := a.gen
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() { a.fire(gen) })
}

// fire writes the pending document if no newer Schedule superseded it.
func (a *autosaver) fire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.pending == nil {
		a.mu.Unlock()
		return
	}
	doc := *a.pending
	a.pending = nil
	a.mu.Unlock()

	a.write(doc, gen)
}

// Cancel drops any pending write.
func (a *autosaver) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.pending = nil
	a.gen++
	a.floor = a.gen
}

// Clear cancels pending writes and empties the store. Writes already in
// flight finish first so they cannot resurrect the cleared draft.
func (a *autosaver) Clear(ctx context.Context) error {
	a.Cancel()
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.store.Clear(ctx)
}

// Flush writes the pending document now, if any.
func (a *autosaver) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	doc := a.pending
	a.pending = nil
	gen := a.gen
	a.mu.Unlock()

	if doc != nil {
		a.write(*doc, gen)
	}
}

// write saves doc and logs failures; the in-memory document stays authoritative.
// Writes older than the last completed one are skipped.
func (a *autosaver) write(doc Document, gen uint64) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	a.mu.Lock()
	stale := gen <= a.written || gen <= a.floor
	a.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.store.Save(ctx, doc); err != nil {
		a.logger.Warn("autosave failed", "error", err, "document", doc.Meta.ID)
		return
	}
	a.written = gen
	a.logger.Debug("autosaved draft", "document", doc.Meta.ID, "steps", len(doc.Steps))
}
