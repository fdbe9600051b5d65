package sopdoc

// History is a linear undo/redo log of document snapshots.
//
// past is ordered older to newer, future nearer to farther. The live
// document is never stored in either stack; callers pass it in.
//
// Two recording disciplines are supported:
//   - Record, for atomic actions: push the pre-mutation snapshot before mutating.
//   - BeginEdit/CommitEdit, for continuous field edits: one entry per edit
//     scope, and only if the document actually changed.
//
// Any recording clears future. History is not safe for concurrent use.
type History struct {
	past    []Document
	future  []Document
	pending *Document
	limit   int
}

// NewHistory creates a history. limit caps the undo depth; 0 means unbounded.
// When the cap is reached the oldest entry is evicted first.
func NewHistory(limit int) *History {
	if limit < 0 {
		limit = 0
	}
	return &History{limit: limit}
}

// Record pushes a deep copy of the pre-mutation document and clears future.
func (h *History) Record(before Document) {
	h.push(before.Clone())
	h.future = nil
}

// BeginEdit captures the snapshot an edit scope will be compared against.
// A scope that is still open is committed first, so its change stays undoable.
func (h *History) BeginEdit(current Document) {
	h.CommitEdit(current)
	snap := current.Clone()
	h.pending = &snap
}

// Editing reports whether an edit scope is open.
func (h *History) Editing() bool {
	return h.pending != nil
}

// CommitEdit closes the edit scope. If current differs from the snapshot,
// the snapshot is pushed and future cleared. Returns true when an entry was recorded.
// Without an open scope it does nothing.
func (h *History) CommitEdit(current Document) bool {
	if h.pending == nil {
		return false
	}
	snap := *h.pending
	h.pending = nil
	if snap.Equal(current) {
		return false
	}
	h.push(snap)
	h.future = nil
	return true
}

// CancelEdit drops the open edit scope without recording.
func (h *History) CancelEdit() {
	h.pending = nil
}

// Undo pops the newest past entry and makes it current; the old current
// goes to the front of future. ok is false when there is nothing to undo.
func (h *History) Undo(current Document) (prev Document, ok bool) {
	n := len(h.past)
	if n == 0 {
		return current, false
	}
	prev = h.past[n-1]
	h.past = h.past[:n-1]
	h.future = append([]Document{current.Clone()}, h.future...)
	return prev.Clone(), true
}

// Redo pops the nearest future entry and makes it current; the old current
// goes to the end of past. ok is false when there is nothing to redo.
func (h *History) Redo(current Document) (next Document, ok bool) {
	if len(h.future) == 0 {
		return current, false
	}
	next = h.future[0]
	h.future = h.future[1:]
	h.push(current.Clone())
	return next.Clone(), true
}

// Clear drops both stacks and any open edit scope.
func (h *History) Clear() {
	h.past = nil
	h.future = nil
	h.pending = nil
}

// CanUndo reports whether past is non-empty.
func (h *History) CanUndo() bool { return len(h.past) > 0 }

// CanRedo reports whether future is non-empty.
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// PastLen returns the number of undoable entries.
func (h *History) PastLen() int { return len(h.past) }

// FutureLen returns the number of redoable entries.
func (h *History) FutureLen() int { return len(h.future) }

// push appends to past, evicting the oldest entry when over the limit.
func (h *History) push(d Document) {
	h.past = append(h.past, d)
	if h.limit > 0 && len(h.past) > h.limit {
		drop := len(h.past) - h.limit
		h.past = append(h.past[:0:0], h.past[drop:]...)
	}
}
