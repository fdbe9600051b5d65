package sopdoc

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func docTitled(title string) Document {
	return Document{Meta: Metadata{Title: title}, Steps: stepsN(1)}
}

// ---------------------------------------------------------------------------
// TestHistory_Record - Atomic actions
// ---------------------------------------------------------------------------

func TestHistory_UndoRedoInverse(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	s0 := docTitled("s0")
	s1 := docTitled("s1")

	h.Record(s0)
	cur := s1

	prev, ok := h.Undo(cur)
	if !ok {
		t.Fatal("Undo() ok = false")
	}
	if diff := cmp.Diff(s0, prev); diff != "" {
		t.Errorf("Undo() mismatch (-want +got):\n%s", diff)
	}

	next, ok := h.Redo(prev)
	if !ok {
		t.Fatal("Redo() ok = false")
	}
	if diff := cmp.Diff(s1, next); diff != "" {
		t.Errorf("Redo() mismatch (-want +got):\n%s", diff)
	}
	if h.PastLen() != 1 || h.FutureLen() != 0 {
		t.Errorf("stacks = %d/%d, want 1/0", h.PastLen(), h.FutureLen())
	}
}

func TestHistory_EmptyStacks(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	cur := docTitled("only")

	if got, ok := h.Undo(cur); ok || !got.Equal(cur) {
		t.Error("Undo() on empty past should be a no-op")
	}
	if got, ok := h.Redo(cur); ok || !got.Equal(cur) {
		t.Error("Redo() on empty future should be a no-op")
	}
	if h.CanUndo() || h.CanRedo() {
		t.Error("empty history should report nothing to undo or redo")
	}
}

func TestHistory_RecordClearsFuture(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	h.Record(docTitled("a"))
	if _, ok := h.Undo(docTitled("b")); !ok {
		t.Fatal("Undo() failed")
	}
	if !h.CanRedo() {
		t.Fatal("expected a redo entry")
	}

	h.Record(docTitled("a"))
	if h.CanRedo() {
		t.Error("Record() should clear future")
	}
}

func TestHistory_SnapshotsAreIndependent(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	live := docTitled("before")
	h.Record(live)
	live.Steps[0].Description = "mutated"

	prev, _ := h.Undo(live)
	if prev.Steps[0].Description != "step 1" {
		t.Error("recorded snapshot shares memory with the live document")
	}
}

// ---------------------------------------------------------------------------
// TestHistory_EditScope - Field edits
// ---------------------------------------------------------------------------

func TestHistory_EditScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		begin      Document
		commit     Document
		wantRecord bool
	}{
		{name: "changed", begin: docTitled("a"), commit: docTitled("ab"), wantRecord: true},
		{name: "unchanged", begin: docTitled("a"), commit: docTitled("a"), wantRecord: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHistory(0)
			h.Record(docTitled("older"))
			h.Undo(docTitled("redo-me"))

			h.BeginEdit(tt.begin)
			if !h.Editing() {
				t.Fatal("Editing() = false after BeginEdit")
			}
			got := h.CommitEdit(tt.commit)
			if got != tt.wantRecord {
				t.Errorf("CommitEdit() = %v, want %v", got, tt.wantRecord)
			}
			if h.Editing() {
				t.Error("scope should be closed after CommitEdit")
			}
			if tt.wantRecord && h.CanRedo() {
				t.Error("recorded edit should clear future")
			}
			if !tt.wantRecord && !h.CanRedo() {
				t.Error("no-op edit should keep future")
			}
		})
	}
}

func TestHistory_BeginEditCommitsOpenScope(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	h.BeginEdit(docTitled("a"))
	h.BeginEdit(docTitled("ab"))
	if h.PastLen() != 1 {
		t.Fatalf("PastLen() = %d, want 1 after reopening a changed scope", h.PastLen())
	}
	if !h.CommitEdit(docTitled("abc")) {
		t.Fatal("CommitEdit() = false, want the second scope recorded")
	}

	cur := docTitled("abc")
	var titles []string
	for h.CanUndo() {
		cur, _ = h.Undo(cur)
		titles = append(titles, cur.Meta.Title)
	}
	if diff := cmp.Diff([]string{"ab", "a"}, titles); diff != "" {
		t.Errorf("undo order mismatch (-want +got):\n%s", diff)
	}
}

func TestHistory_BeginEditUnchangedScopeRecordsNothing(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	h.BeginEdit(docTitled("a"))
	h.BeginEdit(docTitled("a"))
	if h.CanUndo() {
		t.Error("reopening an unchanged scope should not record")
	}
	if !h.Editing() {
		t.Error("Editing() = false, want the new scope open")
	}
}

func TestHistory_CommitWithoutScope(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	if h.CommitEdit(docTitled("x")) {
		t.Error("CommitEdit() without BeginEdit should not record")
	}
	if h.CanUndo() {
		t.Error("past should stay empty")
	}
}

func TestHistory_CancelEdit(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	h.BeginEdit(docTitled("a"))
	h.CancelEdit()
	if h.CommitEdit(docTitled("b")) {
		t.Error("CommitEdit() after CancelEdit should not record")
	}
}

// ---------------------------------------------------------------------------
// TestHistory_Limit - Bounded depth
// ---------------------------------------------------------------------------

func TestHistory_LimitEvictsOldest(t *testing.T) {
	t.Parallel()

	h := NewHistory(3)
	for i := range 5 {
		h.Record(docTitled(fmt.Sprint(i)))
	}
	if h.PastLen() != 3 {
		t.Fatalf("PastLen() = %d, want 3", h.PastLen())
	}

	cur := docTitled("live")
	var titles []string
	for h.CanUndo() {
		cur, _ = h.Undo(cur)
		titles = append(titles, cur.Meta.Title)
	}
	if diff := cmp.Diff([]string{"4", "3", "2"}, titles); diff != "" {
		t.Errorf("undo order mismatch (-want +got):\n%s", diff)
	}
}

func TestHistory_Clear(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	h.Record(docTitled("a"))
	h.Record(docTitled("b"))
	h.Undo(docTitled("c"))
	h.BeginEdit(docTitled("d"))

	h.Clear()
	if h.CanUndo() || h.CanRedo() || h.Editing() {
		t.Error("Clear() should drop both stacks and the open scope")
	}
}
