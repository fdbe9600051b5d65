package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sopdoc "github.com/alnah/go-sopdoc"
)

func TestRunNew(t *testing.T) {
	t.Parallel()

	t.Run("creates a placeholder project", func(t *testing.T) {
		t.Parallel()
		te := newTestEnv(t)
		path := filepath.Join(t.TempDir(), "line.json")

		if code := te.run("new", path); code != ExitSuccess {
			t.Fatalf("exit = %d, stderr: %s", code, te.stderr)
		}

		doc := readProjectFile(t, path)
		if len(doc.Steps) != sopdoc.DefaultStepCount {
			t.Errorf("steps = %d, want %d", len(doc.Steps), sopdoc.DefaultStepCount)
		}
		for i, s := range doc.Steps {
			if s.Description != sopdoc.StepPlaceholder {
				t.Errorf("step %d description = %q, want placeholder", i+1, s.Description)
			}
		}
		if doc.Meta.ID == "" {
			t.Error("document id should be set")
		}
		if !strings.Contains(te.stdout.String(), "Created "+path+" (6 steps, 1 pages)") {
			t.Errorf("stdout = %q", te.stdout)
		}
	})

	t.Run("sets metadata from flags", func(t *testing.T) {
		t.Parallel()
		te := newTestEnv(t)
		path := filepath.Join(t.TempDir(), "line.json")

		code := te.run("new", path,
			"--title", "Change the filter",
			"--sop-id", "SOP-012",
			"--doc-version", "B",
			"--date", "today",
			"--cycle-time", "45 min",
			"--author", "Maintenance",
			"--steps", "8",
		)
		if code != ExitSuccess {
			t.Fatalf("exit = %d, stderr: %s", code, te.stderr)
		}

		doc := readProjectFile(t, path)
		want := sopdoc.Metadata{
			ID:        doc.Meta.ID,
			Title:     "Change the filter",
			SOPID:     "SOP-012",
			Version:   "B",
			Date:      "2024-03-07",
			CycleTime: "45 min",
			Author:    "Maintenance",
		}
		if doc.Meta != want {
			t.Errorf("meta = %+v, want %+v", doc.Meta, want)
		}
		if len(doc.Steps) != 8 {
			t.Errorf("steps = %d, want 8", len(doc.Steps))
		}
	})

	t.Run("zero steps", func(t *testing.T) {
		t.Parallel()
		te := newTestEnv(t)
		path := filepath.Join(t.TempDir(), "empty.json")

		if code := te.run("new", path, "--steps", "0"); code != ExitSuccess {
			t.Fatalf("exit = %d, stderr: %s", code, te.stderr)
		}
		if doc := readProjectFile(t, path); len(doc.Steps) != 0 {
			t.Errorf("steps = %d, want 0", len(doc.Steps))
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		t.Parallel()
		te := newTestEnv(t)
		dir := t.TempDir()
		path := writeProjectFile(t, dir, "line.json", makeDoc("Keep me", 2))

		if code := te.run("new", path); code != ExitUsage {
			t.Fatalf("exit = %d, want %d", code, ExitUsage)
		}
		if doc := readProjectFile(t, path); doc.Meta.Title != "Keep me" {
			t.Errorf("existing file was replaced: %+v", doc.Meta)
		}

		if code := te.run("new", path, "--force"); code != ExitSuccess {
			t.Fatalf("--force exit = %d, stderr: %s", code, te.stderr)
		}
		if doc := readProjectFile(t, path); doc.Meta.Title != "" {
			t.Errorf("title = %q, want a fresh document", doc.Meta.Title)
		}
	})

	t.Run("replaces the draft", func(t *testing.T) {
		t.Parallel()
		te := newTestEnv(t)
		old := makeDoc("Old draft", 3)
		if err := sopdoc.NewDraftStore(sharedSlots{te.slots}, te.Config.Draft.Slot).Save(t.Context(), old); err != nil {
			t.Fatalf("seeding draft: %v", err)
		}
		path := filepath.Join(t.TempDir(), "line.json")

		if code := te.run("new", path, "--title", "Fresh"); code != ExitSuccess {
			t.Fatalf("exit = %d, stderr: %s", code, te.stderr)
		}

		draft := te.draft(t)
		if draft == nil {
			t.Fatal("expected the new document to be autosaved")
		}
		if draft.Meta.Title != "Fresh" || draft.Meta.ID == old.Meta.ID {
			t.Errorf("draft = %+v, want the new document", draft.Meta)
		}
		if te.draftPath != te.Config.Draft.Path {
			t.Errorf("draft path = %q, want %q", te.draftPath, te.Config.Draft.Path)
		}
	})

	t.Run("fills steps from suggestions", func(t *testing.T) {
		t.Parallel()
		te := newTestEnv(t)
		te.Config.Suggest.APIKey = "key"
		te.suggester.out = []string{"Isolate power", "Open the housing", "Swap the filter"}
		path := filepath.Join(t.TempDir(), "filter.json")

		code := te.run("new", path, "--title", "Change the filter", "--suggest", "--steps", "3")
		if code != ExitSuccess {
			t.Fatalf("exit = %d, stderr: %s", code, te.stderr)
		}

		doc := readProjectFile(t, path)
		if len(doc.Steps) != 3 || doc.Steps[2].Description != "Swap the filter" {
			t.Errorf("steps = %+v", doc.Steps)
		}
		if te.suggester.gotTitle != "Change the filter" || te.suggester.gotCount != 3 {
			t.Errorf("suggester called with %q, %d", te.suggester.gotTitle, te.suggester.gotCount)
		}
		if te.suggester.gotAPIKey != "key" {
			t.Errorf("api key = %q, want key", te.suggester.gotAPIKey)
		}
	})

	t.Run("suggestion failure writes nothing", func(t *testing.T) {
		t.Parallel()
		te := newTestEnv(t)
		te.suggester.err = sopdoc.ErrSuggestionsDisabled
		path := filepath.Join(t.TempDir(), "filter.json")

		if code := te.run("new", path, "--title", "X", "--suggest"); code != ExitUsage {
			t.Fatalf("exit = %d, want %d", code, ExitUsage)
		}
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("project file should not exist, stat err = %v", err)
		}
		if !strings.Contains(te.stderr.String(), "GEMINI_API_KEY") {
			t.Errorf("stderr should carry the api key hint: %s", te.stderr)
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			args []string
		}{
			{"wrong extension", []string{"new", filepath.Join(t.TempDir(), "line.txt")}},
			{"negative steps", []string{"new", "--steps", "-1"}},
			{"bad date", []string{"new", filepath.Join(t.TempDir(), "a.json"), "--date", "someday"}},
			{"two paths", []string{"new", "a.json", "b.json"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				te := newTestEnv(t)
				if code := te.run(tt.args...); code != ExitUsage {
					t.Errorf("exit = %d, want %d; stderr: %s", code, ExitUsage, te.stderr)
				}
			})
		}
	})

	t.Run("quiet prints nothing", func(t *testing.T) {
		t.Parallel()
		te := newTestEnv(t)
		path := filepath.Join(t.TempDir(), "line.json")

		if code := te.run("new", path, "-q"); code != ExitSuccess {
			t.Fatalf("exit = %d", code)
		}
		if te.stdout.Len() != 0 {
			t.Errorf("stdout = %q, want empty", te.stdout)
		}
	})
}
