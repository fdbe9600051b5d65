package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	sopdoc "github.com/alnah/go-sopdoc"
	"github.com/alnah/go-sopdoc/internal/yamlutil"
)

// ErrNoDraft indicates an empty draft slot.
var ErrNoDraft = errors.New("no draft saved")

// runDraft dispatches the draft subcommands.
func runDraft(args []string, env *Environment) error {
	if len(args) == 0 {
		printDraftUsage(env.Stderr)
		return fmt.Errorf("%w: draft needs a subcommand (show, restore, clear)", ErrUsage)
	}

	switch args[0] {
	case "show":
		return runDraftShow(args[1:], env)
	case "restore":
		return runDraftRestore(args[1:], env)
	case "clear":
		return runDraftClear(args[1:], env)
	case "-h", "--help":
		printDraftUsage(env.Stdout)
		return nil
	}
	return fmt.Errorf("%w: draft %s", ErrUnknownCommand, args[0])
}

func runDraftShow(args []string, env *Environment) error {
	fs := newFlagSet("draft show", env.Stderr, printDraftUsage)
	var (
		common     commonFlags
		jsonOutput bool
		yamlOutput bool
	)
	fs.BoolVar(&jsonOutput, "json", false, "print the draft as a project file")
	fs.BoolVar(&yamlOutput, "yaml", false, "print the draft as YAML")
	addCommonFlags(fs, &common)

	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireArgs(fs, 0, 0); err != nil {
		return err
	}
	if jsonOutput && yamlOutput {
		return fmt.Errorf("%w: --json and --yaml are mutually exclusive", ErrUsage)
	}

	st, err := loadSettings(common, env)
	if err != nil {
		return err
	}
	drafts, err := st.openDraftStore(env)
	if err != nil {
		return err
	}
	defer func() { _ = drafts.Close() }()

	ctx, stop := background()
	defer stop()

	doc, err := drafts.Load(ctx)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w in slot %q", ErrNoDraft, st.cfg.Draft.Slot)
	}

	switch {
	case jsonOutput, yamlOutput:
		data, err := sopdoc.EncodeDocument(*doc)
		if err != nil {
			return err
		}
		if yamlOutput {
			if data, err = yamlutil.FromJSON(data); err != nil {
				return err
			}
		}
		out := string(data)
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		_, err = io.WriteString(env.Stdout, out)
		return err
	}

	path, _ := st.draftPath()
	savedAt, tracked, err := drafts.SavedAt(ctx)
	if err != nil {
		st.logger.Debug("draft timestamp unavailable", "error", err)
	}
	printDraftSummary(env.Stdout, st.cfg.Draft.Slot, path, *doc, savedAt, tracked)
	return nil
}

// printDraftSummary writes a short description of the draft.
func printDraftSummary(w io.Writer, slot, path string, doc sopdoc.Document, savedAt time.Time, tracked bool) {
	images := 0
	for _, s := range doc.Steps {
		if s.HasImage() {
			images++
		}
	}
	title := doc.Meta.Title
	if title == "" {
		title = "(untitled)"
	}

	fmt.Fprintf(w, "Draft %q (%s)\n", slot, path)
	fmt.Fprintf(w, "  Title:   %s\n", title)
	if doc.Meta.SOPID != "" {
		fmt.Fprintf(w, "  SOP ID:  %s\n", doc.Meta.SOPID)
	}
	fmt.Fprintf(w, "  Steps:   %d (%d pages)\n", len(doc.Steps), sopdoc.PageCount(len(doc.Steps)))
	fmt.Fprintf(w, "  Images:  %d\n", images)
	if tracked {
		fmt.Fprintf(w, "  Saved:   %s\n", savedAt.Local().Format(time.DateTime))
	}
}

func runDraftRestore(args []string, env *Environment) error {
	fs := newFlagSet("draft restore", env.Stderr, printDraftUsage)
	var (
		common commonFlags
		force  bool
	)
	fs.BoolVarP(&force, "force", "f", false, "replace an existing file")
	addCommonFlags(fs, &common)

	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireArgs(fs, 0, 1); err != nil {
		return err
	}

	st, err := loadSettings(common, env)
	if err != nil {
		return err
	}
	drafts, err := st.openDraftStore(env)
	if err != nil {
		return err
	}
	sess, err := st.newSession(nil, drafts)
	if err != nil {
		_ = drafts.Close()
		return err
	}
	defer closeSession(sess, drafts)

	ctx, stop := background()
	defer stop()

	restored, err := sess.Restore(ctx)
	if err != nil {
		return err
	}
	if !restored {
		return fmt.Errorf("%w in slot %q (or it is unreadable)", ErrNoDraft, st.cfg.Draft.Slot)
	}

	path := fs.Arg(0)
	if path == "" {
		path = sess.ProjectFilename()
	}
	if err := validateProjectExtension(path); err != nil {
		return err
	}
	if err := checkOverwrite(path, force); err != nil {
		return err
	}
	if err := writeProject(path, sess); err != nil {
		return err
	}
	st.printf(env.Stdout, "Restored draft to %s\n", path)
	return nil
}

func runDraftClear(args []string, env *Environment) error {
	fs := newFlagSet("draft clear", env.Stderr, printDraftUsage)
	var common commonFlags
	addCommonFlags(fs, &common)

	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireArgs(fs, 0, 0); err != nil {
		return err
	}

	st, err := loadSettings(common, env)
	if err != nil {
		return err
	}
	drafts, err := st.openDraftStore(env)
	if err != nil {
		return err
	}
	defer func() { _ = drafts.Close() }()

	if err := drafts.Clear(context.Background()); err != nil {
		return err
	}
	st.printf(env.Stdout, "Draft %q cleared\n", st.cfg.Draft.Slot)
	return nil
}
