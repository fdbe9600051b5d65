package main

import (
	"fmt"

	sopdoc "github.com/alnah/go-sopdoc"
	"github.com/alnah/go-sopdoc/internal/config"
)

// runSuggest prints suggested steps for the project title, and with
// --apply replaces the project steps with them.
func runSuggest(args []string, env *Environment) error {
	fs := newFlagSet("suggest", env.Stderr, printSuggestUsage)
	var (
		common commonFlags
		count  int
		apply  bool
	)
	fs.IntVarP(&count, "count", "n", 0, "steps to request")
	fs.BoolVar(&apply, "apply", false, "replace the steps with the suggestions")
	addCommonFlags(fs, &common)

	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireArgs(fs, 1, 1); err != nil {
		return err
	}

	path := fs.Arg(0)
	if err := validateProjectExtension(path); err != nil {
		return err
	}
	doc, err := readProject(path)
	if err != nil {
		return err
	}

	st, err := loadSettings(common, env)
	if err != nil {
		return err
	}
	if fs.Changed("count") {
		st.cfg.Suggest.Count = count
	}
	if n := st.cfg.Suggest.Count; n < 0 || n > config.MaxSuggestCount {
		return fmt.Errorf("%w: --count must be between 0 and %d, got %d", ErrUsage, config.MaxSuggestCount, n)
	}

	// Without --apply nothing is kept, so the draft is left alone.
	var drafts *sopdoc.DraftStore
	if apply {
		if drafts, err = st.openDrafts(env); err != nil {
			return err
		}
	}
	sess, err := st.newSession(&doc, drafts, sopdoc.WithSuggester(st.suggester(env)))
	if err != nil {
		return err
	}
	defer closeSession(sess, drafts)

	ctx, stop := background()
	defer stop()

	descs, err := sess.SuggestSteps(ctx, st.cfg.Suggest.Count)
	if err != nil {
		return err
	}
	for i, d := range descs {
		fmt.Fprintf(env.Stdout, "%3d. %s\n", i+1, d)
	}

	if !apply {
		return nil
	}
	if err := writeProject(path, sess); err != nil {
		return err
	}
	st.printf(env.Stdout, "Updated %s (%d steps, %d pages)\n", path, len(descs), sopdoc.PageCount(len(descs)))
	return nil
}
