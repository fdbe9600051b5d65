package main

import (
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	sopdoc "github.com/alnah/go-sopdoc"
	"github.com/alnah/go-sopdoc/internal/dateutil"
)

// runNew creates a project file. It starts from a fresh document, which
// also replaces the autosaved draft.
func runNew(args []string, env *Environment) error {
	fs := newFlagSet("new", env.Stderr, printNewUsage)
	var (
		common  commonFlags
		meta    metaFlags
		steps   int
		force   bool
		suggest bool
	)
	fs.IntVar(&steps, "steps", sopdoc.DefaultStepCount, "number of steps")
	fs.BoolVar(&suggest, "suggest", false, "fill steps with suggestions for the title")
	fs.BoolVarP(&force, "force", "f", false, "replace an existing file")
	addMetaFlags(fs, &meta)
	addCommonFlags(fs, &common)

	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireArgs(fs, 0, 1); err != nil {
		return err
	}
	if steps < 0 {
		return fmt.Errorf("%w: --steps cannot be negative, got %d", ErrUsage, steps)
	}

	st, err := loadSettings(common, env)
	if err != nil {
		return err
	}
	ctx, stop := background()
	defer stop()

	drafts, err := st.openDrafts(env)
	if err != nil {
		return err
	}
	sess, err := st.newSession(nil, drafts, sopdoc.WithSuggester(st.suggester(env)))
	if err != nil {
		return err
	}
	defer closeSession(sess, drafts)

	if err := sess.Reset(ctx); err != nil {
		st.logger.Warn("previous draft not cleared", "error", err)
	}
	if err := sess.Edit(applyMeta(fs, &meta, env.Now())); err != nil {
		return err
	}

	if suggest {
		if _, err := sess.SuggestSteps(ctx, steps); err != nil {
			return err
		}
	} else {
		resizeSteps(sess, steps)
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

	doc := sess.Document()
	st.printf(env.Stdout, "Created %s (%d steps, %d pages)\n", path, len(doc.Steps), sopdoc.PageCount(len(doc.Steps)))
	return nil
}

// resizeSteps adds or removes trailing steps until the document has n.
func resizeSteps(sess *sopdoc.Session, n int) {
	for len(sess.Document().Steps) < n {
		sess.AddStep()
	}
	for len(sess.Document().Steps) > n {
		sess.RemoveLastStep()
	}
}

// applyMeta returns an edit that sets every metadata flag given on the
// command line. Dates are normalized to YYYY-MM-DD first.
func applyMeta(fs *flag.FlagSet, meta *metaFlags, now time.Time) func(*sopdoc.Model) error {
	return func(m *sopdoc.Model) error {
		for _, mf := range metaFlagNames {
			if !fs.Changed(mf.flag) {
				continue
			}
			field, err := sopdoc.ParseMetaField(mf.field)
			if err != nil {
				return err
			}
			value := meta.value(mf.flag)
			if field == sopdoc.MetaDate {
				if value, err = dateutil.ResolveDate(value, now); err != nil {
					return err
				}
			}
			if err := m.UpdateMeta(field, value); err != nil {
				return err
			}
		}
		return nil
	}
}
