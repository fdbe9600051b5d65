package main

import (
	"fmt"
	"os"

	sopdoc "github.com/alnah/go-sopdoc"
)

// editFlags holds flags for the edit command.
type editFlags struct {
	common      commonFlags
	meta        metaFlags
	add         int
	remove      int
	steps       []string
	images      []string
	clearImages []int
	fits        []string
	output      string
}

// stepEdits holds the parsed per-step flags.
type stepEdits struct {
	texts  []stepAssignment
	images []stepAssignment
	clears []int
	fits   []stepAssignment
}

// runEdit applies every edit of one invocation as a single change.
// If any edit fails, nothing is written.
func runEdit(args []string, env *Environment) error {
	fs := newFlagSet("edit", env.Stderr, printEditUsage)
	f := &editFlags{}
	fs.IntVar(&f.add, "add", 0, "append n placeholder steps")
	fs.IntVar(&f.remove, "remove", 0, "remove the last n steps")
	fs.StringArrayVarP(&f.steps, "step", "s", nil, "set a step description: N=text")
	fs.StringArrayVarP(&f.images, "image", "i", nil, "attach an image file: N=path")
	fs.IntSliceVar(&f.clearImages, "clear-image", nil, "remove a step image")
	fs.StringArrayVar(&f.fits, "fit", nil, "set or cycle the image fit: N[=contain|cover|fill]")
	fs.StringVarP(&f.output, "output", "o", "", "write to another file")
	addMetaFlags(fs, &f.meta)
	addCommonFlags(fs, &f.common)

	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireArgs(fs, 1, 1); err != nil {
		return err
	}
	if f.add < 0 || f.remove < 0 {
		return fmt.Errorf("%w: --add and --remove cannot be negative", ErrUsage)
	}
	edits, err := parseStepEdits(f)
	if err != nil {
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

	st, err := loadSettings(f.common, env)
	if err != nil {
		return err
	}
	drafts, err := st.openDrafts(env)
	if err != nil {
		return err
	}
	sess, err := st.newSession(&doc, drafts)
	if err != nil {
		return err
	}
	defer closeSession(sess, drafts)

	setMeta := applyMeta(fs, &f.meta, env.Now())
	err = sess.Edit(func(m *sopdoc.Model) error {
		if err := setMeta(m); err != nil {
			return err
		}
		for range f.remove {
			m.RemoveLastStep()
		}
		for range f.add {
			m.AddStep()
		}
		return edits.apply(m)
	})
	if err != nil {
		return err
	}

	out := path
	if f.output != "" {
		out = f.output
		if err := validateProjectExtension(out); err != nil {
			return err
		}
	}

	updated := sess.Document()
	if out == path && updated.Equal(doc) {
		st.printf(env.Stdout, "No changes to %s\n", path)
		return nil
	}
	if err := writeProject(out, sess); err != nil {
		return err
	}
	st.printf(env.Stdout, "Updated %s (%d steps, %d pages)\n", out, len(updated.Steps), sopdoc.PageCount(len(updated.Steps)))
	return nil
}

// parseStepEdits validates the N=VALUE flags before the project is touched.
func parseStepEdits(f *editFlags) (*stepEdits, error) {
	var (
		e   stepEdits
		err error
	)
	if e.texts, err = parseStepAssignments("step", f.steps, true); err != nil {
		return nil, err
	}
	if e.images, err = parseStepAssignments("image", f.images, true); err != nil {
		return nil, err
	}
	if e.fits, err = parseStepAssignments("fit", f.fits, false); err != nil {
		return nil, err
	}
	for _, a := range e.fits {
		if fit := sopdoc.ImageFit(a.value); !fit.Valid() {
			return nil, fmt.Errorf("%w: --fit: unknown mode %q (use contain, cover or fill)", ErrUsage, a.value)
		}
	}
	for _, n := range f.clearImages {
		if n < 1 {
			return nil, fmt.Errorf("%w: --clear-image: step number must be a positive integer, got %d", ErrUsage, n)
		}
	}
	e.clears = f.clearImages
	return &e, nil
}

// apply runs the step edits against m. Step numbers refer to the document
// after --add and --remove.
func (e *stepEdits) apply(m *sopdoc.Model) error {
	for _, a := range e.texts {
		id, err := stepID(m.Document(), a.step)
		if err != nil {
			return err
		}
		m.UpdateStep(id, sopdoc.DescriptionPatch(a.value))
	}

	for _, a := range e.images {
		id, err := stepID(m.Document(), a.step)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(a.value) // #nosec G304 -- user-provided image path
		if err != nil {
			return fmt.Errorf("reading image for step %d: %w", a.step, err)
		}
		dataURL, err := sopdoc.EncodeImage(data)
		if err != nil {
			return fmt.Errorf("step %d: %w", a.step, err)
		}
		m.UpdateStep(id, sopdoc.ImagePatch(dataURL))
	}

	for _, n := range e.clears {
		id, err := stepID(m.Document(), n)
		if err != nil {
			return err
		}
		m.UpdateStep(id, sopdoc.ImagePatch(""))
	}

	for _, a := range e.fits {
		doc := m.Document()
		id, err := stepID(doc, a.step)
		if err != nil {
			return err
		}
		fit := sopdoc.ImageFit(a.value)
		if fit == "" {
			fit = doc.Steps[a.step-1].ImageFit.Next()
		}
		m.UpdateStep(id, sopdoc.FitPatch(fit))
	}
	return nil
}
