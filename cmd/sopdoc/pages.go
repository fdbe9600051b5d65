package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	sopdoc "github.com/alnah/go-sopdoc"
)

// slotView is the JSON form of one page slot.
type slotView struct {
	Number      int    `json:"number"`
	StepID      string `json:"stepId,omitempty"`
	Description string `json:"description,omitempty"`
	Image       bool   `json:"image"`
	ImageFit    string `json:"imageFit,omitempty"`
	Empty       bool   `json:"empty"`
}

// pageView is the JSON form of one page.
type pageView struct {
	Number int        `json:"number"`
	Total  int        `json:"total"`
	Slots  []slotView `json:"slots"`
}

// runPages prints the page layout of a project.
func runPages(args []string, env *Environment) error {
	fs := newFlagSet("pages", env.Stderr, printPagesUsage)
	var (
		common     commonFlags
		jsonOutput bool
	)
	fs.BoolVar(&jsonOutput, "json", false, "print the layout as JSON")
	addCommonFlags(fs, &common)

	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireArgs(fs, 1, 1); err != nil {
		return err
	}
	doc, err := readProject(fs.Arg(0))
	if err != nil {
		return err
	}

	pages := pageViews(sopdoc.Paginate(doc.Steps))
	if jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pages)
	}
	printPages(env.Stdout, doc.Meta, pages)
	return nil
}

// pageViews converts pages into their printable form.
func pageViews(pages []sopdoc.Page) []pageView {
	out := make([]pageView, 0, len(pages))
	for _, p := range pages {
		v := pageView{Number: p.Number, Total: p.Total, Slots: make([]slotView, 0, sopdoc.PageCapacity)}
		for i, s := range p.Slots {
			sv := slotView{Number: sopdoc.DisplayNumber(p.Number, i), Empty: s.Empty}
			if !s.Empty {
				sv.StepID = s.Step.ID
				sv.Description = s.Step.Description
				sv.Image = s.Step.HasImage()
				if sv.Image {
					sv.ImageFit = string(s.Step.ImageFit.Resolved())
				}
			}
			v.Slots = append(v.Slots, sv)
		}
		out = append(out, v)
	}
	return out
}

// printPages writes the text layout.
func printPages(w io.Writer, meta sopdoc.Metadata, pages []pageView) {
	title := meta.Title
	if title == "" {
		title = "(untitled)"
	}
	if meta.SOPID != "" {
		title += " [" + meta.SOPID + "]"
	}
	fmt.Fprintln(w, title)

	for _, p := range pages {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Page %d / %d\n", p.Number, p.Total)
		for _, s := range p.Slots {
			if s.Empty {
				fmt.Fprintf(w, "  %3d  -\n", s.Number)
				continue
			}
			line := firstLine(s.Description)
			if s.Image {
				line += " [image: " + s.ImageFit + "]"
			}
			fmt.Fprintf(w, "  %3d  %s\n", s.Number, line)
		}
	}
}

// firstLine returns the first line of a multi-line description, marked
// with an ellipsis when more lines follow.
func firstLine(s string) string {
	if line, _, more := strings.Cut(s, "\n"); more {
		return line + " ..."
	}
	return s
}
