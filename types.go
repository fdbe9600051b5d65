package sopdoc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ImageFit controls how a step image fills its slot.
type ImageFit string

// Image fit modes. The empty value renders as FitContain.
const (
	FitContain ImageFit = "contain"
	FitCover   ImageFit = "cover"
	FitFill    ImageFit = "fill"
)

// fitCycle is the order used by ImageFit.Next.
var fitCycle = []ImageFit{FitContain, FitCover, FitFill}

// Resolved returns the effective mode, mapping the empty value to FitContain.
func (f ImageFit) Resolved() ImageFit {
	if f == "" {
		return FitContain
	}
	return f
}

// Next returns the mode that follows f: contain, cover, fill, then contain again.
func (f ImageFit) Next() ImageFit {
	cur := f.Resolved()
	for i, m := range fitCycle {
		if m == cur {
			return fitCycle[(i+1)%len(fitCycle)]
		}
	}
	return FitContain
}

// Valid reports whether f is empty or a known mode.
func (f ImageFit) Valid() bool {
	switch f {
	case "", FitContain, FitCover, FitFill:
		return true
	}
	return false
}

// Step is one numbered instruction with an optional image.
// Order is advisory; the position inside Document.Steps is authoritative.
type Step struct {
	ID          string
	Order       int
	Description string
	Image       string // data URL, empty when the step has no image
	ImageFit    ImageFit
}

// HasImage reports whether the step carries an image payload.
func (s Step) HasImage() bool {
	return s.Image != ""
}

// stepJSON is the wire form of Step. Image is a pointer so that
// an absent image is written as null, like the browser editor does.
type stepJSON struct {
	ID          string   `json:"id"`
	Order       int      `json:"order"`
	Description string   `json:"description"`
	Image       *string  `json:"image"`
	ImageFit    ImageFit `json:"imageFit,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Step) MarshalJSON() ([]byte, error) {
	w := stepJSON{
		ID:          s.ID,
		Order:       s.Order,
		Description: s.Description,
		ImageFit:    s.ImageFit,
	}
	if s.Image != "" {
		img := s.Image
		w.Image = &img
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Step) UnmarshalJSON(data []byte) error {
	var w stepJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Step{
		ID:          w.ID,
		Order:       w.Order,
		Description: w.Description,
		ImageFit:    w.ImageFit,
	}
	if w.Image != nil {
		s.Image = *w.Image
	}
	return nil
}

// Metadata holds the free-text header and footer fields of a document.
type Metadata struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	SOPID     string `json:"sopId"`
	Date      string `json:"date"`
	Author    string `json:"author"`
	CycleTime string `json:"cycleTime"`
	Version   string `json:"version"`
}

// MetaField names an editable metadata field. The document id is not editable.
type MetaField string

// Editable metadata fields, named like their JSON keys.
const (
	MetaTitle     MetaField = "title"
	MetaSOPID     MetaField = "sopId"
	MetaVersion   MetaField = "version"
	MetaDate      MetaField = "date"
	MetaCycleTime MetaField = "cycleTime"
	MetaAuthor    MetaField = "author"
)

// MetaFields lists the editable fields in display order.
var MetaFields = []MetaField{MetaTitle, MetaSOPID, MetaVersion, MetaDate, MetaCycleTime, MetaAuthor}

// ParseMetaField resolves a field name case-insensitively.
func ParseMetaField(name string) (MetaField, error) {
	for _, f := range MetaFields {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetaField, name)
}

// set assigns value to field on m.
func (m *Metadata) set(field MetaField, value string) error {
	switch field {
	case MetaTitle:
		m.Title = value
	case MetaSOPID:
		m.SOPID = value
	case MetaVersion:
		m.Version = value
	case MetaDate:
		m.Date = value
	case MetaCycleTime:
		m.CycleTime = value
	case MetaAuthor:
		m.Author = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMetaField, field)
	}
	return nil
}

// Get returns the value of an editable field, or "" for unknown fields.
func (m Metadata) Get(field MetaField) string {
	switch field {
	case MetaTitle:
		return m.Title
	case MetaSOPID:
		return m.SOPID
	case MetaVersion:
		return m.Version
	case MetaDate:
		return m.Date
	case MetaCycleTime:
		return m.CycleTime
	case MetaAuthor:
		return m.Author
	}
	return ""
}

// Document is the full editable unit: metadata plus ordered steps.
type Document struct {
	Meta  Metadata `json:"meta"`
	Steps []Step   `json:"steps"`
}

// StepPatch carries the fields to merge into a step. Nil fields are left alone.
// A non-nil Image pointing at "" removes the image.
type StepPatch struct {
	Description *string
	Image       *string
	ImageFit    *ImageFit
}

// DescriptionPatch returns a patch that sets the description.
func DescriptionPatch(s string) StepPatch {
	return StepPatch{Description: &s}
}

// ImagePatch returns a patch that sets (or clears, for "") the image.
func ImagePatch(dataURL string) StepPatch {
	return StepPatch{Image: &dataURL}
}

// FitPatch returns a patch that sets the image fit mode.
func FitPatch(f ImageFit) StepPatch {
	return StepPatch{ImageFit: &f}
}

// apply merges p into s.
func (p StepPatch) apply(s *Step) {
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.Image != nil {
		s.Image = *p.Image
	}
	if p.ImageFit != nil {
		s.ImageFit = *p.ImageFit
	}
}
