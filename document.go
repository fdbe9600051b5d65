package sopdoc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Document defaults.
const (
	// DefaultStepCount is the number of steps in a fresh document (one full page).
	DefaultStepCount = 6

	// StepPlaceholder is the description given to new steps.
	StepPlaceholder = "[Enter step description here]"
)

// MaxImageBytes caps a single decoded step image (default 20MB).
var MaxImageBytes = 20 << 20

// IDGenerator returns a fresh opaque identifier. Must never repeat within a process.
type IDGenerator func() string

// newID is the default IDGenerator.
func newID() string {
	return uuid.NewString()
}

// NewDocument returns a fresh document with a new id, empty metadata
// and DefaultStepCount placeholder steps.
func NewDocument() Document {
	return newDocument(newID)
}

func newDocument(gen IDGenerator) Document {
	doc := Document{
		Meta:  Metadata{ID: gen()},
		Steps: make([]Step, 0, DefaultStepCount),
	}
	for i := range DefaultStepCount {
		doc.Steps = append(doc.Steps, Step{
			ID:          gen(),
			Order:       i + 1,
			Description: StepPlaceholder,
		})
	}
	return doc
}

// Clone returns a deep copy of d. Steps hold only value fields,
// so copying the slice is enough to make the copy independent.
func (d Document) Clone() Document {
	out := Document{Meta: d.Meta}
	if d.Steps != nil {
		out.Steps = make([]Step, len(d.Steps))
		copy(out.Steps, d.Steps)
	}
	return out
}

// Equal reports full structural equality. A nil and an empty step list are equal.
func (d Document) Equal(other Document) bool {
	if d.Meta != other.Meta || len(d.Steps) != len(other.Steps) {
		return false
	}
	for i := range d.Steps {
		if d.Steps[i] != other.Steps[i] {
			return false
		}
	}
	return true
}

// Validate checks structural invariants: non-empty unique step ids
// and known image fit modes.
func (d Document) Validate() error {
	seen := make(map[string]struct{}, len(d.Steps))
	for i, s := range d.Steps {
		if s.ID == "" {
			return fmt.Errorf("%w: step %d has no id", ErrMalformedDocument, i+1)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate step id %q", ErrMalformedDocument, s.ID)
		}
		seen[s.ID] = struct{}{}
		if !s.ImageFit.Valid() {
			return fmt.Errorf("%w: step %d has unknown imageFit %q", ErrMalformedDocument, i+1, s.ImageFit)
		}
	}
	return nil
}

// ParseDocument decodes a project file or draft.
// The shape gate requires "meta" to be an object and "steps" an array;
// anything else is rejected with ErrMalformedDocument.
func ParseDocument(data []byte) (Document, error) {
	if !gjson.ValidBytes(data) {
		return Document{}, fmt.Errorf("%w: not valid JSON", ErrMalformedDocument)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Document{}, fmt.Errorf("%w: top level must be an object", ErrMalformedDocument)
	}
	if !root.Get("meta").IsObject() {
		return Document{}, fmt.Errorf("%w: missing meta object", ErrMalformedDocument)
	}
	if !root.Get("steps").IsArray() {
		return Document{}, fmt.Errorf("%w: steps must be an array", ErrMalformedDocument)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc.Steps == nil {
		doc.Steps = []Step{}
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// EncodeDocument serializes d in the project file format.
func EncodeDocument(d Document) ([]byte, error) {
	if d.Steps == nil {
		d.Steps = []Step{}
	}
	return json.MarshalIndent(d, "", "  ")
}

// EncodeImage converts raw image bytes into a data URL suitable for Step.Image.
// Returns ErrInvalidImage when the payload is empty, too large, or not an image.
func EncodeImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	if len(data) > MaxImageBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrInvalidImage, len(data), MaxImageBytes)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrInvalidImage, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Model holds the single authoritative in-memory document and
// exposes its mutation primitives. It performs no I/O and is not
// safe for concurrent use; Session serializes access.
type Model struct {
	doc   Document
	newID IDGenerator
}

// NewModel wraps doc. A nil generator selects UUIDs.
func NewModel(doc Document, gen IDGenerator) *Model {
	if gen == nil {
		gen = newID
	}
	if doc.Steps == nil {
		doc.Steps = []Step{}
	}
	return &Model{doc: doc, newID: gen}
}

// Document returns a deep copy of the current document.
func (m *Model) Document() Document {
	return m.doc.Clone()
}

// StepCount returns the number of steps.
func (m *Model) StepCount() int {
	return len(m.doc.Steps)
}

// AddStep appends a placeholder step with a fresh id and returns it.
func (m *Model) AddStep() Step {
	s := Step{
		ID:          m.newID(),
		Order:       len(m.doc.Steps) + 1,
		Description: StepPlaceholder,
	}
	m.doc.Steps = append(m.doc.Steps, s)
	return s
}

// RemoveLastStep drops the final step. Returns false on an empty document.
func (m *Model) RemoveLastStep() bool {
	n := len(m.doc.Steps)
	if n == 0 {
		return false
	}
	steps := make([]Step, n-1)
	copy(steps, m.doc.Steps[:n-1])
	m.doc.Steps = steps
	return true
}

// UpdateStep merges patch into the step with the given id.
// An unknown id is ignored and reported as false: late image decodes
// may target a step that was removed in the meantime.
func (m *Model) UpdateStep(id string, patch StepPatch) bool {
	for i := range m.doc.Steps {
		if m.doc.Steps[i].ID == id {
			patch.apply(&m.doc.Steps[i])
			return true
		}
	}
	return false
}

// UpdateMeta replaces one editable metadata field.
func (m *Model) UpdateMeta(field MetaField, value string) error {
	return m.doc.Meta.set(field, value)
}

// ReplaceSteps swaps the step list for new steps built from descriptions.
func (m *Model) ReplaceSteps(descriptions []string) {
	steps := make([]Step, 0, len(descriptions))
	for i, d := range descriptions {
		steps = append(steps, Step{ID: m.newID(), Order: i + 1, Description: d})
	}
	m.doc.Steps = steps
}

// Replace substitutes the whole document after validating it.
// On error the current document is untouched.
func (m *Model) Replace(doc Document) error {
	if doc.Steps == nil {
		return fmt.Errorf("%w: steps must be a sequence", ErrMalformedDocument)
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	m.doc = doc.Clone()
	return nil
}
