// Package render turns a paginated SOP document into the printable HTML
// page set that the rasterizer captures.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strings"
)

// Sentinel errors for page rendering.
var (
	ErrTemplateParse     = errors.New("page template parsing failed")
	ErrPageRender        = errors.New("page template rendering failed")
	ErrInvalidBackground = errors.New("invalid background color")
)

// Meta is the header and footer content shared by every page.
type Meta struct {
	Title     string
	SOPID     string
	Date      string // already formatted for display
	Author    string
	CycleTime string
	Version   string
}

// Slot is one grid cell. Empty slots pad the last page.
type Slot struct {
	Number      int // 1-based step number across the document
	Empty       bool
	Description string
	Image       string // data URL or http(s) URL, may be empty
	Fit         string // contain, cover or fill
}

// Page is one printable sheet.
type Page struct {
	Number int
	Total  int
	Slots  []Slot
}

// Document is the view model of the page template.
type Document struct {
	Meta       Meta
	Background string // CSS color
	Pages      []Page
}

// templateData is what the template executes against.
type templateData struct {
	Meta       Meta
	Background template.CSS
	Style      template.CSS
	Pages      []Page
}

// Renderer executes the page template with a fixed stylesheet.
// Safe for concurrent use.
type Renderer struct {
	tmpl  *template.Template
	style template.CSS
}

// New parses the page template. css is embedded in a <style> block.
func New(tmplContent, css string) (*Renderer, error) {
	tmpl, err := template.New("document").Funcs(template.FuncMap{
		"imageURL": imageURL,
		"fitClass": fitClass,
	}).Parse(tmplContent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	// #nosec G203 -- stylesheet comes from embedded or operator-provided assets
	return &Renderer{tmpl: tmpl, style: template.CSS(sanitizeCSS(css))}, nil
}

// Render produces the full HTML document for doc.
func (r *Renderer) Render(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	bg := strings.TrimSpace(doc.Background)
	if bg == "" {
		bg = "#ffffff"
	}
	if !cssColor.MatchString(bg) {
		return "", fmt.Errorf("%w: %q", ErrInvalidBackground, doc.Background)
	}

	data := templateData{
		Meta:       doc.Meta,
		Background: template.CSS(bg), // #nosec G203 -- matched cssColor
		Style:      r.style,
		Pages:      doc.Pages,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageRender, err)
	}
	return buf.String(), nil
}

// cssColor accepts hex colors, named colors and rgb()/rgba()/hsl()/hsla().
var cssColor = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20}|(rgb|rgba|hsl|hsla)\([0-9.,%\s]+\))$`)

// sanitizeCSS escapes sequences that could close the <style> block early.
func sanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}

// imageURL passes data:image URLs and http(s) URLs through as trusted.
// Anything else renders as a missing image.
func imageURL(src string) template.URL {
	s := strings.TrimSpace(src)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "data:image/") && strings.Contains(s, ","):
		return template.URL(s) // #nosec G203 -- scheme restricted to data:image
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
		return template.URL(s) // #nosec G203 -- scheme restricted to http(s)
	}
	return ""
}

// fitClass maps an image fit mode to its CSS class. Unknown modes contain.
func fitClass(fit string) string {
	switch fit {
	case "cover", "fill":
		return "fit-" + fit
	}
	return "fit-contain"
}
