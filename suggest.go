package sopdoc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

// DefaultSuggestModel is the Gemini model used for step suggestions.
const DefaultSuggestModel = "gemini-2.5-flash"

// MaxSuggestedSteps bounds a single suggestion request.
const MaxSuggestedSteps = 60

// Suggester drafts step descriptions for a procedure title.
type Suggester interface {
	Suggest(ctx context.Context, title string, count int) ([]string, error)
}

// NewSuggester returns a Gemini-backed Suggester, or one that always fails
// with ErrSuggestionsDisabled when apiKey is empty. An empty model selects
// DefaultSuggestModel.
func NewSuggester(apiKey, model string, logger *slog.Logger) Suggester {
	if strings.TrimSpace(apiKey) == "" {
		return disabledSuggester{}
	}
	if model == "" {
		model = DefaultSuggestModel
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &geminiSuggester{apiKey: apiKey, model: model, logger: logger}
}

// disabledSuggester is used when no API key is configured.
type disabledSuggester struct{}

func (disabledSuggester) Suggest(context.Context, string, int) ([]string, error) {
	return nil, ErrSuggestionsDisabled
}

// contentGenerator is the part of the genai client the suggester uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// geminiSuggester asks Gemini for a JSON array of {description} objects.
type geminiSuggester struct {
	apiKey string
	model  string
	logger *slog.Logger

	once    sync.Once
	gen     contentGenerator
	initErr error
}

// Compile-time interface checks.
var (
	_ Suggester = disabledSuggester{}
	_ Suggester = (*geminiSuggester)(nil)
)

// ensureClient lazily creates the genai client.
func (g *geminiSuggester) ensureClient(ctx context.Context) error {
	g.once.Do(func() {
		if g.gen != nil {
			return
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			g.initErr = fmt.Errorf("%w: creating client: %v", ErrSuggestion, err)
			return
		}
		g.gen = client.Models
	})
	return g.initErr
}

// Suggest returns up to count step descriptions for title.
func (g *geminiSuggester) Suggest(ctx context.Context, title string, count int) ([]string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if count <= 0 {
		count = DefaultStepCount
	}
	count = min(count, MaxSuggestedSteps)

	if err := g.ensureClient(ctx); err != nil {
		return nil, err
	}

	resp, err := g.gen.GenerateContent(ctx, g.model, genai.Text(suggestPrompt(title, count)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   stepListSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSuggestion, err)
	}

	descs, err := parseSuggestions(resp.Text())
	if err != nil {
		return nil, err
	}
	if len(descs) > count {
		g.logger.Debug("trimming surplus suggestions", "got", len(descs), "want", count)
		descs = descs[:count]
	}
	g.logger.Info("steps suggested", "title", title, "steps", len(descs), "model", g.model)
	return descs, nil
}

func suggestPrompt(title string, count int) string {
	return fmt.Sprintf("Create a step-by-step standard operating procedure (SOP) for the following task: %q.\n"+
		"Generate exactly %d distinct steps. Keep descriptions concise and action-oriented.", title, count)
}

var stepListSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"description": {
				Type:        genai.TypeString,
				Description: "The instruction text for this step.",
			},
		},
		Required: []string{"description"},
	},
}

// parseSuggestions extracts the non-empty descriptions of a JSON array of
// {description} objects.
func parseSuggestions(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrSuggestion)
	}
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("%w: response is not JSON", ErrSuggestion)
	}
	root := gjson.Parse(text)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: response is not a list", ErrSuggestion)
	}

	var descs []string
	for _, item := range root.Array() {
		if d := strings.TrimSpace(item.Get("description").String()); d != "" {
			descs = append(descs, d)
		}
	}
	if len(descs) == 0 {
		return nil, fmt.Errorf("%w: no steps in response", ErrSuggestion)
	}
	return descs, nil
}
