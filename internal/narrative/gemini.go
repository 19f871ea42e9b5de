package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/refund-explainer/internal/domain"
	"google.golang.org/genai"
)

const (
	// DefaultModelName is the default Gemini model used for summaries.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultTimeout bounds a single summary request.
	DefaultTimeout = 10 * time.Second

	maxOutputTokens = 250
)

// contentGenerator is the subset of *genai.Models the composer needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiComposer summarizes explanations with a Gemini model.
type GeminiComposer struct {
	models  contentGenerator
	model   string
	timeout time.Duration
}

// NewGeminiComposer creates a GenAI client from the environment
// (GOOGLE_API_KEY or Vertex AI settings).
func NewGeminiComposer(ctx context.Context, model string, timeout time.Duration) (*GeminiComposer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiComposer: create genai client: %w", err)
	}
	return newGeminiComposer(client.Models, model, timeout), nil
}

func newGeminiComposer(models contentGenerator, model string, timeout time.Duration) *GeminiComposer {
	if model == "" {
		model = DefaultModelName
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GeminiComposer{models: models, model: model, timeout: timeout}
}

func (g *GeminiComposer) Summarize(ctx context.Context, result domain.RefundExplainerResult) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: BuildPrompt(result)}},
		},
	}
	config := &genai.GenerateContentConfig{MaxOutputTokens: maxOutputTokens}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Summarize: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("Summarize: %w", ErrEmptyResponse)
	}
	return text, nil
}
