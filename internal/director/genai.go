package director

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/etonealbert/improvlingo/internal/models"
)

var _ Generator = (*GeminiGenerator)(nil)

// GeminiGenerator backs the director with the Gemini API. The client is
// built lazily in Initialize so disposing under resource pressure actually
// frees it.
type GeminiGenerator struct {
	APIKey string
	Model  string

	mu           sync.Mutex
	client       *genai.Client
	systemPrompt string
}

// NewGeminiGenerator negotiates the capability once at startup: without an
// API key the generator is Unsupported and should not be initialized.
func NewGeminiGenerator(apiKey, model string) (*GeminiGenerator, Availability) {
	if apiKey == "" {
		return nil, AvailabilityUnsupported
	}
	return &GeminiGenerator{APIKey: apiKey, Model: model}, AvailabilityAvailable
}

func (g *GeminiGenerator) Initialize(ctx context.Context, sc SceneContext) error {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: g.APIKey})
	if err != nil {
		return fmt.Errorf("genai client: %w", err)
	}

	g.mu.Lock()
	g.client = client
	g.systemPrompt = BuildSystemPrompt(sc)
	g.mu.Unlock()
	return nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	client := g.client
	system := g.systemPrompt
	g.mu.Unlock()

	if client == nil {
		return "", models.ErrNotInitialized
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
	}
	resp, err := client.Models.GenerateContent(ctx, g.Model, []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}, cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("genai generate: empty response")
	}
	return sb.String(), nil
}

func (g *GeminiGenerator) Dispose() {
	g.mu.Lock()
	g.client = nil
	g.systemPrompt = ""
	g.mu.Unlock()
}
