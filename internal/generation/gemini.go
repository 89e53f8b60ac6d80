package generation

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	genai "google.golang.org/genai"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the part of the genai client the generator uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator produces plans with the Gemini API.
type GeminiGenerator struct {
	models contentGenerator
	model  string
	tracer trace.Tracer
}

// NewGeminiGenerator creates a Gemini-backed generator. An empty apiKey lets
// the genai client read GEMINI_API_KEY or GOOGLE_API_KEY itself.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGeminiGenerator(cli.Models, model), nil
}

func newGeminiGenerator(models contentGenerator, model string) *GeminiGenerator {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGenerator{models: models, model: model, tracer: otel.Tracer("generation-gemini")}
}

// Generate sends the payload as a single user turn and returns the model's
// text as Markdown.
func (g *GeminiGenerator) Generate(ctx context.Context, payload string) (wizard.GenerationResult, error) {
	ctx, span := g.tracer.Start(ctx, "generation.gemini.generate")
	defer span.End()
	span.SetAttributes(attribute.String("model", g.model), attribute.Int("payload_bytes", len(payload)))

	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(payload, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseMIMEType: "text/plain"},
	)
	if err != nil {
		span.RecordError(err)
		return wizard.GenerationResult{}, fmt.Errorf("gemini generate: %w", err)
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		span.RecordError(ErrEmptyOutput)
		return wizard.GenerationResult{Success: false, Error: ErrEmptyOutput.Error()}, nil
	}
	return wizard.GenerationResult{Success: true, Output: text}, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
