package planner

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig configures a GeminiGenerator.
type GeminiConfig struct {
	APIKey        string
	Model         string // default "gemini-2.0-flash"
	ContextWindow int    // tokens; default 1_000_000
	MaxRetries    int
	RetryDelay    float64 // seconds
	RatePerSecond float64
}

// GeminiGenerator is the default Generator, wrapping
// google.golang.org/genai, selected by GEMINI_API_KEY/GEMINI_MODEL.
type GeminiGenerator struct {
	client        *genai.Client
	model         string
	contextWindow int
	base          BaseProvider
}

// NewGeminiGenerator constructs a GeminiGenerator from cfg.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("planner: gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 1_000_000
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("planner: create gemini client: %w", err)
	}
	return &GeminiGenerator{
		client:        client,
		model:         cfg.Model,
		contextWindow: cfg.ContextWindow,
		base:          NewBaseProvider("gemini", cfg.MaxRetries, time.Duration(cfg.RetryDelay*float64(time.Second)), cfg.RatePerSecond),
	}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	prompt := AssemblePrompt(Request{Messages: req.Messages, ToolsDescription: req.ToolsDescription}, g.contextWindow)

	var text string
	err := g.base.Retry(ctx, func() error {
		temp := float32(req.Temperature)
		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}},
			Temperature:       &temp,
		})
		if err != nil {
			return NewProviderError("gemini", g.model, err)
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
