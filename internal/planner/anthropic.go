package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures an AnthropicGenerator.
type AnthropicConfig struct {
	APIKey        string
	Model         string // default "claude-3-5-haiku-latest"
	MaxTokens     int64  // default 4096
	ContextWindow int
	MaxRetries    int
	RetryDelay    float64
	RatePerSecond float64
}

// AnthropicGenerator is an alternate concrete Generator, selectable via
// `--model anthropic:<model>`.
type AnthropicGenerator struct {
	client        anthropic.Client
	model         anthropic.Model
	maxTokens     int64
	contextWindow int
	base          BaseProvider
}

// NewAnthropicGenerator constructs an AnthropicGenerator from cfg.
func NewAnthropicGenerator(cfg AnthropicConfig) (*AnthropicGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("planner: anthropic API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 200_000
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &AnthropicGenerator{
		client:        client,
		model:         anthropic.Model(cfg.Model),
		maxTokens:     cfg.MaxTokens,
		contextWindow: cfg.ContextWindow,
		base:          NewBaseProvider("anthropic", cfg.MaxRetries, time.Duration(cfg.RetryDelay*float64(time.Second)), cfg.RatePerSecond),
	}, nil
}

// Generate implements Generator.
func (a *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	prompt := AssemblePrompt(Request{Messages: req.Messages, ToolsDescription: req.ToolsDescription}, a.contextWindow)

	var text string
	err := a.base.Retry(ctx, func() error {
		resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:       a.model,
			MaxTokens:   a.maxTokens,
			Temperature: anthropic.Float(req.Temperature),
			System: []anthropic.TextBlockParam{
				{Text: req.SystemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return NewProviderError("anthropic", string(a.model), err)
		}
		for _, block := range resp.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
