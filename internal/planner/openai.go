package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAIGenerator.
type OpenAIConfig struct {
	APIKey        string
	Model         string // default "gpt-4o-mini"
	ContextWindow int
	MaxRetries    int
	RetryDelay    float64
	RatePerSecond float64
}

// OpenAIGenerator is an alternate concrete Generator, selectable via
// `--model openai:<model>`.
type OpenAIGenerator struct {
	client        *openai.Client
	model         string
	contextWindow int
	base          BaseProvider
}

// NewOpenAIGenerator constructs an OpenAIGenerator from cfg.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("planner: openai API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 128_000
	}
	return &OpenAIGenerator{
		client:        openai.NewClient(cfg.APIKey),
		model:         cfg.Model,
		contextWindow: cfg.ContextWindow,
		base:          NewBaseProvider("openai", cfg.MaxRetries, time.Duration(cfg.RetryDelay*float64(time.Second)), cfg.RatePerSecond),
	}, nil
}

// Generate implements Generator.
func (o *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	prompt := AssemblePrompt(Request{Messages: req.Messages, ToolsDescription: req.ToolsDescription}, o.contextWindow)

	var text string
	err := o.base.Retry(ctx, func() error {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: float32(req.Temperature),
		})
		if err != nil {
			return NewProviderError("openai", o.model, err)
		}
		if len(resp.Choices) > 0 {
			text = resp.Choices[0].Message.Content
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
