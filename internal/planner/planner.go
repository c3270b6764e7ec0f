// Package planner is the text-in/text-out plan-generation abstraction over
// an LLM. A single prompt is assembled from a system prompt, an optional
// tools listing, and a flattened transcript, trimming to a character
// budget derived from the model's context window; concrete providers
// (Gemini, Anthropic, OpenAI) only need to turn that prompt into one
// blocking completion call.
package planner

import (
	"context"
	"fmt"
	"strings"
)

// Role is the speaker of one transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry of the flattened transcript handed to a Generator.
type Message struct {
	Role    Role
	Content string
}

// Request is the input to one Generate call.
type Request struct {
	SystemPrompt     string
	Messages         []Message
	Temperature      float64
	ToolsDescription string
}

// Generator is the plan-generation interface; any text-in/text-out
// provider satisfies it.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// CharsPerToken is the fixed char-to-token estimation ratio used to turn a
// model's context window (in tokens) into a character budget for prompt
// trimming.
const CharsPerToken = 4

// AssemblePrompt concatenates req.SystemPrompt, an optional "Available
// tools:" block, and the flattened "ROLE: content" transcript into a
// single string, then retains only the tail if the result exceeds
// contextWindowTokens*CharsPerToken characters. Pure function of its
// inputs.
func AssemblePrompt(req Request, contextWindowTokens int) string {
	var b strings.Builder
	if req.SystemPrompt != "" {
		b.WriteString(req.SystemPrompt)
		b.WriteString("\n\n")
	}
	if req.ToolsDescription != "" {
		b.WriteString("Available tools:\n")
		b.WriteString(req.ToolsDescription)
		b.WriteString("\n\n")
	}
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.Role)), m.Content)
	}

	full := b.String()
	if contextWindowTokens <= 0 {
		return full
	}
	budget := contextWindowTokens * CharsPerToken
	if len(full) <= budget {
		return full
	}
	return full[len(full)-budget:]
}
