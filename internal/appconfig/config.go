// Package appconfig resolves the CLI/HTTP boundary's configuration from
// flags and environment variables, and constructs the concrete planner and
// sandbox collaborators the core packages accept as interfaces/structs.
package appconfig

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/yaegerbomb42/boxedin/internal/agentloop"
	"github.com/yaegerbomb42/boxedin/internal/planner"
	"github.com/yaegerbomb42/boxedin/internal/sandbox"
)

// Config is every tunable the global flags and environment variables
// expose.
type Config struct {
	DataDir      string
	SandboxDir   string
	Model        string // "gemini:<model>" | "anthropic:<model>" | "openai:<model>"; bare model name defaults to gemini
	TimeoutMs    int
	MemoryMB     int
	CPU          float64
	AllowNetwork bool
	Port         string
}

// FromEnv seeds a Config from the environment. Flags bound to the same
// cobra.Command later override these via pflag's default-value mechanism,
// so this only needs to supply the defaults.
func FromEnv() Config {
	cfg := Config{
		DataDir:    "data",
		SandboxDir: "sandbox",
		Model:      firstNonEmpty(os.Getenv("GEMINI_MODEL"), "gemini-2.0-flash"),
		TimeoutMs:  envInt("SANDBOX_TIMEOUT_MS", 30_000),
		MemoryMB:   envInt("SANDBOX_MEMORY_MB", 512),
		CPU:        envFloat("SANDBOX_CPU", 1.0),
		AllowNetwork: func() bool {
			v := strings.ToLower(os.Getenv("SANDBOX_NETWORK"))
			return v == "1" || v == "true"
		}(),
		Port: firstNonEmpty(os.Getenv("PORT"), "8080"),
	}
	return cfg
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// NewSandbox builds the Sandbox collaborator from cfg.
func (c Config) NewSandbox() (*sandbox.Sandbox, error) {
	return sandbox.New(sandbox.Config{
		SandboxRoot:    c.SandboxDir,
		TimeoutMs:      c.TimeoutMs,
		MemoryMB:       c.MemoryMB,
		CPU:            c.CPU,
		NetworkEnabled: c.AllowNetwork,
	})
}

// NewGenerator resolves c.Model into a concrete planner.Generator. The
// model string's optional "provider:" prefix selects among the three
// concrete providers this module ships; a bare model name is treated as a
// Gemini model, matching the GEMINI_API_KEY/GEMINI_MODEL default.
//
// Every missing-API-key case wraps agentloop.ErrConfig so the CLI's
// missing-key exit path needs only a single errors.Is check at the
// boundary.
func (c Config) NewGenerator(ctx context.Context) (planner.Generator, error) {
	provider, model := splitModel(c.Model)
	switch provider {
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is required for --model anthropic:*", agentloop.ErrConfig)
		}
		return planner.NewAnthropicGenerator(planner.AnthropicConfig{APIKey: key, Model: model})
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is required for --model openai:*", agentloop.ErrConfig)
		}
		return planner.NewOpenAIGenerator(planner.OpenAIConfig{APIKey: key, Model: model})
	default:
		key := os.Getenv("GEMINI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY is required", agentloop.ErrConfig)
		}
		return planner.NewGeminiGenerator(ctx, planner.GeminiConfig{APIKey: key, Model: model})
	}
}

// splitModel splits "provider:model" into its parts; a string with no
// colon is treated as a bare gemini model name.
func splitModel(s string) (provider, model string) {
	if provider, model, ok := strings.Cut(s, ":"); ok {
		return provider, model
	}
	return "gemini", s
}

// LoopConfig builds the agentloop.Config shared by every Loop this process
// constructs.
func (c Config) LoopConfig() agentloop.Config {
	return agentloop.Config{
		NetworkAllowed: c.AllowNetwork,
	}
}
