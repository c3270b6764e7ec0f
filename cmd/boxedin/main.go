// Command boxedin is the CLI entry point for the autonomous
// tool-synthesizing agent: it plans a sequence of actions for a
// natural-language goal, materializes small sandboxed tools, chains their
// runs, and persists a registry plus conversation/run history.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yaegerbomb42/boxedin/internal/appconfig"
	"github.com/yaegerbomb42/boxedin/internal/observability"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load a .env from the working directory if present; system
	// environment variables always win (godotenv.Load never overwrites
	// an already-set variable).
	_ = godotenv.Load()

	shutdownTracing := observability.SetupTracing(context.Background(), observability.TraceConfig{
		ServiceName: "boxedin",
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:    os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
	})

	err := buildRootCmd().Execute()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = shutdownTracing(flushCtx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cfg := appconfig.FromEnv()

	root := &cobra.Command{
		Use:           "boxedin",
		Short:         "An autonomous agent that plans, builds, and runs sandboxed tools",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&cfg.DataDir, "data", cfg.DataDir, "directory for memory/history state")
	root.PersistentFlags().StringVar(&cfg.SandboxDir, "sandbox", cfg.SandboxDir, "directory for the tool catalog and run logs")
	root.PersistentFlags().StringVar(&cfg.Model, "model", cfg.Model, "planner model, optionally prefixed provider:model (gemini|anthropic|openai)")
	root.PersistentFlags().IntVar(&cfg.TimeoutMs, "timeout-ms", cfg.TimeoutMs, "per-run wall-clock timeout in milliseconds")
	root.PersistentFlags().IntVar(&cfg.MemoryMB, "memory-mb", cfg.MemoryMB, "per-run container memory limit in MB")
	root.PersistentFlags().Float64Var(&cfg.CPU, "cpu", cfg.CPU, "per-run container CPU limit (fractional cores)")
	root.PersistentFlags().BoolVar(&cfg.AllowNetwork, "allow-network", cfg.AllowNetwork, "allow sandboxed tools network access and dependency bootstrap")

	root.AddCommand(
		buildRunCmd(&cfg),
		buildStatusCmd(&cfg),
		buildServeCmd(&cfg),
		buildExportCmd(&cfg),
		buildImportCmd(&cfg),
	)
	return root
}
