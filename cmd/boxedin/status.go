package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/yaegerbomb42/boxedin/internal/appconfig"
	"github.com/yaegerbomb42/boxedin/internal/memory"
)

// statusReport is the `status` subcommand's JSON output.
type statusReport struct {
	Conversations int   `json:"conversations"`
	Tools         int   `json:"tools"`
	LastRun       int64 `json:"lastRun"`
}

func buildStatusCmd(cfg *appconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print conversation/tool counts and the last run's timestamp as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			mem, err := memory.Load(cfg.DataDir, cfg.SandboxDir)
			if err != nil {
				return err
			}
			report := statusReport{
				Conversations: len(mem.History),
				Tools:         len(mem.Tools),
			}
			if n := len(mem.Runs); n > 0 {
				report.LastRun = mem.Runs[n-1].TS
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
