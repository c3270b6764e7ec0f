package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/yaegerbomb42/boxedin/internal/appconfig"
	"github.com/yaegerbomb42/boxedin/internal/httpapi"
)

// buildServeCmd starts the HTTP+SSE server, so the module ships a runnable
// multi-goal front-end and not just the CLI.
func buildServeCmd(cfg *appconfig.Config) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP+SSE API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			gen, err := cfg.NewGenerator(ctx)
			if err != nil {
				return err
			}
			sbox, err := cfg.NewSandbox()
			if err != nil {
				return err
			}
			store, err := newStore(cfg)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = ":" + cfg.Port
			}

			srv := &httpapi.Server{
				Store:      store,
				Sandbox:    sbox,
				Gen:        gen,
				LoopCfg:    cfg.LoopConfig(),
				DataDir:    cfg.DataDir,
				SandboxDir: cfg.SandboxDir,
				Logger:     slog.Default(),
			}
			fmt.Println("boxedin serving on", addr)
			return http.ListenAndServe(addr, srv.Mux())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address; defaults to :$PORT")
	return cmd
}
