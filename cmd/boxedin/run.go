package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yaegerbomb42/boxedin/internal/agentloop"
	"github.com/yaegerbomb42/boxedin/internal/appconfig"
	"github.com/yaegerbomb42/boxedin/internal/memory"
	"github.com/yaegerbomb42/boxedin/internal/reporter"
)

// buildRunCmd builds the `run` subcommand: one-shot if --goal is given or
// stdin is piped, otherwise an interactive REPL with /exit, /help, /status.
func buildRunCmd(cfg *appconfig.Config) *cobra.Command {
	var goal string
	var noInteractive bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one goal, or start an interactive REPL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cfg, goal, noInteractive)
		},
	}
	cmd.Flags().StringVar(&goal, "goal", "", "one-shot goal; if omitted and stdin is piped, stdin is read as the goal")
	cmd.Flags().BoolVar(&noInteractive, "no-interactive", false, "never fall back to the REPL")
	return cmd
}

func runRun(ctx context.Context, cfg *appconfig.Config, goal string, noInteractive bool) error {
	gen, err := cfg.NewGenerator(ctx)
	if err != nil {
		if errors.Is(err, agentloop.ErrConfig) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
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

	mem, err := memory.Load(cfg.DataDir, cfg.SandboxDir)
	if err != nil {
		return err
	}
	loop := agentloop.New(store, sbox, gen, cfg.LoopConfig())
	rep := cliReporter{}

	if goal == "" && !isStdinTerminal() {
		data, err := io.ReadAll(os.Stdin)
		if err == nil && len(strings.TrimSpace(string(data))) > 0 {
			goal = strings.TrimSpace(string(data))
		}
	}

	if goal != "" {
		return runOneShot(ctx, loop, mem, rep, goal)
	}
	if noInteractive {
		return fmt.Errorf("boxedin: no --goal given, no piped stdin, and --no-interactive set")
	}
	return runREPL(ctx, loop, mem, rep)
}

func runOneShot(ctx context.Context, loop *agentloop.Loop, mem *memory.Memory, rep reporter.Reporter, goal string) error {
	result, err := loop.Run(ctx, goal, mem, false, rep)
	if err != nil {
		return err
	}
	if result.Answer != "" {
		fmt.Println(result.Answer)
	}
	return nil
}

// runREPL drives interactive `run` sessions and their /exit, /help, and
// /status commands.
func runREPL(ctx context.Context, loop *agentloop.Loop, mem *memory.Memory, rep reporter.Reporter) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	fmt.Println("boxedin REPL. Type /help for commands, /exit to quit.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/exit":
			return nil
		case line == "/help":
			fmt.Println("/exit   quit the REPL")
			fmt.Println("/help   show this message")
			fmt.Println("/status show conversation/tool/run counts")
			continue
		case line == "/status":
			fmt.Printf("conversations=%d tools=%d lastRun=%d\n", len(mem.History), len(mem.Tools), len(mem.Runs))
			continue
		}

		result, err := loop.Run(ctx, line, mem, true, rep)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		if result.Answer != "" {
			fmt.Println(result.Answer)
		}
	}
}

func isStdinTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// cliReporter prints progress to stderr so stdout stays reserved for the
// final answer.
type cliReporter struct{}

func (cliReporter) Plan(description string) { fmt.Fprintln(os.Stderr, "plan:", description) }
func (cliReporter) CreateTools(ids []string) {
	if len(ids) > 0 {
		fmt.Fprintln(os.Stderr, "created tools:", strings.Join(ids, ", "))
	}
}
func (cliReporter) RunStart(id string) { fmt.Fprintln(os.Stderr, "run start:", id) }
func (cliReporter) RunChunk(id, stream string, chunk []byte) {
	fmt.Fprintf(os.Stderr, "[%s:%s] %s", id, stream, chunk)
}
func (cliReporter) RunEnd(id string, result reporter.RunResult) {
	fmt.Fprintf(os.Stderr, "run end: %s code=%d\n", id, result.Code)
}
func (cliReporter) Result(result reporter.RunResult) {}
func (cliReporter) Done(answer string)               {}
func (cliReporter) Error(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
}

var _ reporter.Reporter = cliReporter{}
