package agentloop

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/yaegerbomb42/boxedin/internal/planparser"
	"github.com/yaegerbomb42/boxedin/internal/reporter"
	"github.com/yaegerbomb42/boxedin/internal/sandbox"
	"github.com/yaegerbomb42/boxedin/internal/toolstore"
)

// runChain executes plan.Run in order, expanding template placeholders
// against prior outcomes, defaulting an omitted stdin to the previous
// successful run's stdout (pipe chaining), and feeding a non-zero exit
// into autoFix exactly once.
func (l *Loop) runChain(ctx context.Context, log *slog.Logger, rep reporter.Reporter, tools map[string]toolstore.Record, calls []planparser.RunCall) []RunOutcome {
	runs := make([]RunOutcome, 0, len(calls))
	lastSuccessfulStdout := ""

	for _, call := range calls {
		record, ok := tools[call.ID]
		if !ok {
			outcome := RunOutcome{ID: call.ID, Error: "Tool not found"}
			runs = append(runs, outcome)
			reporter.EmitResult(rep, reporter.RunResult{ID: call.ID, Error: outcome.Error})
			continue
		}

		lk := newLookup(runs)
		args := lk.expandArgs(call.Args)
		var stdin string
		if call.Stdin != nil {
			stdin = lk.expandString(*call.Stdin)
		} else {
			stdin = lastSuccessfulStdout
		}

		runID := uuid.NewString()
		outcome := l.invokeTool(ctx, rep, record, call.ID, args, stdin, runID)
		if outcome.Code != 0 {
			log.Info("agent.state", "state", "auto_fix", "tool_id", call.ID)
			outcome = l.autoFix(ctx, rep, record, call, args, stdin, outcome, runID)
		}
		if outcome.Code == 0 {
			lastSuccessfulStdout = outcome.Stdout
		}

		runs = append(runs, outcome)
		reporter.EmitResult(rep, toReporterResult(outcome))
	}
	return runs
}

// invokeTool runs one sandboxed attempt, wrapping it in RunStart/RunChunk/
// RunEnd reporter events so each attempt gets exactly one start/end pair.
func (l *Loop) invokeTool(ctx context.Context, rep reporter.Reporter, record toolstore.Record, id string, args []string, stdin string, runID string) RunOutcome {
	reporter.EmitRunStart(rep, id)

	res := l.sandbox.Run(ctx, sandbox.RunParams{
		Language: sandbox.Language(record.Language),
		EntryRel: filepath.Join("tools", record.ID, record.Entry),
		ToolDir:  record.Dir(),
		Args:     args,
		Stdin:    stdin,
		RunID:    runID,
		OnStdout: func(b []byte) { reporter.EmitRunChunk(rep, id, "stdout", b) },
		OnStderr: func(b []byte) { reporter.EmitRunChunk(rep, id, "stderr", b) },
	})

	outcome := RunOutcome{
		ID:      id,
		Args:    args,
		Code:    res.Code,
		Stdout:  res.Stdout,
		Stderr:  res.Stderr,
		LogFile: res.LogFile,
	}
	if res.TimedOut {
		outcome.Reason = "timeout"
	}

	reporter.EmitRunEnd(rep, id, reporter.FromSandboxResult(id, args, res))
	return outcome
}

// autoFix is the bounded recovery policy: a heuristic dependency fix (only
// when network is allowed), then at most one model-guided patch retry.
// Each retry is its own sandboxed attempt with its own RunStart/RunEnd
// pair; whichever attempt runs last is the outcome returned, annotated
// with Retry/Reason.
func (l *Loop) autoFix(ctx context.Context, rep reporter.Reporter, record toolstore.Record, call planparser.RunCall, args []string, stdin string, first RunOutcome, runIDBase string) RunOutcome {
	latest := first

	if l.cfg.NetworkAllowed {
		applied, reason, err := heuristicDependencyFix(record.Dir(), record.Language, latest.Stderr)
		if err == nil && applied {
			retried := l.invokeTool(ctx, rep, record, call.ID, args, stdin, runIDBase+"-autofix-dep")
			retried.Retry = true
			retried.Reason = reason
			if retried.Code == 0 {
				return retried
			}
			latest = retried
		}
	}

	patch, err := requestModelPatch(ctx, l.gen, record.Name, latest.Stderr)
	if err != nil || patch == nil {
		return latest
	}
	if err := l.store.WriteCode(record.ID, patch.Files); err != nil {
		return latest
	}

	// The model-patch retry intentionally reuses call.Stdin as originally
	// supplied (raw, unexpanded) rather than the expanded/piped stdin
	// used on the first attempt. Known quirk, kept for compatibility with
	// plans that rely on it.
	var originalStdin string
	if call.Stdin != nil {
		originalStdin = *call.Stdin
	}

	patched := l.invokeTool(ctx, rep, record, call.ID, args, originalStdin, runIDBase+"-autofix-patch")
	patched.Retry = true
	patched.Reason = "model-patch"
	return patched
}

func toReporterResult(o RunOutcome) reporter.RunResult {
	return reporter.RunResult{
		ID:      o.ID,
		Args:    o.Args,
		Code:    o.Code,
		Stdout:  o.Stdout,
		Stderr:  o.Stderr,
		LogFile: o.LogFile,
		Retry:   o.Retry,
		Reason:  o.Reason,
		Error:   o.Error,
	}
}
