// Package reporter defines the progress-event capability the agent loop
// calls while working on a goal, plus interchangeable implementations:
// Nop (discard), Broadcaster (per-subscriber channels, used for SSE), and
// Recorder (test double capturing call order).
//
// Every callback is best-effort. A nil Reporter is always valid (the loop
// must run correctly without one), so every Emit* helper nil-checks before
// dispatching.
package reporter

import "github.com/yaegerbomb42/boxedin/internal/sandbox"

// RunResult mirrors the public shape of a recorded tool invocation,
// independent of agentloop's internal Result type so this package has no
// import-cycle dependency on the loop.
type RunResult struct {
	ID      string   `json:"id"`
	Args    []string `json:"args"`
	Code    int      `json:"code"`
	Stdout  string   `json:"stdout"`
	Stderr  string   `json:"stderr"`
	LogFile string   `json:"logFile"`
	Retry   bool     `json:"retry,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Reporter receives progress events during one AgentLoop call.
// Implementations need not handle nil receivers; callers use the Emit*
// package functions, which nil-check the Reporter itself so call sites
// never need `if reporter != nil`.
type Reporter interface {
	Plan(description string)
	CreateTools(ids []string)
	RunStart(id string)
	RunChunk(id string, stream string, chunk []byte)
	RunEnd(id string, result RunResult)
	Result(result RunResult)
	Done(answer string)
	Error(err error)
}

// EmitPlan calls r.Plan if r is non-nil.
func EmitPlan(r Reporter, description string) {
	if r != nil {
		r.Plan(description)
	}
}

// EmitCreateTools calls r.CreateTools if r is non-nil.
func EmitCreateTools(r Reporter, ids []string) {
	if r != nil {
		r.CreateTools(ids)
	}
}

// EmitRunStart calls r.RunStart if r is non-nil.
func EmitRunStart(r Reporter, id string) {
	if r != nil {
		r.RunStart(id)
	}
}

// EmitRunChunk calls r.RunChunk if r is non-nil.
func EmitRunChunk(r Reporter, id, stream string, chunk []byte) {
	if r != nil {
		r.RunChunk(id, stream, chunk)
	}
}

// EmitRunEnd calls r.RunEnd if r is non-nil.
func EmitRunEnd(r Reporter, id string, result RunResult) {
	if r != nil {
		r.RunEnd(id, result)
	}
}

// EmitResult calls r.Result if r is non-nil.
func EmitResult(r Reporter, result RunResult) {
	if r != nil {
		r.Result(result)
	}
}

// EmitDone calls r.Done if r is non-nil.
func EmitDone(r Reporter, answer string) {
	if r != nil {
		r.Done(answer)
	}
}

// EmitError calls r.Error if r is non-nil.
func EmitError(r Reporter, err error) {
	if r != nil {
		r.Error(err)
	}
}

// FromSandboxResult converts a sandbox.RunResult into the reporter's wire
// shape for a tool call id.
func FromSandboxResult(id string, args []string, res sandbox.RunResult) RunResult {
	rr := RunResult{
		ID:      id,
		Args:    args,
		Code:    res.Code,
		Stdout:  res.Stdout,
		Stderr:  res.Stderr,
		LogFile: res.LogFile,
	}
	if res.TimedOut {
		rr.Reason = "timeout"
	}
	return rr
}
