package agentloop

import "errors"

// Sentinel error kinds surfaced by the core. The loop itself never returns
// one of these from Run for a per-step failure (those are folded into the
// returned Result or reported as error events). Run's only error return,
// an Init failure to load the tool catalog, wraps the underlying error
// without a sentinel.
var (
	// ErrConfig indicates a missing API key or invalid resource limits.
	// Checked at the boundary (CLI/HTTP) before the loop is constructed;
	// Run itself never returns it.
	ErrConfig = errors.New("agentloop: config error")

	// ErrPlanner indicates a PlanGenerator transport failure or an empty
	// response. The loop treats this as "no plan" and substitutes a
	// fallback empty plan rather than aborting the goal.
	ErrPlanner = errors.New("agentloop: planner error")

	// ErrToolValidation indicates a manifest failed schema validation.
	// Per-tool: the tool is skipped on load, or during MaterializeTools an
	// assistant history entry is appended and the tool is not added.
	ErrToolValidation = errors.New("agentloop: tool validation error")

	// ErrSandboxStartup indicates the child process could not spawn.
	// Surfaced through RunOutcome as Code=-1 with the error text in
	// Stderr; treated as an ordinary non-zero exit by AutoFix.
	ErrSandboxStartup = errors.New("agentloop: sandbox startup error")

	// ErrSandboxRuntime indicates the child exited non-zero or was
	// killed by timeout. Feeds AutoFix exactly once.
	ErrSandboxRuntime = errors.New("agentloop: sandbox runtime error")

	// ErrPersistence indicates Memory.Save failed. Reported to the
	// Reporter as an error event; the run Result is still returned.
	ErrPersistence = errors.New("agentloop: persistence error")
)
