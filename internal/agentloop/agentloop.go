// Package agentloop orchestrates one natural-language goal into a Result
// by driving a linear state machine: Init → Plan → RefinePlan? →
// MaterializeTools → RunChain (+AutoFix) → Answer → Persist. There is no
// backtracking; a goal is one planning pass plus a fixed run chain.
package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yaegerbomb42/boxedin/internal/memory"
	"github.com/yaegerbomb42/boxedin/internal/planner"
	"github.com/yaegerbomb42/boxedin/internal/planparser"
	"github.com/yaegerbomb42/boxedin/internal/reporter"
	"github.com/yaegerbomb42/boxedin/internal/sandbox"
	"github.com/yaegerbomb42/boxedin/internal/toolstore"
)

var tracer = otel.Tracer("github.com/yaegerbomb42/boxedin/internal/agentloop")

// Config sets the loop's tunables; zero values take the defaults noted
// per field.
type Config struct {
	// ContextWindowTokens is not read by the Loop; each concrete
	// planner.Generator trims its prompt against its own configured
	// context window.
	ContextWindowTokens int

	// NetworkAllowed gates both sandbox dependency bootstrap and the
	// heuristic dependency fix.
	NetworkAllowed bool

	// HistorySummaryMax is SummarizeHistory's max (default 40).
	HistorySummaryMax int

	// PlanningHistoryCount is how many summarized history entries are
	// embedded in the planning message (default 20).
	PlanningHistoryCount int

	// PlanningHistoryTruncate is the per-entry character cap applied
	// before embedding history in the planning message (default 500).
	PlanningHistoryTruncate int

	// AnswerStdoutTruncate/AnswerStderrTruncate bound the last run's
	// excerpt fed to the Answer stage (defaults 2000/1000).
	AnswerStdoutTruncate int
	AnswerStderrTruncate int

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.HistorySummaryMax <= 0 {
		c.HistorySummaryMax = 40
	}
	if c.PlanningHistoryCount <= 0 {
		c.PlanningHistoryCount = 20
	}
	if c.PlanningHistoryTruncate <= 0 {
		c.PlanningHistoryTruncate = 500
	}
	if c.AnswerStdoutTruncate <= 0 {
		c.AnswerStdoutTruncate = 2000
	}
	if c.AnswerStderrTruncate <= 0 {
		c.AnswerStderrTruncate = 1000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Loop orchestrates one goal at a time against a shared tool catalog,
// Sandbox, and Generator. A Loop has no per-goal mutable state of its own;
// every Run call operates on the *memory.Memory passed in, so a
// long-running server can hold one Loop and drive many concurrent goals,
// each with its own Memory snapshot.
type Loop struct {
	store   *toolstore.Store
	sandbox *sandbox.Sandbox
	gen     planner.Generator
	cfg     Config
}

// New returns a Loop wired to store, sbox, and gen. gen may be nil only for
// tests that never reach a Plan/Answer/AutoFix model call.
func New(store *toolstore.Store, sbox *sandbox.Sandbox, gen planner.Generator, cfg Config) *Loop {
	return &Loop{store: store, sandbox: sbox, gen: gen, cfg: cfg.withDefaults()}
}

// systemPrompt is the planning system prompt: it names the two required
// Plan fields (createTools, run) and the JSON-only response contract
// planparser.Parse expects.
const systemPrompt = `You are an autonomous agent that plans and executes small sandboxed tools
to accomplish a goal. Respond with a single JSON object (optionally inside a
` + "```json" + ` fenced block) shaped exactly like:

{
  "plan": "short human-readable description, string or object",
  "steps": ["short step descriptions"],
  "createTools": [
    {
      "id": "optional-stable-id",
      "name": "tool name",
      "language": "python" | "node",
      "entry": "relative/path/to/entry/file",
      "purpose": "one line",
      "files": {"relative/path": "full file contents"},
      "inputs": [{"name": "...", "type": "..."}],
      "outputs": [{"name": "...", "type": "..."}],
      "usage": "how to invoke it"
    }
  ],
  "run": [
    {"id": "tool-id", "args": ["..."], "stdin": "optional; omit to pipe the previous run's stdout"}
  ]
}

Only create tools that do not already exist in the available tools listing.
If no tools or run calls are needed, return empty arrays for both.`

// Run drives the full state machine for one goal and returns a Result. Run
// never returns an error for ordinary tool/plan failures (those fold into
// the Result); a non-nil error here means Init itself could not proceed,
// e.g. the tool catalog failed to load.
//
// interactive does not change the state machine itself; it is plumbed
// through for boundary adapters (the CLI REPL) that want to know whether
// Run was invoked for a one-shot goal or from an interactive session.
func (l *Loop) Run(ctx context.Context, goal string, mem *memory.Memory, interactive bool, rep reporter.Reporter) (*Result, error) {
	goalID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "agentloop.run", trace.WithAttributes(
		attribute.String("goal_id", goalID),
	))
	defer span.End()
	log := l.cfg.Logger.With("goal_id", goalID)

	// --- Init ---
	log.Info("agent.state", "state", "init", "goal", goal)
	tools, err := l.store.Load()
	if err != nil {
		reporter.EmitError(rep, err)
		return nil, fmt.Errorf("agentloop: init: %w", err)
	}
	mem.AddHistory(memory.RoleUser, goal)

	result := &Result{Goal: goal}

	// --- Plan ---
	log.Info("agent.state", "state", "plan")
	plan := l.plan(ctx, goal, mem, tools)
	reporter.EmitPlan(rep, describePlan(plan))

	// --- RefinePlan? ---
	if plan.Empty() {
		log.Info("agent.state", "state", "refine_plan")
		if refined := l.refinePlan(ctx, goal, mem, tools); refined != nil {
			plan = refined
			reporter.EmitPlan(rep, describePlan(plan))
		}
	}

	result.Plan = plan.PlanDescription
	result.Steps = plan.Steps

	// --- MaterializeTools ---
	log.Info("agent.state", "state", "materialize_tools", "count", len(plan.CreateTools))
	created := l.materializeTools(mem, tools, plan.CreateTools)
	result.Tools = created
	if len(created) > 0 {
		reporter.EmitCreateTools(rep, created)
		if err := mem.RefreshTools(); err != nil {
			log.Warn("agentloop: refresh tool catalog after materialize", "error", err)
		}
	}

	// --- RunChain (+ AutoFix) ---
	log.Info("agent.state", "state", "run_chain", "count", len(plan.Run))
	result.Runs = l.runChain(ctx, log, rep, tools, plan.Run)

	// --- Answer ---
	log.Info("agent.state", "state", "answer")
	result.Answer = l.answer(ctx, goal, plan, result.Runs)
	reporter.EmitDone(rep, result.Answer)

	// --- Persist ---
	log.Info("agent.state", "state", "persist")
	l.persist(rep, mem, result)

	return result, nil
}

// plan makes the initial planning call at temperature 0.2 and parses the
// response, falling back to an empty Plan on a transport/parse failure so
// the loop can still terminate gracefully with a final answer explaining
// inaction.
func (l *Loop) plan(ctx context.Context, goal string, mem *memory.Memory, tools map[string]toolstore.Record) *planparser.Plan {
	text, err := l.generate(ctx, goal, mem, tools, 0.2, "")
	if err != nil {
		return &planparser.Plan{}
	}
	if p := planparser.Parse(text); p != nil {
		return p
	}
	return &planparser.Plan{}
}

// refinePlan asks once more, at a higher temperature and with an explicit
// nudge, when the first plan had neither tools to create nor calls to run.
// The refined plan is only accepted if it parses.
func (l *Loop) refinePlan(ctx context.Context, goal string, mem *memory.Memory, tools map[string]toolstore.Record) *planparser.Plan {
	extra := "Your previous response had no createTools and no run entries. " +
		"Propose the tools needed and an ordered run plan to accomplish the goal."
	text, err := l.generate(ctx, goal, mem, tools, 0.3, extra)
	if err != nil {
		return nil
	}
	return planparser.Parse(text)
}

// generate assembles the planning message (goal, summarized/truncated
// history, network permission, extra nudge) and calls the PlanGenerator.
func (l *Loop) generate(ctx context.Context, goal string, mem *memory.Memory, tools map[string]toolstore.Record, temperature float64, extra string) (string, error) {
	if l.gen == nil {
		return "", ErrPlanner
	}

	summarized := mem.SummarizeHistory(l.cfg.HistorySummaryMax)
	if n := l.cfg.PlanningHistoryCount; n > 0 && len(summarized) > n {
		summarized = summarized[len(summarized)-n:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	fmt.Fprintf(&b, "Network allowed: %v\n", l.cfg.NetworkAllowed)
	if extra != "" {
		b.WriteString(extra)
		b.WriteString("\n")
	}
	b.WriteString("Recent history:\n")
	for _, h := range summarized {
		fmt.Fprintf(&b, "%s: %s\n", h.Role, truncate(h.Content, l.cfg.PlanningHistoryTruncate))
	}

	req := planner.Request{
		SystemPrompt:     systemPrompt,
		Messages:         []planner.Message{{Role: planner.RoleUser, Content: b.String()}},
		Temperature:      temperature,
		ToolsDescription: recordsToPrompt(tools),
	}
	return l.gen.Generate(ctx, req)
}

// answer produces a short natural-language summary from the goal, plan
// description, and a bounded excerpt of the last run. Failures here are
// swallowed; the Result simply carries no answer.
func (l *Loop) answer(ctx context.Context, goal string, plan *planparser.Plan, runs []RunOutcome) string {
	if l.gen == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", goal)
	fmt.Fprintf(&b, "Plan: %s\n", describePlan(plan))
	if len(runs) > 0 {
		last := runs[len(runs)-1]
		fmt.Fprintf(&b, "Last run (%s) exit code %d\nstdout: %s\nstderr: %s\n",
			last.ID, last.Code,
			truncate(last.Stdout, l.cfg.AnswerStdoutTruncate),
			truncate(last.Stderr, l.cfg.AnswerStderrTruncate))
	}

	req := planner.Request{
		SystemPrompt: "You are a terse assistant. Given the goal and the outcome of the tool " +
			"runs that just executed, write a short final answer for the user. No JSON, just prose.",
		Messages:    []planner.Message{{Role: planner.RoleUser, Content: b.String()}},
		Temperature: 0.2,
	}
	text, err := l.gen.Generate(ctx, req)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// persist appends the result to history, records the run, and saves
// memory. A save failure is reported as an ErrPersistence event but never
// prevents the Result from being returned.
func (l *Loop) persist(rep reporter.Reporter, mem *memory.Memory, result *Result) {
	raw, err := json.Marshal(result)
	if err == nil {
		mem.AddHistory(memory.RoleAssistant, string(raw))
	}
	if err := mem.AddRun(result.Goal, result.Steps, result); err != nil {
		reporter.EmitError(rep, fmt.Errorf("%w: %v", ErrPersistence, err))
		return
	}
	if err := mem.Save(); err != nil {
		reporter.EmitError(rep, fmt.Errorf("%w: %v", ErrPersistence, err))
	}
}

// describePlan renders plan.PlanDescription (duck-typed string or object)
// for display, never branching on its shape beyond that.
func describePlan(plan *planparser.Plan) string {
	if plan == nil || len(plan.PlanDescription) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(plan.PlanDescription, &s); err == nil {
		return s
	}
	return string(plan.PlanDescription)
}

func recordsToPrompt(tools map[string]toolstore.Record) string {
	return toolstore.ToPrompt(tools)
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
