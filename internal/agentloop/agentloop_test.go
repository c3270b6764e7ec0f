package agentloop

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/yaegerbomb42/boxedin/internal/memory"
	"github.com/yaegerbomb42/boxedin/internal/planner"
	"github.com/yaegerbomb42/boxedin/internal/reporter"
	"github.com/yaegerbomb42/boxedin/internal/sandbox"
	"github.com/yaegerbomb42/boxedin/internal/toolstore"
)

// scriptedGenerator returns each entry of responses in order, and "ok" for
// any calls beyond the script's length (the Answer stage always makes one
// extra call after the planning calls a test scripts for).
type scriptedGenerator struct {
	responses []string
	calls     int
}

func (g *scriptedGenerator) Generate(ctx context.Context, req planner.Request) (string, error) {
	i := g.calls
	g.calls++
	if i >= len(g.responses) {
		return "ok", nil
	}
	return g.responses[i], nil
}

func newTestLoop(t *testing.T, gen planner.Generator) (*Loop, *memory.Memory, string) {
	t.Helper()
	dataDir := t.TempDir()
	sandboxDir := t.TempDir()

	store, err := toolstore.New(sandboxDir)
	if err != nil {
		t.Fatalf("toolstore.New: %v", err)
	}
	sb, err := sandbox.New(sandbox.Config{SandboxRoot: sandboxDir, Backend: "local"})
	if err != nil {
		t.Fatalf("sandbox.New: %v", err)
	}
	mem, err := memory.Load(dataDir, sandboxDir)
	if err != nil {
		t.Fatalf("memory.Load: %v", err)
	}
	return New(store, sb, gen, Config{}), mem, sandboxDir
}

func requirePython3(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
}

func TestRunEchoScenario(t *testing.T) {
	requirePython3(t)

	planJSON := `{
  "plan": "echo",
  "steps": ["echo"],
  "createTools": [{
    "id": "echo",
    "name": "echo",
    "language": "python",
    "entry": "main.py",
    "purpose": "echo stdin",
    "files": {"main.py": "import sys\nprint(sys.stdin.read().strip())\n"},
    "inputs": [],
    "outputs": [],
    "usage": "pipe text in"
  }],
  "run": [{"id": "echo", "stdin": "hello"}]
}`
	gen := &scriptedGenerator{responses: []string{planJSON}}
	loop, mem, _ := newTestLoop(t, gen)

	result, err := loop.Run(context.Background(), "echo hello", mem, false, reporter.Nop{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Tools) != 1 || result.Tools[0] != "echo" {
		t.Fatalf("Tools = %v, want [echo]", result.Tools)
	}
	if len(result.Runs) != 1 {
		t.Fatalf("len(Runs) = %d, want 1", len(result.Runs))
	}
	run := result.Runs[0]
	if run.Code != 0 {
		t.Errorf("Code = %d, want 0 (stderr=%q)", run.Code, run.Stderr)
	}
	if run.Stdout != "hello\n" {
		t.Errorf("Stdout = %q, want %q", run.Stdout, "hello\n")
	}
}

func TestRunChainedToolsViaLastStdout(t *testing.T) {
	requirePython3(t)

	planJSON := `{
  "plan": "upper then count",
  "steps": ["upper", "count"],
  "createTools": [
    {
      "id": "upper",
      "name": "upper",
      "language": "python",
      "entry": "main.py",
      "purpose": "uppercase stdin",
      "files": {"main.py": "import sys\nprint(sys.stdin.read().strip().upper())\n"}
    },
    {
      "id": "count",
      "name": "count",
      "language": "python",
      "entry": "main.py",
      "purpose": "count stdin length",
      "files": {"main.py": "import sys\nprint(len(sys.stdin.read()))\n"}
    }
  ],
  "run": [
    {"id": "upper", "stdin": "abc"},
    {"id": "count"}
  ]
}`
	gen := &scriptedGenerator{responses: []string{planJSON}}
	loop, mem, _ := newTestLoop(t, gen)

	result, err := loop.Run(context.Background(), "chain", mem, false, reporter.Nop{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Runs) != 2 {
		t.Fatalf("len(Runs) = %d, want 2", len(result.Runs))
	}
	if result.Runs[0].Stdout != "ABC\n" {
		t.Errorf("upper.Stdout = %q, want %q", result.Runs[0].Stdout, "ABC\n")
	}
	if result.Runs[1].Stdout != "4\n" {
		t.Errorf("count.Stdout = %q, want %q", result.Runs[1].Stdout, "4\n")
	}
}

func TestRunMissingTool(t *testing.T) {
	planJSON := `{"plan":"nope","steps":[],"createTools":[],"run":[{"id":"nope"}]}`
	gen := &scriptedGenerator{responses: []string{planJSON}}
	loop, mem, _ := newTestLoop(t, gen)

	result, err := loop.Run(context.Background(), "do nothing useful", mem, false, reporter.Nop{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Runs) != 1 {
		t.Fatalf("len(Runs) = %d, want 1", len(result.Runs))
	}
	if result.Runs[0].Error != "Tool not found" {
		t.Errorf("Error = %q, want %q", result.Runs[0].Error, "Tool not found")
	}
}

func TestRunRefinesEmptyPlan(t *testing.T) {
	requirePython3(t)

	empty := `{"plan":"thinking","steps":[],"createTools":[],"run":[]}`
	refined := `{
  "plan": "echo",
  "steps": ["echo"],
  "createTools": [{
    "id": "echo2",
    "name": "echo2",
    "language": "python",
    "entry": "main.py",
    "purpose": "echo stdin",
    "files": {"main.py": "import sys\nprint(sys.stdin.read().strip())\n"}
  }],
  "run": [{"id": "echo2", "stdin": "hi"}]
}`
	gen := &scriptedGenerator{responses: []string{empty, refined}}
	loop, mem, _ := newTestLoop(t, gen)

	result, err := loop.Run(context.Background(), "echo hi", mem, false, reporter.Nop{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Tools) != 1 || result.Tools[0] != "echo2" {
		t.Fatalf("Tools = %v, want [echo2]", result.Tools)
	}
	if len(result.Runs) != 1 || result.Runs[0].Stdout != "hi\n" {
		t.Fatalf("Runs = %+v", result.Runs)
	}
}

func TestRunNilReporterIsSafe(t *testing.T) {
	planJSON := `{"plan":"noop","steps":[],"createTools":[],"run":[]}`
	gen := &scriptedGenerator{responses: []string{planJSON}}
	loop, mem, _ := newTestLoop(t, gen)

	if _, err := loop.Run(context.Background(), "noop", mem, false, nil); err != nil {
		t.Fatalf("Run with nil reporter: %v", err)
	}
}

func TestTemplateExpansionUnknownKey(t *testing.T) {
	lk := newLookup(nil)
	got := lk.expandArgs([]string{"${runs.ghost.stdout}"})
	if len(got) != 1 || got[0] != "" {
		t.Errorf("expandArgs = %v, want [\"\"]", got)
	}
}

func TestTemplateExpansionLastStdout(t *testing.T) {
	lk := newLookup([]RunOutcome{{ID: "a", Stdout: "first\n"}, {ID: "b", Stdout: "second\n"}})
	got := lk.expandString("prefix:${last.stdout}")
	if !strings.HasSuffix(got, "second\n") {
		t.Errorf("expandString = %q, want suffix %q", got, "second\n")
	}
}
