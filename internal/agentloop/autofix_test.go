package agentloop

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yaegerbomb42/boxedin/internal/reporter"
	"github.com/yaegerbomb42/boxedin/internal/toolstore"
)

func TestHeuristicDependencyFixPython(t *testing.T) {
	toolDir := t.TempDir()
	stderr := "Traceback (most recent call last):\nModuleNotFoundError: No module named 'requests'\n"

	applied, reason, err := heuristicDependencyFix(toolDir, toolstore.Python, stderr)
	if err != nil {
		t.Fatalf("heuristicDependencyFix: %v", err)
	}
	if !applied || reason != "auto-install-python" {
		t.Fatalf("applied=%v reason=%q, want true/auto-install-python", applied, reason)
	}

	content, err := os.ReadFile(filepath.Join(toolDir, "requirements.txt"))
	if err != nil {
		t.Fatalf("read requirements.txt: %v", err)
	}
	if !strings.Contains(string(content), "requests") {
		t.Errorf("requirements.txt = %q, want to contain 'requests'", content)
	}

	// Re-applying the same fix must not duplicate the line.
	if _, _, err := heuristicDependencyFix(toolDir, toolstore.Python, stderr); err != nil {
		t.Fatalf("second heuristicDependencyFix: %v", err)
	}
	content, _ = os.ReadFile(filepath.Join(toolDir, "requirements.txt"))
	if got := strings.Count(string(content), "requests"); got != 1 {
		t.Errorf("expected exactly one 'requests' line, got %d in %q", got, content)
	}
}

func TestHeuristicDependencyFixNode(t *testing.T) {
	toolDir := t.TempDir()
	stderr := "Error: Cannot find module 'left-pad'\n"

	applied, reason, err := heuristicDependencyFix(toolDir, toolstore.Node, stderr)
	if err != nil {
		t.Fatalf("heuristicDependencyFix: %v", err)
	}
	if !applied || reason != "auto-install-node" {
		t.Fatalf("applied=%v reason=%q, want true/auto-install-node", applied, reason)
	}

	data, err := os.ReadFile(filepath.Join(toolDir, "package.json"))
	if err != nil {
		t.Fatalf("read package.json: %v", err)
	}
	var doc struct {
		Version      string            `json:"version"`
		Private      bool              `json:"private"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode package.json: %v", err)
	}
	if doc.Dependencies["left-pad"] != "*" {
		t.Errorf("dependencies = %v, want left-pad=*", doc.Dependencies)
	}
	if doc.Version != "0.0.0" || !doc.Private {
		t.Errorf("default package.json shape wrong: %+v", doc)
	}
}

func TestHeuristicDependencyFixNoMatchIsNoop(t *testing.T) {
	toolDir := t.TempDir()
	applied, _, err := heuristicDependencyFix(toolDir, toolstore.Python, "SyntaxError: invalid syntax")
	if err != nil {
		t.Fatalf("heuristicDependencyFix: %v", err)
	}
	if applied {
		t.Error("expected no fix for a non-dependency error")
	}
	if _, err := os.Stat(filepath.Join(toolDir, "requirements.txt")); !os.IsNotExist(err) {
		t.Error("requirements.txt must not be created when no fix applies")
	}
}

func TestAutoFixModelPatchRetriesOnce(t *testing.T) {
	requirePython3(t)

	planJSON := `{
  "plan": "flaky",
  "steps": ["flaky"],
  "createTools": [{
    "id": "flaky",
    "name": "flaky",
    "language": "python",
    "entry": "main.py",
    "purpose": "fails until patched",
    "files": {"main.py": "import sys\nsys.stderr.write('broken tool\\n')\nsys.exit(3)\n"}
  }],
  "run": [{"id": "flaky", "stdin": ""}]
}`
	patchJSON := `{"files": {"main.py": "print('fixed')\n"}}`
	gen := &scriptedGenerator{responses: []string{planJSON, patchJSON}}
	loop, mem, _ := newTestLoop(t, gen)

	rec := &reporter.Recorder{}
	result, err := loop.Run(context.Background(), "run the flaky tool", mem, false, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Runs) != 1 {
		t.Fatalf("len(Runs) = %d, want 1", len(result.Runs))
	}
	run := result.Runs[0]
	if !run.Retry || run.Reason != "model-patch" {
		t.Errorf("Retry=%v Reason=%q, want true/model-patch", run.Retry, run.Reason)
	}
	if run.Code != 0 || run.Stdout != "fixed\n" {
		t.Errorf("Code=%d Stdout=%q, want 0/%q (stderr=%q)", run.Code, run.Stdout, "fixed\n", run.Stderr)
	}

	// Two attempts means two runStart/runEnd pairs, in order.
	var starts, ends int
	lastStart := -1
	for i, ev := range rec.Events {
		switch ev.Method {
		case "runStart":
			starts++
			lastStart = i
		case "runEnd":
			ends++
			if lastStart < 0 {
				t.Fatalf("runEnd before runStart at event %d: %+v", i, rec.Events)
			}
		}
	}
	if starts != 2 || ends != 2 {
		t.Errorf("starts=%d ends=%d, want 2/2 (one per attempt)", starts, ends)
	}
}

func TestRequestModelPatchNilGenerator(t *testing.T) {
	patch, err := requestModelPatch(context.Background(), nil, "x", "boom")
	if err != nil || patch != nil {
		t.Errorf("requestModelPatch(nil gen) = %v, %v; want nil, nil", patch, err)
	}
}
