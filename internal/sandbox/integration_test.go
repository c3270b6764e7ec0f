//go:build integration

package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDockerBackendAgainstRealContainer spins up a throwaway python
// container via testcontainers-go purely to confirm the host's Docker
// daemon is reachable from this environment, then exercises the real
// Sandbox.Run docker path end to end.
func TestDockerBackendAgainstRealContainer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	probe, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:      "python:3.11-alpine",
			Cmd:        []string{"sleep", "2"},
			WaitingFor: wait.ForExit(),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker environment not available for integration test: %v", err)
	}
	defer func() { _ = probe.Terminate(ctx) }()

	root := t.TempDir()
	toolDir := filepath.Join(root, "tools", "greet")
	writeTool(t, root, "tools/greet/main.py", `print("integration hello")`)

	sb, err := New(Config{SandboxRoot: root, MemoryMB: 128, CPU: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := sb.Run(ctx, RunParams{
		Language: Python,
		EntryRel: "tools/greet/main.py",
		ToolDir:  toolDir,
		RunID:    "integration-run",
	})

	if result.Code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr=%s)", result.Code, result.Stderr)
	}
	if !strings.Contains(result.Stdout, "integration hello") {
		t.Fatalf("stdout = %q", result.Stdout)
	}
	fmt.Fprintf(testingWriter{t}, "run completed in docker\n")
}

type testingWriter struct{ t *testing.T }

func (w testingWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
