package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

var dockerCheck struct {
	once sync.Once
	ok   bool
}

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping docker-backed test in short mode")
	}
	dockerCheck.once.Do(func() {
		if _, err := exec.LookPath("docker"); err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dockerCheck.ok = exec.CommandContext(ctx, "docker", "info").Run() == nil
	})
	if !dockerCheck.ok {
		t.Skip("docker not available")
	}
}

func newTestSandbox(t *testing.T, cfg Config) *Sandbox {
	t.Helper()
	if cfg.SandboxRoot == "" {
		cfg.SandboxRoot = t.TempDir()
	}
	sb, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sb
}

func writeTool(t *testing.T, sandboxRoot, rel, content string) string {
	t.Helper()
	full := filepath.Join(sandboxRoot, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write tool: %v", err)
	}
	return full
}

func TestRunLocalPythonStdoutStderr(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
	root := t.TempDir()
	writeTool(t, root, "tools/echo/main.py", `import sys
print("out line")
print("err line", file=sys.stderr)
`)
	sb := newTestSandbox(t, Config{SandboxRoot: root, Backend: "local"})

	var stdoutChunks, stderrChunks []string
	result := sb.Run(context.Background(), RunParams{
		Language: Python,
		EntryRel: "tools/echo/main.py",
		ToolDir:  filepath.Join(root, "tools/echo"),
		RunID:    "run-1",
		OnStdout: func(b []byte) { stdoutChunks = append(stdoutChunks, string(b)) },
		OnStderr: func(b []byte) { stderrChunks = append(stderrChunks, string(b)) },
	})

	if !strings.Contains(result.Stdout, "out line") {
		t.Errorf("stdout = %q, want to contain 'out line'", result.Stdout)
	}
	if !strings.Contains(result.Stderr, "err line") {
		t.Errorf("stderr = %q, want to contain 'err line'", result.Stderr)
	}
	if strings.Join(stdoutChunks, "") != result.Stdout {
		t.Errorf("streamed stdout chunks %q do not reconstruct accumulated stdout %q", strings.Join(stdoutChunks, ""), result.Stdout)
	}
	if strings.Join(stderrChunks, "") != result.Stderr {
		t.Errorf("streamed stderr chunks %q do not reconstruct accumulated stderr %q", strings.Join(stderrChunks, ""), result.Stderr)
	}
	if result.LogFile == "" {
		t.Error("expected a log file path")
	}
	logContent, err := os.ReadFile(result.LogFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(logContent), "out line") || !strings.Contains(string(logContent), "err line") {
		t.Errorf("exec.log %q missing stdout/stderr interleaving", string(logContent))
	}
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
	root := t.TempDir()
	writeTool(t, root, "tools/sleepy/main.py", `import time
time.sleep(10)
`)
	sb := newTestSandbox(t, Config{SandboxRoot: root, TimeoutMs: 200, Backend: "local"})

	start := time.Now()
	result := sb.Run(context.Background(), RunParams{
		Language: Python,
		EntryRel: "tools/sleepy/main.py",
		ToolDir:  filepath.Join(root, "tools/sleepy"),
		RunID:    "run-timeout",
	})
	elapsed := time.Since(start)

	if !result.TimedOut {
		t.Error("expected TimedOut to be true")
	}
	if elapsed > 5*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestRunStartupFailureNeverReturnsError(t *testing.T) {
	root := t.TempDir()
	sb := newTestSandbox(t, Config{SandboxRoot: root, Backend: "local"})

	result := sb.Run(context.Background(), RunParams{
		Language: Language("ruby"),
		EntryRel: "tools/missing/main.rb",
		ToolDir:  filepath.Join(root, "tools/missing"),
		RunID:    "run-missing",
	})

	if result.Code != -1 {
		t.Errorf("expected Code=-1 for a startup failure, got %d", result.Code)
	}
	if result.Stderr == "" {
		t.Error("expected the startup error text in Stderr")
	}
}

func TestDockerAvailableIsCachedWithinProbeInterval(t *testing.T) {
	sb := newTestSandbox(t, Config{probeInterval: time.Hour})
	first := sb.dockerAvailable(context.Background())
	sb.dockerExists = !first // simulate the daemon state having flipped
	second := sb.dockerAvailable(context.Background())
	if second != first {
		t.Error("dockerAvailable should return the cached value within probeInterval")
	}
}

func TestExitCodeOrDefault(t *testing.T) {
	if got := exitCodeOrDefault(nil, -1); got != 0 {
		t.Errorf("exitCodeOrDefault(nil) = %d, want 0", got)
	}
	if got := exitCodeOrDefault(context.DeadlineExceeded, -7); got != -7 {
		t.Errorf("exitCodeOrDefault(non-exit-error) = %d, want -7", got)
	}
}

func TestDockerRunPython(t *testing.T) {
	requireDocker(t)
	root := t.TempDir()
	writeTool(t, root, "tools/echo/main.py", `print("hello from docker")`)
	sb := newTestSandbox(t, Config{SandboxRoot: root, MemoryMB: 128, CPU: 0.5})

	result := sb.Run(context.Background(), RunParams{
		Language: Python,
		EntryRel: "tools/echo/main.py",
		ToolDir:  filepath.Join(root, "tools/echo"),
		RunID:    "run-docker",
	})
	if !strings.Contains(result.Stdout, "hello from docker") {
		t.Errorf("stdout = %q", result.Stdout)
	}
	if result.Code != 0 {
		t.Errorf("code = %d, want 0", result.Code)
	}
}
