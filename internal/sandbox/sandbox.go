// Package sandbox runs tools as resource-bounded child processes: a
// container-preferred, local-fallback runtime with streaming
// stdout/stderr, per-run log capture, dependency bootstrap, and a hard
// wall-clock timeout.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Language mirrors toolstore.Language without importing it, so this
// package has no dependency on the tool catalog's on-disk shape.
type Language string

const (
	Python Language = "python"
	Node   Language = "node"
)

// RunParams describes one sandboxed execution.
type RunParams struct {
	Language Language
	// EntryRel is the tool's entry file, relative to SandboxRoot
	// (e.g. "tools/echo-123/main.py").
	EntryRel string
	// ToolDir is the absolute path to the tool's own directory, used to
	// locate requirements.txt / package.json for dependency bootstrap.
	ToolDir string
	Args    []string
	Stdin   string
	RunID   string

	OnStdout func([]byte)
	OnStderr func([]byte)
}

// RunResult is always returned; Sandbox.Run never surfaces child-process
// failures as errors.
type RunResult struct {
	Code     int
	Stdout   string
	Stderr   string
	LogFile  string
	TimedOut bool
}

// Config configures a Sandbox.
type Config struct {
	SandboxRoot    string // bind-mounted at /app in the container backend
	TimeoutMs      int
	MemoryMB       int
	CPU            float64 // fractional cores, e.g. 0.5, 1, 2
	NetworkEnabled bool

	// Backend pins the execution backend: "docker", "local", or "" to
	// probe for Docker and fall back to local.
	Backend string

	// probeInterval controls how often the Docker-availability probe is
	// re-run; exposed for tests.
	probeInterval time.Duration
}

func (c Config) timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Sandbox runs tools either in a container (preferred, when the Docker CLI
// is available) or directly on the host (fallback).
type Sandbox struct {
	cfg Config

	probeMu      sync.Mutex
	probedAt     time.Time
	dockerExists bool

	metrics *metrics
}

// New returns a Sandbox configured with cfg, creating the runs/ log
// directory under cfg.SandboxRoot.
func New(cfg Config) (*Sandbox, error) {
	if cfg.probeInterval <= 0 {
		cfg.probeInterval = 30 * time.Second
	}
	if abs, err := filepath.Abs(cfg.SandboxRoot); err == nil {
		cfg.SandboxRoot = abs
	}
	if err := os.MkdirAll(filepath.Join(cfg.SandboxRoot, "runs"), 0o755); err != nil {
		return nil, fmt.Errorf("sandbox: create runs dir: %w", err)
	}
	return &Sandbox{cfg: cfg, metrics: newMetrics()}, nil
}

var tracer = otel.Tracer("github.com/yaegerbomb42/boxedin/internal/sandbox")

// Run executes params and always returns a RunResult; it never returns an
// error. Startup failures are reported as Code=-1 with the error text in
// Stderr.
func (s *Sandbox) Run(ctx context.Context, params RunParams) RunResult {
	backend := s.cfg.Backend
	if backend == "" {
		backend = "local"
		if s.dockerAvailable(ctx) {
			backend = "docker"
		}
	}

	ctx, span := tracer.Start(ctx, "sandbox.run", trace.WithAttributes(
		attribute.String("language", string(params.Language)),
		attribute.String("backend", backend),
		attribute.String("run_id", params.RunID),
	))
	defer span.End()

	start := time.Now()
	result := s.run(ctx, backend, params)
	s.metrics.observe(string(params.Language), backend, result, time.Since(start))

	span.SetAttributes(attribute.Int("exit_code", result.Code))
	if result.TimedOut {
		span.SetStatus(codes.Error, "timeout")
	} else if result.Code != 0 {
		span.SetStatus(codes.Error, "non-zero exit")
	}
	return result
}

func (s *Sandbox) run(ctx context.Context, backend string, params RunParams) RunResult {
	runDir := filepath.Join(s.cfg.SandboxRoot, "runs", params.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return RunResult{Code: -1, Stderr: err.Error()}
	}
	logPath := filepath.Join(runDir, "exec.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return RunResult{Code: -1, Stderr: err.Error()}
	}
	defer logFile.Close()

	if s.cfg.NetworkEnabled {
		bootstrapDependencies(ctx, params.Language, params.ToolDir, logFile)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.cfg.timeout())
	defer cancel()

	var cmd *exec.Cmd
	var env []string
	if backend == "docker" {
		cmd = s.dockerCommand(timeoutCtx, params)
	} else {
		cmd, env = s.localCommand(timeoutCtx, params)
		cmd.Env = env
	}

	sink := newStreamSink(logFile, params.OnStdout, params.OnStderr)
	cmd.Stdout = sink.stdoutWriter()
	cmd.Stderr = sink.stderrWriter()

	if params.Stdin != "" {
		cmd.Stdin = strings.NewReader(params.Stdin)
	}

	result := RunResult{LogFile: logPath}

	if err := cmd.Start(); err != nil {
		result.Code = -1
		result.Stderr = err.Error()
		logFile.WriteString(err.Error())
		return result
	}

	waitErr := cmd.Wait()
	result.Stdout = sink.stdout()
	result.Stderr = sink.stderr()

	switch {
	case timeoutCtx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.Code = exitCodeOrDefault(waitErr, -1)
	case waitErr != nil:
		result.Code = exitCodeOrDefault(waitErr, -1)
	default:
		result.Code = 0
	}
	return result
}

func exitCodeOrDefault(err error, def int) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return def
}

// dockerAvailable probes `docker --version` at most once per
// cfg.probeInterval, so a daemon that starts after process launch is
// picked up without a restart.
func (s *Sandbox) dockerAvailable(ctx context.Context) bool {
	s.probeMu.Lock()
	defer s.probeMu.Unlock()

	if time.Since(s.probedAt) < s.cfg.probeInterval {
		return s.dockerExists
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err := exec.CommandContext(probeCtx, "docker", "--version").Run()
	s.dockerExists = err == nil
	s.probedAt = time.Now()
	return s.dockerExists
}

// streamSink fans child stdout/stderr bytes out to the log file, the
// accumulated in-memory buffers, and the caller's callbacks, preserving
// arrival order within each stream.
type streamSink struct {
	mu     sync.Mutex
	log    io.Writer
	onOut  func([]byte)
	onErr  func([]byte)
	outBuf []byte
	errBuf []byte
}

func newStreamSink(log io.Writer, onOut, onErr func([]byte)) *streamSink {
	return &streamSink{log: log, onOut: onOut, onErr: onErr}
}

func (s *streamSink) stdoutWriter() io.Writer { return sinkWriter{s, true} }
func (s *streamSink) stderrWriter() io.Writer { return sinkWriter{s, false} }

func (s *streamSink) stdout() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.outBuf)
}

func (s *streamSink) stderr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.errBuf)
}

type sinkWriter struct {
	s        *streamSink
	isStdout bool
}

func (w sinkWriter) Write(p []byte) (int, error) {
	w.s.mu.Lock()
	if w.isStdout {
		w.s.outBuf = append(w.s.outBuf, p...)
	} else {
		w.s.errBuf = append(w.s.errBuf, p...)
	}
	if w.s.log != nil {
		w.s.log.Write(p)
	}
	w.s.mu.Unlock()

	if w.isStdout && w.s.onOut != nil {
		w.s.onOut(p)
	} else if !w.isStdout && w.s.onErr != nil {
		w.s.onErr(p)
	}
	return len(p), nil
}
