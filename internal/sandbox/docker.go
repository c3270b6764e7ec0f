package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// dockerImage returns the container image for a language.
func dockerImage(lang Language) string {
	switch lang {
	case Python:
		return "python:3.11-alpine"
	case Node:
		return "node:20-alpine"
	default:
		return "alpine:latest"
	}
}

// interpreterCommand returns the argv used to run entryRel (already
// relative to /app, i.e. the sandbox root) for lang.
func interpreterCommand(lang Language, entryRel string, args []string) []string {
	var argv []string
	switch lang {
	case Python:
		argv = []string{"python", entryRel}
	case Node:
		argv = []string{"node", entryRel}
	default:
		argv = []string{"cat", entryRel}
	}
	return append(argv, args...)
}

// dockerCommand builds the `docker run` invocation for params: bind-mount
// the workspace at /app, apply --memory/--cpus, attach --network=none
// unless network is enabled, then run the language interpreter against the
// entry file.
func (s *Sandbox) dockerCommand(ctx context.Context, params RunParams) *exec.Cmd {
	args := []string{"run", "--rm"}
	if !s.cfg.NetworkEnabled {
		args = append(args, "--network", "none")
	}
	if s.cfg.MemoryMB > 0 {
		args = append(args, fmt.Sprintf("--memory=%dm", s.cfg.MemoryMB))
	}
	if s.cfg.CPU > 0 {
		args = append(args, fmt.Sprintf("--cpus=%g", s.cfg.CPU))
	}
	args = append(args,
		"-v", fmt.Sprintf("%s:/app", s.cfg.SandboxRoot),
		"-w", "/app",
	)
	if params.Language == Python {
		if site := siteDir(params.ToolDir); dirExists(site) {
			if rel, err := filepath.Rel(s.cfg.SandboxRoot, site); err == nil {
				args = append(args, "-e", fmt.Sprintf("PYTHONPATH=/app/%s", filepath.ToSlash(rel)))
			}
		}
	}
	args = append(args, "-i", dockerImage(params.Language))
	args = append(args, interpreterCommand(params.Language, params.EntryRel, params.Args)...)

	return exec.CommandContext(ctx, "docker", args...)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
