package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// interpreterBinary returns the host binary name for lang, used by the
// local fallback backend. An unsupported language yields an empty name,
// which fails at Start and surfaces as Code=-1.
func interpreterBinary(lang Language) string {
	switch lang {
	case Python:
		return "python3"
	case Node:
		return "node"
	default:
		return ""
	}
}

// localCommand runs params.EntryRel directly against cwd=SandboxRoot, the
// fallback used when the Docker CLI is unavailable. It returns the
// environment to use, which adds PYTHONPATH when a python tool's
// dependency bootstrap installed packages into .site/.
func (s *Sandbox) localCommand(ctx context.Context, params RunParams) (*exec.Cmd, []string) {
	argv := append([]string{params.EntryRel}, params.Args...)
	cmd := exec.CommandContext(ctx, interpreterBinary(params.Language), argv...)
	cmd.Dir = s.cfg.SandboxRoot

	env := os.Environ()
	if params.Language == Python {
		site := siteDir(params.ToolDir)
		if _, err := os.Stat(site); err == nil {
			env = append(env, fmt.Sprintf("PYTHONPATH=%s", site))
		}
	}
	return cmd, env
}
