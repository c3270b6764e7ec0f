package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yaegerbomb42/boxedin/internal/planner"
	"github.com/yaegerbomb42/boxedin/internal/toolstore"
)

// moduleNotFoundPattern / cannotFindModulePattern recognize the two stderr
// shapes the dependency heuristic reacts to.
var (
	moduleNotFoundPattern   = regexp.MustCompile(`ModuleNotFoundError: No module named '([^']+)'`)
	cannotFindModulePattern = regexp.MustCompile(`Cannot find module '([^']+)'`)
)

// heuristicDependencyFix inspects stderr for a missing-dependency pattern
// matching the tool's language and, if found, patches requirements.txt or
// package.json in place. It reports whether a fix was applied; the caller
// is responsible for re-running the tool.
func heuristicDependencyFix(toolDir string, language toolstore.Language, stderr string) (applied bool, reason string, err error) {
	switch language {
	case toolstore.Python:
		m := moduleNotFoundPattern.FindStringSubmatch(stderr)
		if m == nil {
			return false, "", nil
		}
		if err := appendRequirementLine(toolDir, m[1]); err != nil {
			return false, "", err
		}
		return true, "auto-install-python", nil
	case toolstore.Node:
		m := cannotFindModulePattern.FindStringSubmatch(stderr)
		if m == nil {
			return false, "", nil
		}
		if err := addNodeDependency(toolDir, m[1]); err != nil {
			return false, "", err
		}
		return true, "auto-install-node", nil
	default:
		return false, "", nil
	}
}

// appendRequirementLine appends pkg to <toolDir>/requirements.txt, creating
// the file if absent and skipping an exact duplicate line.
func appendRequirementLine(toolDir, pkg string) error {
	path := filepath.Join(toolDir, "requirements.txt")
	existing, _ := os.ReadFile(path)
	for _, line := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(line) == pkg {
			return nil
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("agentloop: append requirement: %w", err)
	}
	defer f.Close()
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return err
		}
	}
	_, err = f.WriteString(pkg + "\n")
	return err
}

// addNodeDependency inserts dependencies[pkg]="*" into
// <toolDir>/package.json, creating a minimal private package file if
// absent.
func addNodeDependency(toolDir, pkg string) error {
	path := filepath.Join(toolDir, "package.json")
	doc := map[string]any{
		"name":         filepath.Base(toolDir),
		"version":      "0.0.0",
		"private":      true,
		"dependencies": map[string]any{},
	}
	if existing, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(existing, &doc); err != nil {
			return fmt.Errorf("agentloop: parse existing package.json: %w", err)
		}
	}
	deps, ok := doc["dependencies"].(map[string]any)
	if !ok {
		deps = map[string]any{}
	}
	deps[pkg] = "*"
	doc["dependencies"] = deps

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("agentloop: marshal package.json: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// filePatch is the shape requested from the PlanGenerator for a
// model-guided patch: a flat map of relative path to full file content.
type filePatch struct {
	Files map[string]string `json:"files"`
}

// requestModelPatch asks gen for a patch to fix a failing tool given its
// stderr. Returns nil, nil if no parseable patch was returned (the caller
// treats that as "no fix").
func requestModelPatch(ctx context.Context, gen planner.Generator, toolName, stderr string) (*filePatch, error) {
	if gen == nil {
		return nil, nil
	}
	req := planner.Request{
		SystemPrompt: "You are a terse code-fixing assistant. Given a failing tool's stderr, " +
			"respond with a single JSON object of the form {\"files\": {\"relative/path\": \"full file contents\"}} " +
			"containing only the files that need to change to fix the error. No prose.",
		Messages: []planner.Message{
			{Role: planner.RoleUser, Content: fmt.Sprintf("Tool %q failed with stderr:\n%s", toolName, stderr)},
		},
		Temperature: 0.2,
	}
	text, err := gen.Generate(ctx, req)
	if err != nil || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	raw, ok := extractJSONPayload(text)
	if !ok {
		return nil, nil
	}
	var patch filePatch
	if err := json.Unmarshal([]byte(raw), &patch); err != nil || len(patch.Files) == 0 {
		return nil, nil
	}
	return &patch, nil
}

// extractJSONPayload mirrors planparser's fenced-block-then-brace-slice
// extraction, duplicated here rather than imported since the model patch's
// shape ({"files": ...}) is not a Plan.
func extractJSONPayload(content string) (string, bool) {
	const open = "```json"
	if idx := strings.Index(content, open); idx >= 0 {
		rest := content[idx+len(open):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), true
		}
	}
	first := strings.IndexByte(content, '{')
	last := strings.LastIndexByte(content, '}')
	if first < 0 || last < 0 || last < first {
		return "", false
	}
	return content[first : last+1], true
}
