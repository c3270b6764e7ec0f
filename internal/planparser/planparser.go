// Package planparser extracts a structured Plan from the free-form text a
// plan generator returns: a ```json fenced block when present, with a
// brace-slice fallback for models that skip the fence.
package planparser

import (
	"encoding/json"
	"strings"
)

// ToolSpec is a tool to materialize, as described in a Plan's createTools.
type ToolSpec struct {
	ID       string            `json:"id,omitempty"`
	Name     string            `json:"name"`
	Language string            `json:"language"`
	Entry    string            `json:"entry"`
	Purpose  string            `json:"purpose"`
	Files    map[string]string `json:"files"`
	Inputs   []Param           `json:"inputs"`
	Outputs  []Param           `json:"outputs"`
	Usage    string            `json:"usage"`
}

// Param mirrors toolstore.Param's on-the-wire shape for a plan's tool
// specs, kept independent of toolstore so planparser has no dependency on
// the catalog package.
type Param struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required *bool  `json:"required,omitempty"`
}

// RunCall is one ordered tool invocation in a Plan.
type RunCall struct {
	ID    string   `json:"id"`
	Args  []string `json:"args"`
	Stdin *string  `json:"stdin,omitempty"`
}

// Plan is the structured object produced by the planner for one goal.
// PlanDescription holds the duck-typed `plan` field, which models emit
// either as a string or a nested object; it is kept as raw JSON and only
// ever rendered for display.
type Plan struct {
	PlanDescription json.RawMessage `json:"plan"`
	Steps           []string        `json:"steps"`
	CreateTools     []ToolSpec      `json:"createTools"`
	Run             []RunCall       `json:"run"`
}

// Parse extracts a Plan from raw model output, or returns nil if no
// parseable JSON plan could be found:
//  1. find the first ```json fenced block and parse its contents;
//  2. otherwise locate the first '{' and the last '}' and parse that
//     slice;
//  3. otherwise return nil.
func Parse(raw string) *Plan {
	if fenced, ok := extractJSONFence(raw); ok {
		if p, ok := tryParse(fenced); ok {
			return p
		}
	}
	if sliced, ok := extractBraceSlice(raw); ok {
		if p, ok := tryParse(sliced); ok {
			return p
		}
	}
	return nil
}

func tryParse(s string) (*Plan, bool) {
	var p Plan
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, false
	}
	return &p, true
}

// extractJSONFence returns the contents of the first ```json ... ```
// fenced block, following extractYAML's open-then-close scan.
func extractJSONFence(content string) (string, bool) {
	const open = "```json"
	idx := strings.Index(content, open)
	if idx < 0 {
		return "", false
	}
	rest := content[idx+len(open):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// extractBraceSlice returns the substring from the first '{' to the last
// '}', inclusive, used as a fallback when no fenced block is present.
func extractBraceSlice(content string) (string, bool) {
	first := strings.IndexByte(content, '{')
	last := strings.LastIndexByte(content, '}')
	if first < 0 || last < 0 || last < first {
		return "", false
	}
	return content[first : last+1], true
}

// Empty reports whether p has no tools to create and no run calls, the
// condition that triggers one plan-refinement retry.
func (p *Plan) Empty() bool {
	return p == nil || (len(p.CreateTools) == 0 && len(p.Run) == 0)
}
