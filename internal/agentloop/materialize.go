package agentloop

import (
	"fmt"

	"github.com/yaegerbomb42/boxedin/internal/memory"
	"github.com/yaegerbomb42/boxedin/internal/planparser"
	"github.com/yaegerbomb42/boxedin/internal/toolstore"
)

// materializeTools writes and persists every planned ToolSpec, inserting
// successes into the in-memory tools catalog so the run chain can find
// them immediately. A tool spec that fails to validate or write becomes an
// assistant history entry; materialization continues with the remaining
// specs rather than aborting the goal.
func (l *Loop) materializeTools(mem *memory.Memory, tools map[string]toolstore.Record, specs []planparser.ToolSpec) []string {
	created := make([]string, 0, len(specs))
	for _, spec := range specs {
		id, err := l.materializeTool(tools, spec)
		if err != nil {
			mem.AddHistory(memory.RoleAssistant, fmt.Sprintf("failed to create tool %q: %v", spec.Name, err))
			continue
		}
		created = append(created, id)
	}
	return created
}

func (l *Loop) materializeTool(tools map[string]toolstore.Record, spec planparser.ToolSpec) (string, error) {
	language := toolstore.Language(spec.Language)
	if !language.Valid() {
		return "", fmt.Errorf("%w: unsupported language %q", ErrToolValidation, spec.Language)
	}

	id := spec.ID
	if id == "" {
		id = toolstore.NewToolID(spec.Name)
	}

	entry := spec.Entry
	if entry == "" {
		entry = language.DefaultEntry()
	}

	if err := l.store.WriteCode(id, spec.Files); err != nil {
		return "", fmt.Errorf("agentloop: write tool code: %w", err)
	}

	manifest := toolstore.Manifest{
		ID:       id,
		Name:     spec.Name,
		Purpose:  spec.Purpose,
		Language: language,
		Entry:    entry,
		Inputs:   convertParams(spec.Inputs),
		Outputs:  convertParams(spec.Outputs),
		Usage:    spec.Usage,
	}
	record, err := l.store.Save(manifest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolValidation, err)
	}

	tools[id] = record
	return id, nil
}

func convertParams(params []planparser.Param) []toolstore.Param {
	out := make([]toolstore.Param, len(params))
	for i, p := range params {
		out[i] = toolstore.Param{Name: p.Name, Type: p.Type, Required: p.Required}
	}
	return out
}
