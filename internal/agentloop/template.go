package agentloop

import (
	"regexp"
	"strconv"
	"strings"
)

// placeholderPattern matches ${EXPR} occurrences in args/stdin strings.
var placeholderPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// lookup is the pure, read-only view over prior RunOutcomes that template
// expansion consults: the most recent run overall ("last"), and the most
// recent run per tool id ("runs.<toolId>"), latest wins.
type lookup struct {
	runs   []RunOutcome
	byTool map[string]int // toolId -> index into runs, latest wins
}

// newLookup builds a lookup from runs in chronological order. Pure: the
// same runs slice always yields the same lookup.
func newLookup(runs []RunOutcome) lookup {
	byTool := make(map[string]int, len(runs))
	for i, r := range runs {
		byTool[r.ID] = i
	}
	return lookup{runs: runs, byTool: byTool}
}

// expandString replaces every ${EXPR} occurrence in s. Unknown expressions
// expand to the empty string.
func (l lookup) expandString(s string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-1])
		return l.resolve(expr)
	})
}

// expandArgs expands every element of args, returning a new slice.
func (l lookup) expandArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = l.expandString(a)
	}
	return out
}

func (l lookup) resolve(expr string) string {
	if expr == "last.stdout" {
		if len(l.runs) == 0 {
			return ""
		}
		return l.runs[len(l.runs)-1].Stdout
	}

	const prefix = "runs."
	if !strings.HasPrefix(expr, prefix) {
		return ""
	}
	rest := expr[len(prefix):]
	dot := strings.LastIndex(rest, ".")
	if dot < 0 {
		return ""
	}
	toolID, field := rest[:dot], rest[dot+1:]

	idx, ok := l.byTool[toolID]
	if !ok {
		return ""
	}
	run := l.runs[idx]
	switch field {
	case "stdout":
		return run.Stdout
	case "stderr":
		return run.Stderr
	case "code":
		return strconv.Itoa(run.Code)
	default:
		return ""
	}
}
