// Package memory implements the durable process-wide state: tool summaries
// (reconciled from the on-disk catalog on every load), an append-only
// conversation history, and a run log, all persisted as a single JSON
// file.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yaegerbomb42/boxedin/internal/toolstore"
)

// Role enumerates who produced a HistoryEntry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// HistoryEntry is one turn of the conversation transcript.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	TS      int64  `json:"ts"`
}

// RunRecord is one completed agent-loop invocation.
type RunRecord struct {
	Goal   string          `json:"goal"`
	Steps  []string        `json:"steps"`
	Result json.RawMessage `json:"result"`
	TS     int64           `json:"ts"`
}

// Memory is the full durable state for the process. Save persists only
// manifest-level tool fields (toolstore.Summary is exactly Manifest), never
// absolute paths.
type Memory struct {
	Tools   map[string]toolstore.Summary `json:"tools"`
	History []HistoryEntry               `json:"history"`
	Runs    []RunRecord                  `json:"runs"`

	dataDir string
	store   *toolstore.Store
}

// saveMu serializes Memory.Save across concurrently running goals in this
// process. Saves are last-writer-wins; the mutex only keeps two writers
// from interleaving on the same file.
var saveMu sync.Mutex

// Load reads <dataDir>/memory/memory.json if present, merging it with
// defaults, then overwrites the Tools field with the catalog loaded fresh
// from <sandboxDir>/tools; the on-disk catalog is authoritative. If the
// file is absent, it is created with defaults.
func Load(dataDir, sandboxDir string) (*Memory, error) {
	memDir := filepath.Join(dataDir, "memory")
	if err := os.MkdirAll(memDir, 0o755); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "logs"), 0o755); err != nil {
		return nil, fmt.Errorf("memory: create logs dir: %w", err)
	}

	store, err := toolstore.New(sandboxDir)
	if err != nil {
		return nil, fmt.Errorf("memory: init tool catalog: %w", err)
	}

	m := &Memory{
		Tools:   map[string]toolstore.Summary{},
		History: []HistoryEntry{},
		Runs:    []RunRecord{},
		dataDir: dataDir,
		store:   store,
	}

	path := filepath.Join(memDir, "memory.json")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("memory: decode %s: %w", path, err)
		}
		m.dataDir = dataDir
		m.store = store
	case os.IsNotExist(err):
		// Defaults already populated above; Save below creates the file.
	default:
		return nil, fmt.Errorf("memory: read %s: %w", path, err)
	}

	if m.Tools == nil {
		m.Tools = map[string]toolstore.Summary{}
	}
	if m.History == nil {
		m.History = []HistoryEntry{}
	}
	if m.Runs == nil {
		m.Runs = []RunRecord{}
	}

	catalog, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("memory: load tool catalog: %w", err)
	}
	tools := make(map[string]toolstore.Summary, len(catalog))
	for id, rec := range catalog {
		tools[id] = rec.Manifest
	}
	m.Tools = tools

	if err := m.Save(); err != nil {
		return nil, err
	}
	return m, nil
}

// Save persists m to <dataDir>/memory/memory.json using a
// write-temp-then-rename sequence, so concurrent readers never observe a
// partially written file.
func (m *Memory) Save() error {
	saveMu.Lock()
	defer saveMu.Unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: marshal: %w", err)
	}

	memDir := filepath.Join(m.dataDir, "memory")
	if err := os.MkdirAll(memDir, 0o755); err != nil {
		return fmt.Errorf("memory: create data dir: %w", err)
	}
	finalPath := filepath.Join(memDir, "memory.json")

	tmp, err := os.CreateTemp(memDir, ".memory-*.tmp")
	if err != nil {
		return fmt.Errorf("memory: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("memory: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("memory: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("memory: rename into place: %w", err)
	}
	return nil
}

// AddHistory appends a new entry with the current time.
func (m *Memory) AddHistory(role Role, content string) {
	m.History = append(m.History, HistoryEntry{Role: role, Content: content, TS: time.Now().UnixMilli()})
}

// AddRun appends a completed run record.
func (m *Memory) AddRun(goal string, steps []string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("memory: marshal run result: %w", err)
	}
	m.Runs = append(m.Runs, RunRecord{Goal: goal, Steps: steps, Result: raw, TS: time.Now().UnixMilli()})
	return nil
}

// SummarizeHistory returns history for prompting, non-mutating. If
// len(history) <= max it is returned verbatim; otherwise a single synthetic
// system entry ("N earlier turns omitted") is prepended to the last max
// entries.
func (m *Memory) SummarizeHistory(max int) []HistoryEntry {
	if max <= 0 || len(m.History) <= max {
		out := make([]HistoryEntry, len(m.History))
		copy(out, m.History)
		return out
	}

	omitted := len(m.History) - max
	out := make([]HistoryEntry, 0, max+1)
	out = append(out, HistoryEntry{
		Role:    RoleSystem,
		Content: fmt.Sprintf("%d earlier turns omitted", omitted),
		TS:      m.History[len(m.History)-max-1].TS,
	})
	out = append(out, m.History[len(m.History)-max:]...)
	return out
}

// ToolCatalog exposes the underlying tool store so callers (AgentLoop) can
// write new tools and reload the catalog without constructing a second
// Store rooted at the same directory.
func (m *Memory) ToolCatalog() *toolstore.Store { return m.store }

// RefreshTools reloads m.Tools from the on-disk catalog, used after
// MaterializeTools writes new manifests.
func (m *Memory) RefreshTools() error {
	catalog, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("memory: refresh tool catalog: %w", err)
	}
	tools := make(map[string]toolstore.Summary, len(catalog))
	for id, rec := range catalog {
		tools[id] = rec.Manifest
	}
	m.Tools = tools
	return nil
}
