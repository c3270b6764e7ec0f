package httpapi

import (
	"net/http"

	"github.com/yaegerbomb42/boxedin/internal/memory"
)

// statusResponse is `GET /api/status`'s body.
type statusResponse struct {
	Conversations int `json:"conversations"`
	Tools         int `json:"tools"`
	Runs          int `json:"runs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	mem, err := memory.Load(s.DataDir, s.SandboxDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Conversations: len(mem.History),
		Tools:         len(mem.Tools),
		Runs:          len(mem.Runs),
	})
}

// handleTools returns the catalog's manifests sorted by id for a stable
// response, from the fsnotify-refreshed cache Mux started (see
// refreshToolsCache).
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cachedTools())
}
