package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yaegerbomb42/boxedin/internal/memory"
	"github.com/yaegerbomb42/boxedin/internal/reporter"
)

// runRequest is `POST /api/run`'s request body.
type runRequest struct {
	Goal    string `json:"goal"`
	Network bool   `json:"network,omitempty"`
}

// runResponse is `POST /api/run`'s `{final, logs}` response: final is the
// agentloop.Result, logs is the ordered sequence of reporter events
// emitted while producing it.
type runResponse struct {
	Final any             `json:"final"`
	Logs  []reporter.Event `json:"logs"`
}

// handleRun runs one goal synchronously, collecting the reporter events
// emitted along the way through a Broadcaster channel scoped to this
// request. The channel buffers 256 events and is only drained after the
// goal finishes, so events beyond the first 256 are dropped from logs.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Goal == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "goal is required"})
		return
	}

	mem, err := memory.Load(s.DataDir, s.SandboxDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	bus := reporter.NewBroadcaster()
	events, unsubscribe := bus.Subscribe(256)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	loop := s.loopFor(req.Network)
	result, err := loop.Run(ctx, req.Goal, mem, false, bus)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	unsubscribe()
	var logs []reporter.Event
	for ev := range events {
		logs = append(logs, ev)
	}

	writeJSON(w, http.StatusOK, runResponse{Final: result, Logs: logs})
}

// handleRunStream drives one goal and streams its reporter events as
// text/event-stream frames, one SSE "event: <name>" per Reporter callback
// plus a final "complete" event.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	goal := r.URL.Query().Get("goal")
	if goal == "" {
		http.Error(w, "goal query parameter is required", http.StatusBadRequest)
		return
	}
	network := r.URL.Query().Get("network") == "1" || r.URL.Query().Get("network") == "true"

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	mem, err := memory.Load(s.DataDir, s.SandboxDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bus := reporter.NewBroadcaster()
	events, unsubscribe := bus.Subscribe(256)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		loop := s.loopFor(network)
		if _, err := loop.Run(ctx, goal, mem, false, bus); err != nil {
			bus.Error(err)
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
			if ev.Name == "complete" || ev.Name == "error" {
				return
			}
		case <-r.Context().Done():
			return
		case <-done:
			// Drain any remaining buffered events before returning.
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return
					}
					writeSSE(w, ev)
					flusher.Flush()
				default:
					return
				}
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, ev reporter.Event) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		payload = []byte(`{}`)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload)
}
