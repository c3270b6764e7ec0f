package reporter

import "sync"

// RecordedEvent is one call captured by a Recorder, in the order received.
type RecordedEvent struct {
	Method string
	ID     string
	Result RunResult
	Err    error
}

// Recorder is a Reporter that appends every call to an in-memory,
// mutex-guarded slice, used by tests to assert event ordering.
type Recorder struct {
	mu     sync.Mutex
	Events []RecordedEvent
}

func (r *Recorder) append(e RecordedEvent) {
	r.mu.Lock()
	r.Events = append(r.Events, e)
	r.mu.Unlock()
}

func (r *Recorder) Plan(description string) { r.append(RecordedEvent{Method: "plan", Result: RunResult{Stdout: description}}) }
func (r *Recorder) CreateTools(ids []string) {
	r.append(RecordedEvent{Method: "createTools", ID: joinIDs(ids)})
}
func (r *Recorder) RunStart(id string) { r.append(RecordedEvent{Method: "runStart", ID: id}) }
func (r *Recorder) RunChunk(id, stream string, c []byte) {
	r.append(RecordedEvent{Method: "runChunk", ID: id, Result: RunResult{Stdout: stream + ":" + string(c)}})
}
func (r *Recorder) RunEnd(id string, res RunResult) { r.append(RecordedEvent{Method: "runEnd", ID: id, Result: res}) }
func (r *Recorder) Result(res RunResult)            { r.append(RecordedEvent{Method: "result", ID: res.ID, Result: res}) }
func (r *Recorder) Done(answer string)              { r.append(RecordedEvent{Method: "done", Result: RunResult{Stdout: answer}}) }
func (r *Recorder) Error(err error)                 { r.append(RecordedEvent{Method: "error", Err: err}) }

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}

var _ Reporter = (*Recorder)(nil)
