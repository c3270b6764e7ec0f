package reporter

import "sync"

// Event is one reporter event as delivered to an SSE subscriber: Name is
// the SSE event name (`plan`, `createTools`, `runStart`, `runChunk`,
// `runEnd`, `result`, `complete`, `error`), Payload is the
// JSON-serializable argument the corresponding Reporter method received.
type Event struct {
	Name    string
	Payload any
}

// Broadcaster is a Reporter that fans each event out to a set of
// per-connection subscription channels, used by internal/httpapi's SSE
// endpoint. Each connection owns its own channel, registered only for the
// lifetime of its request; there is no process-wide client set mutated
// outside Subscribe/unsubscribe.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe registers a new buffered channel and returns it along with an
// unsubscribe function the caller must invoke when done (typically via
// defer), e.g. when an SSE connection closes.
func (b *Broadcaster) Subscribe(bufSize int) (<-chan Event, func()) {
	if bufSize <= 0 {
		bufSize = 64
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
		b.mu.Unlock()
	}
	return ch, unsubscribe
}

func (b *Broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// subscriber too slow; drop rather than block the loop.
		}
	}
}

func (b *Broadcaster) Plan(description string) { b.publish(Event{Name: "plan", Payload: map[string]string{"plan": description}}) }

func (b *Broadcaster) CreateTools(ids []string) {
	b.publish(Event{Name: "createTools", Payload: map[string][]string{"ids": ids}})
}

func (b *Broadcaster) RunStart(id string) {
	b.publish(Event{Name: "runStart", Payload: map[string]string{"id": id}})
}

func (b *Broadcaster) RunChunk(id, stream string, chunk []byte) {
	b.publish(Event{Name: "runChunk", Payload: map[string]string{"id": id, "stream": stream, "chunk": string(chunk)}})
}

func (b *Broadcaster) RunEnd(id string, result RunResult) {
	b.publish(Event{Name: "runEnd", Payload: result})
}

func (b *Broadcaster) Result(result RunResult) {
	b.publish(Event{Name: "result", Payload: result})
}

func (b *Broadcaster) Done(answer string) {
	b.publish(Event{Name: "complete", Payload: map[string]string{"answer": answer}})
}

func (b *Broadcaster) Error(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	b.publish(Event{Name: "error", Payload: map[string]string{"message": msg}})
}

var _ Reporter = (*Broadcaster)(nil)
