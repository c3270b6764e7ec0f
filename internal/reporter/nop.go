package reporter

// Nop is a Reporter that discards every event. Useful for library callers
// and tests that don't care about progress events but want a concrete,
// always-valid Reporter rather than relying on the nil case.
type Nop struct{}

func (Nop) Plan(string)                     {}
func (Nop) CreateTools([]string)            {}
func (Nop) RunStart(string)                 {}
func (Nop) RunChunk(string, string, []byte) {}
func (Nop) RunEnd(string, RunResult)        {}
func (Nop) Result(RunResult)                {}
func (Nop) Done(string)                     {}
func (Nop) Error(error)                     {}

var _ Reporter = Nop{}
