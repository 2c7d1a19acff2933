package narration

import "time"

// EventKind identifies an engine callback.
type EventKind int

const (
	EventStart EventKind = iota
	EventBoundary
	EventEnd
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventBoundary:
		return "boundary"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is a progress callback from the engine, delivered to
// Coordinator.Handle on the same goroutine that issues operations.
type Event struct {
	Request uint64
	Kind    EventKind
	Offset  int    // byte offset into Request.Text (EventBoundary)
	Code    string // engine error code (EventError)
}

// Voice is passed through to the engine untouched.
type Voice struct {
	Lang  string
	Name  string
	Rate  float64
	Pitch float64
}

// Request is one narration request covering a suffix of the document.
type Request struct {
	ID    uint64
	Text  string
	Voice Voice
}

// Engine speaks requests and reports progress as Events.
type Engine interface {
	Speak(req Request) error
	Pause()
	Resume()
	Cancel()
	Speaking() bool
	Paused() bool
}

// Readiness is implemented by engines that load voices asynchronously.
type Readiness interface {
	Ready() <-chan struct{}
	Voices() []string
}

// Listener receives the coordinator's notifications.
type Listener interface {
	UnitChanged(index int)
	StateChanged(state State)
	Error(message string)
}

// Scheduler runs fn after d on the coordinator's goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(d time.Duration, fn func())

func (f SchedulerFunc) AfterFunc(d time.Duration, fn func()) { f(d, fn) }

type nopListener struct{}

func (nopListener) UnitChanged(int)    {}
func (nopListener) StateChanged(State) {}
func (nopListener) Error(string)       {}
