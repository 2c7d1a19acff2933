// Package narration keeps a spoken position and a text cursor in sync.
//
// The Coordinator is a single-goroutine state machine. Caller operations
// (Play, Seek, Reset, Load) and engine callbacks (Handle) must all be
// delivered from the same event loop; there is no internal locking.
package narration

import (
	"sort"
	"time"

	"github.com/metcalfc/narr/internal/reader"
	"github.com/rs/zerolog"
)

// DefaultSeekDelay lets the engine release a cancelled request before a
// new one is issued.
const DefaultSeekDelay = 100 * time.Millisecond

// Options configures a Coordinator.
type Options struct {
	Voice     Voice
	SeekDelay time.Duration
	Scheduler Scheduler
	Listener  Listener
	Logger    *zerolog.Logger
}

// Coordinator owns the playback state for one document view.
type Coordinator struct {
	engine    Engine
	listener  Listener
	scheduler Scheduler
	voice     Voice
	seekDelay time.Duration
	log       zerolog.Logger

	units []reader.Unit
	state State
	index int

	// live request
	request uint64
	base    int
	starts  []int

	lastID uint64
	gen    uint64
}

// New creates an idle Coordinator driving engine.
func New(engine Engine, opts Options) *Coordinator {
	c := &Coordinator{
		engine:    engine,
		listener:  opts.Listener,
		scheduler: opts.Scheduler,
		voice:     opts.Voice,
		seekDelay: opts.SeekDelay,
		log:       zerolog.Nop(),
		index:     NoUnit,
	}
	if c.listener == nil {
		c.listener = nopListener{}
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With().Str("component", "narration").Logger()
	}
	return c
}

// State returns the playback state.
func (c *Coordinator) State() State { return c.state }

// Index returns the current unit index, or NoUnit.
func (c *Coordinator) Index() int { return c.index }

// Units returns the active unit sequence.
func (c *Coordinator) Units() []reader.Unit { return c.units }

// SetVoice changes the voice used by subsequent requests.
func (c *Coordinator) SetVoice(v Voice) { c.voice = v }

// Voice returns the configured voice.
func (c *Coordinator) Voice() Voice { return c.voice }

// Load replaces the active units and returns to Idle.
func (c *Coordinator) Load(units []reader.Unit) {
	c.cancel()
	c.units = units
	c.setState(Idle)
	c.setIndex(NoUnit)
	c.log.Debug().Int("units", len(units)).Msg("document loaded")
}

// Reset cancels narration and clears the current unit.
func (c *Coordinator) Reset() {
	c.cancel()
	c.setState(Idle)
	c.setIndex(NoUnit)
}

// Play toggles playback: it resumes a paused request, pauses a playing one,
// or starts narrating from the current unit (or the first).
func (c *Coordinator) Play() {
	switch {
	case c.state == Paused && c.index != NoUnit:
		c.resume()
	case c.state == Playing:
		c.pause()
	default:
		start := c.index
		if start == NoUnit {
			start = 0
		}
		c.begin(start)
	}
}

// Seek jumps narration to unit i. Seeking to the unit that is already
// current toggles pause in place. Out of range indices are ignored.
func (c *Coordinator) Seek(i int) {
	if i < 0 || i >= len(c.units) {
		return
	}
	if i == c.index {
		switch c.state {
		case Playing:
			c.pause()
			return
		case Paused:
			c.resume()
			return
		}
	}

	c.cancel()
	c.setState(Idle)
	c.setIndex(i)

	if c.scheduler == nil || c.seekDelay <= 0 {
		c.begin(i)
		return
	}
	gen := c.gen
	c.scheduler.AfterFunc(c.seekDelay, func() {
		if c.gen != gen {
			c.log.Debug().Int("index", i).Msg("pending seek superseded")
			return
		}
		c.begin(i)
	})
}

// Cue moves the current unit to i without narrating, so the next Play
// starts there. It only applies while idle.
func (c *Coordinator) Cue(i int) {
	if i < 0 || i >= len(c.units) || c.state != Idle {
		return
	}
	c.cancel()
	c.setIndex(i)
}

// Handle applies an engine event. Events for requests other than the live
// one are dropped.
func (c *Coordinator) Handle(ev Event) {
	if c.request == 0 || ev.Request != c.request {
		c.log.Debug().Uint64("request", ev.Request).Stringer("kind", ev.Kind).Msg("stale event dropped")
		return
	}

	switch ev.Kind {
	case EventStart:
		c.setIndex(c.base)
		c.setState(Playing)
	case EventBoundary:
		c.setIndex(c.resolve(ev.Offset))
	case EventEnd:
		c.finish()
	case EventError:
		if !IsCancellation(ev.Code) {
			err := &EngineError{Code: ev.Code}
			c.log.Warn().Err(err).Msg("engine error")
			c.listener.Error(err.Error())
		}
		c.finish()
	}
}

// begin issues a narration request for units[index:].
func (c *Coordinator) begin(index int) {
	if len(c.units) == 0 {
		c.listener.Error(ErrEmptyDocument.Error())
		return
	}
	c.cancel()

	text, starts := reader.JoinUnits(c.units[index:])
	c.lastID++
	c.request = c.lastID
	c.base = index
	c.starts = starts

	c.log.Debug().Uint64("request", c.request).Int("from", index).Msg("speak")
	if err := c.engine.Speak(Request{ID: c.request, Text: text, Voice: c.voice}); err != nil {
		c.log.Warn().Err(err).Msg("speak failed")
		c.listener.Error((&EngineError{Code: err.Error()}).Error())
		c.finish()
	}
}

// resolve maps an offset in the request text to an absolute unit index:
// the last unit whose start is at or before offset.
func (c *Coordinator) resolve(offset int) int {
	k := sort.Search(len(c.starts), func(j int) bool { return c.starts[j] > offset }) - 1
	if k < 0 {
		k = 0
	}
	return c.base + k
}

func (c *Coordinator) pause() {
	c.engine.Pause()
	c.setState(Paused)
}

func (c *Coordinator) resume() {
	c.engine.Resume()
	c.setState(Playing)
}

// cancel stops the live request and invalidates pending continuations.
// Cancelling when nothing is live is harmless.
func (c *Coordinator) cancel() {
	c.engine.Cancel()
	c.request = 0
	c.starts = nil
	c.gen++
}

// finish ends the live request after end, error or cancellation.
func (c *Coordinator) finish() {
	c.request = 0
	c.starts = nil
	c.setState(Idle)
	c.setIndex(NoUnit)
}

func (c *Coordinator) setState(s State) {
	if s == c.state {
		return
	}
	c.log.Debug().Stringer("from", c.state).Stringer("to", s).Msg("state")
	c.state = s
	c.listener.StateChanged(s)
}

func (c *Coordinator) setIndex(i int) {
	if i == c.index {
		return
	}
	c.index = i
	c.listener.UnitChanged(i)
}
