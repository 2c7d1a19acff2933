// Package speech provides a narration engine that paces progress events at
// a words-per-minute rate and optionally drives an external speech command.
package speech

import (
	"errors"
	"sync"
	"time"
	"unicode"

	"github.com/metcalfc/narr/internal/narration"
	"github.com/rs/zerolog"
)

const (
	DefaultWPM = 175
	MinWPM     = 80
	MaxWPM     = 450

	// Engine error codes.
	CodeInterrupted      = "interrupted"
	CodeSynthesisFailed  = "synthesis-failed"
	CodeAudioUnavailable = "audio-unavailable"
)

// Sink receives engine events. It is called from the engine's goroutine;
// the caller is responsible for handing events to its own event loop.
type Sink func(narration.Event)

// Paced is a narration engine that emits a boundary event per word.
type Paced struct {
	sink    Sink
	speaker Speaker
	log     zerolog.Logger

	mu  sync.Mutex
	wpm int
	cur *utterance

	ready  chan struct{}
	voices []string
}

// Options configures a Paced engine.
type Options struct {
	WPM     int
	Speaker Speaker // nil for silent pacing
	Logger  *zerolog.Logger
}

// NewPaced creates an engine delivering events to sink. When a speaker is
// configured its voices are listed in the background; see Ready.
func NewPaced(sink Sink, opts Options) *Paced {
	p := &Paced{
		sink:    sink,
		speaker: opts.Speaker,
		log:     zerolog.Nop(),
		wpm:     clampWPM(opts.WPM),
		ready:   make(chan struct{}),
	}
	if opts.Logger != nil {
		p.log = opts.Logger.With().Str("component", "speech").Logger()
	}

	if p.speaker == nil {
		p.voices = []string{"paced"}
		close(p.ready)
		return p
	}
	go func() {
		voices, err := p.speaker.Voices()
		if err != nil {
			p.log.Warn().Err(err).Msg("listing voices failed")
		}
		p.mu.Lock()
		p.voices = voices
		p.mu.Unlock()
		close(p.ready)
	}()
	return p
}

func clampWPM(wpm int) int {
	if wpm <= 0 {
		return DefaultWPM
	}
	if wpm < MinWPM {
		return MinWPM
	}
	if wpm > MaxWPM {
		return MaxWPM
	}
	return wpm
}

// Ready is closed once voices are known.
func (p *Paced) Ready() <-chan struct{} { return p.ready }

// Voices returns the available voices, empty when no speech is possible.
func (p *Paced) Voices() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.voices...)
}

// WPM returns the base speaking rate.
func (p *Paced) WPM() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wpm
}

// SetWPM changes the base rate for subsequent requests.
func (p *Paced) SetWPM(wpm int) {
	p.mu.Lock()
	p.wpm = clampWPM(wpm)
	p.mu.Unlock()
}

// Speak starts req, superseding any live utterance.
func (p *Paced) Speak(req narration.Request) error {
	p.Cancel()

	rate := req.Voice.Rate
	if rate <= 0 {
		rate = 1
	}
	wpm := float64(p.WPM()) * rate

	u := &utterance{
		req:     req,
		offsets: wordOffsets(req.Text),
		perWord: time.Duration(float64(time.Minute) / wpm),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}

	if p.speaker != nil {
		proc, err := p.speaker.Start(req.Text, req.Voice, int(wpm))
		if err != nil {
			p.log.Warn().Err(err).Msg("speaker start failed")
			if errors.Is(err, ErrNoSpeaker) {
				return errors.New(CodeAudioUnavailable)
			}
			return errors.New(CodeSynthesisFailed)
		}
		u.proc = proc
		u.exit = proc.Done()
	}

	p.mu.Lock()
	p.cur = u
	p.mu.Unlock()

	go p.run(u)
	return nil
}

// Pause freezes the live utterance.
func (p *Paced) Pause() {
	if u := p.current(); u != nil {
		u.setPaused(true)
	}
}

// Resume continues a paused utterance.
func (p *Paced) Resume() {
	if u := p.current(); u != nil {
		u.setPaused(false)
	}
}

// Cancel stops the live utterance. Its goroutine reports an interrupted error.
func (p *Paced) Cancel() {
	p.mu.Lock()
	u := p.cur
	p.cur = nil
	p.mu.Unlock()
	if u != nil {
		u.halt()
	}
}

// Speaking reports whether an utterance is live.
func (p *Paced) Speaking() bool {
	return p.current() != nil
}

// Paused reports whether the live utterance is paused.
func (p *Paced) Paused() bool {
	u := p.current()
	return u != nil && u.isPaused()
}

func (p *Paced) current() *utterance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// release clears u if it is still the live utterance.
func (p *Paced) release(u *utterance) {
	p.mu.Lock()
	if p.cur == u {
		p.cur = nil
	}
	p.mu.Unlock()
}

func (p *Paced) emit(u *utterance, kind narration.EventKind, offset int, code string) {
	p.sink(narration.Event{Request: u.req.ID, Kind: kind, Offset: offset, Code: code})
}

func (p *Paced) run(u *utterance) {
	defer p.release(u)

	p.emit(u, narration.EventStart, 0, "")
	for _, off := range u.offsets {
		p.emit(u, narration.EventBoundary, off, "")
		if !u.sleep(u.perWord) {
			p.fail(u)
			return
		}
	}

	if u.exit != nil {
		select {
		case err := <-u.exit:
			u.exited(err)
		case <-u.stop:
		}
		if u.exitErr != nil || u.stopped() {
			p.fail(u)
			return
		}
	}
	p.emit(u, narration.EventEnd, 0, "")
}

// fail reports why u ended early. A halt wins over the process error it
// caused.
func (p *Paced) fail(u *utterance) {
	if u.stopped() || u.exitErr == nil {
		p.emit(u, narration.EventError, 0, CodeInterrupted)
		return
	}
	p.log.Warn().Err(u.exitErr).Uint64("request", u.req.ID).Msg("speaker failed")
	p.emit(u, narration.EventError, 0, CodeSynthesisFailed)
}

// wordOffsets returns the byte offset of each word in text.
func wordOffsets(text string) []int {
	var offsets []int
	inWord := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if !space && !inWord {
			offsets = append(offsets, i)
		}
		inWord = !space
	}
	return offsets
}

type utterance struct {
	req     narration.Request
	offsets []int
	perWord time.Duration
	proc    Process

	// exit is the process's Done channel until it has been received from.
	exit    <-chan error
	exitErr error

	mu     sync.Mutex
	paused bool
	halted bool
	wake   chan struct{}
	stop   chan struct{}
}

func (u *utterance) setPaused(paused bool) {
	u.mu.Lock()
	if u.halted || u.paused == paused {
		u.mu.Unlock()
		return
	}
	u.paused = paused
	u.mu.Unlock()

	if u.proc != nil {
		if paused {
			u.proc.Pause()
		} else {
			u.proc.Resume()
		}
	}
	select {
	case u.wake <- struct{}{}:
	default:
	}
}

func (u *utterance) isPaused() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.paused
}

func (u *utterance) stopped() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.halted
}

func (u *utterance) halt() {
	u.mu.Lock()
	if u.halted {
		u.mu.Unlock()
		return
	}
	u.halted = true
	u.mu.Unlock()

	close(u.stop)
	if u.proc != nil {
		u.proc.Stop()
	}
}

// sleep waits d of unpaused time. It returns false if halted or if the
// speech process failed; a clean exit lets pacing continue.
func (u *utterance) sleep(d time.Duration) bool {
	for d > 0 {
		if u.isPaused() {
			select {
			case <-u.wake:
				continue
			case <-u.stop:
				return false
			case err := <-u.exit:
				if !u.exited(err) {
					return false
				}
				continue
			}
		}

		began := time.Now()
		t := time.NewTimer(d)
		select {
		case <-t.C:
			return true
		case <-u.wake:
			t.Stop()
			d -= time.Since(began)
		case <-u.stop:
			t.Stop()
			return false
		case err := <-u.exit:
			t.Stop()
			d -= time.Since(began)
			if !u.exited(err) {
				return false
			}
		}
	}
	return true
}

// exited records the process result and reports whether it exited cleanly.
func (u *utterance) exited(err error) bool {
	u.exit = nil
	u.exitErr = err
	return err == nil
}
