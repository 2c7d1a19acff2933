//go:build !gui

package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/metcalfc/narr/internal/log"
	"github.com/metcalfc/narr/internal/narration"
	"github.com/metcalfc/narr/internal/reader"
	"github.com/metcalfc/narr/internal/state"
)

func newTestModel(chapters ...string) (model, *fakeEngine) {
	s, eng := newTestSession(chapters...)
	return newModel(s, newBridge(), 175), eng
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

var (
	spaceKey = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	leftKey  = tea.KeyMsg{Type: tea.KeyLeft}
	rightKey = tea.KeyMsg{Type: tea.KeyRight}
	downKey  = tea.KeyMsg{Type: tea.KeyDown}
	upKey    = tea.KeyMsg{Type: tea.KeyUp}
)

func send(m model, msg tea.Msg) (model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func press(m model, msgs ...tea.Msg) model {
	for _, msg := range msgs {
		m, _ = send(m, msg)
	}
	return m
}

func event(req narration.Request, kind narration.EventKind, offset int) engineMsg {
	return engineMsg{Request: req.ID, Kind: kind, Offset: offset}
}

func TestPlayPause(t *testing.T) {
	m, eng := newTestModel(sample)

	m = press(m, spaceKey)
	if len(eng.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(eng.requests))
	}
	req := eng.last()
	if req.Text != sample {
		t.Errorf("request text = %q, want %q", req.Text, sample)
	}

	m = press(m, event(req, narration.EventStart, 0))
	if m.playback != narration.Playing || m.current != 0 {
		t.Fatalf("after start: state=%v current=%d", m.playback, m.current)
	}

	m = press(m, event(req, narration.EventBoundary, 5))
	if m.current != 1 || m.cursor != 1 {
		t.Errorf("after boundary: current=%d cursor=%d, want 1", m.current, m.cursor)
	}

	m = press(m, spaceKey)
	if m.playback != narration.Paused || !eng.paused {
		t.Errorf("after second space: state=%v engine paused=%v", m.playback, eng.paused)
	}

	m = press(m, spaceKey)
	if m.playback != narration.Playing || eng.paused {
		t.Errorf("after third space: state=%v engine paused=%v", m.playback, eng.paused)
	}
}

func TestEngineMsgWaitsForNext(t *testing.T) {
	m, eng := newTestModel(sample)
	m = press(m, spaceKey)

	_, cmd := send(m, event(eng.last(), narration.EventStart, 0))
	if cmd == nil {
		t.Fatal("engine message should re-arm the event wait")
	}

	m.bridge.sink(narration.Event{Request: 9, Kind: narration.EventEnd})
	msg := cmd()
	if ev, ok := msg.(engineMsg); !ok || ev.Request != 9 {
		t.Errorf("wait returned %#v", msg)
	}
}

func TestCursorSeek(t *testing.T) {
	m, eng := newTestModel(sample)

	m = press(m, downKey, downKey, downKey)
	if m.cursor != 2 {
		t.Fatalf("cursor = %d, want 2 (clamped)", m.cursor)
	}
	m = press(m, upKey)
	if m.cursor != 1 {
		t.Fatalf("cursor = %d, want 1", m.cursor)
	}

	m = press(m, enterKey)
	if len(eng.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(eng.requests))
	}
	if got := eng.last().Text; got != "Two. Three." {
		t.Errorf("request text = %q", got)
	}
	if m.coord.Index() != 1 {
		t.Errorf("index = %d, want 1", m.coord.Index())
	}
}

func TestArrowSeek(t *testing.T) {
	m, eng := newTestModel(sample)

	m = press(m, rightKey)
	if m.coord.Index() != 1 || eng.last().Text != "Two. Three." {
		t.Fatalf("right: index=%d text=%q", m.coord.Index(), eng.last().Text)
	}
	m = press(m, event(eng.last(), narration.EventStart, 0))

	m = press(m, rightKey)
	if m.coord.Index() != 2 {
		t.Errorf("second right: index=%d, want 2", m.coord.Index())
	}

	m = press(m, leftKey)
	if m.coord.Index() != 1 {
		t.Errorf("left: index=%d, want 1", m.coord.Index())
	}
}

func TestStaleEventIgnored(t *testing.T) {
	m, eng := newTestModel(sample)
	m = press(m, spaceKey)
	first := eng.last()
	m = press(m, event(first, narration.EventStart, 0))

	m = press(m, rightKey)
	m = press(m, event(first, narration.EventBoundary, 10))
	if m.coord.Index() != 1 {
		t.Errorf("stale boundary moved index to %d", m.coord.Index())
	}
}

func TestChapterKeys(t *testing.T) {
	m, eng := newTestModel(sample, "Second chapter. More.")

	m = press(m, spaceKey)
	m = press(m, event(eng.last(), narration.EventStart, 0))

	m = press(m, runeKey('n'))
	if m.chapter != 1 || m.doc.Title != "Chapter 2" {
		t.Fatalf("chapter = %d (%q), want 1", m.chapter, m.doc.Title)
	}
	if m.playback != narration.Idle || m.current != narration.NoUnit {
		t.Errorf("chapter switch should reset: state=%v current=%d", m.playback, m.current)
	}

	m = press(m, runeKey('n'))
	if m.chapter != 1 {
		t.Errorf("n past last chapter moved to %d", m.chapter)
	}

	m = press(m, runeKey('p'), runeKey('p'))
	if m.chapter != 0 {
		t.Errorf("chapter = %d, want 0", m.chapter)
	}
}

func TestTOCKey(t *testing.T) {
	m, eng := newTestModel(sample, "Second chapter. More.", "Third.")
	m = press(m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m = press(m, runeKey('t'))
	if !m.tocOpen || m.tocCursor != 0 {
		t.Fatalf("after t: open=%v cursor=%d", m.tocOpen, m.tocCursor)
	}
	view := m.View()
	for _, want := range []string{"Table of Contents", "Chapter 1", "Chapter 3"} {
		if !strings.Contains(view, want) {
			t.Errorf("contents view missing %q", want)
		}
	}

	m = press(m, spaceKey, downKey, enterKey)
	if m.tocOpen {
		t.Error("contents still open after enter")
	}
	if m.chapter != 1 || m.doc.Title != "Chapter 2" {
		t.Errorf("chapter = %d (%q), want 1", m.chapter, m.doc.Title)
	}
	if len(eng.requests) != 0 {
		t.Errorf("keys in the contents list started narration: %+v", eng.requests)
	}

	m = press(m, runeKey('t'))
	if m.tocCursor != 1 {
		t.Errorf("reopened cursor = %d, want current chapter 1", m.tocCursor)
	}
	m = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.tocOpen || m.chapter != 1 {
		t.Errorf("esc: open=%v chapter=%d", m.tocOpen, m.chapter)
	}
}

func TestTOCEntryLoadsChapter(t *testing.T) {
	m, _ := newTestModel(sample, "Second.", "Third. Last.")
	m.book.TOC = []reader.TOCEntry{
		{Title: "Opening", Chapter: 0},
		{Title: "Ending", Chapter: 2, Level: 1},
	}

	m = press(m, runeKey('t'), downKey)
	if !strings.Contains(m.View(), "Ending") {
		t.Error("contents view missing book TOC entry")
	}
	m = press(m, enterKey)
	if m.chapter != 2 || m.doc.Len() != 2 {
		t.Errorf("chapter = %d units = %d, want chapter 2", m.chapter, m.doc.Len())
	}
}

func TestStopKey(t *testing.T) {
	m, eng := newTestModel(sample)
	m = press(m, spaceKey)
	m = press(m, event(eng.last(), narration.EventStart, 0))
	m = press(m, event(eng.last(), narration.EventBoundary, 5))

	cancels := eng.cancels
	m = press(m, runeKey('s'))
	if eng.cancels == cancels {
		t.Error("stop should cancel the engine")
	}
	if m.playback != narration.Idle || m.current != narration.NoUnit {
		t.Errorf("after stop: state=%v current=%d", m.playback, m.current)
	}
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1 kept after stop", m.cursor)
	}
}

func TestNarrationEnd(t *testing.T) {
	m, eng := newTestModel(sample)
	m = press(m, spaceKey)
	req := eng.last()
	m = press(m,
		event(req, narration.EventStart, 0),
		event(req, narration.EventBoundary, 10),
		event(req, narration.EventEnd, 0),
	)
	if m.playback != narration.Idle || m.current != narration.NoUnit {
		t.Errorf("after end: state=%v current=%d", m.playback, m.current)
	}
	if m.lastUnit != 2 {
		t.Errorf("lastUnit = %d, want 2", m.lastUnit)
	}
}

func TestEngineErrorShown(t *testing.T) {
	m, eng := newTestModel(sample)
	m = press(m, spaceKey)
	req := eng.last()
	m = press(m, event(req, narration.EventStart, 0))
	m = press(m, engineMsg{Request: req.ID, Kind: narration.EventError, Code: "synthesis-failed"})

	if !strings.Contains(m.status, "synthesis-failed") {
		t.Errorf("status = %q", m.status)
	}
	if !strings.Contains(m.View(), "synthesis-failed") {
		t.Error("view should show the engine error")
	}

	m = press(m, spaceKey)
	m = press(m, event(eng.last(), narration.EventStart, 0))
	if m.status != "" {
		t.Errorf("status = %q, want cleared on play", m.status)
	}
}

func TestCancellationNotShown(t *testing.T) {
	m, eng := newTestModel(sample)
	m = press(m, spaceKey)
	req := eng.last()
	m = press(m, event(req, narration.EventStart, 0))
	m = press(m, engineMsg{Request: req.ID, Kind: narration.EventError, Code: "interrupted"})
	if m.status != "" {
		t.Errorf("status = %q, want no error for cancellation", m.status)
	}
}

func TestRateKeys(t *testing.T) {
	m, _ := newTestModel(sample)

	m = press(m, runeKey('+'))
	if got := m.coord.Voice().Rate; math.Abs(got-1.1) > 1e-9 {
		t.Errorf("rate = %v, want 1.1", got)
	}

	for i := 0; i < 20; i++ {
		m = press(m, runeKey('-'))
	}
	if got := m.coord.Voice().Rate; got != minRate {
		t.Errorf("rate = %v, want %v", got, minRate)
	}
}

func TestEmptyChapter(t *testing.T) {
	m, eng := newTestModel("   ")

	if !strings.Contains(m.View(), "Nothing to narrate") {
		t.Errorf("view = %q", m.View())
	}
	m = press(m, spaceKey)
	if len(eng.requests) != 0 {
		t.Error("empty chapter should not reach the engine")
	}
	if m.status != narration.ErrEmptyDocument.Error() {
		t.Errorf("status = %q", m.status)
	}
}

func TestView(t *testing.T) {
	m, eng := newTestModel(sample, "Other.")
	m = press(m, tea.WindowSizeMsg{Width: 100, Height: 30})

	view := m.View()
	for _, want := range []string{"Ch 1/2", "Chapter 1", "Sentence 1/3", "175 WPM", "STOPPED", "One.", "Three."} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m = press(m, spaceKey)
	m = press(m, event(eng.last(), narration.EventStart, 0))
	if !strings.Contains(m.View(), "PLAYING") {
		t.Error("view should show PLAYING")
	}
}

func TestViewportFollowsCurrent(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&sb, "Sentence number %d. ", i)
	}
	m, eng := newTestModel(sb.String())
	m = press(m, tea.WindowSizeMsg{Width: 80, Height: 12})

	m = press(m, spaceKey)
	req := eng.last()
	m = press(m, event(req, narration.EventStart, 0))
	off := strings.Index(req.Text, "Sentence number 60.")
	m = press(m, event(req, narration.EventBoundary, off))

	if m.current != 60 {
		t.Fatalf("current = %d, want 60", m.current)
	}
	if m.viewport.YOffset == 0 {
		t.Error("viewport should scroll to the current sentence")
	}
	if !strings.Contains(m.viewport.View(), "Sentence number 60.") {
		t.Error("current sentence should be visible")
	}
}

func TestBridgeScheduler(t *testing.T) {
	b := newBridge()
	ran := false
	b.AfterFunc(time.Millisecond, func() { ran = true })

	msg := b.wait()()
	fn, ok := msg.(continueMsg)
	if !ok {
		t.Fatalf("wait returned %#v", msg)
	}
	if ran {
		t.Fatal("continuation ran off the event loop")
	}
	fn()
	if !ran {
		t.Error("continuation did not run")
	}
}

func TestSeekDelayThroughLoop(t *testing.T) {
	book := reader.FromText("test", sample)
	s := newSession(book)
	eng := &fakeEngine{}
	b := newBridge()
	s.coord = narration.New(eng, narration.Options{Listener: s, Scheduler: b, SeekDelay: time.Millisecond})
	s.loadChapter(0)
	m := newModel(s, b, 175)

	m = press(m, downKey, enterKey)
	if len(eng.requests) != 0 {
		t.Fatal("seek should wait for the scheduler")
	}
	if m.coord.Index() != 1 {
		t.Errorf("index = %d, want 1 immediately", m.coord.Index())
	}

	m = press(m, b.wait()())
	if len(eng.requests) != 1 || eng.last().Text != "Two. Three." {
		t.Errorf("requests = %+v", eng.requests)
	}
}

func TestQuitSavesPosition(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	file := filepath.Join(t.TempDir(), "book.txt")
	if err := os.WriteFile(file, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}

	m, eng := newTestModel(sample)
	m.openStore(file)
	if m.store == nil {
		t.Fatal("state store not opened")
	}

	m = press(m, spaceKey)
	req := eng.last()
	m = press(m, event(req, narration.EventStart, 0), event(req, narration.EventBoundary, 5))

	m, cmd := send(m, runeKey('q'))
	if !m.quitting || cmd == nil {
		t.Fatal("q should quit")
	}
	if m.playback != narration.Idle {
		t.Errorf("state = %v, want idle after quit", m.playback)
	}

	store, err := state.NewStateStore()
	if err != nil {
		t.Fatal(err)
	}
	hash, _ := state.ComputeHash(file)
	pos, ok := store.GetPosition(hash)
	if !ok || pos != (state.ReadingState{Chapter: 0, Unit: 1}) {
		t.Errorf("saved position = %+v, %v", pos, ok)
	}
}

func TestRestartKey(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	file := filepath.Join(t.TempDir(), "book.txt")
	os.WriteFile(file, []byte(sample), 0644)

	m, eng := newTestModel(sample)
	m.openStore(file)
	m.coord.Cue(2)
	m.savePosition()

	m = press(m, runeKey('r'))
	if m.coord.Index() != 0 {
		t.Errorf("index = %d, want 0", m.coord.Index())
	}
	if _, ok := m.store.GetPosition(m.fileHash); ok {
		t.Error("restart should clear the saved position")
	}

	m = press(m, spaceKey)
	if eng.last().Text != sample {
		t.Errorf("request text = %q", eng.last().Text)
	}
}

func TestStartSessionSilent(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	logDir := t.TempDir()
	cfg, _ := loadConfig(options{configPath: filepath.Join(t.TempDir(), "none.toml"), silent: true, logPath: logDir})
	setupLogging(cfg, false)
	book := reader.FromText("test", sample)

	b := newBridge()
	s, engine := startSession(options{}, cfg, book, b.sink, b)
	log.Close()
	if data, err := os.ReadFile(filepath.Join(logDir, "narr.log")); err != nil || !strings.Contains(string(data), `narrating "test" from chapter 1 of 1`) {
		t.Errorf("session start not logged: %v\n%s", err, data)
	}
	if s.status != "" {
		t.Errorf("status = %q, want none for silent engine", s.status)
	}
	if engine.WPM() != cfg.WPM {
		t.Errorf("WPM = %d, want %d", engine.WPM(), cfg.WPM)
	}

	m := newModel(s, b, engine.WPM())
	m = press(m, spaceKey)
	deadline := time.After(2 * time.Second)
	for m.playback != narration.Playing {
		select {
		case msg := <-b.events:
			m = press(m, msg)
		case <-deadline:
			t.Fatal("silent engine never started")
		}
	}
	press(m, runeKey('s'))
}

func TestSpeakFailureShown(t *testing.T) {
	m, eng := newTestModel(sample)
	eng.speakErr = fmt.Errorf("audio-unavailable")

	m = press(m, spaceKey)
	if !strings.Contains(m.status, "audio-unavailable") {
		t.Errorf("status = %q", m.status)
	}
	if m.playback != narration.Idle {
		t.Errorf("state = %v, want idle", m.playback)
	}
}
