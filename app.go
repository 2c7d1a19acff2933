package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/metcalfc/narr/internal/config"
	"github.com/metcalfc/narr/internal/log"
	"github.com/metcalfc/narr/internal/narration"
	"github.com/metcalfc/narr/internal/reader"
	"github.com/metcalfc/narr/internal/speech"
	"github.com/metcalfc/narr/internal/state"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	minRate  = 0.5
	maxRate  = 3.0
	rateStep = 0.1
)

type options struct {
	configPath  string
	logPath     string
	wpm         int
	voice       string
	lang        string
	rate        float64
	chapter     int
	fresh       bool
	toc         bool
	silent      bool
	debug       bool
	showVersion bool
	file        string
}

func parseFlags(name, banner string) options {
	var opts options
	flag.StringVar(&opts.configPath, "c", config.Path(), "Config file")
	flag.StringVar(&opts.logPath, "logpath", "", "Log directory (default: $XDG_STATE_HOME/narr)")
	flag.IntVar(&opts.wpm, "w", 0, "Speaking rate in words per minute (default from config: 175)")
	flag.StringVar(&opts.voice, "voice", "", "Voice name passed to the speech command")
	flag.StringVar(&opts.lang, "lang", "", "Narration language")
	flag.Float64Var(&opts.rate, "rate", 0, "Rate multiplier")
	flag.IntVar(&opts.chapter, "chapter", -1, "Start at chapter N (1-based)")
	flag.BoolVar(&opts.fresh, "fresh", false, "Ignore saved reading position")
	flag.BoolVar(&opts.toc, "toc", false, "Show table of contents at startup")
	flag.BoolVar(&opts.silent, "silent", false, "Pace the cursor without audio")
	flag.BoolVar(&opts.debug, "debug", false, "Verbose logging")
	flag.BoolVar(&opts.showVersion, "v", false, "Show version information")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\n", banner)
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s [options] [file]\n\n", name)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s book.epub               Narrate from the first chapter\n", name)
		fmt.Fprintf(os.Stderr, "  %s -chapter 3 notes.md     Start at chapter 3\n", name)
		fmt.Fprintf(os.Stderr, "  %s -toc book.epub          Show contents at startup\n", name)
		fmt.Fprintf(os.Stderr, "  %s -w 220 -voice en-gb f.txt\n", name)
		fmt.Fprintf(os.Stderr, "  cat file.txt | %s          Narrate stdin\n", name)
		fmt.Fprintf(os.Stderr, "\nSupported formats: %s, plain text\n", strings.Join(reader.SupportedFormats(), ", "))
	}
	flag.Parse()
	if flag.NArg() > 0 {
		opts.file = flag.Arg(0)
	}
	return opts
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if opts.wpm > 0 {
		cfg.WPM = opts.wpm
	}
	if opts.voice != "" {
		cfg.Voice = opts.voice
	}
	if opts.lang != "" {
		cfg.Lang = opts.lang
	}
	if opts.rate > 0 {
		cfg.Rate = opts.rate
	}
	if opts.silent {
		cfg.Silent = true
	}
	if opts.logPath != "" {
		cfg.LogPath = opts.logPath
	}
	return cfg, cfg.Validate()
}

func setupLogging(cfg config.Config, debug bool) {
	dir, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		return
	}
	log.SetDir(dir)
	if err := log.Init(debug); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
}

// loadBook opens the file argument, or reads stdin when there is none.
func loadBook(opts options, stdin *os.File) (*reader.Book, error) {
	if opts.file != "" {
		return reader.Open(opts.file)
	}

	stat, _ := stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return nil, errors.New("no input provided. Provide a file or pipe text to stdin")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return reader.FromText("stdin", string(data)), nil
}

// hasText reports whether any chapter has something to narrate.
func hasText(book *reader.Book) bool {
	for _, ch := range book.Chapters {
		if strings.TrimSpace(ch.Text) != "" {
			return true
		}
	}
	return false
}

func voiceFromConfig(cfg config.Config) narration.Voice {
	return narration.Voice{
		Lang:  cfg.Lang,
		Name:  cfg.Voice,
		Rate:  cfg.Rate,
		Pitch: cfg.Pitch,
	}
}

// newEngine builds the speech engine and waits for its voices. When speech
// is unavailable the error is returned alongside a silent engine.
func newEngine(cfg config.Config, sink speech.Sink) (*speech.Paced, error) {
	opts := speech.Options{WPM: cfg.WPM, Logger: log.Logger()}
	if cfg.Silent {
		return speech.NewPaced(sink, opts), nil
	}

	opts.Speaker = speech.NewCommandSpeaker(cfg.SpeakCommand)
	engine := speech.NewPaced(sink, opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ReadyTimeout.Duration+time.Second)
	defer cancel()
	err := narration.WaitReady(ctx, engine, cfg.ReadyTimeout.Duration)
	if err == nil {
		return engine, nil
	}

	log.Logger().Warn().Err(err).Str("command", cfg.SpeakCommand).Msg("falling back to silent pacing")
	opts.Speaker = nil
	return speech.NewPaced(sink, opts), err
}

// session is the narration state shared by the front ends. It receives the
// coordinator's notifications.
type session struct {
	book    *reader.Book
	chapter int
	doc     *reader.Document
	coord   *narration.Coordinator

	store    *state.StateStore
	fileHash string

	current  int
	lastUnit int
	cursor   int
	playback narration.State
	status   string

	onChange func()
}

func newSession(book *reader.Book) *session {
	return &session{
		book:     book,
		current:  narration.NoUnit,
		lastUnit: narration.NoUnit,
	}
}

func (s *session) UnitChanged(index int) {
	s.current = index
	if index >= 0 {
		s.lastUnit = index
		s.cursor = index
	}
	s.changed()
}

func (s *session) StateChanged(st narration.State) {
	s.playback = st
	if st == narration.Playing {
		s.status = ""
	}
	s.changed()
}

func (s *session) Error(message string) {
	s.status = message
	log.Warn(message)
	s.changed()
}

func (s *session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// loadChapter segments chapter i and hands it to the coordinator.
func (s *session) loadChapter(i int) {
	s.chapter = s.book.Clamp(i)
	s.doc = s.book.Document(s.chapter)
	s.cursor = 0
	s.lastUnit = narration.NoUnit
	s.status = ""
	s.coord.Load(s.doc.Units)
	log.Logger().Info().Int("chapter", s.chapter).Int("units", s.doc.Len()).Msg("chapter loaded")
	s.changed()
}

// restore picks the starting chapter and unit: flag, saved position, then
// the first chapter that is not front matter.
func (s *session) restore(opts options) {
	chapter := reader.FirstContentChapter(s.book.Chapters)
	unit := -1

	if s.store != nil && s.fileHash != "" && !opts.fresh {
		if pos, ok := s.store.GetPosition(s.fileHash); ok && pos.Chapter < len(s.book.Chapters) {
			chapter, unit = pos.Chapter, pos.Unit
		}
	}
	if opts.chapter > 0 {
		chapter, unit = opts.chapter-1, -1
	}

	s.loadChapter(chapter)
	if unit >= 0 && unit < s.doc.Len() {
		s.coord.Cue(unit)
	}
}

func (s *session) openStore(filename string) {
	if filename == "" {
		return
	}
	store, err := state.NewStateStore()
	if err != nil {
		log.Logger().Warn().Err(err).Msg("state store unavailable")
		return
	}
	hash, err := state.ComputeHash(filename)
	if err != nil {
		return
	}
	s.store = store
	s.fileHash = hash
}

func (s *session) savePosition() {
	if s.store == nil || s.fileHash == "" {
		return
	}
	unit := s.lastUnit
	if unit < 0 {
		unit = 0
	}
	if err := s.store.SetPosition(s.fileHash, state.ReadingState{Chapter: s.chapter, Unit: unit}); err != nil {
		log.Logger().Warn().Err(err).Msg("failed to save position")
	}
}

// restart clears the saved position and returns to the first unit.
func (s *session) restart() {
	s.coord.Reset()
	s.coord.Cue(0)
	if s.store != nil && s.fileHash != "" {
		s.store.Clear(s.fileHash)
	}
}

// adjustRate changes the rate used by the next narration request.
func (s *session) adjustRate(delta float64) {
	v := s.coord.Voice()
	if v.Rate <= 0 {
		v.Rate = 1
	}
	v.Rate += delta
	if v.Rate < minRate {
		v.Rate = minRate
	}
	if v.Rate > maxRate {
		v.Rate = maxRate
	}
	s.coord.SetVoice(v)
	s.changed()
}

// seekOffset seeks relative to the current unit, or the cursor when idle.
func (s *session) seekOffset(delta int) {
	from := s.current
	if from < 0 {
		from = s.cursor
	}
	if delta < 0 {
		s.coord.Seek(s.doc.Prev(from))
	} else {
		s.coord.Seek(s.doc.Next(from))
	}
}

func (s *session) stateLabel() string {
	switch s.playback {
	case narration.Playing:
		return "PLAYING"
	case narration.Paused:
		return "PAUSED"
	}
	return "STOPPED"
}

// startSession builds the engine and coordinator and restores the reading
// position. When speech is unavailable this is reported once on the status
// line and narration continues with silent pacing.
func startSession(opts options, cfg config.Config, book *reader.Book, sink speech.Sink, sched narration.Scheduler) (*session, *speech.Paced) {
	s := newSession(book)
	s.openStore(opts.file)

	engine, err := newEngine(cfg, sink)
	s.coord = narration.New(engine, narration.Options{
		Voice:     voiceFromConfig(cfg),
		SeekDelay: cfg.SeekDelay.Duration,
		Scheduler: sched,
		Listener:  s,
		Logger:    log.Logger(),
	})
	s.restore(opts)
	log.Info(fmt.Sprintf("narrating %q from chapter %d of %d", book.Title, s.chapter+1, len(book.Chapters)))
	if err != nil {
		s.status = "speech unavailable, pacing silently: " + err.Error()
	}
	return s, engine
}
