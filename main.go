//go:build !gui

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/metcalfc/narr/internal/log"
	"github.com/metcalfc/narr/internal/narration"
)

var (
	currentStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFAA00"))

	unitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	playingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))
)

// engineMsg carries an engine event into the bubbletea loop.
type engineMsg narration.Event

// continueMsg runs a scheduled coordinator continuation on the loop.
type continueMsg func()

// bridge funnels engine events and timers into a single channel that the
// program drains one message at a time.
type bridge struct {
	events chan tea.Msg
}

func newBridge() *bridge {
	return &bridge{events: make(chan tea.Msg, 256)}
}

func (b *bridge) sink(ev narration.Event) {
	b.events <- engineMsg(ev)
}

func (b *bridge) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		b.events <- continueMsg(fn)
	})
}

func (b *bridge) wait() tea.Cmd {
	return func() tea.Msg {
		return <-b.events
	}
}

type keyMap struct {
	Play        key.Binding
	Seek        key.Binding
	Prev        key.Binding
	Next        key.Binding
	Up          key.Binding
	Down        key.Binding
	NextChapter key.Binding
	PrevChapter key.Binding
	Faster      key.Binding
	Slower      key.Binding
	Stop        key.Binding
	Restart     key.Binding
	TOC         key.Binding
	Close       key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Seek, k.Prev, k.Next, k.Stop, k.TOC, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Seek, k.Stop, k.Restart},
		{k.Prev, k.Next, k.Up, k.Down},
		{k.NextChapter, k.PrevChapter, k.Faster, k.Slower},
		{k.TOC, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Play:        key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	Seek:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "read from cursor")),
	Prev:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev sentence")),
	Next:        key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next sentence")),
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "cursor up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "cursor down")),
	NextChapter: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next chapter")),
	PrevChapter: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev chapter")),
	Faster:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
	Slower:      key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "slower")),
	Stop:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
	Restart:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
	TOC:         key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "contents")),
	Close:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close contents")),
	Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:        key.NewBinding(key.WithKeys("q", "Q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type model struct {
	*session
	bridge   *bridge
	wpm      int
	viewport viewport.Model
	help     help.Model
	quitting bool
	width    int
	height   int

	// tocOpen shows the contents list in place of the text.
	tocOpen   bool
	tocCursor int
}

func newModel(s *session, b *bridge, wpm int) model {
	m := model{
		session:  s,
		bridge:   b,
		wpm:      wpm,
		viewport: viewport.New(80, 21),
		help:     help.New(),
		width:    80,
		height:   24,
	}
	m.syncViewport()
	return m
}

func (m model) Init() tea.Cmd {
	return m.bridge.wait()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.handleKey(msg) {
			m.quitting = true
			return m, tea.Quit
		}
		m.syncViewport()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.syncViewport()
		return m, nil

	case engineMsg:
		m.coord.Handle(narration.Event(msg))
		m.syncViewport()
		return m, m.bridge.wait()

	case continueMsg:
		msg()
		m.syncViewport()
		return m, m.bridge.wait()
	}

	return m, nil
}

// handleKey applies a key press and reports whether the program should quit.
func (m *model) handleKey(msg tea.KeyMsg) bool {
	if m.tocOpen && !key.Matches(msg, keys.Quit) {
		m.handleTOCKey(msg)
		return false
	}

	switch {
	case key.Matches(msg, keys.Play):
		m.coord.Play()
	case key.Matches(msg, keys.Seek):
		m.coord.Seek(m.cursor)
	case key.Matches(msg, keys.Prev):
		m.seekOffset(-1)
	case key.Matches(msg, keys.Next):
		m.seekOffset(1)
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < m.doc.Len()-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.NextChapter):
		if m.chapter < len(m.book.Chapters)-1 {
			m.loadChapter(m.chapter + 1)
		}
	case key.Matches(msg, keys.PrevChapter):
		if m.chapter > 0 {
			m.loadChapter(m.chapter - 1)
		}
	case key.Matches(msg, keys.Faster):
		m.adjustRate(rateStep)
	case key.Matches(msg, keys.Slower):
		m.adjustRate(-rateStep)
	case key.Matches(msg, keys.Stop):
		m.coord.Reset()
	case key.Matches(msg, keys.Restart):
		m.restart()
	case key.Matches(msg, keys.TOC):
		m.openTOC()
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, keys.Quit):
		m.savePosition()
		m.coord.Reset()
		return true
	}
	return false
}

// openTOC shows the contents with the current chapter's entry selected.
func (m *model) openTOC() {
	entries := m.book.Contents()
	if len(entries) == 0 {
		return
	}
	m.tocOpen = true
	m.tocCursor = 0
	for i, e := range entries {
		if e.Chapter == m.chapter {
			m.tocCursor = i
			break
		}
	}
}

func (m *model) handleTOCKey(msg tea.KeyMsg) {
	entries := m.book.Contents()
	switch {
	case key.Matches(msg, keys.Up):
		if m.tocCursor > 0 {
			m.tocCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.tocCursor < len(entries)-1 {
			m.tocCursor++
		}
	case key.Matches(msg, keys.Seek):
		m.tocOpen = false
		if m.tocCursor < len(entries) {
			m.loadChapter(entries[m.tocCursor].Chapter)
		}
	case key.Matches(msg, keys.TOC), key.Matches(msg, keys.Close):
		m.tocOpen = false
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
}

// renderTOC lists the contents entries that fit in height lines, keeping
// the cursor in view.
func (m model) renderTOC(height int) string {
	entries := m.book.Contents()
	lines := []string{currentStyle.Render("Table of Contents")}

	rows := height - 1
	if rows < 1 {
		rows = 1
	}
	start := m.tocCursor - rows/2
	if start > len(entries)-rows {
		start = len(entries) - rows
	}
	if start < 0 {
		start = 0
	}
	end := start + rows
	if end > len(entries) {
		end = len(entries)
	}

	for i := start; i < end; i++ {
		e := entries[i]
		marker := "  "
		if i == m.tocCursor {
			marker = cursorStyle.Render("> ")
		}
		style := unitStyle
		if e.Chapter == m.chapter {
			style = currentStyle
		}
		lines = append(lines, marker+strings.Repeat("  ", e.Level)+style.Render(e.Title))
	}
	return strings.Join(lines, "\n")
}

// renderUnits lays out one block per unit and returns the line each starts on.
func (m model) renderUnits() (string, []int) {
	width := m.width - 4
	if width < 20 {
		width = 20
	}

	blocks := make([]string, m.doc.Len())
	lines := make([]int, m.doc.Len())
	line := 0
	for i, u := range m.doc.Units {
		marker := "  "
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
		}
		style := unitStyle
		if i == m.current {
			style = currentStyle
		}
		block := lipgloss.JoinHorizontal(lipgloss.Top, marker, style.Width(width).Render(u.Text))
		blocks[i] = block
		lines[i] = line
		line += lipgloss.Height(block)
	}
	return strings.Join(blocks, "\n"), lines
}

// syncViewport re-renders the units and scrolls the active one into view.
func (m *model) syncViewport() {
	statusLines := 1
	helpLines := lipgloss.Height(m.help.View(keys))
	m.viewport.Width = m.width
	m.viewport.Height = m.height - statusLines - helpLines
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}

	content, lines := m.renderUnits()
	m.viewport.SetContent(content)

	target := m.current
	if target < 0 {
		target = m.cursor
	}
	if target < 0 || target >= len(lines) {
		return
	}
	top := lines[target]
	if top < m.viewport.YOffset || top >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(top - m.viewport.Height/3)
	}
}

func (m model) statusLine() string {
	current, total := m.doc.Progress(m.cursor)
	title := m.doc.Title
	if title == "" {
		title = m.book.Title
	}

	label := m.stateLabel()
	switch m.playback {
	case narration.Playing:
		label = playingStyle.Render(label)
	case narration.Paused:
		label = pausedStyle.Render(label)
	}

	rate := m.coord.Voice().Rate
	if rate <= 0 {
		rate = 1
	}
	status := statusStyle.Render(fmt.Sprintf("Ch %d/%d: %s | Sentence %d/%d | %d WPM x%.1f |",
		m.chapter+1, len(m.book.Chapters), title, current, total, m.wpm, rate))
	status += " " + label
	if m.status != "" {
		status += "  " + errorStyle.Render(m.status)
	}
	return status
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if m.tocOpen {
		return m.statusLine() + "\n" + m.renderTOC(m.viewport.Height) + "\n" + m.help.View(keys)
	}
	if m.doc.Len() == 0 {
		return m.statusLine() + "\n\n  Nothing to narrate in this chapter.\n\n" + m.help.View(keys)
	}

	var sb strings.Builder
	sb.WriteString(m.statusLine())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.help.View(keys))
	return sb.String()
}

func main() {
	opts := parseFlags("narr", "Narr - Terminal Book Narrator")

	if opts.showVersion {
		fmt.Printf("narr %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg, opts.debug)
	defer log.Close()

	book, err := loadBook(opts, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Try: narr -h")
		os.Exit(1)
	}
	if !hasText(book) {
		fmt.Fprintln(os.Stderr, "Error: No text to read.")
		os.Exit(1)
	}

	b := newBridge()
	s, engine := startSession(opts, cfg, book, b.sink, b)

	programOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.file == "" {
		programOpts = append(programOpts, tea.WithInputTTY())
	}
	m := newModel(s, b, engine.WPM())
	if opts.toc {
		m.openTOC()
	}
	p := tea.NewProgram(m, programOpts...)

	if _, err := p.Run(); err != nil {
		log.Errorf("tui: %v", err)
		log.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
