//go:build gui

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/metcalfc/narr/internal/log"
	"github.com/metcalfc/narr/internal/narration"
	"github.com/metcalfc/narr/internal/reader"
)

// window holds the widgets that mirror the session.
type window struct {
	*session
	wpm int

	statusLabel *widget.Label
	units       *widget.List
	play        *widget.Button
	chapters    *widget.Select

	contents []reader.TOCEntry
	toc      *widget.List
	tocPanel *fyne.Container
	split    *container.Split

	shownChapter int
	shownUnit    int
}

func newWindow(s *session, wpm int) *window {
	w := &window{session: s, wpm: wpm, shownChapter: -1, shownUnit: narration.NoUnit}

	w.statusLabel = widget.NewLabel("")
	w.statusLabel.Alignment = fyne.TextAlignCenter
	w.statusLabel.Truncation = fyne.TextTruncateEllipsis

	w.units = widget.NewList(
		func() int { return w.doc.Len() },
		func() fyne.CanvasObject {
			l := widget.NewLabel("Sentence")
			l.Truncation = fyne.TextTruncateEllipsis
			return l
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			u, _ := w.doc.Unit(id)
			label.TextStyle.Bold = id == w.current
			if id == w.current {
				label.Importance = widget.HighImportance
			} else {
				label.Importance = widget.MediumImportance
			}
			label.SetText(u.Text)
		},
	)
	w.units.OnSelected = func(id widget.ListItemID) {
		w.coord.Seek(id)
		w.units.Unselect(id)
	}

	w.play = widget.NewButtonWithIcon("Play", theme.MediaPlayIcon(), func() { w.coord.Play() })

	w.chapters = widget.NewSelect(w.book.ChapterTitles(), nil)
	w.chapters.SetSelectedIndex(w.chapter)
	w.chapters.OnChanged = func(string) {
		if i := w.chapters.SelectedIndex(); i >= 0 && i != w.chapter {
			w.loadChapter(i)
		}
	}

	w.contents = s.book.Contents()
	w.toc = widget.NewList(
		func() int { return len(w.contents) },
		func() fyne.CanvasObject {
			return container.NewVBox(widget.NewLabel("Title"), widget.NewLabel("Preview"))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			entry := w.contents[id]
			box := obj.(*fyne.Container)
			title := box.Objects[0].(*widget.Label)
			preview := box.Objects[1].(*widget.Label)

			indent := strings.Repeat("  ", entry.Level)
			title.TextStyle.Bold = entry.Chapter == w.chapter
			title.SetText(indent + entry.Title)

			text := entry.Preview
			if len(text) > 50 {
				text = text[:50] + "..."
			}
			preview.SetText(indent + text)
		},
	)
	w.toc.OnSelected = func(id widget.ListItemID) {
		w.toc.Unselect(id)
		if id < len(w.contents) {
			w.loadChapter(w.contents[id].Chapter)
			w.toggleTOC()
		}
	}
	w.tocPanel = container.NewBorder(
		widget.NewLabel("Table of Contents"),
		widget.NewLabel("Click to jump • T to close"),
		nil, nil,
		w.toc,
	)
	w.tocPanel.Hide()

	s.onChange = w.refresh
	return w
}

// toggleTOC shows or hides the contents panel.
func (w *window) toggleTOC() {
	if w.tocPanel.Visible() {
		w.tocPanel.Hide()
	} else {
		w.toc.Refresh()
		w.tocPanel.Show()
	}
	if w.split != nil {
		w.split.Refresh()
	}
}

func (w *window) content() fyne.CanvasObject {
	controls := container.NewHBox(
		widget.NewButtonWithIcon("", theme.MediaSkipPreviousIcon(), func() { w.seekOffset(-1) }),
		w.play,
		widget.NewButtonWithIcon("", theme.MediaSkipNextIcon(), func() { w.seekOffset(1) }),
		widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), func() { w.coord.Reset() }),
	)
	top := container.NewBorder(nil, nil, controls, nil, w.chapters)
	hint := widget.NewLabel("SPACE: play/pause  ←/→: sentence  N/P: chapter  T: contents  +/-: rate  R: restart  Q: quit")
	hint.Alignment = fyne.TextAlignCenter

	reading := container.NewBorder(
		container.NewVBox(top, w.statusLabel),
		hint,
		nil, nil,
		w.units,
	)
	w.split = container.NewHSplit(w.tocPanel, reading)
	w.split.Offset = 0.3
	return w.split
}

// refresh brings the widgets in line with the session. It runs on the fyne
// goroutine.
func (w *window) refresh() {
	rate := w.coord.Voice().Rate
	if rate <= 0 {
		rate = 1
	}
	current, total := w.doc.Progress(w.cursor)
	text := fmt.Sprintf("Sentence %d/%d | %d WPM x%.1f | %s", current, total, w.wpm, rate, w.stateLabel())
	if w.status != "" {
		text += " | " + w.status
	}
	w.statusLabel.SetText(text)

	if w.playback == narration.Playing {
		w.play.SetText("Pause")
		w.play.SetIcon(theme.MediaPauseIcon())
	} else {
		w.play.SetText("Play")
		w.play.SetIcon(theme.MediaPlayIcon())
	}

	if w.chapter != w.shownChapter {
		w.shownChapter = w.chapter
		if w.chapters.SelectedIndex() != w.chapter {
			w.chapters.SetSelectedIndex(w.chapter)
		}
		w.units.ScrollToTop()
	}
	if w.current != w.shownUnit {
		w.shownUnit = w.current
		if w.current >= 0 {
			w.units.ScrollTo(w.current)
		}
	}
	w.units.Refresh()
}

func (w *window) typedKey(key *fyne.KeyEvent) {
	switch key.Name {
	case fyne.KeySpace:
		w.coord.Play()
	case fyne.KeyLeft:
		w.seekOffset(-1)
	case fyne.KeyRight:
		w.seekOffset(1)
	}
}

func (w *window) typedRune(r rune) {
	switch r {
	case 'n', 'N':
		if w.chapter < len(w.book.Chapters)-1 {
			w.loadChapter(w.chapter + 1)
		}
	case 'p', 'P':
		if w.chapter > 0 {
			w.loadChapter(w.chapter - 1)
		}
	case 't', 'T':
		w.toggleTOC()
	case 's', 'S':
		w.coord.Reset()
	case 'r', 'R':
		w.restart()
	case '+', '=':
		w.adjustRate(rateStep)
	case '-':
		w.adjustRate(-rateStep)
	}
}

func main() {
	opts := parseFlags("narr-gui", "Narr - Book Narrator (GUI)")

	if opts.showVersion {
		fmt.Printf("narr-gui %s (commit: %s, built: %s)\n", version, commit, date)
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
		fmt.Fprintln(os.Stderr, "Try: narr-gui -h")
		os.Exit(1)
	}
	if !hasText(book) {
		fmt.Fprintln(os.Stderr, "Error: No text to read.")
		os.Exit(1)
	}

	// Engine events and seek continuations are handed to the fyne goroutine,
	// which is the only one touching the coordinator once the window is up.
	var s *session
	sink := func(ev narration.Event) {
		fyne.Do(func() { s.coord.Handle(ev) })
	}
	sched := narration.SchedulerFunc(func(d time.Duration, fn func()) {
		time.AfterFunc(d, func() { fyne.Do(fn) })
	})

	a := app.New()
	s, engine := startSession(opts, cfg, book, sink, sched)

	win := a.NewWindow("narr - " + book.Title)
	ui := newWindow(s, engine.WPM())
	if opts.toc {
		ui.toggleTOC()
	}

	quit := func() {
		s.savePosition()
		s.coord.Reset()
	}

	win.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		if key.Name == fyne.KeyQ || key.Name == fyne.KeyEscape {
			quit()
			a.Quit()
			return
		}
		ui.typedKey(key)
	})
	win.Canvas().SetOnTypedRune(ui.typedRune)
	win.SetOnClosed(quit)

	win.SetContent(ui.content())
	win.Resize(fyne.NewSize(800, 600))
	ui.refresh()
	win.ShowAndRun()
}
