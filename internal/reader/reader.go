// Package reader turns books into segmented, narratable documents.
package reader

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Document is one chapter split into sentence units.
type Document struct {
	Title string
	Text  string // normalized
	Units []Unit
}

// NewDocument normalizes and segments text.
func NewDocument(title, text string) *Document {
	return &Document{
		Title: title,
		Text:  Normalize(text),
		Units: Segment(text),
	}
}

// Len returns the number of units.
func (d *Document) Len() int {
	return len(d.Units)
}

// Unit returns the unit at i.
func (d *Document) Unit(i int) (Unit, bool) {
	if i >= 0 && i < len(d.Units) {
		return d.Units[i], true
	}
	return Unit{}, false
}

// Prev returns the index of the unit before i, clamped to the first unit.
func (d *Document) Prev(i int) int {
	if i <= 0 {
		return 0
	}
	if i > len(d.Units) {
		return len(d.Units) - 1
	}
	return i - 1
}

// Next returns the index of the unit after i, clamped to the last unit.
func (d *Document) Next(i int) int {
	if len(d.Units) == 0 {
		return 0
	}
	if i < 0 {
		return 0
	}
	if i+1 >= len(d.Units) {
		return len(d.Units) - 1
	}
	return i + 1
}

// Progress returns the 1-based position of i and the unit count.
func (d *Document) Progress(i int) (current, total int) {
	if i < 0 {
		return 0, len(d.Units)
	}
	return i + 1, len(d.Units)
}

// Book is the chapter list of an opened file.
type Book struct {
	Title    string
	Chapters []Chapter
	TOC      []TOCEntry
}

// FromText wraps plain text as a single-chapter book.
func FromText(title, text string) *Book {
	return &Book{
		Title:    title,
		Chapters: []Chapter{{Title: title, Text: text}},
	}
}

// Open reads filename into a Book, using chapter-aware extraction when the
// format supports it and plain text extraction otherwise.
func Open(filename string) (*Book, error) {
	title := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	book := &Book{Title: title}

	f := lookup(filename)
	if ce, ok := f.(ChapterExtractor); ok {
		chapters, err := ce.ExtractChapters(filename)
		if err == nil && len(chapters) > 0 {
			book.Chapters = chapters
		}
	}
	if tp, ok := f.(TOCProvider); ok && len(book.Chapters) > 0 {
		if toc, err := tp.TOC(filename); err == nil {
			book.TOC = toc
		}
	}

	if len(book.Chapters) == 0 {
		text, err := ExtractText(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filename, err)
		}
		book.Chapters = []Chapter{{Title: title, Text: text}}
	}

	return book, nil
}

// Document segments chapter i. Out of range indices are clamped.
func (b *Book) Document(i int) *Document {
	if len(b.Chapters) == 0 {
		return &Document{Title: b.Title}
	}
	i = b.Clamp(i)
	ch := b.Chapters[i]
	return NewDocument(ch.Title, ch.Text)
}

// Clamp limits i to a valid chapter index.
func (b *Book) Clamp(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(b.Chapters) {
		return len(b.Chapters) - 1
	}
	return i
}

// ChapterTitles returns the chapter titles in order.
func (b *Book) ChapterTitles() []string {
	titles := make([]string, len(b.Chapters))
	for i, ch := range b.Chapters {
		titles[i] = ch.Title
	}
	return titles
}

// Contents returns the table of contents, or one entry per chapter when the
// format has none.
func (b *Book) Contents() []TOCEntry {
	if len(b.TOC) > 0 {
		return b.TOC
	}
	entries := make([]TOCEntry, len(b.Chapters))
	for i, ch := range b.Chapters {
		entries[i] = TOCEntry{Title: ch.Title, Chapter: i}
	}
	return entries
}
