package reader

// TOCEntry represents a single entry in a table of contents
type TOCEntry struct {
	Title   string
	Preview string
	Chapter int
	Level   int
}

// Chapter is one narratable section of a book
type Chapter struct {
	Title string
	Text  string
}

// TOCProvider is an optional interface for formats that support TOC extraction
type TOCProvider interface {
	TOC(filename string) ([]TOCEntry, error)
}

// ChapterExtractor is an optional interface for chapter-aware extraction
type ChapterExtractor interface {
	ExtractChapters(filename string) ([]Chapter, error)
}
