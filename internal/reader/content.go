package reader

import "strings"

// frontMatterWords is the word count under which a chapter containing a
// front matter keyword is treated as front matter.
const frontMatterWords = 150

var frontMatterTitles = []string{
	"cover",
	"title page",
	"copyright",
	"contents",
	"dedication",
	"half title",
}

var frontMatterText = []string{
	"cover",
	"copyright",
	"all rights reserved",
	"isbn",
	"table of contents",
	"published by",
}

// FirstContentChapter returns the index of the first chapter that does not
// look like front matter (cover, title page, copyright notice). This is a
// heuristic: a very short first chapter that mentions one of the keywords is
// skipped too. Returns 0 when every chapter looks like front matter.
func FirstContentChapter(chapters []Chapter) int {
	for i, ch := range chapters {
		if !LikelyFrontMatter(ch) {
			return i
		}
	}
	return 0
}

// LikelyFrontMatter reports whether ch looks like a cover or similar page.
func LikelyFrontMatter(ch Chapter) bool {
	words := strings.Fields(ch.Text)
	if len(words) == 0 {
		return true
	}

	title := strings.ToLower(ch.Title)
	for _, kw := range frontMatterTitles {
		if strings.Contains(title, kw) {
			return true
		}
	}

	if len(words) >= frontMatterWords {
		return false
	}
	text := strings.ToLower(strings.Join(words, " "))
	for _, kw := range frontMatterText {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
