package reader

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// MarkdownFormat implements Format for Markdown files.
type MarkdownFormat struct{}

func init() {
	Register(&MarkdownFormat{})
}

func (f *MarkdownFormat) Name() string         { return "Markdown" }
func (f *MarkdownFormat) Extensions() []string { return []string{".md", ".markdown"} }

func (f *MarkdownFormat) Extract(filename string) (string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// headerRegex matches markdown headers (# to ######)
var headerRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

type mdSection struct {
	Chapter
	level  int
	header bool
}

// parseMarkdown splits a markdown file into one section per header. Text
// before the first header becomes an untitled "Document" section.
func parseMarkdown(filename string) ([]mdSection, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var sections []mdSection
	current := mdSection{Chapter: Chapter{Title: "Document"}}
	var lines []string

	flush := func() {
		text := strings.Join(lines, "\n")
		if strings.TrimSpace(text) != "" {
			current.Text = text
			sections = append(sections, current)
		}
		lines = nil
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		if match := headerRegex.FindStringSubmatch(line); match != nil {
			flush()
			title := strings.TrimSpace(match[2])
			current = mdSection{
				Chapter: Chapter{Title: title},
				level:   len(match[1]) - 1, // h1 = level 0, h2 = level 1, etc.
				header:  true,
			}
			// The heading is read aloud as its own line.
			lines = append(lines, title)
			continue
		}

		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	return sections, nil
}

// TOC extracts the table of contents from a Markdown file by parsing headers.
func (f *MarkdownFormat) TOC(filename string) ([]TOCEntry, error) {
	sections, err := parseMarkdown(filename)
	if err != nil {
		return nil, err
	}

	var entries []TOCEntry
	for i, s := range sections {
		if !s.header {
			continue
		}
		entries = append(entries, TOCEntry{
			Title:   s.Title,
			Preview: preview(s.Text, s.Title),
			Chapter: i,
			Level:   s.level,
		})
	}
	return entries, nil
}

// ExtractChapters extracts one chapter per header.
func (f *MarkdownFormat) ExtractChapters(filename string) ([]Chapter, error) {
	sections, err := parseMarkdown(filename)
	if err != nil {
		return nil, err
	}

	chapters := make([]Chapter, len(sections))
	for i, s := range sections {
		chapters[i] = s.Chapter
	}
	return chapters, nil
}

// preview returns the first words of text after the title line.
func preview(text, title string) string {
	words := strings.Fields(strings.TrimPrefix(text, title))
	if len(words) == 0 {
		return ""
	}
	if len(words) > 10 {
		return strings.Join(words[:10], " ") + "..."
	}
	return strings.Join(words, " ")
}
