package reader

import (
	"strings"
	"testing"
)

func TestExtractTextFromHTML(t *testing.T) {
	htmlContent := `
	<html>
		<head><title>Test</title><style>p { color: red }</style></head>
		<body>
			<h1>Chapter 1</h1>
			<p>This is the <b>first</b> paragraph.</p>
			<p>
				This is the second paragraph
				with a newline.
			</p>
			<div>Some <span>nested</span> text.</div>
			<script>var x = 1;</script>
		</body>
	</html>
	`

	expectedWords := []string{"Chapter", "1", "This", "is", "the", "first", "paragraph.", "This", "is", "the", "second", "paragraph", "with", "a", "newline.", "Some", "nested", "text."}

	text := extractTextFromHTML(htmlContent)
	words := strings.Fields(text)

	if len(words) != len(expectedWords) {
		t.Errorf("Expected %d words, got %d: %v", len(expectedWords), len(words), words)
	}

	for i, word := range words {
		if i < len(expectedWords) && word != expectedWords[i] {
			t.Errorf("Word %d: expected %q, got %q", i, expectedWords[i], word)
		}
	}
}

func TestExtractTextFromHTMLBlocks(t *testing.T) {
	text := extractTextFromHTML(`<body><h2>Heading</h2><p>first line</p><p>second line</p></body>`)

	units := Segment(text)
	expected := []string{"Heading", "first line", "second line"}
	if len(units) != len(expected) {
		t.Fatalf("expected %d units, got %d: %+v", len(expected), len(units), units)
	}
	for i, u := range units {
		if u.Text != expected[i] {
			t.Errorf("unit %d = %q, want %q", i, u.Text, expected[i])
		}
	}
}
