package reader

import (
	"regexp"
	"strings"
)

// Unit is one sentence (or line) of narration text.
// Start and End are byte offsets into the normalized text, half-open.
type Unit struct {
	Text  string
	Start int
	End   int
}

var (
	// terminatorRegex matches a group of sentence terminators followed by whitespace.
	terminatorRegex = regexp.MustCompile(`[.!?]+\s`)
	lineBreakRegex  = regexp.MustCompile(`[\r\n]+`)
)

// Normalize collapses whitespace runs to a single space and trims the ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Segment splits text into sentence units with offsets into Normalize(text).
//
// A sentence ends at one or more of '.', '!' or '?' followed by whitespace.
// Abbreviations and decimals are not special-cased. When no terminator is
// found the raw text is split on line breaks instead, and when there are no
// line breaks either the whole text becomes a single unit.
func Segment(text string) []Unit {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}

	matches := terminatorRegex.FindAllStringIndex(norm, -1)
	if len(matches) == 0 {
		return segmentLines(text, norm)
	}

	var units []Unit
	cut := 0
	for _, m := range matches {
		// The trailing whitespace byte is not part of the sentence.
		units = appendUnit(units, norm, cut, m[1]-1)
		cut = m[1]
	}
	if cut < len(norm) {
		units = appendUnit(units, norm, cut, len(norm))
	}
	return units
}

// segmentLines is the fallback for text without sentence terminators.
func segmentLines(raw, norm string) []Unit {
	if !lineBreakRegex.MatchString(raw) {
		return []Unit{{Text: norm, Start: 0, End: len(norm)}}
	}

	var units []Unit
	from := 0
	for _, line := range lineBreakRegex.Split(raw, -1) {
		line = Normalize(line)
		if line == "" {
			continue
		}
		idx := strings.Index(norm[from:], line)
		if idx < 0 {
			continue
		}
		start := from + idx
		units = append(units, Unit{Text: line, Start: start, End: start + len(line)})
		from = start + len(line)
	}
	if len(units) == 0 {
		return []Unit{{Text: norm, Start: 0, End: len(norm)}}
	}
	return units
}

// appendUnit trims norm[start:end] and appends it unless empty.
func appendUnit(units []Unit, norm string, start, end int) []Unit {
	for start < end && norm[start] == ' ' {
		start++
	}
	for end > start && norm[end-1] == ' ' {
		end--
	}
	if start >= end {
		return units
	}
	return append(units, Unit{Text: norm[start:end], Start: start, End: end})
}

// JoinUnits concatenates unit texts separated by a single space and returns
// the byte offset at which each unit starts in the result.
func JoinUnits(units []Unit) (string, []int) {
	var sb strings.Builder
	starts := make([]int, len(units))
	for i, u := range units {
		if i > 0 {
			sb.WriteByte(' ')
		}
		starts[i] = sb.Len()
		sb.WriteString(u.Text)
	}
	return sb.String(), starts
}
