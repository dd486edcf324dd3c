// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package processor

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxInlineHeader caps the header of a section that fits on a single line.
const maxInlineHeader = 80

// sectionBoundary matches the start of a legal heading at the beginning of a
// line. The whole pattern is case-insensitive, so the bare numbered form also
// fires on lower-case prose that starts with a number.
var sectionBoundary = regexp.MustCompile(`(?im)^[ \t]*(?:Section\s+\d+(?:\.\d+)*|Article\s+[IVXLC]+|Clause\s+\d+(?:\.\d+)*|EXHIBIT\s+[A-Z]+|SCHEDULE\s+\w+|[0-9]+(?:\.[0-9]+)*\s+[A-Z][A-Z ]{3,})`)

// Section is a contiguous region of a document that starts at a heading.
type Section struct {
	// Header is the heading line; empty when HasHeader is false.
	Header    string
	HasHeader bool
	// Body is the trimmed region text, header line included.
	Body string
	// Start and End are byte offsets of the region in the source text.
	Start int
	End   int
	Index int
}

// SplitSections cuts text at legal heading boundaries. Text before the first
// heading becomes a header-less section. When no heading is found the whole
// input is returned as a single header-less section.
func SplitSections(text string) []Section {
	matches := sectionBoundary.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []Section{{
			Body:  strings.TrimSpace(text),
			Start: 0,
			End:   len(text),
		}}
	}

	starts := make([]int, 0, len(matches)+1)
	if matches[0][0] > 0 {
		starts = append(starts, 0)
	}
	for _, m := range matches {
		starts = append(starts, m[0])
	}

	sections := make([]Section, 0, len(starts))
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}

		body := strings.TrimSpace(text[start:end])
		if body == "" {
			continue
		}

		sec := Section{
			Body:  body,
			Start: start,
			End:   end,
			Index: len(sections),
		}
		// Only regions opened by a heading match carry a header.
		if start != 0 || matches[0][0] == 0 {
			sec.Header = headerOf(body)
			sec.HasHeader = true
		}
		sections = append(sections, sec)
	}

	if len(sections) == 0 {
		return []Section{{Start: 0, End: len(text)}}
	}
	return sections
}

func headerOf(body string) string {
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		return strings.TrimSpace(body[:i])
	}
	if utf8.RuneCountInString(body) <= maxInlineHeader {
		return body
	}
	runes := []rune(body)
	return string(runes[:maxInlineHeader])
}
