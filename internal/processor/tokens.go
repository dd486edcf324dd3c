// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package processor

import (
	"regexp"
	"strings"
)

// wordsPerToken is the rough word/token ratio of English prose.
const wordsPerToken = 0.75

var (
	blankLines = regexp.MustCompile(`\n\s*\n\s*\n+`)
	spaceRuns  = regexp.MustCompile(`[ \t]+`)
)

// EstimateTokens approximates the token count of text from its whitespace
// separated word count. The result is never below 1, even for empty text.
func EstimateTokens(text string) int {
	n := int(float64(len(strings.Fields(text))) / wordsPerToken)
	if n < 1 {
		return 1
	}
	return n
}

// CleanText collapses runs of three or more line breaks into a single blank
// line, squeezes spaces and tabs, and trims the result.
func CleanText(text string) string {
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
