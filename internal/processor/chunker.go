// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package processor

import (
	"regexp"
	"strings"
)

const (
	// ShortSectionTokens is the size at or below which a section is kept whole.
	ShortSectionTokens = 750
	// flushSlack is how far a buffer may grow past the max target before it
	// is flushed regardless of part boundaries.
	flushSlack = 200

	defaultMinTokens  = 300
	defaultMaxTokens  = 700
	defaultMinOverlap = 50
	defaultMaxOverlap = 150
)

// clauseBoundary matches enumerated clause markers at the start of a line:
// (a), (12), 1.2, 1), iv).
var clauseBoundary = regexp.MustCompile(`(?m)^[ \t]*(?:\([a-zA-Z0-9]+\)|\d+\.\d+|\d+\)|[ivxlcdm]+\))\s+`)

// Chunk is one retrievable unit of a document.
type Chunk struct {
	Text          string `json:"text"`
	Source        string `json:"source"`
	SectionHeader string `json:"section_header,omitempty"`
	SectionIndex  int    `json:"section_index"`
	TotalSections int    `json:"total_sections"`
	Position      int    `json:"clause_index"`
	Tokens        int    `json:"chunk_tokens"`
	Type          string `json:"chunk_type"`
}

// Chunker splits section bodies into token-bounded, overlapping chunks.
// A Chunker is immutable after construction and safe for concurrent use.
type Chunker struct {
	minTokens  int
	maxTokens  int
	minOverlap int
	maxOverlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithTargetTokens sets the preferred chunk size range. Non-positive or
// inverted bounds are ignored.
func WithTargetTokens(min, max int) Option {
	return func(c *Chunker) {
		if min > 0 && max >= min {
			c.minTokens = min
			c.maxTokens = max
		}
	}
}

// WithOverlap sets the overlap range in words. Only the lower bound is used
// as the carried tail; the upper bound limits it.
func WithOverlap(min, max int) Option {
	return func(c *Chunker) {
		if min >= 0 && max >= min {
			c.minOverlap = min
			c.maxOverlap = max
		}
	}
}

// NewChunker creates a chunker with 300-700 token targets and a 50 word
// overlap unless overridden.
func NewChunker(opts ...Option) *Chunker {
	c := &Chunker{
		minTokens:  defaultMinTokens,
		maxTokens:  defaultMaxTokens,
		minOverlap: defaultMinOverlap,
		maxOverlap: defaultMaxOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MinTokens returns the lower chunk size target.
func (c *Chunker) MinTokens() int { return c.minTokens }

// MaxTokens returns the upper chunk size target.
func (c *Chunker) MaxTokens() int { return c.maxTokens }

// ChunkSection splits one section body into an ordered list of chunk texts.
func (c *Chunker) ChunkSection(body string) []string {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	if EstimateTokens(body) <= ShortSectionTokens {
		return []string{body}
	}

	parts := splitClauses(body)
	var (
		chunks  []string
		current []string
		tokens  int
	)

	flush := func(next string, seed bool) {
		if text := strings.TrimSpace(strings.Join(current, " ")); text != "" {
			chunks = append(chunks, text)
		}
		current, tokens = nil, 0
		if !seed {
			return
		}
		if len(chunks) > 0 {
			if tail := c.overlapTail(chunks[len(chunks)-1]); tail != "" {
				current = append(current, tail)
				tokens += EstimateTokens(tail)
			}
		}
		current = append(current, next)
		tokens += EstimateTokens(next)
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pt := EstimateTokens(part)

		if tokens+pt > c.maxTokens && len(current) > 0 {
			flush(part, true)
		} else {
			current = append(current, part)
			tokens += pt
		}

		if tokens > c.maxTokens+flushSlack {
			flush("", false)
		}
	}
	if len(current) > 0 {
		flush("", false)
	}

	return c.mergeUndersized(chunks)
}

// splitClauses cuts body at clause markers, keeping each marker at the head
// of its part so no text is dropped.
func splitClauses(body string) []string {
	bounds := clauseBoundary.FindAllStringIndex(body, -1)
	if len(bounds) == 0 {
		return []string{body}
	}

	parts := make([]string, 0, len(bounds)+1)
	prev := 0
	for _, b := range bounds {
		if b[0] > prev {
			parts = append(parts, body[prev:b[0]])
		}
		prev = b[0]
	}
	return append(parts, body[prev:])
}

func (c *Chunker) overlapTail(chunk string) string {
	n := c.minOverlap
	if n > c.maxOverlap {
		n = c.maxOverlap
	}
	if n <= 0 {
		return ""
	}
	words := strings.Fields(chunk)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

// mergeUndersized joins each chunk below the min target into its
// predecessor when that predecessor is also below the target. A second pass
// over its output changes nothing.
func (c *Chunker) mergeUndersized(chunks []string) []string {
	if len(chunks) < 2 {
		return chunks
	}
	merged := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		if n := len(merged); n > 0 &&
			EstimateTokens(merged[n-1]) < c.minTokens &&
			EstimateTokens(ch) < c.minTokens {
			merged[n-1] = merged[n-1] + " " + ch
			continue
		}
		merged = append(merged, ch)
	}
	return merged
}

// ChunkDocument splits text into sections, chunks every section and tags the
// chunks with their provenance. Blank chunks are dropped.
func (c *Chunker) ChunkDocument(text, source, chunkType string) []Chunk {
	sections := SplitSections(text)

	var out []Chunk
	for _, sec := range sections {
		position := 0
		for _, body := range c.ChunkSection(sec.Body) {
			body = strings.TrimSpace(body)
			if body == "" {
				continue
			}
			out = append(out, Chunk{
				Text:          body,
				Source:        source,
				SectionHeader: sec.Header,
				SectionIndex:  sec.Index,
				TotalSections: len(sections),
				Position:      position,
				Tokens:        EstimateTokens(body),
				Type:          chunkType,
			})
			position++
		}
	}
	return out
}
