// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package processor

import (
	"fmt"
	"strings"
	"testing"
)

// clauseText builds a clause line of exactly n words opened by marker.
func clauseText(marker string, n int) string {
	words := make([]string, 0, n)
	words = append(words, marker)
	for i := 1; i < n; i++ {
		words = append(words, fmt.Sprintf("w%s%d", strings.Trim(marker, "()"), i))
	}
	return strings.Join(words, " ")
}

// contractSection builds a section body of clauses*wordsPer words.
func contractSection(header string, clauses, wordsPer int) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for i := 0; i < clauses; i++ {
		marker := fmt.Sprintf("(%c)", 'a'+i%26)
		if i >= 26 {
			marker = fmt.Sprintf("(%c%c)", 'a'+i/26-1, 'a'+i%26)
		}
		b.WriteString(clauseText(marker, wordsPer))
		b.WriteString("\n")
	}
	return b.String()
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 1},
		{"   \n\t", 1},
		{"one", 1},
		{"one two three", 4},
		{strings.Repeat("word ", 75), 100},
		{strings.Repeat("word ", 2000), 2666},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%d words) = %d, want %d", len(strings.Fields(tc.text)), got, tc.want)
		}
	}
}

func TestCleanText(t *testing.T) {
	in := "  Title\t\t here\n\n\n\n\nBody   text\n\nnext  "
	want := "Title here\n\nBody text\n\nnext"
	if got := CleanText(in); got != want {
		t.Errorf("CleanText = %q, want %q", got, want)
	}
}

func TestChunker_ShortSection(t *testing.T) {
	chunker := NewChunker()
	body := "This is a short text that should not be split."

	chunks := chunker.ChunkSection(body)
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk for short text, got %d", len(chunks))
	}
	if chunks[0] != body {
		t.Errorf("Chunk content mismatch. Expected: %q, Got: %q", body, chunks[0])
	}
}

func TestChunker_ShortCircuitThreshold(t *testing.T) {
	chunker := NewChunker()
	// 562 words estimate to 749 tokens, just under the threshold.
	body := contractSection("Terms", 1, 561)
	if got := EstimateTokens(body); got > ShortSectionTokens {
		t.Fatalf("fixture too large: %d tokens", got)
	}
	if chunks := chunker.ChunkSection(body); len(chunks) != 1 {
		t.Errorf("Expected section at threshold to stay whole, got %d chunks", len(chunks))
	}
}

func TestChunker_EmptySection(t *testing.T) {
	chunker := NewChunker()
	if chunks := chunker.ChunkSection("  \n\t "); len(chunks) != 0 {
		t.Errorf("Expected no chunks for blank body, got %d", len(chunks))
	}
}

func TestChunker_ContractDocument(t *testing.T) {
	chunker := NewChunker()
	text := "Section 1 Introduction\nThis agreement is made between the parties named below.\n" +
		contractSection("Section 2 Payment Terms", 20, 100)

	chunks := chunker.ChunkDocument(text, "contract.pdf", "pdf_text")

	var first, second []Chunk
	for _, ch := range chunks {
		switch ch.SectionIndex {
		case 0:
			first = append(first, ch)
		case 1:
			second = append(second, ch)
		default:
			t.Fatalf("unexpected section index %d", ch.SectionIndex)
		}
	}

	if len(first) != 1 {
		t.Fatalf("Expected 1 chunk for the short section, got %d", len(first))
	}
	if first[0].SectionHeader != "Section 1 Introduction" {
		t.Errorf("Expected header %q, got %q", "Section 1 Introduction", first[0].SectionHeader)
	}
	if len(second) < 3 {
		t.Fatalf("Expected at least 3 chunks for the long section, got %d", len(second))
	}

	for i, ch := range second {
		if ch.SectionHeader != "Section 2 Payment Terms" {
			t.Errorf("chunk %d: header %q", i, ch.SectionHeader)
		}
		if ch.Position != i {
			t.Errorf("chunk %d: position %d", i, ch.Position)
		}
		if ch.TotalSections != 2 {
			t.Errorf("chunk %d: total sections %d", i, ch.TotalSections)
		}
		if ch.Tokens > chunker.MaxTokens()+flushSlack {
			t.Errorf("chunk %d: %d tokens exceeds %d", i, ch.Tokens, chunker.MaxTokens()+flushSlack)
		}
		if ch.Source != "contract.pdf" || ch.Type != "pdf_text" {
			t.Errorf("chunk %d: source=%q type=%q", i, ch.Source, ch.Type)
		}
	}
}

func TestChunker_Overlap(t *testing.T) {
	chunker := NewChunker()
	body := contractSection("Terms", 20, 100)

	chunks := chunker.ChunkSection(body)
	if len(chunks) < 2 {
		t.Fatalf("Need at least 2 chunks to test overlap, got %d", len(chunks))
	}

	for i := 0; i < len(chunks)-1; i++ {
		prev := strings.Fields(chunks[i])
		next := strings.Fields(chunks[i+1])
		tail := prev[len(prev)-defaultMinOverlap:]
		head := next[:defaultMinOverlap]
		if strings.Join(tail, " ") != strings.Join(head, " ") {
			t.Errorf("chunk %d does not start with the last %d words of chunk %d", i+1, defaultMinOverlap, i)
		}
	}
}

func TestChunker_CoverageWithoutOverlap(t *testing.T) {
	chunker := NewChunker(WithOverlap(0, 0))
	body := contractSection("Terms", 30, 90)

	chunks := chunker.ChunkSection(body)
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}

	got := strings.Fields(strings.Join(chunks, " "))
	want := strings.Fields(body)
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("chunks do not reproduce the body: got %d words, want %d", len(got), len(want))
	}
}

func TestChunker_CoverageWithOverlap(t *testing.T) {
	chunker := NewChunker()
	body := contractSection("Terms", 30, 90)

	chunks := chunker.ChunkSection(body)
	var got []string
	for _, ch := range chunks {
		got = append(got, strings.Fields(ch)...)
	}

	// Every body word must appear, in order, once overlap is allowed for.
	want := strings.Fields(body)
	j := 0
	for _, w := range got {
		if j < len(want) && w == want[j] {
			j++
		}
	}
	if j != len(want) {
		t.Errorf("body word %d (%q) missing from chunk sequence", j, want[j])
	}
}

func TestChunker_TokenBound(t *testing.T) {
	chunker := NewChunker()
	var b strings.Builder
	sizes := []int{40, 300, 120, 500, 60, 10, 450, 200, 30, 30, 30, 400, 15}
	for i, n := range sizes {
		b.WriteString(clauseText(fmt.Sprintf("(%d)", i+1), n))
		b.WriteString("\n")
	}

	limit := chunker.MaxTokens() + flushSlack
	for i, ch := range chunker.ChunkSection(b.String()) {
		if got := EstimateTokens(ch); got > limit {
			t.Errorf("chunk %d has %d tokens, limit %d", i, got, limit)
		}
	}
}

func TestChunker_OversizedPartPassesThrough(t *testing.T) {
	chunker := NewChunker()
	body := strings.Repeat("indivisible ", 1500)

	chunks := chunker.ChunkSection(body)
	if len(chunks) != 1 {
		t.Fatalf("Expected unsplittable body to stay whole, got %d chunks", len(chunks))
	}
	if got := EstimateTokens(chunks[0]); got != 2000 {
		t.Errorf("Expected 2000 tokens, got %d", got)
	}
}

func TestChunker_MarkersKeptWithParts(t *testing.T) {
	parts := splitClauses("intro line\n(a) first clause\n1.2 second clause\n3) third\niv) fourth")
	want := []string{"intro line\n", "(a) first clause\n", "1.2 second clause\n", "3) third\n", "iv) fourth"}
	if len(parts) != len(want) {
		t.Fatalf("Expected %d parts, got %d: %q", len(want), len(parts), parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("part %d = %q, want %q", i, parts[i], want[i])
		}
	}
}

func TestChunker_MergeIdempotent(t *testing.T) {
	chunker := NewChunker()
	small := strings.Repeat("s ", 60)
	big := strings.Repeat("b ", 400)
	in := []string{small, small, big, small, small, small, big, small}

	once := chunker.mergeUndersized(in)
	twice := chunker.mergeUndersized(once)

	if len(once) != len(twice) {
		t.Fatalf("second merge changed length: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("second merge changed chunk %d", i)
		}
	}
	for i := 1; i < len(once); i++ {
		if EstimateTokens(once[i-1]) < chunker.MinTokens() && EstimateTokens(once[i]) < chunker.MinTokens() {
			t.Errorf("chunks %d and %d are both undersized after merge", i-1, i)
		}
	}
}

func TestChunker_Options(t *testing.T) {
	chunker := NewChunker(WithTargetTokens(100, 200), WithOverlap(10, 20))
	if chunker.MinTokens() != 100 || chunker.MaxTokens() != 200 {
		t.Errorf("targets = %d/%d, want 100/200", chunker.MinTokens(), chunker.MaxTokens())
	}

	// Inverted bounds are ignored.
	chunker = NewChunker(WithTargetTokens(500, 100))
	if chunker.MinTokens() != defaultMinTokens || chunker.MaxTokens() != defaultMaxTokens {
		t.Errorf("inverted targets applied: %d/%d", chunker.MinTokens(), chunker.MaxTokens())
	}
}

func TestChunkDocument_DropsBlankSections(t *testing.T) {
	chunker := NewChunker()
	if chunks := chunker.ChunkDocument("   \n\n  ", "blank.txt", "text_document"); len(chunks) != 0 {
		t.Errorf("Expected no chunks, got %d", len(chunks))
	}
}
