package processor

import (
	"strings"
	"testing"
)

func TestSplitSections_Headings(t *testing.T) {
	text := "Section 1 Introduction\nIntro body.\n" +
		"Article IV\nArticle body.\n" +
		"Clause 2.1 Fees\nFee body.\n" +
		"EXHIBIT A\nAttached exhibit terms.\n" +
		"SCHEDULE One\nListed schedule terms.\n" +
		"3.2 LIMITATION OF LIABILITY\nLiability body."

	sections := SplitSections(text)
	wantHeaders := []string{
		"Section 1 Introduction",
		"Article IV",
		"Clause 2.1 Fees",
		"EXHIBIT A",
		"SCHEDULE One",
		"3.2 LIMITATION OF LIABILITY",
	}
	if len(sections) != len(wantHeaders) {
		t.Fatalf("Expected %d sections, got %d", len(wantHeaders), len(sections))
	}
	for i, want := range wantHeaders {
		sec := sections[i]
		if !sec.HasHeader || sec.Header != want {
			t.Errorf("section %d header = %q (has=%v), want %q", i, sec.Header, sec.HasHeader, want)
		}
		if sec.Index != i {
			t.Errorf("section %d index = %d", i, sec.Index)
		}
		if !strings.HasPrefix(sec.Body, want) {
			t.Errorf("section %d body does not start with its header: %q", i, sec.Body)
		}
	}
}

func TestSplitSections_NoHeadings(t *testing.T) {
	text := "  just some prose\nwith two lines  "
	sections := SplitSections(text)
	if len(sections) != 1 {
		t.Fatalf("Expected 1 section, got %d", len(sections))
	}
	sec := sections[0]
	if sec.HasHeader || sec.Header != "" {
		t.Errorf("Expected no header, got %q", sec.Header)
	}
	if sec.Body != "just some prose\nwith two lines" {
		t.Errorf("unexpected body %q", sec.Body)
	}
	if sec.Start != 0 || sec.End != len(text) {
		t.Errorf("Expected span [0,%d), got [%d,%d)", len(text), sec.Start, sec.End)
	}
}

func TestSplitSections_Preamble(t *testing.T) {
	text := "MASTER AGREEMENT\nbetween the parties\n\nSection 1 Scope\nScope body."
	sections := SplitSections(text)
	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(sections))
	}
	if sections[0].HasHeader {
		t.Errorf("Expected preamble without header, got %q", sections[0].Header)
	}
	if sections[0].Body != "MASTER AGREEMENT\nbetween the parties" {
		t.Errorf("unexpected preamble %q", sections[0].Body)
	}
	if sections[1].Header != "Section 1 Scope" {
		t.Errorf("unexpected header %q", sections[1].Header)
	}
}

func TestSplitSections_Partition(t *testing.T) {
	text := "Preamble text\nSection 1 A\nbody a\nSection 2 B\nbody b\n"
	sections := SplitSections(text)
	if len(sections) != 3 {
		t.Fatalf("Expected 3 sections, got %d", len(sections))
	}
	if sections[0].Start != 0 || sections[len(sections)-1].End != len(text) {
		t.Errorf("sections do not cover the text")
	}
	for i := 1; i < len(sections); i++ {
		if sections[i].Start != sections[i-1].End {
			t.Errorf("gap between section %d and %d", i-1, i)
		}
	}

	var rebuilt strings.Builder
	for _, sec := range sections {
		rebuilt.WriteString(text[sec.Start:sec.End])
	}
	if rebuilt.String() != text {
		t.Errorf("section spans do not reconstruct the text")
	}
}

func TestSplitSections_InlineHeaderTruncated(t *testing.T) {
	long := "Section 9 " + strings.Repeat("x", 120)
	sections := SplitSections(long)
	if len(sections) != 1 {
		t.Fatalf("Expected 1 section, got %d", len(sections))
	}
	if got := len(sections[0].Header); got != maxInlineHeader {
		t.Errorf("Expected header of %d chars, got %d", maxInlineHeader, got)
	}
}

func TestSplitSections_CaseInsensitive(t *testing.T) {
	sections := SplitSections("section 1 lower\nbody\n  ARTICLE ii\nmore")
	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(sections))
	}
	if sections[1].Header != "ARTICLE ii" {
		t.Errorf("unexpected header %q", sections[1].Header)
	}
}
