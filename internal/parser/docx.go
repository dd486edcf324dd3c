package parser

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var (
	docxBreaks = regexp.MustCompile(`</w:p>|<w:br[^>]*/>|<w:tab[^>]*/>`)
	xmlTags    = regexp.MustCompile(`<[^>]+>`)
)

// parseDOCX extracts text from a DOCX file
func parseDOCX(filePath string) (string, error) {
	doc, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX file: %w", err)
	}
	defer doc.Close()

	text := docxText(doc.Editable().GetContent())
	if text == "" {
		return "", fmt.Errorf("no text extracted from DOCX: %s", filePath)
	}

	return text, nil
}

// docxText turns document.xml content into plain text, one paragraph per line.
func docxText(content string) string {
	content = docxBreaks.ReplaceAllStringFunc(content, func(tag string) string {
		if strings.HasPrefix(tag, "<w:tab") {
			return "\t"
		}
		return "\n"
	})
	content = xmlTags.ReplaceAllString(content, "")
	return strings.TrimSpace(html.UnescapeString(content))
}
