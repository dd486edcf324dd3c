package classify

import (
	"mime"
	"path/filepath"
	"strings"
)

const defaultMIME = "application/octet-stream"

// DetectMIME guesses a MIME type from the file extension.
func DetectMIME(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return defaultMIME
	}
	switch ext {
	// Not registered on every platform.
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".md":
		return "text/markdown"
	case ".eml":
		return "message/rfc822"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return defaultMIME
}

// CoarseType maps a MIME type onto one of the coarse categories.
func CoarseType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch mimeType {
	case "application/pdf":
		return CoarsePDF
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/msword":
		return CoarseWord
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel":
		return CoarseExcel
	}
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return CoarseText
	case strings.HasPrefix(mimeType, "image/"):
		return CoarseImage
	}
	return CoarseUnknown
}
