// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mnako/letters"
)

// parseEmail extracts headers and body text from an EML file
func parseEmail(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open EML file: %w", err)
	}
	defer file.Close()

	email, err := letters.ParseEmail(file)
	if err != nil {
		return "", fmt.Errorf("failed to parse EML file: %w", err)
	}

	var builder strings.Builder
	if email.Headers.Subject != "" {
		fmt.Fprintf(&builder, "Subject: %s\n", email.Headers.Subject)
	}
	if len(email.Headers.From) > 0 {
		from := email.Headers.From[0]
		if from.Name != "" {
			fmt.Fprintf(&builder, "Sender: %s <%s>\n", from.Name, from.Address)
		} else {
			fmt.Fprintf(&builder, "Sender: %s\n", from.Address)
		}
	}
	if !email.Headers.Date.IsZero() {
		fmt.Fprintf(&builder, "Date: %s\n", email.Headers.Date.Format(time.RFC3339))
	}
	builder.WriteString("\n")

	// Prefer the text part; HTML bodies are flattened.
	body := email.Text
	if body == "" && email.HTML != "" {
		body, err = htmlText(strings.NewReader(email.HTML))
		if err != nil {
			return "", err
		}
	}
	builder.WriteString(body)

	result := strings.TrimSpace(builder.String())
	if result == "" {
		return "", fmt.Errorf("no content extracted from EML: %s", filePath)
	}
	return result, nil
}
