package utils

import (
	"strings"
)

// StripCodeFences cleans raw model output: Gemini sometimes wraps plain-text
// drafts in Markdown code blocks (``` ... ```) despite instructions.
func StripCodeFences(input string) string {
	cleaned := strings.TrimSpace(input)

	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx >= 0 {
			cleaned = cleaned[idx+1:]
		} else {
			cleaned = strings.TrimPrefix(cleaned, "```")
		}
	}

	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSuffix(cleaned, "```")
	}

	return strings.TrimSpace(cleaned)
}
