package ocr

import "strings"

// NormalizeText collapses all whitespace runs (newlines and tabs included)
// into single spaces and trims leading/trailing whitespace.
func NormalizeText(t string) string {
	return strings.Join(strings.Fields(t), " ")
}

// snippet returns a shortened version of text for logging.
func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
