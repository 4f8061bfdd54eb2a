package utils

// Text sizing helpers shared by prompt construction and reporting.

// CountTokens estimates the number of tokens in the given text.
// We approximate 1 token ~= 4 characters; good enough for budget warnings.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateChars cuts text at a character (rune) boundary. Content beyond the
// limit is silently dropped; callers that need a visible marker should use
// Excerpt instead.
func TruncateChars(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// Excerpt truncates like TruncateChars but appends an ellipsis marker when
// anything was dropped, for human-facing output.
func Excerpt(text string, limit int) string {
	out := TruncateChars(text, limit)
	if out != text {
		return out + "\n... (truncated)"
	}
	return out
}
