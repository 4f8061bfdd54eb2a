package pipeline

import "strings"

// CleanScript normalizes a model response into a runnable script: it strips
// a surrounding markdown fence (with or without a language tag) and trims
// whitespace. The response is expected to be the complete replacement
// script, never a diff.
func CleanScript(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
