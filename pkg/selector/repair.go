package selector

import (
	"regexp"
	"strings"
)

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// Repair applies a best-effort cleanup pass over model output before
// strict JSON decoding: markdown code fences are stripped, the text is
// trimmed to its outermost object braces, and trailing commas are removed.
// It never fails; hopeless input simply won't parse afterwards.
func Repair(raw string) string {
	s := strings.TrimSpace(raw)

	// Strip a fenced block (```json ... ``` or plain ```).
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:] // drop the language tag line
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Trim to the outermost object.
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}

	return trailingComma.ReplaceAllString(s, "$1")
}
