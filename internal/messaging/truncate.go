// Package messaging owns outbound delivery: SMS shaping, the safe
// dispatch wrapper around the CRM client, and voice handoff retries.
package messaging

import (
	"strings"
	"unicode/utf8"
)

// Size ceilings for outbound SMS. Scripted tone-engine output fits one
// segment; LLM-assembled responses get two.
const (
	ScriptedSMSMaxChars  = 160
	AssembledSMSMaxChars = 320
)

var sentenceBoundaries = []string{". ", "! ", "? "}

// Truncate cuts text to maxChars characters, preferring the last
// sentence boundary past the halfway point. When no acceptable boundary
// exists the text is hard-cut and marked with an ellipsis. The limit is
// in runes, never bytes, so a multi-byte character is kept whole.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxChars])
	best := -1
	for _, sep := range sentenceBoundaries {
		if idx := strings.LastIndex(cut, sep); idx >= 0 {
			if pos := utf8.RuneCountInString(cut[:idx]); pos > best {
				best = pos
			}
		}
	}
	if best > maxChars/2 {
		return strings.TrimRight(string(runes[:best+1]), " ")
	}

	// No usable boundary: hard cut, keeping the ellipsis inside the limit.
	if maxChars > 3 {
		return string(runes[:maxChars-3]) + "..."
	}
	return cut
}
