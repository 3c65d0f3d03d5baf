package router

import "strings"

// Fixed opt-out phrase list. Matching is a case-insensitive substring
// check against the whole inbound message.
var optOutPhrases = []string{
	"stop",
	"unsubscribe",
	"not interested",
	"remove me",
	"opt out",
	"leave me alone",
	"don't contact",
	"do not contact",
	"quit texting",
}

// detectOptOut returns the matched phrase when the message is an
// opt-out request.
func detectOptOut(message string) (string, bool) {
	lowered := strings.ToLower(message)
	for _, phrase := range optOutPhrases {
		if strings.Contains(lowered, phrase) {
			return phrase, true
		}
	}
	return "", false
}
