// Package voice implements the command interpretation core: it turns raw
// speech transcripts into deterministic board mutations or spoken replies.
package voice

import (
	"regexp"
	"strings"
)

// The wake word promotes ambient speech to a directed command. Recognition
// engines often split it phonetically, so "ar gus" is accepted too.
var wakeWordRe = regexp.MustCompile(`(?:^|\s)(?:hey\s+)?(?:argus|ar gus)[,.!?]?\s*(.*)$`)

// Normalize lower-cases and trims a raw transcript and strips the leading
// wake word. The second return is false when no wake word is present, which
// marks the text as background speech rather than a command.
func Normalize(raw string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return "", false
	}
	m := wakeWordRe.FindStringSubmatch(lower)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
