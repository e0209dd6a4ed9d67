package voice

import (
	"regexp"

	"argus-api/domain"
)

// columnAliases lists the accepted spoken names per column, in resolution
// order. Matching is whole-word only so "hold" never fires inside an
// unrelated word.
var columnAliases = []struct {
	id      string
	aliases []string
}{
	{domain.StatusBacklog, []string{"backlog", "back log"}},
	{domain.StatusReady, []string{"ready", "to do", "todo"}},
	{domain.StatusInProgress, []string{"in progress", "progress", "working", "active", "doing"}},
	{domain.StatusReview, []string{"review", "test", "testing", "review test"}},
	{domain.StatusDone, []string{"done", "complete", "completed", "finished", "finish"}},
	{domain.StatusParked, []string{"parked", "park", "hold", "on hold", "paused"}},
}

var aliasRes = buildAliasRes()

type aliasRe struct {
	id       string
	after    *regexp.Regexp // "to <alias>", the disambiguated form
	anywhere *regexp.Regexp
}

func buildAliasRes() []aliasRe {
	out := make([]aliasRe, 0, len(columnAliases))
	for _, col := range columnAliases {
		pattern := `(?:`
		for i, a := range col.aliases {
			if i > 0 {
				pattern += `|`
			}
			pattern += regexp.QuoteMeta(a)
		}
		pattern += `)`
		out = append(out, aliasRe{
			id:       col.id,
			after:    regexp.MustCompile(`\bto\s+` + pattern + `\b`),
			anywhere: regexp.MustCompile(`\b` + pattern + `\b`),
		})
	}
	return out
}

// ResolveColumn maps a normalized command to a board column. Aliases that
// follow the word "to" win over aliases appearing elsewhere in the sentence,
// so a task titled "Review the design" does not hijack the target of
// "move task 3 to done".
func ResolveColumn(text string) (string, bool) {
	for _, a := range aliasRes {
		if a.after.MatchString(text) {
			return a.id, true
		}
	}
	for _, a := range aliasRes {
		if a.anywhere.MatchString(text) {
			return a.id, true
		}
	}
	return "", false
}
