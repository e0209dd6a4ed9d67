package voice

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/BurntSushi/toml"
)

// Reply categories. Dispatch results carry a category plus replacements so
// callers and tests can reason about what was said without depending on the
// exact wording drawn from the pool.
const (
	CatHelp           = "commandHelp"
	CatStatusReport   = "statusReport"
	CatFocus          = "focusSuggestion"
	CatNoFocus        = "noFocusFound"
	CatTaskInfo       = "taskInfo"
	CatStaleList      = "staleList"
	CatNoStale        = "noStale"
	CatOverdueList    = "overdueList"
	CatNoOverdue      = "noOverdue"
	CatBlockedList    = "blockedList"
	CatNoBlocked      = "noBlocked"
	CatTaskMoved      = "taskMoved"
	CatTaskCompleted  = "taskCompleted"
	CatTaskBlocked    = "taskBlocked"
	CatTaskUnblocked  = "taskUnblocked"
	CatTaskNotFound   = "taskNotFound"
	CatWhichTask      = "whichTask"
	CatWhichColumn    = "whichColumn"
	CatNotUnderstood  = "notUnderstood"
	CatWIPExceeded    = "wipExceeded"
	CatRetryLater     = "retryLater"
)

// defaultPools carries the stock ARGUS wording. A TOML file can override
// any category wholesale; categories it omits keep the defaults.
var defaultPools = map[string][]string{
	CatHelp: {
		"Commands: Move task number to column. Status. Block or unblock task number. Focus. What's stale. What's overdue. What is task number.",
	},
	CatStatusReport: {
		"Status report: {total} tasks total. {inProgress} active, {blocked} blocked, {stale} stale, {overdue} overdue. {completed} completed this week.",
	},
	CatFocus: {
		"I suggest task {number}: {task}. High impact and ready.",
		"Consider task {number}, {task}. It's been waiting.",
		"My recommendation: task {number}, {task}.",
	},
	CatNoFocus: {
		"Your board looks balanced. Pick what energizes you.",
		"No urgent priorities. Follow your intuition today.",
	},
	CatTaskInfo: {
		"Task {number} is {task}. Currently in {status}. Impact: {impact}.",
	},
	CatStaleList:   {"{count} stale tasks: {tasks}."},
	CatNoStale:     {"No stale tasks. Everything is fresh."},
	CatOverdueList: {"{count} overdue: {tasks}."},
	CatNoOverdue:   {"No overdue tasks. You're on track."},
	CatBlockedList: {"{count} blocked: {tasks}."},
	CatNoBlocked:   {"No blocked tasks. All clear."},
	CatTaskMoved: {
		"Done. Task {number}, {task}, moved to {column}.",
		"Task {number} is now in {column}.",
		"Noted. {task} moved to {column}.",
	},
	CatTaskCompleted: {
		"Well done. Task {number} complete.",
		"Excellent. {task} finished. Keep that momentum.",
		"Task {number} marked done. Progress feels good.",
	},
	CatTaskBlocked: {
		"Task {number} is now blocked.",
		"Noted. {task} is blocked. Let's clear that path soon.",
	},
	CatTaskUnblocked: {
		"Task {number} is unblocked. Path is clear.",
		"Good. {task} can move forward now.",
	},
	CatTaskNotFound: {
		"I can't find task {number}. Check the board for valid numbers.",
		"Task {number} doesn't exist. Try another number.",
	},
	CatWhichTask:   {"Which task number? Say: move task 5 to done."},
	CatWhichColumn: {"Which column? Try: backlog, ready, in progress, review, done, or parked."},
	CatNotUnderstood: {
		"I didn't catch that. Try: move task 5 to done, or say help.",
		"Sorry, I didn't understand. Say 'Argus help' for commands.",
	},
	CatWIPExceeded: {
		"Heads up: {column} is over its WIP limit of {limit}. Focus beats multitasking.",
	},
	CatRetryLater: {
		"I couldn't save that change. The board is back in sync, please try again.",
	},
}

// Selector picks a rendered phrase for a reply category.
type Selector interface {
	Pick(category string, replacements map[string]string) string
}

// PoolSelector draws a random phrase from per-category pools and fills in
// {placeholder} replacements.
type PoolSelector struct {
	pools map[string][]string
	intn  func(int) int
}

// NewPoolSelector builds a selector over the default pools, with overrides
// applied on top when non-nil.
func NewPoolSelector(overrides map[string][]string) *PoolSelector {
	pools := make(map[string][]string, len(defaultPools))
	for cat, phrases := range defaultPools {
		pools[cat] = phrases
	}
	for cat, phrases := range overrides {
		if len(phrases) > 0 {
			pools[cat] = phrases
		}
	}
	return &PoolSelector{pools: pools, intn: rand.Intn}
}

// Pick renders a phrase for the category. Unknown categories render empty.
func (s *PoolSelector) Pick(category string, replacements map[string]string) string {
	phrases := s.pools[category]
	if len(phrases) == 0 {
		return ""
	}
	phrase := phrases[0]
	if len(phrases) > 1 {
		phrase = phrases[s.intn(len(phrases))]
	}
	for key, value := range replacements {
		phrase = strings.ReplaceAll(phrase, "{"+key+"}", value)
	}
	return phrase
}

type phraseFile struct {
	Phrases map[string][]string `toml:"phrases"`
}

// LoadPhraseOverrides reads per-category phrase pools from a TOML file:
//
//	[phrases]
//	taskMoved = ["Task {number} now lives in {column}."]
func LoadPhraseOverrides(path string) (map[string][]string, error) {
	var pf phraseFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return nil, fmt.Errorf("load phrase file: %w", err)
	}
	return pf.Phrases, nil
}
