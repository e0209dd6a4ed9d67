package voice

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"argus-api/domain"
)

// Intent identifies what a command asks the board to do.
type Intent string

const (
	IntentHelp         Intent = "help"
	IntentStatusReport Intent = "status-report"
	IntentFocus        Intent = "focus-suggestion"
	IntentTaskInfo     Intent = "task-info"
	IntentListStale    Intent = "list-stale"
	IntentListOverdue  Intent = "list-overdue"
	IntentListBlocked  Intent = "list-blocked"
	IntentMove         Intent = "move-task"
	IntentBlock        Intent = "block-task"
	IntentUnblock      Intent = "unblock-task"
	IntentUnrecognized Intent = "unrecognized"
)

// MutationKind tells the applier which field change a command resolved to.
type MutationKind string

const (
	MutateMove    MutationKind = "move"
	MutateBlock   MutationKind = "block"
	MutateUnblock MutationKind = "unblock"
)

// Snapshot is the board state a command is interpreted against: the active
// task set plus the numbering derived from it.
type Snapshot struct {
	Tasks     []domain.Task
	Numbering domain.Numbering
}

// NewSnapshot derives a snapshot (including fresh numbering) from the
// current active task set.
func NewSnapshot(tasks []domain.Task) Snapshot {
	return Snapshot{Tasks: tasks, Numbering: domain.NewNumbering(tasks)}
}

// TaskByOrdinal resolves a spoken ordinal to the concrete task.
func (s Snapshot) TaskByOrdinal(ordinal int) (domain.Task, bool) {
	id, ok := s.Numbering.TaskID(ordinal)
	if !ok {
		return domain.Task{}, false
	}
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

// Reply is a spoken response described by phrase category and replacements,
// so tests can assert on meaning rather than rendered wording.
type Reply struct {
	Category     string
	Replacements map[string]string
}

// Mutation is a fully resolved write request; the applier executes it.
type Mutation struct {
	Kind         MutationKind
	TaskID       string
	Ordinal      int
	TargetColumn string
}

// Result is the outcome of interpreting one command. Exactly one of Reply
// and Mutation is meaningful: queries and fallbacks carry a Reply, resolved
// move/block/unblock commands carry a Mutation whose reply the applier
// produces after the store round-trip.
type Result struct {
	Intent   Intent
	Reply    Reply
	Mutation *Mutation
}

// Keyword checks match on word boundaries so "backlog" never triggers
// "block". Trigger regexes are built once up front; Dispatch itself
// allocates nothing shared and is safe for concurrent use.
var keywordRes = buildKeywordRes(
	"help",
	"status", "report", "briefing",
	"focus", "suggest", "what should i",
	"what is task", "what's task", "task info",
	"stale", "old", "neglected",
	"overdue", "late", "past due",
	"blocked", "block", "blocking",
	"unblock", "unblocked", "unblocking",
	"move",
)

func buildKeywordRes(phrases ...string) map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(phrases))
	for _, p := range phrases {
		res[p] = regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`)
	}
	return res
}

func hasAny(text string, phrases ...string) bool {
	for _, p := range phrases {
		if keywordRes[p].MatchString(text) {
			return true
		}
	}
	return false
}

// Dispatch interprets one normalized command against a board snapshot. It
// is pure: no side effects, same output for the same (text, snapshot, now).
// Checks run in fixed priority order and the first hit wins, so a command
// containing both "status" and "move task 2 to done" is a status report.
func Dispatch(text string, snap Snapshot, now time.Time) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Intent: IntentUnrecognized, Reply: Reply{Category: CatNotUnderstood}}
	}

	switch {
	case hasAny(text, "help"):
		return Result{Intent: IntentHelp, Reply: Reply{Category: CatHelp}}

	case hasAny(text, "status", "report", "briefing"):
		return statusReport(snap, now)

	case hasAny(text, "focus", "suggest", "what should i"):
		return focusSuggestion(snap)

	case hasAny(text, "what is task", "what's task", "task info"):
		return taskInfo(text, snap)

	case hasAny(text, "stale", "old", "neglected"):
		return listReply(IntentListStale, snap, CatStaleList, CatNoStale, func(t domain.Task) bool { return t.Stale(now) })

	case hasAny(text, "overdue", "late", "past due"):
		return listReply(IntentListOverdue, snap, CatOverdueList, CatNoOverdue, func(t domain.Task) bool { return t.Overdue(now) })

	case hasAny(text, "blocked") && !hasUnblock(text) && !hasOrdinal(text):
		return listReply(IntentListBlocked, snap, CatBlockedList, CatNoBlocked, func(t domain.Task) bool { return t.Blocked })

	case hasAny(text, "move"):
		return moveCommand(text, snap)

	case hasAny(text, "block", "blocked", "blocking") && !hasUnblock(text):
		return toggleCommand(IntentBlock, MutateBlock, text, snap)

	case hasUnblock(text):
		return toggleCommand(IntentUnblock, MutateUnblock, text, snap)
	}

	return Result{Intent: IntentUnrecognized, Reply: Reply{Category: CatNotUnderstood}}
}

// Speech engines emit whichever inflection was spoken, so "task 3 is
// unblocked" must land with "unblock task 3".
func hasUnblock(text string) bool {
	return hasAny(text, "unblock", "unblocked", "unblocking")
}

func hasOrdinal(text string) bool {
	_, ok := ExtractOrdinal(text)
	return ok
}

func statusReport(snap Snapshot, now time.Time) Result {
	var inProgress, blocked, stale, overdue, completed int
	for _, t := range snap.Tasks {
		if t.Status == domain.StatusInProgress {
			inProgress++
		}
		if t.Blocked {
			blocked++
		}
		if t.Stale(now) {
			stale++
		}
		if t.Overdue(now) {
			overdue++
		}
		if days, ok := domain.DaysSince(t.CompletedDate, now); ok && days <= 7 {
			completed++
		}
	}
	return Result{Intent: IntentStatusReport, Reply: Reply{
		Category: CatStatusReport,
		Replacements: map[string]string{
			"total":      strconv.Itoa(len(snap.Tasks)),
			"inProgress": strconv.Itoa(inProgress),
			"blocked":    strconv.Itoa(blocked),
			"stale":      strconv.Itoa(stale),
			"overdue":    strconv.Itoa(overdue),
			"completed":  strconv.Itoa(completed),
		},
	}}
}

// focusSuggestion prefers, in order: ready high-impact unblocked tasks,
// any ready unblocked task, any in-progress unblocked task. Within a tier
// the lowest ordinal wins so the suggestion is deterministic.
func focusSuggestion(snap Snapshot) Result {
	tiers := []func(domain.Task) bool{
		func(t domain.Task) bool {
			return t.Status == domain.StatusReady && t.Impact == "High" && !t.Blocked
		},
		func(t domain.Task) bool { return t.Status == domain.StatusReady && !t.Blocked },
		func(t domain.Task) bool { return t.Status == domain.StatusInProgress && !t.Blocked },
	}
	for _, match := range tiers {
		best := domain.Task{}
		bestOrd := 0
		for _, t := range snap.Tasks {
			if !match(t) {
				continue
			}
			ord, ok := snap.Numbering.OrdinalOf(t.ID)
			if !ok {
				continue
			}
			if bestOrd == 0 || ord < bestOrd {
				best, bestOrd = t, ord
			}
		}
		if bestOrd > 0 {
			return Result{Intent: IntentFocus, Reply: Reply{
				Category: CatFocus,
				Replacements: map[string]string{
					"number": strconv.Itoa(bestOrd),
					"task":   best.Title,
				},
			}}
		}
	}
	return Result{Intent: IntentFocus, Reply: Reply{Category: CatNoFocus}}
}

func taskInfo(text string, snap Snapshot) Result {
	ordinal, ok := ExtractOrdinal(text)
	if !ok {
		return Result{Intent: IntentTaskInfo, Reply: Reply{Category: CatWhichTask}}
	}
	task, found := snap.TaskByOrdinal(ordinal)
	if !found {
		return Result{Intent: IntentTaskInfo, Reply: taskNotFound(ordinal)}
	}
	impact := task.Impact
	if impact == "" {
		impact = "Medium"
	}
	return Result{Intent: IntentTaskInfo, Reply: Reply{
		Category: CatTaskInfo,
		Replacements: map[string]string{
			"number": strconv.Itoa(ordinal),
			"task":   task.Title,
			"status": domain.ColumnTitle(task.Status),
			"impact": impact,
		},
	}}
}

// listReply formats a query over the board, naming at most the first three
// matching tasks by ordinal to keep speech concise.
func listReply(intent Intent, snap Snapshot, someCat, noneCat string, match func(domain.Task) bool) Result {
	ordinals := make([]int, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		if !match(t) {
			continue
		}
		if ord, ok := snap.Numbering.OrdinalOf(t.ID); ok {
			ordinals = append(ordinals, ord)
		}
	}
	if len(ordinals) == 0 {
		return Result{Intent: intent, Reply: Reply{Category: noneCat}}
	}
	sort.Ints(ordinals)
	named := ordinals
	if len(named) > 3 {
		named = named[:3]
	}
	parts := make([]string, len(named))
	for i, ord := range named {
		parts[i] = fmt.Sprintf("Task %d", ord)
	}
	return Result{Intent: intent, Reply: Reply{
		Category: someCat,
		Replacements: map[string]string{
			"count": strconv.Itoa(len(ordinals)),
			"tasks": strings.Join(parts, ", "),
		},
	}}
}

func moveCommand(text string, snap Snapshot) Result {
	ordinal, haveOrdinal := ExtractOrdinal(text)
	column, haveColumn := ResolveColumn(text)
	if !haveOrdinal {
		return Result{Intent: IntentMove, Reply: Reply{Category: CatWhichTask}}
	}
	if !haveColumn {
		return Result{Intent: IntentMove, Reply: Reply{Category: CatWhichColumn}}
	}
	task, found := snap.TaskByOrdinal(ordinal)
	if !found {
		return Result{Intent: IntentMove, Reply: taskNotFound(ordinal)}
	}
	return Result{Intent: IntentMove, Mutation: &Mutation{
		Kind:         MutateMove,
		TaskID:       task.ID,
		Ordinal:      ordinal,
		TargetColumn: column,
	}}
}

func toggleCommand(intent Intent, kind MutationKind, text string, snap Snapshot) Result {
	ordinal, ok := ExtractOrdinal(text)
	if !ok {
		return Result{Intent: intent, Reply: Reply{Category: CatWhichTask}}
	}
	task, found := snap.TaskByOrdinal(ordinal)
	if !found {
		return Result{Intent: intent, Reply: taskNotFound(ordinal)}
	}
	return Result{Intent: intent, Mutation: &Mutation{
		Kind:    kind,
		TaskID:  task.ID,
		Ordinal: ordinal,
	}}
}

func taskNotFound(ordinal int) Reply {
	return Reply{
		Category:     CatTaskNotFound,
		Replacements: map[string]string{"number": strconv.Itoa(ordinal)},
	}
}
