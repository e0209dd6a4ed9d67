package domain

import "sort"

// Numbering is the stable speech reference for the board: every active task
// gets a 1-based ordinal derived from creation order, independent of which
// column it currently sits in. It is rebuilt from scratch whenever the
// active task set changes and is never persisted.
type Numbering struct {
	byID      map[string]int
	byOrdinal []string
}

// NewNumbering assigns ordinals 1..N over the given active tasks, sorted by
// createdAt ascending with lexical id as tie-break. Tasks with a missing
// createdAt sort as a group before the timestamped ones, ordered by id
// alone (which still embeds the creation timestamp), so the ordinals are a
// pure function of the task set regardless of input order.
func NewNumbering(tasks []Task) Numbering {
	sorted := make([]Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.CreatedAt.IsZero() != b.CreatedAt.IsZero() {
			return a.CreatedAt.IsZero()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	n := Numbering{
		byID:      make(map[string]int, len(sorted)),
		byOrdinal: make([]string, len(sorted)),
	}
	for i, t := range sorted {
		n.byID[t.ID] = i + 1
		n.byOrdinal[i] = t.ID
	}
	return n
}

// Len returns the number of numbered tasks.
func (n Numbering) Len() int { return len(n.byOrdinal) }

// OrdinalOf returns the ordinal of the given task id.
func (n Numbering) OrdinalOf(id string) (int, bool) {
	ord, ok := n.byID[id]
	return ord, ok
}

// TaskID returns the task id for a 1-based ordinal.
func (n Numbering) TaskID(ordinal int) (string, bool) {
	if ordinal < 1 || ordinal > len(n.byOrdinal) {
		return "", false
	}
	return n.byOrdinal[ordinal-1], true
}
