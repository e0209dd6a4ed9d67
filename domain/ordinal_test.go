package domain

import (
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestNumberingFollowsCreationOrder(t *testing.T) {
	tasks := []Task{
		{ID: "task-300-c", CreatedAt: day(2), Status: StatusDone},
		{ID: "task-100-a", CreatedAt: day(0), Status: StatusBacklog},
		{ID: "task-200-b", CreatedAt: day(1), Status: StatusReview},
	}
	n := NewNumbering(tasks)
	if n.Len() != 3 {
		t.Fatalf("expected 3 ordinals, got %d", n.Len())
	}
	for id, want := range map[string]int{"task-100-a": 1, "task-200-b": 2, "task-300-c": 3} {
		got, ok := n.OrdinalOf(id)
		if !ok || got != want {
			t.Fatalf("ordinal of %s = %d (ok=%v), want %d", id, got, ok, want)
		}
	}
}

func TestNumberingStableAcrossColumnMoves(t *testing.T) {
	tasks := []Task{
		{ID: "task-100-a", CreatedAt: day(0), Status: StatusBacklog},
		{ID: "task-200-b", CreatedAt: day(1), Status: StatusReady},
	}
	before := NewNumbering(tasks)
	tasks[0].Status = StatusDone
	tasks[1].Status = StatusInProgress
	after := NewNumbering(tasks)
	for _, id := range []string{"task-100-a", "task-200-b"} {
		b, _ := before.OrdinalOf(id)
		a, _ := after.OrdinalOf(id)
		if b != a {
			t.Fatalf("ordinal of %s changed on column move: %d -> %d", id, b, a)
		}
	}
}

func TestNumberingDenseAndUnique(t *testing.T) {
	tasks := make([]Task, 10)
	for i := range tasks {
		// identical createdAt forces the id tie-break
		tasks[i] = Task{ID: NewTaskID(day(0)), CreatedAt: day(0)}
	}
	n := NewNumbering(tasks)
	seen := make(map[int]bool)
	for _, tk := range tasks {
		ord, ok := n.OrdinalOf(tk.ID)
		if !ok {
			t.Fatalf("missing ordinal for %s", tk.ID)
		}
		if ord < 1 || ord > len(tasks) {
			t.Fatalf("ordinal %d out of range 1..%d", ord, len(tasks))
		}
		if seen[ord] {
			t.Fatalf("duplicate ordinal %d", ord)
		}
		seen[ord] = true
	}
}

func TestNumberingMissingCreatedAtFallsBackToID(t *testing.T) {
	tasks := []Task{
		{ID: "task-200-b"},
		{ID: "task-100-a"},
	}
	n := NewNumbering(tasks)
	if id, _ := n.TaskID(1); id != "task-100-a" {
		t.Fatalf("expected id ordering fallback, got %q first", id)
	}
}

func TestNumberingTaskIDOutOfRange(t *testing.T) {
	n := NewNumbering([]Task{{ID: "task-100-a", CreatedAt: day(0)}})
	if _, ok := n.TaskID(0); ok {
		t.Fatal("ordinal 0 must not resolve")
	}
	if _, ok := n.TaskID(2); ok {
		t.Fatal("ordinal beyond task count must not resolve")
	}
}

func TestNumberingRestoreReflectsCreationOrder(t *testing.T) {
	a := Task{ID: "task-100-a", CreatedAt: day(0)}
	b := Task{ID: "task-200-b", CreatedAt: day(1)}
	c := Task{ID: "task-300-c", CreatedAt: day(2)}

	n := NewNumbering([]Task{a, c}) // b archived
	if ord, _ := n.OrdinalOf("task-300-c"); ord != 2 {
		t.Fatalf("expected c to take ordinal 2 while b archived, got %d", ord)
	}

	n = NewNumbering([]Task{a, b, c}) // b restored
	if ord, _ := n.OrdinalOf("task-200-b"); ord != 2 {
		t.Fatalf("restored task should slot by createdAt, got %d", ord)
	}
	if ord, _ := n.OrdinalOf("task-300-c"); ord != 3 {
		t.Fatalf("later task should shift after restore, got %d", ord)
	}
}

func TestNumberingMixedCreatedAtIsOrderIndependent(t *testing.T) {
	tasks := []Task{
		{ID: "task-500-e", CreatedAt: day(3)},
		{ID: "task-300-c"}, // missing createdAt
		{ID: "task-400-d", CreatedAt: day(1)},
		{ID: "task-100-a"}, // missing createdAt
		{ID: "task-200-b", CreatedAt: day(2)},
	}

	want := map[string]int{
		"task-100-a": 1,
		"task-300-c": 2,
		"task-400-d": 3,
		"task-200-b": 4,
		"task-500-e": 5,
	}

	// The ordinals must be a pure function of the set: every input
	// permutation (rotations cover the mixed zero/non-zero adjacencies
	// that trip a non-transitive comparator) yields the same numbering.
	for shift := 0; shift < len(tasks); shift++ {
		rotated := append(append([]Task(nil), tasks[shift:]...), tasks[:shift]...)
		n := NewNumbering(rotated)
		for id, ord := range want {
			if got, ok := n.OrdinalOf(id); !ok || got != ord {
				t.Fatalf("shift %d: ordinal of %s = %d (ok=%v), want %d", shift, id, got, ok, ord)
			}
		}
	}
}
