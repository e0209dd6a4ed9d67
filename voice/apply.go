package voice

import (
	"context"
	"errors"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"argus-api/domain"
)

// TaskStore is the narrow persistence surface the voice core needs. The
// full CRUD store in the storage package satisfies it.
type TaskStore interface {
	FetchActiveTasks(ctx context.Context) ([]domain.Task, error)
	UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error)
}

// eventSink is an optional store capability: stores that can publish board
// events get voice mutations on the event feed too.
type eventSink interface {
	EnqueueEvents(ctx context.Context, events []domain.BoardEvent) error
}

// Applier executes a resolved mutation: it computes the new task fields,
// applies them optimistically to the in-memory snapshot, and issues exactly
// one update to the task store. On a store failure the whole active set is
// re-fetched so the speculative local change is discarded.
type Applier struct {
	store  TaskStore
	logger *log.Logger
	now    func() time.Time
}

// NewApplier wires an applier to the given store.
func NewApplier(store TaskStore, logger *log.Logger) *Applier {
	return &Applier{store: store, logger: logger, now: time.Now}
}

// ApplyOutcome reports what happened to the board.
type ApplyOutcome struct {
	Snapshot Snapshot // board state after the mutation (or after reconciliation)
	Reply    Reply
	Warning  *Reply // advisory WIP notice, spoken after the main reply
}

// Apply runs one mutation against the snapshot's task. It never returns an
// inconsistent snapshot: on persistence failure the returned snapshot is
// rebuilt from the store and the reply degrades to a retry prompt.
func (a *Applier) Apply(ctx context.Context, snap Snapshot, m Mutation) (ApplyOutcome, error) {
	var current *domain.Task
	for i := range snap.Tasks {
		if snap.Tasks[i].ID == m.TaskID {
			current = &snap.Tasks[i]
			break
		}
	}
	if current == nil {
		// The task vanished between dispatch and apply (external delete).
		return ApplyOutcome{Snapshot: snap, Reply: taskNotFound(m.Ordinal)}, domain.ErrTaskNotFound
	}

	updated := *current
	today := a.now().Format(domain.DateLayout)
	var reply Reply

	switch m.Kind {
	case MutateMove:
		updated.Status = m.TargetColumn
		updated.LastSessionDate = today
		if m.TargetColumn == domain.StatusInProgress && updated.StartDate == "" {
			updated.StartDate = today
		}
		repl := map[string]string{
			"number": strconv.Itoa(m.Ordinal),
			"task":   updated.Title,
			"column": domain.ColumnTitle(m.TargetColumn),
		}
		if m.TargetColumn == domain.StatusDone && updated.CompletedDate == "" {
			updated.CompletedDate = today
			reply = Reply{Category: CatTaskCompleted, Replacements: repl}
		} else {
			reply = Reply{Category: CatTaskMoved, Replacements: repl}
		}
	case MutateBlock:
		updated.Blocked = true
		reply = Reply{Category: CatTaskBlocked, Replacements: map[string]string{
			"number": strconv.Itoa(m.Ordinal),
			"task":   updated.Title,
		}}
	case MutateUnblock:
		updated.Blocked = false
		reply = Reply{Category: CatTaskUnblocked, Replacements: map[string]string{
			"number": strconv.Itoa(m.Ordinal),
			"task":   updated.Title,
		}}
	default:
		return ApplyOutcome{Snapshot: snap, Reply: Reply{Category: CatNotUnderstood}},
			errors.New("unknown mutation kind")
	}

	stored, err := a.store.UpdateTask(ctx, updated)
	if err != nil {
		a.logger.WithFields(log.Fields{"task": m.TaskID, "kind": m.Kind}).
			WithError(err).Error("voice mutation rejected by store, reconciling")
		return a.reconcile(ctx, snap), err
	}

	// Optimistic application confirmed: swap in the stored record so the
	// snapshot carries server-assigned fields (updatedAt).
	next := make([]domain.Task, len(snap.Tasks))
	copy(next, snap.Tasks)
	for i := range next {
		if next[i].ID == stored.ID {
			next[i] = stored
			break
		}
	}
	a.publishEvent(ctx, m, stored)

	outcome := ApplyOutcome{Snapshot: NewSnapshot(next), Reply: reply}
	if m.Kind == MutateMove {
		outcome.Warning = wipWarning(next, m.TargetColumn)
	}
	return outcome, nil
}

// publishEvent mirrors the mutation onto the board event feed, best-effort.
func (a *Applier) publishEvent(ctx context.Context, m Mutation, stored domain.Task) {
	sink, ok := a.store.(eventSink)
	if !ok {
		return
	}
	evType := domain.EventTaskMoved
	switch m.Kind {
	case MutateBlock:
		evType = domain.EventTaskBlocked
	case MutateUnblock:
		evType = domain.EventTaskUnblocked
	}
	ev := domain.BoardEvent{
		Type:      evType,
		TaskID:    stored.ID,
		Status:    stored.Status,
		Source:    "voice",
		Timestamp: a.now().UnixMilli(),
	}
	if err := sink.EnqueueEvents(ctx, []domain.BoardEvent{ev}); err != nil {
		a.logger.WithError(err).WithField("event", evType).Warn("voice event enqueue failed")
	}
}

// reconcile discards speculative local state by re-fetching the
// authoritative task set. When even the re-fetch fails, the pre-mutation
// snapshot is returned unchanged; it was never modified.
func (a *Applier) reconcile(ctx context.Context, previous Snapshot) ApplyOutcome {
	tasks, err := a.store.FetchActiveTasks(ctx)
	if err != nil {
		a.logger.WithError(err).Error("reconcile fetch failed, keeping previous snapshot")
		return ApplyOutcome{Snapshot: previous, Reply: Reply{Category: CatRetryLater}}
	}
	return ApplyOutcome{Snapshot: NewSnapshot(tasks), Reply: Reply{Category: CatRetryLater}}
}

// wipWarning returns an advisory notice when the target column now holds
// more tasks than its soft limit. It never blocks the move.
func wipWarning(tasks []domain.Task, columnID string) *Reply {
	col, ok := domain.ColumnByID(columnID)
	if !ok || col.WIPLimit <= 0 {
		return nil
	}
	count := 0
	for _, t := range tasks {
		if t.Status == columnID {
			count++
		}
	}
	if count <= col.WIPLimit {
		return nil
	}
	return &Reply{Category: CatWIPExceeded, Replacements: map[string]string{
		"column": col.Title,
		"limit":  strconv.Itoa(col.WIPLimit),
	}}
}
