package domain

// Board event types published to the events queue after each successful
// store mutation. Downstream consumers (the board stream refresher) treat
// these as cache-invalidation hints, not as a replayable log.
const (
	EventTaskCreated   = "task-created"
	EventTaskUpdated   = "task-updated"
	EventTaskMoved     = "task-moved"
	EventTaskBlocked   = "task-blocked"
	EventTaskUnblocked = "task-unblocked"
	EventTaskArchived  = "task-archived"
	EventTaskRestored  = "task-restored"
	EventTaskDeleted   = "task-deleted"
)

// BoardEvent records a single change to the board.
type BoardEvent struct {
	Type      string `json:"type"`
	TaskID    string `json:"taskId"`
	Status    string `json:"status,omitempty"`
	Source    string `json:"source,omitempty"` // "voice" or "board"
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// BoardEventEnvelope wraps an event with the board it belongs to.
type BoardEventEnvelope struct {
	BoardID string     `json:"boardId"`
	Event   BoardEvent `json:"event"`
}
