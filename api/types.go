package api

import (
	"context"
	"time"

	"argus-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	FetchActiveTasks(ctx context.Context) ([]domain.Task, error)
	FetchArchivedTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	CreateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	ArchiveTask(ctx context.Context, id string, now time.Time) (domain.Task, error)
	RestoreTask(ctx context.Context, id string, now time.Time) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	EnqueueEvents(ctx context.Context, events []domain.BoardEvent) error
}

// VoiceSession is the slice of voice.Session the handlers need: transcript
// ingestion plus snapshot invalidation after board writes.
type VoiceSession interface {
	OnTranscript(partial string)
	OnSegmentEnd()
	Invalidate()
}
