package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"argus-api/domain"
)

// boardPartition keys every task entity. The board is single-tenant; one
// partition keeps creation-order scans cheap and transactional batches open
// for later use.
const boardPartition = "board"

// Storage provides access to underlying persistence mechanisms.
type Storage struct {
	taskTable  *aztables.Client
	eventQueue *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, eventsQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	tt := svc.NewClient(tasksTable)
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{taskTable: tt, eventQueue: eq}, nil
}

type taskEntity struct {
	aztables.Entity
	Title           string `json:"Title"`
	Description     string `json:"Description"`
	Status          string `json:"Status"`
	Portfolio       string `json:"Portfolio"`
	Project         string `json:"Project"`
	Effort          string `json:"Effort"`
	Impact          string `json:"Impact"`
	Blocked         bool   `json:"Blocked"`
	BlockerReason   string `json:"BlockerReason"`
	DueDate         string `json:"DueDate"`
	StartDate       string `json:"StartDate"`
	CompletedDate   string `json:"CompletedDate"`
	LastSessionDate string `json:"LastSessionDate"`
	SessionNotes    string `json:"SessionNotes"`
	NextAction      string `json:"NextAction"`
	RepoURL         string `json:"RepoUrl"`
	TechStack       string `json:"TechStack"`
	CreatedAt       string `json:"CreatedAt"`
	UpdatedAt       string `json:"UpdatedAt"`
	ArchivedAt      string `json:"ArchivedAt"`
}

func encodeTask(t domain.Task) ([]byte, error) {
	ent := taskEntity{
		Entity: aztables.Entity{
			PartitionKey: boardPartition,
			RowKey:       t.ID,
		},
		Title:           t.Title,
		Description:     t.Description,
		Status:          t.Status,
		Portfolio:       t.Portfolio,
		Project:         t.Project,
		Effort:          t.Effort,
		Impact:          t.Impact,
		Blocked:         t.Blocked,
		BlockerReason:   t.BlockerReason,
		DueDate:         t.DueDate,
		StartDate:       t.StartDate,
		CompletedDate:   t.CompletedDate,
		LastSessionDate: t.LastSessionDate,
		SessionNotes:    t.SessionNotes,
		NextAction:      t.NextAction,
		RepoURL:         t.RepoURL,
		CreatedAt:       t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(t.TechStack) > 0 {
		data, err := json.Marshal(t.TechStack)
		if err != nil {
			return nil, err
		}
		ent.TechStack = string(data)
	}
	if t.ArchivedAt != nil {
		ent.ArchivedAt = t.ArchivedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(ent)
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:              ent.RowKey,
		Title:           ent.Title,
		Description:     ent.Description,
		Status:          ent.Status,
		Portfolio:       ent.Portfolio,
		Project:         ent.Project,
		Effort:          ent.Effort,
		Impact:          ent.Impact,
		Blocked:         ent.Blocked,
		BlockerReason:   ent.BlockerReason,
		DueDate:         ent.DueDate,
		StartDate:       ent.StartDate,
		CompletedDate:   ent.CompletedDate,
		LastSessionDate: ent.LastSessionDate,
		SessionNotes:    ent.SessionNotes,
		NextAction:      ent.NextAction,
		RepoURL:         ent.RepoURL,
	}
	if ent.TechStack != "" {
		if err := json.Unmarshal([]byte(ent.TechStack), &t.TechStack); err != nil {
			return domain.Task{}, err
		}
	}
	if ent.CreatedAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
		if err != nil {
			return domain.Task{}, err
		}
		t.CreatedAt = ts
	}
	if ent.UpdatedAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, ent.UpdatedAt)
		if err != nil {
			return domain.Task{}, err
		}
		t.UpdatedAt = ts
	}
	if ent.ArchivedAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, ent.ArchivedAt)
		if err != nil {
			return domain.Task{}, err
		}
		t.ArchivedAt = &ts
	}
	return t, nil
}

func (s *Storage) fetchTasks(ctx context.Context, archived bool) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + boardPartition + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTaskEntity(e)
			if err != nil {
				return nil, err
			}
			if t.Archived() != archived {
				continue
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// FetchActiveTasks retrieves every task currently on the board.
func (s *Storage) FetchActiveTasks(ctx context.Context) ([]domain.Task, error) {
	return s.fetchTasks(ctx, false)
}

// FetchArchivedTasks retrieves soft-deleted tasks.
func (s *Storage) FetchArchivedTasks(ctx context.Context) ([]domain.Task, error) {
	return s.fetchTasks(ctx, true)
}

// GetTask retrieves a single task by id regardless of archive state.
func (s *Storage) GetTask(ctx context.Context, id string) (domain.Task, error) {
	resp, err := s.taskTable.GetEntity(ctx, boardPartition, id, nil)
	if err != nil {
		return domain.Task{}, mapNotFound(err)
	}
	return decodeTaskEntity(resp.Value)
}

// CreateTask inserts a new task entity.
func (s *Storage) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	payload, err := encodeTask(task)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.taskTable.AddEntity(ctx, payload, nil); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTask replaces the stored entity with the given record. Last writer
// wins: voice mutations and board edits both funnel through here and the
// board has a single user.
func (s *Storage) UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	payload, err := encodeTask(task)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.taskTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{
		UpdateMode: aztables.UpdateModeReplace,
	}); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// ArchiveTask soft-deletes a task by stamping ArchivedAt.
func (s *Storage) ArchiveTask(ctx context.Context, id string, now time.Time) (domain.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	at := now.UTC()
	task.ArchivedAt = &at
	task.UpdatedAt = at
	return s.UpdateTask(ctx, task)
}

// RestoreTask clears the archive stamp, returning the task to the board.
func (s *Storage) RestoreTask(ctx context.Context, id string, now time.Time) (domain.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	task.ArchivedAt = nil
	task.UpdatedAt = now.UTC()
	return s.UpdateTask(ctx, task)
}

// DeleteTask removes the entity permanently.
func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.taskTable.DeleteEntity(ctx, boardPartition, id, nil); err != nil {
		return mapNotFound(err)
	}
	return nil
}

// EnqueueEvents publishes board change events to the event queue.
func (s *Storage) EnqueueEvents(ctx context.Context, events []domain.BoardEvent) error {
	for _, ev := range events {
		env := domain.BoardEventEnvelope{BoardID: boardPartition, Event: ev}
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if _, err := s.eventQueue.EnqueueMessage(ctx, string(data), nil); err != nil {
			return err
		}
	}
	return nil
}

func mapNotFound(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		return domain.ErrTaskNotFound
	}
	return err
}
