package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"argus-api/domain"
)

type mockStore struct {
	mu     sync.Mutex
	tasks  map[string]domain.Task
	err    error
	events []domain.BoardEvent
}

func newMockStore(tasks ...domain.Task) *mockStore {
	m := &mockStore{tasks: make(map[string]domain.Task)}
	for _, t := range tasks {
		m.tasks[t.ID] = t
	}
	return m
}

func (m *mockStore) fetch(archived bool) []domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Task{}
	for _, t := range m.tasks {
		if t.Archived() == archived {
			out = append(out, t)
		}
	}
	return out
}

func (m *mockStore) FetchActiveTasks(ctx context.Context) ([]domain.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.fetch(false), nil
}

func (m *mockStore) FetchArchivedTasks(ctx context.Context) ([]domain.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.fetch(true), nil
}

func (m *mockStore) GetTask(ctx context.Context, id string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	return t, nil
}

func (m *mockStore) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return task, nil
}

func (m *mockStore) UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return task, nil
}

func (m *mockStore) ArchiveTask(ctx context.Context, id string, now time.Time) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	at := now
	t.ArchivedAt = &at
	t.UpdatedAt = now
	m.tasks[id] = t
	return t, nil
}

func (m *mockStore) RestoreTask(ctx context.Context, id string, now time.Time) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	t.ArchivedAt = nil
	t.UpdatedAt = now
	m.tasks[id] = t
	return t, nil
}

func (m *mockStore) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *mockStore) EnqueueEvents(ctx context.Context, events []domain.BoardEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *mockStore) lastEvent(t *testing.T) domain.BoardEvent {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		t.Fatal("expected a board event")
	}
	return m.events[len(m.events)-1]
}

type mockSession struct {
	mu          sync.Mutex
	transcripts []string
	segmentEnds int
	invalidated int
}

func (s *mockSession) OnTranscript(partial string) {
	s.mu.Lock()
	s.transcripts = append(s.transcripts, partial)
	s.mu.Unlock()
}

func (s *mockSession) OnSegmentEnd() {
	s.mu.Lock()
	s.segmentEnds++
	s.mu.Unlock()
}

func (s *mockSession) Invalidate() {
	s.mu.Lock()
	s.invalidated++
	s.mu.Unlock()
}

func newTestLogger() *log.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func validCreateBody() string {
	return `{"title":"Ship capacity planner","status":"ready","portfolio":"consulting","project":"Capacity Planner","effort":"M","impact":"High"}`
}

func TestGetTasks(t *testing.T) {
	e := echo.New()
	store := newMockStore(domain.Task{ID: "t1", Title: "a", Status: domain.StatusReady, Portfolio: "tools"})
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := getTasks(store, newTestLogger())(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var resp tasksResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Tasks) != 1 || resp.Tasks[0].ID != "t1" {
		t.Fatalf("unexpected tasks: %+v", resp.Tasks)
	}
}

func TestGetTasksArchivedFilter(t *testing.T) {
	archivedAt := time.Now().UTC()
	e := echo.New()
	store := newMockStore(
		domain.Task{ID: "live", Title: "a", Status: domain.StatusReady, Portfolio: "tools"},
		domain.Task{ID: "gone", Title: "b", Status: domain.StatusDone, Portfolio: "tools", ArchivedAt: &archivedAt},
	)
	req := httptest.NewRequest(http.MethodGet, "/api/tasks?archived=true", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := getTasks(store, newTestLogger())(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	var resp tasksResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Tasks) != 1 || resp.Tasks[0].ID != "gone" {
		t.Fatalf("unexpected archived tasks: %+v", resp.Tasks)
	}
}

func TestPostTaskCreates(t *testing.T) {
	e := echo.New()
	store := newMockStore()
	session := &mockSession{}
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(validCreateBody()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := postTask(store, session, newTestLogger())(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(created.ID, "task-") {
		t.Fatalf("server must assign the id, got %q", created.ID)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("timestamps missing: %+v", created)
	}
	if ev := store.lastEvent(t); ev.Type != domain.EventTaskCreated || ev.TaskID != created.ID {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if session.invalidated != 1 {
		t.Fatalf("voice snapshot must be invalidated, got %d", session.invalidated)
	}
}

func TestPostTaskRejectsUnknownFields(t *testing.T) {
	e := echo.New()
	store := newMockStore()
	body := `{"title":"x","portfolio":"tools","bogus":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := postTask(store, &mockSession{}, newTestLogger())(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestPostTaskRejectsBadPortfolio(t *testing.T) {
	e := echo.New()
	body := `{"title":"x","portfolio":"unknown"}`
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := postTask(newMockStore(), &mockSession{}, newTestLogger())(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestPutTaskStatusChangeEmitsMovedEvent(t *testing.T) {
	e := echo.New()
	existing := domain.Task{
		ID: "task-1-a", Title: "a", Status: domain.StatusReady, Portfolio: "tools",
		CreatedAt: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	store := newMockStore(existing)
	session := &mockSession{}
	body := `{"id":"task-1-a","title":"a","status":"in-progress","portfolio":"tools"}`
	req := httptest.NewRequest(http.MethodPut, "/api/tasks", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := putTask(store, session, newTestLogger())(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var updated domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !updated.CreatedAt.Equal(existing.CreatedAt) {
		t.Fatalf("createdAt must be preserved, got %v", updated.CreatedAt)
	}
	if ev := store.lastEvent(t); ev.Type != domain.EventTaskMoved || ev.Status != domain.StatusInProgress {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if session.invalidated != 1 {
		t.Fatal("voice snapshot must be invalidated after a move")
	}
}

func TestPutTaskNotFound(t *testing.T) {
	e := echo.New()
	body := `{"id":"task-9-z","title":"a","status":"ready","portfolio":"tools"}`
	req := httptest.NewRequest(http.MethodPut, "/api/tasks", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := putTask(newMockStore(), &mockSession{}, newTestLogger())(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	e := echo.New()
	store := newMockStore(domain.Task{ID: "task-1-a", Title: "a", Status: domain.StatusReady, Portfolio: "tools"})
	session := &mockSession{}
	req := httptest.NewRequest(http.MethodDelete, "/api/tasks?id=task-1-a", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := deleteTask(store, session, newTestLogger())(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if ev := store.lastEvent(t); ev.Type != domain.EventTaskDeleted || ev.TaskID != "task-1-a" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(store.fetch(false)) != 0 {
		t.Fatal("task should be gone")
	}
}

func TestDeleteTaskMissingID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := deleteTask(newMockStore(), &mockSession{}, newTestLogger())(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestArchiveAndRestore(t *testing.T) {
	e := echo.New()
	store := newMockStore(domain.Task{ID: "task-1-a", Title: "a", Status: domain.StatusDone, Portfolio: "tools"})
	session := &mockSession{}

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/archive", strings.NewReader(`{"id":"task-1-a"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := archiveTask(store, session, newTestLogger())(e.NewContext(req, rec)); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected archive status %d: %s", rec.Code, rec.Body.String())
	}
	if ev := store.lastEvent(t); ev.Type != domain.EventTaskArchived {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(store.fetch(true)) != 1 {
		t.Fatal("task should be archived")
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/tasks/archive?id=task-1-a", nil)
	rec = httptest.NewRecorder()
	if err := restoreTask(store, session, newTestLogger())(e.NewContext(req, rec)); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected restore status %d", rec.Code)
	}
	if ev := store.lastEvent(t); ev.Type != domain.EventTaskRestored {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(store.fetch(false)) != 1 {
		t.Fatal("task should be active again")
	}
	if session.invalidated != 2 {
		t.Fatalf("expected two invalidations, got %d", session.invalidated)
	}
}
