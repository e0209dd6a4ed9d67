package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"argus-api/domain"
)

// taskBodyMaxSize bounds CRUD request bodies. Cards are small; anything
// larger is a client bug.
const taskBodyMaxSize = 256 << 10

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, session VoiceSession, speaker *SpeechBroker, logger *log.Logger) {
	e.GET("/api/tasks", getTasks(store, logger))
	e.POST("/api/tasks", postTask(store, session, logger))
	e.PUT("/api/tasks", putTask(store, session, logger))
	e.DELETE("/api/tasks", deleteTask(store, session, logger))
	e.POST("/api/tasks/archive", archiveTask(store, session, logger))
	e.DELETE("/api/tasks/archive", restoreTask(store, session, logger))
	e.POST("/api/voice/transcript", postTranscript(session, logger))
	e.GET("/api/voice/events", streamSpeech(speaker))
	e.GET("/healthz", healthz(store))
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

func healthz(_ Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger, "/api/tasks")
		ctx = spanCtx
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		archived := c.QueryParam("archived") == "true"
		fetchStart := time.Now()
		var tasks []domain.Task
		var fetchErr error
		if archived {
			tasks, fetchErr = store.FetchArchivedTasks(ctx)
		} else {
			tasks, fetchErr = store.FetchActiveTasks(ctx)
		}
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func decodeTaskBody(c echo.Context, dst *domain.Task) error {
	lr := io.LimitReader(c.Request().Body, taskBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func postTask(store Storage, session VoiceSession, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var task domain.Task
		if err := decodeTaskBody(c, &task); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		now := time.Now().UTC()
		task.ID = domain.NewTaskID(now)
		task.CreatedAt = now
		task.UpdatedAt = now
		task.ArchivedAt = nil
		if task.Status == "" {
			task.Status = domain.StatusBacklog
		}
		task.TechStack = domain.NormalizeTechStack(task.TechStack)
		if err := task.Validate(); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		created, err := store.CreateTask(ctx, task)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		publishEvent(ctx, store, logger, domain.BoardEvent{
			Type:      domain.EventTaskCreated,
			TaskID:    created.ID,
			Status:    created.Status,
			Source:    "board",
			Timestamp: now.UnixMilli(),
		})
		session.Invalidate()
		return c.JSON(http.StatusCreated, created)
	}
}

func putTask(store Storage, session VoiceSession, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var task domain.Task
		if err := decodeTaskBody(c, &task); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if task.ID == "" {
			return c.String(http.StatusBadRequest, "missing task id")
		}

		prev, err := store.GetTask(ctx, task.ID)
		if err != nil {
			if errors.Is(err, domain.ErrTaskNotFound) {
				return c.String(http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		now := time.Now().UTC()
		task.CreatedAt = prev.CreatedAt
		task.ArchivedAt = prev.ArchivedAt
		task.UpdatedAt = now
		task.TechStack = domain.NormalizeTechStack(task.TechStack)
		if err := task.Validate(); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		updated, err := store.UpdateTask(ctx, task)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		evType := domain.EventTaskUpdated
		if updated.Status != prev.Status {
			evType = domain.EventTaskMoved
		}
		publishEvent(ctx, store, logger, domain.BoardEvent{
			Type:      evType,
			TaskID:    updated.ID,
			Status:    updated.Status,
			Source:    "board",
			Timestamp: now.UnixMilli(),
		})
		session.Invalidate()
		return c.JSON(http.StatusOK, updated)
	}
}

func deleteTask(store Storage, session VoiceSession, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.QueryParam("id")
		if id == "" {
			return c.String(http.StatusBadRequest, "missing task id")
		}
		if err := store.DeleteTask(ctx, id); err != nil {
			if errors.Is(err, domain.ErrTaskNotFound) {
				return c.String(http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		publishEvent(ctx, store, logger, domain.BoardEvent{
			Type:      domain.EventTaskDeleted,
			TaskID:    id,
			Source:    "board",
			Timestamp: time.Now().UTC().UnixMilli(),
		})
		session.Invalidate()
		return c.NoContent(http.StatusNoContent)
	}
}

type archiveRequest struct {
	ID string `json:"id"`
}

func archiveTask(store Storage, session VoiceSession, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		lr := io.LimitReader(c.Request().Body, taskBodyMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()
		var req archiveRequest
		if err := dec.Decode(&req); err != nil || req.ID == "" {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		now := time.Now().UTC()
		task, err := store.ArchiveTask(ctx, req.ID, now)
		if err != nil {
			if errors.Is(err, domain.ErrTaskNotFound) {
				return c.String(http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		publishEvent(ctx, store, logger, domain.BoardEvent{
			Type:      domain.EventTaskArchived,
			TaskID:    task.ID,
			Status:    task.Status,
			Source:    "board",
			Timestamp: now.UnixMilli(),
		})
		session.Invalidate()
		return c.JSON(http.StatusOK, task)
	}
}

func restoreTask(store Storage, session VoiceSession, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := c.QueryParam("id")
		if id == "" {
			return c.String(http.StatusBadRequest, "missing task id")
		}
		now := time.Now().UTC()
		task, err := store.RestoreTask(ctx, id, now)
		if err != nil {
			if errors.Is(err, domain.ErrTaskNotFound) {
				return c.String(http.StatusNotFound, "task not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		publishEvent(ctx, store, logger, domain.BoardEvent{
			Type:      domain.EventTaskRestored,
			TaskID:    task.ID,
			Status:    task.Status,
			Source:    "board",
			Timestamp: now.UnixMilli(),
		})
		session.Invalidate()
		return c.JSON(http.StatusOK, task)
	}
}

// publishEvent pushes a board event to the queue on a best-effort basis.
// The write already happened; downstream consumers tolerate gaps.
func publishEvent(ctx context.Context, store Storage, logger *log.Logger, ev domain.BoardEvent) {
	if err := store.EnqueueEvents(ctx, []domain.BoardEvent{ev}); err != nil {
		logger.WithError(err).WithField("event", ev.Type).Warn("board event enqueue failed")
	}
}
