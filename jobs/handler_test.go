package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubEnqueuer struct {
	retention time.Duration
	err       error
}

func (s *stubEnqueuer) EnqueueLedgerIntegrity(context.Context) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "task-1", Queue: QueueDefault, Type: TaskLedgerIntegrity}, nil
}

func (s *stubEnqueuer) EnqueueIdempotencyCleanup(_ context.Context, retention time.Duration) (*asynq.TaskInfo, error) {
	s.retention = retention
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "task-2", Queue: QueueDefault, Type: TaskIdempotencyCleanup}, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func serve(h *Handler, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body == "" {
		req.ContentLength = 0
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandlerEnqueueIntegrity(t *testing.T) {
	h := NewHandler(nil, &stubEnqueuer{}, discard())
	rr := serve(h, http.MethodPost, "/jobs/integrity", "")
	require.Equal(t, http.StatusAccepted, rr.Code)

	var got Enqueued
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, Enqueued{TaskID: "task-1", Task: TaskLedgerIntegrity, Queue: QueueDefault}, got)

	h = NewHandler(nil, &stubEnqueuer{err: asynq.ErrDuplicateTask}, discard())
	rr = serve(h, http.MethodPost, "/jobs/integrity", "")
	require.Equal(t, http.StatusConflict, rr.Code)

	h = NewHandler(nil, &stubEnqueuer{err: errors.New("redis down")}, discard())
	rr = serve(h, http.MethodPost, "/jobs/integrity", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	h = NewHandler(nil, nil, discard())
	rr = serve(h, http.MethodPost, "/jobs/integrity", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandlerEnqueueCleanup(t *testing.T) {
	client := &stubEnqueuer{}
	h := NewHandler(nil, client, discard())

	rr := serve(h, http.MethodPost, "/jobs/idempotency-cleanup", `{"retention_hours":24}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, 24*time.Hour, client.retention)

	rr = serve(h, http.MethodPost, "/jobs/idempotency-cleanup", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Zero(t, client.retention)

	rr = serve(h, http.MethodPost, "/jobs/idempotency-cleanup", `{"retention_hours":-1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerHealth(t *testing.T) {
	h := NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}}, nil, discard())
	rr := serve(h, http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var status QueueStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.Equal(t, 3, status.Pending)
	require.Equal(t, 1, status.Retry)
	require.True(t, status.Available)

	h = NewHandler(stubInspector{err: asynq.ErrQueueNotFound}, nil, discard())
	rr = serve(h, http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	h = NewHandler(stubInspector{err: errors.New("timeout")}, nil, discard())
	rr = serve(h, http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	h = NewHandler(nil, nil, discard())
	rr = serve(h, http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestClientRejectsDuplicateManualRun(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	info, err := client.EnqueueLedgerIntegrity(context.Background())
	require.NoError(t, err)
	require.Equal(t, TaskLedgerIntegrity, info.Type)
	require.Equal(t, QueueDefault, info.Queue)

	_, err = client.EnqueueLedgerIntegrity(context.Background())
	require.ErrorIs(t, err, asynq.ErrDuplicateTask)
}

func TestNewClientRequiresAddress(t *testing.T) {
	_, err := NewClient(asynq.RedisClientOpt{})
	require.Error(t, err)
}

func TestNewWorkerValidatesRoutes(t *testing.T) {
	_, err := NewWorker(WorkerConfig{Redis: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	require.Error(t, err)

	task, err := NewLedgerIntegrityTask(time.Now())
	require.NoError(t, err)
	_, err = NewWorker(WorkerConfig{
		Redis:     asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Logger:    discard(),
		Routes:    map[string]asynq.HandlerFunc{TaskLedgerIntegrity: func(context.Context, *asynq.Task) error { return nil }},
		Schedules: []Schedule{{Cron: "not a cron", Task: task}},
	})
	require.Error(t, err)
}
