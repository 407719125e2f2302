package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/httpx"
)

// Enqueuer submits on-demand job runs.
type Enqueuer interface {
	EnqueueLedgerIntegrity(ctx context.Context) (*asynq.TaskInfo, error)
	EnqueueIdempotencyCleanup(ctx context.Context, retention time.Duration) (*asynq.TaskInfo, error)
}

// QueueInspector reports queue depth.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// QueueStatus is the body of GET /jobs/health.
type QueueStatus struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Paused    bool   `json:"paused"`
	Available bool   `json:"available"`
}

// Enqueued is returned when a job run was accepted.
type Enqueued struct {
	TaskID string `json:"task_id"`
	Task   string `json:"task"`
	Queue  string `json:"queue"`
}

type cleanupRequest struct {
	RetentionHours int `json:"retention_hours" validate:"omitempty,min=1"`
}

// Handler exposes queue health and manual triggers over HTTP.
type Handler struct {
	inspector QueueInspector
	client    Enqueuer
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler constructs the jobs handler. Either dependency may be nil; the
// affected endpoints then answer 503.
func NewHandler(inspector QueueInspector, client Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, client: client, validate: validator.New(), logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/integrity", h.enqueueIntegrity)
	r.Post("/idempotency-cleanup", h.enqueueCleanup)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	if h.inspector == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "job queue not configured")
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		if errors.Is(err, asynq.ErrQueueNotFound) {
			httpx.JSON(w, http.StatusOK, QueueStatus{Queue: QueueDefault, Available: true})
			return
		}
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
		return
	}
	httpx.JSON(w, http.StatusOK, QueueStatus{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Paused:    info.Paused,
		Available: true,
	})
}

func (h *Handler) enqueueIntegrity(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "job client not configured")
		return
	}
	info, err := h.client.EnqueueLedgerIntegrity(r.Context())
	h.respondEnqueue(w, TaskLedgerIntegrity, info, err)
}

func (h *Handler) enqueueCleanup(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "job client not configured")
		return
	}
	var req cleanupRequest
	if r.ContentLength != 0 {
		if !httpx.Bind(w, r, h.validate, &req) {
			return
		}
	}
	info, err := h.client.EnqueueIdempotencyCleanup(r.Context(), time.Duration(req.RetentionHours)*time.Hour)
	h.respondEnqueue(w, TaskIdempotencyCleanup, info, err)
}

func (h *Handler) respondEnqueue(w http.ResponseWriter, task string, info *asynq.TaskInfo, err error) {
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask):
		httpx.Problem(w, http.StatusConflict, "Already Queued", task+" is already waiting to run")
	case err != nil:
		h.logger.Error("enqueue job", slog.String("task", task), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	default:
		h.logger.Info("job enqueued", slog.String("task", task), slog.String("task_id", info.ID))
		httpx.JSON(w, http.StatusAccepted, Enqueued{TaskID: info.ID, Task: task, Queue: info.Queue})
	}
}
