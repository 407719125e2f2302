package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const defaultConcurrency = 5

// Schedule binds a cron expression to a prepared task.
type Schedule struct {
	Cron    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects what the worker process needs to start.
type WorkerConfig struct {
	Redis       asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	// Routes maps task types to their handlers.
	Routes    map[string]asynq.HandlerFunc
	Schedules []Schedule
}

// Worker consumes the default queue and, when schedules are configured,
// enqueues periodic tasks.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// NewWorker builds the asynq server and scheduler. Invalid cron expressions
// fail here rather than at the first tick.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if len(cfg.Routes) == 0 {
		return nil, errors.New("worker: no task routes")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	mux := asynq.NewServeMux()
	for taskType, handler := range cfg.Routes {
		if taskType == "" || handler == nil {
			return nil, errors.New("worker: route needs a task type and handler")
		}
		mux.HandleFunc(taskType, handler)
	}

	srv := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueDefault: 1},
		Logger:      newAsynqLogger(logger),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			logger.Error("job failed",
				slog.String("task", task.Type()),
				slog.Int("retried", retried),
				slog.Any("error", err))
		}),
	})

	w := &Worker{server: srv, mux: mux, logger: logger}
	if len(cfg.Schedules) == 0 {
		return w, nil
	}
	w.scheduler = asynq.NewScheduler(cfg.Redis, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   newAsynqLogger(logger),
	})
	for _, s := range cfg.Schedules {
		if s.Task == nil {
			return nil, errors.New("worker: schedule without task")
		}
		if _, err := w.scheduler.Register(s.Cron, s.Task, s.Options...); err != nil {
			return nil, err
		}
		logger.Info("job scheduled", slog.String("task", s.Task.Type()), slog.String("cron", s.Cron))
	}
	return w, nil
}

// Run processes tasks until ctx is cancelled, then drains in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return err
		}
	}
	<-ctx.Done()
	w.logger.Info("worker draining")
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	return ctx.Err()
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	logger *slog.Logger
}

func newAsynqLogger(logger *slog.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.With(slog.String("component", "asynq"))}
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...any) { l.logger.Error(fmt.Sprint(args...), slog.Bool("fatal", true)) }
