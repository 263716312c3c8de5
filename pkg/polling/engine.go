// Package polling drives asynchronous provider jobs to a terminal state with an adaptive interval.
package polling

import (
	"context"
	"time"

	"ai-mediagen-be/internal/pkg/logger"
	"ai-mediagen-be/pkg/apperror"
	"ai-mediagen-be/pkg/metrics"
	"ai-mediagen-be/pkg/provider"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxAttempts  = 60
	DefaultBaseInterval = 3 * time.Second
)

type Config struct {
	MaxAttempts  int
	BaseInterval time.Duration
}

// Job identifies the provider task to follow.
type Job struct {
	Provider     provider.AsyncProvider
	TaskID       string
	GenerationID string
}

type Engine struct {
	cfg    Config
	store  TaskStore
	logger logger.ILogger
	wait   func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func NewEngine(cfg Config, store TaskStore, log logger.ILogger) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = DefaultBaseInterval
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Engine{
		cfg:    cfg,
		store:  store,
		logger: log,
		wait:   sleepContext,
		now:    time.Now,
	}
}

// IntervalFor returns the delay before the given 1-based attempt:
// base for attempts 1-5, 1.5x base for 6-15, 2x base afterwards.
func IntervalFor(base time.Duration, attempt int) time.Duration {
	switch {
	case attempt <= 5:
		return base
	case attempt <= 15:
		return base * 3 / 2
	default:
		return base * 2
	}
}

// Poll queries the provider until the job completes, fails, the attempts run out or ctx is done.
// Cancelling ctx stops local polling only; the provider job keeps running upstream.
func (e *Engine) Poll(ctx context.Context, job Job) (*provider.Status, error) {
	providerName := job.Provider.Name()
	ctx, span := otel.Tracer("ai-mediagen-be/polling").Start(ctx, "polling.Poll")
	span.SetAttributes(
		attribute.String("provider", providerName),
		attribute.String("task_id", job.TaskID),
	)
	defer span.End()

	task := &PollTask{
		TaskID:       job.TaskID,
		Provider:     providerName,
		GenerationID: job.GenerationID,
		Status:       provider.StateProcessing,
		CreatedAt:    e.now(),
		UpdatedAt:    e.now(),
	}
	e.save(ctx, task)

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := e.wait(ctx, IntervalFor(e.cfg.BaseInterval, attempt)); err != nil {
			return nil, e.cancelled(span, task, err)
		}

		status, err := job.Provider.GetStatus(ctx, job.TaskID)
		task.Attempts = attempt
		if err != nil {
			if ctx.Err() != nil {
				return nil, e.cancelled(span, task, ctx.Err())
			}
			e.logger.Warn("POLLING", "Status query failed, retrying", map[string]interface{}{
				"provider": providerName,
				"task_id":  job.TaskID,
				"attempt":  attempt,
				"error":    err.Error(),
			})
			continue
		}

		task.Status = status.State
		task.RawStatus = status.RawState
		task.Progress = status.Progress
		task.Message = status.ErrorMessage
		task.UpdatedAt = e.now()
		e.save(ctx, task)

		switch status.State {
		case provider.StateCompleted:
			metrics.PollAttempts.WithLabelValues(providerName, "completed").Observe(float64(attempt))
			span.SetAttributes(attribute.Int("attempts", attempt))
			return status, nil
		case provider.StateFailed:
			metrics.PollAttempts.WithLabelValues(providerName, "failed").Observe(float64(attempt))
			appErr := apperror.ProviderTerminal(status.ErrorMessage)
			span.RecordError(appErr)
			span.SetStatus(codes.Error, appErr.Message)
			return status, appErr
		}
	}

	metrics.PollAttempts.WithLabelValues(providerName, "timeout").Observe(float64(e.cfg.MaxAttempts))
	task.Status = provider.StateFailed
	task.Message = "polling timed out"
	task.UpdatedAt = e.now()
	e.save(ctx, task)

	appErr := apperror.ProviderPollTimeout(job.TaskID, e.cfg.MaxAttempts)
	span.RecordError(appErr)
	span.SetStatus(codes.Error, appErr.Message)
	e.logger.Error("POLLING", "Polling exhausted attempts", map[string]interface{}{
		"provider": providerName,
		"task_id":  job.TaskID,
		"attempts": e.cfg.MaxAttempts,
	})
	return nil, appErr
}

func (e *Engine) cancelled(span trace.Span, task *PollTask, cause error) error {
	metrics.PollAttempts.WithLabelValues(task.Provider, "cancelled").Observe(float64(task.Attempts))
	task.Message = "polling cancelled"
	task.UpdatedAt = e.now()
	e.save(context.Background(), task)

	appErr := apperror.Cancelled(cause)
	span.RecordError(appErr)
	span.SetStatus(codes.Error, appErr.Message)
	e.logger.Warn("POLLING", "Polling cancelled, provider job left running upstream", map[string]interface{}{
		"provider": task.Provider,
		"task_id":  task.TaskID,
		"attempts": task.Attempts,
	})
	return appErr
}

func (e *Engine) save(ctx context.Context, task *PollTask) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(ctx, task); err != nil {
		e.logger.Warn("POLLING", "Failed to save poll task", map[string]interface{}{
			"task_id": task.TaskID,
			"error":   err.Error(),
		})
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
