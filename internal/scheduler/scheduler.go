// Package scheduler wires up the cron job that periodically enqueues the
// learning-resource pre-warm task.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"jobgenie/internal/tasks"
)

// Scheduler wraps robfig/cron and owns the pre-warm tick.
type Scheduler struct {
	cron   *cron.Cron
	queue  tasks.Enqueuer
	spec   string // cron spec, e.g. "0 3 * * *"
	logger *slog.Logger
}

// New creates a Scheduler firing on spec.
func New(queue tasks.Enqueuer, spec string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		queue:  queue,
		spec:   spec,
		logger: logger.With(slog.String("component", "scheduler")),
	}
}

// Start registers the job and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.enqueuePrewarm(ctx); err != nil {
			s.logger.Error("enqueue prewarm failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("cron started", slog.String("spec", s.spec))
	return nil
}

// Stop waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("cron stopped")
}

// enqueuePrewarm 每个周期最多入队一次，重复入队视为成功。
func (s *Scheduler) enqueuePrewarm(ctx context.Context) error {
	task, err := tasks.NewResourcePrewarmTask(tasks.ResourcePrewarmPayload{CorrelationID: uuid.NewString()})
	if err != nil {
		return fmt.Errorf("build prewarm task: %w", err)
	}
	info, err := s.queue.EnqueueContext(ctx, task, asynq.Unique(time.Hour))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		s.logger.Info("prewarm already queued")
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue prewarm task: %w", err)
	}
	s.logger.Info("prewarm task queued", slog.String("task_id", info.ID))
	return nil
}
