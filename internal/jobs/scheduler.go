package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

const defaultCompleteElapsedCron = "*/15 * * * *"

// Scheduler registers the recurring tasks and runs the cron loop.
type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	completeCron   string
	log            *slog.Logger
}

// NewScheduler builds the cron scheduler. completeCron overrides the cadence
// of the elapsed-appointment sweep; empty uses the default.
func NewScheduler(redisOpt asynq.RedisConnOpt, completeCron string, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if completeCron == "" {
		completeCron = defaultCompleteElapsedCron
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		completeCron:   completeCron,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewCompleteElapsedTask("cron")
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.completeCron, task); err != nil {
		return err
	}

	s.log.InfoContext(context.Background(), "scheduler: registered elapsed-appointment sweep",
		slog.String("cron", s.completeCron),
	)

	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", slog.Any("error", err))
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
