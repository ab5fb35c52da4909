package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	sweepInterval  time.Duration
	log            *slog.Logger
}

// NewScheduler registers periodic maintenance tasks. sweepInterval controls
// how often abandoned drafts are expired.
func NewScheduler(redisOpt asynq.RedisConnOpt, sweepInterval time.Duration, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: newAsynqLogger(log)}),
		sweepInterval:  sweepInterval,
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	spec := fmt.Sprintf("@every %s", s.sweepInterval)
	if _, err := s.asynqScheduler.Register(spec, NewDraftExpireTask()); err != nil {
		return fmt.Errorf("register %s: %w", TaskTypeDraftExpire, err)
	}

	s.log.InfoContext(context.Background(), "scheduler: registered draft expiry task", slog.String("spec", spec))
	return nil
}

func (s *scheduler) Run() {
	s.log.InfoContext(context.Background(), "scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	s.log.InfoContext(context.Background(), "scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
