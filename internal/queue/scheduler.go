package queue

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/SamiESK/insta-scrapper/internal/common"
)

// Scheduler triggers runs for every startable account on a cron schedule.
// Accounts already running, or held in paused, are left alone.
type Scheduler struct {
	service *Service
	config  common.SchedulerConfig
	logger  arbor.ILogger
	cron    *cron.Cron
}

// NewScheduler creates a cron scheduler over the queue service
func NewScheduler(service *Service, config common.SchedulerConfig, logger arbor.ILogger) *Scheduler {
	return &Scheduler{service: service, config: config, logger: logger}
}

// Start registers the cron entry. A disabled or empty schedule is a no-op.
func (s *Scheduler) Start() error {
	if !s.config.Enabled || s.config.Schedule == "" {
		s.logger.Debug().Msg("Scheduler disabled")
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.config.Schedule, s.triggerRuns); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.Schedule, err)
	}
	s.cron.Start()

	s.logger.Info().Str("schedule", s.config.Schedule).Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop; a running trigger finishes first
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Scheduler) triggerRuns() {
	ctx := context.Background()
	accounts, err := s.service.storage.AccountStorage().ListAccounts(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled trigger could not list accounts")
		return
	}

	started := 0
	for _, account := range accounts {
		if !account.Status.CanStart() {
			continue
		}
		if _, err := s.service.StartAccount(ctx, account.ID); err != nil {
			s.logger.Warn().Err(err).Int("account_id", account.ID).Msg("Scheduled start failed")
			continue
		}
		started++
	}

	s.logger.Info().
		Int("eligible", started).
		Int("total", len(accounts)).
		Msg("Scheduled trigger complete")
}
