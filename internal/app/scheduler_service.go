package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/config"
	"github.com/dokzlo13/lampd/internal/ledger"
	"github.com/dokzlo13/lampd/internal/scheduler"
	"github.com/dokzlo13/lampd/internal/store"
)

// SchedulerService wraps the timer schedule and related periodic tasks.
type SchedulerService struct {
	cfg      *config.Config
	Schedule *scheduler.Schedule
	Checker  *scheduler.Checker
	ledger   *ledger.Ledger
}

// NewSchedulerService creates a new SchedulerService. l may be nil when the
// ledger is disabled.
func NewSchedulerService(cfg *config.Config, st store.TimerStore, rec scheduler.Recorder, l *ledger.Ledger) *SchedulerService {
	sched := scheduler.NewSchedule(st, rec)
	loc := scheduler.LoadLocation(cfg.Schedule.Timezone)
	return &SchedulerService{
		cfg:      cfg,
		Schedule: sched,
		Checker:  scheduler.NewChecker(sched, loc, rec),
		ledger:   l,
	}
}

// Restore loads the persisted timers.
func (s *SchedulerService) Restore() {
	n := s.Schedule.Restore()
	log.Info().Int("timers", n).Str("timezone", s.cfg.Schedule.Timezone).Msg("Scheduler ready")
}

// StartCleanup starts the periodic ledger cleanup, if the ledger is enabled.
func (s *SchedulerService) StartCleanup(ctx context.Context, wg *sync.WaitGroup) {
	if s.ledger == nil {
		log.Debug().Msg("Ledger disabled, skipping cleanup")
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runLedgerCleanup(ctx)
	}()
}

// runLedgerCleanup periodically cleans up old ledger entries.
func (s *SchedulerService) runLedgerCleanup(ctx context.Context) {
	retention := s.cfg.Ledger.Retention.Duration()
	interval := s.cfg.Ledger.CleanupInterval.Duration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}
