package scheduler

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/ledger"
	"github.com/dokzlo13/lampd/internal/store"
	"github.com/dokzlo13/lampd/internal/timer"
)

// Recorder appends history events. *ledger.Ledger implements it.
type Recorder interface {
	Append(eventType ledger.EventType, source string, payload map[string]any) error
}

// Schedule holds the rule list and its expanded triggers. Readers always see
// a list and its expansion together.
type Schedule struct {
	mu     sync.RWMutex
	timers []timer.Timer
	simple []timer.SimpleTimer

	// serializes Replace so saves land in call order
	replaceMu sync.Mutex

	store    store.TimerStore
	recorder Recorder
}

// NewSchedule creates an empty schedule. st and rec may be nil.
func NewSchedule(st store.TimerStore, rec Recorder) *Schedule {
	return &Schedule{store: st, recorder: rec}
}

// Restore loads the persisted rules. Unreadable or invalid data yields an
// empty schedule. Returns the number of rules loaded.
func (s *Schedule) Restore() int {
	if s.store == nil {
		return 0
	}

	timers, err := s.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load timers, starting with an empty schedule")
		timers = nil
	} else if err := timer.ValidateAll(timers); err != nil {
		log.Warn().Err(err).Msg("Stored timers are invalid, starting with an empty schedule")
		timers = nil
	}

	timers = timer.Dedupe(timers)
	simple := timer.Process(timers)

	s.mu.Lock()
	s.timers = timers
	s.simple = simple
	s.mu.Unlock()

	log.Info().Int("timers", len(timers)).Int("triggers", len(simple)).Msg("Schedule restored")
	s.logTriggers(simple)
	return len(timers)
}

// Replace validates the whole list and swaps it in atomically. An invalid
// rule rejects the batch and leaves the schedule unchanged. Persisting is
// best-effort.
func (s *Schedule) Replace(timers []timer.Timer) error {
	if err := timer.ValidateAll(timers); err != nil {
		return err
	}

	s.replaceMu.Lock()
	defer s.replaceMu.Unlock()

	timers = timer.Dedupe(timers)
	simple := timer.Process(timers)

	s.mu.Lock()
	s.timers = timers
	s.simple = simple
	s.mu.Unlock()

	log.Info().Int("timers", len(timers)).Int("triggers", len(simple)).Msg("Schedule replaced")
	s.logTriggers(simple)

	if s.store != nil {
		if err := s.store.Save(timers); err != nil {
			log.Error().Err(err).Msg("Failed to save timers")
		}
	}
	if s.recorder != nil {
		if err := s.recorder.Append(ledger.EventTimersReplaced, "api", map[string]any{
			"timers":   len(timers),
			"triggers": len(simple),
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to record schedule change")
		}
	}
	return nil
}

// Timers returns a copy of the rule list.
func (s *Schedule) Timers() []timer.Timer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]timer.Timer, len(s.timers))
	copy(out, s.timers)
	return out
}

// SimpleTimers returns a copy of the expanded triggers.
func (s *Schedule) SimpleTimers() []timer.SimpleTimer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]timer.SimpleTimer, len(s.simple))
	copy(out, s.simple)
	return out
}

func (s *Schedule) logTriggers(simple []timer.SimpleTimer) {
	for _, st := range simple {
		log.Debug().
			Str("trigger", st.Trigger.String()).
			Str("description", st.Description).
			Str("action", st.Action.String()).
			Msg("Trigger scheduled")
	}
}
