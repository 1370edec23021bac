// Package scheduler keeps the active rule list and matches its triggers
// against the wall clock once per minute.
package scheduler

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lampd/internal/ledger"
	"github.com/dokzlo13/lampd/internal/timeday"
	"github.com/dokzlo13/lampd/internal/timer"
)

// Checker matches triggers against the current minute. It remembers the last
// minute it evaluated so calling it several times per minute fires each
// trigger once. Not safe for concurrent use; the dispatch loop owns it.
type Checker struct {
	schedule *Schedule
	recorder Recorder
	loc      *time.Location
	now      func() time.Time

	lastChecked timeday.TimeDay
}

// NewChecker creates a checker reading wall-clock time in loc. rec may be nil.
func NewChecker(s *Schedule, loc *time.Location, rec Recorder) *Checker {
	if loc == nil {
		loc = time.UTC
	}
	return &Checker{
		schedule: s,
		recorder: rec,
		loc:      loc,
		now:      time.Now,
	}
}

// LoadLocation resolves a timezone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	tz, err := time.LoadLocation(name)
	if err != nil {
		log.Warn().Err(err).Str("timezone", name).Msg("Failed to load timezone, using UTC")
		return time.UTC
	}
	return tz
}

// Check hands every trigger matching the current minute to emit, in schedule
// order, and returns how many matched. Repeated calls within one minute are
// no-ops.
func (c *Checker) Check(emit func(timer.SimpleTimer)) int {
	now := timeday.FromTime(c.now().In(c.loc))
	if now.SameMinute(c.lastChecked) {
		return 0
	}
	c.lastChecked = now

	matched := 0
	for _, st := range c.schedule.SimpleTimers() {
		if !st.Trigger.Matches(now) {
			continue
		}
		matched++

		log.Info().
			Str("trigger", st.Trigger.String()).
			Str("description", st.Description).
			Str("action", st.Action.String()).
			Msg("Timer fired")

		if c.recorder != nil {
			if err := c.recorder.Append(ledger.EventTimerFired, "scheduler", map[string]any{
				"description": st.Description,
				"action":      st.Action.String(),
			}); err != nil {
				log.Warn().Err(err).Msg("Failed to record timer fire")
			}
		}

		emit(st)
	}
	return matched
}

// SetClock replaces the wall clock.
func (c *Checker) SetClock(now func() time.Time) {
	c.now = now
}

// LastChecked returns the last evaluated minute.
func (c *Checker) LastChecked() timeday.TimeDay {
	return c.lastChecked
}
