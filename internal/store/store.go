// Package store persists the timer rule list.
package store

import (
	"github.com/dokzlo13/lampd/internal/timer"
)

// TimerStore loads and saves the whole rule list at once.
type TimerStore interface {
	Load() ([]timer.Timer, error)
	Save(timers []timer.Timer) error
	Clear() error
}
