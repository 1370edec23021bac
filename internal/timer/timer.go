// Package timer defines the recurring schedule rules users edit and their
// expansion into one-shot triggers.
package timer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dokzlo13/lampd/internal/command"
	"github.com/dokzlo13/lampd/internal/timeday"
)

// ErrInvalidTimer is returned when a rule has out-of-range parameters.
var ErrInvalidTimer = errors.New("timer: invalid")

// maxOffsetMin bounds every minute offset to one day.
const maxOffsetMin = 24 * 60

// ActionType tags a timer action.
type ActionType string

const (
	ActionSunrise    ActionType = "sunrise"
	ActionReminder   ActionType = "reminder"
	ActionNightlamp  ActionType = "nightlamp"
	ActionDaylamp    ActionType = "daylamp"
	ActionPower      ActionType = "power"
	ActionBrightness ActionType = "brightness"
	ActionColor      ActionType = "color"
)

// Action is what a rule does at its anchor. Only fields relevant to Type are
// used; the struct stays comparable so rules can be deduplicated.
type Action struct {
	Type ActionType `json:"type"`

	// sunrise
	DurationMin  int `json:"duration_min,omitempty"`
	StayOnForMin int `json:"stay_on_for_min,omitempty"`
	SleepMin     int `json:"sleep_min,omitempty"`
	NightlampMin int `json:"nightlamp_min,omitempty"`

	Power      bool `json:"power,omitempty"`
	Brightness int  `json:"brightness,omitempty"`
	R          int  `json:"r,omitempty"`
	G          int  `json:"g,omitempty"`
	B          int  `json:"b,omitempty"`
}

// Sunrise builds a sunrise action.
func Sunrise(durationMin, stayOnForMin, sleepMin, nightlampMin int) Action {
	return Action{
		Type:         ActionSunrise,
		DurationMin:  durationMin,
		StayOnForMin: stayOnForMin,
		SleepMin:     sleepMin,
		NightlampMin: nightlampMin,
	}
}

// PowerState builds a power action.
func PowerState(on bool) Action { return Action{Type: ActionPower, Power: on} }

// BrightnessState builds a brightness action.
func BrightnessState(b int) Action { return Action{Type: ActionBrightness, Brightness: b} }

// ColorState builds a color action.
func ColorState(r, g, b int) Action { return Action{Type: ActionColor, R: r, G: g, B: b} }

// Timer is a recurring rule anchored at a TimeDay.
type Timer struct {
	Enabled bool            `json:"enabled"`
	Time    timeday.TimeDay `json:"time"`
	Action  Action          `json:"action"`
}

// UnmarshalJSON defaults enabled to true when omitted.
func (t *Timer) UnmarshalJSON(data []byte) error {
	type plain Timer
	p := plain{Enabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Timer(p)
	return nil
}

// Validate checks the rule before it enters the schedule.
func (t Timer) Validate() error {
	if t.Time.IsZero() {
		return fmt.Errorf("%w: time is required", ErrInvalidTimer)
	}
	return t.Action.Validate()
}

// Validate checks action parameters.
func (a Action) Validate() error {
	switch a.Type {
	case ActionSunrise:
		if err := checkMinutes("duration_min", a.DurationMin); err != nil {
			return err
		}
		if err := checkMinutes("stay_on_for_min", a.StayOnForMin); err != nil {
			return err
		}
		if err := checkMinutes("sleep_min", a.SleepMin); err != nil {
			return err
		}
		if err := checkMinutes("nightlamp_min", a.NightlampMin); err != nil {
			return err
		}
		if a.DurationMin == 0 {
			return fmt.Errorf("%w: duration_min must be positive", ErrInvalidTimer)
		}
		if a.NightlampMin > 0 && a.SleepMin < a.DurationMin {
			return fmt.Errorf("%w: sleep_min (%d) must not be shorter than duration_min (%d) when nightlamp is used",
				ErrInvalidTimer, a.SleepMin, a.DurationMin)
		}
	case ActionReminder, ActionNightlamp, ActionDaylamp, ActionPower:
	case ActionBrightness:
		if a.Brightness < command.MinBrightness || a.Brightness > command.MaxBrightness {
			return fmt.Errorf("%w: brightness has to be %d-%d, was %d",
				ErrInvalidTimer, command.MinBrightness, command.MaxBrightness, a.Brightness)
		}
	case ActionColor:
		for _, c := range []int{a.R, a.G, a.B} {
			if c < 0 || c > 255 {
				return fmt.Errorf("%w: color components have to be 0-255, got (%d, %d, %d)", ErrInvalidTimer, a.R, a.G, a.B)
			}
		}
	case "":
		return fmt.Errorf("%w: action type is required", ErrInvalidTimer)
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidTimer, a.Type)
	}
	return nil
}

func checkMinutes(field string, v int) error {
	if v < 0 || v > maxOffsetMin {
		return fmt.Errorf("%w: %s has to be 0-%d, was %d", ErrInvalidTimer, field, maxOffsetMin, v)
	}
	return nil
}

// ValidateAll checks every timer and reports the first failure with its index.
func ValidateAll(timers []Timer) error {
	for i, t := range timers {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("timer %d: %w", i, err)
		}
	}
	return nil
}

// Dedupe drops exact duplicates, keeping first occurrences in order.
func Dedupe(timers []Timer) []Timer {
	seen := make(map[Timer]struct{}, len(timers))
	out := make([]Timer, 0, len(timers))
	for _, t := range timers {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
