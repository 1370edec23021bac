package timer

import (
	"fmt"
	"time"

	"github.com/dokzlo13/lampd/internal/command"
	"github.com/dokzlo13/lampd/internal/deferred"
	"github.com/dokzlo13/lampd/internal/scene"
	"github.com/dokzlo13/lampd/internal/timeday"
)

// SimpleTimer is a single trigger point expanded from a rule.
type SimpleTimer struct {
	Trigger     timeday.TimeDay `json:"trigger"`
	Description string          `json:"description"`
	Action      deferred.Action `json:"action"`
}

// Process expands enabled rules into triggers, in rule order. Rules are
// expected to be valid.
func Process(timers []Timer) []SimpleTimer {
	var out []SimpleTimer
	for _, t := range timers {
		if !t.Enabled {
			continue
		}
		out = append(out, expand(t)...)
	}
	return out
}

func expand(t Timer) []SimpleTimer {
	anchor := t.Time
	a := t.Action

	switch a.Type {
	case ActionSunrise:
		var out []SimpleTimer
		if a.NightlampMin > 0 {
			out = append(out,
				SimpleTimer{
					Trigger:     anchor.Shift(0, -a.SleepMin-a.NightlampMin),
					Description: fmt.Sprintf("nightlamp on for %dm before %dm sleep", a.NightlampMin, a.SleepMin),
					Action:      deferred.Scene(scene.Nightlamp),
				},
				SimpleTimer{
					Trigger:     anchor.Shift(0, -a.SleepMin),
					Description: "nightlamp off",
					Action:      deferred.Command(command.Power(false)),
				},
			)
		}
		return append(out,
			SimpleTimer{
				Trigger:     anchor.Shift(0, -a.DurationMin),
				Description: fmt.Sprintf("sunrise over %dm", a.DurationMin),
				Action:      deferred.Sunrise(time.Duration(a.DurationMin) * time.Minute),
			},
			SimpleTimer{
				Trigger:     anchor.Shift(0, a.StayOnForMin),
				Description: fmt.Sprintf("turn off after staying on %dm", a.StayOnForMin),
				Action:      deferred.Scene(scene.Off),
			},
		)
	case ActionReminder:
		return single(anchor, "reminder", deferred.Scene(scene.Reminder))
	case ActionNightlamp:
		return single(anchor, "nightlamp", deferred.Scene(scene.Nightlamp))
	case ActionDaylamp:
		return single(anchor, "daylamp", deferred.Scene(scene.Daylamp))
	case ActionPower:
		return single(anchor, fmt.Sprintf("power %t", a.Power), deferred.Command(command.Power(a.Power)))
	case ActionBrightness:
		return single(anchor, fmt.Sprintf("brightness %d", a.Brightness), deferred.Command(command.Brightness(uint8(a.Brightness))))
	case ActionColor:
		return single(anchor, fmt.Sprintf("color (%d, %d, %d)", a.R, a.G, a.B),
			deferred.Command(command.Color(uint8(a.R), uint8(a.G), uint8(a.B))))
	default:
		return nil
	}
}

func single(trigger timeday.TimeDay, desc string, action deferred.Action) []SimpleTimer {
	return []SimpleTimer{{Trigger: trigger, Description: desc, Action: action}}
}
