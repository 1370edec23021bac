package deferred

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dokzlo13/lampd/internal/command"
)

// ErrInvalidRequest is returned for request bodies that do not name exactly
// one valid action.
var ErrInvalidRequest = errors.New("deferred: invalid request")

// MaxSunrise bounds on-demand sunrise ramps.
const MaxSunrise = 24 * time.Hour

// Request is the external JSON shape of an on-demand action, e.g.
// {"power":true}, {"brightness":40}, {"color":[255,0,0]}, {"scene":"nightlamp"},
// {"sunrise_min":20} or {"clear":true}.
type Request struct {
	Power      *bool        `json:"power,omitempty"`
	Brightness *int         `json:"brightness,omitempty"`
	Color      *command.RGB `json:"color,omitempty"`
	Scene      string       `json:"scene,omitempty"`
	SunriseMin *int         `json:"sunrise_min,omitempty"`
	Clear      bool         `json:"clear,omitempty"`
}

// ParseRequest decodes and converts a request body.
func ParseRequest(data []byte) (Action, error) {
	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return Action{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return r.Action()
}

// Action converts the request. Exactly one field must be set.
func (r Request) Action() (Action, error) {
	var actions []Action

	if r.Power != nil {
		actions = append(actions, Command(command.Power(*r.Power)))
	}
	if r.Brightness != nil {
		b := *r.Brightness
		if b < command.MinBrightness || b > command.MaxBrightness {
			return Action{}, fmt.Errorf("%w: brightness has to be %d-%d, was %d",
				ErrInvalidRequest, command.MinBrightness, command.MaxBrightness, b)
		}
		actions = append(actions, Command(command.Brightness(uint8(b))))
	}
	if r.Color != nil {
		actions = append(actions, Command(command.Color(r.Color.R, r.Color.G, r.Color.B)))
	}
	if r.Scene != "" {
		actions = append(actions, Scene(r.Scene))
	}
	if r.SunriseMin != nil {
		d, err := SunriseDuration(*r.SunriseMin)
		if err != nil {
			return Action{}, err
		}
		actions = append(actions, Sunrise(d))
	}
	if r.Clear {
		actions = append(actions, Clear())
	}

	if len(actions) != 1 {
		return Action{}, fmt.Errorf("%w: expected exactly one of power, brightness, color, scene, sunrise_min, clear", ErrInvalidRequest)
	}
	return actions[0], nil
}

// SunriseDuration validates a ramp length in minutes.
func SunriseDuration(minutes int) (time.Duration, error) {
	// checked before multiplying so huge values cannot wrap into range
	maxMin := int(MaxSunrise / time.Minute)
	if minutes < 1 || minutes > maxMin {
		return 0, fmt.Errorf("%w: sunrise minutes have to be 1-%d, was %d", ErrInvalidRequest, maxMin, minutes)
	}
	return time.Duration(minutes) * time.Minute, nil
}
