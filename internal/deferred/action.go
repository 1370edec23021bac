// Package deferred carries work from schedule matches and request handlers
// into the dispatch loop, which is the only owner of the command queue.
package deferred

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dokzlo13/lampd/internal/command"
)

// Kind tags an Action.
type Kind uint8

const (
	KindClear Kind = iota + 1
	KindScene
	KindCommand
	KindSunrise
)

func (k Kind) String() string {
	switch k {
	case KindClear:
		return "clear"
	case KindScene:
		return "scene"
	case KindCommand:
		return "command"
	case KindSunrise:
		return "sunrise"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Action is a queue mutation to be run inside the dispatch loop. Values are
// comparable.
type Action struct {
	Kind     Kind
	Scene    string
	Command  command.Command
	Duration time.Duration
}

// Clear drops every pending command.
func Clear() Action { return Action{Kind: KindClear} }

// Scene appends the commands of a named scene.
func Scene(name string) Action { return Action{Kind: KindScene, Scene: name} }

// Command appends a single command.
func Command(c command.Command) Action { return Action{Kind: KindCommand, Command: c} }

// Sunrise powers the lamp on and appends a ramp lasting d.
func Sunrise(d time.Duration) Action { return Action{Kind: KindSunrise, Duration: d} }

func (a Action) String() string {
	switch a.Kind {
	case KindScene:
		return "scene(" + a.Scene + ")"
	case KindCommand:
		return "command(" + a.Command.String() + ")"
	case KindSunrise:
		return "sunrise(" + a.Duration.String() + ")"
	default:
		return a.Kind.String()
	}
}

// MarshalJSON encodes only the fields relevant to the kind.
func (a Action) MarshalJSON() ([]byte, error) {
	out := map[string]any{"kind": a.Kind.String()}
	switch a.Kind {
	case KindScene:
		out["scene"] = a.Scene
	case KindCommand:
		out["command"] = a.Command
	case KindSunrise:
		out["duration_min"] = int(a.Duration / time.Minute)
	}
	return json.Marshal(out)
}
