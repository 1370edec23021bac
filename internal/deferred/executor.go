package deferred

import (
	"fmt"

	"github.com/dokzlo13/lampd/internal/command"
	"github.com/dokzlo13/lampd/internal/scene"
	"github.com/dokzlo13/lampd/internal/sunrise"
)

// Executor interprets actions against the command queue.
type Executor struct {
	scenes  *scene.Book
	sunrise *sunrise.Generator
}

// NewExecutor creates an executor using the given scene book and ramp generator.
func NewExecutor(scenes *scene.Book, gen *sunrise.Generator) *Executor {
	return &Executor{scenes: scenes, sunrise: gen}
}

// Apply runs a against q. On error q is left untouched.
func (e *Executor) Apply(a Action, q *command.Queue) error {
	switch a.Kind {
	case KindClear:
		q.Clear()
	case KindScene:
		cmds, err := e.scenes.Commands(a.Scene)
		if err != nil {
			return err
		}
		q.Push(cmds...)
	case KindCommand:
		if err := a.Command.Validate(); err != nil {
			return err
		}
		q.Push(a.Command)
	case KindSunrise:
		q.Push(command.Power(true))
		q.Push(e.sunrise.Generate(a.Duration)...)
	default:
		return fmt.Errorf("unknown action kind %s", a.Kind)
	}
	return nil
}
