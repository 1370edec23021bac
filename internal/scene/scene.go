// Package scene holds the named command sequences the lamp can be put into.
package scene

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dokzlo13/lampd/internal/command"
)

// ErrUnknownScene is returned when a scene name is not in the book.
var ErrUnknownScene = errors.New("scene: unknown")

// Built-in scene names.
const (
	Nightlamp = "nightlamp"
	Daylamp   = "daylamp"
	Reminder  = "reminder"
	Off       = "off"
)

// Lamp holds the fixed values the built-in scenes use.
type Lamp struct {
	DayBrightness   uint8
	NightBrightness uint8
	NightlampColor  command.RGB
}

// DefaultLamp matches a dim warm night light and a low day level.
var DefaultLamp = Lamp{
	DayBrightness:   15,
	NightBrightness: 1,
	NightlampColor:  command.RGB{R: 255, G: 181, B: 128},
}

var white = command.RGB{R: 255, G: 255, B: 255}

// Book is a set of named scenes. Safe for concurrent use.
type Book struct {
	mu     sync.RWMutex
	scenes map[string][]command.Command
}

// NewBook creates a book holding the built-in scenes for lamp.
func NewBook(lamp Lamp) *Book {
	b := &Book{scenes: make(map[string][]command.Command)}

	b.scenes[Nightlamp] = []command.Command{
		command.Power(true),
		command.Brightness(lamp.NightBrightness),
		command.Color(lamp.NightlampColor.R, lamp.NightlampColor.G, lamp.NightlampColor.B),
	}
	b.scenes[Daylamp] = []command.Command{
		command.Power(true),
		command.Brightness(lamp.DayBrightness),
		command.Color(white.R, white.G, white.B),
	}
	b.scenes[Reminder] = []command.Command{
		command.Power(true),
		command.Brightness(100),
		command.Color(255, 0, 0),
		command.Brightness(lamp.DayBrightness),
		command.Color(white.R, white.G, white.B),
	}
	b.scenes[Off] = []command.Command{
		command.Brightness(lamp.DayBrightness),
		command.Power(false),
	}

	return b
}

// Set adds or replaces a scene. Every command is validated.
func (b *Book) Set(name string, cmds []command.Command) error {
	if name == "" {
		return fmt.Errorf("scene name must not be empty")
	}
	if len(cmds) == 0 {
		return fmt.Errorf("scene %q has no commands", name)
	}
	for i, c := range cmds {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("scene %q command %d: %w", name, i+1, err)
		}
	}

	stored := make([]command.Command, len(cmds))
	copy(stored, cmds)

	b.mu.Lock()
	b.scenes[name] = stored
	b.mu.Unlock()
	return nil
}

// Commands returns a copy of the named scene.
func (b *Book) Commands(name string) ([]command.Command, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cmds, ok := b.scenes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScene, name)
	}
	out := make([]command.Command, len(cmds))
	copy(out, cmds)
	return out, nil
}

// Has reports whether name is known.
func (b *Book) Has(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.scenes[name]
	return ok
}

// Names returns all scene names, sorted.
func (b *Book) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.scenes))
	for name := range b.scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
