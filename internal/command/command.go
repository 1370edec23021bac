// Package command defines the atomic lamp state changes and the FIFO queue
// the dispatch loop works through.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidCommand is returned when a command field is out of range.
var ErrInvalidCommand = errors.New("command: invalid")

// Kind identifies a command type.
type Kind string

const (
	KindColor      Kind = "color"
	KindBrightness Kind = "brightness"
	KindPower      Kind = "power"
)

// Brightness bounds accepted by the lamp.
const (
	MinBrightness = 1
	MaxBrightness = 100
)

// RGB is a 24-bit color.
type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.R, c.G, c.B)
}

// MarshalJSON encodes as [r,g,b].
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{int(c.R), int(c.G), int(c.B)})
}

// UnmarshalJSON decodes [r,g,b], each 0-255.
func (c *RGB) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 3 {
		return fmt.Errorf("%w: color needs 3 components, got %d", ErrInvalidCommand, len(v))
	}
	for _, x := range v {
		if x < 0 || x > 255 {
			return fmt.Errorf("%w: color components have to be 0-255, got %v", ErrInvalidCommand, v)
		}
	}
	*c = RGB{R: uint8(v[0]), G: uint8(v[1]), B: uint8(v[2])}
	return nil
}

// Command is one lamp state change. Only the field matching Kind is meaningful.
type Command struct {
	Kind       Kind
	Color      RGB
	Brightness uint8
	Power      bool
}

// Color builds a color command.
func Color(r, g, b uint8) Command {
	return Command{Kind: KindColor, Color: RGB{R: r, G: g, B: b}}
}

// Brightness builds a brightness command (1-100).
func Brightness(b uint8) Command {
	return Command{Kind: KindBrightness, Brightness: b}
}

// Power builds a power command.
func Power(on bool) Command {
	return Command{Kind: KindPower, Power: on}
}

// Validate checks field ranges.
func (c Command) Validate() error {
	switch c.Kind {
	case KindColor, KindPower:
		return nil
	case KindBrightness:
		if c.Brightness < MinBrightness || c.Brightness > MaxBrightness {
			return fmt.Errorf("%w: brightness has to be %d-%d, was %d", ErrInvalidCommand, MinBrightness, MaxBrightness, c.Brightness)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, c.Kind)
	}
}

func (c Command) String() string {
	switch c.Kind {
	case KindColor:
		return "Color" + c.Color.String()
	case KindBrightness:
		return fmt.Sprintf("Brightness(%d)", c.Brightness)
	case KindPower:
		return fmt.Sprintf("Power(%t)", c.Power)
	default:
		return fmt.Sprintf("Command(%q)", c.Kind)
	}
}

type wireCommand struct {
	Type       Kind  `json:"type"`
	Color      *RGB  `json:"color,omitempty"`
	Brightness *int  `json:"brightness,omitempty"`
	Power      *bool `json:"power,omitempty"`
}

// MarshalJSON encodes as {"type":"brightness","brightness":40}.
func (c Command) MarshalJSON() ([]byte, error) {
	w := wireCommand{Type: c.Kind}
	switch c.Kind {
	case KindColor:
		color := c.Color
		w.Color = &color
	case KindBrightness:
		b := int(c.Brightness)
		w.Brightness = &b
	case KindPower:
		p := c.Power
		w.Power = &p
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes and validates a command.
func (c *Command) UnmarshalJSON(data []byte) error {
	var w wireCommand
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var parsed Command
	switch w.Type {
	case KindColor:
		if w.Color == nil {
			return fmt.Errorf("%w: color command without color", ErrInvalidCommand)
		}
		parsed = Command{Kind: KindColor, Color: *w.Color}
	case KindBrightness:
		if w.Brightness == nil {
			return fmt.Errorf("%w: brightness command without brightness", ErrInvalidCommand)
		}
		if *w.Brightness < MinBrightness || *w.Brightness > MaxBrightness {
			return fmt.Errorf("%w: brightness has to be %d-%d, was %d", ErrInvalidCommand, MinBrightness, MaxBrightness, *w.Brightness)
		}
		parsed = Brightness(uint8(*w.Brightness))
	case KindPower:
		if w.Power == nil {
			return fmt.Errorf("%w: power command without power", ErrInvalidCommand)
		}
		parsed = Power(*w.Power)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, w.Type)
	}

	*c = parsed
	return nil
}
