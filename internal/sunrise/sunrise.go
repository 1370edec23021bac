// Package sunrise expands a duration into a brightness/color ramp that the
// dispatch loop can play back one command per cycle.
package sunrise

import (
	"math"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/dokzlo13/lampd/internal/command"
)

// Params describes the ramp end points. Hue is in degrees, saturation and
// value in 0..1.
type Params struct {
	Hue             float64
	SaturationStart float64
	SaturationStop  float64
	Value           float64
	BrightnessStart uint8
	BrightnessStop  uint8
}

// DefaultParams is a warm orange that fades toward white while brightening.
var DefaultParams = Params{
	Hue:             25,
	SaturationStart: 0.8,
	SaturationStop:  0.55,
	Value:           1.0,
	BrightnessStart: 1,
	BrightnessStop:  100,
}

// Step is one point on the ramp.
type Step struct {
	Brightness uint8
	Saturation float64
	Color      command.RGB
}

// Generator produces ramps. It is a pure value and safe for concurrent use.
type Generator struct {
	params Params
	// cycle is the wall time one command occupies in the dispatch loop
	cycle time.Duration
}

// NewGenerator creates a generator for a loop that applies one command per
// interval, each taking roughly avgApply to land on the lamp.
func NewGenerator(params Params, interval, avgApply time.Duration) *Generator {
	return &Generator{params: params, cycle: interval + avgApply}
}

// StateCount returns how many brightness/color pairs fit into d.
func (g *Generator) StateCount(d time.Duration) int {
	if d <= 0 || g.cycle <= 0 {
		return 0
	}
	// two commands per state
	return int(d / g.cycle / 2)
}

// Steps computes the ramp for d. Fewer than two states cannot interpolate:
// zero states yield nothing and a single state lands on the stop values.
func (g *Generator) Steps(d time.Duration) []Step {
	n := g.StateCount(d)
	if n == 0 {
		return nil
	}

	p := g.params
	if n == 1 {
		return []Step{g.step(float64(p.BrightnessStop), p.SaturationStop)}
	}

	steps := make([]Step, 0, n)
	span := float64(n - 1)
	briDelta := (float64(p.BrightnessStop) - float64(p.BrightnessStart)) / span
	satDelta := (p.SaturationStart - p.SaturationStop) / span

	for i := 0; i < n; i++ {
		bri := float64(p.BrightnessStart) + float64(i)*briDelta
		sat := p.SaturationStart - float64(i)*satDelta
		steps = append(steps, g.step(bri, sat))
	}
	return steps
}

func (g *Generator) step(bri, sat float64) Step {
	r, gr, b := colorful.Hsv(g.params.Hue, clamp01(sat), clamp01(g.params.Value)).Clamped().RGB255()
	return Step{
		Brightness: clampBrightness(math.Round(bri)),
		Saturation: sat,
		Color:      command.RGB{R: r, G: gr, B: b},
	}
}

// Generate returns the ramp as commands: Brightness then Color per step.
func (g *Generator) Generate(d time.Duration) []command.Command {
	steps := g.Steps(d)
	cmds := make([]command.Command, 0, 2*len(steps))
	for _, s := range steps {
		cmds = append(cmds,
			command.Brightness(s.Brightness),
			command.Color(s.Color.R, s.Color.G, s.Color.B),
		)
	}
	return cmds
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func clampBrightness(v float64) uint8 {
	if v < command.MinBrightness {
		return command.MinBrightness
	}
	if v > command.MaxBrightness {
		return command.MaxBrightness
	}
	return uint8(v)
}
