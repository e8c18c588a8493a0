package widget

import (
	"math"

	"github.com/richinsley/gowarp/media"
	"github.com/richinsley/gowarp/renderer"
)

// Control identifies one slider of the control panel.
type Control int

const (
	Flow Control = iota
	Lens
	Pinch
	Scale
	MotionSpeed
)

func (c Control) String() string {
	return [...]string{"flow", "lens", "pinch", "scale", "motion"}[c]
}

// Range is the slider extent and increment of a control.
type Range struct {
	Min, Max, Step float64
}

// Ranges holds the recommended range of every control.
var Ranges = map[Control]Range{
	Flow:        {0, 0.5, 0.01},
	Lens:        {-1, 1, 0.05},
	Pinch:       {-1.5, 1.5, 0.05},
	Scale:       {0.5, 1.5, 0.05},
	MotionSpeed: {0.01, 0.3, 0.005},
}

// Panel is the control-panel state: slider values plus a playlist of
// sources. Every change is reported through OnChange.
type Panel struct {
	params   renderer.EffectParameters
	initial  renderer.EffectParameters
	playlist []media.Source
	index    int

	OnChange func(renderer.EffectParameters)
}

// NewPanel starts with initial values and shows the first playlist entry.
func NewPanel(initial renderer.EffectParameters, playlist []media.Source) *Panel {
	if initial.MotionSpeed == 0 {
		initial.MotionSpeed = renderer.DefaultMotionSpeed
	}
	p := &Panel{params: initial, playlist: playlist}
	if len(playlist) > 0 {
		p.params.Source = playlist[0]
	}
	p.initial = p.params
	return p
}

// Params returns the current bundle.
func (p *Panel) Params() renderer.EffectParameters {
	return p.params
}

// Value returns the slider value of c.
func (p *Panel) Value(c Control) float64 {
	switch c {
	case Flow:
		return p.params.Flow
	case Lens:
		return p.params.Lens
	case Pinch:
		return p.params.Pinch
	case Scale:
		return p.params.Scale
	default:
		return p.params.MotionSpeed
	}
}

// Set moves the slider of c to v, clamped to its range.
func (p *Panel) Set(c Control, v float64) {
	r := Ranges[c]
	v = math.Max(r.Min, math.Min(r.Max, v))
	// Snap to the step grid so repeated nudges don't accumulate drift.
	v = r.Min + math.Round((v-r.Min)/r.Step)*r.Step
	v = math.Max(r.Min, math.Min(r.Max, v))
	switch c {
	case Flow:
		p.params.Flow = v
	case Lens:
		p.params.Lens = v
	case Pinch:
		p.params.Pinch = v
	case Scale:
		p.params.Scale = v
	default:
		p.params.MotionSpeed = v
	}
	p.changed()
}

// Nudge moves the slider of c by steps increments.
func (p *Panel) Nudge(c Control, steps int) {
	p.Set(c, p.Value(c)+float64(steps)*Ranges[c].Step)
}

// Reset restores the initial values but keeps the current source.
func (p *Panel) Reset() {
	src := p.params.Source
	p.params = p.initial
	p.params.Source = src
	p.changed()
}

// Next shows the following playlist entry, wrapping around.
func (p *Panel) Next() {
	p.step(1)
}

// Prev shows the previous playlist entry, wrapping around.
func (p *Panel) Prev() {
	p.step(-1)
}

func (p *Panel) step(d int) {
	n := len(p.playlist)
	if n == 0 {
		return
	}
	p.index = ((p.index+d)%n + n) % n
	p.params.Source = p.playlist[p.index]
	p.changed()
}

// Add appends src to the playlist and shows it.
func (p *Panel) Add(src media.Source) {
	p.playlist = append(p.playlist, src)
	p.index = len(p.playlist) - 1
	p.params.Source = src
	p.changed()
}

func (p *Panel) changed() {
	if p.OnChange != nil {
		p.OnChange(p.params)
	}
}
