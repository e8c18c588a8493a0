package widget

import (
	"github.com/richinsley/gowarp/renderer"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Keyframe is one pose the autopilot sweeps through.
type Keyframe struct {
	Flow  float64
	Lens  float64
	Pinch float64
}

// DefaultKeyframes is a loop that stays inside the recommended ranges.
var DefaultKeyframes = []Keyframe{
	{Flow: 0.05, Lens: 0, Pinch: 0},
	{Flow: 0.3, Lens: 0.6, Pinch: 0.8},
	{Flow: 0.15, Lens: -0.5, Pinch: -1.2},
	{Flow: 0.45, Lens: 0.2, Pinch: 0.4},
}

// Autopilot animates flow, lens and pinch between keyframes for demo mode.
type Autopilot struct {
	keyframes []Keyframe
	index     int
	duration  float32
	easing    ease.TweenFunc
	tweens    [3]*gween.Tween
	current   Keyframe
}

// NewAutopilot loops over keyframes, spending duration seconds on each leg.
func NewAutopilot(keyframes []Keyframe, duration float32, easing ease.TweenFunc) *Autopilot {
	if len(keyframes) == 0 {
		keyframes = DefaultKeyframes
	}
	if easing == nil {
		easing = ease.InOutSine
	}
	a := &Autopilot{
		keyframes: keyframes,
		duration:  duration,
		easing:    easing,
		current:   keyframes[0],
	}
	a.leg(keyframes[0], a.next())
	return a
}

func (a *Autopilot) next() Keyframe {
	a.index = (a.index + 1) % len(a.keyframes)
	return a.keyframes[a.index]
}

func (a *Autopilot) leg(from, to Keyframe) {
	a.tweens[0] = gween.New(float32(from.Flow), float32(to.Flow), a.duration, a.easing)
	a.tweens[1] = gween.New(float32(from.Lens), float32(to.Lens), a.duration, a.easing)
	a.tweens[2] = gween.New(float32(from.Pinch), float32(to.Pinch), a.duration, a.easing)
}

// Update advances by dt seconds and returns the current pose.
func (a *Autopilot) Update(dt float32) Keyframe {
	flow, done := a.tweens[0].Update(dt)
	lens, _ := a.tweens[1].Update(dt)
	pinch, _ := a.tweens[2].Update(dt)
	a.current = Keyframe{Flow: float64(flow), Lens: float64(lens), Pinch: float64(pinch)}
	if done {
		a.leg(a.keyframes[a.index], a.next())
	}
	return a.current
}

// Current returns the last computed pose.
func (a *Autopilot) Current() Keyframe {
	return a.current
}

// Animated returns the pose with the given scale.
func (k Keyframe) Animated(scale float64) renderer.AnimatedParameters {
	return renderer.AnimatedParameters{Flow: k.Flow, Lens: k.Lens, Pinch: k.Pinch, Scale: scale}
}
