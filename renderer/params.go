package renderer

import (
	"fmt"
	"math"

	"github.com/richinsley/gowarp/media"
)

// DefaultMotionSpeed is used when EffectParameters.MotionSpeed is zero.
const DefaultMotionSpeed = 0.075

// UpdateMode selects how animated parameters follow their targets.
type UpdateMode int

const (
	// UpdateSmooth moves each parameter a MotionSpeed fraction of the
	// remaining distance per frame.
	UpdateSmooth UpdateMode = iota
	// UpdateSnap copies targets directly.
	UpdateSnap
)

func (m UpdateMode) String() string {
	if m == UpdateSnap {
		return "snap"
	}
	return "smooth"
}

func ParseUpdateMode(s string) (UpdateMode, error) {
	switch s {
	case "", "smooth":
		return UpdateSmooth, nil
	case "snap":
		return UpdateSnap, nil
	}
	return UpdateSmooth, fmt.Errorf("unknown update mode %q", s)
}

// EffectParameters is the bundle a host pushes into the engine.
type EffectParameters struct {
	Source media.Source
	Flow   float64 // recommended 0 to 0.5
	Lens   float64 // recommended -1 to 1
	Pinch  float64 // recommended -1.5 to 1.5
	Scale  float64 // recommended 0.5 to 1.5
	// MotionSpeed is the per-frame smoothing fraction, recommended 0.01 to
	// 0.3. Zero selects DefaultMotionSpeed; values above 1 are clamped.
	MotionSpeed float64
}

// Validate rejects values the shader cannot use.
func (p EffectParameters) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"flow", p.Flow},
		{"lens", p.Lens},
		{"pinch", p.Pinch},
		{"scale", p.Scale},
		{"motion speed", p.MotionSpeed},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is %v", ErrInvalidParameters, f.name, f.v)
		}
	}
	if p.Scale <= 0 {
		return fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidParameters, p.Scale)
	}
	if p.Flow < 0 {
		return fmt.Errorf("%w: flow must not be negative, got %v", ErrInvalidParameters, p.Flow)
	}
	if p.MotionSpeed < 0 {
		return fmt.Errorf("%w: motion speed must not be negative, got %v", ErrInvalidParameters, p.MotionSpeed)
	}
	return nil
}

// Speed returns the effective motion speed in (0, 1].
func (p EffectParameters) Speed() float64 {
	switch {
	case p.MotionSpeed == 0:
		return DefaultMotionSpeed
	case p.MotionSpeed > 1:
		return 1
	}
	return p.MotionSpeed
}

// AnimatedParameters are the smoothed values actually pushed to the shader.
type AnimatedParameters struct {
	Flow  float64
	Lens  float64
	Pinch float64
	Scale float64
}

// Animated returns the target values of p.
func (p EffectParameters) Animated() AnimatedParameters {
	return AnimatedParameters{Flow: p.Flow, Lens: p.Lens, Pinch: p.Pinch, Scale: p.Scale}
}

// Step moves each field speed of the remaining distance toward target.
func (a *AnimatedParameters) Step(target AnimatedParameters, speed float64) {
	a.Flow += (target.Flow - a.Flow) * speed
	a.Lens += (target.Lens - a.Lens) * speed
	a.Pinch += (target.Pinch - a.Pinch) * speed
	a.Scale += (target.Scale - a.Scale) * speed
}

// Snap copies target.
func (a *AnimatedParameters) Snap(target AnimatedParameters) {
	*a = target
}
