package reactive

import "github.com/richinsley/gowarp/renderer"

// Modulator adds bass energy to the flow target.
type Modulator struct {
	Gain float64
	// MaxFlow caps the modulated flow. Zero means no cap.
	MaxFlow float64
}

// Apply returns p with its flow raised by the bass level.
func (m Modulator) Apply(p renderer.EffectParameters, l Levels) renderer.EffectParameters {
	p.Flow += l.Bass * m.Gain
	if m.MaxFlow > 0 && p.Flow > m.MaxFlow {
		p.Flow = m.MaxFlow
	}
	return p
}
