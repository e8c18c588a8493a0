// Package widget hosts a render engine inside a mount surface and keeps it
// fed with the latest effect parameters.
package widget

import (
	"errors"
	"fmt"
	"log"

	"github.com/richinsley/gowarp/graphics"
	"github.com/richinsley/gowarp/renderer"
)

// Engine is the part of renderer.Engine the widget drives.
type Engine interface {
	SetParameters(p renderer.EffectParameters) error
	Dispose()
}

// EngineFactory creates an engine bound to surface.
type EngineFactory func(surface graphics.Context) (Engine, error)

var errMounted = errors.New("widget already mounted")

// Widget owns at most one engine at a time. Parameters passed to Update
// before Mount are kept and pushed once the engine exists.
type Widget struct {
	factory   EngineFactory
	params    renderer.EffectParameters
	hasParams bool
	engine    Engine
	log       *log.Logger
}

func New(factory EngineFactory, logger *log.Logger) *Widget {
	if logger == nil {
		logger = log.Default()
	}
	return &Widget{factory: factory, log: logger}
}

// Mount creates the engine on surface and applies the stored parameters.
func (w *Widget) Mount(surface graphics.Context) error {
	if w.engine != nil {
		return errMounted
	}
	e, err := w.factory(surface)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	w.engine = e
	if w.hasParams {
		if err := e.SetParameters(w.params); err != nil {
			w.log.Printf("Initial parameters rejected: %v", err)
		}
	}
	return nil
}

// Update stores p and forwards it to the engine when mounted.
func (w *Widget) Update(p renderer.EffectParameters) error {
	if w.engine == nil {
		if err := p.Validate(); err != nil {
			return err
		}
		w.params, w.hasParams = p, true
		return nil
	}
	if err := w.engine.SetParameters(p); err != nil {
		return err
	}
	w.params, w.hasParams = p, true
	return nil
}

// Unmount disposes the engine. Calling it while unmounted does nothing.
func (w *Widget) Unmount() {
	if w.engine == nil {
		return
	}
	w.engine.Dispose()
	w.engine = nil
}

// Mounted reports whether an engine is live.
func (w *Widget) Mounted() bool {
	return w.engine != nil
}

// Parameters returns the last accepted parameters.
func (w *Widget) Parameters() renderer.EffectParameters {
	return w.params
}
