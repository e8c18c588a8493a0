package renderer

import "errors"

var (
	// ErrDisposed is returned by operations on an engine that was disposed.
	ErrDisposed = errors.New("engine disposed")
	// ErrInvalidParameters is returned for non-finite or out-of-domain
	// parameter values. The engine state is left unchanged.
	ErrInvalidParameters = errors.New("invalid effect parameters")
	// ErrViewportDegenerate is returned when the surface reports a zero or
	// negative size.
	ErrViewportDegenerate = errors.New("degenerate viewport")
)
