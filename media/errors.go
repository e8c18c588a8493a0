package media

import (
	"errors"
	"fmt"
)

// LoadError reports a failed fetch, decode or playback start.
type LoadError struct {
	Source Source
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load media %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func loadError(src Source, err error) error {
	return &LoadError{Source: src, Err: err}
}

var errEmptySource = errors.New("empty media source")
