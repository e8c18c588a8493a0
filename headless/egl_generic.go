//go:build !linux

package headless

import (
	"errors"

	"github.com/richinsley/gowarp/graphics"
)

// ErrUnsupported is returned where no EGL pbuffer path exists.
var ErrUnsupported = errors.New("egl headless rendering is not supported on this platform")

func New(width, height int) (graphics.Context, error) {
	return nil, ErrUnsupported
}
