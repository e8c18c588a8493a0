package renderer

import (
	"image"

	"github.com/richinsley/gowarp/inputs"
	"github.com/richinsley/gowarp/media"
	"github.com/richinsley/gowarp/shader"
)

// Backend is the GPU side of the engine. All methods are called from the
// thread that owns the graphics context.
type Backend interface {
	// NewTexture uploads img. When limit is non-empty and img exceeds it, the
	// backend may store a downscaled copy; the aspect ratio is preserved.
	NewTexture(img *image.RGBA, limit media.Size) (inputs.Texture, error)
	// Draw renders the plane into the surface. A nil tex clears the surface.
	Draw(u *shader.Uniforms, tex inputs.Texture, width, height int)
	// ReadPixels renders the last drawn frame off-screen at width x height
	// and returns it top row first.
	ReadPixels(width, height int) (*image.RGBA, error)
	Destroy()
}
