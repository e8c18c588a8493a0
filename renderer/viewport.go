package renderer

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Viewport is the camera and plane fit for a surface size. The plane is a
// unit quad scaled so it exactly fills the camera frustum at its distance.
type Viewport struct {
	FOV      float32 // vertical, degrees
	Distance float32
	Near     float32
	Far      float32

	Width  int
	Height int
	Aspect float32

	PlaneWidth  float32
	PlaneHeight float32

	Model      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

// NewViewport returns an unfitted viewport for the camera settings.
func NewViewport(fov, distance, near, far float32) Viewport {
	return Viewport{
		FOV:        fov,
		Distance:   distance,
		Near:       near,
		Far:        far,
		Aspect:     1,
		Model:      mgl32.Ident4(),
		View:       mgl32.LookAtV(mgl32.Vec3{0, 0, distance}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}),
		Projection: mgl32.Perspective(mgl32.DegToRad(fov), 1, near, far),
	}
}

// Fit recomputes the camera and plane for a surface of width x height pixels.
// A degenerate size leaves the viewport untouched.
func (v *Viewport) Fit(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrViewportDegenerate, width, height)
	}
	aspect := float32(width) / float32(height)
	planeHeight := 2 * float32(math.Tan(float64(mgl32.DegToRad(v.FOV))/2)) * v.Distance

	v.Width, v.Height = width, height
	v.Aspect = aspect
	v.PlaneHeight = planeHeight
	v.PlaneWidth = planeHeight * aspect
	v.Model = mgl32.Scale3D(v.PlaneWidth, v.PlaneHeight, 1)
	v.View = mgl32.LookAtV(mgl32.Vec3{0, 0, v.Distance}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	v.Projection = mgl32.Perspective(mgl32.DegToRad(v.FOV), aspect, v.Near, v.Far)
	return nil
}
