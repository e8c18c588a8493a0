package shader

import "github.com/go-gl/mathgl/mgl32"

// Uniforms holds the per-draw values pushed into the shader pair.
type Uniforms struct {
	Time  float32
	Flow  float32
	Lens  float32
	Pinch float32
	Scale float32

	ImageAspect float32
	PlaneAspect float32

	Model      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

// ModelView returns View * Model.
func (u *Uniforms) ModelView() mgl32.Mat4 {
	return u.View.Mul4(u.Model)
}
