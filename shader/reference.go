package shader

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/gowarp/noise"
)

// The functions below evaluate the shader pair on the CPU. They follow the
// GLSL line for line and exist so the displacement and sampling rules can be
// checked without a GPU.

func smoothstep(edge0, edge1, x float32) float32 {
	t := (x - edge0) / (edge1 - edge0)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}

// Displace applies scale, lens, pinch and flow to a local plane position.
func Displace(pos mgl32.Vec3, uv mgl32.Vec2, u *Uniforms) mgl32.Vec3 {
	x := pos[0] * u.Scale
	y := pos[1] * u.Scale

	d := uv.Sub(mgl32.Vec2{0.5, 0.5}).Len()
	lensEffect := u.Lens * d * d
	x *= 1 - lensEffect
	y *= 1 - lensEffect

	angle := u.Pinch * smoothstep(0, 0.7, d)
	s := float32(math.Sin(float64(angle)))
	c := float32(math.Cos(float64(angle)))
	x, y = c*x-s*y, s*x+c*y

	n := noise.Simplex2D(float64(uv[0]*3+u.Time*0.2), float64(uv[1]*3+u.Time*0.2))
	return mgl32.Vec3{x, y, pos[2] + float32(n)*u.Flow}
}

// RemapUV maps a plane UV to a texture coordinate. discard reports whether the
// fragment would be dropped, which only happens in CoverCrop mode.
func RemapUV(uv mgl32.Vec2, imageAspect, planeAspect float32, mode AspectMode) (st mgl32.Vec2, discard bool) {
	if mode == Letterbox {
		ratio := mgl32.Vec2{
			min(planeAspect/imageAspect, 1),
			min(imageAspect/planeAspect, 1),
		}
		return mgl32.Vec2{
			uv[0]*ratio[0] + (1-ratio[0])*0.5,
			uv[1]*ratio[1] + (1-ratio[1])*0.5,
		}, false
	}

	r := planeAspect / imageAspect
	scaleVec := mgl32.Vec2{1, r}
	if r > 1 {
		scaleVec = mgl32.Vec2{1 / r, 1}
	}
	st = mgl32.Vec2{
		(uv[0]-0.5)/scaleVec[0] + 0.5,
		(uv[1]-0.5)/scaleVec[1] + 0.5,
	}
	discard = st[0] < 0 || st[0] > 1 || st[1] < 0 || st[1] > 1
	return st, discard
}

// SRGBToLinear decodes a display-encoded channel value.
func SRGBToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// LinearToSRGB encodes a linear channel value for display.
func LinearToSRGB(l float64) float64 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*math.Pow(l, 1.0/2.4) - 0.055
}
