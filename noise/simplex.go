// Package noise provides the 2D simplex noise used by the flow displacement.
// Simplex2D mirrors the GLSL snoise embedded in the vertex stage so the CPU
// side can reason about the same field the GPU samples.
package noise

import "math"

const (
	skewC   = 0.211324865405187  // (3 - sqrt(3)) / 6
	skewF   = 0.366025403784439  // (sqrt(3) - 1) / 2
	cornerC = -0.577350269189626 // -1 + 2*skewC
	gradC   = 0.024390243902439  // 1 / 41
)

func mod289(x float64) float64 {
	return x - math.Floor(x*(1.0/289.0))*289.0
}

func permute(x float64) float64 {
	return mod289(((x * 34.0) + 1.0) * x)
}

func fract(x float64) float64 {
	return x - math.Floor(x)
}

// Simplex2D returns the simplex noise value at (x, y). The result is
// continuous and stays roughly within [-1, 1].
func Simplex2D(x, y float64) float64 {
	// First corner
	s := (x + y) * skewF
	ix := math.Floor(x + s)
	iy := math.Floor(y + s)
	t := (ix + iy) * skewC
	x0 := x - ix + t
	y0 := y - iy + t

	// Other corners
	var i1x, i1y float64
	if x0 > y0 {
		i1x, i1y = 1, 0
	} else {
		i1x, i1y = 0, 1
	}
	x1 := x0 + skewC - i1x
	y1 := y0 + skewC - i1y
	x2 := x0 + cornerC
	y2 := y0 + cornerC

	// Permutations
	ix = mod289(ix)
	iy = mod289(iy)
	p := [3]float64{
		permute(permute(iy) + ix),
		permute(permute(iy+i1y) + ix + i1x),
		permute(permute(iy+1) + ix + 1),
	}

	m := [3]float64{
		math.Max(0.5-(x0*x0+y0*y0), 0),
		math.Max(0.5-(x1*x1+y1*y1), 0),
		math.Max(0.5-(x2*x2+y2*y2), 0),
	}

	corners := [3][2]float64{{x0, y0}, {x1, y1}, {x2, y2}}
	var sum float64
	for i := 0; i < 3; i++ {
		w := m[i] * m[i]
		w *= w

		// Gradients: 41 points uniformly over a line, mapped onto a diamond.
		gx := 2.0*fract(p[i]*gradC) - 1.0
		h := math.Abs(gx) - 0.5
		a0 := gx - math.Floor(gx+0.5)

		// Normalise gradients implicitly by scaling w.
		w *= 1.79284291400159 - 0.85373472095314*(a0*a0+h*h)

		g := a0*corners[i][0] + h*corners[i][1]
		sum += w * g
	}
	return 130.0 * sum
}
