package renderer

// Grid is a subdivided unit plane centered on the origin in the z = 0 plane.
type Grid struct {
	Segments int
	// Vertices holds x, y, z, u, v per vertex.
	Vertices []float32
	Indices  []uint32
}

const vertexStride = 5

// NewGrid builds a plane of segments x segments quads spanning [-0.5, 0.5]
// on both axes, UV (0,0) at the bottom-left corner.
func NewGrid(segments int) *Grid {
	if segments < 1 {
		segments = 1
	}
	n := segments
	g := &Grid{
		Segments: n,
		Vertices: make([]float32, 0, (n+1)*(n+1)*vertexStride),
		Indices:  make([]uint32, 0, 6*n*n),
	}
	for iy := 0; iy <= n; iy++ {
		v := float32(iy) / float32(n)
		for ix := 0; ix <= n; ix++ {
			u := float32(ix) / float32(n)
			g.Vertices = append(g.Vertices, u-0.5, v-0.5, 0, u, v)
		}
	}
	row := uint32(n + 1)
	for iy := 0; iy < n; iy++ {
		for ix := 0; ix < n; ix++ {
			a := uint32(iy)*row + uint32(ix)
			b := a + 1
			c := a + row
			d := c + 1
			g.Indices = append(g.Indices, a, b, d, a, d, c)
		}
	}
	return g
}

// VertexCount returns the number of vertices in the grid.
func (g *Grid) VertexCount() int {
	return len(g.Vertices) / vertexStride
}
