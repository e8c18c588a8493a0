package graphics

// Context is the mount surface an engine renders into: an OpenGL context plus
// a measurable, observable drawable region.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	// EndFrame presents the frame and waits for the next display refresh.
	EndFrame()
	GetFramebufferSize() (int, int)
	Time() float64
	IsGLES() bool
	// OnResize registers fn to receive framebuffer size changes. A nil fn
	// stops observation.
	OnResize(fn func(width, height int))
}
