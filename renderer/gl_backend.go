package renderer

import (
	"fmt"
	"image"
	"log"
	"sync"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/gowarp/graphics"
	"github.com/richinsley/gowarp/inputs"
	"github.com/richinsley/gowarp/media"
	"github.com/richinsley/gowarp/shader"
	"github.com/richinsley/gowarp/translator"
)

var glInitOnce sync.Once

const (
	positionAttrib = 0
	uvAttrib       = 1
)

var quadVertices = []float32{
	-1.0, 1.0, -1.0, -1.0, 1.0, -1.0,
	-1.0, 1.0, 1.0, -1.0, 1.0, 1.0,
}

type planeLocations struct {
	modelView   int32
	projection  int32
	time        int32
	flow        int32
	lens        int32
	pinch       int32
	scale       int32
	texture     int32
	imageAspect int32
	planeAspect int32
}

// GLBackend draws the displaced plane with OpenGL 4.1 core (or GLES 3).
type GLBackend struct {
	sampler   inputs.Sampler
	downscale bool
	tolerance float64

	program    uint32
	loc        planeLocations
	vao        uint32
	vbo        uint32
	ebo        uint32
	indexCount int32

	blitProgram uint32
	blitTexLoc  int32
	quadVAO     uint32
	quadVBO     uint32

	capture *inputs.RenderTarget

	lastUniforms shader.Uniforms
	lastTexture  inputs.Texture

	destroyed bool
	log       *log.Logger
}

// NewGLBackend compiles the shader pair and uploads the plane geometry. The
// surface's context is made current first.
func NewGLBackend(surface graphics.Context, mode shader.AspectMode, color shader.ColorPipeline, segments int, downscale bool, tolerance float64, logger *log.Logger) (*GLBackend, error) {
	if logger == nil {
		logger = log.Default()
	}
	surface.MakeCurrent()

	var initErr error
	glInitOnce.Do(func() {
		initErr = gl.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", initErr)
	}

	b := &GLBackend{
		sampler: inputs.Sampler{
			Filter: "linear",
			Wrap:   "clamp",
			SRGB:   color == shader.ColorLinear,
		},
		downscale: downscale,
		tolerance: tolerance,
		log:       logger,
	}
	gles := surface.IsGLES()

	if err := b.buildPlaneProgram(mode, color, gles); err != nil {
		b.Destroy()
		return nil, err
	}
	if err := b.buildBlitProgram(gles); err != nil {
		b.Destroy()
		return nil, err
	}
	b.uploadGrid(NewGrid(segments))
	b.uploadQuad()

	b.log.Printf("GL backend ready: %s", gl.GoStr(gl.GetString(gl.VERSION)))
	return b, nil
}

func (b *GLBackend) buildPlaneProgram(mode shader.AspectMode, color shader.ColorPipeline, gles bool) error {
	vs, err := translator.Translate(shader.VertexSource(), "vertex", gles)
	if err != nil {
		return err
	}
	fs, err := translator.Translate(shader.FragmentSource(mode, color), "fragment", gles)
	if err != nil {
		return err
	}
	b.program, err = newProgram(vs.Code, fs.Code, map[string]uint32{
		vs.MappedName("position"): positionAttrib,
		vs.MappedName("uv"):       uvAttrib,
	})
	if err != nil {
		return fmt.Errorf("failed to create shader program: %w", err)
	}

	gl.UseProgram(b.program)
	b.loc = planeLocations{
		modelView:   uniformLocation(b.program, vs.MappedName("modelViewMatrix")),
		projection:  uniformLocation(b.program, vs.MappedName("projectionMatrix")),
		time:        uniformLocation(b.program, vs.MappedName("uTime")),
		flow:        uniformLocation(b.program, vs.MappedName("uFlow")),
		lens:        uniformLocation(b.program, vs.MappedName("uLens")),
		pinch:       uniformLocation(b.program, vs.MappedName("uPinch")),
		scale:       uniformLocation(b.program, vs.MappedName("uScale")),
		texture:     uniformLocation(b.program, fs.MappedName("uTexture")),
		imageAspect: uniformLocation(b.program, fs.MappedName("uImageAspect")),
		planeAspect: uniformLocation(b.program, fs.MappedName("uPlaneAspect")),
	}
	gl.UseProgram(0)
	return nil
}

func (b *GLBackend) buildBlitProgram(gles bool) error {
	vsrc, fsrc := shader.BlitSource()
	vs, err := translator.Translate(vsrc, "vertex", gles)
	if err != nil {
		return err
	}
	fs, err := translator.Translate(fsrc, "fragment", gles)
	if err != nil {
		return err
	}
	b.blitProgram, err = newProgram(vs.Code, fs.Code, map[string]uint32{
		vs.MappedName("in_vert"): positionAttrib,
	})
	if err != nil {
		return fmt.Errorf("failed to create blit program: %w", err)
	}
	b.blitTexLoc = uniformLocation(b.blitProgram, fs.MappedName("u_texture"))
	return nil
}

func (b *GLBackend) uploadGrid(g *Grid) {
	gl.GenVertexArrays(1, &b.vao)
	gl.GenBuffers(1, &b.vbo)
	gl.GenBuffers(1, &b.ebo)

	gl.BindVertexArray(b.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(g.Vertices)*4, gl.Ptr(g.Vertices), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(g.Indices)*4, gl.Ptr(g.Indices), gl.STATIC_DRAW)

	gl.EnableVertexAttribArray(positionAttrib)
	gl.VertexAttribPointer(positionAttrib, 3, gl.FLOAT, false, vertexStride*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(uvAttrib)
	gl.VertexAttribPointer(uvAttrib, 2, gl.FLOAT, false, vertexStride*4, gl.PtrOffset(3*4))

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	b.indexCount = int32(len(g.Indices))
}

func (b *GLBackend) uploadQuad() {
	gl.GenVertexArrays(1, &b.quadVAO)
	gl.GenBuffers(1, &b.quadVBO)
	gl.BindVertexArray(b.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(positionAttrib)
	gl.VertexAttribPointer(positionAttrib, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
}

// NewTexture implements Backend.
func (b *GLBackend) NewTexture(img *image.RGBA, limit media.Size) (inputs.Texture, error) {
	native := media.Size{Width: img.Rect.Dx(), Height: img.Rect.Dy()}
	fit, resize := native.Fit(limit, b.tolerance)
	if !b.downscale || !resize {
		return inputs.NewImageTexture(img, b.sampler)
	}

	srcSampler := b.sampler
	srcSampler.Filter = "mipmap"
	src, err := inputs.NewImageTexture(img, srcSampler)
	if err != nil {
		return nil, err
	}
	// The full-size upload only lives for the duration of the blit.
	defer src.Destroy()

	tex, err := b.blit(src, fit)
	if err != nil {
		return nil, err
	}
	b.log.Printf("Downscaled media from %dx%d to %dx%d", native.Width, native.Height, fit.Width, fit.Height)
	return tex, nil
}

// blit draws src into a new texture of the given size.
func (b *GLBackend) blit(src inputs.Texture, size media.Size) (inputs.Texture, error) {
	rt, err := inputs.NewRenderTarget(size.Width, size.Height, b.sampler)
	if err != nil {
		return nil, fmt.Errorf("failed to create downscale target: %w", err)
	}
	rt.BindForWriting()
	if b.sampler.SRGB {
		gl.Enable(gl.FRAMEBUFFER_SRGB)
	}
	gl.Disable(gl.DEPTH_TEST)
	gl.UseProgram(b.blitProgram)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, src.GetTextureID())
	gl.Uniform1i(b.blitTexLoc, 0)
	gl.BindVertexArray(b.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 6)
	gl.BindVertexArray(0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if b.sampler.SRGB {
		gl.Disable(gl.FRAMEBUFFER_SRGB)
	}
	rt.UnbindForWriting()
	return rt.Detach(), nil
}

// Draw implements Backend.
func (b *GLBackend) Draw(u *shader.Uniforms, tex inputs.Texture, width, height int) {
	b.lastUniforms = *u
	b.lastTexture = tex
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(width), int32(height))
	b.drawPlane(u, tex)
}

func (b *GLBackend) drawPlane(u *shader.Uniforms, tex inputs.Texture) {
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	if tex == nil {
		return
	}
	gl.Enable(gl.DEPTH_TEST)

	gl.UseProgram(b.program)
	modelView := u.ModelView()
	gl.UniformMatrix4fv(b.loc.modelView, 1, false, &modelView[0])
	gl.UniformMatrix4fv(b.loc.projection, 1, false, &u.Projection[0])
	gl.Uniform1f(b.loc.time, u.Time)
	gl.Uniform1f(b.loc.flow, u.Flow)
	gl.Uniform1f(b.loc.lens, u.Lens)
	gl.Uniform1f(b.loc.pinch, u.Pinch)
	gl.Uniform1f(b.loc.scale, u.Scale)
	gl.Uniform1f(b.loc.imageAspect, u.ImageAspect)
	gl.Uniform1f(b.loc.planeAspect, u.PlaneAspect)

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, tex.GetTextureID())
	gl.Uniform1i(b.loc.texture, 0)

	gl.BindVertexArray(b.vao)
	gl.DrawElements(gl.TRIANGLES, b.indexCount, gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.Disable(gl.DEPTH_TEST)
}

// ReadPixels implements Backend.
func (b *GLBackend) ReadPixels(width, height int) (*image.RGBA, error) {
	if b.capture != nil {
		if w, h := b.capture.Size(); w != width || h != height {
			b.capture.Destroy()
			b.capture = nil
		}
	}
	if b.capture == nil {
		rt, err := inputs.NewRenderTarget(width, height, inputs.Sampler{Filter: "linear", Wrap: "clamp"})
		if err != nil {
			return nil, fmt.Errorf("failed to create capture target: %w", err)
		}
		b.capture = rt
	}
	b.capture.BindForWriting()
	b.drawPlane(&b.lastUniforms, b.lastTexture)
	b.capture.UnbindForWriting()
	return b.capture.ReadPixels(), nil
}

// Destroy implements Backend.
func (b *GLBackend) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.lastTexture = nil
	if b.capture != nil {
		b.capture.Destroy()
	}
	if b.program != 0 {
		gl.DeleteProgram(b.program)
	}
	if b.blitProgram != 0 {
		gl.DeleteProgram(b.blitProgram)
	}
	if b.vao != 0 {
		gl.DeleteVertexArrays(1, &b.vao)
		gl.DeleteBuffers(1, &b.vbo)
		gl.DeleteBuffers(1, &b.ebo)
	}
	if b.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &b.quadVAO)
		gl.DeleteBuffers(1, &b.quadVBO)
	}
}
