package inputs

import (
	"fmt"
	"image"

	gl "github.com/go-gl/gl/v4.1-core/gl"
)

// RenderTarget is a framebuffer with a single texture attachment. It backs
// the downscale pass and off-screen recording.
type RenderTarget struct {
	fbo     uint32
	texture *ImageTexture
	width   int
	height  int
}

// NewRenderTarget creates the necessary OpenGL resources for a render target.
func NewRenderTarget(width, height int, sampler Sampler) (*RenderTarget, error) {
	rt := &RenderTarget{
		texture: NewEmptyTexture(width, height, sampler),
		width:   width,
		height:  height,
	}

	gl.GenFramebuffers(1, &rt.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, rt.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, rt.texture.GetTextureID(), 0)
	if gl.CheckFramebufferStatus(gl.FRAMEBUFFER) != gl.FRAMEBUFFER_COMPLETE {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		rt.Destroy()
		return nil, fmt.Errorf("render target %dx%d is not complete", width, height)
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return rt, nil
}

// BindForWriting binds the FBO and sets the viewport to cover it.
func (rt *RenderTarget) BindForWriting() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, rt.fbo)
	gl.Viewport(0, 0, int32(rt.width), int32(rt.height))
}

// UnbindForWriting unbinds the FBO.
func (rt *RenderTarget) UnbindForWriting() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// ReadPixels returns the target contents with the top row first.
func (rt *RenderTarget) ReadPixels() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, rt.width, rt.height))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, rt.fbo)
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(rt.width), int32(rt.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	FlipRows(img)
	return img
}

// Detach hands the color texture to the caller, who becomes responsible for
// destroying it. The framebuffer itself is deleted.
func (rt *RenderTarget) Detach() *ImageTexture {
	tex := rt.texture
	rt.texture = nil
	rt.Destroy()
	return tex
}

func (rt *RenderTarget) Size() (int, int) {
	return rt.width, rt.height
}

func (rt *RenderTarget) Destroy() {
	if rt.fbo != 0 {
		gl.DeleteFramebuffers(1, &rt.fbo)
		rt.fbo = 0
	}
	if rt.texture != nil {
		rt.texture.Destroy()
		rt.texture = nil
	}
}
