// inputs/image.go
package inputs

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// ImageTexture is a 2D texture holding a still image or the latest video
// frame. Rows are stored top-first, so the shader flips V when sampling.
type ImageTexture struct {
	textureID  uint32
	resolution [3]float32
	sampler    Sampler
}

// NewImageTexture creates and initializes a new OpenGL texture from an image.
func NewImageTexture(img *image.RGBA, sampler Sampler) (*ImageTexture, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	t := &ImageTexture{sampler: sampler}
	gl.GenTextures(1, &t.textureID)
	gl.BindTexture(gl.TEXTURE_2D, t.textureID)

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, getWrapMode(sampler.Wrap))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, getWrapMode(sampler.Wrap))
	minFilter, magFilter := getFilterMode(sampler.Filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)

	t.allocate(img)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return t, nil
}

// NewEmptyTexture allocates storage of the given size without contents, for
// use as a render target attachment.
func NewEmptyTexture(width, height int, sampler Sampler) *ImageTexture {
	t := &ImageTexture{sampler: sampler}
	gl.GenTextures(1, &t.textureID)
	gl.BindTexture(gl.TEXTURE_2D, t.textureID)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, getWrapMode(sampler.Wrap))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, getWrapMode(sampler.Wrap))
	minFilter, magFilter := getFilterMode(sampler.Filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internalFormat(sampler), int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	t.resolution = [3]float32{float32(width), float32(height), 1.0}
	return t
}

// allocate uploads img with fresh storage. The texture must be bound.
func (t *ImageTexture) allocate(img *image.RGBA) {
	width := int32(img.Rect.Dx())
	height := int32(img.Rect.Dy())
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexImage2D(
		gl.TEXTURE_2D,
		0,
		internalFormat(t.sampler),
		width,
		height,
		0,
		gl.RGBA,
		gl.UNSIGNED_BYTE,
		gl.Ptr(img.Pix),
	)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	if t.sampler.Filter == "mipmap" {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}
	t.resolution = [3]float32{float32(width), float32(height), 1.0}
}

// Upload replaces the texture contents. Frames of the same size reuse the
// existing storage.
func (t *ImageTexture) Upload(img *image.RGBA) {
	if img == nil || t.textureID == 0 {
		return
	}
	gl.BindTexture(gl.TEXTURE_2D, t.textureID)
	if float32(img.Rect.Dx()) != t.resolution[0] || float32(img.Rect.Dy()) != t.resolution[1] {
		t.allocate(img)
	} else {
		gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(img.Rect.Dx()), int32(img.Rect.Dy()), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
		gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
		if t.sampler.Filter == "mipmap" {
			gl.GenerateMipmap(gl.TEXTURE_2D)
		}
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func (t *ImageTexture) GetTextureID() uint32 {
	return t.textureID
}

func (t *ImageTexture) ChannelRes() [3]float32 {
	return t.resolution
}

func (t *ImageTexture) Destroy() {
	if t.textureID == 0 {
		return
	}
	gl.DeleteTextures(1, &t.textureID)
	t.textureID = 0
}
