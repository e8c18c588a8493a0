package inputs

import (
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// Helper to convert a wrap string to an OpenGL constant.
func getWrapMode(wrap string) int32 {
	switch wrap {
	case "repeat":
		return gl.REPEAT
	case "clamp":
		return gl.CLAMP_TO_EDGE
	default:
		return gl.CLAMP_TO_EDGE
	}
}

// Helper to convert a filter string to OpenGL constants.
func getFilterMode(filter string) (minFilter, magFilter int32) {
	switch filter {
	case "mipmap":
		return gl.LINEAR_MIPMAP_LINEAR, gl.LINEAR
	case "linear":
		return gl.LINEAR, gl.LINEAR
	case "nearest":
		return gl.NEAREST, gl.NEAREST
	default:
		return gl.LINEAR, gl.LINEAR
	}
}

func internalFormat(s Sampler) int32 {
	if s.SRGB {
		return gl.SRGB8_ALPHA8
	}
	return gl.RGBA8
}

// FlipRows vertically flips an RGBA image in place. Pixels read back from
// OpenGL start at the bottom row.
func FlipRows(img *image.RGBA) {
	h := img.Rect.Dy()
	rowSize := img.Rect.Dx() * 4
	tmp := make([]byte, rowSize)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : y*img.Stride+rowSize]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-1-y)*img.Stride+rowSize]
		copy(tmp, top)
		copy(top, bottom)
		copy(bottom, tmp)
	}
}
