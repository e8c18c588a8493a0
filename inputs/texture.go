package inputs

import "image"

// Sampler describes how a texture is filtered and wrapped.
type Sampler struct {
	Filter string // "linear", "nearest" or "mipmap"
	Wrap   string // "clamp" or "repeat"
	// SRGB stores the texels as sRGB so sampling returns linear values.
	SRGB bool
}

// Texture is a GPU texture that media frames are uploaded into.
type Texture interface {
	// GetTextureID returns the OpenGL texture ID that should be bound.
	GetTextureID() uint32

	// ChannelRes returns the resolution of the texture as a vec3.
	ChannelRes() [3]float32

	// Upload replaces the texture contents with img, reallocating storage
	// when the size changed.
	Upload(img *image.RGBA)

	// Destroy releases the GPU storage. It is safe to call more than once.
	Destroy()
}
