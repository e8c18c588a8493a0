package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageResource is a decoded still image.
type ImageResource struct {
	rgba   *image.RGBA
	size   Size
	closed sync.Once
}

// NewImageResource converts img to RGBA for upload.
func NewImageResource(img image.Image) *ImageResource {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return &ImageResource{
		rgba: rgba,
		size: Size{Width: rgba.Rect.Dx(), Height: rgba.Rect.Dy()},
	}
}

func (r *ImageResource) Kind() Kind { return KindImage }
func (r *ImageResource) Size() Size { return r.size }

func (r *ImageResource) Frame() (*image.RGBA, uint64) {
	return r.rgba, 1
}

// Close drops the pixel buffer.
func (r *ImageResource) Close() error {
	r.closed.Do(func() { r.rgba = nil })
	return nil
}

func (l *FileLoader) loadImage(ctx context.Context, src Source) (Resource, error) {
	var rc io.ReadCloser
	if f, ok := src.File(); ok {
		rc = io.NopCloser(bytes.NewReader(f.Data))
	} else {
		var err error
		rc, err = l.open(ctx, src.url)
		if err != nil {
			return nil, loadError(src, err)
		}
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, loadError(src, fmt.Errorf("decode: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return nil, loadError(src, err)
	}
	return NewImageResource(img), nil
}

// open returns a reader for an http(s) URL, a file:// URL or a plain path.
func (l *FileLoader) open(ctx context.Context, raw string) (io.ReadCloser, error) {
	u, err := url.Parse(raw)
	if err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l.fetch(ctx, raw)
		case "file":
			return os.Open(u.Path)
		}
	}
	return os.Open(raw)
}

func (l *FileLoader) fetch(ctx context.Context, raw string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}
