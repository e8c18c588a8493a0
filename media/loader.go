package media

import (
	"context"
	"image"
	"log"
	"math"
	"net/http"

	options "github.com/richinsley/gowarp/options"
)

// Size is a pixel extent.
type Size struct {
	Width  int
	Height int
}

// Aspect returns width / height, or 1 when the size is degenerate.
func (s Size) Aspect() float64 {
	if s.Width <= 0 || s.Height <= 0 {
		return 1
	}
	return float64(s.Width) / float64(s.Height)
}

// Fit returns the largest size with s's aspect ratio that fits in limit. It
// returns s unchanged when limit is empty or s does not exceed limit by more
// than tolerance (a fraction, e.g. 0.01).
func (s Size) Fit(limit Size, tolerance float64) (Size, bool) {
	if limit.Width <= 0 || limit.Height <= 0 || s.Width <= 0 || s.Height <= 0 {
		return s, false
	}
	overW := float64(s.Width) > float64(limit.Width)*(1+tolerance)
	overH := float64(s.Height) > float64(limit.Height)*(1+tolerance)
	if !overW && !overH {
		return s, false
	}
	k := math.Min(float64(limit.Width)/float64(s.Width), float64(limit.Height)/float64(s.Height))
	w := max(1, int(math.Round(float64(s.Width)*k)))
	h := max(1, int(math.Round(float64(s.Height)*k)))
	return Size{Width: w, Height: h}, true
}

// Resource is a loaded, sampleable media unit.
type Resource interface {
	Kind() Kind
	// Size is the native resolution of the media.
	Size() Size
	// Frame returns the latest decoded frame and its sequence number. Images
	// always return sequence 1; videos advance as playback progresses.
	Frame() (*image.RGBA, uint64)
	// Close stops playback and frees any temporary handle. It is idempotent.
	Close() error
}

// Loader resolves a source into a Resource. limit is the physical size of the
// render surface; loaders may use it to bound decoded frame sizes.
type Loader interface {
	Load(ctx context.Context, src Source, limit Size) (Resource, error)
}

// FileLoader is the production Loader: images via the image decoders, videos
// via an ffmpeg subprocess.
type FileLoader struct {
	cfg     options.Media
	scale   bool
	tol     float64
	stepFPS int
	client  *http.Client
	log     *log.Logger
}

// NewLoader creates a FileLoader. When downscale is set, videos larger than
// the surface are scaled by the decoder.
func NewLoader(cfg options.Media, downscale bool, tolerance float64, logger *log.Logger) *FileLoader {
	if logger == nil {
		logger = log.Default()
	}
	return &FileLoader{
		cfg:    cfg,
		scale:  downscale,
		tol:    tolerance,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		log:    logger,
	}
}

// StepFrames makes videos loaded afterwards decode at fps without real-time
// pacing, one frame per Frame call. Zero restores real-time playback.
func (l *FileLoader) StepFrames(fps int) {
	l.stepFPS = max(0, fps)
}

// Load implements Loader.
func (l *FileLoader) Load(ctx context.Context, src Source, limit Size) (Resource, error) {
	if src.IsZero() {
		return nil, loadError(src, errEmptySource)
	}
	if err := ctx.Err(); err != nil {
		return nil, loadError(src, err)
	}
	kind := Classify(src)
	l.log.Printf("Loading %s %s", kind, src)
	if kind == KindVideo {
		return l.loadVideo(ctx, src, limit)
	}
	return l.loadImage(ctx, src)
}
