package renderer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/richinsley/gowarp/graphics"
	"github.com/richinsley/gowarp/inputs"
	"github.com/richinsley/gowarp/media"
	"github.com/richinsley/gowarp/options"
	"github.com/richinsley/gowarp/shader"
)

// State is the engine lifecycle stage.
type State int

const (
	StateConstructed State = iota
	StateRunning
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateRunning:
		return "running"
	default:
		return "disposed"
	}
}

type loadResult struct {
	id  uint64
	src media.Source
	res media.Resource
	err error
}

// Engine renders one media source onto a displaced plane filling a surface.
// Update, Frame, Run, SetParameters and Dispose must be called from the
// thread that owns the surface's graphics context. Media loads run on
// their own goroutines and are applied at the next frame boundary.
type Engine struct {
	surface graphics.Context
	backend Backend
	loader  media.Loader
	log     *log.Logger

	mode      UpdateMode
	downscale bool

	state    State
	target   EffectParameters
	animated AnimatedParameters
	uniforms shader.Uniforms
	viewport Viewport

	lastTime    float64
	unfitLogged bool

	requested media.Source
	current   media.Source
	resource  media.Resource
	texture   inputs.Texture
	frameSeq  uint64

	loads sync.WaitGroup

	mu            sync.Mutex
	latest        uint64
	cancel        context.CancelFunc
	mailbox       []loadResult
	closed        bool
	resizePending bool
	resizeW       int
	resizeH       int
}

// NewEngine creates an engine drawing into surface with the OpenGL backend
// and the file/HTTP/ffmpeg media loader.
func NewEngine(surface graphics.Context, cfg *options.Options, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}
	mode, err := shader.ParseAspectMode(cfg.Engine.AspectMode)
	if err != nil {
		return nil, err
	}
	color, err := shader.ParseColorPipeline(cfg.Engine.ColorPipeline)
	if err != nil {
		return nil, err
	}
	backend, err := NewGLBackend(surface, mode, color, cfg.Engine.GridSegments, cfg.Engine.Downscale, cfg.Engine.DownscaleTolerance, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create render backend: %w", err)
	}
	loader := media.NewLoader(cfg.Media, cfg.Engine.Downscale, cfg.Engine.DownscaleTolerance, logger)
	if cfg.Record.Enabled {
		// Offline renders step video by output frame instead of wall clock.
		loader.StepFrames(cfg.Record.FPS)
	}
	e, err := NewEngineWith(surface, backend, loader, cfg.Engine, logger)
	if err != nil {
		backend.Destroy()
		return nil, err
	}
	return e, nil
}

// NewEngineWith creates an engine from explicit collaborators. The engine
// takes ownership of surface and backend and releases both on Dispose.
func NewEngineWith(surface graphics.Context, backend Backend, loader media.Loader, cfg options.Engine, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}
	mode, err := ParseUpdateMode(cfg.UpdateMode)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		surface:   surface,
		backend:   backend,
		loader:    loader,
		log:       logger,
		mode:      mode,
		downscale: cfg.Downscale,
		state:     StateConstructed,
		target:    EffectParameters{Scale: 1},
		animated:  AnimatedParameters{Scale: 1},
		viewport:  NewViewport(cfg.FOV, cfg.CameraDistance, cfg.Near, cfg.Far),
	}
	e.uniforms = shader.Uniforms{Scale: 1, ImageAspect: 1, PlaneAspect: 1}

	w, h := surface.GetFramebufferSize()
	if err := e.viewport.Fit(w, h); err != nil {
		e.log.Printf("Initial surface size unusable, waiting for resize: %v", err)
	}
	surface.OnResize(e.onResize)
	// Time counts from construction, not from the first frame.
	e.lastTime = surface.Time()
	e.state = StateRunning
	return e, nil
}

// State returns the lifecycle stage.
func (e *Engine) State() State { return e.state }

// Uniforms returns the values pushed to the shader on the last frame.
func (e *Engine) Uniforms() shader.Uniforms { return e.uniforms }

// Animated returns the current smoothed parameters.
func (e *Engine) Animated() AnimatedParameters { return e.animated }

// Viewport returns the current camera fit.
func (e *Engine) Viewport() Viewport { return e.viewport }

// Source returns the source of the media currently displayed.
func (e *Engine) Source() media.Source { return e.current }

// SetParameters records new targets and starts loading the media source if
// it changed. It never blocks and never renders.
func (e *Engine) SetParameters(p EffectParameters) error {
	if e.state != StateRunning {
		return ErrDisposed
	}
	if err := p.Validate(); err != nil {
		return err
	}
	e.target = p
	if !p.Source.Same(e.requested) {
		e.requested = p.Source
		e.startLoad(p.Source)
	}
	return nil
}

func (e *Engine) startLoad(src media.Source) {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.latest++
	id := e.latest
	if src.IsZero() || (e.resource != nil && src.Same(e.current)) {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.mu.Unlock()

	var limit media.Size
	if e.downscale {
		limit = media.Size{Width: e.viewport.Width, Height: e.viewport.Height}
	}
	e.loads.Add(1)
	go func() {
		defer e.loads.Done()
		defer cancel()
		res, err := e.loader.Load(ctx, src, limit)
		e.post(loadResult{id: id, src: src, res: res, err: err})
	}()
}

// post hands a finished load to the render thread. Results that are stale or
// arrive after disposal are released here.
func (e *Engine) post(r loadResult) {
	e.mu.Lock()
	if !e.closed && r.id == e.latest {
		e.mailbox = append(e.mailbox, r)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	if r.res != nil {
		r.res.Close()
	}
}

func (e *Engine) onResize(width, height int) {
	e.mu.Lock()
	e.resizePending = true
	e.resizeW, e.resizeH = width, height
	e.mu.Unlock()
}

// Update advances one frame by dt seconds and draws it.
func (e *Engine) Update(dt float64) error {
	if e.state != StateRunning {
		return ErrDisposed
	}
	// Frames of the current video advance before a newly loaded source is
	// applied, so a fresh source shows its first frame for a full tick.
	e.refreshFrame()
	e.drainLoads()
	e.reconcileResize()

	target := e.target.Animated()
	if e.mode == UpdateSnap {
		e.animated.Snap(target)
	} else {
		e.animated.Step(target, e.target.Speed())
	}

	e.uniforms.Time += float32(dt)
	e.uniforms.Flow = float32(e.animated.Flow)
	e.uniforms.Lens = float32(e.animated.Lens)
	e.uniforms.Pinch = float32(e.animated.Pinch)
	e.uniforms.Scale = float32(e.animated.Scale)
	e.uniforms.PlaneAspect = e.viewport.Aspect
	e.uniforms.Model = e.viewport.Model
	e.uniforms.View = e.viewport.View
	e.uniforms.Projection = e.viewport.Projection

	if e.viewport.Width == 0 || e.viewport.Height == 0 {
		return nil
	}
	e.backend.Draw(&e.uniforms, e.texture, e.viewport.Width, e.viewport.Height)
	return nil
}

// Frame runs Update with the time elapsed since the previous Frame, or since
// construction for the first one.
func (e *Engine) Frame() error {
	now := e.surface.Time()
	dt := max(0, now-e.lastTime)
	e.lastTime = now
	return e.Update(dt)
}

// Run drives Frame once per display refresh until ctx is done, the surface
// is closed or the engine is disposed.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if e.surface.ShouldClose() {
			return nil
		}
		if err := e.Frame(); err != nil {
			if errors.Is(err, ErrDisposed) {
				return nil
			}
			return err
		}
		e.surface.EndFrame()
	}
}

func (e *Engine) drainLoads() {
	e.mu.Lock()
	results := e.mailbox
	e.mailbox = nil
	latest := e.latest
	e.mu.Unlock()

	for _, r := range results {
		if r.id != latest {
			if r.res != nil {
				r.res.Close()
			}
			continue
		}
		if r.err != nil {
			e.log.Printf("Media load failed, keeping previous media: %v", r.err)
			continue
		}
		e.apply(r)
	}
}

func (e *Engine) apply(r loadResult) {
	frame, seq := r.res.Frame()
	if frame == nil {
		e.log.Printf("Media %s produced no frame", r.src)
		r.res.Close()
		return
	}
	var limit media.Size
	if e.downscale && r.res.Kind() == media.KindImage {
		limit = media.Size{Width: e.viewport.Width, Height: e.viewport.Height}
	}
	tex, err := e.backend.NewTexture(frame, limit)
	if err != nil {
		e.log.Printf("Failed to upload %s: %v", r.src, err)
		r.res.Close()
		return
	}

	e.releaseMedia()
	e.resource = r.res
	e.texture = tex
	e.frameSeq = seq
	e.current = r.src
	e.uniforms.ImageAspect = float32(r.res.Size().Aspect())
	e.log.Printf("Showing %s %s (%dx%d)", r.res.Kind(), r.src, r.res.Size().Width, r.res.Size().Height)
}

// releaseMedia stops playback and frees the texture of the current media.
func (e *Engine) releaseMedia() {
	if e.resource != nil {
		if err := e.resource.Close(); err != nil {
			e.log.Printf("Failed to release %s: %v", e.current, err)
		}
		e.resource = nil
	}
	if e.texture != nil {
		e.texture.Destroy()
		e.texture = nil
	}
	e.current = media.Source{}
	e.frameSeq = 0
}

func (e *Engine) refreshFrame() {
	if e.resource == nil || e.resource.Kind() != media.KindVideo {
		return
	}
	frame, seq := e.resource.Frame()
	if frame == nil || seq == e.frameSeq {
		return
	}
	e.texture.Upload(frame)
	e.frameSeq = seq
}

func (e *Engine) reconcileResize() {
	e.mu.Lock()
	pending := e.resizePending
	w, h := e.resizeW, e.resizeH
	e.resizePending = false
	e.mu.Unlock()
	if !pending {
		return
	}
	if err := e.viewport.Fit(w, h); err != nil {
		if !e.unfitLogged {
			e.log.Printf("Skipping resize: %v", err)
			e.unfitLogged = true
		}
		return
	}
	e.unfitLogged = false
}

// Dispose releases every resource the engine holds, in reverse order of
// acquisition. It is safe to call more than once.
func (e *Engine) Dispose() {
	if e.state == StateDisposed {
		return
	}
	e.state = StateDisposed
	e.surface.OnResize(nil)

	e.mu.Lock()
	e.closed = true
	cancel := e.cancel
	e.cancel = nil
	queued := e.mailbox
	e.mailbox = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, r := range queued {
		if r.res != nil {
			r.res.Close()
		}
	}
	e.releaseMedia()
	e.backend.Destroy()
	e.surface.Shutdown()
}
