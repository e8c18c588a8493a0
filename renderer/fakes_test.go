package renderer

import (
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/richinsley/gowarp/inputs"
	"github.com/richinsley/gowarp/media"
	"github.com/richinsley/gowarp/options"
	"github.com/richinsley/gowarp/shader"
)

type fakeSurface struct {
	width, height int
	now           float64
	onResize      func(w, h int)
	shutdowns     int
	endFrames     int
	closeAfter    int
}

func (s *fakeSurface) MakeCurrent()                        {}
func (s *fakeSurface) Shutdown()                           { s.shutdowns++ }
func (s *fakeSurface) ShouldClose() bool                   { return s.closeAfter > 0 && s.endFrames >= s.closeAfter }
func (s *fakeSurface) EndFrame()                           { s.endFrames++; s.now += 1.0 / 60 }
func (s *fakeSurface) GetFramebufferSize() (int, int)      { return s.width, s.height }
func (s *fakeSurface) Time() float64                       { return s.now }
func (s *fakeSurface) IsGLES() bool                        { return false }
func (s *fakeSurface) OnResize(fn func(width, height int)) { s.onResize = fn }

// resize simulates the windowing system reporting a new size.
func (s *fakeSurface) resize(w, h int) {
	s.width, s.height = w, h
	if s.onResize != nil {
		s.onResize(w, h)
	}
}

type fakeTexture struct {
	id        uint32
	w, h      int
	uploads   int
	destroyed int
}

func (t *fakeTexture) GetTextureID() uint32 { return t.id }
func (t *fakeTexture) ChannelRes() [3]float32 {
	return [3]float32{float32(t.w), float32(t.h), 1}
}
func (t *fakeTexture) Upload(img *image.RGBA) { t.uploads++ }
func (t *fakeTexture) Destroy()               { t.destroyed++ }

type drawCall struct {
	u   shader.Uniforms
	tex inputs.Texture
}

type fakeBackend struct {
	textures  []*fakeTexture
	limits    []media.Size
	draws     []drawCall
	destroyed int
}

func (b *fakeBackend) NewTexture(img *image.RGBA, limit media.Size) (inputs.Texture, error) {
	t := &fakeTexture{id: uint32(len(b.textures) + 1), w: img.Rect.Dx(), h: img.Rect.Dy()}
	b.textures = append(b.textures, t)
	b.limits = append(b.limits, limit)
	return t, nil
}

func (b *fakeBackend) Draw(u *shader.Uniforms, tex inputs.Texture, width, height int) {
	b.draws = append(b.draws, drawCall{u: *u, tex: tex})
}

func (b *fakeBackend) ReadPixels(width, height int) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

func (b *fakeBackend) Destroy() { b.destroyed++ }

func (b *fakeBackend) lastDraw() drawCall {
	return b.draws[len(b.draws)-1]
}

type fakeResource struct {
	src    media.Source
	kind   media.Kind
	size   media.Size
	seq    atomic.Uint64
	closed atomic.Int32
}

func (r *fakeResource) Kind() media.Kind { return r.kind }
func (r *fakeResource) Size() media.Size { return r.size }
func (r *fakeResource) Frame() (*image.RGBA, uint64) {
	return image.NewRGBA(image.Rect(0, 0, r.size.Width, r.size.Height)), r.seq.Load()
}
func (r *fakeResource) Close() error {
	r.closed.Add(1)
	return nil
}

// fakeLoader resolves images as 800x400 and videos as 640x360. Sources with
// a gate block until the gate is closed, ignoring cancellation.
type fakeLoader struct {
	mu        sync.Mutex
	gates     map[string]chan struct{}
	fail      map[string]bool
	resources []*fakeResource
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{gates: map[string]chan struct{}{}, fail: map[string]bool{}}
}

func (l *fakeLoader) gate(src string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	g := make(chan struct{})
	l.gates[src] = g
	return g
}

func (l *fakeLoader) Load(ctx context.Context, src media.Source, limit media.Size) (media.Resource, error) {
	l.mu.Lock()
	g := l.gates[src.String()]
	fail := l.fail[src.String()]
	l.mu.Unlock()
	if g != nil {
		<-g
	}
	if fail {
		return nil, &media.LoadError{Source: src, Err: fmt.Errorf("decode: bad data")}
	}
	r := &fakeResource{src: src, kind: media.Classify(src), size: media.Size{Width: 800, Height: 400}}
	if r.kind == media.KindVideo {
		r.size = media.Size{Width: 640, Height: 360}
	}
	r.seq.Store(1)
	l.mu.Lock()
	l.resources = append(l.resources, r)
	l.mu.Unlock()
	return r, nil
}

func (l *fakeLoader) resourceFor(src media.Source) *fakeResource {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.resources {
		if r.src.Same(src) {
			return r
		}
	}
	return nil
}

type engineFixture struct {
	engine  *Engine
	surface *fakeSurface
	backend *fakeBackend
	loader  *fakeLoader
}

func newFixture(t *testing.T, width, height int, mutate func(*options.Engine)) *engineFixture {
	t.Helper()
	cfg := options.Default().Engine
	if mutate != nil {
		mutate(&cfg)
	}
	f := &engineFixture{
		surface: &fakeSurface{width: width, height: height},
		backend: &fakeBackend{},
		loader:  newFakeLoader(),
	}
	e, err := NewEngineWith(f.surface, f.backend, f.loader, cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewEngineWith: %v", err)
	}
	f.engine = e
	return f
}

// settle waits for in-flight loads and applies their results.
func (f *engineFixture) settle(t *testing.T) {
	t.Helper()
	f.engine.loads.Wait()
	if err := f.engine.Update(1.0 / 60); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

// waitFor runs frames until cond holds.
func (f *engineFixture) waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
		if err := f.engine.Update(1.0 / 60); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
}
