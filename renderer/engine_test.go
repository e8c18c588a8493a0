package renderer

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"

	"github.com/richinsley/gowarp/media"
	"github.com/richinsley/gowarp/options"
)

func approx(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestEngineStartsRunning(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	if got := f.engine.State(); got != StateRunning {
		t.Fatalf("State = %v, want running", got)
	}
	if f.surface.onResize == nil {
		t.Error("engine must observe surface resizes")
	}
}

func TestFirstFrameScenario(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	err := f.engine.SetParameters(EffectParameters{
		Source:      media.URL("a.jpg"),
		Scale:       1,
		MotionSpeed: 1,
	})
	if err != nil {
		t.Fatalf("SetParameters: %v", err)
	}
	f.settle(t)

	u := f.engine.Uniforms()
	if !approx(float64(u.PlaneAspect), 4.0/3.0, 1e-6) {
		t.Errorf("PlaneAspect = %v, want %v", u.PlaneAspect, 4.0/3.0)
	}
	if u.PlaneAspect != f.engine.Viewport().Aspect {
		t.Errorf("PlaneAspect = %v, camera aspect %v", u.PlaneAspect, f.engine.Viewport().Aspect)
	}
	if u.Scale != 1 {
		t.Errorf("Scale = %v, want 1", u.Scale)
	}
	if u.ImageAspect != 2 {
		t.Errorf("ImageAspect = %v, want 2", u.ImageAspect)
	}
	if len(f.backend.textures) != 1 || f.backend.lastDraw().tex != f.backend.textures[0] {
		t.Error("the loaded texture must be drawn")
	}
	if got := f.backend.limits[0]; got != (media.Size{Width: 400, Height: 300}) {
		t.Errorf("texture limit = %v, want the surface size", got)
	}
}

func TestSetParametersDoesNotRender(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	if err := f.engine.SetParameters(EffectParameters{Flow: 0.3, Scale: 1}); err != nil {
		t.Fatal(err)
	}
	if len(f.backend.draws) != 0 {
		t.Errorf("SetParameters drew %d frames", len(f.backend.draws))
	}
	if f.engine.Uniforms().Flow != 0 {
		t.Error("uniforms changed before the next frame")
	}
}

func TestAnimatedParametersConverge(t *testing.T) {
	for _, speed := range []float64{0.01, 0.075, 0.3, 1} {
		f := newFixture(t, 400, 300, nil)
		target := EffectParameters{Flow: 0.5, Lens: -1, Pinch: 1.5, Scale: 0.5, MotionSpeed: speed}
		if err := f.engine.SetParameters(target); err != nil {
			t.Fatal(err)
		}
		start := f.engine.Animated()
		want := target.Animated()
		for n := 1; n <= 60; n++ {
			if err := f.engine.Update(1.0 / 60); err != nil {
				t.Fatal(err)
			}
			got := f.engine.Animated()
			k := math.Pow(1-speed, float64(n))
			check := func(name string, a, a0, tgt float64) {
				if math.Abs(a-tgt) > math.Abs(a0-tgt)*k+1e-12 {
					t.Errorf("speed %v frame %d: %s = %v, outside bound", speed, n, name, a)
				}
			}
			check("flow", got.Flow, start.Flow, want.Flow)
			check("lens", got.Lens, start.Lens, want.Lens)
			check("pinch", got.Pinch, start.Pinch, want.Pinch)
			check("scale", got.Scale, start.Scale, want.Scale)
		}
	}
}

func TestDefaultMotionSpeedApplied(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	if err := f.engine.SetParameters(EffectParameters{Flow: 1, Scale: 1}); err != nil {
		t.Fatal(err)
	}
	f.engine.Update(0)
	if got := f.engine.Animated().Flow; !approx(got, DefaultMotionSpeed, 1e-12) {
		t.Errorf("Flow after one frame = %v, want %v", got, DefaultMotionSpeed)
	}
}

func TestSnapUpdateMode(t *testing.T) {
	f := newFixture(t, 400, 300, func(c *options.Engine) { c.UpdateMode = "snap" })
	p := EffectParameters{Flow: 0.2, Lens: 0.4, Pinch: -0.6, Scale: 1.2, MotionSpeed: 0.01}
	if err := f.engine.SetParameters(p); err != nil {
		t.Fatal(err)
	}
	f.engine.Update(1.0 / 60)
	if got := f.engine.Animated(); got != p.Animated() {
		t.Errorf("Animated = %+v, want %+v", got, p.Animated())
	}
}

func TestTimeAdvances(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	f.engine.Update(0.5)
	f.engine.Update(0.25)
	if got := f.engine.Uniforms().Time; got != 0.75 {
		t.Errorf("Time = %v, want 0.75", got)
	}
}

func TestInvalidParametersLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	good := EffectParameters{Flow: 0.1, Scale: 1}
	if err := f.engine.SetParameters(good); err != nil {
		t.Fatal(err)
	}
	bad := []EffectParameters{
		{Flow: math.NaN(), Scale: 1},
		{Lens: math.Inf(1), Scale: 1},
		{Scale: 0},
		{Scale: -1},
		{Flow: -0.1, Scale: 1},
		{Scale: 1, MotionSpeed: -1},
		{Source: media.URL("b.jpg"), Scale: math.NaN()},
	}
	for _, p := range bad {
		if err := f.engine.SetParameters(p); !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("SetParameters(%+v) = %v, want ErrInvalidParameters", p, err)
		}
	}
	if f.engine.target != good {
		t.Errorf("target = %+v, want %+v", f.engine.target, good)
	}
	f.engine.loads.Wait()
	if len(f.loader.resources) != 0 {
		t.Error("an invalid bundle started a load")
	}
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	a, b := media.URL("a.jpg"), media.URL("b.jpg")
	gateA := f.loader.gate(a.String())

	if err := f.engine.SetParameters(EffectParameters{Source: a, Scale: 1}); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.SetParameters(EffectParameters{Source: b, Scale: 1}); err != nil {
		t.Fatal(err)
	}
	f.waitFor(t, func() bool { return f.engine.Source().Same(b) })

	close(gateA)
	f.settle(t)
	f.engine.Update(1.0 / 60)

	if !f.engine.Source().Same(b) {
		t.Errorf("Source = %s, want b.jpg", f.engine.Source())
	}
	resA := f.loader.resourceFor(a)
	if resA == nil {
		t.Fatal("a.jpg never resolved")
	}
	if got := resA.closed.Load(); got != 1 {
		t.Errorf("stale resource closed %d times, want 1", got)
	}
	if len(f.backend.textures) != 1 {
		t.Errorf("%d textures created, want only b.jpg's", len(f.backend.textures))
	}
	for _, d := range f.backend.draws {
		if d.tex != nil && d.tex != f.backend.textures[0] {
			t.Error("a texture other than b.jpg's reached the shader")
		}
	}
}

func TestSwitchImageToVideo(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	img, vid := media.URL("https://example.com/a.jpg"), media.URL("https://example.com/clip.mp4")
	if err := f.engine.SetParameters(EffectParameters{Source: img, Scale: 1}); err != nil {
		t.Fatal(err)
	}
	f.settle(t)
	imgTex := f.backend.textures[0]

	if err := f.engine.SetParameters(EffectParameters{Source: vid, Scale: 1}); err != nil {
		t.Fatal(err)
	}
	f.settle(t)
	f.engine.Update(1.0 / 60)

	if imgTex.destroyed != 1 {
		t.Errorf("image texture destroyed %d times, want 1", imgTex.destroyed)
	}
	if got := f.loader.resourceFor(img).closed.Load(); got != 1 {
		t.Errorf("image resource closed %d times, want 1", got)
	}
	video := f.loader.resourceFor(vid)
	if video.closed.Load() != 0 {
		t.Error("video closed while playing")
	}
	if !f.engine.Source().Same(vid) {
		t.Errorf("Source = %s, want the video", f.engine.Source())
	}
	if got := f.engine.Uniforms().ImageAspect; !approx(float64(got), 16.0/9.0, 1e-6) {
		t.Errorf("ImageAspect = %v, want 16/9", got)
	}
	if got := f.backend.limits[1]; got != (media.Size{}) {
		t.Errorf("video texture limit = %v, want none", got)
	}

	vidTex := f.backend.textures[1]
	f.engine.Update(1.0 / 60)
	if vidTex.uploads != 0 {
		t.Errorf("unchanged frame uploaded %d times", vidTex.uploads)
	}
	video.seq.Add(1)
	f.engine.Update(1.0 / 60)
	if vidTex.uploads != 1 {
		t.Errorf("new frame uploaded %d times, want 1", vidTex.uploads)
	}
}

func TestSwitchVideoStopsPreviousPlayback(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	first, second := media.URL("one.mp4"), media.URL("two.webm")
	if err := f.engine.SetParameters(EffectParameters{Source: first, Scale: 1}); err != nil {
		t.Fatal(err)
	}
	f.settle(t)
	if err := f.engine.SetParameters(EffectParameters{Source: second, Scale: 1}); err != nil {
		t.Fatal(err)
	}
	f.settle(t)

	old := f.loader.resourceFor(first)
	if got := old.closed.Load(); got != 1 {
		t.Errorf("previous video closed %d times, want 1", got)
	}
	if f.backend.textures[0].destroyed != 1 {
		t.Errorf("previous video texture destroyed %d times, want 1", f.backend.textures[0].destroyed)
	}
	if f.loader.resourceFor(second).closed.Load() != 0 {
		t.Error("new video stopped")
	}

	// Frames of the stopped video are never uploaded again.
	old.seq.Add(1)
	f.engine.Update(1.0 / 60)
	if f.backend.textures[0].uploads != 0 {
		t.Error("stopped video still uploads frames")
	}
	f.engine.Dispose()
	if got := old.closed.Load(); got != 1 {
		t.Errorf("previous video closed %d times after dispose, want 1", got)
	}
}

func TestLoadFailureKeepsPreviousMedia(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	good, bad := media.URL("a.jpg"), media.URL("broken.png")
	f.loader.fail[bad.String()] = true

	f.engine.SetParameters(EffectParameters{Source: good, Scale: 1})
	f.settle(t)
	f.engine.SetParameters(EffectParameters{Source: bad, Scale: 1})
	f.settle(t)

	if !f.engine.Source().Same(good) {
		t.Errorf("Source = %s, want a.jpg", f.engine.Source())
	}
	if f.backend.textures[0].destroyed != 0 {
		t.Error("previous texture destroyed after a failed load")
	}
	if f.backend.lastDraw().tex != f.backend.textures[0] {
		t.Error("previous texture no longer drawn")
	}
}

func TestReselectingCurrentSourceCancelsPending(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	a, b := media.URL("a.jpg"), media.URL("b.jpg")
	f.engine.SetParameters(EffectParameters{Source: a, Scale: 1})
	f.settle(t)

	gateB := f.loader.gate(b.String())
	f.engine.SetParameters(EffectParameters{Source: b, Scale: 1})
	f.engine.SetParameters(EffectParameters{Source: a, Scale: 1})
	close(gateB)
	f.settle(t)

	if !f.engine.Source().Same(a) {
		t.Errorf("Source = %s, want a.jpg", f.engine.Source())
	}
	if len(f.backend.textures) != 1 {
		t.Errorf("%d textures created, want 1", len(f.backend.textures))
	}
	if got := f.loader.resourceFor(b).closed.Load(); got != 1 {
		t.Errorf("abandoned load closed %d times, want 1", got)
	}
}

func TestResizeDeferredAndCoalesced(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	f.engine.Update(0)

	f.surface.resize(200, 100)
	f.surface.resize(800, 400)
	if got := f.engine.Viewport().Width; got != 400 {
		t.Fatalf("viewport recomputed inside the callback: width %d", got)
	}
	f.engine.Update(0)
	vp := f.engine.Viewport()
	if vp.Width != 800 || vp.Height != 400 || vp.Aspect != 2 {
		t.Errorf("viewport = %dx%d aspect %v, want 800x400 aspect 2", vp.Width, vp.Height, vp.Aspect)
	}
	if f.engine.Uniforms().PlaneAspect != 2 {
		t.Errorf("PlaneAspect = %v, want 2", f.engine.Uniforms().PlaneAspect)
	}
}

func TestDegenerateResizeSkipped(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	f.engine.Update(0)
	before := f.engine.Viewport()

	f.surface.resize(0, 300)
	f.engine.Update(0)
	if got := f.engine.Viewport(); got != before {
		t.Errorf("viewport changed on a degenerate resize: %+v", got)
	}
	u := f.engine.Uniforms()
	if math.IsNaN(float64(u.PlaneAspect)) || math.IsInf(float64(u.PlaneAspect), 0) {
		t.Errorf("PlaneAspect = %v", u.PlaneAspect)
	}

	f.surface.resize(300, 300)
	f.engine.Update(0)
	if got := f.engine.Viewport().Aspect; got != 1 {
		t.Errorf("Aspect after recovery = %v, want 1", got)
	}
}

func TestZeroSizedSurfaceDoesNotDraw(t *testing.T) {
	f := newFixture(t, 0, 0, nil)
	f.engine.Update(1.0 / 60)
	if len(f.backend.draws) != 0 {
		t.Error("drew into a zero-sized surface")
	}
	f.surface.resize(640, 480)
	f.engine.Update(1.0 / 60)
	if len(f.backend.draws) != 1 {
		t.Error("no draw after the surface became usable")
	}
}

func TestDisposeIsIdempotent(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	src := media.URL("a.jpg")
	f.engine.SetParameters(EffectParameters{Source: src, Scale: 1})
	f.settle(t)

	f.engine.Dispose()
	f.engine.Dispose()

	if f.engine.State() != StateDisposed {
		t.Errorf("State = %v, want disposed", f.engine.State())
	}
	if f.backend.destroyed != 1 {
		t.Errorf("backend destroyed %d times, want 1", f.backend.destroyed)
	}
	if f.surface.shutdowns != 1 {
		t.Errorf("surface shut down %d times, want 1", f.surface.shutdowns)
	}
	if f.backend.textures[0].destroyed != 1 {
		t.Errorf("texture destroyed %d times, want 1", f.backend.textures[0].destroyed)
	}
	if got := f.loader.resourceFor(src).closed.Load(); got != 1 {
		t.Errorf("resource closed %d times, want 1", got)
	}
	if f.surface.onResize != nil {
		t.Error("resize observation not stopped")
	}

	draws := len(f.backend.draws)
	before := f.engine.Uniforms()
	if err := f.engine.Update(1.0 / 60); !errors.Is(err, ErrDisposed) {
		t.Errorf("Update after dispose = %v, want ErrDisposed", err)
	}
	if err := f.engine.SetParameters(EffectParameters{Scale: 1}); !errors.Is(err, ErrDisposed) {
		t.Errorf("SetParameters after dispose = %v, want ErrDisposed", err)
	}
	if len(f.backend.draws) != draws || f.engine.Uniforms() != before {
		t.Error("state changed after dispose")
	}
}

func TestLoadCompletingAfterDispose(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	src := media.URL("slow.jpg")
	gate := f.loader.gate(src.String())
	f.engine.SetParameters(EffectParameters{Source: src, Scale: 1})

	f.engine.Dispose()
	close(gate)
	f.engine.loads.Wait()

	if got := f.loader.resourceFor(src).closed.Load(); got != 1 {
		t.Errorf("late resource closed %d times, want 1", got)
	}
	if len(f.backend.textures) != 0 {
		t.Error("a late load reached the GPU")
	}
	if f.engine.Uniforms().ImageAspect != 1 {
		t.Error("a late load touched the uniforms")
	}
}

func TestRunStopsWhenSurfaceCloses(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	f.surface.closeAfter = 3
	if err := f.engine.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.backend.draws) != 3 {
		t.Errorf("%d frames drawn, want 3", len(f.backend.draws))
	}
	if got := f.engine.Uniforms().Time; !approx(float64(got), 2.0/60, 1e-6) {
		t.Errorf("Time = %v, want %v", got, 2.0/60)
	}
}

func TestFrameTimeCountsFromConstruction(t *testing.T) {
	surface := &fakeSurface{width: 400, height: 300, now: 5}
	e, err := NewEngineWith(surface, &fakeBackend{}, newFakeLoader(), options.Default().Engine, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Dispose()

	surface.now = 5.5
	if err := e.Frame(); err != nil {
		t.Fatal(err)
	}
	if got := e.Uniforms().Time; !approx(float64(got), 0.5, 1e-6) {
		t.Errorf("Time after first frame = %v, want 0.5", got)
	}
	surface.now = 6
	e.Frame()
	if got := e.Uniforms().Time; !approx(float64(got), 1, 1e-6) {
		t.Errorf("Time = %v, want 1", got)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.engine.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestRunAfterDispose(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	f.engine.Dispose()
	if err := f.engine.Run(context.Background()); err != nil {
		t.Errorf("Run after dispose = %v, want nil", err)
	}
}
