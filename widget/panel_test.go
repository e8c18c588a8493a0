package widget

import (
	"math"
	"testing"

	"github.com/richinsley/gowarp/media"
	"github.com/richinsley/gowarp/renderer"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPanelNudgeStaysInRange(t *testing.T) {
	p := NewPanel(renderer.EffectParameters{Flow: 0.1, Scale: 1}, nil)
	for c, r := range Ranges {
		for i := 0; i < 1000; i++ {
			p.Nudge(c, 1)
		}
		if got := p.Value(c); !near(got, r.Max) {
			t.Errorf("%s after nudging up = %v, want %v", c, got, r.Max)
		}
		for i := 0; i < 1000; i++ {
			p.Nudge(c, -1)
		}
		if got := p.Value(c); !near(got, r.Min) {
			t.Errorf("%s after nudging down = %v, want %v", c, got, r.Min)
		}
	}
	if err := p.Params().Validate(); err != nil {
		t.Errorf("panel produced invalid parameters: %v", err)
	}
}

func TestPanelNudgeStep(t *testing.T) {
	p := NewPanel(renderer.EffectParameters{Flow: 0.1, Scale: 1}, nil)
	p.Nudge(Flow, 2)
	if got := p.Value(Flow); !near(got, 0.12) {
		t.Errorf("Flow = %v, want 0.12", got)
	}
	p.Nudge(Scale, -3)
	if got := p.Value(Scale); !near(got, 0.85) {
		t.Errorf("Scale = %v, want 0.85", got)
	}
	if got := p.Value(MotionSpeed); !near(got, renderer.DefaultMotionSpeed) {
		t.Errorf("MotionSpeed = %v, want the default", got)
	}
}

func TestPanelPlaylist(t *testing.T) {
	a, b, c := media.URL("a.jpg"), media.URL("b.mp4"), media.URL("c.png")
	var seen []media.Source
	p := NewPanel(renderer.EffectParameters{Scale: 1}, []media.Source{a, b, c})
	p.OnChange = func(e renderer.EffectParameters) { seen = append(seen, e.Source) }

	if !p.Params().Source.Same(a) {
		t.Fatalf("initial source = %s", p.Params().Source)
	}
	p.Next()
	p.Next()
	p.Next()
	p.Prev()
	want := []media.Source{b, c, a, c}
	if len(seen) != len(want) {
		t.Fatalf("changes = %v", seen)
	}
	for i := range want {
		if !seen[i].Same(want[i]) {
			t.Errorf("change %d = %s, want %s", i, seen[i], want[i])
		}
	}

	d := media.File(&media.FileHandle{Name: "drop.png"})
	p.Add(d)
	if !p.Params().Source.Same(d) {
		t.Error("added source not shown")
	}
	p.Next()
	if !p.Params().Source.Same(a) {
		t.Errorf("Next after Add = %s, want wrap to a.jpg", p.Params().Source)
	}
}

func TestPanelReset(t *testing.T) {
	a, b := media.URL("a.jpg"), media.URL("b.jpg")
	p := NewPanel(renderer.EffectParameters{Flow: 0.1, Scale: 1}, []media.Source{a, b})
	p.Nudge(Lens, 5)
	p.Next()
	p.Reset()
	if got := p.Value(Lens); got != 0 {
		t.Errorf("Lens after reset = %v", got)
	}
	if !p.Params().Source.Same(b) {
		t.Error("reset changed the source")
	}
}

func TestPanelEmptyPlaylist(t *testing.T) {
	calls := 0
	p := NewPanel(renderer.EffectParameters{Scale: 1}, nil)
	p.OnChange = func(renderer.EffectParameters) { calls++ }
	p.Next()
	p.Prev()
	if calls != 0 || !p.Params().Source.IsZero() {
		t.Error("cycling an empty playlist changed the panel")
	}
}
