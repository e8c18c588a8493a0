package renderer

import (
	"context"
	"errors"
	"runtime"
	"testing"
)

func TestEncoderArgs(t *testing.T) {
	in, out := encoderArgs(RecordOptions{Width: 640, Height: 360, FPS: 30, Output: "out.MP4", Codec: "hevc"})
	if in["s"] != "640x360" || in["pix_fmt"] != "rgba" || in["r"] != 30 {
		t.Errorf("input args = %v", in)
	}
	if out["pix_fmt"] != "yuv420p" {
		t.Errorf("pix_fmt = %v, want yuv420p", out["pix_fmt"])
	}
	if out["tag:v"] != "hvc1" {
		t.Errorf("tag:v = %v, want hvc1 for hevc in mp4", out["tag:v"])
	}
	if runtime.GOOS == "linux" && out["c:v"] != "libx265" {
		t.Errorf("c:v = %v, want libx265", out["c:v"])
	}

	_, out = encoderArgs(RecordOptions{Width: 640, Height: 360, FPS: 30, Output: "out.mkv", Codec: "h264"})
	if _, ok := out["tag:v"]; ok {
		t.Error("unexpected tag:v for h264")
	}
	if runtime.GOOS == "linux" && out["c:v"] != "libx264" {
		t.Errorf("c:v = %v, want libx264", out["c:v"])
	}
}

func TestRecordOptionsValidate(t *testing.T) {
	ok := RecordOptions{Width: 320, Height: 240, Duration: 2, FPS: 30, Output: "a.mp4"}
	if err := ok.validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
	if got := ok.TotalFrames(); got != 60 {
		t.Errorf("TotalFrames = %d, want 60", got)
	}
	bad := ok
	bad.Width = 0
	if err := bad.validate(); !errors.Is(err, ErrViewportDegenerate) {
		t.Errorf("zero width: %v", err)
	}
	bad = ok
	bad.FPS = 0
	if bad.validate() == nil {
		t.Error("zero fps accepted")
	}
}

func TestRecordAfterDispose(t *testing.T) {
	f := newFixture(t, 400, 300, nil)
	f.engine.Dispose()
	err := f.engine.Record(context.Background(), RecordOptions{Width: 320, Height: 240, Duration: 1, FPS: 30, Output: "a.mp4"})
	if !errors.Is(err, ErrDisposed) {
		t.Errorf("Record = %v, want ErrDisposed", err)
	}
}
