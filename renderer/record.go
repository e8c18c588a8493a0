package renderer

import (
	"context"
	"fmt"
	"io"
	"log"
	"runtime"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// RecordOptions configures an offline render to a video file.
type RecordOptions struct {
	Width      int
	Height     int
	Duration   float64 // seconds
	FPS        int
	Output     string
	Codec      string // h264 or hevc
	FFMPEGPath string
}

func (o RecordOptions) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: record size %dx%d", ErrViewportDegenerate, o.Width, o.Height)
	}
	if o.FPS <= 0 || o.Duration <= 0 {
		return fmt.Errorf("record needs a positive duration and fps, got %vs at %d fps", o.Duration, o.FPS)
	}
	if o.Output == "" {
		return fmt.Errorf("record output file is empty")
	}
	return nil
}

// TotalFrames returns the number of frames a recording produces.
func (o RecordOptions) TotalFrames() int {
	return int(o.Duration * float64(o.FPS))
}

func encoderArgs(o RecordOptions) (inputArgs, outputArgs ffmpeg.KwArgs) {
	inputArgs = ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgba",
		"s":       fmt.Sprintf("%dx%d", o.Width, o.Height),
		"r":       o.FPS,
	}

	outputArgs = ffmpeg.KwArgs{
		"pix_fmt": "yuv420p",
		"b:v":     "25M",
	}
	switch runtime.GOOS {
	case "darwin":
		log.Println("Using macOS (VideoToolbox) hardware acceleration.")
		if o.Codec == "hevc" {
			outputArgs["c:v"] = "hevc_videotoolbox"
		} else {
			outputArgs["c:v"] = "h264_videotoolbox"
		}
	default:
		log.Println("Using software encoding pipeline (no hardware acceleration).")
		if o.Codec == "hevc" {
			outputArgs["c:v"] = "libx265"
		} else {
			outputArgs["c:v"] = "libx264"
		}
	}
	if o.Codec == "hevc" && strings.HasSuffix(strings.ToLower(o.Output), ".mp4") {
		outputArgs["tag:v"] = "hvc1"
	}
	return inputArgs, outputArgs
}

// Record renders TotalFrames frames at a fixed time step and encodes them
// with ffmpeg. Pending media loads are awaited first so the recording starts
// with the requested source.
func (e *Engine) Record(ctx context.Context, opts RecordOptions) error {
	if e.state != StateRunning {
		return ErrDisposed
	}
	if err := opts.validate(); err != nil {
		return err
	}
	if err := e.awaitLoads(ctx); err != nil {
		return err
	}
	if err := e.viewport.Fit(opts.Width, opts.Height); err != nil {
		return err
	}
	// Recording keeps its own size regardless of the window.
	e.mu.Lock()
	e.resizePending = false
	e.mu.Unlock()

	pipeReader, pipeWriter := io.Pipe()
	inputArgs, outputArgs := encoderArgs(opts)
	ffmpegCmd := ffmpeg.Input("pipe:", inputArgs).
		Output(opts.Output, outputArgs).
		OverWriteOutput().WithInput(pipeReader).ErrorToStdOut()
	if opts.FFMPEGPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(opts.FFMPEGPath)
	}

	errc := make(chan error, 1)
	go func() {
		err := ffmpegCmd.Run()
		pipeReader.CloseWithError(io.ErrClosedPipe)
		errc <- err
	}()

	total := opts.TotalFrames()
	step := 1.0 / float64(opts.FPS)
	e.log.Printf("Recording %d frames at %dx%d to %s", total, opts.Width, opts.Height, opts.Output)

	var renderErr error
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			renderErr = err
			break
		}
		if err := e.Update(step); err != nil {
			renderErr = err
			break
		}
		pixels, err := e.backend.ReadPixels(opts.Width, opts.Height)
		if err != nil {
			renderErr = fmt.Errorf("failed to read frame %d: %w", i, err)
			break
		}
		if _, err := pipeWriter.Write(pixels.Pix); err != nil {
			renderErr = fmt.Errorf("failed to write frame %d to ffmpeg: %w", i, err)
			break
		}
	}
	pipeWriter.Close()
	encErr := <-errc
	if renderErr != nil {
		return renderErr
	}
	if encErr != nil {
		return fmt.Errorf("ffmpeg failed: %w", encErr)
	}
	e.log.Printf("Recording finished: %s", opts.Output)
	return nil
}

// awaitLoads blocks until in-flight media loads have posted their results.
func (e *Engine) awaitLoads(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.loads.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
