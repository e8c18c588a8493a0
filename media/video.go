package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	options "github.com/richinsley/gowarp/options"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// VideoResource is a muted, looping ffmpeg decode of a video source. In real
// time mode the latest decoded frame is always available through Frame. In
// stepped mode every Frame call hands out the next decoded frame, so an
// offline render sees the clip at its own frame rate.
type VideoResource struct {
	size      Size // native
	frameSize Size // decoded

	cmd    *exec.Cmd
	pipeR  *io.PipeReader
	handle *ObjectURL

	stepped bool
	frames  chan *image.RGBA
	stop    chan struct{}

	mu     sync.Mutex
	front  *image.RGBA
	seq    uint64
	out    *image.RGBA
	outSeq uint64

	ready      chan struct{}
	readerDone chan struct{}
	exited     chan struct{}
	waitErr    error

	closeOnce sync.Once
	closeErr  error
}

type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// ProbeSize returns the dimensions of the first video stream in probe output.
func ProbeSize(probeJSON string) (Size, error) {
	var pr probeResult
	if err := json.Unmarshal([]byte(probeJSON), &pr); err != nil {
		return Size{}, fmt.Errorf("failed to parse probe output: %w", err)
	}
	for _, s := range pr.Streams {
		if s.CodecType == "video" && s.Width > 0 && s.Height > 0 {
			return Size{Width: s.Width, Height: s.Height}, nil
		}
	}
	return Size{}, errors.New("no video stream found")
}

func videoPath(raw string) string {
	if u, err := url.Parse(raw); err == nil && strings.EqualFold(u.Scheme, "file") {
		return u.Path
	}
	return raw
}

// ffprobeBinary picks the ffprobe that ships with the configured ffmpeg.
func ffprobeBinary(cfg options.Media) string {
	if cfg.FFProbePath != "" {
		return cfg.FFProbePath
	}
	if cfg.FFMPEGPath == "" {
		return "ffprobe"
	}
	dir, name := filepath.Split(cfg.FFMPEGPath)
	probe := "ffprobe"
	if strings.EqualFold(filepath.Ext(name), ".exe") {
		probe += ".exe"
	}
	return filepath.Join(dir, probe)
}

// probeVideo runs ffprobe on input and returns the first video stream's size.
func probeVideo(ctx context.Context, bin, input string) (Size, error) {
	args := ffmpeg.ConvertKwargsToCmdLineArgs(ffmpeg.KwArgs{
		"v":            "error",
		"show_streams": "",
		"of":           "json",
	})
	cmd := exec.CommandContext(ctx, bin, append(args, input)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Size{}, fmt.Errorf("%s: %w: %s", bin, err, strings.TrimSpace(stderr.String()))
	}
	return ProbeSize(string(out))
}

func (l *FileLoader) loadVideo(ctx context.Context, src Source, limit Size) (Resource, error) {
	var input string
	var handle *ObjectURL
	if f, ok := src.File(); ok {
		var err error
		handle, err = NewObjectURL(l.cfg.TempDir, f)
		if err != nil {
			return nil, loadError(src, err)
		}
		input = handle.Path()
	} else {
		input = videoPath(src.url)
	}

	fail := func(err error) (Resource, error) {
		if handle != nil {
			handle.Revoke()
		}
		return nil, loadError(src, err)
	}

	native, err := probeVideo(ctx, ffprobeBinary(l.cfg), input)
	if err != nil {
		return fail(fmt.Errorf("probe: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	inputArgs, outputArgs, decoded := l.decodeArgs(native, limit)
	if decoded != native {
		l.log.Printf("Video %s: decoding at %dx%d (native %dx%d)", src, decoded.Width, decoded.Height, native.Width, native.Height)
	}

	pipeReader, pipeWriter := io.Pipe()
	stream := ffmpeg.Input(input, inputArgs).Output("pipe:", outputArgs).WithOutput(pipeWriter)
	if l.cfg.FFMPEGPath != "" {
		stream = stream.SetFfmpegPath(l.cfg.FFMPEGPath)
	}

	v := &VideoResource{
		size:       native,
		frameSize:  decoded,
		cmd:        stream.Compile(),
		pipeR:      pipeReader,
		handle:     handle,
		stepped:    l.stepFPS > 0,
		frames:     make(chan *image.RGBA, 1),
		stop:       make(chan struct{}),
		ready:      make(chan struct{}),
		readerDone: make(chan struct{}),
		exited:     make(chan struct{}),
	}
	if err := v.cmd.Start(); err != nil {
		pipeWriter.Close()
		return fail(fmt.Errorf("failed to start ffmpeg: %w", err))
	}

	go func() {
		v.waitErr = v.cmd.Wait()
		if v.waitErr != nil {
			pipeWriter.CloseWithError(v.waitErr)
		} else {
			pipeWriter.Close()
		}
		close(v.exited)
	}()
	go v.readFrames()

	select {
	case <-v.ready:
		return v, nil
	case <-v.readerDone:
		v.Close()
		<-v.exited
		err := v.waitErr
		if err == nil {
			err = errors.New("video produced no frames")
		}
		return nil, loadError(src, fmt.Errorf("playback: %w", err))
	case <-ctx.Done():
		v.Close()
		return nil, loadError(src, ctx.Err())
	}
}

// decodeArgs returns the ffmpeg arguments for a looping rawvideo decode and
// the decoded frame size.
func (l *FileLoader) decodeArgs(native, limit Size) (inputArgs, outputArgs ffmpeg.KwArgs, decoded Size) {
	decoded = native
	inputArgs = ffmpeg.KwArgs{"stream_loop": "-1"}
	outputArgs = ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgba",
		"an":      "",
	}
	var filters []string
	if l.stepFPS > 0 {
		// Resample to the render rate; the reader is paced by Frame calls.
		filters = append(filters, fmt.Sprintf("fps=%d", l.stepFPS))
	} else {
		inputArgs["re"] = ""
	}
	if l.scale {
		if fit, ok := native.Fit(limit, l.tol); ok {
			decoded = fit
			filters = append(filters, fmt.Sprintf("scale=%d:%d", fit.Width, fit.Height))
		}
	}
	if len(filters) > 0 {
		outputArgs["vf"] = strings.Join(filters, ",")
	}
	return inputArgs, outputArgs, decoded
}

// readFrames consumes raw RGBA frames until the pipe closes.
func (v *VideoResource) readFrames() {
	defer close(v.readerDone)
	if v.stepped {
		v.queueFrames()
		return
	}
	w, h := v.frameSize.Width, v.frameSize.Height
	back := image.NewRGBA(image.Rect(0, 0, w, h))
	first := true
	for {
		if _, err := io.ReadFull(v.pipeR, back.Pix); err != nil {
			return
		}
		v.mu.Lock()
		if v.front == nil {
			v.front = image.NewRGBA(back.Rect)
		}
		v.front, back = back, v.front
		v.seq++
		v.mu.Unlock()
		if first {
			first = false
			close(v.ready)
		}
	}
}

// queueFrames hands every decoded frame to Frame in order. The pipe stalls
// ffmpeg while the queue is full.
func (v *VideoResource) queueFrames() {
	rect := image.Rect(0, 0, v.frameSize.Width, v.frameSize.Height)
	for first := true; ; first = false {
		img := image.NewRGBA(rect)
		if _, err := io.ReadFull(v.pipeR, img.Pix); err != nil {
			return
		}
		select {
		case v.frames <- img:
		case <-v.stop:
			return
		}
		if first {
			close(v.ready)
		}
	}
}

func (v *VideoResource) Kind() Kind { return KindVideo }
func (v *VideoResource) Size() Size { return v.size }

// Frame returns a copy of the newest frame. The returned image stays valid
// until the next call. In stepped mode it waits for the next decoded frame.
func (v *VideoResource) Frame() (*image.RGBA, uint64) {
	if v.stepped {
		return v.nextFrame()
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.front == nil {
		return nil, 0
	}
	if v.outSeq != v.seq {
		if v.out == nil {
			v.out = image.NewRGBA(v.front.Rect)
		}
		copy(v.out.Pix, v.front.Pix)
		v.outSeq = v.seq
	}
	return v.out, v.outSeq
}

func (v *VideoResource) nextFrame() (*image.RGBA, uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	select {
	case img := <-v.frames:
		v.out = img
		v.outSeq++
	case <-v.readerDone:
	}
	return v.out, v.outSeq
}

// Close stops the decoder, detaches the pipe and revokes the object URL.
func (v *VideoResource) Close() error {
	v.closeOnce.Do(func() {
		close(v.stop)
		if v.cmd.Process != nil {
			v.cmd.Process.Kill()
		}
		v.pipeR.Close()
		<-v.exited
		<-v.readerDone
		if v.handle != nil {
			v.closeErr = v.handle.Revoke()
		}
	})
	return v.closeErr
}
