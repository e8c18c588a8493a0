package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/richinsley/gowarp/glfwcontext"
	"github.com/richinsley/gowarp/graphics"
	"github.com/richinsley/gowarp/headless"
	"github.com/richinsley/gowarp/media"
	"github.com/richinsley/gowarp/options"
	"github.com/richinsley/gowarp/reactive"
	"github.com/richinsley/gowarp/renderer"
	"github.com/richinsley/gowarp/widget"
)

func init() {
	runtime.LockOSThread()
}

const keyHelp = `Keys:
  Q/W  flow -/+      A/S  lens -/+      Z/X  pinch -/+
  E/R  scale -/+     D/F  motion -/+    Left/Right  previous/next media
  T    autopilot     Backspace  reset   Esc  quit
  Drop image or video files onto the window to add them.`

func main() {
	var configPath = flag.String("config", "gowarp.yaml", "Path to a yaml config file")
	var mediaList = flag.String("media", "", "Comma-separated media URLs or paths")
	var help = flag.Bool("help", false, "Show help message")
	var headlessFlag = flag.Bool("headless", false, "Record into an EGL pbuffer without a window (Linux)")

	// Overrides of config values.
	var width = flag.Int("width", 0, "Window or output width")
	var height = flag.Int("height", 0, "Window or output height")
	var aspect = flag.String("aspect", "", "Aspect mode: cover or letterbox")
	var update = flag.String("update", "", "Parameter update mode: smooth or snap")
	var color = flag.String("color", "", "Color pipeline: linear or passthrough")
	var ffmpegPath = flag.String("ffmpeg", "", "Path to ffmpeg executable")
	var autopilot = flag.Bool("autopilot", false, "Start with the autopilot animating the effect")
	var reactiveMode = flag.Bool("reactive", false, "Modulate flow with microphone input")

	// Recording flags
	var record = flag.Bool("record", false, "Render offline to a video file")
	var duration = flag.Float64("duration", 0, "Duration to record in seconds")
	var fps = flag.Int("fps", 0, "Frames per second for recording")
	var outputFile = flag.String("output", "", "Output file name for recording")
	var codec = flag.String("codec", "", "Recording codec: h264 or hevc")

	var saveConfig = flag.String("save-config", "", "Write the effective config to this path and exit")

	flag.Parse()

	if *help {
		fmt.Println("gowarp: image and video distortion viewer/recorder")
		flag.PrintDefaults()
		fmt.Println(keyHelp)
		return
	}

	cfg, err := options.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "media":
			cfg.Effect.Sources = splitList(*mediaList)
		case "width":
			cfg.Window.Width = *width
		case "height":
			cfg.Window.Height = *height
		case "aspect":
			cfg.Engine.AspectMode = *aspect
		case "update":
			cfg.Engine.UpdateMode = *update
		case "color":
			cfg.Engine.ColorPipeline = *color
		case "ffmpeg":
			cfg.Media.FFMPEGPath = *ffmpegPath
		case "autopilot":
			cfg.Effect.Autopilot = *autopilot
		case "reactive":
			cfg.Audio.Reactive = *reactiveMode
		case "record":
			cfg.Record.Enabled = *record
		case "duration":
			cfg.Record.Duration = *duration
		case "fps":
			cfg.Record.FPS = *fps
		case "output":
			cfg.Record.Output = *outputFile
		case "codec":
			cfg.Record.Codec = *codec
		case "headless":
			cfg.Record.Headless = *headlessFlag
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *saveConfig != "" {
		if err := cfg.Save(*saveConfig); err != nil {
			log.Fatalf("Error saving config: %v", err)
		}
		log.Printf("Configuration written to %s", *saveConfig)
		return
	}

	if len(cfg.Effect.Sources) == 0 {
		log.Println("Warning: no media given, drop files onto the window or use -media.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("gowarp failed: %v", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(ctx context.Context, cfg *options.Options) error {
	var surface graphics.Context
	var window *glfwcontext.Context
	if cfg.Record.Enabled && cfg.Record.Headless {
		pb, err := headless.New(cfg.Window.Width, cfg.Window.Height)
		if err != nil {
			return fmt.Errorf("failed to create headless surface: %w", err)
		}
		surface = pb
	} else {
		if err := glfwcontext.InitGraphics(); err != nil {
			return fmt.Errorf("failed to initialize graphics: %w", err)
		}
		defer glfwcontext.TerminateGraphics()

		var err error
		window, err = glfwcontext.New(cfg.Window, !cfg.Record.Enabled)
		if err != nil {
			return fmt.Errorf("failed to create window: %w", err)
		}
		surface = window
	}

	logger := log.Default()
	var engine *renderer.Engine
	w := widget.New(func(s graphics.Context) (widget.Engine, error) {
		e, err := renderer.NewEngine(s, cfg, logger)
		if err != nil {
			return nil, err
		}
		engine = e
		return e, nil
	}, logger)

	sources := make([]media.Source, 0, len(cfg.Effect.Sources))
	for _, s := range cfg.Effect.Sources {
		sources = append(sources, media.URL(s))
	}
	panel := widget.NewPanel(renderer.EffectParameters{
		Flow:        cfg.Effect.Flow,
		Lens:        cfg.Effect.Lens,
		Pinch:       cfg.Effect.Pinch,
		Scale:       cfg.Effect.Scale,
		MotionSpeed: cfg.Effect.MotionSpeed,
	}, sources)
	if err := w.Update(panel.Params()); err != nil {
		surface.Shutdown()
		return fmt.Errorf("invalid effect settings: %w", err)
	}

	if err := w.Mount(surface); err != nil {
		surface.Shutdown()
		return err
	}
	defer w.Unmount()

	if cfg.Record.Enabled {
		return engine.Record(ctx, renderer.RecordOptions{
			Width:      cfg.Window.Width,
			Height:     cfg.Window.Height,
			Duration:   cfg.Record.Duration,
			FPS:        cfg.Record.FPS,
			Output:     cfg.Record.Output,
			Codec:      cfg.Record.Codec,
			FFMPEGPath: cfg.Media.FFMPEGPath,
		})
	}

	panel.OnChange = func(p renderer.EffectParameters) {
		log.Printf("flow=%.2f lens=%.2f pinch=%.2f scale=%.2f motion=%.3f media=%s",
			p.Flow, p.Lens, p.Pinch, p.Scale, p.MotionSpeed, p.Source)
	}

	var pilot *widget.Autopilot
	if cfg.Effect.Autopilot {
		pilot = widget.NewAutopilot(nil, 4, nil)
	}
	bindKeys(window, panel, func() {
		if pilot == nil {
			log.Println("Autopilot on")
			pilot = widget.NewAutopilot(nil, 4, nil)
		} else {
			log.Println("Autopilot off")
			// Hand the current pose to the panel so the plane does not jump.
			pose := pilot.Current()
			panel.Set(widget.Flow, pose.Flow)
			panel.Set(widget.Lens, pose.Lens)
			panel.Set(widget.Pinch, pose.Pinch)
			pilot = nil
		}
	})
	window.OnDrop(func(paths []string) {
		for _, p := range paths {
			panel.Add(dropSource(p))
		}
	})

	var analyzer *reactive.Analyzer
	modulator := reactive.Modulator{Gain: cfg.Audio.Gain, MaxFlow: widget.Ranges[widget.Flow].Max}
	if cfg.Audio.Reactive {
		device := openAudio(cfg.Audio.SampleRate)
		defer device.Stop()
		audioChan, err := device.Start()
		if err != nil {
			log.Printf("Could not start audio device: %v. Continuing without reactivity.", err)
		} else {
			analyzer = reactive.NewAnalyzer(device.SampleRate())
			go analyzer.Listen(audioChan)
		}
	}

	log.Println(keyHelp)
	log.Println("Starting interactive render loop...")
	last := surface.Time()
	for !surface.ShouldClose() && ctx.Err() == nil {
		now := surface.Time()
		dt := now - last
		last = now

		params := panel.Params()
		if pilot != nil {
			pose := pilot.Update(float32(dt))
			params.Flow, params.Lens, params.Pinch = pose.Flow, pose.Lens, pose.Pinch
		}
		if analyzer != nil {
			params = modulator.Apply(params, analyzer.Levels())
		}
		if err := w.Update(params); err != nil {
			log.Printf("Parameters rejected: %v", err)
		}

		if err := engine.Frame(); err != nil {
			return err
		}
		surface.EndFrame()
	}
	return nil
}

func bindKeys(surface *glfwcontext.Context, panel *widget.Panel, toggleAutopilot func()) {
	nudge := func(c widget.Control, steps int) func() {
		return func() { panel.Nudge(c, steps) }
	}
	surface.RegisterKeyCallback(glfw.KeyQ, nudge(widget.Flow, -1))
	surface.RegisterKeyCallback(glfw.KeyW, nudge(widget.Flow, 1))
	surface.RegisterKeyCallback(glfw.KeyA, nudge(widget.Lens, -1))
	surface.RegisterKeyCallback(glfw.KeyS, nudge(widget.Lens, 1))
	surface.RegisterKeyCallback(glfw.KeyZ, nudge(widget.Pinch, -1))
	surface.RegisterKeyCallback(glfw.KeyX, nudge(widget.Pinch, 1))
	surface.RegisterKeyCallback(glfw.KeyE, nudge(widget.Scale, -1))
	surface.RegisterKeyCallback(glfw.KeyR, nudge(widget.Scale, 1))
	surface.RegisterKeyCallback(glfw.KeyD, nudge(widget.MotionSpeed, -1))
	surface.RegisterKeyCallback(glfw.KeyF, nudge(widget.MotionSpeed, 1))
	surface.RegisterKeyCallback(glfw.KeyRight, panel.Next)
	surface.RegisterKeyCallback(glfw.KeyLeft, panel.Prev)
	surface.RegisterKeyCallback(glfw.KeyBackspace, panel.Reset)
	surface.RegisterKeyCallback(glfw.KeyT, toggleAutopilot)
}

// dropSource reads a dropped file into memory so it is loaded the same way
// as a picked file handle. Unreadable files fall back to a path source.
func dropSource(path string) media.Source {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Could not read dropped file %s: %v", path, err)
		return media.URL(path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	f := &media.FileHandle{Name: filepath.Base(path), Type: mime.TypeByExtension(ext), Data: data}
	// Content sniffing misses some containers, e.g. QuickTime.
	if f.Type == "" && media.Classify(media.URL(path)) == media.KindVideo {
		f.Type = "video/" + strings.TrimPrefix(ext, ".")
	}
	return media.File(f)
}

func openAudio(sampleRate int) reactive.Device {
	mic, err := reactive.NewMicrophone(sampleRate)
	if err != nil {
		log.Printf("Could not initialize microphone: %v. Using silent fallback.", err)
		return reactive.NewNullDevice(sampleRate)
	}
	log.Println("Initialized microphone input.")
	return mic
}
