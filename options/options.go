package options

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Options is the full configuration of a gowarp host.
type Options struct {
	Window Window `yaml:"window"`
	Engine Engine `yaml:"engine"`
	Media  Media  `yaml:"media"`
	Effect Effect `yaml:"effect"`
	Record Record `yaml:"record"`
	Audio  Audio  `yaml:"audio"`
}

// Window describes the mount surface created by the host.
type Window struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
	VSync  bool   `yaml:"vsync"`
}

// Engine holds the render engine settings.
type Engine struct {
	AspectMode     string  `yaml:"aspect_mode"`    // cover, letterbox
	UpdateMode     string  `yaml:"update_mode"`    // smooth, snap
	ColorPipeline  string  `yaml:"color_pipeline"` // linear, passthrough
	GridSegments   int     `yaml:"grid_segments"`
	FOV            float32 `yaml:"fov"` // vertical, degrees
	CameraDistance float32 `yaml:"camera_distance"`
	Near           float32 `yaml:"near"`
	Far            float32 `yaml:"far"`
	// Downscale enables the off-screen resize of media larger than the surface.
	Downscale          bool    `yaml:"downscale"`
	DownscaleTolerance float64 `yaml:"downscale_tolerance"`
}

// Media configures the loader.
type Media struct {
	FFMPEGPath  string        `yaml:"ffmpeg_path"`
	FFProbePath string        `yaml:"ffprobe_path"` // empty: next to ffmpeg_path, else PATH
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	TempDir     string        `yaml:"temp_dir"`
}

// Effect is the initial parameter bundle.
type Effect struct {
	Sources     []string `yaml:"sources"`
	Flow        float64  `yaml:"flow"`
	Lens        float64  `yaml:"lens"`
	Pinch       float64  `yaml:"pinch"`
	Scale       float64  `yaml:"scale"`
	MotionSpeed float64  `yaml:"motion_speed"`
	Autopilot   bool     `yaml:"autopilot"`
}

// Record configures offline rendering to a video file.
type Record struct {
	Enabled  bool    `yaml:"enabled"`
	Duration float64 `yaml:"duration"`
	FPS      int     `yaml:"fps"`
	Output   string  `yaml:"output"`
	Codec    string  `yaml:"codec"` // h264, hevc
	// Headless renders into an EGL pbuffer instead of a hidden window.
	Headless bool `yaml:"headless"`
}

// Audio configures microphone reactivity.
type Audio struct {
	Reactive   bool    `yaml:"reactive"`
	SampleRate int     `yaml:"sample_rate"`
	Gain       float64 `yaml:"gain"`
}

// Default returns the built-in configuration.
func Default() *Options {
	return &Options{
		Window: Window{
			Width:  1280,
			Height: 720,
			Title:  "gowarp",
			VSync:  true,
		},
		Engine: Engine{
			AspectMode:         "cover",
			UpdateMode:         "smooth",
			ColorPipeline:      "linear",
			GridSegments:       64,
			FOV:                45,
			CameraDistance:     1,
			Near:               0.01,
			Far:                100,
			Downscale:          true,
			DownscaleTolerance: 0.01,
		},
		Media: Media{
			HTTPTimeout: 30 * time.Second,
		},
		Effect: Effect{
			Flow:        0.1,
			Lens:        0,
			Pinch:       0,
			Scale:       1,
			MotionSpeed: 0.075,
		},
		Record: Record{
			Duration: 10,
			FPS:      60,
			Output:   "output.mp4",
			Codec:    "h264",
		},
		Audio: Audio{
			SampleRate: 44100,
			Gain:       0.3,
		},
	}
}

// Load reads a yaml configuration on top of the defaults. A missing file is
// not an error.
func Load(path string) (*Options, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as yaml.
func (o *Options) Save(path string) error {
	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks ranges that would otherwise surface as GL errors.
func (o *Options) Validate() error {
	if o.Window.Width <= 0 || o.Window.Height <= 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", o.Window.Width, o.Window.Height)
	}
	if o.Engine.GridSegments < 1 {
		return fmt.Errorf("grid_segments must be at least 1, got %d", o.Engine.GridSegments)
	}
	if o.Engine.FOV <= 0 || o.Engine.FOV >= 180 {
		return fmt.Errorf("fov must be within (0, 180), got %v", o.Engine.FOV)
	}
	if o.Engine.CameraDistance <= 0 {
		return fmt.Errorf("camera_distance must be positive, got %v", o.Engine.CameraDistance)
	}
	if o.Record.Enabled && o.Record.FPS <= 0 {
		return fmt.Errorf("record fps must be positive, got %d", o.Record.FPS)
	}
	return nil
}
