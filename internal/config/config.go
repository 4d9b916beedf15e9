// Package config loads podium settings from YAML. Every field has a default,
// so a missing file or an empty section leaves the built-in look intact.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jinzhu/copier"
	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Display modes.
const (
	DisplayTerminal = "terminal"
	DisplayWindow   = "window"
)

// Light kinds.
const (
	LightAmbient     = "ambient"
	LightDirectional = "directional"
	LightHemisphere  = "hemisphere"
)

// Config is the full viewer configuration.
type Config struct {
	Display  Display  `yaml:"display"`
	Camera   Camera   `yaml:"camera"`
	Framing  Framing  `yaml:"framing"`
	Controls Controls `yaml:"controls"`
	Confetti Confetti `yaml:"confetti"`
	Stage    Stage    `yaml:"stage"`
	Log      Log      `yaml:"log"`
}

// Display selects the host and its frame rate.
type Display struct {
	Mode string `yaml:"mode"`
	FPS  int    `yaml:"fps"`

	// Window size in pixels, window mode only.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Camera configures the perspective projection.
type Camera struct {
	FOV      float64 `yaml:"fov"` // vertical, degrees
	Near     float64 `yaml:"near"`
	Far      float64 `yaml:"far"`
	Distance float64 `yaml:"distance"` // before a model is framed
}

// Framing controls auto-fit after load.
type Framing struct {
	FillRatio float64 `yaml:"fill_ratio"`
}

// Controls configures the orbit controls.
type Controls struct {
	Damping          bool    `yaml:"damping"`
	DampingFrequency float64 `yaml:"damping_frequency"`
	MinDistance      float64 `yaml:"min_distance"`
	MaxDistance      float64 `yaml:"max_distance"`
	Pan              bool    `yaml:"pan"`
	AutoRotate       bool    `yaml:"auto_rotate"`
	AutoRotateSpeed  float64 `yaml:"auto_rotate_speed"`
	RotateSpeed      float64 `yaml:"rotate_speed"`
}

// Confetti configures the burst fired when a model finishes loading.
type Confetti struct {
	Count    int           `yaml:"count"`
	Duration time.Duration `yaml:"duration"`
	MaxDelay time.Duration `yaml:"max_delay"`
	Fall     time.Duration `yaml:"fall"` // time for one piece to cross the viewport
}

// Stage is the scene dressing around the model.
type Stage struct {
	Background  string  `yaml:"background"`
	Exposure    float64 `yaml:"exposure"`
	ToneMapping bool    `yaml:"tone_mapping"`
	Fog         Fog     `yaml:"fog"`
	Floor       Floor   `yaml:"floor"`
	Shadow      Shadow  `yaml:"shadow"`
	Lights      []Light `yaml:"lights"`

	// EnvBoost multiplies EnvMapIntensity of every material on load.
	EnvBoost float64 `yaml:"env_boost"`
}

// Fog is exponential-squared distance fog.
type Fog struct {
	Color   string  `yaml:"color"`
	Density float64 `yaml:"density"`
}

// Floor is the disc the model stands over.
type Floor struct {
	Enabled   bool    `yaml:"enabled"`
	Radius    float64 `yaml:"radius"`
	Segments  int     `yaml:"segments"`
	Y         float64 `yaml:"y"`
	Color     string  `yaml:"color"`
	Opacity   float64 `yaml:"opacity"`
	Roughness float64 `yaml:"roughness"`
	Metalness float64 `yaml:"metalness"`
}

// Shadow configures planar shadows on the floor.
type Shadow struct {
	Enabled bool    `yaml:"enabled"`
	Color   string  `yaml:"color"`
	Opacity float64 `yaml:"opacity"`
}

// Light is one light of the rig.
type Light struct {
	Name       string     `yaml:"name"`
	Kind       string     `yaml:"kind"`
	Color      string     `yaml:"color"`
	Ground     string     `yaml:"ground,omitempty"` // hemisphere only
	Intensity  float64    `yaml:"intensity"`
	Position   [3]float64 `yaml:"position"`
	CastShadow bool       `yaml:"cast_shadow"`
}

// Log configures the logger.
type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // empty logs to stderr, or discards under a full-screen host
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Display: Display{
			Mode:   DisplayTerminal,
			FPS:    60,
			Width:  960,
			Height: 640,
		},
		Camera: Camera{
			FOV:      60,
			Near:     0.1,
			Far:      1000,
			Distance: 5,
		},
		Framing: Framing{FillRatio: 0.6},
		Controls: Controls{
			Damping:          true,
			DampingFrequency: 4.0,
			MinDistance:      3,
			MaxDistance:      100,
			Pan:              true,
			AutoRotate:       true,
			AutoRotateSpeed:  0.5,
			RotateSpeed:      1,
		},
		Confetti: Confetti{
			Count:    100,
			Duration: 5 * time.Second,
			MaxDelay: 3 * time.Second,
			Fall:     3 * time.Second,
		},
		Stage: Stage{
			Background:  "#0a0a1a",
			Exposure:    1.2,
			ToneMapping: true,
			EnvBoost:    1.5,
			Fog:         Fog{Color: "#0a0a1a", Density: 0.02},
			Floor: Floor{
				Enabled:   true,
				Radius:    20,
				Segments:  32,
				Y:         -2,
				Color:     "#333344",
				Opacity:   0.6,
				Roughness: 0.8,
				Metalness: 0.2,
			},
			Shadow: Shadow{Enabled: true, Color: "#000000", Opacity: 0.5},
			Lights: []Light{
				{Name: "hemisphere", Kind: LightHemisphere, Color: "#ffffff", Ground: "#444444", Intensity: 1, Position: [3]float64{0, 20, 0}},
				{Name: "main", Kind: LightDirectional, Color: "#ffffff", Intensity: 3, Position: [3]float64{10, 10, 10}, CastShadow: true},
				{Name: "fill", Kind: LightDirectional, Color: "#8888ff", Intensity: 2, Position: [3]float64{-10, 0, -10}},
				{Name: "rim", Kind: LightDirectional, Color: "#ff8888", Intensity: 2, Position: [3]float64{0, 5, -10}},
				{Name: "ambient", Kind: LightAmbient, Color: "#404040", Intensity: 2},
			},
		},
		Log: Log{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML from r over the defaults. An empty document yields the
// defaults unchanged.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// Encode writes c as YAML.
func (c Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// Clone returns a deep copy, so flag overrides never reach a shared value.
func (c Config) Clone() Config {
	var out Config
	if err := copier.CopyWithOption(&out, &c, copier.Option{DeepCopy: true}); err != nil {
		// Config holds only plain values and slices of them.
		panic(fmt.Sprintf("clone config: %v", err))
	}
	return out
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Display.Mode {
	case DisplayTerminal, DisplayWindow:
	default:
		fail("display.mode: unknown mode %q", c.Display.Mode)
	}
	if c.Display.FPS <= 0 {
		fail("display.fps: must be positive, got %d", c.Display.FPS)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		fail("display: window size must be positive, got %dx%d", c.Display.Width, c.Display.Height)
	}

	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		fail("camera.fov: must be in (0, 180) degrees, got %v", c.Camera.FOV)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		fail("camera: need 0 < near < far, got near=%v far=%v", c.Camera.Near, c.Camera.Far)
	}
	if c.Camera.Distance <= 0 {
		fail("camera.distance: must be positive, got %v", c.Camera.Distance)
	}

	if c.Framing.FillRatio <= 0 {
		fail("framing.fill_ratio: must be positive, got %v", c.Framing.FillRatio)
	}

	ctl := c.Controls
	if ctl.MinDistance <= 0 || ctl.MaxDistance < ctl.MinDistance {
		fail("controls: need 0 < min_distance <= max_distance, got %v and %v", ctl.MinDistance, ctl.MaxDistance)
	}
	if ctl.Damping && ctl.DampingFrequency <= 0 {
		fail("controls.damping_frequency: must be positive, got %v", ctl.DampingFrequency)
	}

	if c.Confetti.Count < 0 {
		fail("confetti.count: must not be negative, got %d", c.Confetti.Count)
	}
	if c.Confetti.Duration < 0 || c.Confetti.MaxDelay < 0 || c.Confetti.Fall < 0 {
		fail("confetti: durations must not be negative")
	}

	errs = append(errs, c.Stage.validate()...)

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		fail("log.level: %w", err)
	}
	return errors.Join(errs...)
}

func (s Stage) validate() []error {
	var errs []error
	color := func(field, v string) {
		if _, err := ParseColor(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	color("stage.background", s.Background)
	color("stage.fog.color", s.Fog.Color)
	if s.Fog.Density < 0 {
		errs = append(errs, fmt.Errorf("stage.fog.density: must not be negative, got %v", s.Fog.Density))
	}
	if s.Exposure < 0 {
		errs = append(errs, fmt.Errorf("stage.exposure: must not be negative, got %v", s.Exposure))
	}

	if s.Floor.Enabled {
		color("stage.floor.color", s.Floor.Color)
		if s.Floor.Radius <= 0 || s.Floor.Segments < 3 {
			errs = append(errs, fmt.Errorf("stage.floor: need radius > 0 and at least 3 segments"))
		}
		if s.Floor.Opacity < 0 || s.Floor.Opacity > 1 {
			errs = append(errs, fmt.Errorf("stage.floor.opacity: must be in [0, 1], got %v", s.Floor.Opacity))
		}
	}
	if s.Shadow.Enabled {
		color("stage.shadow.color", s.Shadow.Color)
		if s.Shadow.Opacity < 0 || s.Shadow.Opacity > 1 {
			errs = append(errs, fmt.Errorf("stage.shadow.opacity: must be in [0, 1], got %v", s.Shadow.Opacity))
		}
	}

	for i, l := range s.Lights {
		field := fmt.Sprintf("stage.lights[%d]", i)
		switch l.Kind {
		case LightHemisphere:
			color(field+".ground", l.Ground)
		case LightAmbient, LightDirectional:
		default:
			errs = append(errs, fmt.Errorf("%s.kind: unknown kind %q", field, l.Kind))
		}
		color(field+".color", l.Color)
		if l.Intensity < 0 {
			errs = append(errs, fmt.Errorf("%s.intensity: must not be negative, got %v", field, l.Intensity))
		}
		if l.Kind == LightDirectional && l.Position == [3]float64{} {
			errs = append(errs, fmt.Errorf("%s.position: directional light needs a non-zero position", field))
		}
	}
	return errs
}

// ParseColor parses "#rrggbb" or "#rgb" into a display-space color.
func ParseColor(s string) (colorful.Color, error) {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid color: %w", err)
	}
	return c, nil
}

// MustColor is ParseColor for values that already passed Validate. Invalid
// input yields black.
func MustColor(s string) colorful.Color {
	c, err := ParseColor(s)
	if err != nil {
		return colorful.Color{}
	}
	return c
}
