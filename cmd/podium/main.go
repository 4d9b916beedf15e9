// podium - 3D model viewer
// Shows one glTF/GLB model on a lit stage, in the terminal or a window.
//
// Controls:
//
//	Mouse drag    - Orbit (left), pan (right or middle)
//	Scroll        - Zoom in/out
//	Arrow keys    - Orbit
//	A             - Toggle auto-rotate
//	M             - Toggle orbit controls (the model follows the pointer when off)
//	+/-           - Zoom
//	R             - Reset view
//	?             - Toggle stats
//	Q/Esc         - Quit
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/taigrr/podium/internal/config"
	"github.com/taigrr/podium/internal/display"
	"github.com/taigrr/podium/internal/display/window"
	"github.com/taigrr/podium/internal/viewer"
)

var version = "dev"

// flags override the config file.
type flags struct {
	config  string
	display string
	fps     int
	fov     float64
	fill    float64
	logFile string
	debug   bool
}

func main() {
	if err := fang.Execute(context.Background(), newRootCmd(&flags{}),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(f *flags) *cobra.Command {
	root := &cobra.Command{
		Use:   "podium <model.glb|model.gltf|url>",
		Short: "3D model viewer",
		Long: `podium - 3D model viewer

Loads one glTF or GLB model from a path or an http(s) URL, frames it on a
lit stage and celebrates its arrival.

Controls:
  Mouse drag  - Orbit (left), pan (right or middle)
  Scroll      - Zoom in/out
  Arrows      - Orbit
  A           - Toggle auto-rotate
  M           - Toggle orbit controls
  +/-         - Zoom
  R           - Reset view
  ?           - Toggle stats
  Q/Esc       - Quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, args[0])
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", "", "YAML config file")
	pf.BoolVar(&f.debug, "debug", false, "Log at debug level")
	pf.StringVar(&f.logFile, "log", "", "Log file (terminal mode logs nowhere without one)")

	fl := root.Flags()
	fl.StringVarP(&f.display, "display", "d", "", "Host: terminal or window")
	fl.IntVar(&f.fps, "fps", 0, "Target FPS")
	fl.Float64Var(&f.fov, "fov", 0, "Vertical field of view in degrees")
	fl.Float64Var(&f.fill, "fill", 0, "Fill ratio used to frame the model")

	root.AddCommand(newInfoCmd(), newSnapshotCmd(f))
	return root
}

// load reads the config file, if any, and applies the flags that were set.
func (f *flags) load(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		loaded, err := config.Load(f.config)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	cfg = cfg.Clone()

	changed := cmd.Flags().Changed
	if changed("display") {
		cfg.Display.Mode = f.display
	}
	if changed("fps") {
		cfg.Display.FPS = f.fps
	}
	if changed("fov") {
		cfg.Camera.FOV = f.fov
	}
	if changed("fill") {
		cfg.Framing.FillRatio = f.fill
	}
	if changed("log") {
		cfg.Log.File = f.logFile
	}
	if f.debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger writes to the configured file. Without one it writes to stderr,
// unless the terminal host owns the screen, where it discards.
func newLogger(cfg config.Config) (logger *log.Logger, closeFn func() error, err error) {
	var w io.Writer = os.Stderr
	closeFn = func() error { return nil }
	switch {
	case cfg.Log.File != "":
		file, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closeFn = file, file.Close
	case cfg.Display.Mode == config.DisplayTerminal:
		w = io.Discard
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	logger = log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "podium",
	})
	return logger, closeFn, nil
}

func newHost(cfg config.Config, logger *log.Logger) display.Host {
	opts := display.Options{
		FPS:    cfg.Display.FPS,
		Width:  cfg.Display.Width,
		Height: cfg.Display.Height,
		Title:  "podium",
		Logger: logger,
	}
	if cfg.Display.Mode == config.DisplayWindow {
		return window.New(opts)
	}
	return display.NewTerminal(opts)
}

func run(ctx context.Context, cfg config.Config, source string) error {
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	host := newHost(cfg, logger)
	c, err := viewer.New(cfg,
		viewer.WithLogger(logger),
		viewer.WithMetrics(host.Metrics()),
	)
	if err != nil {
		return err
	}
	if err := c.Start(ctx, source); err != nil {
		return err
	}
	logger.Debug("starting host", "mode", cfg.Display.Mode, "fps", cfg.Display.FPS)
	return c.Run(ctx, host)
}
