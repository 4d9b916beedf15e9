package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/taigrr/podium/internal/config"
	"github.com/taigrr/podium/internal/viewer"
)

// snapshotTimeout bounds how long a snapshot waits for its model.
const snapshotTimeout = time.Minute

func newSnapshotCmd(f *flags) *cobra.Command {
	var (
		out           string
		width, height int
	)
	cmd := &cobra.Command{
		Use:   "snapshot <model.glb|model.gltf|url>",
		Short: "Render one framed frame to a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			cfg.Display.Width, cfg.Display.Height = width, height
			return runSnapshot(cmd.Context(), cfg, args[0], out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "podium.png", "PNG file to write")
	cmd.Flags().IntVar(&width, "width", 640, "Image width in pixels")
	cmd.Flags().IntVar(&height, "height", 480, "Image height in pixels")
	return cmd
}

// runSnapshot loads source without a host, renders one frame once it is in
// place and writes it to out.
func runSnapshot(ctx context.Context, cfg config.Config, source, out string) error {
	cfg.Display.Mode = config.DisplayWindow // logs go to stderr
	cfg.Confetti.Count = 0
	cfg.Controls.AutoRotate = false
	cfg.Controls.Damping = false
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	c, err := viewer.New(cfg, viewer.WithLogger(logger))
	if err != nil {
		return err
	}
	defer c.Shutdown()
	if err := c.Start(ctx, source); err != nil {
		return err
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for c.Lifecycle().State() == viewer.StateLoading {
		select {
		case <-ctx.Done():
			return fmt.Errorf("snapshot %s: %w", source, ctx.Err())
		case now := <-ticker.C:
			c.Frame(now)
		}
	}
	if c.Lifecycle().State() == viewer.StateFailed {
		return fmt.Errorf("snapshot %s: %w", source, c.Lifecycle().Err())
	}
	c.Frame(time.Now())

	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := c.Framebuffer().EncodePNG(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	logger.Info("wrote snapshot", "file", out, "width", cfg.Display.Width, "height", cfg.Display.Height)
	return nil
}
