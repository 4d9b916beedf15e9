package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/taigrr/podium/pkg/models"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <model.glb|model.gltf>",
		Short: "Display model information",
		Long:  "Display detailed information about a glTF model including node, mesh, material and animation counts and its bounding box.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.OutOrStdout(), args[0])
		},
	}
}

func runInfo(w io.Writer, modelPath string) error {
	info, err := os.Stat(modelPath)
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	scene, err := models.LoadScene(modelPath)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	scene.UpdateWorld()

	ext := strings.ToUpper(strings.TrimPrefix(filepath.Ext(modelPath), "."))
	fmt.Fprintf(w, "File:       %s\n", models.DisplayName(filepath.ToSlash(modelPath)))
	fmt.Fprintf(w, "Format:     %s\n", ext)
	fmt.Fprintf(w, "Size:       %.2f KB\n", float64(info.Size())/1024)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Vertices:   %d\n", scene.VertexCount())
	fmt.Fprintf(w, "Triangles:  %d\n", scene.TriangleCount())
	fmt.Fprintf(w, "Nodes:      %d\n", len(scene.Nodes))
	fmt.Fprintf(w, "Meshes:     %d\n", len(scene.Meshes))
	fmt.Fprintf(w, "Materials:  %d\n", len(scene.Materials))
	for _, clip := range scene.Animations {
		fmt.Fprintf(w, "Clip:       %s (%.2fs)\n", clip.Name, clip.Duration)
	}

	box, ok := scene.Bounds()
	if !ok {
		return nil
	}
	size, center := box.Size(), box.Center()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Bounds Min: (%.3f, %.3f, %.3f)\n", box.Min.X, box.Min.Y, box.Min.Z)
	fmt.Fprintf(w, "Bounds Max: (%.3f, %.3f, %.3f)\n", box.Max.X, box.Max.Y, box.Max.Z)
	fmt.Fprintf(w, "Dimensions: %.3f x %.3f x %.3f\n", size.X, size.Y, size.Z)
	fmt.Fprintf(w, "Center:     (%.3f, %.3f, %.3f)\n", center.X, center.Y, center.Z)
	return nil
}
