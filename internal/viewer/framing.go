package viewer

import (
	"errors"
	"math"

	"github.com/taigrr/podium/pkg/math3d"
)

var (
	// ErrDegenerateGeometry is returned by Fit for an empty or zero-size box.
	ErrDegenerateGeometry = errors.New("degenerate geometry: bounding box has no extent")
	// ErrInvalidFieldOfView is returned by Fit when the field of view cannot
	// frame anything.
	ErrInvalidFieldOfView = errors.New("invalid field of view")
)

// FitDistance returns the camera distance at which an object of the given
// size fills fillRatio of a vertical field of view of fovDeg degrees.
// It performs no validation; see Fit.
func FitDistance(size math3d.Vec3, fovDeg, fillRatio float64) float64 {
	maxDim := size.MaxComponent()
	fov := fovDeg * math.Pi / 180
	return math.Abs(maxDim / math.Sin(fov/2) * fillRatio)
}

// Fit is FitDistance with the degenerate cases turned into errors. Callers
// keep their current distance when it fails.
func Fit(size math3d.Vec3, fovDeg, fillRatio float64) (float64, error) {
	maxDim := size.MaxComponent()
	if !(maxDim > 0) || math.IsInf(maxDim, 0) {
		return 0, ErrDegenerateGeometry
	}
	if !(fovDeg > 0 && fovDeg < 180) {
		return 0, ErrInvalidFieldOfView
	}
	d := FitDistance(size, fovDeg, fillRatio)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, ErrInvalidFieldOfView
	}
	return d, nil
}
