package models

import (
	"slices"

	"github.com/taigrr/podium/pkg/math3d"
)

// Path names the node property a track drives.
type Path int

const (
	PathTranslation Path = iota
	PathRotation
	PathScale
)

// String returns the glTF name of the path.
func (p Path) String() string {
	switch p {
	case PathTranslation:
		return "translation"
	case PathRotation:
		return "rotation"
	case PathScale:
		return "scale"
	default:
		return "unknown"
	}
}

// Components returns the value width for the path: 4 for rotation, 3 otherwise.
func (p Path) Components() int {
	if p == PathRotation {
		return 4
	}
	return 3
}

// Interpolation selects how a track blends between keyframes.
type Interpolation int

const (
	InterpolationLinear Interpolation = iota
	InterpolationStep
	InterpolationCubicSpline
)

// Track animates one property of one node.
//
// Values is flattened. Linear and step tracks store Components() floats per
// key. Cubic spline tracks store in-tangent, value, out-tangent per key, so
// three times as many.
type Track struct {
	Node          *Node
	Path          Path
	Interpolation Interpolation
	Times         []float64
	Values        []float64
}

// Clip is a named set of tracks played together.
type Clip struct {
	Name     string
	Tracks   []Track
	Duration float64
}

// NewClip builds a clip whose duration is the last keyframe of any track.
func NewClip(name string, tracks []Track) *Clip {
	c := &Clip{Name: name, Tracks: tracks}
	for _, t := range tracks {
		if n := len(t.Times); n > 0 && t.Times[n-1] > c.Duration {
			c.Duration = t.Times[n-1]
		}
	}
	return c
}

// value returns the keyframe value at index i.
func (t *Track) value(i int) []float64 {
	n := t.Path.Components()
	if t.Interpolation == InterpolationCubicSpline {
		off := (3*i + 1) * n
		return t.Values[off : off+n]
	}
	return t.Values[i*n : (i+1)*n]
}

// tangent returns the in (which=0) or out (which=2) tangent at index i.
func (t *Track) tangent(i, which int) []float64 {
	n := t.Path.Components()
	off := (3*i + which) * n
	return t.Values[off : off+n]
}

// Sample evaluates the track at time at, clamping outside the keyframe range.
// The result has Path.Components() entries.
func (t *Track) Sample(at float64) []float64 {
	n := t.Path.Components()
	out := make([]float64, n)
	keys := len(t.Times)
	switch {
	case keys == 0:
		return nil
	case keys == 1 || at <= t.Times[0]:
		copy(out, t.value(0))
		return out
	case at >= t.Times[keys-1]:
		copy(out, t.value(keys-1))
		return out
	}

	// First key strictly after at; the bracket is [i-1, i].
	i, found := slices.BinarySearch(t.Times, at)
	if found {
		copy(out, t.value(i))
		return out
	}
	prev := i - 1
	dt := t.Times[i] - t.Times[prev]
	s := (at - t.Times[prev]) / dt

	switch t.Interpolation {
	case InterpolationStep:
		copy(out, t.value(prev))
	case InterpolationCubicSpline:
		p0, p1 := t.value(prev), t.value(i)
		m0, m1 := t.tangent(prev, 2), t.tangent(i, 0)
		s2, s3 := s*s, s*s*s
		h00 := 2*s3 - 3*s2 + 1
		h10 := s3 - 2*s2 + s
		h01 := -2*s3 + 3*s2
		h11 := s3 - s2
		for k := range n {
			out[k] = h00*p0[k] + h10*dt*m0[k] + h01*p1[k] + h11*dt*m1[k]
		}
		if t.Path == PathRotation {
			q := math3d.Quat{X: out[0], Y: out[1], Z: out[2], W: out[3]}.Normalize()
			out[0], out[1], out[2], out[3] = q.X, q.Y, q.Z, q.W
		}
	default:
		a, b := t.value(prev), t.value(i)
		if t.Path == PathRotation {
			qa := math3d.Quat{X: a[0], Y: a[1], Z: a[2], W: a[3]}
			qb := math3d.Quat{X: b[0], Y: b[1], Z: b[2], W: b[3]}
			q := qa.Slerp(qb, s)
			out[0], out[1], out[2], out[3] = q.X, q.Y, q.Z, q.W
			break
		}
		for k := range n {
			out[k] = a[k] + (b[k]-a[k])*s
		}
	}
	return out
}

// Apply samples the track at time at and writes the result to its node.
func (t *Track) Apply(at float64) {
	if t.Node == nil {
		return
	}
	v := t.Sample(at)
	if v == nil {
		return
	}
	switch t.Path {
	case PathTranslation:
		t.Node.Translation = math3d.V3(v[0], v[1], v[2])
	case PathRotation:
		t.Node.Rotation = math3d.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}
	case PathScale:
		t.Node.Scale = math3d.V3(v[0], v[1], v[2])
	}
}
