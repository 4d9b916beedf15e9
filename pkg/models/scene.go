package models

import (
	"strings"

	"github.com/taigrr/podium/pkg/math3d"
)

// Node is one entry of the scene graph.
type Node struct {
	Name     string
	Parent   *Node
	Children []*Node
	Mesh     *Mesh // nil for transform-only nodes

	// Local transform. Animation writes these.
	Translation math3d.Vec3
	Rotation    math3d.Quat
	Scale       math3d.Vec3

	// Matrix, when set, replaces the TRS fields. glTF never animates such nodes.
	Matrix *math3d.Mat4

	// World is refreshed by Scene.UpdateWorld.
	World math3d.Mat4

	CastShadow    bool
	ReceiveShadow bool
}

// NewNode returns a node with an identity transform.
func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Rotation: math3d.QuatIdentity(),
		Scale:    math3d.One3(),
		World:    math3d.Identity(),
	}
}

// AddChild parents c under n.
func (n *Node) AddChild(c *Node) {
	c.Parent = n
	n.Children = append(n.Children, c)
}

// Local returns the node's transform relative to its parent.
func (n *Node) Local() math3d.Mat4 {
	if n.Matrix != nil {
		return *n.Matrix
	}
	return math3d.FromTRS(n.Translation, n.Rotation, n.Scale)
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max math3d.Vec3
}

// Center returns the midpoint of the box.
func (b Box) Center() math3d.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the box dimensions.
func (b Box) Size() math3d.Vec3 {
	return b.Max.Sub(b.Min)
}

// Scene is a decoded asset plus the transform that places it in the world.
type Scene struct {
	Name   string
	Source string // path or URL the asset came from

	Nodes      []*Node
	Roots      []*Node
	Meshes     []*Mesh
	Materials  []Material
	Animations []*Clip

	// Subject transform applied above the roots. Rotation is Euler XYZ in radians.
	Position math3d.Vec3
	Rotation math3d.Vec3
	Scale    math3d.Vec3
}

// NewScene returns an empty scene with an identity subject transform.
func NewScene(source string) *Scene {
	return &Scene{
		Name:   DisplayName(source),
		Source: source,
		Scale:  math3d.One3(),
	}
}

// DisplayName returns the final '/'-separated segment of a source path or URL.
func DisplayName(source string) string {
	return source[strings.LastIndex(source, "/")+1:]
}

// Matrix returns the subject transform.
func (s *Scene) Matrix() math3d.Mat4 {
	return math3d.Translate(s.Position).
		Mul(math3d.EulerXYZ(s.Rotation)).
		Mul(math3d.Scale(s.Scale))
}

// Traverse visits every node depth-first, parents before children.
// Returning false from fn skips that node's children.
func (s *Scene) Traverse(fn func(*Node) bool) {
	var walk func(*Node)
	walk = func(n *Node) {
		if !fn(n) {
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, r := range s.Roots {
		walk(r)
	}
}

// MeshNodes returns every reachable node that carries a mesh.
func (s *Scene) MeshNodes() []*Node {
	var out []*Node
	s.Traverse(func(n *Node) bool {
		if n.Mesh != nil {
			out = append(out, n)
		}
		return true
	})
	return out
}

// UpdateWorld recomputes World for every reachable node.
func (s *Scene) UpdateWorld() {
	root := s.Matrix()
	var walk func(*Node, math3d.Mat4)
	walk = func(n *Node, parent math3d.Mat4) {
		n.World = parent.Mul(n.Local())
		for _, c := range n.Children {
			walk(c, n.World)
		}
	}
	for _, r := range s.Roots {
		walk(r, root)
	}
}

// Bounds returns the world-space box around every mesh vertex. It refreshes
// world matrices first and is never cached. ok is false when the scene has
// no vertices.
func (s *Scene) Bounds() (box Box, ok bool) {
	s.UpdateWorld()
	for _, n := range s.MeshNodes() {
		for _, v := range n.Mesh.Vertices {
			p := n.World.MulVec3(v.Position)
			if !ok {
				box = Box{Min: p, Max: p}
				ok = true
				continue
			}
			box.Min = box.Min.Min(p)
			box.Max = box.Max.Max(p)
		}
	}
	return box, ok
}

// TriangleCount sums triangles over reachable mesh nodes.
func (s *Scene) TriangleCount() int {
	total := 0
	for _, n := range s.MeshNodes() {
		total += n.Mesh.TriangleCount()
	}
	return total
}

// VertexCount sums vertices over reachable mesh nodes.
func (s *Scene) VertexCount() int {
	total := 0
	for _, n := range s.MeshNodes() {
		total += n.Mesh.VertexCount()
	}
	return total
}

// Material returns the material at index i, or nil.
func (s *Scene) Material(i int) *Material {
	if i < 0 || i >= len(s.Materials) {
		return nil
	}
	return &s.Materials[i]
}
