package render

import (
	"image/color"
	"math"

	"github.com/taigrr/podium/pkg/math3d"
)

// MeshRenderer is the geometry a Rasterizer draws. Faces are clockwise when
// seen from the front.
type MeshRenderer interface {
	VertexCount() int
	TriangleCount() int
	GetVertex(i int) (pos, normal math3d.Vec3, uv math3d.Vec2)
	GetFace(i int) [3]int
}

// BoundedMeshRenderer extends MeshRenderer with bounding box support for frustum culling.
type BoundedMeshRenderer interface {
	MeshRenderer
	GetBounds() (min, max math3d.Vec3)
}

// MaterialMeshRenderer extends MeshRenderer with per-face material indices
// into the surfaces passed to DrawMesh.
type MaterialMeshRenderer interface {
	MeshRenderer
	GetFaceMaterial(i int) int
}

// CullingStats tracks frustum culling per frame.
type CullingStats struct {
	MeshesTested int
	MeshesCulled int
	MeshesDrawn  int
}

// Rasterizer draws lit triangles into a Framebuffer with a z-buffer.
type Rasterizer struct {
	camera     *Camera
	fb         *Framebuffer
	zbuffer    []float64
	shadowMask []bool
	frustum    Frustum

	CullingStats           CullingStats
	DisableBackfaceCulling bool // render both sides of every triangle
	DisableFrustumCulling  bool

	// Per-mesh scratch space, reused across draws.
	worldPos []math3d.Vec3
	worldNrm []math3d.Vec3
	clipPos  []math3d.Vec4
}

// NewRasterizer creates a rasterizer drawing into fb from camera.
func NewRasterizer(camera *Camera, fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{camera: camera, fb: fb}
	r.Resize()
	return r
}

// Resize matches the depth and shadow buffers to the framebuffer size.
func (r *Rasterizer) Resize() {
	n := r.Width() * r.Height()
	r.zbuffer = make([]float64, n)
	r.shadowMask = make([]bool, n)
	r.ClearDepth()
}

// Width returns the framebuffer width.
func (r *Rasterizer) Width() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Width
}

// Height returns the framebuffer height.
func (r *Rasterizer) Height() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Height
}

// BeginFrame clears color, depth and shadow buffers, resets the culling
// stats and snapshots the camera frustum.
func (r *Rasterizer) BeginFrame(background color.RGBA) {
	if r.fb != nil {
		r.fb.Clear(background)
	}
	r.ClearDepth()
	clear(r.shadowMask)
	r.CullingStats = CullingStats{}
	r.frustum = r.camera.Frustum()
}

// ClearDepth clears the Z-buffer.
func (r *Rasterizer) ClearDepth() {
	// Use copy-doubling for faster clearing
	n := len(r.zbuffer)
	if n == 0 {
		return
	}
	r.zbuffer[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.zbuffer[i:], r.zbuffer[:i])
	}
}

// ResolveShadows darkens every pixel marked by a Shadow surface since the
// last resolve, once, then clears the mask.
func (r *Rasterizer) ResolveShadows(c color.RGBA, opacity float64) {
	for i, marked := range r.shadowMask {
		if marked {
			r.fb.Pixels[i] = blend(r.fb.Pixels[i], c, opacity)
			r.shadowMask[i] = false
		}
	}
}

// culled runs the frustum test for meshes that expose bounds.
func (r *Rasterizer) culled(mesh MeshRenderer, transform math3d.Mat4) bool {
	if r.DisableFrustumCulling {
		return false
	}
	bounded, ok := mesh.(BoundedMeshRenderer)
	if !ok {
		return false
	}

	r.CullingStats.MeshesTested++
	lo, hi := bounded.GetBounds()
	if !r.frustum.IntersectAABB(AABB{Min: lo, Max: hi}.Transform(transform)) {
		r.CullingStats.MeshesCulled++
		return true
	}
	r.CullingStats.MeshesDrawn++
	return false
}

// DrawMesh draws mesh under transform. Faces pick their surface through
// MaterialMeshRenderer; out-of-range indices and plain meshes use
// surfaces[0], or DefaultSurface when surfaces is empty. It reports whether
// the mesh survived frustum culling.
func (r *Rasterizer) DrawMesh(mesh MeshRenderer, transform math3d.Mat4, surfaces []Surface, lights *Lighting) bool {
	if r.fb == nil || r.culled(mesh, transform) {
		return false
	}

	fallback := DefaultSurface()
	if len(surfaces) > 0 {
		fallback = surfaces[0]
	}
	materials, _ := mesh.(MaterialMeshRenderer)

	viewProj := r.camera.ViewProjectionMatrix()
	normalMat := transform.NormalMatrix()
	eye := r.camera.Position

	n := mesh.VertexCount()
	r.worldPos = r.worldPos[:0]
	r.worldNrm = r.worldNrm[:0]
	r.clipPos = r.clipPos[:0]
	for i := range n {
		p, nrm, _ := mesh.GetVertex(i)
		wp := transform.MulVec3(p)
		r.worldPos = append(r.worldPos, wp)
		r.worldNrm = append(r.worldNrm, normalMat.MulVec3Dir(nrm).Normalize())
		r.clipPos = append(r.clipPos, viewProj.MulVec4(math3d.V4FromV3(wp, 1)))
	}

	var poly [4]clipVertex
	for fi := range mesh.TriangleCount() {
		face := mesh.GetFace(fi)

		s := &fallback
		if materials != nil {
			if m := materials.GetFaceMaterial(fi); m >= 0 && m < len(surfaces) {
				s = &surfaces[m]
			}
		}

		p0, p1, p2 := r.worldPos[face[0]], r.worldPos[face[1]], r.worldPos[face[2]]
		// Clockwise faces: e2 × e1 is the outward normal.
		outward := p2.Sub(p0).Cross(p1.Sub(p0))
		front := outward.Dot(eye.Sub(p0)) > 0
		if !front && !s.DoubleSided && !s.Shadow && !r.DisableBackfaceCulling {
			continue
		}

		var tri [3]clipVertex
		for k, vi := range face {
			_, _, uv := mesh.GetVertex(vi)
			tri[k] = clipVertex{Pos: r.clipPos[vi], World: r.worldPos[vi], UV: uv}
			if s.Shadow {
				continue
			}
			nrm := r.worldNrm[vi]
			if nrm.LenSq() == 0 {
				nrm = outward.Normalize()
			}
			if !front {
				nrm = nrm.Negate()
			}
			view := eye.Sub(r.worldPos[vi]).Normalize()
			tri[k].Diffuse, tri[k].Specular = lights.Shade(nrm, view, s)
		}

		verts := clipNear(tri, poly[:0])
		for k := 1; k+1 < len(verts); k++ {
			r.rasterize([3]clipVertex{verts[0], verts[k], verts[k+1]}, s, lights)
		}
	}
	return true
}

// clipVertex carries the attributes interpolated across a triangle.
type clipVertex struct {
	Pos      math3d.Vec4 // clip space
	World    math3d.Vec3
	UV       math3d.Vec2
	Diffuse  math3d.Vec3
	Specular math3d.Vec3
}

func (a clipVertex) lerp(b clipVertex, t float64) clipVertex {
	return clipVertex{
		Pos:      a.Pos.Lerp(b.Pos, t),
		World:    a.World.Lerp(b.World, t),
		UV:       a.UV.Add(b.UV.Sub(a.UV).Scale(t)),
		Diffuse:  a.Diffuse.Lerp(b.Diffuse, t),
		Specular: a.Specular.Lerp(b.Specular, t),
	}
}

// clipNear clips a triangle against the near plane (z = -w) and appends the
// resulting polygon, zero to four vertices, to out.
func clipNear(tri [3]clipVertex, out []clipVertex) []clipVertex {
	dist := func(v clipVertex) float64 { return v.Pos.Z + v.Pos.W }
	for i := range 3 {
		a, b := tri[i], tri[(i+1)%3]
		da, db := dist(a), dist(b)
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			out = append(out, a.lerp(b, da/(da-db)))
		}
	}
	return out
}

// screenVertex holds a vertex transformed to screen space.
type screenVertex struct {
	X, Y float64 // Screen coordinates
	Z    float64 // NDC depth for the Z-buffer
	InvW float64 // 1/w for perspective-correct interpolation
}

// rasterize fills one clipped triangle using incremental edge functions.
func (r *Rasterizer) rasterize(v [3]clipVertex, s *Surface, lights *Lighting) {
	width, height := r.Width(), r.Height()

	var sv [3]screenVertex
	for i := range 3 {
		w := v[i].Pos.W
		if w <= 0 {
			return
		}
		ndc := v[i].Pos.PerspectiveDivide()
		sv[i] = screenVertex{
			X:    (ndc.X + 1) * 0.5 * float64(width),
			Y:    (1 - ndc.Y) * 0.5 * float64(height), // Y flipped
			Z:    ndc.Z,
			InvW: 1 / w,
		}
	}

	// Twice the signed area. Back faces that reach here are drawn.
	area := (sv[1].X-sv[0].X)*(sv[2].Y-sv[0].Y) - (sv[1].Y-sv[0].Y)*(sv[2].X-sv[0].X)
	if area == 0 {
		return
	}
	invArea := 1 / area

	minX := max(0, int(math.Floor(min(sv[0].X, sv[1].X, sv[2].X))))
	maxX := min(width-1, int(math.Ceil(max(sv[0].X, sv[1].X, sv[2].X))))
	minY := max(0, int(math.Floor(min(sv[0].Y, sv[1].Y, sv[2].Y))))
	maxY := min(height-1, int(math.Ceil(max(sv[0].Y, sv[1].Y, sv[2].Y))))
	if minX > maxX || minY > maxY {
		return
	}

	// Edge 0: v1 -> v2, Edge 1: v2 -> v0, Edge 2: v0 -> v1
	a0, b0, c0 := edgeCoeffs(sv[1].X, sv[1].Y, sv[2].X, sv[2].Y)
	a1, b1, c1 := edgeCoeffs(sv[2].X, sv[2].Y, sv[0].X, sv[0].Y)
	a2, b2, c2 := edgeCoeffs(sv[0].X, sv[0].Y, sv[1].X, sv[1].Y)

	px := float64(minX) + 0.5
	py := float64(minY) + 0.5
	e0Row := a0*px + b0*py + c0
	e1Row := a1*px + b1*py + c1
	e2Row := a2*px + b2*py + c2

	opacity := s.Opacity
	radiusSq := s.ClipRadius * s.ClipRadius

	for y := minY; y <= maxY; y++ {
		e0, e1, e2 := e0Row, e1Row, e2Row
		rowOffset := y * width

		for x := minX; x <= maxX; x++ {
			bc0, bc1, bc2 := e0*invArea, e1*invArea, e2*invArea
			e0 += a0
			e1 += a1
			e2 += a2
			if bc0 < 0 || bc1 < 0 || bc2 < 0 {
				continue
			}

			z := bc0*sv[0].Z + bc1*sv[1].Z + bc2*sv[2].Z
			idx := rowOffset + x
			if z > 1 || z >= r.zbuffer[idx] {
				continue
			}

			// Perspective-correct weights
			w0, w1, w2 := bc0*sv[0].InvW, bc1*sv[1].InvW, bc2*sv[2].InvW
			sum := w0 + w1 + w2
			if sum == 0 {
				continue
			}
			w0, w1, w2 = w0/sum, w1/sum, w2/sum

			if radiusSq > 0 {
				wx := w0*v[0].World.X + w1*v[1].World.X + w2*v[2].World.X
				wz := w0*v[0].World.Z + w1*v[1].World.Z + w2*v[2].World.Z
				if wx*wx+wz*wz > radiusSq {
					continue
				}
			}

			if s.Shadow {
				r.shadowMask[idx] = true
				continue
			}

			base := s.BaseColor
			if s.Texture != nil {
				u := w0*v[0].UV.X + w1*v[1].UV.X + w2*v[2].UV.X
				t := w0*v[0].UV.Y + w1*v[1].UV.Y + w2*v[2].UV.Y
				base = base.Mul(linearTexel(s.Texture.Sample(u, t)))
			}
			diffuse := v[0].Diffuse.Scale(w0).Add(v[1].Diffuse.Scale(w1)).Add(v[2].Diffuse.Scale(w2))
			specular := v[0].Specular.Scale(w0).Add(v[1].Specular.Scale(w1)).Add(v[2].Specular.Scale(w2))

			f0 := math3d.V3(0.04, 0.04, 0.04).Lerp(base, s.Metallic)
			radiance := base.Scale(1 - s.Metallic).Mul(diffuse).Add(f0.Mul(specular))
			c := lights.Finish(radiance, 1/sum)

			r.zbuffer[idx] = z
			if opacity > 0 && opacity < 1 {
				r.fb.Pixels[idx] = blend(r.fb.Pixels[idx], c, opacity)
			} else {
				r.fb.Pixels[idx] = c
			}
		}

		e0Row += b0
		e1Row += b1
		e2Row += b2
	}
}

// edgeCoeffs returns A, B, C for the edge function A*x + B*y + C of the
// directed edge (x0, y0) -> (x1, y1).
func edgeCoeffs(x0, y0, x1, y1 float64) (a, b, c float64) {
	return y0 - y1, x1 - x0, x0*y1 - x1*y0
}
