package models

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"io/fs"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/taigrr/podium/pkg/math3d"
)

// ErrNoGeometry is returned when an asset decodes but holds no triangles.
var ErrNoGeometry = errors.New("asset has no triangle geometry")

// LoadScene opens a .gltf or .glb file. Relative buffers and images resolve
// against the file's directory.
func LoadScene(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	return DecodeScene(f, path, os.DirFS(filepath.Dir(path)))
}

// DecodeScene reads a glTF or GLB stream. source is recorded on the scene and
// used for its display name. fsys resolves external buffers and images; it
// may be nil when the asset is self-contained.
func DecodeScene(r io.Reader, source string, fsys fs.FS) (*Scene, error) {
	var dec *gltf.Decoder
	if fsys != nil {
		dec = gltf.NewDecoderFS(r, fsys)
	} else {
		dec = gltf.NewDecoder(r)
	}

	doc := new(gltf.Document)
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("decode gltf: %w", err)
	}

	b := &sceneBuilder{doc: doc, fsys: fsys, images: make(map[int]image.Image)}
	scene, err := b.build(source)
	if err != nil {
		return nil, err
	}
	if scene.TriangleCount() == 0 {
		return nil, ErrNoGeometry
	}
	return scene, nil
}

// sceneBuilder converts a decoded document into a Scene.
type sceneBuilder struct {
	doc    *gltf.Document
	fsys   fs.FS
	images map[int]image.Image
}

func (b *sceneBuilder) build(source string) (*Scene, error) {
	scene := NewScene(source)

	for i, m := range b.doc.Materials {
		scene.Materials = append(scene.Materials, b.material(i, m))
	}

	for _, m := range b.doc.Meshes {
		mesh, err := b.mesh(m)
		if err != nil {
			return nil, fmt.Errorf("process mesh %q: %w", m.Name, err)
		}
		scene.Meshes = append(scene.Meshes, mesh)
	}

	// Faces that name no material share one default appended at the end.
	defaultIdx := -1
	for _, mesh := range scene.Meshes {
		for i := range mesh.Faces {
			if mesh.Faces[i].Material >= 0 {
				continue
			}
			if defaultIdx < 0 {
				defaultIdx = len(scene.Materials)
				scene.Materials = append(scene.Materials, DefaultMaterial())
			}
			mesh.Faces[i].Material = defaultIdx
		}
	}

	scene.Nodes = make([]*Node, len(b.doc.Nodes))
	for i, n := range b.doc.Nodes {
		scene.Nodes[i] = b.node(i, n, scene.Meshes)
	}
	for i, n := range b.doc.Nodes {
		for _, c := range n.Children {
			if c < 0 || c >= len(scene.Nodes) {
				return nil, fmt.Errorf("node %d: child index %d out of range", i, c)
			}
			scene.Nodes[i].AddChild(scene.Nodes[c])
		}
	}
	scene.Roots = b.roots(scene.Nodes)

	clips, err := b.animations(scene.Nodes)
	if err != nil {
		return nil, err
	}
	scene.Animations = clips

	for _, mesh := range scene.Meshes {
		if !mesh.HasNormals() {
			mesh.CalculateSmoothNormals()
		}
		mesh.CalculateBounds()
	}
	scene.UpdateWorld()
	return scene, nil
}

// roots returns the default scene's root nodes, or every parentless node
// when the document declares no scenes.
func (b *sceneBuilder) roots(nodes []*Node) []*Node {
	if len(b.doc.Scenes) > 0 {
		idx := 0
		if b.doc.Scene != nil && *b.doc.Scene < len(b.doc.Scenes) {
			idx = *b.doc.Scene
		}
		var out []*Node
		for _, n := range b.doc.Scenes[idx].Nodes {
			if n >= 0 && n < len(nodes) {
				out = append(out, nodes[n])
			}
		}
		return out
	}
	var out []*Node
	for _, n := range nodes {
		if n.Parent == nil {
			out = append(out, n)
		}
	}
	return out
}

func (b *sceneBuilder) node(i int, n *gltf.Node, meshes []*Mesh) *Node {
	name := n.Name
	if name == "" {
		name = fmt.Sprintf("node%d", i)
	}
	node := NewNode(name)

	if n.Mesh != nil && *n.Mesh < len(meshes) {
		node.Mesh = meshes[*n.Mesh]
	}

	if m := n.MatrixOrDefault(); m != identityMatrix() {
		local := math3d.Mat4(m)
		node.Matrix = &local
		return node
	}

	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	node.Translation = math3d.V3(t[0], t[1], t[2])
	node.Rotation = math3d.Quat{X: r[0], Y: r[1], Z: r[2], W: r[3]}
	node.Scale = math3d.V3(s[0], s[1], s[2])
	return node
}

func identityMatrix() [16]float64 {
	return [16]float64(math3d.Identity())
}

func (b *sceneBuilder) material(i int, m *gltf.Material) Material {
	mat := DefaultMaterial()
	mat.Name = m.Name
	if mat.Name == "" {
		mat.Name = fmt.Sprintf("material%d", i)
	}
	mat.DoubleSided = m.DoubleSided

	pbr := m.PBRMetallicRoughness
	if pbr == nil {
		return mat
	}
	if pbr.BaseColorFactor != nil {
		mat.BaseColor = *pbr.BaseColorFactor
	}
	if pbr.MetallicFactor != nil {
		mat.Metallic = *pbr.MetallicFactor
	}
	if pbr.RoughnessFactor != nil {
		mat.Roughness = *pbr.RoughnessFactor
	}
	if pbr.BaseColorTexture != nil {
		// A broken texture falls back to the flat base color.
		if img, err := b.texture(pbr.BaseColorTexture.Index); err == nil {
			mat.BaseMap = img
			mat.Sampler = b.sampler(pbr.BaseColorTexture.Index)
		}
	}
	return mat
}

// texture resolves a texture index to its decoded source image.
func (b *sceneBuilder) texture(idx int) (image.Image, error) {
	if idx < 0 || idx >= len(b.doc.Textures) {
		return nil, fmt.Errorf("texture %d out of range", idx)
	}
	src := b.doc.Textures[idx].Source
	if src == nil || *src >= len(b.doc.Images) {
		return nil, fmt.Errorf("texture %d has no image", idx)
	}
	if img, ok := b.images[*src]; ok {
		return img, nil
	}

	data, err := b.imageData(b.doc.Images[*src])
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %d: %w", *src, err)
	}
	b.images[*src] = img
	return img, nil
}

// sampler returns the sampling setting of a texture that resolved.
func (b *sceneBuilder) sampler(idx int) Sampler {
	si := b.doc.Textures[idx].Sampler
	if si == nil || *si < 0 || *si >= len(b.doc.Samplers) {
		return Sampler{}
	}
	s := b.doc.Samplers[*si]
	return Sampler{
		WrapS:   wrapMode(s.WrapS),
		WrapT:   wrapMode(s.WrapT),
		Nearest: s.MagFilter == gltf.MagNearest,
	}
}

func wrapMode(m gltf.WrappingMode) Wrap {
	switch m {
	case gltf.WrapClampToEdge:
		return WrapClamp
	case gltf.WrapMirroredRepeat:
		return WrapMirror
	default:
		return WrapRepeat
	}
}

// imageData returns the encoded bytes of an image from a buffer view, a data
// URI or a file next to the asset.
func (b *sceneBuilder) imageData(img *gltf.Image) ([]byte, error) {
	if img.BufferView != nil {
		return b.bufferView(*img.BufferView)
	}
	if img.URI == "" {
		return nil, errors.New("image has no source")
	}
	if strings.HasPrefix(img.URI, "data:") {
		_, payload, ok := strings.Cut(img.URI, ";base64,")
		if !ok {
			return nil, errors.New("image data URI is not base64")
		}
		return base64.StdEncoding.DecodeString(payload)
	}
	if b.fsys == nil {
		return nil, fmt.Errorf("external image %q needs a file system", img.URI)
	}
	name, err := url.PathUnescape(img.URI)
	if err != nil {
		name = img.URI
	}
	return fs.ReadFile(b.fsys, name)
}

func (b *sceneBuilder) bufferView(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(b.doc.BufferViews) {
		return nil, fmt.Errorf("buffer view %d out of range", idx)
	}
	bv := b.doc.BufferViews[idx]
	if bv.Buffer < 0 || bv.Buffer >= len(b.doc.Buffers) {
		return nil, fmt.Errorf("buffer %d out of range", bv.Buffer)
	}
	data := b.doc.Buffers[bv.Buffer].Data
	end := bv.ByteOffset + bv.ByteLength
	if data == nil || end > len(data) {
		return nil, fmt.Errorf("buffer view %d exceeds buffer data", idx)
	}
	return data[bv.ByteOffset:end], nil
}

func (b *sceneBuilder) mesh(m *gltf.Mesh) (*Mesh, error) {
	mesh := NewMesh(m.Name)

	for _, prim := range m.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
			// Skip non-triangle primitives (lines, points, etc)
			continue
		}

		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		positions, comps, err := b.readFloats(posIdx)
		if err != nil {
			return nil, fmt.Errorf("read positions: %w", err)
		}
		if comps != 3 {
			return nil, fmt.Errorf("positions have %d components, want 3", comps)
		}
		count := len(positions) / 3

		var normals []float64
		if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
			if normals, _, err = b.readFloats(idx); err != nil {
				return nil, fmt.Errorf("read normals: %w", err)
			}
		}
		var uvs []float64
		if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
			if uvs, _, err = b.readFloats(idx); err != nil {
				return nil, fmt.Errorf("read uvs: %w", err)
			}
		}

		base := len(mesh.Vertices)
		for i := range count {
			v := MeshVertex{Position: math3d.V3(positions[3*i], positions[3*i+1], positions[3*i+2])}
			if 3*i+2 < len(normals) {
				v.Normal = math3d.V3(normals[3*i], normals[3*i+1], normals[3*i+2])
			}
			if 2*i+1 < len(uvs) {
				// glTF puts V=0 at the top; the sampler expects bottom-left.
				v.UV = math3d.V2(uvs[2*i], 1-uvs[2*i+1])
			}
			mesh.Vertices = append(mesh.Vertices, v)
		}

		material := -1
		if prim.Material != nil {
			material = *prim.Material
		}

		var indices []int
		if prim.Indices != nil {
			if indices, err = b.readIndices(*prim.Indices); err != nil {
				return nil, fmt.Errorf("read indices: %w", err)
			}
		} else {
			indices = make([]int, count)
			for i := range indices {
				indices[i] = i
			}
		}

		// glTF front faces are counter-clockwise; store them clockwise.
		for i := 0; i+2 < len(indices); i += 3 {
			a, bb, c := indices[i], indices[i+1], indices[i+2]
			if a >= count || bb >= count || c >= count {
				return nil, fmt.Errorf("index out of range at triangle %d", i/3)
			}
			mesh.Faces = append(mesh.Faces, Face{
				V:        [3]int{base + a, base + c, base + bb},
				Material: material,
			})
		}
	}
	return mesh, nil
}

// accessorLayout returns the component count and byte size of an accessor.
func accessorLayout(a *gltf.Accessor) (comps, size int, err error) {
	switch a.Type {
	case gltf.AccessorScalar:
		comps = 1
	case gltf.AccessorVec2:
		comps = 2
	case gltf.AccessorVec3:
		comps = 3
	case gltf.AccessorVec4:
		comps = 4
	default:
		return 0, 0, fmt.Errorf("unsupported accessor type %v", a.Type)
	}
	switch a.ComponentType {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		size = 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		size = 2
	case gltf.ComponentUint, gltf.ComponentFloat:
		size = 4
	default:
		return 0, 0, fmt.Errorf("unsupported component type %v", a.ComponentType)
	}
	return comps, size, nil
}

// accessorBytes returns the backing bytes, element stride and layout.
func (b *sceneBuilder) accessorBytes(idx int) (data []byte, stride, comps, size int, a *gltf.Accessor, err error) {
	if idx < 0 || idx >= len(b.doc.Accessors) {
		return nil, 0, 0, 0, nil, fmt.Errorf("accessor %d out of range", idx)
	}
	a = b.doc.Accessors[idx]
	if a.BufferView == nil {
		return nil, 0, 0, 0, nil, fmt.Errorf("accessor %d has no buffer view", idx)
	}
	if comps, size, err = accessorLayout(a); err != nil {
		return nil, 0, 0, 0, nil, err
	}
	if data, err = b.bufferView(*a.BufferView); err != nil {
		return nil, 0, 0, 0, nil, err
	}
	stride = b.doc.BufferViews[*a.BufferView].ByteStride
	if stride == 0 {
		stride = comps * size
	}
	if a.Count > 0 && a.ByteOffset+(a.Count-1)*stride+comps*size > len(data) {
		return nil, 0, 0, 0, nil, fmt.Errorf("accessor %d exceeds its buffer view", idx)
	}
	return data[a.ByteOffset:], stride, comps, size, a, nil
}

// readFloats reads any accessor as flattened float64 values, applying
// normalization for integer components.
func (b *sceneBuilder) readFloats(idx int) ([]float64, int, error) {
	data, stride, comps, size, a, err := b.accessorBytes(idx)
	if err != nil {
		return nil, 0, err
	}
	out := make([]float64, 0, a.Count*comps)
	for i := range a.Count {
		for c := range comps {
			p := data[i*stride+c*size:]
			out = append(out, readComponent(p, a.ComponentType, a.Normalized))
		}
	}
	return out, comps, nil
}

func readComponent(p []byte, ct gltf.ComponentType, normalized bool) float64 {
	le := binary.LittleEndian
	switch ct {
	case gltf.ComponentFloat:
		return float64(math.Float32frombits(le.Uint32(p)))
	case gltf.ComponentUbyte:
		if normalized {
			return float64(p[0]) / 255
		}
		return float64(p[0])
	case gltf.ComponentByte:
		if normalized {
			return math.Max(float64(int8(p[0]))/127, -1)
		}
		return float64(int8(p[0]))
	case gltf.ComponentUshort:
		if normalized {
			return float64(le.Uint16(p)) / 65535
		}
		return float64(le.Uint16(p))
	case gltf.ComponentShort:
		if normalized {
			return math.Max(float64(int16(le.Uint16(p)))/32767, -1)
		}
		return float64(int16(le.Uint16(p)))
	case gltf.ComponentUint:
		return float64(le.Uint32(p))
	}
	return 0
}

// readIndices reads a scalar unsigned accessor as vertex indices.
func (b *sceneBuilder) readIndices(idx int) ([]int, error) {
	data, stride, comps, _, a, err := b.accessorBytes(idx)
	if err != nil {
		return nil, err
	}
	if comps != 1 {
		return nil, fmt.Errorf("index accessor has %d components", comps)
	}
	le := binary.LittleEndian
	out := make([]int, a.Count)
	for i := range out {
		p := data[i*stride:]
		switch a.ComponentType {
		case gltf.ComponentUbyte:
			out[i] = int(p[0])
		case gltf.ComponentUshort:
			out[i] = int(le.Uint16(p))
		case gltf.ComponentUint:
			out[i] = int(le.Uint32(p))
		default:
			return nil, fmt.Errorf("unexpected index type: %v", a.ComponentType)
		}
	}
	return out, nil
}

func (b *sceneBuilder) animations(nodes []*Node) ([]*Clip, error) {
	if len(b.doc.Animations) == 0 {
		return nil, nil
	}
	clips := make([]*Clip, 0, len(b.doc.Animations))
	for ai, anim := range b.doc.Animations {
		name := anim.Name
		if name == "" {
			name = fmt.Sprintf("animation%d", ai)
		}
		var tracks []Track
		for ci, ch := range anim.Channels {
			track, ok, err := b.track(ch, anim.Samplers, nodes)
			if err != nil {
				return nil, fmt.Errorf("animation %q channel %d: %w", name, ci, err)
			}
			if ok {
				tracks = append(tracks, track)
			}
		}
		clips = append(clips, NewClip(name, tracks))
	}
	return clips, nil
}

// track converts one channel. ok is false for channels this viewer does not
// animate (morph weights, missing nodes).
func (b *sceneBuilder) track(ch *gltf.AnimationChannel, samplers []*gltf.AnimationSampler, nodes []*Node) (Track, bool, error) {
	if ch == nil {
		return Track{}, false, nil
	}
	var path Path
	switch ch.Target.Path {
	case gltf.TRSTranslation:
		path = PathTranslation
	case gltf.TRSRotation:
		path = PathRotation
	case gltf.TRSScale:
		path = PathScale
	default:
		return Track{}, false, nil
	}
	if ch.Target.Node == nil || *ch.Target.Node < 0 || *ch.Target.Node >= len(nodes) {
		return Track{}, false, nil
	}
	if ch.Sampler < 0 || ch.Sampler >= len(samplers) || samplers[ch.Sampler] == nil {
		return Track{}, false, fmt.Errorf("invalid sampler index %d", ch.Sampler)
	}
	s := samplers[ch.Sampler]

	times, _, err := b.readFloats(s.Input)
	if err != nil {
		return Track{}, false, fmt.Errorf("read input: %w", err)
	}
	values, _, err := b.readFloats(s.Output)
	if err != nil {
		return Track{}, false, fmt.Errorf("read output: %w", err)
	}

	interp := InterpolationLinear
	perKey := path.Components()
	switch s.Interpolation {
	case gltf.InterpolationStep:
		interp = InterpolationStep
	case gltf.InterpolationCubicSpline:
		interp = InterpolationCubicSpline
		perKey *= 3
	}
	if len(values) < len(times)*perKey {
		return Track{}, false, fmt.Errorf("output has %d values for %d keys", len(values), len(times))
	}

	return Track{
		Node:          nodes[*ch.Target.Node],
		Path:          path,
		Interpolation: interp,
		Times:         times,
		Values:        values[:len(times)*perKey],
	}, true, nil
}
