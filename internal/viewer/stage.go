package viewer

import (
	"image"
	"math"

	"github.com/taigrr/podium/internal/config"
	"github.com/taigrr/podium/pkg/math3d"
	"github.com/taigrr/podium/pkg/models"
	"github.com/taigrr/podium/pkg/render"
)

// shadowLift raises projected shadows above the floor so they win the depth
// test against it.
const shadowLift = 0.01

// Stage is everything drawn around the model: background, lights, floor and
// the model's shadow on it.
type Stage struct {
	Background render.Color
	Lighting   *render.Lighting

	Floor        *models.Mesh // nil when disabled
	FloorSurface render.Surface
	floorY       float64
	floorRadius  float64

	Shadows       bool
	ShadowColor   render.Color
	ShadowOpacity float64

	textures map[textureKey]*render.Texture
}

// NewStage builds the stage from configuration. cfg must have passed
// Validate.
func NewStage(cfg config.Stage) *Stage {
	r, g, b := config.MustColor(cfg.Background).RGB255()
	s := &Stage{
		Background: render.RGB(r, g, b),
		Lighting: &render.Lighting{
			Fog: render.Fog{
				Color:   config.MustColor(cfg.Fog.Color),
				Density: cfg.Fog.Density,
			},
			Exposure:    cfg.Exposure,
			ToneMapping: cfg.ToneMapping,
		},
		textures: make(map[textureKey]*render.Texture),
	}

	for _, l := range cfg.Lights {
		s.Lighting.Lights = append(s.Lighting.Lights, render.Light{
			Kind:       lightKind(l.Kind),
			Color:      render.LinearColor(config.MustColor(l.Color)),
			Ground:     render.LinearColor(config.MustColor(l.Ground)),
			Intensity:  l.Intensity,
			Position:   math3d.V3(l.Position[0], l.Position[1], l.Position[2]),
			CastShadow: l.CastShadow,
		})
	}

	if f := cfg.Floor; f.Enabled {
		s.Floor = FloorDisc(f.Radius, f.Segments, f.Y)
		s.floorY = f.Y
		s.floorRadius = f.Radius
		s.FloorSurface = render.Surface{
			BaseColor:    render.LinearColor(config.MustColor(f.Color)),
			Opacity:      f.Opacity,
			Metallic:     f.Metalness,
			Roughness:    f.Roughness,
			EnvIntensity: 1,
		}
		// Shadows need something to land on.
		s.Shadows = cfg.Shadow.Enabled
	}
	sr, sg, sb := config.MustColor(cfg.Shadow.Color).RGB255()
	s.ShadowColor = render.RGB(sr, sg, sb)
	s.ShadowOpacity = cfg.Shadow.Opacity
	return s
}

func lightKind(kind string) render.LightKind {
	switch kind {
	case config.LightDirectional:
		return render.LightDirectional
	case config.LightHemisphere:
		return render.LightHemisphere
	default:
		return render.LightAmbient
	}
}

// textureKey identifies a converted base color map. The same image sampled
// two ways converts twice.
type textureKey struct {
	img     image.Image
	sampler models.Sampler
}

func wrapMode(w models.Wrap) render.WrapMode {
	switch w {
	case models.WrapClamp:
		return render.WrapClamp
	case models.WrapMirror:
		return render.WrapMirror
	default:
		return render.WrapRepeat
	}
}

// FloorDisc builds a disc of the given radius in the plane y, facing up.
func FloorDisc(radius float64, segments int, y float64) *models.Mesh {
	m := models.NewMesh("floor")
	up := math3d.V3(0, 1, 0)
	m.Vertices = append(m.Vertices, models.MeshVertex{
		Position: math3d.V3(0, y, 0),
		Normal:   up,
		UV:       math3d.V2(0.5, 0.5),
	})
	for i := range segments + 1 {
		a := 2 * math.Pi * float64(i) / float64(segments)
		c, s := math.Cos(a), math.Sin(a)
		m.Vertices = append(m.Vertices, models.MeshVertex{
			Position: math3d.V3(radius*c, y, radius*s),
			Normal:   up,
			UV:       math3d.V2(0.5+c/2, 0.5+s/2),
		})
	}
	for i := 1; i <= segments; i++ {
		m.Faces = append(m.Faces, models.Face{V: [3]int{0, i, i + 1}, Material: -1})
	}
	m.CalculateBounds()
	return m
}

// Draw renders one frame: background, floor, the subject's shadow, then the
// subject. subject may be nil. World matrices must be current.
func (s *Stage) Draw(r *render.Rasterizer, subject *models.Scene) {
	r.BeginFrame(s.Background)

	if s.Floor != nil {
		r.DrawMesh(s.Floor, math3d.Identity(), []render.Surface{s.FloorSurface}, s.Lighting)
	}
	if subject == nil {
		return
	}

	nodes := subject.MeshNodes()
	if light, ok := s.Lighting.ShadowLight(); ok && s.Shadows {
		project := render.ShadowMatrix(light.Direction(), s.floorY+shadowLift)
		shadow := []render.Surface{{Shadow: true, ClipRadius: s.floorRadius}}
		for _, n := range nodes {
			if n.CastShadow {
				r.DrawMesh(n.Mesh, project.Mul(n.World), shadow, nil)
			}
		}
		r.ResolveShadows(s.ShadowColor, s.ShadowOpacity)
	}

	surfaces := s.Surfaces(subject)
	for _, n := range nodes {
		r.DrawMesh(n.Mesh, n.World, surfaces, s.Lighting)
	}
}

// Surfaces converts the subject's materials, reusing textures across frames.
func (s *Stage) Surfaces(subject *models.Scene) []render.Surface {
	out := make([]render.Surface, len(subject.Materials))
	for i, m := range subject.Materials {
		out[i] = render.Surface{
			BaseColor:    math3d.V3(m.BaseColor[0], m.BaseColor[1], m.BaseColor[2]),
			Opacity:      1,
			Metallic:     m.Metallic,
			Roughness:    m.Roughness,
			EnvIntensity: m.EnvMapIntensity,
			DoubleSided:  m.DoubleSided,
		}
		if m.BaseMap != nil {
			key := textureKey{m.BaseMap, m.Sampler}
			tex, ok := s.textures[key]
			if !ok {
				tex = render.TextureFromImage(m.BaseMap)
				tex.WrapU = wrapMode(m.Sampler.WrapS)
				tex.WrapV = wrapMode(m.Sampler.WrapT)
				if m.Sampler.Nearest {
					tex.FilterMode = render.FilterNearest
				}
				s.textures[key] = tex
			}
			out[i].Texture = tex
		}
	}
	return out
}
