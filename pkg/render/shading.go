package render

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/taigrr/podium/pkg/math3d"
)

// LightKind selects how a Light contributes to shading.
type LightKind int

const (
	LightAmbient LightKind = iota
	LightDirectional
	LightHemisphere
)

// Light is one light of the rig. Colors are linear RGB.
type Light struct {
	Kind      LightKind
	Color     math3d.Vec3 // sky color for hemisphere lights
	Ground    math3d.Vec3 // hemisphere only
	Intensity float64

	// Directional lights shine from Position toward the origin.
	Position   math3d.Vec3
	CastShadow bool
}

// Direction returns the unit vector a directional light travels along.
func (l Light) Direction() math3d.Vec3 {
	return l.Position.Negate().Normalize()
}

// Fog is exponential-squared distance fog blended in display space.
type Fog struct {
	Color   colorful.Color
	Density float64
}

// Factor returns the fog amount at view distance d.
func (f Fog) Factor(d float64) float64 {
	if f.Density <= 0 {
		return 0
	}
	return 1 - math.Exp(-f.Density*f.Density*d*d)
}

// Lighting holds the lights and output transform shared by every draw call.
type Lighting struct {
	Lights      []Light
	Fog         Fog
	Exposure    float64
	ToneMapping bool
}

// Surface describes how the triangles of one draw are shaded.
type Surface struct {
	BaseColor    math3d.Vec3 // linear RGB
	Opacity      float64     // blended when strictly between 0 and 1
	Metallic     float64
	Roughness    float64
	EnvIntensity float64
	Texture      *Texture // sRGB base color map, optional
	DoubleSided  bool

	// Shadow surfaces only mark the rasterizer's shadow mask.
	Shadow bool
	// ClipRadius, when positive, discards pixels whose world XZ distance from
	// the origin exceeds it.
	ClipRadius float64
}

// DefaultSurface is an opaque white dielectric.
func DefaultSurface() Surface {
	return Surface{
		BaseColor:    math3d.One3(),
		Opacity:      1,
		Roughness:    1,
		EnvIntensity: 1,
	}
}

// Shade evaluates the lights at a vertex with unit normal n. view points from
// the vertex toward the eye. diffuse is multiplied by the diffuse albedo and
// specular by the reflectance at normal incidence when the pixel is resolved.
// A nil Lighting leaves surfaces unlit.
func (l *Lighting) Shade(n, view math3d.Vec3, s *Surface) (diffuse, specular math3d.Vec3) {
	if l == nil {
		return math3d.One3(), math3d.Zero3()
	}

	shininess := specularPower(s.Roughness)
	norm := (shininess + 2) / (8 * math.Pi)

	var ambient math3d.Vec3
	for _, light := range l.Lights {
		switch light.Kind {
		case LightAmbient:
			ambient = ambient.Add(light.Color.Scale(light.Intensity))
		case LightHemisphere:
			t := 0.5*n.Y + 0.5
			ambient = ambient.Add(light.Ground.Lerp(light.Color, t).Scale(light.Intensity))
		case LightDirectional:
			toLight := light.Position.Normalize()
			ndotl := n.Dot(toLight)
			if ndotl <= 0 {
				continue
			}
			irradiance := light.Color.Scale(light.Intensity * ndotl)
			diffuse = diffuse.Add(irradiance.Scale(1 / math.Pi))

			h := toLight.Add(view).Normalize()
			if ndoth := n.Dot(h); ndoth > 0 {
				specular = specular.Add(irradiance.Scale(norm * math.Pow(ndoth, shininess)))
			}
		}
	}

	indirect := ambient.Scale(1 / math.Pi)
	diffuse = diffuse.Add(indirect)
	specular = specular.Add(indirect.Scale(s.EnvIntensity))
	return diffuse, specular
}

// specularPower maps perceptual roughness to a Blinn-Phong exponent.
func specularPower(roughness float64) float64 {
	a := roughness * roughness
	if a < 0.03 {
		a = 0.03
	}
	return math.Max(0, 2/(a*a)-2)
}

// Finish converts a linear radiance to a display color: exposure, ACES tone
// mapping, sRGB encoding, then fog at view distance depth.
func (l *Lighting) Finish(c math3d.Vec3, depth float64) color.RGBA {
	if l == nil {
		return toRGBA(colorful.LinearRgb(c.X, c.Y, c.Z))
	}
	if l.Exposure > 0 {
		c = c.Scale(l.Exposure)
	}
	if l.ToneMapping {
		c = math3d.V3(ACESFilm(c.X), ACESFilm(c.Y), ACESFilm(c.Z))
	}
	out := colorful.LinearRgb(c.X, c.Y, c.Z).Clamped()
	if f := l.Fog.Factor(depth); f > 0 {
		out = out.BlendRgb(l.Fog.Color, f)
	}
	return toRGBA(out)
}

// ShadowLight returns the first directional light that casts shadows.
func (l *Lighting) ShadowLight() (Light, bool) {
	if l == nil {
		return Light{}, false
	}
	for _, light := range l.Lights {
		if light.Kind == LightDirectional && light.CastShadow {
			return light, true
		}
	}
	return Light{}, false
}

// ACESFilm is Narkowicz's fit of the ACES filmic curve.
func ACESFilm(x float64) float64 {
	if x <= 0 {
		return 0
	}
	v := (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
	return math.Min(1, v)
}

// ShadowMatrix flattens geometry onto the plane y = planeY along dir.
// dir must point downward.
func ShadowMatrix(dir math3d.Vec3, planeY float64) math3d.Mat4 {
	if dir.Y >= 0 {
		return math3d.Scale(math3d.Zero3())
	}
	kx := dir.X / dir.Y
	kz := dir.Z / dir.Y
	return math3d.Mat4{
		1, 0, 0, 0,
		-kx, 0, -kz, 0,
		0, 0, 1, 0,
		kx * planeY, planeY, kz * planeY, 1,
	}
}

// LinearColor converts a display color to linear RGB.
func LinearColor(c colorful.Color) math3d.Vec3 {
	r, g, b := c.LinearRgb()
	return math3d.V3(r, g, b)
}

// toRGBA converts a clamped colorful.Color to an opaque pixel.
func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{r, g, b, 255}
}

// srgbToLinear maps 8-bit sRGB channel values to linear light.
var srgbToLinear = func() (t [256]float64) {
	for i := range t {
		t[i], _, _ = colorful.Color{R: float64(i) / 255}.LinearRgb()
	}
	return t
}()

// linearTexel decodes a texel to linear RGB.
func linearTexel(c color.RGBA) math3d.Vec3 {
	return math3d.V3(srgbToLinear[c.R], srgbToLinear[c.G], srgbToLinear[c.B])
}
