package models

import "image"

// Material is a glTF metallic-roughness material.
type Material struct {
	Name        string
	BaseColor   [4]float64  // RGBA in 0-1 range, linear
	Metallic    float64     // 0 = dielectric, 1 = metal
	Roughness   float64     // 0 = smooth, 1 = rough
	BaseMap     image.Image // Optional base color texture (sRGB)
	Sampler     Sampler     // How BaseMap is sampled
	DoubleSided bool

	// EnvMapIntensity scales the ambient and hemisphere contribution.
	EnvMapIntensity float64
}

// Wrap is how texture coordinates outside [0,1] resolve.
type Wrap int

const (
	WrapRepeat Wrap = iota
	WrapClamp
	WrapMirror
)

// Sampler is the wrap and magnification setting of a texture. The zero value
// repeats and filters linearly, the glTF default.
type Sampler struct {
	WrapS, WrapT Wrap
	Nearest      bool
}

// DefaultMaterial returns the material glTF assigns when a primitive names none.
func DefaultMaterial() Material {
	return Material{
		Name:            "default",
		BaseColor:       [4]float64{1, 1, 1, 1},
		Metallic:        1,
		Roughness:       1,
		EnvMapIntensity: 1,
	}
}

// HasTexture reports whether a base color map is attached.
func (m *Material) HasTexture() bool {
	return m.BaseMap != nil
}
