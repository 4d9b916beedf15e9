package render

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/transform"
)

// WrapMode determines how texture coordinates outside [0,1] are handled.
type WrapMode int

const (
	WrapRepeat WrapMode = iota // Tile the texture
	WrapClamp                  // Clamp to edge
	WrapMirror                 // Tile, flipping every other copy
)

// FilterMode determines how texture sampling is performed.
type FilterMode int

const (
	FilterNearest  FilterMode = iota // Nearest-neighbor (pixelated)
	FilterBilinear                   // Bilinear interpolation (smooth)
)

// Texture holds a 2D image for texture mapping.
type Texture struct {
	Width      int
	Height     int
	Pixels     []Color    // Row-major pixel data
	WrapU      WrapMode   // Horizontal wrap mode
	WrapV      WrapMode   // Vertical wrap mode
	FilterMode FilterMode // Magnification filter
}

// NewTexture creates an empty texture with the given dimensions.
func NewTexture(width, height int) *Texture {
	return &Texture{
		Width:      width,
		Height:     height,
		Pixels:     make([]Color, width*height),
		WrapU:      WrapRepeat,
		WrapV:      WrapRepeat,
		FilterMode: FilterNearest,
	}
}

// MaxTextureSize bounds the larger side of textures built by TextureFromImage.
// A terminal viewport never samples more detail than this.
var MaxTextureSize = 512

// TextureFromImage converts a decoded base color map into a bilinear texture,
// downscaling it first when either side exceeds MaxTextureSize.
func TextureFromImage(img image.Image) *Texture {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if longest := max(width, height); MaxTextureSize > 0 && longest > MaxTextureSize {
		scale := float64(MaxTextureSize) / float64(longest)
		width = max(1, int(float64(width)*scale))
		height = max(1, int(float64(height)*scale))
		img = transform.Resize(img, width, height, transform.Linear)
		bounds = img.Bounds()
	}

	tex := NewTexture(width, height)
	tex.FilterMode = FilterBilinear

	if rgba, ok := img.(*image.RGBA); ok {
		for y := range height {
			row := rgba.Pix[(y+bounds.Min.Y-rgba.Rect.Min.Y)*rgba.Stride:]
			for x := range width {
				o := (x + bounds.Min.X - rgba.Rect.Min.X) * 4
				tex.Pixels[y*width+x] = Color{R: row[o], G: row[o+1], B: row[o+2], A: row[o+3]}
			}
		}
		return tex
	}

	for y := range height {
		for x := range width {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA returns 16-bit values, scale to 8-bit
			tex.Pixels[y*width+x] = Color{
				R: uint8(r >> 8),
				G: uint8(g >> 8),
				B: uint8(b >> 8),
				A: uint8(a >> 8),
			}
		}
	}
	return tex
}

// SetPixel sets a pixel in the texture.
func (t *Texture) SetPixel(x, y int, c Color) {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return
	}
	t.Pixels[y*t.Width+x] = c
}

// GetPixel returns the pixel at (x, y) with bounds checking.
func (t *Texture) GetPixel(x, y int) Color {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return Color{}
	}
	return t.Pixels[y*t.Width+x]
}

// Sample samples the texture at UV coordinates. V runs bottom to top.
func (t *Texture) Sample(u, v float64) Color {
	if t.Width == 0 || t.Height == 0 {
		return Color{}
	}
	// Texel space, rows from the top of the image.
	x := u * float64(t.Width)
	y := (1 - v) * float64(t.Height)

	if t.FilterMode != FilterBilinear {
		return t.texel(int(math.Floor(x)), int(math.Floor(y)))
	}

	// Bilinear weights are measured from texel centers.
	x, y = x-0.5, y-0.5
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)

	top := lerpColor(t.texel(ix, iy), t.texel(ix+1, iy), fx)
	bot := lerpColor(t.texel(ix, iy+1), t.texel(ix+1, iy+1), fx)
	return lerpColor(top, bot, fy)
}

// texel fetches the pixel at integer texel coordinates after wrapping.
func (t *Texture) texel(x, y int) Color {
	x = wrapIndex(x, t.Width, t.WrapU)
	y = wrapIndex(y, t.Height, t.WrapV)
	return t.Pixels[y*t.Width+x]
}

// wrapIndex maps any texel index into [0, size).
func wrapIndex(i, size int, mode WrapMode) int {
	switch mode {
	case WrapClamp:
		return max(0, min(size-1, i))
	case WrapMirror:
		period := 2 * size
		i %= period
		if i < 0 {
			i += period
		}
		if i >= size {
			i = period - 1 - i
		}
		return i
	default:
		i %= size
		if i < 0 {
			i += size
		}
		return i
	}
}

// lerpColor linearly interpolates between two colors.
func lerpColor(a, b Color, t float64) Color {
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}
