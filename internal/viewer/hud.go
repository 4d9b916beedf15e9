package viewer

import (
	"fmt"
	"image"
	"math"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/harmonica"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/taigrr/podium/internal/display"
	"github.com/taigrr/podium/pkg/render"
)

// HUD colors.
var (
	hudText       = render.RGB(230, 230, 240)
	hudDim        = render.RGB(150, 150, 170)
	hudPanel      = render.RGB(30, 30, 50)
	hudTrack      = render.RGB(50, 50, 75)
	hudBar        = render.RGB(110, 150, 255)
	hudButton     = render.RGB(45, 45, 70)
	hudButtonOn   = render.RGB(70, 110, 200)
	hudStatsColor = render.RGB(120, 230, 140)
)

const (
	confettiAlpha  = 0.9
	loadingDefault = "Loading model..."
)

// HUDOptions configures how the HUD measures and places text.
type HUDOptions struct {
	// Glyph cell size in framebuffer pixels. A half-block terminal cell is
	// 1x2; the window font is 7x13.
	CellWidth, CellHeight int

	// HostText returns text as Labels instead of drawing it into the
	// framebuffer.
	HostText bool

	FPS  int           // progress easing step
	Fall time.Duration // time for confetti to cross the viewport
}

type button struct {
	el   Element
	text string
	rect image.Rectangle
}

type hudParticle struct {
	Particle
	start time.Time
}

// HUD draws the loading bar, model info, control buttons, stats and
// confetti, and implements UI.
type HUD struct {
	opts HUDOptions

	visible map[Element]bool
	text    map[Element]string
	colors  map[Element]colorful.Color
	active  map[Element]bool

	// Bar width in percent; negative until a total is known.
	progress float64
	shown    float64
	velocity float64
	spring   harmonica.Spring

	particles []hudParticle
	buttons   []button
	labels    []display.Label
	width     int
	height    int

	// ShowStats toggles the FPS and geometry readout.
	ShowStats bool
	// Stats is appended to the FPS readout.
	Stats string

	now       time.Time
	fps       float64
	fpsFrames int
	fpsTime   time.Time
}

// NewHUD returns a HUD with only the control buttons showing.
func NewHUD(opts HUDOptions) *HUD {
	opts.CellWidth = max(opts.CellWidth, 1)
	opts.CellHeight = max(opts.CellHeight, 1)
	if opts.Fall <= 0 {
		opts.Fall = 3 * time.Second
	}
	h := &HUD{
		opts:     opts,
		visible:  make(map[Element]bool),
		text:     make(map[Element]string),
		colors:   make(map[Element]colorful.Color),
		active:   make(map[Element]bool),
		progress: -1,
		spring:   harmonica.NewSpring(harmonica.FPS(max(opts.FPS, 1)), 6.0, 1.0),
	}
	h.text[ElementLoadingInfo] = loadingDefault
	h.text[ElementLoadingPercentage] = "0%"
	h.buttons = []button{
		{el: ElementToggleRotation, text: "Rotate"},
		{el: ElementToggleMovement, text: "Move"},
		{el: ElementZoomIn, text: "+"},
		{el: ElementZoomOut, text: "-"},
		{el: ElementResetView, text: "Reset"},
	}
	return h
}

// SetVisible implements UI.
func (h *HUD) SetVisible(el Element, visible bool) {
	h.visible[el] = visible
}

// Visible reports whether el is showing.
func (h *HUD) Visible(el Element) bool {
	return h.visible[el]
}

// SetWidthPercent implements UI. Only the progress bar has a width.
func (h *HUD) SetWidthPercent(el Element, pct float64) {
	if el == ElementLoadingProgress {
		h.progress = math.Max(0, math.Min(100, pct))
	}
}

// Progress returns the target bar width, negative while indeterminate.
func (h *HUD) Progress() float64 {
	return h.progress
}

// SetText implements UI.
func (h *HUD) SetText(el Element, text string) {
	h.text[el] = text
}

// Text returns the text of el.
func (h *HUD) Text(el Element) string {
	return h.text[el]
}

// SetColor implements UI.
func (h *HUD) SetColor(el Element, c colorful.Color) {
	h.colors[el] = c
}

// AppendParticles implements UI. Particles start falling from now.
func (h *HUD) AppendParticles(el Element, ps []Particle) {
	if el != ElementConfetti {
		return
	}
	for _, p := range ps {
		h.particles = append(h.particles, hudParticle{Particle: p, start: h.now})
	}
}

// RemoveParticles implements UI.
func (h *HUD) RemoveParticles(el Element, burst int) {
	if el != ElementConfetti {
		return
	}
	h.particles = slices.DeleteFunc(h.particles, func(p hudParticle) bool { return p.Burst == burst })
}

// ParticleCount returns the number of confetti pieces held.
func (h *HUD) ParticleCount() int {
	return len(h.particles)
}

// SetActive marks a toggle button as on or off.
func (h *HUD) SetActive(el Element, on bool) {
	h.active[el] = on
}

// Update advances the HUD clock, the FPS meter and the bar easing. Call it
// once per frame before anything else touches the HUD.
func (h *HUD) Update(now time.Time) {
	h.now = now
	if h.fpsTime.IsZero() {
		h.fpsTime = now
	}
	h.fpsFrames++
	if elapsed := now.Sub(h.fpsTime); elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = now
	}
	if h.progress >= 0 {
		h.shown, h.velocity = h.spring.Update(h.shown, h.velocity, h.progress)
	}
}

// FPS returns the last measured frame rate.
func (h *HUD) FPS() float64 {
	return h.fps
}

// Layout places the buttons for a framebuffer of w by h pixels.
func (h *HUD) Layout(w, ht int) {
	h.width, h.height = w, ht
	cw, ch := h.opts.CellWidth, h.opts.CellHeight

	total := 0
	for i := range h.buttons {
		total += h.textWidth(h.buttons[i].text) + 2*cw
	}
	total += cw * (len(h.buttons) - 1)

	// Second row from the bottom, on the glyph grid.
	x := max(0, (w-total)/2)
	y := max(0, ht/ch-2) * ch
	for i := range h.buttons {
		b := &h.buttons[i]
		bw := h.textWidth(b.text) + 2*cw
		b.rect = image.Rect(x, y, x+bw, y+ch)
		x += bw + cw
	}
}

// ButtonAt returns the button under framebuffer pixel (x, y).
func (h *HUD) ButtonAt(x, y int) (Element, bool) {
	p := image.Pt(x, y)
	for _, b := range h.buttons {
		if p.In(b.rect) {
			return b.el, true
		}
	}
	return 0, false
}

// Draw renders the HUD into fb. In HostText mode it returns the text for
// the host to draw on top; otherwise it returns nil.
func (h *HUD) Draw(fb *render.Framebuffer) []display.Label {
	if fb.Width != h.width || fb.Height != h.height {
		h.Layout(fb.Width, fb.Height)
	}
	h.labels = h.labels[:0]

	h.drawConfetti(fb)
	if h.visible[ElementLoadingContainer] {
		h.drawLoading(fb)
	}
	if h.visible[ElementModelInfo] {
		h.label(fb, h.opts.CellWidth, 0, h.text[ElementModelName], hudText)
	}
	if h.ShowStats {
		s := fmt.Sprintf("%.0f FPS", h.fps)
		if h.Stats != "" {
			s += "  " + h.Stats
		}
		h.label(fb, fb.Width-h.textWidth(s)-h.opts.CellWidth, 0, s, hudStatsColor)
	}
	for _, b := range h.buttons {
		bg := hudButton
		if h.active[b.el] {
			bg = hudButtonOn
		}
		fb.DrawRect(b.rect.Min.X, b.rect.Min.Y, b.rect.Dx(), b.rect.Dy(), bg)
		h.label(fb, b.rect.Min.X+h.opts.CellWidth, b.rect.Min.Y, b.text, hudText)
	}

	if !h.opts.HostText {
		return nil
	}
	return h.labels
}

func (h *HUD) drawLoading(fb *render.Framebuffer) {
	cw, ch := h.opts.CellWidth, h.opts.CellHeight
	barW := max(fb.Width/2, 10*cw)
	x := (fb.Width - barW) / 2
	y := fb.Height / ch / 2 * ch

	fb.DrawRect(x-2*cw, y-3*ch, barW+4*cw, 7*ch, hudPanel)
	fb.DrawRect(x, y, barW, ch, hudTrack)
	if h.progress < 0 {
		// Unknown total: a segment sweeps back and forth.
		seg := barW / 4
		t := float64(h.now.UnixMilli()%2000) / 1000
		if t > 1 {
			t = 2 - t
		}
		fb.DrawRect(x+int(t*float64(barW-seg)), y, seg, ch, hudBar)
	} else {
		fill := int(math.Round(float64(barW) * math.Max(0, math.Min(100, h.shown)) / 100))
		fb.DrawRect(x, y, fill, ch, hudBar)
	}

	info := h.text[ElementLoadingInfo]
	infoColor := hudText
	if c, ok := h.colors[ElementLoadingInfo]; ok {
		r, g, b := c.Clamped().RGB255()
		infoColor = render.RGB(r, g, b)
	}
	h.label(fb, (fb.Width-h.textWidth(info))/2, y-2*ch, info, infoColor)
	if h.progress >= 0 {
		pct := h.text[ElementLoadingPercentage]
		h.label(fb, (fb.Width-h.textWidth(pct))/2, y+2*ch, pct, hudDim)
	}
}

func (h *HUD) drawConfetti(fb *render.Framebuffer) {
	if !h.visible[ElementConfetti] {
		return
	}
	pw := max(1, fb.Width/120)
	ph := max(1, fb.Width/160)
	for _, p := range h.particles {
		t := float64(h.now.Sub(p.start)-p.Delay) / float64(h.opts.Fall)
		if t < 0 || t >= 1 {
			continue
		}
		sway := math.Sin(t*4*math.Pi+p.Hue) * float64(pw) * 2
		x := int(p.X/100*float64(fb.Width) + sway)
		y := int(t * float64(fb.Height))
		r, g, b := p.Color.Clamped().RGB255()
		c := render.RGB(r, g, b)
		for dy := range ph {
			for dx := range pw {
				fb.BlendPixel(x+dx, y+dy, c, confettiAlpha)
			}
		}
	}
}

// label draws s at (x, y) or queues it for the host.
func (h *HUD) label(fb *render.Framebuffer, x, y int, s string, c render.Color) {
	if s == "" {
		return
	}
	if h.opts.HostText {
		h.labels = append(h.labels, display.Label{X: x, Y: y, Text: s, Color: c})
		return
	}
	fb.DrawText(x, y, s, c)
}

func (h *HUD) textWidth(s string) int {
	if h.opts.HostText {
		return utf8.RuneCountInString(s) * h.opts.CellWidth
	}
	return render.TextWidth(s)
}
