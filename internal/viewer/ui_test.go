package viewer

import (
	"fmt"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

// recordUI keeps the UI state and a log of every call.
type recordUI struct {
	calls     []string
	visible   map[Element]bool
	width     map[Element]float64
	text      map[Element]string
	colors    map[Element]colorful.Color
	particles map[int][]Particle
	removed   map[int]int
}

func newRecordUI() *recordUI {
	return &recordUI{
		visible:   make(map[Element]bool),
		width:     make(map[Element]float64),
		text:      make(map[Element]string),
		colors:    make(map[Element]colorful.Color),
		particles: make(map[int][]Particle),
		removed:   make(map[int]int),
	}
}

func (u *recordUI) SetVisible(el Element, visible bool) {
	u.calls = append(u.calls, fmt.Sprintf("visible %s %t", el, visible))
	u.visible[el] = visible
}

func (u *recordUI) SetWidthPercent(el Element, pct float64) {
	u.calls = append(u.calls, fmt.Sprintf("width %s %g", el, pct))
	u.width[el] = pct
}

func (u *recordUI) SetText(el Element, text string) {
	u.calls = append(u.calls, fmt.Sprintf("text %s %q", el, text))
	u.text[el] = text
}

func (u *recordUI) SetColor(el Element, c colorful.Color) {
	u.calls = append(u.calls, fmt.Sprintf("color %s %s", el, c.Hex()))
	u.colors[el] = c
}

func (u *recordUI) AppendParticles(el Element, ps []Particle) {
	u.calls = append(u.calls, fmt.Sprintf("append %s %d", el, len(ps)))
	for _, p := range ps {
		u.particles[p.Burst] = append(u.particles[p.Burst], p)
	}
}

func (u *recordUI) RemoveParticles(el Element, burst int) {
	u.calls = append(u.calls, fmt.Sprintf("remove %s %d", el, burst))
	delete(u.particles, burst)
	u.removed[burst]++
}

func (u *recordUI) particleCount() int {
	n := 0
	for _, ps := range u.particles {
		n += len(ps)
	}
	return n
}

func TestElementString(t *testing.T) {
	tests := []struct {
		el   Element
		want string
	}{
		{ElementLoadingContainer, "loadingContainer"},
		{ElementLoadingProgress, "loadingProgress"},
		{ElementModelName, "modelName"},
		{ElementResetView, "resetView"},
		{Element(-1), "unknown"},
		{Element(99), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.el.String(); got != tt.want {
				t.Errorf("Element(%d).String() = %q, want %q", int(tt.el), got, tt.want)
			}
		})
	}
}
