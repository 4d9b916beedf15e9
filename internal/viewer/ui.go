package viewer

import "github.com/lucasb-eyer/go-colorful"

// Element names one piece of the on-screen UI.
type Element int

const (
	ElementLoadingContainer Element = iota
	ElementLoadingProgress
	ElementLoadingPercentage
	ElementLoadingInfo
	ElementModelInfo
	ElementModelName
	ElementConfetti
	ElementToggleRotation
	ElementToggleMovement
	ElementZoomIn
	ElementZoomOut
	ElementResetView
)

var elementNames = [...]string{
	ElementLoadingContainer:  "loadingContainer",
	ElementLoadingProgress:   "loadingProgress",
	ElementLoadingPercentage: "loadingPercentage",
	ElementLoadingInfo:       "loadingInfo",
	ElementModelInfo:         "modelInfo",
	ElementModelName:         "modelName",
	ElementConfetti:          "confetti",
	ElementToggleRotation:    "toggleRotation",
	ElementToggleMovement:    "toggleMovement",
	ElementZoomIn:            "zoomIn",
	ElementZoomOut:           "zoomOut",
	ElementResetView:         "resetView",
}

func (e Element) String() string {
	if e < 0 || int(e) >= len(elementNames) {
		return "unknown"
	}
	return elementNames[e]
}

// UI is what the load lifecycle and confetti need from the screen.
type UI interface {
	SetVisible(el Element, visible bool)
	SetWidthPercent(el Element, pct float64)
	SetText(el Element, text string)
	SetColor(el Element, c colorful.Color)
	AppendParticles(el Element, ps []Particle)
	RemoveParticles(el Element, burst int)
}
