package canvas

import (
	"github.com/gogpu/gg"

	"github.com/astromechza/collab-canvas/pkg/shape"
)

const (
	MinZoom  = 0.2
	MaxZoom  = 1.0
	ZoomStep = 0.001
)

// Viewport controls zoom, pan and pixel size of a canvas. It only ever
// changes the canvas transform and dimensions, never shapes.
//
// The transform maps canvas to screen coordinates as
// screen = zoom*canvas + offset, held in the A/E and C/F terms of the
// matrix.
type Viewport struct {
	canvas Canvas
	Min    float64
	Max    float64
	Step   float64
}

func NewViewport(c Canvas) *Viewport {
	return &Viewport{canvas: c, Min: MinZoom, Max: MaxZoom, Step: ZoomStep}
}

// ZoomLevel is the current zoom factor.
func (v *Viewport) ZoomLevel() float64 {
	m := v.canvas.ViewportTransform()
	if m.A == 0 {
		return 1
	}
	return m.A
}

// Zoom adds delta*Step to the zoom, clamped to [Min, Max], keeping the
// canvas point under the screen point at fixed. It returns the new zoom.
func (v *Viewport) Zoom(delta float64, at shape.Point) float64 {
	if v.canvas == nil || v.canvas.Disposed() {
		return 1
	}
	m := v.canvas.ViewportTransform()
	old := v.ZoomLevel()
	zoom := min(max(old+delta*v.Step, v.Min), v.Max)
	if zoom == old {
		return zoom
	}
	// canvas point under the pointer before and after must match
	cx, cy := (at.X-m.C)/old, (at.Y-m.F)/old
	v.canvas.SetViewportTransform(gg.Matrix{
		A: zoom, B: 0, C: at.X - cx*zoom,
		D: 0, E: zoom, F: at.Y - cy*zoom,
	})
	v.canvas.RequestRender()
	return zoom
}

// Pan shifts the view by a screen-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	if v.canvas == nil || v.canvas.Disposed() {
		return
	}
	m := v.canvas.ViewportTransform()
	m.C += dx
	m.F += dy
	v.canvas.SetViewportTransform(m)
	v.canvas.RequestRender()
}

// Resize sets the pixel dimensions of the canvas.
func (v *Viewport) Resize(w, h int) {
	if v.canvas == nil || v.canvas.Disposed() {
		return
	}
	v.canvas.SetSize(w, h)
	v.canvas.RequestRender()
}

// ToCanvas maps a screen point into canvas coordinates.
func (v *Viewport) ToCanvas(p shape.Point) shape.Point {
	if v.canvas == nil {
		return p
	}
	inv := v.canvas.ViewportTransform().Invert()
	q := inv.TransformPoint(gg.Pt(p.X, p.Y))
	return shape.Point{X: q.X, Y: q.Y}
}
