package board

import "github.com/astromechza/collab-canvas/pkg/shape"

// Tool is the value of the active toolbar element.
type Tool string

const (
	ToolSelect    Tool = "select"
	ToolRectangle Tool = "rectangle"
	ToolTriangle  Tool = "triangle"
	ToolEllipse   Tool = "ellipse"
	ToolLine      Tool = "line"
	ToolFreeform  Tool = "freeform"
	ToolText      Tool = "text"
	ToolImage     Tool = "image"
	ToolDelete    Tool = "delete"
	ToolReset     Tool = "reset"
	ToolComments  Tool = "comments"
)

// Drawable tools create an ephemeral shape on pointer down.
func (t Tool) Drawable() bool {
	switch t {
	case ToolRectangle, ToolTriangle, ToolEllipse, ToolLine, ToolFreeform, ToolText:
		return true
	}
	return false
}

// Sticky tools stay active after a shape is committed.
func (t Tool) Sticky() bool {
	return t == ToolFreeform
}

// newShape builds the zero-extent shape that tool t starts at p.
func newShape(t Tool, p shape.Point) shape.Shape {
	switch t {
	case ToolRectangle:
		return shape.NewRect(p)
	case ToolTriangle:
		return shape.NewTriangle(p)
	case ToolEllipse:
		return shape.NewEllipse(p)
	case ToolLine:
		return shape.NewLine(p)
	case ToolFreeform:
		return shape.NewPath(p)
	case ToolText:
		return shape.NewText(p)
	}
	return nil
}

// drag resizes an ephemeral shape so that it spans anchor to p, whichever
// direction the pointer went.
func drag(s shape.Shape, anchor, p shape.Point) {
	left, top := min(anchor.X, p.X), min(anchor.Y, p.Y)
	w, h := abs(p.X-anchor.X), abs(p.Y-anchor.Y)
	switch v := s.(type) {
	case *shape.Rect:
		v.Left, v.Top, v.Width, v.Height = left, top, w, h
	case *shape.Triangle:
		v.Left, v.Top, v.Width, v.Height = left, top, w, h
	case *shape.Ellipse:
		v.Left, v.Top, v.RX, v.RY = left, top, w/2, h/2
	case *shape.Line:
		v.X2, v.Y2 = p.X, p.Y
	case *shape.Path:
		if last := v.Points[len(v.Points)-1]; last != p {
			v.Points = append(v.Points, p)
		}
	}
}

// degenerate reports whether a finished draw produced nothing visible.
func degenerate(s shape.Shape) bool {
	if p, ok := s.(*shape.Path); ok {
		return len(p.Points) < 2
	}
	w, h := s.Size()
	return w == 0 && h == 0
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
