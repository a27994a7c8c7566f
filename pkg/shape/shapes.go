package shape

import "math"

const (
	DefaultFill        = "#aabbcc"
	DefaultStroke      = "#aabbcc"
	DefaultPathStroke  = "#000000"
	DefaultStrokeWidth = 1
	DefaultPathWidth   = 5
	DefaultFontFamily  = "Helvetica"
	DefaultFontSize    = 36
	DefaultFontWeight  = "400"
	DefaultText        = "Tap to Type"
)

// Shape is a live shape instance on a canvas. Instances are mutable and
// owned by the canvas; the Record is the only thing that leaves it.
type Shape interface {
	ID() string
	SetID(id string)
	Kind() Kind
	Style() *Style
	// Origin is the top-left corner of the unscaled, unrotated box.
	Origin() Point
	MoveTo(p Point)
	// Size is the unscaled extent of the shape.
	Size() (w, h float64)
}

// Style is shared by every kind.
type Style struct {
	Fill        string
	Stroke      string
	StrokeWidth float64
	Angle       float64
	ScaleX      float64
	ScaleY      float64
}

func DefaultStyle() Style {
	return Style{
		Fill:        DefaultFill,
		Stroke:      DefaultStroke,
		StrokeWidth: DefaultStrokeWidth,
		ScaleX:      1,
		ScaleY:      1,
	}
}

type Base struct {
	ObjectID string
	Paint    Style
}

func (b *Base) ID() string      { return b.ObjectID }
func (b *Base) SetID(id string) { b.ObjectID = id }
func (b *Base) Style() *Style   { return &b.Paint }

// unit treats an unset scale as 1.
func unit(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

type Rect struct {
	Base
	Left, Top, Width, Height float64
}

func NewRect(at Point) *Rect {
	return &Rect{Base: Base{Paint: DefaultStyle()}, Left: at.X, Top: at.Y}
}

func (r *Rect) Kind() Kind           { return KindRect }
func (r *Rect) Origin() Point        { return Point{X: r.Left, Y: r.Top} }
func (r *Rect) MoveTo(p Point)       { r.Left, r.Top = p.X, p.Y }
func (r *Rect) Size() (w, h float64) { return r.Width, r.Height }

type Triangle struct {
	Base
	Left, Top, Width, Height float64
}

func NewTriangle(at Point) *Triangle {
	return &Triangle{Base: Base{Paint: DefaultStyle()}, Left: at.X, Top: at.Y}
}

func (t *Triangle) Kind() Kind           { return KindTriangle }
func (t *Triangle) Origin() Point        { return Point{X: t.Left, Y: t.Top} }
func (t *Triangle) MoveTo(p Point)       { t.Left, t.Top = p.X, p.Y }
func (t *Triangle) Size() (w, h float64) { return t.Width, t.Height }

// Ellipse is positioned by the top-left of its bounding box.
type Ellipse struct {
	Base
	Left, Top, RX, RY float64
}

func NewEllipse(at Point) *Ellipse {
	return &Ellipse{Base: Base{Paint: DefaultStyle()}, Left: at.X, Top: at.Y}
}

func (e *Ellipse) Kind() Kind           { return KindEllipse }
func (e *Ellipse) Origin() Point        { return Point{X: e.Left, Y: e.Top} }
func (e *Ellipse) MoveTo(p Point)       { e.Left, e.Top = p.X, p.Y }
func (e *Ellipse) Size() (w, h float64) { return 2 * e.RX, 2 * e.RY }

func (e *Ellipse) Center() Point {
	return Point{X: e.Left + e.RX, Y: e.Top + e.RY}
}

type Line struct {
	Base
	X1, Y1, X2, Y2 float64
}

func NewLine(at Point) *Line {
	s := DefaultStyle()
	s.StrokeWidth = 2
	return &Line{Base: Base{Paint: s}, X1: at.X, Y1: at.Y, X2: at.X, Y2: at.Y}
}

func (l *Line) Kind() Kind    { return KindLine }
func (l *Line) Origin() Point { return Point{X: math.Min(l.X1, l.X2), Y: math.Min(l.Y1, l.Y2)} }

func (l *Line) MoveTo(p Point) {
	o := l.Origin()
	dx, dy := p.X-o.X, p.Y-o.Y
	l.X1, l.Y1, l.X2, l.Y2 = l.X1+dx, l.Y1+dy, l.X2+dx, l.Y2+dy
}

func (l *Line) Size() (w, h float64) {
	return math.Abs(l.X2 - l.X1), math.Abs(l.Y2 - l.Y1)
}

// Path is a freeform stroke in absolute canvas coordinates.
type Path struct {
	Base
	Points []Point
}

func NewPath(at Point) *Path {
	s := DefaultStyle()
	s.Fill = ""
	s.Stroke = DefaultPathStroke
	s.StrokeWidth = DefaultPathWidth
	return &Path{Base: Base{Paint: s}, Points: []Point{at}}
}

func (p *Path) Kind() Kind { return KindPath }

func (p *Path) Origin() Point {
	lo, _ := p.extent()
	return lo
}

func (p *Path) MoveTo(to Point) {
	o := p.Origin()
	dx, dy := to.X-o.X, to.Y-o.Y
	for i := range p.Points {
		p.Points[i].X += dx
		p.Points[i].Y += dy
	}
}

func (p *Path) Size() (w, h float64) {
	lo, hi := p.extent()
	return hi.X - lo.X, hi.Y - lo.Y
}

func (p *Path) extent() (lo, hi Point) {
	if len(p.Points) == 0 {
		return Point{}, Point{}
	}
	lo, hi = p.Points[0], p.Points[0]
	for _, pt := range p.Points[1:] {
		lo.X, lo.Y = math.Min(lo.X, pt.X), math.Min(lo.Y, pt.Y)
		hi.X, hi.Y = math.Max(hi.X, pt.X), math.Max(hi.Y, pt.Y)
	}
	return lo, hi
}

type Text struct {
	Base
	Left, Top  float64
	Text       string
	FontFamily string
	FontSize   float64
	FontWeight string
}

func NewText(at Point) *Text {
	s := DefaultStyle()
	s.Stroke = ""
	s.StrokeWidth = 0
	return &Text{
		Base:       Base{Paint: s},
		Left:       at.X,
		Top:        at.Y,
		Text:       DefaultText,
		FontFamily: DefaultFontFamily,
		FontSize:   DefaultFontSize,
		FontWeight: DefaultFontWeight,
	}
}

func (t *Text) Kind() Kind     { return KindText }
func (t *Text) Origin() Point  { return Point{X: t.Left, Y: t.Top} }
func (t *Text) MoveTo(p Point) { t.Left, t.Top = p.X, p.Y }

// Size approximates the text box with a fixed advance per rune.
func (t *Text) Size() (w, h float64) {
	return float64(len([]rune(t.Text))) * t.FontSize * 0.6, t.FontSize * 1.16
}

type Image struct {
	Base
	Left, Top, Width, Height float64
	Src                      string
}

func NewImage(at Point, src string, width, height float64) *Image {
	s := DefaultStyle()
	s.Fill = ""
	s.Stroke = ""
	s.StrokeWidth = 0
	return &Image{Base: Base{Paint: s}, Left: at.X, Top: at.Y, Width: width, Height: height, Src: src}
}

func (i *Image) Kind() Kind           { return KindImage }
func (i *Image) Origin() Point        { return Point{X: i.Left, Y: i.Top} }
func (i *Image) MoveTo(p Point)       { i.Left, i.Top = p.X, p.Y }
func (i *Image) Size() (w, h float64) { return i.Width, i.Height }

// Box is an axis-aligned rectangle.
type Box struct {
	Left, Top, Width, Height float64
}

func (b Box) Contains(p Point) bool {
	return p.X >= b.Left && p.X <= b.Left+b.Width && p.Y >= b.Top && p.Y <= b.Top+b.Height
}

// Bounds returns the scaled box of s, ignoring rotation.
func Bounds(s Shape) Box {
	o := s.Origin()
	w, h := ScaledSize(s)
	return Box{Left: o.X, Top: o.Y, Width: w, Height: h}
}

// ScaledSize is the displayed width and height of s.
func ScaledSize(s Shape) (w, h float64) {
	w, h = s.Size()
	st := s.Style()
	return w * unit(st.ScaleX), h * unit(st.ScaleY)
}
