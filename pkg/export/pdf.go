// Package export writes boards to printable formats.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/astromechza/collab-canvas/pkg/shape"
)

// PDF writes shapes onto one page of width x height points, one point per
// canvas pixel.
func PDF(w io.Writer, width, height int, shapes []shape.Shape) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("failed to export pdf: invalid size %dx%d", width, height)
	}
	orientation := "P"
	if width > height {
		orientation = "L"
	}
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: float64(width), Ht: float64(height)},
	})
	p.SetAutoPageBreak(false, 0)
	p.AddPage()
	for _, s := range shapes {
		draw(p, s)
		if err := p.Error(); err != nil {
			return fmt.Errorf("failed to draw %s %s: %w", s.Kind(), s.ID(), err)
		}
	}
	if err := p.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func draw(p *gofpdf.Fpdf, s shape.Shape) {
	st := s.Style()
	o := s.Origin()

	p.TransformBegin()
	defer p.TransformEnd()
	// canvas angles are clockwise, pdf rotation is counter-clockwise
	if st.Angle != 0 {
		p.TransformRotate(-st.Angle, o.X, o.Y)
	}
	sx, sy := scale(st.ScaleX), scale(st.ScaleY)
	if sx != 1 || sy != 1 {
		p.TransformScale(sx*100, sy*100, o.X, o.Y)
	}

	mode := paint(p, st)
	switch v := s.(type) {
	case *shape.Rect:
		if mode != "" {
			p.Rect(v.Left, v.Top, v.Width, v.Height, mode)
		}
	case *shape.Triangle:
		if mode != "" {
			p.Polygon([]gofpdf.PointType{
				{X: v.Left + v.Width/2, Y: v.Top},
				{X: v.Left + v.Width, Y: v.Top + v.Height},
				{X: v.Left, Y: v.Top + v.Height},
			}, mode)
		}
	case *shape.Ellipse:
		if mode != "" {
			c := v.Center()
			p.Ellipse(c.X, c.Y, v.RX, v.RY, 0, mode)
		}
	case *shape.Line:
		if strings.Contains(mode, "D") {
			p.Line(v.X1, v.Y1, v.X2, v.Y2)
		}
	case *shape.Path:
		if strings.Contains(mode, "D") {
			p.SetLineCapStyle("round")
			for i := 1; i < len(v.Points); i++ {
				p.Line(v.Points[i-1].X, v.Points[i-1].Y, v.Points[i].X, v.Points[i].Y)
			}
		}
	case *shape.Text:
		if r, g, b, ok := rgb(st.Fill); ok && v.Text != "" {
			p.SetTextColor(r, g, b)
			p.SetFont("Helvetica", fontStyle(v.FontWeight), v.FontSize)
			p.Text(v.Left, v.Top+v.FontSize*0.8, v.Text)
		}
	case *shape.Image:
		// images are references, not embedded
		p.SetDrawColor(153, 153, 153)
		p.SetLineWidth(1)
		p.Rect(v.Left, v.Top, v.Width, v.Height, "D")
	}
}

// paint sets colors for st and returns the gofpdf style string, or "" when
// there is nothing to draw.
func paint(p *gofpdf.Fpdf, st *shape.Style) string {
	mode := ""
	if r, g, b, ok := rgb(st.Fill); ok {
		p.SetFillColor(r, g, b)
		mode += "F"
	}
	if r, g, b, ok := rgb(st.Stroke); ok && st.StrokeWidth > 0 {
		p.SetDrawColor(r, g, b)
		p.SetLineWidth(st.StrokeWidth)
		mode += "D"
	}
	if mode == "FD" {
		return "DF"
	}
	return mode
}

func fontStyle(weight string) string {
	if w, err := strconv.Atoi(weight); err == nil && w >= 600 || weight == "bold" {
		return "B"
	}
	return ""
}

func scale(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// rgb parses #rgb and #rrggbb colors.
func rgb(hex string) (r, g, b int, ok bool) {
	h := strings.TrimPrefix(hex, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 || !strings.HasPrefix(hex, "#") {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}
