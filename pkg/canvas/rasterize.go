package canvas

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/astromechza/collab-canvas/pkg/shape"
)

var (
	fontOnce   sync.Once
	fontSource *text.FontSource
	fontErr    error
)

func defaultFont() (*text.FontSource, error) {
	fontOnce.Do(func() {
		fontSource, fontErr = text.NewFontSource(goregular.TTF)
	})
	return fontSource, fontErr
}

// Rasterize paints the scene at its pixel size through its viewport
// transform and writes it to w as PNG.
func Rasterize(w io.Writer, s *Scene) error {
	width, height := s.Size()
	return RasterizeShapes(w, width, height, s.ViewportTransform(), s.Objects())
}

// RasterizeShapes paints shapes in order onto a white width x height
// image and writes it to w as PNG.
func RasterizeShapes(w io.Writer, width, height int, view gg.Matrix, shapes []shape.Shape) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("failed to rasterize: invalid size %dx%d", width, height)
	}
	dc := gg.NewContext(width, height)
	defer dc.Close()
	dc.ClearWithColor(gg.White)
	for _, s := range shapes {
		if err := paint(dc, view, s); err != nil {
			return fmt.Errorf("failed to paint %s %s: %w", s.Kind(), s.ID(), err)
		}
	}
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

func paint(dc *gg.Context, view gg.Matrix, s shape.Shape) error {
	st := s.Style()
	o := s.Origin()

	dc.Push()
	defer dc.Pop()
	dc.SetTransform(view)
	if st.Angle != 0 {
		dc.RotateAbout(st.Angle*math.Pi/180, o.X, o.Y)
	}
	if sx, sy := scaleOf(st); sx != 1 || sy != 1 {
		dc.Translate(o.X, o.Y)
		dc.Scale(sx, sy)
		dc.Translate(-o.X, -o.Y)
	}

	switch v := s.(type) {
	case *shape.Rect:
		dc.DrawRectangle(v.Left, v.Top, v.Width, v.Height)
		return fillStroke(dc, st)
	case *shape.Triangle:
		dc.MoveTo(v.Left+v.Width/2, v.Top)
		dc.LineTo(v.Left+v.Width, v.Top+v.Height)
		dc.LineTo(v.Left, v.Top+v.Height)
		dc.ClosePath()
		return fillStroke(dc, st)
	case *shape.Ellipse:
		c := v.Center()
		dc.DrawEllipse(c.X, c.Y, v.RX, v.RY)
		return fillStroke(dc, st)
	case *shape.Line:
		dc.DrawLine(v.X1, v.Y1, v.X2, v.Y2)
		return stroke(dc, st)
	case *shape.Path:
		if len(v.Points) < 2 {
			return nil
		}
		dc.MoveTo(v.Points[0].X, v.Points[0].Y)
		for _, p := range v.Points[1:] {
			dc.LineTo(p.X, p.Y)
		}
		dc.SetLineCap(gg.LineCapRound)
		return stroke(dc, st)
	case *shape.Text:
		return paintText(dc, st, v)
	case *shape.Image:
		return paintImage(dc, v)
	default:
		return shape.ErrUnknownKind
	}
}

func scaleOf(st *shape.Style) (float64, float64) {
	sx, sy := st.ScaleX, st.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	return sx, sy
}

func fillStroke(dc *gg.Context, st *shape.Style) error {
	if st.Fill != "" {
		dc.SetHexColor(st.Fill)
		if err := dc.FillPreserve(); err != nil {
			return err
		}
	}
	return stroke(dc, st)
}

func stroke(dc *gg.Context, st *shape.Style) error {
	if st.Stroke == "" || st.StrokeWidth <= 0 {
		dc.ClearPath()
		return nil
	}
	dc.SetHexColor(st.Stroke)
	dc.SetLineWidth(st.StrokeWidth)
	return dc.Stroke()
}

// paintText places glyphs in screen space since text drawing does not
// follow the current matrix. Rotation is not applied to text.
func paintText(dc *gg.Context, st *shape.Style, t *shape.Text) error {
	if t.Text == "" || st.Fill == "" {
		return nil
	}
	src, err := defaultFont()
	if err != nil {
		return fmt.Errorf("failed to load font: %w", err)
	}
	m := dc.GetTransform()
	size := t.FontSize * math.Hypot(m.A, m.D)
	if size <= 0 {
		return nil
	}
	face := src.Face(size)
	x, y := dc.TransformPoint(t.Left, t.Top)
	dc.Identity()
	dc.SetFont(face)
	dc.SetHexColor(st.Fill)
	dc.DrawString(t.Text, x, y+face.Metrics().Ascent)
	return nil
}

// paintImage draws inline data URIs. Anything else is an opaque reference
// and is drawn as an outlined placeholder.
func paintImage(dc *gg.Context, im *shape.Image) error {
	img, err := decodeDataURI(im.Src)
	if err != nil {
		slog.Debug("drawing image placeholder", "id", im.ObjectID, "err", err)
		dc.DrawRectangle(im.Left, im.Top, im.Width, im.Height)
		dc.SetHexColor("#999999")
		dc.SetLineWidth(1)
		return dc.Stroke()
	}
	m := dc.GetTransform()
	x, y := dc.TransformPoint(im.Left, im.Top)
	dc.Identity()
	dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
		X:         x,
		Y:         y,
		DstWidth:  im.Width * math.Hypot(m.A, m.D),
		DstHeight: im.Height * math.Hypot(m.B, m.E),
	})
	return nil
}

func decodeDataURI(src string) (image.Image, error) {
	const marker = ";base64,"
	if !strings.HasPrefix(src, "data:image/") {
		return nil, fmt.Errorf("not an inline image")
	}
	i := strings.Index(src, marker)
	if i < 0 {
		return nil, fmt.Errorf("data uri is not base64")
	}
	raw, err := base64.StdEncoding.DecodeString(src[i+len(marker):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode data uri: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
