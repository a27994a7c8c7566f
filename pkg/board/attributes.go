package board

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/astromechza/collab-canvas/pkg/shape"
)

// Attributes is the editable view of the selected object shown by the
// attributes panel. Values are display strings.
type Attributes struct {
	Width      string
	Height     string
	FontSize   string
	FontFamily string
	FontWeight string
	Fill       string
	Stroke     string
}

type Attr string

const (
	AttrWidth      Attr = "width"
	AttrHeight     Attr = "height"
	AttrFontSize   Attr = "fontSize"
	AttrFontFamily Attr = "fontFamily"
	AttrFontWeight Attr = "fontWeight"
	AttrFill       Attr = "fill"
	AttrStroke     Attr = "stroke"
)

var ErrUnsupportedAttr = errors.New("attribute not supported by this shape")

func defaultAttributes() Attributes {
	return Attributes{Fill: shape.DefaultFill, Stroke: shape.DefaultStroke}
}

func formatSize(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}

func captureAttributes(s shape.Shape) Attributes {
	w, h := shape.ScaledSize(s)
	st := s.Style()
	a := Attributes{
		Width:  formatSize(w),
		Height: formatSize(h),
		Fill:   st.Fill,
		Stroke: st.Stroke,
	}
	if t, ok := s.(*shape.Text); ok {
		a.FontSize = strconv.FormatFloat(t.FontSize, 'f', -1, 64)
		a.FontFamily = t.FontFamily
		a.FontWeight = t.FontWeight
	}
	return a
}

// set stores one attribute value in the panel view.
func (a *Attributes) set(attr Attr, value string) {
	switch attr {
	case AttrWidth:
		a.Width = value
	case AttrHeight:
		a.Height = value
	case AttrFontSize:
		a.FontSize = value
	case AttrFontFamily:
		a.FontFamily = value
	case AttrFontWeight:
		a.FontWeight = value
	case AttrFill:
		a.Fill = value
	case AttrStroke:
		a.Stroke = value
	}
}

// applyAttribute writes one attribute onto a live shape. Width and height
// are applied through the scale factors so every kind can be resized.
func applyAttribute(s shape.Shape, attr Attr, value string) error {
	st := s.Style()
	switch attr {
	case AttrFill:
		st.Fill = value
		return nil
	case AttrStroke:
		st.Stroke = value
		return nil
	case AttrWidth, AttrHeight:
		v, err := parsePositive(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", attr, err)
		}
		w, h := s.Size()
		if attr == AttrWidth {
			if w == 0 {
				return fmt.Errorf("invalid %s: %w", attr, ErrUnsupportedAttr)
			}
			st.ScaleX = v / w
		} else {
			if h == 0 {
				return fmt.Errorf("invalid %s: %w", attr, ErrUnsupportedAttr)
			}
			st.ScaleY = v / h
		}
		return nil
	}

	t, ok := s.(*shape.Text)
	if !ok {
		return fmt.Errorf("%s on %s: %w", attr, s.Kind(), ErrUnsupportedAttr)
	}
	switch attr {
	case AttrFontSize:
		v, err := parsePositive(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", attr, err)
		}
		t.FontSize = v
	case AttrFontFamily:
		t.FontFamily = value
	case AttrFontWeight:
		t.FontWeight = value
	default:
		return fmt.Errorf("unknown attribute %q: %w", attr, ErrUnsupportedAttr)
	}
	return nil
}

func parsePositive(value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%q is not a positive size", value)
	}
	return v, nil
}
