package shape

import (
	"fmt"
	"slices"
)

// Serialize converts a live shape into its record. The same instance state
// always produces an Equal record.
func Serialize(s Shape) (Record, error) {
	switch v := s.(type) {
	case *Rect:
		return serializeRect(v), nil
	case *Triangle:
		return serializeTriangle(v), nil
	case *Ellipse:
		return serializeEllipse(v), nil
	case *Line:
		return serializeLine(v), nil
	case *Path:
		return serializePath(v), nil
	case *Text:
		return serializeText(v), nil
	case *Image:
		return serializeImage(v), nil
	default:
		return Record{}, fmt.Errorf("%w: %T", ErrUnknownKind, s)
	}
}

// Deserialize builds a fresh live shape from a record, dispatching on Kind.
func Deserialize(r Record) (Shape, error) {
	switch r.Kind {
	case KindRect:
		return deserializeRect(r), nil
	case KindTriangle:
		return deserializeTriangle(r), nil
	case KindEllipse:
		return deserializeEllipse(r), nil
	case KindLine:
		return deserializeLine(r), nil
	case KindPath:
		return deserializePath(r), nil
	case KindText:
		return deserializeText(r), nil
	case KindImage:
		return deserializeImage(r), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
}

// Clone returns an independent copy of s.
func Clone(s Shape) (Shape, error) {
	r, err := Serialize(s)
	if err != nil {
		return nil, err
	}
	return Deserialize(r)
}

func baseRecord(b *Base, k Kind) Record {
	return Record{
		ObjectID:    b.ObjectID,
		Kind:        k,
		Fill:        b.Paint.Fill,
		Stroke:      b.Paint.Stroke,
		StrokeWidth: b.Paint.StrokeWidth,
		Angle:       b.Paint.Angle,
		ScaleX:      b.Paint.ScaleX,
		ScaleY:      b.Paint.ScaleY,
	}
}

func baseShape(r Record) Base {
	return Base{
		ObjectID: r.ObjectID,
		Paint: Style{
			Fill:        r.Fill,
			Stroke:      r.Stroke,
			StrokeWidth: r.StrokeWidth,
			Angle:       r.Angle,
			ScaleX:      r.ScaleX,
			ScaleY:      r.ScaleY,
		},
	}
}

func serializeRect(v *Rect) Record {
	r := baseRecord(&v.Base, KindRect)
	r.Left, r.Top, r.Width, r.Height = v.Left, v.Top, v.Width, v.Height
	return r
}

func deserializeRect(r Record) *Rect {
	return &Rect{Base: baseShape(r), Left: r.Left, Top: r.Top, Width: r.Width, Height: r.Height}
}

func serializeTriangle(v *Triangle) Record {
	r := baseRecord(&v.Base, KindTriangle)
	r.Left, r.Top, r.Width, r.Height = v.Left, v.Top, v.Width, v.Height
	return r
}

func deserializeTriangle(r Record) *Triangle {
	return &Triangle{Base: baseShape(r), Left: r.Left, Top: r.Top, Width: r.Width, Height: r.Height}
}

func serializeEllipse(v *Ellipse) Record {
	r := baseRecord(&v.Base, KindEllipse)
	r.Left, r.Top, r.RX, r.RY = v.Left, v.Top, v.RX, v.RY
	return r
}

func deserializeEllipse(r Record) *Ellipse {
	return &Ellipse{Base: baseShape(r), Left: r.Left, Top: r.Top, RX: r.RX, RY: r.RY}
}

func serializeLine(v *Line) Record {
	r := baseRecord(&v.Base, KindLine)
	r.X1, r.Y1, r.X2, r.Y2 = v.X1, v.Y1, v.X2, v.Y2
	return r
}

func deserializeLine(r Record) *Line {
	return &Line{Base: baseShape(r), X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2}
}

func serializePath(v *Path) Record {
	r := baseRecord(&v.Base, KindPath)
	r.Points = slices.Clone(v.Points)
	return r
}

func deserializePath(r Record) *Path {
	return &Path{Base: baseShape(r), Points: slices.Clone(r.Points)}
}

func serializeText(v *Text) Record {
	r := baseRecord(&v.Base, KindText)
	r.Left, r.Top = v.Left, v.Top
	r.Text, r.FontFamily, r.FontSize, r.FontWeight = v.Text, v.FontFamily, v.FontSize, v.FontWeight
	return r
}

func deserializeText(r Record) *Text {
	return &Text{
		Base:       baseShape(r),
		Left:       r.Left,
		Top:        r.Top,
		Text:       r.Text,
		FontFamily: r.FontFamily,
		FontSize:   r.FontSize,
		FontWeight: r.FontWeight,
	}
}

func serializeImage(v *Image) Record {
	r := baseRecord(&v.Base, KindImage)
	r.Left, r.Top, r.Width, r.Height, r.Src = v.Left, v.Top, v.Width, v.Height, v.Src
	return r
}

func deserializeImage(r Record) *Image {
	return &Image{Base: baseShape(r), Left: r.Left, Top: r.Top, Width: r.Width, Height: r.Height, Src: r.Src}
}
