package shape

import (
	"errors"
	"testing"
)

func sampleShapes() []Shape {
	rect := NewRect(Point{X: 10, Y: 20})
	rect.SetID("rect-1")
	rect.Width, rect.Height = 90, 70
	rect.Paint.Angle = 15
	rect.Paint.ScaleX = 1.5

	tri := NewTriangle(Point{X: 5, Y: 5})
	tri.SetID("tri-1")
	tri.Width, tri.Height = 30, 40

	ell := NewEllipse(Point{X: 1, Y: 2})
	ell.SetID("ell-1")
	ell.RX, ell.RY = 12, 8
	ell.Paint.Fill = "#ff0000"

	line := NewLine(Point{X: 100, Y: 100})
	line.SetID("line-1")
	line.X2, line.Y2 = 40, 160

	path := NewPath(Point{X: 0, Y: 0})
	path.SetID("path-1")
	path.Points = append(path.Points, Point{X: 3, Y: 4}, Point{X: 8, Y: 2})

	text := NewText(Point{X: 50, Y: 60})
	text.SetID("text-1")
	text.Text = "hello"
	text.FontWeight = "700"

	img := NewImage(Point{X: 7, Y: 9}, "https://example.com/cat.png", 400, 300)
	img.SetID("img-1")
	img.Paint.ScaleX, img.Paint.ScaleY = 0.5, 0.5

	return []Shape{rect, tri, ell, line, path, text, img}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range sampleShapes() {
		t.Run(string(s.Kind()), func(t *testing.T) {
			rec, err := Serialize(s)
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			if rec.ObjectID != s.ID() {
				t.Errorf("ObjectID = %q, want %q", rec.ObjectID, s.ID())
			}
			if rec.Kind != s.Kind() {
				t.Errorf("Kind = %q, want %q", rec.Kind, s.Kind())
			}
			back, err := Deserialize(rec)
			if err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			again, err := Serialize(back)
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			if !rec.Equal(again) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", again, rec)
			}
			if Bounds(back) != Bounds(s) {
				t.Errorf("Bounds = %+v, want %+v", Bounds(back), Bounds(s))
			}
		})
	}
}

func TestSerializeDeterministic(t *testing.T) {
	for _, s := range sampleShapes() {
		a, _ := Serialize(s)
		b, _ := Serialize(s)
		if !a.Equal(b) {
			t.Errorf("%s: serialize not deterministic", s.Kind())
		}
	}
}

func TestSerializeDoesNotAlias(t *testing.T) {
	path := NewPath(Point{X: 1, Y: 1})
	path.Points = append(path.Points, Point{X: 2, Y: 2})
	rec, _ := Serialize(path)
	path.Points[0].X = 99
	if rec.Points[0].X != 1 {
		t.Errorf("record shares points with the live shape")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	for _, s := range sampleShapes() {
		rec, _ := Serialize(s)
		raw, err := rec.Marshal()
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		back, err := Unmarshal(raw)
		if err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if !back.Equal(rec) {
			t.Errorf("%s: json round trip mismatch: %s", s.Kind(), raw)
		}
	}
}

func TestDeserializeUnknownKind(t *testing.T) {
	_, err := Deserialize(Record{ObjectID: "x", Kind: "hexagon"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
	if _, err := Serialize(nil); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Serialize(nil) err = %v, want ErrUnknownKind", err)
	}
}

func TestBounds(t *testing.T) {
	tests := []struct {
		name string
		s    Shape
		want Box
	}{
		{"scaled rect", &Rect{Base: Base{Paint: Style{ScaleX: 2, ScaleY: 1}}, Left: 1, Top: 2, Width: 10, Height: 5}, Box{1, 2, 20, 5}},
		{"unset scale", &Rect{Left: 0, Top: 0, Width: 10, Height: 5}, Box{0, 0, 10, 5}},
		{"ellipse", &Ellipse{Left: 10, Top: 10, RX: 5, RY: 3}, Box{10, 10, 10, 6}},
		{"reversed line", &Line{X1: 50, Y1: 40, X2: 10, Y2: 20}, Box{10, 20, 40, 20}},
		{"path", &Path{Points: []Point{{X: 3, Y: 9}, {X: 1, Y: 4}, {X: 7, Y: 5}}}, Box{1, 4, 6, 5}},
	}
	for _, tt := range tests {
		if got := Bounds(tt.s); got != tt.want {
			t.Errorf("%s: Bounds = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestMoveTo(t *testing.T) {
	line := &Line{X1: 10, Y1: 10, X2: 30, Y2: 0}
	line.MoveTo(Point{X: 0, Y: 0})
	if line.X1 != 0 || line.Y1 != 10 || line.X2 != 20 || line.Y2 != 0 {
		t.Errorf("line after move = %+v", line)
	}

	path := &Path{Points: []Point{{X: 5, Y: 5}, {X: 10, Y: 8}}}
	path.MoveTo(Point{X: 0, Y: 1})
	if got := path.Origin(); got != (Point{X: 0, Y: 1}) {
		t.Errorf("path origin = %+v", got)
	}
	if path.Points[1] != (Point{X: 5, Y: 4}) {
		t.Errorf("path second point = %+v", path.Points[1])
	}
}

func TestRecordEqual(t *testing.T) {
	a := Record{ObjectID: "a", Kind: KindPath, Points: []Point{{X: 1, Y: 2}}}
	b := a.Clone()
	if !a.Equal(b) {
		t.Fatalf("clone not equal")
	}
	b.Points[0].X = 5
	if a.Equal(b) {
		t.Errorf("records with different points reported equal")
	}
	if a.Points[0].X != 1 {
		t.Errorf("clone aliases points")
	}
	empty := Record{ObjectID: "a", Kind: KindPath, Points: []Point{}}
	none := Record{ObjectID: "a", Kind: KindPath}
	if !empty.Equal(none) {
		t.Errorf("empty and nil points should be equal")
	}
}
