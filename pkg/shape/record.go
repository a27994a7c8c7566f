// Package shape holds the shared shape record and the codec that converts
// canvas shapes to and from it.
package shape

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/google/uuid"
)

type Kind string

const (
	KindRect     Kind = "rect"
	KindTriangle Kind = "triangle"
	KindEllipse  Kind = "ellipse"
	KindLine     Kind = "line"
	KindPath     Kind = "path"
	KindText     Kind = "text"
	KindImage    Kind = "image"
)

var ErrUnknownKind = errors.New("unknown shape kind")

func (k Kind) Valid() bool {
	switch k {
	case KindRect, KindTriangle, KindEllipse, KindLine, KindPath, KindText, KindImage:
		return true
	}
	return false
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Record is the flat, storable form of one shape. Only the fields that
// belong to Kind are populated; the rest stay at their zero value.
type Record struct {
	ObjectID string `json:"objectId"`
	Kind     Kind   `json:"kind"`

	Left   float64 `json:"left,omitempty"`
	Top    float64 `json:"top,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	RX     float64 `json:"rx,omitempty"`
	RY     float64 `json:"ry,omitempty"`
	X1     float64 `json:"x1,omitempty"`
	Y1     float64 `json:"y1,omitempty"`
	X2     float64 `json:"x2,omitempty"`
	Y2     float64 `json:"y2,omitempty"`
	Points []Point `json:"points,omitempty"`

	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Angle       float64 `json:"angle,omitempty"`
	ScaleX      float64 `json:"scaleX,omitempty"`
	ScaleY      float64 `json:"scaleY,omitempty"`

	Text       string  `json:"text,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontWeight string  `json:"fontWeight,omitempty"`

	Src string `json:"src,omitempty"`
}

// NewID returns a fresh object id.
func NewID() string {
	return uuid.NewString()
}

// Equal reports whether two records hold the same fields.
func (r Record) Equal(other Record) bool {
	a, b := r, other
	a.Points, b.Points = nil, nil
	return reflect.DeepEqual(a, b) && slices.Equal(r.Points, other.Points)
}

// Clone returns a copy that shares no memory with r.
func (r Record) Clone() Record {
	out := r
	out.Points = slices.Clone(r.Points)
	return out
}

func (r Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

func Unmarshal(raw []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return r, nil
}
