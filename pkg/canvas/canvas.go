// Package canvas holds the local scene graph that a board renders into:
// live shape instances, the active object, pixel size and the viewport
// transform. It knows nothing about the store.
package canvas

import (
	"slices"

	"github.com/gogpu/gg"

	"github.com/astromechza/collab-canvas/pkg/shape"
)

// Canvas is the rendering surface the board drives. Object order is
// paint order; the last object is on top.
type Canvas interface {
	Add(s shape.Shape)
	Remove(id string) bool
	// Replace swaps the object with the same id in place, keeping its
	// paint order. It reports false if no such object exists.
	Replace(s shape.Shape) bool
	Get(id string) (shape.Shape, bool)
	Objects() []shape.Shape
	Clear()

	SetActive(id string)
	Active() (shape.Shape, bool)
	DiscardActive()

	Size() (w, h int)
	SetSize(w, h int)
	ViewportTransform() gg.Matrix
	SetViewportTransform(m gg.Matrix)

	// HitTest returns the topmost object whose bounds contain p, in canvas
	// coordinates.
	HitTest(p shape.Point) (shape.Shape, bool)
	RequestRender()
	Dispose()
	Disposed() bool
}

// Scene is the in-memory Canvas used by the headless client, the relay
// renderer and tests.
type Scene struct {
	objects   []shape.Shape
	active    string
	width     int
	height    int
	transform gg.Matrix
	disposed  bool

	revision uint64
	renders  uint64
	onRender func(*Scene)
}

var _ Canvas = (*Scene)(nil)

type SceneOption func(*Scene)

// WithRenderHook calls fn for every RequestRender.
func WithRenderHook(fn func(*Scene)) SceneOption {
	return func(s *Scene) {
		s.onRender = fn
	}
}

func NewScene(width, height int, opts ...SceneOption) *Scene {
	s := &Scene{width: width, height: height, transform: gg.Identity()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Revision counts mutations of the object set and of the active object.
// Re-selecting the active object or replacing nothing does not count.
func (s *Scene) Revision() uint64 {
	return s.revision
}

// Renders counts RequestRender calls.
func (s *Scene) Renders() uint64 {
	return s.renders
}

func (s *Scene) index(id string) int {
	return slices.IndexFunc(s.objects, func(o shape.Shape) bool { return o.ID() == id })
}

func (s *Scene) Add(o shape.Shape) {
	if s.disposed || o == nil {
		return
	}
	if i := s.index(o.ID()); i >= 0 && o.ID() != "" {
		s.objects[i] = o
	} else {
		s.objects = append(s.objects, o)
	}
	s.revision++
}

func (s *Scene) Remove(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.objects = slices.Delete(s.objects, i, i+1)
	if s.active == id {
		s.active = ""
	}
	s.revision++
	return true
}

func (s *Scene) Replace(o shape.Shape) bool {
	i := s.index(o.ID())
	if i < 0 {
		return false
	}
	s.objects[i] = o
	s.revision++
	return true
}

func (s *Scene) Get(id string) (shape.Shape, bool) {
	if i := s.index(id); i >= 0 {
		return s.objects[i], true
	}
	return nil, false
}

func (s *Scene) Objects() []shape.Shape {
	return slices.Clone(s.objects)
}

func (s *Scene) Clear() {
	if len(s.objects) == 0 && s.active == "" {
		return
	}
	s.objects = nil
	s.active = ""
	s.revision++
}

// SetActive selects the object with the given id. Unknown ids clear the
// selection.
func (s *Scene) SetActive(id string) {
	if _, ok := s.Get(id); !ok {
		id = ""
	}
	if id == s.active {
		return
	}
	s.active = id
	s.revision++
}

func (s *Scene) Active() (shape.Shape, bool) {
	if s.active == "" {
		return nil, false
	}
	return s.Get(s.active)
}

func (s *Scene) DiscardActive() {
	s.SetActive("")
}

func (s *Scene) Size() (w, h int) {
	return s.width, s.height
}

func (s *Scene) SetSize(w, h int) {
	s.width, s.height = w, h
}

func (s *Scene) ViewportTransform() gg.Matrix {
	return s.transform
}

func (s *Scene) SetViewportTransform(m gg.Matrix) {
	s.transform = m
}

func (s *Scene) HitTest(p shape.Point) (shape.Shape, bool) {
	for i := len(s.objects) - 1; i >= 0; i-- {
		if shape.Bounds(s.objects[i]).Contains(p) {
			return s.objects[i], true
		}
	}
	return nil, false
}

func (s *Scene) RequestRender() {
	if s.disposed {
		return
	}
	s.renders++
	if s.onRender != nil {
		s.onRender(s)
	}
}

func (s *Scene) Dispose() {
	s.objects = nil
	s.active = ""
	s.disposed = true
}

func (s *Scene) Disposed() bool {
	return s.disposed
}
