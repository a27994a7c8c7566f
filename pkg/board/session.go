package board

import (
	"github.com/astromechza/collab-canvas/pkg/shape"
)

type State int

const (
	Idle State = iota
	Drawing
	TextEditing
	TransformingSelection
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case TextEditing:
		return "text-editing"
	case TransformingSelection:
		return "transforming-selection"
	}
	return "unknown"
}

// Session is all the local interaction state of one client. None of it is
// ever written to the store.
type Session struct {
	State State
	Tool  Tool

	// Ephemeral is the shape being drawn, on the canvas but not stored.
	Ephemeral shape.Shape
	anchor    shape.Point

	// Selection is the id of the active object to restore after the canvas
	// is rebuilt.
	Selection string
	// Editing is the id of the text object in edit mode.
	Editing string
	// Transforming is the id of the object being moved or scaled.
	Transforming string

	// dragging is the id of an object being dragged with the select tool,
	// grab is the pointer offset from its origin.
	dragging string
	grab     shape.Point
	moved    bool

	Attributes Attributes
	Clipboard  *shape.Record
}

func newSession() Session {
	return Session{
		State:      Idle,
		Tool:       ToolSelect,
		Attributes: defaultAttributes(),
	}
}

// untouchable reports whether the reconciler must leave id alone because a
// local interaction owns it.
func (s *Session) untouchable(id string) bool {
	if id == "" {
		return false
	}
	if s.Ephemeral != nil && s.Ephemeral.ID() == id {
		return true
	}
	return s.Transforming == id || s.dragging == id
}
