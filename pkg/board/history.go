package board

import (
	"fmt"
	"log/slog"

	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/shape"
	"github.com/astromechza/collab-canvas/pkg/store"
)

// PasteOffset is how far a pasted copy lands from its source.
const PasteOffset = 20

// History turns user intents into store mutations of one user-visible
// action each. Undo and redo are the store's own history.
type History struct {
	store  store.Store
	canvas canvas.Canvas
	engine *Engine
	log    *slog.Logger
}

func NewHistory(st store.Store, c canvas.Canvas, e *Engine, log *slog.Logger) *History {
	if log == nil {
		log = slog.Default()
	}
	return &History{store: st, canvas: c, engine: e, log: log}
}

func (h *History) Undo() (bool, error) {
	ok, err := h.store.Undo()
	if err != nil {
		return false, fmt.Errorf("failed to undo: %w", err)
	}
	return ok, nil
}

func (h *History) Redo() (bool, error) {
	ok, err := h.store.Redo()
	if err != nil {
		return false, fmt.Errorf("failed to redo: %w", err)
	}
	return ok, nil
}

// Delete removes the active object from the canvas and the store. It
// reports false when nothing is selected.
func (h *History) Delete(sess *Session) (bool, error) {
	id := sess.Selection
	if a, ok := h.canvas.Active(); ok {
		id = a.ID()
	}
	if id == "" {
		return false, nil
	}
	h.canvas.Remove(id)
	sess.Selection = ""
	if sess.Editing == id {
		sess.Editing = ""
	}
	if err := h.engine.DeleteShape(id); err != nil {
		return false, err
	}
	h.canvas.RequestRender()
	return true, nil
}

// Clear deletes every shape from the store and the canvas as one intent.
func (h *History) Clear(sess *Session) error {
	empty, err := h.engine.DeleteAllShapes()
	if err != nil {
		return err
	}
	if !empty {
		h.log.Warn("store not empty after clear", "size", h.store.Size())
	}
	h.canvas.Clear()
	sess.Selection = ""
	sess.Editing = ""
	sess.Transforming = ""
	h.canvas.RequestRender()
	return nil
}

// Copy puts the active object's record on the session clipboard.
func (h *History) Copy(sess *Session) bool {
	a, ok := h.canvas.Active()
	if !ok {
		return false
	}
	rec, err := shape.Serialize(a)
	if err != nil {
		h.log.Warn("failed to copy shape", "id", a.ID(), "err", err)
		return false
	}
	sess.Clipboard = &rec
	return true
}

// Paste writes a copy of the clipboard under a fresh id, offset from the
// last paste, and selects it.
func (h *History) Paste(sess *Session) (string, error) {
	if sess.Clipboard == nil {
		return "", nil
	}
	obj, err := shape.Deserialize(*sess.Clipboard)
	if err != nil {
		return "", fmt.Errorf("failed to paste: %w", err)
	}
	o := obj.Origin()
	obj.MoveTo(shape.Point{X: o.X + PasteOffset, Y: o.Y + PasteOffset})
	obj.SetID(shape.NewID())

	rec, err := shape.Serialize(obj)
	if err != nil {
		return "", fmt.Errorf("failed to paste: %w", err)
	}
	h.canvas.Add(obj)
	if err := h.engine.UpsertShape(&rec); err != nil {
		h.canvas.Remove(obj.ID())
		return "", err
	}
	sess.Clipboard = &rec
	sess.Selection = obj.ID()
	h.canvas.SetActive(obj.ID())
	h.canvas.RequestRender()
	return obj.ID(), nil
}
