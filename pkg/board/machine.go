// Package board is the interaction core of a collaborative canvas. A
// Machine turns pointer and keyboard events into shapes, commits finished
// shapes through an Engine, and keeps the local canvas in step with the
// shared store through a Reconciler.
//
// A Machine is not safe for concurrent use. Run every call, including
// store notifications, on one goroutine (see Loop).
package board

import (
	"log/slog"

	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/shape"
	"github.com/astromechza/collab-canvas/pkg/store"
)

// UI is the surrounding toolbar and attributes panel.
type UI interface {
	SetActiveTool(t Tool)
	SetAttributes(a Attributes)
}

type nopUI struct{}

func (nopUI) SetActiveTool(Tool)       {}
func (nopUI) SetAttributes(Attributes) {}

type Machine struct {
	canvas     canvas.Canvas
	store      store.Store
	engine     *Engine
	reconciler *Reconciler
	history    *History
	viewport   *canvas.Viewport
	ui         UI
	log        *slog.Logger
	schedule   func(func())

	sess        Session
	unsubscribe func()
	closed      bool

	// busy is set while a handler runs; notifications that arrive meanwhile
	// are folded into one reconcile when it returns.
	busy  bool
	dirty bool
}

type Option func(*Machine)

func WithLogger(log *slog.Logger) Option {
	return func(m *Machine) {
		m.log = log
	}
}

func WithUI(ui UI) Option {
	return func(m *Machine) {
		m.ui = ui
	}
}

// WithScheduler routes store notifications through schedule, typically
// Loop.Post, so they run on the machine's goroutine.
func WithScheduler(schedule func(func())) Option {
	return func(m *Machine) {
		m.schedule = schedule
	}
}

// NewMachine subscribes to st and reconciles c with its current content.
func NewMachine(c canvas.Canvas, st store.Store, opts ...Option) *Machine {
	m := &Machine{
		canvas: c,
		store:  st,
		ui:     nopUI{},
		log:    slog.Default(),
		sess:   newSession(),
	}
	for _, o := range opts {
		o(m)
	}
	m.engine = NewEngine(st, m.log)
	m.reconciler = NewReconciler(c, st, m.log)
	m.history = NewHistory(st, c, m.engine, m.log)
	m.viewport = canvas.NewViewport(c)
	m.unsubscribe = st.Subscribe(func() {
		if m.schedule != nil {
			m.schedule(m.storeChanged)
			return
		}
		m.storeChanged()
	})
	m.reconcile()
	return m
}

func (m *Machine) Engine() *Engine            { return m.engine }
func (m *Machine) History() *History          { return m.history }
func (m *Machine) Viewport() *canvas.Viewport { return m.viewport }
func (m *Machine) Canvas() canvas.Canvas      { return m.canvas }
func (m *Machine) State() State               { return m.sess.State }
func (m *Machine) Tool() Tool                 { return m.sess.Tool }
func (m *Machine) Selection() string          { return m.sess.Selection }
func (m *Machine) Attributes() Attributes     { return m.sess.Attributes }
func (m *Machine) Ephemeral() shape.Shape     { return m.sess.Ephemeral }
func (m *Machine) Clipboard() *shape.Record   { return m.sess.Clipboard }

// Shapes lists the stored records for a shape-list panel.
func (m *Machine) Shapes() []shape.Record {
	entries := m.store.Entries()
	out := make([]shape.Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Record)
	}
	return out
}

func (m *Machine) storeChanged() {
	if m.closed {
		return
	}
	if m.busy {
		m.dirty = true
		return
	}
	m.reconcile()
}

func (m *Machine) reconcile() int {
	n := m.reconciler.Reconcile(&m.sess)
	if m.sess.State == TextEditing && m.sess.Editing == "" {
		m.sess.State = Idle
	}
	return n
}

// enter marks a handler as running. Call the returned func on exit.
func (m *Machine) enter() func() {
	m.busy = true
	return func() {
		m.busy = false
		if m.dirty && !m.closed {
			m.dirty = false
			m.reconcile()
		}
	}
}

// Reconcile forces a reconciliation pass and returns its canvas mutations.
func (m *Machine) Reconcile() int {
	if m.closed {
		return 0
	}
	return m.reconcile()
}

func (m *Machine) setTool(t Tool) {
	m.sess.Tool = t
	m.ui.SetActiveTool(t)
}

func (m *Machine) setAttributes(a Attributes) {
	m.sess.Attributes = a
	m.ui.SetAttributes(a)
}

// commit writes the current record of a live shape and logs failures.
func (m *Machine) commit(s shape.Shape) bool {
	if err := m.engine.UpsertObject(s); err != nil {
		m.log.Error("failed to commit shape", "id", s.ID(), "err", err)
		return false
	}
	return true
}

// cancelDraw drops the ephemeral shape without a write.
func (m *Machine) cancelDraw() {
	if m.sess.Ephemeral != nil {
		m.canvas.Remove(m.sess.Ephemeral.ID())
		m.log.Debug("cancelled draw", "kind", m.sess.Ephemeral.Kind())
		m.sess.Ephemeral = nil
		m.canvas.RequestRender()
	}
	if m.sess.State == Drawing {
		m.sess.State = Idle
	}
}

func (m *Machine) PointerDown(p shape.Point) {
	if m.closed {
		return
	}
	defer m.enter()()
	if m.sess.State == Drawing {
		m.cancelDraw()
	}
	if !m.sess.Tool.Drawable() {
		if m.sess.Tool == ToolSelect {
			m.selectAt(p)
		}
		return
	}
	s := newShape(m.sess.Tool, p)
	s.SetID(shape.NewID())
	m.canvas.Add(s)
	m.sess.Ephemeral = s
	m.sess.anchor = p
	m.sess.State = Drawing
	m.canvas.RequestRender()
}

// selectAt does the hit testing a rendering library would do for the
// select tool and starts a drag on the hit object.
func (m *Machine) selectAt(p shape.Point) {
	hit, ok := m.canvas.HitTest(p)
	if !ok {
		if m.sess.Selection != "" {
			m.selectionCleared()
		}
		return
	}
	if hit.ID() != m.sess.Selection {
		m.selectionCreated(hit.ID())
	}
	o := hit.Origin()
	m.sess.dragging = hit.ID()
	m.sess.grab = shape.Point{X: p.X - o.X, Y: p.Y - o.Y}
	m.sess.moved = false
}

func (m *Machine) PointerMove(p shape.Point) {
	if m.closed {
		return
	}
	defer m.enter()()
	if m.sess.dragging != "" {
		if obj, ok := m.canvas.Get(m.sess.dragging); ok {
			obj.MoveTo(shape.Point{X: p.X - m.sess.grab.X, Y: p.Y - m.sess.grab.Y})
			m.sess.moved = true
			m.objectMoving(obj)
		}
		return
	}
	if m.sess.State != Drawing || m.sess.Ephemeral == nil {
		return
	}
	drag(m.sess.Ephemeral, m.sess.anchor, p)
	m.canvas.RequestRender()
}

func (m *Machine) PointerUp(p shape.Point) {
	if m.closed {
		return
	}
	defer m.enter()()
	if m.sess.dragging != "" {
		m.endDrag()
		return
	}
	if m.sess.State != Drawing || m.sess.Ephemeral == nil {
		return
	}
	s := m.sess.Ephemeral
	drag(s, m.sess.anchor, p)
	if degenerate(s) {
		m.cancelDraw()
		return
	}
	if s.ID() == "" {
		s.SetID(shape.NewID())
	}
	m.sess.Ephemeral = nil
	m.sess.State = Idle
	if !m.commit(s) {
		m.canvas.Remove(s.ID())
	}
	if !m.sess.Tool.Sticky() {
		m.setTool(ToolSelect)
	}
	m.canvas.RequestRender()
}

func (m *Machine) endDrag() {
	id, moved := m.sess.dragging, m.sess.moved
	m.sess.dragging = ""
	m.sess.moved = false
	if moved {
		m.objectModified(id)
	}
}

// PointerLeave abandons an in-progress draw. A drag in progress is
// finished where it is.
func (m *Machine) PointerLeave() {
	if m.closed {
		return
	}
	defer m.enter()()
	if m.sess.dragging != "" {
		m.endDrag()
	}
	if m.sess.State == Drawing {
		m.cancelDraw()
	}
}

// PathCreated commits a finished freeform stroke delivered in one piece.
func (m *Machine) PathCreated(points []shape.Point) {
	if m.closed || len(points) < 2 {
		return
	}
	defer m.enter()()
	if m.sess.State == Drawing {
		m.cancelDraw()
	}
	p := shape.NewPath(points[0])
	p.Points = append(p.Points[:0], points...)
	p.SetID(shape.NewID())
	m.canvas.Add(p)
	if !m.commit(p) {
		m.canvas.Remove(p.ID())
	}
	m.canvas.RequestRender()
}

// ObjectModified commits the full current record of a finished transform
// or edit.
func (m *Machine) ObjectModified(id string) {
	if m.closed {
		return
	}
	defer m.enter()()
	m.objectModified(id)
}

func (m *Machine) objectModified(id string) {
	if m.sess.Transforming == id {
		m.sess.Transforming = ""
	}
	if m.sess.State == TransformingSelection {
		m.sess.State = Idle
	}
	obj, ok := m.canvas.Get(id)
	if !ok {
		return
	}
	m.commit(obj)
}

// ObjectMoving keeps a dragged object inside the canvas. It never writes.
func (m *Machine) ObjectMoving(id string) {
	if m.closed {
		return
	}
	defer m.enter()()
	if obj, ok := m.canvas.Get(id); ok {
		m.objectMoving(obj)
	}
}

func (m *Machine) objectMoving(obj shape.Shape) {
	cw, ch := m.canvas.Size()
	w, h := shape.ScaledSize(obj)
	o := obj.Origin()
	left := min(max(0, o.X), float64(cw)-w)
	top := min(max(0, o.Y), float64(ch)-h)
	if left != o.X || top != o.Y {
		obj.MoveTo(shape.Point{X: left, Y: top})
	}
	m.sess.Transforming = obj.ID()
	if m.sess.State != TextEditing {
		m.sess.State = TransformingSelection
	}
	m.canvas.RequestRender()
}

func (m *Machine) SelectionCreated(id string) {
	if m.closed {
		return
	}
	defer m.enter()()
	m.selectionCreated(id)
}

func (m *Machine) selectionCreated(id string) {
	obj, ok := m.canvas.Get(id)
	if !ok {
		return
	}
	m.sess.Selection = id
	m.canvas.SetActive(id)
	if _, isText := obj.(*shape.Text); isText && m.sess.Editing == id {
		return
	}
	m.setAttributes(captureAttributes(obj))
}

func (m *Machine) SelectionCleared() {
	if m.closed {
		return
	}
	defer m.enter()()
	m.selectionCleared()
}

// selectionCleared also drops any unfinished move or scale, so the object
// goes back to following the store.
func (m *Machine) selectionCleared() {
	m.sess.Selection = ""
	m.sess.Transforming = ""
	m.sess.dragging = ""
	m.sess.moved = false
	if m.sess.State == TransformingSelection {
		m.sess.State = Idle
	}
	m.canvas.DiscardActive()
}

// ObjectScaling refreshes the displayed size of an object being scaled.
func (m *Machine) ObjectScaling(id string) {
	if m.closed {
		return
	}
	defer m.enter()()
	obj, ok := m.canvas.Get(id)
	if !ok {
		return
	}
	w, h := shape.ScaledSize(obj)
	a := m.sess.Attributes
	a.Width, a.Height = formatSize(w), formatSize(h)
	m.setAttributes(a)
	m.sess.Transforming = id
	if m.sess.State != TextEditing {
		m.sess.State = TransformingSelection
	}
}

func (m *Machine) TextEditingEntered(id string) {
	if m.closed {
		return
	}
	defer m.enter()()
	obj, ok := m.canvas.Get(id)
	if !ok {
		return
	}
	if _, isText := obj.(*shape.Text); !isText {
		return
	}
	if m.sess.State == Drawing {
		m.cancelDraw()
	}
	m.sess.Editing = id
	m.sess.State = TextEditing
}

// TextChanged updates the text being edited locally. It is committed when
// editing ends.
func (m *Machine) TextChanged(id, text string) {
	if m.closed || m.sess.Editing != id {
		return
	}
	defer m.enter()()
	if obj, ok := m.canvas.Get(id); ok {
		if t, isText := obj.(*shape.Text); isText {
			t.Text = text
			m.canvas.RequestRender()
		}
	}
}

func (m *Machine) TextEditingExited(id string) {
	if m.closed || m.sess.Editing != id {
		return
	}
	defer m.enter()()
	m.sess.Editing = ""
	m.sess.State = Idle
	if obj, ok := m.canvas.Get(id); ok {
		m.commit(obj)
	}
}

// EditAttribute applies one attributes panel edit to the active object and
// commits it with a single write.
func (m *Machine) EditAttribute(attr Attr, value string) {
	if m.closed {
		return
	}
	defer m.enter()()
	obj, ok := m.canvas.Active()
	if !ok {
		return
	}
	if err := applyAttribute(obj, attr, value); err != nil {
		m.log.Warn("ignoring attribute edit", "id", obj.ID(), "attr", attr, "err", err)
		return
	}
	a := m.sess.Attributes
	a.set(attr, value)
	m.setAttributes(a)
	m.sess.Selection = obj.ID()
	m.commit(obj)
	m.canvas.RequestRender()
}

// SetTool switches the active tool. Action tools run their action and fall
// back to select.
func (m *Machine) SetTool(t Tool) {
	if m.closed {
		return
	}
	defer m.enter()()
	if m.sess.State == Drawing {
		m.cancelDraw()
	}
	switch t {
	case ToolDelete:
		if _, err := m.history.Delete(&m.sess); err != nil {
			m.log.Error("failed to delete shape", "err", err)
		}
		t = ToolSelect
	case ToolReset:
		if err := m.history.Clear(&m.sess); err != nil {
			m.log.Error("failed to reset board", "err", err)
		}
		t = ToolSelect
	case ToolImage, ToolComments:
		t = ToolSelect
	}
	m.setTool(t)
}

// ImageWidth is the displayed width of a dropped image.
const ImageWidth = 200

// DropImage places an image at p, scaled to ImageWidth, and commits it.
// It returns the new object id, or "" if the image has no size.
func (m *Machine) DropImage(src string, width, height float64, p shape.Point) string {
	if m.closed {
		return ""
	}
	defer m.enter()()
	if width <= 0 || height <= 0 {
		m.log.Warn("ignoring image without dimensions", "width", width, "height", height)
		return ""
	}
	if m.sess.State == Drawing {
		m.cancelDraw()
	}
	img := shape.NewImage(p, src, width, height)
	scale := ImageWidth / width
	img.Paint.ScaleX, img.Paint.ScaleY = scale, scale
	img.SetID(shape.NewID())
	m.canvas.Add(img)
	if !m.commit(img) {
		m.canvas.Remove(img.ID())
		return ""
	}
	m.canvas.RequestRender()
	return img.ID()
}

func (m *Machine) KeyDown(k KeyEvent) {
	if m.closed || m.canvas == nil || m.canvas.Disposed() {
		return
	}
	defer m.enter()()
	in := k.intent()
	if in == intentNone {
		return
	}
	// text editing owns the keyboard except for history
	if m.sess.State == TextEditing && in != intentUndo && in != intentRedo {
		return
	}
	if m.sess.State == Drawing {
		m.cancelDraw()
	}

	var err error
	switch in {
	case intentUndo:
		_, err = m.history.Undo()
	case intentRedo:
		_, err = m.history.Redo()
	case intentCopy:
		m.history.Copy(&m.sess)
	case intentCut:
		if m.history.Copy(&m.sess) {
			_, err = m.history.Delete(&m.sess)
		}
	case intentPaste:
		_, err = m.history.Paste(&m.sess)
	case intentDelete:
		_, err = m.history.Delete(&m.sess)
	}
	if err != nil {
		m.log.Error("failed to handle key", "key", k.Key, "err", err)
	}
}

func (m *Machine) Wheel(delta float64, at shape.Point) {
	if m.closed {
		return
	}
	m.viewport.Zoom(delta, at)
}

func (m *Machine) Resize(w, h int) {
	if m.closed {
		return
	}
	m.viewport.Resize(w, h)
}

// Close unsubscribes from the store and disposes of the canvas.
func (m *Machine) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.cancelDraw()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.canvas.Dispose()
}
