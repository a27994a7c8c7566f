package board

import (
	"log/slog"

	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/shape"
	"github.com/astromechza/collab-canvas/pkg/store"
)

// Reconciler rewrites a canvas to match a store snapshot. The store is
// always authoritative; local canvas state is never trusted.
type Reconciler struct {
	canvas canvas.Canvas
	store  store.Store
	log    *slog.Logger
}

func NewReconciler(c canvas.Canvas, st store.Store, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{canvas: c, store: st, log: log}
}

// Reconcile brings the canvas in line with the store and restores the
// session selection. It returns the number of canvas mutations, which is
// zero when the canvas already matches.
func (r *Reconciler) Reconcile(sess *Session) int {
	if r.canvas == nil || r.canvas.Disposed() {
		return 0
	}
	entries := r.store.Entries()
	want := make(map[string]bool, len(entries))
	changes := 0

	for _, e := range entries {
		want[e.ID] = true
		if sess.untouchable(e.ID) {
			continue
		}
		next, err := shape.Deserialize(e.Record)
		if err != nil {
			r.log.Warn("skipping undecodable shape", "id", e.ID, "kind", e.Record.Kind, "err", err)
			continue
		}
		next.SetID(e.ID)
		current, onCanvas := r.canvas.Get(e.ID)
		if onCanvas && sameState(current, next) {
			continue
		}
		if onCanvas {
			r.canvas.Replace(next)
		} else {
			r.canvas.Add(next)
		}
		changes++
	}

	for _, o := range r.canvas.Objects() {
		if want[o.ID()] || sess.untouchable(o.ID()) {
			continue
		}
		r.canvas.Remove(o.ID())
		changes++
	}

	if sess.Selection != "" {
		if _, ok := r.canvas.Get(sess.Selection); ok {
			if a, ok := r.canvas.Active(); !ok || a.ID() != sess.Selection {
				r.canvas.SetActive(sess.Selection)
				changes++
			}
		} else {
			sess.Selection = ""
			r.canvas.DiscardActive()
		}
	}
	if sess.Editing != "" && !want[sess.Editing] {
		sess.Editing = ""
	}

	if changes > 0 {
		r.log.Debug("reconciled canvas", "changes", changes, "shapes", len(entries))
		r.canvas.RequestRender()
	}
	return changes
}

// sameState compares canonical records, so fields a kind does not carry
// never count as a difference.
func sameState(a, b shape.Shape) bool {
	ra, err := shape.Serialize(a)
	if err != nil {
		return false
	}
	rb, err := shape.Serialize(b)
	if err != nil {
		return false
	}
	return ra.Equal(rb)
}
