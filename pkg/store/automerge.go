package store

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/collab-canvas/pkg/shape"
)

// ShapesKey is the root map key under which records are stored, one JSON
// string per object id.
const ShapesKey = "shapes"

// Automerge is a Store backed by an automerge document, so it can be
// replicated with automerge sync messages. Each record is stored as an
// opaque JSON string, which keeps last-writer-wins per shape: concurrent
// writes to the same key resolve to one whole record, never a field mix.
//
// Entries are ordered by object id.
type Automerge struct {
	*journal
	be *automergeBackend
}

var _ Store = (*Automerge)(nil)

// NewBoard returns a document holding an empty shapes map. Replicas of one
// board must all start from this document (or a save of it): replicas that
// each create the map on their first write hold conflicting maps under the
// same key, and automerge keeps only one of them.
func NewBoard() (*automerge.Doc, error) {
	doc := automerge.New()
	if _, err := EnsureShapes(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// EnsureShapes adds and commits an empty shapes map if doc has none. It
// reports whether it changed the document.
func EnsureShapes(doc *automerge.Doc) (bool, error) {
	v, err := doc.Path(ShapesKey).Get()
	if err != nil {
		return false, fmt.Errorf("failed to get shapes: %w", err)
	}
	if v.Kind() == automerge.KindMap {
		return false, nil
	}
	if err := doc.Path(ShapesKey).Set(automerge.NewMap()); err != nil {
		return false, fmt.Errorf("failed to create shapes: %w", err)
	}
	if _, err := doc.Commit("create shapes"); err != nil {
		return false, fmt.Errorf("failed to commit shapes: %w", err)
	}
	return true, nil
}

func NewAutomerge(doc *automerge.Doc, log *slog.Logger) *Automerge {
	be := &automergeBackend{doc: doc}
	be.heads = headsKey(doc.Heads())
	return &Automerge{journal: newJournal(be, log), be: be}
}

// Doc exposes the underlying document for sync and persistence.
func (a *Automerge) Doc() *automerge.Doc {
	return a.be.doc
}

// Save returns the whole document in automerge's binary format.
func (a *Automerge) Save() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.be.doc.Save()
}

// Fork returns an independent copy of the document.
func (a *Automerge) Fork() (*automerge.Doc, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.be.doc.Fork()
}

// Locker is held by the store while it touches the document. Sync peers
// take it around sync messages.
func (a *Automerge) Locker() sync.Locker {
	return &a.mu
}

// Refresh notifies subscribers if the document changed since the last
// local commit or refresh, which is how remote changes merged by a sync
// state become visible. It reports whether anything changed.
func (a *Automerge) Refresh() bool {
	a.mu.Lock()
	h := headsKey(a.be.doc.Heads())
	changed := h != a.be.heads
	a.be.heads = h
	a.mu.Unlock()
	if changed {
		a.log.Debug("document changed remotely", "heads", h)
		a.notify()
	}
	return changed
}

// Merge folds another document into this one and notifies on change.
func (a *Automerge) Merge(other *automerge.Doc) error {
	a.mu.Lock()
	_, err := a.be.doc.Merge(other)
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to merge: %w", err)
	}
	a.Refresh()
	return nil
}

func headsKey(heads []automerge.ChangeHash) string {
	parts := make([]string, 0, len(heads))
	for _, h := range heads {
		parts = append(parts, h.String())
	}
	return strings.Join(parts, ",")
}

type automergeBackend struct {
	doc   *automerge.Doc
	heads string
}

func (a *automergeBackend) get(id string) (shape.Record, bool, error) {
	v, err := a.doc.Path(ShapesKey, id).Get()
	if err != nil {
		return shape.Record{}, false, fmt.Errorf("failed to get %s: %w", id, err)
	}
	if v.Kind() == automerge.KindVoid {
		return shape.Record{}, false, nil
	}
	raw, err := automerge.As[string](v)
	if err != nil {
		return shape.Record{}, false, fmt.Errorf("failed to read %s: %w", id, err)
	}
	rec, err := shape.Unmarshal([]byte(raw))
	if err != nil {
		return shape.Record{}, false, err
	}
	return rec, true, nil
}

func (a *automergeBackend) put(rec shape.Record) error {
	raw, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", rec.ObjectID, err)
	}
	return a.doc.Path(ShapesKey, rec.ObjectID).Set(string(raw))
}

func (a *automergeBackend) remove(id string) error {
	v, err := a.doc.Path(ShapesKey, id).Get()
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", id, err)
	}
	if v.Kind() == automerge.KindVoid {
		return nil
	}
	return a.doc.Path(ShapesKey, id).Delete()
}

// keys treats a document without a shapes map as empty.
func (a *automergeBackend) keys() ([]string, error) {
	v, err := a.doc.Path(ShapesKey).Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get shapes: %w", err)
	}
	if v.Kind() != automerge.KindMap {
		return nil, nil
	}
	return v.Map().Keys()
}

func (a *automergeBackend) commit(message string) error {
	if _, err := a.doc.Commit(message, automerge.CommitOptions{AllowEmpty: true}); err != nil {
		return err
	}
	a.heads = headsKey(a.doc.Heads())
	return nil
}
