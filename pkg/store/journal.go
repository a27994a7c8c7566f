package store

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/astromechza/collab-canvas/pkg/shape"
)

// backend is the raw key space a journal writes into. It is only called
// with the journal lock held.
type backend interface {
	get(id string) (shape.Record, bool, error)
	put(rec shape.Record) error
	remove(id string) error
	keys() ([]string, error)
	commit(message string) error
}

// change is one key's transition inside a mutation. A nil record means the
// key is absent.
type change struct {
	id     string
	before *shape.Record
	after  *shape.Record
}

type changeSet []change

type write struct {
	id  string
	rec *shape.Record
}

func (s changeSet) forward() []write {
	out := make([]write, 0, len(s))
	for _, c := range s {
		out = append(out, write{id: c.id, rec: c.after})
	}
	return out
}

func (s changeSet) backward() []write {
	out := make([]write, 0, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		out = append(out, write{id: s[i].id, rec: s[i].before})
	}
	return out
}

// journal implements Store on top of a backend, adding transactions,
// local history and subscriptions.
type journal struct {
	mu       sync.Mutex
	be       backend
	undo     []changeSet
	redo     []changeSet
	revision uint64
	log      *slog.Logger

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

func newJournal(be backend, log *slog.Logger) *journal {
	if log == nil {
		log = slog.Default()
	}
	return &journal{be: be, log: log, subs: make(map[int]func())}
}

func (j *journal) Get(id string) (shape.Record, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok, err := j.be.get(id)
	if err != nil {
		j.log.Warn("failed to read shape, treating as absent", "id", id, "err", err)
		return shape.Record{}, false
	}
	return rec, ok
}

func (j *journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	keys, err := j.be.keys()
	if err != nil {
		j.log.Warn("failed to list shapes, treating as empty", "err", err)
		return nil
	}
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		rec, ok, err := j.be.get(k)
		if err != nil {
			j.log.Warn("failed to read shape, skipping", "id", k, "err", err)
			continue
		}
		if ok {
			out = append(out, Entry{ID: k, Record: rec})
		}
	}
	return out
}

func (j *journal) Size() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	keys, err := j.be.keys()
	if err != nil {
		return 0
	}
	return len(keys)
}

// Revision counts committed mutations, including undo and redo steps.
func (j *journal) Revision() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.revision
}

func (j *journal) Set(rec shape.Record) error {
	return j.Mutate(func(tx Tx) error {
		return tx.Set(rec)
	})
}

func (j *journal) Delete(id string) error {
	return j.Mutate(func(tx Tx) error {
		tx.Delete(id)
		return nil
	})
}

func (j *journal) Mutate(fn func(tx Tx) error) error {
	set, err := j.mutate(fn)
	if err != nil {
		return err
	}
	if len(set) > 0 {
		j.notify()
	}
	return nil
}

// mutate runs fn under the lock. fn only stages writes, so if it panics
// the lock is released and nothing has been applied.
func (j *journal) mutate(fn func(tx Tx) error) (changeSet, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	set, err := j.run(fn)
	if err != nil || len(set) == 0 {
		return nil, err
	}
	j.undo = append(j.undo, set)
	j.redo = nil
	return set, nil
}

func (j *journal) run(fn func(tx Tx) error) (changeSet, error) {
	t := &tx{be: j.be, staged: make(map[string]*shape.Record)}
	if err := fn(t); err != nil {
		return nil, err
	}
	if t.err != nil {
		return nil, t.err
	}
	set, err := t.changes()
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, nil
	}
	if err := j.apply(set, false, "mutate"); err != nil {
		return nil, err
	}
	return set, nil
}

// apply writes a change set forwards, or backwards when reverse is set,
// and commits it. On a failed write the already-applied part is reverted.
func (j *journal) apply(set changeSet, reverse bool, message string) error {
	writes, reverts := set.forward(), set.backward()
	if reverse {
		writes, reverts = reverts, writes
	}
	for i, w := range writes {
		if err := j.write(w); err != nil {
			for _, r := range reverts[len(reverts)-i:] {
				if rerr := j.write(r); rerr != nil {
					j.log.Error("failed to revert partial mutation", "id", r.id, "err", rerr)
				}
			}
			return fmt.Errorf("failed to write %s: %w", w.id, err)
		}
	}
	if err := j.be.commit(fmt.Sprintf("%s %d", message, len(set))); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	j.revision++
	return nil
}

func (j *journal) write(w write) error {
	if w.rec == nil {
		return j.be.remove(w.id)
	}
	return j.be.put(*w.rec)
}

func (j *journal) Undo() (bool, error) {
	j.mu.Lock()
	if len(j.undo) == 0 {
		j.mu.Unlock()
		return false, nil
	}
	set := j.undo[len(j.undo)-1]
	if err := j.apply(set, true, "undo"); err != nil {
		j.mu.Unlock()
		return false, err
	}
	j.undo = j.undo[:len(j.undo)-1]
	j.redo = append(j.redo, set)
	j.mu.Unlock()
	j.notify()
	return true, nil
}

func (j *journal) Redo() (bool, error) {
	j.mu.Lock()
	if len(j.redo) == 0 {
		j.mu.Unlock()
		return false, nil
	}
	set := j.redo[len(j.redo)-1]
	if err := j.apply(set, false, "redo"); err != nil {
		j.mu.Unlock()
		return false, err
	}
	j.redo = j.redo[:len(j.redo)-1]
	j.undo = append(j.undo, set)
	j.mu.Unlock()
	j.notify()
	return true, nil
}

func (j *journal) CanUndo() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.undo) > 0
}

func (j *journal) CanRedo() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.redo) > 0
}

func (j *journal) Subscribe(fn func()) func() {
	j.subMu.Lock()
	defer j.subMu.Unlock()
	id := j.nextSub
	j.nextSub++
	j.subs[id] = fn
	return func() {
		j.subMu.Lock()
		defer j.subMu.Unlock()
		delete(j.subs, id)
	}
}

// notify runs subscribers in registration order. It must be called
// without the journal lock so subscribers can read the store.
func (j *journal) notify() {
	j.subMu.Lock()
	ids := make([]int, 0, len(j.subs))
	for id := range j.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, j.subs[id])
	}
	j.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type tx struct {
	be     backend
	staged map[string]*shape.Record
	order  []string
	err    error
}

func (t *tx) touch(id string) {
	if _, ok := t.staged[id]; !ok {
		t.order = append(t.order, id)
	}
}

func (t *tx) Get(id string) (shape.Record, bool) {
	if rec, ok := t.staged[id]; ok {
		if rec == nil {
			return shape.Record{}, false
		}
		return rec.Clone(), true
	}
	rec, ok, err := t.be.get(id)
	if err != nil {
		t.err = err
		return shape.Record{}, false
	}
	return rec, ok
}

func (t *tx) Set(rec shape.Record) error {
	if rec.ObjectID == "" {
		return ErrMissingID
	}
	c := rec.Clone()
	t.touch(rec.ObjectID)
	t.staged[rec.ObjectID] = &c
	return nil
}

func (t *tx) Delete(id string) {
	t.touch(id)
	t.staged[id] = nil
}

func (t *tx) Keys() []string {
	base, err := t.be.keys()
	if err != nil {
		t.err = err
		return nil
	}
	out := make([]string, 0, len(base)+len(t.order))
	seen := make(map[string]bool, len(base))
	for _, k := range base {
		seen[k] = true
		if rec, ok := t.staged[k]; ok && rec == nil {
			continue
		}
		out = append(out, k)
	}
	for _, k := range t.order {
		if !seen[k] && t.staged[k] != nil {
			out = append(out, k)
		}
	}
	return out
}

func (t *tx) Size() int {
	return len(t.Keys())
}

// changes resolves the staged writes against the backend, dropping the
// ones that would not change anything.
func (t *tx) changes() (changeSet, error) {
	var set changeSet
	for _, id := range t.order {
		before, ok, err := t.be.get(id)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", id, err)
		}
		after := t.staged[id]
		switch {
		case after == nil && !ok:
			continue
		case after != nil && ok && before.Equal(*after):
			continue
		}
		c := change{id: id, after: after}
		if ok {
			b := before
			c.before = &b
		}
		set = append(set, c)
	}
	return set, nil
}
