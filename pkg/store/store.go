// Package store provides the replicated shape map that every client writes
// through: an ordered objectId → shape.Record mapping with atomic
// mutations, change subscriptions and a local undo/redo history.
//
// Writes are last-writer-wins per key. A Set always replaces the whole
// record; there is no field merge.
package store

import (
	"errors"

	"github.com/astromechza/collab-canvas/pkg/shape"
)

var ErrMissingID = errors.New("record has no object id")

type Entry struct {
	ID     string
	Record shape.Record
}

// Tx is the transactional handle given to a Mutate function. Changes are
// staged and only become visible to other readers when the function
// returns nil.
type Tx interface {
	Get(id string) (shape.Record, bool)
	Set(rec shape.Record) error
	Delete(id string)
	Keys() []string
	Size() int
}

type Store interface {
	Get(id string) (shape.Record, bool)
	Entries() []Entry
	Size() int

	Set(rec shape.Record) error
	Delete(id string) error
	// Mutate runs fn as one atomic unit and one history step. If fn
	// returns an error nothing is applied.
	Mutate(fn func(tx Tx) error) error

	// Subscribe registers fn to be called after every change, local or
	// remote. The returned func removes the subscription.
	Subscribe(fn func()) (unsubscribe func())

	Undo() (bool, error)
	Redo() (bool, error)
	CanUndo() bool
	CanRedo() bool
}
