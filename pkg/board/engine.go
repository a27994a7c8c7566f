package board

import (
	"fmt"
	"log/slog"

	"github.com/astromechza/collab-canvas/pkg/shape"
	"github.com/astromechza/collab-canvas/pkg/store"
)

// Engine is the only write path from a board into the store. Every call is
// exactly one store mutation, so one history step.
type Engine struct {
	store store.Store
	log   *slog.Logger
}

func NewEngine(st store.Store, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: st, log: log}
}

// UpsertShape writes rec under its object id. A nil record is ignored.
func (e *Engine) UpsertShape(rec *shape.Record) error {
	if rec == nil {
		return nil
	}
	if err := e.store.Set(*rec); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", rec.ObjectID, err)
	}
	e.log.Debug("upserted shape", "id", rec.ObjectID, "kind", rec.Kind)
	return nil
}

// UpsertObject serializes a live shape and upserts it.
func (e *Engine) UpsertObject(s shape.Shape) error {
	if s == nil {
		return nil
	}
	rec, err := shape.Serialize(s)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", s.ID(), err)
	}
	return e.UpsertShape(&rec)
}

// DeleteShape removes id if present.
func (e *Engine) DeleteShape(id string) error {
	if err := e.store.Delete(id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	e.log.Debug("deleted shape", "id", id)
	return nil
}

// DeleteAllShapes empties the store in one mutation and reports whether it
// is empty afterwards.
func (e *Engine) DeleteAllShapes() (bool, error) {
	if e.store.Size() == 0 {
		return true, nil
	}
	err := e.store.Mutate(func(tx store.Tx) error {
		for _, k := range tx.Keys() {
			tx.Delete(k)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete all shapes: %w", err)
	}
	e.log.Debug("deleted all shapes")
	return e.store.Size() == 0, nil
}
