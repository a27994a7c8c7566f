package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/collab-canvas/pkg/shape"
	"github.com/astromechza/collab-canvas/pkg/store"
)

func open(t *testing.T) *Boards {
	t.Helper()
	b, err := Open(filepath.Join(t.TempDir(), "boards.sqlite3"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	b := open(t)

	st := store.NewAutomerge(automerge.New(), nil)
	rec := shape.Record{ObjectID: "a", Kind: shape.KindEllipse, Left: 1, Top: 2, RX: 3, RY: 4, Fill: "#ff0000"}
	if err := st.Set(rec); err != nil {
		t.Fatal(err)
	}

	changed, err := b.Save(ctx, "team", st.Save())
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Errorf("first save reported no change")
	}
	if changed, _ := b.Save(ctx, "team", st.Save()); changed {
		t.Errorf("saving identical content reported a change")
	}

	doc, err := b.Load(ctx, "team")
	if err != nil {
		t.Fatal(err)
	}
	got, ok := store.NewAutomerge(doc, nil).Get("a")
	if !ok || !got.Equal(rec) {
		t.Errorf("loaded record = %+v, want %+v", got, rec)
	}
}

func TestEnsureAndLoadAll(t *testing.T) {
	ctx := context.Background()
	b := open(t)

	if _, err := b.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) = %v, want ErrNotFound", err)
	}
	for _, id := range []string{"default", "other", "default"} {
		if err := b.Ensure(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	all, err := b.LoadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("LoadAll returned %d boards, want 2", len(all))
	}
	if err := b.Delete(ctx, "other"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Load(ctx, "other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted board still loads: %v", err)
	}
}
