package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/shape"
	"github.com/astromechza/collab-canvas/pkg/store"
)

func TestLoopRunsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLoop(4)
	go l.Run(ctx)

	var got []int
	for i := 0; i < 10; i++ {
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("order = %v", got)
		}
	}
	if len(got) != 10 {
		t.Errorf("ran %d tasks, want 10", len(got))
	}
}

func TestLoopStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop(0)
	stopped := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped
	l.Post(func() { t.Errorf("task ran after stop") })
	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("err = %v, want ErrLoopStopped", err)
	}
}

func TestLoopPostLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLoop(1)

	runs := 0
	for i := 0; i < 5; i++ {
		l.PostLatest(func() { runs++ })
	}
	go l.Run(ctx)
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatal(err)
	}
	if runs != 1 {
		t.Errorf("runs = %d, want pending posts folded into 1", runs)
	}

	// posting from the loop with a full queue must not deadlock
	err := l.Do(ctx, func() {
		l.Post(func() {})
		l.PostLatest(func() { runs++ })
	})
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		done := false
		_ = l.Do(ctx, func() { done = runs == 2 })
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("PostLatest task from the loop never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Two machines on their own loops, sharing state only through automerge
// sync, end up with the same canvas.
func TestMachinesConvergeThroughSync(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type peer struct {
		store *store.Automerge
		scene *canvas.Scene
		loop  *Loop
		m     *Machine
	}
	seed, err := store.NewBoard()
	if err != nil {
		t.Fatal(err)
	}
	saved := seed.Save()

	wg := new(sync.WaitGroup)
	newPeer := func() *peer {
		doc, err := automerge.Load(saved)
		if err != nil {
			t.Fatal(err)
		}
		p := &peer{store: store.NewAutomerge(doc, nil), scene: canvas.NewScene(400, 400), loop: NewLoop(16)}
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.loop.Run(ctx)
		}()
		_ = p.loop.Do(ctx, func() {
			p.m = NewMachine(p.scene, p.store, WithScheduler(p.loop.PostLatest))
		})
		return p
	}
	a, b := newPeer(), newPeer()

	_ = a.loop.Do(ctx, func() {
		a.m.SetTool(ToolRectangle)
		a.m.PointerDown(shape.Point{X: 10, Y: 10})
		a.m.PointerUp(shape.Point{X: 100, Y: 80})
	})
	_ = b.loop.Do(ctx, func() {
		b.m.DropImage("https://example.invalid/a.png", 100, 50, shape.Point{X: 200, Y: 200})
	})

	sa, sb := automerge.NewSyncState(a.store.Doc()), automerge.NewSyncState(b.store.Doc())
	if err := exchange(sa, sb); err != nil {
		t.Fatal(err)
	}
	a.store.Refresh()
	b.store.Refresh()

	ids := func(p *peer) map[string]bool {
		out := map[string]bool{}
		_ = p.loop.Do(ctx, func() {
			for _, o := range p.scene.Objects() {
				out[o.ID()] = true
			}
		})
		return out
	}
	ia, ib := ids(a), ids(b)
	if len(ia) != 2 || len(ib) != 2 {
		t.Fatalf("canvases have %d and %d objects, want 2", len(ia), len(ib))
	}
	for id := range ia {
		if !ib[id] {
			t.Errorf("%s missing on the second canvas", id)
		}
	}

	_ = a.loop.Do(ctx, func() { a.m.Close() })
	_ = b.loop.Do(ctx, func() { b.m.Close() })
	cancel()
	wg.Wait()
}

func exchange(a, b *automerge.SyncState) error {
	for more := true; more; {
		more = false
		for _, pair := range [][2]*automerge.SyncState{{a, b}, {b, a}} {
			for {
				msg, valid := pair[0].GenerateMessage()
				if !valid {
					break
				}
				more = true
				if _, err := pair[1].ReceiveMessage(msg.Bytes()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
