package wire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/collab-canvas/pkg/shape"
	"github.com/astromechza/collab-canvas/pkg/store"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPeersConverge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seed, err := store.NewBoard()
	if err != nil {
		t.Fatal(err)
	}
	server := store.NewAutomerge(seed, nil)
	doc, err := automerge.Load(seed.Save())
	if err != nil {
		t.Fatal(err)
	}
	client := store.NewAutomerge(doc, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		p := NewPeer(conn, server.Doc(), WithLock(server.Locker()), WithInterval(20*time.Millisecond), OnReceive(func() { server.Refresh() }))
		_ = p.Run(ctx)
	}))
	defer srv.Close()

	conn, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatal(err)
	}
	p := NewPeer(conn, client.Doc(), WithLock(client.Locker()), WithInterval(20*time.Millisecond), OnReceive(func() { client.Refresh() }))
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	rec := shape.Record{ObjectID: "a", Kind: shape.KindRect, Left: 10, Top: 10, Width: 90, Height: 70}
	if err := client.Set(rec); err != nil {
		t.Fatal(err)
	}
	p.Wake()
	waitFor(t, "server to see the client's shape", func() bool {
		got, ok := server.Get("a")
		return ok && got.Equal(rec)
	})

	notified := make(chan struct{}, 8)
	client.Subscribe(func() { notified <- struct{}{} })
	if err := server.Delete("a"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "client to see the delete", func() bool {
		_, ok := client.Get("a")
		return !ok
	})
	select {
	case <-notified:
	case <-time.After(5 * time.Second):
		t.Fatal("client subscribers were not notified of the remote delete")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("peer did not stop")
	}
}
