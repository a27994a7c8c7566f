package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/collab-canvas/pkg/board"
	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/persist"
	"github.com/astromechza/collab-canvas/pkg/shape"
	"github.com/astromechza/collab-canvas/pkg/store"
	"github.com/astromechza/collab-canvas/pkg/wire"
)

func newServer(t *testing.T) (*Server, *persist.Boards, *httptest.Server) {
	t.Helper()
	boards, err := persist.Open(filepath.Join(t.TempDir(), "relay.sqlite3"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = boards.Close() })
	s, err := New(context.Background(), boards, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.syncInterval = 20 * time.Millisecond
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return s, boards, srv
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, body
}

func TestSyncAndServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, boards, srv := newServer(t)

	code, raw := get(t, srv.URL+"/boards/team/latest")
	if code != http.StatusOK {
		t.Fatalf("latest status = %d", code)
	}
	doc, err := automerge.Load(raw)
	if err != nil {
		t.Fatal(err)
	}
	client := store.NewAutomerge(doc, nil)

	conn, err := wire.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/boards/team/sync")
	if err != nil {
		t.Fatal(err)
	}
	p := wire.NewPeer(conn, client.Doc(), wire.WithLock(client.Locker()), wire.WithInterval(20*time.Millisecond), wire.OnReceive(func() { client.Refresh() }))
	go func() { _ = p.Run(ctx) }()

	rec := shape.Record{ObjectID: "r", Kind: shape.KindRect, Left: 10, Top: 10, Width: 90, Height: 70, Fill: "#ff0000", Stroke: "#000000", StrokeWidth: 1, ScaleX: 1, ScaleY: 1}
	if err := client.Set(rec); err != nil {
		t.Fatal(err)
	}
	p.Wake()

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, body := get(t, srv.URL+"/boards/team/shapes")
		var got []shape.Record
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatal(err)
		}
		if len(got) == 1 && got[0].Equal(rec) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("relay never saw the shape, has %+v", got)
		}
		time.Sleep(20 * time.Millisecond)
	}

	code, png := get(t, srv.URL+"/boards/team/render.png?width=200&height=100")
	if code != http.StatusOK || !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("render.png status %d, not a png", code)
	}
	if code, _ := get(t, srv.URL+"/boards/team/render.png?width=-1"); code != http.StatusBadRequest {
		t.Errorf("bad width status = %d, want 400", code)
	}
	code, pdf := get(t, srv.URL+"/boards/team/export.pdf")
	if code != http.StatusOK || !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Errorf("export.pdf status %d, not a pdf", code)
	}
	code, svg := get(t, srv.URL+"/boards/team/history.svg")
	if code != http.StatusOK || !bytes.Contains(svg, []byte("<svg")) {
		t.Errorf("history.svg status %d, not svg", code)
	}

	if err := s.Backup(ctx); err != nil {
		t.Fatal(err)
	}
	saved, err := boards.Load(ctx, "team")
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := store.NewAutomerge(saved, nil).Get("r"); !ok || !got.Equal(rec) {
		t.Errorf("backup holds %+v, %v", got, ok)
	}
}

func TestServerPushesToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _, srv := newServer(t)

	live, err := s.Board(ctx, "default")
	if err != nil {
		t.Fatal(err)
	}
	_, raw := get(t, srv.URL+"/boards/default/latest")
	doc, err := automerge.Load(raw)
	if err != nil {
		t.Fatal(err)
	}
	client := store.NewAutomerge(doc, nil)
	conn, err := wire.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/boards/default/sync")
	if err != nil {
		t.Fatal(err)
	}
	// a long interval so only the relay's wake-up can deliver in time
	p := wire.NewPeer(conn, client.Doc(), wire.WithLock(client.Locker()), wire.WithInterval(time.Hour), wire.OnReceive(func() { client.Refresh() }))
	go func() { _ = p.Run(ctx) }()

	changed := make(chan struct{}, 16)
	client.Subscribe(func() { changed <- struct{}{} })
	if err := live.Set(shape.Record{ObjectID: "x", Kind: shape.KindLine, X2: 5, Y2: 5}); err != nil {
		t.Fatal(err)
	}
	timeout := time.After(5 * time.Second)
	for {
		if _, ok := client.Get("x"); ok {
			return
		}
		select {
		case <-changed:
		case <-timeout:
			t.Fatal("client never received the relay's write")
		}
	}
}

// Two clients that each start from /latest on a board neither has seen
// before draw one shape each, and both canvases end up with both.
func TestTwoClientsDrawOnFreshBoard(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, _, srv := newServer(t)

	type client struct {
		store *store.Automerge
		scene *canvas.Scene
		loop  *board.Loop
		m     *board.Machine
	}
	wg := new(sync.WaitGroup)
	connect := func() *client {
		code, raw := get(t, srv.URL+"/boards/fresh/latest")
		if code != http.StatusOK {
			t.Fatalf("latest status = %d", code)
		}
		doc, err := automerge.Load(raw)
		if err != nil {
			t.Fatal(err)
		}
		c := &client{store: store.NewAutomerge(doc, nil), scene: canvas.NewScene(400, 400), loop: board.NewLoop(16)}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.loop.Run(ctx)
		}()
		if err := c.loop.Do(ctx, func() {
			c.m = board.NewMachine(c.scene, c.store, board.WithScheduler(c.loop.PostLatest))
		}); err != nil {
			t.Fatal(err)
		}

		conn, err := wire.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/boards/fresh/sync")
		if err != nil {
			t.Fatal(err)
		}
		p := wire.NewPeer(conn, c.store.Doc(), wire.WithLock(c.store.Locker()), wire.WithInterval(20*time.Millisecond), wire.OnReceive(func() { c.store.Refresh() }))
		c.store.Subscribe(p.Wake)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Run(ctx)
		}()
		return c
	}
	a, b := connect(), connect()

	draw := func(c *client, from, to shape.Point) {
		if err := c.loop.Do(ctx, func() {
			c.m.SetTool(board.ToolRectangle)
			c.m.PointerDown(from)
			c.m.PointerUp(to)
			c.m.SetTool(board.ToolSelect)
		}); err != nil {
			t.Fatal(err)
		}
	}
	draw(a, shape.Point{X: 10, Y: 10}, shape.Point{X: 100, Y: 80})
	draw(b, shape.Point{X: 200, Y: 200}, shape.Point{X: 300, Y: 260})

	objects := func(c *client) int {
		n := 0
		_ = c.loop.Do(ctx, func() { n = len(c.scene.Objects()) })
		return n
	}
	for {
		na, nb := objects(a), objects(b)
		if na == 2 && nb == 2 {
			break
		}
		if ctx.Err() != nil {
			t.Fatalf("canvases have %d and %d objects, want 2", na, nb)
		}
		time.Sleep(20 * time.Millisecond)
	}

	_ = a.loop.Do(ctx, func() { a.m.Close() })
	_ = b.loop.Do(ctx, func() { b.m.Close() })
	cancel()
	wg.Wait()
}
