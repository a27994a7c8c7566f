package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/gogpu/gg"
	"github.com/google/uuid"

	"github.com/astromechza/collab-canvas/pkg/board"
	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/config"
	"github.com/astromechza/collab-canvas/pkg/discovery"
	"github.com/astromechza/collab-canvas/pkg/shape"
	"github.com/astromechza/collab-canvas/pkg/store"
	"github.com/astromechza/collab-canvas/pkg/wire"
)

const (
	canvasWidth  = 1280
	canvasHeight = 720
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.Logger())
	gg.SetLogger(slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := cfg.Addr
	if cfg.MDNS {
		relays, err := discovery.Browse(ctx, 3*time.Second)
		if err != nil {
			return err
		}
		if len(relays) == 0 {
			return fmt.Errorf("no relay found on the local network")
		}
		addr = relays[0].Addr
		slog.Info("discovered relay", "addr", addr, "boards", relays[0].Boards)
	}
	baseUrl, err := url.Parse("http://" + addr)
	if err != nil {
		return err
	}
	baseUrl = baseUrl.JoinPath("boards", cfg.Board)

	doc, err := fetchLatest(ctx, baseUrl)
	if err != nil {
		return err
	}
	if err := doc.SetActorID(strings.ReplaceAll(uuid.NewString(), "-", "")); err != nil {
		return fmt.Errorf("failed to set actor: %w", err)
	}
	slog.Info("established base doc", "heads", doc.Heads())

	st := store.NewAutomerge(doc, slog.Default())
	loop := board.NewLoop(64)
	scene := canvas.NewScene(canvasWidth, canvasHeight)
	c := &client{baseUrl: baseUrl, store: st, loop: loop, scene: scene}

	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()
	if err := loop.Do(ctx, func() {
		c.machine = board.NewMachine(scene, st, board.WithScheduler(loop.PostLatest), board.WithLogger(slog.Default()))
	}); err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.connectAndSyncContinuously(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.drawRandomlyContinuously(ctx)
	}()

	exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("Signal caught", "sig", sig)

	_ = loop.Do(context.Background(), func() {
		// snapshot before Close disposes of the scene
		c.snapshot()
		c.machine.Close()
	})
	cancel()
	wg.Wait()
	return nil
}

func fetchLatest(ctx context.Context, baseUrl *url.URL) (*automerge.Doc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseUrl.JoinPath("latest").String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body from get: %w", err)
	}
	doc, err := automerge.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load doc: %w", err)
	}
	return doc, nil
}

type client struct {
	baseUrl *url.URL
	store   *store.Automerge
	loop    *board.Loop
	scene   *canvas.Scene
	machine *board.Machine
}

func (c *client) connectAndSyncContinuously(ctx context.Context) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		if err := c.connectAndSync(ctx); err != nil {
			slog.Error("failed to sync", "err", err)
		} else {
			slog.Info("finished sync")
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			slog.Info("stopping scheduled sync")
			return
		}
	}
}

func (c *client) connectAndSync(ctx context.Context) error {
	u := *c.baseUrl.JoinPath("sync")
	u.Scheme = "ws"
	conn, err := wire.Dial(ctx, u.String())
	if err != nil {
		return err
	}
	defer conn.Close()
	p := wire.NewPeer(conn, c.store.Doc(),
		wire.WithLock(c.store.Locker()),
		wire.OnReceive(func() { c.store.Refresh() }),
	)
	// push local commits as soon as they are made
	unsubscribe := c.store.Subscribe(p.Wake)
	defer unsubscribe()
	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	return nil
}

var drawTools = []board.Tool{board.ToolRectangle, board.ToolTriangle, board.ToolEllipse, board.ToolLine, board.ToolFreeform}

// drawRandomlyContinuously drags out a random shape every few seconds,
// through the same events a pointer would produce.
func (c *client) drawRandomlyContinuously(ctx context.Context) {
	for {
		t := time.NewTimer(time.Second + time.Second*time.Duration(rand.Intn(5)))
		select {
		case <-t.C:
			if err := c.loop.Do(ctx, c.drawRandom); err != nil {
				slog.Error("failed to draw", "err", err)
			}
		case <-ctx.Done():
			t.Stop()
			slog.Info("stopping scheduled drawing")
			return
		}
	}
}

func (c *client) drawRandom() {
	m := c.machine
	from := shape.Point{X: rand.Float64() * canvasWidth, Y: rand.Float64() * canvasHeight}
	to := shape.Point{X: from.X + rand.Float64()*200 - 100, Y: from.Y + rand.Float64()*200 - 100}
	m.SetTool(drawTools[rand.Intn(len(drawTools))])
	m.PointerDown(from)
	m.PointerMove(shape.Point{X: (from.X + to.X) / 2, Y: (from.Y + to.Y) / 2})
	m.PointerUp(to)
	m.SetTool(board.ToolSelect)
	slog.Info("drew", "shapes", len(m.Shapes()), "heads", c.store.Doc().Heads())
}

func (c *client) snapshot() {
	tf := filepath.Join(os.TempDir(), c.store.Doc().ActorID()+".png")
	f, err := os.Create(tf)
	if err != nil {
		slog.Error("failed to snapshot", "err", err)
		return
	}
	defer f.Close()
	if err := canvas.Rasterize(f, c.scene); err != nil {
		slog.Error("failed to snapshot", "err", err)
		return
	}
	slog.Info("snapshot", "path", tf)
}
