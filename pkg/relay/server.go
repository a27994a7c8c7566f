// Package relay is the HTTP side of a canvas deployment: it holds one
// replicated document per board, syncs it with clients over websockets,
// serves renders and exports of it, and backs it up to sqlite.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/astromechza/collab-canvas/pkg/board"
	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/export"
	"github.com/astromechza/collab-canvas/pkg/persist"
	"github.com/astromechza/collab-canvas/pkg/shape"
	"github.com/astromechza/collab-canvas/pkg/store"
	"github.com/astromechza/collab-canvas/pkg/viz"
	"github.com/astromechza/collab-canvas/pkg/wire"
)

const (
	DefaultWidth  = 1280
	DefaultHeight = 720
	// MaxDimension bounds requested render sizes.
	MaxDimension = 8192
)

type Server struct {
	boards       *persist.Boards
	cache        *sync.Map
	log          *slog.Logger
	syncInterval time.Duration
}

type hub struct {
	store *store.Automerge
	mu    sync.Mutex
	peers map[*wire.Peer]struct{}
}

// newHub adds the shapes map to boards saved without one before any client
// can fetch them, so clients never create competing maps.
func newHub(id string, doc *automerge.Doc, log *slog.Logger) (*hub, error) {
	if added, err := store.EnsureShapes(doc); err != nil {
		return nil, fmt.Errorf("failed to prepare board %s: %w", id, err)
	} else if added {
		log.Info("added shapes map", "board", id)
	}
	h := &hub{store: store.NewAutomerge(doc, log), peers: make(map[*wire.Peer]struct{})}
	h.store.Subscribe(h.wakeAll)
	return h, nil
}

// wakeAll pushes a change to every connected client without waiting for
// their next tick.
func (h *hub) wakeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		p.Wake()
	}
}

func (h *hub) join(p *wire.Peer) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p] = struct{}{}
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.peers, p)
	}
}

// New loads every saved board into memory.
func New(ctx context.Context, boards *persist.Boards, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{boards: boards, cache: new(sync.Map), log: log, syncInterval: wire.DefaultInterval}
	saved, err := boards.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for id, doc := range saved {
		h, err := newHub(id, doc, log)
		if err != nil {
			return nil, err
		}
		s.cache.Store(id, h)
	}
	log.Info("loaded boards", "count", len(saved))
	return s, nil
}

// Board returns the live store of a board, creating the board if needed.
func (s *Server) Board(ctx context.Context, id string) (*store.Automerge, error) {
	h, err := s.hub(ctx, id)
	if err != nil {
		return nil, err
	}
	return h.store, nil
}

func (s *Server) hub(ctx context.Context, id string) (*hub, error) {
	if h, ok := s.cache.Load(id); ok {
		return h.(*hub), nil
	}
	if err := s.boards.Ensure(ctx, id); err != nil {
		return nil, err
	}
	doc, err := s.boards.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	fresh, err := newHub(id, doc, s.log)
	if err != nil {
		return nil, err
	}
	h, loaded := s.cache.LoadOrStore(id, fresh)
	if !loaded {
		s.log.Info("created board", "board", id)
	}
	return h.(*hub), nil
}

// Boards lists the ids of the boards in memory.
func (s *Server) Boards() []string {
	var out []string
	s.cache.Range(func(id, _ any) bool {
		out = append(out, id.(string))
		return true
	})
	return out
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			s.log.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Methods(http.MethodGet).Path("/boards/{board}/latest").HandlerFunc(s.getLatest)
	r.Methods(http.MethodGet).Path("/boards/{board}/sync").HandlerFunc(s.syncBoard)
	r.Methods(http.MethodGet).Path("/boards/{board}/shapes").HandlerFunc(s.getShapes)
	r.Methods(http.MethodGet).Path("/boards/{board}/render.png").HandlerFunc(s.getRender)
	r.Methods(http.MethodGet).Path("/boards/{board}/export.pdf").HandlerFunc(s.getExport)
	r.Methods(http.MethodGet).Path("/boards/{board}/history.svg").HandlerFunc(s.getHistory)
	return r
}

func (s *Server) requestHub(writer http.ResponseWriter, request *http.Request) (*hub, bool) {
	h, err := s.hub(request.Context(), mux.Vars(request)["board"])
	if err != nil {
		s.log.Error("failed to open board", "err", err)
		writer.WriteHeader(http.StatusInternalServerError)
		return nil, false
	}
	return h, true
}

func (s *Server) getLatest(writer http.ResponseWriter, request *http.Request) {
	h, ok := s.requestHub(writer, request)
	if !ok {
		return
	}
	fork, err := h.store.Fork()
	if err != nil {
		s.log.Error("failed to fork", "err", err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}
	writer.Header().Add("Content-Type", "application/octet-stream")
	if _, err := writer.Write(fork.Save()); err != nil {
		s.log.Error("failed to write out", "err", err)
	}
}

func (s *Server) syncBoard(writer http.ResponseWriter, request *http.Request) {
	h, ok := s.requestHub(writer, request)
	if !ok {
		return
	}
	conn, err := wire.Upgrader.Upgrade(writer, request, nil)
	if err != nil {
		s.log.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	p := wire.NewPeer(conn, h.store.Doc(),
		wire.WithLock(h.store.Locker()),
		wire.WithInterval(s.syncInterval),
		wire.WithLogger(s.log),
		wire.OnReceive(func() { h.store.Refresh() }),
	)
	leave := h.join(p)
	defer leave()
	if err := p.Run(request.Context()); err != nil {
		s.log.Error("failed to sync", "err", err)
	}
}

func (s *Server) getShapes(writer http.ResponseWriter, request *http.Request) {
	h, ok := s.requestHub(writer, request)
	if !ok {
		return
	}
	entries := h.store.Entries()
	out := make([]shape.Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Record)
	}
	writer.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(out); err != nil {
		s.log.Error("failed to write out", "err", err)
	}
}

// scene reconciles a fresh canvas against the board, the same way a
// client does.
func (s *Server) scene(request *http.Request, h *hub) (*canvas.Scene, error) {
	w, err := dimension(request, "width", DefaultWidth)
	if err != nil {
		return nil, err
	}
	ht, err := dimension(request, "height", DefaultHeight)
	if err != nil {
		return nil, err
	}
	sc := canvas.NewScene(w, ht)
	board.NewReconciler(sc, h.store, s.log).Reconcile(&board.Session{})
	return sc, nil
}

func dimension(request *http.Request, key string, def int) (int, error) {
	raw := request.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || v > MaxDimension {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func (s *Server) getRender(writer http.ResponseWriter, request *http.Request) {
	h, ok := s.requestHub(writer, request)
	if !ok {
		return
	}
	sc, err := s.scene(request, h)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	writer.Header().Add("Content-Type", "image/png")
	if err := canvas.Rasterize(writer, sc); err != nil {
		s.log.Error("failed to render", "err", err)
	}
}

func (s *Server) getExport(writer http.ResponseWriter, request *http.Request) {
	h, ok := s.requestHub(writer, request)
	if !ok {
		return
	}
	sc, err := s.scene(request, h)
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	w, ht := sc.Size()
	writer.Header().Add("Content-Type", "application/pdf")
	if err := export.PDF(writer, w, ht, sc.Objects()); err != nil {
		s.log.Error("failed to export", "err", err)
	}
}

func (s *Server) getHistory(writer http.ResponseWriter, request *http.Request) {
	h, ok := s.requestHub(writer, request)
	if !ok {
		return
	}
	fork, err := h.store.Fork()
	if err != nil {
		s.log.Error("failed to fork", "err", err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}
	writer.Header().Add("Content-Type", "image/svg+xml")
	if err := viz.RenderHistory(fork, writer); err != nil {
		s.log.Error("failed to render history", "err", err)
	}
}

// Backup saves every board whose content changed since the last backup.
func (s *Server) Backup(ctx context.Context) error {
	var errs []error
	s.cache.Range(func(id, raw any) bool {
		h := raw.(*hub)
		changed, err := s.boards.Save(ctx, id.(string), h.store.Save())
		if err != nil {
			errs = append(errs, err)
		} else if changed {
			s.log.Info("backed up", "board", id, "heads", h.store.Doc().Heads())
		}
		return true
	})
	return errors.Join(errs...)
}

// BackupContinuously runs Backup every interval until ctx is done.
func (s *Server) BackupContinuously(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := s.Backup(ctx); err != nil {
				s.log.Error("failed to backup boards", "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
