// Package wire replicates automerge documents over websockets. Each side
// of a connection runs a Peer; both exchange sync messages until neither
// has anything left to send, then keep polling for new changes.
package wire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/gorilla/websocket"
)

// DefaultInterval is how often a peer checks for local changes when it
// has not been woken.
const DefaultInterval = time.Second

type Peer struct {
	conn      *websocket.Conn
	state     *automerge.SyncState
	interval  time.Duration
	onReceive func()
	log       *slog.Logger

	lock sync.Locker
	wake chan struct{}
}

type Option func(*Peer)

// WithInterval sets the poll interval for local changes.
func WithInterval(d time.Duration) Option {
	return func(p *Peer) {
		p.interval = d
	}
}

// OnReceive is called after every applied sync message from the remote.
func OnReceive(fn func()) Option {
	return func(p *Peer) {
		p.onReceive = fn
	}
}

// WithLock guards every use of the document with l, so local writers
// holding l never interleave with a received change.
func WithLock(l sync.Locker) Option {
	return func(p *Peer) {
		p.lock = l
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(p *Peer) {
		p.log = log
	}
}

func NewPeer(conn *websocket.Conn, doc *automerge.Doc, opts ...Option) *Peer {
	p := &Peer{
		conn:     conn,
		state:    automerge.NewSyncState(doc),
		interval: DefaultInterval,
		log:      slog.Default(),
		lock:     new(sync.Mutex),
		wake:     make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Wake makes the peer send pending changes now rather than at the next
// tick. It never blocks.
func (p *Peer) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Peer) receive() error {
	mt, raw, err := p.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}
	if mt != websocket.BinaryMessage {
		return nil
	}
	p.lock.Lock()
	_, err = p.state.ReceiveMessage(raw)
	p.lock.Unlock()
	if err != nil {
		return fmt.Errorf("failed to receive message: %w", err)
	}
	if p.onReceive != nil {
		p.onReceive()
	}
	// the remote may be waiting on our reply
	p.Wake()
	return nil
}

// flush writes sync messages until the state has nothing more to say.
func (p *Peer) flush() error {
	for {
		p.lock.Lock()
		msg, valid := p.state.GenerateMessage()
		p.lock.Unlock()
		if msg == nil {
			return nil
		}
		if err := p.conn.WriteMessage(websocket.BinaryMessage, msg.Bytes()); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
		if !valid {
			return nil
		}
	}
}

// Run syncs until ctx is done or the connection fails. A clean close by
// either side returns nil.
func (p *Peer) Run(ctx context.Context) error {
	p.log.Debug("syncing", "remote", p.conn.RemoteAddr())

	errs := make(chan error, 2)
	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer p.conn.Close()
		for {
			if err := p.receive(); err != nil {
				errs <- err
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer p.conn.Close()
		t := time.NewTicker(p.interval)
		defer t.Stop()
		for {
			if err := p.flush(); err != nil {
				errs <- err
				return
			}
			select {
			case <-t.C:
			case <-p.wake:
			case <-ctx.Done():
				_ = p.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second),
				)
				errs <- nil
				return
			}
		}
	}()

	wg.Wait()
	// the first failure closes the connection, which fails the other side
	if err := <-errs; err != nil && !closedNormally(err) && ctx.Err() == nil {
		return err
	}
	return nil
}

func closedNormally(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed)
}

// Dial opens a sync connection to a ws:// or wss:// url.
func Dial(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	return conn, nil
}

// Upgrader accepts sync connections on the server side.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}
