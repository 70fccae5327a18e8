// Package diag is a standalone raw-packet tap: it binds its own UDP
// socket independent of the pipeline's udp_source component, relaying
// every datagram it sees to any number of WebSocket subscribers as a
// binary frame. It exists purely for field diagnostics — confirming a
// feed is actually arriving at a given interface/port before trusting
// the pipeline's own ingestion path.
package diag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Options configures a Tap.
type Options struct {
	Port           int
	IdleRestart    time.Duration // default 30s
	HealthInterval time.Duration // default 5s
	MaxBackoff     time.Duration // default 5s
}

// Tap binds a UDP socket and fans every datagram it receives out to its
// WebSocket subscribers.
type Tap struct {
	opt Options

	mu sync.Mutex
	c4 net.PacketConn
	c6 net.PacketConn

	lastPktUnix atomic.Int64

	subMu sync.Mutex
	subs  map[chan []byte]struct{}
}

// New constructs a Tap with defaults applied for any zero-valued Options.
func New(opt Options) *Tap {
	if opt.IdleRestart == 0 {
		opt.IdleRestart = 30 * time.Second
	}
	if opt.HealthInterval == 0 {
		opt.HealthInterval = 5 * time.Second
	}
	if opt.MaxBackoff == 0 {
		opt.MaxBackoff = 5 * time.Second
	}
	t := &Tap{opt: opt, subs: make(map[chan []byte]struct{})}
	t.lastPktUnix.Store(time.Now().UnixNano())
	return t
}

// Run binds and serves until ctx is canceled, reconnecting with
// exponential backoff on bind failure and restarting after an idle
// period with no packets received (a wedged multicast join, typically).
func (t *Tap) Run(ctx context.Context) error {
	backoff := 0 * time.Millisecond
	for {
		if err := t.bindAll(ctx); err != nil {
			backoff = next(backoff, t.opt.MaxBackoff)
			log.Printf("[diag] bind error: %v; retrying in %v", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		backoff = 0
		if err := t.serve(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Printf("[diag] serve ended: %v", err)
		}
	}
}

func (t *Tap) bindAll(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.c4 != nil {
		_ = t.c4.Close()
		t.c4 = nil
	}
	if t.c6 != nil {
		_ = t.c6.Close()
		t.c6 = nil
	}

	addr := fmt.Sprintf(":%d", t.opt.Port)
	lc := net.ListenConfig{Control: applyUDPSocketOptions}

	if c6, err := lc.ListenPacket(ctx, "udp6", addr); err == nil {
		t.c6 = c6
		t.lastPktUnix.Store(time.Now().UnixNano())
		return nil
	}

	var e4, e6 error
	c4, e4 := lc.ListenPacket(ctx, "udp4", addr)
	c6, e6 := lc.ListenPacket(ctx, "udp6", addr)

	if e4 != nil && e6 != nil {
		return errors.Join(e4, e6)
	}

	t.c4, t.c6 = c4, c6
	t.lastPktUnix.Store(time.Now().UnixNano())
	return nil
}

func (t *Tap) serve(ctx context.Context) error {
	t.mu.Lock()
	c4, c6 := t.c4, t.c6
	t.mu.Unlock()
	errCh := make(chan error, 2)
	done := make(chan struct{})
	if c4 != nil {
		go t.readLoop(ctx, c4, errCh, done)
	}
	if c6 != nil {
		go t.readLoop(ctx, c6, errCh, done)
	}
	health := time.NewTicker(t.opt.HealthInterval)
	defer health.Stop()
	for {
		select {
		case err := <-errCh:
			close(done)
			t.closeAll()
			return err
		case <-health.C:
			last := time.Unix(0, t.lastPktUnix.Load())
			if time.Since(last) > t.opt.IdleRestart {
				close(done)
				t.closeAll()
				return errors.New("idle restart")
			}
		case <-ctx.Done():
			close(done)
			t.closeAll()
			return ctx.Err()
		}
	}
}

func (t *Tap) readLoop(ctx context.Context, pc net.PacketConn, errCh chan<- error, done <-chan struct{}) {
	buf := make([]byte, 64*1024)
	for {
		_ = pc.SetReadDeadline(time.Now().Add(10 * time.Second))
		n, _, err := pc.ReadFrom(buf)
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			continue
		}
		if err != nil {
			errCh <- err
			return
		}
		pkt := append([]byte(nil), buf[:n]...)
		t.lastPktUnix.Store(time.Now().UnixNano())
		t.broadcast(pkt)
		select {
		case <-done:
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (t *Tap) broadcast(b []byte) {
	t.subMu.Lock()
	for ch := range t.subs {
		select {
		case ch <- b:
		default:
		}
	}
	t.subMu.Unlock()
}

func (t *Tap) closeAll() {
	t.mu.Lock()
	if t.c4 != nil {
		_ = t.c4.Close()
		t.c4 = nil
	}
	if t.c6 != nil {
		_ = t.c6.Close()
		t.c6 = nil
	}
	t.mu.Unlock()
}

// Subscribe registers a new subscriber channel; every datagram seen after
// this call is pushed onto it (best-effort, dropped if the subscriber is
// behind).
func (t *Tap) Subscribe() chan []byte {
	ch := make(chan []byte, 256)
	t.subMu.Lock()
	t.subs[ch] = struct{}{}
	t.subMu.Unlock()
	return ch
}

func (t *Tap) Unsubscribe(ch chan []byte) {
	t.subMu.Lock()
	delete(t.subs, ch)
	close(ch)
	t.subMu.Unlock()
}

// WSHandler streams tapped datagrams to a WebSocket client as binary frames.
func (t *Tap) WSHandler(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{
		CheckOrigin:       func(*http.Request) bool { return true },
		EnableCompression: false,
	}
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = ws.Close() }()
	ch := t.Subscribe()
	defer t.Unsubscribe(ch)
	for pkt := range ch {
		_ = ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := ws.WriteMessage(websocket.BinaryMessage, pkt); err != nil {
			return
		}
	}
}

// next grows exponential backoff with bounded jitter.
func next(cur, max time.Duration) time.Duration {
	if cur <= 0 {
		cur = 250 * time.Millisecond
	} else {
		cur *= 2
		if cur > max {
			cur = max
		}
	}
	jmax := cur / 4
	if jmax < 50*time.Millisecond {
		jmax = 50 * time.Millisecond
	}
	jitter := time.Duration(rand.Int63n(int64(jmax)))
	return cur + jitter
}
