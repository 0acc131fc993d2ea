package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/unklstewy/ads-bmap/internal/ws"
	"github.com/unklstewy/ads-bmap/pkg/adsb"
)

// Default broadcast pacing, roughly one event per 100 ms.
const (
	DefaultEventsPerSecond = 10
	DefaultBurst           = 20

	// maxInbound bounds what a subscriber may send; subscribers only listen.
	maxInbound = 512

	// subscriberQueue leaves room for the join snapshot of a busy sky
	subscriberQueue = 4 * ws.DefaultQueue
)

// Hub fans events out to websocket subscribers. Broadcasts are paced by a token
// bucket; while an aircraft waits for a token, newer events for it replace the
// queued one so the backlog never exceeds one event per aircraft.
type Hub struct {
	logger   *slog.Logger
	limiter  *rate.Limiter
	codec    adsb.Codec
	snapshot func() []adsb.Aircraft
	upgrader *websocket.Upgrader

	mu    sync.Mutex
	peers map[*ws.Peer]*subscriber

	qmu     sync.Mutex
	pending map[string]adsb.Event
	order   []string
	wake    chan struct{}
}

// NewHub creates a hub. snapshot supplies the aircraft sent to a subscriber on
// join, codec is the encoding for subscribers that do not ask for one.
func NewHub(snapshot func() []adsb.Aircraft, limit rate.Limit, burst int, codec adsb.Codec, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if codec == nil {
		codec = adsb.JSONCodec{}
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &Hub{
		logger:   logger.With("component", "hub"),
		limiter:  rate.NewLimiter(limit, burst),
		codec:    codec,
		snapshot: snapshot,
		upgrader: ws.NewUpgrader(),
		peers:    make(map[*ws.Peer]*subscriber),
		pending:  make(map[string]adsb.Event),
		wake:     make(chan struct{}, 1),
	}
}

var _ Publisher = (*Hub)(nil)

// Publish queues ev for broadcast.
func (h *Hub) Publish(ev adsb.Event) {
	h.qmu.Lock()
	if _, queued := h.pending[ev.ICAO]; !queued {
		h.order = append(h.order, ev.ICAO)
	}
	h.pending[ev.ICAO] = ev
	h.qmu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Hub) next() (adsb.Event, bool) {
	h.qmu.Lock()
	defer h.qmu.Unlock()

	if len(h.order) == 0 {
		return adsb.Event{}, false
	}
	icao := h.order[0]
	h.order = h.order[1:]
	ev := h.pending[icao]
	delete(h.pending, icao)
	return ev, true
}

// Pending returns the number of queued events.
func (h *Hub) Pending() int {
	h.qmu.Lock()
	defer h.qmu.Unlock()
	return len(h.order)
}

// Run broadcasts queued events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer h.closePeers()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.wake:
		}

		for h.Pending() > 0 {
			if err := h.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			if ev, ok := h.next(); ok {
				h.broadcast(ev)
			}
		}
	}
}

func (h *Hub) broadcast(ev adsb.Event) {
	env, err := adsb.EnvelopeFor(ev)
	if err != nil {
		h.logger.Error("cannot frame event", "error", err)
		return
	}

	frames := make(map[string]ws.Frame, 2)
	h.mu.Lock()
	defer h.mu.Unlock()

	for p, sub := range h.peers {
		if sub.stale(ev) {
			continue
		}
		codec := sub.codec
		f, ok := frames[codec.Name()]
		if !ok {
			data, err := codec.Encode(env)
			if err != nil {
				h.logger.Error("failed to encode event", "codec", codec.Name(), "error", err)
				continue
			}
			f = ws.Frame{Binary: codec.Binary(), Data: data}
			frames[codec.Name()] = f
		}
		if !p.Send(f) {
			h.logger.Warn("dropping slow subscriber", "remote", p.RemoteAddr())
			p.Close()
			delete(h.peers, p)
		}
	}
}

// subscriber is one registered peer. joined holds the message count of every
// aircraft sent in its join snapshot until the next event for that aircraft, so
// a queued update the snapshot already covered is not delivered twice.
type subscriber struct {
	codec  adsb.Codec
	joined map[string]int
}

// stale reports whether ev is no newer than what the subscriber got on join.
func (s *subscriber) stale(ev adsb.Event) bool {
	seen, ok := s.joined[ev.ICAO]
	if !ok {
		return false
	}
	delete(s.joined, ev.ICAO)
	return ev.Kind == adsb.EventUpdated && ev.Aircraft.Messages <= seen
}

// ServeHTTP upgrades a subscriber. The encoding query parameter selects the codec.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	codec := h.codec
	if name := r.URL.Query().Get("encoding"); name != "" {
		c, err := adsb.CodecFor(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		codec = c
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	peer := ws.NewPeer(conn, subscriberQueue)
	go peer.WritePump()

	if err := h.join(peer, codec); err != nil {
		h.logger.Error("failed to send snapshot", "error", err)
		peer.Close()
		return
	}
	h.logger.Info("client connected", "remote", peer.RemoteAddr(), "encoding", codec.Name())

	err = peer.ReadPump(maxInbound, nil)
	h.leave(peer)
	h.logger.Info("client disconnected", "remote", peer.RemoteAddr(), "error", err)
}

// join sends every current aircraft to peer and registers it for broadcasts.
func (h *Hub) join(peer *ws.Peer, codec adsb.Codec) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{codec: codec, joined: make(map[string]int)}
	if h.snapshot != nil {
		for _, ac := range h.snapshot() {
			sub.joined[ac.ICAO] = ac.Messages
			env, err := adsb.EnvelopeFor(adsb.Updated(ac))
			if err != nil {
				return err
			}
			data, err := codec.Encode(env)
			if err != nil {
				return err
			}
			if !peer.Send(ws.Frame{Binary: codec.Binary(), Data: data}) {
				return errors.New("snapshot exceeds subscriber queue")
			}
		}
	}
	h.peers[peer] = sub
	return nil
}

func (h *Hub) leave(peer *ws.Peer) {
	h.mu.Lock()
	delete(h.peers, peer)
	h.mu.Unlock()
}

func (h *Hub) closePeers() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		p.Close()
		delete(h.peers, p)
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}
