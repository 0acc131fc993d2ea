// Package webview serves a mapview.Scene to browsers. Every scene mutation is
// pushed as a JSON command over websocket to each open page; clicks on markers
// come back the same way.
package webview

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/unklstewy/ads-bmap/internal/ws"
	"github.com/unklstewy/ads-bmap/pkg/mapview"
)

//go:embed static/index.html
var static embed.FS

// maxInbound bounds a browser command.
const maxInbound = 1024

// Widget is a mapview.Widget drawn by browsers.
type Widget struct {
	*mapview.Scene

	logger   *slog.Logger
	upgrader *websocket.Upgrader
	origins  []string

	// mu orders joins against broadcasts, so a page never misses a change
	// made after its snapshot was taken
	mu    sync.Mutex
	peers map[*ws.Peer]struct{}
}

var _ mapview.Widget = (*Widget)(nil)

// New wraps scene in a browser widget. origins lists the CORS origins allowed to
// fetch the scene, nil allows all.
func New(scene *mapview.Scene, origins []string, logger *slog.Logger) *Widget {
	if logger == nil {
		logger = slog.Default()
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	w := &Widget{
		Scene:    scene,
		logger:   logger.With("component", "webview"),
		upgrader: ws.NewUpgrader(),
		origins:  origins,
		peers:    make(map[*ws.Peer]struct{}),
	}
	scene.Observe(w.broadcast)
	return w
}

// Handler returns the routes of the browser map.
func (w *Widget) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: w.origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", w.handleIndex)
	r.Get("/ws", w.handleWebSocket)
	r.Get("/scene.geojson", w.handleGeoJSON)
	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusNoContent)
	})
	return r
}

// Run serves the map on addr until ctx is cancelled.
func (w *Widget) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     w.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		w.logger.Info("browser map listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.closePeers()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (w *Widget) handleIndex(rw http.ResponseWriter, r *http.Request) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		http.Error(rw, "page unavailable", http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.Write(page)
}

func (w *Widget) handleGeoJSON(rw http.ResponseWriter, r *http.Request) {
	data, err := w.Snapshot().FeatureCollection().MarshalJSON()
	if err != nil {
		http.Error(rw, "failed to encode scene", http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/geo+json")
	rw.Write(data)
}

func (w *Widget) handleWebSocket(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	peer := ws.NewPeer(conn, ws.DefaultQueue)
	go peer.WritePump()

	if err := w.join(peer); err != nil {
		w.logger.Error("failed to send snapshot", "error", err)
		peer.Close()
		return
	}
	w.logger.Info("browser connected", "remote", peer.RemoteAddr())

	err = peer.ReadPump(maxInbound, w.handleInbound)
	w.leave(peer)
	w.logger.Info("browser disconnected", "remote", peer.RemoteAddr(), "error", err)
}

// join queues the current scene and registers peer for changes.
func (w *Widget) join(peer *ws.Peer) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(snapshotCommand(w.Snapshot()))
	if err != nil {
		return err
	}
	peer.Send(ws.Frame{Data: data})
	w.peers[peer] = struct{}{}
	return nil
}

func (w *Widget) leave(peer *ws.Peer) {
	w.mu.Lock()
	delete(w.peers, peer)
	w.mu.Unlock()
}

func (w *Widget) closePeers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p := range w.peers {
		p.Close()
		delete(w.peers, p)
	}
}

// broadcast observes the scene. A change that races a join may reach the new page
// twice, page commands are idempotent.
func (w *Widget) broadcast(ch mapview.Change) {
	cmd, ok := changeCommand(ch)
	if !ok {
		return
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		w.logger.Error("failed to encode scene change", "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for p := range w.peers {
		if !p.Send(ws.Frame{Data: data}) {
			w.logger.Warn("dropping slow browser", "remote", p.RemoteAddr())
			p.Close()
			delete(w.peers, p)
		}
	}
}

func (w *Widget) handleInbound(data []byte) {
	var cmd inbound
	if err := json.Unmarshal(data, &cmd); err != nil {
		w.logger.Debug("ignoring browser message", "error", err)
		return
	}
	switch cmd.Type {
	case "click":
		w.Click(mapview.MarkerID(cmd.ID))
	case "close":
		w.CloseOverlay()
	default:
		w.logger.Debug("ignoring browser command", "type", cmd.Type)
	}
}

// Peers returns the number of connected pages.
func (w *Widget) Peers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.peers)
}
