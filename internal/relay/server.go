package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unklstewy/ads-bmap/internal/auth"
	"github.com/unklstewy/ads-bmap/pkg/adsb"
)

// Server holds the HTTP server and its dependencies
type Server struct {
	router  *chi.Mux
	tracker *Tracker
	hub     *Hub
	authSvc *auth.Service
	origins []string
	logger  *slog.Logger
}

// NewServer wires the relay routes. authSvc may be nil, which leaves /ws and
// /api open.
func NewServer(tracker *Tracker, hub *Hub, authSvc *auth.Service, origins []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{
		router:  chi.NewRouter(),
		tracker: tracker,
		hub:     hub,
		authSvc: authSvc,
		origins: origins,
		logger:  logger.With("component", "server"),
	}
	s.setupRoutes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.authSvc != nil {
			r.Use(s.authSvc.Middleware)
		}

		r.Handle("/ws", s.hub)
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/aircraft", s.handleGetAircraft)
			r.Get("/aircraft/{icao}", s.handleGetAircraftByICAO)
		})
	})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening", "addr", addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"aircraft": s.tracker.Count(),
		"clients":  s.hub.Clients(),
		"pending":  s.hub.Pending(),
	})
}

func (s *Server) handleGetAircraft(w http.ResponseWriter, r *http.Request) {
	list := s.tracker.Snapshot()
	planes := make([]adsb.Plane, 0, len(list))
	for _, ac := range list {
		planes = append(planes, adsb.PlaneFromAircraft(ac))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"aircraft": planes,
		"count":    len(planes),
	})
}

func (s *Server) handleGetAircraftByICAO(w http.ResponseWriter, r *http.Request) {
	icao := strings.ToUpper(chi.URLParam(r, "icao"))
	ac, ok := s.tracker.Get(icao)
	if !ok {
		http.Error(w, "Aircraft not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, adsb.PlaneFromAircraft(ac))
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
