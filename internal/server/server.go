package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patinahq/patina/internal/engine"
	"github.com/patinahq/patina/internal/ledger"
	"github.com/patinahq/patina/internal/store"
)

// Server is the patina HTTP API server.
type Server struct {
	db      *store.DB
	ledger  *ledger.Ledger
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the given store, ledger, and engine.
func New(db *store.DB, lgr *ledger.Ledger, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:      db,
		ledger:  lgr,
		engine:  eng,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Identity-provider boundary: seed users with initial reputation
		r.Post("/users", s.handleSeedUser)
		r.Get("/users/{userID}/stakes", s.handleUserStakes)

		// Staking
		r.Post("/stakes", s.handleOpenStake)

		// Discovery + ingestion feeds
		r.Post("/content", s.handleDiscoverContent)
		r.Post("/content/{externalRef}/events", s.handleRecordEvent)

		// Read views
		r.Get("/feed/slow", s.handleSlowFeed)
		r.Get("/filter/suppress", s.handleSuppress)

		// On-demand pass triggers
		r.Post("/passes/score", s.handleScorePass)
		r.Post("/passes/reconcile", s.handleReconcilePass)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}
