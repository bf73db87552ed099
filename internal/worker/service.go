// Package worker provides the survey service: the HTTP API used by the
// audience answer page and the operator console, and the SSE stream that keeps
// operator screens in sync with the cluster boards.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/thebtf/feudsurvey/internal/assist"
	"github.com/thebtf/feudsurvey/internal/config"
	"github.com/thebtf/feudsurvey/internal/curation"
	"github.com/thebtf/feudsurvey/internal/db/gorm"
	"github.com/thebtf/feudsurvey/internal/worker/sse"
)

// Service hosts the survey API.
type Service struct {
	startTime      time.Time
	ctx            context.Context
	config         *config.Config
	store          *gorm.Store
	responseStore  *gorm.ResponseStore
	synonymStore   *gorm.SynonymStore
	surveyStore    *gorm.SurveyStore
	registry       *curation.Registry
	assist         *assist.Adapter
	sseBroadcaster *sse.Broadcaster
	router         *chi.Mux
	cancel         context.CancelFunc
	version        string
	ready          atomic.Bool
}

// NewService opens the configured database and builds the service.
// The service does not accept survey traffic until Start is called.
func NewService(version string, cfg *config.Config) (*Service, error) {
	store, err := gorm.NewStore(gorm.Config{
		Driver:   cfg.DBDriver,
		Path:     cfg.DBPath,
		DSN:      cfg.DBDSN,
		MaxConns: cfg.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	adapter := assist.FromConfig(cfg.Assist())
	if adapter.Configured() {
		log.Info().Str("provider", adapter.ProviderName()).Msg("Assisted clustering enabled")
	} else {
		log.Info().Msg("Assisted clustering not configured, local clustering only")
	}

	return newService(version, cfg, store, adapter), nil
}

func newService(version string, cfg *config.Config, store *gorm.Store, adapter *assist.Adapter) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		version:        version,
		config:         cfg,
		store:          store,
		responseStore:  gorm.NewResponseStore(store),
		synonymStore:   gorm.NewSynonymStore(store),
		surveyStore:    gorm.NewSurveyStore(store, cfg.SessionID),
		registry:       curation.NewRegistry(),
		assist:         adapter,
		sseBroadcaster: sse.NewBroadcaster(),
		router:         chi.NewRouter(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
	}
	svc.setupRoutes()
	return svc
}

// Start loads the synonyms file, if one is configured, and marks the service ready.
func (s *Service) Start() error {
	if s.config.SynonymsFile != "" {
		if err := s.ReloadSynonyms(s.ctx); err != nil {
			return fmt.Errorf("load synonyms file: %w", err)
		}
	}
	s.ready.Store(true)
	log.Info().Str("version", s.version).Msg("Survey service ready")
	return nil
}

// Handler returns the HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Shutdown stops background work and closes the database.
func (s *Service) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	s.cancel()
	done := make(chan error, 1)
	go func() { done <- s.store.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) setupRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", serveIndex)
	r.Get("/assets/*", serveAssets)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/version", s.handleVersion)
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/ping", s.handlePing)
	r.Get("/api/events", s.sseBroadcaster.HandleSSE)

	r.Route("/api/survey", func(r chi.Router) {
		r.Use(s.requireReady)

		r.Get("/state", s.handleGetState)
		r.Post("/state", s.handleSetState)
		r.Post("/response", s.handleAddResponse)
		r.Get("/responses", s.handleGetResponses)
		r.Get("/export.csv", s.handleExportCSV)

		r.Get("/synonyms", s.handleGetSynonyms)
		r.Post("/synonyms", s.handleSetSynonyms)

		r.Get("/ai-config", s.handleAIConfig)
		r.Post("/ai-cluster", s.handleAICluster)

		r.Get("/clusters", s.handleGetClusters)
		r.Post("/clusters/recompute", s.handleRecompute)
		r.Post("/clusters/{id}/merge", s.handleMerge)
		r.Put("/clusters/{id}/label", s.handleEditLabel)
		r.Get("/review.xlsx", s.handleReviewSheet)
	})
}

// requireReady rejects requests until the service has started.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, "not_ready")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": code})
}
