// Package server provides the HTTP API for shelf.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/recipeshelf/shelf/internal/buckets"
	"github.com/recipeshelf/shelf/internal/config"
	"github.com/recipeshelf/shelf/internal/handler"
	"github.com/recipeshelf/shelf/internal/models"
	"github.com/recipeshelf/shelf/internal/search"
	"github.com/recipeshelf/shelf/internal/storage"
	"go.uber.org/zap"
)

// SeedReloader reloads the store from the configured dataset files.
type SeedReloader interface {
	Reload(ctx context.Context) (*models.Dataset, error)
	LastLoad() (time.Time, int)
}

// WatchService reports the directories being watched for dataset changes.
type WatchService interface {
	Directories() []string
}

// Server is the HTTP server for the shelf API.
type Server struct {
	service *buckets.Service
	events  *handler.Handler
	storage storage.Storage
	engine  *search.Engine
	loader  SeedReloader
	watch   WatchService
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. engine, loader and
// watch may be nil; their endpoints then answer 501.
func NewServer(
	service *buckets.Service,
	storage storage.Storage,
	engine *search.Engine,
	loader SeedReloader,
	watch WatchService,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		service: service,
		events:  handler.New(service, logger),
		storage: storage,
		engine:  engine,
		loader:  loader,
		watch:   watch,
		config:  cfg,
		logger:  logger,
	}
}

// Router builds the HTTP handler with all middleware and routes.
func (s *Server) Router() http.Handler {
	sc := s.config.Server
	timeout := time.Duration(sc.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: sc.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))
	if sc.RateLimit > 0 {
		r.Use(rateLimit(sc.RateLimit, sc.RateBurst))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", s.handleEvent)
		r.Get("/buckets", s.handleListBuckets)
		r.Get("/buckets/{bucket}", s.handleGetBucket)
		r.Get("/search", s.handleSearch)
		r.Get("/status", s.handleStatus)
		r.Post("/reload", s.handleReload)
		r.Get("/seed/directories", s.handleSeedDirectories)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
