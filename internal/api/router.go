package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/meur/dexforge/internal/catalog"
	"github.com/meur/dexforge/internal/collection"
	"github.com/meur/dexforge/internal/storage"
	"go.uber.org/zap"
)

// Server holds the HTTP server dependencies
type Server struct {
	collection *collection.Store
	sessions   *catalog.Registry
	store      *storage.Store
	logger     *zap.Logger
	router     chi.Router
}

// New creates a new API server. store may be nil when no catalog snapshot is available.
func New(coll *collection.Store, sessions *catalog.Registry, store *storage.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		collection: coll,
		sessions:   sessions,
		store:      store,
		logger:     logger,
		router:     chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Router exposes the chi router so callers can mount extra handlers
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RequestLogger(&zapLogFormatter{logger: s.logger.Named("http")}))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		// Discovery
		r.Post("/discovery", s.handleStartDiscovery)
		r.Get("/discovery/{sessionID}", s.handleGetDiscovery)
		r.Post("/discovery/{sessionID}/next", s.handleNextPage)
		r.Delete("/discovery/{sessionID}", s.handleEndDiscovery)

		// Collection
		r.Get("/collection", s.handleGetCollection)
		r.Post("/collection", s.handleAddToCollection)
		r.Delete("/collection", s.handleClearCollection)
		r.Put("/collection/order", s.handleReorderCollection)
		r.Get("/collection/{id}", s.handleCollectionMembership)
		r.Delete("/collection/{id}", s.handleRemoveFromCollection)

		// Catalog snapshot
		r.Get("/catalog", s.handleGetCatalog)
		r.Get("/catalog/{id}", s.handleGetCatalogItem)
	})

	// Health check
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// --- Response helpers ---

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
