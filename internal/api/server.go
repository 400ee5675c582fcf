// Package api exposes the dashboard over HTTP.
//
// Reads return the current state; POST routes trigger store actions and
// return the state they produced. Every response is JSON.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/todaytrend/trend-dashboard/internal/analysis"
	"github.com/todaytrend/trend-dashboard/internal/couchdb"
	"github.com/todaytrend/trend-dashboard/internal/dashboard"
	"github.com/todaytrend/trend-dashboard/internal/digest"
	"github.com/todaytrend/trend-dashboard/internal/models"
	"github.com/todaytrend/trend-dashboard/internal/storage"
)

// DatabaseInfoSource reports on the backing database
type DatabaseInfoSource interface {
	DatabaseInfo(ctx context.Context) (*couchdb.DatabaseInfo, error)
}

// DigestService runs digests on demand
type DigestService interface {
	Run(ctx context.Context, period string) (*models.Digest, error)
	GetMetrics() digest.Metrics
}

// Options wires the server to its components. Archive and Digests are optional.
type Options struct {
	Store          *dashboard.Store
	Analysis       *analysis.Accessor
	Database       DatabaseInfoSource
	Archive        storage.StorageInterface
	Digests        DigestService
	AllowedOrigins []string
}

// Server serves the dashboard API
type Server struct {
	store    *dashboard.Store
	analysis *analysis.Accessor
	database DatabaseInfoSource
	archive  storage.StorageInterface
	digests  DigestService
	origins  []string
	log      *logrus.Entry
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	return &Server{
		store:    opts.Store,
		analysis: opts.Analysis,
		database: opts.Database,
		archive:  opts.Archive,
		digests:  opts.Digests,
		origins:  opts.AllowedOrigins,
		log:      logrus.WithField("component", "api"),
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(requestID, s.logRequests)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/posts", s.handleGetPosts).Methods(http.MethodGet)
	api.HandleFunc("/posts/recent", s.handleFetchRecent).Methods(http.MethodPost)
	api.HandleFunc("/posts/refresh", s.handleFetchRecent).Methods(http.MethodPost)
	api.HandleFunc("/posts/all", s.handleFetchAll).Methods(http.MethodPost)
	api.HandleFunc("/posts/search", s.handleSearch).Methods(http.MethodPost)
	api.HandleFunc("/posts/{id}", s.handleDeletePost).Methods(http.MethodDelete)
	api.HandleFunc("/error", s.handleClearError).Methods(http.MethodDelete)

	api.HandleFunc("/analysis", s.handleGetAnalysis).Methods(http.MethodGet)
	api.HandleFunc("/analysis/reload", s.handleReloadAnalysis).Methods(http.MethodPost)

	api.HandleFunc("/archive", s.handleListArchive).Methods(http.MethodGet)
	api.HandleFunc("/archive/{name:.+}", s.handleGetArchived).Methods(http.MethodGet)

	api.HandleFunc("/digest", s.handleRunDigest).Methods(http.MethodPost)

	return cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	}).Handler(router)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Errorf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
