package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/todaytrend/trend-dashboard/internal/couchdb"
	"github.com/todaytrend/trend-dashboard/internal/dashboard"
	"github.com/todaytrend/trend-dashboard/internal/digest"
	"github.com/todaytrend/trend-dashboard/internal/models"
	"github.com/todaytrend/trend-dashboard/internal/storage"
)

type healthResponse struct {
	Status    string                `json:"status"`
	Timestamp string                `json:"timestamp"`
	Database  *couchdb.DatabaseInfo `json:"database,omitempty"`
	Error     string                `json:"error,omitempty"`
}

type postsResponse struct {
	dashboard.State
	Category       string                  `json:"category,omitempty"`
	CategoryCounts map[models.Category]int `json:"category_counts"`
}

type metricsResponse struct {
	Posts   int             `json:"posts"`
	Digests *digest.Metrics `json:"digests,omitempty"`
}

type archiveListResponse struct {
	Prefix string   `json:"prefix"`
	Names  []string `json:"names"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	info, err := s.database.DatabaseInfo(r.Context())
	if err != nil {
		response.Status = "unhealthy"
		response.Error = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	response.Database = info
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	response := metricsResponse{Posts: len(s.store.Snapshot().Posts)}
	if s.digests != nil {
		metrics := s.digests.GetMetrics()
		response.Digests = &metrics
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetPosts(w http.ResponseWriter, r *http.Request) {
	category := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))
	if category != "" && category != dashboard.CategoryAll && !models.IsKnownCategory(category) {
		s.writeError(w, http.StatusBadRequest, "unknown category "+category)
		return
	}

	state := s.store.Snapshot()
	counts := dashboard.CountCategories(state.Posts)
	state.Posts = dashboard.FilterPosts(state.Posts, category)

	s.writeJSON(w, http.StatusOK, postsResponse{
		State:          state,
		Category:       category,
		CategoryCounts: counts,
	})
}

func (s *Server) handleFetchRecent(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, s.store.FetchRecent)
}

func (s *Server) handleFetchAll(w http.ResponseWriter, r *http.Request) {
	s.runAction(w, r, s.store.FetchAll)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("hashtag"))
	term = strings.TrimPrefix(term, "#")
	if term == "" {
		s.writeError(w, http.StatusBadRequest, "hashtag query parameter is required")
		return
	}

	s.runAction(w, r, func(ctx context.Context) error {
		return s.store.SearchByHashtag(ctx, term)
	})
}

// runAction performs a fetch and answers with the resulting state.
// A superseded fetch answers 202 with whatever the newer fetch left.
func (s *Server) runAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context) error) {
	err := action(r.Context())
	state := s.store.Snapshot()

	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, state)
	case errors.Is(err, dashboard.ErrSuperseded):
		s.writeJSON(w, http.StatusAccepted, state)
	default:
		s.writeJSON(w, http.StatusBadGateway, state)
	}
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.store.DeleteEntity(r.Context(), id); err != nil {
		status := http.StatusBadGateway
		switch {
		case couchdb.IsNotFound(err):
			status = http.StatusNotFound
		case couchdb.IsConflict(err):
			status = http.StatusConflict
		}
		s.writeJSON(w, status, s.store.Snapshot())
		return
	}

	s.writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	s.store.ClearError()
	s.writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.analysis.View())
}

func (s *Server) handleReloadAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.analysis.Load(r.Context()); err != nil {
		s.writeJSON(w, http.StatusBadGateway, s.analysis.View())
		return
	}
	s.writeJSON(w, http.StatusOK, s.analysis.View())
}

func (s *Server) handleListArchive(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, http.StatusNotFound, "archive is not configured")
		return
	}

	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = storage.DeletedPrefix
	}

	names, err := s.archive.List(r.Context(), prefix)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}

	s.writeJSON(w, http.StatusOK, archiveListResponse{Prefix: prefix, Names: names})
}

func (s *Server) handleGetArchived(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, http.StatusNotFound, "archive is not configured")
		return
	}

	name := mux.Vars(r)["name"]
	data, err := s.archive.Retrieve(r.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "no archived entry "+name)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleRunDigest(w http.ResponseWriter, r *http.Request) {
	if s.digests == nil {
		s.writeError(w, http.StatusNotFound, "no notification channel is configured")
		return
	}

	result, err := s.digests.Run(r.Context(), digest.PeriodManual)
	if errors.Is(err, digest.ErrNoAnalysis) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}
