package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/recipeshelf/shelf/internal/buckets"
	"github.com/recipeshelf/shelf/internal/handler"
	"github.com/recipeshelf/shelf/internal/models"
	"github.com/recipeshelf/shelf/internal/storage"
	"go.uber.org/zap"
)

const maxEventBytes = 1 << 20

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.events.Handle(r.Context(), json.RawMessage(raw))
	if err != nil {
		s.respondResolveError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetBucket(w http.ResponseWriter, r *http.Request) {
	req := &models.Request{Bucket: chi.URLParam(r, "bucket")}
	if v := r.URL.Query().Get("chat"); v != "" {
		forChat, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "chat must be a boolean")
			return
		}
		req.ForChat = forChat
	}
	res, err := s.service.Handle(r.Context(), req)
	if err != nil {
		s.respondResolveError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) respondResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, buckets.ErrInvalidRequest), errors.Is(err, handler.ErrMalformedEvent):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("bucket lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	names, err := s.storage.Buckets(r.Context())
	if err != nil {
		s.logger.Error("list buckets failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"buckets": names})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.respondError(w, http.StatusNotImplemented, "search not enabled")
		return
	}
	q := r.URL.Query()
	query := models.SearchQuery{Query: q.Get("q"), Bucket: q.Get("bucket")}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		query.Limit = limit
	}
	if v := q.Get("fuzzy"); v != "" {
		fuzzy, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "fuzzy must be a boolean")
			return
		}
		query.FuzzyEnabled = fuzzy
	}
	if query.Query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	names, err := s.storage.Buckets(r.Context())
	if err != nil {
		s.logger.Error("status: list buckets failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"buckets": len(names),
		"driver":  s.config.Store.Driver,
	}
	if s.engine != nil {
		if n, err := s.engine.IndexedItems(); err == nil {
			resp["indexed_items"] = n
		}
	}
	if s.loader != nil {
		if at, count := s.loader.LastLoad(); !at.IsZero() {
			resp["last_load"] = at
			resp["last_load_buckets"] = count
		}
	}
	if diskBytes, err := storage.DiskUsageBytes(s.config.Store.DatabasePath, s.config.Search.IndexPath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		s.respondError(w, http.StatusNotImplemented, "seed loading not enabled")
		return
	}
	ds, err := s.loader.Reload(r.Context())
	if err != nil {
		s.logger.Error("reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "reloaded",
		"buckets": len(ds.Buckets),
		"members": ds.MemberCount(),
	})
}

func (s *Server) handleSeedDirectories(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
