package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/eslint-node/internal/jobmanager"
	"github.com/mattjoyce/eslint-node/internal/linter"
)

// maxBodyBytes bounds a request body; buffers travel inline.
const maxBodyBytes = 32 << 20

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		InstanceID:    s.config.InstanceID,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		WorkerState:   jobmanager.StateAbsent.String(),

		EventSubscribers: s.events.Subscribers(),
		DroppedEvents:    s.events.Dropped(),
	}
	if s.worker != nil {
		resp.WorkerState = s.worker.State().String()
		resp.WorkerPid = s.worker.Pid()
		resp.PendingJobs = s.worker.PendingCount()
	}
	if s.linter != nil {
		resp.Inactive = s.linter.Inactive()
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleLint handles POST /v1/lint.
func (s *Server) handleLint(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	report, err := s.linter.Lint(r.Context(), req)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// handleFix handles POST /v1/fix.
func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	report, err := s.linter.Fix(r.Context(), req)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// handleDebug handles POST /v1/debug.
func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	report, err := s.linter.Debug(r.Context(), req)
	if err != nil {
		s.writeJobError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// handleClearCache handles POST /v1/cache/clear.
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.linter.ClearCache(r.Context()); err != nil {
		s.writeJobError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ClearCacheResponse{Cleared: true})
}

// handleHistory handles GET /v1/history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "journal is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	respondJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (linter.Request, bool) {
	var req linter.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	if req.FilePath == "" {
		s.writeError(w, http.StatusBadRequest, "filePath is required")
		return req, false
	}
	return req, true
}

// writeJobError maps a command failure onto a status code.
func (s *Server) writeJobError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := statusFor(err)
	if je, ok := jobmanager.AsJobError(err); ok {
		resp.Kind = je.Kind.String()
		resp.Version = je.Version
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn("command failed", "status", status, "error", err)
	}
	respondJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, linter.ErrModified):
		return http.StatusConflict
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, jobmanager.ErrInvalidWorker), errors.Is(err, jobmanager.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, jobmanager.ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, jobmanager.ErrWorkerKilled):
		return http.StatusBadGateway
	}
	if _, ok := jobmanager.AsJobError(err); ok {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
