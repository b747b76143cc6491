// Package api - Thin, deterministic API layer
// The API is only responsible for input ingestion, engine orchestration,
// and output serialization. It never performs calculation logic.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"port-dues/core/engine"
	"port-dues/core/tariff"
	"port-dues/internal/errors"
	"port-dues/tariffdata"
)

// Server is the API server
type Server struct {
	engine  *engine.Engine
	repo    *tariff.Repository
	store   *tariff.SnapshotStore
	mux     *http.ServeMux
	version string
	logger  *zap.Logger
}

// NewServer creates an API server. The snapshot store may be nil; then
// published schedules live only in memory.
func NewServer(version string, eng *engine.Engine, repo *tariff.Repository, store *tariff.SnapshotStore, logger *zap.Logger) *Server {
	s := &Server{
		engine:  eng,
		repo:    repo,
		store:   store,
		mux:     http.NewServeMux(),
		version: version,
		logger:  logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /calculate", s.handleCalculate)
	s.mux.HandleFunc("POST /schedules", s.handlePublish)
	s.mux.HandleFunc("GET /schedules", s.handleListSchedules)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /version", s.handleVersion)
}

// handleCalculate handles POST /calculate
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()

	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, requestID, errors.Wrap(errors.TypeValidation, "invalid JSON body", err))
		return
	}

	result, err := s.engine.Calculate(r.Context(), &req.RawRequest)
	if err != nil {
		s.writeError(w, requestID, err)
		return
	}

	s.writeJSON(w, toWireResult(requestID, result, time.Since(start).Milliseconds()), http.StatusOK)
}

// handlePublish handles POST /schedules, the ingestion contract: a
// versioned structured payload of tariff rows per port.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, requestID, errors.Wrap(errors.TypeValidation, "unreadable body", err))
		return
	}

	schedules, err := tariffdata.ParseJSON(body)
	if err != nil {
		s.writeError(w, requestID, err)
		return
	}

	resp := &PublishResponse{}
	for _, schedule := range schedules {
		version, err := s.repo.Publish(schedule)
		if err != nil {
			s.writeError(w, requestID, err)
			return
		}
		if s.store != nil {
			if err := s.store.Store(schedule); err != nil {
				s.writeError(w, requestID, err)
				return
			}
		}
		resp.Published = append(resp.Published, PublishedSchedule{
			Port:    schedule.Port().String(),
			Version: string(version),
		})
	}
	s.writeJSON(w, resp, http.StatusCreated)
}

// handleListSchedules handles GET /schedules
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	var infos []ScheduleInfo
	for _, port := range s.repo.Ports() {
		current, err := s.repo.Snapshot(port)
		if err != nil {
			continue
		}
		versions := s.repo.Versions(port)
		wire := make([]string, len(versions))
		for i, v := range versions {
			wire[i] = string(v)
		}
		infos = append(infos, ScheduleInfo{
			Port:           port.String(),
			CurrentVersion: string(current.Version()),
			Versions:       wire,
		})
	}
	s.writeJSON(w, map[string]interface{}{
		"schedules": infos,
		"count":     len(infos),
	}, http.StatusOK)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":  "healthy",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// handleVersion handles GET /version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"version":     s.version,
		"engine":      "port-dues",
		"api_version": "v1",
	}, http.StatusOK)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps domain errors onto HTTP statuses. Validation and
// not-found detail is caller-facing; data-integrity faults are logged
// with full context and surfaced opaquely.
func (s *Server) writeError(w http.ResponseWriter, requestID string, err error) {
	domainErr, ok := errors.AsDomain(err)
	if !ok {
		domainErr = errors.Internal("unexpected failure", err)
	}

	status := http.StatusInternalServerError
	message := "internal calculation fault"
	switch domainErr.Type {
	case errors.TypeValidation:
		status = http.StatusBadRequest
		message = domainErr.Message
	case errors.TypeNotFound:
		status = http.StatusNotFound
		message = "no applicable tariff: " + domainErr.Message
	default:
		s.logger.Error("request failed",
			zap.String("request_id", requestID),
			zap.String("type", string(domainErr.Type)),
			zap.Error(domainErr),
		)
	}

	s.writeJSON(w, map[string]interface{}{
		"error": map[string]string{
			"request_id": requestID,
			"code":       string(domainErr.Type),
			"message":    message,
		},
	}, status)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
