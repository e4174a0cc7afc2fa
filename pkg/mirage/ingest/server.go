// Package ingest exposes the telemetry ingestion endpoint: it accepts
// batches of event JSON, mirrors them into an append-only CSV store, and
// forwards them to threat analysis. It runs on its own goroutine alongside
// the cycle loop, sharing only the threat detector, which is safe for
// concurrent analysis.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/TFMV/mirage/pkg/mirage/config"
	"github.com/TFMV/mirage/pkg/mirage/detect"
	"github.com/TFMV/mirage/pkg/mirage/model"
	"github.com/TFMV/mirage/pkg/mirage/telemetry"
)

// eventBatch is the request body for POST /events.
type eventBatch struct {
	Events []model.Event `json:"events"`
}

// ingestResponse is the success body for POST /events.
type ingestResponse struct {
	Status       string         `json:"status"`
	ThreatsFound int            `json:"threats_found"`
	Threats      []model.Threat `json:"threats"`
}

// errorResponse is the failure body for POST /events.
type errorResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// Server is the ingestion HTTP endpoint.
type Server struct {
	addr     string
	detector *detect.Detector
	store    *csvStore
	limiter  *rate.Limiter
	metrics  *telemetry.Metrics
	server   *http.Server
}

// NewServer creates an ingestion server. The metrics handle may be nil.
func NewServer(cfg config.IngestConfig, detector *detect.Detector, metrics *telemetry.Metrics) *Server {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	s := &Server{
		addr:     cfg.Addr(),
		detector: detector,
		store:    newCSVStore(cfg.CSVPath),
		limiter:  rate.NewLimiter(limit, burst),
		metrics:  metrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.addr).Msg("Ingestion endpoint listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Ingestion endpoint failed")
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the server's handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Status: "error", Detail: "rate limit exceeded"})
		return
	}

	var batch eventBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Detail: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	if err := s.store.append(batch.Events); err != nil {
		log.Error().Err(err).Msg("Failed to mirror events to CSV store")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Detail: fmt.Sprintf("error processing events: %v", err)})
		return
	}

	threats := s.detector.Analyze(r.Context(), batch.Events)
	s.metrics.RecordEventsIngested(len(batch.Events))

	writeJSON(w, http.StatusOK, ingestResponse{
		Status:       "success",
		ThreatsFound: len(threats),
		Threats:      threats,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response body")
	}
}
