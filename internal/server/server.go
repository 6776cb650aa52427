// Package server exposes the classifier over HTTP.
//
// Routes:
//
//	POST /api/v1/predict     {"texto": "..."} → prediction JSON
//	POST /api/v1/batch       CSV with a texto column → CSV with categoria, categoria_num
//	GET  /api/v1/categories  category labels and support suggestions
//	GET  /health/live        liveness
//	GET  /health/ready       readiness (503 while the classifier is unavailable)
//	GET  /metrics            Prometheus scrape endpoint, when enabled
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chriscorrea/relatos/internal/batch"
	"github.com/chriscorrea/relatos/internal/category"
	"github.com/chriscorrea/relatos/internal/config"
	"github.com/chriscorrea/relatos/internal/logger"
	"github.com/chriscorrea/relatos/internal/metrics"
	"github.com/chriscorrea/relatos/internal/predict"
	"github.com/chriscorrea/relatos/internal/textproc"
	"github.com/prometheus/client_golang/prometheus"
)

// Predictor is the classification backend.
type Predictor interface {
	Predict(ctx context.Context, text string) (predict.Result, error)
	PredictBatch(ctx context.Context, docs []string) ([]predict.Result, error)
	Ready(ctx context.Context) error
}

// Options configure a Server.
type Options struct {
	// Metrics and Gatherer enable instrumentation and /metrics when both are set.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// Checker receives the classifier check; extra checks may be registered on it.
	Checker      *Checker
	MaxBodyBytes int64
}

// Server holds the HTTP handlers.
type Server struct {
	predictor Predictor
	opts      Options
	checker   *Checker
	handler   http.Handler
	logger    *slog.Logger
}

// New builds a Server around p.
func New(p Predictor, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 * 1024 * 1024
	}
	checker := opts.Checker
	if checker == nil {
		checker = NewChecker()
	}

	s := &Server{
		predictor: p,
		opts:      opts,
		checker:   checker,
		logger:    logger.WithComponent("server"),
	}
	checker.Register("classifier", s.classifierCheck)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/predict", s.handlePredict)
	mux.HandleFunc("POST /api/v1/batch", s.handleBatch)
	mux.HandleFunc("GET /api/v1/categories", s.handleCategories)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var handler http.Handler = mux
	if opts.Metrics != nil && opts.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(opts.Gatherer))
		handler = withMetrics(opts.Metrics, mux, handler)
	}
	s.handler = withLogging(s.logger, handler)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) classifierCheck(ctx context.Context) ComponentHealth {
	err := s.predictor.Ready(ctx)
	if s.opts.Metrics != nil {
		s.opts.Metrics.SetReady(err == nil)
	}
	if err != nil {
		return ComponentHealth{Status: StatusDown, Message: err.Error()}
	}
	return ComponentHealth{Status: StatusUp}
}

type predictRequest struct {
	// Texto is decoded loosely: anything that is not a string is treated
	// as an empty document.
	Texto any `json:"texto"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	res, err := s.predictor.Predict(r.Context(), textproc.AsDocument(req.Texto))
	if err != nil {
		s.writePredictError(w, err)
		return
	}
	s.observe(res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)

	table, err := batch.Read(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, batch.ErrMissingColumn):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	out, results, err := batch.Classify(r.Context(), s.predictor, table)
	if err != nil {
		s.writePredictError(w, err)
		return
	}
	for _, res := range results {
		s.observe(res)
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.BatchRows.Observe(float64(len(results)))
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="relatos_classificados.csv"`)
	if err := batch.Write(w, out); err != nil {
		s.logger.Warn("Failed to write batch response", "error", err)
	}
}

type categoryInfo struct {
	Index       int      `json:"categoria_num"`
	Name        string   `json:"nome"`
	Label       string   `json:"categoria"`
	Suggestions []string `json:"sugestoes"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	infos := make([]categoryInfo, 0, category.Count)
	for _, c := range category.All() {
		infos = append(infos, categoryInfo{
			Index:       c.Index(),
			Name:        c.String(),
			Label:       c.Label(),
			Suggestions: c.Suggestions(),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) observe(res predict.Result) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObservePrediction(res.Category, res.Degraded)
	}
}

func (s *Server) writePredictError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, predict.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, predict.ErrUnavailable.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.logger.Error("Prediction failed", "error", err)
		writeError(w, http.StatusInternalServerError, "prediction failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
