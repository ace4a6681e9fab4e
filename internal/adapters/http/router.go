package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/vault-doc-analyzer/internal/core/domain"
	"github.com/kirillkom/vault-doc-analyzer/internal/core/ports"
	"github.com/kirillkom/vault-doc-analyzer/internal/observability/metrics"
)

const userIDHeader = "X-User-Id"

type Router struct {
	analyzer ports.DocumentAnalyzer
	jobs     ports.JobScheduler
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
	service  string
	timeout  time.Duration
}

func NewRouter(
	analyzer ports.DocumentAnalyzer,
	jobs ports.JobScheduler,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	service string,
	timeout time.Duration,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Router{
		analyzer: analyzer,
		jobs:     jobs,
		metrics:  m,
		logger:   logger,
		service:  service,
		timeout:  timeout,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents/analyze", rt.analyzeDocument)
	mux.HandleFunc("/v1/documents/analyze/async", rt.enqueueAnalysis)
	mux.HandleFunc("/v1/jobs/", rt.getJobByID)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := rt.decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), rt.timeout)
	defer cancel()

	start := time.Now()
	report, err := rt.analyzer.Analyze(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			rt.writeError(w, r, http.StatusGatewayTimeout, "analysis timed out", err)
			return
		}
		rt.writeError(w, r, mapErrorToHTTPStatus(err), err.Error(), err)
		return
	}

	rt.recordPipeline(report, time.Since(start))
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) enqueueAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := rt.decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	job, err := rt.jobs.Enqueue(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, mapErrorToHTTPStatus(err), err.Error(), err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  job.ID,
		"status": string(job.Status),
	})
}

func (rt *Router) getJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	userID := strings.TrimSpace(r.Header.Get(userIDHeader))
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "caller identity is required"})
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	job, err := rt.jobs.GetByID(r.Context(), userID, jobID)
	if err != nil {
		rt.writeError(w, r, mapErrorToHTTPStatus(err), err.Error(), err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) decodeAnalyzeRequest(w http.ResponseWriter, r *http.Request) (domain.AnalyzeRequest, bool) {
	userID := strings.TrimSpace(r.Header.Get(userIDHeader))
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "caller identity is required"})
		return domain.AnalyzeRequest{}, false
	}

	var req domain.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return domain.AnalyzeRequest{}, false
	}
	req.UserID = userID
	return req, true
}

func (rt *Router) recordPipeline(report *domain.AnalyzeReport, duration time.Duration) {
	if rt.metrics == nil || report == nil {
		return
	}

	outcome := "needs_review"
	switch {
	case report.IsPhoto:
		outcome = "photo"
		if report.PhotoDetection != nil {
			rt.metrics.RecordPhotoShortCircuit(rt.service, report.PhotoDetection.PhotoSubtype)
		}
	case report.MultiSignal != nil && report.MultiSignal.CanAutoFile:
		outcome = "auto_filed"
	}
	rt.metrics.RecordAnalysis(rt.service, outcome, duration)

	if report.Result != nil {
		rt.metrics.RecordFinalConfidence(rt.service, report.Result.Classification.Confidence)
	}
	if !report.IsPhoto && !report.TextractUsed {
		rt.metrics.RecordOcrFallback(rt.service)
	}
	if report.MultiSignal != nil && !report.MultiSignal.CanAutoFile {
		rt.metrics.RecordAutoFileBlocked(rt.service, report.MultiSignal.AutoFileBlockReason)
	}
	if report.Pass2Used {
		rt.metrics.RecordEscalation(rt.service)
	}
	if report.Embeddings != nil {
		rt.metrics.RecordGoldSetCompared(rt.service, report.Embeddings.ExamplesCompared)
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if status >= 500 {
		rt.logger.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
