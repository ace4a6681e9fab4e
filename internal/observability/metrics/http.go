package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	analyzeTotal        *prometheus.CounterVec
	analyzeDuration     *prometheus.HistogramVec
	finalConfidence     *prometheus.HistogramVec
	photoShortCircuits  *prometheus.CounterVec
	ocrFallbackTotal    *prometheus.CounterVec
	autoFileBlocked     *prometheus.CounterVec
	escalationsTotal    *prometheus.CounterVec
	goldSetComparedHist *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vda",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vda",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vda",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	analyzeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vda",
			Subsystem: "pipeline",
			Name:      "analyze_total",
			Help:      "Total completed document analyses by outcome.",
		},
		[]string{"service", "outcome"},
	)
	analyzeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vda",
			Subsystem: "pipeline",
			Name:      "analyze_duration_seconds",
			Help:      "Document analysis duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"service"},
	)
	finalConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vda",
			Subsystem: "pipeline",
			Name:      "final_confidence",
			Help:      "Distribution of final classification confidence.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)
	photoShortCircuits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vda",
			Subsystem: "pipeline",
			Name:      "photo_short_circuit_total",
			Help:      "Total analyses resolved by the photo detector.",
		},
		[]string{"service", "subtype"},
	)
	ocrFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vda",
			Subsystem: "pipeline",
			Name:      "ocr_fallback_total",
			Help:      "Total analyses that continued without extracted text.",
		},
		[]string{"service"},
	)
	autoFileBlocked := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vda",
			Subsystem: "pipeline",
			Name:      "auto_file_blocked_total",
			Help:      "Total analyses barred from automatic filing, by reason.",
		},
		[]string{"service", "reason"},
	)
	escalationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vda",
			Subsystem: "pipeline",
			Name:      "escalations_total",
			Help:      "Total second-pass reclassifications triggered.",
		},
		[]string{"service"},
	)
	goldSetComparedHist := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vda",
			Subsystem: "pipeline",
			Name:      "gold_set_examples_compared",
			Help:      "Distribution of reference examples compared per analysis.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		analyzeTotal,
		analyzeDuration,
		finalConfidence,
		photoShortCircuits,
		ocrFallbackTotal,
		autoFileBlocked,
		escalationsTotal,
		goldSetComparedHist,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		analyzeTotal:        analyzeTotal,
		analyzeDuration:     analyzeDuration,
		finalConfidence:     finalConfidence,
		photoShortCircuits:  photoShortCircuits,
		ocrFallbackTotal:    ocrFallbackTotal,
		autoFileBlocked:     autoFileBlocked,
		escalationsTotal:    escalationsTotal,
		goldSetComparedHist: goldSetComparedHist,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/jobs/"):
		return "/v1/jobs/{job_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordAnalysis(service, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.analyzeTotal.WithLabelValues(service, outcome).Inc()
	m.analyzeDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordFinalConfidence(service string, confidence float64) {
	m.finalConfidence.WithLabelValues(service).Observe(confidence)
}

func (m *HTTPServerMetrics) RecordPhotoShortCircuit(service, subtype string) {
	if subtype == "" {
		subtype = "other"
	}
	m.photoShortCircuits.WithLabelValues(service, subtype).Inc()
}

func (m *HTTPServerMetrics) RecordOcrFallback(service string) {
	m.ocrFallbackTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordAutoFileBlocked(service, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.autoFileBlocked.WithLabelValues(service, reason).Inc()
}

func (m *HTTPServerMetrics) RecordEscalation(service string) {
	m.escalationsTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordGoldSetCompared(service string, examples int) {
	m.goldSetComparedHist.WithLabelValues(service).Observe(float64(examples))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
