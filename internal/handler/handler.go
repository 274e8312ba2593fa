package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cabril87/circuitguard/internal/metrics"
	"github.com/cabril87/circuitguard/internal/upstream"
)

// errUpstreamFailure marks a proxied response that counts against the
// breaker (5xx from the upstream, including transport errors surfaced by
// the reverse proxy as 502).
var errUpstreamFailure = errors.New("upstream returned a server error")

type ProxyHandler struct {
	logger           *slog.Logger
	upstreams        map[string]*upstream.Upstream
	metricsCollector *metrics.Collector
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func NewProxyHandler(logger *slog.Logger, upstreams []*upstream.Upstream, collector *metrics.Collector) *ProxyHandler {
	byName := make(map[string]*upstream.Upstream, len(upstreams))
	for _, u := range upstreams {
		byName[u.Name()] = u
	}

	return &ProxyHandler{
		logger:           logger,
		upstreams:        byName,
		metricsCollector: collector,
	}
}

// ServeHTTP forwards /proxy/{name}/... to the named upstream through its
// circuit breaker. Blocked calls degrade to a 503 fallback body without
// ever reaching the upstream.
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, rest := splitProxyPath(r.URL.Path)
	if name == "" {
		http.Error(w, "missing upstream name", http.StatusNotFound)
		return
	}

	up, ok := h.upstreams[name]
	if !ok {
		h.logger.Warn("Unknown upstream requested",
			slog.String("upstream", name),
			slog.String("client", extractClientIP(r)))
		http.Error(w, "unknown upstream", http.StatusNotFound)
		return
	}

	h.logger.Info("Received request",
		slog.String("from", extractClientIP(r)),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("upstream", name))

	cb := up.Breaker()

	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

	start := time.Now()
	ran, _ := cb.Execute(func() error {
		// Only calls that actually reach the upstream advertise it.
		w.Header().Set("X-Upstream", up.URL().String())

		proxied := r.Clone(r.Context())
		proxied.URL.Path = rest

		up.ReverseProxy().ServeHTTP(wrapped, proxied)

		if wrapped.statusCode >= http.StatusInternalServerError {
			return errUpstreamFailure
		}
		return nil
	})

	if !ran {
		h.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventCallBlocked,
			Timestamp: time.Now(),
			Breaker:   name,
		})
		h.writeFallback(w, name)
		return
	}

	duration := time.Since(start)
	up.RecordResponse(duration)

	h.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventCallAdmitted,
		Timestamp: time.Now(),
		Breaker:   name,
	})
	h.emitEvent(metrics.MetricEvent{
		Type:       metrics.EventCallCompleted,
		Timestamp:  time.Now(),
		Breaker:    name,
		Duration:   duration,
		StatusCode: wrapped.statusCode,
		Failed:     wrapped.statusCode >= http.StatusInternalServerError,
	})
}

// writeFallback answers a blocked call with the degraded-path response.
// The caller never sees a breaker error, only a 503 with a JSON body.
func (h *ProxyHandler) writeFallback(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusServiceUnavailable)

	body := map[string]string{
		"error":   "service temporarily unavailable",
		"service": name,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write fallback response", slog.Any("err", err))
	}
}

// splitProxyPath extracts the upstream name and the remaining path from
// /proxy/{name}/rest-of-path.
func splitProxyPath(path string) (name, rest string) {
	trimmed := strings.TrimPrefix(path, "/proxy/")
	if trimmed == path {
		return "", ""
	}

	name, rest, found := strings.Cut(trimmed, "/")
	if !found {
		return name, "/"
	}
	return name, "/" + rest
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func (h *ProxyHandler) emitEvent(event metrics.MetricEvent) {
	if h.metricsCollector == nil {
		return
	}

	h.metricsCollector.Emit(event)
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the wrapper; the reverse
// proxy flushes periodically and probes for http.Flusher.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
