package main

import (
	"net/http"

	"github.com/cabril87/circuitguard/internal/circuitbreaker"
	"github.com/cabril87/circuitguard/internal/handler"
	"github.com/cabril87/circuitguard/internal/metrics"
	"github.com/cabril87/circuitguard/internal/upstream"
)

func setupRouter(
	proxyHandler *handler.ProxyHandler,
	registry *circuitbreaker.Registry,
	upstreams []*upstream.Upstream,
	metricsCollector *metrics.Collector,
) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/proxy/", proxyHandler)
	mux.HandleFunc("/health", handler.Health(registry, upstreams))
	mux.HandleFunc("/metrics", metricsCollector.Handler())

	return mux
}
