// Package handler implements the HTTP request handlers for the circuit
// breaker proxy. It routes requests to named upstreams through their
// breakers, serves the fallback path for blocked calls, and exposes the
// health report for all registered breakers.
package handler
