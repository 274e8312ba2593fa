package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cabril87/circuitguard/internal/circuitbreaker"
	"github.com/cabril87/circuitguard/internal/upstream"
)

type upstreamStatus struct {
	Name         string        `json:"name"`
	URL          string        `json:"url"`
	Healthy      bool          `json:"healthy"`
	EWMAResponse time.Duration `json:"ewma_response"`
}

type healthReport struct {
	Status    string                          `json:"status"`
	Breakers  []circuitbreaker.BreakerStatus  `json:"breakers"`
	Upstreams []upstreamStatus                `json:"upstreams"`
}

// Health returns a handler reporting every registered breaker's state and
// every upstream's health. The overall status is degraded as soon as any
// breaker is not closed.
func Health(registry *circuitbreaker.Registry, upstreams []*upstream.Upstream) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{
			Status:   "ok",
			Breakers: registry.Snapshot(),
		}

		for _, status := range report.Breakers {
			if status.State != circuitbreaker.StateClosed.String() {
				report.Status = "degraded"
				break
			}
		}

		for _, u := range upstreams {
			report.Upstreams = append(report.Upstreams, upstreamStatus{
				Name:         u.Name(),
				URL:          u.URL().String(),
				Healthy:      u.IsHealthy(),
				EWMAResponse: u.EWMATime(),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
