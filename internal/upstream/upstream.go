package upstream

import (
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/cabril87/circuitguard/internal/circuitbreaker"
)

// Upstream represents a named downstream service with health status,
// response time monitoring, and the circuit breaker guarding calls to it.
type Upstream struct {
	name             string
	url              *url.URL
	proxy            *httputil.ReverseProxy
	breaker          *circuitbreaker.CircuitBreaker
	mutex            sync.Mutex
	isHealthy        bool
	ewmaResponseTime time.Duration
	hasEWMA          bool
}

const ewmaAlpha = 0.2

// New creates a new Upstream for the given URL guarded by cb.
// The upstream starts in a healthy state.
func New(name string, url *url.URL, cb *circuitbreaker.CircuitBreaker) *Upstream {
	return &Upstream{
		name:      name,
		url:       url,
		proxy:     httputil.NewSingleHostReverseProxy(url),
		breaker:   cb,
		isHealthy: true,
	}
}

// Name returns the upstream's configured name.
func (u *Upstream) Name() string {
	return u.name
}

// URL returns the upstream service URL.
func (u *Upstream) URL() *url.URL {
	return u.url
}

// ReverseProxy returns the HTTP reverse proxy for this upstream.
func (u *Upstream) ReverseProxy() *httputil.ReverseProxy {
	return u.proxy
}

// Breaker returns the circuit breaker guarding this upstream.
func (u *Upstream) Breaker() *circuitbreaker.CircuitBreaker {
	return u.breaker
}

// IsHealthy returns true if the upstream is currently healthy.
func (u *Upstream) IsHealthy() bool {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.isHealthy
}

// SetHealthy updates the upstream's health status.
// Returns true if the status changed, false if it was already in that state.
func (u *Upstream) SetHealthy(healthy bool) (changed bool) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if u.isHealthy == healthy {
		return false
	}

	u.isHealthy = healthy
	return true
}

// RecordResponse updates the exponentially weighted moving average (EWMA)
// response time using the latest request duration.
func (u *Upstream) RecordResponse(duration time.Duration) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		u.ewmaResponseTime = duration
		u.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	u.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(u.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns the exponentially weighted moving average response time.
// Returns 0 if no responses have been recorded yet.
func (u *Upstream) EWMATime() time.Duration {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		return 0
	}

	return u.ewmaResponseTime
}
