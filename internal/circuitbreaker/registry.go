package circuitbreaker

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Settings holds the registry-wide defaults applied to breakers created
// without explicit parameters.
type Settings struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Registry is the process-wide name-to-breaker map. Breakers are created
// lazily on first request and live for the lifetime of the process; nothing
// ever removes them.
type Registry struct {
	mutex         sync.RWMutex
	breakers      map[string]*CircuitBreaker
	defaults      Settings
	logger        *slog.Logger
	onStateChange StateChangeFunc
}

// BreakerStatus is a point-in-time view of one breaker, shaped for
// health-check reporting.
type BreakerStatus struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Failures int    `json:"consecutive_failures"`
}

func NewRegistry(defaults Settings, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		defaults: defaults,
		logger:   logger,
	}
}

// GetOrCreate returns the breaker registered under name, creating it with
// the supplied configuration if it does not exist yet. Configuration is
// honored on first creation only; later calls with different parameters
// return the existing instance unchanged. Non-positive parameters fall back
// to the registry defaults. Safe to call concurrently; creation races on
// the same name resolve to a single winning instance.
func (r *Registry) GetOrCreate(name string, threshold int, timeout time.Duration) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	if threshold <= 0 {
		threshold = r.defaults.FailureThreshold
	}
	if timeout <= 0 {
		timeout = r.defaults.ResetTimeout
	}

	cb = NewCircuitBreaker(name, threshold, timeout, r.logger)
	cb.setOnStateChange(r.onStateChange)
	r.breakers[name] = cb

	r.logger.Info("created circuit breaker",
		slog.String("breaker", name),
		slog.Int("failure_threshold", cb.failureThreshold),
		slog.Duration("reset_timeout", cb.resetTimeout))

	return cb
}

// Get returns the breaker registered under name without creating one.
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	cb, exists := r.breakers[name]
	return cb, exists
}

// OnStateChange registers the observer applied to every breaker, existing
// and future. The last registered observer wins.
func (r *Registry) OnStateChange(fn StateChangeFunc) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.onStateChange = fn
	for _, cb := range r.breakers {
		cb.setOnStateChange(fn)
	}
}

// States returns the current state of every registered breaker keyed by name.
func (r *Registry) States() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	states := make(map[string]State, len(r.breakers))
	for name, cb := range r.breakers {
		states[name] = cb.State()
	}
	return states
}

// Snapshot returns a status entry per breaker, sorted by name for stable
// health-endpoint output.
func (r *Registry) Snapshot() []BreakerStatus {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	statuses := make([]BreakerStatus, 0, len(r.breakers))
	for name, cb := range r.breakers {
		statuses = append(statuses, BreakerStatus{
			Name:     name,
			State:    cb.State().String(),
			Failures: cb.Failures(),
		})
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})

	return statuses
}
