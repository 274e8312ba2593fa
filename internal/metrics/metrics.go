package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex         sync.RWMutex
	admitted      map[string]int64
	blocked       map[string]int64
	failures      map[string]int64
	stateChanges  map[string]int64
	states        map[string]string
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	healthStatus  map[string]bool
	startTime     time.Time
}

type Snapshot struct {
	TotalCalls   int64                     `json:"total_calls"`
	TotalBlocked int64                     `json:"total_blocked"`
	Uptime       time.Duration             `json:"uptime"`
	Breakers     map[string]BreakerMetrics `json:"breakers"`
}

type BreakerMetrics struct {
	Admitted     int64         `json:"admitted"`
	Blocked      int64         `json:"blocked"`
	Failures     int64         `json:"failures"`
	StateChanges int64         `json:"state_changes"`
	State        string        `json:"state"`
	Healthy      bool          `json:"healthy"`
	AvgResponse  time.Duration `json:"avg_response"`
	P50Response  time.Duration `json:"p50_response"`
	P95Response  time.Duration `json:"p95_response"`
	P99Response  time.Duration `json:"p99_response"`
	StatusCodes  map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		admitted:      make(map[string]int64),
		blocked:       make(map[string]int64),
		failures:      make(map[string]int64),
		stateChanges:  make(map[string]int64),
		states:        make(map[string]string),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		healthStatus:  make(map[string]bool),
		startTime:     time.Now(),
	}
}

func (m *Metrics) IncrementAdmitted(breaker string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.admitted[breaker]++
}

func (m *Metrics) IncrementBlocked(breaker string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.blocked[breaker]++
}

func (m *Metrics) RecordResponse(breaker string, duration time.Duration, statusCode int, failed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[breaker] = append(m.responseTimes[breaker], duration)

	if len(m.responseTimes[breaker]) > 1000 {
		m.responseTimes[breaker] = m.responseTimes[breaker][1:]
	}

	if m.statusCodes[breaker] == nil {
		m.statusCodes[breaker] = make(map[int]int64)
	}
	m.statusCodes[breaker][statusCode]++

	if failed {
		m.failures[breaker]++
	}
}

func (m *Metrics) RecordStateChange(breaker string, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.stateChanges[breaker]++
	m.states[breaker] = state
}

func (m *Metrics) UpdateHealthStatus(breaker string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthStatus[breaker] = healthy
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:   time.Since(m.startTime),
		Breakers: make(map[string]BreakerMetrics),
	}

	// Collect all breaker names seen by any event stream
	allBreakers := make(map[string]bool)
	for breaker := range m.admitted {
		allBreakers[breaker] = true
	}
	for breaker := range m.blocked {
		allBreakers[breaker] = true
	}
	for breaker := range m.responseTimes {
		allBreakers[breaker] = true
	}
	for breaker := range m.states {
		allBreakers[breaker] = true
	}
	for breaker := range m.healthStatus {
		allBreakers[breaker] = true
	}

	for breaker := range allBreakers {
		snap.TotalCalls += m.admitted[breaker]
		snap.TotalBlocked += m.blocked[breaker]

		bm := BreakerMetrics{
			Admitted:     m.admitted[breaker],
			Blocked:      m.blocked[breaker],
			Failures:     m.failures[breaker],
			StateChanges: m.stateChanges[breaker],
			State:        m.states[breaker],
			Healthy:      m.healthStatus[breaker],
		}
		if bm.State == "" {
			bm.State = "CLOSED"
		}

		// Copy under the lock; callers hold the snapshot after RUnlock
		// while the collector keeps writing.
		if codes := m.statusCodes[breaker]; len(codes) > 0 {
			bm.StatusCodes = make(map[int]int64, len(codes))
			for code, count := range codes {
				bm.StatusCodes[code] = count
			}
		}

		durations := m.responseTimes[breaker]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			bm.AvgResponse = average(sorted)
			bm.P50Response = percentile(sorted, 0.50)
			bm.P95Response = percentile(sorted, 0.95)
			bm.P99Response = percentile(sorted, 0.99)
		}

		snap.Breakers[breaker] = bm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
