package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventCallAdmitted  EventType = "call_admitted"
	EventCallBlocked   EventType = "call_blocked"
	EventCallCompleted EventType = "call_completed"
	EventStateChanged  EventType = "state_changed"
	EventHealthChanged EventType = "health_changed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Breaker    string
	Duration   time.Duration
	StatusCode int
	Failed     bool
	State      string
	Healthy    bool
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit sends an event without blocking; events are dropped when the buffer
// is full rather than stalling the call path.
func (c *Collector) Emit(event MetricEvent) {
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventCallAdmitted:
		c.metrics.IncrementAdmitted(event.Breaker)

	case EventCallBlocked:
		c.metrics.IncrementBlocked(event.Breaker)

	case EventCallCompleted:
		c.metrics.RecordResponse(event.Breaker, event.Duration, event.StatusCode, event.Failed)

	case EventStateChanged:
		c.metrics.RecordStateChange(event.Breaker, event.State)

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Breaker, event.Healthy)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
