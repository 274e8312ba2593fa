package metrics_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cabril87/circuitguard/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		log       *slog.Logger
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError, // Suppress logs in tests
		}))
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, log)
	})

	AfterEach(func() {
		cancel()
		time.Sleep(10 * time.Millisecond) // Allow goroutine to finish
	})

	Describe("NewCollector", func() {
		It("should create a collector with specified buffer size", func() {
			c := metrics.NewCollector(500, log)
			Expect(c).NotTo(BeNil())
		})
	})

	Describe("EventChannel", func() {
		It("should return a write-only channel", func() {
			ch := collector.EventChannel()
			Expect(ch).NotTo(BeNil())
		})
	})

	Describe("Start and event processing", func() {
		It("should process EventCallAdmitted", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{
				Type:      metrics.EventCallAdmitted,
				Timestamp: time.Now(),
				Breaker:   "tasks-api",
			}
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.Breakers["tasks-api"].Admitted).To(Equal(int64(1)))
		})

		It("should process EventCallBlocked", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{
				Type:      metrics.EventCallBlocked,
				Timestamp: time.Now(),
				Breaker:   "tasks-api",
			}
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.Breakers["tasks-api"].Blocked).To(Equal(int64(1)))
			Expect(snap.TotalBlocked).To(Equal(int64(1)))
		})

		It("should process EventCallCompleted", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{
				Type:       metrics.EventCallCompleted,
				Timestamp:  time.Now(),
				Breaker:    "tasks-api",
				Duration:   100 * time.Millisecond,
				StatusCode: 200,
			}
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			breaker := snap.Breakers["tasks-api"]
			Expect(breaker.AvgResponse).To(Equal(100 * time.Millisecond))
			Expect(breaker.StatusCodes[200]).To(Equal(int64(1)))
		})

		It("should count failed completions", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{
				Type:       metrics.EventCallCompleted,
				Timestamp:  time.Now(),
				Breaker:    "tasks-api",
				Duration:   30 * time.Millisecond,
				StatusCode: 502,
				Failed:     true,
			}
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.Breakers["tasks-api"].Failures).To(Equal(int64(1)))
		})

		It("should process EventStateChanged", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{
				Type:      metrics.EventStateChanged,
				Timestamp: time.Now(),
				Breaker:   "tasks-api",
				State:     "OPEN",
			}
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.Breakers["tasks-api"].State).To(Equal("OPEN"))
			Expect(snap.Breakers["tasks-api"].StateChanges).To(Equal(int64(1)))
		})

		It("should process EventHealthChanged", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{
				Type:      metrics.EventHealthChanged,
				Timestamp: time.Now(),
				Breaker:   "tasks-api",
				Healthy:   true,
			}
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.Breakers["tasks-api"].Healthy).To(BeTrue())
		})

		It("should process multiple events in sequence", func() {
			collector.Start(ctx)

			events := []metrics.MetricEvent{
				{
					Type:      metrics.EventCallAdmitted,
					Timestamp: time.Now(),
					Breaker:   "tasks-api",
				},
				{
					Type:       metrics.EventCallCompleted,
					Timestamp:  time.Now(),
					Breaker:    "tasks-api",
					Duration:   50 * time.Millisecond,
					StatusCode: 201,
				},
				{
					Type:      metrics.EventCallBlocked,
					Timestamp: time.Now(),
					Breaker:   "tasks-api",
				},
			}

			for _, event := range events {
				collector.EventChannel() <- event
			}
			time.Sleep(20 * time.Millisecond)

			snap := collector.Snapshot()
			breaker := snap.Breakers["tasks-api"]
			Expect(breaker.Admitted).To(Equal(int64(1)))
			Expect(breaker.Blocked).To(Equal(int64(1)))
			Expect(breaker.AvgResponse).To(Equal(50 * time.Millisecond))
			Expect(breaker.StatusCodes[201]).To(Equal(int64(1)))
		})

		It("should drain events on context cancellation", func() {
			collector.Start(ctx)

			// Send events before cancellation
			for i := 0; i < 5; i++ {
				collector.EventChannel() <- metrics.MetricEvent{
					Type:      metrics.EventCallAdmitted,
					Timestamp: time.Now(),
					Breaker:   "tasks-api",
				}
			}

			cancel()
			time.Sleep(20 * time.Millisecond)

			snap := collector.Snapshot()
			// All events should be processed via drain
			Expect(snap.Breakers["tasks-api"].Admitted).To(Equal(int64(5)))
		})
	})

	Describe("Emit", func() {
		It("should not block when the buffer is full", func() {
			small := metrics.NewCollector(1, log)

			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 10; i++ {
					small.Emit(metrics.MetricEvent{
						Type:    metrics.EventCallAdmitted,
						Breaker: "tasks-api",
					})
				}
			}()

			Eventually(done).Should(BeClosed())
		})
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{
				Type:      metrics.EventCallAdmitted,
				Timestamp: time.Now(),
				Breaker:   "tasks-api",
			}
			time.Sleep(10 * time.Millisecond)

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			rec := httptest.NewRecorder()
			collector.Handler()(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(rec.Body.String()).To(ContainSubstring("tasks-api"))
		})
	})

	Describe("Snapshot", func() {
		It("should return current metrics snapshot", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{
				Type:      metrics.EventCallAdmitted,
				Timestamp: time.Now(),
				Breaker:   "tasks-api",
			}
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.TotalCalls).To(Equal(int64(1)))
		})
	})
})
