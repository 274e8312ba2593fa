package circuitbreaker_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cabril87/circuitguard/internal/circuitbreaker"
)

var _ = Describe("ExecuteWithFallback", func() {
	var cb *circuitbreaker.CircuitBreaker

	BeforeEach(func() {
		cb = circuitbreaker.NewCircuitBreaker("catalog", 2, 100*time.Millisecond, nil)
	})

	It("should return the operation result on success", func() {
		value, err := circuitbreaker.ExecuteWithFallback(cb, "cached", func() (string, error) {
			return "fresh", nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("fresh"))
	})

	It("should return the fallback without error when blocked", func() {
		cb.Trip()

		invoked := false
		value, err := circuitbreaker.ExecuteWithFallback(cb, "cached", func() (string, error) {
			invoked = true
			return "fresh", nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("cached"))
		Expect(invoked).To(BeFalse())
	})

	It("should propagate the operation error rather than the fallback", func() {
		opErr := errors.New("stale upstream")
		_, err := circuitbreaker.ExecuteWithFallback(cb, "cached", func() (string, error) {
			return "", opErr
		})
		Expect(err).To(MatchError(opErr))
		Expect(cb.Failures()).To(Equal(1))
	})

	It("should work with struct values", func() {
		type page struct{ Items int }

		cb.Trip()
		value, err := circuitbreaker.ExecuteWithFallback(cb, page{Items: -1}, func() (page, error) {
			return page{Items: 10}, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(value.Items).To(Equal(-1))
	})
})

var _ = Describe("ExecuteWithFallbackContext", func() {
	var cb *circuitbreaker.CircuitBreaker

	BeforeEach(func() {
		cb = circuitbreaker.NewCircuitBreaker("catalog", 2, 100*time.Millisecond, nil)
	})

	It("should pass the context through to the operation", func() {
		type key struct{}
		ctx := context.WithValue(context.Background(), key{}, "marker")

		value, err := circuitbreaker.ExecuteWithFallbackContext(ctx, cb, "", func(ctx context.Context) (string, error) {
			v, _ := ctx.Value(key{}).(string)
			return v, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("marker"))
	})

	It("should record a cancellation reported by the operation as a failure", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := circuitbreaker.ExecuteWithFallbackContext(ctx, cb, 0, func(ctx context.Context) (int, error) {
			return 0, ctx.Err()
		})
		Expect(err).To(MatchError(context.Canceled))
		Expect(cb.Failures()).To(Equal(1))
	})

	It("should return the fallback when blocked", func() {
		cb.Trip()
		value, err := circuitbreaker.ExecuteWithFallbackContext(context.Background(), cb, 42, func(ctx context.Context) (int, error) {
			return 7, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal(42))
	})
})

var _ = Describe("ExecuteContext", func() {
	It("should behave like Execute with a context-aware operation", func() {
		cb := circuitbreaker.NewCircuitBreaker("catalog", 2, 100*time.Millisecond, nil)

		ran, err := cb.ExecuteContext(context.Background(), func(ctx context.Context) error {
			return nil
		})
		Expect(ran).To(BeTrue())
		Expect(err).NotTo(HaveOccurred())

		cb.Trip()
		ran, err = cb.ExecuteContext(context.Background(), func(ctx context.Context) error {
			return nil
		})
		Expect(ran).To(BeFalse())
		Expect(err).NotTo(HaveOccurred())
	})
})
