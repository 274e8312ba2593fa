package circuitbreaker

import "context"

// ExecuteWithFallback runs op through cb and returns its result. When the
// circuit blocks the call the fallback value is returned with a nil error
// and op is never invoked. When op itself fails, the failure is recorded
// and op's error is returned unchanged; the fallback only covers "blocked",
// never "failed".
//
// These are package-level functions because Go methods cannot take type
// parameters.
func ExecuteWithFallback[T any](cb *CircuitBreaker, fallback T, op func() (T, error)) (T, error) {
	if !cb.Allow() {
		return fallback, nil
	}

	value, err := op()
	if err != nil {
		cb.RecordFailure()
		return value, err
	}

	cb.RecordSuccess()
	return value, nil
}

// ExecuteWithFallbackContext is ExecuteWithFallback for context-aware
// operations.
func ExecuteWithFallbackContext[T any](ctx context.Context, cb *CircuitBreaker, fallback T, op func(context.Context) (T, error)) (T, error) {
	if !cb.Allow() {
		return fallback, nil
	}

	value, err := op(ctx)
	if err != nil {
		cb.RecordFailure()
		return value, err
	}

	cb.RecordSuccess()
	return value, nil
}
