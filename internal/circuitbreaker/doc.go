// Package circuitbreaker implements named circuit breakers for guarding
// calls to unreliable downstream dependencies.
//
// A breaker prevents cascading failures by blocking calls to a failing
// dependency after a run of consecutive failures. It has three states:
//
//   - CLOSED: Normal operation, calls pass through
//   - OPEN: Dependency failing, calls blocked until the reset timeout
//   - HALF-OPEN: Exactly one trial call probes for recovery
//
// Breakers are obtained from a process-wide Registry keyed by name; the
// configuration supplied on first creation wins and later lookups return
// the same instance.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(circuitbreaker.Settings{}, logger)
//	cb := registry.GetOrCreate("billing-api", 5, 30*time.Second)
//
//	ran, err := cb.Execute(func() error {
//	    return callBillingAPI()
//	})
//	if !ran {
//	    // circuit open, use the degraded path
//	}
//
// ExecuteWithFallback returns a caller-supplied value instead of the
// ran/blocked bool when the circuit is open. Trip and Reset provide manual
// overrides into the open and closed states.
package circuitbreaker
