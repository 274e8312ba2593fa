// Package upstream implements reverse proxy plumbing for guarded downstream
// services. Each upstream couples a named HTTP target with its circuit
// breaker, a health flag maintained by the health checker, and response
// time monitoring.
package upstream
