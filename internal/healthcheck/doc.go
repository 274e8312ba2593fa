// Package healthcheck implements periodic health checking for upstream
// services. It monitors upstream availability and updates their health
// status based on HTTP health endpoint responses, reporting changes to
// the metrics pipeline.
package healthcheck
