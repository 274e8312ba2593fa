// Package logger builds the application-wide log/slog logger. Production
// environments get a JSON handler, everything else a text handler, and every
// record carries the service and environment attributes.
package logger
