// Package observability provides structured logging and metrics for the chat client.
//
// This package implements:
//   - Logger construction (zap-based, json or console encoding)
//   - Prometheus counters and histograms for provider dispatch
//
// The dispatcher records every provider attempt and every fallback.
package observability
