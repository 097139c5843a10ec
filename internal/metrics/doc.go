// ABOUTME: Metrics package documentation
// ABOUTME: Prometheus instrumentation for the player
// Package metrics exposes Prometheus counters and gauges for the
// playback pipeline. Metrics register on a caller-supplied registry so
// tests can create as many sets as they need.
package metrics
