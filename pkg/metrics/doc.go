// Package metrics defines the metrics hooks of the subscription engine and
// the periodic dispatcher, with a no-op and a Prometheus implementation.
//
// Collectors are optional everywhere: a nil Collector is replaced by Nop.
package metrics
