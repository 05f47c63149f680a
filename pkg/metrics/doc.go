// Package metrics exposes Prometheus collectors for the sensor core.
//
// Collectors are package-level and registered with the default registry.
// The core records through the Record* helpers; the simulator serves them
// with an Exporter.
package metrics
