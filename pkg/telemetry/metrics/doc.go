// Package metrics exposes Prometheus metrics for agent turns and governance
// decisions.
//
// All Collector methods are safe to call on a nil *Collector, so components
// can take an optional collector without guarding every call site.
//
//	collector := metrics.NewCollector(&metrics.Config{Enabled: true}, nil)
//	collector.RecordTurn("answered", 1200*time.Millisecond)
//	http.Handle("/metrics", collector.Handler())
package metrics
