// Package metrics provides observability hooks for a pairtimer device.
//
// Components receive a Recorder through their config structs and default to
// NoopRecorder when none is set:
//
//	cfg := replication.Config{Recorder: metrics.NoopRecorder{}}
//
// To export metrics, inject a PrometheusRecorder and serve its registry:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	http.Handle("/metrics", metrics.HTTPHandler(reg))
//
// All series live under the "pairtimer" namespace.
package metrics
