// Package metrics provides observability hooks for the harvest state store.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so the store never has to nil-check before recording:
//
//	store, err := cycle.Open(path, cycle.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// PrometheusRecorder registers its collectors on the given registry, and
// HTTPHandler exposes that registry for scraping.
package metrics
