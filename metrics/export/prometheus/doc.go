// Package prometheus publishes wmsauth engine metrics to Prometheus.
//
// [NewCollector] adapts an engine to a client_golang Collector for hosts
// that already run a registry. [Exporter] wraps it in a private registry
// and serves it through promhttp.
//
// Counter names are prefixed wmsauth_ and end in _total; the single
// histogram is wmsauth_authorize_latency_seconds.
package prometheus
