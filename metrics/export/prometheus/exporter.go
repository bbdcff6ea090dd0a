package prometheus

import (
	"net/http"

	"github.com/modernwms/wmsauth"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source is anything that can snapshot engine metrics. [*wmsauth.Engine]
// satisfies it.
type Source interface {
	MetricsSnapshot() wmsauth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter owns a private registry holding the engine [Collector] and any
// extra collectors the host adds, and serves it over HTTP.
type Exporter struct {
	registry *promclient.Registry
}

// NewExporter reads from engine. extra collectors (Go runtime, process)
// are registered alongside it.
func NewExporter(engine *wmsauth.Engine, extra ...promclient.Collector) (*Exporter, error) {
	var source Source
	if engine != nil {
		source = engine
	}
	return NewExporterFromSource(source, extra...)
}

// NewExporterFromSource reads from a custom source.
func NewExporterFromSource(source Source, extra ...promclient.Collector) (*Exporter, error) {
	reg := promclient.NewRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		return nil, err
	}
	for _, c := range extra {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return &Exporter{registry: reg}, nil
}

// Registry exposes the underlying registry, for hosts that want to add
// their own metrics.
func (p *Exporter) Registry() *promclient.Registry {
	return p.registry
}

// Handler serves the registry in the exposition format the scraper asks
// for.
func (p *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
