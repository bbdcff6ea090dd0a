package prometheus

import (
	"github.com/modernwms/wmsauth/metrics/export/internaldefs"
	promclient "github.com/prometheus/client_golang/prometheus"
)

// Collector adapts a [Source] to client_golang. Values are read from a
// fresh snapshot on every scrape.
type Collector struct {
	source   Source
	counters []*promclient.Desc
	hists    []*promclient.Desc
	dropped  *promclient.Desc
}

// NewCollector builds a collector over source.
func NewCollector(source Source) *Collector {
	c := &Collector{
		source:  source,
		dropped: promclient.NewDesc(internaldefs.AuditDroppedName, "Audit events dropped under dispatcher backpressure.", nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, promclient.NewDesc(def.Name, def.Help, nil, nil))
	}
	for _, def := range internaldefs.HistogramDefs {
		c.hists = append(c.hists, promclient.NewDesc(def.Name, def.Help, nil, nil))
	}
	return c
}

// Describe implements [promclient.Collector].
func (c *Collector) Describe(ch chan<- *promclient.Desc) {
	for _, d := range c.counters {
		ch <- d
	}
	for _, d := range c.hists {
		ch <- d
	}
	ch <- c.dropped
}

// Collect implements [promclient.Collector].
func (c *Collector) Collect(ch chan<- promclient.Metric) {
	if c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- promclient.MustNewConstMetric(c.counters[i], promclient.CounterValue, float64(snapshot.Counters[def.ID]))
	}
	for i, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBoundValues))
		for j, bound := range internaldefs.HistogramBoundValues {
			buckets[bound] = cumulative[j]
		}
		ch <- promclient.MustNewConstHistogram(c.hists[i], cumulative[len(cumulative)-1], 0, buckets)
	}
	ch <- promclient.MustNewConstMetric(c.dropped, promclient.CounterValue, float64(c.source.AuditDropped()))
}
