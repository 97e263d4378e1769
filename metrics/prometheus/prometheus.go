// Package prometheus exports space metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc, err := bsprom.NewCollector(reg, "young")
//	s, err := bumpspace.New("young", 64<<20, bumpspace.WithMetricsCollector(mc))
package prometheus

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/bumpspace"
)

const namespace = "bumpspace"

// Collector implements bumpspace.MetricsCollector on top of Prometheus
// metrics.
type Collector struct {
	tlabRefreshes *prom.CounterVec
	tlabBytes     prom.Counter
	revokes       prom.Counter
	revokedBytes  prom.Counter
	revokedObjs   prom.Counter
	walkLatency   prom.Histogram
	walkedObjs    prom.Counter
	clears        prom.Counter
	releasedBytes prom.Counter
	capacity      prom.Gauge
}

var _ bumpspace.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metrics for the space called name and registers
// them with reg.
func NewCollector(reg prom.Registerer, name string) (*Collector, error) {
	labels := prom.Labels{"space": name}
	c := &Collector{
		tlabRefreshes: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "tlab_refreshes_total",
			Help:        "TLAB refresh attempts by outcome",
			ConstLabels: labels,
		}, []string{"status"}),
		tlabBytes: prom.NewCounter(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "tlab_bytes_total",
			Help:        "Bytes handed out as TLABs",
			ConstLabels: labels,
		}),
		revokes: prom.NewCounter(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "revokes_total",
			Help:        "TLABs folded into the space counters",
			ConstLabels: labels,
		}),
		revokedBytes: prom.NewCounter(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "revoked_bytes_total",
			Help:        "Bytes folded in by revocation",
			ConstLabels: labels,
		}),
		revokedObjs: prom.NewCounter(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "revoked_objects_total",
			Help:        "Objects folded in by revocation",
			ConstLabels: labels,
		}),
		walkLatency: prom.NewHistogram(prom.HistogramOpts{
			Namespace:   namespace,
			Name:        "walk_duration_seconds",
			Help:        "Latency of space walks",
			Buckets:     prom.ExponentialBuckets(1e-5, 4, 10),
			ConstLabels: labels,
		}),
		walkedObjs: prom.NewCounter(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "walked_objects_total",
			Help:        "Objects visited by walks",
			ConstLabels: labels,
		}),
		clears: prom.NewCounter(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "clears_total",
			Help:        "Space clears",
			ConstLabels: labels,
		}),
		releasedBytes: prom.NewCounter(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "released_bytes_total",
			Help:        "Bytes released to the OS by clears",
			ConstLabels: labels,
		}),
		capacity: prom.NewGauge(prom.GaugeOpts{
			Namespace:   namespace,
			Name:        "clamped_capacity_bytes",
			Help:        "Capacity after the most recent growth limit clamp",
			ConstLabels: labels,
		}),
	}

	for _, m := range []prom.Collector{
		c.tlabRefreshes, c.tlabBytes, c.revokes, c.revokedBytes, c.revokedObjs,
		c.walkLatency, c.walkedObjs, c.clears, c.releasedBytes, c.capacity,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordTLABRefresh implements bumpspace.MetricsCollector.
func (c *Collector) RecordTLABRefresh(bytes uint64, ok bool) {
	if !ok {
		c.tlabRefreshes.WithLabelValues("exhausted").Inc()
		return
	}
	c.tlabRefreshes.WithLabelValues("success").Inc()
	c.tlabBytes.Add(float64(bytes))
}

// RecordRevoke implements bumpspace.MetricsCollector.
func (c *Collector) RecordRevoke(bytes, objects uint64) {
	c.revokes.Inc()
	c.revokedBytes.Add(float64(bytes))
	c.revokedObjs.Add(float64(objects))
}

// RecordWalk implements bumpspace.MetricsCollector.
func (c *Collector) RecordWalk(objects int, d time.Duration) {
	c.walkLatency.Observe(d.Seconds())
	c.walkedObjs.Add(float64(objects))
}

// RecordClear implements bumpspace.MetricsCollector.
func (c *Collector) RecordClear(released uint64) {
	c.clears.Inc()
	c.releasedBytes.Add(float64(released))
}

// RecordClamp implements bumpspace.MetricsCollector.
func (c *Collector) RecordClamp(_, newCapacity uint64) {
	c.capacity.Set(float64(newCapacity))
}
