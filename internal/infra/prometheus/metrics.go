package prometheus

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "shortlife"

// Eviction paths.
const (
	PathLazy    = "lazy"
	PathJanitor = "janitor"
	PathOwner   = "owner"
)

// Metrics holds the link lifecycle collectors. A nil *Metrics records nothing.
type Metrics struct {
	linksCreated  prom.Counter
	linkAccess    *prom.CounterVec
	linksEvicted  *prom.CounterVec
	sweepDuration prom.Histogram
	reg           prom.Registerer
}

// NewMetrics registers the link collectors on reg.
func NewMetrics(reg prom.Registerer) (*Metrics, error) {
	m := &Metrics{
		linksCreated: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Short links created.",
		}),
		linkAccess: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "link_access_total",
			Help:      "Short link access attempts by result.",
		}, []string{"result"}),
		linksEvicted: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "links_evicted_total",
			Help:      "Short links removed, by reason and by the path that removed them.",
		}, []string{"reason", "path"}),
		sweepDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "janitor_sweep_duration_seconds",
			Help:      "Duration of janitor sweeps.",
			Buckets:   prom.ExponentialBuckets(0.0005, 4, 8),
		}),
		reg: reg,
	}

	for _, c := range []prom.Collector{m.linksCreated, m.linkAccess, m.linksEvicted, m.sweepDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// TrackLive exposes the number of live links through fn.
func (m *Metrics) TrackLive(fn func() int) error {
	if m == nil {
		return nil
	}
	return m.reg.Register(prom.NewGaugeFunc(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "links_live",
		Help:      "Short links currently held in the store.",
	}, func() float64 { return float64(fn()) }))
}

func (m *Metrics) LinkCreated() {
	if m == nil {
		return
	}
	m.linksCreated.Inc()
}

func (m *Metrics) LinkAccessed(result string) {
	if m == nil {
		return
	}
	m.linkAccess.WithLabelValues(result).Inc()
}

func (m *Metrics) LinkEvicted(reason, path string) {
	if m == nil {
		return
	}
	m.linksEvicted.WithLabelValues(reason, path).Inc()
}

func (m *Metrics) SweepFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}
