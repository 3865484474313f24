package roadkit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector exports Locator metrics to Prometheus.
type PrometheusCollector struct {
	prepareDuration prometheus.Histogram
	lookupsTotal    *prometheus.CounterVec
	lookupDuration  prometheus.Histogram
	batchItems      prometheus.Counter
	batchUnmatched  prometheus.Counter
	flushBytes      prometheus.Counter
	errorsTotal     *prometheus.CounterVec
}

// NewPrometheusCollector creates the metrics and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &PrometheusCollector{
		prepareDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roadkit_prepare_duration_seconds",
			Help:    "Time spent building the location index",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		lookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadkit_lookups_total",
			Help: "Total number of coordinate lookups",
		}, []string{"result"}),
		lookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roadkit_lookup_duration_seconds",
			Help:    "Latency of single coordinate lookups",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		batchItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadkit_batch_items_total",
			Help: "Total number of coordinates submitted in batches",
		}),
		batchUnmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadkit_batch_unmatched_total",
			Help: "Total number of batch coordinates without a match",
		}),
		flushBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadkit_flush_bytes_total",
			Help: "Total index bytes handed to the blob store",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadkit_errors_total",
			Help: "Total number of failed operations",
		}, []string{"op"}),
	}
	for _, c := range []prometheus.Collector{
		p.prepareDuration, p.lookupsTotal, p.lookupDuration,
		p.batchItems, p.batchUnmatched, p.flushBytes, p.errorsTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// RecordPrepare implements MetricsCollector.
func (p *PrometheusCollector) RecordPrepare(_ int, duration time.Duration, err error) {
	if err != nil {
		p.errorsTotal.WithLabelValues("prepare").Inc()
		return
	}
	p.prepareDuration.Observe(duration.Seconds())
}

// RecordFindClosest implements MetricsCollector.
func (p *PrometheusCollector) RecordFindClosest(found bool, duration time.Duration, err error) {
	switch {
	case err != nil:
		p.errorsTotal.WithLabelValues("find_closest").Inc()
		return
	case found:
		p.lookupsTotal.WithLabelValues("matched").Inc()
	default:
		p.lookupsTotal.WithLabelValues("unmatched").Inc()
	}
	p.lookupDuration.Observe(duration.Seconds())
}

// RecordBatch implements MetricsCollector.
func (p *PrometheusCollector) RecordBatch(count, unmatched int, _ time.Duration) {
	p.batchItems.Add(float64(count))
	p.batchUnmatched.Add(float64(unmatched))
}

// RecordFlush implements MetricsCollector.
func (p *PrometheusCollector) RecordFlush(bytes int64, _ time.Duration, err error) {
	if err != nil {
		p.errorsTotal.WithLabelValues("flush").Inc()
		return
	}
	p.flushBytes.Add(float64(bytes))
}
