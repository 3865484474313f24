package roadkit

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// PrometheusCollector is a ready-made implementation.
type MetricsCollector interface {
	// RecordPrepare is called after each index build.
	RecordPrepare(edges int, duration time.Duration, err error)

	// RecordFindClosest is called after each single lookup. found reports
	// whether an edge matched.
	RecordFindClosest(found bool, duration time.Duration, err error)

	// RecordBatch is called after each batch lookup.
	RecordBatch(count, unmatched int, duration time.Duration)

	// RecordFlush is called after each flush.
	RecordFlush(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPrepare(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordFindClosest(bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordBatch(int, int, time.Duration)          {}
func (NoopMetricsCollector) RecordFlush(int64, time.Duration, error)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	PrepareCount   atomic.Int64
	PrepareErrors  atomic.Int64
	LookupCount    atomic.Int64
	LookupErrors   atomic.Int64
	LookupMisses   atomic.Int64
	LookupNanos    atomic.Int64
	BatchCount     atomic.Int64
	BatchItems     atomic.Int64
	BatchUnmatched atomic.Int64
	FlushCount     atomic.Int64
	FlushErrors    atomic.Int64
	FlushBytes     atomic.Int64
}

// RecordPrepare implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPrepare(_ int, _ time.Duration, err error) {
	b.PrepareCount.Add(1)
	if err != nil {
		b.PrepareErrors.Add(1)
	}
}

// RecordFindClosest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFindClosest(found bool, duration time.Duration, err error) {
	b.LookupCount.Add(1)
	b.LookupNanos.Add(duration.Nanoseconds())
	switch {
	case err != nil:
		b.LookupErrors.Add(1)
	case !found:
		b.LookupMisses.Add(1)
	}
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(count, unmatched int, _ time.Duration) {
	b.BatchCount.Add(1)
	b.BatchItems.Add(int64(count))
	b.BatchUnmatched.Add(int64(unmatched))
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(bytes int64, _ time.Duration, err error) {
	b.FlushCount.Add(1)
	if err != nil {
		b.FlushErrors.Add(1)
		return
	}
	b.FlushBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		PrepareCount:   b.PrepareCount.Load(),
		PrepareErrors:  b.PrepareErrors.Load(),
		LookupCount:    b.LookupCount.Load(),
		LookupErrors:   b.LookupErrors.Load(),
		LookupMisses:   b.LookupMisses.Load(),
		BatchCount:     b.BatchCount.Load(),
		BatchItems:     b.BatchItems.Load(),
		BatchUnmatched: b.BatchUnmatched.Load(),
		FlushCount:     b.FlushCount.Load(),
		FlushErrors:    b.FlushErrors.Load(),
		FlushBytes:     b.FlushBytes.Load(),
	}
	if s.LookupCount > 0 {
		s.LookupAvgNanos = b.LookupNanos.Load() / s.LookupCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PrepareCount   int64
	PrepareErrors  int64
	LookupCount    int64
	LookupErrors   int64
	LookupMisses   int64
	LookupAvgNanos int64
	BatchCount     int64
	BatchItems     int64
	BatchUnmatched int64
	FlushCount     int64
	FlushErrors    int64
	FlushBytes     int64
}
