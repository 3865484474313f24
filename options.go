package roadkit

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/hupe1980/roadkit/blobstore"
	"github.com/hupe1980/roadkit/spatial"
	"github.com/hupe1980/roadkit/storage"
)

// DefaultResolution is the leaf size in meters used when none is set.
const DefaultResolution = 300.0

type options struct {
	resolution       float64
	maxRegionSearch  int
	maxDepth         int
	store            blobstore.BlobStore
	compression      storage.Compression
	segmentSize      int
	memoryLimit      int64
	ioLimit          int64
	concurrency      int
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures a Locator.
type Option func(*options)

// WithResolution sets the approximate leaf size of the index in meters.
// Smaller values build deeper trees with fewer candidates per leaf.
func WithResolution(meters float64) Option {
	return func(o *options) {
		o.resolution = meters
	}
}

// WithMaxRegionSearch caps the rings of leaves examined per lookup. Zero
// (the default) searches until the closest edge is certain.
func WithMaxRegionSearch(rings int) Option {
	return func(o *options) {
		o.maxRegionSearch = rings
	}
}

// WithMaxDepth caps the depth of the index tree.
func WithMaxDepth(levels int) Option {
	return func(o *options) {
		o.maxDepth = levels
	}
}

// WithStore configures where Flush and Load persist the index.
// The default is an in-memory store.
//
// Example:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("berlin/"))
//	loc, _ := roadkit.New(g, roadkit.WithStore(store))
func WithStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithCompression configures the block codec used by Flush.
func WithCompression(c storage.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithSegmentSize sets the size of persisted segments in bytes.
func WithSegmentSize(bytes int) Option {
	return func(o *options) {
		o.segmentSize = bytes
	}
}

// WithMemoryLimit caps the bytes the persisted index may hold in memory.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit throttles Flush and Load to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithConcurrency bounds the goroutines FindClosestBatch and Flush use.
// Defaults to GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &roadkit.BasicMetricsCollector{}
//	loc, _ := roadkit.New(g, roadkit.WithMetricsCollector(metrics))
//	// ... use loc ...
//	stats := metrics.GetStats()
//	fmt.Printf("Lookups: %d, Avg latency: %dns\n", stats.LookupCount, stats.LookupAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := roadkit.NewJSONLogger(slog.LevelInfo)
//	loc, _ := roadkit.New(g, roadkit.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		resolution:       DefaultResolution,
		maxDepth:         spatial.DefaultMaxDepth,
		compression:      storage.CompressionNone,
		concurrency:      runtime.GOMAXPROCS(0),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) validate() error {
	switch {
	case !(o.resolution > 0):
		return fmt.Errorf("%w: resolution %v must be positive", ErrInvalidConfig, o.resolution)
	case o.maxDepth < 0 || o.maxDepth > spatial.MaxDepth:
		return fmt.Errorf("%w: max depth %d not in [0, %d]", ErrInvalidConfig, o.maxDepth, spatial.MaxDepth)
	case o.maxRegionSearch < 0:
		return fmt.Errorf("%w: max region search %d is negative", ErrInvalidConfig, o.maxRegionSearch)
	case o.concurrency < 1:
		return fmt.Errorf("%w: concurrency %d must be at least 1", ErrInvalidConfig, o.concurrency)
	case o.compression > storage.CompressionZSTD:
		return fmt.Errorf("%w: unknown compression %s", ErrInvalidConfig, o.compression)
	}
	return nil
}
