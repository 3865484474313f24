package roadkit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/roadkit/blobstore"
	"github.com/hupe1980/roadkit/graph"
	"github.com/hupe1980/roadkit/spatial"
	"github.com/hupe1980/roadkit/storage"
)

// Locator snaps coordinates to the edges of one graph.
type Locator struct {
	g       graph.Graph
	opts    options
	dir     *storage.Directory
	index   *spatial.TileIndex
	logger  *Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// New creates a Locator for g. Call Prepare or Load before looking up.
func New(g graph.Graph, optFns ...Option) (*Locator, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: graph is nil", ErrInvalidConfig)
	}
	opts := applyOptions(optFns)
	if err := opts.validate(); err != nil {
		return nil, err
	}

	store := opts.store
	if store == nil {
		store = blobstore.NewMemoryStore()
	}
	dir := storage.NewDirectory(store,
		storage.WithCompression(opts.compression),
		storage.WithSegmentSize(opts.segmentSize),
		storage.WithMemoryLimit(opts.memoryLimit),
		storage.WithIOLimit(opts.ioLimit),
		storage.WithWorkers(opts.concurrency),
	)

	return &Locator{
		g:    g,
		opts: opts,
		dir:  dir,
		index: spatial.New(g,
			spatial.WithResolution(opts.resolution),
			spatial.WithMaxRegionSearch(opts.maxRegionSearch),
			spatial.WithMaxDepth(opts.maxDepth),
			spatial.WithDirectory(dir),
		),
		logger:  opts.logger.WithIndex(spatial.DataName),
		metrics: opts.metricsCollector,
	}, nil
}

// Graph returns the graph the Locator was created for.
func (l *Locator) Graph() graph.Graph { return l.g }

func (l *Locator) check(ctx context.Context) error {
	if l.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// Prepare builds the index from the graph, replacing any previous build.
func (l *Locator) Prepare(ctx context.Context) error {
	if err := l.check(ctx); err != nil {
		return err
	}
	start := time.Now()
	err := TranslateError(l.index.Prepare())
	took := time.Since(start)

	st := l.index.Stats()
	l.metrics.RecordPrepare(l.g.EdgeCount(), took, err)
	l.logger.LogPrepare(ctx, l.g.EdgeCount(), st.Depth, st.Leaves, took, err)
	return err
}

// Flush persists the prepared index to the configured store.
func (l *Locator) Flush(ctx context.Context) error {
	if err := l.check(ctx); err != nil {
		return err
	}
	start := time.Now()
	err := TranslateError(l.index.Flush(ctx))
	took := time.Since(start)

	st := l.index.Stats()
	bytes := int64(st.Cells)*16 + int64(st.EdgeRefs)*4
	l.metrics.RecordFlush(bytes, took, err)
	l.logger.LogFlush(ctx, bytes, took, err)
	return err
}

// Load restores a flushed index. It returns false, and leaves the Locator
// unprepared, if the store holds none.
func (l *Locator) Load(ctx context.Context) (bool, error) {
	if err := l.check(ctx); err != nil {
		return false, err
	}
	start := time.Now()
	ok, err := l.index.Load(ctx)
	err = TranslateError(err)
	l.logger.LogLoad(ctx, ok, time.Since(start), err)
	return ok, err
}

// LoadOrPrepare loads a flushed index or, if there is none, prepares and
// flushes a new one.
func (l *Locator) LoadOrPrepare(ctx context.Context) error {
	ok, err := l.Load(ctx)
	if err != nil || ok {
		return err
	}
	if err := l.Prepare(ctx); err != nil {
		return err
	}
	return l.Flush(ctx)
}

// Stats describes the current index.
type Stats struct {
	spatial.Stats

	// Prepared reports whether lookups can be served.
	Prepared bool

	// MemoryBytes is the memory held by the persisted index buffers.
	MemoryBytes int64
}

// Stats returns statistics of the current index.
func (l *Locator) Stats() Stats {
	return Stats{
		Stats:       l.index.Stats(),
		Prepared:    l.index.IsPrepared(),
		MemoryBytes: l.dir.MemoryUsage(),
	}
}

// Close releases the index. Further calls fail with ErrClosed.
func (l *Locator) Close() error {
	if l == nil || l.closed.Swap(true) {
		return nil
	}
	return errors.Join(l.index.Close(), l.dir.Close())
}
