package roadkit

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roadkit/blobstore"
	"github.com/hupe1980/roadkit/filter"
	"github.com/hupe1980/roadkit/geo"
	"github.com/hupe1980/roadkit/graph"
	"github.com/hupe1980/roadkit/storage"
)

// testGraph is a 6 x 6 lattice around Berlin with 0.004 degree spacing.
func testGraph(t testing.TB) *graph.CSR {
	t.Helper()
	const n = 6
	b := graph.NewBuilder()
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			_, err := b.AddNode(52.5+float64(r)*0.004, 13.4+float64(c)*0.004)
			require.NoError(t, err)
		}
	}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			id := int32(r*n + c)
			if c+1 < n {
				_, err := b.AddEdge(id, id+1)
				require.NoError(t, err)
			}
			if r+1 < n {
				_, err := b.AddEdge(id, id+n, geo.Point{Lat: 52.5 + (float64(r)+0.5)*0.004, Lon: 13.4 + float64(c)*0.004 + 0.0005})
				require.NoError(t, err)
			}
		}
	}
	return b.Build()
}

func randomPoints(n int, seed int64) []geo.Point {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]geo.Point, n)
	for i := range pts {
		pts[i] = geo.Point{Lat: 52.498 + rng.Float64()*0.024, Lon: 13.398 + rng.Float64()*0.024}
	}
	return pts
}

func TestNew_InvalidConfig(t *testing.T) {
	g := testGraph(t)

	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	for name, opt := range map[string]Option{
		"resolution":  WithResolution(0),
		"nan":         WithResolution(math.NaN()),
		"depth":       WithMaxDepth(99),
		"rings":       WithMaxRegionSearch(-1),
		"concurrency": WithConcurrency(0),
		"compression": WithCompression(storage.Compression(9)),
	} {
		_, err := New(g, opt)
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}
}

func TestLocator_FindClosest(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	loc, err := New(testGraph(t), WithResolution(100), WithMetricsCollector(metrics))
	require.NoError(t, err)
	defer loc.Close()

	_, err = loc.FindClosest(ctx, 52.5, 13.4, nil)
	assert.ErrorIs(t, err, ErrNotPrepared)

	require.NoError(t, loc.Prepare(ctx))
	assert.True(t, loc.Stats().Prepared)

	snap, err := loc.FindClosest(ctx, 52.4999, 13.402, nil)
	require.NoError(t, err)
	require.True(t, snap.Valid())
	assert.Equal(t, int32(0), snap.EdgeID)
	assert.InDelta(t, 11.1, snap.Distance, 0.1)

	snap, err = loc.FindClosest(ctx, 52.4999, 13.402, filter.None())
	require.NoError(t, err)
	assert.False(t, snap.Valid())

	_, err = loc.FindClosest(ctx, 91, 13.4, nil)
	var ip *ErrInvalidPoint
	require.ErrorAs(t, err, &ip)
	assert.Equal(t, 91.0, ip.Lat)
	assert.ErrorIs(t, err, ErrContract)
	assert.ErrorIs(t, err, graph.ErrInvalidPoint)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.PrepareCount)
	assert.Equal(t, int64(4), stats.LookupCount)
	assert.Equal(t, int64(2), stats.LookupErrors)
	assert.Equal(t, int64(1), stats.LookupMisses)
}

func TestLocator_CanceledContext(t *testing.T) {
	loc, err := New(testGraph(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, loc.Prepare(ctx), context.Canceled)
	_, err = loc.FindClosestBatch(ctx, randomPoints(3, 1), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocator_BatchMatchesSequential(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	loc, err := New(testGraph(t), WithResolution(80), WithConcurrency(4), WithMetricsCollector(metrics))
	require.NoError(t, err)
	defer loc.Close()
	require.NoError(t, loc.Prepare(ctx))

	pts := randomPoints(257, 5)
	deny := filter.Func(func(e graph.Edge) bool { return e.ID%5 != 0 })

	got, err := loc.FindClosestBatch(ctx, pts, deny)
	require.NoError(t, err)
	require.Len(t, got, len(pts))
	for i, p := range pts {
		want, err := loc.FindClosest(ctx, p.Lat, p.Lon, deny)
		require.NoError(t, err)
		require.Equal(t, want, got[i], "point %d", i)
	}

	empty, err := loc.FindClosestBatch(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = loc.FindClosestBatch(ctx, []geo.Point{{Lat: 52.5, Lon: 13.4}, {Lat: math.NaN(), Lon: 0}}, nil)
	assert.ErrorIs(t, err, ErrContract)

	assert.Equal(t, int64(2), metrics.GetStats().BatchCount)
	assert.Equal(t, int64(257), metrics.GetStats().BatchItems)
}

func TestLocator_Query(t *testing.T) {
	ctx := context.Background()
	g := testGraph(t)
	loc, err := New(g, WithResolution(100))
	require.NoError(t, err)
	require.NoError(t, loc.Prepare(ctx))

	ids, err := loc.Query(ctx, geo.NewBBox(13, 14, 52, 53))
	require.NoError(t, err)
	assert.Equal(t, uint64(g.EdgeCount()), ids.GetCardinality())
}

func TestLocator_Persistence(t *testing.T) {
	ctx := context.Background()
	g := testGraph(t)

	for _, c := range []storage.Compression{storage.CompressionNone, storage.CompressionLZ4, storage.CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			store := blobstore.NewLocalStore(t.TempDir())

			metrics := &BasicMetricsCollector{}
			built, err := New(g, WithResolution(90), WithStore(store), WithCompression(c),
				WithSegmentSize(512), WithMetricsCollector(metrics))
			require.NoError(t, err)
			require.NoError(t, built.Prepare(ctx))
			require.NoError(t, built.Flush(ctx))
			assert.Positive(t, metrics.GetStats().FlushBytes)

			loaded, err := New(g, WithResolution(90), WithStore(store))
			require.NoError(t, err)
			defer loaded.Close()
			ok, err := loaded.Load(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, built.Stats().Stats, loaded.Stats().Stats)

			pts := randomPoints(100, 9)
			want, err := built.FindClosestBatch(ctx, pts, nil)
			require.NoError(t, err)
			got, err := loaded.FindClosestBatch(ctx, pts, nil)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			require.NoError(t, built.Close())
		})
	}
}

func TestLocator_LoadOrPrepare(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	g := testGraph(t)

	loc, err := New(g, WithStore(store))
	require.NoError(t, err)
	ok, err := loc.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, loc.LoadOrPrepare(ctx))
	require.NoError(t, loc.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "location_index")

	again, err := New(g, WithStore(store))
	require.NoError(t, err)
	defer again.Close()
	require.NoError(t, again.LoadOrPrepare(ctx))
	assert.True(t, again.Stats().Prepared)
}

func TestLocator_LoadCorrupt(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "location_index", []byte("garbage")))

	loc, err := New(testGraph(t), WithStore(store))
	require.NoError(t, err)
	_, err = loc.Load(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.ErrorIs(t, err, storage.ErrCorrupt)
}

func TestLocator_Close(t *testing.T) {
	ctx := context.Background()
	loc, err := New(testGraph(t))
	require.NoError(t, err)
	require.NoError(t, loc.Prepare(ctx))
	require.NoError(t, loc.Close())
	require.NoError(t, loc.Close())

	_, err = loc.FindClosest(ctx, 52.5, 13.4, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, loc.Flush(ctx), ErrClosed)
	_, err = loc.Load(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLocator_MemoryLimit(t *testing.T) {
	ctx := context.Background()
	loc, err := New(testGraph(t), WithResolution(20), WithSegmentSize(128), WithMemoryLimit(256))
	require.NoError(t, err)
	require.NoError(t, loc.Prepare(ctx))

	err = loc.Flush(ctx)
	assert.ErrorIs(t, err, ErrCapacity)
	assert.True(t, errors.Is(err, storage.ErrMemoryLimit))
}
