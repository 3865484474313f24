package spatial

import (
	"context"
	"iter"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roadkit/filter"
	"github.com/hupe1980/roadkit/geo"
	"github.com/hupe1980/roadkit/graph"
	"github.com/hupe1980/roadkit/storage"
)

type mockGraph struct {
	mock.Mock
}

func (m *mockGraph) Bounds() geo.BBox {
	return m.Called().Get(0).(geo.BBox)
}

func (m *mockGraph) EdgeCount() int {
	return m.Called().Int(0)
}

func (m *mockGraph) Edge(id int32) (graph.Edge, bool) {
	args := m.Called(id)
	return args.Get(0).(graph.Edge), args.Bool(1)
}

func (m *mockGraph) Edges() iter.Seq[graph.Edge] {
	return m.Called().Get(0).(iter.Seq[graph.Edge])
}

// lattice builds an n x n grid of nodes spaced step degrees apart with
// horizontal and vertical edges. Every third horizontal edge carries a
// pillar bent slightly north.
func lattice(t testing.TB, n int, step float64) *graph.CSR {
	t.Helper()
	b := graph.NewBuilder()
	const lat0, lon0 = 52.5, 13.3
	id := func(r, c int) int32 { return int32(r*n + c) }
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			_, err := b.AddNode(lat0+float64(r)*step, lon0+float64(c)*step)
			require.NoError(t, err)
		}
	}
	k := 0
	for r := 0; r < n; r++ {
		for c := 0; c+1 < n; c++ {
			var pillars []geo.Point
			if k%3 == 0 {
				pillars = append(pillars, geo.Point{
					Lat: lat0 + float64(r)*step + step/10,
					Lon: lon0 + (float64(c)+0.5)*step,
				})
			}
			k++
			_, err := b.AddEdge(id(r, c), id(r, c+1), pillars...)
			require.NoError(t, err)
		}
	}
	for r := 0; r+1 < n; r++ {
		for c := 0; c < n; c++ {
			_, err := b.AddEdge(id(r, c), id(r+1, c))
			require.NoError(t, err)
		}
	}
	return b.Build()
}

// bruteForce returns the accepted edge closest to q using the same distance
// and tie rule as the index.
func bruteForce(g *graph.CSR, q geo.Point, f filter.EdgeFilter) Snap {
	proj := geo.NewProjection(q.Lat)
	best := notFound(q)
	for id := int32(0); int(id) < g.EdgeCount(); id++ {
		e, _ := g.Edge(id)
		if !f.Accept(e) {
			continue
		}
		s := snapEdge(proj, q, e)
		if s.Distance < best.Distance || (s.Distance == best.Distance && id < best.EdgeID) {
			best = s
		}
	}
	return best
}

func TestTileIndex_EmptyGraph(t *testing.T) {
	g := new(mockGraph)
	g.On("Bounds").Return(geo.NewBBox(-10, 10, -10, 10))
	g.On("EdgeCount").Return(0)
	g.On("Edges").Return(iter.Seq[graph.Edge](func(func(graph.Edge) bool) {}))

	idx := New(g, WithResolution(1000))
	require.NoError(t, idx.Prepare())

	for _, q := range []geo.Point{{Lat: 0, Lon: 0}, {Lat: 9.9, Lon: -9.9}, {Lat: 45, Lon: 100}} {
		s, err := idx.FindClosest(q.Lat, q.Lon, nil)
		require.NoError(t, err)
		assert.False(t, s.Valid())
		assert.Equal(t, int32(-1), s.EdgeID)
	}

	st := idx.Stats()
	assert.Equal(t, 12, st.Depth)
	assert.Equal(t, 0, st.Cells)
	g.AssertExpectations(t)
	g.AssertNotCalled(t, "Edge", mock.Anything)
}

func TestTileIndex_NotPrepared(t *testing.T) {
	idx := New(lattice(t, 2, 0.01), WithResolution(100))

	_, err := idx.FindClosest(52.5, 13.3, nil)
	assert.ErrorIs(t, err, ErrNotPrepared)
	_, err = idx.Query(geo.NewBBox(13, 14, 52, 53))
	assert.ErrorIs(t, err, ErrNotPrepared)
	assert.ErrorIs(t, idx.Flush(context.Background()), ErrNotPrepared)
	assert.False(t, idx.IsPrepared())
}

func TestTileIndex_InvalidResolution(t *testing.T) {
	g := lattice(t, 2, 0.01)
	for _, opts := range [][]Option{
		nil,
		{WithResolution(0)},
		{WithResolution(-5)},
		{WithResolution(math.NaN())},
	} {
		idx := New(g, opts...)
		assert.ErrorIs(t, idx.Prepare(), ErrInvalidResolution)
		assert.False(t, idx.IsPrepared())
	}
}

func TestTileIndex_SingleEdge(t *testing.T) {
	b := graph.NewBuilder()
	a, _ := b.AddNode(48.1, 11.5)
	c, _ := b.AddNode(48.1, 11.52)
	_, err := b.AddEdge(a, c, geo.Point{Lat: 48.105, Lon: 11.51})
	require.NoError(t, err)
	g := b.Build()

	idx := New(g, WithResolution(50))
	require.NoError(t, idx.Prepare())

	for _, q := range []geo.Point{{Lat: 48.1, Lon: 11.5}, {Lat: 48.2, Lon: 11.4}, {Lat: -33.9, Lon: 151.2}} {
		s, err := idx.FindClosest(q.Lat, q.Lon, filter.All())
		require.NoError(t, err)
		require.True(t, s.Valid(), "query %v", q)
		assert.Equal(t, int32(0), s.EdgeID)

		s, err = idx.FindClosest(q.Lat, q.Lon, filter.None())
		require.NoError(t, err)
		assert.False(t, s.Valid())
	}
}

func TestTileIndex_SnapPositions(t *testing.T) {
	b := graph.NewBuilder()
	a, _ := b.AddNode(0, 0)
	c, _ := b.AddNode(0, 0.02)
	_, err := b.AddEdge(a, c, geo.Point{Lat: 0, Lon: 0.01})
	require.NoError(t, err)
	idx := New(b.Build(), WithResolution(100))
	require.NoError(t, idx.Prepare())

	s, err := idx.FindClosest(0.001, -0.001, nil)
	require.NoError(t, err)
	assert.Equal(t, PositionTower, s.Position)
	assert.Equal(t, 0, s.WayIndex)
	assert.Equal(t, a, s.ClosestNode)

	s, err = idx.FindClosest(0.001, 0.01, nil)
	require.NoError(t, err)
	assert.Equal(t, PositionPillar, s.Position)
	assert.Equal(t, 1, s.WayIndex)

	s, err = idx.FindClosest(-0.001, 0.015, nil)
	require.NoError(t, err)
	assert.Equal(t, PositionEdge, s.Position)
	assert.Equal(t, 1, s.WayIndex)
	assert.Equal(t, c, s.ClosestNode)
	assert.InDelta(t, 0.015, s.Snapped.Lon, 1e-9)
	assert.InDelta(t, 0, s.Snapped.Lat, 1e-9)

	s, err = idx.FindClosest(0, 0.03, nil)
	require.NoError(t, err)
	assert.Equal(t, PositionTower, s.Position)
	assert.Equal(t, 2, s.WayIndex)
}

func TestTileIndex_OnGeometry(t *testing.T) {
	g := lattice(t, 6, 0.005)
	idx := New(g, WithResolution(200))
	require.NoError(t, idx.Prepare())

	for e := range g.Edges() {
		// The midpoint of the first segment belongs to e only.
		a, b := e.Geometry[0], e.Geometry[1]
		mid := geo.Point{Lat: (a.Lat + b.Lat) / 2, Lon: (a.Lon + b.Lon) / 2}
		s, err := idx.FindClosest(mid.Lat, mid.Lon, nil)
		require.NoError(t, err)
		require.Equal(t, e.ID, s.EdgeID, "edge %d", e.ID)
		require.InDelta(t, 0, s.Distance, 1e-3)
	}
}

func TestTileIndex_MatchesBruteForce(t *testing.T) {
	g := lattice(t, 8, 0.004)
	idx := New(g, WithResolution(120))
	require.NoError(t, idx.Prepare())

	deny := roaring.BitmapOf(0, 3, 7, 11, 20, 21, 22, 40)
	filters := map[string]filter.EdgeFilter{
		"all":  filter.All(),
		"deny": filter.DenyList(deny),
		"vertical": filter.Func(func(e graph.Edge) bool {
			return e.Geometry[0].Lon == e.Geometry[len(e.Geometry)-1].Lon
		}),
	}

	rng := rand.New(rand.NewSource(3))
	for name, f := range filters {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 300; i++ {
				q := geo.Point{
					Lat: 52.49 + rng.Float64()*0.05,
					Lon: 13.29 + rng.Float64()*0.05,
				}
				want := bruteForce(g, q, f)
				got, err := idx.FindClosest(q.Lat, q.Lon, f)
				require.NoError(t, err)
				require.Equal(t, want.EdgeID, got.EdgeID, "query %v", q)
				require.Equal(t, want.Distance, got.Distance)
			}
		})
	}
}

func TestTileIndex_MaxRegionSearch(t *testing.T) {
	g := lattice(t, 3, 0.01)
	idx := New(g, WithResolution(1), WithMaxRegionSearch(1), WithMaxDepth(10))
	require.NoError(t, idx.Prepare())
	assert.Equal(t, 10, idx.Stats().Depth)

	// The query lies many cells away from any edge.
	s, err := idx.FindClosest(52.505, 13.305, nil)
	require.NoError(t, err)
	assert.False(t, s.Valid())

	s, err = idx.FindClosest(52.5, 13.315, nil)
	require.NoError(t, err)
	assert.True(t, s.Valid())
}

func TestTileIndex_PrepareIsIdempotent(t *testing.T) {
	idx := New(lattice(t, 5, 0.01), WithResolution(300))
	require.NoError(t, idx.Prepare())
	first := idx.Stats()
	require.NoError(t, idx.Prepare())
	assert.Equal(t, first, idx.Stats())
	assert.Positive(t, first.Leaves)
	assert.GreaterOrEqual(t, first.EdgeRefs, first.Edges)
}

func TestTileIndex_Query(t *testing.T) {
	g := lattice(t, 4, 0.01)
	idx := New(g, WithResolution(100))
	require.NoError(t, idx.Prepare())

	all, err := idx.Query(idx.Bounds())
	require.NoError(t, err)
	assert.Equal(t, uint64(g.EdgeCount()), all.GetCardinality())

	// Around node (0, 0): its two edges must be reported.
	ids, err := idx.Query(geo.NewBBox(13.2999, 13.3001, 52.4999, 52.5001))
	require.NoError(t, err)
	assert.True(t, ids.Contains(0))
	assert.True(t, ids.Contains(12))

	far, err := idx.Query(geo.NewBBox(0, 1, 0, 1))
	require.NoError(t, err)
	assert.True(t, far.IsEmpty())
}

func TestTileIndex_FlushLoad(t *testing.T) {
	ctx := context.Background()
	g := lattice(t, 6, 0.005)

	for _, c := range []storage.Compression{storage.CompressionNone, storage.CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			dir := storage.NewRAMDirectory(storage.WithCompression(c), storage.WithSegmentSize(256))
			idx := New(g, WithResolution(150), WithDirectory(dir))
			require.NoError(t, idx.Prepare())
			require.NoError(t, idx.Flush(ctx))
			require.NoError(t, idx.Close())

			loaded := New(g, WithResolution(150), WithDirectory(storage.NewDirectory(dir.Store())))
			ok, err := loaded.Load(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			defer loaded.Close()

			ref := New(g, WithResolution(150))
			require.NoError(t, ref.Prepare())
			assert.Equal(t, ref.Stats(), loaded.Stats())

			rng := rand.New(rand.NewSource(11))
			for i := 0; i < 100; i++ {
				lat, lon := 52.49+rng.Float64()*0.04, 13.29+rng.Float64()*0.04
				want, err := ref.FindClosest(lat, lon, nil)
				require.NoError(t, err)
				got, err := loaded.FindClosest(lat, lon, nil)
				require.NoError(t, err)
				require.Equal(t, want, got)
			}
		})
	}
}

func TestTileIndex_LoadMissing(t *testing.T) {
	idx := New(lattice(t, 2, 0.01), WithResolution(100))
	ok, err := idx.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, idx.IsPrepared())
}

func TestTileIndex_LoadGraphMismatch(t *testing.T) {
	ctx := context.Background()
	dir := storage.NewRAMDirectory()
	idx := New(lattice(t, 3, 0.01), WithResolution(100), WithDirectory(dir))
	require.NoError(t, idx.Prepare())
	require.NoError(t, idx.Flush(ctx))
	require.NoError(t, idx.Close())

	other := New(lattice(t, 4, 0.01), WithResolution(100), WithDirectory(dir))
	_, err := other.Load(ctx)
	assert.ErrorIs(t, err, ErrGraphMismatch)
}

func TestTileIndex_LoadGeometryMismatch(t *testing.T) {
	ctx := context.Background()
	dir := storage.NewRAMDirectory()
	idx := New(lattice(t, 3, 0.01), WithResolution(100), WithDirectory(dir))
	require.NoError(t, idx.Prepare())
	require.NoError(t, idx.Flush(ctx))
	require.NoError(t, idx.Close())

	// Same edge count, shifted geometry.
	moved := New(lattice(t, 3, 0.011), WithResolution(100), WithDirectory(dir))
	ok, err := moved.Load(ctx)
	assert.ErrorIs(t, err, ErrGraphMismatch)
	assert.False(t, ok)
	assert.False(t, moved.IsPrepared())
	require.NoError(t, moved.Close())

	same := New(lattice(t, 3, 0.01), WithResolution(100), WithDirectory(dir))
	ok, err = same.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, fingerprint(lattice(t, 3, 0.01)), fingerprint(lattice(t, 3, 0.01)))
	assert.NotEqual(t, fingerprint(lattice(t, 3, 0.01)), fingerprint(lattice(t, 3, 0.011)))
}

func TestTileIndex_Closed(t *testing.T) {
	idx := New(lattice(t, 2, 0.01), WithResolution(100))
	require.NoError(t, idx.Prepare())
	require.NoError(t, idx.Close())

	_, err := idx.FindClosest(52.5, 13.3, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, idx.Prepare(), ErrClosed)
}

func TestTileIndex_InvalidQuery(t *testing.T) {
	idx := New(lattice(t, 2, 0.01), WithResolution(100))
	require.NoError(t, idx.Prepare())
	s, err := idx.FindClosest(math.NaN(), 13.3, nil)
	assert.ErrorIs(t, err, graph.ErrInvalidPoint)
	assert.False(t, s.Valid())
}

func TestTileIndex_ConcurrentLookups(t *testing.T) {
	g := lattice(t, 8, 0.004)
	idx := New(g, WithResolution(120))
	require.NoError(t, idx.Prepare())

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				q := geo.Point{Lat: 52.5 + rng.Float64()*0.028, Lon: 13.3 + rng.Float64()*0.028}
				got, err := idx.FindClosest(q.Lat, q.Lon, nil)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, bruteForce(g, q, filter.All()).EdgeID, got.EdgeID)
			}
		}(int64(w))
	}
	wg.Wait()
}

func TestSegment(t *testing.T) {
	collect := func(ax, ay, bx, by float64) [][2]int {
		var cells [][2]int
		segment(ax, ay, bx, by, func(x, y int) { cells = append(cells, [2]int{x, y}) })
		return cells
	}

	assert.Equal(t, [][2]int{{0, 0}}, collect(0.2, 0.2, 0.8, 0.9))
	assert.Equal(t, [][2]int{{0, 0}, {1, 0}, {2, 0}}, collect(0.5, 0.5, 2.5, 0.5))
	assert.Equal(t, [][2]int{{2, 3}, {2, 2}, {2, 1}}, collect(2.5, 3.5, 2.5, 1.5))
	// An exact diagonal touches the corner neighbours too.
	assert.Equal(t, [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}, collect(0.5, 0.5, 1.5, 1.5))
	// A shallow line crosses x boundaries first.
	assert.Equal(t, [][2]int{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {3, 1}}, collect(0.1, 0.1, 3.9, 1.2))
}

func TestTileIndex_CloseDuringLookups(t *testing.T) {
	idx := New(lattice(t, 6, 0.004), WithResolution(120))
	require.NoError(t, idx.Prepare())

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_, err := idx.FindClosest(52.51, 13.31, nil)
				if err != nil {
					assert.ErrorIs(t, err, ErrClosed)
					return
				}
			}
		}()
	}
	wg.Add(2)
	for c := 0; c < 2; c++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, idx.Close())
		}()
	}
	wg.Wait()

	_, err := idx.FindClosest(52.51, 13.31, nil)
	assert.ErrorIs(t, err, ErrClosed)
}
