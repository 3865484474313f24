package spatial

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/roadkit/coll"
	"github.com/hupe1980/roadkit/geo"
	"github.com/hupe1980/roadkit/graph"
	"github.com/hupe1980/roadkit/internal/hash"
	"github.com/hupe1980/roadkit/storage"
)

var (
	// ErrInvalidResolution is returned by Prepare when the resolution is unset,
	// not positive or not finite.
	ErrInvalidResolution = errors.New("spatial: resolution must be a positive number of meters")

	// ErrNotPrepared is returned by lookups before Prepare or Load succeeded.
	ErrNotPrepared = errors.New("spatial: index not prepared")

	// ErrGraphMismatch is returned by Load when the stored index was built
	// for a graph with a different edge count or geometry.
	ErrGraphMismatch = errors.New("spatial: stored index does not match graph")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("spatial: index closed")
)

// cell is an arena record. Internal cells hold child indices per quadrant
// (bit 0 east, bit 1 north); leaf cells hold [start, end) into tree.edges.
type cell [4]int32

// tree is an immutable snapshot of a built index.
type tree struct {
	grid
	bbox       geo.BBox
	depth      int
	resolution float64
	edgeCount  int    // graph edges when built
	geomHash   uint32 // fingerprint of the graph geometry when built
	cells      []cell
	edges      []int32
	leaves     int
}

// leaf returns the sorted edge ids of the leaf at (x, y).
func (t *tree) leaf(x, y int) []int32 {
	if len(t.cells) == 0 {
		return nil
	}
	c := int32(0)
	for s := t.depth - 1; s >= 0; s-- {
		c = t.cells[c][(y>>s&1)<<1|x>>s&1]
		if c < 0 {
			return nil
		}
	}
	return t.edges[t.cells[c][0]:t.cells[c][1]]
}

// TileIndex is a rasterized quadtree over the edges of a graph.
type TileIndex struct {
	g    graph.Graph
	opts Options

	current atomic.Pointer[tree]
	seen    sync.Pool // *coll.Set[int32]

	da     *storage.DataAccess
	closed atomic.Bool
}

// New creates an index over g. Call Prepare or Load before looking up.
func New(g graph.Graph, optFns ...Option) *TileIndex {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Directory == nil {
		opts.Directory = storage.NewRAMDirectory()
	}
	idx := &TileIndex{g: g, opts: opts}
	idx.seen.New = func() any { return coll.NewSet[int32](64) }
	return idx
}

// Options returns the effective options.
func (idx *TileIndex) Options() Options { return idx.opts }

// IsPrepared reports whether lookups can be served.
func (idx *TileIndex) IsPrepared() bool { return idx.current.Load() != nil }

// Bounds returns the area the grid covers, or an invalid box before Prepare.
func (idx *TileIndex) Bounds() geo.BBox {
	t := idx.current.Load()
	if t == nil {
		return geo.EmptyBBox()
	}
	return t.bbox
}

// Prepare builds the index from every edge of the graph, replacing any
// previous build.
func (idx *TileIndex) Prepare() error {
	if idx.closed.Load() {
		return ErrClosed
	}
	res := idx.opts.Resolution
	if res <= 0 || math.IsNaN(res) || math.IsInf(res, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidResolution, res)
	}

	bbox := idx.g.Bounds()
	if !bbox.IsValid() {
		bbox = geo.EmptyBBox()
		for e := range idx.g.Edges() {
			for _, p := range e.Geometry {
				bbox.Extend(p)
			}
		}
	}

	t := newTree(bbox, res, idx.opts.MaxDepth)
	t.edgeCount = idx.g.EdgeCount()
	t.geomHash = fingerprint(idx.g)
	if bbox.IsValid() {
		t.build(idx.g)
	}
	idx.current.Store(t)
	return nil
}

// newTree sizes an empty tree. Degenerate boxes are padded so every cell
// has a positive extent.
func newTree(bbox geo.BBox, resolution float64, maxDepth int) *tree {
	const pad = 1e-6
	if bbox.IsValid() {
		if bbox.MaxLon-bbox.MinLon < pad {
			bbox.MinLon -= pad
			bbox.MaxLon += pad
		}
		if bbox.MaxLat-bbox.MinLat < pad {
			bbox.MinLat -= pad
			bbox.MaxLat += pad
		}
	}

	depth := 0
	if bbox.IsValid() {
		extent := math.Max(bbox.WidthMeters(), bbox.HeightMeters())
		if extent > resolution {
			depth = int(math.Ceil(math.Log2(extent / resolution)))
		}
	}
	depth = max(0, min(depth, maxDepth))

	t := &tree{bbox: bbox, depth: depth, resolution: resolution}
	t.side = 1 << depth
	t.minLon, t.minLat = bbox.MinLon, bbox.MinLat
	t.cellW = (bbox.MaxLon - bbox.MinLon) / float64(t.side)
	t.cellH = (bbox.MaxLat - bbox.MinLat) / float64(t.side)
	return t
}

func leafKey(x, y int) int64 { return int64(y)<<32 | int64(x) }

// build rasterizes all edges into leaf sets and lays them out as an arena.
func (t *tree) build(g graph.Graph) {
	leaves := coll.NewMap[int64, *coll.Set[int32]](0)
	add := func(id int32) func(x, y int) {
		return func(x, y int) {
			k := leafKey(x, y)
			s, ok := leaves.Get(k)
			if !ok {
				s = coll.NewSet[int32](4)
				leaves.Put(k, s)
			}
			s.Add(id)
		}
	}

	for e := range g.Edges() {
		visit := add(e.ID)
		geom := e.Geometry
		switch len(geom) {
		case 0:
			continue
		case 1:
			visit(int(t.cellX(geom[0].Lon)), int(t.cellY(geom[0].Lat)))
			continue
		}
		for i := 1; i < len(geom); i++ {
			segment(
				t.cellX(geom[i-1].Lon), t.cellY(geom[i-1].Lat),
				t.cellX(geom[i].Lon), t.cellY(geom[i].Lat),
				visit,
			)
		}
	}

	keys := make([]int64, 0, leaves.Len())
	for k := range leaves.All() {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	t.cells = t.cells[:0]
	t.edges = t.edges[:0]
	t.leaves = len(keys)
	if len(keys) == 0 {
		return
	}
	t.cells = append(t.cells, cell{-1, -1, -1, -1})
	for _, k := range keys {
		x, y := int(k&math.MaxUint32), int(k>>32)
		c := int32(0)
		for s := t.depth - 1; s >= 0; s-- {
			q := y>>s&1<<1 | x>>s&1
			next := t.cells[c][q]
			if next < 0 {
				next = int32(len(t.cells))
				t.cells = append(t.cells, cell{-1, -1, -1, -1})
				t.cells[c][q] = next
			}
			c = next
		}
		set, _ := leaves.Get(k)
		start := len(t.edges)
		t.edges = set.AppendTo(t.edges)
		slices.Sort(t.edges[start:])
		t.cells[c] = cell{int32(start), int32(len(t.edges)), -1, -1}
	}
}

// Stats describes a built index.
type Stats struct {
	Depth      int
	Side       int // leaf cells per axis
	Cells      int
	Leaves     int
	EdgeRefs   int // sum of leaf edge list lengths
	Edges      int
	Resolution float64
	BBox       geo.BBox
}

// Stats returns statistics of the current build. The zero value is
// returned before Prepare or Load.
func (idx *TileIndex) Stats() Stats {
	t := idx.current.Load()
	if t == nil {
		return Stats{}
	}
	return Stats{
		Depth:      t.depth,
		Side:       t.side,
		Cells:      len(t.cells),
		Leaves:     t.leaves,
		EdgeRefs:   len(t.edges),
		Edges:      t.edgeCount,
		Resolution: t.resolution,
		BBox:       t.bbox,
	}
}

// Close releases the persisted data handle. Lookups fail afterwards.
func (idx *TileIndex) Close() error {
	if !idx.closed.CompareAndSwap(false, true) {
		return nil
	}
	idx.current.Store(nil)
	if idx.da != nil {
		return idx.da.Close()
	}
	return nil
}

// fingerprint hashes the ids, towers and geometry of every edge with
// CRC32C.
func fingerprint(g graph.Graph) uint32 {
	h := hash.NewCRC32C()
	var buf [16]byte
	for e := range g.Edges() {
		binary.LittleEndian.PutUint32(buf[0:], uint32(e.ID))
		binary.LittleEndian.PutUint32(buf[4:], uint32(e.Base))
		binary.LittleEndian.PutUint32(buf[8:], uint32(e.Adj))
		binary.LittleEndian.PutUint32(buf[12:], uint32(len(e.Geometry)))
		_, _ = h.Write(buf[:])
		for _, p := range e.Geometry {
			binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(p.Lat))
			binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(p.Lon))
			_, _ = h.Write(buf[:])
		}
	}
	return h.Sum32()
}
