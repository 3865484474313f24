package spatial

import (
	"context"
	"fmt"
	"math"

	"github.com/hupe1980/roadkit/geo"
	"github.com/hupe1980/roadkit/storage"
)

const formatMagic = 0x524b4958 // "RKIX"

const (
	hdrMagic = iota
	hdrDepth
	hdrCells
	hdrEdgeRefs
	hdrLeaves
	hdrEdgeCount
	hdrBBox                     // 8 slots, four float64
	hdrResolution = hdrBBox + 8 // 2 slots
	hdrGeomHash   = hdrResolution + 2
)

const cellBytes = 4 * 4

func setFloat(da *storage.DataAccess, slot int, v float64) error {
	b := math.Float64bits(v)
	if err := da.SetHeader(slot, int32(uint32(b>>32))); err != nil {
		return err
	}
	return da.SetHeader(slot+1, int32(uint32(b)))
}

func getFloat(da *storage.DataAccess, slot int) float64 {
	hi, _ := da.GetHeader(slot)
	lo, _ := da.GetHeader(slot + 1)
	return math.Float64frombits(uint64(uint32(hi))<<32 | uint64(uint32(lo)))
}

func (idx *TileIndex) dataAccess() (*storage.DataAccess, error) {
	if idx.closed.Load() {
		return nil, ErrClosed
	}
	if idx.da == nil {
		da, err := idx.opts.Directory.Create(DataName)
		if err != nil {
			return nil, err
		}
		idx.da = da
	}
	return idx.da, nil
}

// Flush persists the current build.
func (idx *TileIndex) Flush(ctx context.Context) error {
	t := idx.current.Load()
	if t == nil {
		return ErrNotPrepared
	}
	da, err := idx.dataAccess()
	if err != nil {
		return err
	}

	size := int64(len(t.cells))*cellBytes + int64(len(t.edges))*4
	if err := da.EnsureCapacity(size); err != nil {
		return err
	}
	off := int64(0)
	for _, c := range t.cells {
		for _, v := range c {
			if err := da.SetInt(off, v); err != nil {
				return err
			}
			off += 4
		}
	}
	for _, id := range t.edges {
		if err := da.SetInt(off, id); err != nil {
			return err
		}
		off += 4
	}

	for slot, v := range map[int]int{
		hdrMagic:     formatMagic,
		hdrDepth:     t.depth,
		hdrCells:     len(t.cells),
		hdrEdgeRefs:  len(t.edges),
		hdrLeaves:    t.leaves,
		hdrEdgeCount: t.edgeCount,
		hdrGeomHash:  int(int32(t.geomHash)),
	} {
		if err := da.SetHeader(slot, int32(v)); err != nil {
			return err
		}
	}
	for i, v := range [...]float64{t.bbox.MinLon, t.bbox.MaxLon, t.bbox.MinLat, t.bbox.MaxLat, t.resolution} {
		if err := setFloat(da, hdrBBox+2*i, v); err != nil {
			return err
		}
	}
	return da.Flush(ctx)
}

// Load restores a flushed build. It returns false if nothing was flushed.
func (idx *TileIndex) Load(ctx context.Context) (bool, error) {
	da, err := idx.dataAccess()
	if err != nil {
		return false, err
	}
	ok, err := da.LoadExisting(ctx)
	if err != nil || !ok {
		return false, err
	}
	t, err := readTree(da)
	if err != nil {
		return false, err
	}
	if n := idx.g.EdgeCount(); n != t.edgeCount {
		return false, fmt.Errorf("%w: index has %d edges, graph has %d", ErrGraphMismatch, t.edgeCount, n)
	}
	if h := fingerprint(idx.g); h != t.geomHash {
		return false, fmt.Errorf("%w: geometry fingerprint %08x, graph has %08x", ErrGraphMismatch, t.geomHash, h)
	}
	idx.current.Store(t)
	return true, nil
}

func readTree(da *storage.DataAccess) (*tree, error) {
	hdr := func(slot int) int {
		v, _ := da.GetHeader(slot)
		return int(v)
	}
	if hdr(hdrMagic) != formatMagic {
		return nil, fmt.Errorf("%w: %s is not a location index", storage.ErrCorrupt, da.Name())
	}
	depth, nCells, nEdges := hdr(hdrDepth), hdr(hdrCells), hdr(hdrEdgeRefs)
	if depth < 0 || depth > MaxDepth || nCells < 0 || nEdges < 0 ||
		int64(nCells)*cellBytes+int64(nEdges)*4 > da.Capacity() {
		return nil, fmt.Errorf("%w: %s: depth %d, %d cells, %d edge refs",
			storage.ErrCorrupt, da.Name(), depth, nCells, nEdges)
	}

	t := &tree{
		bbox: geo.BBox{
			MinLon: getFloat(da, hdrBBox),
			MaxLon: getFloat(da, hdrBBox+2),
			MinLat: getFloat(da, hdrBBox+4),
			MaxLat: getFloat(da, hdrBBox+6),
		},
		depth:      depth,
		resolution: getFloat(da, hdrResolution),
		edgeCount:  hdr(hdrEdgeCount),
		geomHash:   uint32(int32(hdr(hdrGeomHash))),
		leaves:     hdr(hdrLeaves),
		cells:      make([]cell, nCells),
		edges:      make([]int32, nEdges),
	}
	t.side = 1 << depth
	t.minLon, t.minLat = t.bbox.MinLon, t.bbox.MinLat
	t.cellW = (t.bbox.MaxLon - t.bbox.MinLon) / float64(t.side)
	t.cellH = (t.bbox.MaxLat - t.bbox.MinLat) / float64(t.side)

	off := int64(0)
	for i := range t.cells {
		for j := range t.cells[i] {
			t.cells[i][j], _ = da.GetInt(off)
			off += 4
		}
	}
	for i := range t.edges {
		t.edges[i], _ = da.GetInt(off)
		off += 4
	}

	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrCorrupt, da.Name(), err)
	}
	return t, nil
}

// validate checks that every reachable cell index and leaf range is in
// bounds.
func (t *tree) validate() error {
	if len(t.cells) == 0 {
		return nil
	}
	var walk func(c int32, level int) error
	walk = func(c int32, level int) error {
		if c < 0 || int(c) >= len(t.cells) {
			return fmt.Errorf("cell index %d out of range", c)
		}
		rec := t.cells[c]
		if level == t.depth {
			if rec[0] < 0 || rec[0] > rec[1] || int(rec[1]) > len(t.edges) {
				return fmt.Errorf("leaf %d range [%d, %d) out of range", c, rec[0], rec[1])
			}
			return nil
		}
		for _, child := range rec {
			if child == -1 {
				continue
			}
			if child <= c {
				return fmt.Errorf("cell %d links back to %d", c, child)
			}
			if err := walk(child, level+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(0, 0)
}
