package spatial

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/roadkit/coll"
	"github.com/hupe1980/roadkit/filter"
	"github.com/hupe1980/roadkit/geo"
	"github.com/hupe1980/roadkit/graph"
)

// Position tells where on the edge geometry a snapped point lies.
type Position uint8

const (
	// PositionEdge is strictly between two geometry points.
	PositionEdge Position = iota
	// PositionPillar is on an intermediate shape point.
	PositionPillar
	// PositionTower is on one of the two end nodes.
	PositionTower
)

func (p Position) String() string {
	switch p {
	case PositionEdge:
		return "edge"
	case PositionPillar:
		return "pillar"
	case PositionTower:
		return "tower"
	default:
		return fmt.Sprintf("Position(%d)", uint8(p))
	}
}

// Snap is the result of FindClosest. A Snap that matched nothing reports
// Valid() == false.
type Snap struct {
	Query geo.Point

	// EdgeID is the matched edge, -1 if none.
	EdgeID int32

	// ClosestNode is the tower of the matched edge nearest to the query.
	ClosestNode int32

	// Distance from the query to Snapped in meters.
	Distance float64

	// Snapped is the closest point on the edge geometry.
	Snapped geo.Point

	// WayIndex is the geometry index the snapped point lies on or after.
	WayIndex int

	Position Position
}

func notFound(q geo.Point) Snap {
	return Snap{Query: q, EdgeID: -1, ClosestNode: -1, Distance: math.Inf(1)}
}

// Valid reports whether an edge was matched.
func (s Snap) Valid() bool { return s.EdgeID >= 0 }

func (s Snap) String() string {
	if !s.Valid() {
		return fmt.Sprintf("%v: no match", s.Query)
	}
	return fmt.Sprintf("%v: edge %d at %v (%.2fm, %s %d)",
		s.Query, s.EdgeID, s.Snapped, s.Distance, s.Position, s.WayIndex)
}

// FindClosest returns the accepted edge closest to the coordinate. A nil
// filter accepts every edge. Ties go to the lower edge id.
func (idx *TileIndex) FindClosest(lat, lon float64, f filter.EdgeFilter) (Snap, error) {
	q := geo.Point{Lat: lat, Lon: lon}
	t := idx.current.Load()
	if t == nil {
		if idx.closed.Load() {
			return notFound(q), ErrClosed
		}
		return notFound(q), ErrNotPrepared
	}
	if !q.IsValid() {
		return notFound(q), fmt.Errorf("%w: %v", graph.ErrInvalidPoint, q)
	}
	f = filter.OrAll(f)

	best := notFound(q)
	if len(t.edges) == 0 {
		return best, nil
	}

	seen := idx.seen.Get().(*coll.Set[int32])
	defer func() {
		seen.Clear()
		idx.seen.Put(seen)
	}()

	proj := geo.NewProjection(lat)
	qx, qy := int(t.cellX(lon)), int(t.cellY(lat))

	consider := func(id int32) {
		if !seen.Add(id) {
			return
		}
		e, ok := idx.g.Edge(id)
		if !ok || len(e.Geometry) == 0 || !f.Accept(e) {
			return
		}
		s := snapEdge(proj, q, e)
		if s.Distance < best.Distance || (s.Distance == best.Distance && id < best.EdgeID) {
			best = s
		}
	}

	for r := 0; ; r++ {
		x0, x1 := qx-r, qx+r
		y0, y1 := qy-r, qy+r
		t.ring(x0, x1, y0, y1, func(x, y int) {
			for _, id := range t.leaf(x, y) {
				consider(id)
			}
		})

		if x0 <= 0 && y0 <= 0 && x1 >= t.side-1 && y1 >= t.side-1 {
			break
		}
		if idx.opts.MaxRegionSearch > 0 && r+1 >= idx.opts.MaxRegionSearch {
			break
		}
		if best.Valid() && best.Distance <= t.outsideBound(proj, q, x0, x1, y0, y1) {
			break
		}
	}
	return best, nil
}

// ring visits the in-grid cells on the border of [x0, x1] x [y0, y1].
func (t *tree) ring(x0, x1, y0, y1 int, visit func(x, y int)) {
	cx0, cx1 := clampCell(x0, t.side), clampCell(x1, t.side)
	if y0 >= 0 {
		for x := cx0; x <= cx1; x++ {
			visit(x, y0)
		}
	}
	if y1 < t.side && y1 != y0 {
		for x := cx0; x <= cx1; x++ {
			visit(x, y1)
		}
	}
	cy0, cy1 := clampCell(y0+1, t.side), clampCell(y1-1, t.side)
	if y0+1 > y1-1 {
		return
	}
	if x0 >= 0 {
		for y := cy0; y <= cy1; y++ {
			visit(x0, y)
		}
	}
	if x1 < t.side && x1 != x0 {
		for y := cy0; y <= cy1; y++ {
			visit(x1, y)
		}
	}
}

// outsideBound returns a lower bound for the distance from q to any cell
// outside the block [x0, x1] x [y0, y1].
func (t *tree) outsideBound(proj geo.Projection, q geo.Point, x0, x1, y0, y1 int) float64 {
	bound := math.Inf(1)
	if x0 > 0 {
		lon := t.minLon + float64(x0)*t.cellW
		bound = math.Min(bound, proj.Dist(q, geo.Point{Lat: q.Lat, Lon: lon}))
	}
	if x1 < t.side-1 {
		lon := t.minLon + float64(x1+1)*t.cellW
		bound = math.Min(bound, proj.Dist(q, geo.Point{Lat: q.Lat, Lon: lon}))
	}
	if y0 > 0 {
		lat := t.minLat + float64(y0)*t.cellH
		bound = math.Min(bound, proj.Dist(q, geo.Point{Lat: lat, Lon: q.Lon}))
	}
	if y1 < t.side-1 {
		lat := t.minLat + float64(y1+1)*t.cellH
		bound = math.Min(bound, proj.Dist(q, geo.Point{Lat: lat, Lon: q.Lon}))
	}
	return bound
}

// snapEdge projects q onto the polyline of e.
func snapEdge(proj geo.Projection, q geo.Point, e graph.Edge) Snap {
	geom := e.Geometry
	s := Snap{
		Query:    q,
		EdgeID:   e.ID,
		Distance: proj.Dist(q, geom[0]),
		Snapped:  geom[0],
		Position: PositionTower,
	}
	last := len(geom) - 1
	for i := 1; i <= last; i++ {
		p, tt, d := proj.ClosestOnSegment(q, geom[i-1], geom[i])
		if d >= s.Distance {
			continue
		}
		s.Distance, s.Snapped = d, p
		switch {
		case tt <= 0:
			s.WayIndex = i - 1
		case tt >= 1:
			s.WayIndex = i
		default:
			s.WayIndex = i - 1
			s.Position = PositionEdge
			continue
		}
		s.Position = PositionPillar
		if s.WayIndex == 0 || s.WayIndex == last {
			s.Position = PositionTower
		}
	}

	s.ClosestNode = e.Base
	if proj.Dist(q, geom[last]) < proj.Dist(q, geom[0]) {
		s.ClosestNode = e.Adj
	}
	return s
}

// Query returns the ids of all edges registered in leaves intersecting bbox.
func (idx *TileIndex) Query(bbox geo.BBox) (*roaring.Bitmap, error) {
	t := idx.current.Load()
	if t == nil {
		return nil, ErrNotPrepared
	}
	ids := roaring.New()
	if !bbox.IsValid() || len(t.edges) == 0 || !bbox.Intersects(t.bbox) {
		return ids, nil
	}
	x0, x1 := int(t.cellX(bbox.MinLon)), int(t.cellX(bbox.MaxLon))
	y0, y1 := int(t.cellY(bbox.MinLat)), int(t.cellY(bbox.MaxLat))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			for _, id := range t.leaf(x, y) {
				ids.Add(uint32(id))
			}
		}
	}
	return ids, nil
}
