package geo

import "math"

const degToRad = math.Pi / 180

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b Point) float64 {
	sinDLat := math.Sin(degToRad * (b.Lat - a.Lat) / 2)
	sinDLon := math.Sin(degToRad * (b.Lon - a.Lon) / 2)
	h := sinDLat*sinDLat + math.Cos(degToRad*a.Lat)*math.Cos(degToRad*b.Lat)*sinDLon*sinDLon
	return 2 * EarthRadius * math.Asin(math.Sqrt(math.Min(1, h)))
}

// Projection is a local equirectangular projection around a reference
// latitude. Within one projection, distances are plain Euclidean distances
// in meters, which keeps point-to-segment and point-to-rectangle distances
// mutually consistent for a single query.
type Projection struct {
	kx float64 // meters per degree longitude
	ky float64 // meters per degree latitude
}

// NewProjection creates a projection whose longitude scale is exact at refLat.
func NewProjection(refLat float64) Projection {
	ky := degToRad * EarthRadius
	kx := ky * math.Cos(degToRad*refLat)
	if kx < 1e-9 {
		kx = 1e-9
	}
	return Projection{kx: kx, ky: ky}
}

// Project maps p to planar meters.
func (pr Projection) Project(p Point) (x, y float64) {
	return p.Lon * pr.kx, p.Lat * pr.ky
}

// Unproject maps planar meters back to a point.
func (pr Projection) Unproject(x, y float64) Point {
	return Point{Lat: y / pr.ky, Lon: x / pr.kx}
}

// Dist returns the planar distance between a and b in meters.
func (pr Projection) Dist(a, b Point) float64 {
	ax, ay := pr.Project(a)
	bx, by := pr.Project(b)
	return math.Hypot(ax-bx, ay-by)
}

// ClosestOnSegment returns the point on segment [a, b] closest to q, the
// segment parameter t in [0, 1] of that point and its distance to q.
func (pr Projection) ClosestOnSegment(q, a, b Point) (Point, float64, float64) {
	qx, qy := pr.Project(q)
	ax, ay := pr.Project(a)
	bx, by := pr.Project(b)

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = ((qx-ax)*dx + (qy-ay)*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}
	px, py := ax+t*dx, ay+t*dy
	return pr.Unproject(px, py), t, math.Hypot(qx-px, qy-py)
}

// DistToRect returns the distance from q to the nearest point of r, zero if
// q lies inside r.
func (pr Projection) DistToRect(q Point, r BBox) float64 {
	lat := math.Max(r.MinLat, math.Min(r.MaxLat, q.Lat))
	lon := math.Max(r.MinLon, math.Min(r.MaxLon, q.Lon))
	return pr.Dist(q, Point{Lat: lat, Lon: lon})
}
