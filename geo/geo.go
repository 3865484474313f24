// Package geo provides the small amount of geometry the location index needs:
// WGS84 points, axis-aligned bounding boxes and distance calculation.
//
// Longitudes are not wrapped at the antimeridian.
package geo

import (
	"fmt"
	"math"
)

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6371000.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// IsValid reports whether the point is a finite coordinate within the WGS84 ranges.
func (p Point) IsValid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 &&
		p.Lon >= -180 && p.Lon <= 180
}

func (p Point) String() string {
	return fmt.Sprintf("%.7f,%.7f", p.Lat, p.Lon)
}

// BBox is an axis-aligned bounding box in degrees.
type BBox struct {
	MinLon float64
	MaxLon float64
	MinLat float64
	MaxLat float64
}

// NewBBox creates a bounding box. The argument order follows the usual
// minLon, maxLon, minLat, maxLat convention of routing engines.
func NewBBox(minLon, maxLon, minLat, maxLat float64) BBox {
	return BBox{MinLon: minLon, MaxLon: maxLon, MinLat: minLat, MaxLat: maxLat}
}

// EmptyBBox returns an inverted box that any call to Extend turns valid.
func EmptyBBox() BBox {
	return BBox{
		MinLon: math.Inf(1),
		MaxLon: math.Inf(-1),
		MinLat: math.Inf(1),
		MaxLat: math.Inf(-1),
	}
}

// IsValid reports whether the box is finite and not inverted.
func (b BBox) IsValid() bool {
	for _, v := range [...]float64{b.MinLon, b.MaxLon, b.MinLat, b.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MinLon <= b.MaxLon && b.MinLat <= b.MaxLat
}

// Extend grows the box to include p.
func (b *BBox) Extend(p Point) {
	b.MinLon = math.Min(b.MinLon, p.Lon)
	b.MaxLon = math.Max(b.MaxLon, p.Lon)
	b.MinLat = math.Min(b.MinLat, p.Lat)
	b.MaxLat = math.Max(b.MaxLat, p.Lat)
}

// Contains reports whether the coordinate lies inside the box (inclusive).
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Intersects reports whether the two boxes share at least one point.
func (b BBox) Intersects(o BBox) bool {
	return b.MinLon <= o.MaxLon && o.MinLon <= b.MaxLon &&
		b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat
}

// Center returns the midpoint of the box.
func (b BBox) Center() Point {
	return Point{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// WidthMeters returns the east-west extent measured along the center latitude.
func (b BBox) WidthMeters() float64 {
	c := b.Center()
	return Haversine(Point{Lat: c.Lat, Lon: b.MinLon}, Point{Lat: c.Lat, Lon: b.MaxLon})
}

// HeightMeters returns the north-south extent.
func (b BBox) HeightMeters() float64 {
	return Haversine(Point{Lat: b.MinLat, Lon: b.MinLon}, Point{Lat: b.MaxLat, Lon: b.MinLon})
}

func (b BBox) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.MinLon, b.MaxLon, b.MinLat, b.MaxLat)
}
