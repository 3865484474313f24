package spatial

import "math"

// grid maps coordinates onto the side x side leaf grid.
type grid struct {
	minLon, minLat float64
	cellW, cellH   float64 // degrees
	side           int
}

// cellX returns the fractional column of lon clamped into the grid.
func (g *grid) cellX(lon float64) float64 {
	return clampUnit((lon-g.minLon)/g.cellW, g.side)
}

func (g *grid) cellY(lat float64) float64 {
	return clampUnit((lat-g.minLat)/g.cellH, g.side)
}

func clampUnit(v float64, side int) float64 {
	upper := math.Nextafter(float64(side), 0)
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > upper:
		return upper
	}
	return v
}

func clampCell(v, side int) int {
	return max(0, min(v, side-1))
}

// segment calls visit for every cell the segment from (ax, ay) to (bx, by)
// passes through, in grid units. When the segment crosses a cell corner
// exactly, both cells sharing that corner are visited as well.
func segment(ax, ay, bx, by float64, visit func(x, y int)) {
	cx, cy := int(ax), int(ay)
	ex, ey := int(bx), int(by)

	dx, dy := bx-ax, by-ay
	stepX, tMaxX, tDeltaX := axis(ax, dx)
	stepY, tMaxY, tDeltaY := axis(ay, dy)

	for {
		visit(cx, cy)
		if cx == ex && cy == ey {
			return
		}
		switch {
		case cy == ey || (cx != ex && tMaxX < tMaxY):
			cx += stepX
			tMaxX += tDeltaX
		case cx == ex || tMaxY < tMaxX:
			cy += stepY
			tMaxY += tDeltaY
		default:
			visit(cx+stepX, cy)
			visit(cx, cy+stepY)
			cx += stepX
			cy += stepY
			tMaxX += tDeltaX
			tMaxY += tDeltaY
		}
	}
}

// axis returns the step direction, the parameter of the first cell
// boundary crossing and the parameter distance between crossings.
func axis(a, d float64) (int, float64, float64) {
	switch {
	case d > 0:
		return 1, (math.Floor(a) + 1 - a) / d, 1 / d
	case d < 0:
		return -1, (a - math.Floor(a)) / -d, 1 / -d
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}
