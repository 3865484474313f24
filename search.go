package roadkit

import (
	"context"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/roadkit/filter"
	"github.com/hupe1980/roadkit/geo"
	"github.com/hupe1980/roadkit/spatial"
)

// FindClosest returns the edge closest to the coordinate among those f
// accepts. A nil filter accepts every edge. When nothing matches, the
// returned Snap reports Valid() == false and the error is nil.
func (l *Locator) FindClosest(ctx context.Context, lat, lon float64, f filter.EdgeFilter) (spatial.Snap, error) {
	if err := l.check(ctx); err != nil {
		return spatial.Snap{EdgeID: -1, ClosestNode: -1}, err
	}
	start := time.Now()
	snap, err := l.findClosest(lat, lon, f)
	l.metrics.RecordFindClosest(snap.Valid(), time.Since(start), err)
	l.logger.LogFindClosest(ctx, lat, lon, snap.EdgeID, snap.Distance, err)
	return snap, err
}

func (l *Locator) findClosest(lat, lon float64, f filter.EdgeFilter) (spatial.Snap, error) {
	snap, err := l.index.FindClosest(lat, lon, f)
	if err != nil {
		err = TranslateError(err)
		if p := (geo.Point{Lat: lat, Lon: lon}); !p.IsValid() {
			err = &ErrInvalidPoint{Lat: lat, Lon: lon, cause: err}
		}
	}
	return snap, err
}

// FindClosestBatch snaps every point concurrently. Results are in input
// order. The first failing point aborts the batch.
func (l *Locator) FindClosestBatch(ctx context.Context, points []geo.Point, f filter.EdgeFilter) ([]spatial.Snap, error) {
	if err := l.check(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	out := make([]spatial.Snap, len(points))

	workers := min(l.opts.concurrency, max(1, len(points)))
	chunk := (len(points) + workers - 1) / max(1, workers)

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(points); lo += chunk {
		hi := min(lo+chunk, len(points))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				s, err := l.findClosest(points[i].Lat, points[i].Lon, f)
				if err != nil {
					return err
				}
				out[i] = s
			}
			return nil
		})
	}
	err := g.Wait()
	took := time.Since(start)

	unmatched := 0
	if err == nil {
		for _, s := range out {
			if !s.Valid() {
				unmatched++
			}
		}
		l.metrics.RecordBatch(len(points), unmatched, took)
	}
	l.logger.LogBatch(ctx, len(points), unmatched, took, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Query returns the ids of the edges indexed in leaves intersecting bbox.
// The result may include edges that only pass near bbox.
func (l *Locator) Query(ctx context.Context, bbox geo.BBox) (*roaring.Bitmap, error) {
	if err := l.check(ctx); err != nil {
		return nil, err
	}
	ids, err := l.index.Query(bbox)
	return ids, TranslateError(err)
}
