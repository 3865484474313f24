// Package roadkit snaps coordinates onto a road graph and ships the
// collections a shortest-path search runs on.
//
// # Quick Start
//
//	b := graph.NewBuilder()
//	a, _ := b.AddNode(52.5200, 13.4050)
//	c, _ := b.AddNode(52.5210, 13.4100)
//	b.AddEdge(a, c)
//
//	loc, _ := roadkit.New(b.Build(), roadkit.WithResolution(300))
//	_ = loc.Prepare(ctx)
//
//	snap, _ := loc.FindClosest(ctx, 52.5205, 13.4070, nil)
//	if snap.Valid() {
//	    fmt.Println(snap.EdgeID, snap.Distance)
//	}
//
// # Persistence
//
// A prepared index can be flushed to any blobstore.BlobStore and loaded
// again for the same graph without rebuilding:
//
//	store := blobstore.NewLocalStore("./index")
//	loc, _ := roadkit.New(g, roadkit.WithStore(store), roadkit.WithCompression(storage.CompressionZSTD))
//	_ = loc.Prepare(ctx)
//	_ = loc.Flush(ctx)
//
//	// later
//	ok, _ := loc.Load(ctx)
//
// S3, MinIO and a DynamoDB-coordinated S3 store live in blobstore/s3 and
// blobstore/minio.
//
// # Search Building Blocks
//
// The packages below the facade are usable on their own:
//
//   - queue: a bounded min-heap over dense ids with in-place priority updates.
//   - coll: open-addressing maps and sets keyed by integers, and an ordered
//     multi-map with FIFO ties.
//   - spatial: the tile index behind Locator.
//   - filter: edge predicates and their combinators.
//
// # Concurrency
//
// Prepare, Load and Close are single writers. FindClosest,
// FindClosestBatch and Query may be called concurrently once Prepare or
// Load returned. Queues, maps and sets are not safe for concurrent
// mutation; use one per search.
package roadkit
