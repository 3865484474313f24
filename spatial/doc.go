// Package spatial snaps coordinates to the closest edge of a road graph.
//
// TileIndex quadrisects the graph bounds down to a fixed depth derived from
// the configured resolution. Every edge polyline is rasterized onto the leaf
// grid and its id is recorded in each leaf it touches. Lookups walk rings of
// leaves around the query cell until no unexamined cell can hold a closer
// edge.
//
// The tree is an arena of int32 cell records. Internal cells hold four child
// indices (-1 for an empty quadrant); leaf cells hold a range into one flat,
// per-leaf sorted edge id array. The arena persists to a storage.DataAccess.
//
// Prepare and Load are single writers. FindClosest and Query may run from
// any number of goroutines once one of them returned.
package spatial
