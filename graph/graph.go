// Package graph defines the road network contract consumed by the location
// index and ships a compact in-memory implementation.
//
// Nodes ("towers") are junctions or dead ends and carry dense int32 ids.
// Every edge connects two towers and may carry intermediate shape points
// ("pillars"). Edge ids are dense as well, in [0, EdgeCount()).
package graph

import (
	"iter"

	"github.com/hupe1980/roadkit/geo"
)

// Edge is a road segment between two tower nodes.
type Edge struct {
	ID   int32
	Base int32
	Adj  int32

	// Geometry is the full polyline: base tower, pillars, adjacent tower.
	Geometry []geo.Point
}

// Graph is the read-only view the location index needs.
//
// Implementations must be safe for concurrent readers.
type Graph interface {
	// Bounds returns the area covered by the graph. An invalid box makes the
	// index fall back to the bounds of the edge geometry.
	Bounds() geo.BBox

	// EdgeCount returns the number of edges; ids are in [0, EdgeCount()).
	EdgeCount() int

	// Edge returns the edge with the given id.
	Edge(id int32) (Edge, bool)

	// Edges iterates over all edges in id order.
	Edges() iter.Seq[Edge]
}

// Adjacency is one outgoing half of an edge as seen from a node.
type Adjacency struct {
	Edge     int32
	Node     int32   // the node at the other end
	Distance float64 // polyline length in meters
}
