package graph

import (
	"errors"
	"fmt"
	"iter"

	"github.com/hupe1980/roadkit/geo"
)

var (
	// ErrUnknownNode is returned when an edge references a node that was never added.
	ErrUnknownNode = errors.New("graph: unknown node")

	// ErrInvalidPoint is returned for coordinates outside the WGS84 ranges.
	ErrInvalidPoint = errors.New("graph: invalid coordinate")
)

// CSR is an immutable graph in compressed sparse row layout. Build one with
// a Builder.
type CSR struct {
	nodes  []geo.Point
	base   []int32
	adj    []int32
	length []float64

	// pillars of edge e are pillars[pillarOff[e]:pillarOff[e+1]]
	pillarOff []int32
	pillars   []geo.Point

	// half-edges of node n are half[halfOff[n]:halfOff[n+1]]
	halfOff []int32
	half    []Adjacency

	bounds geo.BBox
}

var _ Graph = (*CSR)(nil)

// Bounds returns the box covering every node and pillar, or the box set with
// Builder.SetBounds.
func (g *CSR) Bounds() geo.BBox { return g.bounds }

// NodeCount returns the number of tower nodes.
func (g *CSR) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *CSR) EdgeCount() int { return len(g.base) }

// Node returns the coordinate of a tower node.
func (g *CSR) Node(id int32) (geo.Point, bool) {
	if id < 0 || int(id) >= len(g.nodes) {
		return geo.Point{}, false
	}
	return g.nodes[id], true
}

// Edge returns the edge with the given id. The geometry slice is freshly
// allocated and owned by the caller.
func (g *CSR) Edge(id int32) (Edge, bool) {
	if id < 0 || int(id) >= len(g.base) {
		return Edge{}, false
	}
	return g.edge(id, nil), true
}

func (g *CSR) edge(id int32, buf []geo.Point) Edge {
	p := g.pillars[g.pillarOff[id]:g.pillarOff[id+1]]
	geom := append(buf[:0], g.nodes[g.base[id]])
	geom = append(geom, p...)
	geom = append(geom, g.nodes[g.adj[id]])
	return Edge{ID: id, Base: g.base[id], Adj: g.adj[id], Geometry: geom}
}

// Edges iterates over all edges in id order. The geometry buffer is reused
// between iterations; copy it to retain it.
func (g *CSR) Edges() iter.Seq[Edge] {
	return func(yield func(Edge) bool) {
		var buf []geo.Point
		for id := range g.base {
			e := g.edge(int32(id), buf)
			buf = e.Geometry
			if !yield(e) {
				return
			}
		}
	}
}

// Length returns the polyline length of an edge in meters.
func (g *CSR) Length(id int32) float64 { return g.length[id] }

// Adjacent iterates over the edges touching node, in both directions.
func (g *CSR) Adjacent(node int32) iter.Seq[Adjacency] {
	return func(yield func(Adjacency) bool) {
		if node < 0 || int(node) >= len(g.nodes) {
			return
		}
		for _, a := range g.half[g.halfOff[node]:g.halfOff[node+1]] {
			if !yield(a) {
				return
			}
		}
	}
}

// Builder accumulates nodes and edges for a CSR graph.
type Builder struct {
	nodes     []geo.Point
	base      []int32
	adj       []int32
	pillarOff []int32
	pillars   []geo.Point
	bounds    *geo.BBox
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{pillarOff: []int32{0}}
}

// AddNode appends a tower node and returns its id.
func (b *Builder) AddNode(lat, lon float64) (int32, error) {
	p := geo.Point{Lat: lat, Lon: lon}
	if !p.IsValid() {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPoint, p)
	}
	b.nodes = append(b.nodes, p)
	return int32(len(b.nodes) - 1), nil
}

// AddEdge connects two existing nodes, optionally through pillar points,
// and returns the edge id.
func (b *Builder) AddEdge(base, adj int32, pillars ...geo.Point) (int32, error) {
	for _, n := range [...]int32{base, adj} {
		if n < 0 || int(n) >= len(b.nodes) {
			return 0, fmt.Errorf("%w: %d", ErrUnknownNode, n)
		}
	}
	for _, p := range pillars {
		if !p.IsValid() {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPoint, p)
		}
	}
	b.base = append(b.base, base)
	b.adj = append(b.adj, adj)
	b.pillars = append(b.pillars, pillars...)
	b.pillarOff = append(b.pillarOff, int32(len(b.pillars)))
	return int32(len(b.base) - 1), nil
}

// SetBounds overrides the bounds reported by the built graph.
func (b *Builder) SetBounds(bbox geo.BBox) {
	b.bounds = &bbox
}

// Build freezes the builder into a CSR graph. The builder must not be used
// afterwards.
func (b *Builder) Build() *CSR {
	g := &CSR{
		nodes:     b.nodes,
		base:      b.base,
		adj:       b.adj,
		pillarOff: b.pillarOff,
		pillars:   b.pillars,
		length:    make([]float64, len(b.base)),
		halfOff:   make([]int32, len(b.nodes)+1),
	}

	bounds := geo.EmptyBBox()
	for _, p := range g.nodes {
		bounds.Extend(p)
	}
	for _, p := range g.pillars {
		bounds.Extend(p)
	}
	if b.bounds != nil {
		bounds = *b.bounds
	}
	g.bounds = bounds

	var buf []geo.Point
	for id := range g.base {
		e := g.edge(int32(id), buf)
		buf = e.Geometry
		for i := 1; i < len(e.Geometry); i++ {
			g.length[id] += geo.Haversine(e.Geometry[i-1], e.Geometry[i])
		}
		g.halfOff[e.Base+1]++
		if e.Adj != e.Base {
			g.halfOff[e.Adj+1]++
		}
	}
	for n := 1; n < len(g.halfOff); n++ {
		g.halfOff[n] += g.halfOff[n-1]
	}

	g.half = make([]Adjacency, g.halfOff[len(g.nodes)])
	fill := make([]int32, len(g.nodes))
	copy(fill, g.halfOff[:len(g.nodes)])
	for id := range g.base {
		e, a := g.base[id], g.adj[id]
		g.half[fill[e]] = Adjacency{Edge: int32(id), Node: a, Distance: g.length[id]}
		fill[e]++
		if a != e {
			g.half[fill[a]] = Adjacency{Edge: int32(id), Node: e, Distance: g.length[id]}
			fill[a]++
		}
	}
	return g
}
