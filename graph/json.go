package graph

import (
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/roadkit/geo"
)

// jsonGraph is the on-disk road graph format:
//
//	{
//	  "bbox":  [minLon, maxLon, minLat, maxLat],
//	  "nodes": [[lat, lon], ...],
//	  "edges": [{"base": 0, "adj": 1, "pillars": [[lat, lon], ...]}, ...]
//	}
//
// bbox is optional.
type jsonGraph struct {
	BBox  []float64    `json:"bbox,omitempty"`
	Nodes [][2]float64 `json:"nodes"`
	Edges []jsonEdge   `json:"edges"`
}

type jsonEdge struct {
	Base    int32        `json:"base"`
	Adj     int32        `json:"adj"`
	Pillars [][2]float64 `json:"pillars,omitempty"`
}

// LoadJSON decodes a road graph from r.
func LoadJSON(r io.Reader) (*CSR, error) {
	var jg jsonGraph
	if err := gojson.NewDecoder(r).Decode(&jg); err != nil {
		return nil, fmt.Errorf("graph: decode: %w", err)
	}

	b := NewBuilder()
	for _, n := range jg.Nodes {
		if _, err := b.AddNode(n[0], n[1]); err != nil {
			return nil, err
		}
	}
	for i, e := range jg.Edges {
		pillars := make([]geo.Point, len(e.Pillars))
		for j, p := range e.Pillars {
			pillars[j] = geo.Point{Lat: p[0], Lon: p[1]}
		}
		if _, err := b.AddEdge(e.Base, e.Adj, pillars...); err != nil {
			return nil, fmt.Errorf("graph: edge %d: %w", i, err)
		}
	}
	switch len(jg.BBox) {
	case 0:
	case 4:
		b.SetBounds(geo.NewBBox(jg.BBox[0], jg.BBox[1], jg.BBox[2], jg.BBox[3]))
	default:
		return nil, fmt.Errorf("graph: bbox needs 4 values, got %d", len(jg.BBox))
	}
	return b.Build(), nil
}

// WriteJSON encodes g in the format read by LoadJSON.
func WriteJSON(w io.Writer, g *CSR) error {
	jg := jsonGraph{
		Nodes: make([][2]float64, len(g.nodes)),
		Edges: make([]jsonEdge, len(g.base)),
	}
	if g.bounds.IsValid() {
		jg.BBox = []float64{g.bounds.MinLon, g.bounds.MaxLon, g.bounds.MinLat, g.bounds.MaxLat}
	}
	for i, p := range g.nodes {
		jg.Nodes[i] = [2]float64{p.Lat, p.Lon}
	}
	for id := range g.base {
		e := jsonEdge{Base: g.base[id], Adj: g.adj[id]}
		for _, p := range g.pillars[g.pillarOff[id]:g.pillarOff[id+1]] {
			e.Pillars = append(e.Pillars, [2]float64{p.Lat, p.Lon})
		}
		jg.Edges[id] = e
	}
	return gojson.NewEncoder(w).Encode(&jg)
}
