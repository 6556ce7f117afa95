package graph

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/azybler/roadnet/pkg/geo"
)

// EdgeRef points at the source geometry of an edge: one segment of one
// feature. Geometry is never stored in the graph.
type EdgeRef struct {
	FeatureID int32
	Segment   int32
}

// Edge is a directed adjacency record.
type Edge struct {
	Target uint32
	Weight float64
	Ref    EdgeRef
}

// Node is a deduplicated network vertex.
type Node struct {
	ID   uint32
	X, Y float64
}

// Point returns the node position.
func (n Node) Point() orb.Point { return orb.Point{n.X, n.Y} }

// Graph is an undirected road network stored as a directed graph in CSR
// (Compressed Sparse Row) format. Every physical segment appears as two
// edges, u->v and v->u, sharing one EdgeRef.
type Graph struct {
	NumNodes uint32
	NumEdges uint32
	FirstOut []uint32  // len: NumNodes + 1; FirstOut[i]..FirstOut[i+1] are edges from node i
	Head     []uint32  // len: NumEdges; target node for each edge
	Weight   []float64 // len: NumEdges; Euclidean segment length in CRS units
	Feature  []int32   // len: NumEdges; source feature id
	Segment  []int32   // len: NumEdges; segment index within the feature
	X        []float64 // len: NumNodes
	Y        []float64 // len: NumNodes

	// Tolerance is the merge tolerance the graph was built with.
	Tolerance float64
	// CRS is not persisted in the cache; loaders set it from the source.
	CRS geo.CRS
}

// EdgesFrom returns the range of edge indices for edges originating from node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// Edge returns edge e as a value.
func (g *Graph) Edge(e uint32) Edge {
	return Edge{
		Target: g.Head[e],
		Weight: g.Weight[e],
		Ref:    EdgeRef{FeatureID: g.Feature[e], Segment: g.Segment[e]},
	}
}

// Node returns node u.
func (g *Graph) Node(u uint32) Node {
	return Node{ID: u, X: g.X[u], Y: g.Y[u]}
}

// Point returns the position of node u.
func (g *Graph) Point(u uint32) orb.Point {
	return orb.Point{g.X[u], g.Y[u]}
}

// Degree returns the number of outgoing edges of node u.
func (g *Graph) Degree(u uint32) int {
	return int(g.FirstOut[u+1] - g.FirstOut[u])
}

// Empty reports whether the graph has no nodes.
func (g *Graph) Empty() bool {
	return g == nil || g.NumNodes == 0
}

// New assembles a CSR graph from per-node adjacency lists. nodes[i].ID must
// equal i and every edge target must be a valid node id.
func New(tolerance float64, nodes []Node, adj [][]Edge) (*Graph, error) {
	if len(adj) != len(nodes) {
		return nil, fmt.Errorf("adjacency length %d != node count %d", len(adj), len(nodes))
	}
	numNodes := uint32(len(nodes))

	var numEdges uint32
	for _, edges := range adj {
		numEdges += uint32(len(edges))
	}

	g := &Graph{
		NumNodes:  numNodes,
		NumEdges:  numEdges,
		FirstOut:  make([]uint32, numNodes+1),
		Head:      make([]uint32, 0, numEdges),
		Weight:    make([]float64, 0, numEdges),
		Feature:   make([]int32, 0, numEdges),
		Segment:   make([]int32, 0, numEdges),
		X:         make([]float64, numNodes),
		Y:         make([]float64, numNodes),
		Tolerance: tolerance,
	}

	for i, n := range nodes {
		if n.ID != uint32(i) {
			return nil, fmt.Errorf("node at position %d has id %d", i, n.ID)
		}
		g.X[i], g.Y[i] = n.X, n.Y
		for _, e := range adj[i] {
			if e.Target >= numNodes {
				return nil, fmt.Errorf("node %d: edge target %d >= NumNodes %d", i, e.Target, numNodes)
			}
			g.Head = append(g.Head, e.Target)
			g.Weight = append(g.Weight, e.Weight)
			g.Feature = append(g.Feature, e.Ref.FeatureID)
			g.Segment = append(g.Segment, e.Ref.Segment)
		}
		g.FirstOut[i+1] = uint32(len(g.Head))
	}

	return g, nil
}
