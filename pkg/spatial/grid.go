// Package spatial provides a uniform grid over network nodes for
// nearest-node queries.
package spatial

import (
	"cmp"
	"math"
	"slices"
	"sort"

	"github.com/paulmach/orb"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/graph"
)

// gridCell returns the integer cell coordinates for a point.
func gridCell(x, y, size float64) (cx, cy int32) {
	return int32(math.Floor(x / size)), int32(math.Floor(y / size))
}

// cellKey packs two int32 cell indices into a single uint64 key.
func cellKey(cx, cy int32) uint64 {
	return uint64(uint32(cx))<<32 | uint64(uint32(cy))
}

// cellNode stores a cell key and a node id in a flat sortable structure.
type cellNode struct {
	key  uint64
	node uint32
}

// Grid maps cells to the nodes they contain. All entries live in a single
// slice sorted by cell key, so there are no per-cell allocations.
//
// A Grid is read-only after construction and safe for concurrent queries.
type Grid struct {
	g        *graph.Graph
	cellSize float64
	entries  []cellNode // sorted by key, then node
}

// NewGrid indexes every node of g with the given cell size.
func NewGrid(g *graph.Graph, cellSize float64) *Grid {
	if cellSize <= 0 || math.IsNaN(cellSize) || math.IsInf(cellSize, 0) {
		cellSize = geo.CRS{}.CellSize()
	}
	grid := &Grid{g: g, cellSize: cellSize}
	if g.Empty() {
		return grid
	}

	entries := make([]cellNode, g.NumNodes)
	for u := uint32(0); u < g.NumNodes; u++ {
		cx, cy := gridCell(g.X[u], g.Y[u], cellSize)
		entries[u] = cellNode{key: cellKey(cx, cy), node: u}
	}
	// Node ids are already ascending, so a stable sort keeps them ordered
	// within each cell.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].key < entries[j].key
	})
	grid.entries = entries
	return grid
}

// NewGridForCRS indexes g with the cell size of its coordinate system.
func NewGridForCRS(g *graph.Graph) *Grid {
	var crs geo.CRS
	if g != nil {
		crs = g.CRS
	}
	return NewGrid(g, crs.CellSize())
}

// Len returns the number of indexed nodes. A nil grid is empty.
func (s *Grid) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// CellSize returns the edge length of a cell in CRS units.
func (s *Grid) CellSize() float64 { return s.cellSize }

// cellRange returns the entries of the given cell using binary search.
func (s *Grid) cellRange(key uint64) []cellNode {
	lo := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].key >= key
	})
	if lo >= len(s.entries) || s.entries[lo].key != key {
		return nil
	}
	hi := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].key > key
	})
	return s.entries[lo:hi]
}

// ring appends the nodes of every cell at Chebyshev distance r from (cx, cy).
func (s *Grid) ring(dst []uint32, cx, cy, r int32) []uint32 {
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			if max(abs(dx), abs(dy)) != r {
				continue
			}
			for _, ce := range s.cellRange(cellKey(cx+dx, cy+dy)) {
				dst = append(dst, ce.node)
			}
		}
	}
	return dst
}

// Nearest returns up to k node ids ordered by ascending Euclidean distance
// from p. Candidates come from the 3×3 cells around p; when they number
// fewer than 2k the search widens to the ring at distance 2. Nodes beyond
// that ring are never returned, so a far-away p yields nothing.
//
// An empty grid falls back to a full scan of the graph.
func (s *Grid) Nearest(p orb.Point, k int) []uint32 {
	if k <= 0 {
		return nil
	}
	if s.Len() == 0 {
		if s == nil {
			return nil
		}
		return ScanNearest(s.g, p, k)
	}

	cx, cy := gridCell(p[0], p[1], s.cellSize)
	cand := s.ring(nil, cx, cy, 0)
	cand = s.ring(cand, cx, cy, 1)
	if len(cand) < 2*k {
		cand = s.ring(cand, cx, cy, 2)
	}
	return closest(s.g, p, cand, k)
}

// ScanNearest returns up to k nodes of g closest to p by scanning every node.
func ScanNearest(g *graph.Graph, p orb.Point, k int) []uint32 {
	if g.Empty() || k <= 0 {
		return nil
	}
	all := make([]uint32, g.NumNodes)
	for i := range all {
		all[i] = uint32(i)
	}
	return closest(g, p, all, k)
}

type scored struct {
	node uint32
	dist float64
}

// closest sorts candidates by distance to p, ties by id, and keeps k.
func closest(g *graph.Graph, p orb.Point, cand []uint32, k int) []uint32 {
	if len(cand) == 0 {
		return nil
	}
	sc := make([]scored, len(cand))
	for i, u := range cand {
		sc[i] = scored{node: u, dist: geo.Dist(p, g.Point(u))}
	}
	slices.SortFunc(sc, func(a, b scored) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.node, b.node)
	})
	if len(sc) > k {
		sc = sc[:k]
	}
	out := make([]uint32, len(sc))
	for i, c := range sc {
		out[i] = c.node
	}
	return out
}

func abs(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
