package routing

import (
	"context"
	"math"

	"github.com/azybler/roadnet/pkg/graph"
)

const noNode = ^uint32(0) // sentinel for "no node" / "no edge"

// ctxCheckInterval is how many heap pops run between context checks.
const ctxCheckInterval = 1024

// MinHeap is a concrete-typed min-heap for the Dijkstra priority queue.
// Avoids interface boxing overhead of container/heap.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node uint32
	Dist float64
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node uint32, dist float64) {
	h.items = append(h.items, PQItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *MinHeap) PeekDist() float64 {
	if len(h.items) == 0 {
		return math.Inf(1)
	}
	return h.items[0].Dist
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].Dist >= h.items[parent].Dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].Dist < h.items[smallest].Dist {
			smallest = left
		}
		if right < n && h.items[right].Dist < h.items[smallest].Dist {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// QueryState holds per-query Dijkstra state. Arrays are sized to the graph
// and reset through Touched, so a state can be reused across queries on the
// same graph.
type QueryState struct {
	Dist     []float64
	PredNode []uint32 // node the best edge into i leaves from (noNode = seed)
	PredEdge []uint32 // CSR index of that edge
	Settled  []bool
	Touched  []uint32 // nodes touched during this query (for fast reset)
	PQ       MinHeap
}

// NewQueryState creates a new QueryState for a graph with n nodes.
func NewQueryState(n uint32) *QueryState {
	dist := make([]float64, n)
	predNode := make([]uint32, n)
	predEdge := make([]uint32, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		predNode[i] = noNode
		predEdge[i] = noNode
	}
	return &QueryState{
		Dist:     dist,
		PredNode: predNode,
		PredEdge: predEdge,
		Settled:  make([]bool, n),
		Touched:  make([]uint32, 0, 1024),
		PQ:       MinHeap{items: make([]PQItem, 0, 256)},
	}
}

// Reset clears only the touched entries for fast reuse.
func (qs *QueryState) Reset() {
	for _, node := range qs.Touched {
		qs.Dist[node] = math.Inf(1)
		qs.PredNode[node] = noNode
		qs.PredEdge[node] = noNode
		qs.Settled[node] = false
	}
	qs.Touched = qs.Touched[:0]
	qs.PQ.Reset()
}

func (qs *QueryState) touch(node uint32, dist float64, from, edge uint32) {
	if math.IsInf(qs.Dist[node], 1) {
		qs.Touched = append(qs.Touched, node)
	}
	qs.Dist[node] = dist
	qs.PredNode[node] = from
	qs.PredEdge[node] = edge
}

// seed is a start candidate with its access cost.
type seed struct {
	node uint32
	cost float64
}

// searchStats reports how much work a search did.
type searchStats struct {
	settled int
}

// runDijkstra seeds the queue with every start candidate at its access cost
// and relaxes until the first end candidate is popped. By the Dijkstra
// invariant that node lies on a shortest path from the seeded sources, so
// the rest of the graph is not explored. Returns noNode when the queue
// drains first.
func runDijkstra(ctx context.Context, g *graph.Graph, qs *QueryState, seeds []seed, isEnd func(uint32) bool) (uint32, searchStats, error) {
	var stats searchStats
	for _, s := range seeds {
		if s.cost < qs.Dist[s.node] {
			qs.touch(s.node, s.cost, noNode, noNode)
			qs.PQ.Push(s.node, s.cost)
		}
	}

	pops := 0
	for qs.PQ.Len() > 0 {
		pops++
		if pops%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return noNode, stats, err
			}
		}

		item := qs.PQ.Pop()
		u := item.Node
		if qs.Settled[u] || item.Dist > qs.Dist[u] {
			continue // stale entry
		}
		qs.Settled[u] = true
		stats.settled++

		if isEnd(u) {
			return u, stats, nil
		}

		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			if qs.Settled[v] {
				continue
			}
			newDist := item.Dist + g.Weight[e]
			if newDist < qs.Dist[v] {
				qs.touch(v, newDist, u, e)
				qs.PQ.Push(v, newDist)
			}
		}
	}
	return noNode, stats, nil
}

// pathEdges walks predecessor edges from reached back to its seed and
// returns the node sequence and the CSR edge indices in traversal order.
func pathEdges(qs *QueryState, reached uint32) (nodes, edges []uint32) {
	// A predecessor chain can never be longer than the number of nodes.
	limit := len(qs.Dist)
	node := reached
	nodes = append(nodes, node)
	for qs.PredNode[node] != noNode && len(edges) < limit {
		edges = append(edges, qs.PredEdge[node])
		node = qs.PredNode[node]
		nodes = append(nodes, node)
	}
	reverse(nodes)
	reverse(edges)
	return nodes, edges
}

func reverse(s []uint32) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
