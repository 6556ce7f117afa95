package graph

// disjointSet is a union-find over node ids with union by size and path
// halving.
type disjointSet struct {
	parent []uint32
	size   []uint32
}

func newDisjointSet(n uint32) *disjointSet {
	ds := &disjointSet{parent: make([]uint32, n), size: make([]uint32, n)}
	for i := range n {
		ds.parent[i] = i
		ds.size[i] = 1
	}
	return ds
}

func (ds *disjointSet) find(x uint32) uint32 {
	for ds.parent[x] != x {
		ds.parent[x] = ds.parent[ds.parent[x]]
		x = ds.parent[x]
	}
	return x
}

// union merges the sets of x and y and reports whether they were distinct.
func (ds *disjointSet) union(x, y uint32) bool {
	rx, ry := ds.find(x), ds.find(y)
	if rx == ry {
		return false
	}
	if ds.size[rx] < ds.size[ry] {
		rx, ry = ry, rx
	}
	ds.parent[ry] = rx
	ds.size[rx] += ds.size[ry]
	return true
}

// Components labels the connected components of a graph. Edges are treated
// as undirected; isolated nodes form components of their own.
type Components struct {
	// Label holds the component of every node. Components are numbered
	// 0..Count()-1 in order of their lowest node id.
	Label []uint32
	// Sizes holds the node count of every component.
	Sizes []uint32
}

// FindComponents labels the connected components of g.
func FindComponents(g *Graph) Components {
	if g.Empty() {
		return Components{}
	}
	ds := newDisjointSet(g.NumNodes)
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			ds.union(u, g.Head[e])
		}
	}

	const unlabelled = ^uint32(0)
	byRoot := make([]uint32, g.NumNodes)
	for i := range byRoot {
		byRoot[i] = unlabelled
	}
	c := Components{Label: make([]uint32, g.NumNodes)}
	for u := uint32(0); u < g.NumNodes; u++ {
		root := ds.find(u)
		if byRoot[root] == unlabelled {
			byRoot[root] = uint32(len(c.Sizes))
			c.Sizes = append(c.Sizes, 0)
		}
		id := byRoot[root]
		c.Label[u] = id
		c.Sizes[id]++
	}
	return c
}

// Count returns the number of components.
func (c Components) Count() int { return len(c.Sizes) }

// Largest returns the id and size of the largest component; ties go to the
// lower id. ok is false when there are no components.
func (c Components) Largest() (id, size uint32, ok bool) {
	for i, s := range c.Sizes {
		if s > size {
			id, size, ok = uint32(i), s, true
		}
	}
	return id, size, ok
}

// Connected reports whether nodes u and v share a component.
func (c Components) Connected(u, v uint32) bool {
	return c.Label[u] == c.Label[v]
}

// Members returns the nodes of component id in ascending order.
func (c Components) Members(id uint32) []uint32 {
	if int(id) >= len(c.Sizes) {
		return nil
	}
	nodes := make([]uint32, 0, c.Sizes[id])
	for u, l := range c.Label {
		if l == id {
			nodes = append(nodes, uint32(u))
		}
	}
	return nodes
}

// ComponentCount returns the number of connected components, isolated
// nodes included.
func ComponentCount(g *Graph) int {
	return FindComponents(g).Count()
}

// LargestComponent returns the node ids of the largest connected component,
// in ascending order.
func LargestComponent(g *Graph) []uint32 {
	c := FindComponents(g)
	id, _, ok := c.Largest()
	if !ok {
		return nil
	}
	return c.Members(id)
}
