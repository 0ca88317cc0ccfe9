// Package layout positions the nodes of a directed graph in layers.
//
// The pipeline is the usual Sugiyama one: cycles are broken by reversing
// DFS back edges, nodes are ranked by longest path, edges spanning more
// than one rank are split with dummy nodes, layers are ordered by
// alternating barycenter sweeps and finally coordinates are assigned.
// Every step iterates in insertion order so the same input always yields
// the same output.
package layout

import (
	"fmt"
	"sort"
	"strings"
)

type Direction string

const (
	TopBottom Direction = "TB"
	BottomTop Direction = "BT"
	LeftRight Direction = "LR"
	RightLeft Direction = "RL"
)

// ParseDirection accepts TB, BT, LR or RL in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case TopBottom, BottomTop, LeftRight, RightLeft:
		return d, nil
	}
	return "", fmt.Errorf("layout: unknown direction %q", s)
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const (
	orderSweeps = 24
	coordPasses = 8
)

// Graph collects nodes and edges and lays them out with Run. The zero value
// lays out top to bottom with no spacing.
type Graph struct {
	Direction Direction
	NodeSep   float64
	RankSep   float64
	EdgeSep   float64
	MarginX   float64
	MarginY   float64

	nodes []graphNode
	index map[string]int
	edges [][2]string
}

type graphNode struct {
	id   string
	w, h float64
}

// AddNode registers a node of the given size. Adding an existing id resizes it.
func (g *Graph) AddNode(id string, w, h float64) {
	if g.index == nil {
		g.index = map[string]int{}
	}
	if i, ok := g.index[id]; ok {
		g.nodes[i].w, g.nodes[i].h = w, h
		return
	}
	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, graphNode{id: id, w: w, h: h})
}

// AddEdge adds a directed edge. Both ends must be added before Run.
func (g *Graph) AddEdge(from, to string) {
	g.edges = append(g.edges, [2]string{from, to})
}

type vertex struct {
	size  float64 // extent along the order axis
	depth float64 // extent along the rank axis
	dummy bool
	rank  int
	in    []int
	out   []int
}

// Run computes the center point of every node.
func (g *Graph) Run() (map[string]Point, error) {
	result := make(map[string]Point, len(g.nodes))
	n := len(g.nodes)
	if n == 0 {
		return result, nil
	}

	horizontal := g.Direction == LeftRight || g.Direction == RightLeft
	vs := make([]*vertex, n)
	for i, nd := range g.nodes {
		v := &vertex{size: nd.w, depth: nd.h}
		if horizontal {
			v.size, v.depth = nd.h, nd.w
		}
		vs[i] = v
	}

	var edges [][2]int
	for _, e := range g.edges {
		from, ok := g.index[e[0]]
		if !ok {
			return nil, fmt.Errorf("layout: edge references unknown node %q", e[0])
		}
		to, ok := g.index[e[1]]
		if !ok {
			return nil, fmt.Errorf("layout: edge references unknown node %q", e[1])
		}
		if from != to {
			edges = append(edges, [2]int{from, to})
		}
	}

	edges = breakCycles(n, edges)
	for i, r := range assignRanks(n, edges) {
		vs[i].rank = r
	}

	// Split long edges so every edge joins adjacent ranks.
	link := func(a, b int) {
		vs[a].out = append(vs[a].out, b)
		vs[b].in = append(vs[b].in, a)
	}
	for _, e := range edges {
		u, v := e[0], e[1]
		prev := u
		for r := vs[u].rank + 1; r < vs[v].rank; r++ {
			vs = append(vs, &vertex{dummy: true, rank: r})
			d := len(vs) - 1
			link(prev, d)
			prev = d
		}
		link(prev, v)
	}

	layers := initialOrder(vs)
	order(vs, layers)
	xs := g.orderCoords(vs, layers)
	ys, extent := g.rankCoords(vs, layers)

	for i, nd := range g.nodes {
		o, r := xs[i], ys[vs[i].rank]
		if g.Direction == BottomTop || g.Direction == RightLeft {
			r = extent - r
		}
		if horizontal {
			result[nd.id] = Point{X: r + g.MarginX, Y: o + g.MarginY}
		} else {
			result[nd.id] = Point{X: o + g.MarginX, Y: r + g.MarginY}
		}
	}
	return result, nil
}

// breakCycles reverses every edge that closes a cycle during a DFS that
// visits nodes and edges in insertion order.
func breakCycles(n int, edges [][2]int) [][2]int {
	out := make([][]int, n)
	for i, e := range edges {
		out[e[0]] = append(out[e[0]], i)
	}
	state := make([]int8, n)
	reversed := make([]bool, len(edges))

	var visit func(u int)
	visit = func(u int) {
		state[u] = 1
		for _, ei := range out[u] {
			v := edges[ei][1]
			switch state[v] {
			case 0:
				visit(v)
			case 1:
				reversed[ei] = true
			}
		}
		state[u] = 2
	}
	for u := 0; u < n; u++ {
		if state[u] == 0 {
			visit(u)
		}
	}

	res := make([][2]int, len(edges))
	for i, e := range edges {
		if reversed[i] {
			e[0], e[1] = e[1], e[0]
		}
		res[i] = e
	}
	return res
}

// assignRanks gives each node its longest-path rank, then pulls sources
// down next to their nearest successor.
func assignRanks(n int, edges [][2]int) []int {
	out := make([][]int, n)
	indeg := make([]int, n)
	for _, e := range edges {
		out[e[0]] = append(out[e[0]], e[1])
		indeg[e[1]]++
	}
	sources := make([]bool, n)
	remaining := append([]int(nil), indeg...)
	var queue []int
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			sources[i] = true
			queue = append(queue, i)
		}
	}

	rank := make([]int, n)
	var topo []int
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		topo = append(topo, u)
		for _, v := range out[u] {
			if rank[u]+1 > rank[v] {
				rank[v] = rank[u] + 1
			}
			remaining[v]--
			if remaining[v] == 0 {
				queue = append(queue, v)
			}
		}
	}

	for i := len(topo) - 1; i >= 0; i-- {
		u := topo[i]
		if !sources[u] || len(out[u]) == 0 {
			continue
		}
		lowest := rank[out[u][0]]
		for _, v := range out[u][1:] {
			if rank[v] < lowest {
				lowest = rank[v]
			}
		}
		rank[u] = lowest - 1
	}
	return rank
}

// initialOrder fills layers by a DFS over outgoing edges, starting from
// vertices sorted by rank.
func initialOrder(vs []*vertex) [][]int {
	maxRank := 0
	for _, v := range vs {
		if v.rank > maxRank {
			maxRank = v.rank
		}
	}
	layers := make([][]int, maxRank+1)
	starts := make([]int, len(vs))
	for i := range starts {
		starts[i] = i
	}
	sort.SliceStable(starts, func(a, b int) bool { return vs[starts[a]].rank < vs[starts[b]].rank })

	seen := make([]bool, len(vs))
	var visit func(u int)
	visit = func(u int) {
		seen[u] = true
		layers[vs[u].rank] = append(layers[vs[u].rank], u)
		for _, v := range vs[u].out {
			if !seen[v] {
				visit(v)
			}
		}
	}
	for _, u := range starts {
		if !seen[u] {
			visit(u)
		}
	}
	return layers
}

// order runs alternating barycenter sweeps and keeps the ordering with the
// fewest crossings.
func order(vs []*vertex, layers [][]int) {
	pos := make([]int, len(vs))
	index := func(layer []int) {
		for i, v := range layer {
			pos[v] = i
		}
	}
	for _, l := range layers {
		index(l)
	}

	best := cloneLayers(layers)
	bestCross := crossings(vs, layers, pos)
	for i := 0; i < orderSweeps && bestCross > 0; i++ {
		if i%2 == 0 {
			for r := 1; r < len(layers); r++ {
				reorder(layers[r], pos, func(v int) []int { return vs[v].in })
				index(layers[r])
			}
		} else {
			for r := len(layers) - 2; r >= 0; r-- {
				reorder(layers[r], pos, func(v int) []int { return vs[v].out })
				index(layers[r])
			}
		}
		if c := crossings(vs, layers, pos); c < bestCross {
			best, bestCross = cloneLayers(layers), c
		}
	}
	for r := range layers {
		copy(layers[r], best[r])
	}
}

// reorder sorts the vertices that have neighbours by barycenter; vertices
// without neighbours keep their slot.
func reorder(layer []int, pos []int, neighbours func(int) []int) {
	type entry struct {
		v    int
		bary float64
	}
	var slots []int
	var movable []entry
	for i, v := range layer {
		ns := neighbours(v)
		if len(ns) == 0 {
			continue
		}
		sum := 0
		for _, u := range ns {
			sum += pos[u]
		}
		slots = append(slots, i)
		movable = append(movable, entry{v: v, bary: float64(sum) / float64(len(ns))})
	}
	sort.SliceStable(movable, func(a, b int) bool { return movable[a].bary < movable[b].bary })
	for k, i := range slots {
		layer[i] = movable[k].v
	}
}

func crossings(vs []*vertex, layers [][]int, pos []int) int {
	total := 0
	for r := 0; r+1 < len(layers); r++ {
		var pairs [][2]int
		for _, u := range layers[r] {
			for _, v := range vs[u].out {
				pairs = append(pairs, [2]int{pos[u], pos[v]})
			}
		}
		for i := range pairs {
			for j := i + 1; j < len(pairs); j++ {
				a, b := pairs[i], pairs[j]
				if (a[0] < b[0] && a[1] > b[1]) || (a[0] > b[0] && a[1] < b[1]) {
					total++
				}
			}
		}
	}
	return total
}

func cloneLayers(layers [][]int) [][]int {
	out := make([][]int, len(layers))
	for i, l := range layers {
		out[i] = append([]int(nil), l...)
	}
	return out
}

func (g *Graph) gap(a, b *vertex) float64 {
	sep := g.NodeSep
	if a.dummy || b.dummy {
		sep = g.EdgeSep
	}
	return a.size/2 + sep + b.size/2
}

// orderCoords places vertices along the order axis. Each pass pulls every
// vertex toward the median of its neighbours, then resolves overlaps by
// averaging a left-packed and a right-packed placement.
func (g *Graph) orderCoords(vs []*vertex, layers [][]int) []float64 {
	xs := make([]float64, len(vs))
	for _, l := range layers {
		x := 0.0
		for i, v := range l {
			if i > 0 {
				x += g.gap(vs[l[i-1]], vs[v])
			}
			xs[v] = x
		}
		for _, v := range l {
			xs[v] -= x / 2
		}
	}

	for pass := 0; pass < coordPasses; pass++ {
		down := pass%2 == 0
		for k := range layers {
			r := k
			if !down {
				r = len(layers) - 1 - k
			}
			l := layers[r]
			desired := make([]float64, len(l))
			for i, v := range l {
				ns := vs[v].in
				if !down {
					ns = vs[v].out
				}
				desired[i] = xs[v]
				if len(ns) > 0 {
					desired[i] = median(ns, xs)
				}
			}
			left := make([]float64, len(l))
			right := make([]float64, len(l))
			for i := range l {
				left[i] = desired[i]
				if i > 0 {
					left[i] = max(desired[i], left[i-1]+g.gap(vs[l[i-1]], vs[l[i]]))
				}
			}
			for i := len(l) - 1; i >= 0; i-- {
				right[i] = desired[i]
				if i < len(l)-1 {
					right[i] = min(desired[i], right[i+1]-g.gap(vs[l[i]], vs[l[i+1]]))
				}
			}
			for i, v := range l {
				xs[v] = (left[i] + right[i]) / 2
			}
		}
	}

	lo := 0.0
	for i, v := range vs {
		if e := xs[i] - v.size/2; i == 0 || e < lo {
			lo = e
		}
	}
	for i := range xs {
		xs[i] -= lo
	}
	return xs
}

func median(ns []int, xs []float64) float64 {
	vals := make([]float64, len(ns))
	for i, u := range ns {
		vals[i] = xs[u]
	}
	sort.Float64s(vals)
	m := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[m]
	}
	return (vals[m-1] + vals[m]) / 2
}

// rankCoords returns the center of each rank along the rank axis and the
// total extent of all ranks.
func (g *Graph) rankCoords(vs []*vertex, layers [][]int) ([]float64, float64) {
	centers := make([]float64, len(layers))
	offset := 0.0
	for r, l := range layers {
		thickness := 0.0
		for _, v := range l {
			thickness = max(thickness, vs[v].depth)
		}
		if r > 0 {
			offset += g.RankSep
		}
		centers[r] = offset + thickness/2
		offset += thickness
	}
	return centers, offset
}
