package layout

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type box struct {
	id   string
	w, h float64
}

func build(dir Direction, boxes []box, edges [][2]string) *Graph {
	g := &Graph{Direction: dir, NodeSep: 80, RankSep: 150, EdgeSep: 10, MarginX: 50, MarginY: 50}
	for _, b := range boxes {
		g.AddNode(b.id, b.w, b.h)
	}
	for _, e := range edges {
		g.AddEdge(e[0], e[1])
	}
	return g
}

func assertNoOverlap(t *testing.T, boxes []box, pts map[string]Point) {
	t.Helper()
	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			a, b := boxes[i], boxes[j]
			pa, pb := pts[a.id], pts[b.id]
			overlapX := pa.X-a.w/2 < pb.X+b.w/2 && pb.X-b.w/2 < pa.X+a.w/2
			overlapY := pa.Y-a.h/2 < pb.Y+b.h/2 && pb.Y-b.h/2 < pa.Y+a.h/2
			assert.False(t, overlapX && overlapY, "%s overlaps %s", a.id, b.id)
		}
	}
}

func TestRunEmpty(t *testing.T) {
	pts, err := (&Graph{}).Run()
	require.NoError(t, err)
	assert.Empty(t, pts)
}

func TestRunSingleNodeUsesMargins(t *testing.T) {
	g := build(LeftRight, []box{{"a", 280, 124}}, nil)
	pts, err := g.Run()
	require.NoError(t, err)
	assert.Equal(t, Point{X: 50 + 140, Y: 50 + 62}, pts["a"])
}

func TestRunDirections(t *testing.T) {
	boxes := []box{{"a", 100, 40}, {"b", 100, 40}, {"c", 100, 40}}
	edges := [][2]string{{"a", "b"}, {"b", "c"}}

	tests := []struct {
		dir   Direction
		check func(a, b, c Point) bool
	}{
		{TopBottom, func(a, b, c Point) bool { return a.Y < b.Y && b.Y < c.Y }},
		{BottomTop, func(a, b, c Point) bool { return a.Y > b.Y && b.Y > c.Y }},
		{LeftRight, func(a, b, c Point) bool { return a.X < b.X && b.X < c.X }},
		{RightLeft, func(a, b, c Point) bool { return a.X > b.X && b.X > c.X }},
	}
	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			pts, err := build(tt.dir, boxes, edges).Run()
			require.NoError(t, err)
			assert.True(t, tt.check(pts["a"], pts["b"], pts["c"]), "%v", pts)
			assertNoOverlap(t, boxes, pts)
		})
	}
}

func TestRunRankSpacing(t *testing.T) {
	boxes := []box{{"a", 280, 100}, {"b", 280, 200}}
	pts, err := build(LeftRight, boxes, [][2]string{{"a", "b"}}).Run()
	require.NoError(t, err)

	gap := (pts["b"].X - 140) - (pts["a"].X + 140)
	assert.InDelta(t, 150, gap, 1e-9)
	assert.InDelta(t, pts["a"].Y, pts["b"].Y, 1e-9, "a chain stays aligned")
}

func TestRunDeterministic(t *testing.T) {
	var boxes []box
	var edges [][2]string
	for i := 0; i < 12; i++ {
		boxes = append(boxes, box{fmt.Sprintf("t%d", i), 280, float64(60 + 32*(i%5))})
	}
	for i := 1; i < 12; i++ {
		edges = append(edges, [2]string{fmt.Sprintf("t%d", i), fmt.Sprintf("t%d", (i*7)%i)})
	}
	edges = append(edges, [2]string{"t0", "t11"}, [2]string{"t3", "t9"})

	first, err := build(LeftRight, boxes, edges).Run()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := build(LeftRight, boxes, edges).Run()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assertNoOverlap(t, boxes, first)
}

func TestRunCyclesAndSelfLoops(t *testing.T) {
	boxes := []box{{"a", 100, 50}, {"b", 100, 50}, {"c", 100, 50}}
	edges := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}, {"b", "b"}}

	pts, err := build(TopBottom, boxes, edges).Run()
	require.NoError(t, err)
	require.Len(t, pts, 3)
	assertNoOverlap(t, boxes, pts)
}

func TestRunLongEdgesAndDisconnected(t *testing.T) {
	boxes := []box{{"a", 120, 60}, {"b", 120, 60}, {"c", 120, 60}, {"d", 120, 60}, {"lonely", 120, 60}}
	edges := [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}, {"d", "c"}}

	pts, err := build(TopBottom, boxes, edges).Run()
	require.NoError(t, err)
	require.Len(t, pts, 5)
	assertNoOverlap(t, boxes, pts)
	assert.Greater(t, pts["c"].Y, pts["b"].Y)
	assert.Greater(t, pts["c"].Y, pts["d"].Y, "source is pulled next to its successor")

	for _, b := range boxes {
		assert.GreaterOrEqual(t, pts[b.id].X-b.w/2, 50-1e-9)
		assert.GreaterOrEqual(t, pts[b.id].Y-b.h/2, 50-1e-9)
	}
}

func TestRunReducesCrossings(t *testing.T) {
	// a1->b2 and a2->b1 cross in insertion order.
	boxes := []box{{"a1", 50, 50}, {"a2", 50, 50}, {"b1", 50, 50}, {"b2", 50, 50}}
	edges := [][2]string{{"a1", "b2"}, {"a2", "b1"}}

	pts, err := build(TopBottom, boxes, edges).Run()
	require.NoError(t, err)
	aLeft := pts["a1"].X < pts["a2"].X
	bLeft := pts["b2"].X < pts["b1"].X
	assert.Equal(t, aLeft, bLeft, "edges should not cross: %v", pts)
}

func TestRunUnknownNode(t *testing.T) {
	g := build(TopBottom, []box{{"a", 1, 1}}, [][2]string{{"a", "ghost"}})
	_, err := g.Run()
	assert.ErrorContains(t, err, `unknown node "ghost"`)
}

func TestAddNodeResizes(t *testing.T) {
	g := &Graph{}
	g.AddNode("a", 10, 10)
	g.AddNode("a", 40, 20)
	pts, err := g.Run()
	require.NoError(t, err)
	assert.Equal(t, Point{X: 20, Y: 10}, pts["a"])
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(" lr ")
	require.NoError(t, err)
	assert.Equal(t, LeftRight, d)

	_, err = ParseDirection("diagonal")
	assert.Error(t, err)
}
