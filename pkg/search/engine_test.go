package search

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscenic/trailnet/pkg/config"
	"github.com/openscenic/trailnet/pkg/datastructure"
)

func addEdge(g *datastructure.Graph, from, to int32, name string, lengthKm float64) *datastructure.Edge {
	return g.AddEdge(datastructure.Edge{
		FromVertexID: from,
		ToVertexID:   to,
		TrailID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)),
		Name:         name,
		TrailType:    datastructure.TrailTypeSingletrack,
		Geometry: []datastructure.Coordinate{
			g.Vertex(from).Coord, g.Vertex(to).Coord,
		},
		LengthKm: lengthKm,
	})
}

// lollipopGraph is a 1km stick from the anchor to a 3km triangle loop.
//
//	0 --- 1 --- 2
//	       \   /
//	        \ /
//	         3
func lollipopGraph() *datastructure.Graph {
	g := datastructure.NewGraph("test")
	g.AddVertex(datastructure.NewCoordinate(0, 0))
	g.AddVertex(datastructure.NewCoordinate(0.009, 0))
	g.AddVertex(datastructure.NewCoordinate(0.018, 0))
	g.AddVertex(datastructure.NewCoordinate(0.013, 0.008))
	addEdge(g, 0, 1, "Stick", 1.0)
	addEdge(g, 1, 2, "North Rim", 1.0)
	addEdge(g, 2, 3, "East Slope", 1.0)
	addEdge(g, 3, 1, "West Slope", 1.0)
	g.RecomputeDegrees()
	return g
}

func TestDijkstraShortestPath(t *testing.T) {
	g := lollipopGraph()
	p, ok := shortestPath(g, 0, 3, 10000, nil, nil)
	require.True(t, ok)
	assert.Equal(t, []int32{0, 1, 3}, p.nodes)
	assert.InDelta(t, 2.0, p.distKm, 1e-9)
}

func TestDijkstraSkipsSelfLoops(t *testing.T) {
	g := lollipopGraph()
	g.AddEdge(datastructure.Edge{
		FromVertexID: 1, ToVertexID: 1, Name: "Pond Loop",
		TrailType: datastructure.TrailTypeFootpath,
		Geometry:  []datastructure.Coordinate{g.Vertex(1).Coord, g.Vertex(1).Coord},
		LengthKm:  0.2,
	})
	g.RecomputeDegrees()

	p, ok := shortestPath(g, 0, 2, 10000, nil, nil)
	require.True(t, ok)
	assert.Equal(t, []int32{0, 1, 2}, p.nodes)
	assert.InDelta(t, 2.0, p.distKm, 1e-9)
}

func TestKShortestPathsOrderedAndLoopless(t *testing.T) {
	g := lollipopGraph()
	paths := kShortestPaths(g, 2, 0, 4, 10000)
	require.Len(t, paths, 2)

	assert.Equal(t, []int32{2, 1, 0}, paths[0].nodes)
	assert.InDelta(t, 2.0, paths[0].distKm, 1e-9)
	assert.Equal(t, []int32{2, 3, 1, 0}, paths[1].nodes)
	assert.InDelta(t, 3.0, paths[1].distKm, 1e-9)
}

func TestSearchPrefersLowOverlapReturn(t *testing.T) {
	g := lollipopGraph()
	engine := New(config.NewConfig(), NewHeuristicScorer())

	result, err := engine.Search(context.Background(), g, Query{
		TargetDistKm: 5.0,
		Anchors:      []int32{0},
		Seed:         "test-seed",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Candidates)

	for _, c := range result.Candidates {
		assert.Equal(t, datastructure.ShapeLollipop, c.Shape)
		assert.InDelta(t, 5.0, c.DistKm, 1e-9)
		// the direct reverse of the outbound path has full overlap,
		// the selected return shares only the stick
		assert.InDelta(t, 1.0/3.0, c.OverlapPct, 1e-9)
		// closed route, starts and ends at the anchor
		assert.Equal(t, c.AnchorID, c.NodeSequence[0])
		assert.Equal(t, c.AnchorID, c.NodeSequence[len(c.NodeSequence)-1])
	}
}

func TestSearchDeterministicAcrossRuns(t *testing.T) {
	engine := New(config.NewConfig(), NewHeuristicScorer())
	query := Query{TargetDistKm: 5.0, Anchors: []int32{0}, Seed: "seed-a"}

	first, err := engine.Search(context.Background(), lollipopGraph(), query)
	require.NoError(t, err)
	second, err := engine.Search(context.Background(), lollipopGraph(), query)
	require.NoError(t, err)

	require.Equal(t, len(first.Candidates), len(second.Candidates))
	for i := range first.Candidates {
		assert.Equal(t, first.Candidates[i].ID, second.Candidates[i].ID)
		assert.Equal(t, first.Candidates[i].NodeSequence, second.Candidates[i].NodeSequence)
	}

	// a different seed changes ids but not the routes themselves
	query.Seed = "seed-b"
	third, err := engine.Search(context.Background(), lollipopGraph(), query)
	require.NoError(t, err)
	require.Equal(t, len(first.Candidates), len(third.Candidates))
	for i := range first.Candidates {
		assert.NotEqual(t, first.Candidates[i].ID, third.Candidates[i].ID)
		assert.Equal(t, first.Candidates[i].NodeSequence, third.Candidates[i].NodeSequence)
	}
}

func TestSearchNoRouteIsAReasonNotAnError(t *testing.T) {
	engine := New(config.NewConfig(), NewHeuristicScorer())

	result, err := engine.Search(context.Background(), datastructure.NewGraph("empty"), Query{TargetDistKm: 5})
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.NotEmpty(t, result.Reason)

	// reachable graph, but nothing near a 100km target
	result, err = engine.Search(context.Background(), lollipopGraph(), Query{TargetDistKm: 100, Anchors: []int32{0}})
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.NotEmpty(t, result.Reason)
}

func TestSearchRejectsNonPositiveTarget(t *testing.T) {
	engine := New(config.NewConfig(), NewHeuristicScorer())
	_, err := engine.Search(context.Background(), lollipopGraph(), Query{TargetDistKm: 0})
	assert.Error(t, err)
}

func TestBoundAroundCircumscribesRadius(t *testing.T) {
	center := datastructure.NewCoordinate(40.0, -105.0)
	b := boundAround(center, 2.0)

	// ~1.9km north, inside the radius
	assert.True(t, b.Contains(datastructure.NewCoordinate(40.017, -105.0)))
	// ~1.9km east
	assert.True(t, b.Contains(datastructure.NewCoordinate(40.0, -104.9778)))
	// ~11km north, well outside
	assert.False(t, b.Contains(datastructure.NewCoordinate(40.1, -105.0)))
}

func TestAnchorSelectionDegreeRanked(t *testing.T) {
	g := lollipopGraph()
	// vertex 1 has degree 3, everything else less
	engine := New(config.NewConfig(), NewHeuristicScorer())
	anchors := engine.selectAnchors(g)
	assert.Equal(t, []int32{1}, anchors)
}

func TestDirectionalGainAccumulation(t *testing.T) {
	g := datastructure.NewGraph("test")
	g.AddVertex(datastructure.NewCoordinate(0, 0))
	g.AddVertex(datastructure.NewCoordinate(0.009, 0))
	g.AddVertex(datastructure.NewCoordinate(0.018, 0))
	g.AddVertex(datastructure.NewCoordinate(0.013, 0.008))
	up := addEdge(g, 0, 1, "Stick", 1.0)
	up.GainM, up.LossM = 100, 10
	north := addEdge(g, 1, 2, "North Rim", 1.0)
	north.GainM, north.LossM = 50, 0
	east := addEdge(g, 2, 3, "East Slope", 1.0)
	east.GainM, east.LossM = 0, 40
	west := addEdge(g, 3, 1, "West Slope", 1.0)
	west.GainM, west.LossM = 20, 30
	g.RecomputeDegrees()

	engine := New(config.NewConfig(), NewHeuristicScorer())
	result, err := engine.Search(context.Background(), g, Query{
		TargetDistKm: 5.0, Anchors: []int32{0},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Candidates)

	for _, c := range result.Candidates {
		if c.DestID != 2 {
			continue
		}
		// 0->1 (+100), 1->2 (+50), 2->3 (+0), 3->1 (+20), 1->0 (+10,
		// the stick's loss climbed in reverse)
		assert.InDelta(t, 180.0, c.GainM, 1e-9)
	}
}
