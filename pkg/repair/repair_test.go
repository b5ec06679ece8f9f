package repair

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscenic/trailnet/pkg/config"
	"github.com/openscenic/trailnet/pkg/datastructure"
	"github.com/openscenic/trailnet/pkg/geo"
)

func addEdge(g *datastructure.Graph, from, to int32, name, trailType string) *datastructure.Edge {
	fromV := g.Vertex(from)
	toV := g.Vertex(to)
	geometry := []datastructure.Coordinate{fromV.Coord, toV.Coord}
	return g.AddEdge(datastructure.Edge{
		FromVertexID: from,
		ToVertexID:   to,
		TrailID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)),
		Name:         name,
		TrailType:    trailType,
		Geometry:     geometry,
		LengthKm:     geo.LineLengthKm(geometry),
	})
}

func TestOrphanSnappedToNearbyConnectedVertex(t *testing.T) {
	g := datastructure.NewGraph("test")
	orphan := g.AddVertex(datastructure.NewCoordinate(1, 1))
	hub := g.AddVertex(datastructure.NewCoordinate(1, 1.00001))
	a := g.AddVertex(datastructure.NewCoordinate(1.001, 1))
	b := g.AddVertex(datastructure.NewCoordinate(1, 1.001))
	addEdge(g, hub.ID, a.ID, "North", datastructure.TrailTypeSingletrack)
	addEdge(g, hub.ID, b.ID, "East", datastructure.TrailTypeSingletrack)

	report, err := New(config.NewConfig()).Repair(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Degree0Snapped)
	assert.Nil(t, g.Vertex(orphan.ID))
	assert.Equal(t, int32(2), g.Vertex(hub.ID).Degree)
	assert.Equal(t, 3, g.VertexCount())
}

func TestOrphanSplicedIntoNearbyEdge(t *testing.T) {
	g := datastructure.NewGraph("test")
	a := g.AddVertex(datastructure.NewCoordinate(0, 0))
	b := g.AddVertex(datastructure.NewCoordinate(0.002, 0))
	// 5m off the edge midpoint, outside snap range of either endpoint
	orphan := g.AddVertex(datastructure.NewCoordinate(0.001, 0.000045))
	edge := addEdge(g, a.ID, b.ID, "Ridge", datastructure.TrailTypeSingletrack)

	report, err := New(config.NewConfig()).Repair(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Degree0Projected)
	assert.Nil(t, g.Edge(edge.ID))
	require.NotNil(t, g.Vertex(orphan.ID))
	assert.Equal(t, int32(2), g.Vertex(orphan.ID).Degree)
	assert.Equal(t, 2, g.EdgeCount())

	// spliced halves terminate exactly at the spliced vertex
	for _, e := range g.LiveEdges() {
		assert.True(t, e.Geometry[0].SamePosition(g.Vertex(e.FromVertexID).Coord))
		assert.True(t, e.Geometry[len(e.Geometry)-1].SamePosition(g.Vertex(e.ToVertexID).Coord))
	}
}

func TestUnresolvableOrphanFlaggedNotDeleted(t *testing.T) {
	g := datastructure.NewGraph("test")
	a := g.AddVertex(datastructure.NewCoordinate(0, 0))
	b := g.AddVertex(datastructure.NewCoordinate(0.002, 0))
	addEdge(g, a.ID, b.ID, "Ridge", datastructure.TrailTypeSingletrack)
	// hundreds of meters from anything
	orphan := g.AddVertex(datastructure.NewCoordinate(0.01, 0.01))

	report, err := New(config.NewConfig()).Repair(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Degree0Flagged)
	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, orphan.ID, report.Unresolved[0].VertexID)
	assert.NotNil(t, g.Vertex(orphan.ID))
}

func TestShortDeadEndConnectorPruned(t *testing.T) {
	g := datastructure.NewGraph("test")
	hub := g.AddVertex(datastructure.NewCoordinate(0, 0))
	stub := g.AddVertex(datastructure.NewCoordinate(0.000072, 0)) // 8m away
	a := g.AddVertex(datastructure.NewCoordinate(0.002, 0))
	b := g.AddVertex(datastructure.NewCoordinate(0, 0.002))
	addEdge(g, hub.ID, stub.ID, "Connector-7", datastructure.TrailTypeConnector)
	addEdge(g, hub.ID, a.ID, "Ridge", datastructure.TrailTypeSingletrack)
	addEdge(g, hub.ID, b.ID, "Valley", datastructure.TrailTypeSingletrack)

	report, err := New(config.NewConfig()).Repair(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 1, report.PrunedConnectors)
	assert.Equal(t, 1, report.PrunedVertices)
	assert.Nil(t, g.Vertex(stub.ID))
	assert.Equal(t, int32(2), g.Vertex(hub.ID).Degree)
}

func TestFreestandingConnectorPairNotPruned(t *testing.T) {
	g := datastructure.NewGraph("test")
	// freestanding connector pair, both endpoints degree 1
	a := g.AddVertex(datastructure.NewCoordinate(0, 0))
	b := g.AddVertex(datastructure.NewCoordinate(0.00005, 0))
	addEdge(g, a.ID, b.ID, "Connector-1", datastructure.TrailTypeConnector)

	report, err := New(config.NewConfig()).Repair(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 0, report.PrunedConnectors)
	assert.Equal(t, 1, g.EdgeCount())
}

func TestBypassEdgeRemovedWhenPathThroughVertexExists(t *testing.T) {
	g := datastructure.NewGraph("test")
	a := g.AddVertex(datastructure.NewCoordinate(0, 0))
	mid := g.AddVertex(datastructure.NewCoordinate(0.001, 0))
	c := g.AddVertex(datastructure.NewCoordinate(0.002, 0))
	addEdge(g, a.ID, mid.ID, "Lower", datastructure.TrailTypeSingletrack)
	addEdge(g, mid.ID, c.ID, "Upper", datastructure.TrailTypeSingletrack)
	// straight edge a->c passes exactly through mid
	bypass := addEdge(g, a.ID, c.ID, "Shortcut", datastructure.TrailTypeSingletrack)

	report, err := New(config.NewConfig()).Repair(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 1, report.BypassesRemoved)
	assert.Nil(t, g.Edge(bypass.ID))
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, int32(2), g.Vertex(mid.ID).Degree)
}

func TestBypassKeptWhenRemovalWouldDisconnect(t *testing.T) {
	g := datastructure.NewGraph("test")
	a := g.AddVertex(datastructure.NewCoordinate(0, 0))
	mid := g.AddVertex(datastructure.NewCoordinate(0.001, 0))
	c := g.AddVertex(datastructure.NewCoordinate(0.002, 0))
	d := g.AddVertex(datastructure.NewCoordinate(0.001, 0.002))
	// mid has its own edge but no independent path a->mid->c exists
	addEdge(g, mid.ID, d.ID, "Spur", datastructure.TrailTypeSingletrack)
	bypass := addEdge(g, a.ID, c.ID, "Shortcut", datastructure.TrailTypeSingletrack)

	report, err := New(config.NewConfig()).Repair(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 0, report.BypassesRemoved)
	assert.Equal(t, 1, report.BypassesKept)
	assert.NotNil(t, g.Edge(bypass.ID))
}

func TestEdgeGeometryWeldedToVertexCoordinates(t *testing.T) {
	g := datastructure.NewGraph("test")
	a := g.AddVertex(datastructure.NewCoordinate(0, 0))
	b := g.AddVertex(datastructure.NewCoordinate(0.002, 0))
	// geometry ends a few centimeters off the vertex coordinates
	g.AddEdge(datastructure.Edge{
		FromVertexID: a.ID,
		ToVertexID:   b.ID,
		TrailID:      uuid.New(),
		Name:         "Connector-2",
		TrailType:    datastructure.TrailTypeConnector,
		Geometry: []datastructure.Coordinate{
			datastructure.NewCoordinate(0.0000002, 0),
			datastructure.NewCoordinate(0.0019998, 0),
		},
		LengthKm: 0.2,
	})

	report, err := New(config.NewConfig()).Repair(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 1, report.WeldedEdges)
	e := g.LiveEdges()[0]
	assert.True(t, e.Geometry[0].SamePosition(g.Vertex(e.FromVertexID).Coord))
	assert.True(t, e.Geometry[1].SamePosition(g.Vertex(e.ToVertexID).Coord))
	assert.InDelta(t, geo.LineLengthKm(e.Geometry), e.LengthKm, 1e-9)
}

func TestNearbyVerticesWeldedLowestIDWins(t *testing.T) {
	g := datastructure.NewGraph("test")
	a := g.AddVertex(datastructure.NewCoordinate(0, 0))
	b := g.AddVertex(datastructure.NewCoordinate(0.002, 0))
	// half a meter from b, inside the weld tolerance
	c := g.AddVertex(datastructure.NewCoordinate(0.0020045, 0))
	d := g.AddVertex(datastructure.NewCoordinate(0.004, 0))
	addEdge(g, a.ID, b.ID, "West", datastructure.TrailTypeSingletrack)
	addEdge(g, c.ID, d.ID, "East", datastructure.TrailTypeSingletrack)

	report, err := New(config.NewConfig()).Repair(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 1, report.WeldedVertices)
	assert.Nil(t, g.Vertex(c.ID))
	require.NotNil(t, g.Vertex(b.ID))
	assert.Equal(t, int32(2), g.Vertex(b.ID).Degree)
	// remapped edge got re-welded onto the surviving vertex
	for _, e := range g.LiveEdges() {
		assert.True(t, e.Geometry[0].SamePosition(g.Vertex(e.FromVertexID).Coord))
		assert.True(t, e.Geometry[len(e.Geometry)-1].SamePosition(g.Vertex(e.ToVertexID).Coord))
	}
}

func TestDisjointComponentsStitched(t *testing.T) {
	g := datastructure.NewGraph("test")
	a := g.AddVertex(datastructure.NewCoordinate(0, 0))
	b := g.AddVertex(datastructure.NewCoordinate(0.002, 0))
	c := g.AddVertex(datastructure.NewCoordinate(0.005, 0))
	d := g.AddVertex(datastructure.NewCoordinate(0.007, 0))
	addEdge(g, a.ID, b.ID, "West", datastructure.TrailTypeSingletrack)
	addEdge(g, c.ID, d.ID, "East", datastructure.TrailTypeSingletrack)

	report, err := New(config.NewConfig()).Repair(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Components)
	assert.Equal(t, 1, report.VirtualConnectors)

	var virtual *datastructure.Edge
	for _, e := range g.LiveEdges() {
		if e.Source == datastructure.SourceStitch {
			virtual = e
		}
	}
	require.NotNil(t, virtual)
	// nearest pair across the gap is b -> c
	ends := []int32{virtual.FromVertexID, virtual.ToVertexID}
	assert.ElementsMatch(t, []int32{b.ID, c.ID}, ends)
	assert.InDelta(t,
		geo.CalculateHaversineDistance(g.Vertex(b.ID).Coord.Lat, g.Vertex(b.ID).Coord.Lon,
			g.Vertex(c.ID).Coord.Lat, g.Vertex(c.ID).Coord.Lon),
		virtual.LengthKm, 1e-9)
}

func TestRepairIsIdempotent(t *testing.T) {
	g := datastructure.NewGraph("test")
	a := g.AddVertex(datastructure.NewCoordinate(0, 0))
	mid := g.AddVertex(datastructure.NewCoordinate(0.001, 0))
	c := g.AddVertex(datastructure.NewCoordinate(0.002, 0))
	far := g.AddVertex(datastructure.NewCoordinate(0.01, 0))
	farther := g.AddVertex(datastructure.NewCoordinate(0.012, 0))
	g.AddVertex(datastructure.NewCoordinate(0.001, 0.0000045)) // orphan near mid
	addEdge(g, a.ID, mid.ID, "Lower", datastructure.TrailTypeSingletrack)
	addEdge(g, mid.ID, c.ID, "Upper", datastructure.TrailTypeSingletrack)
	addEdge(g, a.ID, c.ID, "Shortcut", datastructure.TrailTypeSingletrack)
	addEdge(g, far.ID, farther.ID, "Island", datastructure.TrailTypeSingletrack)

	r := New(config.NewConfig())
	first, err := r.Repair(context.Background(), g)
	require.NoError(t, err)
	assert.Greater(t, first.Changes(), 0)

	second, err := r.Repair(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Changes())

	// degree matches the live incident edge count for every vertex
	counts := make(map[int32]int32)
	for _, e := range g.LiveEdges() {
		counts[e.FromVertexID]++
		if !e.SelfLoop {
			counts[e.ToVertexID]++
		}
	}
	for _, v := range g.LiveVertices() {
		assert.Equal(t, counts[v.ID], v.Degree)
		assert.GreaterOrEqual(t, v.Degree, int32(1))
	}
}
