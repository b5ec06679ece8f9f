package kv

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscenic/trailnet/pkg/datastructure"
)

func openTestDB(t *testing.T) *KVDB {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir()).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewKVDB(db)
}

func testGraph() *datastructure.Graph {
	g := datastructure.NewGraph("boulder")
	g.AddVertex(datastructure.NewCoordinate3(40.0150, -105.2705, 1650))
	g.AddVertex(datastructure.NewCoordinate3(40.0160, -105.2800, 1700))
	g.AddVertex(datastructure.NewCoordinate3(40.0170, -105.2705, 1820))
	g.AddEdge(datastructure.Edge{
		FromVertexID: 0, ToVertexID: 1,
		TrailID: uuid.NewSHA1(uuid.NameSpaceOID, []byte("mesa")),
		Name:    "Mesa Trail", TrailType: datastructure.TrailTypeSingletrack,
		Source: datastructure.SourceOSM,
		Geometry: []datastructure.Coordinate{
			g.Vertex(0).Coord,
			datastructure.NewCoordinate3(40.01551234, -105.27551234, 1675),
			g.Vertex(1).Coord,
		},
		LengthKm: 0.9, GainM: 52, LossM: 2,
	})
	g.AddEdge(datastructure.Edge{
		FromVertexID: 1, ToVertexID: 2,
		TrailID: uuid.NewSHA1(uuid.NameSpaceOID, []byte("skunk")),
		Name:    "Skunk Canyon", TrailType: datastructure.TrailTypeFootpath,
		Source: datastructure.SourceOSM,
		Geometry: []datastructure.Coordinate{
			g.Vertex(1).Coord, g.Vertex(2).Coord,
		},
		LengthKm: 0.8, GainM: 120, LossM: 0,
	})
	g.RecomputeDegrees()
	return g
}

func TestGraphSnapshotRoundTrip(t *testing.T) {
	db := openTestDB(t)
	g := testGraph()
	// a removed edge must stay gone after reload
	g.AddEdge(datastructure.Edge{FromVertexID: 0, ToVertexID: 2, TrailID: uuid.New(), Geometry: []datastructure.Coordinate{g.Vertex(0).Coord, g.Vertex(2).Coord}})
	g.RemoveEdge(2)
	g.RecomputeDegrees()

	require.NoError(t, db.SaveGraphSnapshot(context.Background(), g))

	loaded, err := db.LoadGraphSnapshot(context.Background(), "boulder")
	require.NoError(t, err)

	assert.Equal(t, g.VertexCount(), loaded.VertexCount())
	assert.Equal(t, g.EdgeCount(), loaded.EdgeCount())
	assert.Nil(t, loaded.Edge(2))

	for _, e := range loaded.LiveEdges() {
		original := g.Edge(e.ID)
		assert.Equal(t, original.TrailID, e.TrailID)
		assert.Equal(t, original.Name, e.Name)
		require.Len(t, e.Geometry, len(original.Geometry))
		// exact, not approximate: welded ends must survive persistence
		for i := range e.Geometry {
			assert.Equal(t, original.Geometry[i], e.Geometry[i])
		}
		assert.True(t, e.Geometry[0].SamePosition(loaded.Vertex(e.FromVertexID).Coord))
	}
	// degrees recomputed on load
	assert.Equal(t, g.Vertex(1).Degree, loaded.Vertex(1).Degree)
}

func TestSnapshotMissing(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadGraphSnapshot(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestRoutesRoundTripAndCellLookup(t *testing.T) {
	db := openTestDB(t)
	g := testGraph()

	route := datastructure.RouteCandidate{
		ID:           uuid.NewSHA1(uuid.NameSpaceOID, []byte("route-1")),
		AnchorID:     0,
		DestID:       2,
		Shape:        datastructure.ShapeLollipop,
		NodeSequence: []int32{0, 1, 2, 1, 0},
		DistKm:       3.4,
		GainM:        344,
		OverlapPct:   0.25,
		TrailCount:   2,
		Geometry: []datastructure.Coordinate{
			g.Vertex(0).Coord, g.Vertex(1).Coord, g.Vertex(2).Coord,
		},
		Score: 0.81,
	}
	require.NoError(t, db.SaveRoutes(context.Background(), g, []datastructure.RouteCandidate{route}))

	// lookup from the anchor's own position
	found, err := db.RoutesNear("boulder", 40.0150, -105.2705)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, route.ID, found[0].ID)
	assert.Equal(t, route.NodeSequence, found[0].NodeSequence)
	assert.Equal(t, route.Shape, found[0].Shape)
	assert.InDelta(t, route.DistKm, found[0].DistKm, 1e-9)
	assert.InDelta(t, route.Score, found[0].Score, 1e-9)
	require.Len(t, found[0].Geometry, 3)
	// route geometry is display-only polyline, 1e-5 degree precision
	assert.InDelta(t, route.Geometry[1].Lat, found[0].Geometry[1].Lat, 1e-4)
	// elevations ride along as a raw slice and come back exact
	for i := range route.Geometry {
		assert.Equal(t, route.Geometry[i].Ele, found[0].Geometry[i].Ele)
	}

	// re-saving the same id overwrites, not duplicates
	route.Score = 0.9
	require.NoError(t, db.SaveRoutes(context.Background(), g, []datastructure.RouteCandidate{route}))
	found, err = db.RoutesNear("boulder", 40.0150, -105.2705)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.InDelta(t, 0.9, found[0].Score, 1e-9)
}

func TestRoutesNearMiss(t *testing.T) {
	db := openTestDB(t)
	_, err := db.RoutesNear("boulder", -33.8, 151.2)
	assert.ErrorIs(t, err, ErrRoutesNotFound)
}
