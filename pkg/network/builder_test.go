package network

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscenic/trailnet/pkg/config"
	"github.com/openscenic/trailnet/pkg/datastructure"
	"github.com/openscenic/trailnet/pkg/elevation"
	"github.com/openscenic/trailnet/pkg/geo"
	"github.com/openscenic/trailnet/pkg/splitter"
)

func line(coords ...[2]float64) []datastructure.Coordinate {
	out := make([]datastructure.Coordinate, 0, len(coords))
	for _, c := range coords {
		out = append(out, datastructure.NewCoordinate(c[0], c[1]))
	}
	return out
}

// two crossing trails must yield 4 segments, 5 vertices and a degree-4
// vertex at the crossing.
func TestCrossingTrailsProduceDegree4Vertex(t *testing.T) {
	cfg := config.NewConfig()
	elev := elevation.NewPlaneService(2500, 0, 0)

	trailA := datastructure.NewTrail(uuid.New(), "A", datastructure.TrailTypeSingletrack,
		line([2]float64{0, 0}, [2]float64{0, 0.010}))
	trailB := datastructure.NewTrail(uuid.New(), "B", datastructure.TrailTypeSingletrack,
		line([2]float64{-0.005, 0.005}, [2]float64{0.005, 0.005}))

	split, splitReport, err := splitter.New(cfg, elev).Split(context.Background(),
		[]datastructure.Trail{trailA, trailB})
	require.NoError(t, err)
	require.Len(t, split, 4)
	assert.Equal(t, 2, splitReport.CrossSplits)

	g, report, err := New(cfg).Build("test", split, datastructure.Bound{})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Vertices)
	assert.Equal(t, 4, report.Edges)

	degree4 := 0
	for _, v := range g.LiveVertices() {
		if v.Degree == 4 {
			degree4++
			assert.InDelta(t, 0.0, v.Coord.Lat, 1e-7)
			assert.InDelta(t, 0.005, v.Coord.Lon, 1e-7)
			assert.Equal(t, datastructure.ClassIntersection, v.Class)
		}
	}
	assert.Equal(t, 1, degree4)
}

func TestSegmentLengthsSumToOriginal(t *testing.T) {
	cfg := config.NewConfig()
	elev := elevation.NewPlaneService(2500, 0, 0)

	trailA := datastructure.NewTrail(uuid.New(), "A", datastructure.TrailTypeSingletrack,
		line([2]float64{0, 0}, [2]float64{0, 0.010}))
	trailB := datastructure.NewTrail(uuid.New(), "B", datastructure.TrailTypeSingletrack,
		line([2]float64{-0.005, 0.005}, [2]float64{0.005, 0.005}))
	originalLength := geo.LineLengthKm(trailA.Geometry) + geo.LineLengthKm(trailB.Geometry)

	split, _, err := splitter.New(cfg, elev).Split(context.Background(),
		[]datastructure.Trail{trailA, trailB})
	require.NoError(t, err)

	sum := 0.0
	for _, segment := range split {
		sum += segment.LengthKm
	}
	assert.InDelta(t, originalLength, sum, 1e-6)
}

func TestMicroLoopRejectedOrFlagged(t *testing.T) {
	cfg := config.NewConfig()

	// a 2km loop whose endpoints coincide: retained as a self-loop
	loop := datastructure.NewTrail(uuid.New(), "Lake Loop", datastructure.TrailTypeFootpath,
		line([2]float64{0, 0}, [2]float64{0.005, 0.005}, [2]float64{0.01, 0}, [2]float64{0, 0}))
	loop.LengthKm = 2.0

	g, report, err := New(cfg).Build("test", []datastructure.Trail{loop}, datastructure.Bound{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.SelfLoops)
	edges := g.LiveEdges()
	require.Len(t, edges, 1)
	assert.True(t, edges[0].SelfLoop)
	// self-loop counts once toward degree
	assert.Equal(t, int32(1), g.Vertex(edges[0].FromVertexID).Degree)

	// a 3m loop is rejected outright
	micro := datastructure.NewTrail(uuid.New(), "Micro", datastructure.TrailTypeFootpath,
		line([2]float64{0, 0}, [2]float64{0.00001, 0.00001}, [2]float64{0, 0}))
	micro.LengthKm = 0.003

	_, report, err = New(cfg).Build("test2", []datastructure.Trail{micro}, datastructure.Bound{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.RejectedLoops)
}

func TestEdgesWeldedToVertexCoordinates(t *testing.T) {
	cfg := config.NewConfig()

	// endpoints 0.5m apart cluster into one vertex; both edges must
	// terminate exactly at the representative coordinate
	a := datastructure.NewTrail(uuid.New(), "A", datastructure.TrailTypeSingletrack,
		line([2]float64{0, 0}, [2]float64{0, 0.01}))
	a.LengthKm = 1.1
	b := datastructure.NewTrail(uuid.New(), "B", datastructure.TrailTypeSingletrack,
		line([2]float64{0.000004, 0.01}, [2]float64{0.01, 0.01}))
	b.LengthKm = 1.1

	g, report, err := New(cfg).Build("test", []datastructure.Trail{a, b}, datastructure.Bound{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Vertices)
	assert.Equal(t, 1, report.ClusteredPoints)

	for _, e := range g.LiveEdges() {
		assert.True(t, e.Geometry[0].SamePosition(g.Vertex(e.FromVertexID).Coord))
		assert.True(t, e.Geometry[len(e.Geometry)-1].SamePosition(g.Vertex(e.ToVertexID).Coord))
	}
}
