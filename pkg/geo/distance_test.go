package geo

import (
	"testing"

	"github.com/openscenic/trailnet/pkg/datastructure"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	cases := []struct {
		latOne, longOne, latTwo, longTwo float64
		expectedDist                     float64
	}{
		{
			latOne:       39.739235,
			longOne:      -104.990250,
			latTwo:       39.750610,
			longTwo:      -105.002205,
			expectedDist: 1.63,
		},
		{
			latOne:       38.846127,
			longOne:      -106.131596,
			latTwo:       38.840911,
			longTwo:      -106.110645,
			expectedDist: 1.9,
		},
		{
			latOne:       40.014986,
			longOne:      -105.270546,
			latTwo:       40.017557,
			longTwo:      -105.278199,
			expectedDist: 0.71,
		},
	}

	t.Run("success haversine distance", func(t *testing.T) {
		for _, c := range cases {
			dist := CalculateHaversineDistance(c.latOne, c.longOne, c.latTwo, c.longTwo)
			assert.InDelta(t, c.expectedDist, dist, 0.1)
		}
	})
}

func TestDestinationPoint(t *testing.T) {
	lat, lon := GetDestinationPoint(39.0, -105.0, 90, 1.0)

	assert.InDelta(t, 39.0, lat, 1e-4)
	dist := CalculateHaversineDistance(39.0, -105.0, lat, lon)
	assert.InDelta(t, 1.0, dist, 0.01)
}

func TestSegmentIntersection(t *testing.T) {
	a1 := datastructure.NewCoordinate(0, 0)
	a2 := datastructure.NewCoordinate(0, 0.01)
	b1 := datastructure.NewCoordinate(-0.005, 0.005)
	b2 := datastructure.NewCoordinate(0.005, 0.005)

	p, ok := SegmentIntersection(a1, a2, b1, b2)
	assert.True(t, ok)
	assert.InDelta(t, 0.0, p.Lat, 1e-9)
	assert.InDelta(t, 0.005, p.Lon, 1e-9)

	// parallel segments never cross
	_, ok = SegmentIntersection(a1, a2,
		datastructure.NewCoordinate(0.001, 0), datastructure.NewCoordinate(0.001, 0.01))
	assert.False(t, ok)
}

func TestSelfIntersections(t *testing.T) {
	// bowtie: crosses itself once in the middle
	bowtie := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(0.01, 0.01),
		datastructure.NewCoordinate(0, 0.01),
		datastructure.NewCoordinate(0.01, 0),
	}
	crossings := SelfIntersections(bowtie)
	assert.Len(t, crossings, 1)
	assert.False(t, IsSimple(bowtie))

	straight := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(0, 0.01),
		datastructure.NewCoordinate(0, 0.02),
	}
	assert.True(t, IsSimple(straight))
}

func TestClosestPositionOnLine(t *testing.T) {
	line := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(0, 0.01),
	}
	p := datastructure.NewCoordinate(0.001, 0.005)

	pos := ClosestPositionOnLine(line, p)
	assert.Equal(t, 0, pos.SegIdx)
	assert.InDelta(t, 0.5, pos.Fraction, 0.01)
	assert.InDelta(t, 0.0, pos.Point.Lat, 1e-6)
	assert.InDelta(t, 111.0, pos.DistM, 2.0)
}

func TestRamerDouglasPeucker(t *testing.T) {
	line := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(0.0000001, 0.005), // ~1cm off axis, dropped
		datastructure.NewCoordinate(0, 0.01),
	}
	simplified := RamerDouglasPeucker(line, 7.0)
	assert.Len(t, simplified, 2)
}
