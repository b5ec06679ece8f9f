package datastructure

import (
	"github.com/google/uuid"
	"github.com/twpayne/go-polyline"
)

type RouteShape int

const (
	ShapeLoop RouteShape = iota
	ShapeOutAndBack
	ShapeLollipop
	ShapePointToPoint
)

func (s RouteShape) String() string {
	switch s {
	case ShapeLoop:
		return "loop"
	case ShapeOutAndBack:
		return "out-and-back"
	case ShapeLollipop:
		return "lollipop"
	default:
		return "point-to-point"
	}
}

// RouteCandidate is an ephemeral search result. never mutated after
// creation; Score is set by the scorer before the candidate leaves the
// search engine.
type RouteCandidate struct {
	ID       uuid.UUID
	AnchorID int32
	DestID   int32
	Shape    RouteShape

	OutboundEdgeIDs []int32
	ReturnEdgeIDs   []int32
	NodeSequence    []int32

	DistKm     float64
	GainM      float64
	OverlapPct float64

	// fraction of distance per trail classification, for scoring
	SingletrackPct float64
	PavedPct       float64
	// distinct trail names touched
	TrailCount int

	Geometry []Coordinate

	Score float64
}

// RenderPath encodes a path as a google encoded polyline.
func RenderPath(path []Coordinate) string {
	coords := make([][]float64, 0, len(path))
	for _, p := range path {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}
