package datastructure

import (
	"github.com/google/uuid"
)

// trail classification from osm highway / surface / sac_scale tags.
const (
	TrailTypeSingletrack = "singletrack"
	TrailTypeFootpath    = "footpath"
	TrailTypeDoubletrack = "doubletrack"
	TrailTypeConnector   = "connector"
	TrailTypePaved       = "paved"
)

// provenance tags. stitching output is marked so later cleanup passes
// never prune a deliberately added virtual connector.
const (
	SourceOSM    = "osm"
	SourceStitch = "stitch"
)

type Trail struct {
	ID   uuid.UUID
	Name string

	TrailType  string
	Surface    string
	Difficulty string

	// ordered (lat, lon, ele) vertices
	Geometry []Coordinate

	LengthKm float64
	GainM    float64
	LossM    float64
	MinEle   float64
	MaxEle   float64
	AvgEle   float64

	Bound Bound

	// provenance tag for the source system ("osm", "cpw", "virtual", ...)
	Source string

	// uuid.Nil when the trail was never split. split products keep
	// pointing at their pre-split parent.
	OriginalTrailID uuid.UUID

	// h3 cell grouping key for batched region processing
	ChunkKey string

	// set by the normalizer when every self-intersection strategy failed
	// and the geometry was kept unsplit
	FlaggedNotSimple bool
}

func NewTrail(id uuid.UUID, name, trailType string, geometry []Coordinate) Trail {
	return Trail{
		ID:        id,
		Name:      name,
		TrailType: trailType,
		Geometry:  geometry,
		Bound:     BoundFromLine(geometry),
	}
}

func (t *Trail) IsConnector() bool {
	return t.TrailType == TrailTypeConnector
}

// ParentID is the uuid split products carry forward as OriginalTrailID.
func (t *Trail) ParentID() uuid.UUID {
	if t.OriginalTrailID != uuid.Nil {
		return t.OriginalTrailID
	}
	return t.ID
}

func (t *Trail) StartPoint() Coordinate {
	return t.Geometry[0]
}

func (t *Trail) EndPoint() Coordinate {
	return t.Geometry[len(t.Geometry)-1]
}
