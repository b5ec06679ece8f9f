package kv

import (
	"github.com/DataDog/zstd"
	"github.com/kelindar/binary"
)

// storedRoute is the persisted shape of a route candidate. geometry is
// kept as an encoded polyline plus a parallel elevation slice, uuids as
// strings, so the binary codec only ever sees flat field types.
type storedRoute struct {
	ID           string
	AnchorID     int32
	DestID       int32
	Shape        int32
	NodeSequence []int32

	DistKm         float64
	GainM          float64
	OverlapPct     float64
	SingletrackPct float64
	PavedPct       float64
	TrailCount     int32
	Score          float64

	Polyline   string
	Elevations []float64
}

type storedVertex struct {
	ID         int32
	Lat        float64
	Lon        float64
	Ele        float64
	OnBoundary bool
}

type storedEdge struct {
	ID           int32
	FromVertexID int32
	ToVertexID   int32
	TrailID   string
	Name      string
	TrailType string
	Source    string

	// geometry stored as raw parallel slices. the polyline codec
	// quantizes to 1e-5 degrees, which would break the exact
	// edge-end/vertex coordinate equality on reload.
	Lats []float64
	Lons []float64
	Eles []float64

	LengthKm     float64
	GainM        float64
	LossM        float64
	SelfLoop     bool
}

func encodeRoutes(routes []storedRoute) ([]byte, error) {
	encoded, err := binary.Marshal(routes)
	if err != nil {
		return nil, err
	}
	return compress(encoded)
}

func decodeRoutes(bb []byte) ([]storedRoute, error) {
	raw, err := decompress(bb)
	if err != nil {
		return nil, err
	}
	var routes []storedRoute
	if err := binary.Unmarshal(raw, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

func encodeVertices(vertices []storedVertex) ([]byte, error) {
	encoded, err := binary.Marshal(vertices)
	if err != nil {
		return nil, err
	}
	return compress(encoded)
}

func decodeVertices(bb []byte) ([]storedVertex, error) {
	raw, err := decompress(bb)
	if err != nil {
		return nil, err
	}
	var vertices []storedVertex
	if err := binary.Unmarshal(raw, &vertices); err != nil {
		return nil, err
	}
	return vertices, nil
}

func encodeEdges(edges []storedEdge) ([]byte, error) {
	encoded, err := binary.Marshal(edges)
	if err != nil {
		return nil, err
	}
	return compress(encoded)
}

func decodeEdges(bb []byte) ([]storedEdge, error) {
	raw, err := decompress(bb)
	if err != nil {
		return nil, err
	}
	var edges []storedEdge
	if err := binary.Unmarshal(raw, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

func compress(bb []byte) ([]byte, error) {
	var bbCompressed []byte
	bbCompressed, err := zstd.Compress(bbCompressed, bb)
	if err != nil {
		return []byte{}, err
	}
	return bbCompressed, nil
}

func decompress(bbCompressed []byte) ([]byte, error) {
	var bb []byte
	bb, err := zstd.Decompress(bb, bbCompressed)
	if err != nil {
		return []byte{}, err
	}
	return bb, nil
}
