// Package kv persists route candidates and graph snapshots in badger.
// candidates are bucketed by the h3 cell of their anchor vertex so a
// "routes near me" lookup is one point query plus an optional ring
// expansion.
package kv

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/twpayne/go-polyline"
	"github.com/uber/h3-go/v4"

	"github.com/openscenic/trailnet/pkg/datastructure"
)

var (
	ErrRoutesNotFound   = errors.New("routes not found")
	ErrSnapshotNotFound = errors.New("graph snapshot not found")
)

const (
	routeCellResolution = 8
	maxRingExpansion    = 3
)

type KVDB struct {
	db *badger.DB
}

func NewKVDB(db *badger.DB) *KVDB {
	return &KVDB{db}
}

// SaveRoutes writes a scored candidate batch, bucketed per anchor cell.
// candidates in the same cell are merged with whatever the bucket
// already holds, replacing entries with the same id.
func (k *KVDB) SaveRoutes(ctx context.Context, g *datastructure.Graph,
	candidates []datastructure.RouteCandidate) error {

	buckets := make(map[string][]storedRoute)
	for _, c := range candidates {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		anchor := g.Vertex(c.AnchorID)
		if anchor == nil {
			continue
		}
		cell := h3.LatLngToCell(h3.NewLatLng(anchor.Coord.Lat, anchor.Coord.Lon), routeCellResolution)
		key := routeBucketKey(g.Workspace, cell.String())
		buckets[key] = append(buckets[key], toStoredRoute(c))
	}

	batch := k.db.NewWriteBatch()
	defer batch.Cancel()

	for key, routes := range buckets {
		existing, err := k.bucketRoutes([]byte(key))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		merged := mergeRoutes(existing, routes)
		val, err := encodeRoutes(merged)
		if err != nil {
			return fmt.Errorf("encoding route bucket: %w", err)
		}
		if err := batch.Set([]byte(key), val); err != nil {
			return err
		}
	}
	if err := batch.Flush(); err != nil {
		log.Printf("kv: error saving routes: %v", err)
		return err
	}
	log.Printf("kv[%s]: saved %d routes across %d cells", g.Workspace, len(candidates), len(buckets))
	return nil
}

// RoutesNear returns stored candidates anchored around a coordinate,
// expanding the search ring by ring while the result is empty.
func (k *KVDB) RoutesNear(workspace string, lat, lon float64) ([]datastructure.RouteCandidate, error) {
	home := h3.LatLngToCell(h3.NewLatLng(lat, lon), routeCellResolution)

	routes := make([]storedRoute, 0)
	for lev := 0; lev <= maxRingExpansion && len(routes) == 0; lev++ {
		for _, cell := range h3.GridDisk(home, lev) {
			found, err := k.bucketRoutes([]byte(routeBucketKey(workspace, cell.String())))
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return nil, err
			}
			routes = append(routes, found...)
		}
	}
	if len(routes) == 0 {
		return nil, ErrRoutesNotFound
	}

	out := make([]datastructure.RouteCandidate, 0, len(routes))
	for _, r := range routes {
		candidate, err := fromStoredRoute(r)
		if err != nil {
			return nil, err
		}
		out = append(out, candidate)
	}
	return out, nil
}

// SaveGraphSnapshot persists the live vertex and edge tables of a
// workspace, overwriting any previous snapshot.
func (k *KVDB) SaveGraphSnapshot(ctx context.Context, g *datastructure.Graph) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	vertices := make([]storedVertex, 0, len(g.Vertices))
	for _, v := range g.LiveVertices() {
		vertices = append(vertices, storedVertex{
			ID: v.ID, Lat: v.Coord.Lat, Lon: v.Coord.Lon, Ele: v.Coord.Ele,
			OnBoundary: v.OnBoundary,
		})
	}
	edges := make([]storedEdge, 0, len(g.Edges))
	for _, e := range g.LiveEdges() {
		lats := make([]float64, 0, len(e.Geometry))
		lons := make([]float64, 0, len(e.Geometry))
		eles := make([]float64, 0, len(e.Geometry))
		for _, p := range e.Geometry {
			lats = append(lats, p.Lat)
			lons = append(lons, p.Lon)
			eles = append(eles, p.Ele)
		}
		edges = append(edges, storedEdge{
			ID: e.ID, FromVertexID: e.FromVertexID, ToVertexID: e.ToVertexID,
			TrailID: e.TrailID.String(), Name: e.Name, TrailType: e.TrailType,
			Source: e.Source, Lats: lats, Lons: lons, Eles: eles,
			LengthKm: e.LengthKm, GainM: e.GainM, LossM: e.LossM,
			SelfLoop: e.SelfLoop,
		})
	}

	vertexVal, err := encodeVertices(vertices)
	if err != nil {
		return fmt.Errorf("encoding vertex snapshot: %w", err)
	}
	edgeVal, err := encodeEdges(edges)
	if err != nil {
		return fmt.Errorf("encoding edge snapshot: %w", err)
	}

	err = k.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(vertexKey(g.Workspace)), vertexVal); err != nil {
			return err
		}
		return txn.Set([]byte(edgeKey(g.Workspace)), edgeVal)
	})
	if err != nil {
		return err
	}
	log.Printf("kv[%s]: snapshot saved, %d vertices / %d edges", g.Workspace, len(vertices), len(edges))
	return nil
}

// LoadGraphSnapshot rebuilds a graph from its persisted tables. id gaps
// left by removed vertices/edges are restored as tombstones so ids keep
// indexing the arrays directly.
func (k *KVDB) LoadGraphSnapshot(ctx context.Context, workspace string) (*datastructure.Graph, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	vertexVal, err := k.get([]byte(vertexKey(workspace)))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	edgeVal, err := k.get([]byte(edgeKey(workspace)))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}

	vertices, err := decodeVertices(vertexVal)
	if err != nil {
		return nil, fmt.Errorf("decoding vertex snapshot: %w", err)
	}
	edges, err := decodeEdges(edgeVal)
	if err != nil {
		return nil, fmt.Errorf("decoding edge snapshot: %w", err)
	}

	g := datastructure.NewGraph(workspace)

	maxVertexID := int32(-1)
	for _, v := range vertices {
		if v.ID > maxVertexID {
			maxVertexID = v.ID
		}
	}
	g.Vertices = make([]datastructure.Vertex, maxVertexID+1)
	for i := range g.Vertices {
		g.Vertices[i] = datastructure.Vertex{ID: int32(i), Removed: true}
	}
	for _, v := range vertices {
		g.Vertices[v.ID] = datastructure.Vertex{
			ID:         v.ID,
			Coord:      datastructure.NewCoordinate3(v.Lat, v.Lon, v.Ele),
			OnBoundary: v.OnBoundary,
		}
	}

	maxEdgeID := int32(-1)
	for _, e := range edges {
		if e.ID > maxEdgeID {
			maxEdgeID = e.ID
		}
	}
	g.Edges = make([]datastructure.Edge, maxEdgeID+1)
	for i := range g.Edges {
		g.Edges[i] = datastructure.Edge{ID: int32(i), Removed: true}
	}
	for _, e := range edges {
		trailID, err := uuid.Parse(e.TrailID)
		if err != nil {
			return nil, fmt.Errorf("edge %d: bad trail uuid %q: %w", e.ID, e.TrailID, err)
		}
		geometry := make([]datastructure.Coordinate, 0, len(e.Lats))
		for i := range e.Lats {
			geometry = append(geometry, datastructure.NewCoordinate3(e.Lats[i], e.Lons[i], e.Eles[i]))
		}
		g.Edges[e.ID] = datastructure.Edge{
			ID: e.ID, FromVertexID: e.FromVertexID, ToVertexID: e.ToVertexID,
			TrailID: trailID, Name: e.Name, TrailType: e.TrailType,
			Source: e.Source, Geometry: geometry, LengthKm: e.LengthKm,
			GainM: e.GainM, LossM: e.LossM, SelfLoop: e.SelfLoop,
		}
	}

	g.RecomputeDegrees()
	log.Printf("kv[%s]: snapshot loaded, %d vertices / %d edges", workspace, len(vertices), len(edges))
	return g, nil
}

func (k *KVDB) bucketRoutes(key []byte) ([]storedRoute, error) {
	val, err := k.get(key)
	if err != nil {
		return nil, err
	}
	return decodeRoutes(val)
}

func (k *KVDB) get(key []byte) ([]byte, error) {
	var val []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

func mergeRoutes(existing, incoming []storedRoute) []storedRoute {
	byID := make(map[string]int, len(existing))
	merged := append([]storedRoute(nil), existing...)
	for i, r := range merged {
		byID[r.ID] = i
	}
	for _, r := range incoming {
		if i, ok := byID[r.ID]; ok {
			merged[i] = r
			continue
		}
		byID[r.ID] = len(merged)
		merged = append(merged, r)
	}
	return merged
}

func toStoredRoute(c datastructure.RouteCandidate) storedRoute {
	return storedRoute{
		ID:           c.ID.String(),
		AnchorID:     c.AnchorID,
		DestID:       c.DestID,
		Shape:        int32(c.Shape),
		NodeSequence: c.NodeSequence,

		DistKm:         c.DistKm,
		GainM:          c.GainM,
		OverlapPct:     c.OverlapPct,
		SingletrackPct: c.SingletrackPct,
		PavedPct:       c.PavedPct,
		TrailCount:     int32(c.TrailCount),
		Score:          c.Score,

		Polyline:   datastructure.RenderPath(c.Geometry),
		Elevations: elevationsOf(c.Geometry),
	}
}

func elevationsOf(geometry []datastructure.Coordinate) []float64 {
	eles := make([]float64, 0, len(geometry))
	for _, p := range geometry {
		eles = append(eles, p.Ele)
	}
	return eles
}

func fromStoredRoute(r storedRoute) (datastructure.RouteCandidate, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return datastructure.RouteCandidate{}, fmt.Errorf("bad route uuid %q: %w", r.ID, err)
	}
	geometry, err := decodeGeometry(r.Polyline, r.Elevations)
	if err != nil {
		return datastructure.RouteCandidate{}, err
	}
	return datastructure.RouteCandidate{
		ID:           id,
		AnchorID:     r.AnchorID,
		DestID:       r.DestID,
		Shape:        datastructure.RouteShape(r.Shape),
		NodeSequence: r.NodeSequence,

		DistKm:         r.DistKm,
		GainM:          r.GainM,
		OverlapPct:     r.OverlapPct,
		SingletrackPct: r.SingletrackPct,
		PavedPct:       r.PavedPct,
		TrailCount:     int(r.TrailCount),
		Score:          r.Score,

		Geometry: geometry,
	}, nil
}

// decodeGeometry rebuilds 3d coordinates from an encoded polyline and an
// optional parallel elevation slice.
func decodeGeometry(encoded string, elevations []float64) ([]datastructure.Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding polyline: %w", err)
	}
	out := make([]datastructure.Coordinate, 0, len(coords))
	for i, c := range coords {
		point := datastructure.NewCoordinate(c[0], c[1])
		if i < len(elevations) {
			point.Ele = elevations[i]
		}
		out = append(out, point)
	}
	return out, nil
}

func routeBucketKey(workspace, cell string) string {
	return fmt.Sprintf("routes/%s/%s", workspace, cell)
}

func vertexKey(workspace string) string {
	return fmt.Sprintf("graphv/%s", workspace)
}

func edgeKey(workspace string) string {
	return fmt.Sprintf("graphe/%s", workspace)
}
