// Package network is the third pipeline stage: it turns the fully split
// trail set into a noded routing graph. one pass collects every segment
// endpoint, clusters coincident points into vertices with stable integer
// ids, then emits one edge per segment.
package network

import (
	"log"
	"sort"

	"github.com/openscenic/trailnet/pkg/config"
	"github.com/openscenic/trailnet/pkg/datastructure"
	"github.com/openscenic/trailnet/pkg/geo"
)

type Report struct {
	Trails          int
	Vertices        int
	Edges           int
	SelfLoops       int
	RejectedLoops   int
	ClusteredPoints int
}

type Builder struct {
	cfg config.Config
}

func New(cfg config.Config) *Builder {
	return &Builder{cfg: cfg}
}

type endpoint struct {
	trailIdx int
	// 0 = start, 1 = end
	side  int
	coord datastructure.Coordinate
}

// Build creates the vertex and edge tables for a staging workspace.
// vertex ids are deterministic: endpoints are processed in ascending
// (lat, lon) order, so the lowest coordinate of a cluster becomes its
// representative.
func (b *Builder) Build(workspace string, trails []datastructure.Trail, regionBound datastructure.Bound) (*datastructure.Graph, Report, error) {
	report := Report{Trails: len(trails)}
	g := datastructure.NewGraph(workspace)

	endpoints := make([]endpoint, 0, len(trails)*2)
	for i := range trails {
		endpoints = append(endpoints,
			endpoint{trailIdx: i, side: 0, coord: trails[i].StartPoint()},
			endpoint{trailIdx: i, side: 1, coord: trails[i].EndPoint()},
		)
	}
	sort.Slice(endpoints, func(i, j int) bool {
		ci, cj := endpoints[i].coord, endpoints[j].coord
		if ci.Lat != cj.Lat {
			return ci.Lat < cj.Lat
		}
		return ci.Lon < cj.Lon
	})

	// cluster endpoints within the merge tolerance. the index holds the
	// vertices created so far; the first endpoint of a cluster (lowest
	// coordinate) creates the vertex, later ones reuse it.
	vertexIndex := datastructure.NewSpatialIndex()
	vertexOf := make(map[int]map[int]int32, len(trails)) // trailIdx -> side -> vertex id

	for _, ep := range endpoints {
		id, found := b.findVertexWithin(g, vertexIndex, ep.coord)
		if !found {
			v := g.AddVertex(ep.coord)
			v.OnBoundary = onRegionBoundary(ep.coord, regionBound, b.cfg.VertexMergeToleranceM)
			id = v.ID
			vertexIndex.Insert(id, datastructure.BoundFromLine([]datastructure.Coordinate{ep.coord}))
		} else {
			report.ClusteredPoints++
		}
		if vertexOf[ep.trailIdx] == nil {
			vertexOf[ep.trailIdx] = make(map[int]int32, 2)
		}
		vertexOf[ep.trailIdx][ep.side] = id
	}

	for i := range trails {
		trail := &trails[i]
		from := vertexOf[i][0]
		to := vertexOf[i][1]

		if from == to {
			// true micro-loop: both endpoints clustered to one vertex
			if trail.LengthKm*1000 < b.cfg.MinSegmentLengthM {
				report.RejectedLoops++
				log.Printf("network: rejecting micro-loop %s (%s), %.1fm", trail.Name, trail.ID, trail.LengthKm*1000)
				continue
			}
			report.SelfLoops++
		}

		// clustered endpoints may sit a sub-tolerance distance from the
		// representative vertex: rewrite the geometry ends so edges
		// terminate exactly at their vertex coordinates
		geometry := make([]datastructure.Coordinate, len(trail.Geometry))
		copy(geometry, trail.Geometry)
		welded := false
		if !geometry[0].SamePosition(g.Vertex(from).Coord) {
			geometry[0] = g.Vertex(from).Coord
			welded = true
		}
		if !geometry[len(geometry)-1].SamePosition(g.Vertex(to).Coord) {
			geometry[len(geometry)-1] = g.Vertex(to).Coord
			welded = true
		}
		lengthKm := trail.LengthKm
		if welded {
			lengthKm = geo.LineLengthKm(geometry)
		}

		g.AddEdge(datastructure.Edge{
			FromVertexID: from,
			ToVertexID:   to,
			TrailID:      trail.ID,
			Name:         trail.Name,
			TrailType:    trail.TrailType,
			Source:       trail.Source,
			Geometry:     geometry,
			LengthKm:     lengthKm,
			GainM:        trail.GainM,
			LossM:        trail.LossM,
		})
	}

	g.RecomputeDegrees()
	report.Vertices = g.VertexCount()
	report.Edges = g.EdgeCount()
	log.Printf("network: built workspace %q, %d vertices / %d edges / %d self-loops / %d clustered endpoints",
		workspace, report.Vertices, report.Edges, report.SelfLoops, report.ClusteredPoints)
	return g, report, nil
}

// findVertexWithin existing vertex within the merge tolerance of c, the
// closest one wins.
func (b *Builder) findVertexWithin(g *datastructure.Graph, index *datastructure.SpatialIndex,
	c datastructure.Coordinate) (int32, bool) {

	searchBound := datastructure.BoundFromLine([]datastructure.Coordinate{c}).
		Expand(geo.MetersToDegrees(b.cfg.VertexMergeToleranceM, c.Lat))

	bestID := int32(-1)
	bestDist := b.cfg.VertexMergeToleranceM
	for _, id := range index.Search(searchBound) {
		v := g.Vertex(id)
		if v == nil {
			continue
		}
		dist := geo.HaversineDistanceM(c.Lat, c.Lon, v.Coord.Lat, v.Coord.Lon)
		if dist <= bestDist {
			bestDist = dist
			bestID = id
		}
	}
	return bestID, bestID >= 0
}

func onRegionBoundary(c datastructure.Coordinate, region datastructure.Bound, tolM float64) bool {
	if region.MaxLat <= region.MinLat {
		// no region bound supplied
		return false
	}
	tolDeg := geo.MetersToDegrees(tolM, c.Lat)
	return c.Lat-region.MinLat < tolDeg || region.MaxLat-c.Lat < tolDeg ||
		c.Lon-region.MinLon < tolDeg || region.MaxLon-c.Lon < tolDeg
}
