// Package repair runs the fixed post-construction cleanup sequence over
// a built graph: degree-0 vertex resolution, short dead-end connector
// pruning, bypass edge removal, coordinate and vertex welding, and
// connectivity stitching. passes execute in that order because later
// passes assume the invariants established by earlier ones. each pass
// recomputes degrees before the next one runs.
package repair

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/openscenic/trailnet/pkg/config"
	"github.com/openscenic/trailnet/pkg/datastructure"
	"github.com/openscenic/trailnet/pkg/geo"
)

const maxUnresolvedSamples = 20

// Unresolved is a degree-0 vertex neither snap nor projection could fix.
// left in place for operator review, never silently deleted.
type Unresolved struct {
	VertexID   int32
	Coord      datastructure.Coordinate
	OnBoundary bool
}

type Report struct {
	Degree0Snapped   int
	Degree0Projected int
	Degree0Flagged   int
	Degree0Boundary  int

	PrunedConnectors int
	PrunedVertices   int

	BypassesRemoved int
	BypassesKept    int

	WeldedEdges    int
	WeldedVertices int

	Components        int
	VirtualConnectors int

	Unresolved []Unresolved
}

// Changes is the number of structural mutations the run applied. a
// second run over the same graph must report zero.
func (r Report) Changes() int {
	return r.Degree0Snapped + r.Degree0Projected +
		r.PrunedConnectors + r.PrunedVertices +
		r.BypassesRemoved +
		r.WeldedEdges + r.WeldedVertices +
		r.VirtualConnectors
}

type Repairer struct {
	cfg config.Config
}

func New(cfg config.Config) *Repairer {
	return &Repairer{cfg: cfg}
}

// Repair mutates g in place and returns what it did. the graph is left
// in its last-known-safe state when a pass refuses a risky mutation.
func (r *Repairer) Repair(ctx context.Context, g *datastructure.Graph) (Report, error) {
	report := Report{}

	g.RecomputeDegrees()

	passes := []struct {
		name string
		run  func(*datastructure.Graph, *Report) error
	}{
		{"degree0", r.repairDegree0},
		{"prune-connectors", r.pruneShortConnectors},
		{"bypass", r.removeBypasses},
		{"weld", r.weld},
		{"stitch", r.stitch},
	}
	for _, pass := range passes {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}
		if err := pass.run(g, &report); err != nil {
			return report, fmt.Errorf("repair pass %s: %w", pass.name, err)
		}
		g.RecomputeDegrees()
	}

	log.Printf("repair[%s]: %d changes / %d snapped / %d projected / %d flagged / %d pruned / %d bypasses removed (%d kept) / %d welds / %d virtual connectors",
		g.Workspace, report.Changes(), report.Degree0Snapped, report.Degree0Projected,
		report.Degree0Flagged+report.Degree0Boundary, report.PrunedConnectors,
		report.BypassesRemoved, report.BypassesKept, report.WeldedEdges+report.WeldedVertices,
		report.VirtualConnectors)
	return report, nil
}

// repairDegree0 resolves orphan vertices in order: snap to the nearest
// connected vertex within the snap tolerance, else splice into the
// nearest edge within the projection tolerance, else flag and leave.
func (r *Repairer) repairDegree0(g *datastructure.Graph, report *Report) error {
	orphans := make([]int32, 0)
	for _, v := range g.LiveVertices() {
		if v.Degree == 0 {
			orphans = append(orphans, v.ID)
		}
	}
	if len(orphans) == 0 {
		return nil
	}

	vertexIndex := datastructure.NewSpatialIndex()
	for _, v := range g.LiveVertices() {
		if v.Degree > 0 {
			vertexIndex.Insert(v.ID, datastructure.BoundFromLine([]datastructure.Coordinate{v.Coord}))
		}
	}
	edgeIndex := datastructure.NewSpatialIndex()
	for _, e := range g.LiveEdges() {
		edgeIndex.Insert(e.ID, datastructure.BoundFromLine(e.Geometry))
	}

	for _, orphanID := range orphans {
		orphan := g.Vertex(orphanID)
		if orphan == nil {
			continue
		}

		if target := r.nearestVertex(g, vertexIndex, orphan.Coord, r.cfg.Degree0SnapToleranceM, orphanID); target >= 0 {
			// an orphan carries no edges, merging is removal
			g.RemoveVertex(orphanID)
			report.Degree0Snapped++
			continue
		}

		if r.spliceIntoNearestEdge(g, edgeIndex, orphan) {
			report.Degree0Projected++
			continue
		}

		if orphan.OnBoundary {
			report.Degree0Boundary++
		} else {
			report.Degree0Flagged++
		}
		if len(report.Unresolved) < maxUnresolvedSamples {
			report.Unresolved = append(report.Unresolved, Unresolved{
				VertexID: orphanID, Coord: orphan.Coord, OnBoundary: orphan.OnBoundary,
			})
		}
	}
	return nil
}

func (r *Repairer) nearestVertex(g *datastructure.Graph, index *datastructure.SpatialIndex,
	coord datastructure.Coordinate, toleranceM float64, excludeID int32) int32 {

	searchBound := datastructure.BoundFromLine([]datastructure.Coordinate{coord}).
		Expand(geo.MetersToDegrees(toleranceM, coord.Lat))

	best := int32(-1)
	bestDist := toleranceM
	for _, id := range index.Search(searchBound) {
		if id == excludeID {
			continue
		}
		v := g.Vertex(id)
		if v == nil {
			continue
		}
		dist := geo.HaversineDistanceM(coord.Lat, coord.Lon, v.Coord.Lat, v.Coord.Lon)
		if dist <= bestDist {
			best = v.ID
			bestDist = dist
		}
	}
	return best
}

// spliceIntoNearestEdge splits the closest in-tolerance edge at the
// orphan's projection point and rewires it through the orphan, so the
// vertex becomes routable.
func (r *Repairer) spliceIntoNearestEdge(g *datastructure.Graph,
	edgeIndex *datastructure.SpatialIndex, orphan *datastructure.Vertex) bool {

	searchBound := datastructure.BoundFromLine([]datastructure.Coordinate{orphan.Coord}).
		Expand(geo.MetersToDegrees(r.cfg.Degree0ProjectToleranceM, orphan.Coord.Lat))

	var bestEdge *datastructure.Edge
	var bestPos geo.LinePosition
	bestDist := r.cfg.Degree0ProjectToleranceM
	for _, id := range edgeIndex.Search(searchBound) {
		e := g.Edge(id)
		if e == nil || e.SelfLoop {
			continue
		}
		pos := geo.ClosestPositionOnLine(e.Geometry, orphan.Coord)
		if pos.DistM <= bestDist {
			bestEdge = e
			bestPos = pos
			bestDist = pos.DistM
		}
	}
	if bestEdge == nil {
		return false
	}

	pieces := geo.SplitLineAtPoints(bestEdge.Geometry, []datastructure.Coordinate{bestPos.Point})
	if len(pieces) != 2 {
		// projection landed on an edge endpoint, nothing to splice
		return false
	}

	orphan.Coord = bestPos.Point
	first, second := pieces[0], pieces[1]
	first[len(first)-1] = orphan.Coord
	second[0] = orphan.Coord

	half := *bestEdge
	half.Geometry = first
	half.ToVertexID = orphan.ID
	half.LengthKm = geo.LineLengthKm(first)
	g.AddEdge(half)

	other := *bestEdge
	other.Geometry = second
	other.FromVertexID = orphan.ID
	other.LengthKm = geo.LineLengthKm(second)
	g.AddEdge(other)

	g.RemoveEdge(bestEdge.ID)
	return true
}

// pruneShortConnectors removes short connector edges dangling off the
// network. only edges with exactly one degree-1 endpoint qualify, so a
// freestanding connector pair is never eaten from both sides at once.
// runs to a fixed point because a removal can expose the next stub.
func (r *Repairer) pruneShortConnectors(g *datastructure.Graph, report *Report) error {
	for {
		removed := 0
		for _, e := range g.LiveEdges() {
			if !isPrunableConnector(e) || e.SelfLoop {
				continue
			}
			if e.LengthKm*1000.0 >= r.cfg.ShortConnectorMaxM {
				continue
			}
			from := g.Vertex(e.FromVertexID)
			to := g.Vertex(e.ToVertexID)
			if from == nil || to == nil {
				continue
			}
			deadEnd := int32(-1)
			if from.Degree == 1 && to.Degree != 1 {
				deadEnd = from.ID
			} else if to.Degree == 1 && from.Degree != 1 {
				deadEnd = to.ID
			}
			if deadEnd < 0 {
				continue
			}

			g.RemoveEdge(e.ID)
			report.PrunedConnectors++
			g.RecomputeDegrees()
			if v := g.Vertex(deadEnd); v != nil && v.Degree == 0 {
				g.RemoveVertex(deadEnd)
				report.PrunedVertices++
			}
			removed++
		}
		if removed == 0 {
			return nil
		}
	}
}

// isPrunableConnector matches auto-generated connector stubs by type or
// name. virtual connectors from the stitching pass are deliberate and
// stay.
func isPrunableConnector(e *datastructure.Edge) bool {
	if e.Source == datastructure.SourceStitch {
		return false
	}
	return e.TrailType == datastructure.TrailTypeConnector
}

// removeBypasses deletes edges whose geometry passes through vertices
// they do not declare as endpoints, but only after proving the graph
// stays connected through those exact vertices without the edge.
func (r *Repairer) removeBypasses(g *datastructure.Graph, report *Report) error {
	vertexIndex := datastructure.NewSpatialIndex()
	for _, v := range g.LiveVertices() {
		if v.Degree > 0 {
			vertexIndex.Insert(v.ID, datastructure.BoundFromLine([]datastructure.Coordinate{v.Coord}))
		}
	}

	for _, e := range g.LiveEdges() {
		if e.SelfLoop {
			continue
		}
		bypassed := r.containedVertices(g, vertexIndex, e)
		if len(bypassed) == 0 {
			continue
		}
		if r.proveBypassSafe(g, e, bypassed) {
			g.RemoveEdge(e.ID)
			report.BypassesRemoved++
			g.RecomputeDegrees()
		} else {
			report.BypassesKept++
		}
	}
	return nil
}

// containedVertices returns live connected vertices lying on the edge
// geometry within the containment tolerance, excluding the endpoints.
func (r *Repairer) containedVertices(g *datastructure.Graph,
	index *datastructure.SpatialIndex, e *datastructure.Edge) []int32 {

	searchBound := datastructure.BoundFromLine(e.Geometry).
		Expand(geo.MetersToDegrees(r.cfg.BypassContainToleranceM, e.Geometry[0].Lat))

	contained := make([]int32, 0)
	for _, id := range index.Search(searchBound) {
		if id == e.FromVertexID || id == e.ToVertexID {
			continue
		}
		v := g.Vertex(id)
		if v == nil || v.Degree == 0 {
			continue
		}
		pos := geo.ClosestPositionOnLine(e.Geometry, v.Coord)
		if pos.DistM <= r.cfg.BypassContainToleranceM {
			contained = append(contained, id)
		}
	}
	sort.Slice(contained, func(i, j int) bool { return contained[i] < contained[j] })
	return contained
}

// proveBypassSafe runs a bounded-depth DFS from the edge's source to its
// target over the rest of the graph, requiring the found path to visit
// every bypassed vertex. exceeding the depth or exploration cap counts
// as no path, the edge is then kept.
func (r *Repairer) proveBypassSafe(g *datastructure.Graph, candidate *datastructure.Edge, required []int32) bool {
	requiredSet := make(map[int32]bool, len(required))
	for _, id := range required {
		requiredSet[id] = true
	}

	explored := 0
	visited := make(map[int32]bool)

	var dfs func(at int32, depth int, hit int) bool
	dfs = func(at int32, depth int, hit int) bool {
		if explored++; explored > r.cfg.MaxExploredNodes {
			return false
		}
		if at == candidate.ToVertexID {
			return hit == len(required)
		}
		if depth >= r.cfg.BypassMaxDepth {
			return false
		}
		visited[at] = true
		defer delete(visited, at)

		for _, edgeID := range g.AdjacentEdges(at) {
			e := g.Edge(edgeID)
			if e == nil || e.ID == candidate.ID || e.SelfLoop {
				continue
			}
			next := e.OtherEnd(at)
			if visited[next] {
				continue
			}
			nextHit := hit
			if requiredSet[next] {
				nextHit++
			}
			if dfs(next, depth+1, nextHit) {
				return true
			}
		}
		return false
	}
	return dfs(candidate.FromVertexID, 0, 0)
}

// weld forces edge geometry ends onto their vertex coordinates exactly
// and collapses vertex pairs inside the merge tolerance, lowest id wins.
func (r *Repairer) weld(g *datastructure.Graph, report *Report) error {
	// vertex welding first so edge welding sees the canonical coordinates
	vertexIndex := datastructure.NewSpatialIndex()
	for _, v := range g.LiveVertices() {
		vertexIndex.Insert(v.ID, datastructure.BoundFromLine([]datastructure.Coordinate{v.Coord}))
	}
	for _, v := range g.LiveVertices() {
		if g.Vertex(v.ID) == nil {
			// already absorbed by an earlier weld
			continue
		}
		searchBound := datastructure.BoundFromLine([]datastructure.Coordinate{v.Coord}).
			Expand(geo.MetersToDegrees(r.cfg.VertexMergeToleranceM, v.Coord.Lat))
		for _, otherID := range vertexIndex.Search(searchBound) {
			if otherID <= v.ID {
				continue
			}
			other := g.Vertex(otherID)
			if other == nil {
				continue
			}
			dist := geo.HaversineDistanceM(v.Coord.Lat, v.Coord.Lon, other.Coord.Lat, other.Coord.Lon)
			if dist > r.cfg.VertexMergeToleranceM {
				continue
			}
			g.RemapEdgeVertices(otherID, v.ID)
			g.RemoveVertex(otherID)
			vertexIndex.Delete(otherID, datastructure.BoundFromLine([]datastructure.Coordinate{other.Coord}))
			report.WeldedVertices++
		}
	}
	g.RecomputeDegrees()

	for _, e := range g.LiveEdges() {
		from := g.Vertex(e.FromVertexID)
		to := g.Vertex(e.ToVertexID)
		if from == nil || to == nil || len(e.Geometry) < 2 {
			continue
		}
		welded := false
		if !e.Geometry[0].SamePosition(from.Coord) {
			e.Geometry[0] = from.Coord
			welded = true
		}
		last := len(e.Geometry) - 1
		if !e.Geometry[last].SamePosition(to.Coord) {
			e.Geometry[last] = to.Coord
			welded = true
		}
		if welded {
			e.LengthKm = geo.LineLengthKm(e.Geometry)
			report.WeldedEdges++
		}
	}
	return nil
}

// stitch joins remaining components with straight virtual connector
// edges between their nearest vertex pairs. every smaller component is
// tied to the largest one.
func (r *Repairer) stitch(g *datastructure.Graph, report *Report) error {
	components := componentsOf(g)
	report.Components = len(components)
	if len(components) <= 1 {
		return nil
	}

	sort.Slice(components, func(i, j int) bool { return len(components[i]) > len(components[j]) })
	main := components[0]

	for _, component := range components[1:] {
		fromID, toID, distM := nearestPair(g, component, main)
		if fromID < 0 {
			continue
		}
		from := g.Vertex(fromID)
		to := g.Vertex(toID)

		g.AddEdge(datastructure.Edge{
			FromVertexID: fromID,
			ToVertexID:   toID,
			TrailID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("stitch-%s-%d-%d", g.Workspace, fromID, toID))),
			Name:         fmt.Sprintf("virtual-connector-%d-%d", fromID, toID),
			TrailType:    datastructure.TrailTypeConnector,
			Source:       datastructure.SourceStitch,
			Geometry:     []datastructure.Coordinate{from.Coord, to.Coord},
			LengthKm:     distM / 1000.0,
		})
		report.VirtualConnectors++

		// the stitched component is now part of the main component
		main = append(main, component...)
	}
	g.RecomputeDegrees()
	return nil
}

// componentsOf groups connected vertices via union-find over the live
// edge list. degree-0 vertices form their own singleton components.
func componentsOf(g *datastructure.Graph) [][]int32 {
	parent := make(map[int32]int32)
	var find func(x int32) int32
	find = func(x int32) int32 {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int32) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for _, v := range g.LiveVertices() {
		parent[v.ID] = v.ID
	}
	for _, e := range g.LiveEdges() {
		if !e.SelfLoop {
			union(e.FromVertexID, e.ToVertexID)
		}
	}

	grouped := make(map[int32][]int32)
	for _, v := range g.LiveVertices() {
		root := find(v.ID)
		grouped[root] = append(grouped[root], v.ID)
	}
	components := make([][]int32, 0, len(grouped))
	for _, members := range grouped {
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		components = append(components, members)
	}
	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })
	return components
}

func nearestPair(g *datastructure.Graph, a, b []int32) (int32, int32, float64) {
	bestA, bestB := int32(-1), int32(-1)
	bestDist := 0.0
	for _, aID := range a {
		av := g.Vertex(aID)
		if av == nil {
			continue
		}
		for _, bID := range b {
			bv := g.Vertex(bID)
			if bv == nil {
				continue
			}
			dist := geo.HaversineDistanceM(av.Coord.Lat, av.Coord.Lon, bv.Coord.Lat, bv.Coord.Lon)
			if bestA < 0 || dist < bestDist {
				bestA, bestB = aID, bID
				bestDist = dist
			}
		}
	}
	return bestA, bestB, bestDist
}
