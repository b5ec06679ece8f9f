// Package search enumerates loop and lollipop route candidates over a
// repaired graph and scores them against a target distance and elevation
// profile. searches are read-only and assume the graph's adjacency index
// is current.
package search

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/openscenic/trailnet/pkg/config"
	"github.com/openscenic/trailnet/pkg/datastructure"
	"github.com/openscenic/trailnet/pkg/geo"
	"github.com/openscenic/trailnet/pkg/util"
)

type Query struct {
	TargetDistKm float64
	TargetGainM  float64

	// explicit anchor override. empty means rank intersections by
	// degree.
	Anchors []int32

	// folded into candidate ids so repeated runs against unchanged
	// graph data are identical
	Seed string

	// 0 falls back to the configured maximum
	MaxRoutes int
}

// Result is always returned, "no route found" is an expected outcome
// carried in Reason, not an error.
type Result struct {
	Candidates []datastructure.RouteCandidate
	Reason     string
}

type Engine struct {
	cfg    config.Config
	scorer Scorer
}

func New(cfg config.Config, scorer Scorer) *Engine {
	return &Engine{cfg: cfg, scorer: scorer}
}

// Search runs the collect-then-filter pipeline: enumerate lollipop
// candidates from every anchor, filter by the caller's window only at
// the end, then score and rank.
func (e *Engine) Search(ctx context.Context, g *datastructure.Graph, query Query) (Result, error) {
	if query.TargetDistKm <= 0 {
		return Result{}, fmt.Errorf("target distance must be positive, got %f", query.TargetDistKm)
	}
	if g.EdgeCount() == 0 {
		return Result{Reason: "graph has no edges"}, nil
	}

	anchors := query.Anchors
	if len(anchors) == 0 {
		anchors = e.selectAnchors(g)
	}
	if len(anchors) == 0 {
		return Result{Reason: "no intersection vertices to anchor a search"}, nil
	}

	collected := make([]datastructure.RouteCandidate, 0)
	for _, anchor := range anchors {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}
		collected = append(collected, e.candidatesFromAnchor(g, anchor, query)...)
	}
	if len(collected) == 0 {
		return Result{Reason: "no reachable destinations in the distance window"}, nil
	}

	filtered := e.filterByWindow(collected, query)
	if len(filtered) == 0 {
		return Result{Reason: fmt.Sprintf("%d candidates collected, none within the distance/elevation tolerance", len(collected))}, nil
	}

	scores := e.scorer.Score(ctx, query, filtered)
	for i := range filtered {
		filtered[i].Score = scores[i]
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		return filtered[i].ID.String() < filtered[j].ID.String()
	})

	max := query.MaxRoutes
	if max <= 0 {
		max = e.cfg.MaxRoutesPerQuery
	}
	if len(filtered) > max {
		filtered = filtered[:max]
	}

	log.Printf("search[%s]: %d anchors / %d collected / %d returned",
		g.Workspace, len(anchors), len(collected), len(filtered))
	return Result{Candidates: filtered}, nil
}

// selectAnchors ranks real intersections by degree descending, vertex id
// ascending on ties so runs are reproducible.
func (e *Engine) selectAnchors(g *datastructure.Graph) []int32 {
	anchors := make([]*datastructure.Vertex, 0)
	for _, v := range g.LiveVertices() {
		if v.Degree >= 3 {
			anchors = append(anchors, v)
		}
	}
	sort.Slice(anchors, func(i, j int) bool {
		if anchors[i].Degree != anchors[j].Degree {
			return anchors[i].Degree > anchors[j].Degree
		}
		return anchors[i].ID < anchors[j].ID
	})
	if len(anchors) > e.cfg.MaxAnchors {
		anchors = anchors[:e.cfg.MaxAnchors]
	}
	ids := make([]int32, 0, len(anchors))
	for _, v := range anchors {
		ids = append(ids, v.ID)
	}
	return ids
}

// candidatesFromAnchor enumerates lollipops: destinations inside the
// distance window (unioned with a straight-line radius search), shortest
// outbound, K shortest returns, pick the return overlapping the outbound
// least.
func (e *Engine) candidatesFromAnchor(g *datastructure.Graph, anchor int32, query Query) []datastructure.RouteCandidate {
	low := query.TargetDistKm * e.cfg.DistanceWindowLowPct
	high := query.TargetDistKm * e.cfg.DistanceWindowHighPct

	tree := dijkstraFrom(g, anchor, high, e.cfg.MaxExploredNodes, nil, nil)

	destSet := make(map[int32]bool)
	for node, dist := range tree.distKm {
		if node != anchor && dist >= low && dist <= high {
			destSet[node] = true
		}
	}
	// the direct path is a poor diversity proxy on tangled networks,
	// union in anything physically close enough
	anchorV := g.Vertex(anchor)
	radiusKm := high / 2
	radiusBound := boundAround(anchorV.Coord, radiusKm)
	for _, v := range g.LiveVertices() {
		if v.ID == anchor || destSet[v.ID] || v.Degree == 0 {
			continue
		}
		if !radiusBound.Contains(v.Coord) {
			continue
		}
		straight := geo.CalculateHaversineDistance(anchorV.Coord.Lat, anchorV.Coord.Lon, v.Coord.Lat, v.Coord.Lon)
		if straight > radiusKm {
			continue
		}
		if dist, reachable := tree.distKm[v.ID]; reachable && dist >= low {
			destSet[v.ID] = true
		}
	}

	dests := make([]int32, 0, len(destSet))
	for id := range destSet {
		dests = append(dests, id)
	}
	sort.Slice(dests, func(i, j int) bool { return dests[i] < dests[j] })
	if len(dests) > e.cfg.MaxCandidatesPerAnchor {
		dests = dests[:e.cfg.MaxCandidatesPerAnchor]
	}

	candidates := make([]datastructure.RouteCandidate, 0, len(dests))
	for _, dest := range dests {
		outbound, ok := tree.pathTo(dest)
		if !ok {
			continue
		}
		returns := kShortestPaths(g, dest, anchor, e.cfg.KShortestPaths, e.cfg.MaxExploredNodes)
		if len(returns) == 0 {
			continue
		}
		ret := pickReturn(outbound, returns)
		candidates = append(candidates, e.assemble(g, anchor, dest, outbound, ret, query.Seed))
	}
	return candidates
}

// boundAround bounding box circumscribing the circle of radiusKm around
// a point, a cheap prefilter before the exact haversine test.
func boundAround(c datastructure.Coordinate, radiusKm float64) datastructure.Bound {
	north, _ := geo.GetDestinationPoint(c.Lat, c.Lon, 0, radiusKm)
	_, east := geo.GetDestinationPoint(c.Lat, c.Lon, 90, radiusKm)
	south, _ := geo.GetDestinationPoint(c.Lat, c.Lon, 180, radiusKm)
	_, west := geo.GetDestinationPoint(c.Lat, c.Lon, 270, radiusKm)
	// slack for the longitude bulge between the tangent points
	return datastructure.NewBound(south, west, north, east).
		Expand(geo.MetersToDegrees(radiusKm*10, c.Lat))
}

// pickReturn minimizes edge overlap with the outbound path, shortest
// total distance on ties.
func pickReturn(outbound path, returns []path) path {
	best := returns[0]
	bestOverlap := overlapCount(outbound, best)
	for _, candidate := range returns[1:] {
		overlap := overlapCount(outbound, candidate)
		if overlap < bestOverlap || (overlap == bestOverlap && candidate.distKm < best.distKm) {
			best = candidate
			bestOverlap = overlap
		}
	}
	return best
}

func overlapCount(a, b path) int {
	set := make(map[int32]bool, len(a.edges))
	for _, id := range a.edges {
		set[id] = true
	}
	n := 0
	for _, id := range b.edges {
		if set[id] {
			n++
		}
	}
	return n
}

func (e *Engine) assemble(g *datastructure.Graph, anchor, dest int32,
	outbound, ret path, seed string) datastructure.RouteCandidate {

	nodes := make([]int32, 0, len(outbound.nodes)+len(ret.nodes)-1)
	nodes = append(nodes, outbound.nodes...)
	nodes = append(nodes, ret.nodes[1:]...)

	overlap := overlapCount(outbound, ret)
	maxEdges := len(outbound.edges)
	if len(ret.edges) > maxEdges {
		maxEdges = len(ret.edges)
	}
	overlapPct := 0.0
	if maxEdges > 0 {
		overlapPct = float64(overlap) / float64(maxEdges)
	}

	shape := datastructure.ShapeLollipop
	switch overlap {
	case 0:
		shape = datastructure.ShapeLoop
	case maxEdges:
		shape = datastructure.ShapeOutAndBack
	}

	candidate := datastructure.RouteCandidate{
		AnchorID:        anchor,
		DestID:          dest,
		Shape:           shape,
		OutboundEdgeIDs: append([]int32(nil), outbound.edges...),
		ReturnEdgeIDs:   append([]int32(nil), ret.edges...),
		NodeSequence:    nodes,
		DistKm:          outbound.distKm + ret.distKm,
		OverlapPct:      overlapPct,
	}
	e.annotate(g, &candidate)

	candidate.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(routeKey(anchor, nodes, seed)))
	return candidate
}

// annotate walks the node sequence to accumulate directional elevation
// gain, trail-type distance shares, distinct trails and the stitched
// geometry.
func (e *Engine) annotate(g *datastructure.Graph, c *datastructure.RouteCandidate) {
	edgeIDs := make([]int32, 0, len(c.OutboundEdgeIDs)+len(c.ReturnEdgeIDs))
	edgeIDs = append(edgeIDs, c.OutboundEdgeIDs...)
	edgeIDs = append(edgeIDs, c.ReturnEdgeIDs...)

	trails := make(map[string]bool)
	singletrackKm, pavedKm := 0.0, 0.0

	at := c.AnchorID
	for _, edgeID := range edgeIDs {
		edge := g.Edge(edgeID)
		if edge == nil {
			continue
		}
		forward := edge.FromVertexID == at
		if forward {
			c.GainM += edge.GainM
		} else {
			// descending the edge backwards climbs its loss
			c.GainM += edge.LossM
		}

		geometry := edge.Geometry
		if !forward {
			geometry = util.ReverseG(geometry)
		}
		if len(c.Geometry) > 0 && len(geometry) > 0 {
			geometry = geometry[1:]
		}
		c.Geometry = append(c.Geometry, geometry...)

		switch edge.TrailType {
		case datastructure.TrailTypeSingletrack:
			singletrackKm += edge.LengthKm
		case datastructure.TrailTypePaved:
			pavedKm += edge.LengthKm
		}
		if edge.Name != "" {
			trails[edge.Name] = true
		}
		at = edge.OtherEnd(at)
	}

	c.TrailCount = len(trails)
	if c.DistKm > 0 {
		c.SingletrackPct = singletrackKm / c.DistKm
		c.PavedPct = pavedKm / c.DistKm
	}
}

// filterByWindow applies the caller's tolerance only after every
// candidate is collected, so the best overall match is never discarded
// early.
func (e *Engine) filterByWindow(candidates []datastructure.RouteCandidate, query Query) []datastructure.RouteCandidate {
	distLow := query.TargetDistKm * (1 - e.cfg.DistanceTolerancePct)
	distHigh := query.TargetDistKm * (1 + e.cfg.DistanceTolerancePct)
	gainLow := query.TargetGainM * (1 - e.cfg.ElevationTolerancePct)
	gainHigh := query.TargetGainM * (1 + e.cfg.ElevationTolerancePct)

	out := make([]datastructure.RouteCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.DistKm < distLow || c.DistKm > distHigh {
			continue
		}
		if query.TargetGainM > 0 && (c.GainM < gainLow || c.GainM > gainHigh) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func routeKey(anchor int32, nodes []int32, seed string) string {
	key := fmt.Sprintf("route:%s:%d:", seed, anchor)
	for _, n := range nodes {
		key += fmt.Sprintf("%d,", n)
	}
	return key
}
