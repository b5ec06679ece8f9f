// Package splitter is the second pipeline stage: it detects X/crossing
// and T/Y near-miss intersections between trails, splits trails into
// edge-sized segments at those points and snaps sub-tolerance endpoint
// gaps shut, so the network builder sees a fully noded trail set.
package splitter

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/openscenic/trailnet/pkg/config"
	"github.com/openscenic/trailnet/pkg/datastructure"
	"github.com/openscenic/trailnet/pkg/elevation"
	"github.com/openscenic/trailnet/pkg/geo"
)

const maxFailureSamples = 20

type Failure struct {
	TrailID uuid.UUID
	Name    string
	Reason  string
}

type Report struct {
	Input        int
	Output       int
	CrossSplits  int
	TSplits      int
	SnappedGaps  int
	MergedShort  int
	DroppedShort int
	Dropped      int

	Failures []Failure
}

type Splitter struct {
	cfg  config.Config
	elev elevation.Service
}

func New(cfg config.Config, elev elevation.Service) *Splitter {
	return &Splitter{cfg: cfg, elev: elev}
}

// Split produces the fully noded segment set. trails failing elevation
// re-annotation are dropped and recorded, the batch continues.
func (s *Splitter) Split(ctx context.Context, trails []datastructure.Trail) ([]datastructure.Trail, Report, error) {
	report := Report{Input: len(trails)}

	// working copy, geometries mutate during snapping
	work := make([]datastructure.Trail, len(trails))
	copy(work, trails)

	index := datastructure.NewSpatialIndex()
	for i := range work {
		index.Insert(int32(i), work[i].Bound)
	}

	cutPoints := make([][]datastructure.Coordinate, len(work))
	changed := make([]bool, len(work))

	s.detectCrossings(work, index, cutPoints, &report)
	s.detectTIntersections(work, index, cutPoints, changed, &report)
	s.snapEndpointGaps(work, index, changed, &report)

	out := make([]datastructure.Trail, 0, len(work))
	for i := range work {
		select {
		case <-ctx.Done():
			return nil, report, ctx.Err()
		default:
		}

		segments, err := s.splitTrail(ctx, work[i], cutPoints[i], changed[i], &report)
		if err != nil {
			report.Dropped++
			log.Printf("splitter: dropping trail %s (%s): %v", work[i].Name, work[i].ID, err)
			if len(report.Failures) < maxFailureSamples {
				report.Failures = append(report.Failures, Failure{
					TrailID: work[i].ID, Name: work[i].Name, Reason: err.Error(),
				})
			}
			continue
		}
		out = append(out, segments...)
	}

	report.Output = len(out)
	log.Printf("splitter: %d in / %d out / %d cross splits / %d t-splits / %d gaps snapped / %d dropped",
		report.Input, report.Output, report.CrossSplits, report.TSplits, report.SnappedGaps, report.Dropped)
	return out, report, nil
}

// detectCrossings X intersections: both trails get a cut at every shared
// crossing point. crossings landing on a trail's own endpoint cut only
// the other trail.
func (s *Splitter) detectCrossings(work []datastructure.Trail, index *datastructure.SpatialIndex,
	cutPoints [][]datastructure.Coordinate, report *Report) {

	for i := range work {
		for _, jID := range index.Search(work[i].Bound) {
			j := int(jID)
			if j <= i {
				continue
			}
			crossings := geo.LineIntersections(work[i].Geometry, work[j].Geometry)
			for _, p := range crossings {
				if !s.atLineEnd(work[i].Geometry, p) {
					cutPoints[i] = append(cutPoints[i], p)
					report.CrossSplits++
				}
				if !s.atLineEnd(work[j].Geometry, p) {
					cutPoints[j] = append(cutPoints[j], p)
					report.CrossSplits++
				}
			}
		}
	}
}

// detectTIntersections endpoints within tolerance of another trail's
// interior. the target trail is cut at the projection and the endpoint is
// snapped onto the cut point. projections within TEndExclusionPct of
// either target end are endpoint-to-endpoint cases, not true Ts.
func (s *Splitter) detectTIntersections(work []datastructure.Trail, index *datastructure.SpatialIndex,
	cutPoints [][]datastructure.Coordinate, changed []bool, report *Report) {

	for i := range work {
		for _, endIdx := range []int{0, len(work[i].Geometry) - 1} {
			endpoint := work[i].Geometry[endIdx]
			searchBound := datastructure.BoundFromLine([]datastructure.Coordinate{endpoint}).
				Expand(geo.MetersToDegrees(s.cfg.TIntersectionToleranceM, endpoint.Lat))

			for _, jID := range index.Search(searchBound) {
				j := int(jID)
				if j == i {
					continue
				}
				pos := geo.ClosestPositionOnLine(work[j].Geometry, endpoint)
				if pos.DistM > s.cfg.TIntersectionToleranceM {
					continue
				}
				if pos.Fraction < s.cfg.TEndExclusionPct || pos.Fraction > 1-s.cfg.TEndExclusionPct {
					continue
				}

				cutPoints[j] = append(cutPoints[j], pos.Point)
				work[i].Geometry[endIdx] = pos.Point
				changed[i] = true
				report.TSplits++
				break
			}
		}
	}
}

// snapEndpointGaps pairs of trail endpoints within the snap tolerance
// that do not already coincide are welded to one coordinate. pure
// coordinate adjustment, no split. the lexicographically lower
// coordinate wins so the result does not depend on iteration order.
func (s *Splitter) snapEndpointGaps(work []datastructure.Trail, index *datastructure.SpatialIndex,
	changed []bool, report *Report) {

	for i := range work {
		for _, endIdx := range []int{0, len(work[i].Geometry) - 1} {
			endpoint := work[i].Geometry[endIdx]
			searchBound := datastructure.BoundFromLine([]datastructure.Coordinate{endpoint}).
				Expand(geo.MetersToDegrees(s.cfg.SnapToleranceM, endpoint.Lat))

			for _, jID := range index.Search(searchBound) {
				j := int(jID)
				if j == i {
					continue
				}
				for _, otherEndIdx := range []int{0, len(work[j].Geometry) - 1} {
					// an earlier snap in this cluster may have moved the
					// endpoint, distances must use its current position
					endpoint = work[i].Geometry[endIdx]
					other := work[j].Geometry[otherEndIdx]
					if endpoint.SamePosition(other) {
						continue
					}
					dist := geo.HaversineDistanceM(endpoint.Lat, endpoint.Lon, other.Lat, other.Lon)
					if dist > s.cfg.SnapToleranceM {
						continue
					}
					canonical := lowerCoordinate(endpoint, other)
					if !work[i].Geometry[endIdx].SamePosition(canonical) {
						work[i].Geometry[endIdx] = canonical
						changed[i] = true
					}
					if !work[j].Geometry[otherEndIdx].SamePosition(canonical) {
						work[j].Geometry[otherEndIdx] = canonical
						changed[j] = true
					}
					report.SnappedGaps++
				}
			}
		}
	}
}

// splitTrail applies the collected cuts. pieces below the minimum segment
// length are merged into their neighbor, or dropped when the whole trail
// is that short.
func (s *Splitter) splitTrail(ctx context.Context, trail datastructure.Trail,
	cuts []datastructure.Coordinate, geometryChanged bool, report *Report) ([]datastructure.Trail, error) {

	if len(cuts) == 0 {
		if !geometryChanged {
			return []datastructure.Trail{trail}, nil
		}
		finished, err := s.finishSegment(ctx, trail, trail.Geometry, -1)
		if err != nil {
			return nil, err
		}
		return []datastructure.Trail{finished}, nil
	}

	pieces := geo.SplitLineAtPoints(trail.Geometry, cuts)
	pieces = s.mergeShortPieces(pieces, report)

	segments := make([]datastructure.Trail, 0, len(pieces))
	for idx, piece := range pieces {
		if len(piece) < 2 {
			continue
		}
		childIdx := idx
		if len(pieces) == 1 {
			childIdx = -1
		}
		segment, err := s.finishSegment(ctx, trail, piece, childIdx)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segment survived splitting")
	}
	return segments, nil
}

// mergeShortPieces splices sub-minimum pieces into the previous piece
// (keeping total geometry, so segment lengths still sum to the original
// trail length). a leading short piece merges forward instead.
func (s *Splitter) mergeShortPieces(pieces [][]datastructure.Coordinate, report *Report) [][]datastructure.Coordinate {
	minKm := s.cfg.MinSegmentLengthM / 1000.0
	out := make([][]datastructure.Coordinate, 0, len(pieces))

	for _, piece := range pieces {
		if geo.LineLengthKm(piece) >= minKm {
			out = append(out, piece)
			continue
		}
		if len(out) > 0 {
			prev := out[len(out)-1]
			out[len(out)-1] = append(prev, piece[1:]...)
			report.MergedShort++
		} else {
			// merge forward by prepending once the next piece arrives
			out = append(out, piece)
		}
	}

	// leading piece may still be short, merge it into its successor
	if len(out) >= 2 && geo.LineLengthKm(out[0]) < minKm {
		merged := append(out[0], out[1][1:]...)
		out = append([][]datastructure.Coordinate{merged}, out[2:]...)
		report.MergedShort++
	}
	if len(out) == 1 && geo.LineLengthKm(out[0]) < minKm {
		report.DroppedShort++
		return nil
	}
	return out
}

// finishSegment recomputes derived fields and re-annotates elevation.
// childIdx >= 0 assigns a deterministic split-product uuid.
func (s *Splitter) finishSegment(ctx context.Context, parent datastructure.Trail,
	line []datastructure.Coordinate, childIdx int) (datastructure.Trail, error) {

	segment := parent
	annotated, profile, err := s.elev.AnnotateLine(ctx, line)
	if err != nil {
		return datastructure.Trail{}, fmt.Errorf("elevation annotation: %w", err)
	}
	segment.Geometry = annotated
	segment.GainM = profile.GainM
	segment.LossM = profile.LossM
	segment.MinEle = profile.MinEle
	segment.MaxEle = profile.MaxEle
	segment.AvgEle = profile.AvgEle
	segment.LengthKm = geo.LineLengthKm(annotated)
	segment.Bound = datastructure.BoundFromLine(annotated)

	if childIdx >= 0 {
		segment.OriginalTrailID = parent.ParentID()
		segment.ID = uuid.NewSHA1(parent.ID, []byte(fmt.Sprintf("split-%d", childIdx)))
	}
	return segment, nil
}

// atLineEnd crossing point coincides with the line's own endpoint, no
// split needed there.
func (s *Splitter) atLineEnd(line []datastructure.Coordinate, p datastructure.Coordinate) bool {
	start := line[0]
	end := line[len(line)-1]
	return geo.HaversineDistanceM(start.Lat, start.Lon, p.Lat, p.Lon) < s.cfg.SnapToleranceM ||
		geo.HaversineDistanceM(end.Lat, end.Lon, p.Lat, p.Lon) < s.cfg.SnapToleranceM
}

func lowerCoordinate(a, b datastructure.Coordinate) datastructure.Coordinate {
	if a.Lat < b.Lat || (a.Lat == b.Lat && a.Lon <= b.Lon) {
		return a
	}
	return b
}
