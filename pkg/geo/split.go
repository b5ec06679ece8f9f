package geo

import (
	"sort"

	"github.com/openscenic/trailnet/pkg/datastructure"
)

// cut points slightly off the line (float noise from intersection math)
// still register as on-line within this tolerance
const onLineToleranceM = 0.05

// positionsOnLine every occurrence of p along the line within tolM
// meters. falls back to the single closest position when no segment is
// within tolerance.
func positionsOnLine(line []datastructure.Coordinate, p datastructure.Coordinate, tolM float64) []LinePosition {
	positions := make([]LinePosition, 0, 2)
	for i := 0; i < len(line)-1; i++ {
		proj := ProjectPointToSegment(line[i], line[i+1], p)
		dist := HaversineDistanceM(p.Lat, p.Lon, proj.Lat, proj.Lon)
		if dist > tolM {
			continue
		}
		if len(positions) > 0 {
			prev := positions[len(positions)-1]
			if prev.SegIdx == i-1 &&
				HaversineDistanceM(prev.Point.Lat, prev.Point.Lon, proj.Lat, proj.Lon) <= tolM {
				// same occurrence seen from both segments sharing a vertex
				continue
			}
		}
		positions = append(positions, LinePosition{Point: proj, SegIdx: i, DistM: dist})
	}
	if len(positions) == 0 {
		positions = append(positions, ClosestPositionOnLine(line, p))
	}
	return positions
}

type lineCut struct {
	segIdx int
	// meters from the segment start to the cut point, orders cuts that
	// share a segment
	alongM float64
	point  datastructure.Coordinate
}

// SplitLineAtPoints cuts a line at every given point, returning the
// ordered pieces. cut points are projected onto the line first, so points
// a few float-ulps off the line still cut cleanly. cuts coinciding with
// the line ends produce no empty pieces.
func SplitLineAtPoints(line []datastructure.Coordinate, points []datastructure.Coordinate) [][]datastructure.Coordinate {
	if len(points) == 0 || len(line) < 2 {
		return [][]datastructure.Coordinate{line}
	}

	cuts := make([]lineCut, 0, len(points))
	for _, p := range points {
		// a self-intersection point is traversed twice, cut at every
		// occurrence along the line
		for _, pos := range positionsOnLine(line, p, onLineToleranceM) {
			if pos.Point.SamePosition(line[0]) || pos.Point.SamePosition(line[len(line)-1]) {
				continue
			}
			cuts = append(cuts, lineCut{
				segIdx: pos.SegIdx,
				alongM: HaversineDistanceM(line[pos.SegIdx].Lat, line[pos.SegIdx].Lon,
					pos.Point.Lat, pos.Point.Lon),
				point: pos.Point,
			})
		}
	}
	if len(cuts) == 0 {
		return [][]datastructure.Coordinate{line}
	}

	sort.Slice(cuts, func(i, j int) bool {
		if cuts[i].segIdx != cuts[j].segIdx {
			return cuts[i].segIdx < cuts[j].segIdx
		}
		return cuts[i].alongM < cuts[j].alongM
	})

	pieces := make([][]datastructure.Coordinate, 0, len(cuts)+1)
	current := []datastructure.Coordinate{line[0]}
	cutIdx := 0

	for i := 0; i < len(line)-1; i++ {
		for cutIdx < len(cuts) && cuts[cutIdx].segIdx == i {
			cut := cuts[cutIdx]
			cutIdx++
			if cut.point.SamePosition(current[len(current)-1]) {
				// cut exactly at an existing vertex, close the piece there
				if len(current) >= 2 {
					pieces = append(pieces, current)
					current = []datastructure.Coordinate{cut.point}
				}
				continue
			}
			current = append(current, cut.point)
			pieces = append(pieces, current)
			current = []datastructure.Coordinate{cut.point}
		}
		next := line[i+1]
		if !next.SamePosition(current[len(current)-1]) {
			current = append(current, next)
		}
	}
	if len(current) >= 2 {
		pieces = append(pieces, current)
	}
	return pieces
}
