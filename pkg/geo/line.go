package geo

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/openscenic/trailnet/pkg/datastructure"
)

// LineLengthKm sum of haversine hops along the line.
func LineLengthKm(line []datastructure.Coordinate) float64 {
	total := 0.0
	for i := 0; i < len(line)-1; i++ {
		total += CalculateHaversineDistance(line[i].Lat, line[i].Lon,
			line[i+1].Lat, line[i+1].Lon)
	}
	return total
}

// ProjectPointToSegment projects p onto the great-circle segment (a, b).
func ProjectPointToSegment(a, b, p datastructure.Coordinate) datastructure.Coordinate {
	aS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(a.Lat, a.Lon))
	bS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(b.Lat, b.Lon))
	pS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon))
	projection := s2.Project(pS2, aS2, bS2)
	ll := s2.LatLngFromPoint(projection)

	proj := datastructure.NewCoordinate(ll.Lat.Degrees(), ll.Lng.Degrees())
	proj.Ele = interpolateEle(a, b, proj)
	return proj
}

// interpolateEle linear elevation along segment (a, b) at point c.
func interpolateEle(a, b, c datastructure.Coordinate) float64 {
	segLen := CalculateHaversineDistance(a.Lat, a.Lon, b.Lat, b.Lon)
	if segLen == 0 {
		return a.Ele
	}
	t := CalculateHaversineDistance(a.Lat, a.Lon, c.Lat, c.Lon) / segLen
	if t > 1 {
		t = 1
	}
	return a.Ele + t*(b.Ele-a.Ele)
}

// PointLinePerpendicularDistance distance in meters from p to its
// projection on segment (a, b).
func PointLinePerpendicularDistance(a, b, p datastructure.Coordinate) float64 {
	proj := ProjectPointToSegment(a, b, p)
	return HaversineDistanceM(p.Lat, p.Lon, proj.Lat, proj.Lon)
}

// LinePosition is the closest point of a line to some query point.
type LinePosition struct {
	Point datastructure.Coordinate
	// segment index, Point lies on line[SegIdx]..line[SegIdx+1]
	SegIdx int
	// fraction of total line length at Point, in [0, 1]
	Fraction float64
	// meters between the query point and Point
	DistM float64
}

// ClosestPositionOnLine scans every segment for the closest projection of p.
func ClosestPositionOnLine(line []datastructure.Coordinate, p datastructure.Coordinate) LinePosition {
	best := LinePosition{DistM: math.MaxFloat64}
	lengthBefore := 0.0
	totalLength := LineLengthKm(line)

	for i := 0; i < len(line)-1; i++ {
		proj := ProjectPointToSegment(line[i], line[i+1], p)
		dist := HaversineDistanceM(p.Lat, p.Lon, proj.Lat, proj.Lon)
		if dist < best.DistM {
			best.Point = proj
			best.SegIdx = i
			best.DistM = dist
			if totalLength > 0 {
				best.Fraction = (lengthBefore +
					CalculateHaversineDistance(line[i].Lat, line[i].Lon, proj.Lat, proj.Lon)) / totalLength
			}
		}
		lengthBefore += CalculateHaversineDistance(line[i].Lat, line[i].Lon,
			line[i+1].Lat, line[i+1].Lon)
	}
	return best
}

// SegmentIntersection planar parametric intersection of segments
// (a1, a2) and (b1, b2) in (lon, lat) space. good enough at trail scale,
// where segments span a few hundred meters at most.
func SegmentIntersection(a1, a2, b1, b2 datastructure.Coordinate) (datastructure.Coordinate, bool) {
	d1x := a2.Lon - a1.Lon
	d1y := a2.Lat - a1.Lat
	d2x := b2.Lon - b1.Lon
	d2y := b2.Lat - b1.Lat

	denom := d1x*d2y - d1y*d2x
	if denom == 0 {
		// parallel or collinear, no single crossing point
		return datastructure.Coordinate{}, false
	}

	t := ((b1.Lon-a1.Lon)*d2y - (b1.Lat-a1.Lat)*d2x) / denom
	u := ((b1.Lon-a1.Lon)*d1y - (b1.Lat-a1.Lat)*d1x) / denom

	if t < 0 || t > 1 || u < 0 || u > 1 {
		return datastructure.Coordinate{}, false
	}

	cross := datastructure.NewCoordinate(a1.Lat+t*d1y, a1.Lon+t*d1x)
	cross.Ele = a1.Ele + t*(a2.Ele-a1.Ele)
	return cross, true
}

// LineIntersections all crossing points between two lines. line overlaps
// (collinear segments) contribute nothing.
func LineIntersections(lineA, lineB []datastructure.Coordinate) []datastructure.Coordinate {
	crossings := make([]datastructure.Coordinate, 0)
	for i := 0; i < len(lineA)-1; i++ {
		for j := 0; j < len(lineB)-1; j++ {
			if p, ok := SegmentIntersection(lineA[i], lineA[i+1], lineB[j], lineB[j+1]); ok {
				crossings = append(crossings, p)
			}
		}
	}
	return dedupePoints(crossings)
}

// SelfIntersections crossing points of a line with itself. adjacent
// segments always share a vertex and are skipped.
func SelfIntersections(line []datastructure.Coordinate) []datastructure.Coordinate {
	crossings := make([]datastructure.Coordinate, 0)
	for i := 0; i < len(line)-1; i++ {
		for j := i + 2; j < len(line)-1; j++ {
			if i == 0 && j == len(line)-2 &&
				line[0].SamePosition(line[len(line)-1]) {
				// closed ring, shared first/last vertex is not a crossing
				continue
			}
			if p, ok := SegmentIntersection(line[i], line[i+1], line[j], line[j+1]); ok {
				if p.SamePosition(line[i+1]) && j == i+2 {
					// shared vertex of segments i and i+2's predecessor
					continue
				}
				crossings = append(crossings, p)
			}
		}
	}
	return dedupePoints(crossings)
}

// IsSimple reports whether the line has no self-intersections.
func IsSimple(line []datastructure.Coordinate) bool {
	return len(SelfIntersections(line)) == 0
}

func dedupePoints(points []datastructure.Coordinate) []datastructure.Coordinate {
	out := points[:0]
	for _, p := range points {
		dup := false
		for _, q := range out {
			if p.SamePosition(q) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}
