package normalizer

import (
	"github.com/openscenic/trailnet/pkg/datastructure"
	"github.com/openscenic/trailnet/pkg/geo"
)

// selfSplitStrategy splits the geometry against its own intersection
// points. succeeds only when every resulting piece is simple.
type selfSplitStrategy struct{}

func (selfSplitStrategy) name() string { return "self-intersection-split" }

func (selfSplitStrategy) attempt(line []datastructure.Coordinate) ([][]datastructure.Coordinate, bool) {
	crossings := geo.SelfIntersections(line)
	if len(crossings) == 0 {
		return nil, false
	}
	pieces := geo.SplitLineAtPoints(line, crossings)
	if len(pieces) < 2 {
		return nil, false
	}
	for _, piece := range pieces {
		if !geo.IsSimple(piece) {
			return nil, false
		}
	}
	return pieces, true
}

// simplifyStrategy topology-preserving simplification, then re-test for
// simplicity. tiny spikes and switchback artifacts often disappear under
// a small threshold.
type simplifyStrategy struct {
	thresholdM float64
}

func (simplifyStrategy) name() string { return "simplify-retest" }

func (s simplifyStrategy) attempt(line []datastructure.Coordinate) ([][]datastructure.Coordinate, bool) {
	simplified := geo.RamerDouglasPeucker(line, s.thresholdM)
	if len(simplified) < 2 || len(simplified) == len(line) {
		return nil, false
	}
	if !geo.IsSimple(simplified) {
		return nil, false
	}
	return [][]datastructure.Coordinate{simplified}, true
}

// renodeStrategy full re-noding: repeatedly split every piece at its
// self-intersections until all pieces are simple. bounded, each round
// strictly increases the piece count.
type renodeStrategy struct{}

func (renodeStrategy) name() string { return "renode" }

const maxRenodeRounds = 8

func (renodeStrategy) attempt(line []datastructure.Coordinate) ([][]datastructure.Coordinate, bool) {
	pending := [][]datastructure.Coordinate{line}
	simple := make([][]datastructure.Coordinate, 0)

	for round := 0; round < maxRenodeRounds && len(pending) > 0; round++ {
		next := make([][]datastructure.Coordinate, 0, len(pending))
		for _, piece := range pending {
			crossings := geo.SelfIntersections(piece)
			if len(crossings) == 0 {
				simple = append(simple, piece)
				continue
			}
			split := geo.SplitLineAtPoints(piece, crossings)
			if len(split) < 2 {
				// could not decompose further, give up on the whole line
				return nil, false
			}
			next = append(next, split...)
		}
		pending = next
	}
	if len(pending) > 0 {
		return nil, false
	}
	return simple, true
}
