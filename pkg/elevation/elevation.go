package elevation

import (
	"context"
	"errors"
	"math"

	"github.com/openscenic/trailnet/pkg/datastructure"
)

// ErrNoElevationData elevation is required. a segment with no coverage is
// a data-quality failure, never silently zeroed.
var ErrNoElevationData = errors.New("no elevation data available for coordinate")

type Profile struct {
	GainM  float64
	LossM  float64
	MinEle float64
	MaxEle float64
	AvgEle float64
}

// Service annotates a 2D line with elevations. consumed by the normalizer
// and the splitter whenever a geometry changes.
type Service interface {
	AnnotateLine(ctx context.Context, line []datastructure.Coordinate) ([]datastructure.Coordinate, Profile, error)
}

// ComputeProfile derives gain/loss/min/max/avg from an annotated line.
func ComputeProfile(line []datastructure.Coordinate) Profile {
	if len(line) == 0 {
		return Profile{}
	}
	p := Profile{
		MinEle: math.MaxFloat64,
		MaxEle: -math.MaxFloat64,
	}
	sum := 0.0
	for i, c := range line {
		if c.Ele < p.MinEle {
			p.MinEle = c.Ele
		}
		if c.Ele > p.MaxEle {
			p.MaxEle = c.Ele
		}
		sum += c.Ele
		if i == 0 {
			continue
		}
		diff := c.Ele - line[i-1].Ele
		if diff > 0 {
			p.GainM += diff
		} else {
			p.LossM += -diff
		}
	}
	p.AvgEle = sum / float64(len(line))
	return p
}
