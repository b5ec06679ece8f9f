// Package normalizer is the first pipeline stage: per-trail cleanup of
// raw geometry before any topology work. removes consecutive duplicate
// coordinates and decomposes self-intersecting trails into simple
// sub-trails through an ordered list of fallback strategies.
package normalizer

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
	Input   int
	Output  int
	Deduped int
	Split   int
	Flagged int
	Dropped int

	Failures []Failure
}

func (r *Report) addFailure(t datastructure.Trail, reason string) {
	r.Dropped++
	log.Printf("normalizer: dropping trail %s (%s): %s", t.Name, t.ID, reason)
	if len(r.Failures) < maxFailureSamples {
		r.Failures = append(r.Failures, Failure{TrailID: t.ID, Name: t.Name, Reason: reason})
	}
}

// splitStrategy one attempt at decomposing a non-simple line. tried in
// order, first success wins.
type splitStrategy interface {
	name() string
	attempt(line []datastructure.Coordinate) ([][]datastructure.Coordinate, bool)
}

type Normalizer struct {
	cfg        config.Config
	elev       elevation.Service
	strategies []splitStrategy
}

func New(cfg config.Config, elev elevation.Service) *Normalizer {
	return &Normalizer{
		cfg:  cfg,
		elev: elev,
		strategies: []splitStrategy{
			selfSplitStrategy{},
			simplifyStrategy{thresholdM: cfg.SimplifyThresholdM},
			renodeStrategy{},
		},
	}
}

// Normalize cleans every trail. a trail failing normalization is dropped
// from the output and recorded, the batch never aborts for one bad trail.
func (n *Normalizer) Normalize(ctx context.Context, trails []datastructure.Trail) ([]datastructure.Trail, Report, error) {
	report := Report{Input: len(trails)}
	out := make([]datastructure.Trail, 0, len(trails))

	for _, trail := range trails {
		select {
		case <-ctx.Done():
			return nil, report, ctx.Err()
		default:
		}

		line, removed := dedupeConsecutive(trail.Geometry)
		if removed > 0 {
			report.Deduped++
		}
		if len(line) < 2 {
			report.addFailure(trail, "fewer than 2 distinct points")
			continue
		}
		if geo.LineLengthKm(line) < n.cfg.MinTrailLengthKm {
			report.addFailure(trail, fmt.Sprintf("below minimum trail length %.3fkm", n.cfg.MinTrailLengthKm))
			continue
		}

		if geo.IsSimple(line) {
			cleaned, err := n.finishTrail(ctx, trail, line, -1, removed > 0, false)
			if err != nil {
				report.addFailure(trail, err.Error())
				continue
			}
			out = append(out, cleaned)
			continue
		}

		segments, strategyName := n.decompose(line)
		if segments == nil {
			// last resort: keep the original geometry unsplit, flagged.
			// never silently drop a trail over self-intersection.
			flagged, err := n.finishTrail(ctx, trail, line, -1, removed > 0, true)
			if err != nil {
				report.addFailure(trail, err.Error())
				continue
			}
			report.Flagged++
			log.Printf("normalizer: trail %s (%s) kept non-simple, all strategies failed", trail.Name, trail.ID)
			out = append(out, flagged)
			continue
		}

		log.Printf("normalizer: trail %s split into %d segments via %s", trail.Name, len(segments), strategyName)
		report.Split++
		childIdx := 0
		for _, segment := range segments {
			if reason, ok := n.acceptSegment(segment); !ok {
				log.Printf("normalizer: discarding segment %d of trail %s: %s", childIdx, trail.Name, reason)
				continue
			}
			child, err := n.finishTrail(ctx, trail, segment, childIdx, true, false)
			if err != nil {
				report.addFailure(trail, err.Error())
				continue
			}
			out = append(out, child)
			childIdx++
		}
	}

	report.Output = len(out)
	log.Printf("normalizer: %d in / %d out / %d dropped / %d split / %d flagged",
		report.Input, report.Output, report.Dropped, report.Split, report.Flagged)
	return out, report, nil
}

// decompose runs the strategy cascade. nil segments means every strategy
// failed.
func (n *Normalizer) decompose(line []datastructure.Coordinate) ([][]datastructure.Coordinate, string) {
	for _, strategy := range n.strategies {
		if segments, ok := strategy.attempt(line); ok {
			return segments, strategy.name()
		}
	}
	return nil, ""
}

// acceptSegment validity for split products: >=2 points, distinct ends,
// above minimum length.
func (n *Normalizer) acceptSegment(segment []datastructure.Coordinate) (string, bool) {
	if len(segment) < 2 {
		return "fewer than 2 points", false
	}
	if segment[0].SamePosition(segment[len(segment)-1]) && len(segment) == 2 {
		return "zero-length segment", false
	}
	if geo.LineLengthKm(segment) < n.cfg.MinTrailLengthKm {
		return "below minimum trail length", false
	}
	return "", true
}

// finishTrail recomputes derived fields, re-annotating elevation when the
// geometry changed. childIdx >= 0 marks a split product and seeds its
// deterministic uuid; -1 keeps the trail's identity.
func (n *Normalizer) finishTrail(ctx context.Context, parent datastructure.Trail,
	line []datastructure.Coordinate, childIdx int, geometryChanged, flagged bool) (datastructure.Trail, error) {

	trail := parent
	trail.Geometry = line
	trail.FlaggedNotSimple = flagged

	if geometryChanged {
		annotated, profile, err := n.elev.AnnotateLine(ctx, line)
		if err != nil {
			return datastructure.Trail{}, fmt.Errorf("elevation annotation: %w", err)
		}
		trail.Geometry = annotated
		trail.GainM = profile.GainM
		trail.LossM = profile.LossM
		trail.MinEle = profile.MinEle
		trail.MaxEle = profile.MaxEle
		trail.AvgEle = profile.AvgEle
	}

	trail.LengthKm = geo.LineLengthKm(trail.Geometry)
	trail.Bound = datastructure.BoundFromLine(trail.Geometry)

	if childIdx >= 0 {
		trail.OriginalTrailID = parent.ParentID()
		trail.ID = uuid.NewSHA1(parent.ID, []byte(fmt.Sprintf("normalized-%d", childIdx)))
	}
	return trail, nil
}

// dedupeConsecutive drops vertices equal to their predecessor.
func dedupeConsecutive(line []datastructure.Coordinate) ([]datastructure.Coordinate, int) {
	if len(line) == 0 {
		return line, 0
	}
	out := make([]datastructure.Coordinate, 0, len(line))
	out = append(out, line[0])
	removed := 0
	for i := 1; i < len(line); i++ {
		if line[i].SamePosition(out[len(out)-1]) {
			removed++
			continue
		}
		out = append(out, line[i])
	}
	return out, removed
}
