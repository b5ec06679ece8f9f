package search

import (
	"context"
	"math"

	"github.com/openscenic/trailnet/pkg/datastructure"
)

// Scorer ranks a batch of candidates, one score per candidate, higher is
// better. path enumeration never looks at the weights, swapping in a
// learned model is a constructor change only.
type Scorer interface {
	Score(ctx context.Context, query Query, candidates []datastructure.RouteCandidate) []float64
}

// HeuristicScorer rewards closeness to the caller's elevation gain rate,
// lightly rewards singletrack share and trail diversity, and penalizes
// paved share.
type HeuristicScorer struct {
	GainRateWeight    float64
	SingletrackWeight float64
	DiversityWeight   float64
	PavedPenalty      float64

	// TrailCount at or above this saturates the diversity reward
	DiversityCap int
}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{
		GainRateWeight:    1.0,
		SingletrackWeight: 0.25,
		DiversityWeight:   0.15,
		PavedPenalty:      0.5,
		DiversityCap:      5,
	}
}

func (s *HeuristicScorer) Score(_ context.Context, query Query,
	candidates []datastructure.RouteCandidate) []float64 {

	targetRate := 0.0
	if query.TargetDistKm > 0 {
		targetRate = query.TargetGainM / query.TargetDistKm
	}

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		score := 0.0

		if targetRate > 0 && c.DistKm > 0 {
			rate := c.GainM / c.DistKm
			score += s.GainRateWeight / (1 + math.Abs(rate-targetRate)/targetRate)
		}
		score += s.SingletrackWeight * c.SingletrackPct
		if s.DiversityCap > 0 {
			diversity := math.Min(float64(c.TrailCount), float64(s.DiversityCap)) / float64(s.DiversityCap)
			score += s.DiversityWeight * diversity
		}
		score -= s.PavedPenalty * c.PavedPct

		scores[i] = score
	}
	return scores
}
