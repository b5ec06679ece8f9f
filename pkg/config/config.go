package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// Config is constructed once at process start and passed by value into
// every component constructor. no mutable singleton.
type Config struct {
	// geometry normalization
	MinTrailLengthKm   float64 `validate:"gt=0"`
	SimplifyThresholdM float64 `validate:"gt=0"`

	// intersection splitting
	TIntersectionToleranceM float64 `validate:"gt=0"`
	// closest points within this fraction of either line end are treated
	// as endpoint-to-endpoint cases, not true T intersections
	TEndExclusionPct  float64 `validate:"gt=0,lt=0.5"`
	SnapToleranceM    float64 `validate:"gt=0"`
	MinSegmentLengthM float64 `validate:"gt=0"`

	// network building
	VertexMergeToleranceM float64 `validate:"gt=0"`

	// graph integrity repair
	Degree0SnapToleranceM    float64 `validate:"gt=0"`
	Degree0ProjectToleranceM float64 `validate:"gt=0"`
	ShortConnectorMaxM       float64 `validate:"gt=0"`
	BypassContainToleranceM  float64 `validate:"gt=0"`
	BypassMaxDepth           int     `validate:"gte=2,lte=16"`

	// route search
	MaxAnchors             int     `validate:"gt=0"`
	KShortestPaths         int     `validate:"gt=0"`
	MaxRoutesPerQuery      int     `validate:"gt=0"`
	MaxCandidatesPerAnchor int     `validate:"gt=0"`
	MaxExploredNodes       int     `validate:"gt=0"`
	DistanceWindowLowPct   float64 `validate:"gt=0,lt=1"`
	DistanceWindowHighPct  float64 `validate:"gt=0,lte=1"`
	DistanceTolerancePct   float64 `validate:"gt=0"`
	ElevationTolerancePct  float64 `validate:"gt=0"`

	// batched region processing
	ChunkH3Resolution int `validate:"gte=0,lte=15"`
	ChunkWorkers      int `validate:"gt=0"`
}

// NewConfig defaults validated against real CO trail data.
func NewConfig() Config {
	return Config{
		MinTrailLengthKm:   0.01,
		SimplifyThresholdM: 2.0,

		TIntersectionToleranceM: 3.0,
		TEndExclusionPct:        0.01,
		SnapToleranceM:          1.5,
		MinSegmentLengthM:       5.0,

		VertexMergeToleranceM: 1.0,

		Degree0SnapToleranceM:    2.0,
		Degree0ProjectToleranceM: 10.0,
		ShortConnectorMaxM:       15.0,
		BypassContainToleranceM:  1.0,
		BypassMaxDepth:           8,

		MaxAnchors:             10,
		KShortestPaths:         4,
		MaxRoutesPerQuery:      20,
		MaxCandidatesPerAnchor: 200,
		MaxExploredNodes:       200000,
		DistanceWindowLowPct:   0.2,
		DistanceWindowHighPct:  0.8,
		DistanceTolerancePct:   0.2,
		ElevationTolerancePct:  0.3,

		ChunkH3Resolution: 7,
		ChunkWorkers:      4,
	}
}

// Validate returns one error describing every invalid field.
func (c Config) Validate() error {
	validate := validator.New()
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		msgs = append(msgs, fieldErr.Translate(trans))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
