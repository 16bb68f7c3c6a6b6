// Package score combines urgency, compliance, distance and quality
// sub-scores into a single bounded composite score.
package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/plutoskio/BDD-grandir2.0/internal/config"
)

// ErrInvalidConfig marks a scoring configuration rejected before any
// scoring began. Silent misweighting would corrupt every score, so a bad
// config fails the whole ranking request.
var ErrInvalidConfig = eris.New("score: invalid configuration")

// Named fallback policies for absent inputs.
const (
	FallbackNeutral   = "neutral"
	FallbackWorst     = "worst"
	FallbackBest      = "best"
	FallbackUndefined = "undefined"
)

// Distance transform curves.
const (
	CurveStep   = "step"
	CurveLinear = "linear"
	CurveExp    = "exp"
)

// weightSumTolerance is the allowed floating-point slack when checking
// that the four weights sum to 1.0.
const weightSumTolerance = 1e-6

// DefaultScoringConfig returns the documented default configuration:
// distance 0.30, urgency 0.30, compliance 0.20, quality 0.20, stepped
// distance tiers, neutral fallbacks.
func DefaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		DistanceWeight:   0.30,
		UrgencyWeight:    0.30,
		ComplianceWeight: 0.20,
		QualityWeight:    0.20,
		Urgency: config.UrgencyWeights{
			Red:     1.0,
			Orange:  0.66,
			Green:   0.33,
			Unknown: 0.0,
		},
		Distance: config.DistanceTransform{
			Curve:          CurveStep,
			NearKM:         3,
			MidKM:          10,
			FarKM:          20,
			CutoffKM:       30,
			HalfDistanceKM: 10,
			Floor:          0,
		},
		DistanceFallback: FallbackNeutral,
		QualityFallback:  FallbackNeutral,
	}
}

// Validate checks a scoring configuration. All failures are collected
// into a single ErrInvalidConfig.
func Validate(c config.ScoringConfig) error {
	var errs []string

	weights := map[string]float64{
		"distance_weight":   c.DistanceWeight,
		"urgency_weight":    c.UrgencyWeight,
		"compliance_weight": c.ComplianceWeight,
		"quality_weight":    c.QualityWeight,
	}
	for name, w := range weights {
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Sprintf("%s must be in [0,1], got %v", name, w))
		}
	}

	sum := c.DistanceWeight + c.UrgencyWeight + c.ComplianceWeight + c.QualityWeight
	if math.Abs(sum-1.0) > weightSumTolerance {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %v", sum))
	}

	tiers := map[string]float64{
		"urgency.red":     c.Urgency.Red,
		"urgency.orange":  c.Urgency.Orange,
		"urgency.green":   c.Urgency.Green,
		"urgency.unknown": c.Urgency.Unknown,
	}
	for name, w := range tiers {
		if w < 0 || w > 1 {
			errs = append(errs, fmt.Sprintf("%s must be in [0,1], got %v", name, w))
		}
	}

	switch c.Distance.Curve {
	case CurveStep:
		if !(c.Distance.NearKM > 0 && c.Distance.NearKM < c.Distance.MidKM && c.Distance.MidKM < c.Distance.FarKM) {
			errs = append(errs, "distance step tiers must satisfy 0 < near_km < mid_km < far_km")
		}
	case CurveLinear:
		if c.Distance.CutoffKM <= 0 {
			errs = append(errs, "distance cutoff_km must be positive")
		}
	case CurveExp:
		if c.Distance.HalfDistanceKM <= 0 {
			errs = append(errs, "distance half_distance_km must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown distance curve %q", c.Distance.Curve))
	}
	if c.Distance.Floor < 0 || c.Distance.Floor > 1 {
		errs = append(errs, fmt.Sprintf("distance floor must be in [0,1], got %v", c.Distance.Floor))
	}

	switch c.DistanceFallback {
	case FallbackNeutral, FallbackWorst, FallbackBest, FallbackUndefined:
	default:
		errs = append(errs, fmt.Sprintf("unknown distance_fallback %q", c.DistanceFallback))
	}
	switch c.QualityFallback {
	case FallbackNeutral, FallbackWorst, FallbackBest:
	default:
		errs = append(errs, fmt.Sprintf("unknown quality_fallback %q", c.QualityFallback))
	}

	if len(errs) > 0 {
		return eris.Wrap(ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
