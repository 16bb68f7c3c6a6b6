package score

import (
	"math"

	"github.com/plutoskio/BDD-grandir2.0/internal/config"
	"github.com/plutoskio/BDD-grandir2.0/internal/model"
)

// Aggregator computes composite scores from a validated configuration.
type Aggregator struct {
	cfg config.ScoringConfig
}

// New validates the configuration and returns an Aggregator. A rejected
// configuration is ErrInvalidConfig.
func New(cfg config.ScoringConfig) (*Aggregator, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return &Aggregator{cfg: cfg}, nil
}

// Config returns the configuration the aggregator was built with.
func (a *Aggregator) Config() config.ScoringConfig { return a.cfg }

// Inputs are the per-pair facts the aggregator scores. DistanceKM and
// Quality are nil when the upstream data could not resolve them.
type Inputs struct {
	Urgency    model.Urgency
	Qualified  bool
	DistanceKM *float64
	Quality    *float64 // [0,100]
}

// Result carries the composite score and every sub-score, so a caller
// persisting a ranking can explain why a rank was assigned. Composite is
// nil when distance was absent and the configured policy leaves the
// score undefined.
type Result struct {
	Composite *float64 `json:"composite,omitempty"` // [0,100]

	// Sub-scores, each in [0,1].
	DistanceScore   float64 `json:"distance_score"`
	UrgencyScore    float64 `json:"urgency_score"`
	ComplianceScore float64 `json:"compliance_score"`
	QualityScore    float64 `json:"quality_score"`

	// Fallback flags record that an absent input was substituted.
	DistanceFellBack bool `json:"distance_fell_back,omitempty"`
	QualityFellBack  bool `json:"quality_fell_back,omitempty"`
}

// Score computes the weighted composite. The output is clamped to
// [0,100] after weighting to guard against configuration drift, and
// rounded to two decimals.
func (a *Aggregator) Score(in Inputs) Result {
	var r Result

	r.UrgencyScore = a.UrgencyWeight(in.Urgency)
	if in.Qualified {
		r.ComplianceScore = 1.0
	}

	switch {
	case in.DistanceKM != nil:
		r.DistanceScore = a.DistanceScore(*in.DistanceKM)
	case a.cfg.DistanceFallback == FallbackUndefined:
		// No distance and no substitute: the composite is undefined.
		r.DistanceFellBack = true
	default:
		r.DistanceScore = fallbackValue(a.cfg.DistanceFallback)
		r.DistanceFellBack = true
	}

	if in.Quality != nil {
		r.QualityScore = clamp01(*in.Quality / 100)
	} else {
		r.QualityScore = fallbackValue(a.cfg.QualityFallback)
		r.QualityFellBack = true
	}

	if in.DistanceKM == nil && a.cfg.DistanceFallback == FallbackUndefined {
		return r
	}

	weighted := a.cfg.DistanceWeight*r.DistanceScore +
		a.cfg.UrgencyWeight*r.UrgencyScore +
		a.cfg.ComplianceWeight*r.ComplianceScore +
		a.cfg.QualityWeight*r.QualityScore

	composite := math.Round(clamp01(weighted)*100*100) / 100
	r.Composite = &composite
	return r
}

// UrgencyWeight maps an urgency tier to its configured sub-score.
func (a *Aggregator) UrgencyWeight(u model.Urgency) float64 {
	switch u {
	case model.UrgencyRed:
		return a.cfg.Urgency.Red
	case model.UrgencyOrange:
		return a.cfg.Urgency.Orange
	case model.UrgencyGreen:
		return a.cfg.Urgency.Green
	default:
		return a.cfg.Urgency.Unknown
	}
}

// DistanceScore applies the configured decreasing transform to a
// distance in kilometers.
func (a *Aggregator) DistanceScore(km float64) float64 {
	if km < 0 {
		km = 0
	}
	d := a.cfg.Distance
	switch d.Curve {
	case CurveLinear:
		return math.Max(d.Floor, clamp01(1-km/d.CutoffKM))
	case CurveExp:
		return math.Max(d.Floor, math.Pow(2, -km/d.HalfDistanceKM))
	default: // CurveStep
		switch {
		case km < d.NearKM:
			return 1.0
		case km < d.MidKM:
			return 0.8
		case km < d.FarKM:
			return 0.5
		default:
			return d.Floor
		}
	}
}

func fallbackValue(policy string) float64 {
	switch policy {
	case FallbackWorst:
		return 0.0
	case FallbackBest:
		return 1.0
	default: // FallbackNeutral
		return 0.5
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
