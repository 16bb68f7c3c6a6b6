package score

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plutoskio/BDD-grandir2.0/internal/config"
	"github.com/plutoskio/BDD-grandir2.0/internal/model"
)

func ptrFloat64(v float64) *float64 { return &v }

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	agg, err := New(DefaultScoringConfig())
	require.NoError(t, err)
	return agg
}

func TestScoreReferenceScenario(t *testing.T) {
	// Close red posting, qualified candidate with quality 80:
	// 0.30*1.0 + 0.30*1.0 + 0.20*1.0 + 0.20*0.8 = 0.96 -> 96.
	agg := newTestAggregator(t)

	r := agg.Score(Inputs{
		Urgency:    model.UrgencyRed,
		Qualified:  true,
		DistanceKM: ptrFloat64(1.4),
		Quality:    ptrFloat64(80),
	})

	require.NotNil(t, r.Composite)
	assert.InDelta(t, 96.0, *r.Composite, 0.001)
	assert.Equal(t, 1.0, r.DistanceScore)
	assert.Equal(t, 1.0, r.UrgencyScore)
	assert.Equal(t, 1.0, r.ComplianceScore)
	assert.InDelta(t, 0.8, r.QualityScore, 1e-9)
	assert.False(t, r.DistanceFellBack)
	assert.False(t, r.QualityFellBack)
}

func TestScoreWorstCase(t *testing.T) {
	agg := newTestAggregator(t)

	r := agg.Score(Inputs{
		Urgency:    model.UrgencyUnknown,
		Qualified:  false,
		DistanceKM: ptrFloat64(50),
		Quality:    ptrFloat64(0),
	})

	require.NotNil(t, r.Composite)
	assert.Equal(t, 0.0, *r.Composite)
}

func TestScoreBounds(t *testing.T) {
	agg := newTestAggregator(t)

	// Quality above scale is clamped, not amplified.
	r := agg.Score(Inputs{
		Urgency:    model.UrgencyRed,
		Qualified:  true,
		DistanceKM: ptrFloat64(0),
		Quality:    ptrFloat64(250),
	})
	require.NotNil(t, r.Composite)
	assert.LessOrEqual(t, *r.Composite, 100.0)
	assert.Equal(t, 1.0, r.QualityScore)
}

func TestScoreFallbacks(t *testing.T) {
	tests := []struct {
		name             string
		distanceFallback string
		wantDistance     float64
	}{
		{"neutral", FallbackNeutral, 0.5},
		{"worst", FallbackWorst, 0.0},
		{"best", FallbackBest, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultScoringConfig()
			cfg.DistanceFallback = tt.distanceFallback
			agg, err := New(cfg)
			require.NoError(t, err)

			r := agg.Score(Inputs{Urgency: model.UrgencyOrange, Qualified: true})
			require.NotNil(t, r.Composite)
			assert.Equal(t, tt.wantDistance, r.DistanceScore)
			assert.True(t, r.DistanceFellBack)
			assert.True(t, r.QualityFellBack)
		})
	}
}

func TestScoreUndefinedDistance(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.DistanceFallback = FallbackUndefined
	agg, err := New(cfg)
	require.NoError(t, err)

	r := agg.Score(Inputs{Urgency: model.UrgencyRed, Qualified: true})
	assert.Nil(t, r.Composite)
	assert.True(t, r.DistanceFellBack)
	// Sub-scores remain reported even when the composite is undefined.
	assert.Equal(t, 1.0, r.UrgencyScore)
	assert.Equal(t, 1.0, r.ComplianceScore)
}

func TestDistanceScoreStep(t *testing.T) {
	agg := newTestAggregator(t)

	tests := []struct {
		name string
		km   float64
		want float64
	}{
		{"inside near tier", 1.4, 1.0},
		{"just under near bound", 2.999, 1.0},
		{"at near bound", 3.0, 0.8},
		{"mid tier", 7, 0.8},
		{"at mid bound", 10.0, 0.5},
		{"far tier", 15, 0.5},
		{"at far bound", 20.0, 0.0},
		{"beyond", 100, 0.0},
		{"negative clamps to zero distance", -2, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, agg.DistanceScore(tt.km))
		})
	}
}

func TestDistanceScoreLinear(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.Distance.Curve = CurveLinear
	cfg.Distance.CutoffKM = 30
	agg, err := New(cfg)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, agg.DistanceScore(0), 1e-9)
	assert.InDelta(t, 0.5, agg.DistanceScore(15), 1e-9)
	assert.InDelta(t, 0.0, agg.DistanceScore(30), 1e-9)
	assert.InDelta(t, 0.0, agg.DistanceScore(60), 1e-9)
}

func TestDistanceScoreExp(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.Distance.Curve = CurveExp
	cfg.Distance.HalfDistanceKM = 10
	agg, err := New(cfg)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, agg.DistanceScore(0), 1e-9)
	assert.InDelta(t, 0.5, agg.DistanceScore(10), 1e-9)
	assert.InDelta(t, 0.25, agg.DistanceScore(20), 1e-9)
}

func TestUrgencyWeight(t *testing.T) {
	agg := newTestAggregator(t)

	assert.Equal(t, 1.0, agg.UrgencyWeight(model.UrgencyRed))
	assert.Equal(t, 0.66, agg.UrgencyWeight(model.UrgencyOrange))
	assert.Equal(t, 0.33, agg.UrgencyWeight(model.UrgencyGreen))
	assert.Equal(t, 0.0, agg.UrgencyWeight(model.UrgencyUnknown))
}

func TestValidateConfig(t *testing.T) {
	mutate := func(f func(*config.ScoringConfig)) config.ScoringConfig {
		cfg := DefaultScoringConfig()
		f(&cfg)
		return cfg
	}

	tests := []struct {
		name    string
		cfg     config.ScoringConfig
		wantErr string
	}{
		{"default is valid", DefaultScoringConfig(), ""},
		{"weights off by too much", mutate(func(c *config.ScoringConfig) { c.DistanceWeight = 0.5 }), "sum to 1.0"},
		{"negative weight", mutate(func(c *config.ScoringConfig) {
			c.DistanceWeight = -0.1
			c.UrgencyWeight = 0.7
		}), "distance_weight"},
		{"urgency tier out of range", mutate(func(c *config.ScoringConfig) { c.Urgency.Red = 1.5 }), "urgency.red"},
		{"bad step tiers", mutate(func(c *config.ScoringConfig) { c.Distance.MidKM = 2 }), "near_km < mid_km"},
		{"unknown curve", mutate(func(c *config.ScoringConfig) { c.Distance.Curve = "parabolic" }), "unknown distance curve"},
		{"linear needs cutoff", mutate(func(c *config.ScoringConfig) {
			c.Distance.Curve = CurveLinear
			c.Distance.CutoffKM = 0
		}), "cutoff_km"},
		{"exp needs half distance", mutate(func(c *config.ScoringConfig) {
			c.Distance.Curve = CurveExp
			c.Distance.HalfDistanceKM = 0
		}), "half_distance_km"},
		{"bad distance fallback", mutate(func(c *config.ScoringConfig) { c.DistanceFallback = "guess" }), "distance_fallback"},
		{"quality cannot be undefined", mutate(func(c *config.ScoringConfig) { c.QualityFallback = FallbackUndefined }), "quality_fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.UrgencyWeight = 0.9

	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidConfig))
}
