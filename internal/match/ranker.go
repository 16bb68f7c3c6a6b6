// Package match orchestrates qualification, distance and composite
// scoring across the candidate×posting space and emits a ranked result.
package match

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plutoskio/BDD-grandir2.0/internal/config"
	"github.com/plutoskio/BDD-grandir2.0/internal/geo"
	"github.com/plutoskio/BDD-grandir2.0/internal/model"
	"github.com/plutoskio/BDD-grandir2.0/internal/requirement"
	"github.com/plutoskio/BDD-grandir2.0/internal/score"
)

// Match is one scored (candidate, posting) pair with every derived field
// needed to audit its rank.
type Match struct {
	CandidateID string        `json:"candidate_id"`
	PostingID   string        `json:"posting_id"`
	Nursery     string        `json:"nursery,omitempty"`
	Urgency     model.Urgency `json:"urgency"`

	Qualified  bool     `json:"qualified"`
	DistanceKM *float64 `json:"distance_km,omitempty"`

	Score score.Result `json:"score"`

	// Warnings records isolated per-pair faults (bad coordinates) that
	// degraded this pair's inputs without aborting the batch.
	Warnings []string `json:"warnings,omitempty"`
}

// Request is one ranking call: the caller decides the candidate set, the
// posting set and the requirement formulas, plus optional output filters.
type Request struct {
	Candidates   []model.Candidate
	Postings     []model.Posting
	Requirements map[string]requirement.Formula // role ID -> formula

	MinScore      *float64 // drop pairs scoring below this, after scoring
	MaxDistanceKM *float64 // drop pairs farther than this (absent distances kept)
	Top           int      // truncate to the N best pairs; 0 = all
}

// Result is an ordered, reproducible ranking. Matches are sorted by
// composite score descending with the deterministic tie-break chain.
type Result struct {
	ID          string               `json:"id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Scoring     config.ScoringConfig `json:"scoring"`
	Matches     []Match              `json:"matches"`
}

// Ranker scores and orders candidate×posting pairs.
type Ranker struct {
	agg     *score.Aggregator
	workers int
}

// NewRanker builds a Ranker. The scoring configuration is validated here:
// a bad configuration rejects every future request up front rather than
// corrupting scores. Workers <= 0 falls back to GOMAXPROCS.
func NewRanker(cfg config.ScoringConfig, workers int) (*Ranker, error) {
	agg, err := score.New(cfg)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ranker{agg: agg, workers: workers}, nil
}

// Rank scores every (candidate, open posting) pair and returns them
// ordered. Closed postings are filtered before scoring. Per-pair faults
// are isolated into pair warnings; only context cancellation aborts.
func (r *Ranker) Rank(ctx context.Context, req Request) (*Result, error) {
	log := zap.L().With(zap.String("component", "ranker"))

	open := make([]model.Posting, 0, len(req.Postings))
	for _, p := range req.Postings {
		if p.IsOpen() {
			open = append(open, p)
		}
	}

	log.Info("ranking",
		zap.Int("candidates", len(req.Candidates)),
		zap.Int("postings_open", len(open)),
		zap.Int("postings_closed", len(req.Postings)-len(open)),
	)

	// Pre-sized result slice: each pair writes only its own slot, so the
	// parallel phase has no shared mutable state.
	matches := make([]Match, len(req.Candidates)*len(open))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for ci, cand := range req.Candidates {
		for pi, post := range open {
			idx := ci*len(open) + pi
			cand, post := cand, post
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				matches[idx] = r.scorePair(cand, post, req.Requirements[post.RoleID])
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "match: rank")
	}

	matches = applyFilters(matches, req)

	// Single sequential sort after the parallel phase keeps the
	// tie-break chain deterministic.
	sort.Slice(matches, func(i, j int) bool { return less(matches[i], matches[j]) })

	if req.Top > 0 && len(matches) > req.Top {
		matches = matches[:req.Top]
	}

	return &Result{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Scoring:     r.agg.Config(),
		Matches:     matches,
	}, nil
}

// scorePair derives qualification, distance and the composite score for
// one pair. It never fails: coordinate faults degrade to an absent
// distance plus a warning.
func (r *Ranker) scorePair(cand model.Candidate, post model.Posting, formula requirement.Formula) Match {
	m := Match{
		CandidateID: cand.ID,
		PostingID:   post.ID,
		Nursery:     post.Nursery,
		Urgency:     post.Urgency,
		Qualified:   requirement.IsQualified(cand.Categories, formula),
	}

	if cand.Coordinate != nil && post.Coordinate != nil {
		km, err := geo.Haversine(*cand.Coordinate, *post.Coordinate)
		if err != nil {
			m.Warnings = append(m.Warnings, fmt.Sprintf("distance unavailable: %v", err))
		} else {
			m.DistanceKM = &km
		}
	}

	m.Score = r.agg.Score(score.Inputs{
		Urgency:    post.Urgency,
		Qualified:  m.Qualified,
		DistanceKM: m.DistanceKM,
		Quality:    cand.QualityScore,
	})
	return m
}

func applyFilters(matches []Match, req Request) []Match {
	if req.MinScore == nil && req.MaxDistanceKM == nil {
		return matches
	}
	kept := matches[:0]
	for _, m := range matches {
		if req.MinScore != nil && (m.Score.Composite == nil || *m.Score.Composite < *req.MinScore) {
			continue
		}
		if req.MaxDistanceKM != nil && m.DistanceKM != nil && *m.DistanceKM > *req.MaxDistanceKM {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

// less is the total order on matches: composite score descending, then
// urgency tier, qualification, distance ascending, candidate ID, and
// finally posting ID so no two distinct pairs ever compare equal.
func less(a, b Match) bool {
	as, bs := compositeOf(a), compositeOf(b)
	if as != bs {
		return as > bs
	}
	if a.Urgency.Rank() != b.Urgency.Rank() {
		return a.Urgency.Rank() < b.Urgency.Rank()
	}
	if a.Qualified != b.Qualified {
		return a.Qualified
	}
	ad, bd := distanceOf(a), distanceOf(b)
	if ad != bd {
		return ad < bd
	}
	if a.CandidateID != b.CandidateID {
		return a.CandidateID < b.CandidateID
	}
	return a.PostingID < b.PostingID
}

// compositeOf treats an undefined composite as below every defined one.
func compositeOf(m Match) float64 {
	if m.Score.Composite == nil {
		return -1
	}
	return *m.Score.Composite
}

// distanceOf treats an absent distance as farther than every known one.
func distanceOf(m Match) float64 {
	if m.DistanceKM == nil {
		return math.MaxFloat64
	}
	return *m.DistanceKM
}
