package main

import (
	"context"

	"github.com/plutoskio/BDD-grandir2.0/internal/classify"
	"github.com/plutoskio/BDD-grandir2.0/internal/match"
	"github.com/plutoskio/BDD-grandir2.0/internal/model"
	"github.com/plutoskio/BDD-grandir2.0/internal/requirement"
	"github.com/plutoskio/BDD-grandir2.0/internal/store"
)

// engineInputs is everything one ranking run needs from the database,
// with diplomas already classified.
type engineInputs struct {
	Candidates   []model.Candidate
	Postings     []model.Posting
	Requirements map[string]requirement.Formula
}

// loadInputs pulls candidates, open postings and role requirements from
// the store and classifies each candidate's raw diploma labels.
func loadInputs(ctx context.Context, st store.Store, rules *classify.Ruleset) (*engineInputs, error) {
	candidates, err := st.ListCandidates(ctx, store.CandidateFilter{})
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		candidates[i].Categories = rules.ClassifyAll(candidates[i].RawDiplomas)
	}

	postings, err := st.ListPostings(ctx, store.PostingFilter{OnlyOpen: true})
	if err != nil {
		return nil, err
	}

	requirements, err := st.ListRequirements(ctx)
	if err != nil {
		return nil, err
	}

	return &engineInputs{
		Candidates:   candidates,
		Postings:     postings,
		Requirements: requirements,
	}, nil
}

func initRuleset() (*classify.Ruleset, error) {
	return classify.LoadOrDefault(cfg.Classifier.RulesPath)
}

func initRanker() (*match.Ranker, error) {
	return match.NewRanker(cfg.Scoring, cfg.Match.Workers)
}
