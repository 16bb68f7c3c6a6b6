// Package store supplies the persistence collaborators around the
// matching engine: candidates, role requirements and postings come in,
// ranking snapshots optionally go out. The engine itself stays pure; the
// store is the caller's side of that contract.
package store

import (
	"context"

	"github.com/plutoskio/BDD-grandir2.0/internal/match"
	"github.com/plutoskio/BDD-grandir2.0/internal/model"
	"github.com/plutoskio/BDD-grandir2.0/internal/requirement"
)

// CandidateFilter specifies criteria for listing candidates.
type CandidateFilter struct {
	IDs   []string `json:"ids,omitempty"`
	Limit int      `json:"limit,omitempty"`
}

// PostingFilter specifies criteria for listing postings.
type PostingFilter struct {
	IDs      []string `json:"ids,omitempty"`
	OnlyOpen bool     `json:"only_open,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// Store defines the persistence interface around the matching engine.
// Candidates carry their raw diploma labels; classification into
// categories happens in the engine, not the database.
type Store interface {
	// Inputs
	ListCandidates(ctx context.Context, f CandidateFilter) ([]model.Candidate, error)
	ListPostings(ctx context.Context, f PostingFilter) ([]model.Posting, error)
	ListRequirements(ctx context.Context) (map[string]requirement.Formula, error)

	// Seeding / upstream sync
	UpsertCandidate(ctx context.Context, c model.Candidate) error
	UpsertRole(ctx context.Context, roleID, title string, f requirement.Formula) error
	UpsertPosting(ctx context.Context, p model.Posting) error

	// Ranking snapshots
	SaveMatches(ctx context.Context, resultID string, matches []match.Match) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
