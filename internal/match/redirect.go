package match

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/plutoskio/BDD-grandir2.0/internal/config"
	"github.com/plutoskio/BDD-grandir2.0/internal/geo"
	"github.com/plutoskio/BDD-grandir2.0/internal/model"
	"github.com/plutoskio/BDD-grandir2.0/internal/requirement"
)

// degreesPerKM approximates latitude degrees per kilometer at
// mid-latitudes, used only for the bounding-box prefilter.
const degreesPerKM = 1.0 / 111.0

// Redirect proposes moving a qualified candidate from a far, low-urgency
// match to a nearby red posting they also qualify for.
type Redirect struct {
	CandidateID   string  `json:"candidate_id"`
	FromPostingID string  `json:"from_posting_id"`
	ToPostingID   string  `json:"to_posting_id"`
	ToNursery     string  `json:"to_nursery,omitempty"`
	CurrentKM     float64 `json:"current_km"`
	RedirectKM    float64 `json:"redirect_km"`
	SavedKM       float64 `json:"saved_km"`
}

// FindRedirects scans ranked matches for qualified candidates sitting on
// a green or unknown posting more than cfg.MinCurrentKM away, and pairs
// each with the first red open posting within cfg.RadiusKM whose
// requirement they satisfy. At most one redirect per candidate; output
// order is deterministic.
func FindRedirects(
	matches []Match,
	candidates map[string]model.Candidate,
	postings []model.Posting,
	requirements map[string]requirement.Formula,
	cfg config.RedirectConfig,
) []Redirect {
	red := make([]model.Posting, 0)
	for _, p := range postings {
		if p.IsOpen() && p.Urgency == model.UrgencyRed && p.Coordinate != nil {
			red = append(red, p)
		}
	}
	// Stable scan order makes "first hit wins" reproducible.
	sort.Slice(red, func(i, j int) bool { return red[i].ID < red[j].ID })

	latMargin := cfg.RadiusKM * degreesPerKM * 1.1

	var out []Redirect
	seen := make(map[string]bool)

	for _, m := range matches {
		if seen[m.CandidateID] || !m.Qualified || m.DistanceKM == nil {
			continue
		}
		if m.Urgency != model.UrgencyGreen && m.Urgency != model.UrgencyUnknown {
			continue
		}
		if *m.DistanceKM <= cfg.MinCurrentKM {
			continue
		}
		cand, ok := candidates[m.CandidateID]
		if !ok || cand.Coordinate == nil {
			continue
		}

		// Longitude degrees shrink with latitude, so the box widens by
		// 1/cos(lat). The clamp keeps it sane near the poles.
		lonMargin := latMargin / math.Max(0.2, math.Cos(cand.Coordinate.Lat*math.Pi/180))

		for _, p := range red {
			// Cheap box check before the haversine.
			if abs(p.Coordinate.Lat-cand.Coordinate.Lat) > latMargin ||
				abs(p.Coordinate.Lon-cand.Coordinate.Lon) > lonMargin {
				continue
			}
			km, err := geo.Haversine(*cand.Coordinate, *p.Coordinate)
			if err != nil || km >= cfg.RadiusKM {
				continue
			}
			if !requirement.IsQualified(cand.Categories, requirements[p.RoleID]) {
				continue
			}
			out = append(out, Redirect{
				CandidateID:   m.CandidateID,
				FromPostingID: m.PostingID,
				ToPostingID:   p.ID,
				ToNursery:     p.Nursery,
				CurrentKM:     *m.DistanceKM,
				RedirectKM:    km,
				SavedKM:       *m.DistanceKM - km,
			})
			seen[m.CandidateID] = true
			break
		}
	}

	zap.L().Info("redirect radar", zap.Int("redirects", len(out)))
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
