// Package model holds the domain types shared by the matching engine:
// diploma categories, urgency tiers, coordinates, candidates and postings.
package model

import "sort"

// Category is a normalized diploma category code.
type Category string

// The closed set of diploma categories. Free text that matches no
// classification rule maps to CategoryOther; empty input maps to
// CategoryNone. Neither of those two ever satisfies a requirement on
// its own unless a role explicitly asks for it.
const (
	CategoryCAP   Category = "CAP" // CAP AEPE / petite enfance
	CategoryAP    Category = "AP"  // auxiliaire de puériculture
	CategoryEJE   Category = "EJE" // éducateur de jeunes enfants
	CategoryPSY   Category = "PSY" // psychologue
	CategoryIDE   Category = "IDE" // infirmier diplômé d'état
	CategoryPMO   Category = "PMO" // psychomotricien
	CategoryOther Category = "OTHER"
	CategoryNone  Category = "NONE"
)

// Categories lists every valid category code.
var Categories = []Category{
	CategoryCAP, CategoryAP, CategoryEJE, CategoryPSY,
	CategoryIDE, CategoryPMO, CategoryOther, CategoryNone,
}

// Valid reports whether c is one of the closed category set.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// CategorySet is a de-duplicated set of diploma categories held by a candidate.
type CategorySet map[Category]struct{}

// NewCategorySet builds a set from the given categories.
func NewCategorySet(cats ...Category) CategorySet {
	s := make(CategorySet, len(cats))
	for _, c := range cats {
		s[c] = struct{}{}
	}
	return s
}

// Add inserts a category into the set.
func (s CategorySet) Add(c Category) { s[c] = struct{}{} }

// Contains reports whether the set holds c.
func (s CategorySet) Contains(c Category) bool {
	_, ok := s[c]
	return ok
}

// Slice returns the set's categories in stable sorted order.
func (s CategorySet) Slice() []Category {
	out := make([]Category, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Urgency is the priority tier of a posting's nursery.
type Urgency string

const (
	UrgencyRed     Urgency = "red"
	UrgencyOrange  Urgency = "orange"
	UrgencyGreen   Urgency = "green"
	UrgencyUnknown Urgency = "unknown"
)

// Rank returns the tie-break rank of the tier: red sorts before orange,
// orange before green, green before unknown.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyRed:
		return 0
	case UrgencyOrange:
		return 1
	case UrgencyGreen:
		return 2
	default:
		return 3
	}
}

// ParseUrgency maps a stored urgency value to a tier. It accepts the
// canonical codes as well as the French color labels the upstream data
// uses. Anything unrecognized is the explicit unknown tier, never green.
func ParseUrgency(s string) Urgency {
	switch s {
	case "red", "rouge", "Rouge":
		return UrgencyRed
	case "orange", "Orange":
		return UrgencyOrange
	case "green", "verte", "Verte", "vert":
		return UrgencyGreen
	default:
		return UrgencyUnknown
	}
}

// Coordinate is a geographic point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Candidate is a job candidate as the engine sees it: inputs only, never
// mutated. Coordinate and QualityScore are optional; absence is data,
// handled by the aggregator's fallback policy.
type Candidate struct {
	ID           string      `json:"id"`
	Coordinate   *Coordinate `json:"coordinate,omitempty"`
	RawDiplomas  []string    `json:"raw_diplomas,omitempty"`
	Categories   CategorySet `json:"-"`
	QualityScore *float64    `json:"quality_score,omitempty"` // [0,100]
}

// PostingStatus is the lifecycle state of a posting.
type PostingStatus string

const (
	PostingOpen   PostingStatus = "open"
	PostingClosed PostingStatus = "closed"
)

// Posting is an open position at a nursery.
type Posting struct {
	ID         string        `json:"id"`
	RoleID     string        `json:"role_id"`
	Nursery    string        `json:"nursery,omitempty"`
	Coordinate *Coordinate   `json:"coordinate,omitempty"`
	Urgency    Urgency       `json:"urgency"`
	Status     PostingStatus `json:"status"`
}

// IsOpen reports whether the posting is eligible for matching.
func (p Posting) IsOpen() bool { return p.Status == PostingOpen }
