// Package classify maps free-text diploma labels to the fixed category
// taxonomy. Matching is case- and accent-insensitive substring lookup
// against an ordered rule table: the first matching rule wins, specific
// patterns are listed before generic ones, and anything unmatched is
// CategoryOther. Classification is total: bad input is data, not an error.
package classify

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/plutoskio/BDD-grandir2.0/internal/model"
)

// Rule is a single (pattern, category) classification rule. Pattern is a
// substring matched against the folded label.
type Rule struct {
	Pattern  string         `yaml:"pattern"`
	Category model.Category `yaml:"category"`
}

// Ruleset is an ordered classification table, folded once at build time.
type Ruleset struct {
	rules []Rule
}

// New builds a Ruleset from ordered rules. Rules are validated and their
// patterns folded; rule order is preserved and significant.
func New(rules []Rule) (*Ruleset, error) {
	if len(rules) == 0 {
		return nil, eris.New("classify: empty rule table")
	}
	folded := make([]Rule, 0, len(rules))
	for i, r := range rules {
		p := Fold(r.Pattern)
		if p == "" {
			return nil, eris.Errorf("classify: rule %d has an empty pattern", i)
		}
		if !r.Category.Valid() {
			return nil, eris.Errorf("classify: rule %d has unknown category %q", i, r.Category)
		}
		folded = append(folded, Rule{Pattern: p, Category: r.Category})
	}
	return &Ruleset{rules: folded}, nil
}

// Classify maps a raw diploma label to a category. Empty or blank input
// yields CategoryNone; unmatched input yields CategoryOther.
func (rs *Ruleset) Classify(raw string) model.Category {
	folded := Fold(raw)
	if folded == "" {
		return model.CategoryNone
	}
	for _, r := range rs.rules {
		if strings.Contains(folded, r.Pattern) {
			return r.Category
		}
	}
	return model.CategoryOther
}

// ClassifyAll classifies each label independently and de-duplicates the
// results into a category set. A candidate with several diplomas is
// represented as several labels, one category each.
func (rs *Ruleset) ClassifyAll(raws []string) model.CategorySet {
	set := make(model.CategorySet, len(raws))
	for _, raw := range raws {
		if c := rs.Classify(raw); c != model.CategoryNone {
			set.Add(c)
		}
	}
	return set
}

// Rules returns a copy of the folded rule table, in evaluation order.
func (rs *Ruleset) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Fold lowercases a label, strips diacritics and normalizes hyphens to
// spaces, so "Éducateur" and "educateur" compare equal and
// "aide-soignante" matches the "aide soignant" pattern.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ReplaceAll(folded, "-", " ")
	return strings.ToLower(strings.TrimSpace(folded))
}

// Default returns the built-in rule table mirroring the production
// diploma vocabulary. Ordering matters: "psychomotricien" must be probed
// before "psycho", "aide soignant" before "ide", and the CAP variants
// before the bare "cap".
func Default() *Ruleset {
	rs, err := New([]Rule{
		{Pattern: "educateur de jeunes enfants", Category: model.CategoryEJE},
		{Pattern: "educatrice de jeunes enfants", Category: model.CategoryEJE},
		{Pattern: "deeje", Category: model.CategoryEJE},
		{Pattern: "eje", Category: model.CategoryEJE},
		{Pattern: "auxiliaire de puericulture", Category: model.CategoryAP},
		{Pattern: "auxiliaire puericulture", Category: model.CategoryAP},
		{Pattern: "deap", Category: model.CategoryAP},
		{Pattern: "puericult", Category: model.CategoryAP},
		{Pattern: "psychomotric", Category: model.CategoryPMO},
		{Pattern: "psycholog", Category: model.CategoryPSY},
		{Pattern: "aide soignant", Category: model.CategoryOther},
		{Pattern: "infirmier", Category: model.CategoryIDE},
		{Pattern: "ide", Category: model.CategoryIDE},
		{Pattern: "cap aepe", Category: model.CategoryCAP},
		{Pattern: "aepe", Category: model.CategoryCAP},
		{Pattern: "cap petite enfance", Category: model.CategoryCAP},
		{Pattern: "petite enfance", Category: model.CategoryCAP},
		{Pattern: "cap", Category: model.CategoryCAP},
	})
	if err != nil {
		// The built-in table is static; a build error here is a bug.
		panic(err)
	}
	return rs
}
