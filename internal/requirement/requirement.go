// Package requirement evaluates a role's diploma requirement formula
// against a candidate's held categories. A formula is in disjunctive
// normal form: a list of clauses, each clause a conjunction of
// categories. The common production case is a disjunction of singletons
// ("CAP or AP or EJE"), but multi-category clauses are first-class.
package requirement

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/plutoskio/BDD-grandir2.0/internal/model"
)

// Clause is a conjunction: every category must be held for the clause to
// be satisfied.
type Clause []model.Category

// Formula is a disjunction of clauses: any satisfied clause qualifies
// the candidate. The zero value (no clauses) means no diploma is
// required and qualifies every candidate.
type Formula []Clause

// AnyOf builds the common disjunction-of-singletons formula: the
// candidate qualifies by holding any one of the given categories.
func AnyOf(cats ...model.Category) Formula {
	f := make(Formula, 0, len(cats))
	for _, c := range cats {
		f = append(f, Clause{c})
	}
	return f
}

// AllOf builds a single conjunctive clause: the candidate must hold
// every given category.
func AllOf(cats ...model.Category) Formula {
	return Formula{Clause(cats)}
}

// IsEmpty reports whether the formula imposes no requirement. A formula
// whose clauses reference only CategoryNone is treated as empty.
func (f Formula) IsEmpty() bool {
	for _, clause := range f {
		for _, c := range clause {
			if c != model.CategoryNone {
				return false
			}
		}
	}
	return true
}

// Satisfied reports whether the clause's categories are all present in
// the set. CategoryNone entries are vacuously satisfied.
func (c Clause) Satisfied(held model.CategorySet) bool {
	for _, cat := range c {
		if cat == model.CategoryNone {
			continue
		}
		if !held.Contains(cat) {
			return false
		}
	}
	return true
}

// IsQualified reports whether a candidate holding the given categories
// satisfies the formula. Pure and total: it never fails, and it depends
// only on category membership.
func IsQualified(held model.CategorySet, f Formula) bool {
	if f.IsEmpty() {
		return true
	}
	for _, clause := range f {
		if clause.Satisfied(held) {
			return true
		}
	}
	return false
}

// Validate checks that every category referenced by the formula is part
// of the closed taxonomy.
func (f Formula) Validate() error {
	for i, clause := range f {
		if len(clause) == 0 {
			return eris.Errorf("requirement: clause %d is empty", i)
		}
		for _, c := range clause {
			if !c.Valid() {
				return eris.Errorf("requirement: clause %d references unknown category %q", i, c)
			}
		}
	}
	return nil
}

// FromJSON parses a stored formula. Formulas persist as a JSON array of
// arrays of category codes; null and empty inputs parse to the empty
// (always-qualifying) formula.
func FromJSON(data []byte) (Formula, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var f Formula
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "requirement: parse formula")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// ToJSON serializes the formula for storage.
func (f Formula) ToJSON() ([]byte, error) {
	data, err := json.Marshal(f)
	return data, eris.Wrap(err, "requirement: marshal formula")
}
