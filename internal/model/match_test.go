package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryCAP.Valid())
	assert.True(t, CategoryNone.Valid())
	assert.False(t, Category("BAFA").Valid())
	assert.False(t, Category("").Valid())
}

func TestCategorySet(t *testing.T) {
	s := NewCategorySet(CategoryEJE, CategoryCAP, CategoryEJE)

	assert.True(t, s.Contains(CategoryCAP))
	assert.True(t, s.Contains(CategoryEJE))
	assert.False(t, s.Contains(CategoryAP))
	assert.Equal(t, []Category{CategoryCAP, CategoryEJE}, s.Slice())

	s.Add(CategoryAP)
	assert.True(t, s.Contains(CategoryAP))
}

func TestParseUrgency(t *testing.T) {
	tests := []struct {
		in   string
		want Urgency
	}{
		{"red", UrgencyRed},
		{"rouge", UrgencyRed},
		{"Rouge", UrgencyRed},
		{"orange", UrgencyOrange},
		{"Orange", UrgencyOrange},
		{"green", UrgencyGreen},
		{"verte", UrgencyGreen},
		{"vert", UrgencyGreen},
		{"", UrgencyUnknown},
		{"bleu", UrgencyUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseUrgency(tt.in), "input %q", tt.in)
	}
}

func TestUrgencyRank(t *testing.T) {
	assert.Less(t, UrgencyRed.Rank(), UrgencyOrange.Rank())
	assert.Less(t, UrgencyOrange.Rank(), UrgencyGreen.Rank())
	assert.Less(t, UrgencyGreen.Rank(), UrgencyUnknown.Rank())
	assert.Equal(t, UrgencyUnknown.Rank(), Urgency("bleu").Rank())
}

func TestPostingIsOpen(t *testing.T) {
	assert.True(t, Posting{Status: PostingOpen}.IsOpen())
	assert.False(t, Posting{Status: PostingClosed}.IsOpen())
	assert.False(t, Posting{}.IsOpen())
}
