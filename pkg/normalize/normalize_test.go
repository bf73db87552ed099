package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thebtf/feudsurvey/pkg/models"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"punctuation deleted", "Don't cut nails at night!", "dont cut nails at night"},
		{"diacritics stripped", "Café Crème", "cafe creme"},
		{"spanish", "Ñandú", "nandu"},
		{"whitespace collapsed", "  black\t cat \n crossing  ", "black cat crossing"},
		{"digits kept", "Top 10 Songs!!!", "top 10 songs"},
		{"compatibility forms", "ﬁsh", "fish"},
		{"only punctuation", "?!...", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Fold(tt.raw))
		})
	}
}

func TestNormalize_Synonyms(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		rules    []models.SynonymRule
		expected string
	}{
		{
			name:     "no rules",
			raw:      "Black cat, crossing the road.",
			expected: "black cat crossing the road",
		},
		{
			name:     "whole word only",
			raw:      "cat catalog",
			rules:    []models.SynonymRule{{From: "cat", To: "dog"}},
			expected: "dog catalog",
		},
		{
			name:     "case insensitive from",
			raw:      "tv show",
			rules:    []models.SynonymRule{{From: "TV", To: "television"}},
			expected: "television show",
		},
		{
			name:     "phrase",
			raw:      "New York City",
			rules:    []models.SynonymRule{{From: "new york city", To: "nyc"}},
			expected: "nyc",
		},
		{
			name: "cascading rewrites",
			raw:  "kitty",
			rules: []models.SynonymRule{
				{From: "kitty", To: "cat"},
				{From: "cat", To: "feline"},
			},
			expected: "feline",
		},
		{
			name: "earlier rule does not see later output",
			raw:  "kitty",
			rules: []models.SynonymRule{
				{From: "cat", To: "feline"},
				{From: "kitty", To: "cat"},
			},
			expected: "cat",
		},
		{
			name:     "every occurrence",
			raw:      "pup and pup",
			rules:    []models.SynonymRule{{From: "pup", To: "dog"}},
			expected: "dog and dog",
		},
		{
			name:     "replacement is literal",
			raw:      "cash",
			rules:    []models.SynonymRule{{From: "cash", To: "$1 bill"}},
			expected: "$1 bill",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := models.NewSynonymRuleSet(tt.rules...)
			assert.Equal(t, tt.expected, Normalize(tt.raw, rules))
		})
	}
}

func TestNormalize_Pure(t *testing.T) {
	rules := models.NewSynonymRuleSet(models.SynonymRule{From: "kitty", To: "cat"})
	n := Compile(rules)

	first := n.Normalize("Kitty, kitty!")
	second := n.Normalize("Kitty, kitty!")

	assert.Equal(t, "cat cat", first)
	assert.Equal(t, first, second)
	assert.Equal(t, first, Normalize("Kitty, kitty!", rules))
}
