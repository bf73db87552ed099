// Package models contains domain models for feudsurvey.
package models

import (
	"strings"

	"github.com/goccy/go-json"
)

// SynonymRule rewrites the whole word (or phrase) From into To during normalization.
type SynonymRule struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// SynonymRuleSet is an ordered set of synonym rules with unique From keys.
// Rules apply in the order they were first enumerated.
type SynonymRuleSet struct {
	rules []SynonymRule
}

// NewSynonymRuleSet builds a rule set from rules in enumeration order.
// Rules with an empty From are skipped. A repeated From replaces the earlier
// rule's To but keeps the earlier position.
func NewSynonymRuleSet(rules ...SynonymRule) SynonymRuleSet {
	set := SynonymRuleSet{rules: make([]SynonymRule, 0, len(rules))}
	pos := make(map[string]int, len(rules))
	for _, r := range rules {
		from := strings.TrimSpace(r.From)
		if from == "" {
			continue
		}
		if i, ok := pos[from]; ok {
			set.rules[i].To = r.To
			continue
		}
		pos[from] = len(set.rules)
		set.rules = append(set.rules, SynonymRule{From: from, To: r.To})
	}
	return set
}

// Rules returns a copy of the rules in application order.
func (s SynonymRuleSet) Rules() []SynonymRule {
	out := make([]SynonymRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of rules.
func (s SynonymRuleSet) Len() int { return len(s.rules) }

// Map returns the rules as a from -> to map. Order is lost.
func (s SynonymRuleSet) Map() map[string]string {
	m := make(map[string]string, len(s.rules))
	for _, r := range s.rules {
		m[r.From] = r.To
	}
	return m
}

// Text renders the rules one per line as "from => to".
func (s SynonymRuleSet) Text() string {
	lines := make([]string, len(s.rules))
	for i, r := range s.rules {
		lines[i] = r.From + " => " + r.To
	}
	return strings.Join(lines, "\n")
}

// MarshalJSON encodes the set as an ordered array of rules.
func (s SynonymRuleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Rules())
}

// UnmarshalJSON decodes an ordered array of rules, dropping invalid ones.
func (s *SynonymRuleSet) UnmarshalJSON(data []byte) error {
	var rules []SynonymRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return err
	}
	*s = NewSynonymRuleSet(rules...)
	return nil
}
