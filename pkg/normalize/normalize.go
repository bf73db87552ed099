// Package normalize canonicalizes free-text survey answers before comparison.
//
// Normalization lower-cases the text, decomposes it (NFKD), deletes every rune
// that is not a letter, number or whitespace, collapses whitespace, and then
// folds the synonym rules over the result in rule-set order. Each rule rewrites
// the output of the previous one, so a word introduced by an earlier rule can be
// rewritten again by a later rule.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/thebtf/feudsurvey/pkg/models"
)

// Normalizer applies a compiled synonym rule set.
// A Normalizer is immutable and safe for concurrent use.
type Normalizer struct {
	rules []compiledRule
}

type compiledRule struct {
	pattern *regexp.Regexp
	to      string
}

// Compile prepares the rule set for repeated use.
func Compile(rules models.SynonymRuleSet) *Normalizer {
	list := rules.Rules()
	n := &Normalizer{rules: make([]compiledRule, 0, len(list))}
	for _, r := range list {
		n.rules = append(n.rules, compiledRule{
			pattern: wordPattern(r.From),
			to:      r.To,
		})
	}
	return n
}

// Normalize canonicalizes raw with the given rules.
// Callers normalizing many answers with the same rules should Compile once.
func Normalize(raw string, rules models.SynonymRuleSet) string {
	return Compile(rules).Normalize(raw)
}

// Normalize canonicalizes raw.
func (n *Normalizer) Normalize(raw string) string {
	x := Fold(raw)
	for _, r := range n.rules {
		x = r.pattern.ReplaceAllLiteralString(x, r.to)
	}
	return x
}

// Fold performs the rule-independent part of normalization.
func Fold(raw string) string {
	x := strings.ToLower(raw)
	// transform.Chain keeps state, so a fresh chain is built per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(stripped)))
	if out, _, err := transform.String(t, x); err == nil {
		x = out
	}
	return strings.Join(strings.Fields(x), " ")
}

func stripped(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !unicode.IsSpace(r)
}

// wordPattern matches from as a whole word, case-insensitively. The start and
// end anchors let phrases that begin or end with a non-word rune still match at
// the edges of the text.
func wordPattern(from string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|\b)` + regexp.QuoteMeta(from) + `(?:\b|$)`)
}
