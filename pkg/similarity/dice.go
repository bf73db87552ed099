// Package similarity provides text similarity and clustering utilities.
package similarity

// Bigrams returns the ordered multiset of two-rune windows over s padded with
// one leading and one trailing space.
func Bigrams(s string) []string {
	padded := []rune(" " + s + " ")
	out := make([]string, 0, len(padded)-1)
	for i := 0; i+1 < len(padded); i++ {
		out = append(out, string(padded[i:i+2]))
	}
	return out
}

// Dice returns the Sørensen–Dice coefficient of the bigram multisets of a and b.
// Equal strings score exactly 1. Duplicate bigrams are counted with multiplicity.
func Dice(a, b string) float64 {
	if a == b {
		return 1
	}
	A := Bigrams(a)
	B := Bigrams(b)
	if len(A) == 0 || len(B) == 0 {
		return 0
	}

	remaining := make(map[string]int, len(B))
	for _, bg := range B {
		remaining[bg]++
	}

	hits := 0
	for _, bg := range A {
		if remaining[bg] > 0 {
			hits++
			remaining[bg]--
		}
	}

	return float64(2*hits) / float64(len(A)+len(B))
}
