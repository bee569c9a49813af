// Package gloss converts English text into an ordered sign-gloss sequence
// by normalizing the input and dropping function words that have no direct
// sign equivalent. It performs no grammatical reordering, deduplication or
// inflection handling.
package gloss

import (
	"strings"
	"unicode"
)

// Normalize lowercases s and replaces every rune that is neither a letter,
// a digit nor whitespace with a single space. Whitespace runes pass through
// unchanged and runs are not collapsed. The output alphabet is closed under
// Normalize, so applying it twice yields the same string. Defined for every
// input; the empty string maps to itself.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}
