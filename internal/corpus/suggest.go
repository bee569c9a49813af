package corpus

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// Suggestion thresholds: phonetically matching words need a moderate
// Jaro-Winkler score, words without phonetic overlap a high one.
const (
	suggestPhoneticThreshold = 0.70
	suggestFuzzyThreshold    = 0.85
)

// Suggest returns up to limit indexed words that sound like word, best
// match first. Candidates are found by Double Metaphone code overlap and
// ranked by Jaro-Winkler similarity; words without phonetic overlap are
// still suggested when their string similarity alone is high. An empty or
// unknown-sounding word yields no suggestions.
func (ix *Index) Suggest(word string, limit int) []string {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" || limit <= 0 {
		return nil
	}

	wordPrimary, wordSecondary := matchr.DoubleMetaphone(word)

	type scored struct {
		word  string
		score float64
	}
	var matches []scored

	for _, indexed := range ix.words {
		if indexed == word {
			continue
		}

		phonetic := false
		if wordPrimary != "" || wordSecondary != "" {
			p, s := matchr.DoubleMetaphone(indexed)
			phonetic = (p != "" && (p == wordPrimary || p == wordSecondary)) ||
				(s != "" && (s == wordPrimary || s == wordSecondary))
		}

		score := matchr.JaroWinkler(word, indexed, false)
		threshold := suggestFuzzyThreshold
		if phonetic {
			threshold = suggestPhoneticThreshold
		}
		if score >= threshold {
			matches = append(matches, scored{word: indexed, score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].word < matches[j].word
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.word
	}
	return out
}
