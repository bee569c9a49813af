package gloss

import "strings"

// Token is one entry of a gloss sequence.
type Token struct {
	// Surface is the whitespace-delimited field of the original text the
	// token was derived from, before normalization.
	Surface string
	// Normalized is the lowercased, punctuation-free word used for corpus
	// lookups.
	Normalized string
	// Position is the token's index in the gloss sequence.
	Position int
}

// DefaultSkipWords returns the function words removed from glosses when no
// custom set is configured: articles, forms of "to be", prepositions that
// are incorporated into signs, and conjunctions.
func DefaultSkipWords() []string {
	return []string{
		// articles
		"a", "an", "the",
		// forms of "to be"
		"is", "are", "am", "was", "were", "be", "been", "being",
		// prepositions
		"to", "of", "for", "with", "by", "at", "from", "in", "on",
		"under", "over", "through", "between", "among", "against",
		"into", "onto", "within", "without",
		// conjunctions
		"and", "or", "but", "nor", "so", "yet", "because", "since", "although",
	}
}

// Translator derives gloss sequences from English text. It is read-only
// after construction and safe for concurrent use.
type Translator struct {
	skip map[string]struct{}
}

// NewTranslator returns a Translator that removes the given function words.
// A nil or empty slice selects [DefaultSkipWords]. Entries are normalized
// before insertion so callers may pass mixed-case words.
func NewTranslator(skipWords []string) *Translator {
	if len(skipWords) == 0 {
		skipWords = DefaultSkipWords()
	}
	skip := make(map[string]struct{}, len(skipWords))
	for _, w := range skipWords {
		for _, f := range strings.Fields(Normalize(w)) {
			skip[f] = struct{}{}
		}
	}
	return &Translator{skip: skip}
}

// Translate converts text into its gloss sequence. The text is split on
// whitespace, each field is normalized, and words whose normalized form is
// a configured function word are dropped. Input order is preserved.
//
// Normalization can split a single field into several words ("don't"
// becomes "don t"); each resulting word is filtered and emitted separately,
// all carrying the original field as their surface.
func (t *Translator) Translate(text string) []Token {
	var tokens []Token
	for _, field := range strings.Fields(text) {
		for _, word := range strings.Fields(Normalize(field)) {
			if _, ok := t.skip[word]; ok {
				continue
			}
			tokens = append(tokens, Token{
				Surface:    field,
				Normalized: word,
				Position:   len(tokens),
			})
		}
	}
	return tokens
}

// Words returns just the normalized words of the gloss sequence for text.
func (t *Translator) Words(text string) []string {
	tokens := t.Translate(text)
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.Normalized
	}
	return words
}
