package homonym

// DefaultLexicon returns the built-in set of English words treated as
// homonym candidates. A sentence is only sent to the context-analysis
// provider when its gloss contains at least one of these.
func DefaultLexicon() []string {
	return []string{
		"bat", "bank", "bark", "bear", "bow", "fair", "kind",
		"letter", "light", "mean", "might", "present", "ring",
		"rock", "rose", "saw", "seal", "spring", "star", "tie",
	}
}
