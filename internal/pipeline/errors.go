package pipeline

import "fmt"

// NoClipsError is returned when a run cannot schedule a single clip,
// either because the gloss came out empty or because no gloss word
// exists in the corpus.
type NoClipsError struct {
	// Gloss holds the translated words that were attempted.
	Gloss []string

	// Missing holds the gloss words that had no clip, without duplicates.
	Missing []string

	// Suggestions maps missing words to similar vocabulary entries, so
	// callers can tell users what the corpus does cover.
	Suggestions map[string][]string
}

func (e *NoClipsError) Error() string {
	if len(e.Gloss) == 0 {
		return "pipeline: text contains no translatable words"
	}
	return fmt.Sprintf("pipeline: no sign clips found for any of %d gloss words", len(e.Gloss))
}
