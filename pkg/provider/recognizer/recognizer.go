// Package recognizer defines the Provider interface for sign recognition
// backends.
//
// A recognizer inspects a video of a single sign and returns ranked word
// candidates. Implementations must be safe for concurrent use; HTTP
// handlers may invoke Recognize from many goroutines at once.
package recognizer

import "context"

// Candidate is one recognition guess for a sign video.
type Candidate struct {
	// Word is the vocabulary entry the sign was matched against.
	Word string

	// Confidence is the match score in [0, 1]. Candidates are ordered
	// by descending confidence.
	Confidence float64
}

// Provider is the abstraction over any sign recognition backend.
type Provider interface {
	// Recognize analyzes the sign performed in the video at path and
	// returns at most topK candidates ordered by descending confidence.
	// A topK of zero or less lets the provider pick its default.
	Recognize(ctx context.Context, path string, topK int) ([]Candidate, error)

	// Name returns the provider identifier used in logs and configuration.
	Name() string
}
