// Package homonym determines which sense ambiguous words carry in a
// sentence by consulting a context-analysis provider.
//
// Resolution is strictly best-effort. The resolver makes at most one
// provider call per sentence, bounded by a timeout, with no retries.
// Any failure is reported as a *ServiceError that callers are expected
// to survive by continuing without hints.
package homonym

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/signloom/signloom/pkg/provider/meaning"
)

const defaultTimeout = 10 * time.Second

// Hint records the resolved sense of one occurrence of an ambiguous
// word. Occurrence is the zero-based index among that word's
// occurrences in the gloss, so "bank ... bank" yields two hints.
type Hint struct {
	Word       string
	Occurrence int
	Meaning    string
}

// ServiceError wraps a context-analysis failure. It is always
// survivable: callers degrade to an empty hint set.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("homonym: provider %s: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Resolver matches gloss words against a homonym lexicon and asks a
// meaning provider to disambiguate the ones that appear.
type Resolver struct {
	provider meaning.Provider
	lexicon  map[string]struct{}
	timeout  time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLexicon replaces the default homonym candidate set. Entries are
// matched case-insensitively against gloss words.
func WithLexicon(words []string) Option {
	return func(r *Resolver) {
		r.lexicon = make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				r.lexicon[w] = struct{}{}
			}
		}
	}
}

// WithTimeout bounds the single provider call. Zero or negative values
// keep the default of 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewResolver creates a Resolver backed by the given provider.
func NewResolver(p meaning.Provider, opts ...Option) *Resolver {
	r := &Resolver{
		provider: p,
		timeout:  defaultTimeout,
	}
	WithLexicon(DefaultLexicon())(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProviderName identifies the backing provider in logs and metrics.
func (r *Resolver) ProviderName() string { return r.provider.Name() }

// HasCandidates reports whether any gloss word appears in the lexicon,
// i.e. whether Resolve would contact the provider at all.
func (r *Resolver) HasCandidates(words []string) bool {
	for _, w := range words {
		if _, ok := r.lexicon[w]; ok {
			return true
		}
	}
	return false
}

// Resolve returns sense hints for every gloss word that is a homonym
// candidate. When no gloss word appears in the lexicon it returns
// (nil, nil) without contacting the provider. The provider is called
// exactly once with the full original sentence; its reply is mapped
// back onto each occurrence of the words it covers.
func (r *Resolver) Resolve(ctx context.Context, sentence string, words []string) ([]Hint, error) {
	candidates := r.candidates(words)
	if len(candidates) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	mapping, err := r.provider.ResolveMeanings(ctx, meaning.Request{
		Sentence:   sentence,
		Candidates: candidates,
	})
	if err != nil {
		return nil, &ServiceError{Provider: r.provider.Name(), Err: err}
	}

	var hints []Hint
	seen := make(map[string]int, len(candidates))
	for _, w := range words {
		if _, ok := r.lexicon[w]; !ok {
			continue
		}
		occ := seen[w]
		seen[w]++
		m, ok := mapping[w]
		if !ok || strings.TrimSpace(m) == "" {
			continue
		}
		hints = append(hints, Hint{Word: w, Occurrence: occ, Meaning: m})
	}
	return hints, nil
}

// candidates returns the lexicon members of words in first-occurrence
// order, without duplicates.
func (r *Resolver) candidates(words []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, w := range words {
		if _, ok := r.lexicon[w]; !ok {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
