// Package stub implements a vocabulary-sampling recognizer for
// development and testing. It never inspects video content: it checks
// that the file exists and fabricates ranked candidates from its
// vocabulary using a seeded random source, so a given seed always
// produces the same sequence of answers.
package stub

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"sync"

	"github.com/signloom/signloom/pkg/provider/recognizer"
)

const defaultTopK = 5

// Provider fabricates recognition results from a fixed vocabulary.
type Provider struct {
	vocab []string

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures the stub Provider.
type Option func(*Provider)

// WithSeed fixes the random source so results are reproducible.
func WithSeed(seed uint64) Option {
	return func(p *Provider) {
		p.rng = rand.New(rand.NewPCG(seed, 0))
	}
}

// New creates a stub recognizer answering from the given vocabulary.
func New(vocabulary []string, opts ...Option) (*Provider, error) {
	if len(vocabulary) == 0 {
		return nil, fmt.Errorf("stub: vocabulary must not be empty")
	}
	p := &Provider{
		vocab: append([]string(nil), vocabulary...),
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Recognize returns topK vocabulary words with fabricated descending
// confidences. The video at path must exist but is never opened.
func (p *Provider) Recognize(ctx context.Context, path string, topK int) ([]recognizer.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stub: video file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("stub: video file %s is a directory", path)
	}

	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > len(p.vocab) {
		topK = len(p.vocab)
	}

	p.mu.Lock()
	order := p.rng.Perm(len(p.vocab))
	scores := make([]float64, topK)
	for i := range scores {
		scores[i] = p.rng.Float64()
	}
	p.mu.Unlock()

	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	var total float64
	for _, s := range scores {
		total += s
	}

	out := make([]recognizer.Candidate, topK)
	for i := range out {
		out[i] = recognizer.Candidate{
			Word:       p.vocab[order[i]],
			Confidence: scores[i] / (total + 1),
		}
	}
	return out, nil
}

// Name returns "stub".
func (p *Provider) Name() string { return "stub" }

var _ recognizer.Provider = (*Provider)(nil)
