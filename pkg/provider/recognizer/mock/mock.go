// Package mock provides a configurable recognizer.Provider for tests.
//
// The zero value returns no candidates. Set Candidates and Err to
// choose responses, then inspect RecognizeCalls:
//
//	p := &mock.Provider{Candidates: []recognizer.Candidate{{Word: "book", Confidence: 0.9}}}
//	got, _ := p.Recognize(ctx, "sign.mp4", 3)
//	if p.CallCount() != 1 { ... }
package mock

import (
	"context"
	"sync"

	"github.com/signloom/signloom/pkg/provider/recognizer"
)

// RecognizeCall records a single Recognize invocation.
type RecognizeCall struct {
	Ctx  context.Context
	Path string
	TopK int
}

// Provider is a mock implementation of recognizer.Provider.
type Provider struct {
	mu sync.Mutex

	// Candidates is returned by every Recognize call.
	Candidates []recognizer.Candidate

	// Err, when set, is returned by Recognize instead of Candidates.
	Err error

	// ProviderName overrides the reported name. Defaults to "mock".
	ProviderName string

	// RecognizeCalls records every invocation in order.
	RecognizeCalls []RecognizeCall
}

// Recognize records the call and returns the configured response.
func (p *Provider) Recognize(ctx context.Context, path string, topK int) ([]recognizer.Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RecognizeCalls = append(p.RecognizeCalls, RecognizeCall{Ctx: ctx, Path: path, TopK: topK})
	if p.Err != nil {
		return nil, p.Err
	}
	return append([]recognizer.Candidate(nil), p.Candidates...), nil
}

// Name returns the configured provider name.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// CallCount returns the number of Recognize invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.RecognizeCalls)
}

// Reset forgets the recorded calls so the mock can be reused across
// subtests.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RecognizeCalls = nil
}

var _ recognizer.Provider = (*Provider)(nil)
