// Package mock is an in-memory meaning.Provider for tests. It answers
// from a fixed mapping, or fails with a fixed error, and keeps a record
// of every call so tests can assert on what the resolver sent.
//
//	p := &mock.Provider{Mapping: map[string]string{"bat": "animal"}}
//	got, err := p.ResolveMeanings(ctx, req)
//
// Configure the fields before first use; the methods themselves are
// safe to call concurrently.
package mock

import (
	"context"
	"sync"

	"github.com/signloom/signloom/pkg/provider/meaning"
)

// ResolveCall is one recorded ResolveMeanings invocation.
type ResolveCall struct {
	Ctx context.Context
	Req meaning.Request
}

// Provider implements meaning.Provider with canned answers.
type Provider struct {
	mu sync.Mutex

	// Mapping is what ResolveMeanings hands back. Nil yields (nil, nil).
	Mapping map[string]string

	// Err, when set, makes ResolveMeanings fail instead.
	Err error

	// ProviderName overrides the name reported by Name. Empty means
	// "mock".
	ProviderName string

	// ResolveCalls accumulates every ResolveMeanings invocation in
	// order. Read it after the code under test has finished.
	ResolveCalls []ResolveCall
}

// ResolveMeanings records the call, then returns Mapping and Err.
func (p *Provider) ResolveMeanings(ctx context.Context, req meaning.Request) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ResolveCalls = append(p.ResolveCalls, ResolveCall{Ctx: ctx, Req: req})
	return p.Mapping, p.Err
}

// Name implements meaning.Provider.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// CallCount reports how many times ResolveMeanings ran.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ResolveCalls)
}

// Reset forgets the recorded calls so the mock can be reused across
// subtests.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ResolveCalls = nil
}

var _ meaning.Provider = (*Provider)(nil)
