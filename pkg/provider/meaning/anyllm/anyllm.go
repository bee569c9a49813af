// Package anyllm adapts github.com/mozilla-ai/any-llm-go to the
// meaning.Provider interface, so word-sense resolution can run against
// any chat backend that library speaks.
//
// The backend is picked by name at construction time:
//
//	p, err := anyllm.New("ollama", "llama3.2")
//	p, err := anyllm.New("anthropic", "claude-3-5-haiku-latest", anyllmlib.WithAPIKey("sk-ant-..."))
//
// Credentials left unset fall back to each backend's usual environment
// variable (OPENAI_API_KEY, ANTHROPIC_API_KEY and so on).
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/signloom/signloom/pkg/provider/meaning"
)

// backendNames lists every backend New accepts.
var backendNames = []string{
	"openai", "anthropic", "gemini", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Provider resolves word senses through one of the chat backends
// supported by any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

// New builds a Provider for the named backend. Matching is
// case-insensitive; see backendNames for the accepted set. model names
// the chat model the backend should serve, such as "gpt-4o-mini" or
// "llama3.2". Credentials and endpoints come from opts or from the
// backend's environment variables.
func New(name, model string, opts ...anyllmlib.Option) (*Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("anyllm: backend name must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := newBackend(name, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{backend: backend, name: name, model: model}, nil
}

func newBackend(name string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	var (
		p   anyllmlib.Provider
		err error
	)
	switch name {
	case "openai":
		p, err = anyllmoai.New(opts...)
	case "anthropic":
		p, err = anthropic.New(opts...)
	case "gemini":
		p, err = gemini.New(opts...)
	case "ollama":
		p, err = ollama.New(opts...)
	case "deepseek":
		p, err = deepseek.New(opts...)
	case "mistral":
		p, err = mistral.New(opts...)
	case "groq":
		p, err = groq.New(opts...)
	case "llamacpp":
		p, err = llamacpp.New(opts...)
	case "llamafile":
		p, err = llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("anyllm: unsupported backend %q, supported: %s", name, strings.Join(backendNames, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("anyllm: configure %s backend: %w", name, err)
	}
	return p, nil
}

// ResolveMeanings implements meaning.Provider. It sends a single chat
// completion carrying the shared disambiguation prompt and parses the
// JSON object the model answers with.
func (p *Provider) ResolveMeanings(ctx context.Context, req meaning.Request) (map[string]string, error) {
	resp, err := p.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: meaning.SystemPrompt},
			{Role: anyllmlib.RoleUser, Content: meaning.UserPrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: model returned no choices")
	}
	return meaning.ExtractMapping(resp.Choices[0].Message.ContentString())
}

// Name implements meaning.Provider.
func (p *Provider) Name() string { return p.name }
