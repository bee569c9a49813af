// Package openai resolves word senses with the official OpenAI Go
// client. It exists alongside the universal anyllm backend because the
// native client exposes organization scoping.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/signloom/signloom/pkg/provider/meaning"
)

// Provider implements meaning.Provider against the OpenAI chat
// completions API.
type Provider struct {
	client oai.Client
	model  string
}

// clientConfig accumulates the request options the functional options
// translate to.
type clientConfig struct {
	opts []option.RequestOption
}

// Option adjusts the API client used by the provider.
type Option func(*clientConfig)

// WithBaseURL points the client at a compatible endpoint other than
// api.openai.com, such as a proxy or a self-hosted gateway. Empty
// values are ignored.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		if url != "" {
			c.opts = append(c.opts, option.WithBaseURL(url))
		}
	}
}

// WithOrganization scopes every request to an OpenAI organization.
// Empty values are ignored.
func WithOrganization(org string) Option {
	return func(c *clientConfig) {
		if org != "" {
			c.opts = append(c.opts, option.WithOrganization(org))
		}
	}
}

// WithTimeout caps each HTTP request. Callers that bound their work
// through ctx can leave it unset.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		if d > 0 {
			c.opts = append(c.opts, option.WithHTTPClient(&http.Client{Timeout: d}))
		}
	}
}

// New builds a Provider that talks to the OpenAI API with the given
// credentials. model is a chat completion model name such as
// "gpt-4o-mini".
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cc := clientConfig{opts: []option.RequestOption{option.WithAPIKey(apiKey)}}
	for _, o := range opts {
		o(&cc)
	}
	return &Provider{client: oai.NewClient(cc.opts...), model: model}, nil
}

// ResolveMeanings implements meaning.Provider. The reply is expected to
// be the JSON object the shared disambiguation prompt asks for.
func (p *Provider) ResolveMeanings(ctx context.Context, req meaning.Request) (map[string]string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(meaning.SystemPrompt),
			oai.UserMessage(meaning.UserPrompt(req)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: model returned no choices")
	}
	return meaning.ExtractMapping(resp.Choices[0].Message.Content)
}

// Name implements meaning.Provider.
func (p *Provider) Name() string { return "openai" }
