// Package meaning defines the Provider interface for context-analysis
// backends that decide which sense of an ambiguous word a sentence uses.
//
// A meaning provider wraps a remote or local language-model API and exposes
// a single operation: given the original sentence and the candidate words,
// return a word-to-meaning mapping. Implementations share the prompt and
// reply-extraction helpers in this package so every backend tolerates the
// same range of model output.
//
// Implementors must be safe for concurrent use and must honor context
// cancellation and deadlines; callers enforce their timeout through ctx.
package meaning

import (
	"context"
	"fmt"
	"strings"
)

// Request carries one disambiguation request.
type Request struct {
	// Sentence is the full original input text providing the context.
	Sentence string

	// Candidates are the ambiguous words to resolve, lowercased. Must not
	// be empty; callers that find no candidates skip the request entirely.
	Candidates []string
}

// Provider is the abstraction over any context-analysis backend.
type Provider interface {
	// ResolveMeanings asks the backend which meaning each candidate word
	// carries in the sentence. The result maps candidate words to short
	// meaning labels; words the backend did not classify are absent. A
	// reply without a usable mapping yields an error wrapping
	// [ErrMalformedReply].
	ResolveMeanings(ctx context.Context, req Request) (map[string]string, error)

	// Name returns the provider's stable identifier for logs and metrics.
	Name() string
}

// SystemPrompt is the instruction sent ahead of every disambiguation
// request.
const SystemPrompt = "You are a homonym detection assistant."

// UserPrompt renders the analysis request for req.
func UserPrompt(req Request) string {
	return fmt.Sprintf("Analyze this sentence: '%s'. The following words are ambiguous: %s. "+
		"Identify the meaning each word has in this specific context and return the result "+
		"as a JSON object mapping each word to a short meaning. For example: {\"bat\": \"animal\"}. "+
		"Only include words from the given list.",
		req.Sentence, strings.Join(req.Candidates, ", "))
}
