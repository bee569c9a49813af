package homonym_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signloom/signloom/internal/homonym"
	"github.com/signloom/signloom/pkg/provider/meaning"
	"github.com/signloom/signloom/pkg/provider/meaning/mock"
)

func TestResolver_NoCandidatesSkipsProvider(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Mapping: map[string]string{"bat": "animal"}}
	r := homonym.NewResolver(p)

	hints, err := r.Resolve(context.Background(), "i want learn sign language", []string{"i", "want", "learn", "sign", "language"})
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if hints != nil {
		t.Errorf("Resolve() hints = %v, want nil", hints)
	}
	if got := p.CallCount(); got != 0 {
		t.Errorf("provider call count = %d, want 0", got)
	}
}

func TestResolver_SingleCallWithSentenceAndCandidates(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Mapping: map[string]string{"bat": "animal"}}
	r := homonym.NewResolver(p)

	hints, err := r.Resolve(context.Background(), "The bat flew out of the cave", []string{"bat", "flew", "cave"})
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if got := p.CallCount(); got != 1 {
		t.Fatalf("provider call count = %d, want 1", got)
	}

	req := p.ResolveCalls[0].Req
	if req.Sentence != "The bat flew out of the cave" {
		t.Errorf("request sentence = %q, want the original text", req.Sentence)
	}
	if len(req.Candidates) != 1 || req.Candidates[0] != "bat" {
		t.Errorf("request candidates = %v, want [bat]", req.Candidates)
	}

	want := []homonym.Hint{{Word: "bat", Occurrence: 0, Meaning: "animal"}}
	assertHints(t, hints, want)
}

func TestResolver_HintPerOccurrence(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Mapping: map[string]string{"bank": "financial institution"}}
	r := homonym.NewResolver(p)

	hints, err := r.Resolve(context.Background(), "the bank near the river bank", []string{"bank", "near", "river", "bank"})
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if got := p.CallCount(); got != 1 {
		t.Fatalf("provider call count = %d, want 1", got)
	}
	if got := p.ResolveCalls[0].Req.Candidates; len(got) != 1 {
		t.Errorf("candidates = %v, want duplicates collapsed to one entry", got)
	}

	want := []homonym.Hint{
		{Word: "bank", Occurrence: 0, Meaning: "financial institution"},
		{Word: "bank", Occurrence: 1, Meaning: "financial institution"},
	}
	assertHints(t, hints, want)
}

func TestResolver_ProviderFailureIsServiceError(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Err: errors.New("connection refused")}
	r := homonym.NewResolver(p)

	hints, err := r.Resolve(context.Background(), "the bat", []string{"bat"})
	if hints != nil {
		t.Errorf("Resolve() hints = %v, want nil on failure", hints)
	}

	var svcErr *homonym.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("Resolve() error = %v, want *ServiceError", err)
	}
	if svcErr.Provider != "mock" {
		t.Errorf("ServiceError.Provider = %q, want %q", svcErr.Provider, "mock")
	}
}

func TestResolver_MalformedReplyIsServiceError(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Err: meaning.ErrMalformedReply}
	r := homonym.NewResolver(p)

	_, err := r.Resolve(context.Background(), "the bat", []string{"bat"})
	if !errors.Is(err, meaning.ErrMalformedReply) {
		t.Errorf("Resolve() error = %v, want to wrap ErrMalformedReply", err)
	}
}

func TestResolver_AppliesTimeoutToCall(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Mapping: map[string]string{}}
	r := homonym.NewResolver(p, homonym.WithTimeout(time.Minute))

	if _, err := r.Resolve(context.Background(), "the bat", []string{"bat"}); err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if got := p.CallCount(); got != 1 {
		t.Fatalf("provider call count = %d, want 1", got)
	}
	if _, ok := p.ResolveCalls[0].Ctx.Deadline(); !ok {
		t.Error("provider context has no deadline, want one derived from the resolver timeout")
	}
}

func TestResolver_IgnoresWordsOutsideLexicon(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Mapping: map[string]string{
		"bat":  "animal",
		"flew": "past tense of fly",
	}}
	r := homonym.NewResolver(p)

	hints, err := r.Resolve(context.Background(), "the bat flew", []string{"bat", "flew"})
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}

	want := []homonym.Hint{{Word: "bat", Occurrence: 0, Meaning: "animal"}}
	assertHints(t, hints, want)
}

func TestResolver_SkipsEmptyMeanings(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Mapping: map[string]string{
		"bat": "  ",
		"saw": "cutting tool",
	}}
	r := homonym.NewResolver(p)

	hints, err := r.Resolve(context.Background(), "the bat saw", []string{"bat", "saw"})
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}

	want := []homonym.Hint{{Word: "saw", Occurrence: 0, Meaning: "cutting tool"}}
	assertHints(t, hints, want)
}

func TestResolver_HasCandidates(t *testing.T) {
	t.Parallel()

	r := homonym.NewResolver(&mock.Provider{})

	if r.HasCandidates([]string{"i", "want", "learn"}) {
		t.Error("HasCandidates() = true for plain words, want false")
	}
	if !r.HasCandidates([]string{"the", "bat", "flew"}) {
		t.Error("HasCandidates() = false for a lexicon word, want true")
	}
	if r.HasCandidates(nil) {
		t.Error("HasCandidates(nil) = true, want false")
	}
}

func TestResolver_CustomLexicon(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Mapping: map[string]string{"crane": "bird"}}
	r := homonym.NewResolver(p, homonym.WithLexicon([]string{"Crane", " bolt "}))

	hints, err := r.Resolve(context.Background(), "the crane lifted the bat", []string{"crane", "lifted", "bat"})
	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if got := p.ResolveCalls[0].Req.Candidates; len(got) != 1 || got[0] != "crane" {
		t.Errorf("candidates = %v, want [crane]", got)
	}

	want := []homonym.Hint{{Word: "crane", Occurrence: 0, Meaning: "bird"}}
	assertHints(t, hints, want)
}

func assertHints(t *testing.T, got, want []homonym.Hint) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("hints = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("hints[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
