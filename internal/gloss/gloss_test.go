package gloss_test

import (
	"slices"
	"testing"

	"github.com/signloom/signloom/internal/gloss"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "lowercases", in: "Hello World", want: "hello world"},
		{name: "punctuation to space", in: "hello, world!", want: "hello  world "},
		{name: "apostrophe splits word", in: "don't", want: "don t"},
		{name: "digits kept", in: "room 42", want: "room 42"},
		{name: "whitespace preserved", in: "a\tb\nc", want: "a\tb\nc"},
		{name: "underscore is punctuation", in: "a_b", want: "a b"},
		{name: "only punctuation", in: "?!...", want: "     "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := gloss.Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"Hello, World!",
		"don't stop",
		"  spaces   everywhere  ",
		"ÜBER-cool stuff №5",
		"tabs\tand\nnewlines",
	}
	for _, in := range inputs {
		once := gloss.Normalize(in)
		twice := gloss.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestTranslator_DropsFunctionWords(t *testing.T) {
	t.Parallel()

	tr := gloss.NewTranslator(nil)

	got := tr.Words("I want to learn sign language")
	want := []string{"i", "want", "learn", "sign", "language"}
	if !slices.Equal(got, want) {
		t.Errorf("Words(...) = %v, want %v", got, want)
	}
}

func TestTranslator_OnlyFunctionWords(t *testing.T) {
	t.Parallel()

	tr := gloss.NewTranslator(nil)

	if got := tr.Translate("the a an is are to and"); len(got) != 0 {
		t.Errorf("Translate(only function words) = %v, want empty", got)
	}
}

func TestTranslator_EmptyInput(t *testing.T) {
	t.Parallel()

	tr := gloss.NewTranslator(nil)

	if got := tr.Translate(""); len(got) != 0 {
		t.Errorf("Translate(\"\") = %v, want empty", got)
	}
	if got := tr.Translate("   \t\n "); len(got) != 0 {
		t.Errorf("Translate(whitespace) = %v, want empty", got)
	}
}

func TestTranslator_PreservesOrderAndDuplicates(t *testing.T) {
	t.Parallel()

	tr := gloss.NewTranslator(nil)

	got := tr.Words("book book table book")
	want := []string{"book", "book", "table", "book"}
	if !slices.Equal(got, want) {
		t.Errorf("Words(...) = %v, want %v (no dedup, stable order)", got, want)
	}
}

func TestTranslator_TokenFields(t *testing.T) {
	t.Parallel()

	tr := gloss.NewTranslator(nil)

	tokens := tr.Translate("I WANT to Learn!")
	want := []gloss.Token{
		{Surface: "I", Normalized: "i", Position: 0},
		{Surface: "WANT", Normalized: "want", Position: 1},
		{Surface: "Learn!", Normalized: "learn", Position: 2},
	}
	if len(tokens) != len(want) {
		t.Fatalf("Translate(...) returned %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token[%d] = %+v, want %+v", i, tokens[i], want[i])
		}
	}
}

func TestTranslator_SplitSurface(t *testing.T) {
	t.Parallel()

	tr := gloss.NewTranslator(nil)

	// "don't" normalizes to two words; both keep the original field as surface.
	tokens := tr.Translate("don't panic")
	want := []gloss.Token{
		{Surface: "don't", Normalized: "don", Position: 0},
		{Surface: "don't", Normalized: "t", Position: 1},
		{Surface: "panic", Normalized: "panic", Position: 2},
	}
	if len(tokens) != len(want) {
		t.Fatalf("Translate(...) returned %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token[%d] = %+v, want %+v", i, tokens[i], want[i])
		}
	}
}

func TestTranslator_CustomSkipWords(t *testing.T) {
	t.Parallel()

	tr := gloss.NewTranslator([]string{"Foo", "BAR"})

	got := tr.Words("foo keeps bar the")
	// Custom set replaces the default entirely, so "the" survives.
	want := []string{"keeps", "the"}
	if !slices.Equal(got, want) {
		t.Errorf("Words(...) = %v, want %v", got, want)
	}
}
