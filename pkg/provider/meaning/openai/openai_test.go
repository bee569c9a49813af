package openai

import (
	"testing"
	"time"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("", "gpt-4o-mini")
	if err == nil {
		t.Fatal("expected error for empty apiKey, got nil")
	}
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model, got nil")
	}
}

func TestNew_AppliesOptions(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini",
		WithBaseURL("http://localhost:8080/v1"),
		WithOrganization("org-test"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q, want %q", p.Name(), "openai")
	}
	if p.model != "gpt-4o-mini" {
		t.Errorf("model = %q, want %q", p.model, "gpt-4o-mini")
	}
}

func TestOptions_IgnoreZeroValues(t *testing.T) {
	var cc clientConfig
	WithBaseURL("")(&cc)
	WithOrganization("")(&cc)
	WithTimeout(0)(&cc)
	if len(cc.opts) != 0 {
		t.Errorf("zero-valued options added %d request options, want 0", len(cc.opts))
	}

	WithTimeout(5 * time.Second)(&cc)
	if len(cc.opts) != 1 {
		t.Errorf("WithTimeout(5s) appended %d request options, want 1", len(cc.opts))
	}
}
