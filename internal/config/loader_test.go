package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signloom/signloom/internal/config"
)

func TestLoad_ReadsFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "signloom.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Corpus.VideosDir != "/data/wlasl/videos" {
		t.Errorf("corpus.videos_dir: got %q", cfg.Corpus.VideosDir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "nope.yaml") {
		t.Errorf("error should name the file, got: %v", err)
	}
}

func TestLoad_ParseErrorNamesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("corpus: [not a mapping"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for broken yaml, got nil")
	}
	if !strings.Contains(err.Error(), "broken.yaml") {
		t.Errorf("error should name the file, got: %v", err)
	}
}

func TestValidate_NegativeValues(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  max_upload_bytes: -1
corpus:
  metadata_path: meta.json
  videos_dir: videos
  watch_interval_s: -5
homonyms:
  timeout_s: -1
video:
  fps: -25
  fade_duration_s: -0.5
recognizer:
  top_k: -3
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors for negative values, got nil")
	}
	errStr := err.Error()
	for _, field := range []string{
		"max_upload_bytes",
		"watch_interval_s",
		"timeout_s",
		"fps",
		"fade_duration_s",
		"top_k",
	} {
		if !strings.Contains(errStr, field) {
			t.Errorf("error should mention %s, got: %v", field, err)
		}
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
video:
  crf: 60
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	// The joined error should carry every failure, not just the first.
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "crf") {
		t.Errorf("error should mention crf, got: %v", err)
	}
	if !strings.Contains(errStr, "metadata_path") {
		t.Errorf("error should mention metadata_path, got: %v", err)
	}
}

func TestValidate_FullVideoSectionIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
corpus:
  metadata_path: meta.json
  videos_dir: videos
video:
  width: 1280
  height: 720
  fps: 30
  crf: 18
  preset: veryfast
  transitions: true
  fade_duration_s: 0.25
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Video.Preset != "veryfast" {
		t.Errorf("video.preset: got %q, want %q", cfg.Video.Preset, "veryfast")
	}
}

func TestValidate_DetectWithProviderIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
corpus:
  metadata_path: meta.json
  videos_dir: videos
homonyms:
  detect: true
  provider:
    name: ollama
    model: llama3
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	meaningNames := config.ValidProviderNames["meaning"]
	if len(meaningNames) == 0 {
		t.Fatal("ValidProviderNames[\"meaning\"] should not be empty")
	}
	// Check that "openai" is in the meaning list.
	found := false
	for _, n := range meaningNames {
		if n == "openai" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"meaning\"] should contain \"openai\"")
	}
}
