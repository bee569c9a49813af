package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames holds the provider names [Validate] recognises,
// keyed by provider kind. Unknown names only warn, so third-party
// registrations keep working.
var ValidProviderNames = map[string][]string{
	"meaning":    {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"recognizer": {"stub"},
}

// x264Presets lists the encoder presets ffmpeg accepts for libx264.
var x264Presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow", "placebo",
}

// Load reads, decodes, and validates the YAML file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the
// result. Tests feed it string literals instead of files.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate collects every problem in cfg into one joined error so a
// single run surfaces the full list. Conditions that merely degrade
// functionality are logged as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", cfg.Server.MaxUploadBytes))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Corpus
	if cfg.Corpus.MetadataPath == "" {
		errs = append(errs, errors.New("corpus.metadata_path is required"))
	}
	if cfg.Corpus.VideosDir == "" {
		errs = append(errs, errors.New("corpus.videos_dir is required"))
	}
	if cfg.Corpus.ClipExt != "" && !strings.HasPrefix(cfg.Corpus.ClipExt, ".") {
		errs = append(errs, fmt.Errorf("corpus.clip_ext %q must start with a dot", cfg.Corpus.ClipExt))
	}
	if cfg.Corpus.WatchIntervalS < 0 {
		errs = append(errs, fmt.Errorf("corpus.watch_interval_s %d must not be negative", cfg.Corpus.WatchIntervalS))
	}

	// Homonyms
	if cfg.Homonyms.TimeoutS < 0 {
		errs = append(errs, fmt.Errorf("homonyms.timeout_s %d must not be negative", cfg.Homonyms.TimeoutS))
	}
	if cfg.Homonyms.Detect && cfg.Homonyms.Provider.Name == "" {
		errs = append(errs, errors.New("homonyms.detect requires homonyms.provider.name"))
	}
	validateProviderName("meaning", cfg.Homonyms.Provider.Name)

	// Recognizer
	if cfg.Recognizer.TopK < 0 {
		errs = append(errs, fmt.Errorf("recognizer.top_k %d must not be negative", cfg.Recognizer.TopK))
	}
	validateProviderName("recognizer", cfg.Recognizer.Name)

	// Video
	if cfg.Video.Width < 0 || cfg.Video.Height < 0 {
		errs = append(errs, fmt.Errorf("video target size %dx%d must not be negative", cfg.Video.Width, cfg.Video.Height))
	}
	if (cfg.Video.Width == 0) != (cfg.Video.Height == 0) {
		errs = append(errs, errors.New("video.width and video.height must be set together"))
	}
	if cfg.Video.FPS < 0 {
		errs = append(errs, fmt.Errorf("video.fps %d must not be negative", cfg.Video.FPS))
	}
	if cfg.Video.CRF < 0 || cfg.Video.CRF > 51 {
		errs = append(errs, fmt.Errorf("video.crf %d is out of range [0, 51]", cfg.Video.CRF))
	}
	if cfg.Video.Preset != "" && !slices.Contains(x264Presets, cfg.Video.Preset) {
		errs = append(errs, fmt.Errorf("video.preset %q is not a libx264 preset", cfg.Video.Preset))
	}
	if cfg.Video.FadeDurationS < 0 {
		errs = append(errs, fmt.Errorf("video.fade_duration_s %.2f must not be negative", cfg.Video.FadeDurationS))
	}

	// Degraded-mode warnings
	if !cfg.Homonyms.Detect && cfg.Homonyms.Provider.Name != "" {
		slog.Warn("homonyms.provider is configured but homonyms.detect is false; meaning resolution stays off")
	}
	if cfg.Recognizer.Name == "" {
		slog.Warn("recognizer.name is empty; recognition endpoints will be unavailable")
	}
	if cfg.History.Path == "" {
		slog.Warn("history.path is empty; generation history will not be recorded")
	}

	return errors.Join(errs...)
}

// validateProviderName warns when a non-empty name is missing from
// [ValidProviderNames] for the kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
