// Package config provides the configuration schema, loader, and provider
// registry for the signloom server.
package config

// LogLevel controls log verbosity for the signloom server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l names one of the four levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for signloom. Values come
// from a YAML file via [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Gloss      GlossConfig      `yaml:"gloss"`
	Homonyms   HomonymsConfig   `yaml:"homonyms"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Video      VideoConfig      `yaml:"video"`
	History    HistoryConfig    `yaml:"history"`
}

// ServerConfig holds network, logging, and output settings.
type ServerConfig struct {
	// ListenAddr is the host:port the HTTP server binds, such as ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel is the minimum level emitted.
	LogLevel LogLevel `yaml:"log_level"`

	// OutputDir is where finished videos are published and served from.
	OutputDir string `yaml:"output_dir"`

	// MaxUploadBytes caps the size of recognition uploads. Zero keeps the
	// built-in default.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// TLS enables HTTPS when set. Nil serves plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig names the certificate pair used for HTTPS.
type TLSConfig struct {
	// CertFile and KeyFile point at the PEM certificate and private key.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// CorpusConfig locates the sign-clip corpus and controls index rebuilds.
type CorpusConfig struct {
	// MetadataPath is the WLASL-style JSON metadata file.
	MetadataPath string `yaml:"metadata_path"`

	// VideosDir holds the clip files referenced by the metadata.
	VideosDir string `yaml:"videos_dir"`

	// ClipExt is the clip file extension (default ".mp4").
	ClipExt string `yaml:"clip_ext"`

	// Watch rebuilds the index in the background when the metadata file
	// changes. Without it the index is built once at startup.
	Watch bool `yaml:"watch"`

	// WatchIntervalS is the polling interval in seconds. Zero keeps the
	// built-in default.
	WatchIntervalS int `yaml:"watch_interval_s"`
}

// GlossConfig tunes the text-to-gloss translation.
type GlossConfig struct {
	// SkipWords replaces the built-in set of function words dropped during
	// translation. Leave empty to keep the default set.
	SkipWords []string `yaml:"skip_words"`
}

// HomonymsConfig controls meaning disambiguation for ambiguous words.
type HomonymsConfig struct {
	// Detect wires up the meaning provider. Individual requests still opt
	// in per run.
	Detect bool `yaml:"detect"`

	// Lexicon replaces the built-in set of ambiguous words. Leave empty to
	// keep the default set.
	Lexicon []string `yaml:"lexicon"`

	// TimeoutS bounds the single provider call, in seconds. Zero keeps the
	// built-in default.
	TimeoutS int `yaml:"timeout_s"`

	// Provider selects and configures the meaning provider.
	Provider ProviderEntry `yaml:"provider"`
}

// ProviderEntry is the common configuration block for external
// providers. Name doubles as the lookup key into the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "ollama").
	Name string `yaml:"name"`

	// APIKey authenticates against hosted providers. Local backends
	// ignore it.
	APIKey string `yaml:"api_key"`

	// BaseURL points the provider at a non-default endpoint, such as a
	// local Ollama server or an API gateway.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options carries provider-specific settings the shared fields do
	// not cover, such as "organization" for OpenAI.
	Options map[string]any `yaml:"options"`
}

// RecognizerConfig selects the sign recognition provider.
type RecognizerConfig struct {
	// Name selects the recognizer ("stub"). Empty disables the recognition
	// endpoints.
	Name string `yaml:"name"`

	// TopK is the default number of predictions per request.
	TopK int `yaml:"top_k"`

	// Seed fixes the stub's randomness for reproducible demos. Zero draws
	// a fresh seed per process.
	Seed uint64 `yaml:"seed"`
}

// VideoConfig tunes the ffmpeg assembly step.
type VideoConfig struct {
	// Width and Height are the uniform target frame size used when a run
	// asks for resizing. Zero keeps the built-in defaults.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// FPS is the target frame rate.
	FPS int `yaml:"fps"`

	// CRF is the libx264 constant rate factor (0-51, lower is better).
	CRF int `yaml:"crf"`

	// Preset is the libx264 speed/size preset (e.g., "medium", "fast").
	Preset string `yaml:"preset"`

	// Transitions and Resize seed the generate-command flag defaults. API
	// requests carry their own flags.
	Transitions bool `yaml:"transitions"`
	Resize      bool `yaml:"resize"`

	// FadeDurationS is the crossfade length in seconds.
	FadeDurationS float64 `yaml:"fade_duration_s"`

	// FFmpegPath and FFprobePath override binary discovery via PATH.
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	// WorkDir is the parent directory for per-run staging directories.
	// Empty uses the system temp directory.
	WorkDir string `yaml:"work_dir"`
}

// HistoryConfig controls the generation history store.
type HistoryConfig struct {
	// Path is the sqlite database file. Empty disables history.
	Path string `yaml:"path"`
}
