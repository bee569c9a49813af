// Command signloom is the main entry point for the signloom sign language
// video server and its companion command-line tools.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/signloom/signloom/internal/app"
	"github.com/signloom/signloom/internal/config"
	"github.com/signloom/signloom/internal/corpus"
	"github.com/signloom/signloom/internal/observe"
	"github.com/signloom/signloom/internal/pipeline"
	"github.com/signloom/signloom/pkg/provider/meaning"
	"github.com/signloom/signloom/pkg/provider/meaning/anyllm"
	"github.com/signloom/signloom/pkg/provider/meaning/openai"
)

// version is the build version, overridable via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return runServe(args)
	case "generate":
		return runGenerate(args)
	case "recognize":
		return runRecognize(args)
	case "random":
		return runRandom(args)
	case "verify":
		return runVerify(args)
	case "help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "signloom: unknown command %q\n\n", cmd)
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `signloom assembles sign language videos from English text.

Usage:

  signloom [command] [flags]

Commands:

  serve       run the HTTP API server (default)
  generate    translate text into a sign video from the command line
  recognize   identify the sign performed in a video file
  random      publish a random clip from the corpus
  verify      check corpus metadata against the clips on disk

Every command accepts -config pointing at the YAML configuration file.
Run 'signloom <command> -h' for command flags.
`)
}

// ── Commands ──────────────────────────────────────────────────────────────────

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signloom: %v\n", err)
		return 1
	}

	slog.Info("signloom starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry first, so the application records into the real providers.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	printStartupSummary(cfg)

	application, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func runGenerate(args []string) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	text := fs.String("text", "", "English text to translate into a sign video")
	out := fs.String("out", "", "move the finished video to this path")
	transitions := fs.Bool("transitions", false, "crossfade between clips instead of hard cuts")
	resize := fs.Bool("resize", false, "scale every clip to the uniform frame size")
	homonyms := fs.Bool("homonyms", false, "ask the meaning provider to disambiguate ambiguous words")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*text) == "" {
		fmt.Fprintln(os.Stderr, "signloom: -text is required")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signloom: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer shutdownApp(application)

	// The config seeds the flag defaults; explicit flags win.
	req := pipeline.Request{
		Text:           *text,
		Transitions:    cfg.Video.Transitions,
		Resize:         cfg.Video.Resize,
		DetectHomonyms: *homonyms,
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "transitions":
			req.Transitions = *transitions
		case "resize":
			req.Resize = *resize
		}
	})

	res, err := application.Pipeline().Generate(ctx, req)
	var noClips *pipeline.NoClipsError
	if errors.As(err, &noClips) {
		fmt.Fprintf(os.Stderr, "signloom: no sign clips found for: %s\n", strings.Join(noClips.Missing, " "))
		printSuggestions(os.Stderr, noClips.Missing, noClips.Suggestions)
		return 1
	}
	if err != nil {
		slog.Error("generation failed", "err", err)
		return 1
	}

	if *out != "" {
		if err := os.Rename(res.VideoPath, *out); err != nil {
			slog.Error("failed to move output", "from", res.VideoPath, "to", *out, "err", err)
			return 1
		}
		res.VideoPath = *out
	}

	fmt.Printf("gloss: %s\n", strings.Join(res.Gloss, " "))
	if len(res.MissingWords) > 0 {
		fmt.Printf("missing: %s\n", strings.Join(res.MissingWords, " "))
		printSuggestions(os.Stdout, res.MissingWords, res.Suggestions)
	}
	for _, h := range res.Hints {
		fmt.Printf("homonym: %s = %s\n", h.Word, h.Meaning)
	}
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	fmt.Printf("video: %s (%d clips, %.1fs)\n", res.VideoPath, len(res.Items), res.Elapsed.Seconds())
	return 0
}

func runRecognize(args []string) int {
	fs := flag.NewFlagSet("recognize", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	videoPath := fs.String("video", "", "sign video file to recognize")
	topK := fs.Int("top-k", 0, "number of candidates to report (default: config top_k, else 5)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *videoPath == "" {
		fmt.Fprintln(os.Stderr, "signloom: -video is required")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signloom: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer shutdownApp(application)

	rec := application.Recognizer()
	if rec == nil {
		fmt.Fprintln(os.Stderr, "signloom: no recognizer configured — set recognizer.name in the config")
		return 1
	}

	k := *topK
	if k <= 0 {
		k = cfg.Recognizer.TopK
	}
	candidates, err := rec.Recognize(ctx, *videoPath, k)
	if err != nil {
		slog.Error("recognition failed", "video", *videoPath, "err", err)
		return 1
	}

	fmt.Printf("recognizer: %s\n", rec.Name())
	for i, c := range candidates {
		fmt.Printf("%2d. %-24s %.3f\n", i+1, c.Word, c.Confidence)
	}
	return 0
}

func runRandom(args []string) int {
	fs := flag.NewFlagSet("random", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	out := fs.String("out", "", "move the sampled clip to this path")
	recognize := fs.Bool("recognize", false, "run the recognizer on the sampled clip")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signloom: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer shutdownApp(application)

	sample, err := application.Pipeline().RandomClip(ctx)
	if err != nil {
		slog.Error("random clip failed", "err", err)
		return 1
	}
	if *out != "" {
		if err := os.Rename(sample.Path, *out); err != nil {
			slog.Error("failed to move clip", "from", sample.Path, "to", *out, "err", err)
			return 1
		}
		sample.Path = *out
	}

	fmt.Printf("word: %s\n", sample.Word)
	fmt.Printf("clip: %s\n", sample.ClipID)
	fmt.Printf("file: %s\n", sample.Path)

	if *recognize {
		rec := application.Recognizer()
		if rec == nil {
			fmt.Fprintln(os.Stderr, "signloom: no recognizer configured — set recognizer.name in the config")
			return 1
		}
		candidates, err := rec.Recognize(ctx, sample.Path, cfg.Recognizer.TopK)
		if err != nil {
			slog.Error("recognition failed", "err", err)
			return 1
		}
		fmt.Printf("recognizer: %s\n", rec.Name())
		for i, c := range candidates {
			fmt.Printf("%2d. %-24s %.3f\n", i+1, c.Word, c.Confidence)
		}
	}
	return 0
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signloom: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var buildOpts []corpus.BuildOption
	if cfg.Corpus.ClipExt != "" {
		buildOpts = append(buildOpts, corpus.WithClipExt(cfg.Corpus.ClipExt))
	}
	ix, err := corpus.Build(ctx, cfg.Corpus.MetadataPath, cfg.Corpus.VideosDir, buildOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signloom: %v\n", err)
		return 1
	}

	st := ix.Stats()
	fmt.Printf("metadata entries : %d\n", st.Entries)
	fmt.Printf("words indexed    : %d\n", ix.WordCount())
	fmt.Printf("words dropped    : %d\n", st.WordsDropped)
	fmt.Printf("clips on disk    : %d\n", st.Clips)
	fmt.Printf("clips missing    : %d\n", st.ClipsMissing)

	if ix.WordCount() == 0 {
		fmt.Fprintln(os.Stderr, "signloom: corpus is unusable — no word has a clip on disk")
		return 1
	}
	if st.ClipsMissing > 0 {
		fmt.Fprintf(os.Stderr, "signloom: %d clips referenced by the metadata are missing\n", st.ClipsMissing)
		return 1
	}
	fmt.Println("corpus ok")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinMeaningProviders lists the meaning backends that ship with
// signloom. Used for startup logging.
var builtinMeaningProviders = []string{
	"openai", "anthropic", "gemini", "ollama",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders binds a factory for every backend signloom
// ships, so configuration can select any of them by name.
func registerBuiltinProviders(reg *config.Registry) {
	// The native OpenAI client supports organization scoping, which the
	// universal backend does not expose.
	reg.RegisterMeaning("openai", func(entry config.ProviderEntry) (meaning.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile all
	// share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterMeaning(providerName, func(entry config.ProviderEntry) (meaning.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama serves locally, so only the address matters.
	reg.RegisterMeaning("ollama", func(entry config.ProviderEntry) (meaning.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	for _, name := range builtinMeaningProviders {
		slog.Debug("registered provider", "kind", "meaning", "name", name)
	}
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if cfg.Homonyms.Detect {
		name := cfg.Homonyms.Provider.Name
		p, err := reg.CreateMeaning(cfg.Homonyms.Provider)
		if err != nil {
			return nil, fmt.Errorf("create meaning provider %q: %w", name, err)
		}
		ps.Meaning = p
		slog.Info("provider created", "kind", "meaning", "name", name)
	}

	return ps, nil
}

// buildApp wires the provider registry and constructs the application.
func buildApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, version, providers)
}

// shutdownApp tears down a one-shot command's application with a bounded
// deadline.
func shutdownApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		slog.Warn("shutdown error", "err", err)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        signloom — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printEntry("Corpus", cfg.Corpus.MetadataPath)
	if cfg.Corpus.Watch {
		printEntry("Watch", "on")
	} else {
		printEntry("Watch", "off")
	}
	if cfg.Homonyms.Detect {
		printEntry("Homonyms", cfg.Homonyms.Provider.Name+" / "+cfg.Homonyms.Provider.Model)
	} else {
		printEntry("Homonyms", "(disabled)")
	}
	if cfg.Recognizer.Name != "" {
		printEntry("Recognizer", cfg.Recognizer.Name)
	} else {
		printEntry("Recognizer", "(disabled)")
	}
	if cfg.History.Path != "" {
		printEntry("History", cfg.History.Path)
	} else {
		printEntry("History", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		printEntry("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printEntry(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// loadConfig reads the YAML config and installs the configured logger.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found — copy configs/example.yaml to get started", path)
		}
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	return cfg, nil
}

// printSuggestions lists similar vocabulary entries for each missing word.
func printSuggestions(w *os.File, missing []string, suggestions map[string][]string) {
	for _, word := range missing {
		if alts := suggestions[word]; len(alts) > 0 {
			fmt.Fprintf(w, "  %s: try %s\n", word, strings.Join(alts, ", "))
		}
	}
}

// optString pulls a string out of a provider Options map. Anything
// missing or non-string comes back as "".
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
