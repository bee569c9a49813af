// Package app wires all signloom subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds and connects all
// subsystems, Run serves the HTTP API until the context is cancelled, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithIndexSource,
// WithCommandRunner, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/signloom/signloom/internal/config"
	"github.com/signloom/signloom/internal/corpus"
	"github.com/signloom/signloom/internal/gloss"
	"github.com/signloom/signloom/internal/health"
	"github.com/signloom/signloom/internal/history"
	"github.com/signloom/signloom/internal/homonym"
	"github.com/signloom/signloom/internal/observe"
	"github.com/signloom/signloom/internal/pipeline"
	"github.com/signloom/signloom/internal/server"
	"github.com/signloom/signloom/internal/video"
	"github.com/signloom/signloom/pkg/provider/meaning"
	"github.com/signloom/signloom/pkg/provider/recognizer"
	"github.com/signloom/signloom/pkg/provider/recognizer/stub"
)

const (
	defaultListenAddr = ":8080"
	defaultOutputDir  = "videos"
)

// Providers holds one interface value per external provider slot. Nil means
// the provider is not configured. Populated by main.go via the config
// registry.
type Providers struct {
	Meaning meaning.Provider
}

// App owns all subsystem lifetimes and serves the signloom pipeline.
type App struct {
	cfg       *config.Config
	version   string
	providers *Providers

	// Built in New, torn down in Shutdown.
	source     pipeline.IndexSource
	translator *gloss.Translator
	resolver   *homonym.Resolver
	assembler  *video.Assembler
	pipe       *pipeline.Pipeline
	store      *history.Store
	rec        recognizer.Provider
	metrics    *observe.Metrics
	srv        *server.Server

	outputDir string
	runner    video.CommandRunner

	// Shutdown walks closers in registration order, once.
	closers  []func() error
	stopOnce sync.Once
}

// Option overrides one of the subsystems New would otherwise build
// itself. Tests use these to slot in doubles.
type Option func(*App)

// WithIndexSource injects a corpus index source instead of building one
// from the configured metadata file.
func WithIndexSource(src pipeline.IndexSource) Option {
	return func(a *App) { a.source = src }
}

// WithRecognizer injects a recognition provider instead of creating one
// from config.
func WithRecognizer(p recognizer.Provider) Option {
	return func(a *App) { a.rec = p }
}

// WithCommandRunner replaces how the video assembler executes ffmpeg.
func WithCommandRunner(run video.CommandRunner) Option {
	return func(a *App) { a.runner = run }
}

// WithMetrics injects a metrics set instead of using the global meter
// provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New wires every subsystem into a runnable App. The providers struct
// comes from main.go, populated through the config registry; Option
// values replace individual subsystems.
//
// Initialisation is synchronous: the corpus index is built (or the
// background watcher started), the pipeline assembled, the history
// store opened, and the HTTP server constructed. Nothing listens until
// Run.
func New(ctx context.Context, cfg *config.Config, version string, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		version:   version,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Metrics ───────────────────────────────────────────────────────
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 2. Corpus index ──────────────────────────────────────────────────
	if err := a.initCorpus(ctx); err != nil {
		return nil, fmt.Errorf("app: init corpus: %w", err)
	}

	// ── 3. Gloss translation + homonym resolution ────────────────────────
	a.translator = gloss.NewTranslator(cfg.Gloss.SkipWords)
	if err := a.initResolver(); err != nil {
		return nil, fmt.Errorf("app: init resolver: %w", err)
	}

	// ── 4. Video assembly ────────────────────────────────────────────────
	a.initVideo()

	// ── 5. Pipeline ──────────────────────────────────────────────────────
	if err := a.initPipeline(); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}

	// ── 6. History store ─────────────────────────────────────────────────
	if err := a.initHistory(); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	// ── 7. Recognizer ────────────────────────────────────────────────────
	if err := a.initRecognizer(); err != nil {
		return nil, fmt.Errorf("app: init recognizer: %w", err)
	}

	// ── 8. HTTP server ───────────────────────────────────────────────────
	if err := a.initServer(); err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initCorpus builds the clip index, or starts the background watcher when
// the config asks for rebuild-on-change.
func (a *App) initCorpus(ctx context.Context) error {
	if a.source == nil {
		var buildOpts []corpus.BuildOption
		if a.cfg.Corpus.ClipExt != "" {
			buildOpts = append(buildOpts, corpus.WithClipExt(a.cfg.Corpus.ClipExt))
		}

		if a.cfg.Corpus.Watch {
			var watchOpts []corpus.WatcherOption
			if len(buildOpts) > 0 {
				watchOpts = append(watchOpts, corpus.WithBuildOptions(buildOpts...))
			}
			if a.cfg.Corpus.WatchIntervalS > 0 {
				watchOpts = append(watchOpts, corpus.WithInterval(time.Duration(a.cfg.Corpus.WatchIntervalS)*time.Second))
			}
			w, err := corpus.NewWatcher(ctx, a.cfg.Corpus.MetadataPath, a.cfg.Corpus.VideosDir, a.onIndexSwap, watchOpts...)
			if err != nil {
				return err
			}
			a.source = w
			a.closers = append(a.closers, func() error {
				w.Stop()
				return nil
			})
		} else {
			ix, err := corpus.Build(ctx, a.cfg.Corpus.MetadataPath, a.cfg.Corpus.VideosDir, buildOpts...)
			if err != nil {
				return err
			}
			a.source = pipeline.StaticIndex{Index: ix}
		}
	}

	ix := a.source.Current()
	if ix == nil {
		return errors.New("index source returned no index")
	}
	st := ix.Stats()
	slog.Info("corpus index ready",
		"words", ix.WordCount(),
		"clips", st.Clips,
		"words_dropped", st.WordsDropped,
		"clips_missing", st.ClipsMissing,
	)
	a.metrics.RecordCorpus(ctx, ix.WordCount(), st.Clips)
	return nil
}

// onIndexSwap records a background index rebuild.
func (a *App) onIndexSwap(_, next *corpus.Index) {
	slog.Info("corpus index rebuilt",
		"words", next.WordCount(),
		"clips", next.Stats().Clips,
	)
	a.metrics.RecordCorpus(context.Background(), next.WordCount(), next.Stats().Clips)
}

// initResolver builds the homonym resolver when detection is enabled.
func (a *App) initResolver() error {
	if !a.cfg.Homonyms.Detect {
		return nil
	}
	if a.providers.Meaning == nil {
		return errors.New("homonyms.detect is enabled but no meaning provider was built")
	}

	var opts []homonym.Option
	if len(a.cfg.Homonyms.Lexicon) > 0 {
		opts = append(opts, homonym.WithLexicon(a.cfg.Homonyms.Lexicon))
	}
	if a.cfg.Homonyms.TimeoutS > 0 {
		opts = append(opts, homonym.WithTimeout(time.Duration(a.cfg.Homonyms.TimeoutS)*time.Second))
	}
	a.resolver = homonym.NewResolver(a.providers.Meaning, opts...)
	slog.Info("homonym resolution enabled", "provider", a.providers.Meaning.Name())
	return nil
}

// initVideo creates the ffmpeg assembler. Every option tolerates the config
// zero value, so the whole section is passed through unconditionally.
func (a *App) initVideo() {
	opts := []video.Option{
		video.WithFFmpegPath(a.cfg.Video.FFmpegPath),
		video.WithFFprobePath(a.cfg.Video.FFprobePath),
		video.WithTargetSize(a.cfg.Video.Width, a.cfg.Video.Height),
		video.WithFrameRate(a.cfg.Video.FPS),
		video.WithQuality(a.cfg.Video.CRF, a.cfg.Video.Preset),
		video.WithFadeDuration(a.cfg.Video.FadeDurationS),
	}
	if a.runner != nil {
		opts = append(opts, video.WithRunner(a.runner))
	}
	a.assembler = video.New(opts...)
}

// initPipeline assembles the generation pipeline around the index source,
// translator, and encoder.
func (a *App) initPipeline() error {
	a.outputDir = a.cfg.Server.OutputDir
	if a.outputDir == "" {
		a.outputDir = defaultOutputDir
	}

	popts := []pipeline.Option{pipeline.WithMetrics(a.metrics)}
	if a.resolver != nil {
		popts = append(popts, pipeline.WithResolver(a.resolver))
	}
	if a.cfg.Video.WorkDir != "" {
		popts = append(popts, pipeline.WithWorkDir(a.cfg.Video.WorkDir))
	}

	pipe, err := pipeline.New(a.source, a.translator, a.assembler, a.outputDir, popts...)
	if err != nil {
		return err
	}
	a.pipe = pipe
	return nil
}

// initHistory opens the sqlite run log when a path is configured.
func (a *App) initHistory() error {
	if a.cfg.History.Path == "" {
		return nil
	}
	store, err := history.Open(a.cfg.History.Path)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	slog.Info("history store open", "path", a.cfg.History.Path)
	return nil
}

// initRecognizer creates the sign recognition provider named in the config.
// The stub answers from the indexed vocabulary, so it needs the corpus.
func (a *App) initRecognizer() error {
	if a.rec != nil {
		return nil // injected
	}

	switch a.cfg.Recognizer.Name {
	case "":
		return nil
	case "stub":
		ix := a.source.Current()
		if ix == nil || ix.WordCount() == 0 {
			return errors.New("stub recognizer needs a non-empty corpus vocabulary")
		}
		var opts []stub.Option
		if a.cfg.Recognizer.Seed != 0 {
			opts = append(opts, stub.WithSeed(a.cfg.Recognizer.Seed))
		}
		rec, err := stub.New(ix.AllWords(), opts...)
		if err != nil {
			return err
		}
		a.rec = rec
		slog.Info("recognizer ready", "name", rec.Name())
		return nil
	default:
		return fmt.Errorf("unknown recognizer %q", a.cfg.Recognizer.Name)
	}
}

// initServer constructs the HTTP server and its health checks. The server
// does not listen until Run.
func (a *App) initServer() error {
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}

	checkers := []health.Checker{
		{Name: "corpus", Check: a.checkCorpus},
		{Name: "encoder", Check: a.assembler.Check},
	}
	if a.store != nil {
		checkers = append(checkers, health.Checker{Name: "history", Check: a.store.Ping})
	}

	sopts := []server.Option{
		server.WithHealth(health.New(a.version, checkers...)),
		server.WithMetrics(a.metrics),
	}
	if a.store != nil {
		sopts = append(sopts, server.WithHistory(a.store))
	}
	if a.rec != nil {
		sopts = append(sopts, server.WithRecognizer(a.rec, a.cfg.Recognizer.TopK))
	}
	if a.cfg.Server.MaxUploadBytes > 0 {
		sopts = append(sopts, server.WithMaxUploadBytes(a.cfg.Server.MaxUploadBytes))
	}
	if tls := a.cfg.Server.TLS; tls != nil {
		sopts = append(sopts, server.WithTLS(tls.CertFile, tls.KeyFile))
	}

	srv, err := server.New(addr, a.outputDir, a.pipe, a.source, sopts...)
	if err != nil {
		return err
	}
	a.srv = srv
	return nil
}

// checkCorpus reports readiness of the clip index.
func (a *App) checkCorpus(_ context.Context) error {
	ix := a.source.Current()
	if ix == nil {
		return errors.New("index not built")
	}
	if ix.WordCount() == 0 {
		return errors.New("index is empty")
	}
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the HTTP server and blocks until ctx is cancelled or serving
// fails. In-flight generation runs finish encoding even after cancellation;
// only the listener is torn down.
func (a *App) Run(ctx context.Context) error {
	ix := a.source.Current()
	slog.Info("app running",
		"addr", a.cfg.Server.ListenAddr,
		"words", ix.WordCount(),
		"clips", ix.Stats().Clips,
	)
	return a.srv.Run(ctx)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Pipeline exposes the generation pipeline for direct command-line use.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipe }

// Recognizer exposes the recognition provider. Nil when not configured.
func (a *App) Recognizer() recognizer.Provider { return a.rec }

// Index returns the corpus index currently in use.
func (a *App) Index() *corpus.Index { return a.source.Current() }
