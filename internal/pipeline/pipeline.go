// Package pipeline orchestrates the text-to-video flow: gloss
// translation, homonym resolution, clip selection, and assembly.
//
// Every Generate call is isolated. A run draws its own random source,
// stages its inputs in a private working directory, and removes that
// directory on every exit path. Concurrent runs share only the
// immutable corpus index, so they never interfere with each other.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/signloom/signloom/internal/corpus"
	"github.com/signloom/signloom/internal/gloss"
	"github.com/signloom/signloom/internal/homonym"
	"github.com/signloom/signloom/internal/observe"
	"github.com/signloom/signloom/internal/video"
)

const defaultSuggestLimit = 3

// IndexSource yields the current corpus index. Implementations must be
// safe for concurrent use; returned indexes are never mutated.
type IndexSource interface {
	Current() *corpus.Index
}

// StaticIndex adapts a fixed index into an IndexSource. Use it when
// corpus watching is disabled.
type StaticIndex struct {
	Index *corpus.Index
}

// Current returns the wrapped index.
func (s StaticIndex) Current() *corpus.Index { return s.Index }

// Stage identifies a phase of a generation run for progress reporting.
type Stage string

const (
	StageGloss    Stage = "gloss"
	StageHomonyms Stage = "homonyms"
	StageSelect   Stage = "select"
	StageEncode   Stage = "encode"
	StageDone     Stage = "done"
)

// Request describes one generation run.
type Request struct {
	// Text is the English input sentence.
	Text string

	// DetectHomonyms asks the meaning provider to disambiguate ambiguous
	// words. It has no effect when the pipeline has no resolver.
	DetectHomonyms bool

	// Transitions inserts crossfades between clips instead of hard cuts.
	Transitions bool

	// Resize scales every clip to the uniform target frame.
	Resize bool

	// OnProgress, when set, receives stage transitions as the run
	// advances. It is called from the generating goroutine.
	OnProgress func(stage Stage, detail string)
}

// Item is one clip scheduled for assembly.
type Item struct {
	Word    string
	ClipID  string
	Path    string
	Meaning string
}

// Result reports a completed generation run.
type Result struct {
	// ID is the unique run identifier; the output file is named after it.
	ID string

	// VideoPath is the final location of the assembled video.
	VideoPath string

	// Gloss holds the translated words in sentence order.
	Gloss []string

	// Items holds the selected clips in playback order.
	Items []Item

	// MissingWords lists gloss words without any corpus clip, without
	// duplicates, in first-occurrence order.
	MissingWords []string

	// Suggestions maps each missing word to similar vocabulary entries.
	Suggestions map[string][]string

	// Hints holds the homonym senses resolved for this run.
	Hints []homonym.Hint

	// Warnings collects non-fatal degradations that callers should surface.
	Warnings []string

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// Pipeline turns English text into assembled sign videos.
type Pipeline struct {
	source     IndexSource
	translator *gloss.Translator
	assembler  *video.Assembler

	resolver     *homonym.Resolver
	metrics      *observe.Metrics
	outputDir    string
	workDir      string
	suggestLimit int
	newRNG       func() *rand.Rand
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithResolver enables homonym resolution. Without it, runs skip the
// homonym stage entirely.
func WithResolver(r *homonym.Resolver) Option {
	return func(p *Pipeline) { p.resolver = r }
}

// WithMetrics records run telemetry on the given instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithWorkDir sets the parent directory for per-run staging
// directories. Defaults to the system temp directory.
func WithWorkDir(dir string) Option {
	return func(p *Pipeline) { p.workDir = dir }
}

// WithRandomSource replaces how runs obtain their random source. Each
// run calls the function once, so a fixed-seed source makes clip
// selection reproducible.
func WithRandomSource(src func() *rand.Rand) Option {
	return func(p *Pipeline) {
		if src != nil {
			p.newRNG = src
		}
	}
}

// WithSuggestionLimit caps how many similar words are suggested per
// missing gloss word.
func WithSuggestionLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.suggestLimit = n
		}
	}
}

// New creates a Pipeline writing finished videos to outputDir.
func New(source IndexSource, translator *gloss.Translator, assembler *video.Assembler, outputDir string, opts ...Option) (*Pipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("pipeline: index source must not be nil")
	}
	if translator == nil {
		return nil, fmt.Errorf("pipeline: translator must not be nil")
	}
	if assembler == nil {
		return nil, fmt.Errorf("pipeline: assembler must not be nil")
	}
	if outputDir == "" {
		return nil, fmt.Errorf("pipeline: output dir must not be empty")
	}

	p := &Pipeline{
		source:       source,
		translator:   translator,
		assembler:    assembler,
		outputDir:    outputDir,
		suggestLimit: defaultSuggestLimit,
		newRNG: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Generate runs the full pipeline for req and returns the produced
// video. Missing vocabulary and homonym-service failures degrade into
// Result.Warnings; the run fails hard only when no clip at all can be
// scheduled or the final encode breaks.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := observe.Logger(ctx).With(slog.String("run_id", runID))

	if p.metrics != nil {
		p.metrics.ActiveGenerations.Add(ctx, 1)
		defer p.metrics.ActiveGenerations.Add(ctx, -1)
	}

	res := &Result{ID: runID}

	notify(req, StageGloss, "")
	tokens := p.translator.Translate(req.Text)
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.Normalized
	}
	res.Gloss = words
	if len(tokens) == 0 {
		p.recordRun(ctx, "no_clips", start)
		return nil, &NoClipsError{}
	}

	ix := p.source.Current()
	if ix == nil {
		p.recordRun(ctx, "error", start)
		return nil, errors.New("pipeline: corpus index not available")
	}

	if p.resolver != nil && req.DetectHomonyms && p.resolver.HasCandidates(words) {
		notify(req, StageHomonyms, "")
		t0 := time.Now()
		hints, err := p.resolver.Resolve(ctx, req.Text, words)
		if p.metrics != nil {
			p.metrics.HomonymDuration.Record(ctx, time.Since(t0).Seconds())
			status := "ok"
			if err != nil {
				status = "error"
				p.metrics.RecordProviderError(ctx, p.resolver.ProviderName(), "meaning")
			}
			p.metrics.RecordProviderRequest(ctx, p.resolver.ProviderName(), "meaning", status)
		}
		if err != nil {
			log.Warn("homonym resolution degraded, continuing without hints", slog.Any("error", err))
			res.Warnings = append(res.Warnings, fmt.Sprintf("homonym detection unavailable: %v", err))
		} else {
			res.Hints = hints
		}
	}
	meaningFor := hintTable(res.Hints)

	notify(req, StageSelect, fmt.Sprintf("%d words", len(words)))
	rng := p.newRNG()
	occurrence := make(map[string]int, len(words))
	missingSeen := make(map[string]struct{})
	for _, w := range words {
		occ := occurrence[w]
		occurrence[w]++

		clip, ok := ix.SampleClip(rng, w)
		if !ok {
			if _, dup := missingSeen[w]; !dup {
				missingSeen[w] = struct{}{}
				res.MissingWords = append(res.MissingWords, w)
			}
			continue
		}
		res.Items = append(res.Items, Item{
			Word:    w,
			ClipID:  clip.ClipID,
			Path:    clip.Path,
			Meaning: meaningFor[hintKey{w, occ}],
		})
	}
	if p.metrics != nil {
		p.metrics.RecordSelection(ctx, len(res.Items), len(res.MissingWords))
	}

	for _, w := range res.MissingWords {
		if s := ix.Suggest(w, p.suggestLimit); len(s) > 0 {
			if res.Suggestions == nil {
				res.Suggestions = make(map[string][]string)
			}
			res.Suggestions[w] = s
		}
	}

	if len(res.Items) == 0 {
		log.Warn("no clips resolved", slog.Any("gloss", words))
		p.recordRun(ctx, "no_clips", start)
		return nil, &NoClipsError{Gloss: words, Missing: res.MissingWords, Suggestions: res.Suggestions}
	}
	if len(res.MissingWords) > 0 {
		log.Warn("skipping words without clips", slog.Any("words", res.MissingWords))
		res.Warnings = append(res.Warnings, fmt.Sprintf("no sign clips for: %s", strings.Join(res.MissingWords, ", ")))
	}

	notify(req, StageEncode, fmt.Sprintf("%d clips", len(res.Items)))
	outPath, err := p.assemble(ctx, runID, res.Items, req)
	if err != nil {
		p.recordRun(ctx, "encode_error", start)
		return nil, err
	}
	res.VideoPath = outPath
	res.Elapsed = time.Since(start)

	p.recordRun(ctx, "ok", start)
	notify(req, StageDone, filepath.Base(outPath))
	log.Info("generation complete",
		slog.Int("clips", len(res.Items)),
		slog.Int("missing_words", len(res.MissingWords)),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// assemble stages the selected clips into a fresh working directory,
// encodes them, and publishes the result into the output directory.
// The working directory is removed no matter how assembly exits.
func (p *Pipeline) assemble(ctx context.Context, runID string, items []Item, req Request) (string, error) {
	workDir, err := os.MkdirTemp(p.workDir, "signloom-"+runID[:8]+"-*")
	if err != nil {
		return "", fmt.Errorf("pipeline: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	staged := make([]string, len(items))
	for i, item := range items {
		dst := filepath.Join(workDir, fmt.Sprintf("%03d-%s%s", i, item.ClipID, filepath.Ext(item.Path)))
		if err := copyFile(item.Path, dst); err != nil {
			return "", fmt.Errorf("pipeline: stage clip %s: %w", item.ClipID, err)
		}
		staged[i] = dst
	}

	// A run that reached encoding finishes even if the caller goes away.
	encodeCtx := context.WithoutCancel(ctx)

	encoded := filepath.Join(workDir, "assembled.mp4")
	t0 := time.Now()
	err = p.assembler.Assemble(encodeCtx, video.EncodeRequest{
		Clips:       staged,
		OutputPath:  encoded,
		Transitions: req.Transitions,
		Resize:      req.Resize,
	})
	if p.metrics != nil {
		p.metrics.EncodeDuration.Record(ctx, time.Since(t0).Seconds())
	}
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("pipeline: create output dir: %w", err)
	}
	final := filepath.Join(p.outputDir, runID+".mp4")
	if err := moveFile(encoded, final); err != nil {
		return "", fmt.Errorf("pipeline: publish output: %w", err)
	}
	return final, nil
}

// WordReport describes the corpus coverage of a single word.
type WordReport struct {
	// Word is the normalized form that was looked up.
	Word string

	// Clips lists the indexed clips for the word, empty when the word is
	// not in the corpus.
	Clips []corpus.ClipRef

	// Suggestions lists similar vocabulary entries, populated only when
	// the word itself has no clips.
	Suggestions []string
}

// LookupWord reports the clips available for a single word. The word is
// normalized the same way generation input is; unknown words come back
// with an empty clip list and similar-word suggestions.
func (p *Pipeline) LookupWord(word string) (*WordReport, error) {
	ix := p.source.Current()
	if ix == nil {
		return nil, errors.New("pipeline: corpus index not available")
	}

	w := strings.TrimSpace(gloss.Normalize(word))
	rep := &WordReport{Word: w, Clips: ix.Lookup(w)}
	if len(rep.Clips) == 0 {
		rep.Suggestions = ix.Suggest(w, p.suggestLimit)
	}
	return rep, nil
}

// ClipSample is one randomly drawn corpus clip published to the output
// directory.
type ClipSample struct {
	Word   string
	ClipID string
	Path   string
}

// RandomClip draws a random word and clip from the corpus and publishes
// a copy of it into the output directory under a fresh name.
func (p *Pipeline) RandomClip(ctx context.Context) (*ClipSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ix := p.source.Current()
	if ix == nil {
		return nil, errors.New("pipeline: corpus index not available")
	}

	word, clip, ok := ix.RandomClip(p.newRNG())
	if !ok {
		return nil, errors.New("pipeline: corpus index is empty")
	}

	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("pipeline: create output dir: %w", err)
	}
	name := fmt.Sprintf("random-%s-%s%s", uuid.NewString()[:8], clip.ClipID, filepath.Ext(clip.Path))
	dst := filepath.Join(p.outputDir, name)
	if err := copyFile(clip.Path, dst); err != nil {
		return nil, fmt.Errorf("pipeline: publish clip %s: %w", clip.ClipID, err)
	}
	return &ClipSample{Word: word, ClipID: clip.ClipID, Path: dst}, nil
}

func (p *Pipeline) recordRun(ctx context.Context, status string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordRun(ctx, status, time.Since(start).Seconds())
	}
}

type hintKey struct {
	word string
	occ  int
}

func hintTable(hints []homonym.Hint) map[hintKey]string {
	if len(hints) == 0 {
		return nil
	}
	t := make(map[hintKey]string, len(hints))
	for _, h := range hints {
		t[hintKey{h.Word, h.Occurrence}] = h.Meaning
	}
	return t
}

func notify(req Request, stage Stage, detail string) {
	if req.OnProgress != nil {
		req.OnProgress(stage, detail)
	}
}
