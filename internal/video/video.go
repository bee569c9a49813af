// Package video assembles sign clips into a single continuous video by
// driving ffmpeg. The assembler never decodes media itself: it builds a
// filter graph over the input clips (optional scaling to a uniform
// frame size, hard cuts or crossfades between clips) and runs one
// encode per request. Output is video-only.
//
// External commands run through a CommandRunner, so tests exercise the
// full argument construction without ffmpeg installed.
package video

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNoClips is returned when an encode is requested with no inputs.
var ErrNoClips = errors.New("video: no clips to assemble")

const (
	defaultWidth  = 640
	defaultHeight = 480
	defaultFPS    = 25
	defaultCodec  = "libx264"
	defaultCRF    = 23
	defaultPreset = "medium"
	defaultFade   = 0.5
)

// Assembler encodes clip sequences. It is safe for concurrent use:
// every request runs an independent ffmpeg process.
type Assembler struct {
	ffmpegPath  string
	ffprobePath string

	width  int
	height int
	fps    int
	codec  string
	crf    int
	preset string
	fade   float64

	run CommandRunner
}

// EncodeRequest describes one assembly job.
type EncodeRequest struct {
	// Clips are the input video paths in playback order.
	Clips []string

	// OutputPath is where the encoded video is written.
	OutputPath string

	// Transitions selects crossfades between clips instead of hard cuts.
	Transitions bool

	// Resize scales and pads every clip to the assembler's target frame
	// size. When false, inputs are expected to share dimensions already.
	Resize bool
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithFFmpegPath overrides the ffmpeg binary location.
func WithFFmpegPath(path string) Option {
	return func(a *Assembler) {
		if path != "" {
			a.ffmpegPath = path
		}
	}
}

// WithFFprobePath overrides the ffprobe binary location.
func WithFFprobePath(path string) Option {
	return func(a *Assembler) {
		if path != "" {
			a.ffprobePath = path
		}
	}
}

// WithTargetSize sets the uniform frame size used when a request asks
// for resizing. Non-positive dimensions keep the 640x480 default.
func WithTargetSize(width, height int) Option {
	return func(a *Assembler) {
		if width > 0 && height > 0 {
			a.width = width
			a.height = height
		}
	}
}

// WithFrameRate sets the output frame rate.
func WithFrameRate(fps int) Option {
	return func(a *Assembler) {
		if fps > 0 {
			a.fps = fps
		}
	}
}

// WithQuality sets the encoder CRF and preset. A zero CRF or empty preset
// leaves that default in place.
func WithQuality(crf int, preset string) Option {
	return func(a *Assembler) {
		if crf > 0 {
			a.crf = crf
		}
		if preset != "" {
			a.preset = preset
		}
	}
}

// WithFadeDuration sets the crossfade length in seconds. The fade is
// shortened per request when clips are too short to overlap that long.
func WithFadeDuration(seconds float64) Option {
	return func(a *Assembler) {
		if seconds > 0 {
			a.fade = seconds
		}
	}
}

// WithRunner replaces the command execution function. Tests use this to
// capture ffmpeg invocations.
func WithRunner(run CommandRunner) Option {
	return func(a *Assembler) {
		if run != nil {
			a.run = run
		}
	}
}

// New creates an Assembler with 640x480 at 25 fps, libx264, and the
// ffmpeg and ffprobe binaries resolved from PATH.
func New(opts ...Option) *Assembler {
	a := &Assembler{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		width:       defaultWidth,
		height:      defaultHeight,
		fps:         defaultFPS,
		codec:       defaultCodec,
		crf:         defaultCRF,
		preset:      defaultPreset,
		fade:        defaultFade,
		run:         Run,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble encodes the request's clips into a single video at
// req.OutputPath. Crossfades require per-clip durations, so requests
// with transitions probe every input first. Returns ErrNoClips when
// the request has no inputs.
func (a *Assembler) Assemble(ctx context.Context, req EncodeRequest) error {
	if len(req.Clips) == 0 {
		return ErrNoClips
	}

	var durations []float64
	if req.Transitions && len(req.Clips) > 1 {
		durations = make([]float64, len(req.Clips))
		for i, clip := range req.Clips {
			d, err := a.Duration(ctx, clip)
			if err != nil {
				return err
			}
			durations[i] = d
		}
	}

	filter, err := a.filterGraph(len(req.Clips), durations, req)
	if err != nil {
		return err
	}

	if _, err := a.run(ctx, a.ffmpegPath, a.encodeArgs(req.Clips, filter, req.OutputPath)...); err != nil {
		return fmt.Errorf("video: encode %s: %w", filepath.Base(req.OutputPath), err)
	}
	return nil
}

// Check verifies that the configured ffmpeg and ffprobe binaries run.
func (a *Assembler) Check(ctx context.Context) error {
	if _, err := a.run(ctx, a.ffmpegPath, "-version"); err != nil {
		return fmt.Errorf("video: ffmpeg unavailable: %w", err)
	}
	if _, err := a.run(ctx, a.ffprobePath, "-version"); err != nil {
		return fmt.Errorf("video: ffprobe unavailable: %w", err)
	}
	return nil
}
