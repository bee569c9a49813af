package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	defaultClipExt         = ".mp4"
	defaultStatConcurrency = 32
)

// LoadError reports a corpus that could not be loaded: the metadata file is
// missing, unreadable or not valid JSON.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("corpus: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Index is an immutable mapping from gloss words to their on-disk
// clips. Immutability is what makes sharing one snapshot across
// concurrent runs safe.
type Index struct {
	clips map[string][]ClipRef
	words []string // sorted
	stats Stats
}

// BuildOption configures a corpus build.
type BuildOption func(*builder)

// WithClipExt sets the filename extension appended to clip IDs when
// resolving files. The default is ".mp4".
func WithClipExt(ext string) BuildOption {
	return func(b *builder) {
		if ext != "" {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			b.clipExt = ext
		}
	}
}

// WithStatConcurrency bounds the number of parallel file-existence checks
// during a build. The default is 32.
func WithStatConcurrency(n int) BuildOption {
	return func(b *builder) {
		if n > 0 {
			b.statLimit = n
		}
	}
}

type builder struct {
	clipExt   string
	statLimit int
}

// metadataEntry mirrors the corpus JSON shape. Unknown fields such as
// source URLs and frame ranges are ignored.
type metadataEntry struct {
	Gloss     string             `json:"gloss"`
	Instances []metadataInstance `json:"instances"`
}

type metadataInstance struct {
	VideoID     string `json:"video_id"`
	InstanceID  int    `json:"instance_id"`
	SignerID    int    `json:"signer_id"`
	VariationID int    `json:"variation_id"`
	FPS         int    `json:"fps"`
	Split       string `json:"split"`
	BBox        []int  `json:"bbox"`
}

// Build loads the metadata file, resolves every instance to a clip file
// under videosDir and returns an index of the clips that exist. Instances
// without a file are dropped; glosses left with no clips are not indexed.
// A missing or malformed metadata file yields a [*LoadError].
func Build(ctx context.Context, metadataPath, videosDir string, opts ...BuildOption) (*Index, error) {
	b := newBuilder(opts)
	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, &LoadError{Path: metadataPath, Err: err}
	}
	return build(ctx, data, metadataPath, videosDir, b)
}

func newBuilder(opts []BuildOption) *builder {
	b := &builder{clipExt: defaultClipExt, statLimit: defaultStatConcurrency}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// build indexes already-read metadata bytes. metadataPath is only used in
// error messages.
func build(ctx context.Context, data []byte, metadataPath, videosDir string, b *builder) (*Index, error) {
	var entries []metadataEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &LoadError{Path: metadataPath, Err: err}
	}

	// Flatten all instances into candidates so existence checks can run in
	// one bounded fan-out regardless of how clips distribute over glosses.
	type candidate struct {
		gloss string
		ref   ClipRef
	}
	var candidates []candidate
	stats := Stats{Entries: len(entries)}
	glossSeen := make(map[string]bool)

	for _, entry := range entries {
		gloss := strings.ToLower(strings.TrimSpace(entry.Gloss))
		if gloss == "" {
			continue
		}
		glossSeen[gloss] = true
		for _, inst := range entry.Instances {
			clipID := inst.VideoID
			if clipID == "" {
				clipID = fmt.Sprintf("%05d", inst.InstanceID)
			}
			ref := ClipRef{
				ClipID:      clipID,
				SignerID:    inst.SignerID,
				VariationID: inst.VariationID,
				FrameRate:   inst.FPS,
				Split:       inst.Split,
				Path:        filepath.Join(videosDir, clipID+b.clipExt),
			}
			copy(ref.BBox[:], inst.BBox)
			candidates = append(candidates, candidate{gloss: gloss, ref: ref})
		}
	}

	exists := make([]bool, len(candidates))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.statLimit)
	for i := range candidates {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			info, err := os.Stat(candidates[i].ref.Path)
			exists[i] = err == nil && !info.IsDir()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("corpus: verify clip files: %w", err)
	}

	clips := make(map[string][]ClipRef, len(glossSeen))
	for i, c := range candidates {
		if !exists[i] {
			stats.ClipsMissing++
			continue
		}
		clips[c.gloss] = append(clips[c.gloss], c.ref)
		stats.Clips++
	}

	words := make([]string, 0, len(clips))
	for w := range clips {
		words = append(words, w)
	}
	slices.Sort(words)

	stats.Words = len(words)
	stats.WordsDropped = len(glossSeen) - len(words)

	return &Index{clips: clips, words: words, stats: stats}, nil
}

// lookup returns the index's own clip slice for word. Callers inside the
// package must not mutate the result.
func (ix *Index) lookup(word string) []ClipRef {
	return ix.clips[strings.ToLower(strings.TrimSpace(word))]
}

// Lookup returns all clips for word in metadata order. The word is matched
// case-insensitively. The returned slice is a copy; an unknown word yields
// an empty result, never an error.
func (ix *Index) Lookup(word string) []ClipRef {
	return slices.Clone(ix.lookup(word))
}

// Has reports whether word is indexed with at least one clip.
func (ix *Index) Has(word string) bool {
	return len(ix.lookup(word)) > 0
}

// WordCount returns the number of indexed words.
func (ix *Index) WordCount() int { return len(ix.words) }

// AllWords returns the sorted indexed vocabulary as a copy.
func (ix *Index) AllWords() []string { return slices.Clone(ix.words) }

// Stats returns the build statistics of this index.
func (ix *Index) Stats() Stats { return ix.stats }
