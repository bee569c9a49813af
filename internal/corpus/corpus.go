// Package corpus loads a WLASL-style sign-clip corpus into an immutable
// in-memory index mapping gloss words to the clip files that exist on disk.
//
// An [Index] is built once from a JSON metadata file plus a videos
// directory and is then safe for unsynchronized concurrent reads. Metadata
// instances whose clip file is absent are dropped at build time; glosses
// left without any clip are not indexed at all. A [Watcher] can rebuild the
// index in the background when the metadata file changes.
package corpus

import (
	"fmt"
	"math/rand/v2"
)

// ClipRef identifies one sign clip on disk together with the recording
// metadata carried by the corpus.
type ClipRef struct {
	// ClipID is the corpus identifier of the clip (the video_id field, or
	// the zero-padded instance_id when no video_id is present).
	ClipID string
	// SignerID identifies the person performing the sign.
	SignerID int
	// VariationID distinguishes recording variations of the same sign.
	VariationID int
	// FrameRate is the clip's frame rate as recorded in the metadata.
	FrameRate int
	// Split is the dataset split the clip belongs to: train, val or test.
	Split string
	// BBox is the signer bounding box as x1, y1, x2, y2 pixel coordinates.
	BBox [4]int
	// Path is the clip file location, verified to exist at build time.
	Path string
}

// Stats summarizes the outcome of an index build.
type Stats struct {
	// Entries is the number of gloss entries parsed from the metadata.
	Entries int
	// Words is the number of glosses indexed with at least one clip.
	Words int
	// WordsDropped counts glosses whose clips were all missing on disk.
	WordsDropped int
	// Clips is the number of clips indexed.
	Clips int
	// ClipsMissing counts metadata instances without a file on disk.
	ClipsMissing int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d entries, %d words indexed (%d dropped), %d clips (%d missing)",
		s.Entries, s.Words, s.WordsDropped, s.Clips, s.ClipsMissing)
}

// SampleClip returns a uniformly random clip for word using rng, or false
// when the word is not indexed. Passing an explicit rng keeps the Index
// immutable and lets callers control seeding.
func (ix *Index) SampleClip(rng *rand.Rand, word string) (ClipRef, bool) {
	clips := ix.lookup(word)
	if len(clips) == 0 {
		return ClipRef{}, false
	}
	return clips[rng.IntN(len(clips))], true
}

// RandomWord returns a uniformly random indexed word using rng, or false
// when the index is empty.
func (ix *Index) RandomWord(rng *rand.Rand) (string, bool) {
	if len(ix.words) == 0 {
		return "", false
	}
	return ix.words[rng.IntN(len(ix.words))], true
}

// RandomClip returns a random word together with one of its clips, or false
// when the index is empty.
func (ix *Index) RandomClip(rng *rand.Rand) (string, ClipRef, bool) {
	word, ok := ix.RandomWord(rng)
	if !ok {
		return "", ClipRef{}, false
	}
	clip, ok := ix.SampleClip(rng, word)
	if !ok {
		return "", ClipRef{}, false
	}
	return word, clip, true
}
