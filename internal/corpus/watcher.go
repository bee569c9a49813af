package corpus

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher monitors the corpus metadata file and rebuilds the index when its
// content changes. It polls with an mtime quick-check followed by a content
// hash, so touching the file without editing it does not trigger a rebuild.
// Changes to the clip files themselves are not watched; only a metadata
// edit causes a rebuild.
type Watcher struct {
	metadataPath string
	videosDir    string
	interval     time.Duration
	buildOpts    []BuildOption
	onChange     func(old, new *Index)

	mu       sync.Mutex
	current  *Index
	done     chan struct{}
	stopOnce sync.Once

	// metadata file state as of the last completed check
	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// WatcherOption adjusts watcher behaviour.
type WatcherOption func(*Watcher)

// WithInterval overrides how often the metadata file is polled, 5
// seconds by default. Non-positive values are ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithBuildOptions sets the options used for every index build the watcher
// performs, including the initial one.
func WithBuildOptions(opts ...BuildOption) WatcherOption {
	return func(w *Watcher) {
		w.buildOpts = opts
	}
}

// NewWatcher builds the initial index and starts polling the metadata file
// in a background goroutine. onChange, if non-nil, is invoked after every
// successful rebuild with the previous and new snapshots. Pipelines holding
// an older snapshot are unaffected; only callers of [Watcher.Current] see
// the swap.
func NewWatcher(ctx context.Context, metadataPath, videosDir string, onChange func(old, new *Index), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		metadataPath: metadataPath,
		videosDir:    videosDir,
		interval:     5 * time.Second,
		onChange:     onChange,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	ix, hash, mtime, err := w.buildAndHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("corpus: watcher initial build: %w", err)
	}
	w.current = ix
	w.lastHash = hash
	w.lastMtime = mtime

	go w.poll()
	return w, nil
}

// Current returns the most recently built index.
func (w *Watcher) Current() *Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check rebuilds the index if the metadata file changed. A rebuild failure
// keeps the previous snapshot.
func (w *Watcher) check() {
	// Stat first; an unchanged mtime means no reread and no hash.
	info, err := os.Stat(w.metadataPath)
	if err != nil {
		slog.Warn("corpus watcher: cannot stat metadata", "path", w.metadataPath, "err", err)
		return
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	if info.ModTime().Equal(mtime) {
		return
	}

	ix, hash, newMtime, err := w.buildAndHash(context.Background())
	if err != nil {
		slog.Warn("corpus watcher: rebuild failed, keeping previous index", "path", w.metadataPath, "err", err)
		return
	}

	w.mu.Lock()

	if hash == w.lastHash {
		// Touched, but the bytes are the same.
		w.lastMtime = newMtime
		w.mu.Unlock()
		return
	}

	old := w.current
	w.current = ix
	w.lastHash = hash
	w.lastMtime = newMtime
	w.mu.Unlock()

	d := Diff(old, ix)
	slog.Info("corpus watcher: index rebuilt",
		"path", w.metadataPath,
		"words", ix.WordCount(),
		"words_added", len(d.AddedWords),
		"words_removed", len(d.RemovedWords),
		"clip_delta", d.ClipDelta)

	// The callback runs unlocked so it may call Current().
	if w.onChange != nil {
		w.onChange(old, ix)
	}
}

// buildAndHash reads the metadata file once, hashing and indexing the same
// bytes, and returns the index alongside the file's SHA-256 hash and
// modification time.
func (w *Watcher) buildAndHash(ctx context.Context) (*Index, [sha256.Size]byte, time.Time, error) {
	var zeroHash [sha256.Size]byte

	info, err := os.Stat(w.metadataPath)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	data, err := os.ReadFile(w.metadataPath)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	hash := sha256.Sum256(data)

	ix, err := build(ctx, data, w.metadataPath, w.videosDir, newBuilder(w.buildOpts))
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	return ix, hash, info.ModTime(), nil
}
