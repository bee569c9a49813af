package video

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Duration returns the length of the media file at path in seconds,
// read from ffprobe's format metadata.
func (a *Assembler) Duration(ctx context.Context, path string) (float64, error) {
	out, err := a.run(ctx, a.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("video: probe %s: %w", filepath.Base(path), err)
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("video: parse probe output for %s: %w", filepath.Base(path), err)
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("video: no usable duration for %s", filepath.Base(path))
	}
	return d, nil
}
