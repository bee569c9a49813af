package video

import (
	"fmt"
	"strconv"
	"strings"
)

// filterGraph builds the complete -filter_complex expression for a
// request. durations is required only for crossfades over two or more
// clips; it is ignored otherwise.
func (a *Assembler) filterGraph(n int, durations []float64, req EncodeRequest) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(a.inputFilter(i, req.Resize))
		b.WriteString(";")
	}

	switch {
	case n == 1:
		b.WriteString("[v0]null[outv]")
	case !req.Transitions:
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "[v%d]", i)
		}
		fmt.Fprintf(&b, "concat=n=%d:v=1:a=0[outv]", n)
	default:
		chain, err := a.crossfadeChain(durations)
		if err != nil {
			return "", err
		}
		b.WriteString(chain)
	}
	return b.String(), nil
}

// inputFilter normalizes input stream i so later concat or xfade stages
// see matching frame rates, pixel formats, and aspect ratios. Resizing
// scales into the target frame and pads the remainder with black bars.
func (a *Assembler) inputFilter(i int, resize bool) string {
	if resize {
		return fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d,format=yuv420p[v%d]",
			i, a.width, a.height, a.width, a.height, a.fps, i,
		)
	}
	return fmt.Sprintf("[%d:v]setsar=1,fps=%d,format=yuv420p[v%d]", i, a.fps, i)
}

// crossfadeChain joins the normalized streams with pairwise xfades.
// Each fade overlaps the end of the running output with the start of
// the next clip; the fade is shortened when the shortest clip cannot
// support the configured overlap.
func (a *Assembler) crossfadeChain(durations []float64) (string, error) {
	shortest := durations[0]
	for _, d := range durations {
		if d <= 0 {
			return "", fmt.Errorf("video: clip duration must be positive, got %.3f", d)
		}
		if d < shortest {
			shortest = d
		}
	}

	fade := a.fade
	if fade > shortest/2 {
		fade = shortest / 2
	}

	var b strings.Builder
	prev := "v0"
	offset := durations[0] - fade
	for i := 1; i < len(durations); i++ {
		label := fmt.Sprintf("x%d", i)
		if i == len(durations)-1 {
			label = "outv"
		}
		fmt.Fprintf(&b, "[%s][v%d]xfade=transition=fade:duration=%.3f:offset=%.3f[%s]",
			prev, i, fade, offset, label)
		if i < len(durations)-1 {
			b.WriteString(";")
			offset += durations[i] - fade
		}
		prev = label
	}
	return b.String(), nil
}

// encodeArgs builds the full ffmpeg argument list for one encode.
func (a *Assembler) encodeArgs(clips []string, filter, outPath string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	for _, clip := range clips {
		args = append(args, "-i", clip)
	}
	return append(args,
		"-filter_complex", filter,
		"-map", "[outv]",
		"-an",
		"-c:v", a.codec,
		"-preset", a.preset,
		"-crf", strconv.Itoa(a.crf),
		"-movflags", "+faststart",
		outPath,
	)
}
