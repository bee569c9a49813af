package video

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// stderrTailLimit bounds how much encoder stderr is carried in errors.
const stderrTailLimit = 4096

// CommandRunner executes an external command and returns its stdout.
// Failures must carry diagnostic output so callers can log it.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecError reports a failed external command together with the tail
// of its stderr output.
type ExecError struct {
	Name   string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, e.Stderr)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Run is the default CommandRunner. It executes name with args and
// returns stdout; on failure the returned *ExecError includes up to
// the last 4 KiB of stderr.
func Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ExecError{
			Name:   filepath.Base(name),
			Stderr: stderrTail(stderr.String()),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTailLimit {
		return s
	}
	return "..." + s[len(s)-stderrTailLimit:]
}
