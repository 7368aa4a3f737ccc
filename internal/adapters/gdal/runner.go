// Package gdal runs the GDAL command-line tools.
package gdal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Runner executes GDAL utilities as child processes.
type Runner struct {
	binDir  string
	timeout time.Duration
}

// NewRunner creates a Runner. Programs are resolved in binDir when set,
// otherwise on PATH. A zero timeout means no limit beyond ctx.
func NewRunner(binDir string, timeout time.Duration) *Runner {
	return &Runner{binDir: binDir, timeout: timeout}
}

// Run executes name with args and returns its standard output split into lines.
func (r *Runner) Run(ctx context.Context, name string, args ...string) ([]string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	bin := name
	if r.binDir != "" {
		bin = filepath.Join(r.binDir, name)
	}

	slog.InfoContext(ctx, "exec", "cmd", commandLine(name, args))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, &CommandError{
			Name:   name,
			Stderr: lastLine(stderr.String()),
			Err:    err,
		}
	}
	slog.DebugContext(ctx, "exec done", "cmd", name, "elapsed", time.Since(start))

	return strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n"), nil
}

// CommandError is returned when a GDAL utility exits unsuccessfully.
type CommandError struct {
	Name   string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

func commandLine(name string, args []string) string {
	var b strings.Builder
	b.WriteString(name)
	for _, a := range args {
		b.WriteString(" '")
		b.WriteString(a)
		b.WriteString("'")
	}
	return b.String()
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
