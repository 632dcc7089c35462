// Package media wraps the external ffprobe and ffmpeg tools.
package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/amillerrr/video-publisher/pkg/models"
)

// maxStderrLog bounds how much tool stderr ends up in errors and logs.
const maxStderrLog = 2048

var tracer = otel.Tracer("video-media")

// Runner runs an external tool to completion and returns its stdout.
// A non-zero exit is reported as an error wrapping models.ErrToolFailed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs tools as subprocesses.
type ExecRunner struct {
	Logger *slog.Logger
}

// NewExecRunner creates a Runner backed by os/exec.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{Logger: logger}
}

// Run executes name with args, waits for exit and buffers stdout.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "exec-"+name)
	defer span.End()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		span.RecordError(err)
		tail := tailString(stderr.String(), maxStderrLog)
		if r.Logger != nil {
			r.Logger.WarnContext(ctx, "External tool failed", "tool", name, "error", err, "stderr", tail)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: context canceled", models.ErrToolFailed, name)
		}
		return nil, fmt.Errorf("%w: %s: %v: %s", models.ErrToolFailed, name, err, tail)
	}

	return stdout.Bytes(), nil
}

func tailString(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
