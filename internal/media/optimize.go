package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/amillerrr/video-publisher/internal/metrics"
	"github.com/amillerrr/video-publisher/pkg/models"
)

// DefaultFFmpeg is the remuxer binary used when none is configured.
const DefaultFFmpeg = "ffmpeg"

// FastSuffix is inserted before the extension of optimized files.
const FastSuffix = "-fast"

// Optimizer remuxes staged files so the index precedes the media data.
type Optimizer struct {
	runner Runner
	binary string
	log    *slog.Logger
}

// NewOptimizer creates an Optimizer. An empty binary means DefaultFFmpeg.
func NewOptimizer(runner Runner, binary string, log *slog.Logger) *Optimizer {
	if binary == "" {
		binary = DefaultFFmpeg
	}
	return &Optimizer{runner: runner, binary: binary, log: log}
}

// OutputPath returns the path of the optimized copy of path.
func OutputPath(path, ext string) string {
	return strings.TrimSuffix(path, ext) + FastSuffix + ext
}

// Optimize stream-copies in into a fast-start file next to it. The input
// is removed once the remuxer exits, whether it succeeded or not; on failure
// any partial output is removed too.
func (o *Optimizer) Optimize(ctx context.Context, in *models.StagedFile) (*models.StagedFile, error) {
	ctx, span := tracer.Start(ctx, "optimize-faststart")
	defer span.End()

	start := time.Now()
	outPath := OutputPath(in.Path, in.Ext)

	_, runErr := o.runner.Run(ctx, o.binary, o.buildArgs(in.Path, outPath)...)
	o.remove(ctx, in.Path)

	if runErr != nil {
		span.RecordError(runErr)
		o.remove(ctx, outPath)
		return nil, fmt.Errorf("%w: %w", models.ErrOptimizeFailed, runErr)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: output missing: %v", models.ErrOptimizeFailed, err)
	}

	metrics.StageDuration.WithLabelValues("optimize").Observe(time.Since(start).Seconds())

	return &models.StagedFile{Path: outPath, Ext: in.Ext, Size: info.Size()}, nil
}

// buildArgs constructs the ffmpeg arguments for a lossless fast-start remux.
func (o *Optimizer) buildArgs(inPath, outPath string) []string {
	return []string{
		"-y",
		"-i", inPath,
		"-map", "0",
		"-c", "copy",
		"-map_metadata", "0",
		"-movflags", "+faststart",
		outPath,
	}
}

func (o *Optimizer) remove(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		o.log.WarnContext(ctx, "Failed to remove scratch file", "path", path, "error", err)
	}
}
