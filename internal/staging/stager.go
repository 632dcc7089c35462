// Package staging manages per-upload scratch files on local disk.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/amillerrr/video-publisher/pkg/models"
)

// DefaultDir is used when no scratch directory is configured.
const DefaultDir = "/tmp/video-publisher"

var tracer = otel.Tracer("video-staging")

// Stager writes uploads into uniquely named files in a private directory.
type Stager struct {
	dir string
	log *slog.Logger
}

// New creates a Stager rooted at dir, creating it with 0700 if needed.
func New(dir string, log *slog.Logger) (*Stager, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &Stager{dir: dir, log: log}, nil
}

// Dir returns the scratch directory.
func (s *Stager) Dir() string {
	return s.dir
}

// Stage copies r into a new scratch file named upload-*{ext}. The copy
// stops early if ctx is cancelled. On any error nothing is left behind.
func (s *Stager) Stage(ctx context.Context, r io.Reader, ext string) (*models.StagedFile, error) {
	ctx, span := tracer.Start(ctx, "stage-upload")
	defer span.End()

	tmpFile, err := os.CreateTemp(s.dir, "upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %v", models.ErrStageFailed, err)
	}
	tmpPath := tmpFile.Name()

	written, err := io.Copy(tmpFile, &contextReader{ctx: ctx, r: r})
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: write temp file: %w", models.ErrStageFailed, err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: close temp file: %v", models.ErrStageFailed, err)
	}

	span.SetAttributes(attribute.Int64("video.size_bytes", written))
	s.log.DebugContext(ctx, "Staged upload", "path", tmpPath, "sizeBytes", written)

	return &models.StagedFile{Path: tmpPath, Ext: ext, Size: written}, nil
}

// Remove deletes a staged file. A file that is already gone is not an error.
func (s *Stager) Remove(f *models.StagedFile) error {
	if f == nil {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Cleanup removes f and logs instead of returning a failure.
func (s *Stager) Cleanup(ctx context.Context, f *models.StagedFile) {
	if err := s.Remove(f); err != nil {
		s.log.WarnContext(ctx, "Failed to remove staged file", "path", f.Path, "error", err)
	}
}

// contextReader stops reading once the request context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
