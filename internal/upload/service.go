package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/amillerrr/video-publisher/internal/metrics"
	"github.com/amillerrr/video-publisher/pkg/models"
)

var tracer = otel.Tracer("video-upload")

// Outcome labels for metrics.UploadsTotal.
const (
	OutcomeSuccess    = "success"
	OutcomeRejected   = "rejected"
	OutcomeForbidden  = "forbidden"
	OutcomeProcessing = "processing_error"
	OutcomePublish    = "publish_error"
	OutcomeConflict   = "conflict"
)

// VideoStore loads and saves video records.
type VideoStore interface {
	GetVideo(ctx context.Context, videoID string) (*models.VideoRecord, error)
	UpdateVideo(ctx context.Context, video *models.VideoRecord) error
}

// Stager owns scratch files for in-flight uploads.
type Stager interface {
	Stage(ctx context.Context, r io.Reader, ext string) (*models.StagedFile, error)
	Remove(f *models.StagedFile) error
}

// Prober classifies a staged video by geometry.
type Prober interface {
	Probe(ctx context.Context, f *models.StagedFile) (models.AspectClass, error)
}

// Optimizer rewrites a staged video for progressive playback. It consumes its input.
type Optimizer interface {
	Optimize(ctx context.Context, in *models.StagedFile) (*models.StagedFile, error)
}

// Publisher moves finished files into object storage and builds playback URLs.
type Publisher interface {
	Publish(ctx context.Context, f *models.StagedFile, key, contentType string) error
	Delete(ctx context.Context, key string) error
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

// Notifier announces published videos. Failures are logged and ignored.
type Notifier interface {
	NotifyPublished(ctx context.Context, event models.PublishedEvent) error
}

// Deps holds the collaborators of a Service. Notifier and NewToken are optional.
type Deps struct {
	Store     VideoStore
	Stager    Stager
	Prober    Prober
	Optimizer Optimizer
	Publisher Publisher
	Notifier  Notifier
	NewToken  func() string
	Logger    *slog.Logger
}

// Service runs the upload-to-publish pipeline.
type Service struct {
	cfg       Config
	store     VideoStore
	stager    Stager
	prober    Prober
	optimizer Optimizer
	publisher Publisher
	notifier  Notifier
	newToken  func() string
	now       func() time.Time
	log       *slog.Logger
}

// NewService validates cfg and wires the pipeline.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upload config: %w", err)
	}
	if deps.Store == nil || deps.Stager == nil || deps.Prober == nil || deps.Optimizer == nil || deps.Publisher == nil {
		return nil, errors.New("upload service requires store, stager, prober, optimizer and publisher")
	}

	s := &Service{
		cfg:       cfg,
		store:     deps.Store,
		stager:    deps.Stager,
		prober:    deps.Prober,
		optimizer: deps.Optimizer,
		publisher: deps.Publisher,
		notifier:  deps.Notifier,
		newToken:  deps.NewToken,
		now:       time.Now,
		log:       deps.Logger,
	}
	if s.newToken == nil {
		s.newToken = NewToken
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// Config returns the pipeline configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// PublishVideo validates req, checks ownership, then stages, probes,
// optimizes and uploads the video and points the record at the new object.
// Every scratch file is removed before it returns, on every path.
func (s *Service) PublishVideo(ctx context.Context, req models.UploadRequest) (*models.VideoRecord, error) {
	ctx, span := tracer.Start(ctx, "publish-video")
	defer span.End()
	span.SetAttributes(
		attribute.String("video.id", req.VideoID),
		attribute.String("video.media_type", req.MediaType),
		attribute.Int64("video.declared_size", req.Size),
	)

	start := time.Now()
	metrics.ActiveUploads.Inc()
	defer metrics.ActiveUploads.Dec()

	rec, err := s.publish(ctx, req)
	metrics.RecordOutcome(outcomeFor(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.WarnContext(ctx, "Video publish failed",
			"videoId", req.VideoID,
			"userId", req.Identity,
			"error", err,
		)
		return nil, err
	}

	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	s.log.InfoContext(ctx, "Video published",
		"videoId", rec.ID,
		"key", rec.VideoKey,
		"durationMs", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func (s *Service) publish(ctx context.Context, req models.UploadRequest) (*models.VideoRecord, error) {
	ext, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	video, err := s.authorize(ctx, req)
	if err != nil {
		return nil, err
	}

	staged, err := s.stager.Stage(ctx, io.LimitReader(req.Body, s.cfg.MaxUploadBytes+1), ext)
	if err != nil {
		return nil, err
	}
	// current is the one scratch file this upload owns at any point.
	current := staged
	defer func() { s.cleanup(ctx, current) }()

	if staged.Size > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", models.ErrUploadTooLarge, s.cfg.MaxUploadBytes)
	}

	class, err := s.prober.Probe(ctx, staged)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("video.aspect_class", string(class)))

	optimized, err := s.optimizer.Optimize(ctx, staged)
	if err != nil {
		// The optimizer consumes its input on both paths.
		current = nil
		return nil, err
	}
	current = optimized

	key := ObjectKey(class, s.newToken(), ext)
	if err := s.publisher.Publish(ctx, optimized, key, normalizeMediaType(req.MediaType)); err != nil {
		return nil, err
	}

	updated := video.Clone()
	updated.VideoKey = key
	var playbackURL string
	switch s.cfg.StorageMode {
	case models.StoragePresigned:
		updated.VideoURL = nil
		playbackURL, err = s.publisher.Presign(ctx, key, s.cfg.PresignTTL)
		if err != nil {
			s.deleteOrphan(ctx, key)
			return nil, err
		}
	default:
		u := s.publisher.PublicURL(key)
		updated.VideoURL = &u
	}

	if err := s.store.UpdateVideo(ctx, updated); err != nil {
		s.deleteOrphan(ctx, key)
		if errors.Is(err, models.ErrVersionConflict) {
			return nil, fmt.Errorf("update record: %w", err)
		}
		return nil, fmt.Errorf("%w: update record: %w", models.ErrProcessing, err)
	}

	metrics.RecordPublished(string(class), optimized.Size)
	s.notify(ctx, updated, class, optimized.Size)

	if s.cfg.StorageMode == models.StoragePresigned {
		updated.VideoURL = &playbackURL
	}
	return updated, nil
}

// validate runs the caller-error checks that need no I/O and returns the
// key extension for the declared media type.
func (s *Service) validate(req models.UploadRequest) (string, error) {
	if _, err := uuid.Parse(req.VideoID); err != nil {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidVideoID, req.VideoID)
	}
	if req.Identity == "" {
		return "", models.ErrMissingIdentity
	}
	if !s.cfg.accepts(req.MediaType) {
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedMediaType, req.MediaType)
	}
	ext, ok := ExtensionFor(req.MediaType)
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedMediaType, req.MediaType)
	}
	if req.Size > s.cfg.MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", models.ErrUploadTooLarge, req.Size, s.cfg.MaxUploadBytes)
	}
	if req.Body == nil {
		return "", fmt.Errorf("%w: empty upload body", models.ErrBadRequest)
	}
	return ext, nil
}

// authorize loads the record and confirms the caller owns it.
func (s *Service) authorize(ctx context.Context, req models.UploadRequest) (*models.VideoRecord, error) {
	video, err := s.store.GetVideo(ctx, req.VideoID)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrVideoNotFound, req.VideoID)
		}
		return nil, fmt.Errorf("%w: load record: %w", models.ErrProcessing, err)
	}
	if video.UserID != req.Identity {
		return nil, fmt.Errorf("%w: %s", models.ErrNotOwner, req.VideoID)
	}
	return video, nil
}

// Resolve returns a copy of rec fit for a client. In presigned mode the
// playback URL is signed now from the stored key.
func (s *Service) Resolve(ctx context.Context, rec *models.VideoRecord) (*models.VideoRecord, error) {
	out := rec.Clone()
	if s.cfg.StorageMode != models.StoragePresigned || out.VideoKey == "" {
		return out, nil
	}

	signed, err := s.publisher.Presign(ctx, out.VideoKey, s.cfg.PresignTTL)
	if err != nil {
		return nil, err
	}
	out.VideoURL = &signed
	return out, nil
}

func (s *Service) cleanup(ctx context.Context, f *models.StagedFile) {
	if f == nil {
		return
	}
	if err := s.stager.Remove(f); err != nil {
		metrics.CleanupFailures.Inc()
		s.log.WarnContext(ctx, "Failed to remove scratch file", "path", f.Path, "error", err)
	}
}

func (s *Service) deleteOrphan(ctx context.Context, key string) {
	// The request may already be cancelled; the delete still deserves a try.
	ctx = context.WithoutCancel(ctx)
	if err := s.publisher.Delete(ctx, key); err != nil {
		metrics.CleanupFailures.Inc()
		s.log.WarnContext(ctx, "Failed to delete orphaned object", "key", key, "error", err)
	}
}

func (s *Service) notify(ctx context.Context, rec *models.VideoRecord, class models.AspectClass, size int64) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyPublished(ctx, models.PublishedEvent{
		VideoID:     rec.ID,
		UserID:      rec.UserID,
		Key:         rec.VideoKey,
		AspectClass: class,
		SizeBytes:   size,
		PublishedAt: s.now().UTC(),
	})
	if err != nil {
		s.log.WarnContext(ctx, "Failed to send publish notification", "videoId", rec.ID, "error", err)
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, models.ErrBadRequest):
		return OutcomeRejected
	case errors.Is(err, models.ErrForbidden):
		return OutcomeForbidden
	case errors.Is(err, models.ErrVersionConflict):
		return OutcomeConflict
	case errors.Is(err, models.ErrPublish):
		return OutcomePublish
	default:
		return OutcomeProcessing
	}
}
