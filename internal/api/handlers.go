package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/amillerrr/video-publisher/internal/auth"
	"github.com/amillerrr/video-publisher/internal/config"
	"github.com/amillerrr/video-publisher/pkg/models"
)

var tracer = otel.Tracer("video-api")

const (
	MaxRequestBodySize = 1 << 20 // 1 MB, for JSON bodies
	MaxTitleLength     = 200
	VideoFormField     = "video"
)

// VideoStore is the record store used by the handlers.
type VideoStore interface {
	CreateVideo(ctx context.Context, video *models.VideoRecord) error
	GetVideo(ctx context.Context, videoID string) (*models.VideoRecord, error)
}

// Pipeline publishes uploads and prepares records for clients.
type Pipeline interface {
	PublishVideo(ctx context.Context, req models.UploadRequest) (*models.VideoRecord, error)
	Resolve(ctx context.Context, rec *models.VideoRecord) (*models.VideoRecord, error)
}

// Handlers contains all HTTP handlers for the API.
type Handlers struct {
	cfg         *config.Config
	log         *slog.Logger
	store       VideoStore
	pipeline    Pipeline
	jwtService  *auth.JWTService
	rateLimiter *auth.RateLimiter
}

// HandlersConfig holds dependencies for handlers.
type HandlersConfig struct {
	Config      *config.Config
	Logger      *slog.Logger
	Store       VideoStore
	Pipeline    Pipeline
	JWTService  *auth.JWTService
	RateLimiter *auth.RateLimiter
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *HandlersConfig) *Handlers {
	return &Handlers{
		cfg:         cfg.Config,
		log:         cfg.Logger,
		store:       cfg.Store,
		pipeline:    cfg.Pipeline,
		jwtService:  cfg.JWTService,
		rateLimiter: cfg.RateLimiter,
	}
}

func (h *Handlers) writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.ErrorContext(ctx, "Failed to encode JSON response", "error", err)
	}
}

func (h *Handlers) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": message})
}

// writeFailure maps err to a status code. Client errors echo the error
// text; server errors are logged and answered generically.
func (h *Handlers) writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(ctx, "Request failed", "status", status, "error", err)
		message := "Internal server error"
		if status == http.StatusBadGateway {
			message = "Failed to publish video"
		}
		h.writeError(ctx, w, status, message)
		return
	}
	h.writeError(ctx, w, status, err.Error())
}

// statusForError maps the error categories to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrPublish):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// LoginHandler exchanges basic-auth credentials for a JWT.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientIP := auth.GetClientIP(r)

	if h.rateLimiter != nil && h.rateLimiter.IsLimited(clientIP) {
		w.Header().Set("Retry-After", "900")
		h.writeError(ctx, w, http.StatusTooManyRequests, "Too many failed attempts")
		return
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		h.writeError(ctx, w, http.StatusUnauthorized, "Missing credentials")
		return
	}

	expectedUsername, expectedPassword, err := h.cfg.GetAPICredentials()
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to get API credentials", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Server configuration error")
		return
	}

	if username != expectedUsername || password != expectedPassword {
		if h.rateLimiter != nil {
			h.rateLimiter.RecordFailure(clientIP)
		}
		h.log.WarnContext(ctx, "Failed login attempt", "username", username, "ip", clientIP)
		h.writeError(ctx, w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.jwtService.GenerateToken(username)
	if err != nil {
		h.log.ErrorContext(ctx, "Failed to generate token", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	if h.rateLimiter != nil {
		h.rateLimiter.Reset(clientIP)
	}
	h.log.InfoContext(ctx, "Successful login", "username", username, "ip", clientIP)
	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"token": token})
}

// CreateVideoRequest is the payload for a new draft video.
type CreateVideoRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ThumbnailURL *string `json:"thumbnailUrl,omitempty"`
}

// CreateVideoHandler creates a draft record owned by the caller.
func (h *Handlers) CreateVideoHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "create-video-handler")
	defer span.End()

	identity := auth.IdentityFromContext(ctx)
	if identity == "" {
		h.writeError(ctx, w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req CreateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.RecordError(err)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if err := validateTitle(req.Title); err != nil {
		h.writeFailure(ctx, w, err)
		return
	}

	video := &models.VideoRecord{
		ID:           uuid.NewString(),
		UserID:       identity,
		Title:        req.Title,
		Description:  req.Description,
		ThumbnailURL: req.ThumbnailURL,
	}
	span.SetAttributes(attribute.String("video.id", video.ID))

	if err := h.store.CreateVideo(ctx, video); err != nil {
		span.RecordError(err)
		h.writeFailure(ctx, w, err)
		return
	}

	h.log.InfoContext(ctx, "Video created", "videoId", video.ID, "userId", identity)
	h.writeJSON(ctx, w, http.StatusCreated, video)
}

// GetVideoHandler returns one of the caller's videos. In presigned mode
// the playback URL is signed on every read.
func (h *Handlers) GetVideoHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "get-video-handler")
	defer span.End()

	videoID := r.PathValue("videoID")
	if _, err := uuid.Parse(videoID); err != nil {
		h.writeFailure(ctx, w, models.ErrInvalidVideoID)
		return
	}
	span.SetAttributes(attribute.String("video.id", videoID))

	video, err := h.store.GetVideo(ctx, videoID)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			h.writeError(ctx, w, http.StatusNotFound, "Video not found")
			return
		}
		span.RecordError(err)
		h.writeFailure(ctx, w, err)
		return
	}

	if video.UserID != auth.IdentityFromContext(ctx) {
		h.writeFailure(ctx, w, models.ErrNotOwner)
		return
	}

	resolved, err := h.pipeline.Resolve(ctx, video)
	if err != nil {
		span.RecordError(err)
		h.writeFailure(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, resolved)
}

// UploadVideoHandler streams the multipart "video" field into the publish
// pipeline. The part is consumed directly, so nothing touches disk before
// the pipeline has validated the request.
func (h *Handlers) UploadVideoHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	ctx, span := tracer.Start(r.Context(), "upload-video-handler",
		trace.WithAttributes(
			attribute.String("handler", "upload-video"),
			attribute.String("request.id", requestID),
		))
	defer span.End()

	videoID := r.PathValue("videoID")
	identity := auth.IdentityFromContext(ctx)

	part, err := videoPart(r)
	if err != nil {
		span.RecordError(err)
		h.writeFailure(ctx, w, err)
		return
	}
	defer part.Close()

	h.log.InfoContext(ctx, "Receiving upload",
		"videoId", videoID,
		"userId", identity,
		"filename", part.FileName(),
		"mediaType", part.Header.Get("Content-Type"),
		"contentLength", r.ContentLength,
		"requestId", requestID,
	)

	video, err := h.pipeline.PublishVideo(ctx, models.UploadRequest{
		VideoID:   videoID,
		Identity:  identity,
		Body:      part,
		MediaType: part.Header.Get("Content-Type"),
		Size:      r.ContentLength,
		Filename:  part.FileName(),
	})
	if err != nil {
		span.RecordError(err)
		h.writeFailure(ctx, w, err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, video)
}

// videoPart advances the multipart stream to the video field.
func videoPart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: expected multipart/form-data body", models.ErrBadRequest)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: missing %q form field", models.ErrBadRequest, VideoFormField)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
		}
		if part.FormName() == VideoFormField {
			return part, nil
		}
		part.Close()
	}
}

func validateTitle(title string) error {
	if title == "" {
		return models.ErrMissingTitle
	}
	if len(title) > MaxTitleLength {
		return fmt.Errorf("%w: title is longer than %d characters", models.ErrBadRequest, MaxTitleLength)
	}
	return nil
}
