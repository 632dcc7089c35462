package models

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the publish pipeline wraps
// exactly one of these, so callers classify with errors.Is.
var (
	// ErrBadRequest marks caller errors: malformed input, disallowed media type, oversized upload.
	ErrBadRequest = errors.New("bad request")
	// ErrForbidden marks authorization errors: record missing or owned by someone else.
	ErrForbidden = errors.New("forbidden")
	// ErrProcessing marks server-side failures before the object store is touched.
	ErrProcessing = errors.New("processing failed")
	// ErrPublish marks object store failures (upload or signing).
	ErrPublish = errors.New("publish failed")
)

// Validation errors
var (
	ErrInvalidVideoID       = fmt.Errorf("%w: invalid video ID", ErrBadRequest)
	ErrUnsupportedMediaType = fmt.Errorf("%w: unsupported media type", ErrBadRequest)
	ErrUploadTooLarge       = fmt.Errorf("%w: upload too large", ErrBadRequest)
	ErrMissingIdentity      = fmt.Errorf("%w: missing caller identity", ErrBadRequest)
	ErrMissingTitle         = fmt.Errorf("%w: title is required", ErrBadRequest)
)

// Authorization errors
var (
	ErrVideoNotFound = fmt.Errorf("%w: video not found", ErrForbidden)
	ErrNotOwner      = fmt.Errorf("%w: video belongs to another user", ErrForbidden)
)

// Processing errors
var (
	ErrStageFailed    = fmt.Errorf("%w: failed to stage upload", ErrProcessing)
	ErrProbeFailed    = fmt.Errorf("%w: failed to probe video", ErrProcessing)
	ErrOptimizeFailed = fmt.Errorf("%w: failed to optimize video", ErrProcessing)
	ErrToolFailed     = errors.New("external tool failed")
)

// Publish errors
var (
	ErrUploadFailed  = fmt.Errorf("%w: failed to upload video", ErrPublish)
	ErrPresignFailed = fmt.Errorf("%w: failed to sign playback URL", ErrPublish)
)

// Storage errors
var (
	// ErrRecordNotFound is returned by record stores; the pipeline
	// translates it into ErrVideoNotFound.
	ErrRecordNotFound  = errors.New("record not found")
	ErrRecordExists    = errors.New("record already exists")
	ErrVersionConflict = errors.New("record was modified concurrently")
)
