package upload

import (
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/amillerrr/video-publisher/pkg/models"
)

// Defaults applied by DefaultConfig.
const (
	DefaultMaxUploadBytes int64 = 1 << 30 // 1 GiB
	DefaultPresignTTL           = time.Hour
)

// DefaultMediaTypes are the container types the pipeline accepts.
var DefaultMediaTypes = []string{"video/mp4", "video/webm"}

// extensions maps accepted media types to the extension used in object keys.
var extensions = map[string]string{
	"video/mp4":        ".mp4",
	"video/webm":       ".webm",
	"video/quicktime":  ".mov",
	"video/x-matroska": ".mkv",
}

// Config is the explicit pipeline configuration handed to NewService.
type Config struct {
	MaxUploadBytes     int64
	AcceptedMediaTypes map[string]struct{}
	StorageMode        models.StorageMode
	PresignTTL         time.Duration
}

// DefaultConfig returns a public-mode configuration accepting mp4 and webm up to 1 GiB.
func DefaultConfig() Config {
	return Config{
		MaxUploadBytes:     DefaultMaxUploadBytes,
		AcceptedMediaTypes: MediaTypeSet(DefaultMediaTypes...),
		StorageMode:        models.StoragePublic,
		PresignTTL:         DefaultPresignTTL,
	}
}

// MediaTypeSet builds a normalized set from a list of media types.
func MediaTypeSet(types ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		if t = normalizeMediaType(t); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error

	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}
	if len(c.AcceptedMediaTypes) == 0 {
		errs = append(errs, errors.New("at least one accepted media type is required"))
	}
	for t := range c.AcceptedMediaTypes {
		if _, ok := ExtensionFor(t); !ok {
			errs = append(errs, fmt.Errorf("no file extension known for media type %q", t))
		}
	}
	if !c.StorageMode.IsValid() {
		errs = append(errs, fmt.Errorf("invalid storage mode %q", c.StorageMode))
	}
	if c.StorageMode == models.StoragePresigned && c.PresignTTL <= 0 {
		errs = append(errs, errors.New("presign TTL must be positive in presigned mode"))
	}

	return errors.Join(errs...)
}

// accepts reports whether mediaType is in the accepted set.
func (c Config) accepts(mediaType string) bool {
	_, ok := c.AcceptedMediaTypes[normalizeMediaType(mediaType)]
	return ok
}

// ExtensionFor returns the object key extension for a media type.
func ExtensionFor(mediaType string) (string, bool) {
	mediaType = normalizeMediaType(mediaType)
	if ext, ok := extensions[mediaType]; ok {
		return ext, true
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return "", false
	}
	return exts[0], true
}

// normalizeMediaType strips parameters and lowercases, so
// "Video/MP4; codecs=avc1" becomes "video/mp4".
func normalizeMediaType(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mediaType))
	}
	return mt
}
