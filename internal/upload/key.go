package upload

import (
	"strings"

	"github.com/google/uuid"

	"github.com/amillerrr/video-publisher/pkg/models"
)

// ObjectKey builds the storage key {class}/{token}{ext}.
func ObjectKey(class models.AspectClass, token, ext string) string {
	return string(class) + "/" + token + ext
}

// NewToken returns a random 32-character hex token.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
