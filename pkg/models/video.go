package models

import (
	"io"
	"time"
)

// AspectClass buckets a video by its width-to-height ratio.
type AspectClass string

const (
	AspectLandscape AspectClass = "landscape"
	AspectPortrait  AspectClass = "portrait"
	AspectOther     AspectClass = "other"
)

// IsValid returns true if the class is one of the known buckets.
func (c AspectClass) IsValid() bool {
	switch c {
	case AspectLandscape, AspectPortrait, AspectOther:
		return true
	}
	return false
}

// StorageMode selects how playback URLs are handed to clients.
type StorageMode string

const (
	// StoragePublic stores a static URL served by a CDN or public bucket.
	StoragePublic StorageMode = "public"
	// StoragePresigned stores only the object key and signs a URL on every read.
	StoragePresigned StorageMode = "presigned"
)

// IsValid returns true if the mode is known.
func (m StorageMode) IsValid() bool {
	return m == StoragePublic || m == StoragePresigned
}

// VideoRecord is the caller-visible video row.
type VideoRecord struct {
	ID           string    `dynamodbav:"video_id" json:"id"`
	UserID       string    `dynamodbav:"user_id" json:"userId"`
	Title        string    `dynamodbav:"title" json:"title"`
	Description  string    `dynamodbav:"description,omitempty" json:"description"`
	ThumbnailURL *string   `dynamodbav:"thumbnail_url,omitempty" json:"thumbnailUrl"`
	VideoKey     string    `dynamodbav:"video_key,omitempty" json:"-"`
	VideoURL     *string   `dynamodbav:"video_url,omitempty" json:"videoUrl"`
	Version      int64     `dynamodbav:"version" json:"-"`
	CreatedAt    time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}

// Clone returns a copy that does not share pointer fields with r.
func (r *VideoRecord) Clone() *VideoRecord {
	c := *r
	if r.ThumbnailURL != nil {
		v := *r.ThumbnailURL
		c.ThumbnailURL = &v
	}
	if r.VideoURL != nil {
		v := *r.VideoURL
		c.VideoURL = &v
	}
	return &c
}

// UploadRequest is one inbound video upload. It lives only for the request.
type UploadRequest struct {
	VideoID   string
	Identity  string
	Body      io.Reader
	MediaType string
	Size      int64
	// Filename is the client-supplied name. It is logged but never used
	// to build storage keys.
	Filename string
}

// StagedFile is a scratch file exclusively owned by one upload.
type StagedFile struct {
	Path string
	Ext  string
	Size int64
}

// PublishedEvent is emitted after a video record points at a new object.
type PublishedEvent struct {
	VideoID     string      `json:"videoId"`
	UserID      string      `json:"userId"`
	Key         string      `json:"key"`
	AspectClass AspectClass `json:"aspectClass"`
	SizeBytes   int64       `json:"sizeBytes"`
	PublishedAt time.Time   `json:"publishedAt"`
}
