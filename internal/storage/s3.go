package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/amillerrr/video-publisher/internal/metrics"
	"github.com/amillerrr/video-publisher/pkg/models"
)

// DefaultS3Timeout bounds calls that do not move object bytes.
const DefaultS3Timeout = 30 * time.Second

var tracer = otel.Tracer("video-storage")

// S3API is the subset of the S3 client used for publishing.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// PresignAPI signs object requests locally.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// NewS3Client builds an S3 client. A non-empty endpoint targets an
// S3-compatible store (MinIO, LocalStack) with path-style addressing.
func NewS3Client(awsCfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// PublisherConfig holds the deployment settings of the object store.
type PublisherConfig struct {
	Bucket    string
	Region    string
	CDNDomain string
	// Endpoint is set for S3-compatible stores; public URLs then use path style.
	Endpoint string
}

// Publisher uploads finished videos and produces retrieval URLs.
type Publisher struct {
	client  S3API
	presign PresignAPI
	cfg     PublisherConfig
}

// NewPublisher creates a Publisher from an S3 client.
func NewPublisher(client *s3.Client, cfg PublisherConfig) *Publisher {
	return NewPublisherFromAPI(client, s3.NewPresignClient(client), cfg)
}

// NewPublisherFromAPI creates a Publisher from narrow interfaces.
func NewPublisherFromAPI(client S3API, presign PresignAPI, cfg PublisherConfig) *Publisher {
	return &Publisher{client: client, presign: presign, cfg: cfg}
}

// Publish uploads the file at f under key, overwriting any existing object.
func (p *Publisher) Publish(ctx context.Context, f *models.StagedFile, key, contentType string) error {
	ctx, span := tracer.Start(ctx, "publish-object")
	defer span.End()
	span.SetAttributes(
		attribute.String("s3.bucket", p.cfg.Bucket),
		attribute.String("s3.key", key),
	)

	start := time.Now()

	file, err := os.Open(f.Path)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: open %s: %v", models.ErrUploadFailed, f.Path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: stat %s: %v", models.ErrUploadFailed, f.Path, err)
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.cfg.Bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %s: %w", models.ErrUploadFailed, key, err)
	}

	metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int64("s3.size_bytes", info.Size()))

	return nil
}

// Delete removes the object at key.
func (p *Publisher) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultS3Timeout)
	defer cancel()

	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Presign returns a time-limited GET URL for key. Signing is local; no
// request is sent to the store.
func (p *Publisher) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", models.ErrPresignFailed)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: ttl must be positive", models.ErrPresignFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultS3Timeout)
	defer cancel()

	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrPresignFailed, err)
	}

	return req.URL, nil
}

// PublicURL returns the unsigned URL of key: through the CDN when one is
// configured, otherwise straight from the bucket.
func (p *Publisher) PublicURL(key string) string {
	escaped := escapeKey(key)
	switch {
	case p.cfg.CDNDomain != "":
		return fmt.Sprintf("https://%s/%s", strings.TrimSuffix(p.cfg.CDNDomain, "/"), escaped)
	case p.cfg.Endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(p.cfg.Endpoint, "/"), p.cfg.Bucket, escaped)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, escaped)
	}
}

// escapeKey escapes each path segment of key but keeps the separators.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

