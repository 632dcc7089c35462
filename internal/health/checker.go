package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	DefaultCacheTTL       = 10 * time.Second
	DefaultCheckTimeout   = 5 * time.Second
	DefaultDeepCheckLimit = 10 * time.Second
)

// Status is the health response body.
type Status struct {
	Status    string                    `json:"status"`
	Service   string                    `json:"service"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks,omitempty"`
}

// ComponentCheck is the result for one dependency.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// S3Client is the S3 call used to verify the video bucket.
type S3Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// SQSClient is the SQS call used to verify the notification queue.
type SQSClient interface {
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// Pinger is implemented by the video record stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds health checker configuration. Nil clients are skipped.
type Config struct {
	ServiceName    string
	S3Client       S3Client
	S3Bucket       string
	Store          Pinger
	StoreName      string
	SQSClient      SQSClient
	SQSQueueURL    string
	Logger         *slog.Logger
	CacheTTL       time.Duration
	CheckTimeout   time.Duration
	DeepCheckLimit time.Duration
}

// DefaultConfig returns a Config with default timings and no dependencies.
func DefaultConfig(serviceName string, logger *slog.Logger) *Config {
	return &Config{
		ServiceName:    serviceName,
		Logger:         logger,
		CacheTTL:       DefaultCacheTTL,
		CheckTimeout:   DefaultCheckTimeout,
		DeepCheckLimit: DefaultDeepCheckLimit,
	}
}

type dependency struct {
	name  string
	check func(ctx context.Context) error
}

// Checker reports service health. Deep checks call each dependency and
// are themselves rate limited.
type Checker struct {
	config        *Config
	deps          []dependency
	mu            sync.RWMutex
	lastCheck     time.Time
	lastStatus    *Status
	lastDeepCheck time.Time
}

// NewChecker creates a checker for the dependencies present in config.
func NewChecker(config *Config) *Checker {
	c := &Checker{config: config}

	if config.S3Client != nil && config.S3Bucket != "" {
		c.deps = append(c.deps, dependency{name: "s3", check: func(ctx context.Context) error {
			_, err := config.S3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(config.S3Bucket)})
			return err
		}})
	}
	if config.Store != nil {
		name := config.StoreName
		if name == "" {
			name = "store"
		}
		c.deps = append(c.deps, dependency{name: name, check: config.Store.Ping})
	}
	if config.SQSClient != nil && config.SQSQueueURL != "" {
		c.deps = append(c.deps, dependency{name: "sqs", check: func(ctx context.Context) error {
			_, err := config.SQSClient.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
				QueueUrl:       aws.String(config.SQSQueueURL),
				AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
			})
			return err
		}})
	}

	return c
}

// Check returns the service status. Shallow checks may be served from cache.
func (c *Checker) Check(ctx context.Context, deep bool) *Status {
	if !deep {
		c.mu.RLock()
		if c.lastStatus != nil && time.Since(c.lastCheck) < c.config.CacheTTL {
			status := c.lastStatus
			c.mu.RUnlock()
			return status
		}
		c.mu.RUnlock()
	}

	status := &Status{
		Status:    "healthy",
		Service:   c.config.ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
	}

	if deep {
		for _, dep := range c.deps {
			result := c.run(ctx, dep)
			status.Checks[dep.name] = result
			if result.Status != "healthy" {
				status.Status = "degraded"
			}
		}
	}

	c.mu.Lock()
	c.lastCheck = time.Now()
	c.lastStatus = status
	c.mu.Unlock()

	return status
}

func (c *Checker) run(ctx context.Context, dep dependency) ComponentCheck {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.config.CheckTimeout)
	defer cancel()

	err := dep.check(ctx)
	latency := time.Since(start)

	if err != nil {
		if c.config.Logger != nil {
			c.config.Logger.WarnContext(ctx, "Health check failed", "dependency", dep.name, "error", err)
		}
		return ComponentCheck{Status: "unhealthy", Latency: latency.String(), Error: err.Error()}
	}
	return ComponentCheck{Status: "healthy", Latency: latency.String()}
}

// CanPerformDeepCheck returns true if enough time has passed since the last deep check.
func (c *Checker) CanPerformDeepCheck() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.lastDeepCheck) >= c.config.DeepCheckLimit
}

// RecordDeepCheck records the time of a deep health check.
func (c *Checker) RecordDeepCheck() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastDeepCheck = time.Now()
}

// Handler serves the shallow check.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.writeResponse(w, c.Check(r.Context(), false), 0)
	}
}

// DeepHandler serves the deep check, answering 429 with the cached status
// when called too often.
func (c *Checker) DeepHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.CanPerformDeepCheck() {
			cached := *c.Check(r.Context(), false)
			cached.Checks = maps.Clone(cached.Checks)
			if cached.Checks == nil {
				cached.Checks = make(map[string]ComponentCheck)
			}
			cached.Checks["rate_limited"] = ComponentCheck{
				Status: "info",
				Error:  "Deep health check rate limited, returning cached result",
			}
			w.Header().Set("Retry-After", "10")
			c.writeResponse(w, &cached, http.StatusTooManyRequests)
			return
		}

		c.RecordDeepCheck()
		c.writeResponse(w, c.Check(r.Context(), true), 0)
	}
}

func (c *Checker) writeResponse(w http.ResponseWriter, status *Status, code int) {
	if code == 0 {
		code = http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil && c.config.Logger != nil {
		c.config.Logger.Error("Failed to encode health check response", "error", err)
	}
}
