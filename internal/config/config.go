package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amillerrr/video-publisher/internal/staging"
	"github.com/amillerrr/video-publisher/internal/upload"
	"github.com/amillerrr/video-publisher/pkg/models"
)

// Config holds all application configuration.
type Config struct {
	Environment   string
	LogLevel      string
	AWS           AWSConfig
	API           APIConfig
	Upload        UploadConfig
	Store         StoreConfig
	Observability ObservabilityConfig
	CORS          CORSConfig
}

// AWSConfig holds AWS-specific configuration.
type AWSConfig struct {
	Region        string
	Bucket        string
	S3Endpoint    string
	DynamoDBTable string
	CDNDomain     string
	// NotifyQueueURL enables "video published" events when set.
	NotifyQueueURL string
}

// APIConfig holds API server configuration.
type APIConfig struct {
	Port      string
	Username  string
	Password  string
	JWTSecret string
}

// UploadConfig holds the publish pipeline settings.
type UploadConfig struct {
	MaxBytes           int64
	AcceptedMediaTypes []string
	StorageMode        models.StorageMode
	PresignTTL         time.Duration
	ScratchDir         string
	FFprobePath        string
	FFmpegPath         string
}

// StoreConfig selects the video record backend.
type StoreConfig struct {
	Backend    string
	SQLitePath string
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTLPEndpoint   string
	TracingEnabled bool
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
}

// Record store backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
)

// Default values
const (
	DefaultPort         = "8080"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultRegion       = "us-west-2"
	DefaultSQLitePath   = "videos.db"
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENV", "dev"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		AWS: AWSConfig{
			Region:         getEnv("AWS_REGION", DefaultRegion),
			Bucket:         os.Getenv("S3_BUCKET"),
			S3Endpoint:     os.Getenv("S3_ENDPOINT"),
			DynamoDBTable:  os.Getenv("DYNAMODB_TABLE"),
			CDNDomain:      os.Getenv("CDN_DOMAIN"),
			NotifyQueueURL: os.Getenv("NOTIFY_QUEUE_URL"),
		},
		API: APIConfig{
			Port:      getEnv("PORT", DefaultPort),
			Username:  os.Getenv("API_USERNAME"),
			Password:  os.Getenv("API_PASSWORD"),
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Upload: UploadConfig{
			MaxBytes:           getEnvInt64("MAX_UPLOAD_BYTES", upload.DefaultMaxUploadBytes),
			AcceptedMediaTypes: getEnvSlice("ACCEPTED_MEDIA_TYPES", upload.DefaultMediaTypes),
			StorageMode:        models.StorageMode(strings.ToLower(getEnv("STORAGE_MODE", string(models.StoragePublic)))),
			PresignTTL:         getEnvDuration("PRESIGN_TTL", upload.DefaultPresignTTL),
			ScratchDir:         getEnv("SCRATCH_DIR", staging.DefaultDir),
			FFprobePath:        getEnv("FFPROBE_PATH", "ffprobe"),
			FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		},
		Store: StoreConfig{
			Backend:    strings.ToLower(getEnv("STORE_BACKEND", BackendDynamoDB)),
			SQLitePath: getEnv("SQLITE_PATH", DefaultSQLitePath),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", DefaultOTLPEndpoint),
			TracingEnabled: getEnvBool("TRACING_ENABLED", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
			}),
		},
	}

	return cfg, nil
}

// LoadAPI loads and validates configuration for the API service.
func LoadAPI() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateAPI(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateAPI reports every missing or inconsistent setting at once.
func (c *Config) ValidateAPI() error {
	var errs []string

	if c.AWS.Bucket == "" {
		errs = append(errs, "S3_BUCKET is required")
	}

	switch c.Store.Backend {
	case BackendDynamoDB:
		if c.AWS.DynamoDBTable == "" {
			errs = append(errs, "DYNAMODB_TABLE is required for the dynamodb store")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, "SQLITE_PATH is required for the sqlite store")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_BACKEND must be %q or %q", BackendDynamoDB, BackendSQLite))
	}

	if err := c.Upload.PipelineConfig().Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.IsProduction() {
		if c.API.Username == "" {
			errs = append(errs, "API_USERNAME is required in production")
		}
		if c.API.Password == "" {
			errs = append(errs, "API_PASSWORD is required in production")
		}
		if len(c.API.JWTSecret) < 32 {
			errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PipelineConfig converts the upload settings into the orchestrator's config.
func (u UploadConfig) PipelineConfig() upload.Config {
	return upload.Config{
		MaxUploadBytes:     u.MaxBytes,
		AcceptedMediaTypes: upload.MediaTypeSet(u.AcceptedMediaTypes...),
		StorageMode:        u.StorageMode,
		PresignTTL:         u.PresignTTL,
	}
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "prod" || env == "production"
}

// GetAPICredentials returns API credentials with fallback for development.
func (c *Config) GetAPICredentials() (username, password string, err error) {
	username = c.API.Username
	password = c.API.Password

	if username == "" || password == "" {
		if c.IsProduction() {
			return "", "", errors.New("API credentials not configured")
		}
		return "admin", "secret", nil
	}

	return username, password, nil
}

// GetJWTSecret returns the JWT signing secret.
func (c *Config) GetJWTSecret() ([]byte, error) {
	secret := c.API.JWTSecret
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required (set it even for development)")
	}
	if len(secret) < 32 && c.IsProduction() {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}
	return []byte(secret), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15m") or plain seconds ("900").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
