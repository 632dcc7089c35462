package config

import (
	"strings"
	"testing"
	"time"

	"github.com/amillerrr/video-publisher/internal/upload"
	"github.com/amillerrr/video-publisher/pkg/models"
)

func validConfig() *Config {
	return &Config{
		Environment: "dev",
		AWS: AWSConfig{
			Bucket:        "bucket",
			DynamoDBTable: "table",
		},
		Upload: UploadConfig{
			MaxBytes:           upload.DefaultMaxUploadBytes,
			AcceptedMediaTypes: upload.DefaultMediaTypes,
			StorageMode:        models.StoragePublic,
			PresignTTL:         time.Hour,
		},
		Store: StoreConfig{Backend: BackendDynamoDB},
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("S3_BUCKET", "test-bucket")
	t.Setenv("DYNAMODB_TABLE", "test-table")
	t.Setenv("CDN_DOMAIN", "cdn.test.com")
	t.Setenv("STORAGE_MODE", "Presigned")
	t.Setenv("PRESIGN_TTL", "900")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("ACCEPTED_MEDIA_TYPES", "video/mp4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AWS.Bucket != "test-bucket" {
		t.Errorf("Bucket = %v, want %v", cfg.AWS.Bucket, "test-bucket")
	}
	if cfg.Upload.StorageMode != models.StoragePresigned {
		t.Errorf("StorageMode = %v, want presigned", cfg.Upload.StorageMode)
	}
	if cfg.Upload.PresignTTL != 15*time.Minute {
		t.Errorf("PresignTTL = %v, want 15m", cfg.Upload.PresignTTL)
	}
	if cfg.Upload.MaxBytes != 1<<20 {
		t.Errorf("MaxBytes = %d, want %d", cfg.Upload.MaxBytes, 1<<20)
	}
	if cfg.Store.Backend != BackendDynamoDB {
		t.Errorf("Store.Backend = %v, want dynamodb", cfg.Store.Backend)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "")
	t.Setenv("STORAGE_MODE", "")
	t.Setenv("PRESIGN_TTL", "")
	t.Setenv("ACCEPTED_MEDIA_TYPES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Upload.MaxBytes != 1<<30 {
		t.Errorf("MaxBytes = %d, want 1 GiB", cfg.Upload.MaxBytes)
	}
	if cfg.Upload.StorageMode != models.StoragePublic {
		t.Errorf("StorageMode = %v, want public", cfg.Upload.StorageMode)
	}
	if len(cfg.Upload.AcceptedMediaTypes) != 2 {
		t.Errorf("AcceptedMediaTypes = %v, want mp4 and webm", cfg.Upload.AcceptedMediaTypes)
	}
}

func TestValidateAPI_MissingRequired(t *testing.T) {
	cfg := validConfig()
	cfg.AWS = AWSConfig{}

	err := cfg.ValidateAPI()
	if err == nil {
		t.Fatal("ValidateAPI() expected error for missing required fields")
	}
	if !strings.Contains(err.Error(), "S3_BUCKET") || !strings.Contains(err.Error(), "DYNAMODB_TABLE") {
		t.Errorf("ValidateAPI() error = %v, want both missing settings reported", err)
	}
}

func TestValidateAPI_SQLiteNeedsNoTable(t *testing.T) {
	cfg := validConfig()
	cfg.AWS.DynamoDBTable = ""
	cfg.Store = StoreConfig{Backend: BackendSQLite, SQLitePath: "videos.db"}

	if err := cfg.ValidateAPI(); err != nil {
		t.Errorf("ValidateAPI() unexpected error = %v", err)
	}
}

func TestValidateAPI_InvalidPipeline(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown storage mode", func(c *Config) { c.Upload.StorageMode = "private" }},
		{"no media types", func(c *Config) { c.Upload.AcceptedMediaTypes = nil }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }},
		{"presigned without ttl", func(c *Config) {
			c.Upload.StorageMode = models.StoragePresigned
			c.Upload.PresignTTL = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.ValidateAPI(); err == nil {
				t.Error("ValidateAPI() expected error")
			}
		})
	}
}

func TestValidateAPI_ProductionRequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "production"

	err := cfg.ValidateAPI()
	if err == nil {
		t.Error("ValidateAPI() expected error for missing credentials in production")
	}
}

func TestPipelineConfig(t *testing.T) {
	u := UploadConfig{
		MaxBytes:           42,
		AcceptedMediaTypes: []string{"video/mp4", "VIDEO/WEBM"},
		StorageMode:        models.StoragePresigned,
		PresignTTL:         time.Minute,
	}

	got := u.PipelineConfig()
	if got.MaxUploadBytes != 42 || got.StorageMode != models.StoragePresigned || got.PresignTTL != time.Minute {
		t.Errorf("PipelineConfig() = %+v", got)
	}
	if _, ok := got.AcceptedMediaTypes["video/webm"]; !ok {
		t.Errorf("AcceptedMediaTypes = %v, want normalized video/webm", got.AcceptedMediaTypes)
	}
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"prod", true},
		{"production", true},
		{"PROD", true},
		{"PRODUCTION", true},
		{"dev", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{Environment: tt.env}
			if got := cfg.IsProduction(); got != tt.want {
				t.Errorf("IsProduction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetAPICredentials_Development(t *testing.T) {
	cfg := &Config{Environment: "dev"}

	user, pass, err := cfg.GetAPICredentials()
	if err != nil {
		t.Fatalf("GetAPICredentials() error = %v", err)
	}
	if user != "admin" || pass != "secret" {
		t.Errorf("GetAPICredentials() = (%v, %v), want (admin, secret)", user, pass)
	}
}

func TestGetAPICredentials_Production(t *testing.T) {
	cfg := &Config{Environment: "production"}

	_, _, err := cfg.GetAPICredentials()
	if err == nil {
		t.Error("GetAPICredentials() expected error in production without credentials")
	}
}

func TestGetJWTSecret(t *testing.T) {
	if _, err := (&Config{}).GetJWTSecret(); err == nil {
		t.Error("GetJWTSecret() expected error when unset")
	}

	cfg := &Config{Environment: "production", API: APIConfig{JWTSecret: "short"}}
	if _, err := cfg.GetJWTSecret(); err == nil {
		t.Error("GetJWTSecret() expected error for short secret in production")
	}

	cfg.Environment = "dev"
	if got, err := cfg.GetJWTSecret(); err != nil || string(got) != "short" {
		t.Errorf("GetJWTSecret() = (%s, %v), want (short, nil)", got, err)
	}
}

func TestGetEnvSlice(t *testing.T) {
	t.Setenv("TEST_SLICE", "a, b, c")

	result := getEnvSlice("TEST_SLICE", nil)
	if len(result) != 3 {
		t.Fatalf("getEnvSlice() len = %d, want 3", len(result))
	}
	if result[0] != "a" || result[1] != "b" || result[2] != "c" {
		t.Errorf("getEnvSlice() = %v, want [a b c]", result)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"15m", 15 * time.Minute},
		{"30", 30 * time.Second},
		{"", time.Hour},
		{"nonsense", time.Hour},
		{"-5m", time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := getEnvDuration("TEST_DURATION", time.Hour); got != tt.want {
				t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("TEST_INT", "42")

	if got := getEnvInt64("TEST_INT", 10); got != 42 {
		t.Errorf("getEnvInt64() = %d, want 42", got)
	}
	if got := getEnvInt64("NONEXISTENT", 10); got != 10 {
		t.Errorf("getEnvInt64() = %d, want 10", got)
	}
}
