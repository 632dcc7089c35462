package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/amillerrr/video-publisher/internal/api"
	"github.com/amillerrr/video-publisher/internal/auth"
	"github.com/amillerrr/video-publisher/internal/config"
	"github.com/amillerrr/video-publisher/internal/health"
	"github.com/amillerrr/video-publisher/internal/logger"
	"github.com/amillerrr/video-publisher/internal/media"
	"github.com/amillerrr/video-publisher/internal/observability"
	"github.com/amillerrr/video-publisher/internal/staging"
	"github.com/amillerrr/video-publisher/internal/storage"
	"github.com/amillerrr/video-publisher/internal/upload"
)

const (
	ServiceName           = "video-publisher"
	ServiceVersion        = "1.0.0"
	ShutdownTimeout       = 30 * time.Second
	TracerShutdownTimeout = 5 * time.Second
	AWSConfigTimeout      = 10 * time.Second
)

// videoStore is satisfied by both record store backends.
type videoStore interface {
	api.VideoStore
	upload.VideoStore
	health.Pinger
}

func main() {
	// Load .env file if present
	envErr := godotenv.Load()

	cfg, err := config.LoadAPI()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	if envErr != nil {
		log.Info("No .env file found, using system environment variables")
	}

	if cfg.Observability.TracingEnabled {
		shutdownTracer, err := observability.InitTracer(context.Background(), ServiceName, observability.TracerConfig{
			Endpoint:    cfg.Observability.OTLPEndpoint,
			Environment: cfg.Environment,
			Version:     ServiceVersion,
		})
		if err != nil {
			log.Error("Failed to initialize tracer", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), TracerShutdownTimeout)
			defer cancel()
			if err := shutdownTracer(ctx); err != nil {
				log.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	// Initialize AWS clients
	ctx, cancel := context.WithTimeout(context.Background(), AWSConfigTimeout)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)

	s3Client := storage.NewS3Client(awsCfg, cfg.AWS.S3Endpoint)
	publisher := storage.NewPublisher(s3Client, storage.PublisherConfig{
		Bucket:    cfg.AWS.Bucket,
		Region:    cfg.AWS.Region,
		CDNDomain: cfg.AWS.CDNDomain,
		Endpoint:  cfg.AWS.S3Endpoint,
	})

	store, closeStore, err := openStore(cfg, awsCfg)
	if err != nil {
		log.Error("Failed to initialize video store", "error", err, "backend", cfg.Store.Backend)
		os.Exit(1)
	}
	defer closeStore()
	log.Info("Video store initialized", "backend", cfg.Store.Backend)

	healthConfig := health.DefaultConfig(ServiceName, log)
	healthConfig.S3Client = s3Client
	healthConfig.S3Bucket = cfg.AWS.Bucket
	healthConfig.Store = store
	healthConfig.StoreName = cfg.Store.Backend

	var notifier upload.Notifier
	if cfg.AWS.NotifyQueueURL != "" {
		sqsClient := sqs.NewFromConfig(awsCfg)
		notifier = storage.NewSQSNotifier(sqsClient, cfg.AWS.NotifyQueueURL)
		healthConfig.SQSClient = sqsClient
		healthConfig.SQSQueueURL = cfg.AWS.NotifyQueueURL
	}

	stager, err := staging.New(cfg.Upload.ScratchDir, log)
	if err != nil {
		log.Error("Failed to initialize scratch directory", "error", err)
		os.Exit(1)
	}

	runner := media.NewExecRunner(log)
	pipeline, err := upload.NewService(cfg.Upload.PipelineConfig(), upload.Deps{
		Store:     store,
		Stager:    stager,
		Prober:    media.NewProber(runner, cfg.Upload.FFprobePath),
		Optimizer: media.NewOptimizer(runner, cfg.Upload.FFmpegPath, log),
		Publisher: publisher,
		Notifier:  notifier,
		Logger:    log,
	})
	if err != nil {
		log.Error("Failed to create upload pipeline", "error", err)
		os.Exit(1)
	}

	jwtSecret, err := cfg.GetJWTSecret()
	if err != nil {
		log.Error("Failed to get JWT secret", "error", err)
		os.Exit(1)
	}
	jwtService, err := auth.NewJWTService(jwtSecret)
	if err != nil {
		log.Error("Failed to create JWT service", "error", err)
		os.Exit(1)
	}

	server, err := api.NewServer(&api.ServerConfig{
		Config:        cfg,
		Logger:        log,
		Store:         store,
		Pipeline:      pipeline,
		JWTService:    jwtService,
		RateLimiter:   auth.NewRateLimiter(auth.DefaultRateLimiterConfig()),
		HealthChecker: health.NewChecker(healthConfig),
	})
	if err != nil {
		log.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Error("Server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel = context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server shutdown complete")
}

// openStore opens the configured record store and returns its close function.
func openStore(cfg *config.Config, awsCfg aws.Config) (videoStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		repo, err := storage.NewSQLiteVideoRepository(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				slog.Error("Failed to close SQLite store", "error", err)
			}
		}, nil
	case config.BackendDynamoDB:
		repo, err := storage.NewVideoRepository(dynamodb.NewFromConfig(awsCfg), cfg.AWS.DynamoDBTable)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
