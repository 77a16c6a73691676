package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/triplens/service-trip-duration/internal/application"
	"github.com/triplens/service-trip-duration/internal/config"
	"github.com/triplens/service-trip-duration/internal/database"
	modelDomain "github.com/triplens/service-trip-duration/internal/domain/model"
	"github.com/triplens/service-trip-duration/internal/events"
	"github.com/triplens/service-trip-duration/internal/handler"
	"github.com/triplens/service-trip-duration/internal/logger"
	"github.com/triplens/service-trip-duration/internal/middleware"
	"github.com/triplens/service-trip-duration/internal/repository"
	"github.com/triplens/service-trip-duration/internal/scoring"
)

const serviceName = "service-trip-duration"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("model_source", cfg.Model.Source),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load the model once, before accepting traffic
	loader, err := buildLoader(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to configure model loader", zap.Error(err))
	}
	adapter := scoring.NewAdapter(loader, log)
	if err := adapter.Load(ctx); err != nil {
		log.Fatal("failed to load model", zap.Error(err))
	}

	predictionService := application.NewPredictionService(adapter, cfg.Model.MaxBatchSize, log)

	// Setup Gin router
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	handler.NewPredictionHandler(predictionService).RegisterRoutes(&router.RouterGroup)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.KafkaConfig.Enabled {
		consumer := events.NewTripScoringConsumer(
			events.NewConsumer(cfg.KafkaConfig.Brokers, cfg.KafkaConfig.GroupPrefix+serviceName, cfg.KafkaConfig.InputTopic, log),
			events.NewProducer(cfg.KafkaConfig.Brokers, log),
			predictionService,
			cfg.KafkaConfig.OutputTopic,
			log,
		)
		defer func() { _ = consumer.Close() }()

		g.Go(func() error {
			log.Info("starting trip scoring consumer", zap.String("topic", cfg.KafkaConfig.InputTopic))
			runConsumer(gctx, consumer, log)
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down " + serviceName + "...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server forced shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error(serviceName+" exited with error", zap.Error(err))
		return
	}
	log.Info(serviceName + " stopped")
}

type consumerStarter interface {
	Start(ctx context.Context) error
}

// runConsumer blocks until the consumer stops. A consumer failure is logged but does not
// take the HTTP server down with it.
func runConsumer(ctx context.Context, consumer consumerStarter, log *zap.Logger) {
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("trip scoring consumer error", zap.Error(err))
	}
}

// buildLoader picks where the model comes from.
func buildLoader(ctx context.Context, cfg *config.ServiceConfig, log *zap.Logger) (scoring.Loader, error) {
	card := modelDomain.Card{
		Name:    cfg.Model.Name,
		Version: cfg.Model.Version,
		Task:    cfg.Model.Task,
		Target:  cfg.Model.Target,
	}

	switch cfg.Model.Source {
	case config.ModelSourceFile:
		return scoring.FromArtifacts(repository.NewFileSource(cfg.Model.Path, card)), nil

	case config.ModelSourceRegistry:
		db, err := database.Connect(ctx, cfg.DBConfig, log)
		if err != nil {
			return nil, err
		}
		if cfg.AppEnv == "development" {
			if err := database.Migrate(db); err != nil {
				return nil, err
			}
			log.Info("database migration completed (dev auto-migrate)")
		}
		repo := repository.NewGormArtifactRepository(db)
		return scoring.FromArtifacts(repository.NewRegistrySource(repo, cfg.Model.Name, cfg.Model.RegistryVersion)), nil

	case config.ModelSourceRemote:
		return scoring.Remote(cfg.Model.Endpoint, cfg.Model.Timeout, card), nil

	default:
		return nil, fmt.Errorf("unknown model source %q", cfg.Model.Source)
	}
}
