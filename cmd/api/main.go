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
	"github.com/jackc/pgx/v5/pgxpool"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/auth"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/catalog"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/config"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/export"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/gateway"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/generation"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/logging"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/metrics"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/persistence"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/sidecar"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"

	_ "github.com/bizmatters/agent-builder/plan-wizard/docs" // swagger docs
)

// @title Plan Wizard API
// @version 1.0
// @description Guided multi-step planning wizards.
// @description
// @description Each wizard gates navigation on validated steps, saves every step durably,
// @description and turns the collected answers into a generated plan that can be exported.

// @contact.name API Support
// @contact.email support@bizmatters.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	shutdownTracer, err := initTracer()
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	ctx := context.Background()

	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("load wizard catalog: %w", err)
	}
	logger.Info("wizard catalog loaded", zap.Strings("kinds", cat.Kinds()))

	var (
		store  persistence.Store
		users  auth.UserStore
		checks []gateway.ReadinessCheck
	)
	switch cfg.StoreBackend {
	case "postgres":
		pool, err := connectPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := persistence.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		pgUsers := auth.NewPostgresUsers(pool)
		if err := pgUsers.EnsureSchema(ctx); err != nil {
			return err
		}
		store, users = pg, pgUsers
		checks = append(checks, gateway.ReadinessCheck{Name: "database", Check: pool.Ping})
	default:
		logger.Warn("using in-memory store; step records are lost on restart")
		store, users = persistence.NewMemoryStore(), auth.NewMemoryUsers()
	}

	sidecarStore, err := sidecar.OpenSQLite(cfg.SidecarPath)
	if err != nil {
		return fmt.Errorf("open progress sidecar: %w", err)
	}
	defer sidecarStore.Close()

	generator, err := newGenerator(ctx, cfg.Generation, logger)
	if err != nil {
		return err
	}
	if hg, ok := generator.(*generation.HTTPGenerator); ok {
		checks = append(checks, gateway.ReadinessCheck{Name: "generation service", Check: hg.Ready})
	}

	wizardMetrics, err := metrics.NewWizardMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	objects, err := newObjectStore(cfg.Artifact, logger)
	if err != nil {
		return err
	}

	jwtManager, err := auth.NewJWTManager()
	if err != nil {
		return fmt.Errorf("failed to initialize JWT manager: %w", err)
	}

	sessions, err := gateway.NewSessionManager(gateway.SessionConfig{
		Catalog:         cat,
		Store:           store,
		Generator:       generator,
		Sidecar:         sidecar.New(sidecarStore, logger),
		Instrumentation: wizardMetrics,
		SaveObserver:    wizardMetrics,
		Save: persistence.ClientConfig{
			MaxAttempts: cfg.Save.MaxAttempts,
			Backoff:     cfg.Save.Backoff,
		},
		CacheSize: cfg.SessionCacheSize,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	handler := gateway.NewHandler(gateway.HandlerConfig{
		Sessions:   sessions,
		Exporter:   export.NewExporter(objects, wizardMetrics, logger),
		Users:      users,
		JWTManager: jwtManager,
		Logger:     logger,
	})

	if !cfg.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	gateway.RegisterRoutes(router, handler, jwtManager, gateway.AllReady(checks...))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Generation.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting plan wizard API server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func connectPostgres(ctx context.Context, dbURL string, logger *zap.Logger) (*pgxpool.Pool, error) {
	logger.Info("connecting to PostgreSQL database")
	var (
		pool *pgxpool.Pool
		err  error
	)
	for i := 0; i < 10; i++ {
		pool, err = pgxpool.New(ctx, dbURL)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				logger.Info("connected to PostgreSQL database")
				return pool, nil
			}
			pool.Close()
		}
		logger.Warn("waiting for database", zap.Int("attempt", i+1), zap.Int("max_attempts", 10), zap.Error(err))
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to database after retries: %w", err)
}

func newGenerator(ctx context.Context, cfg config.GenerationConfig, logger *zap.Logger) (wizard.Generator, error) {
	switch cfg.Provider {
	case "http":
		logger.Info("using HTTP generation service", zap.String("url", cfg.URL))
		return generation.NewHTTPGenerator(cfg.URL, cfg.Timeout, logger), nil
	default:
		gen, err := generation.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini generator: %w", err)
		}
		logger.Info("using Gemini generator", zap.String("model", cfg.GeminiModel))
		return gen, nil
	}
}

func newObjectStore(cfg config.ArtifactConfig, logger *zap.Logger) (export.ObjectStore, error) {
	if !cfg.Enabled {
		logger.Warn("artifact storage not configured; exports are kept in memory")
		return export.NewMemoryStore(), nil
	}
	s3, err := export.NewS3Store(export.S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact storage: %w", err)
	}
	return s3, nil
}

// initTracer initializes OpenTelemetry tracing
func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
