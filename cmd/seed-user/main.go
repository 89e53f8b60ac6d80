package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/auth"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/config"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/logging"
)

func main() {
	name := flag.String("name", "", "Full name of the user (required)")
	email := flag.String("email", "", "Email address (required)")
	password := flag.String("password", "", "Password (required, min 8 chars)")
	flag.Parse()

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

	if err := auth.ValidateNewUser(*name, *email, *password); err != nil {
		logger.Fatal("validation error", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}

	ctx, span := otel.Tracer("seed-user").Start(ctx, "create_user")
	defer span.End()

	users := auth.NewPostgresUsers(pool)
	if err := users.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to create users table", zap.Error(err))
	}
	user, err := auth.Register(ctx, users, *name, *email, *password)
	if errors.Is(err, auth.ErrUserExists) {
		logger.Fatal("user already exists", zap.String("email", *email))
	}
	if err != nil {
		span.RecordError(err)
		logger.Fatal("failed to create user", zap.Error(err))
	}

	logger.Info("created user",
		zap.String("id", user.ID),
		zap.String("name", user.Name),
		zap.String("email", user.Email))
}
