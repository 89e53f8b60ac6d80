package helpers

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/auth"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/persistence"
)

// GetTestDatabasePool creates a database connection pool for testing
func GetTestDatabasePool(ctx context.Context) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// DatabaseURL is DATABASE_URL, or a URL built from the POSTGRES_* variables.
func DatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=prefer",
		envOr("POSTGRES_USER", "postgres"),
		envOr("POSTGRES_PASSWORD", "postgres"),
		envOr("POSTGRES_HOST", "localhost"),
		envOr("POSTGRES_PORT", "5432"),
		envOr("POSTGRES_DB", "plan_wizard_test"))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// TestDatabase provides database utilities for testing
type TestDatabase struct {
	Pool    *pgxpool.Pool
	Records *persistence.PostgresStore
	Users   *auth.PostgresUsers
	ctx     context.Context
}

// NewTestDatabase connects and creates the schema. The test is skipped when
// no database is reachable, so the suite stays runnable on a laptop.
func NewTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	ctx := context.Background()

	pool, err := GetTestDatabasePool(ctx)
	if err != nil {
		t.Skipf("database not available: %v", err)
	}

	db := &TestDatabase{
		Pool:    pool,
		Records: persistence.NewPostgresStore(pool),
		Users:   auth.NewPostgresUsers(pool),
		ctx:     ctx,
	}
	if err := db.Records.EnsureSchema(ctx); err != nil {
		pool.Close()
		t.Fatalf("Failed to create step_records table: %v", err)
	}
	if err := db.Users.EnsureSchema(ctx); err != nil {
		pool.Close()
		t.Fatalf("Failed to create users table: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// Close closes the database connection
func (db *TestDatabase) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// CleanupUser removes every row owned by userID once the test ends.
func (db *TestDatabase) CleanupUser(t *testing.T, userID string) {
	t.Cleanup(func() {
		if _, err := db.Pool.Exec(db.ctx, `DELETE FROM step_records WHERE user_id = $1`, userID); err != nil {
			t.Logf("Warning: Failed to cleanup step records: %v", err)
		}
		if _, err := db.Pool.Exec(db.ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
			t.Logf("Warning: Failed to cleanup user: %v", err)
		}
	})
}

// CreateTestUser registers a user and schedules its cleanup.
func (db *TestDatabase) CreateTestUser(t *testing.T, user TestUser) string {
	t.Helper()
	created, err := auth.Register(db.ctx, db.Users, user.Name, user.Email, user.Password)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	db.CleanupUser(t, created.ID)
	return created.ID
}

// StepRecordCount counts the stored records of one user in one wizard.
func (db *TestDatabase) StepRecordCount(t *testing.T, userID, wizardKind string) int {
	t.Helper()
	var count int
	err := db.Pool.QueryRow(db.ctx,
		`SELECT COUNT(*) FROM step_records WHERE user_id = $1 AND wizard = $2`,
		userID, wizardKind).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count step records: %v", err)
	}
	return count
}
