package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 250 * time.Millisecond
)

// AttemptObserver is told about every save attempt, for metrics.
type AttemptObserver interface {
	SaveAttempted(ctx context.Context, wizard string, attempt int, err error)
}

// ClientConfig tunes a Client.
type ClientConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	Observer    AttemptObserver
	Logger      *zap.Logger
}

// Client binds a Store to one wizard kind.
type Client struct {
	store       Store
	wizard      string
	maxAttempts int
	backoff     time.Duration
	observer    AttemptObserver
	logger      *zap.Logger
}

// NewClient creates a Client for wizardKind. Zero config values take defaults.
func NewClient(store Store, wizardKind string, cfg ClientConfig) *Client {
	c := &Client{
		store:       store,
		wizard:      wizardKind,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		observer:    cfg.Observer,
		logger:      cfg.Logger,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.backoff < 0 {
		c.backoff = 0
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Wizard is the kind the client is bound to.
func (c *Client) Wizard() string { return c.wizard }

// Load returns the user's records for the bound wizard.
func (c *Client) Load(ctx context.Context, userID string) ([]wizard.StepRecord, error) {
	return c.store.Get(ctx, userID, c.wizard)
}

// SaveWithRetry upserts record under stepID, retrying store and transport
// failures up to the configured attempt count with linear backoff. The last
// error is returned once attempts are exhausted, the error is permanent, or
// ctx is done.
func (c *Client) SaveWithRetry(ctx context.Context, userID, stepID string, record wizard.StepRecord) error {
	ctx, span := tracer.Start(ctx, "persistence.save_with_retry")
	defer span.End()
	span.SetAttributes(
		attribute.String("wizard", c.wizard),
		attribute.String("step_id", stepID),
	)

	record.StepID = stepID
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.store.Upsert(ctx, userID, c.wizard, record)
		if c.observer != nil {
			c.observer.SaveAttempted(ctx, c.wizard, attempt, lastErr)
		}
		if lastErr == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return nil
		}
		if !retryable(lastErr) {
			break
		}

		c.logger.Warn("save attempt failed",
			zap.String("wizard", c.wizard),
			zap.String("step_id", stepID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			return fmt.Errorf("save %s/%s cancelled after %d attempts: %w", c.wizard, stepID, attempt, lastErr)
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	span.RecordError(lastErr)
	return fmt.Errorf("save %s/%s failed: %w", c.wizard, stepID, lastErr)
}

// retryable reports whether a failed upsert may succeed when repeated.
// Missing identity, unencodable records and Postgres data or constraint
// violations (SQLSTATE classes 22 and 23) fail the same way every time.
func retryable(err error) bool {
	if errors.Is(err, ErrNoIdentity) || errors.Is(err, ErrInvalidRecord) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "22", "23":
			return false
		}
	}
	return true
}
