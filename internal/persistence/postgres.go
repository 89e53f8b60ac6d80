package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

var tracer = otel.Tracer("persistence")

// Schema creates the step record table. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS step_records (
	user_id    TEXT        NOT NULL,
	wizard     TEXT        NOT NULL,
	step_id    TEXT        NOT NULL,
	user_input JSONB       NOT NULL DEFAULT '{}'::jsonb,
	ai_output  TEXT        NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, wizard, step_id)
)`

// PostgresStore keeps step records in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the step_records table when it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create step_records table: %w", err)
	}
	return nil
}

// Get loads every record of (userID, wizardKind) ordered by first write.
func (s *PostgresStore) Get(ctx context.Context, userID, wizardKind string) ([]wizard.StepRecord, error) {
	if userID == "" {
		return nil, ErrNoIdentity
	}
	ctx, span := tracer.Start(ctx, "persistence.get")
	defer span.End()
	span.SetAttributes(attribute.String("wizard", wizardKind))

	rows, err := s.pool.Query(ctx, `
		SELECT step_id, user_input, ai_output
		FROM step_records
		WHERE user_id = $1 AND wizard = $2
		ORDER BY created_at, step_id
	`, userID, wizardKind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("failed to load step records: %w", err)
	}
	defer rows.Close()

	var records []wizard.StepRecord
	for rows.Next() {
		var (
			rec   wizard.StepRecord
			input []byte
		)
		if err := rows.Scan(&rec.StepID, &input, &rec.AIOutput); err != nil {
			return nil, fmt.Errorf("failed to scan step record: %w", err)
		}
		if err := json.Unmarshal(input, &rec.UserInput); err != nil {
			return nil, fmt.Errorf("failed to decode user input of step %s: %w", rec.StepID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read step records: %w", err)
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

// Upsert writes the record, keeping created_at of an existing row so load
// order stays first-write order.
func (s *PostgresStore) Upsert(ctx context.Context, userID, wizardKind string, rec wizard.StepRecord) error {
	if userID == "" {
		return ErrNoIdentity
	}
	ctx, span := tracer.Start(ctx, "persistence.upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("wizard", wizardKind),
		attribute.String("step_id", rec.StepID),
	)

	input := rec.UserInput
	if input == nil {
		input = map[string]any{}
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("%w: failed to encode user input: %v", ErrInvalidRecord, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO step_records (user_id, wizard, step_id, user_input, ai_output)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, wizard, step_id) DO UPDATE
		SET user_input = EXCLUDED.user_input,
		    ai_output  = EXCLUDED.ai_output,
		    updated_at = NOW()
	`, userID, wizardKind, rec.StepID, string(encoded), rec.AIOutput)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return fmt.Errorf("failed to upsert step record: %w", err)
	}
	return nil
}
