// Package generation implements the external text-generation collaborator.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

// ErrEmptyOutput is returned when a provider answers without any text.
var ErrEmptyOutput = errors.New("generation returned no output")

// ErrUnhealthy is reported by Ready when the service fails its health check.
var ErrUnhealthy = errors.New("generation service is unhealthy")

// GenerateRequest is the body posted to an HTTP generation service.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// HTTPGenerator calls a generation service over HTTP behind a circuit breaker.
type HTTPGenerator struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPGenerator creates a generator for the service at baseURL.
func NewHTTPGenerator(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "generation",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &HTTPGenerator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tracer:     otel.Tracer("generation-http"),
		breaker:    gobreaker.NewCircuitBreaker(settings),
	}
}

// Generate posts the payload and returns the service's result. Transport
// failures and non-2xx answers are returned as errors; a well-formed answer
// with success=false is returned as-is.
func (g *HTTPGenerator) Generate(ctx context.Context, payload string) (wizard.GenerationResult, error) {
	ctx, span := g.tracer.Start(ctx, "generation.http.generate")
	defer span.End()
	span.SetAttributes(attribute.Int("payload_bytes", len(payload)))

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.generateInternal(ctx, payload)
	})
	if err != nil {
		span.RecordError(err)
		return wizard.GenerationResult{}, fmt.Errorf("failed to call generation service: %w", err)
	}

	res := result.(wizard.GenerationResult)
	span.SetAttributes(attribute.Bool("success", res.Success))
	return res, nil
}

func (g *HTTPGenerator) generateInternal(ctx context.Context, payload string) (wizard.GenerationResult, error) {
	body, err := json.Marshal(GenerateRequest{Prompt: payload})
	if err != nil {
		return wizard.GenerationResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return wizard.GenerationResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return wizard.GenerationResult{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return wizard.GenerationResult{}, fmt.Errorf("generation service returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return wizard.GenerationResult{}, fmt.Errorf("generation service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var res wizard.GenerationResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return wizard.GenerationResult{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if res.Success && strings.TrimSpace(res.Output) == "" {
		return wizard.GenerationResult{}, ErrEmptyOutput
	}
	return res, nil
}

// IsHealthy checks the service's health endpoint.
func (g *HTTPGenerator) IsHealthy(ctx context.Context) bool {
	ctx, span := g.tracer.Start(ctx, "generation.http.health_check")
	defer span.End()

	if g.breaker.State() == gobreaker.StateOpen {
		span.SetAttributes(attribute.Bool("healthy", false), attribute.String("reason", "circuit_breaker_open"))
		return false
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/health", nil)
	if err != nil {
		span.RecordError(err)
		return false
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return false
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode == http.StatusOK
	span.SetAttributes(attribute.Bool("healthy", healthy))
	return healthy
}

// Ready adapts IsHealthy to the readiness probe signature.
func (g *HTTPGenerator) Ready(ctx context.Context) error {
	if !g.IsHealthy(ctx) {
		return ErrUnhealthy
	}
	return nil
}
