package metrics

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/export"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

// WizardMetrics records engine outcomes. It implements
// wizard.Instrumentation, persistence.AttemptObserver and export.Observer.
type WizardMetrics struct {
	stepsAdvancedCounter        metric.Int64Counter
	saveAttemptsCounter         metric.Int64Counter
	saveFailuresCounter         metric.Int64Counter
	submissionsCounter          metric.Int64Counter
	submissionDurationHistogram metric.Float64Histogram
	exportsCounter              metric.Int64Counter
}

// NewWizardMetrics creates the instruments on the global meter provider.
func NewWizardMetrics() (*WizardMetrics, error) {
	return NewWizardMetricsWithMeter(otel.Meter("wizard-metrics"))
}

// NewWizardMetricsWithMeter creates the instruments on meter.
func NewWizardMetricsWithMeter(meter metric.Meter) (*WizardMetrics, error) {
	stepsAdvancedCounter, err := meter.Int64Counter(
		"plan_wizard.steps.advanced",
		metric.WithDescription("Steps validated, saved and completed"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, err
	}

	saveAttemptsCounter, err := meter.Int64Counter(
		"plan_wizard.save.attempts",
		metric.WithDescription("Individual step record write attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	saveFailuresCounter, err := meter.Int64Counter(
		"plan_wizard.save.failures",
		metric.WithDescription("Step record write attempts that failed"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	submissionsCounter, err := meter.Int64Counter(
		"plan_wizard.submissions",
		metric.WithDescription("Plan submissions by outcome"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, err
	}

	submissionDurationHistogram, err := meter.Float64Histogram(
		"plan_wizard.submission.duration",
		metric.WithDescription("Duration of plan generation and review save in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	exportsCounter, err := meter.Int64Counter(
		"plan_wizard.exports",
		metric.WithDescription("Document exports by format and outcome"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, err
	}

	return &WizardMetrics{
		stepsAdvancedCounter:        stepsAdvancedCounter,
		saveAttemptsCounter:         saveAttemptsCounter,
		saveFailuresCounter:         saveFailuresCounter,
		submissionsCounter:          submissionsCounter,
		submissionDurationHistogram: submissionDurationHistogram,
		exportsCounter:              exportsCounter,
	}, nil
}

// StepAdvanced records a completed step.
func (m *WizardMetrics) StepAdvanced(ctx context.Context, kind, stepID string) {
	m.stepsAdvancedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("wizard", kind),
			attribute.String("step.id", stepID),
		),
	)
}

// SubmissionFinished records the outcome and duration of a submission.
func (m *WizardMetrics) SubmissionFinished(ctx context.Context, kind string, err error, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("wizard", kind),
		attribute.String("status", status(err)),
		attribute.String("error.type", errorType(err)),
	)
	m.submissionsCounter.Add(ctx, 1, attrs)
	m.submissionDurationHistogram.Record(ctx, elapsed.Seconds(), attrs)
}

// SaveAttempted records one write attempt.
func (m *WizardMetrics) SaveAttempted(ctx context.Context, kind string, attempt int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("wizard", kind),
		attribute.Int("attempt", attempt),
	)
	m.saveAttemptsCounter.Add(ctx, 1, attrs)
	if err != nil {
		m.saveFailuresCounter.Add(ctx, 1, attrs)
	}
}

// ExportFinished records one export.
func (m *WizardMetrics) ExportFinished(ctx context.Context, kind string, format export.Format, err error) {
	m.exportsCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("wizard", kind),
			attribute.String("format", string(format)),
			attribute.String("status", status(err)),
		),
	)
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "completed"
}

func errorType(err error) string {
	if err == nil {
		return ""
	}
	var we *wizard.Error
	if errors.As(err, &we) {
		return string(we.Kind)
	}
	return "internal"
}
