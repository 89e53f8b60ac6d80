package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/export"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

func newTestMetrics(t *testing.T) (*WizardMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	m, err := NewWizardMetricsWithMeter(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func total(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)
	var n int64
	for _, dp := range sum.DataPoints {
		n += dp.Value
	}
	return n
}

func TestNewWizardMetrics(t *testing.T) {
	m, err := NewWizardMetrics()
	require.NoError(t, err)
	assert.NotNil(t, m.stepsAdvancedCounter)
	assert.NotNil(t, m.saveAttemptsCounter)
	assert.NotNil(t, m.saveFailuresCounter)
	assert.NotNil(t, m.submissionsCounter)
	assert.NotNil(t, m.submissionDurationHistogram)
	assert.NotNil(t, m.exportsCounter)

	assert.NotPanics(t, func() {
		m.StepAdvanced(context.Background(), "business-plan", "intro")
	})
}

func TestWizardMetrics_Records(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.StepAdvanced(ctx, "business-plan", "intro")
	m.StepAdvanced(ctx, "business-plan", "businessOverview")
	m.SaveAttempted(ctx, "business-plan", 1, errors.New("timeout"))
	m.SaveAttempted(ctx, "business-plan", 2, nil)
	m.SubmissionFinished(ctx, "business-plan", nil, 2*time.Second)
	m.SubmissionFinished(ctx, "business-plan", &wizard.Error{Kind: wizard.KindGeneration}, time.Second)
	m.ExportFinished(ctx, "business-plan", export.FormatHTML, nil)

	data := collect(t, reader)
	assert.Equal(t, int64(2), total(t, data["plan_wizard.steps.advanced"]))
	assert.Equal(t, int64(2), total(t, data["plan_wizard.save.attempts"]))
	assert.Equal(t, int64(1), total(t, data["plan_wizard.save.failures"]))
	assert.Equal(t, int64(2), total(t, data["plan_wizard.submissions"]))
	assert.Equal(t, int64(1), total(t, data["plan_wizard.exports"]))

	hist, ok := data["plan_wizard.submission.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "", errorType(nil))
	assert.Equal(t, "persistence", errorType(&wizard.Error{Kind: wizard.KindPersistence}))
	assert.Equal(t, "internal", errorType(errors.New("boom")))
}
