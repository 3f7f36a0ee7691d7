package observability

import (
	"context"
	stderrors "errors"
	"os"
	"testing"
	"time"

	"cvscreen/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Observability.Enabled = true
	cfg.Observability.ServiceName = "cvscreen-test"
	cfg.Observability.SampleRate = 1.0
	cfg.Observability.CustomMetrics.AIOperations.Enabled = true
	cfg.Observability.CustomMetrics.AIOperations.TrackDuration = true
	cfg.Observability.CustomMetrics.AIOperations.TrackTokenUsage = true
	cfg.Observability.CustomMetrics.BusinessMetrics.Enabled = true
	cfg.Observability.CustomMetrics.Infrastructure.TrackRateLimits = true
	cfg.Observability.CustomMetrics.Pipeline.Enabled = true
	cfg.Observability.CustomMetrics.Pipeline.TrackDuration = true
	return cfg
}

func newTestManager(t *testing.T, cfg *config.Config) *ObservabilityManager {
	t.Helper()
	om, err := NewObservabilityManager(GetBatchObservabilityConfig(cfg, "test"), cfg)
	require.NoError(t, err)
	require.NotNil(t, om.fallbackReader)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })
	return om
}

func collect(t *testing.T, om *ObservabilityManager) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, om.fallbackReader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestDisabledManager(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{Enabled: false}, nil)
	require.NoError(t, err)

	assert.NotNil(t, om.GetMetrics())
	assert.Nil(t, om.GetMetrics().DocumentsProcessed)
	assert.NotPanics(t, func() {
		om.RecordDocument(context.Background(), "completed", "pdf", time.Second)
	})
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestRecordDocument(t *testing.T) {
	om := newTestManager(t, testConfig())
	ctx := context.Background()

	om.RecordDocument(ctx, "completed", "pdf", 2*time.Second)
	om.RecordDocument(ctx, "completed", "pdf", time.Second)
	om.RecordDocument(ctx, "failed", "docx", time.Second)

	data := collect(t, om)

	sum, ok := data["cvscreen_documents_processed_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	counts := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		kind, _ := dp.Attributes.Value(attribute.Key("kind"))
		counts[outcome.AsString()+"/"+kind.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"completed/pdf": 2, "failed/docx": 1}, counts)

	hist, ok := data["cvscreen_document_processing_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	assert.Equal(t, uint64(3), total)
}

func TestRecordDocumentRespectsToggles(t *testing.T) {
	cfg := testConfig()
	cfg.Observability.CustomMetrics.Pipeline.TrackDuration = false
	om := newTestManager(t, cfg)

	om.RecordDocument(context.Background(), "completed", "pdf", time.Second)

	data := collect(t, om)
	assert.Contains(t, data, "cvscreen_documents_processed_total")
	assert.NotContains(t, data, "cvscreen_document_processing_duration_seconds")
}

func TestTrackAIOperationWithTokens(t *testing.T) {
	om := newTestManager(t, testConfig())
	metrics := om.GetMetrics()
	ctx := context.Background()

	err := metrics.TrackAIOperationWithTokens(ctx, "analyze", func(context.Context) *AIOperationResult {
		return &AIOperationResult{TokenUsage: &TokenUsage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120}}
	}, om)
	require.NoError(t, err)

	failure := stderrors.New("model unavailable")
	err = metrics.TrackAIOperationWithTokens(ctx, "analyze", func(context.Context) *AIOperationResult {
		return &AIOperationResult{Error: failure}
	}, om)
	assert.ErrorIs(t, err, failure)

	data := collect(t, om)

	requests, ok := data["cvscreen_ai_requests_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range requests.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	errorsTotal, ok := data["cvscreen_ai_errors_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errorsTotal.DataPoints, 1)
	assert.Equal(t, int64(1), errorsTotal.DataPoints[0].Value)

	tokens, ok := data["cvscreen_ai_token_usage_total"].(metricdata.Histogram[int64])
	require.True(t, ok)
	assert.Len(t, tokens.DataPoints, 3)
}

func TestRecordBusinessMetric(t *testing.T) {
	cfg := testConfig()
	om := newTestManager(t, cfg)
	metrics := om.GetMetrics()
	ctx := context.Background()

	metrics.RecordBusinessMetric(ctx, MetricCVAnalyzed, true, om)
	metrics.RecordBusinessMetric(ctx, MetricComparisonRun, false, om, attribute.Int("candidates", 4))
	metrics.RecordBusinessMetric(ctx, MetricRateLimitHit, false, om)
	metrics.RecordBusinessMetric(ctx, "unknown", true, om)

	data := collect(t, om)
	for _, name := range []string{
		"cvscreen_cvs_analyzed_total",
		"cvscreen_comparisons_run_total",
		"cvscreen_rate_limit_hits_total",
	} {
		sum, ok := data[name].(metricdata.Sum[int64])
		require.True(t, ok, name)
		require.Len(t, sum.DataPoints, 1, name)
		assert.Equal(t, int64(1), sum.DataPoints[0].Value, name)
	}
}

func TestGetBatchObservabilityConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Observability.Prometheus.Enabled = true
	cfg.Observability.Prometheus.Port = "9090"

	obs := GetBatchObservabilityConfig(cfg, "1.2.3")
	assert.True(t, obs.Enabled)
	assert.False(t, obs.Prometheus.Enabled)
	assert.Equal(t, "1.2.3", obs.ServiceVersion)
	assert.Equal(t, "cvscreen-test", obs.ServiceName)
	assert.Equal(t, os.Stderr, obs.ConsoleWriter)

	assert.False(t, GetBatchObservabilityConfig(nil, "1.2.3").Enabled)
}
