package ai

import (
	"context"
	"testing"
	"time"

	"cvscreen/internal/config"
	"cvscreen/internal/errors"
	"cvscreen/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	model  string
	closed bool
}

func (s *stubProvider) AnalyzeCV(context.Context, string) (types.CandidateRecord, *TokenUsage, error) {
	return types.CandidateRecord{}, nil, nil
}

func (s *stubProvider) ScoreCandidate(context.Context, string, types.CandidateRecord) (types.CandidateScore, *TokenUsage, error) {
	return types.CandidateScore{}, nil, nil
}

func (s *stubProvider) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }

func (s *stubProvider) GetModelInfo(context.Context) *ModelInfo {
	return &ModelInfo{Name: s.model, Available: true}
}

func (s *stubProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{"overall_healthy": true}
}

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func testConfig(provider string) *config.Config {
	return &config.Config{
		AI: config.AIConfig{
			Provider:       provider,
			Model:          "global-model",
			EmbeddingModel: "text-embedding-004",
			Timeout:        30 * time.Second,
			APIKey:         "global-api-key",
			MaxRetries:     2,
			Temperature:    0.7,
			Compare: config.OperationAIConfig{
				Model:       "compare-model",
				Temperature: float32Ptr(0.1),
			},
		},
	}
}

func TestNewService(t *testing.T) {
	service, err := NewService(testConfig("gemini"), errors.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })

	analyze, ok := service.Analyze.(*GeminiProvider)
	require.True(t, ok)
	compare, ok := service.Compare.(*GeminiProvider)
	require.True(t, ok)

	assert.Equal(t, "global-model", analyze.config.Model)
	assert.Equal(t, "compare-model", compare.config.Model)
	assert.Equal(t, float32(0.1), compare.temperature())
	assert.Equal(t, 2, compare.maxRetries())
	assert.Equal(t, "text-embedding-004", compare.options.EmbeddingModel)
	assert.Equal(t, defaultModelCheckTimeout, compare.options.ModelCheckTimeout)
}

func TestNewServiceUnsupportedProvider(t *testing.T) {
	_, err := NewService(testConfig("openai"), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
}

func TestServiceAggregatesProviders(t *testing.T) {
	analyze := &stubProvider{model: "analyze-model"}
	compare := &stubProvider{model: "compare-model"}
	service := NewServiceWithProviders(analyze, compare, nil)

	info := service.GetModelInfo(context.Background())
	require.Len(t, info, 2)
	assert.Equal(t, "analyze-model", info[config.OperationAnalyze].Name)
	assert.Equal(t, "compare-model", info[config.OperationCompare].Name)

	stats := service.GetCircuitBreakerStats()
	assert.Contains(t, stats, config.OperationAnalyze)
	assert.Contains(t, stats, config.OperationCompare)

	require.NoError(t, service.Close())
	assert.True(t, analyze.closed)
	assert.True(t, compare.closed)
}
