package ai

import (
	"context"
	"fmt"

	"cvscreen/internal/config"
	"cvscreen/internal/errors"
)

// Service holds the AI providers used by the analysis server, one per operation
type Service struct {
	Analyze AIProvider
	Compare AIProvider
	logger  *errors.Logger
}

// NewService creates providers for CV analysis and candidate comparison
func NewService(cfg *config.Config, logger *errors.Logger) (*Service, error) {
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	analyze, err := newProvider(cfg, config.OperationAnalyze, logger)
	if err != nil {
		return nil, err
	}
	compare, err := newProvider(cfg, config.OperationCompare, logger)
	if err != nil {
		_ = analyze.Close()
		return nil, err
	}

	return NewServiceWithProviders(analyze, compare, logger), nil
}

// NewServiceWithProviders wires already constructed providers
func NewServiceWithProviders(analyze, compare AIProvider, logger *errors.Logger) *Service {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &Service{Analyze: analyze, Compare: compare, logger: logger}
}

func newProvider(cfg *config.Config, operation string, logger *errors.Logger) (AIProvider, error) {
	opCfg := cfg.GetOperationConfig(operation)

	logger.Debug("Initializing AI service",
		"provider", opCfg.Provider,
		"operation_type", operation,
		"model", opCfg.Model,
		"temperature", *opCfg.Temperature,
		"timeout", *opCfg.Timeout,
		"max_retries", *opCfg.MaxRetries,
		"use_system_prompts", *opCfg.UseSystemPrompts)

	var provider AIProvider
	var err error

	switch opCfg.Provider {
	case "gemini":
		provider, err = NewGeminiProvider(opCfg, operation, ProviderOptions{
			EmbeddingModel:    cfg.AI.EmbeddingModel,
			Prompts:           cfg.PromptsForOperation(operation),
			ModelCheckTimeout: cfg.Observability.HealthCheck.AIModelCheckTimeout,
		}, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", opCfg.Provider), nil)
	}

	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed,
			"Failed to create AI provider", err)
	}
	return provider, nil
}

// GetModelInfo returns model availability per operation for health checks
func (s *Service) GetModelInfo(ctx context.Context) map[string]*ModelInfo {
	return map[string]*ModelInfo{
		config.OperationAnalyze: s.Analyze.GetModelInfo(ctx),
		config.OperationCompare: s.Compare.GetModelInfo(ctx),
	}
}

// GetCircuitBreakerStats returns breaker statistics per operation
func (s *Service) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		config.OperationAnalyze: s.Analyze.GetCircuitBreakerStats(),
		config.OperationCompare: s.Compare.GetCircuitBreakerStats(),
	}
}

// Close releases both providers
func (s *Service) Close() error {
	var firstErr error
	for _, p := range []AIProvider{s.Analyze, s.Compare} {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
