package common

import (
	"context"

	"cvscreen/internal/ai"
	"cvscreen/internal/compare"
	"cvscreen/internal/config"
	"cvscreen/internal/errors"
	"cvscreen/internal/pipeline"
	"cvscreen/internal/ranking"
	"cvscreen/internal/remote"
	"cvscreen/internal/types"
)

// Backends are the analysis and ranking collaborators a screening run uses
type Backends struct {
	Analyzer pipeline.Analyzer
	Ranker   compare.Ranker
	close    func() error
}

// Close releases the resources held by the backends
func (b *Backends) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// NewRemoteBackends talks to an analysis server at cfg.Client.BaseURL
func NewRemoteBackends(cfg *config.Config, logger *errors.Logger) *Backends {
	client := remote.New(cfg.Client, logger)
	return &Backends{Analyzer: client, Ranker: client}
}

// NewLocalBackends calls the model provider in-process instead of going
// through an analysis server
func NewLocalBackends(cfg *config.Config, logger *errors.Logger) (*Backends, error) {
	service, err := ai.NewService(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Backends{
		Analyzer: &LocalAnalyzer{Provider: service.Analyze, Logger: logger},
		Ranker:   ranking.New(service.Compare, logger, ranking.WithTopK(cfg.AI.TopK)),
		close:    service.Close,
	}, nil
}

// LocalAnalyzer adapts an AI provider to the pipeline's Analyzer
type LocalAnalyzer struct {
	Provider ai.AIProvider
	Logger   *errors.Logger
}

// AnalyzeCV runs the provider's analysis. Provider failures are reported
// as RemoteAnalysisFailed like their over-the-wire counterparts.
func (a *LocalAnalyzer) AnalyzeCV(ctx context.Context, text string) (*types.CandidateRecord, error) {
	rec, usage, err := a.Provider.AnalyzeCV(ctx, text)
	if err != nil {
		return nil, errors.NewKindError(errors.KindRemoteAnalysisFailed, "analysis failed", err)
	}
	if usage != nil && a.Logger != nil {
		a.Logger.Debug("AI token usage",
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
			"total_tokens", usage.TotalTokens)
	}
	return &rec, nil
}
