package common

import (
	"context"
	stderrors "errors"

	"cvscreen/internal/compare"
	"cvscreen/internal/errors"
	"cvscreen/internal/export"
	"cvscreen/internal/pipeline"
	"cvscreen/internal/types"
)

// ScreenOptions controls one screening run
type ScreenOptions struct {
	CommandConfig
	JobDescription string
	XLSXFile       string
}

// ScreenRunner drives a batch through ingestion, optional comparison,
// export and report output
type ScreenRunner struct {
	pipeline *pipeline.Pipeline
	engine   *compare.Engine
	exporter *export.Exporter
	output   *OutputHandler
	logger   *errors.Logger
}

// NewScreenRunner wires the collaborators of a screening run
func NewScreenRunner(p *pipeline.Pipeline, engine *compare.Engine, exporter *export.Exporter, output *OutputHandler, logger *errors.Logger) *ScreenRunner {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &ScreenRunner{
		pipeline: p,
		engine:   engine,
		exporter: exporter,
		output:   output,
		logger:   logger,
	}
}

// Run submits sources as a new batch and reports on it. A comparison runs
// when a job description is set; a batch without analyzed candidates fails
// it with ValidationFailed. The report is written even when the comparison
// fails; that failure is then returned. A run overtaken by a newer Submit writes nothing and
// returns an empty report.
func (r *ScreenRunner) Run(ctx context.Context, sources []pipeline.Source, opts ScreenOptions) (types.BatchReport, error) {
	summary, err := r.pipeline.Submit(ctx, sources)
	if err != nil {
		return types.BatchReport{}, err
	}
	if summary.Superseded {
		r.logger.Info("Batch superseded before reporting", "batch_id", summary.BatchID)
		return types.BatchReport{}, nil
	}
	if err := ctx.Err(); err != nil {
		return types.BatchReport{}, err
	}
	for _, name := range summary.Rejected {
		r.logger.Warn("Skipped file", "document", name)
	}

	batch := r.pipeline.Batch()
	var compareErr error
	if opts.JobDescription != "" {
		_, compareErr = r.engine.Run(ctx, batch, opts.JobDescription)
		if stderrors.Is(compareErr, compare.ErrSuperseded) {
			r.logger.Info("Comparison discarded, batch changed", "batch_id", summary.BatchID)
			return types.BatchReport{}, nil
		}
	}

	report := compare.Report(batch)

	if opts.XLSXFile != "" {
		if err := r.exporter.Save(opts.XLSXFile, report.Records, report.Ranking); err != nil {
			return report, err
		}
	}

	if err := r.output.HandleOutput(report, opts.CommandConfig); err != nil {
		return report, err
	}
	return report, compareErr
}
