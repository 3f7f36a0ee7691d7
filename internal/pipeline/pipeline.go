package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"cvscreen/internal/config"
	"cvscreen/internal/errors"
	"cvscreen/internal/extract"
	"cvscreen/internal/types"
	"cvscreen/internal/utils"
)

// Extractor turns a document into plain text
type Extractor interface {
	Extract(ctx context.Context, doc types.Document) (string, error)
}

// Analyzer turns résumé text into a candidate record
type Analyzer interface {
	AnalyzeCV(ctx context.Context, text string) (*types.CandidateRecord, error)
}

// Observer receives every status transition the batch applies
type Observer func(types.DocumentStatus)

// Metrics records the outcome of each processed document
type Metrics interface {
	RecordDocument(ctx context.Context, outcome string, kind string, duration time.Duration)
}

// Outcomes reported to Metrics
const (
	OutcomeComplete = "complete"
	OutcomeError    = "error"
)

var stageMessages = map[types.ProcessingStage]string{
	types.StageQueued:     "Queued",
	types.StageExtracting: "Extracting text...",
	types.StageAnalyzing:  "Analyzing with AI...",
	types.StageComplete:   "Complete",
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithObserver registers a callback for status transitions
func WithObserver(observer Observer) Option {
	return func(p *Pipeline) {
		p.observer = observer
	}
}

// WithMetrics records per-document outcomes
func WithMetrics(metrics Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = metrics
	}
}

// Pipeline processes submitted documents one at a time
type Pipeline struct {
	batch         *Batch
	extractor     Extractor
	analyzer      Analyzer
	logger        *errors.Logger
	minTextLength int
	maxFileSize   int64
	skipHidden    bool
	observer      Observer
	metrics       Metrics
}

// New creates a pipeline that accumulates results in batch
func New(batch *Batch, extractor Extractor, analyzer Analyzer, cfg config.PipelineConfig, logger *errors.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	p := &Pipeline{
		batch:         batch,
		extractor:     extractor,
		analyzer:      analyzer,
		logger:        logger,
		minTextLength: cfg.MinTextLength,
		maxFileSize:   cfg.MaxFileSize,
		skipHidden:    cfg.SkipHidden,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Batch returns the batch this pipeline writes to
func (p *Pipeline) Batch() *Batch {
	return p.batch
}

// Summary describes the outcome of one Submit call
type Summary struct {
	BatchID    string
	Generation uint64
	Accepted   int
	Rejected   []string
	Completed  int
	Failed     int
	Superseded bool
}

// Submit starts a new run over sources and processes the accepted documents
// sequentially in the order given.
//
// Only .pdf and .docx names are accepted. When nothing is accepted the
// ValidationFailed error NO_VALID_FILES is returned and the batch keeps its
// previous state. Failures of single documents end in their Error status and
// never stop the run. If another Submit starts meanwhile, this run stops and
// reports Superseded.
func (p *Pipeline) Submit(ctx context.Context, sources []Source) (Summary, error) {
	accepted, rejected := p.filter(sources)
	summary := Summary{Accepted: len(accepted), Rejected: rejected}

	if len(accepted) == 0 {
		err := errors.NewKindError(errors.KindValidationFailed,
			"no valid files: select .pdf or .docx documents", nil).
			WithCode(errors.ErrCodeNoValidFiles).
			WithContext("rejected", len(rejected))
		p.logger.Warn("No valid files in selection", "rejected", len(rejected))
		return summary, err
	}

	names := make([]string, len(accepted))
	for i, src := range accepted {
		names[i] = src.Name
	}
	gen, queued := p.batch.start(names)
	summary.Generation = gen
	summary.BatchID = p.batch.ID()

	p.logger.Info("Batch started",
		"batch_id", summary.BatchID,
		"generation", gen,
		"accepted", len(accepted),
		"rejected", len(rejected))

	for _, status := range queued {
		p.notify(status)
	}

	for _, src := range accepted {
		if !p.batch.IsCurrent(gen) {
			summary.Superseded = true
			p.logger.Info("Batch superseded, stopping", "batch_id", summary.BatchID, "generation", gen)
			break
		}
		if p.process(ctx, gen, src) {
			summary.Completed++
		} else {
			summary.Failed++
		}
	}

	p.logger.Info("Batch finished",
		"batch_id", summary.BatchID,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"superseded", summary.Superseded)
	return summary, nil
}

// filter keeps pdf and docx sources in order, dropping repeated names
func (p *Pipeline) filter(sources []Source) (accepted []Source, rejected []string) {
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		switch {
		case !utils.IsDocumentFile(src.Name):
			rejected = append(rejected, src.Name)
		case p.skipHidden && utils.IsHidden(src.Name):
			rejected = append(rejected, src.Name)
		case seen[src.Name]:
			p.logger.Warn("Duplicate document name skipped", "document", src.Name)
			rejected = append(rejected, src.Name)
		default:
			seen[src.Name] = true
			accepted = append(accepted, src)
		}
	}
	return accepted, rejected
}

// process runs one document to a terminal stage and reports whether it
// completed
func (p *Pipeline) process(ctx context.Context, gen uint64, src Source) bool {
	start := time.Now()
	logger := p.logger.With("document", src.Name, "generation", gen)

	if !p.advance(gen, src.Name, types.StageExtracting) {
		return false
	}

	text, err := p.extractText(ctx, src)
	if err != nil {
		p.failDocument(ctx, gen, src.Name, err, start, logger)
		return false
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < p.minTextLength {
		err := errors.NewKindError(errors.KindEmptyDocument,
			fmt.Sprintf("document has %d characters of text, need at least %d", n, p.minTextLength), nil)
		p.failDocument(ctx, gen, src.Name, err, start, logger)
		return false
	}

	if !p.advance(gen, src.Name, types.StageAnalyzing) {
		return false
	}

	rec, err := p.analyzer.AnalyzeCV(ctx, text)
	if err == nil && rec.IsEmpty() {
		err = errors.NewKindError(errors.KindEmptyAnalysisResult, "analysis returned no candidate data", nil)
	}
	if err != nil {
		p.failDocument(ctx, gen, src.Name, err, start, logger)
		return false
	}

	status, ok := p.batch.complete(gen, src.Name, *rec)
	if !ok {
		logger.Debug("Dropped result from superseded batch")
		return false
	}
	p.notify(status)
	p.record(ctx, OutcomeComplete, "", start)
	logger.Info("Document analyzed", "candidate", rec.Name, "duration", time.Since(start))
	return true
}

func (p *Pipeline) extractText(ctx context.Context, src Source) (string, error) {
	content, err := src.Load(ctx)
	if err != nil {
		return "", err
	}
	if err := checkSize(src.Name, content, p.maxFileSize); err != nil {
		return "", err
	}

	format, _ := extract.DetectFormat(src.Name)
	return p.extractor.Extract(ctx, types.Document{
		Name:    src.Name,
		Content: content,
		Format:  format,
	})
}

func (p *Pipeline) advance(gen uint64, name string, stage types.ProcessingStage) bool {
	status, ok := p.batch.advance(gen, name, stage)
	if ok {
		p.notify(status)
	}
	return ok
}

func (p *Pipeline) failDocument(ctx context.Context, gen uint64, name string, err error, start time.Time, logger *errors.Logger) {
	kind := errors.KindOf(err)
	status, ok := p.batch.fail(gen, name, kind, StatusMessage(err))
	if !ok {
		logger.Debug("Dropped failure from superseded batch", "error", err.Error())
		return
	}
	logger.LogError(err, "Document failed", "stage_message", status.Message)
	p.notify(status)
	p.record(ctx, OutcomeError, string(kind), start)
}

func (p *Pipeline) notify(status types.DocumentStatus) {
	if p.observer != nil {
		p.observer(status)
	}
}

func (p *Pipeline) record(ctx context.Context, outcome, kind string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordDocument(ctx, outcome, kind, time.Since(start))
	}
}

// StatusMessage renders a short human-readable message for a failed document
func StatusMessage(err error) string {
	switch errors.KindOf(err) {
	case errors.KindUnsupportedFormat:
		return "Unsupported file format"
	case errors.KindCorruptDocument:
		return "File is corrupt or password protected"
	case errors.KindEmptyDocument:
		return "Not enough text to analyze (scanned or empty document?)"
	case errors.KindEmptyAnalysisResult:
		return "Analysis returned no candidate data"
	case errors.KindRemoteAnalysisFailed:
		if status := errors.StatusCode(err); status != 0 {
			return fmt.Sprintf("Analysis failed: %d %s", status, http.StatusText(status))
		}
		return "Analysis failed: service unreachable"
	case errors.KindValidationFailed:
		return "Invalid document"
	default:
		return "Could not extract text"
	}
}
