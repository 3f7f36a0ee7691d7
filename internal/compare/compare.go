// Package compare ranks a batch of candidates against a job description.
package compare

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"cvscreen/internal/errors"
	"cvscreen/internal/pipeline"
	"cvscreen/internal/types"
)

// ErrSuperseded is returned by Run when a new batch started while the
// comparison was in flight. The results were not stored.
var ErrSuperseded = stderrors.New("batch changed while comparison was running")

// Ranker scores candidate profiles against a job description
type Ranker interface {
	Compare(ctx context.Context, jd string, candidates []types.CandidateProfile) ([]types.ComparisonResult, error)
}

// Engine validates comparison requests and hands them to a Ranker
type Engine struct {
	ranker Ranker
	logger *errors.Logger
}

// New creates a comparison engine
func New(ranker Ranker, logger *errors.Logger) *Engine {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &Engine{ranker: ranker, logger: logger}
}

// Compare ranks records against jd. The job description must contain more
// than whitespace and there must be at least one record; otherwise a
// ValidationFailed error is returned and the ranker is not called.
//
// The ranker's order is kept as is. An empty ranking is a valid outcome.
func (e *Engine) Compare(ctx context.Context, jd string, records []types.CandidateRecord) ([]types.ComparisonResult, error) {
	if strings.TrimSpace(jd) == "" {
		return nil, errors.NewKindError(errors.KindValidationFailed, "job description is empty", nil)
	}
	if len(records) == 0 {
		return nil, errors.NewKindError(errors.KindValidationFailed, "no analyzed candidates to compare", nil)
	}

	profiles := make([]types.CandidateProfile, len(records))
	for i, rec := range records {
		profiles[i] = types.CandidateProfile{CandidateRecord: rec, Profile: BuildProfile(rec)}
	}

	e.logger.Info("Comparing candidates", "candidates", len(profiles), "jd_chars", len([]rune(jd)))

	results, err := e.ranker.Compare(ctx, jd, profiles)
	if err != nil {
		if !errors.IsKind(err, errors.KindRemoteComparisonFailed) {
			err = errors.NewKindError(errors.KindRemoteComparisonFailed, "comparison failed", err)
		}
		e.logger.LogError(err, "Comparison failed", "candidates", len(profiles))
		return nil, err
	}
	if results == nil {
		results = []types.ComparisonResult{}
	}

	e.logger.Info("Comparison complete", "candidates", len(profiles), "matches", len(results))
	return results, nil
}

// Run compares the records of batch against jd and stores the outcome in
// the batch. If the batch was reset meanwhile the results are returned with
// ErrSuperseded and the batch is left alone.
func (e *Engine) Run(ctx context.Context, batch *pipeline.Batch, jd string) ([]types.ComparisonResult, error) {
	snap := batch.Snapshot()

	results, err := e.Compare(ctx, jd, snap.Records)
	if err != nil {
		return nil, err
	}

	if !batch.SetComparison(snap.Generation, jd, results) {
		e.logger.Warn("Discarding comparison for superseded batch", "batch_id", snap.ID, "generation", snap.Generation)
		return results, ErrSuperseded
	}
	return results, nil
}

// BuildProfile renders the text a ranker sees for one candidate
func BuildProfile(rec types.CandidateRecord) string {
	name := rec.Name
	if strings.TrimSpace(name) == "" {
		name = "N/A"
	}
	return fmt.Sprintf("Name: %s\nExperience: %s years\nSkills: %s\nSummary: %s",
		name, rec.TotalExperienceYears, strings.Join(rec.Skills, ", "), rec.Summary)
}

// Join pairs each result with the record of the same name. Names must match
// exactly and empty names never match. When several records share a name the
// first one in batch order wins. Results without a record keep a nil Record.
func Join(results []types.ComparisonResult, records []types.CandidateRecord) []types.RankedCandidate {
	byName := make(map[string]int, len(records))
	for i, rec := range records {
		if rec.Name == "" {
			continue
		}
		if _, seen := byName[rec.Name]; !seen {
			byName[rec.Name] = i
		}
	}

	ranked := make([]types.RankedCandidate, len(results))
	for i, result := range results {
		ranked[i] = types.RankedCandidate{Rank: i + 1, Result: result}
		if idx, ok := byName[result.Name]; ok {
			rec := records[idx]
			ranked[i].Record = &rec
		}
	}
	return ranked
}

// Report returns the batch report with the ranking joined to its records
func Report(batch *pipeline.Batch) types.BatchReport {
	return batch.Report(Join)
}
