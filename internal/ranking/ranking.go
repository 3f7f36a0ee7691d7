// Package ranking scores candidates against a job description using
// embeddings to shortlist and a language model to judge the shortlist.
package ranking

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"cvscreen/internal/ai"
	"cvscreen/internal/errors"
	"cvscreen/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTopK is the number of nearest candidates that get a model score
	DefaultTopK = 3

	// FallbackJustification explains a score derived from vector distance alone
	FallbackJustification = "Strong keyword and conceptual match based on vector similarity."

	defaultConcurrency = 4
)

// Model is the subset of an AI provider the ranker needs
type Model interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ScoreCandidate(ctx context.Context, jobDescription string, candidate types.CandidateRecord) (types.CandidateScore, *ai.TokenUsage, error)
}

// Option configures a Ranker
type Option func(*Ranker)

// WithTopK sets how many nearest candidates are scored. Values below 1
// keep the default.
func WithTopK(k int) Option {
	return func(r *Ranker) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithConcurrency bounds the number of scoring calls in flight
func WithConcurrency(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// Ranker implements the comparison procedure of the analysis server
type Ranker struct {
	model       Model
	topK        int
	concurrency int
	logger      *errors.Logger
}

// New creates a ranker backed by model
func New(model Model, logger *errors.Logger, opts ...Option) *Ranker {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	r := &Ranker{
		model:       model,
		topK:        DefaultTopK,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Neighbor is a candidate index and its squared distance to the job description
type Neighbor struct {
	Index    int
	Distance float64
}

// Compare shortlists the candidates nearest to jd in embedding space and
// scores each of them. A candidate whose scoring call fails gets a score
// derived from its distance instead. Results are sorted by score,
// highest first; ties keep the nearest-first order.
func (r *Ranker) Compare(ctx context.Context, jd string, candidates []types.CandidateProfile) ([]types.ComparisonResult, error) {
	if strings.TrimSpace(jd) == "" || len(candidates) == 0 {
		return nil, errors.NewKindError(errors.KindValidationFailed, "Job description or candidate data is missing.", nil)
	}

	ctx, span := otel.Tracer("cvscreen.ranking").Start(ctx, "ranking.compare")
	defer span.End()
	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("top_k", r.topK),
	)

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, jd)
	for _, c := range candidates {
		texts = append(texts, EmbeddingDocument(c.CandidateRecord))
	}

	vectors, err := r.model.Embed(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embed candidates: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed candidates: expected %d vectors, got %d", len(texts), len(vectors))
	}

	neighbors, err := Nearest(vectors[0], vectors[1:], r.topK)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	results := make([]types.ComparisonResult, len(neighbors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, n := range neighbors {
		candidate := candidates[n.Index]
		g.Go(func() error {
			score, _, err := r.model.ScoreCandidate(gctx, jd, candidate.CandidateRecord)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.logger.Warn("Scoring failed, using vector similarity",
					"candidate", candidate.Name,
					"distance", n.Distance,
					"error", err.Error())
				score = FallbackScore(n.Distance)
			}
			results[i] = types.ComparisonResult{
				Name:          candidate.Name,
				Score:         score.Score,
				Justification: score.Justification,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b types.ComparisonResult) int {
		return cmp.Compare(b.Score, a.Score)
	})

	r.logger.Debug("Ranking complete", "candidates", len(candidates), "scored", len(results))
	return results, nil
}

// EmbeddingDocument is the text embedded for one candidate
func EmbeddingDocument(rec types.CandidateRecord) string {
	return fmt.Sprintf("Summary: %s\nSkills: %s", rec.Summary, strings.Join(rec.Skills, ", "))
}

// FallbackScore converts a squared embedding distance into a score
func FallbackScore(distance float64) types.CandidateScore {
	return types.CandidateScore{
		Score:         max(0, 100-int(distance*50)),
		Justification: FallbackJustification,
	}
}

// Nearest returns the k vectors closest to query by squared Euclidean
// distance, nearest first. k is capped at the number of vectors.
func Nearest(query []float32, vectors [][]float32, k int) ([]Neighbor, error) {
	all := make([]Neighbor, len(vectors))
	for i, v := range vectors {
		d, err := SquaredDistance(query, v)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		all[i] = Neighbor{Index: i, Distance: d}
	}

	slices.SortStableFunc(all, func(a, b Neighbor) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	return all[:max(0, min(k, len(all)))], nil
}

// SquaredDistance returns the squared Euclidean distance between a and b
func SquaredDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions differ: %d and %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum, nil
}
