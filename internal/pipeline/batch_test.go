package pipeline

import (
	"testing"

	"cvscreen/internal/errors"
	"cvscreen/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchTransitionsAreMonotonic(t *testing.T) {
	b := NewBatch()
	gen, queued := b.start([]string{"a.pdf"})
	require.Len(t, queued, 1)
	assert.Equal(t, types.StageQueued, queued[0].Stage)

	_, ok := b.advance(gen, "a.pdf", types.StageAnalyzing)
	assert.True(t, ok, "skipping ahead is allowed")

	_, ok = b.advance(gen, "a.pdf", types.StageExtracting)
	assert.False(t, ok, "moving backwards is not")

	status, ok := b.complete(gen, "a.pdf", types.CandidateRecord{Name: "Ann"})
	require.True(t, ok)
	assert.Equal(t, types.StageComplete, status.Stage)

	_, ok = b.fail(gen, "a.pdf", errors.KindExtractionFailed, "late failure")
	assert.False(t, ok, "terminal stages are final")

	_, ok = b.advance(gen, "unknown.pdf", types.StageExtracting)
	assert.False(t, ok)
}

func TestBatchCompleteRequiresAnalyzing(t *testing.T) {
	b := NewBatch()
	gen, _ := b.start([]string{"a.pdf"})

	_, ok := b.complete(gen, "a.pdf", types.CandidateRecord{Name: "Ann"})
	assert.False(t, ok)
	assert.Empty(t, b.Records())
	assert.False(t, b.ResultsAvailable())
}

func TestBatchCompleteSetsFilename(t *testing.T) {
	b := NewBatch()
	gen, _ := b.start([]string{"ann.docx"})
	_, _ = b.advance(gen, "ann.docx", types.StageAnalyzing)

	skills := []string{"Go"}
	_, ok := b.complete(gen, "ann.docx", types.CandidateRecord{Name: "Ann", Filename: "other", Skills: skills})
	require.True(t, ok)
	skills[0] = "mutated"

	rec, ok := b.Record("ann.docx")
	require.True(t, ok)
	assert.Equal(t, "ann.docx", rec.Filename)
	assert.Equal(t, []string{"Go"}, rec.Skills)

	rec.Skills[0] = "changed by caller"
	again, _ := b.Record("ann.docx")
	assert.Equal(t, "Go", again.Skills[0])
}

func TestBatchStaleGenerationIsIgnored(t *testing.T) {
	b := NewBatch()
	oldGen, _ := b.start([]string{"a.pdf"})
	_, _ = b.advance(oldGen, "a.pdf", types.StageAnalyzing)

	newGen, _ := b.start([]string{"a.pdf"})
	assert.NotEqual(t, oldGen, newGen)
	assert.False(t, b.IsCurrent(oldGen))

	_, ok := b.complete(oldGen, "a.pdf", types.CandidateRecord{Name: "Stale"})
	assert.False(t, ok)
	assert.False(t, b.SetComparison(oldGen, "jd", []types.ComparisonResult{{Name: "Stale", Score: 90}}))

	status, _ := b.Status("a.pdf")
	assert.Equal(t, types.StageQueued, status.Stage)
	assert.Empty(t, b.Records())
	assert.Nil(t, b.Comparison())
	assert.Empty(t, b.JobDescription())
}

func TestBatchSetComparison(t *testing.T) {
	b := NewBatch()
	gen, _ := b.start([]string{"a.pdf"})

	results := []types.ComparisonResult{{Name: "Ann", Score: 80}}
	require.True(t, b.SetComparison(gen, "Go developer", results))
	results[0].Score = 1

	assert.Equal(t, "Go developer", b.JobDescription())
	assert.Equal(t, 80, b.Comparison()[0].Score)

	require.True(t, b.SetComparison(gen, "Go developer", nil))
	assert.NotNil(t, b.Comparison(), "an empty ranking is a stored result")
	assert.Empty(t, b.Comparison())
}

func TestBatchReport(t *testing.T) {
	b := NewBatch()
	gen, _ := b.start([]string{"a.pdf", "b.pdf"})
	_, _ = b.advance(gen, "a.pdf", types.StageAnalyzing)
	_, _ = b.complete(gen, "a.pdf", types.CandidateRecord{Name: "Ann"})
	_, _ = b.fail(gen, "b.pdf", errors.KindCorruptDocument, "File is corrupt or password protected")

	report := b.Report(nil)
	assert.Equal(t, b.ID(), report.BatchID)
	assert.Len(t, report.Statuses, 2)
	assert.Len(t, report.Records, 1)
	assert.True(t, report.ResultsAvailable)
	assert.Nil(t, report.Ranking)
	assert.Equal(t, map[types.ProcessingStage]int{types.StageComplete: 1, types.StageError: 1}, report.Counts())

	require.True(t, b.SetComparison(gen, "jd", []types.ComparisonResult{{Name: "Ann", Score: 70}}))
	joined := false
	report = b.Report(func(results []types.ComparisonResult, records []types.CandidateRecord) []types.RankedCandidate {
		joined = true
		assert.Len(t, results, 1)
		assert.Len(t, records, 1)
		return []types.RankedCandidate{{Rank: 1, Result: results[0], Record: &records[0]}}
	})
	assert.True(t, joined)
	require.Len(t, report.Ranking, 1)
	assert.Equal(t, "a.pdf", report.Ranking[0].Record.Filename)
	assert.Equal(t, "jd", report.JobDescription)
}

func TestBatchResetClearsEverything(t *testing.T) {
	b := NewBatch()
	gen, _ := b.start([]string{"a.pdf"})
	_, _ = b.advance(gen, "a.pdf", types.StageAnalyzing)
	_, _ = b.complete(gen, "a.pdf", types.CandidateRecord{Name: "Ann"})
	_ = b.SetComparison(gen, "jd", []types.ComparisonResult{{Name: "Ann"}})

	next := b.Reset()
	assert.Equal(t, gen+1, next)
	assert.Empty(t, b.ID())
	assert.Empty(t, b.Statuses())
	assert.Empty(t, b.Records())
	assert.Nil(t, b.Comparison())
	assert.False(t, b.ResultsAvailable())
}
