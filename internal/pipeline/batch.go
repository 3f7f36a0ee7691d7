// Package pipeline drives submitted résumés through extraction and analysis
// and owns the batch those results accumulate in.
package pipeline

import (
	"slices"
	"sync"
	"time"

	"cvscreen/internal/errors"
	"cvscreen/internal/types"

	"github.com/google/uuid"
)

// Batch is the state of one screening run: a status per accepted document,
// the records produced so far, and the latest comparison.
//
// Every mutation is tagged with the generation it belongs to. Starting a new
// run bumps the generation, so writes from a run that was superseded are
// dropped instead of leaking into the new one.
type Batch struct {
	mu sync.RWMutex

	id               string
	generation       uint64
	order            []string
	statuses         map[string]types.DocumentStatus
	records          []types.CandidateRecord
	jobDescription   string
	comparison       []types.ComparisonResult
	resultsAvailable bool

	now func() time.Time
}

// NewBatch creates an empty batch at generation 0
func NewBatch() *Batch {
	return &Batch{
		statuses: make(map[string]types.DocumentStatus),
		now:      time.Now,
	}
}

// ID identifies the current run. It is empty until the first run starts.
func (b *Batch) ID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

// Generation returns the generation of the current run
func (b *Batch) Generation() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.generation
}

// IsCurrent reports whether gen is still the live generation
func (b *Batch) IsCurrent(gen uint64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.generation == gen
}

// Reset discards every status, record, job description and comparison and
// returns the new generation
func (b *Batch) Reset() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
	return b.generation
}

func (b *Batch) resetLocked() {
	b.generation++
	b.id = ""
	b.order = nil
	b.statuses = make(map[string]types.DocumentStatus)
	b.records = nil
	b.jobDescription = ""
	b.comparison = nil
	b.resultsAvailable = false
}

// start resets the batch and queues names in selection order
func (b *Batch) start(names []string) (uint64, []types.DocumentStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetLocked()
	b.id = uuid.NewString()
	now := b.now()
	queued := make([]types.DocumentStatus, 0, len(names))
	for _, name := range names {
		status := types.DocumentStatus{
			Document:  name,
			Stage:     types.StageQueued,
			Message:   stageMessages[types.StageQueued],
			UpdatedAt: now,
		}
		b.order = append(b.order, name)
		b.statuses[name] = status
		queued = append(queued, status)
	}
	return b.generation, queued
}

// advance moves a document to a non-terminal stage. It reports false when
// gen is stale or the move would go backwards.
func (b *Batch) advance(gen uint64, name string, stage types.ProcessingStage) (types.DocumentStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setLocked(gen, name, stage, stageMessages[stage], "")
}

// fail moves a document to Error
func (b *Batch) fail(gen uint64, name string, kind errors.Kind, message string) (types.DocumentStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setLocked(gen, name, types.StageError, message, kind)
}

// complete appends rec and flips the document to Complete under one lock, so
// no reader sees a Complete status without its record or the reverse
func (b *Batch) complete(gen uint64, name string, rec types.CandidateRecord) (types.DocumentStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.generation != gen || b.statuses[name].Stage != types.StageAnalyzing {
		return types.DocumentStatus{}, false
	}

	rec.Filename = name
	rec.Skills = slices.Clone(rec.Skills)
	b.records = append(b.records, rec)
	b.resultsAvailable = true
	return b.setLocked(gen, name, types.StageComplete, stageMessages[types.StageComplete], "")
}

func (b *Batch) setLocked(gen uint64, name string, stage types.ProcessingStage, message string, kind errors.Kind) (types.DocumentStatus, bool) {
	if b.generation != gen {
		return types.DocumentStatus{}, false
	}
	current, ok := b.statuses[name]
	if !ok || !current.Stage.CanAdvanceTo(stage) {
		return types.DocumentStatus{}, false
	}

	current.Stage = stage
	current.Message = message
	current.Kind = kind
	current.UpdatedAt = b.now()
	b.statuses[name] = current
	return current, true
}

// SetComparison stores a job description and its ranking. Results computed
// for a generation that is no longer current are dropped and false is
// returned.
func (b *Batch) SetComparison(gen uint64, jobDescription string, results []types.ComparisonResult) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.generation != gen {
		return false
	}
	b.jobDescription = jobDescription
	b.comparison = slices.Clone(results)
	if b.comparison == nil {
		b.comparison = []types.ComparisonResult{}
	}
	return true
}

// Statuses returns the status of every accepted document in selection order
func (b *Batch) Statuses() []types.DocumentStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.statusesLocked()
}

func (b *Batch) statusesLocked() []types.DocumentStatus {
	out := make([]types.DocumentStatus, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.statuses[name])
	}
	return out
}

// Status returns the status of one document
func (b *Batch) Status(name string) (types.DocumentStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	status, ok := b.statuses[name]
	return status, ok
}

// Records returns the records in completion order
func (b *Batch) Records() []types.CandidateRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.recordsLocked()
}

func (b *Batch) recordsLocked() []types.CandidateRecord {
	out := make([]types.CandidateRecord, len(b.records))
	for i, rec := range b.records {
		rec.Skills = slices.Clone(rec.Skills)
		out[i] = rec
	}
	return out
}

// Record looks a record up by the file it came from
func (b *Batch) Record(filename string) (types.CandidateRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, rec := range b.records {
		if rec.Filename == filename {
			rec.Skills = slices.Clone(rec.Skills)
			return rec, true
		}
	}
	return types.CandidateRecord{}, false
}

// Comparison returns the latest ranking, or nil when none has been stored
func (b *Batch) Comparison() []types.ComparisonResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.comparison)
}

// JobDescription returns the job description of the latest comparison
func (b *Batch) JobDescription() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.jobDescription
}

// ResultsAvailable reports whether any document has completed in this run.
// Once true it stays true until the next run starts.
func (b *Batch) ResultsAvailable() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.resultsAvailable
}

// Snapshot is a consistent copy of the batch taken under one lock
type Snapshot struct {
	ID               string
	Generation       uint64
	Statuses         []types.DocumentStatus
	Records          []types.CandidateRecord
	JobDescription   string
	Comparison       []types.ComparisonResult
	ResultsAvailable bool
}

// Snapshot copies every view of the batch at once
func (b *Batch) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		ID:               b.id,
		Generation:       b.generation,
		Statuses:         b.statusesLocked(),
		Records:          b.recordsLocked(),
		JobDescription:   b.jobDescription,
		Comparison:       slices.Clone(b.comparison),
		ResultsAvailable: b.resultsAvailable,
	}
}

// JoinFunc attaches records to comparison results for display
type JoinFunc func([]types.ComparisonResult, []types.CandidateRecord) []types.RankedCandidate

// Report bundles the batch views for output. join builds the ranking; it may
// be nil when no ranking is wanted.
func (b *Batch) Report(join JoinFunc) types.BatchReport {
	snap := b.Snapshot()
	report := types.BatchReport{
		BatchID:          snap.ID,
		Statuses:         snap.Statuses,
		Records:          snap.Records,
		JobDescription:   snap.JobDescription,
		ResultsAvailable: snap.ResultsAvailable,
	}
	if join != nil && snap.Comparison != nil {
		report.Ranking = join(snap.Comparison, snap.Records)
	}
	return report
}
