package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cvscreen/internal/config"
	"cvscreen/internal/errors"
	"cvscreen/internal/remote"
	"cvscreen/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var longText = strings.Repeat("Experienced backend engineer. ", 4)

// fakeExtractor returns canned text or errors per document name
type fakeExtractor struct {
	texts  map[string]string
	errs   map[string]error
	called []string
}

func (f *fakeExtractor) Extract(_ context.Context, doc types.Document) (string, error) {
	f.called = append(f.called, doc.Name)
	if err, ok := f.errs[doc.Name]; ok {
		return "", err
	}
	if text, ok := f.texts[doc.Name]; ok {
		return text, nil
	}
	return longText + doc.Name, nil
}

// fakeAnalyzer names each candidate after the last word of the text
type fakeAnalyzer struct {
	fn    func(text string) (*types.CandidateRecord, error)
	calls int
}

func (f *fakeAnalyzer) AnalyzeCV(_ context.Context, text string) (*types.CandidateRecord, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(text)
	}
	fields := strings.Fields(text)
	return &types.CandidateRecord{Name: fields[len(fields)-1], Skills: []string{"Go"}}, nil
}

type metricCall struct {
	outcome string
	kind    string
}

type fakeMetrics struct {
	mu    sync.Mutex
	calls []metricCall
}

func (f *fakeMetrics) RecordDocument(_ context.Context, outcome string, kind string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, metricCall{outcome: outcome, kind: kind})
}

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{MinTextLength: 50}
}

func sources(names ...string) []Source {
	out := make([]Source, len(names))
	for i, name := range names {
		out[i] = BytesSource(name, []byte("raw"))
	}
	return out
}

func TestSubmitFiltersAndCompletes(t *testing.T) {
	batch := NewBatch()
	analyzer := &fakeAnalyzer{}
	p := New(batch, &fakeExtractor{}, analyzer, testConfig(), nil)

	summary, err := p.Submit(context.Background(), sources("a.pdf", "b.PDF", "c.txt"))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Accepted)
	assert.Equal(t, []string{"c.txt"}, summary.Rejected)
	assert.Equal(t, 2, summary.Completed)
	assert.Zero(t, summary.Failed)
	assert.False(t, summary.Superseded)
	assert.NotEmpty(t, summary.BatchID)

	statuses := batch.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "a.pdf", statuses[0].Document)
	assert.Equal(t, "b.PDF", statuses[1].Document)
	for _, s := range statuses {
		assert.Equal(t, types.StageComplete, s.Stage)
		assert.Empty(t, s.Kind)
	}

	records := batch.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "a.pdf", records[0].Filename)
	assert.Equal(t, "b.PDF", records[1].Filename)
	assert.True(t, batch.ResultsAvailable())

	rec, ok := batch.Record("b.PDF")
	require.True(t, ok)
	assert.Equal(t, "b.PDF", rec.Name)

	_, tracked := batch.Status("c.txt")
	assert.False(t, tracked)
}

func TestSubmitNoValidFiles(t *testing.T) {
	batch := NewBatch()
	analyzer := &fakeAnalyzer{}
	p := New(batch, &fakeExtractor{}, analyzer, testConfig(), nil)

	_, err := p.Submit(context.Background(), sources("keep.docx"))
	require.NoError(t, err)
	gen := batch.Generation()

	summary, err := p.Submit(context.Background(), sources("notes.txt", "photo.png"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidationFailed))
	assert.Contains(t, err.Error(), errors.ErrCodeNoValidFiles)
	assert.Len(t, summary.Rejected, 2)

	assert.Equal(t, gen, batch.Generation(), "batch must keep its state")
	assert.Len(t, batch.Records(), 1)
	assert.Equal(t, 1, analyzer.calls)
}

func TestResetThenEmptySelection(t *testing.T) {
	batch := NewBatch()
	p := New(batch, &fakeExtractor{}, &fakeAnalyzer{}, testConfig(), nil)

	_, err := p.Submit(context.Background(), sources("a.pdf"))
	require.NoError(t, err)
	require.True(t, batch.SetComparison(batch.Generation(), "jd", nil))

	batch.Reset()
	_, err = p.Submit(context.Background(), nil)
	require.Error(t, err)

	assert.Empty(t, batch.Statuses())
	assert.Empty(t, batch.Records())
	assert.Empty(t, batch.JobDescription())
	assert.Nil(t, batch.Comparison())
	assert.False(t, batch.ResultsAvailable())
}

func TestSubmitIsolatesDocumentFailures(t *testing.T) {
	corrupt := errors.NewKindError(errors.KindCorruptDocument, "bad xref", nil)
	extractor := &fakeExtractor{
		errs:  map[string]error{"broken.pdf": corrupt},
		texts: map[string]string{"short.docx": "   too short   "},
	}
	analyzer := &fakeAnalyzer{}
	metrics := &fakeMetrics{}
	batch := NewBatch()
	p := New(batch, extractor, analyzer, testConfig(), nil, WithMetrics(metrics))

	summary, err := p.Submit(context.Background(), sources("broken.pdf", "short.docx", "good.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 2, summary.Failed)

	statuses := batch.Statuses()
	require.Len(t, statuses, 3)

	assert.Equal(t, types.StageError, statuses[0].Stage)
	assert.Equal(t, errors.KindCorruptDocument, statuses[0].Kind)
	assert.Equal(t, "File is corrupt or password protected", statuses[0].Message)

	assert.Equal(t, types.StageError, statuses[1].Stage)
	assert.Equal(t, errors.KindEmptyDocument, statuses[1].Kind)

	assert.Equal(t, types.StageComplete, statuses[2].Stage)
	assert.Equal(t, 1, analyzer.calls, "short and broken documents never reach analysis")

	records := batch.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "good.pdf", records[0].Filename)

	assert.Equal(t, []metricCall{
		{outcome: OutcomeError, kind: string(errors.KindCorruptDocument)},
		{outcome: OutcomeError, kind: string(errors.KindEmptyDocument)},
		{outcome: OutcomeComplete},
	}, metrics.calls)
}

func TestMinTextLengthTrimsBeforeCounting(t *testing.T) {
	tests := []struct {
		name string
		text string
		want types.ProcessingStage
	}{
		{name: "exactly fifty", text: strings.Repeat("x", 50), want: types.StageComplete},
		{name: "forty nine padded", text: "\n\n  " + strings.Repeat("x", 49) + "  \n", want: types.StageError},
		{name: "multibyte runes", text: strings.Repeat("é", 50), want: types.StageComplete},
		{name: "whitespace only", text: strings.Repeat(" \n\t", 40), want: types.StageError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := NewBatch()
			extractor := &fakeExtractor{texts: map[string]string{"cv.pdf": tt.text}}
			analyzer := &fakeAnalyzer{fn: func(string) (*types.CandidateRecord, error) {
				return &types.CandidateRecord{Name: "X"}, nil
			}}
			p := New(batch, extractor, analyzer, testConfig(), nil)

			_, err := p.Submit(context.Background(), sources("cv.pdf"))
			require.NoError(t, err)

			status, ok := batch.Status("cv.pdf")
			require.True(t, ok)
			assert.Equal(t, tt.want, status.Stage)
		})
	}
}

func TestSubmitEmptyAnalysisResult(t *testing.T) {
	batch := NewBatch()
	analyzer := &fakeAnalyzer{fn: func(string) (*types.CandidateRecord, error) {
		return &types.CandidateRecord{}, nil
	}}
	p := New(batch, &fakeExtractor{}, analyzer, testConfig(), nil)

	_, err := p.Submit(context.Background(), sources("a.pdf"))
	require.NoError(t, err)

	status, _ := batch.Status("a.pdf")
	assert.Equal(t, types.StageError, status.Stage)
	assert.Equal(t, errors.KindEmptyAnalysisResult, status.Kind)
	assert.Empty(t, batch.Records())
	assert.False(t, batch.ResultsAvailable())
}

func TestObserverSeesOrderedTransitions(t *testing.T) {
	var seen []string
	observer := func(s types.DocumentStatus) {
		seen = append(seen, fmt.Sprintf("%s:%s", s.Document, s.Stage))
	}
	extractor := &fakeExtractor{errs: map[string]error{
		"b.docx": errors.NewKindError(errors.KindExtractionFailed, "boom", nil),
	}}
	p := New(NewBatch(), extractor, &fakeAnalyzer{}, testConfig(), nil, WithObserver(observer))

	_, err := p.Submit(context.Background(), sources("a.pdf", "b.docx"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"a.pdf:Queued",
		"b.docx:Queued",
		"a.pdf:Extracting",
		"a.pdf:Analyzing",
		"a.pdf:Complete",
		"b.docx:Extracting",
		"b.docx:Error",
	}, seen)
}

func TestSupersededRunDropsLateResults(t *testing.T) {
	batch := NewBatch()
	var p *Pipeline
	analyzer := &fakeAnalyzer{}
	analyzer.fn = func(text string) (*types.CandidateRecord, error) {
		if analyzer.calls == 1 {
			// A new selection arrives while the first analysis is in flight
			_, err := p.Submit(context.Background(), sources("new.pdf"))
			require.NoError(t, err)
		}
		return &types.CandidateRecord{Name: "late " + text[len(text)-5:]}, nil
	}
	p = New(batch, &fakeExtractor{}, analyzer, testConfig(), nil)

	summary, err := p.Submit(context.Background(), sources("old1.pdf", "old2.pdf"))
	require.NoError(t, err)
	assert.True(t, summary.Superseded)
	assert.Zero(t, summary.Completed)

	statuses := batch.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "new.pdf", statuses[0].Document)
	assert.Equal(t, types.StageComplete, statuses[0].Stage)

	records := batch.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "new.pdf", records[0].Filename)
	assert.Equal(t, 2, analyzer.calls, "old2.pdf is never analyzed")
}

func TestSubmitAcceptsDottedNamesByDefault(t *testing.T) {
	batch := NewBatch()
	p := New(batch, &fakeExtractor{}, &fakeAnalyzer{}, testConfig(), nil)

	summary, err := p.Submit(context.Background(), sources(".cv.pdf", "~$draft.docx", "a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Accepted)
	assert.Empty(t, summary.Rejected)
	assert.Equal(t, 3, summary.Completed)
}

func TestSubmitRejectsHiddenAndDuplicateNames(t *testing.T) {
	cfg := testConfig()
	cfg.SkipHidden = true
	batch := NewBatch()
	p := New(batch, &fakeExtractor{}, &fakeAnalyzer{}, cfg, nil)

	summary, err := p.Submit(context.Background(), sources("~$lock.docx", ".hidden.pdf", "a.pdf", "a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Accepted)
	assert.Equal(t, []string{"~$lock.docx", ".hidden.pdf", "a.pdf"}, summary.Rejected)
	assert.Len(t, batch.Statuses(), 1)
}

func TestSubmitEnforcesFileSize(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFileSize = 4
	batch := NewBatch()
	extractor := &fakeExtractor{}
	p := New(batch, extractor, &fakeAnalyzer{}, cfg, nil)

	_, err := p.Submit(context.Background(), []Source{BytesSource("big.pdf", []byte("0123456789"))})
	require.NoError(t, err)

	status, _ := batch.Status("big.pdf")
	assert.Equal(t, types.StageError, status.Stage)
	assert.Equal(t, errors.KindExtractionFailed, status.Kind)
	assert.Empty(t, extractor.called)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Jane Doe.PDF")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0600))

	src := FileSource(path)
	assert.Equal(t, "Jane Doe.PDF", src.Name)
	content, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), content)

	missing := FileSource(filepath.Join(dir, "gone.pdf"))
	_, err = missing.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindExtractionFailed))
}

// TestRemoteFailureIsolated runs three documents against an analysis
// service that answers 500 for one of them
func TestRemoteFailureIsolated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req types.AnalyzeRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if strings.HasSuffix(req.CVText, "b.pdf") {
			http.Error(w, "model overloaded", http.StatusInternalServerError)
			return
		}
		fields := strings.Fields(req.CVText)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":                 fields[len(fields)-1],
			"totalExperienceYears": 5,
			"skills":               []string{"Go", "SQL"},
			"summary":              "Backend engineer",
		})
	}))
	t.Cleanup(srv.Close)

	client := remote.New(config.ClientConfig{
		BaseURL:     srv.URL,
		AnalyzePath: "/api/analyze-cv",
		Timeout:     5 * time.Second,
	}, nil)
	batch := NewBatch()
	p := New(batch, &fakeExtractor{}, client, testConfig(), nil)

	summary, err := p.Submit(context.Background(), sources("a.pdf", "b.pdf", "c.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Failed)

	statuses := batch.Statuses()
	require.Len(t, statuses, 3)
	assert.Equal(t, types.StageComplete, statuses[0].Stage)
	assert.Equal(t, types.StageError, statuses[1].Stage)
	assert.Equal(t, errors.KindRemoteAnalysisFailed, statuses[1].Kind)
	assert.Equal(t, "Analysis failed: 500 Internal Server Error", statuses[1].Message)
	assert.Equal(t, types.StageComplete, statuses[2].Stage)

	terminal := 0
	for _, s := range statuses {
		if s.Stage.IsTerminal() {
			terminal++
		}
		_, hasRecord := batch.Record(s.Document)
		assert.Equal(t, s.Stage == types.StageComplete, hasRecord, s.Document)
	}
	assert.Equal(t, summary.Accepted, terminal)
}

func TestStatusMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "unsupported", err: errors.NewKindError(errors.KindUnsupportedFormat, "x", nil), want: "Unsupported file format"},
		{name: "unreachable", err: errors.NewRemoteError(errors.KindRemoteAnalysisFailed, 0, "", nil), want: "Analysis failed: service unreachable"},
		{name: "bad gateway", err: errors.NewRemoteError(errors.KindRemoteAnalysisFailed, 502, "", nil), want: "Analysis failed: 502 Bad Gateway"},
		{name: "plain error", err: fmt.Errorf("parser exploded"), want: "Could not extract text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusMessage(tt.err))
		})
	}
}
