package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cvscreen/internal/errors"
)

// Format is the declared type of a submitted document
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Document is a single submitted file. Name is unique within a batch.
type Document struct {
	Name    string
	Content []byte
	Format  Format
}

// Years is a non-negative experience figure. Models occasionally answer with
// a quoted number or null, so decoding accepts those and falls back to 0.
type Years float64

func (y *Years) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*y = 0
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*y = clampYears(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("totalExperienceYears: %w", err)
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "+"))
	if s == "" {
		*y = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*y = 0
		return nil
	}
	*y = clampYears(f)
	return nil
}

// String renders whole years without a fraction
func (y Years) String() string {
	return strconv.FormatFloat(float64(y), 'f', -1, 64)
}

func clampYears(f float64) Years {
	if f < 0 {
		return 0
	}
	return Years(f)
}

// CandidateRecord is the structured summary of one résumé. Filename points
// back to the document it was produced from.
type CandidateRecord struct {
	Name                 string   `json:"name"`
	TotalExperienceYears Years    `json:"totalExperienceYears"`
	Skills               []string `json:"skills"`
	Summary              string   `json:"summary"`
	Education            string   `json:"education"`
	Discipline           string   `json:"discipline"`
	Industry             string   `json:"industry"`
	Companies            string   `json:"companies"`
	Filename             string   `json:"filename,omitempty"`
}

// IsEmpty reports whether the record carries no extracted information at all
func (r *CandidateRecord) IsEmpty() bool {
	return r == nil || (r.Name == "" && r.Summary == "" && len(r.Skills) == 0 &&
		r.Education == "" && r.Discipline == "" && r.Industry == "" &&
		r.Companies == "" && r.TotalExperienceYears == 0)
}

// CandidateProfile is a candidate as sent to the comparison endpoint
type CandidateProfile struct {
	CandidateRecord
	Profile string `json:"profile"`
}

// ComparisonResult is one entry of the ranking returned by the comparison
// endpoint. Name is the join key back to a CandidateRecord.
type ComparisonResult struct {
	Name          string `json:"name"`
	Score         int    `json:"score"`
	Justification string `json:"justification"`
}

// CandidateScore is the model's verdict for a single candidate
type CandidateScore struct {
	Score         int    `json:"score"`
	Justification string `json:"justification"`
}

// RankedCandidate is a comparison result joined to its record. Record is nil
// when no record carries the result's name.
type RankedCandidate struct {
	Rank   int              `json:"rank"`
	Result ComparisonResult `json:"result"`
	Record *CandidateRecord `json:"record,omitempty"`
}

// AnalyzeRequest is the body of POST /api/analyze-cv
type AnalyzeRequest struct {
	CVText string `json:"cvText" validate:"required,min=50"`
}

// CompareRequest is the body of POST /api/compare
type CompareRequest struct {
	JDText     string             `json:"jdText" validate:"required"`
	Candidates []CandidateProfile `json:"candidates" validate:"required,min=1"`
}

// ErrorResponse is the JSON error body returned by the server
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ProcessingStage is the position of a document in the pipeline
type ProcessingStage string

const (
	StageQueued     ProcessingStage = "Queued"
	StageExtracting ProcessingStage = "Extracting"
	StageAnalyzing  ProcessingStage = "Analyzing"
	StageComplete   ProcessingStage = "Complete"
	StageError      ProcessingStage = "Error"
)

var stageOrder = map[ProcessingStage]int{
	StageQueued:     0,
	StageExtracting: 1,
	StageAnalyzing:  2,
	StageComplete:   3,
	StageError:      3,
}

// IsTerminal reports whether no further transition can follow
func (s ProcessingStage) IsTerminal() bool {
	return s == StageComplete || s == StageError
}

// CanAdvanceTo reports whether moving from s to next keeps the status
// monotonic. Error is reachable from every non-terminal stage.
func (s ProcessingStage) CanAdvanceTo(next ProcessingStage) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StageError {
		return true
	}
	return stageOrder[next] > stageOrder[s]
}

// DocumentStatus is the observable processing state of one document
type DocumentStatus struct {
	Document  string          `json:"document"`
	Stage     ProcessingStage `json:"stage"`
	Message   string          `json:"message"`
	Kind      errors.Kind     `json:"kind,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// BatchReport bundles the views of a batch for output
type BatchReport struct {
	BatchID          string            `json:"batchId"`
	Statuses         []DocumentStatus  `json:"statuses"`
	Records          []CandidateRecord `json:"records"`
	JobDescription   string            `json:"jobDescription,omitempty"`
	Ranking          []RankedCandidate `json:"ranking,omitempty"`
	ResultsAvailable bool              `json:"resultsAvailable"`
}

// Counts tallies statuses by stage
func (r *BatchReport) Counts() map[ProcessingStage]int {
	counts := make(map[ProcessingStage]int)
	for _, s := range r.Statuses {
		counts[s.Stage]++
	}
	return counts
}
