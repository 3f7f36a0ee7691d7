package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"cvscreen/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "BatchReport", &ReportTextFormatter{})
	registry.RegisterFormatter("markdown", "BatchReport", &ReportMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.BatchReport, *types.BatchReport:
		return "BatchReport"
	default:
		return "any"
	}
}

func asReport(data any) (types.BatchReport, error) {
	switch r := data.(type) {
	case types.BatchReport:
		return r, nil
	case *types.BatchReport:
		if r == nil {
			return types.BatchReport{}, fmt.Errorf("nil BatchReport")
		}
		return *r, nil
	default:
		return types.BatchReport{}, fmt.Errorf("expected BatchReport, got %T", data)
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// StatusLine renders one status transition for live progress output
func StatusLine(status types.DocumentStatus) string {
	line := fmt.Sprintf("[%-10s] %s: %s", status.Stage, status.Document, status.Message)
	if status.Kind != "" {
		line += fmt.Sprintf(" (%s)", status.Kind)
	}
	return line
}

// stageSummary renders the per-stage counts in pipeline order
func stageSummary(report types.BatchReport) string {
	counts := report.Counts()
	parts := make([]string, 0, len(counts))
	for _, stage := range []types.ProcessingStage{
		types.StageComplete, types.StageError,
		types.StageQueued, types.StageExtracting, types.StageAnalyzing,
	} {
		if n := counts[stage]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", stage, n))
		}
	}
	return strings.Join(parts, ", ")
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// ReportTextFormatter handles text formatting for batch reports
type ReportTextFormatter struct{}

func (rtf *ReportTextFormatter) Format(data any) (string, error) {
	report, err := asReport(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	if report.BatchID != "" {
		output.WriteString(fmt.Sprintf("=== BATCH %s ===\n", report.BatchID))
	}
	if len(report.Statuses) > 0 {
		output.WriteString(fmt.Sprintf("Documents: %d (%s)\n\n", len(report.Statuses), stageSummary(report)))

		output.WriteString("=== DOCUMENTS ===\n")
		for _, status := range report.Statuses {
			output.WriteString(StatusLine(status))
			output.WriteString("\n")
		}
		output.WriteString("\n")
	}

	output.WriteString("=== CANDIDATES ===\n")
	if len(report.Records) == 0 {
		output.WriteString("No candidates analyzed.\n")
	}
	for i, rec := range report.Records {
		output.WriteString(fmt.Sprintf("%d. %s", i+1, orNotAvailable(rec.Name)))
		if rec.Filename != "" {
			output.WriteString(fmt.Sprintf(" (%s)", rec.Filename))
		}
		output.WriteString("\n")
		output.WriteString(fmt.Sprintf("   Experience: %s years\n", rec.TotalExperienceYears))
		output.WriteString(fmt.Sprintf("   Skills: %s\n", orNotAvailable(strings.Join(rec.Skills, ", "))))
		output.WriteString(fmt.Sprintf("   Education: %s\n", orNotAvailable(rec.Education)))
		output.WriteString(fmt.Sprintf("   Industry: %s\n", orNotAvailable(rec.Industry)))
		output.WriteString(fmt.Sprintf("   Summary: %s\n", orNotAvailable(rec.Summary)))
	}

	if report.JobDescription != "" {
		output.WriteString("\n=== RANKING ===\n")
		output.WriteString(fmt.Sprintf("Job description: %s\n\n", truncate(report.JobDescription, 100)))
		if len(report.Ranking) == 0 {
			output.WriteString("No matches returned.\n")
		}
		for _, ranked := range report.Ranking {
			output.WriteString(fmt.Sprintf("%d. %s - %d/100", ranked.Rank, ranked.Result.Name, ranked.Result.Score))
			if ranked.Record != nil && ranked.Record.Filename != "" {
				output.WriteString(fmt.Sprintf(" [%s]", ranked.Record.Filename))
			}
			output.WriteString("\n")
			output.WriteString(fmt.Sprintf("   %s\n", ranked.Result.Justification))
		}
	}

	return output.String(), nil
}

func (rtf *ReportTextFormatter) SupportedType() string {
	return "BatchReport"
}

// ReportMarkdownFormatter handles markdown formatting for batch reports
type ReportMarkdownFormatter struct{}

func (rmf *ReportMarkdownFormatter) Format(data any) (string, error) {
	report, err := asReport(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Screening Report\n\n")
	if report.BatchID != "" {
		output.WriteString(fmt.Sprintf("**Batch:** `%s`\n\n", report.BatchID))
	}

	if len(report.Statuses) > 0 {
		output.WriteString("## Documents\n\n")
		output.WriteString(fmt.Sprintf("%d documents (%s)\n\n", len(report.Statuses), stageSummary(report)))
		output.WriteString("| Document | Stage | Message |\n")
		output.WriteString("|---|---|---|\n")
		for _, status := range report.Statuses {
			output.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
				escapeCell(status.Document), status.Stage, escapeCell(status.Message)))
		}
		output.WriteString("\n")
	}

	output.WriteString("## Candidates\n\n")
	if len(report.Records) == 0 {
		output.WriteString("No candidates analyzed.\n\n")
	} else {
		output.WriteString("| Name | Experience (Yrs) | Skills | Education | Industry | Source File |\n")
		output.WriteString("|---|---|---|---|---|---|\n")
		for _, rec := range report.Records {
			output.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				escapeCell(orNotAvailable(rec.Name)),
				rec.TotalExperienceYears,
				escapeCell(strings.Join(rec.Skills, ", ")),
				escapeCell(rec.Education),
				escapeCell(rec.Industry),
				escapeCell(rec.Filename)))
		}
		output.WriteString("\n")
	}

	if report.JobDescription != "" {
		output.WriteString("## Ranking\n\n")
		output.WriteString(fmt.Sprintf("> %s\n\n", truncate(report.JobDescription, 200)))
		if len(report.Ranking) == 0 {
			output.WriteString("No matches returned.\n")
		}
		for _, ranked := range report.Ranking {
			output.WriteString(fmt.Sprintf("### %d. %s (%d/100)\n\n", ranked.Rank, ranked.Result.Name, ranked.Result.Score))
			output.WriteString(ranked.Result.Justification)
			output.WriteString("\n\n")
		}
	}

	return output.String(), nil
}

func (rmf *ReportMarkdownFormatter) SupportedType() string {
	return "BatchReport"
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
