// Package export writes screening results to an XLSX workbook.
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"cvscreen/internal/config"
	"cvscreen/internal/errors"
	"cvscreen/internal/types"
	"cvscreen/internal/utils"

	"github.com/xuri/excelize/v2"
)

// CandidateHeaders are the columns of the candidate sheet, in order
var CandidateHeaders = []string{
	"Name",
	"Experience (Yrs)",
	"Companies",
	"Education",
	"Discipline",
	"Industry",
	"Skills",
	"Summary",
	"Source File",
}

// RankingHeaders are the columns of the ranking sheet, in order
var RankingHeaders = []string{"Rank", "Name", "Score", "Justification", "Source File"}

const (
	defaultSheet        = "Candidates"
	defaultRankingSheet = "Ranking"
	defaultMaxWidth     = 80
	columnPadding       = 2
)

// Exporter renders records and rankings as a workbook
type Exporter struct {
	sheet        string
	rankingSheet string
	maxWidth     int
	logger       *errors.Logger
}

// New creates an exporter. Empty settings fall back to the defaults.
func New(cfg config.ExportConfig, logger *errors.Logger) *Exporter {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	e := &Exporter{
		sheet:        cfg.SheetName,
		rankingSheet: cfg.RankingSheetName,
		maxWidth:     cfg.MaxColumnWidth,
		logger:       logger,
	}
	if e.sheet == "" {
		e.sheet = defaultSheet
	}
	if e.rankingSheet == "" {
		e.rankingSheet = defaultRankingSheet
	}
	if e.maxWidth <= 0 {
		e.maxWidth = defaultMaxWidth
	}
	return e
}

// WriteXLSX writes a workbook with default settings
func WriteXLSX(w io.Writer, records []types.CandidateRecord, ranking []types.RankedCandidate) error {
	return New(config.ExportConfig{}, nil).Write(w, records, ranking)
}

// Write produces the workbook. The candidate sheet has one row per record.
// The ranking sheet is only added when ranking is non-nil.
func (e *Exporter) Write(w io.Writer, records []types.CandidateRecord, ranking []types.RankedCandidate) error {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", "error", err.Error())
		}
	}()

	if err := f.SetSheetName("Sheet1", e.sheet); err != nil {
		return exportError("rename sheet", err)
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []any{
			rec.Name,
			float64(rec.TotalExperienceYears),
			rec.Companies,
			rec.Education,
			rec.Discipline,
			rec.Industry,
			strings.Join(rec.Skills, ", "),
			rec.Summary,
			rec.Filename,
		})
	}
	if err := e.writeSheet(f, e.sheet, CandidateHeaders, rows); err != nil {
		return err
	}

	if ranking != nil {
		if _, err := f.NewSheet(e.rankingSheet); err != nil {
			return exportError("add ranking sheet", err)
		}
		rows := make([][]any, 0, len(ranking))
		for _, rc := range ranking {
			source := ""
			if rc.Record != nil {
				source = rc.Record.Filename
			}
			rows = append(rows, []any{rc.Rank, rc.Result.Name, rc.Result.Score, rc.Result.Justification, source})
		}
		if err := e.writeSheet(f, e.rankingSheet, RankingHeaders, rows); err != nil {
			return err
		}
	}

	index, err := f.GetSheetIndex(e.sheet)
	if err != nil {
		return exportError("find sheet", err)
	}
	f.SetActiveSheet(index)

	if err := f.Write(w); err != nil {
		return exportError("write workbook", err)
	}

	e.logger.Debug("Workbook written",
		"records", len(records),
		"ranked", len(ranking),
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// Save writes the workbook to path, creating its directory when needed
func (e *Exporter) Save(path string, records []types.CandidateRecord, ranking []types.RankedCandidate) error {
	if err := utils.EnsureOutputDir(path); err != nil {
		return exportError("prepare output directory", err)
	}

	var buf bytes.Buffer
	if err := e.Write(&buf, records, ranking); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return errors.NewIOError(errors.ErrCodeExportFailed, "failed to save workbook", err).
			WithContext("path", path)
	}

	e.logger.Info("Exported workbook", "path", path, "records", len(records), "size", utils.FormatFileSize(int64(buf.Len())))
	return nil
}

func (e *Exporter) writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return exportError("write header", err)
	}

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return exportError("address row", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return exportError("write row", err)
		}
		for i, v := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(fmt.Sprint(v)))
		}
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return exportError("address column", err)
		}
		if err := f.SetColWidth(sheet, col, col, float64(min(width+columnPadding, e.maxWidth))); err != nil {
			return exportError("size column", err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return exportError("create header style", err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return exportError("address header", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return exportError("style header", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return exportError("freeze header", err)
	}
	return nil
}

func exportError(step string, err error) error {
	return errors.NewIOError(errors.ErrCodeExportFailed, "failed to "+step, err)
}
