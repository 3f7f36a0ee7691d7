package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cvscreen/internal/common"
	"cvscreen/internal/compare"
	"cvscreen/internal/errors"
	"cvscreen/internal/export"
	"cvscreen/internal/types"

	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Rank previously analyzed candidates against a job description",
	Long: `Compare ranks candidate records saved earlier against a job description
without analyzing the documents again.

--candidates takes either a JSON report written by "cvscreen screen --format json"
or a JSON array of candidate records.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutputFormat(cmd, &compareConfig.CommandConfig)
	},
	RunE: runCompare,
}

var compareConfig struct {
	common.CommandConfig
	candidatesFile string
	jdFile         string
	jdText         string
	xlsxFile       string
	local          bool
}

func init() {
	addOutputFlags(compareCmd, &compareConfig.CommandConfig)
	compareCmd.Flags().StringVar(&compareConfig.candidatesFile, "candidates", "", "JSON file with candidate records (required)")
	compareCmd.Flags().StringVar(&compareConfig.jdFile, "jd", "", "Job description file")
	compareCmd.Flags().StringVar(&compareConfig.jdText, "jd-text", "", "Job description text")
	compareCmd.Flags().StringVar(&compareConfig.xlsxFile, "xlsx", "", "Export records and ranking to this Excel workbook")
	compareCmd.Flags().BoolVar(&compareConfig.local, "local", false, "Call the AI provider directly instead of the analysis service")
	_ = compareCmd.MarkFlagRequired("candidates")
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(ctx)
	if err != nil {
		return err
	}

	fileProcessor := common.NewFileProcessor(logger)
	jd, err := common.ResolveJobDescription(fileProcessor, compareConfig.jdFile, compareConfig.jdText)
	if err != nil {
		return err
	}
	if jd == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "a job description is required (--jd or --jd-text)", nil)
	}

	content, err := fileProcessor.ReadFile(compareConfig.candidatesFile)
	if err != nil {
		return err
	}
	records, err := decodeCandidates([]byte(content))
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Cannot parse candidates file: %s", compareConfig.candidatesFile), err)
	}

	backends, err := newBackends(cfg, logger, compareConfig.local)
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Warn("Failed to close backends", "error", err.Error())
		}
	}()

	results, err := compare.New(backends.Ranker, logger).Compare(ctx, jd, records)
	if err != nil {
		return err
	}

	report := types.BatchReport{
		Records:          records,
		JobDescription:   jd,
		Ranking:          compare.Join(results, records),
		ResultsAvailable: len(records) > 0,
	}

	if compareConfig.xlsxFile != "" {
		if err := export.New(cfg.Export, logger).Save(compareConfig.xlsxFile, report.Records, report.Ranking); err != nil {
			return err
		}
	}
	return common.NewOutputHandlerWithWriter(cmd.OutOrStdout(), logger).HandleOutput(report, compareConfig.CommandConfig)
}

// decodeCandidates accepts a screening report or a bare array of records
func decodeCandidates(data []byte) ([]types.CandidateRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var report types.BatchReport
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, err
		}
		return report.Records, nil
	}

	var records []types.CandidateRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
