package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"cvscreen/internal/common"
	"cvscreen/internal/errors"
	"cvscreen/internal/extract"
	"cvscreen/internal/types"
	"cvscreen/internal/utils"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract [document]",
	Short: "Print the plain text extracted from a PDF or DOCX document",
	Long: `Extract runs the text extraction used by screen on a single document and
prints the result. It needs no analysis service and is handy for checking
why a document ends up with too little text.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

var extractOutput string

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Output file path (default: stdout)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(ctx)
	if err != nil {
		return err
	}

	path := args[0]
	if err := utils.ValidateInputFile(path, cfg.Pipeline.MaxFileSize); err != nil {
		return errors.NewValidationError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Invalid input file: %s", path), err)
	}

	name := filepath.Base(path)
	format, ok := extract.DetectFormat(name)
	if !ok {
		return errors.NewKindError(errors.KindUnsupportedFormat,
			fmt.Sprintf("unsupported file format: %s", name), nil).
			WithCode(errors.ErrCodeInvalidFormat)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", path), err)
	}

	text, err := extract.New(logger).Extract(ctx, types.Document{Name: name, Content: content, Format: format})
	if err != nil {
		return err
	}

	if extractOutput != "" {
		return common.NewFileProcessor(logger).WriteFile(extractOutput, text)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}
