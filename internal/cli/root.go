package cli

import (
	"context"

	"cvscreen/internal/common"
	"cvscreen/internal/config"
	"cvscreen/internal/errors"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "cvscreen",
	Short: "A CLI tool for screening CVs against job descriptions using AI",
	Long: `cvscreen extracts text from PDF and DOCX résumés, turns each one into a
structured candidate record with an AI analysis service, and ranks the
candidates against a job description. Results can be printed as text,
markdown or JSON and exported to an Excel workbook.

It also ships the analysis service itself (cvscreen serve).`,
	SilenceUsage: true,
}

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	// Attach the config and logger to the context, making them available to all subcommands
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg, nil
	}
	return nil, errors.NewInternalError("CONTEXT_MISSING", "config not found in context", nil)
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger, nil
	}
	return nil, errors.NewInternalError("CONTEXT_MISSING", "logger not found in context", nil)
}

// addOutputFlags registers --output and --format on cmd
func addOutputFlags(cmd *cobra.Command, target *common.CommandConfig) {
	cmd.Flags().StringVarP(&target.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&target.OutputFormat, "format", "", "Output format: json, text, or markdown")

	// Add completion for format flag
	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return []string{}, cobra.ShellCompDirectiveError
		}
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

// resolveOutputFormat applies the default format and validates it
func resolveOutputFormat(cmd *cobra.Command, target *common.CommandConfig) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	if target.OutputFormat == "" {
		target.OutputFormat = cfg.App.DefaultFormat
	}
	return common.ValidateOutputFormat(target.OutputFormat, cfg.App.SupportedFormats)
}

// newBackends picks in-process model calls or the analysis server
func newBackends(cfg *config.Config, logger *errors.Logger, local bool) (*common.Backends, error) {
	if local {
		if err := cfg.ValidateForServer(); err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "local analysis is not configured", err)
		}
		return common.NewLocalBackends(cfg, logger)
	}
	if err := cfg.ValidateForClient(); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "analysis service is not configured", err)
	}
	return common.NewRemoteBackends(cfg, logger), nil
}

func init() {
	rootCmd.AddCommand(screenCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
