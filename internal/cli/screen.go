package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"cvscreen/internal/common"
	"cvscreen/internal/compare"
	"cvscreen/internal/config"
	"cvscreen/internal/errors"
	"cvscreen/internal/export"
	"cvscreen/internal/extract"
	"cvscreen/internal/formatters"
	"cvscreen/internal/observability"
	"cvscreen/internal/pipeline"
	"cvscreen/internal/types"
	"cvscreen/internal/watch"

	"github.com/spf13/cobra"
)

var screenCmd = &cobra.Command{
	Use:   "screen [files or folders...]",
	Short: "Analyze CVs and optionally rank them against a job description",
	Long: `Screen extracts the text of every .pdf and .docx résumé given, sends it
to the analysis service and collects one candidate record per document.
Folders contribute the documents they contain.

With --jd or --jd-text the analyzed candidates are ranked against the job
description. With --xlsx the records and the ranking are exported to an
Excel workbook.

With --watch the folders and documents keep being watched and are
screened again as a new batch whenever documents change. A run still in progress when a
change arrives is abandoned.`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveOutputFormat(cmd, &screenConfig.CommandConfig)
	},
	RunE: runScreen,
}

var screenConfig struct {
	common.CommandConfig
	jdFile    string
	jdText    string
	xlsxFile  string
	watch     bool
	recursive bool
	local     bool
	quiet     bool
}

func init() {
	addOutputFlags(screenCmd, &screenConfig.CommandConfig)
	screenCmd.Flags().StringVar(&screenConfig.jdFile, "jd", "", "Job description file to rank candidates against")
	screenCmd.Flags().StringVar(&screenConfig.jdText, "jd-text", "", "Job description text to rank candidates against")
	screenCmd.Flags().StringVar(&screenConfig.xlsxFile, "xlsx", "", "Export records and ranking to this Excel workbook")
	screenCmd.Flags().BoolVarP(&screenConfig.watch, "watch", "w", false, "Watch folders and documents and rescreen when they change")
	screenCmd.Flags().BoolVarP(&screenConfig.recursive, "recursive", "r", false, "Descend into subfolders (default from config)")
	screenCmd.Flags().BoolVar(&screenConfig.local, "local", false, "Call the AI provider directly instead of the analysis service")
	screenCmd.Flags().BoolVarP(&screenConfig.quiet, "quiet", "q", false, "Do not print per-document progress")
}

func runScreen(cmd *cobra.Command, args []string) error {
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
	jd, err := common.ResolveJobDescription(fileProcessor, screenConfig.jdFile, screenConfig.jdText)
	if err != nil {
		return err
	}

	recursive := cfg.Pipeline.Recursive
	if cmd.Flags().Changed("recursive") {
		recursive = screenConfig.recursive
	}

	backends, err := newBackends(cfg, logger, screenConfig.local)
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Warn("Failed to close backends", "error", err.Error())
		}
	}()

	om, err := observability.NewObservabilityManager(observability.GetBatchObservabilityConfig(cfg, Version), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := om.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to shut down observability", "error", err.Error())
		}
	}()

	opts := []pipeline.Option{pipeline.WithMetrics(om)}
	if !screenConfig.quiet {
		opts = append(opts, pipeline.WithObserver(progressPrinter(cmd.ErrOrStderr())))
	}
	p := pipeline.New(pipeline.NewBatch(), extract.New(logger), backends.Analyzer, cfg.Pipeline, logger, opts...)

	runner := common.NewScreenRunner(p,
		compare.New(backends.Ranker, logger),
		export.New(cfg.Export, logger),
		common.NewOutputHandlerWithWriter(cmd.OutOrStdout(), logger),
		logger)

	screenOpts := common.ScreenOptions{
		CommandConfig:  screenConfig.CommandConfig,
		JobDescription: jd,
		XLSXFile:       screenConfig.xlsxFile,
	}

	logger.Info("Starting screening",
		"paths", len(args),
		"recursive", recursive,
		"local", screenConfig.local,
		"with_jd", jd != "",
		"output_format", screenOpts.OutputFormat)

	screen := func(ctx context.Context) error {
		sources, err := fileProcessor.CollectSources(args, recursive, cfg.Pipeline.SkipHidden)
		if err != nil {
			return err
		}
		_, err = runner.Run(ctx, sources, screenOpts)
		return err
	}

	if !screenConfig.watch {
		return screen(ctx)
	}
	return watchAndScreen(ctx, args, recursive, cfg.Pipeline, logger, screen)
}

// watchAndScreen screens once and then again after every change under
// roots. A new run cancels the one in progress and waits for it to stop.
func watchAndScreen(ctx context.Context, roots []string, recursive bool, cfg config.PipelineConfig, logger *errors.Logger, screen func(context.Context) error) error {
	watcher, err := watch.New(roots, watch.Options{
		Recursive:  recursive,
		SkipHidden: cfg.SkipHidden,
		Debounce:   cfg.WatchDebounce,
	}, logger)
	if err != nil {
		return err
	}

	var (
		wg     sync.WaitGroup
		cancel context.CancelFunc = func() {}
	)
	start := func(ctx context.Context) {
		cancel()
		wg.Wait()

		runCtx, runCancel := context.WithCancel(ctx)
		cancel = runCancel
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := screen(runCtx); err != nil && !stderrors.Is(err, context.Canceled) {
				logger.LogError(err, "Screening run failed")
			}
		}()
	}

	start(ctx)
	err = watcher.Run(ctx, func(ctx context.Context, changed []string) {
		logger.Info("Rescreening after changes", "changed", len(changed))
		start(ctx)
	})

	cancel()
	wg.Wait()
	return err
}

func progressPrinter(w io.Writer) pipeline.Observer {
	return func(status types.DocumentStatus) {
		_, _ = fmt.Fprintln(w, formatters.StatusLine(status))
	}
}
