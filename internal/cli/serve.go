package cli

import (
	"fmt"

	"cvscreen/internal/ai"
	"cvscreen/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CV analysis HTTP server",
	Long: `Start an HTTP server that provides the analysis endpoints used by
"cvscreen screen" and "cvscreen compare".

Available endpoints:
- POST /api/analyze-cv: Turn CV text into a candidate record
- POST /api/compare: Rank candidate profiles against a job description
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info`,
	RunE: runServe,
}

var serveFlags struct {
	port string
	host string
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.port, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	if serveFlags.port != "" {
		cfg.Server.Port = serveFlags.port
	}
	if serveFlags.host != "" {
		cfg.Server.Host = serveFlags.host
	}

	if err := cfg.ValidateForServer(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	service, err := ai.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}

	return server.NewServer(cfg, server.ServerConfigFrom(cfg, Version), service, logger).Start(cmd.Context())
}
