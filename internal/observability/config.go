package observability

import (
	"os"

	"cvscreen/internal/config"
)

// GetObservabilityConfig creates observability config from provided config
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	if cfg == nil {
		// Fallback to defaults if config not available
		return ObservabilityConfig{
			ServiceName:    "cvscreen",
			ServiceVersion: version,
			Enabled:        true,
			ConsoleOutput:  true,
			PrettyPrint:    true,
			SampleRate:     1.0,
			Prometheus:     GetPrometheusConfig(cfg),
		}
	}

	obsConfig := cfg.Observability

	// Use app version if service version not specified
	serviceVersion := obsConfig.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	return ObservabilityConfig{
		ServiceName:    obsConfig.ServiceName,
		ServiceVersion: serviceVersion,
		Enabled:        obsConfig.Enabled,
		ConsoleOutput:  obsConfig.ConsoleOutput,
		PrettyPrint:    obsConfig.Console.PrettyPrint,
		SampleRate:     obsConfig.SampleRate,
		Prometheus:     GetPrometheusConfig(cfg),
	}
}

// GetBatchObservabilityConfig is GetObservabilityConfig for one-shot
// commands. The Prometheus scrape server is never started because the
// process exits before a scrape would happen; OTLP and console exporters
// are flushed on shutdown instead. Console output goes to stderr so it
// never mixes with reports on stdout.
func GetBatchObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	obsConfig := GetObservabilityConfig(cfg, version)
	obsConfig.Prometheus.Enabled = false
	obsConfig.ConsoleWriter = os.Stderr
	if cfg == nil {
		obsConfig.Enabled = false
	}
	return obsConfig
}
