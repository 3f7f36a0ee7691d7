package config

// Operation names used for per-operation AI settings and prompts
const (
	OperationAnalyze = "analyze"
	OperationCompare = "compare"
)

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.UseSystemPrompts == nil {
		use := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &use
	}
}

// applyPromptFallbacks fills empty operation prompts from the global ones
func applyPromptFallbacks(op *PromptConfig, global PromptConfig) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&op.SystemPrompts.AnalyzeCV, global.SystemPrompts.AnalyzeCV)
	fill(&op.SystemPrompts.AnalyzeCVFile, global.SystemPrompts.AnalyzeCVFile)
	fill(&op.SystemPrompts.CompareCandidate, global.SystemPrompts.CompareCandidate)
	fill(&op.SystemPrompts.CompareCandidateFile, global.SystemPrompts.CompareCandidateFile)
	fill(&op.UserPrompts.AnalyzeCV, global.UserPrompts.AnalyzeCV)
	fill(&op.UserPrompts.AnalyzeCVFile, global.UserPrompts.AnalyzeCVFile)
	fill(&op.UserPrompts.CompareCandidate, global.UserPrompts.CompareCandidate)
	fill(&op.UserPrompts.CompareCandidateFile, global.UserPrompts.CompareCandidateFile)
}

// GetAnalyzeConfig returns the AI configuration for CV analysis with fallback to global config
func (c *Config) GetAnalyzeConfig() OperationAIConfig {
	config := c.AI.Analyze
	c.applyOperationDefaults(&config)
	applyPromptFallbacks(&config.CustomPrompts, c.AI.CustomPrompts)
	return config
}

// GetCompareConfig returns the AI configuration for candidate scoring with fallback to global config
func (c *Config) GetCompareConfig() OperationAIConfig {
	config := c.AI.Compare
	c.applyOperationDefaults(&config)
	applyPromptFallbacks(&config.CustomPrompts, c.AI.CustomPrompts)
	return config
}

// GetOperationConfig returns the resolved configuration for an operation name
func (c *Config) GetOperationConfig(operation string) OperationAIConfig {
	if operation == OperationCompare {
		return c.GetCompareConfig()
	}
	return c.GetAnalyzeConfig()
}
