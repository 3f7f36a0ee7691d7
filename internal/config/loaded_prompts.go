package config

// PromptTexts holds prompt content per operation
type PromptTexts struct {
	AnalyzeCV        string
	CompareCandidate string
}

// LoadedPrompts holds the content of prompts loaded from files for one scope
type LoadedPrompts struct {
	SystemPrompts PromptTexts
	UserPrompts   PromptTexts
}

// AllLoadedPrompts holds loaded prompts for the global scope and each operation
type AllLoadedPrompts struct {
	Global  LoadedPrompts
	Analyze LoadedPrompts
	Compare LoadedPrompts
}

// PromptsForOperation returns file-loaded prompts for an operation. Prompts
// the operation does not define come from the global scope.
func (c *Config) PromptsForOperation(operation string) LoadedPrompts {
	var result LoadedPrompts
	switch operation {
	case OperationAnalyze:
		result = c.prompts.Analyze
	case OperationCompare:
		result = c.prompts.Compare
	default:
		return c.prompts.Global
	}

	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&result.SystemPrompts.AnalyzeCV, c.prompts.Global.SystemPrompts.AnalyzeCV)
	fill(&result.SystemPrompts.CompareCandidate, c.prompts.Global.SystemPrompts.CompareCandidate)
	fill(&result.UserPrompts.AnalyzeCV, c.prompts.Global.UserPrompts.AnalyzeCV)
	fill(&result.UserPrompts.CompareCandidate, c.prompts.Global.UserPrompts.CompareCandidate)
	return result
}
