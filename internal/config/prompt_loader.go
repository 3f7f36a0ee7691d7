package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// promptScope pairs a configured prompt set with where its file content goes
type promptScope struct {
	name   string
	kind   string
	set    *PromptSet
	target *PromptTexts
}

func (c *Config) promptScopes() []promptScope {
	return []promptScope{
		{"global", "system", &c.AI.CustomPrompts.SystemPrompts, &c.prompts.Global.SystemPrompts},
		{"global", "user", &c.AI.CustomPrompts.UserPrompts, &c.prompts.Global.UserPrompts},
		{OperationAnalyze, "system", &c.AI.Analyze.CustomPrompts.SystemPrompts, &c.prompts.Analyze.SystemPrompts},
		{OperationAnalyze, "user", &c.AI.Analyze.CustomPrompts.UserPrompts, &c.prompts.Analyze.UserPrompts},
		{OperationCompare, "system", &c.AI.Compare.CustomPrompts.SystemPrompts, &c.prompts.Compare.SystemPrompts},
		{OperationCompare, "user", &c.AI.Compare.CustomPrompts.UserPrompts, &c.prompts.Compare.UserPrompts},
	}
}

// loadPromptsFromFiles loads custom prompts from external files if file paths are specified
func (c *Config) loadPromptsFromFiles() error {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	c.prompts = AllLoadedPrompts{}
	for _, scope := range c.promptScopes() {
		if err := c.loadPromptSet(scope); err != nil {
			return fmt.Errorf("failed to load %s %s prompts: %w", scope.name, scope.kind, err)
		}
	}

	c.logPromptLoadingSummary()
	return nil
}

func (c *Config) loadPromptSet(scope promptScope) error {
	if scope.set.AnalyzeCVFile != "" {
		content, err := loadPromptFromFile(scope.set.AnalyzeCVFile, scope.kind, "analyzeCV")
		if err != nil {
			return err
		}
		scope.target.AnalyzeCV = content
	}
	if scope.set.CompareCandidateFile != "" {
		content, err := loadPromptFromFile(scope.set.CompareCandidateFile, scope.kind, "compareCandidate")
		if err != nil {
			return err
		}
		scope.target.CompareCandidate = content
	}
	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, operation, filePath, err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, operation, absPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, operation, absPath, err)
	}

	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, operation, absPath)
	}

	log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
		promptType, operation, absPath, len(trimmedContent))

	return trimmedContent, nil
}

// validatePromptFiles checks that every configured prompt file exists before
// any of them is loaded, reporting all missing files at once
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	validateFile := func(filePath, promptType, operation string) {
		if filePath == "" {
			return
		}

		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", promptType, operation, filePath))
			return
		}

		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", promptType, operation, absPath))
		}
	}

	for _, scope := range c.promptScopes() {
		kind := scope.name + " " + scope.kind
		validateFile(scope.set.AnalyzeCVFile, kind, "analyzeCV")
		validateFile(scope.set.CompareCandidateFile, kind, "compareCandidate")
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}

// logPromptLoadingSummary logs a summary of loaded prompts
func (c *Config) logPromptLoadingSummary() {
	log.Println("[CONFIG] === Custom Prompt Loading Summary ===")

	promptCount := 0
	for _, scope := range c.promptScopes() {
		if scope.target.AnalyzeCV != "" {
			log.Printf("[CONFIG] %s %s analyzeCV prompt: loaded from file", scope.name, scope.kind)
			promptCount++
		}
		if scope.target.CompareCandidate != "" {
			log.Printf("[CONFIG] %s %s compareCandidate prompt: loaded from file", scope.name, scope.kind)
			promptCount++
		}
	}

	if promptCount == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", promptCount)
	}

	log.Println("[CONFIG] ==========================================")
}
