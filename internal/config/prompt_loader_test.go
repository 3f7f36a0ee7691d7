package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPromptsFromFiles(t *testing.T) {
	tempDir := t.TempDir()

	systemPromptContent := "Test system prompt for CV analysis"
	userPromptContent := "Extract the candidate from: {{.CVText}}"

	systemPromptFile := filepath.Join(tempDir, "system.analyze.md")
	userPromptFile := filepath.Join(tempDir, "user.analyze.md")

	if err := os.WriteFile(systemPromptFile, []byte(systemPromptContent), 0600); err != nil {
		t.Fatalf("Failed to create test system prompt file: %v", err)
	}
	if err := os.WriteFile(userPromptFile, []byte("\n"+userPromptContent+"\n\n"), 0600); err != nil {
		t.Fatalf("Failed to create test user prompt file: %v", err)
	}

	config := &Config{
		AI: AIConfig{
			Analyze: OperationAIConfig{
				CustomPrompts: PromptConfig{
					SystemPrompts: PromptSet{AnalyzeCVFile: systemPromptFile},
					UserPrompts:   PromptSet{AnalyzeCVFile: userPromptFile},
				},
			},
		},
	}

	if err := config.loadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts from files: %v", err)
	}

	loaded := config.PromptsForOperation(OperationAnalyze)

	if loaded.SystemPrompts.AnalyzeCV != systemPromptContent {
		t.Errorf("Expected loaded system prompt content '%s', got '%s'",
			systemPromptContent, loaded.SystemPrompts.AnalyzeCV)
	}
	if loaded.UserPrompts.AnalyzeCV != userPromptContent {
		t.Errorf("Expected trimmed user prompt content '%s', got '%s'",
			userPromptContent, loaded.UserPrompts.AnalyzeCV)
	}

	if config.AI.Analyze.CustomPrompts.SystemPrompts.AnalyzeCVFile != systemPromptFile {
		t.Error("Expected system prompt file path to be preserved")
	}

	if other := config.PromptsForOperation(OperationCompare); other.SystemPrompts.AnalyzeCV != "" {
		t.Errorf("Expected compare scope to stay empty, got '%s'", other.SystemPrompts.AnalyzeCV)
	}
}

func TestPromptsForOperationFallsBackToGlobal(t *testing.T) {
	tempDir := t.TempDir()

	globalFile := filepath.Join(tempDir, "global.compare.md")
	compareFile := filepath.Join(tempDir, "compare.md")
	if err := os.WriteFile(globalFile, []byte("global scoring prompt"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(compareFile, []byte("operation scoring prompt"), 0600); err != nil {
		t.Fatal(err)
	}

	config := &Config{
		AI: AIConfig{
			CustomPrompts: PromptConfig{
				SystemPrompts: PromptSet{CompareCandidateFile: globalFile},
				UserPrompts:   PromptSet{CompareCandidateFile: globalFile},
			},
			Compare: OperationAIConfig{
				CustomPrompts: PromptConfig{
					UserPrompts: PromptSet{CompareCandidateFile: compareFile},
				},
			},
		},
	}

	if err := config.loadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts from files: %v", err)
	}

	compare := config.PromptsForOperation(OperationCompare)
	if compare.UserPrompts.CompareCandidate != "operation scoring prompt" {
		t.Errorf("Expected operation prompt to win, got '%s'", compare.UserPrompts.CompareCandidate)
	}
	if compare.SystemPrompts.CompareCandidate != "global scoring prompt" {
		t.Errorf("Expected global system prompt fallback, got '%s'", compare.SystemPrompts.CompareCandidate)
	}

	analyze := config.PromptsForOperation(OperationAnalyze)
	if analyze.UserPrompts.CompareCandidate != "global scoring prompt" {
		t.Errorf("Expected global user prompt for analyze scope, got '%s'", analyze.UserPrompts.CompareCandidate)
	}
}

func TestValidatePromptFiles(t *testing.T) {
	tempDir := t.TempDir()

	validFile := filepath.Join(tempDir, "valid.md")
	if err := os.WriteFile(validFile, []byte("Valid content"), 0600); err != nil {
		t.Fatalf("Failed to create valid test file: %v", err)
	}

	config := &Config{
		AI: AIConfig{
			Analyze: OperationAIConfig{
				CustomPrompts: PromptConfig{
					SystemPrompts: PromptSet{AnalyzeCVFile: validFile},
				},
			},
		},
	}
	if err := config.validatePromptFiles(); err != nil {
		t.Errorf("Expected no error for valid file, got: %v", err)
	}

	config.AI.Analyze.CustomPrompts.UserPrompts.AnalyzeCVFile = filepath.Join(tempDir, "missing-user.md")
	config.AI.Compare.CustomPrompts.SystemPrompts.CompareCandidateFile = filepath.Join(tempDir, "missing-system.md")

	err := config.validatePromptFiles()
	if err == nil {
		t.Fatal("Expected error for missing files, got nil")
	}
	for _, want := range []string{"missing-user.md", "missing-system.md"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %s, got: %v", want, err)
		}
	}
}

func TestLoadPromptFromFile(t *testing.T) {
	tempDir := t.TempDir()

	testContent := "  Test prompt content with whitespace  \n\n"
	expectedContent := "Test prompt content with whitespace"
	testFile := filepath.Join(tempDir, "test.md")
	if err := os.WriteFile(testFile, []byte(testContent), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	content, err := loadPromptFromFile(testFile, "test", "operation")
	if err != nil {
		t.Fatalf("Failed to load prompt from file: %v", err)
	}
	if content != expectedContent {
		t.Errorf("Expected content '%s', got '%s'", expectedContent, content)
	}

	emptyFile := filepath.Join(tempDir, "empty.md")
	if err := os.WriteFile(emptyFile, []byte("   \n\n   "), 0600); err != nil {
		t.Fatalf("Failed to create empty test file: %v", err)
	}
	if _, err := loadPromptFromFile(emptyFile, "test", "operation"); err == nil {
		t.Error("Expected error for empty file, got nil")
	}

	if _, err := loadPromptFromFile(filepath.Join(tempDir, "nonexistent.md"), "test", "operation"); err == nil {
		t.Error("Expected error for nonexistent file, got nil")
	}
}
