package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateConfig runs LoadConfig from an empty directory with no inherited keys
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	for _, name := range []string{
		"CVSCREEN_AI_APIKEY",
		"CVSCREEN_CLIENT_BASEURL",
		"CVSCREEN_SERVER_APIKEYS",
		"GOOGLE_API_KEY",
		"GEMINI_API_KEY",
	} {
		t.Setenv(name, "")
	}
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	isolateConfig(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash", cfg.AI.Model)
	assert.Equal(t, "text-embedding-004", cfg.AI.EmbeddingModel)
	assert.Equal(t, 3, cfg.AI.TopK)
	assert.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)
	assert.Equal(t, "/api/analyze-cv", cfg.Client.AnalyzePath)
	assert.Equal(t, 120*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 50, cfg.Pipeline.MinTextLength)
	assert.False(t, cfg.Pipeline.SkipHidden)
	assert.Equal(t, "Candidates", cfg.Export.SheetName)
	assert.Equal(t, "text", cfg.App.DefaultFormat)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)

	assert.NoError(t, cfg.ValidateForClient())
	assert.Error(t, cfg.ValidateForServer(), "no AI key configured")
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	isolateConfig(t)
	t.Setenv("CVSCREEN_CLIENT_BASEURL", "https://screening.example.com")
	t.Setenv("CVSCREEN_PIPELINE_MINTEXTLENGTH", "10")
	t.Setenv("GOOGLE_API_KEY", "legacy-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://screening.example.com", cfg.Client.BaseURL)
	assert.Equal(t, 10, cfg.Pipeline.MinTextLength)
	assert.Equal(t, "legacy-key", cfg.AI.APIKey)
	assert.Equal(t, "legacy-key", cfg.GetAnalyzeConfig().APIKey)
	assert.NoError(t, cfg.ValidateForServer())
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolateConfig(t)

	prompt := filepath.Join(dir, "analyze.md")
	require.NoError(t, os.WriteFile(prompt, []byte("custom analyze prompt"), 0600))

	yaml := "client:\n" +
		"  baseURL: http://analysis:9000\n" +
		"ai:\n" +
		"  analyze:\n" +
		"    customPrompts:\n" +
		"      systemPrompts:\n" +
		"        analyzeCVFile: " + prompt + "\n" +
		"app:\n" +
		"  defaultFormat: markdown\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://analysis:9000", cfg.Client.BaseURL)
	assert.Equal(t, "markdown", cfg.App.DefaultFormat)
	assert.Equal(t, "custom analyze prompt", cfg.PromptsForOperation(OperationAnalyze).SystemPrompts.AnalyzeCV)
}

func TestLoadConfigMissingPromptFile(t *testing.T) {
	dir := isolateConfig(t)

	yaml := "ai:\n  customPrompts:\n    userPrompts:\n      compareCandidateFile: /nonexistent/compare.md\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0600))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compare.md")
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := isolateConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CVSCREEN_CLIENT_APIKEY=from-dotenv\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv("CVSCREEN_CLIENT_APIKEY") })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Client.APIKey)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App:      AppConfig{DefaultFormat: "json", SupportedFormats: []string{"json", "text"}},
			Pipeline: PipelineConfig{MinTextLength: 50},
		}
	}

	assert.NoError(t, base().Validate())

	negative := base()
	negative.Pipeline.MinTextLength = -1
	assert.Error(t, negative.Validate())

	format := base()
	format.App.DefaultFormat = "xml"
	assert.Error(t, format.Validate())
}

func TestValidateForClient(t *testing.T) {
	tests := []struct {
		name    string
		client  ClientConfig
		wantErr bool
	}{
		{name: "http url", client: ClientConfig{BaseURL: "http://localhost:8080", Timeout: time.Second}},
		{name: "https url", client: ClientConfig{BaseURL: "https://cv.example.com", Timeout: time.Second}},
		{name: "missing url", client: ClientConfig{Timeout: time.Second}, wantErr: true},
		{name: "bad scheme", client: ClientConfig{BaseURL: "ftp://cv.example.com", Timeout: time.Second}, wantErr: true},
		{name: "zero timeout", client: ClientConfig{BaseURL: "http://localhost:8080"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Client: tt.client}
			err := cfg.ValidateForClient()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetOperationConfig(t *testing.T) {
	timeout := 5 * time.Second
	cfg := &Config{
		AI: AIConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash",
			Timeout:     time.Minute,
			APIKey:      "global",
			Temperature: 0.2,
			Compare:     OperationAIConfig{Model: "gemini-pro", Timeout: &timeout},
		},
	}

	compare := cfg.GetOperationConfig(OperationCompare)
	assert.Equal(t, "gemini-pro", compare.Model)
	assert.Equal(t, timeout, *compare.Timeout)
	assert.Equal(t, "global", compare.APIKey)

	analyze := cfg.GetOperationConfig(OperationAnalyze)
	assert.Equal(t, "gemini-2.0-flash", analyze.Model)
	assert.Equal(t, time.Minute, *analyze.Timeout)
	assert.InDelta(t, 0.2, *analyze.Temperature, 0.0001)

	*analyze.Timeout = time.Hour
	assert.Equal(t, time.Minute, cfg.AI.Timeout, "resolved config must not alias global values")
}

func TestSplitKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitKeys(" a ,, b ,"))
	assert.Nil(t, splitKeys(""))
}
