package ai

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"cvscreen/internal/config"
	cvErrors "cvscreen/internal/errors"
	"cvscreen/internal/types"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const (
	defaultEmbeddingModel    = "text-embedding-004"
	defaultModelCheckTimeout = 10 * time.Second
	defaultJustification     = "No justification provided."
	notAvailable             = "N/A"
)

// ProviderOptions carries provider settings that live outside the
// per-operation AI configuration
type ProviderOptions struct {
	EmbeddingModel    string
	Prompts           config.LoadedPrompts
	ModelCheckTimeout time.Duration

	// BaseURL overrides the Gemini API endpoint
	BaseURL string
}

// GeminiProvider implements AIProvider for Google Gemini
type GeminiProvider struct {
	client          *genai.Client
	config          config.OperationAIConfig
	operation       string
	options         ProviderOptions
	generateBreaker *Breaker[*genai.GenerateContentResponse]
	embedBreaker    *Breaker[*genai.EmbedContentResponse]
	modelBreaker    *Breaker[*genai.Model]
	logger          *cvErrors.Logger
}

// Ensure GeminiProvider implements AIProvider
var _ AIProvider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini provider instance for a specific operation
func NewGeminiProvider(cfg config.OperationAIConfig, operationType string, opts ProviderOptions, logger *cvErrors.Logger) (*GeminiProvider, error) {
	if logger == nil {
		logger = cvErrors.NewNopLogger()
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = defaultEmbeddingModel
	}
	if opts.ModelCheckTimeout <= 0 {
		opts.ModelCheckTimeout = defaultModelCheckTimeout
	}

	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	if cfg.Timeout != nil {
		httpClient.Timeout = *cfg.Timeout
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if opts.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, cvErrors.NewAIError(cvErrors.ErrCodeAIServiceFailed,
			"Failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client:          client,
		config:          cfg,
		operation:       operationType,
		options:         opts,
		generateBreaker: NewOperationBreaker[*genai.GenerateContentResponse]("Generate", operationType, cfg.CircuitBreaker, logger),
		embedBreaker:    NewOperationBreaker[*genai.EmbedContentResponse]("Embed", operationType, cfg.CircuitBreaker, logger),
		modelBreaker:    NewModelBreaker[*genai.Model](operationType, cfg.CircuitBreaker, logger),
		logger:          logger,
	}, nil
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:      g.config.Model,
		Available: false,
	}

	checkCtx, cancel := context.WithTimeout(ctx, g.options.ModelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"provider", g.config.Provider,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	modelInfo.DisplayName = model.DisplayName
	modelInfo.Version = model.Version

	g.logger.Debug("Model availability check successful",
		"model", g.config.Model,
		"provider", g.config.Provider,
		"display_name", modelInfo.DisplayName,
		"version", modelInfo.Version)

	return modelInfo
}

// retry runs fn with exponential backoff until it succeeds, fails with a
// non-retryable error, or the configured attempts are used up
func retry[T any](g *GeminiProvider, ctx context.Context, operation string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	maxRetries := g.maxRetries()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying AI operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			jitterMax := big.NewInt(int64(float64(baseDelay) * 0.1))
			jitterBig, _ := rand.Int(rand.Reader, jitterMax)
			backoff := min(baseDelay+time.Duration(jitterBig.Int64()), 30*time.Second)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("AI operation succeeded after retry",
					"operation", operation,
					"successful_attempt", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			g.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", operation,
				"error", err.Error())
			break
		}
	}

	g.logger.LogError(lastErr, "AI operation failed after all retry attempts",
		"operation", operation,
		"total_attempts", maxRetries+1)

	return zero, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, maxRetries, lastErr)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return isRetryableStatus(apiErr.Code)
	}

	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		return isRetryableStatus(googleErr.Code)
	}

	return false
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// executeAIOperation runs a generation call with tracing, circuit breaking
// and retries, then decodes the JSON answer into Out
func executeAIOperation[Out any](
	g *GeminiProvider,
	ctx context.Context,
	operationName string,
	userPrompt string,
	systemPrompt string,
	genaiConfig *genai.GenerateContentConfig,
	spanAttributes ...attribute.KeyValue,
) (Out, *TokenUsage, error) {
	var output Out
	tracer := otel.Tracer("cvscreen.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+operationName)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Float64("ai.temperature", float64(g.temperature())),
	)
	span.SetAttributes(spanAttributes...)

	if g.useSystemPrompts() && systemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	result, err := g.generateBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return retry(g, ctx, operationName, func() (*genai.GenerateContentResponse, error) {
			return g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(userPrompt), genaiConfig)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, nil, g.operationError(operationName, err)
	}

	text := stripCodeFences(result.Text())
	if err := json.Unmarshal([]byte(text), &output); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, nil, cvErrors.NewAIError(cvErrors.ErrCodeAIInvalidOutput, "Failed to parse AI response for "+operationName, err).
			WithContext("response_length", len(text))
	}

	tokenUsage := extractTokenUsage(result)
	if tokenUsage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", tokenUsage.InputTokens),
			attribute.Int64("ai.tokens.output", tokenUsage.OutputTokens),
			attribute.Int64("ai.tokens.total", tokenUsage.TotalTokens),
		)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return output, tokenUsage, nil
}

func (g *GeminiProvider) operationError(operation string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return cvErrors.NewAIError(cvErrors.ErrCodeAICircuitOpen, "AI service temporarily unavailable for "+operation, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return cvErrors.NewAIError(cvErrors.ErrCodeAITimeout, "AI request timed out for "+operation, err)
	}
	return cvErrors.NewAIError(cvErrors.ErrCodeAIServiceFailed, "Failed to generate content for "+operation, err)
}

// AnalyzeCV extracts a candidate record from raw CV text
func (g *GeminiProvider) AnalyzeCV(ctx context.Context, cvText string) (types.CandidateRecord, *TokenUsage, error) {
	systemPrompt, userPrompt := g.getPromptsForAnalyze(cvText)

	output, tokenUsage, err := executeAIOperation[types.CandidateRecord](
		g,
		ctx,
		"analyze_cv",
		userPrompt,
		systemPrompt,
		g.buildAnalyzeSchema(),
		attribute.Int("input.cv_length", len(cvText)),
	)
	if err != nil {
		return types.CandidateRecord{}, nil, err
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int("output.skills_count", len(output.Skills)),
			attribute.Float64("output.experience_years", float64(output.TotalExperienceYears)),
		)
	}

	return output, tokenUsage, nil
}

// scoreOutput accepts fractional scores that some models return
type scoreOutput struct {
	Score         float64 `json:"score"`
	Justification string  `json:"justification"`
}

// ScoreCandidate asks the model how well a candidate fits the job description
func (g *GeminiProvider) ScoreCandidate(ctx context.Context, jobDescription string, candidate types.CandidateRecord) (types.CandidateScore, *TokenUsage, error) {
	systemPrompt, userPrompt := g.getPromptsForCompare(jobDescription, candidate)

	output, tokenUsage, err := executeAIOperation[scoreOutput](
		g,
		ctx,
		"score_candidate",
		userPrompt,
		systemPrompt,
		g.buildScoreSchema(),
		attribute.Int("input.job_length", len(jobDescription)),
		attribute.String("input.candidate", candidate.Name),
	)
	if err != nil {
		return types.CandidateScore{}, nil, err
	}

	score := types.CandidateScore{
		Score:         clampScore(output.Score),
		Justification: strings.TrimSpace(output.Justification),
	}
	if score.Justification == "" {
		score.Justification = defaultJustification
	}
	return score, tokenUsage, nil
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

// Embed returns one embedding vector per input text, in input order
func (g *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	tracer := otel.Tracer("cvscreen.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini.embed")
	defer span.End()
	span.SetAttributes(
		attribute.String("ai.embedding_model", g.options.EmbeddingModel),
		attribute.Int("input.count", len(texts)),
	)

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	result, err := g.embedBreaker.Execute(func() (*genai.EmbedContentResponse, error) {
		return retry(g, ctx, "embed", func() (*genai.EmbedContentResponse, error) {
			return g.client.Models.EmbedContent(ctx, g.options.EmbeddingModel, contents, nil)
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, g.operationError("embed", err)
	}

	if len(result.Embeddings) != len(texts) {
		err := fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
		span.RecordError(err)
		return nil, cvErrors.NewAIError(cvErrors.ErrCodeAIInvalidOutput, "Embedding response does not match input", err)
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, cvErrors.NewAIError(cvErrors.ErrCodeAIInvalidOutput,
				fmt.Sprintf("Embedding %d is empty", i), nil)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.generateBreaker.GetStats(),
		"embeddings":       g.embedBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetStats(),
		"overall_healthy":  g.generateBreaker.IsHealthy() && g.embedBreaker.IsHealthy() && g.modelBreaker.IsHealthy(),
	}
}

// Close implements AIProvider interface
func (g *GeminiProvider) Close() error {
	// The genai client holds no connections of its own in request/response mode
	return nil
}

// buildAnalyzeSchema creates the schema for CV analysis requests
func (g *GeminiProvider) buildAnalyzeSchema() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name":                 {Type: genai.TypeString},
				"totalExperienceYears": {Type: genai.TypeNumber},
				"companies":            {Type: genai.TypeString},
				"education":            {Type: genai.TypeString},
				"discipline":           {Type: genai.TypeString},
				"industry":             {Type: genai.TypeString},
				"summary":              {Type: genai.TypeString},
				"skills": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
			},
			Required: []string{"name", "totalExperienceYears", "companies", "education", "discipline", "industry", "summary", "skills"},
		},
	}

	if t := g.temperature(); t > 0 {
		config.Temperature = &t
	}

	return config
}

// buildScoreSchema creates the schema for candidate scoring requests
func (g *GeminiProvider) buildScoreSchema() *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"score":         {Type: genai.TypeInteger},
				"justification": {Type: genai.TypeString},
			},
			Required: []string{"score", "justification"},
		},
	}

	if t := g.temperature(); t > 0 {
		config.Temperature = &t
	}

	return config
}

// getPromptsForAnalyze returns system and user prompts for CV analysis
func (g *GeminiProvider) getPromptsForAnalyze(cvText string) (string, string) {
	custom := g.config.CustomPrompts
	systemPrompt := resolvePrompt(
		g.options.Prompts.SystemPrompts.AnalyzeCV,
		custom.SystemPrompts.AnalyzeCV,
		DefaultSystemPrompts.AnalyzeCV,
	)
	userPrompt := resolvePrompt(
		g.options.Prompts.UserPrompts.AnalyzeCV,
		custom.UserPrompts.AnalyzeCV,
		DefaultUserPrompts.AnalyzeCV,
	)
	return systemPrompt, fmt.Sprintf(userPrompt, cvText)
}

// getPromptsForCompare returns system and user prompts for candidate scoring
func (g *GeminiProvider) getPromptsForCompare(jobDescription string, candidate types.CandidateRecord) (string, string) {
	custom := g.config.CustomPrompts
	systemPrompt := resolvePrompt(
		g.options.Prompts.SystemPrompts.CompareCandidate,
		custom.SystemPrompts.CompareCandidate,
		DefaultSystemPrompts.CompareCandidate,
	)
	userPrompt := resolvePrompt(
		g.options.Prompts.UserPrompts.CompareCandidate,
		custom.UserPrompts.CompareCandidate,
		DefaultUserPrompts.CompareCandidate,
	)

	formatted := fmt.Sprintf(userPrompt,
		jobDescription,
		orNotAvailable(candidate.Name),
		candidate.TotalExperienceYears.String(),
		orNotAvailable(candidate.Summary),
		strings.Join(candidate.Skills, ", "),
	)
	return systemPrompt, formatted
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}

// stripCodeFences removes a surrounding markdown code block, which models
// sometimes add even when asked for bare JSON
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimSuffix(text, "```"))
}

// resolvePrompt picks the first non-empty prompt in order of precedence:
// loaded from a file, set in the configuration, built-in default
func resolvePrompt(loadedFromFile, fromConfig, fromDefault string) string {
	if loadedFromFile != "" {
		return loadedFromFile
	}
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}

func (g *GeminiProvider) maxRetries() int {
	if g.config.MaxRetries == nil || *g.config.MaxRetries < 0 {
		return 0
	}
	return *g.config.MaxRetries
}

func (g *GeminiProvider) temperature() float32 {
	if g.config.Temperature == nil {
		return 0
	}
	return *g.config.Temperature
}

func (g *GeminiProvider) useSystemPrompts() bool {
	return g.config.UseSystemPrompts != nil && *g.config.UseSystemPrompts
}
