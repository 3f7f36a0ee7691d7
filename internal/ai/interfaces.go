package ai

import (
	"context"

	"cvscreen/internal/types"
)

// AIProvider interface for different AI implementations.
// Generation methods return token usage information; callers can ignore it.
type AIProvider interface {
	AnalyzeCV(ctx context.Context, cvText string) (types.CandidateRecord, *TokenUsage, error)
	ScoreCandidate(ctx context.Context, jobDescription string, candidate types.CandidateRecord) (types.CandidateScore, *TokenUsage, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	GetCircuitBreakerStats() map[string]any
	Close() error
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}
