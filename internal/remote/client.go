// Package remote talks to the analysis service: one call turns résumé text
// into a candidate record, another ranks candidates against a job description.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"cvscreen/internal/config"
	"cvscreen/internal/errors"
	"cvscreen/internal/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 10 << 20

// Client calls the analysis and comparison endpoints. Calls are never
// retried; the configured timeout bounds each exchange.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	analyzePath string
	comparePath string
	apiKey      string
	logger      *errors.Logger
}

// New creates a client for the service described by cfg.
func New(cfg config.ClientConfig, logger *errors.Logger) *Client {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		analyzePath: cfg.AnalyzePath,
		comparePath: cfg.ComparePath,
		apiKey:      cfg.APIKey,
		logger:      logger,
	}
}

// AnalyzeCV sends résumé text for analysis and returns the structured record.
//
// Transport failures, non-2xx responses and bodies that do not describe a
// candidate fail with RemoteAnalysisFailed. A 2xx response without content
// fails with EmptyAnalysisResult.
func (c *Client) AnalyzeCV(ctx context.Context, text string) (*types.CandidateRecord, error) {
	raw, status, err := c.postJSON(ctx, c.analyzePath, types.AnalyzeRequest{CVText: text})
	if err != nil {
		return nil, errors.NewRemoteError(errors.KindRemoteAnalysisFailed, 0, "", err)
	}
	if status/100 != 2 {
		return nil, errors.NewRemoteError(errors.KindRemoteAnalysisFailed, status, string(raw), nil)
	}

	body := bytes.TrimSpace(raw)
	if len(body) == 0 || string(body) == "null" {
		return nil, errors.NewKindError(errors.KindEmptyAnalysisResult, "analysis returned no content", nil).
			WithContext(errors.ContextStatusCode, status)
	}

	if err := validateAgainst(recordSchema, body); err != nil {
		return nil, malformed(errors.KindRemoteAnalysisFailed, status, raw, err)
	}

	var rec types.CandidateRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, malformed(errors.KindRemoteAnalysisFailed, status, raw, err)
	}
	if rec.IsEmpty() {
		return nil, errors.NewKindError(errors.KindEmptyAnalysisResult, "analysis returned an empty record", nil).
			WithContext(errors.ContextStatusCode, status)
	}

	rec.Filename = ""
	return &rec, nil
}

// Compare submits candidate profiles with a job description and returns the
// ranking in the order the service produced it. An empty ranking is valid.
func (c *Client) Compare(ctx context.Context, jd string, candidates []types.CandidateProfile) ([]types.ComparisonResult, error) {
	req := types.CompareRequest{JDText: jd, Candidates: candidates}
	raw, status, err := c.postJSON(ctx, c.comparePath, req)
	if err != nil {
		return nil, errors.NewRemoteError(errors.KindRemoteComparisonFailed, 0, "", err)
	}
	if status/100 != 2 {
		return nil, errors.NewRemoteError(errors.KindRemoteComparisonFailed, status, string(raw), nil)
	}

	body := bytes.TrimSpace(raw)
	if len(body) == 0 || string(body) == "null" {
		return []types.ComparisonResult{}, nil
	}

	if err := validateAgainst(resultSchema, body); err != nil {
		return nil, malformed(errors.KindRemoteComparisonFailed, status, raw, err)
	}

	// scores may arrive as 85.0, which encoding/json refuses for an int
	var wire []struct {
		Name          string  `json:"name"`
		Score         float64 `json:"score"`
		Justification string  `json:"justification"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, malformed(errors.KindRemoteComparisonFailed, status, raw, err)
	}

	results := make([]types.ComparisonResult, 0, len(wire))
	for _, w := range wire {
		results = append(results, types.ComparisonResult{
			Name:          w.Name,
			Score:         int(math.Round(w.Score)),
			Justification: w.Justification,
		})
	}
	return results, nil
}

func malformed(kind errors.Kind, status int, raw []byte, cause error) *errors.AppError {
	return errors.NewKindError(kind, "response does not match the expected shape", cause).
		WithContext(errors.ContextStatusCode, status).
		WithContext(errors.ContextBody, string(raw))
}

// postJSON sends body to path and returns the raw response. The error is
// non-nil only when no response was received.
func (c *Client) postJSON(ctx context.Context, path string, body any) ([]byte, int, error) {
	reqID := uuid.New().String()
	start := time.Now()
	url := c.baseURL + path

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	c.logger.Debug("Sending remote request",
		"req_id", reqID,
		"url", url,
		"content_length", len(bs))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Remote request failed",
			"req_id", reqID,
			"url", url,
			"error", err.Error(),
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "req_id", reqID, "error", err.Error())
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("Received remote response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds())

	return raw, resp.StatusCode, nil
}
