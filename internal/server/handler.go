package server

import (
	"context"
	"encoding/json"
	"net/http"

	"cvscreen/internal/errors"
	"cvscreen/internal/observability"
	"cvscreen/internal/types"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Client-facing error messages
const (
	msgCVTooShort         = "CV text is too short or missing."
	msgInvalidAIFormat    = "AI model returned an invalid format. Please try again."
	msgAnalysisFailed     = "An unexpected error occurred during CV analysis."
	msgCompareMissing     = "Job description or candidate data is missing."
	msgComparisonFailed   = "An unexpected error occurred during comparison."
	msgInvalidRequestBody = "Invalid request body"
)

// createAnalyzeHandler serves POST /api/analyze-cv
func (s *Server) createAnalyzeHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("cvscreen.api")
		ctx, span := tracer.Start(ctx, "api.analyze_cv")
		defer span.End()

		var req types.AnalyzeRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, msgInvalidRequestBody, err.Error(), http.StatusBadRequest)
			return
		}

		if err := s.validate.Struct(req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, msgCVTooShort, "", http.StatusBadRequest)
			return
		}

		span.SetAttributes(
			attribute.Int("request.cv_length", len(req.CVText)),
			attribute.String("operation", "analyze"),
		)

		metrics := om.GetMetrics()
		var record types.CandidateRecord
		err := metrics.TrackAIOperationWithTokens(ctx, "analyze", func(ctx context.Context) *observability.AIOperationResult {
			output, tokenUsage, aiErr := s.AI.Analyze.AnalyzeCV(ctx, req.CVText)
			record = output
			return &observability.AIOperationResult{
				Error:      aiErr,
				TokenUsage: (*observability.TokenUsage)(tokenUsage),
			}
		}, om)

		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "ai_processing"))
			metrics.RecordBusinessMetric(ctx, observability.MetricCVAnalyzed, false, om)

			if errors.HasCode(err, errors.ErrCodeAIInvalidOutput) {
				s.Logger.LogError(err, "Model returned unparseable CV analysis")
				writeErrorResponse(w, msgInvalidAIFormat, "", http.StatusInternalServerError)
				return
			}
			s.Logger.LogError(err, "CV analysis failed")
			writeErrorResponse(w, msgAnalysisFailed, "", http.StatusInternalServerError)
			return
		}

		metrics.RecordBusinessMetric(ctx, observability.MetricCVAnalyzed, true, om,
			attribute.Int("skills_count", len(record.Skills)))

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("response.skills_count", len(record.Skills)),
		)

		writeJSONResponse(w, span, record)
	}
}

// createCompareHandler serves POST /api/compare
func (s *Server) createCompareHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("cvscreen.api")
		ctx, span := tracer.Start(ctx, "api.compare")
		defer span.End()

		var req types.CompareRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, msgInvalidRequestBody, err.Error(), http.StatusBadRequest)
			return
		}

		if err := s.validate.Struct(req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, msgCompareMissing, "", http.StatusBadRequest)
			return
		}

		span.SetAttributes(
			attribute.Int("request.jd_length", len(req.JDText)),
			attribute.Int("request.candidates", len(req.Candidates)),
			attribute.String("operation", "compare"),
		)

		metrics := om.GetMetrics()
		var results []types.ComparisonResult
		err := metrics.TrackAIOperationWithTokens(ctx, "compare", func(ctx context.Context) *observability.AIOperationResult {
			out, rankErr := s.Ranker.Compare(ctx, req.JDText, req.Candidates)
			results = out
			return &observability.AIOperationResult{Error: rankErr}
		}, om)

		if err != nil {
			span.RecordError(err)
			metrics.RecordBusinessMetric(ctx, observability.MetricComparisonRun, false, om)

			if errors.IsKind(err, errors.KindValidationFailed) {
				writeErrorResponse(w, msgCompareMissing, "", http.StatusBadRequest)
				return
			}
			s.Logger.LogError(err, "Comparison failed", "candidates", len(req.Candidates))
			writeErrorResponse(w, msgComparisonFailed, "", http.StatusInternalServerError)
			return
		}

		metrics.RecordBusinessMetric(ctx, observability.MetricComparisonRun, true, om,
			attribute.Int("candidates", len(req.Candidates)),
			attribute.Int("results", len(results)))

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("response.results", len(results)),
		)

		writeJSONResponse(w, span, results)
	}
}

// createRateLimitMiddleware adds observability to rate limiting
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager) func(http.HandlerFunc) http.HandlerFunc {
	originalMiddleware := s.rateLimitMiddleware()

	return func(next http.HandlerFunc) http.HandlerFunc {
		limited := originalMiddleware(next)
		return func(w http.ResponseWriter, r *http.Request) {
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

			limited(wrapper, r)

			if wrapper.rateLimited {
				metrics := om.GetMetrics()
				metrics.RecordBusinessMetric(r.Context(), observability.MetricRateLimitHit, true, om,
					attribute.String("endpoint", r.URL.Path),
					attribute.String("method", r.Method))
			}
		}
	}
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode  int
	rateLimited bool
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// markRateLimited flags the response as rejected by the limiter itself,
// as opposed to a 429 passed through from a handler
func markRateLimited(w http.ResponseWriter) {
	if rw, ok := w.(*responseWrapper); ok {
		rw.rateLimited = true
	}
}

// writeJSONResponse encodes v as the 200 response body
func writeJSONResponse(w http.ResponseWriter, span oteltrace.Span, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		span.RecordError(err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
