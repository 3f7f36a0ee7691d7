package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeAI         ErrorType = "ai"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Kind classifies a failure of a single document or batch operation.
// It is what a document status reports when it ends in Error.
type Kind string

const (
	KindUnsupportedFormat      Kind = "UnsupportedFormat"
	KindCorruptDocument        Kind = "CorruptDocument"
	KindExtractionFailed       Kind = "ExtractionFailed"
	KindEmptyDocument          Kind = "EmptyDocument"
	KindEmptyAnalysisResult    Kind = "EmptyAnalysisResult"
	KindRemoteAnalysisFailed   Kind = "RemoteAnalysisFailed"
	KindRemoteComparisonFailed Kind = "RemoteComparisonFailed"
	KindValidationFailed       Kind = "ValidationFailed"
)

// kindTypes maps each kind to the broader error category it belongs to.
var kindTypes = map[Kind]ErrorType{
	KindUnsupportedFormat:      ErrorTypeValidation,
	KindCorruptDocument:        ErrorTypeIO,
	KindExtractionFailed:       ErrorTypeIO,
	KindEmptyDocument:          ErrorTypeValidation,
	KindEmptyAnalysisResult:    ErrorTypeAI,
	KindRemoteAnalysisFailed:   ErrorTypeNetwork,
	KindRemoteComparisonFailed: ErrorTypeNetwork,
	KindValidationFailed:       ErrorTypeValidation,
}

// Context keys attached to remote failures
const (
	ContextStatusCode = "status_code"
	ContextBody       = "body"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Kind    Kind           `json:"kind,omitempty"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error constructors for different types
func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewAIError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeAI, code, message, cause)
}

func NewNetworkError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeNetwork, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// NewKindError creates an error tagged with a processing kind. The code
// defaults to the kind itself.
func NewKindError(kind Kind, message string, cause error) *AppError {
	typ, ok := kindTypes[kind]
	if !ok {
		typ = ErrorTypeInternal
	}
	e := newAppError(typ, string(kind), message, cause)
	e.Kind = kind
	return e
}

// NewRemoteError creates a kind error for a failed remote exchange, keeping
// the HTTP status and the response body for diagnosis. A status of 0 means
// no response was received.
func NewRemoteError(kind Kind, status int, body string, cause error) *AppError {
	msg := "remote service unreachable"
	if status != 0 {
		msg = fmt.Sprintf("remote service returned %d %s", status, http.StatusText(status))
	}
	return NewKindError(kind, msg, cause).
		WithContext(ContextStatusCode, status).
		WithContext(ContextBody, body)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCode overrides the error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// KindOf returns the processing kind of err, searching the wrap chain.
// Errors without a kind report ExtractionFailed, the catch-all for
// document processing.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	for e := err; stderrors.As(e, &appErr); e = appErr.Cause {
		if appErr.Kind != "" {
			return appErr.Kind
		}
	}
	return KindExtractionFailed
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HasCode reports whether any AppError in the chain carries code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	for e := err; stderrors.As(e, &appErr); e = appErr.Cause {
		if appErr.Code == code {
			return true
		}
	}
	return false
}

// StatusCode returns the HTTP status stored on a remote failure, or 0.
func StatusCode(err error) int {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return 0
	}
	if code, ok := appErr.Context[ContextStatusCode].(int); ok {
		return code
	}
	return 0
}

// Body returns the response body stored on a remote failure.
func Body(err error) string {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ""
	}
	body, _ := appErr.Context[ContextBody].(string)
	return body
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a structured logger on stderr, keeping stdout for reports
func NewLogger(level slog.Level) *Logger {
	return NewLoggerWithWriter(os.Stderr, level)
}

// NewLoggerWithWriter creates a structured logger writing JSON lines to w.
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	return &Logger{logger: slog.New(slog.NewJSONHandler(w, opts))}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return NewLoggerWithWriter(io.Discard, slog.LevelError)
}

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.Kind != "" {
			logArgs = append(logArgs, "error_kind", appErr.Kind)
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "cause", appErr.Cause.Error())
		}

		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}

		logArgs = append(logArgs, args...)

		l.logger.Error(message, logArgs...)
	} else {
		logArgs := append([]any{"error", err.Error()}, args...)
		l.logger.Error(message, logArgs...)
	}
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}

// With returns a logger that always includes the given attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// ParseLevel converts a configured level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeFileNotFound    = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable = "FILE_NOT_READABLE"
	ErrCodeFileTooLarge    = "FILE_TOO_LARGE"
	ErrCodeInvalidFormat   = "INVALID_FORMAT"
	ErrCodeNoValidFiles    = "NO_VALID_FILES"
	ErrCodeAIServiceFailed = "AI_SERVICE_FAILED"
	ErrCodeAITimeout       = "AI_TIMEOUT"
	ErrCodeAIInvalidOutput = "AI_RESPONSE_PARSE_FAILED"
	ErrCodeAICircuitOpen   = "AI_CIRCUIT_OPEN"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeMissingAPIKey   = "MISSING_API_KEY"
	ErrCodeNetworkTimeout  = "NETWORK_TIMEOUT"
	ErrCodeInvalidConfig   = "INVALID_CONFIG"
	ErrCodeExportFailed    = "EXPORT_FAILED"
)
