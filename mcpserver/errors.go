package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SamuelRCrider/csp-risk/core"
)

// ErrorCategory groups tool failures for the request audit trail
type ErrorCategory string

const (
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryThreshold     ErrorCategory = "threshold"
	ErrorCategoryPattern       ErrorCategory = "pattern"
	ErrorCategoryNotFound      ErrorCategory = "not_found"
	ErrorCategoryUnsupported   ErrorCategory = "unsupported_framework"
	ErrorCategoryRateLimit     ErrorCategory = "rate_limit"
	ErrorCategoryInputTooLarge ErrorCategory = "input_too_large"
	ErrorCategoryTimeout       ErrorCategory = "timeout"
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryRemote        ErrorCategory = "remote"
	ErrorCategorySystem        ErrorCategory = "system"
)

// ToolError wraps a tool failure with its category and request id
type ToolError struct {
	Tool        string
	Category    ErrorCategory
	OriginalErr error
	RequestID   string
	Timestamp   time.Time
	Details     map[string]interface{}
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("[%s] %s (request: %s)", e.Category, e.OriginalErr.Error(), e.RequestID)
}

func (e *ToolError) Unwrap() error {
	return e.OriginalErr
}

func newToolError(tool string, category ErrorCategory, err error, requestID string, details map[string]interface{}) *ToolError {
	return &ToolError{
		Tool:        tool,
		Category:    category,
		OriginalErr: err,
		RequestID:   requestID,
		Timestamp:   time.Now(),
		Details:     details,
	}
}

// categorizeError maps engine error kinds to categories, falling back to the
// error text for transport failures
func categorizeError(err error) ErrorCategory {
	switch core.KindOf(err) {
	case core.KindInvalidInput:
		return ErrorCategoryValidation
	case core.KindInvalidThreshold:
		return ErrorCategoryThreshold
	case core.KindInvalidPattern:
		return ErrorCategoryPattern
	case core.KindNotFound:
		return ErrorCategoryNotFound
	case core.KindUnsupportedFramework:
		return ErrorCategoryUnsupported
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "too many requests"):
		return ErrorCategoryRateLimit
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return ErrorCategoryTimeout
	case strings.Contains(errStr, "connection") || strings.Contains(errStr, "broken pipe") || strings.Contains(errStr, "eof"):
		return ErrorCategoryNetwork
	case strings.Contains(errStr, "invalid") || strings.Contains(errStr, "validation"):
		return ErrorCategoryValidation
	}
	return ErrorCategorySystem
}

// ErrorReporter writes one structured record per tool failure
type ErrorReporter struct {
	logger *slog.Logger
}

// NewErrorReporter creates a new error reporter
func NewErrorReporter(logger *slog.Logger) *ErrorReporter {
	return &ErrorReporter{logger: logger}
}

// ReportError logs err with its category metadata when it is a ToolError
func (r *ErrorReporter) ReportError(err error) {
	attrs := []any{"error", err.Error()}

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		attrs = append(attrs,
			"tool", toolErr.Tool,
			"category", string(toolErr.Category),
			"request_id", toolErr.RequestID,
			"timestamp", toolErr.Timestamp.UTC().Format(time.RFC3339),
		)
		for k, v := range toolErr.Details {
			attrs = append(attrs, k, v)
		}
	}

	r.logger.Error("tool call failed", attrs...)
}
