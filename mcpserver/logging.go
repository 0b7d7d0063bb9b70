package mcpserver

import (
	"log/slog"
	"strings"
	"time"
)

// redactedKeys are argument names whose values never reach the request log
var redactedKeys = []string{"api_key", "auth_token", "password", "secret", "token"}

func auditRank(level string) int {
	switch level {
	case AuditLevelMinimal:
		return 0
	case AuditLevelVerbose:
		return 2
	default:
		return 1
	}
}

// RequestLogger records tool requests and responses at the configured audit level
type RequestLogger struct {
	logger     *slog.Logger
	auditLevel string
}

// NewRequestLogger creates a new request logger
func NewRequestLogger(logger *slog.Logger, auditLevel string) *RequestLogger {
	return &RequestLogger{
		logger:     logger,
		auditLevel: auditLevel,
	}
}

func (l *RequestLogger) enabled(level string) bool {
	return auditRank(level) <= auditRank(l.auditLevel)
}

// LogRequest logs a tool request when level is within the audit level.
// Secret-looking keys are redacted.
func (l *RequestLogger) LogRequest(requestID, tool string, request map[string]interface{}, level string) {
	if !l.enabled(level) {
		return
	}
	l.logger.Info("tool request",
		"request_id", requestID,
		"tool", tool,
		"level", level,
		"data", redact(request))
}

// LogResponse logs a tool response. At the minimal audit level only the
// request id and duration are recorded.
func (l *RequestLogger) LogResponse(requestID, tool string, response map[string]interface{}, duration time.Duration, level string) {
	if l.auditLevel == AuditLevelMinimal {
		l.logger.Info("tool completed",
			"request_id", requestID,
			"tool", tool,
			"duration_ms", duration.Milliseconds())
		return
	}
	if !l.enabled(level) {
		return
	}
	l.logger.Info("tool response",
		"request_id", requestID,
		"tool", tool,
		"level", level,
		"duration_ms", duration.Milliseconds(),
		"data", redact(response))
}

func redact(data map[string]interface{}) map[string]interface{} {
	safe := make(map[string]interface{}, len(data))
	for k, v := range data {
		if isSecretKey(k) {
			safe[k] = "[REDACTED]"
			continue
		}
		safe[k] = v
	}
	return safe
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, secret := range redactedKeys {
		if key == secret || strings.HasSuffix(key, "_"+secret) {
			return true
		}
	}
	return false
}
