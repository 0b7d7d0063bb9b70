package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditLogLevel defines the verbosity of audit logging
type AuditLogLevel string

const (
	// AuditLogLevelMinimal logs only warnings and above
	AuditLogLevelMinimal AuditLogLevel = "minimal"

	// AuditLogLevelStandard logs every event with summary detail
	AuditLogLevelStandard AuditLogLevel = "standard"

	// AuditLogLevelVerbose logs every event including finding counts and frameworks
	AuditLogLevelVerbose AuditLogLevel = "verbose"
)

// AuditLogSeverity defines the severity of audit log events
type AuditLogSeverity string

const (
	// SeverityInfo for normal operations
	SeverityInfo AuditLogSeverity = "info"

	// SeverityWarning for elevated risk
	SeverityWarning AuditLogSeverity = "warning"

	// SeverityError for failures
	SeverityError AuditLogSeverity = "error"

	// SeverityCritical for critical risk assessments
	SeverityCritical AuditLogSeverity = "critical"
)

// AuditEntry is one JSONL line of the compliance audit trail
type AuditEntry struct {
	EventID   string           `json:"event_id"`
	Timestamp string           `json:"timestamp"`
	EventType string           `json:"event_type"`
	Source    string           `json:"source"`
	Severity  AuditLogSeverity `json:"severity"`

	// Assessment fields
	AssessmentID   string         `json:"assessment_id,omitempty"`
	RiskScore      *int           `json:"risk_score,omitempty"`
	RiskLevel      RiskLevel      `json:"risk_level,omitempty"`
	ViolationCount int            `json:"violation_count,omitempty"`
	Frameworks     []Framework    `json:"frameworks,omitempty"`
	FindingCounts  map[string]int `json:"finding_counts,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// AuditConfig configures a file-backed audit logger
type AuditConfig struct {
	Path          string        `yaml:"path" validate:"required"`
	Level         AuditLogLevel `yaml:"level" validate:"omitempty,oneof=minimal standard verbose"`
	RotationBytes int64         `yaml:"rotation_bytes" validate:"gte=0"`
	RetentionDays int           `yaml:"retention_days" validate:"gte=0"`
}

// Audit defaults
const (
	DefaultAuditRotationBytes = 100 * 1024 * 1024
	DefaultAuditRetentionDays = 90
)

// AuditLogger appends audit entries as JSON lines, rotating the file by size
type AuditLogger struct {
	mu           sync.Mutex
	logPath      string
	level        AuditLogLevel
	writer       io.Writer
	file         *os.File
	rotationSize int64
	currentSize  int64
	logRetention int
	now          func() time.Time
}

// NewAuditLogger opens (or creates) the audit file described by cfg
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	if err := validateStruct("NewAuditLogger", cfg); err != nil {
		return nil, err
	}
	l := &AuditLogger{
		logPath:      cfg.Path,
		level:        cfg.Level,
		rotationSize: cfg.RotationBytes,
		logRetention: cfg.RetentionDays,
		now:          time.Now,
	}
	if l.level == "" {
		l.level = AuditLogLevelStandard
	}
	if l.rotationSize == 0 {
		l.rotationSize = DefaultAuditRotationBytes
	}
	if l.logRetention == 0 {
		l.logRetention = DefaultAuditRetentionDays
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

// NewAuditLoggerWithWriter creates an audit logger writing to w without rotation
func NewAuditLoggerWithWriter(w io.Writer, level AuditLogLevel) *AuditLogger {
	if level == "" {
		level = AuditLogLevelStandard
	}
	return &AuditLogger{writer: w, level: level, now: time.Now}
}

// open the log file for appending
func (l *AuditLogger) open() error {
	dir := filepath.Dir(l.logPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat audit log: %w", err)
	}

	l.currentSize = info.Size()
	l.file = f
	l.writer = f
	return nil
}

// maybeRotate renames the current file once it reaches the rotation size
func (l *AuditLogger) maybeRotate() error {
	if l.file == nil || l.currentSize < l.rotationSize {
		return nil
	}

	l.file.Close()
	rotatedPath := fmt.Sprintf("%s.%s", l.logPath, l.now().Format("20060102-150405.000000000"))
	if err := os.Rename(l.logPath, rotatedPath); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	l.cleanupOldLogs()
	return l.open()
}

// cleanupOldLogs removes rotated files older than the retention period
func (l *AuditLogger) cleanupOldLogs() {
	cutoff := l.now().AddDate(0, 0, -l.logRetention)

	files, err := filepath.Glob(l.logPath + ".*")
	if err != nil {
		return
	}
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(file)
		}
	}
}

// LogEvent writes one entry, applying level filtering
func (l *AuditLogger) LogEvent(entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.level == AuditLogLevelMinimal && entry.Severity == SeverityInfo {
		return nil
	}

	if err := l.maybeRotate(); err != nil {
		return err
	}

	if entry.Timestamp == "" {
		entry.Timestamp = l.now().UTC().Format(time.RFC3339Nano)
	}
	if entry.EventID == "" {
		entry.EventID = uuid.NewString()
	}
	if entry.Severity == "" {
		entry.Severity = SeverityInfo
	}

	if l.level != AuditLogLevelVerbose {
		entry.FindingCounts = nil
		entry.Frameworks = nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	n, err := fmt.Fprintln(l.writer, string(line))
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	l.currentSize += int64(n)
	return nil
}

// Close closes the underlying file, if any
func (l *AuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// severityForLevel maps an assessment risk level onto an audit severity
func severityForLevel(level RiskLevel) AuditLogSeverity {
	switch level {
	case RiskCritical:
		return SeverityCritical
	case RiskHigh:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// AssessmentSubscriber returns an event subscriber recording completed assessments
func (l *AuditLogger) AssessmentSubscriber() Subscriber {
	return func(ev AssessmentCompletedEvent) error {
		score := ev.Score
		return l.LogEvent(AuditEntry{
			Timestamp:      ev.CompletedAt.UTC().Format(time.RFC3339Nano),
			EventType:      "assessment_completed",
			Source:         ev.EntryPoint,
			Severity:       severityForLevel(ev.Level),
			AssessmentID:   ev.AssessmentID,
			RiskScore:      &score,
			RiskLevel:      ev.Level,
			ViolationCount: ev.ViolationCount,
			Frameworks:     ev.Frameworks,
			FindingCounts:  ev.FindingCounts,
			Metadata: map[string]string{
				"duration_ms": fmt.Sprintf("%d", ev.Duration.Milliseconds()),
			},
		})
	}
}

// PatternObserver returns a pattern registry observer recording pattern mutations
func (l *AuditLogger) PatternObserver() func(PatternEvent) {
	return func(ev PatternEvent) {
		_ = l.LogEvent(AuditEntry{
			EventType: ev.Action,
			Source:    "pattern_registry",
			Severity:  SeverityInfo,
			Metadata: map[string]string{
				"pattern_id":   ev.Pattern.ID,
				"pattern_name": ev.Pattern.Name,
				"pack":         ev.Pattern.Pack,
			},
		})
	}
}
