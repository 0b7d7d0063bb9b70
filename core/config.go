package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding file configuration
const (
	EnvConfidenceThreshold = "CSP_RISK_CONFIDENCE_THRESHOLD"
	EnvQuickScanRecords    = "CSP_RISK_QUICK_SCAN_RECORDS"
	EnvAuditLog            = "CSP_RISK_AUDIT_LOG"
	EnvAuditLevel          = "CSP_RISK_AUDIT_LEVEL"
	EnvPatternPack         = "CSP_RISK_PATTERN_PACK"
	EnvDefaultFrameworks   = "CSP_RISK_DEFAULT_FRAMEWORKS"
)

// Config holds engine configuration
type Config struct {
	// Minimum confidence of custom patterns applied during scans
	ConfidenceThreshold float64 `yaml:"confidence_threshold" validate:"gte=0,lte=1"`

	// Number of records inspected by the quick scan of raw datasets
	QuickScanRecords int `yaml:"quick_scan_records" validate:"gte=1,lte=10000"`

	// Frameworks evaluated when a comprehensive assessment names none
	DefaultFrameworks []Framework `yaml:"default_frameworks" validate:"dive,required"`

	// Maximum number of assessments kept in history (0 keeps all)
	HistoryLimit int `yaml:"history_limit" validate:"gte=0"`

	// Compliance audit trail; disabled when the path is empty
	Audit AuditSettings `yaml:"audit"`

	// Optional pattern pack imported at startup
	PatternPackPath string `yaml:"pattern_pack"`
}

// AuditSettings is the audit section of the engine configuration
type AuditSettings struct {
	Path          string        `yaml:"path"`
	Level         AuditLogLevel `yaml:"level" validate:"omitempty,oneof=minimal standard verbose"`
	RotationBytes int64         `yaml:"rotation_bytes" validate:"gte=0"`
	RetentionDays int           `yaml:"retention_days" validate:"gte=0"`
}

// Enabled reports whether an audit path is configured
func (a AuditSettings) Enabled() bool {
	return a.Path != ""
}

// AuditConfig converts the settings into a logger configuration
func (a AuditSettings) AuditConfig() AuditConfig {
	return AuditConfig{
		Path:          a.Path,
		Level:         a.Level,
		RotationBytes: a.RotationBytes,
		RetentionDays: a.RetentionDays,
	}
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		QuickScanRecords:    DefaultQuickScanRecords,
		DefaultFrameworks:   []Framework{FrameworkGeneral},
		HistoryLimit:        10000,
		Audit: AuditSettings{
			Level:         AuditLogLevelStandard,
			RotationBytes: DefaultAuditRotationBytes,
			RetentionDays: DefaultAuditRetentionDays,
		},
	}
}

// LoadConfig reads a YAML configuration file over the defaults, applies
// environment overrides and validates the result. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	const op = "LoadConfig"

	if v, ok := lookup(EnvConfidenceThreshold); ok && v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return newRiskError(op, KindInvalidInput, "%s=%q is not a number", EnvConfidenceThreshold, v)
		}
		c.ConfidenceThreshold = t
	}

	if v, ok := lookup(EnvQuickScanRecords); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return newRiskError(op, KindInvalidInput, "%s=%q is not an integer", EnvQuickScanRecords, v)
		}
		c.QuickScanRecords = n
	}

	if v, ok := lookup(EnvAuditLog); ok {
		c.Audit.Path = v
	}

	if v, ok := lookup(EnvAuditLevel); ok && v != "" {
		c.Audit.Level = AuditLogLevel(strings.ToLower(v))
	}

	if v, ok := lookup(EnvPatternPack); ok {
		c.PatternPackPath = v
	}

	if v, ok := lookup(EnvDefaultFrameworks); ok && v != "" {
		frameworks := []Framework{}
		for _, name := range strings.Split(v, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			f, err := ParseFramework(name)
			if err != nil {
				return err
			}
			frameworks = append(frameworks, f)
		}
		c.DefaultFrameworks = frameworks
	}

	return nil
}

// Validate checks field ranges and that default frameworks are known
func (c *Config) Validate() error {
	const op = "ValidateConfig"

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return newRiskError(op, KindInvalidThreshold, "confidence_threshold %v outside [0,1]", c.ConfidenceThreshold)
	}
	if err := validateStruct(op, c); err != nil {
		return err
	}
	for _, f := range c.DefaultFrameworks {
		if !knownFrameworks[f] {
			return newRiskError(op, KindNotFound, "unknown default framework %q", f)
		}
	}
	return nil
}
