package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.5, cfg.ConfidenceThreshold)
	assert.Equal(t, 10, cfg.QuickScanRecords)
	assert.Equal(t, []Framework{FrameworkGeneral}, cfg.DefaultFrameworks)
	assert.False(t, cfg.Audit.Enabled())
}

// TestLoadConfigFromFile demonstrates YAML loading over the defaults
func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_engine.yaml")
	content := `
confidence_threshold: 0.7
quick_scan_records: 25
default_frameworks: [GDPR, GENERAL]
audit:
  path: /tmp/csp-risk/audit.jsonl
  level: verbose
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.ConfidenceThreshold)
	assert.Equal(t, 25, cfg.QuickScanRecords)
	assert.Equal(t, []Framework{FrameworkGDPR, FrameworkGeneral}, cfg.DefaultFrameworks)
	assert.Equal(t, AuditLogLevelVerbose, cfg.Audit.Level)
	assert.Equal(t, int64(DefaultAuditRotationBytes), cfg.Audit.RotationBytes)
	assert.True(t, cfg.Audit.Enabled())
	assert.Equal(t, "/tmp/csp-risk/audit.jsonl", cfg.Audit.AuditConfig().Path)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quick_scan_records: 0\n"), 0644))
	_, err = LoadConfig(path)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	require.NoError(t, os.WriteFile(path, []byte("default_frameworks: [SOX]\n"), 0644))
	_, err = LoadConfig(path)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		EnvConfidenceThreshold: "0.8",
		EnvQuickScanRecords:    "50",
		EnvAuditLog:            "/var/log/csp-risk.jsonl",
		EnvAuditLevel:          "MINIMAL",
		EnvPatternPack:         "/etc/csp-risk/patterns.yaml",
		EnvDefaultFrameworks:   "hipaa, pci-dss,",
	}))
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.ConfidenceThreshold)
	assert.Equal(t, 50, cfg.QuickScanRecords)
	assert.Equal(t, "/var/log/csp-risk.jsonl", cfg.Audit.Path)
	assert.Equal(t, AuditLogLevelMinimal, cfg.Audit.Level)
	assert.Equal(t, "/etc/csp-risk/patterns.yaml", cfg.PatternPackPath)
	assert.Equal(t, []Framework{FrameworkHIPAA, FrameworkPCIDSS}, cfg.DefaultFrameworks)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsMalformedValues(t *testing.T) {
	err := DefaultConfig().ApplyEnv(lookupFrom(map[string]string{EnvConfidenceThreshold: "high"}))
	assert.Equal(t, KindInvalidInput, KindOf(err))

	err = DefaultConfig().ApplyEnv(lookupFrom(map[string]string{EnvQuickScanRecords: "ten"}))
	assert.Equal(t, KindInvalidInput, KindOf(err))

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookupFrom(map[string]string{EnvConfidenceThreshold: "1.5"})))
	assert.Equal(t, KindInvalidThreshold, KindOf(cfg.Validate()))

	cfg = DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(lookupFrom(map[string]string{EnvAuditLevel: "chatty"})))
	assert.Equal(t, KindInvalidInput, KindOf(cfg.Validate()))
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv(EnvConfidenceThreshold, "0.9")
	t.Setenv(EnvDefaultFrameworks, "GDPR")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.ConfidenceThreshold)
	assert.Equal(t, []Framework{FrameworkGDPR}, cfg.DefaultFrameworks)
}
