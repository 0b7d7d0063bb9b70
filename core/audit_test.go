package core

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAuditLines(t *testing.T, data string) []AuditEntry {
	t.Helper()
	var entries []AuditEntry
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var entry AuditEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestAuditLoggerFillsDefaults(t *testing.T) {
	var buf bytes.Buffer
	l := NewAuditLoggerWithWriter(&buf, "")

	require.NoError(t, l.LogEvent(AuditEntry{EventType: "custom", Source: "test"}))

	entries := decodeAuditLines(t, buf.String())
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].EventID)
	assert.NotEmpty(t, entries[0].Timestamp)
	assert.Equal(t, SeverityInfo, entries[0].Severity)
}

// TestAuditLoggerLevels demonstrates level filtering and detail stripping
func TestAuditLoggerLevels(t *testing.T) {
	ev := AssessmentCompletedEvent{
		AssessmentID:  "a-1",
		EntryPoint:    EntryComprehensive,
		Score:         85,
		Level:         RiskCritical,
		Frameworks:    []Framework{FrameworkHIPAA},
		FindingCounts: map[string]int{"ssn": 2},
		CompletedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:      1500 * time.Millisecond,
	}
	lowRisk := ev
	lowRisk.AssessmentID = "a-2"
	lowRisk.Level = RiskLow

	t.Run("minimal drops info events", func(t *testing.T) {
		var buf bytes.Buffer
		sub := NewAuditLoggerWithWriter(&buf, AuditLogLevelMinimal).AssessmentSubscriber()
		require.NoError(t, sub(ev))
		require.NoError(t, sub(lowRisk))

		entries := decodeAuditLines(t, buf.String())
		require.Len(t, entries, 1)
		assert.Equal(t, "a-1", entries[0].AssessmentID)
		assert.Equal(t, SeverityCritical, entries[0].Severity)
	})

	t.Run("standard strips detail", func(t *testing.T) {
		var buf bytes.Buffer
		sub := NewAuditLoggerWithWriter(&buf, AuditLogLevelStandard).AssessmentSubscriber()
		require.NoError(t, sub(ev))

		entries := decodeAuditLines(t, buf.String())
		require.Len(t, entries, 1)
		assert.Nil(t, entries[0].FindingCounts)
		assert.Nil(t, entries[0].Frameworks)
		assert.Equal(t, "1500", entries[0].Metadata["duration_ms"])
		assert.Equal(t, "2026-01-01T00:00:00Z", entries[0].Timestamp)
	})

	t.Run("verbose keeps detail", func(t *testing.T) {
		var buf bytes.Buffer
		sub := NewAuditLoggerWithWriter(&buf, AuditLogLevelVerbose).AssessmentSubscriber()
		require.NoError(t, sub(ev))

		entries := decodeAuditLines(t, buf.String())
		require.Len(t, entries, 1)
		assert.Equal(t, map[string]int{"ssn": 2}, entries[0].FindingCounts)
		assert.Equal(t, []Framework{FrameworkHIPAA}, entries[0].Frameworks)
	})
}

func TestAuditLoggerFileRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	l, err := NewAuditLogger(AuditConfig{Path: path, RotationBytes: 200})
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.LogEvent(AuditEntry{EventType: "custom", Source: "rotation-test"}))
	}

	rotated, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.NotEmpty(t, rotated)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rotation-test")
}

func TestNewAuditLoggerRequiresPath(t *testing.T) {
	_, err := NewAuditLogger(AuditConfig{})
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = NewAuditLogger(AuditConfig{Path: filepath.Join(t.TempDir(), "a.jsonl"), Level: "loud"})
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestPatternObserver(t *testing.T) {
	var buf bytes.Buffer
	observe := NewAuditLoggerWithWriter(&buf, AuditLogLevelStandard).PatternObserver()

	observe(PatternEvent{Action: PatternRemoved, Pattern: CustomPattern{ID: "p-1", Name: "ticket", Pack: "ops"}})

	entries := decodeAuditLines(t, buf.String())
	require.Len(t, entries, 1)
	assert.Equal(t, PatternRemoved, entries[0].EventType)
	assert.Equal(t, "pattern_registry", entries[0].Source)
	assert.Equal(t, "ops", entries[0].Metadata["pack"])
}
