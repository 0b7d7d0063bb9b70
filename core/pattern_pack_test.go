package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPatternPackBuilder demonstrates building a pack with the fluent API
func TestPatternPackBuilder(t *testing.T) {
	pack, err := NewPatternPackBuilder("hr").
		WithMetadata("1.2.0", "HR identifiers", "security").
		WithFrameworks(FrameworkGeneral).
		AddPattern("employee_id", `EMP-\d{6}`, 0.9).
		ConfigureLastPattern().
		WithPriority(10).
		WithRiskLevel(RiskHigh).
		WithDescription("Badge numbers").
		Done().
		AddPattern("payroll_ref", `PAY-\d{4}`, 0.6).
		ConfigureLastPattern().
		WithFindingType("bank_account").
		WithFrameworks(FrameworkPCIDSS).
		Disabled().
		Done().
		Build()
	require.NoError(t, err)

	assert.Equal(t, "hr", pack.Metadata.Name)
	assert.Equal(t, "1.2.0", pack.Metadata.Version)
	require.Len(t, pack.Patterns, 2)
	assert.Equal(t, 10, pack.Patterns[0].Priority)
	assert.Equal(t, RiskHigh, pack.Patterns[0].RiskLevel)
	assert.True(t, pack.Patterns[0].Enabled)
	assert.False(t, pack.Patterns[1].Enabled)
	assert.Equal(t, "bank_account", pack.Patterns[1].FindingType)
}

func TestPatternPackBuilderValidation(t *testing.T) {
	_, err := NewPatternPackBuilder("hr").WithMetadata("not-a-version", "", "").Build()
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = NewPatternPackBuilder("").WithMetadata("1.0.0", "", "").Build()
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = NewPatternPackBuilder("hr").WithMetadata("1.0.0", "", "").ConfigureLastPattern().Done().Build()
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestSaveAndLoadPatternPack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")

	pack := GenerateDefaultPatternPack()
	require.NoError(t, SavePatternPack(pack, path))

	loaded, err := LoadPatternPack(path)
	require.NoError(t, err)
	assert.Equal(t, "default", loaded.Metadata.Name)
	assert.Len(t, loaded.Patterns, 3)
	assert.Len(t, loaded.Metadata.Hash, 64)
	assert.Empty(t, loaded.Patterns[0].Pack)

	_, err = LoadPatternPack(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParsePatternPackRejectsMalformed(t *testing.T) {
	_, err := ParsePatternPack([]byte("metadata: [unclosed"))
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = ParsePatternPack([]byte("metadata:\n  name: x\n  version: 1.0.0\npatterns:\n  - name: ''\n    pattern: a\n"))
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestBuilderSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "built.yaml")
	err := NewPatternPackBuilder("ops").
		WithMetadata("0.1.0", "", "").
		AddPattern("host", `srv-\d+`, 0.7).
		SaveToFile(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "srv-")
}

// TestImportPackReplacesPreviousVersion demonstrates pack upgrades and rollback protection
func TestImportPackReplacesPreviousVersion(t *testing.T) {
	r := newTestPatternRegistry()

	v1, err := NewPatternPackBuilder("hr").
		WithMetadata("1.0.0", "", "").
		AddPattern("employee_id", `EMP-\d{6}`, 0.9).
		AddPattern("badge", `B\d{4}`, 0.9).
		Build()
	require.NoError(t, err)

	ids, err := r.ImportPack(v1)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	_, err = r.Add(CustomPattern{Name: "manual", Pattern: "m", Confidence: 0.9})
	require.NoError(t, err)

	v2, err := NewPatternPackBuilder("hr").
		WithMetadata("1.1.0", "", "").
		AddPattern("employee_id", `EMP-\d{8}`, 0.95).
		Build()
	require.NoError(t, err)

	ids, err = r.ImportPack(v2)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	patterns := r.List()
	require.Len(t, patterns, 2)
	packs := map[string]string{}
	for _, p := range patterns {
		packs[p.Name] = p.Pack
	}
	assert.Equal(t, map[string]string{"employee_id": "hr", "manual": ""}, packs)

	version, ok := r.PackVersion("hr")
	require.True(t, ok)
	assert.Equal(t, "1.1.0", version.String())

	_, err = r.ImportPack(v1)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Len(t, r.List(), 2)
}

func TestImportPackIsAllOrNothing(t *testing.T) {
	r := newTestPatternRegistry()

	pack := &PatternPack{
		Metadata: PackMetadata{Name: "bad", Version: "1.0.0"},
		Patterns: []CustomPattern{
			{Name: "ok", Pattern: "a", Confidence: 0.9},
			{Name: "broken", Pattern: "[invalid", Confidence: 0.9},
		},
	}
	_, err := r.ImportPack(pack)
	assert.Equal(t, KindInvalidPattern, KindOf(err))
	assert.Empty(t, r.List())

	_, ok := r.PackVersion("bad")
	assert.False(t, ok)

	_, err = r.ImportPack(nil)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}
