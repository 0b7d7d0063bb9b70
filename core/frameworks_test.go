package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetRuleReturnsCopies demonstrates that callers cannot mutate the registry
func TestGetRuleReturnsCopies(t *testing.T) {
	r := DefaultFrameworkRegistry()

	first, err := r.GetRule(FrameworkHIPAA)
	require.NoError(t, err)
	first.ApplicablePIITypes[0] = "mutated"
	*first.RetentionPeriodDays = 1

	second, err := r.GetRule(FrameworkHIPAA)
	require.NoError(t, err)
	assert.Equal(t, "ssn", second.ApplicablePIITypes[0])
	assert.Equal(t, 2555, *second.RetentionPeriodDays)
	assert.True(t, second.EncryptionRequired)
}

func TestGetRuleErrors(t *testing.T) {
	r := DefaultFrameworkRegistry()

	_, err := r.GetRule(FrameworkCustom)
	assert.Equal(t, KindUnsupportedFramework, KindOf(err))
	assert.True(t, errors.Is(err, ErrUnsupportedFramework))

	_, err = r.GetRule(Framework("SOX"))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestBuiltInRules(t *testing.T) {
	r := DefaultFrameworkRegistry()

	assert.Equal(t, []Framework{FrameworkGDPR, FrameworkGeneral, FrameworkHIPAA, FrameworkPCIDSS}, r.Frameworks())
	assert.False(t, r.Has(FrameworkCustom))

	pci, err := r.GetRule(FrameworkPCIDSS)
	require.NoError(t, err)
	assert.True(t, pci.AppliesTo("credit_card"))
	assert.False(t, pci.AppliesTo("email"))
	assert.Equal(t, 365, *pci.RetentionPeriodDays)

	gdpr, err := r.GetRule(FrameworkGDPR)
	require.NoError(t, err)
	assert.True(t, gdpr.LawfulBasisRequired)
	assert.Nil(t, gdpr.RetentionPeriodDays)
}

func TestCustomFrameworkDefinition(t *testing.T) {
	custom := FrameworkDefinition{Rule: FrameworkRule{
		Framework:          FrameworkCustom,
		ApplicablePIITypes: []string{"employee_id"},
	}}
	r := NewFrameworkRegistry(append(DefaultFrameworkDefinitions(), custom)...)

	rule, err := r.GetRule(FrameworkCustom)
	require.NoError(t, err)
	assert.True(t, rule.AppliesTo("employee_id"))
}

func TestParseFramework(t *testing.T) {
	tests := map[string]Framework{
		"hipaa":   FrameworkHIPAA,
		"pci-dss": FrameworkPCIDSS,
		"PCI":     FrameworkPCIDSS,
		" gdpr ":  FrameworkGDPR,
		"general": FrameworkGeneral,
		"sox":     Framework("SOX"),
	}
	for in, want := range tests {
		got, err := ParseFramework(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFramework("  ")
	assert.Equal(t, KindInvalidInput, KindOf(err))
}
