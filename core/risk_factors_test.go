package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamuelRCrider/csp-risk/utils"
)

func TestRiskFactorCatalog(t *testing.T) {
	c := DefaultRiskFactorCatalog()

	factors := c.List()
	require.Len(t, factors, 9)
	for i := 1; i < len(factors); i++ {
		assert.Less(t, factors[i-1].ID, factors[i].ID)
	}
	for _, f := range factors {
		assert.True(t, f.Severity.IsValid(), f.ID)
		assert.NotEmpty(t, f.Mitigation, f.ID)
	}

	f, ok := c.Get(FactorCrossBorder)
	require.True(t, ok)
	f.Mitigation[0] = "mutated"
	again, _ := c.Get(FactorCrossBorder)
	assert.NotEqual(t, "mutated", again.Mitigation[0])

	_, ok = c.Get("nope")
	assert.False(t, ok)
}

func TestIdentifyRiskFactors(t *testing.T) {
	c := DefaultRiskFactorCatalog()
	findings := []utils.Finding{{Type: "ssn", FieldName: "ssn"}}

	worst := c.Identify(findings,
		ProcessingContext{StorageMode: StorageCloud, ProcessingPurpose: "marketing"},
		GeographicRiskAssessment{CrossBorderTransfer: true, DataLocalizationRequired: true},
		50000,
	)
	assert.Len(t, worst, 9)

	best := c.Identify(nil,
		ProcessingContext{StorageMode: StorageOnPremise, EncryptionEnabled: true, AccessControlsEnabled: true, ProcessingPurpose: "billing"},
		GeographicRiskAssessment{},
		50000,
	)
	assert.Empty(t, best)
	assert.NotNil(t, best)

	ids := func(fs []RiskFactor) []string {
		out := []string{}
		for _, f := range fs {
			out = append(out, f.ID)
		}
		return out
	}
	partial := c.Identify(findings,
		ProcessingContext{EncryptionEnabled: true, AccessControlsEnabled: true, LawfulBasis: "contract"},
		GeographicRiskAssessment{},
		10,
	)
	assert.Equal(t, []string{FactorCriticalDataTypes}, ids(partial))
}

func TestRiskLevelRank(t *testing.T) {
	assert.Less(t, RiskLow.Rank(), RiskMedium.Rank())
	assert.Less(t, RiskMedium.Rank(), RiskHigh.Rank())
	assert.Less(t, RiskHigh.Rank(), RiskCritical.Rank())
	assert.False(t, RiskLevel("severe").IsValid())
}
