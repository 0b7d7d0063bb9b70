package core

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/SamuelRCrider/csp-risk/utils"
)

func TestCalculateRiskScoreWeightedAverage(t *testing.T) {
	score := CalculateRiskScore([]WeightedScore{
		{Weight: 0.5, Score: 80},
		{Weight: 0.3, Score: 60},
		{Weight: 0.2, Score: 40},
	})
	assert.Equal(t, 66, score)
}

func TestCalculateRiskScoreDegenerateInputs(t *testing.T) {
	assert.Equal(t, 0, CalculateRiskScore(nil))
	assert.Equal(t, 0, CalculateRiskScore([]WeightedScore{}))
	assert.Equal(t, 0, CalculateRiskScore([]WeightedScore{{Weight: 0, Score: 90}}))
	assert.Equal(t, 100, CalculateRiskScore([]WeightedScore{{Weight: 1, Score: 250}}))
}

func TestRiskLevelForScoreThresholds(t *testing.T) {
	cases := map[int]RiskLevel{
		0:   RiskLow,
		39:  RiskLow,
		40:  RiskMedium,
		59:  RiskMedium,
		60:  RiskHigh,
		79:  RiskHigh,
		80:  RiskCritical,
		100: RiskCritical,
	}
	for score, want := range cases {
		assert.Equal(t, want, RiskLevelForScore(score), "score %d", score)
	}
}

func TestCompositeScoreWeights(t *testing.T) {
	// 0.35*100 + 0.30*50 + 0.20*40 + 0.15*60 = 35 + 15 + 8 + 9
	score := CompositeScore(SubScores{DataRisk: 100, ComplianceRisk: 50, GeographicRisk: 40, ProcessingRisk: 60})
	assert.Equal(t, 67, score)
	assert.Equal(t, 0, CompositeScore(SubScores{}))
	assert.Equal(t, 100, CompositeScore(SubScores{DataRisk: 100, ComplianceRisk: 100, GeographicRisk: 100, ProcessingRisk: 100}))
}

func TestProcessingRisk(t *testing.T) {
	worst := ProcessingContext{StorageMode: StorageCloud, ProcessingPurpose: "Marketing"}
	assert.Equal(t, 70, ProcessingRisk(worst))

	hybridResearch := ProcessingContext{StorageMode: StorageHybrid, EncryptionEnabled: true, ProcessingPurpose: "research"}
	assert.Equal(t, 35, ProcessingRisk(hybridResearch))

	best := ProcessingContext{StorageMode: StorageOnPremise, EncryptionEnabled: true, AccessControlsEnabled: true, ProcessingPurpose: "billing"}
	assert.Equal(t, 0, ProcessingRisk(best))
}

func TestDataRisk(t *testing.T) {
	findings := []utils.Finding{
		{Type: "ssn"},
		{Type: "email"},
		{Type: "zip"},
	}
	assert.Equal(t, 40, DataRisk(findings, 10))
	assert.Equal(t, 50, DataRisk(findings, 1000))
	assert.Equal(t, 55, DataRisk(findings, 10000))
	assert.Equal(t, 60, DataRisk(findings, 100000))

	many := make([]utils.Finding, 10)
	for i := range many {
		many[i] = utils.Finding{Type: "credit_card"}
	}
	assert.Equal(t, 100, DataRisk(many, 0))
}

func TestComplianceRisk(t *testing.T) {
	registry := DefaultFrameworkRegistry()
	findings := []utils.Finding{
		{Type: "credit_card"},
		{Type: "credit_card"},
		{Type: "email"},
	}

	// PCI: 2 applicable -> 20; GENERAL: 3 applicable -> 30; average 25
	assert.Equal(t, 25, ComplianceRisk(findings, []Framework{FrameworkPCIDSS, FrameworkGeneral}, registry))
	assert.Equal(t, 0, ComplianceRisk(findings, nil, registry))

	many := make([]utils.Finding, 8)
	for i := range many {
		many[i] = utils.Finding{Type: "email"}
	}
	assert.Equal(t, 50, ComplianceRisk(many, []Framework{FrameworkGDPR}, registry))
}

// TestScoreBoundsProperty verifies every sub-score and the composite stay in [0,100]
func TestScoreBoundsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	types := []string{"ssn", "email", "credit_card", "phone", "passport", "zip", "medical_record_number"}

	properties.Property("scores are clamped to [0,100]", prop.ForAll(
		func(typeIdx []int, records int, encrypted, access bool) bool {
			findings := make([]utils.Finding, 0, len(typeIdx))
			for _, i := range typeIdx {
				findings = append(findings, utils.Finding{Type: types[i]})
			}
			pc := ProcessingContext{
				StorageMode:           StorageCloud,
				EncryptionEnabled:     encrypted,
				AccessControlsEnabled: access,
				ProcessingPurpose:     "marketing",
			}
			sub := SubScores{
				DataRisk:       DataRisk(findings, records),
				ComplianceRisk: ComplianceRisk(findings, []Framework{FrameworkHIPAA, FrameworkGDPR, FrameworkGeneral}, DefaultFrameworkRegistry()),
				GeographicRisk: NewGeographicAssessor(nil).AssessJurisdictions([]string{"US", "EU", "CN"}).RiskScore,
				ProcessingRisk: ProcessingRisk(pc),
			}
			overall := CompositeScore(sub)
			for _, s := range []int{sub.DataRisk, sub.ComplianceRisk, sub.GeographicRisk, sub.ProcessingRisk, overall} {
				if s < 0 || s > 100 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(types)-1)),
		gen.IntRange(0, 1000000),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("weighted average stays within [0,100]", prop.ForAll(
		func(weights []float64, scores []float64) bool {
			factors := make([]WeightedScore, 0, len(weights))
			for i := 0; i < len(weights) && i < len(scores); i++ {
				factors = append(factors, WeightedScore{Weight: weights[i], Score: scores[i]})
			}
			s := CalculateRiskScore(factors)
			return s >= 0 && s <= 100
		},
		gen.SliceOf(gen.Float64Range(0, 1)),
		gen.SliceOf(gen.Float64Range(0, 100)),
	))

	properties.TestingRun(t)
}

// TestRiskLevelMonotonicProperty verifies the level never decreases as the score grows
func TestRiskLevelMonotonicProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("level is non-decreasing in score", prop.ForAll(
		func(a, b int) bool {
			if a > b {
				a, b = b, a
			}
			return RiskLevelForScore(a).Rank() <= RiskLevelForScore(b).Rank()
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
