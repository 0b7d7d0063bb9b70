package core

import (
	"math"
	"strings"

	"github.com/SamuelRCrider/csp-risk/utils"
)

// Composite sub-score weights of the comprehensive assessment
const (
	WeightDataRisk       = 0.35
	WeightComplianceRisk = 0.30
	WeightGeographicRisk = 0.20
	WeightProcessingRisk = 0.15
)

// Risk level thresholds on the 0-100 scale
const (
	ThresholdCritical = 80
	ThresholdHigh     = 60
	ThresholdMedium   = 40
)

// WeightedScore is one input of CalculateRiskScore
type WeightedScore struct {
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"`
}

// clampScore bounds a score to [0,100]
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// RiskLevelForScore maps a score onto the fixed 40/60/80 step function
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= ThresholdCritical:
		return RiskCritical
	case score >= ThresholdHigh:
		return RiskHigh
	case score >= ThresholdMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// CalculateRiskScore returns round(sum(w*s) / sum(w)) clamped to [0,100].
// An empty list or a non-positive total weight yields 0.
func CalculateRiskScore(factors []WeightedScore) int {
	var weighted, total float64
	for _, f := range factors {
		if math.IsNaN(f.Weight) || math.IsNaN(f.Score) || math.IsInf(f.Weight, 0) || math.IsInf(f.Score, 0) {
			continue
		}
		weighted += f.Weight * f.Score
		total += f.Weight
	}
	if total <= 0 {
		return 0
	}
	return clampScore(int(math.Round(weighted / total)))
}

// CompositeScore combines the four sub-scores with the fixed composite weights
func CompositeScore(s SubScores) int {
	raw := WeightDataRisk*float64(s.DataRisk) +
		WeightComplianceRisk*float64(s.ComplianceRisk) +
		WeightGeographicRisk*float64(s.GeographicRisk) +
		WeightProcessingRisk*float64(s.ProcessingRisk)
	return clampScore(int(math.Round(raw)))
}

// storagePenalty is the processing-risk contribution of each storage mode
var storagePenalty = map[StorageMode]int{
	StorageCloud:     15,
	StorageHybrid:    10,
	StorageOnPremise: 0,
}

// purposePenalty is matched case-insensitively against the processing purpose
var purposePenalty = map[string]int{
	"marketing": 10,
	"research":  5,
}

// ProcessingRisk scores how the data is handled
func ProcessingRisk(pc ProcessingContext) int {
	score := storagePenalty[pc.StorageMode]
	if !pc.EncryptionEnabled {
		score += 25
	}
	if !pc.AccessControlsEnabled {
		score += 20
	}
	score += purposePenalty[strings.ToLower(strings.TrimSpace(pc.ProcessingPurpose))]
	return clampScore(score)
}

// DataRisk scores the findings themselves: 25 per critical finding, 15 per
// sensitive finding plus a record-volume bonus
func DataRisk(findings []utils.Finding, recordCount int) int {
	score := 0
	for _, f := range findings {
		switch {
		case criticalFindingTypes[f.Type]:
			score += 25
		case sensitiveFindingTypes[f.Type]:
			score += 15
		}
	}
	switch {
	case recordCount >= 100000:
		score += 20
	case recordCount >= 10000:
		score += 15
	case recordCount >= 1000:
		score += 10
	}
	return clampScore(score)
}

// ComplianceRisk averages min(50, 10*applicable findings) over the frameworks.
// Frameworks without a registered rule are skipped; no frameworks yields 0.
func ComplianceRisk(findings []utils.Finding, frameworks []Framework, registry *FrameworkRegistry) int {
	total, counted := 0, 0
	for _, f := range dedupeFrameworks(frameworks) {
		rule, err := registry.GetRule(f)
		if err != nil {
			continue
		}
		applicable := 0
		for _, finding := range findings {
			if rule.AppliesTo(finding.Type) {
				applicable++
			}
		}
		total += min(50, applicable*10)
		counted++
	}
	if counted == 0 {
		return 0
	}
	return clampScore(int(math.Round(float64(total) / float64(counted))))
}
