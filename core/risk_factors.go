package core

import (
	"sort"
	"strings"

	"github.com/SamuelRCrider/csp-risk/utils"
)

// RiskLevel is the discrete risk bucket shared by scores, factors and violations
type RiskLevel string

const (
	// RiskLow represents low risk
	RiskLow RiskLevel = "low"

	// RiskMedium represents medium risk
	RiskMedium RiskLevel = "medium"

	// RiskHigh represents high risk
	RiskHigh RiskLevel = "high"

	// RiskCritical represents critical risk
	RiskCritical RiskLevel = "critical"
)

// Rank orders risk levels from 1 (low) to 4 (critical); unknown levels rank 0
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// IsValid returns true if the level is one of the four known levels
func (r RiskLevel) IsValid() bool {
	return r.Rank() > 0
}

// FactorCategory groups risk factors
type FactorCategory string

const (
	FactorDataSensitivity FactorCategory = "data_sensitivity"
	FactorGeographic      FactorCategory = "geographic"
	FactorCompliance      FactorCategory = "compliance"
	FactorProcessing      FactorCategory = "processing"
	FactorStorage         FactorCategory = "storage"
)

// RiskFactor is a static catalog entry describing one source of risk
type RiskFactor struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Category   FactorCategory `json:"category" yaml:"category"`
	Severity   RiskLevel      `json:"severity" yaml:"severity"`
	Weight     float64        `json:"weight" yaml:"weight"`
	Mitigation []string       `json:"mitigation" yaml:"mitigation"`
}

// Risk factor identifiers
const (
	FactorUnencryptedData     = "unencrypted_sensitive_data"
	FactorNoAccessControls    = "missing_access_controls"
	FactorNoConsent           = "missing_user_consent"
	FactorCrossBorder         = "cross_border_transfer"
	FactorDataLocalization    = "data_localization"
	FactorCriticalDataTypes   = "critical_data_types"
	FactorHighVolume          = "high_volume_personal_data"
	FactorCloudStorage        = "cloud_storage"
	FactorSecondaryUsePurpose = "secondary_use_purpose"
)

var builtinRiskFactors = []RiskFactor{
	{
		ID:       FactorUnencryptedData,
		Name:     "Unencrypted sensitive data",
		Category: FactorProcessing,
		Severity: RiskCritical,
		Weight:   0.9,
		Mitigation: []string{
			"Enable encryption at rest and in transit",
			"Implement centralized key management",
		},
	},
	{
		ID:       FactorNoAccessControls,
		Name:     "Missing access controls",
		Category: FactorProcessing,
		Severity: RiskHigh,
		Weight:   0.7,
		Mitigation: []string{
			"Implement role-based access control",
			"Enable access logging and periodic access reviews",
		},
	},
	{
		ID:       FactorNoConsent,
		Name:     "No recorded user consent",
		Category: FactorCompliance,
		Severity: RiskHigh,
		Weight:   0.8,
		Mitigation: []string{
			"Identify and document a lawful basis for processing",
			"Collect and record explicit consent where required",
		},
	},
	{
		ID:       FactorCrossBorder,
		Name:     "Cross-border data transfer",
		Category: FactorGeographic,
		Severity: RiskHigh,
		Weight:   0.6,
		Mitigation: []string{
			"Put Standard Contractual Clauses in place",
			"Perform a transfer impact assessment",
		},
	},
	{
		ID:       FactorDataLocalization,
		Name:     "Data localization requirement",
		Category: FactorGeographic,
		Severity: RiskHigh,
		Weight:   0.7,
		Mitigation: []string{
			"Store in-scope data within the required jurisdiction",
			"Obtain regulatory approval before export",
		},
	},
	{
		ID:       FactorCriticalDataTypes,
		Name:     "Critical data types present",
		Category: FactorDataSensitivity,
		Severity: RiskCritical,
		Weight:   0.9,
		Mitigation: []string{
			"Apply field-level encryption or tokenization",
			"Minimize collection of critical identifiers",
		},
	},
	{
		ID:       FactorHighVolume,
		Name:     "High volume of personal data",
		Category: FactorDataSensitivity,
		Severity: RiskMedium,
		Weight:   0.5,
		Mitigation: []string{
			"Conduct a Data Protection Impact Assessment",
			"Apply data minimization and retention limits",
		},
	},
	{
		ID:       FactorCloudStorage,
		Name:     "Cloud storage",
		Category: FactorStorage,
		Severity: RiskMedium,
		Weight:   0.4,
		Mitigation: []string{
			"Review provider certifications and data processing agreements",
		},
	},
	{
		ID:       FactorSecondaryUsePurpose,
		Name:     "Secondary-use processing purpose",
		Category: FactorProcessing,
		Severity: RiskMedium,
		Weight:   0.4,
		Mitigation: []string{
			"Confirm purpose compatibility and update privacy notices",
		},
	},
}

// RiskFactorCatalog is a read-only registry of risk factors
type RiskFactorCatalog struct {
	factors map[string]RiskFactor
}

// NewRiskFactorCatalog creates a catalog from the given factors
func NewRiskFactorCatalog(factors []RiskFactor) *RiskFactorCatalog {
	c := &RiskFactorCatalog{factors: make(map[string]RiskFactor, len(factors))}
	for _, f := range factors {
		c.factors[f.ID] = copyRiskFactor(f)
	}
	return c
}

// DefaultRiskFactorCatalog returns the built-in catalog
func DefaultRiskFactorCatalog() *RiskFactorCatalog {
	return NewRiskFactorCatalog(builtinRiskFactors)
}

// Get looks up a factor by id
func (c *RiskFactorCatalog) Get(id string) (RiskFactor, bool) {
	f, ok := c.factors[id]
	if !ok {
		return RiskFactor{}, false
	}
	return copyRiskFactor(f), true
}

// List returns all factors ordered by id
func (c *RiskFactorCatalog) List() []RiskFactor {
	out := make([]RiskFactor, 0, len(c.factors))
	for _, f := range c.factors {
		out = append(out, copyRiskFactor(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyRiskFactor(f RiskFactor) RiskFactor {
	f.Mitigation = append([]string(nil), f.Mitigation...)
	return f
}

// Identify returns the catalog factors present in an assessment, in catalog id order
func (c *RiskFactorCatalog) Identify(findings []utils.Finding, pc ProcessingContext, geo GeographicRiskAssessment, recordCount int) []RiskFactor {
	hasCritical := false
	for _, f := range findings {
		if criticalFindingTypes[f.Type] {
			hasCritical = true
			break
		}
	}
	hasSensitiveData := len(findings) > 0

	present := map[string]bool{
		FactorUnencryptedData:     hasSensitiveData && !pc.EncryptionEnabled,
		FactorNoAccessControls:    !pc.AccessControlsEnabled,
		FactorNoConsent:           hasSensitiveData && !pc.HasUserConsent && pc.LawfulBasis == "",
		FactorCrossBorder:         geo.CrossBorderTransfer,
		FactorDataLocalization:    geo.DataLocalizationRequired,
		FactorCriticalDataTypes:   hasCritical,
		FactorHighVolume:          hasSensitiveData && recordCount > 10000,
		FactorCloudStorage:        pc.StorageMode == StorageCloud,
		FactorSecondaryUsePurpose: purposePenalty[strings.ToLower(strings.TrimSpace(pc.ProcessingPurpose))] > 0,
	}

	out := []RiskFactor{}
	for _, f := range c.List() {
		if present[f.ID] {
			out = append(out, f)
		}
	}
	return out
}
