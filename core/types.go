package core

import (
	"time"

	"github.com/SamuelRCrider/csp-risk/utils"
)

// StorageMode describes where the assessed data is stored
type StorageMode string

const (
	StorageCloud     StorageMode = "cloud"
	StorageOnPremise StorageMode = "on_premise"
	StorageHybrid    StorageMode = "hybrid"
)

// ProcessingContext describes how the assessed data is handled.
// It is supplied per assessment call and never modified by the engine.
type ProcessingContext struct {
	Jurisdictions         []string    `json:"jurisdictions" yaml:"jurisdictions" validate:"dive,required"`
	StorageMode           StorageMode `json:"storage_mode" yaml:"storage_mode" validate:"omitempty,oneof=cloud on_premise hybrid"`
	EncryptionEnabled     bool        `json:"encryption_enabled" yaml:"encryption_enabled"`
	AccessControlsEnabled bool        `json:"access_controls_enabled" yaml:"access_controls_enabled"`
	HasUserConsent        bool        `json:"has_user_consent" yaml:"has_user_consent"`

	// LawfulBasis records a GDPR Article 6 basis other than consent (e.g. "contract")
	LawfulBasis       string `json:"lawful_basis,omitempty" yaml:"lawful_basis,omitempty"`
	ProcessingPurpose string `json:"processing_purpose" yaml:"processing_purpose"`
}

// FieldData maps a field name to its column of values
type FieldData map[string][]interface{}

// RecordCount returns the number of records represented by the field data,
// taken as the longest column
func (d FieldData) RecordCount() int {
	count := 0
	for _, values := range d {
		if len(values) > count {
			count = len(values)
		}
	}
	return count
}

// FieldDataFromRecords pivots row-oriented records into columns
func FieldDataFromRecords(records []map[string]interface{}) FieldData {
	data := FieldData{}
	for i, record := range records {
		for field, value := range record {
			column := data[field]
			for len(column) < i {
				column = append(column, nil)
			}
			data[field] = append(column, value)
		}
	}
	return data
}

// DatasetMetadata carries the optional context of a raw dataset
type DatasetMetadata struct {
	Jurisdictions     []string `json:"jurisdictions" yaml:"jurisdictions" validate:"dive,required"`
	DataType          string   `json:"data_type" yaml:"data_type"`
	ProcessingPurpose string   `json:"processing_purpose" yaml:"processing_purpose"`

	// Optional handling flags; nil means unknown and is treated conservatively
	StorageMode           StorageMode `json:"storage_mode,omitempty" yaml:"storage_mode,omitempty" validate:"omitempty,oneof=cloud on_premise hybrid"`
	EncryptionEnabled     *bool       `json:"encryption_enabled,omitempty" yaml:"encryption_enabled,omitempty"`
	AccessControlsEnabled *bool       `json:"access_controls_enabled,omitempty" yaml:"access_controls_enabled,omitempty"`
	HasUserConsent        *bool       `json:"has_user_consent,omitempty" yaml:"has_user_consent,omitempty"`
	LawfulBasis           string      `json:"lawful_basis,omitempty" yaml:"lawful_basis,omitempty"`
}

// DatasetInput is the argument of the simplified assessment entry point
type DatasetInput struct {
	Records  []map[string]interface{} `json:"records"`
	Metadata *DatasetMetadata         `json:"metadata,omitempty"`
}

// SubScores holds the four weighted components of the overall score
type SubScores struct {
	DataRisk       int `json:"data_risk"`
	ComplianceRisk int `json:"compliance_risk"`
	GeographicRisk int `json:"geographic_risk"`
	ProcessingRisk int `json:"processing_risk"`
}

// Recommendations groups actions by urgency
type Recommendations struct {
	Immediate []string `json:"immediate"`
	ShortTerm []string `json:"short_term"`
	LongTerm  []string `json:"long_term"`
}

// FrameworkStatus summarizes compliance with one framework
type FrameworkStatus struct {
	Compliant    bool     `json:"compliant"`
	Score        int      `json:"score"`
	Gaps         []string `json:"gaps"`
	Requirements []string `json:"requirements"`
}

// RiskAssessmentResult is the complete, immutable output of one assessment
type RiskAssessmentResult struct {
	ID         string    `json:"id"`
	AssessedAt time.Time `json:"assessed_at"`

	OverallRiskScore int       `json:"overall_risk_score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	SubScores        SubScores `json:"sub_scores"`

	Findings    []utils.Finding                `json:"findings"`
	Context     ProcessingContext              `json:"context"`
	Frameworks  []Framework                    `json:"frameworks"`
	Geographic  GeographicRiskAssessment       `json:"geographic"`
	Sensitivity DataSensitivityClassification  `json:"sensitivity"`
	Violations  []ComplianceViolation          `json:"violations"`
	Compliance  map[Framework]FrameworkStatus  `json:"compliance"`
	RiskFactors []RiskFactor                   `json:"risk_factors"`

	Recommendations Recommendations `json:"recommendations"`
}

// Clone returns a deep copy of the result. History holds clones so callers may
// modify the results they receive.
func (r *RiskAssessmentResult) Clone() *RiskAssessmentResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Findings = cloneSlice(r.Findings)
	c.Context = copyContext(r.Context)
	c.Frameworks = cloneSlice(r.Frameworks)

	c.Geographic.Jurisdictions = cloneSlice(r.Geographic.Jurisdictions)
	c.Geographic.AdditionalRegulations = cloneSlice(r.Geographic.AdditionalRegulations)
	c.Geographic.TransferRestrictions = cloneSlice(r.Geographic.TransferRestrictions)

	c.Sensitivity.Categories = cloneSlice(r.Sensitivity.Categories)
	c.Sensitivity.SubjectRights = cloneSlice(r.Sensitivity.SubjectRights)
	c.Sensitivity.ProcessingRestrictions = cloneSlice(r.Sensitivity.ProcessingRestrictions)

	if r.Violations != nil {
		c.Violations = make([]ComplianceViolation, len(r.Violations))
		for i, v := range r.Violations {
			v.AffectedFields = cloneSlice(v.AffectedFields)
			v.Remediation.Steps = cloneSlice(v.Remediation.Steps)
			c.Violations[i] = v
		}
	}
	if r.Compliance != nil {
		c.Compliance = make(map[Framework]FrameworkStatus, len(r.Compliance))
		for f, status := range r.Compliance {
			status.Gaps = cloneSlice(status.Gaps)
			status.Requirements = cloneSlice(status.Requirements)
			c.Compliance[f] = status
		}
	}
	if r.RiskFactors != nil {
		c.RiskFactors = make([]RiskFactor, len(r.RiskFactors))
		for i, rf := range r.RiskFactors {
			rf.Mitigation = cloneSlice(rf.Mitigation)
			c.RiskFactors[i] = rf
		}
	}

	c.Recommendations.Immediate = cloneSlice(r.Recommendations.Immediate)
	c.Recommendations.ShortTerm = cloneSlice(r.Recommendations.ShortTerm)
	c.Recommendations.LongTerm = cloneSlice(r.Recommendations.LongTerm)
	return &c
}

// cloneSlice copies s, keeping nil and empty slices distinct
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
