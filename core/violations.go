package core

import (
	"sort"

	"github.com/SamuelRCrider/csp-risk/utils"
	"github.com/google/uuid"
)

// CostTier is a coarse remediation cost estimate
type CostTier string

const (
	CostLow    CostTier = "low"
	CostMedium CostTier = "medium"
	CostHigh   CostTier = "high"
)

// Remediation describes how to resolve a violation
type Remediation struct {
	Steps     []string `json:"steps"`
	Timeframe string   `json:"timeframe"`
	CostTier  CostTier `json:"cost_tier"`
}

// ComplianceViolation is one rule breach of one framework
type ComplianceViolation struct {
	ID                      string      `json:"id"`
	Framework               Framework   `json:"framework"`
	ViolationType           string      `json:"violation_type"`
	Severity                RiskLevel   `json:"severity"`
	Description             string      `json:"description"`
	AffectedFields          []string    `json:"affected_fields"`
	RequiresImmediateAction bool        `json:"requires_immediate_action"`
	Remediation             Remediation `json:"remediation"`
}

// AssessmentInput is the argument of DetectComplianceViolations
type AssessmentInput struct {
	Findings   []utils.Finding   `json:"findings"`
	Context    ProcessingContext `json:"context"`
	Frameworks []Framework       `json:"frameworks"`
}

// Violation types emitted by the built-in evaluators
const (
	ViolationUnencryptedPHI      = "unencrypted_phi"
	ViolationUnencryptedCardData = "unencrypted_card_data"
	ViolationNoLawfulBasis       = "no_lawful_basis"
)

// evaluateHIPAA flags medical record numbers held without encryption
func evaluateHIPAA(rule FrameworkRule, findings []utils.Finding, pc ProcessingContext) []ComplianceViolation {
	if pc.EncryptionEnabled {
		return nil
	}
	fields := fieldsOfType(findings, "medical_record_number")
	if fields == nil {
		return nil
	}
	return []ComplianceViolation{{
		Framework:               rule.Framework,
		ViolationType:           ViolationUnencryptedPHI,
		Severity:                RiskCritical,
		Description:             "Unencrypted PHI: medical record numbers are stored without encryption",
		AffectedFields:          fields,
		RequiresImmediateAction: true,
		Remediation: Remediation{
			Steps: []string{
				"Enable encryption at rest and in transit for PHI",
				"Implement key management procedures",
				"Update access controls for PHI",
			},
			Timeframe: "30 days",
			CostTier:  CostMedium,
		},
	}}
}

// evaluatePCIDSS flags card numbers held without encryption
func evaluatePCIDSS(rule FrameworkRule, findings []utils.Finding, pc ProcessingContext) []ComplianceViolation {
	if pc.EncryptionEnabled {
		return nil
	}
	fields := fieldsOfType(findings, "credit_card")
	if fields == nil {
		return nil
	}
	return []ComplianceViolation{{
		Framework:               rule.Framework,
		ViolationType:           ViolationUnencryptedCardData,
		Severity:                RiskCritical,
		Description:             "Unencrypted card data: primary account numbers are stored without encryption",
		AffectedFields:          fields,
		RequiresImmediateAction: true,
		Remediation: Remediation{
			Steps: []string{
				"Encrypt or tokenize stored cardholder data",
				"Implement cryptographic key management",
				"Schedule regular security assessments",
			},
			Timeframe: "90 days",
			CostTier:  CostHigh,
		},
	}}
}

// evaluateGDPR flags EU personal data processed without consent or another lawful basis
func evaluateGDPR(rule FrameworkRule, findings []utils.Finding, pc ProcessingContext) []ComplianceViolation {
	if len(findings) == 0 || pc.HasUserConsent || pc.LawfulBasis != "" {
		return nil
	}
	if !anyEU(pc.Jurisdictions) {
		return nil
	}
	return []ComplianceViolation{{
		Framework:               rule.Framework,
		ViolationType:           ViolationNoLawfulBasis,
		Severity:                RiskHigh,
		Description:             "No lawful basis: personal data of EU subjects is processed without consent or another lawful basis",
		AffectedFields:          fieldsOfType(findings, ""),
		RequiresImmediateAction: false,
		Remediation: Remediation{
			Steps: []string{
				"Identify and document a lawful basis for processing",
				"Update privacy notices",
				"Obtain consent where consent is the chosen basis",
			},
			Timeframe: "60 days",
			CostTier:  CostMedium,
		},
	}}
}

// fieldsOfType returns the sorted distinct field names of findings of the given
// type (all findings when findingType is empty), or nil if none match
func fieldsOfType(findings []utils.Finding, findingType string) []string {
	seen := map[string]bool{}
	matched := false
	for _, f := range findings {
		if findingType != "" && f.Type != findingType {
			continue
		}
		matched = true
		if f.FieldName != "" {
			seen[f.FieldName] = true
		}
	}
	if !matched {
		return nil
	}
	fields := make([]string, 0, len(seen))
	for name := range seen {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// ViolationDetector evaluates findings against the framework registry
type ViolationDetector struct {
	registry *FrameworkRegistry
	newID    func() string
}

// NewViolationDetector creates a detector; a nil newID uses random UUIDs
func NewViolationDetector(registry *FrameworkRegistry, newID func() string) *ViolationDetector {
	if registry == nil {
		registry = DefaultFrameworkRegistry()
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &ViolationDetector{registry: registry, newID: newID}
}

// Detect runs every requested framework's evaluator. All frameworks are
// resolved before any evaluation so an unknown one fails the whole call.
// An empty framework list evaluates every registered framework.
func (d *ViolationDetector) Detect(input AssessmentInput) ([]ComplianceViolation, error) {
	const op = "DetectComplianceViolations"

	if err := validateStruct(op, input.Context); err != nil {
		return nil, err
	}

	frameworks := dedupeFrameworks(input.Frameworks)
	if len(frameworks) == 0 {
		frameworks = d.registry.Frameworks()
	}

	defs := make([]FrameworkDefinition, 0, len(frameworks))
	for _, f := range frameworks {
		def, err := d.registry.lookup(op, f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	violations := []ComplianceViolation{}
	for _, def := range defs {
		if def.Evaluate == nil {
			continue
		}
		for _, v := range def.Evaluate(copyRule(def.Rule), input.Findings, input.Context) {
			v.ID = d.newID()
			violations = append(violations, v)
			RecordViolation(v)
		}
	}
	return violations, nil
}

// SummarizeCompliance builds the per-framework compliance status
func (d *ViolationDetector) SummarizeCompliance(frameworks []Framework, violations []ComplianceViolation) map[Framework]FrameworkStatus {
	counts := map[Framework]int{}
	for _, v := range violations {
		counts[v.Framework]++
	}

	summary := make(map[Framework]FrameworkStatus, len(frameworks))
	for _, f := range dedupeFrameworks(frameworks) {
		var requirements []string
		if rule, err := d.registry.GetRule(f); err == nil {
			requirements = rule.RequiredSafeguards
		}
		status := FrameworkStatus{
			Compliant:    counts[f] == 0,
			Score:        90,
			Gaps:         []string{},
			Requirements: requirements,
		}
		if !status.Compliant {
			status.Score = 60
			status.Gaps = []string{"Missing encryption"}
		}
		summary[f] = status
	}
	return summary
}

func dedupeFrameworks(frameworks []Framework) []Framework {
	seen := map[Framework]bool{}
	out := make([]Framework, 0, len(frameworks))
	for _, f := range frameworks {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// HasCriticalViolation reports whether any violation is critical
func HasCriticalViolation(violations []ComplianceViolation) bool {
	for _, v := range violations {
		if v.Severity == RiskCritical {
			return true
		}
	}
	return false
}
