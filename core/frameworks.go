package core

import (
	"sort"
	"strings"

	"github.com/SamuelRCrider/csp-risk/utils"
)

// Framework identifies a regulatory regime
type Framework string

const (
	// FrameworkHIPAA represents the US health data regime
	FrameworkHIPAA Framework = "HIPAA"

	// FrameworkPCIDSS represents the card industry data security standard
	FrameworkPCIDSS Framework = "PCI_DSS"

	// FrameworkGDPR represents the EU general data protection regulation
	FrameworkGDPR Framework = "GDPR"

	// FrameworkGeneral represents baseline data protection hygiene
	FrameworkGeneral Framework = "GENERAL"

	// FrameworkCustom is reserved for caller-defined regimes and has no built-in rule
	FrameworkCustom Framework = "CUSTOM"
)

var knownFrameworks = map[Framework]bool{
	FrameworkHIPAA:   true,
	FrameworkPCIDSS:  true,
	FrameworkGDPR:    true,
	FrameworkGeneral: true,
	FrameworkCustom:  true,
}

var frameworkAliases = map[string]Framework{
	"HIPAA":   FrameworkHIPAA,
	"PCI":     FrameworkPCIDSS,
	"PCI_DSS": FrameworkPCIDSS,
	"PCIDSS":  FrameworkPCIDSS,
	"GDPR":    FrameworkGDPR,
	"GENERAL": FrameworkGeneral,
	"CUSTOM":  FrameworkCustom,
}

// ParseFramework normalizes user input such as "pci-dss" or "gdpr"
func ParseFramework(s string) (Framework, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	if f, ok := frameworkAliases[key]; ok {
		return f, nil
	}
	if key == "" {
		return "", newRiskError("ParseFramework", KindInvalidInput, "framework must not be empty")
	}
	return Framework(key), nil
}

// FrameworkRule holds the static rule set of one framework
type FrameworkRule struct {
	Framework            Framework `json:"framework" yaml:"framework"`
	ApplicablePIITypes   []string  `json:"applicable_pii_types" yaml:"applicable_pii_types"`
	RequiredSafeguards   []string  `json:"required_safeguards" yaml:"required_safeguards"`
	RetentionPeriodDays  *int      `json:"retention_period_days,omitempty" yaml:"retention_period_days,omitempty"`
	FineRangeDescription string    `json:"fine_range_description" yaml:"fine_range_description"`

	EncryptionRequired    bool `json:"encryption_required" yaml:"encryption_required"`
	LawfulBasisRequired   bool `json:"lawful_basis_required" yaml:"lawful_basis_required"`
	CrossBorderRestricted bool `json:"cross_border_restricted" yaml:"cross_border_restricted"`
}

// AppliesTo reports whether a finding type is covered by the rule
func (r FrameworkRule) AppliesTo(piiType string) bool {
	for _, t := range r.ApplicablePIITypes {
		if t == piiType {
			return true
		}
	}
	return false
}

// FrameworkEvaluator runs one framework's rule function against findings and context
type FrameworkEvaluator func(rule FrameworkRule, findings []utils.Finding, pc ProcessingContext) []ComplianceViolation

// FrameworkDefinition binds a rule to its evaluator; a nil evaluator never emits violations
type FrameworkDefinition struct {
	Rule     FrameworkRule
	Evaluate FrameworkEvaluator
}

func intPtr(v int) *int { return &v }

// DefaultFrameworkDefinitions returns the built-in rule table
func DefaultFrameworkDefinitions() []FrameworkDefinition {
	return []FrameworkDefinition{
		{
			Rule: FrameworkRule{
				Framework:             FrameworkHIPAA,
				ApplicablePIITypes:    []string{"ssn", "medical_record_number", "email", "phone", "drivers_license"},
				RequiredSafeguards:    []string{"encryption", "access_controls", "audit_logging", "business_associate_agreements"},
				RetentionPeriodDays:   intPtr(2555),
				FineRangeDescription:  "$100 - $50,000 per violation, up to $1.5M per year",
				EncryptionRequired:    true,
				CrossBorderRestricted: true,
			},
			Evaluate: evaluateHIPAA,
		},
		{
			Rule: FrameworkRule{
				Framework:            FrameworkPCIDSS,
				ApplicablePIITypes:   []string{"credit_card", "bank_account", "iban"},
				RequiredSafeguards:   []string{"encryption", "tokenization", "network_segmentation", "quarterly_security_scans"},
				RetentionPeriodDays:  intPtr(365),
				FineRangeDescription: "$5,000 - $100,000 per month",
				EncryptionRequired:   true,
			},
			Evaluate: evaluatePCIDSS,
		},
		{
			Rule: FrameworkRule{
				Framework:            FrameworkGDPR,
				ApplicablePIITypes:   []string{"email", "phone", "ssn", "passport", "drivers_license"},
				RequiredSafeguards:   []string{"lawful_basis", "data_subject_rights", "privacy_by_design", "breach_notification_72h"},
				FineRangeDescription: "Up to EUR 20M or 4% of annual global turnover",
				LawfulBasisRequired:  true,
			},
			Evaluate: evaluateGDPR,
		},
		{
			Rule: FrameworkRule{
				Framework:            FrameworkGeneral,
				ApplicablePIITypes:   []string{"email", "phone", "ssn", "credit_card"},
				RequiredSafeguards:   []string{},
				FineRangeDescription: "Varies by jurisdiction",
			},
		},
	}
}

// FrameworkRegistry is a read-only table of framework definitions.
// Adding a framework means passing one more definition at construction.
type FrameworkRegistry struct {
	defs map[Framework]FrameworkDefinition
}

// NewFrameworkRegistry creates a registry from definitions; later entries replace earlier ones
func NewFrameworkRegistry(defs ...FrameworkDefinition) *FrameworkRegistry {
	r := &FrameworkRegistry{defs: make(map[Framework]FrameworkDefinition, len(defs))}
	for _, d := range defs {
		d.Rule = copyRule(d.Rule)
		r.defs[d.Rule.Framework] = d
	}
	return r
}

// DefaultFrameworkRegistry returns the registry of built-in frameworks
func DefaultFrameworkRegistry() *FrameworkRegistry {
	return NewFrameworkRegistry(DefaultFrameworkDefinitions()...)
}

// GetRule returns a copy of the rule registered for framework
func (r *FrameworkRegistry) GetRule(framework Framework) (FrameworkRule, error) {
	def, err := r.lookup("GetRule", framework)
	if err != nil {
		return FrameworkRule{}, err
	}
	return copyRule(def.Rule), nil
}

// Has reports whether framework has a registered rule
func (r *FrameworkRegistry) Has(framework Framework) bool {
	_, ok := r.defs[framework]
	return ok
}

// Frameworks lists registered frameworks in name order
func (r *FrameworkRegistry) Frameworks() []Framework {
	out := make([]Framework, 0, len(r.defs))
	for f := range r.defs {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *FrameworkRegistry) lookup(op string, framework Framework) (FrameworkDefinition, error) {
	if def, ok := r.defs[framework]; ok {
		return def, nil
	}
	if knownFrameworks[framework] {
		return FrameworkDefinition{}, newRiskError(op, KindUnsupportedFramework, "framework %s has no registered rule", framework)
	}
	return FrameworkDefinition{}, newRiskError(op, KindNotFound, "unknown framework %q", framework)
}

func copyRule(rule FrameworkRule) FrameworkRule {
	rule.ApplicablePIITypes = append([]string{}, rule.ApplicablePIITypes...)
	rule.RequiredSafeguards = append([]string{}, rule.RequiredSafeguards...)
	if rule.RetentionPeriodDays != nil {
		rule.RetentionPeriodDays = intPtr(*rule.RetentionPeriodDays)
	}
	return rule
}
