package core

import (
	"strings"
	"unicode"

	"github.com/SamuelRCrider/csp-risk/utils"
)

// Classification is the handling tier of a dataset
type Classification string

const (
	ClassificationPublic       Classification = "public"
	ClassificationInternal     Classification = "internal"
	ClassificationConfidential Classification = "confidential"
	ClassificationRestricted   Classification = "restricted"
)

// Data categories reported by the classifier
const (
	CategoryFinancial = "Financial"
	CategoryMedical   = "Medical"
	CategoryPII       = "PII"
)

// DataSensitivityClassification describes how carefully a dataset must be handled
type DataSensitivityClassification struct {
	Classification         Classification `json:"classification"`
	SensitivityScore       int            `json:"sensitivity_score"`
	Categories             []string       `json:"categories"`
	SubjectRights          []string       `json:"subject_rights"`
	ProcessingRestrictions []string       `json:"processing_restrictions"`
	RetentionRequirement   string         `json:"retention_requirement"`
}

// Field-name vocabulary of ClassifyFields. Sensitive and PII fragments match
// anywhere in the name. "name" must lead the name or follow a personal
// qualifier, so "first_name" and "userName" match while "company_name" does not.
var (
	sensitiveFieldFragments = []string{"ssn", "credit_card", "bank_account", "medical_record"}
	piiFieldFragments       = []string{"email", "phone", "address"}
	personalQualifiers      = map[string]bool{
		"first": true, "last": true, "full": true, "given": true, "family": true, "middle": true,
		"home": true, "mailing": true, "billing": true, "contact": true, "user": true,
		"customer": true, "patient": true, "personal": true, "mobile": true,
	}
)

// Finding types used by ClassifyFindings and the data-risk sub-score
var (
	criticalFindingTypes = map[string]bool{
		"ssn":                   true,
		"medical_record_number": true,
		"credit_card":           true,
		"passport":              true,
	}
	sensitiveFindingTypes = map[string]bool{
		"email":           true,
		"phone":           true,
		"drivers_license": true,
		"bank_account":    true,
	}
	financialFindingTypes = map[string]bool{"credit_card": true, "bank_account": true, "iban": true}
	medicalFindingTypes   = map[string]bool{"medical_record_number": true}
)

// Processing restrictions
const (
	RestrictionExplicitConsent   = "explicit_consent_required"
	RestrictionPurposeLimitation = "purpose_limitation"
	RestrictionDataMinimization  = "data_minimization"
	RestrictionDPIARequired      = "dpia_required"
)

// IsCriticalFindingType reports whether a finding type is in the critical set
func IsCriticalFindingType(t string) bool { return criticalFindingTypes[t] }

// IsSensitiveFindingType reports whether a finding type is in the sensitive set
func IsSensitiveFindingType(t string) bool { return sensitiveFindingTypes[t] }

// SensitivityClassifier maps field names or findings to a sensitivity tier.
// It holds no mutable state.
type SensitivityClassifier struct{}

// NewSensitivityClassifier creates a classifier
func NewSensitivityClassifier() *SensitivityClassifier {
	return &SensitivityClassifier{}
}

// ClassifyFields classifies a dataset from its field names and record count
func (c *SensitivityClassifier) ClassifyFields(fields []string, recordCount int) DataSensitivityClassification {
	result := DataSensitivityClassification{
		Categories:             []string{},
		SubjectRights:          []string{},
		ProcessingRestrictions: []string{},
	}

	switch {
	case anyFieldContains(fields, sensitiveFieldFragments):
		result.Classification = ClassificationRestricted
		result.SensitivityScore = 90
		if recordCount > 1000 {
			result.SensitivityScore += 10
		}
		result.Categories = []string{CategoryFinancial, CategoryMedical}
		result.SubjectRights = []string{"access", "erasure", "portability"}
		result.ProcessingRestrictions = []string{RestrictionExplicitConsent, RestrictionPurposeLimitation, RestrictionDataMinimization}
	case anyPIIField(fields):
		result.Classification = ClassificationConfidential
		result.SensitivityScore = 60
		if recordCount > 10000 {
			result.SensitivityScore += 20
		}
		result.Categories = []string{CategoryPII}
		result.SubjectRights = []string{"access", "rectification"}
		result.ProcessingRestrictions = []string{RestrictionPurposeLimitation}
	case len(fields) > 5:
		result.Classification = ClassificationInternal
		result.SensitivityScore = 30
	default:
		result.Classification = ClassificationPublic
		result.SensitivityScore = 10
	}

	result.SensitivityScore = clampScore(result.SensitivityScore)
	result.RetentionRequirement = retentionFor(result.Classification)
	return result
}

// ClassifyFindings classifies a dataset from detected findings and its field data
func (c *SensitivityClassifier) ClassifyFindings(findings []utils.Finding, fieldData FieldData) DataSensitivityClassification {
	var hasCritical, hasSensitive, financial, medical bool
	for _, f := range findings {
		if criticalFindingTypes[f.Type] {
			hasCritical = true
		}
		if sensitiveFindingTypes[f.Type] {
			hasSensitive = true
		}
		if financialFindingTypes[f.Type] {
			financial = true
		}
		if medicalFindingTypes[f.Type] {
			medical = true
		}
	}

	score := 0
	rights := newOrderedSet()
	restrictions := newOrderedSet()

	if hasCritical {
		score += 60
		rights.add("access", "erasure", "portability")
		restrictions.add(RestrictionExplicitConsent, RestrictionPurposeLimitation, RestrictionDataMinimization)
	}
	if hasSensitive {
		score += 30
		rights.add("access", "rectification")
	}

	records := fieldData.RecordCount()
	switch {
	case records > 10000:
		score += 20
		restrictions.add(RestrictionDPIARequired)
	case records > 1000:
		score += 10
	}
	score = clampScore(score)

	categories := []string{}
	if financial {
		categories = append(categories, CategoryFinancial)
	}
	if medical {
		categories = append(categories, CategoryMedical)
	}
	if hasSensitive || (hasCritical && !financial && !medical) {
		categories = append(categories, CategoryPII)
	}

	class := classificationForScore(score)
	return DataSensitivityClassification{
		Classification:         class,
		SensitivityScore:       score,
		Categories:             categories,
		SubjectRights:          rights.items,
		ProcessingRestrictions: restrictions.items,
		RetentionRequirement:   retentionFor(class),
	}
}

// classificationForScore applies the 80/60/30 thresholds
func classificationForScore(score int) Classification {
	switch {
	case score >= 80:
		return ClassificationRestricted
	case score >= 60:
		return ClassificationConfidential
	case score >= 30:
		return ClassificationInternal
	default:
		return ClassificationPublic
	}
}

func retentionFor(class Classification) string {
	switch class {
	case ClassificationRestricted:
		return "Retain only as long as legally required; purge on purpose completion"
	case ClassificationConfidential:
		return "Retain for the documented processing purpose only"
	case ClassificationInternal:
		return "Follow the organizational retention schedule"
	default:
		return "No specific retention requirement"
	}
}

func anyFieldContains(fields, fragments []string) bool {
	for _, field := range fields {
		lower := strings.ToLower(field)
		for _, frag := range fragments {
			if strings.Contains(lower, frag) {
				return true
			}
		}
	}
	return false
}

func anyPIIField(fields []string) bool {
	if anyFieldContains(fields, piiFieldFragments) {
		return true
	}
	for _, field := range fields {
		tokens := fieldTokens(field)
		if len(tokens) == 0 {
			continue
		}
		if tokens[0] == "name" {
			return true
		}
		if len(tokens) > 1 && personalQualifiers[tokens[0]] && tokens[1] == "name" {
			return true
		}
	}
	return false
}

// fieldTokens splits a field name on separators and camelCase boundaries
func fieldTokens(field string) []string {
	var tokens []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, strings.ToLower(string(current)))
			current = current[:0]
		}
	}

	runes := []rune(field)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
		}
		current = append(current, r)
	}
	flush()
	return tokens
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]bool{}, items: []string{}}
}

func (s *orderedSet) add(values ...string) {
	for _, v := range values {
		if s.seen[v] {
			continue
		}
		s.seen[v] = true
		s.items = append(s.items, v)
	}
}
