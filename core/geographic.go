package core

import (
	"strings"
)

// GeographicRiskAssessment describes the jurisdictional risk of where data lives and moves
type GeographicRiskAssessment struct {
	Jurisdictions            []string  `json:"jurisdictions"`
	CrossBorderTransfer      bool      `json:"cross_border_transfer"`
	GDPRApplicable           bool      `json:"gdpr_applicable"`
	AdditionalRegulations    []string  `json:"additional_regulations"`
	RiskScore                int       `json:"risk_score"`
	RiskLevel                RiskLevel `json:"risk_level"`
	TransferRestrictions     []string  `json:"transfer_restrictions"`
	DataLocalizationRequired bool      `json:"data_localization_required"`

	// Set only by the source/destination transfer assessment
	AdequacyDecision    bool `json:"adequacy_decision,omitempty"`
	UnknownJurisdiction bool `json:"unknown_jurisdiction,omitempty"`
}

// euJurisdictions holds the EU marker plus the member states
var euJurisdictions = map[string]bool{
	"EU": true,
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true, "CZ": true, "DK": true,
	"EE": true, "FI": true, "FR": true, "DE": true, "GR": true, "HU": true, "IE": true,
	"IT": true, "LV": true, "LT": true, "LU": true, "MT": true, "NL": true, "PL": true,
	"PT": true, "RO": true, "SK": true, "SI": true, "ES": true, "SE": true,
}

// adequacyJurisdictions hold an EU adequacy decision
var adequacyJurisdictions = map[string]bool{
	"AD": true, "AR": true, "CA": true, "CH": true, "FO": true, "GB": true, "GG": true,
	"IL": true, "IM": true, "JE": true, "JP": true, "KR": true, "NZ": true, "UY": true,
}

// restrictedDestinations force a high transfer risk
var restrictedDestinations = map[string]bool{
	"CN": true,
	"RU": true,
}

// jurisdictionRegulations maps a jurisdiction to its local privacy law
var jurisdictionRegulations = map[string]string{
	"US": "CCPA",
	"CA": "PIPEDA",
	"BR": "LGPD",
	"CN": "PIPL",
	"GB": "UK GDPR",
	"IN": "DPDP Act",
	"JP": "APPI",
	"AU": "Privacy Act 1988",
	"SG": "PDPA",
	"ZA": "POPIA",
	"RU": "152-FZ",
	"KR": "PIPA",
	"CH": "nFADP",
}

// UnknownJurisdictionCode marks a jurisdiction the caller could not resolve
const UnknownJurisdictionCode = "XX"

// Transfer restriction texts
const (
	restrictionAdequacy      = "GDPR adequacy decision required"
	restrictionSCC           = "Standard Contractual Clauses required"
	restrictionLocalization  = "Data localization required: personal information must be stored in CN under PIPL"
	restrictionExportReview  = "Security assessment and regulatory approval required before export from CN"
	restrictionSchremsII     = "Schrems II: EU to US transfers require a transfer impact assessment and supplementary measures"
	restrictionUnknown       = "Unknown jurisdiction: transfer cannot be assessed"
	restrictionRestrictedDst = "Destination jurisdiction restricts or monitors foreign data transfers"
)

// IsEUJurisdiction reports whether code is the EU marker or a member state (case-insensitive)
func IsEUJurisdiction(code string) bool {
	return euJurisdictions[normalizeJurisdiction(code)]
}

func anyEU(jurisdictions []string) bool {
	for _, j := range jurisdictions {
		if IsEUJurisdiction(j) {
			return true
		}
	}
	return false
}

func normalizeJurisdiction(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// normalizeJurisdictions upper-cases, drops blanks and deduplicates, keeping first-seen order
func normalizeJurisdictions(codes []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		n := normalizeJurisdiction(c)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// jurisdictionProfile is the set of facts both scoring formulas are built from
type jurisdictionProfile struct {
	codes       []string
	crossBorder bool
	hasEU       bool
	allEU       bool
	hasCN       bool
	hasUS       bool
}

func profileJurisdictions(codes []string) jurisdictionProfile {
	p := jurisdictionProfile{codes: normalizeJurisdictions(codes), allEU: true}
	p.crossBorder = len(p.codes) > 1
	for _, c := range p.codes {
		if euJurisdictions[c] {
			p.hasEU = true
		} else {
			p.allEU = false
		}
		switch c {
		case "CN":
			p.hasCN = true
		case "US":
			p.hasUS = true
		}
	}
	if len(p.codes) == 0 {
		p.allEU = false
	}
	return p
}

// restrictions lists the transfer warnings implied by the profile
func (p jurisdictionProfile) restrictions() []string {
	out := []string{}
	if p.hasEU {
		out = append(out, restrictionAdequacy)
		if !p.allEU {
			out = append(out, restrictionSCC)
		}
	}
	if p.hasCN {
		out = append(out, restrictionLocalization, restrictionExportReview)
	}
	if p.hasUS && p.hasEU {
		out = append(out, restrictionSchremsII)
	}
	return out
}

// regulations lists GDPR (when applicable) followed by each jurisdiction's local law
func (p jurisdictionProfile) regulations() []string {
	out := []string{}
	seen := map[string]bool{}
	if p.hasEU {
		out = append(out, "GDPR")
		seen["GDPR"] = true
	}
	for _, c := range p.codes {
		reg, ok := jurisdictionRegulations[c]
		if !ok || seen[reg] {
			continue
		}
		seen[reg] = true
		out = append(out, reg)
	}
	return out
}

func (p jurisdictionProfile) assessment(score int) GeographicRiskAssessment {
	score = clampScore(score)
	return GeographicRiskAssessment{
		Jurisdictions:            append([]string{}, p.codes...),
		CrossBorderTransfer:      p.crossBorder,
		GDPRApplicable:           p.hasEU,
		AdditionalRegulations:    p.regulations(),
		RiskScore:                score,
		RiskLevel:                RiskLevelForScore(score),
		TransferRestrictions:     p.restrictions(),
		DataLocalizationRequired: p.hasCN,
	}
}

// accumulatedScore is the additive formula of the comprehensive and transfer paths
func (p jurisdictionProfile) accumulatedScore() int {
	score := 0
	if p.crossBorder {
		score += 30
	}
	if p.hasEU {
		score += 20
		if !p.allEU {
			score += 15
		}
	}
	if p.hasCN {
		score += 25
	}
	if p.hasUS && p.hasEU {
		score += 10
	}
	return score
}

// GeographicAssessor scores jurisdiction and transfer risk. It holds no mutable state.
type GeographicAssessor struct {
	registry *FrameworkRegistry
}

// NewGeographicAssessor creates an assessor; registry is consulted for framework transfer rules
func NewGeographicAssessor(registry *FrameworkRegistry) *GeographicAssessor {
	if registry == nil {
		registry = DefaultFrameworkRegistry()
	}
	return &GeographicAssessor{registry: registry}
}

// AssessJurisdictions scores the processing jurisdictions of a comprehensive assessment
// with the additive formula (cross-border, GDPR, SCC, localization, Schrems II)
func (g *GeographicAssessor) AssessJurisdictions(jurisdictions []string) GeographicRiskAssessment {
	p := profileJurisdictions(jurisdictions)
	return p.assessment(p.accumulatedScore())
}

// AssessGeographicRisk is the coarse jurisdiction-only formula:
// 30 cross-border + 20 GDPR + 30 localization + 5 per distinct jurisdiction
func (g *GeographicAssessor) AssessGeographicRisk(jurisdictions []string) GeographicRiskAssessment {
	p := profileJurisdictions(jurisdictions)
	score := 5 * len(p.codes)
	if p.crossBorder {
		score += 30
	}
	if p.hasEU {
		score += 20
	}
	if p.hasCN {
		score += 30
	}
	return p.assessment(score)
}

// AssessTransferRisk scores a transfer from source to destinations. An unknown
// code or a restricted destination forces high risk whatever the accumulated
// score; a pure intra-EU transfer forces low risk. A non-empty framework adds its cross-border rule.
func (g *GeographicAssessor) AssessTransferRisk(source string, destinations []string, framework Framework) (GeographicRiskAssessment, error) {
	const op = "AssessTransferRisk"

	src := normalizeJurisdiction(source)
	if src == "" {
		return GeographicRiskAssessment{}, newRiskError(op, KindInvalidInput, "source jurisdiction is required")
	}
	dsts := normalizeJurisdictions(destinations)
	if len(dsts) == 0 {
		return GeographicRiskAssessment{}, newRiskError(op, KindInvalidInput, "at least one destination jurisdiction is required")
	}

	var rule *FrameworkRule
	if framework != "" {
		r, err := g.registry.GetRule(framework)
		if err != nil {
			return GeographicRiskAssessment{}, err
		}
		rule = &r
	}

	p := profileJurisdictions(append([]string{src}, dsts...))
	result := p.assessment(p.accumulatedScore())

	if rule != nil && rule.CrossBorderRestricted && p.crossBorder {
		result.TransferRestrictions = append(result.TransferRestrictions,
			string(rule.Framework)+" restricts cross-border transfers of covered data")
	}

	unknown := src == UnknownJurisdictionCode
	restricted := false
	allEU := euJurisdictions[src]
	adequate := euJurisdictions[src]
	for _, d := range dsts {
		if d == UnknownJurisdictionCode {
			unknown = true
		}
		if restrictedDestinations[d] {
			restricted = true
		}
		if !euJurisdictions[d] {
			allEU = false
			if !adequacyJurisdictions[d] {
				adequate = false
			}
		}
	}
	result.AdequacyDecision = adequate

	switch {
	case unknown:
		result.UnknownJurisdiction = true
		result.AdequacyDecision = false
		result.TransferRestrictions = append(result.TransferRestrictions, restrictionUnknown)
		forceHigh(&result)
	case restricted:
		result.AdequacyDecision = false
		result.TransferRestrictions = append(result.TransferRestrictions, restrictionRestrictedDst)
		forceHigh(&result)
	case allEU:
		result.AdequacyDecision = true
		result.RiskScore = min(result.RiskScore, 39)
		result.RiskLevel = RiskLow
	}
	return result, nil
}

// forceHigh pins the assessment to the high band [60,79]
func forceHigh(a *GeographicRiskAssessment) {
	a.RiskScore = min(max(a.RiskScore, 60), 79)
	a.RiskLevel = RiskHigh
}
