package core

import (
	"strings"

	"github.com/SamuelRCrider/csp-risk/utils"
)

// MaskValue hides all but a short suffix of a sample value.
// Emails keep their first character and domain; other values keep the last four characters.
func MaskValue(findingType, value string) string {
	if value == "" {
		return ""
	}

	if at := strings.LastIndex(value, "@"); findingType == "email" && at > 0 {
		return value[:1] + "***" + value[at:]
	}

	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}

	var b strings.Builder
	keepFrom := len(runes) - 4
	for i, r := range runes {
		switch {
		case i >= keepFrom:
			b.WriteRune(r)
		case r == '-' || r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('*')
		}
	}
	return b.String()
}

// MaskFindings returns copies of findings with masked sample values
func MaskFindings(findings []utils.Finding) []utils.Finding {
	out := make([]utils.Finding, len(findings))
	for i, f := range findings {
		f.Value = MaskValue(f.Type, f.Value)
		out[i] = f
	}
	return out
}
