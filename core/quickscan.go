package core

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/SamuelRCrider/csp-risk/utils"
)

// DefaultQuickScanRecords is how many records the quick scan inspects
const DefaultQuickScanRecords = 10

// quickScanPattern stores metadata about a quick-scan pattern
type quickScanPattern struct {
	Regex       *regexp.Regexp
	Confidence  float64
	Description string
}

// quickScanPatterns is the coarse pattern table of the simplified entry point.
// It is not a detector; authoritative findings come from the caller.
var quickScanPatterns = map[string]quickScanPattern{
	"ssn": {
		Regex:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		Confidence:  0.9,
		Description: "US Social Security Number",
	},
	"email": {
		Regex:       regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`),
		Confidence:  0.95,
		Description: "Email address",
	},
}

// QuickScanRecords infers coarse SSN and email findings from the first limit
// records. Fields are visited in name order so results are deterministic.
func QuickScanRecords(records []map[string]interface{}, limit int) []utils.Finding {
	if limit <= 0 {
		limit = DefaultQuickScanRecords
	}
	if len(records) > limit {
		records = records[:limit]
	}

	types := make([]string, 0, len(quickScanPatterns))
	for t := range quickScanPatterns {
		types = append(types, t)
	}
	sort.Strings(types)

	var findings []utils.Finding
	for _, record := range records {
		for _, field := range sortedKeys(record) {
			text, ok := scannableText(record[field])
			if !ok {
				continue
			}
			for _, t := range types {
				info := quickScanPatterns[t]
				for _, loc := range info.Regex.FindAllStringIndex(text, -1) {
					findings = append(findings, utils.Finding{
						Type:       t,
						FieldName:  field,
						Confidence: info.Confidence,
						Value:      text[loc[0]:loc[1]],
						StartIndex: loc[0],
						EndIndex:   loc[1],
						Source:     utils.SourceQuickScan,
					})
				}
			}
		}
	}
	return findings
}

// scannableText renders scalar record values as text; nested values are skipped
func scannableText(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case fmt.Stringer:
		return val.String(), true
	case int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprint(val), true
	default:
		return "", false
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
