package utils

// Finding represents one detected instance of sensitive data.
// Findings are produced by an external detector, the quick-scan helper or the
// custom pattern registry, and are never mutated once created.
type Finding struct {
	// Classification information
	Type       string  `json:"type" yaml:"type"`
	FieldName  string  `json:"field_name,omitempty" yaml:"field_name,omitempty"`
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Optional sample of the matched value (masked when stored in results)
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// Match location information
	StartIndex int `json:"start_index,omitempty" yaml:"start_index,omitempty"`
	EndIndex   int `json:"end_index,omitempty" yaml:"end_index,omitempty"`

	// Tracking information
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`         // detector, quick_scan, custom_pattern
	PatternID string `json:"pattern_id,omitempty" yaml:"pattern_id,omitempty"` // set for custom pattern matches
}

// Finding sources
const (
	SourceDetector      = "detector"
	SourceQuickScan     = "quick_scan"
	SourceCustomPattern = "custom_pattern"
)

// CountByType returns how many findings exist per type
func CountByType(findings []Finding) map[string]int {
	counts := make(map[string]int, len(findings))
	for _, f := range findings {
		counts[f.Type]++
	}
	return counts
}
