package core

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AssessmentStore holds completed assessments for trend queries and exports
type AssessmentStore interface {
	Append(result *RiskAssessmentResult) error
	Get(id string) (*RiskAssessmentResult, bool)
	// Since returns assessments completed at or after t, oldest first
	Since(t time.Time) []*RiskAssessmentResult
}

// MemoryAssessmentStore is an append-only in-memory AssessmentStore
type MemoryAssessmentStore struct {
	mu      sync.Mutex
	results []*RiskAssessmentResult
	byID    map[string]*RiskAssessmentResult
	limit   int
}

// NewMemoryAssessmentStore creates a store keeping at most limit results (0 means unbounded)
func NewMemoryAssessmentStore(limit int) *MemoryAssessmentStore {
	return &MemoryAssessmentStore{
		byID:  make(map[string]*RiskAssessmentResult),
		limit: limit,
	}
}

// Append records a result; the oldest result is evicted when the limit is reached
func (s *MemoryAssessmentStore) Append(result *RiskAssessmentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && len(s.results) >= s.limit {
		evicted := s.results[0]
		s.results = s.results[1:]
		delete(s.byID, evicted.ID)
	}
	s.results = append(s.results, result)
	s.byID[result.ID] = result
	return nil
}

// Get looks up a result by assessment id
func (s *MemoryAssessmentStore) Get(id string) (*RiskAssessmentResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	return r, ok
}

// Since returns results assessed at or after t, oldest first
func (s *MemoryAssessmentStore) Since(t time.Time) []*RiskAssessmentResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*RiskAssessmentResult, 0, len(s.results))
	for _, r := range s.results {
		if !r.AssessedAt.Before(t) {
			out = append(out, r)
		}
	}
	return out
}

// Trend directions
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// TrendPoint is one assessment in a trend window
type TrendPoint struct {
	AssessmentID string    `json:"assessment_id"`
	Timestamp    time.Time `json:"timestamp"`
	Score        int       `json:"score"`
	Level        RiskLevel `json:"level"`
}

// RiskTrends summarizes the scores of a window of assessments
type RiskTrends struct {
	DataPoints  []TrendPoint `json:"data_points"`
	AverageRisk float64      `json:"average_risk"`
	Trend       string       `json:"trend"`
}

// ParseTrendPeriod parses "7d", "24h", "90m" or "all" (zero, meaning no window)
func ParseTrendPeriod(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return 0, nil
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days < 0 {
			return 0, newRiskError("ParseTrendPeriod", KindInvalidInput, "invalid period %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, newRiskError("ParseTrendPeriod", KindInvalidInput, "invalid period %q", s)
	}
	return d, nil
}

// ComputeTrends builds trend data from results ordered oldest first. The
// direction compares the last score of the window with the first.
func ComputeTrends(results []*RiskAssessmentResult) RiskTrends {
	trends := RiskTrends{DataPoints: make([]TrendPoint, 0, len(results)), Trend: TrendStable}
	if len(results) == 0 {
		return trends
	}

	total := 0
	for _, r := range results {
		trends.DataPoints = append(trends.DataPoints, TrendPoint{
			AssessmentID: r.ID,
			Timestamp:    r.AssessedAt,
			Score:        r.OverallRiskScore,
			Level:        r.RiskLevel,
		})
		total += r.OverallRiskScore
	}
	trends.AverageRisk = math.Round(float64(total)/float64(len(results))*100) / 100

	first := results[0].OverallRiskScore
	last := results[len(results)-1].OverallRiskScore
	switch {
	case last > first:
		trends.Trend = TrendIncreasing
	case last < first:
		trends.Trend = TrendDecreasing
	}
	return trends
}

// Export formats
const (
	ExportJSON = "json"
	ExportCSV  = "csv"
	ExportPDF  = "pdf"
)

var exportFormats = map[string]bool{ExportJSON: true, ExportCSV: true, ExportPDF: true}

// RiskReportExport carries an assessment prepared for a report renderer
type RiskReportExport struct {
	ExportID   string                `json:"export_id"`
	Format     string                `json:"format"`
	ExportedAt time.Time             `json:"exported_at"`
	Data       *RiskAssessmentResult `json:"data"`
}

// BuildExport prepares an export of a copy of result. Rendering to the format is left to the caller.
func BuildExport(result *RiskAssessmentResult, format string, now time.Time, newID func() string) (*RiskReportExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportJSON
	}
	if !exportFormats[format] {
		return nil, newRiskError("ExportRiskReport", KindInvalidInput, "unsupported export format %q", format)
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &RiskReportExport{
		ExportID:   newID(),
		Format:     format,
		ExportedAt: now.UTC(),
		Data:       result.Clone(),
	}, nil
}
