package core

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/SamuelRCrider/csp-risk/utils"
	"github.com/google/uuid"
)

// Entry point names used in events, metrics and logs
const (
	EntryPerformRiskAssessment = "perform_risk_assessment"
	EntryComprehensive         = "assess_comprehensive_risk"
)

// Engine is the risk and compliance assessment engine. Assessments are
// independent and safe to run concurrently; only the custom pattern registry
// and the assessment history hold mutable state.
type Engine struct {
	cfg    *Config
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	catalog    *RiskFactorCatalog
	frameworks *FrameworkRegistry
	geo        *GeographicAssessor
	classifier *SensitivityClassifier
	detector   *ViolationDetector
	patterns   *PatternRegistry
	planner    *MitigationPlanner
	store      AssessmentStore
	events     *EventBus

	patternStore PatternStore
	audit        *AuditLogger
	ownsAudit    bool
}

// Option configures an Engine
type Option func(*Engine)

// WithConfig sets the engine configuration
func WithConfig(cfg *Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the generator of assessment, violation, plan and export ids
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithAssessmentStore sets the assessment history store
func WithAssessmentStore(store AssessmentStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithPatternStore sets the custom pattern store
func WithPatternStore(store PatternStore) Option {
	return func(e *Engine) { e.patternStore = store }
}

// WithFrameworkRegistry replaces the built-in framework registry
func WithFrameworkRegistry(registry *FrameworkRegistry) Option {
	return func(e *Engine) { e.frameworks = registry }
}

// WithRiskFactorCatalog replaces the built-in risk factor catalog
func WithRiskFactorCatalog(catalog *RiskFactorCatalog) Option {
	return func(e *Engine) { e.catalog = catalog }
}

// WithAuditLogger attaches an audit logger owned by the caller
func WithAuditLogger(audit *AuditLogger) Option {
	return func(e *Engine) { e.audit = audit }
}

// NewEngine creates an engine. Without options it uses the default
// configuration, in-memory stores and a JSON logger on stderr.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}

	if e.cfg == nil {
		e.cfg = DefaultConfig()
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.catalog == nil {
		e.catalog = DefaultRiskFactorCatalog()
	}
	if e.frameworks == nil {
		e.frameworks = DefaultFrameworkRegistry()
	}
	if e.store == nil {
		e.store = NewMemoryAssessmentStore(e.cfg.HistoryLimit)
	}

	if e.audit == nil && e.cfg.Audit.Enabled() {
		audit, err := NewAuditLogger(e.cfg.Audit.AuditConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		e.audit = audit
		e.ownsAudit = true
	}

	patternOpts := []PatternRegistryOption{
		WithPatternLogger(e.logger),
		WithPatternIDGenerator(e.newID),
		WithConfidenceThreshold(e.cfg.ConfidenceThreshold),
	}
	e.events = NewEventBus(e.logger)
	if e.audit != nil {
		e.events.Subscribe(e.audit.AssessmentSubscriber())
		patternOpts = append(patternOpts, WithPatternObserver(e.audit.PatternObserver()))
	}

	e.geo = NewGeographicAssessor(e.frameworks)
	e.classifier = NewSensitivityClassifier()
	e.detector = NewViolationDetector(e.frameworks, e.newID)
	e.planner = NewMitigationPlanner(e.now, e.newID)
	e.patterns = NewPatternRegistry(e.patternStore, patternOpts...)

	if e.cfg.PatternPackPath != "" {
		pack, err := LoadPatternPack(e.cfg.PatternPackPath)
		if err != nil {
			e.Close()
			return nil, err
		}
		if _, err := e.patterns.ImportPack(pack); err != nil {
			e.Close()
			return nil, err
		}
	}

	return e, nil
}

// NewDiscardEngine creates an engine whose logs are discarded, for tests and examples
func NewDiscardEngine(opts ...Option) (*Engine, error) {
	return NewEngine(append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)...)
}

// Close drops the engine's pattern metrics and releases the audit log if the engine opened it
func (e *Engine) Close() error {
	if e.patterns != nil {
		e.patterns.Close()
	}
	if e.ownsAudit && e.audit != nil {
		return e.audit.Close()
	}
	return nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config { return *e.cfg }

// Patterns returns the custom pattern registry
func (e *Engine) Patterns() *PatternRegistry { return e.patterns }

// Frameworks returns the framework registry
func (e *Engine) Frameworks() *FrameworkRegistry { return e.frameworks }

// RiskFactors returns the risk factor catalog
func (e *Engine) RiskFactors() *RiskFactorCatalog { return e.catalog }

// Subscribe registers an assessment-completed subscriber
func (e *Engine) Subscribe(fn Subscriber) (unsubscribe func()) {
	return e.events.Subscribe(fn)
}

// PerformRiskAssessment assesses a raw dataset. Findings are inferred by the
// quick scan and custom patterns over the first records; missing metadata
// defaults to a conservative processing context.
func (e *Engine) PerformRiskAssessment(data *DatasetInput) (*RiskAssessmentResult, error) {
	const op = "PerformRiskAssessment"

	if data == nil {
		return nil, newRiskError(op, KindInvalidInput, "dataset is required")
	}
	if data.Records == nil {
		return nil, newRiskError(op, KindInvalidInput, "dataset records are required")
	}
	if data.Metadata != nil {
		if err := validateStruct(op, *data.Metadata); err != nil {
			return nil, err
		}
	}

	start := e.now()
	pc := contextFromMetadata(data.Metadata)
	frameworks := inferFrameworks(data.Metadata)

	if len(data.Records) == 0 {
		result := e.emptyResult(pc, frameworks)
		e.complete(EntryPerformRiskAssessment, result, start)
		return result, nil
	}

	findings := QuickScanRecords(data.Records, e.cfg.QuickScanRecords)
	findings = append(findings, e.scanRecords(data.Records, e.cfg.QuickScanRecords)...)

	result, err := e.assess(op, findings, FieldDataFromRecords(data.Records), pc, frameworks)
	if err != nil {
		return nil, err
	}
	e.complete(EntryPerformRiskAssessment, result, start)
	return result, nil
}

// AssessComprehensiveRisk assesses caller-supplied findings. Custom patterns are
// applied to the field data before scoring. An empty framework list uses the
// configured default frameworks.
func (e *Engine) AssessComprehensiveRisk(findings []utils.Finding, fieldData FieldData, pc ProcessingContext, frameworks []Framework) (*RiskAssessmentResult, error) {
	const op = "AssessComprehensiveRisk"

	if err := validateFindings(op, findings); err != nil {
		return nil, err
	}
	if err := validateStruct(op, pc); err != nil {
		return nil, err
	}
	if len(frameworks) == 0 {
		frameworks = e.cfg.DefaultFrameworks
	}

	start := e.now()
	all := append(append([]utils.Finding{}, findings...), e.scanFieldData(fieldData)...)

	result, err := e.assess(op, all, fieldData, pc, frameworks)
	if err != nil {
		return nil, err
	}
	e.complete(EntryComprehensive, result, start)
	return result, nil
}

// assess runs every component over validated inputs and builds the result
func (e *Engine) assess(op string, findings []utils.Finding, fieldData FieldData, pc ProcessingContext, frameworks []Framework) (*RiskAssessmentResult, error) {
	if err := validateStruct(op, pc); err != nil {
		return nil, err
	}
	frameworks = dedupeFrameworks(frameworks)
	for _, f := range frameworks {
		if _, err := e.frameworks.lookup(op, f); err != nil {
			return nil, err
		}
	}

	recordCount := fieldData.RecordCount()
	geo := e.geo.AssessJurisdictions(pc.Jurisdictions)
	sensitivity := e.classifier.ClassifyFindings(findings, fieldData)

	violations, err := e.detector.Detect(AssessmentInput{
		Findings:   findings,
		Context:    pc,
		Frameworks: frameworks,
	})
	if err != nil {
		return nil, err
	}

	sub := SubScores{
		DataRisk:       DataRisk(findings, recordCount),
		ComplianceRisk: ComplianceRisk(findings, frameworks, e.frameworks),
		GeographicRisk: geo.RiskScore,
		ProcessingRisk: ProcessingRisk(pc),
	}
	overall := CompositeScore(sub)

	return &RiskAssessmentResult{
		ID:               e.newID(),
		AssessedAt:       e.now().UTC(),
		OverallRiskScore: overall,
		RiskLevel:        RiskLevelForScore(overall),
		SubScores:        sub,
		Findings:         MaskFindings(findings),
		Context:          copyContext(pc),
		Frameworks:       frameworks,
		Geographic:       geo,
		Sensitivity:      sensitivity,
		Violations:       violations,
		Compliance:       e.detector.SummarizeCompliance(frameworks, violations),
		RiskFactors:      e.catalog.Identify(findings, pc, geo, recordCount),
		Recommendations:  GenerateRecommendations(overall, violations),
	}, nil
}

// emptyResult is the zero-risk result of a dataset without records
func (e *Engine) emptyResult(pc ProcessingContext, frameworks []Framework) *RiskAssessmentResult {
	frameworks = dedupeFrameworks(frameworks)
	return &RiskAssessmentResult{
		ID:               e.newID(),
		AssessedAt:       e.now().UTC(),
		OverallRiskScore: 0,
		RiskLevel:        RiskLow,
		Findings:         []utils.Finding{},
		Context:          copyContext(pc),
		Frameworks:       frameworks,
		Geographic:       e.geo.AssessJurisdictions(pc.Jurisdictions),
		Sensitivity:      e.classifier.ClassifyFindings(nil, nil),
		Violations:       []ComplianceViolation{},
		Compliance:       e.detector.SummarizeCompliance(frameworks, nil),
		RiskFactors:      []RiskFactor{},
		Recommendations:  GenerateRecommendations(0, nil),
	}
}

// complete stores the result, publishes the completion event and records metrics
func (e *Engine) complete(entryPoint string, result *RiskAssessmentResult, start time.Time) {
	duration := e.now().Sub(start)

	if err := e.store.Append(result.Clone()); err != nil {
		e.logger.Warn("failed to record assessment history", "assessment_id", result.ID, "error", err)
	}

	RecordAssessment(entryPoint, result.OverallRiskScore, result.RiskLevel, duration)
	e.logger.Info("risk assessment completed",
		"assessment_id", result.ID,
		"entry_point", entryPoint,
		"score", result.OverallRiskScore,
		"level", result.RiskLevel,
		"findings", len(result.Findings),
		"violations", len(result.Violations),
		"duration", duration)

	e.events.Publish(AssessmentCompletedEvent{
		AssessmentID:   result.ID,
		EntryPoint:     entryPoint,
		Score:          result.OverallRiskScore,
		Level:          result.RiskLevel,
		Frameworks:     append([]Framework(nil), result.Frameworks...),
		ViolationCount: len(result.Violations),
		FindingCounts:  utils.CountByType(result.Findings),
		CompletedAt:    result.AssessedAt,
		Duration:       duration,
	})
}

// scanRecords applies custom patterns to the first limit records
func (e *Engine) scanRecords(records []map[string]interface{}, limit int) []utils.Finding {
	if len(records) > limit {
		records = records[:limit]
	}
	var findings []utils.Finding
	for _, record := range records {
		for _, field := range sortedKeys(record) {
			if text, ok := scannableText(record[field]); ok {
				findings = append(findings, e.patterns.Scan(text, field)...)
			}
		}
	}
	return findings
}

// scanFieldData applies custom patterns to every value of the field data
func (e *Engine) scanFieldData(fieldData FieldData) []utils.Finding {
	fields := make([]string, 0, len(fieldData))
	for field := range fieldData {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var findings []utils.Finding
	for _, field := range fields {
		for _, v := range fieldData[field] {
			if text, ok := scannableText(v); ok {
				findings = append(findings, e.patterns.Scan(text, field)...)
			}
		}
	}
	return findings
}

// AssessGeographicRisk scores a jurisdiction list with the coarse formula
func (e *Engine) AssessGeographicRisk(jurisdictions []string) GeographicRiskAssessment {
	return e.geo.AssessGeographicRisk(jurisdictions)
}

// AssessTransferRisk scores a source to destinations transfer
func (e *Engine) AssessTransferRisk(source string, destinations []string, framework Framework) (GeographicRiskAssessment, error) {
	return e.geo.AssessTransferRisk(source, destinations, framework)
}

// ClassifyDataSensitivity classifies a dataset from field names and record count
func (e *Engine) ClassifyDataSensitivity(fields []string, recordCount int) DataSensitivityClassification {
	return e.classifier.ClassifyFields(fields, recordCount)
}

// ClassifyFindings classifies a dataset from findings and field data
func (e *Engine) ClassifyFindings(findings []utils.Finding, fieldData FieldData) DataSensitivityClassification {
	return e.classifier.ClassifyFindings(findings, fieldData)
}

// DetectComplianceViolations evaluates findings against the requested frameworks
func (e *Engine) DetectComplianceViolations(input AssessmentInput) ([]ComplianceViolation, error) {
	if err := validateFindings("DetectComplianceViolations", input.Findings); err != nil {
		return nil, err
	}
	return e.detector.Detect(input)
}

// CalculateRiskScore is the generic weighted-average score
func (e *Engine) CalculateRiskScore(factors []WeightedScore) int {
	return CalculateRiskScore(factors)
}

// GenerateMitigationPlan expands a result into a mitigation plan
func (e *Engine) GenerateMitigationPlan(result *RiskAssessmentResult) (*MitigationPlan, error) {
	return e.planner.GenerateMitigationPlan(result)
}

// GenerateMitigationPlanFor expands a stored assessment into a mitigation plan
func (e *Engine) GenerateMitigationPlanFor(assessmentID string) (*MitigationPlan, error) {
	result, ok := e.store.Get(assessmentID)
	if !ok {
		return nil, newRiskError("GenerateMitigationPlan", KindNotFound, "assessment %s not found", assessmentID)
	}
	return e.planner.GenerateMitigationPlan(result)
}

// GetAssessment returns a copy of a stored assessment
func (e *Engine) GetAssessment(id string) (*RiskAssessmentResult, error) {
	result, ok := e.store.Get(id)
	if !ok {
		return nil, newRiskError("GetAssessment", KindNotFound, "assessment %s not found", id)
	}
	return result.Clone(), nil
}

// GetRiskTrends summarizes assessments within period; zero or negative means all history
func (e *Engine) GetRiskTrends(period time.Duration) RiskTrends {
	var since time.Time
	if period > 0 {
		since = e.now().Add(-period)
	}
	return ComputeTrends(e.store.Since(since))
}

// ExportRiskReport prepares a stored assessment for a report renderer
func (e *Engine) ExportRiskReport(assessmentID, format string) (*RiskReportExport, error) {
	result, ok := e.store.Get(assessmentID)
	if !ok {
		return nil, newRiskError("ExportRiskReport", KindNotFound, "assessment %s not found", assessmentID)
	}
	return BuildExport(result, format, e.now(), e.newID)
}

// AddCustomPattern registers a custom pattern
func (e *Engine) AddCustomPattern(p CustomPattern) (string, error) {
	return e.patterns.Add(p)
}

// RemoveCustomPattern deletes a custom pattern
func (e *Engine) RemoveCustomPattern(id string) error {
	return e.patterns.Remove(id)
}

// ListCustomPatterns lists custom patterns by priority
func (e *Engine) ListCustomPatterns() []CustomPattern {
	return e.patterns.List()
}

// BenchmarkPatterns benchmarks every custom pattern against sample
func (e *Engine) BenchmarkPatterns(sample string, iterations int) []PerformanceMetric {
	return e.patterns.Benchmark(sample, iterations)
}

// UpdateConfidenceThreshold sets the custom pattern confidence threshold
func (e *Engine) UpdateConfidenceThreshold(t float64) error {
	return e.patterns.UpdateThreshold(t)
}

// ImportPatternPack imports a pattern pack into the registry
func (e *Engine) ImportPatternPack(pack *PatternPack) ([]string, error) {
	return e.patterns.ImportPack(pack)
}

// contextFromMetadata builds a processing context, defaulting unknown handling
// flags to the riskiest value
func contextFromMetadata(md *DatasetMetadata) ProcessingContext {
	pc := ProcessingContext{StorageMode: StorageCloud}
	if md == nil {
		return pc
	}
	pc.Jurisdictions = append([]string(nil), md.Jurisdictions...)
	pc.ProcessingPurpose = md.ProcessingPurpose
	pc.LawfulBasis = md.LawfulBasis
	if md.StorageMode != "" {
		pc.StorageMode = md.StorageMode
	}
	if md.EncryptionEnabled != nil {
		pc.EncryptionEnabled = *md.EncryptionEnabled
	}
	if md.AccessControlsEnabled != nil {
		pc.AccessControlsEnabled = *md.AccessControlsEnabled
	}
	if md.HasUserConsent != nil {
		pc.HasUserConsent = *md.HasUserConsent
	}
	return pc
}

// inferFrameworks picks frameworks from the dataset type and jurisdictions; GENERAL always applies
func inferFrameworks(md *DatasetMetadata) []Framework {
	frameworks := []Framework{}
	if md != nil {
		dataType := strings.ToLower(md.DataType)
		switch {
		case strings.Contains(dataType, "health") || strings.Contains(dataType, "medical"):
			frameworks = append(frameworks, FrameworkHIPAA)
		case strings.Contains(dataType, "financ") || strings.Contains(dataType, "payment"):
			frameworks = append(frameworks, FrameworkPCIDSS)
		}
		if anyEU(md.Jurisdictions) {
			frameworks = append(frameworks, FrameworkGDPR)
		}
	}
	return append(frameworks, FrameworkGeneral)
}

// validateFindings rejects findings without a type or with confidence outside [0,1]
func validateFindings(op string, findings []utils.Finding) error {
	for i, f := range findings {
		if strings.TrimSpace(f.Type) == "" {
			return newRiskError(op, KindInvalidInput, "finding %d has no type", i)
		}
		if math.IsNaN(f.Confidence) || f.Confidence < 0 || f.Confidence > 1 {
			return newRiskError(op, KindInvalidInput, "finding %d confidence %v outside [0,1]", i, f.Confidence)
		}
	}
	return nil
}

func copyContext(pc ProcessingContext) ProcessingContext {
	pc.Jurisdictions = append([]string(nil), pc.Jurisdictions...)
	return pc
}
