package mcpserver

import (
	"context"

	"github.com/SamuelRCrider/csp-risk/core"
	"github.com/SamuelRCrider/csp-risk/utils"
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names
const (
	ToolAssessDataset             = "assess_dataset"
	ToolAssessComprehensive       = "assess_comprehensive"
	ToolAssessGeographicRisk      = "assess_geographic_risk"
	ToolAssessTransferRisk        = "assess_transfer_risk"
	ToolClassifyFields            = "classify_fields"
	ToolDetectViolations          = "detect_violations"
	ToolCalculateRiskScore        = "calculate_risk_score"
	ToolGenerateMitigationPlan    = "generate_mitigation_plan"
	ToolGetRiskTrends             = "get_risk_trends"
	ToolExportRiskReport          = "export_risk_report"
	ToolAddCustomPattern          = "add_custom_pattern"
	ToolRemoveCustomPattern       = "remove_custom_pattern"
	ToolListCustomPatterns        = "list_custom_patterns"
	ToolBenchmarkPatterns         = "benchmark_patterns"
	ToolUpdateConfidenceThreshold = "update_confidence_threshold"
)

const defaultBenchmarkIterations = 100

func (s *Server) registerTools() {
	s.addTool(mcp.NewTool(ToolAssessDataset,
		mcp.WithDescription("Assess raw records with the quick-scan detector and optional metadata"),
		mcp.WithString("dataset", mcp.Required(),
			mcp.Description(`JSON object {"records": [...], "metadata": {...}}`)),
	), s.assessDataset)

	s.addTool(mcp.NewTool(ToolAssessComprehensive,
		mcp.WithDescription("Score detector findings against a processing context and frameworks"),
		mcp.WithString("findings", mcp.Required(), mcp.Description("JSON array of findings")),
		mcp.WithString("context", mcp.Required(), mcp.Description("JSON processing context")),
		mcp.WithString("field_data", mcp.Description("JSON object mapping field names to value columns")),
		mcp.WithString("frameworks", mcp.Description("Comma-separated frameworks; defaults from configuration")),
	), s.assessComprehensive)

	s.addTool(mcp.NewTool(ToolAssessGeographicRisk,
		mcp.WithDescription("Coarse geographic risk of a set of jurisdictions"),
		mcp.WithString("jurisdictions", mcp.Required(), mcp.Description("Comma-separated ISO country codes")),
	), s.assessGeographicRisk)

	s.addTool(mcp.NewTool(ToolAssessTransferRisk,
		mcp.WithDescription("Risk of transferring data from a source to destination jurisdictions"),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source ISO country code")),
		mcp.WithString("destinations", mcp.Required(), mcp.Description("Comma-separated destination codes")),
		mcp.WithString("framework", mcp.Description("Framework whose cross-border rule applies")),
	), s.assessTransferRisk)

	s.addTool(mcp.NewTool(ToolClassifyFields,
		mcp.WithDescription("Classify data sensitivity from field names or findings"),
		mcp.WithString("fields", mcp.Description("Comma-separated field names")),
		mcp.WithNumber("record_count", mcp.Description("Number of records in the dataset")),
		mcp.WithString("findings", mcp.Description("JSON array of findings; takes precedence over fields")),
		mcp.WithString("field_data", mcp.Description("JSON object mapping field names to value columns")),
	), s.classifyFields)

	s.addTool(mcp.NewTool(ToolDetectViolations,
		mcp.WithDescription("Detect compliance violations for findings in a processing context"),
		mcp.WithString("findings", mcp.Required(), mcp.Description("JSON array of findings")),
		mcp.WithString("context", mcp.Required(), mcp.Description("JSON processing context")),
		mcp.WithString("frameworks", mcp.Description("Comma-separated frameworks; empty evaluates all registered")),
	), s.detectViolations)

	s.addTool(mcp.NewTool(ToolCalculateRiskScore,
		mcp.WithDescription("Weighted average of scored factors, clamped to 0-100"),
		mcp.WithString("factors", mcp.Required(), mcp.Description(`JSON array of {"weight": w, "score": s}`)),
	), s.calculateRiskScore)

	s.addTool(mcp.NewTool(ToolGenerateMitigationPlan,
		mcp.WithDescription("Build a mitigation plan for a stored assessment"),
		mcp.WithString("assessment_id", mcp.Required(), mcp.Description("Assessment id")),
	), s.generateMitigationPlan)

	s.addTool(mcp.NewTool(ToolGetRiskTrends,
		mcp.WithDescription("Trend of overall scores over a period of history"),
		mcp.WithString("period", mcp.Description(`Window such as "7d" or "24h"; "all" by default`)),
	), s.getRiskTrends)

	s.addTool(mcp.NewTool(ToolExportRiskReport,
		mcp.WithDescription("Export a stored assessment for a report renderer"),
		mcp.WithString("assessment_id", mcp.Required(), mcp.Description("Assessment id")),
		mcp.WithString("format", mcp.Description("json, csv or pdf; json by default")),
	), s.exportRiskReport)

	s.addTool(mcp.NewTool(ToolAddCustomPattern,
		mcp.WithDescription("Register a custom detection pattern"),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("JSON custom pattern")),
	), s.addCustomPattern)

	s.addTool(mcp.NewTool(ToolRemoveCustomPattern,
		mcp.WithDescription("Remove a custom detection pattern"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Pattern id")),
	), s.removeCustomPattern)

	s.addTool(mcp.NewTool(ToolListCustomPatterns,
		mcp.WithDescription("List custom detection patterns by priority"),
	), s.listCustomPatterns)

	s.addTool(mcp.NewTool(ToolBenchmarkPatterns,
		mcp.WithDescription("Benchmark every custom pattern against sample text"),
		mcp.WithString("sample", mcp.Required(), mcp.Description("Sample text")),
		mcp.WithNumber("iterations", mcp.Description("Executions per pattern; 100 by default")),
	), s.benchmarkPatterns)

	s.addTool(mcp.NewTool(ToolUpdateConfidenceThreshold,
		mcp.WithDescription("Set the minimum confidence of applied custom patterns"),
		mcp.WithNumber("threshold", mcp.Required(), mcp.Description("Threshold between 0 and 1")),
	), s.updateConfidenceThreshold)
}

func (s *Server) assessDataset(_ context.Context, args arguments) (interface{}, error) {
	var input core.DatasetInput
	if err := args.Decode("dataset", &input, true); err != nil {
		return nil, err
	}
	return s.engine.PerformRiskAssessment(&input)
}

func (s *Server) assessComprehensive(_ context.Context, args arguments) (interface{}, error) {
	var findings []utils.Finding
	if err := args.Decode("findings", &findings, true); err != nil {
		return nil, err
	}
	var pc core.ProcessingContext
	if err := args.Decode("context", &pc, true); err != nil {
		return nil, err
	}
	var fieldData core.FieldData
	if err := args.decodeOptional("field_data", &fieldData); err != nil {
		return nil, err
	}
	frameworks, err := args.Frameworks("frameworks")
	if err != nil {
		return nil, err
	}
	return s.engine.AssessComprehensiveRisk(findings, fieldData, pc, frameworks)
}

func (s *Server) assessGeographicRisk(_ context.Context, args arguments) (interface{}, error) {
	jurisdictions, err := args.StringList("jurisdictions")
	if err != nil {
		return nil, err
	}
	if len(jurisdictions) == 0 {
		return nil, args.invalid("jurisdictions is required")
	}
	return s.engine.AssessGeographicRisk(jurisdictions), nil
}

func (s *Server) assessTransferRisk(_ context.Context, args arguments) (interface{}, error) {
	source, err := args.RequiredString("source")
	if err != nil {
		return nil, err
	}
	destinations, err := args.StringList("destinations")
	if err != nil {
		return nil, err
	}
	var framework core.Framework
	if args.has("framework") {
		frameworks, err := args.Frameworks("framework")
		if err != nil {
			return nil, err
		}
		if len(frameworks) > 1 {
			return nil, args.invalid("framework takes a single value")
		}
		if len(frameworks) == 1 {
			framework = frameworks[0]
		}
	}
	return s.engine.AssessTransferRisk(source, destinations, framework)
}

func (s *Server) classifyFields(_ context.Context, args arguments) (interface{}, error) {
	if args.has("findings") {
		var findings []utils.Finding
		if err := args.Decode("findings", &findings, true); err != nil {
			return nil, err
		}
		var fieldData core.FieldData
		if err := args.decodeOptional("field_data", &fieldData); err != nil {
			return nil, err
		}
		return s.engine.ClassifyFindings(findings, fieldData), nil
	}

	fields, err := args.StringList("fields")
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, args.invalid("fields or findings is required")
	}
	recordCount, err := args.Number("record_count", 0)
	if err != nil {
		return nil, err
	}
	if recordCount < 0 {
		return nil, args.invalid("record_count must not be negative")
	}
	return s.engine.ClassifyDataSensitivity(fields, int(recordCount)), nil
}

// violationReport is the detect_violations result
type violationReport struct {
	Violations           []core.ComplianceViolation `json:"violations"`
	Count                int                        `json:"count"`
	HasCriticalViolation bool                       `json:"has_critical_violation"`
}

func (s *Server) detectViolations(_ context.Context, args arguments) (interface{}, error) {
	var input core.AssessmentInput
	if err := args.Decode("findings", &input.Findings, true); err != nil {
		return nil, err
	}
	if err := args.Decode("context", &input.Context, true); err != nil {
		return nil, err
	}
	frameworks, err := args.Frameworks("frameworks")
	if err != nil {
		return nil, err
	}
	input.Frameworks = frameworks

	violations, err := s.engine.DetectComplianceViolations(input)
	if err != nil {
		return nil, err
	}
	return violationReport{
		Violations:           violations,
		Count:                len(violations),
		HasCriticalViolation: core.HasCriticalViolation(violations),
	}, nil
}

// scoreReport is the calculate_risk_score result
type scoreReport struct {
	Score     int            `json:"score"`
	RiskLevel core.RiskLevel `json:"risk_level"`
}

func (s *Server) calculateRiskScore(_ context.Context, args arguments) (interface{}, error) {
	var factors []core.WeightedScore
	if err := args.Decode("factors", &factors, true); err != nil {
		return nil, err
	}
	score := s.engine.CalculateRiskScore(factors)
	return scoreReport{Score: score, RiskLevel: core.RiskLevelForScore(score)}, nil
}

func (s *Server) generateMitigationPlan(_ context.Context, args arguments) (interface{}, error) {
	id, err := args.RequiredString("assessment_id")
	if err != nil {
		return nil, err
	}
	return s.engine.GenerateMitigationPlanFor(id)
}

func (s *Server) getRiskTrends(_ context.Context, args arguments) (interface{}, error) {
	raw, err := args.String("period")
	if err != nil {
		return nil, err
	}
	period, err := core.ParseTrendPeriod(raw)
	if err != nil {
		return nil, err
	}
	return s.engine.GetRiskTrends(period), nil
}

func (s *Server) exportRiskReport(_ context.Context, args arguments) (interface{}, error) {
	id, err := args.RequiredString("assessment_id")
	if err != nil {
		return nil, err
	}
	format, err := args.String("format")
	if err != nil {
		return nil, err
	}
	return s.engine.ExportRiskReport(id, format)
}

func (s *Server) addCustomPattern(_ context.Context, args arguments) (interface{}, error) {
	var p core.CustomPattern
	if err := args.Decode("pattern", &p, true); err != nil {
		return nil, err
	}
	id, err := s.engine.AddCustomPattern(p)
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": id}, nil
}

func (s *Server) removeCustomPattern(_ context.Context, args arguments) (interface{}, error) {
	id, err := args.RequiredString("id")
	if err != nil {
		return nil, err
	}
	if err := s.engine.RemoveCustomPattern(id); err != nil {
		return nil, err
	}
	return map[string]string{"removed": id}, nil
}

func (s *Server) listCustomPatterns(_ context.Context, _ arguments) (interface{}, error) {
	return s.engine.ListCustomPatterns(), nil
}

func (s *Server) benchmarkPatterns(_ context.Context, args arguments) (interface{}, error) {
	sample, err := args.RequiredString("sample")
	if err != nil {
		return nil, err
	}
	iterations, err := args.Number("iterations", defaultBenchmarkIterations)
	if err != nil {
		return nil, err
	}
	if iterations < 1 {
		return nil, args.invalid("iterations must be at least 1")
	}
	return s.engine.BenchmarkPatterns(sample, int(iterations)), nil
}

func (s *Server) updateConfidenceThreshold(_ context.Context, args arguments) (interface{}, error) {
	threshold, err := args.Number("threshold", -1)
	if err != nil {
		return nil, err
	}
	if err := s.engine.UpdateConfidenceThreshold(threshold); err != nil {
		return nil, err
	}
	return map[string]float64{"threshold": s.engine.Patterns().Threshold()}, nil
}
