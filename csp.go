package csp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/SamuelRCrider/csp-risk/core"
	"github.com/SamuelRCrider/csp-risk/utils"
)

// DefaultConfigPath is loaded by NewEngine when present
const DefaultConfigPath = "config/risk_engine.yaml"

// ConfigurePatternPack sets the pattern pack imported by engines created afterwards.
// It can be called once at startup.
func ConfigurePatternPack(path string) {
	os.Setenv(core.EnvPatternPack, path)
}

// NewEngine creates an engine from DefaultConfigPath, or from defaults and
// environment variables when the file does not exist
func NewEngine(opts ...core.Option) (*core.Engine, error) {
	path := DefaultConfigPath
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		path = ""
	}
	return NewEngineWithConfig(path, opts...)
}

// NewEngineWithConfig creates an engine from the YAML configuration at path
func NewEngineWithConfig(path string, opts ...core.Option) (*core.Engine, error) {
	cfg, err := core.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return core.NewEngine(append([]core.Option{core.WithConfig(cfg)}, opts...)...)
}

// RunRiskAssessment assesses raw records with a one-off engine
func RunRiskAssessment(records []map[string]interface{}, metadata *core.DatasetMetadata) (*core.RiskAssessmentResult, error) {
	engine, err := NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize risk engine: %w", err)
	}
	defer engine.Close()

	result, err := engine.PerformRiskAssessment(&core.DatasetInput{Records: records, Metadata: metadata})
	if err != nil {
		return nil, fmt.Errorf("risk assessment failed: %w", err)
	}
	return result, nil
}

// RunRiskAssessmentWithConfig is RunRiskAssessment with an explicit configuration file
func RunRiskAssessmentWithConfig(configPath string, records []map[string]interface{}, metadata *core.DatasetMetadata) (*core.RiskAssessmentResult, error) {
	engine, err := NewEngineWithConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize risk engine: %w", err)
	}
	defer engine.Close()

	result, err := engine.PerformRiskAssessment(&core.DatasetInput{Records: records, Metadata: metadata})
	if err != nil {
		return nil, fmt.Errorf("risk assessment failed: %w", err)
	}
	return result, nil
}

// RunComprehensiveAssessment assesses detector findings with a one-off engine
func RunComprehensiveAssessment(findings []utils.Finding, fieldData core.FieldData, pc core.ProcessingContext, frameworks ...core.Framework) (*core.RiskAssessmentResult, error) {
	engine, err := NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize risk engine: %w", err)
	}
	defer engine.Close()

	result, err := engine.AssessComprehensiveRisk(findings, fieldData, pc, frameworks)
	if err != nil {
		return nil, fmt.Errorf("comprehensive assessment failed: %w", err)
	}
	return result, nil
}

// RunComprehensiveAssessmentWithPlan also returns the mitigation plan of the result
func RunComprehensiveAssessmentWithPlan(findings []utils.Finding, fieldData core.FieldData, pc core.ProcessingContext, frameworks ...core.Framework) (*core.RiskAssessmentResult, *core.MitigationPlan, error) {
	engine, err := NewEngine()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize risk engine: %w", err)
	}
	defer engine.Close()

	result, err := engine.AssessComprehensiveRisk(findings, fieldData, pc, frameworks)
	if err != nil {
		return nil, nil, fmt.Errorf("comprehensive assessment failed: %w", err)
	}
	plan, err := engine.GenerateMitigationPlan(result)
	if err != nil {
		return nil, nil, fmt.Errorf("mitigation planning failed: %w", err)
	}
	return result, plan, nil
}
