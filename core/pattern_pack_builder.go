package core

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PatternPackBuilder provides a fluent interface for creating pattern packs
type PatternPackBuilder struct {
	pack *PatternPack
}

// NewPatternPackBuilder creates a new builder for the named pack
func NewPatternPackBuilder(name string) *PatternPackBuilder {
	now := time.Now().UTC()
	return &PatternPackBuilder{
		pack: &PatternPack{
			Metadata: PackMetadata{
				Name:      name,
				CreatedAt: now,
				UpdatedAt: now,
			},
			Patterns: []CustomPattern{},
		},
	}
}

// WithMetadata sets the pack version, description and author
func (b *PatternPackBuilder) WithMetadata(version, description, author string) *PatternPackBuilder {
	b.pack.Metadata.Version = version
	b.pack.Metadata.Description = description
	b.pack.Metadata.Author = author
	return b
}

// WithFrameworks sets the frameworks the pack addresses
func (b *PatternPackBuilder) WithFrameworks(frameworks ...Framework) *PatternPackBuilder {
	b.pack.Metadata.Frameworks = frameworks
	return b
}

// AddPattern adds an enabled pattern with medium risk
func (b *PatternPackBuilder) AddPattern(name, pattern string, confidence float64) *PatternPackBuilder {
	b.pack.Patterns = append(b.pack.Patterns, CustomPattern{
		Name:       name,
		Pattern:    pattern,
		Confidence: confidence,
		RiskLevel:  RiskMedium,
		Enabled:    true,
	})
	return b
}

// ConfigureLastPattern configures additional properties of the last added pattern
func (b *PatternPackBuilder) ConfigureLastPattern() *PatternConfigurator {
	if len(b.pack.Patterns) == 0 {
		b.pack.Patterns = append(b.pack.Patterns, CustomPattern{})
	}

	return &PatternConfigurator{
		builder: b,
		pattern: &b.pack.Patterns[len(b.pack.Patterns)-1],
	}
}

// Build validates and returns the pack
func (b *PatternPackBuilder) Build() (*PatternPack, error) {
	b.pack.Metadata.UpdatedAt = time.Now().UTC()
	if err := validatePack(b.pack); err != nil {
		return nil, err
	}
	return b.pack, nil
}

// SaveToFile builds the pack and writes it as YAML
func (b *PatternPackBuilder) SaveToFile(path string) error {
	pack, err := b.Build()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(pack)
	if err != nil {
		return fmt.Errorf("failed to serialize pattern pack: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write pattern pack: %w", err)
	}
	return nil
}

// PatternConfigurator provides methods to configure a pattern
type PatternConfigurator struct {
	builder *PatternPackBuilder
	pattern *CustomPattern
}

// WithFindingType sets the finding type reported for matches
func (c *PatternConfigurator) WithFindingType(findingType string) *PatternConfigurator {
	c.pattern.FindingType = findingType
	return c
}

// WithRiskLevel sets the risk level
func (c *PatternConfigurator) WithRiskLevel(level RiskLevel) *PatternConfigurator {
	c.pattern.RiskLevel = level
	return c
}

// WithPriority sets the scan priority; higher runs first
func (c *PatternConfigurator) WithPriority(priority int) *PatternConfigurator {
	c.pattern.Priority = priority
	return c
}

// WithFrameworks sets the frameworks the pattern applies to
func (c *PatternConfigurator) WithFrameworks(frameworks ...Framework) *PatternConfigurator {
	c.pattern.ApplicableFrameworks = frameworks
	return c
}

// WithDescription sets the description
func (c *PatternConfigurator) WithDescription(description string) *PatternConfigurator {
	c.pattern.Description = description
	return c
}

// Disabled marks the pattern as disabled
func (c *PatternConfigurator) Disabled() *PatternConfigurator {
	c.pattern.Enabled = false
	return c
}

// Done returns to the pack builder
func (c *PatternConfigurator) Done() *PatternPackBuilder {
	return c.builder
}
