package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// PackMetadata contains information about a pattern pack
type PackMetadata struct {
	// Name identifies the pack; re-importing a pack replaces its patterns
	Name string `yaml:"name" json:"name"`

	// Semantic version of the pack
	Version string `yaml:"version" json:"version"`

	// When the pack was created
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`

	// Last modification time
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`

	// Description of the pack
	Description string `yaml:"description" json:"description"`

	// Author of the pack
	Author string `yaml:"author" json:"author"`

	// Hash of the pack content for integrity verification
	Hash string `yaml:"hash,omitempty" json:"hash,omitempty"`

	// Compliance frameworks this pack addresses
	Frameworks []Framework `yaml:"frameworks,omitempty" json:"frameworks,omitempty"`
}

// PatternPack is a versioned YAML bundle of custom patterns
type PatternPack struct {
	Metadata PackMetadata    `yaml:"metadata" json:"metadata"`
	Patterns []CustomPattern `yaml:"patterns" json:"patterns"`
}

// LoadPatternPack reads and validates a YAML pattern pack
func LoadPatternPack(path string) (*PatternPack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern pack: %w", err)
	}
	return ParsePatternPack(data)
}

// ParsePatternPack parses and validates pattern pack YAML
func ParsePatternPack(data []byte) (*PatternPack, error) {
	var pack PatternPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, newRiskError("LoadPatternPack", KindInvalidInput, "failed to parse pattern pack: %v", err)
	}

	if err := validatePack(&pack); err != nil {
		return nil, err
	}

	// Hash the raw content for integrity checking
	pack.Metadata.Hash = calculatePackHash(data)
	return &pack, nil
}

// SavePatternPack writes a pack to disk, refreshing its timestamp and hash
func SavePatternPack(pack *PatternPack, path string) error {
	if err := validatePack(pack); err != nil {
		return err
	}
	pack.Metadata.UpdatedAt = time.Now().UTC()
	pack.Metadata.Hash = ""

	data, err := yaml.Marshal(pack)
	if err != nil {
		return fmt.Errorf("failed to serialize pattern pack: %w", err)
	}
	pack.Metadata.Hash = calculatePackHash(data)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write pattern pack: %w", err)
	}
	return nil
}

// validatePack checks the pack metadata and every pattern
func validatePack(pack *PatternPack) error {
	const op = "ValidatePatternPack"

	if pack.Metadata.Name == "" {
		return newRiskError(op, KindInvalidInput, "pattern pack has no name")
	}
	if _, err := semver.NewVersion(pack.Metadata.Version); err != nil {
		return newRiskError(op, KindInvalidInput, "pattern pack %s has invalid version %q: %v", pack.Metadata.Name, pack.Metadata.Version, err)
	}
	for i, p := range pack.Patterns {
		if err := validateStruct(op, p); err != nil {
			return fmt.Errorf("pattern %d of pack %s: %w", i, pack.Metadata.Name, err)
		}
	}
	return nil
}

// calculatePackHash generates a hash of the pack content
func calculatePackHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ImportPack registers every pattern of pack, replacing patterns previously
// imported from a pack of the same name. Older pack versions are rejected.
// Nothing is changed if any pattern fails to compile.
func (r *PatternRegistry) ImportPack(pack *PatternPack) ([]string, error) {
	const op = "ImportPatternPack"

	if pack == nil {
		return nil, newRiskError(op, KindInvalidInput, "pattern pack is required")
	}
	if err := validatePack(pack); err != nil {
		return nil, err
	}
	version, _ := semver.NewVersion(pack.Metadata.Version)
	if err := r.enforceMonotonicVersion(pack.Metadata.Name, version); err != nil {
		return nil, err
	}

	for _, p := range pack.Patterns {
		if _, err := compilePattern(op, p); err != nil {
			return nil, err
		}
	}

	for _, existing := range r.List() {
		if existing.Pack == pack.Metadata.Name {
			if err := r.Remove(existing.ID); err != nil && KindOf(err) != KindNotFound {
				return nil, err
			}
		}
	}

	ids := make([]string, 0, len(pack.Patterns))
	for _, p := range pack.Patterns {
		p.Pack = pack.Metadata.Name
		id, err := r.Add(p)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}

	r.mu.Lock()
	r.packVersions[pack.Metadata.Name] = version
	r.mu.Unlock()

	r.logger.Info("pattern pack imported",
		"pack", pack.Metadata.Name,
		"version", pack.Metadata.Version,
		"patterns", len(ids),
		"hash", pack.Metadata.Hash)
	return ids, nil
}

// PackVersion returns the installed version of a pack
func (r *PatternRegistry) PackVersion(name string) (*semver.Version, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.packVersions[name]
	return v, ok
}

// enforceMonotonicVersion rejects importing an older version of an installed pack
func (r *PatternRegistry) enforceMonotonicVersion(name string, next *semver.Version) error {
	current, ok := r.PackVersion(name)
	if !ok || current == nil {
		return nil
	}
	if next.LessThan(current) {
		return newRiskError("ImportPatternPack", KindInvalidInput, "rollback of pack %s from %s to %s denied", name, current, next)
	}
	return nil
}

// GenerateDefaultPatternPack creates a starter pack of organization-specific patterns
func GenerateDefaultPatternPack() *PatternPack {
	now := time.Now().UTC()
	return &PatternPack{
		Metadata: PackMetadata{
			Name:        "default",
			Version:     "1.0.0",
			CreatedAt:   now,
			UpdatedAt:   now,
			Description: "Starter custom patterns for common internal identifiers",
			Author:      "csp-risk",
			Frameworks:  []Framework{FrameworkGeneral, FrameworkHIPAA, FrameworkPCIDSS},
		},
		Patterns: []CustomPattern{
			{
				Name:                 "employee_id",
				Pattern:              `\bEMP-\d{6}\b`,
				Confidence:           0.9,
				RiskLevel:            RiskMedium,
				ApplicableFrameworks: []Framework{FrameworkGeneral},
				Enabled:              true,
				Priority:             10,
				Description:          "Internal employee identifier",
			},
			{
				Name:                 "mrn",
				FindingType:          "medical_record_number",
				Pattern:              `\bMRN[-:]?\s?\d{6,10}\b`,
				Confidence:           0.85,
				RiskLevel:            RiskCritical,
				ApplicableFrameworks: []Framework{FrameworkHIPAA},
				Enabled:              true,
				Priority:             20,
				Description:          "Medical record number with MRN prefix",
			},
			{
				Name:                 "iban",
				FindingType:          "iban",
				Pattern:              `\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`,
				Confidence:           0.7,
				RiskLevel:            RiskHigh,
				ApplicableFrameworks: []Framework{FrameworkPCIDSS},
				Enabled:              true,
				Priority:             15,
				Description:          "International bank account number",
			},
		},
	}
}
