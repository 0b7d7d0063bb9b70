package core

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/SamuelRCrider/csp-risk/utils"
	"github.com/google/uuid"
)

// DefaultConfidenceThreshold is the minimum pattern confidence applied when scanning
const DefaultConfidenceThreshold = 0.5

// CustomPattern is a user-defined detection pattern
type CustomPattern struct {
	ID      string `json:"id" yaml:"id,omitempty"`
	Name    string `json:"name" yaml:"name" validate:"required,max=128,patternname"`
	Pattern string `json:"pattern" yaml:"pattern" validate:"required"`

	// FindingType is the type reported on findings; defaults to Name
	FindingType string `json:"finding_type,omitempty" yaml:"finding_type,omitempty"`

	Confidence           float64     `json:"confidence" yaml:"confidence" validate:"gte=0,lte=1"`
	RiskLevel            RiskLevel   `json:"risk_level" yaml:"risk_level" validate:"omitempty,oneof=low medium high critical"`
	ApplicableFrameworks []Framework `json:"applicable_frameworks,omitempty" yaml:"applicable_frameworks,omitempty"`
	Enabled              bool        `json:"enabled" yaml:"enabled"`
	Priority             int         `json:"priority" yaml:"priority"`
	Description          string      `json:"description,omitempty" yaml:"description,omitempty"`

	// Pack is the name of the pattern pack the pattern was imported from
	Pack string `json:"pack,omitempty" yaml:"-"`
}

func (p CustomPattern) findingType() string {
	if p.FindingType != "" {
		return p.FindingType
	}
	return p.Name
}

func copyPattern(p CustomPattern) CustomPattern {
	p.ApplicableFrameworks = append([]Framework(nil), p.ApplicableFrameworks...)
	return p
}

// PerformanceMetric is the benchmark result of one pattern
type PerformanceMetric struct {
	PatternID           string  `json:"pattern_id"`
	PatternName         string  `json:"pattern_name"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
	TotalExecutions     int     `json:"total_executions"`
	Errors              int     `json:"errors"`
	Matches             int     `json:"matches"`
}

// PatternStore persists custom patterns
type PatternStore interface {
	Put(p CustomPattern) error
	Get(id string) (CustomPattern, bool)
	Delete(id string) bool
	List() []CustomPattern
}

// MemoryPatternStore is an in-memory PatternStore
type MemoryPatternStore struct {
	mu       sync.Mutex
	patterns map[string]CustomPattern
}

// NewMemoryPatternStore creates an empty in-memory store
func NewMemoryPatternStore() *MemoryPatternStore {
	return &MemoryPatternStore{patterns: make(map[string]CustomPattern)}
}

// Put stores or replaces a pattern
func (s *MemoryPatternStore) Put(p CustomPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[p.ID] = copyPattern(p)
	return nil
}

// Get looks up a pattern by id
func (s *MemoryPatternStore) Get(id string) (CustomPattern, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok {
		return CustomPattern{}, false
	}
	return copyPattern(p), true
}

// Delete removes a pattern and reports whether it existed
func (s *MemoryPatternStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patterns[id]; !ok {
		return false
	}
	delete(s.patterns, id)
	return true
}

// List returns all stored patterns in no particular order
func (s *MemoryPatternStore) List() []CustomPattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CustomPattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, copyPattern(p))
	}
	return out
}

// PatternEvent describes a registry mutation
type PatternEvent struct {
	Action  string
	Pattern CustomPattern
}

// Pattern registry actions
const (
	PatternAdded   = "pattern_added"
	PatternRemoved = "pattern_removed"
)

// PatternRegistry holds custom patterns, their compiled regexes and the confidence threshold
type PatternRegistry struct {
	mu        sync.Mutex
	store     PatternStore
	compiled  map[string]*regexp.Regexp
	threshold float64
	newID     func() string
	logger    *slog.Logger
	observers []func(PatternEvent)

	// name labels the registry's series of the custom pattern gauge
	name string

	packVersions map[string]*semver.Version
}

// PatternRegistryOption configures a PatternRegistry
type PatternRegistryOption func(*PatternRegistry)

// WithPatternLogger sets the registry logger
func WithPatternLogger(logger *slog.Logger) PatternRegistryOption {
	return func(r *PatternRegistry) { r.logger = logger }
}

// WithPatternIDGenerator sets the pattern id generator
func WithPatternIDGenerator(newID func() string) PatternRegistryOption {
	return func(r *PatternRegistry) { r.newID = newID }
}

// WithPatternObserver registers a callback invoked after every add and remove
func WithPatternObserver(fn func(PatternEvent)) PatternRegistryOption {
	return func(r *PatternRegistry) { r.observers = append(r.observers, fn) }
}

// WithRegistryName sets the registry label of the custom pattern gauge
func WithRegistryName(name string) PatternRegistryOption {
	return func(r *PatternRegistry) { r.name = name }
}

// WithConfidenceThreshold sets the initial scan threshold; out-of-range values are ignored
func WithConfidenceThreshold(t float64) PatternRegistryOption {
	return func(r *PatternRegistry) {
		if t >= 0 && t <= 1 {
			r.threshold = t
		}
	}
}

// NewPatternRegistry creates a registry over store (an in-memory store when nil)
func NewPatternRegistry(store PatternStore, opts ...PatternRegistryOption) *PatternRegistry {
	if store == nil {
		store = NewMemoryPatternStore()
	}
	r := &PatternRegistry{
		store:        store,
		compiled:     make(map[string]*regexp.Regexp),
		threshold:    DefaultConfidenceThreshold,
		packVersions: make(map[string]*semver.Version),
		newID:        uuid.NewString,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.name == "" {
		r.name = uuid.NewString()
	}
	r.updateGauge()
	return r
}

// Name returns the registry label used in metrics
func (r *PatternRegistry) Name() string { return r.name }

// Close removes the registry's gauge series
func (r *PatternRegistry) Close() {
	CustomPatternsGauge.DeleteLabelValues(r.name)
}

func (r *PatternRegistry) updateGauge() {
	CustomPatternsGauge.WithLabelValues(r.name).Set(float64(len(r.store.List())))
}

// Add validates and registers a pattern, returning its generated id
func (r *PatternRegistry) Add(p CustomPattern) (string, error) {
	const op = "AddCustomPattern"

	if err := validateStruct(op, p); err != nil {
		return "", err
	}
	re, err := compilePattern(op, p)
	if err != nil {
		return "", err
	}
	if p.RiskLevel == "" {
		p.RiskLevel = RiskMedium
	}

	r.mu.Lock()
	p.ID = r.newID()
	if err := r.store.Put(p); err != nil {
		r.mu.Unlock()
		return "", fmt.Errorf("%s: store pattern: %w", op, err)
	}
	r.compiled[p.ID] = re
	r.mu.Unlock()

	r.updateGauge()
	r.logger.Info("custom pattern added", "pattern_id", p.ID, "name", p.Name, "priority", p.Priority)
	r.notify(PatternEvent{Action: PatternAdded, Pattern: p})
	return p.ID, nil
}

func compilePattern(op string, p CustomPattern) (*regexp.Regexp, error) {
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return nil, &RiskError{Op: op, Kind: KindInvalidPattern, Err: fmt.Errorf("pattern %q does not compile: %w", p.Name, err)}
	}
	if re.MatchString("") {
		return nil, &RiskError{Op: op, Kind: KindInvalidPattern, Err: fmt.Errorf("pattern %q matches the empty string", p.Name)}
	}
	return re, nil
}

// Remove deletes a pattern by id
func (r *PatternRegistry) Remove(id string) error {
	r.mu.Lock()
	p, ok := r.store.Get(id)
	if ok {
		r.store.Delete(id)
		delete(r.compiled, id)
	}
	r.mu.Unlock()

	if !ok {
		return newRiskError("RemoveCustomPattern", KindNotFound, "custom pattern %s not found", id)
	}
	r.updateGauge()
	r.logger.Info("custom pattern removed", "pattern_id", id, "name", p.Name)
	r.notify(PatternEvent{Action: PatternRemoved, Pattern: p})
	return nil
}

// Get looks up a pattern by id
func (r *PatternRegistry) Get(id string) (CustomPattern, error) {
	p, ok := r.store.Get(id)
	if !ok {
		return CustomPattern{}, newRiskError("GetCustomPattern", KindNotFound, "custom pattern %s not found", id)
	}
	return p, nil
}

// List returns all patterns ordered by priority (highest first), then name and id
func (r *PatternRegistry) List() []CustomPattern {
	r.mu.Lock()
	patterns := r.store.List()
	r.mu.Unlock()

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Priority != patterns[j].Priority {
			return patterns[i].Priority > patterns[j].Priority
		}
		if patterns[i].Name != patterns[j].Name {
			return patterns[i].Name < patterns[j].Name
		}
		return patterns[i].ID < patterns[j].ID
	})
	return patterns
}

// UpdateThreshold sets the minimum confidence of patterns applied during scans
func (r *PatternRegistry) UpdateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return newRiskError("UpdateConfidenceThreshold", KindInvalidThreshold, "threshold %v outside [0,1]", t)
	}
	r.mu.Lock()
	r.threshold = t
	r.mu.Unlock()
	r.logger.Info("confidence threshold updated", "threshold", t)
	return nil
}

// Threshold returns the current confidence threshold
func (r *PatternRegistry) Threshold() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threshold
}

// regexFor returns the compiled regex of a pattern, compiling and caching it on first use
func (r *PatternRegistry) regexFor(p CustomPattern) (*regexp.Regexp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if re, ok := r.compiled[p.ID]; ok {
		return re, nil
	}
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return nil, err
	}
	r.compiled[p.ID] = re
	return re, nil
}

// Scan applies enabled patterns at or above the threshold to text, in priority order.
// Zero-length matches are skipped.
func (r *PatternRegistry) Scan(text, fieldName string) []utils.Finding {
	threshold := r.Threshold()
	var findings []utils.Finding
	for _, p := range r.List() {
		if !p.Enabled || p.Confidence < threshold {
			continue
		}
		re, err := r.regexFor(p)
		if err != nil {
			r.logger.Warn("skipping uncompilable custom pattern", "pattern_id", p.ID, "error", err)
			continue
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if loc[0] == loc[1] {
				continue
			}
			findings = append(findings, utils.Finding{
				Type:       p.findingType(),
				FieldName:  fieldName,
				Confidence: p.Confidence,
				Value:      text[loc[0]:loc[1]],
				StartIndex: loc[0],
				EndIndex:   loc[1],
				Source:     utils.SourceCustomPattern,
				PatternID:  p.ID,
			})
		}
	}
	return findings
}

// Benchmark runs every pattern against sample for the given number of iterations
// (at least one). A failing pattern has its errors counted and does not stop the run.
func (r *PatternRegistry) Benchmark(sample string, iterations int) []PerformanceMetric {
	if iterations < 1 {
		iterations = 1
	}

	patterns := r.List()
	metrics := make([]PerformanceMetric, 0, len(patterns))
	for _, p := range patterns {
		metric := PerformanceMetric{PatternID: p.ID, PatternName: p.Name}

		re, err := r.regexFor(p)
		if err != nil {
			metric.Errors = iterations
			RecordPatternError(p.ID)
			r.logger.Warn("benchmark: pattern does not compile", "pattern_id", p.ID, "error", err)
			metrics = append(metrics, metric)
			continue
		}

		var total time.Duration
		for i := 0; i < iterations; i++ {
			elapsed, matches, err := runPatternOnce(re, sample)
			metric.TotalExecutions++
			if err != nil {
				metric.Errors++
				RecordPatternError(p.ID)
				r.logger.Warn("benchmark: pattern execution failed", "pattern_id", p.ID, "error", err)
				continue
			}
			total += elapsed
			metric.Matches = matches
			RecordPatternExecution(p.ID, elapsed)
		}
		if succeeded := metric.TotalExecutions - metric.Errors; succeeded > 0 {
			metric.AvgProcessingTimeMs = float64(total.Microseconds()) / 1000 / float64(succeeded)
		}
		metrics = append(metrics, metric)
	}
	return metrics
}

func runPatternOnce(re *regexp.Regexp, sample string) (elapsed time.Duration, matches int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pattern panicked: %v", rec)
		}
	}()
	start := time.Now()
	matches = len(re.FindAllStringIndex(sample, -1))
	return time.Since(start), matches, nil
}

func (r *PatternRegistry) notify(ev PatternEvent) {
	for _, fn := range r.observers {
		fn(ev)
	}
}
