package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recommendation texts
const (
	ActionRestrictAccess     = "Restrict access to sensitive data immediately"
	ActionFieldEncryption    = "Enable field-level encryption for sensitive fields"
	ActionRetentionPolicy    = "Implement a data retention policy"
	ActionRBAC               = "Implement role-based access control (RBAC)"
	ActionPeriodicDPIA       = "Conduct periodic Data Protection Impact Assessments (DPIA)"
	ActionAutomatedDiscovery = "Deploy automated data discovery and classification"
	ActionNotifyLegal        = "Notify legal and compliance teams of critical violations"
	ActionAddressViolations  = "Address critical compliance violations immediately"
)

// GenerateRecommendations derives the action lists from the overall score and violations
func GenerateRecommendations(overallScore int, violations []ComplianceViolation) Recommendations {
	rec := Recommendations{
		Immediate: []string{},
		ShortTerm: []string{},
		LongTerm:  []string{ActionPeriodicDPIA, ActionAutomatedDiscovery},
	}
	if overallScore > 80 {
		rec.Immediate = append(rec.Immediate, ActionRestrictAccess, ActionFieldEncryption)
	}
	if overallScore > 60 {
		rec.ShortTerm = append(rec.ShortTerm, ActionRetentionPolicy, ActionRBAC)
	}
	if HasCriticalViolation(violations) {
		rec.Immediate = append(rec.Immediate, ActionNotifyLegal, ActionAddressViolations)
	}
	return rec
}

// ActionPriority ranks plan actions and plans
type ActionPriority string

const (
	PriorityImmediate ActionPriority = "immediate"
	PriorityHigh      ActionPriority = "high"
)

// ActionStatus tracks implementation progress of a plan action
type ActionStatus string

const (
	StatusPending    ActionStatus = "pending"
	StatusInProgress ActionStatus = "in_progress"
	StatusCompleted  ActionStatus = "completed"
	StatusBlocked    ActionStatus = "blocked"
)

// IsValid returns true if the status is one of the known statuses
func (s ActionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// Deadlines of expanded actions
const (
	ImmediateActionDays = 7
	ShortTermActionDays = 30
)

// Illustrative cost breakdown of every plan
const (
	CostTechnology = 25000
	CostConsulting = 15000
	CostTraining   = 5000
)

// TargetRiskReductionPercent is the reduction every plan aims for
const TargetRiskReductionPercent = 30

// MitigationAction is one task of a mitigation plan
type MitigationAction struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Priority    ActionPriority `json:"priority"`
	Status      ActionStatus   `json:"status"`
	DueInDays   int            `json:"due_in_days"`
	DueDate     time.Time      `json:"due_date"`
}

// CostBreakdown itemizes the estimated plan cost
type CostBreakdown struct {
	Technology int `json:"technology"`
	Consulting int `json:"consulting"`
	Training   int `json:"training"`
}

// Total sums the breakdown
func (c CostBreakdown) Total() int {
	return c.Technology + c.Consulting + c.Training
}

// MitigationPlan is a prioritized, costed action list derived from one assessment.
// Only action statuses change after creation.
type MitigationPlan struct {
	ID                  string             `json:"id"`
	AssessmentID        string             `json:"assessment_id"`
	CreatedAt           time.Time          `json:"created_at"`
	Priority            ActionPriority     `json:"priority"`
	Actions             []MitigationAction `json:"actions"`
	CostBreakdown       CostBreakdown      `json:"cost_breakdown"`
	EstimatedCost       int                `json:"estimated_cost"`
	CurrentRiskScore    int                `json:"current_risk_score"`
	TargetRiskReduction int                `json:"target_risk_reduction"`
	TargetRiskScore     int                `json:"target_risk_score"`

	mu sync.Mutex
}

// UpdateActionStatus sets the status of one action
func (p *MitigationPlan) UpdateActionStatus(actionID string, status ActionStatus) error {
	const op = "UpdateActionStatus"
	if !status.IsValid() {
		return newRiskError(op, KindInvalidInput, "unknown action status %q", status)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.Actions {
		if p.Actions[i].ID == actionID {
			p.Actions[i].Status = status
			return nil
		}
	}
	return newRiskError(op, KindNotFound, "action %s not found in plan %s", actionID, p.ID)
}

// ActionStatusOf returns the current status of one action
func (p *MitigationPlan) ActionStatusOf(actionID string) (ActionStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, a := range p.Actions {
		if a.ID == actionID {
			return a.Status, true
		}
	}
	return "", false
}

// Progress returns the completed share of actions as a percentage (0 for an empty plan)
func (p *MitigationPlan) Progress() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.Actions) == 0 {
		return 0
	}
	done := 0
	for _, a := range p.Actions {
		if a.Status == StatusCompleted {
			done++
		}
	}
	return done * 100 / len(p.Actions)
}

// MitigationPlanner expands assessment results into mitigation plans
type MitigationPlanner struct {
	now   func() time.Time
	newID func() string
}

// NewMitigationPlanner creates a planner; nil functions default to time.Now and random UUIDs
func NewMitigationPlanner(now func() time.Time, newID func() string) *MitigationPlanner {
	if now == nil {
		now = time.Now
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &MitigationPlanner{now: now, newID: newID}
}

// GenerateMitigationPlan builds a plan: immediate recommendations become 7-day
// tasks, short-term recommendations become 30-day tasks
func (m *MitigationPlanner) GenerateMitigationPlan(result *RiskAssessmentResult) (*MitigationPlan, error) {
	if result == nil {
		return nil, newRiskError("GenerateMitigationPlan", KindInvalidInput, "assessment result is required")
	}

	created := m.now().UTC()
	priority := PriorityHigh
	if result.RiskLevel == RiskCritical || result.OverallRiskScore > 80 {
		priority = PriorityImmediate
	}

	actions := make([]MitigationAction, 0, len(result.Recommendations.Immediate)+len(result.Recommendations.ShortTerm))
	expand := func(descriptions []string, p ActionPriority, days int) {
		for _, d := range descriptions {
			actions = append(actions, MitigationAction{
				ID:          m.newID(),
				Description: d,
				Priority:    p,
				Status:      StatusPending,
				DueInDays:   days,
				DueDate:     created.AddDate(0, 0, days),
			})
		}
	}
	expand(result.Recommendations.Immediate, PriorityImmediate, ImmediateActionDays)
	expand(result.Recommendations.ShortTerm, PriorityHigh, ShortTermActionDays)

	costs := CostBreakdown{
		Technology: CostTechnology,
		Consulting: CostConsulting,
		Training:   CostTraining,
	}

	return &MitigationPlan{
		ID:                  m.newID(),
		AssessmentID:        result.ID,
		CreatedAt:           created,
		Priority:            priority,
		Actions:             actions,
		CostBreakdown:       costs,
		EstimatedCost:       costs.Total(),
		CurrentRiskScore:    result.OverallRiskScore,
		TargetRiskReduction: TargetRiskReductionPercent,
		TargetRiskScore:     clampScore(result.OverallRiskScore * (100 - TargetRiskReductionPercent) / 100),
	}, nil
}
