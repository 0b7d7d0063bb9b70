package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRecommendations(t *testing.T) {
	critical := []ComplianceViolation{{Severity: RiskCritical}}

	tests := []struct {
		name          string
		score         int
		violations    []ComplianceViolation
		wantImmediate []string
		wantShortTerm []string
	}{
		{"low risk", 30, nil, []string{}, []string{}},
		{"high risk", 70, nil, []string{}, []string{ActionRetentionPolicy, ActionRBAC}},
		{"critical risk", 85, nil, []string{ActionRestrictAccess, ActionFieldEncryption}, []string{ActionRetentionPolicy, ActionRBAC}},
		{"boundary 80 is not immediate", 80, nil, []string{}, []string{ActionRetentionPolicy, ActionRBAC}},
		{"critical violation at low score", 20, critical, []string{ActionNotifyLegal, ActionAddressViolations}, []string{}},
		{"critical violation at critical score", 90, critical,
			[]string{ActionRestrictAccess, ActionFieldEncryption, ActionNotifyLegal, ActionAddressViolations},
			[]string{ActionRetentionPolicy, ActionRBAC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := GenerateRecommendations(tt.score, tt.violations)
			assert.Equal(t, tt.wantImmediate, rec.Immediate)
			assert.Equal(t, tt.wantShortTerm, rec.ShortTerm)
			assert.Equal(t, []string{ActionPeriodicDPIA, ActionAutomatedDiscovery}, rec.LongTerm)
		})
	}
}

// TestGenerateMitigationPlan demonstrates expanding recommendations into dated tasks
func TestGenerateMitigationPlan(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	planner := NewMitigationPlanner(func() time.Time { return now }, sequentialIDs("m"))

	result := &RiskAssessmentResult{
		ID:               "a-1",
		OverallRiskScore: 85,
		RiskLevel:        RiskCritical,
		Recommendations:  GenerateRecommendations(85, nil),
	}

	plan, err := planner.GenerateMitigationPlan(result)
	require.NoError(t, err)

	assert.Equal(t, "a-1", plan.AssessmentID)
	assert.Equal(t, PriorityImmediate, plan.Priority)
	assert.Equal(t, 45000, plan.EstimatedCost)
	assert.Equal(t, plan.CostBreakdown.Total(), plan.EstimatedCost)
	assert.Equal(t, 85, plan.CurrentRiskScore)
	assert.Equal(t, 30, plan.TargetRiskReduction)
	assert.Equal(t, 59, plan.TargetRiskScore)

	require.Len(t, plan.Actions, 4)
	assert.Equal(t, ActionRestrictAccess, plan.Actions[0].Description)
	assert.Equal(t, PriorityImmediate, plan.Actions[0].Priority)
	assert.Equal(t, 7, plan.Actions[0].DueInDays)
	assert.Equal(t, now.AddDate(0, 0, 7), plan.Actions[0].DueDate)
	assert.Equal(t, PriorityHigh, plan.Actions[3].Priority)
	assert.Equal(t, now.AddDate(0, 0, 30), plan.Actions[3].DueDate)
	for _, a := range plan.Actions {
		assert.Equal(t, StatusPending, a.Status)
	}
	assert.Equal(t, "m-5", plan.ID)
}

func TestGenerateMitigationPlanPriority(t *testing.T) {
	planner := NewMitigationPlanner(nil, nil)

	plan, err := planner.GenerateMitigationPlan(&RiskAssessmentResult{OverallRiskScore: 50, RiskLevel: RiskMedium})
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, plan.Priority)
	assert.Empty(t, plan.Actions)
	assert.Equal(t, 0, plan.Progress())
	assert.Equal(t, 35, plan.TargetRiskScore)

	_, err = planner.GenerateMitigationPlan(nil)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestUpdateActionStatus(t *testing.T) {
	planner := NewMitigationPlanner(nil, sequentialIDs("m"))
	plan, err := planner.GenerateMitigationPlan(&RiskAssessmentResult{
		OverallRiskScore: 70,
		RiskLevel:        RiskHigh,
		Recommendations:  GenerateRecommendations(70, nil),
	})
	require.NoError(t, err)
	require.Len(t, plan.Actions, 2)

	first := plan.Actions[0].ID
	require.NoError(t, plan.UpdateActionStatus(first, StatusCompleted))
	status, ok := plan.ActionStatusOf(first)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, status)
	assert.Equal(t, 50, plan.Progress())

	err = plan.UpdateActionStatus(first, ActionStatus("done"))
	assert.Equal(t, KindInvalidInput, KindOf(err))

	err = plan.UpdateActionStatus("missing", StatusBlocked)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, ok = plan.ActionStatusOf("missing")
	assert.False(t, ok)
}

func TestUpdateActionStatusConcurrent(t *testing.T) {
	planner := NewMitigationPlanner(nil, nil)
	plan, err := planner.GenerateMitigationPlan(&RiskAssessmentResult{
		OverallRiskScore: 95,
		RiskLevel:        RiskCritical,
		Recommendations:  GenerateRecommendations(95, []ComplianceViolation{{Severity: RiskCritical}}),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, a := range plan.Actions {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = plan.UpdateActionStatus(id, StatusInProgress)
			_ = plan.UpdateActionStatus(id, StatusCompleted)
			_ = plan.Progress()
		}(a.ID)
	}
	wg.Wait()

	assert.Equal(t, 100, plan.Progress())
}
