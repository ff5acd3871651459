package sla

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	rules      []Rule
	defaultRul *Rule
	err        error
}

func (f *fakeCatalog) CandidateRules(ctx context.Context, attrs CaseAttributes) ([]Rule, error) {
	return f.rules, f.err
}

func (f *fakeCatalog) DefaultRule(ctx context.Context) (*Rule, error) {
	return f.defaultRul, nil
}

var submitted = time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)

func escalatingRule() *Rule {
	return &Rule{
		Name:           "fraud",
		CaseType:       "financial_fraud",
		ResolutionTime: 10,
		AutoEscalate:   true,
		IsActive:       true,
		EscalationLevels: []EscalationLevel{
			{ThresholdPercent: 50, Level: 1, Actions: []Action{{Kind: ActionNotify, Notify: &NotifyAction{Recipients: []string{"supervisor"}}}}},
			{ThresholdPercent: 80, Level: 2, Actions: []Action{{Kind: ActionReassign, Reassign: &ReassignAction{ToRole: "district_sp"}}}},
		},
		WarningThresholds: []float64{75},
		BreachActions:     []Action{{Kind: ActionLogOnly}},
	}
}

func openCase(rule *Rule) Case {
	deadline := submitted.Add(hoursToDuration(rule.ResolutionTime))
	at := submitted
	return Case{
		ID:          "case-1",
		Attributes:  fraudComplaint(),
		SubmittedAt: &at,
		SLADeadline: &deadline,
		Rule:        rule,
		Version:     1,
	}
}

// apply folds an evaluation back into the case, as the repository would.
func apply(c Case, ev *Evaluation) Case {
	c.SLADeadline = ev.Update.SLADeadline
	c.EscalationLevel = ev.Update.EscalationLevel
	c.EscalatedAt = ev.Update.EscalatedAt
	c.FiredWarnings = ev.Update.FiredWarnings
	c.BreachNotified = ev.Update.BreachNotified
	if ev.Update.Rule != nil {
		c.Rule = ev.Update.Rule
	}
	c.Version++
	return c
}

func TestResolveRuleAndDeadline(t *testing.T) {
	rule := candidate("fraud", func(r *Rule) {
		r.CaseType = "financial_fraud"
		r.ResolutionTime = 72
		r.FirstResponseTime = 4
	})
	engine := NewEngine(&fakeCatalog{rules: []Rule{rule}}, FixedClock(submitted))

	res, err := engine.ResolveRuleAndDeadline(context.Background(), fraudComplaint(), submitted)
	require.NoError(t, err)

	assert.Equal(t, rule.ID.Hex(), res.RuleID)
	assert.Equal(t, submitted.Add(72*time.Hour), res.SLADeadline)
	require.NotNil(t, res.FirstResponseDeadline)
	assert.Equal(t, submitted.Add(4*time.Hour), *res.FirstResponseDeadline)
	assert.Nil(t, res.AcknowledgmentDeadline)
	assert.Equal(t, "fraud", res.Rule.Name)
}

func TestResolveRuleAndDeadlineFallsBackToDefault(t *testing.T) {
	def := candidate("default", func(r *Rule) { r.IsDefault = true; r.ResolutionTime = 120 })
	catalog := &fakeCatalog{
		rules:      []Rule{candidate("stalking", func(r *Rule) { r.CaseType = "cyber_stalking" })},
		defaultRul: &def,
	}
	engine := NewEngine(catalog, nil)

	res, err := engine.ResolveRuleAndDeadline(context.Background(), fraudComplaint(), submitted)
	require.NoError(t, err)
	assert.Equal(t, "default", res.Rule.Name)
	assert.Equal(t, submitted.Add(120*time.Hour), res.SLADeadline)

	catalog.defaultRul = nil
	_, err = engine.ResolveRuleAndDeadline(context.Background(), fraudComplaint(), submitted)
	assert.True(t, errors.Is(err, ErrNoApplicableRule))

	catalog.err = errors.New("mongo down")
	_, err = engine.ResolveRuleAndDeadline(context.Background(), fraudComplaint(), submitted)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoApplicableRule))
}

func TestResolveSnapshotIsIndependentOfCatalog(t *testing.T) {
	rules := []Rule{candidate("fraud", func(r *Rule) { r.ResolutionTime = 72 })}
	engine := NewEngine(&fakeCatalog{rules: rules}, nil)

	res, err := engine.ResolveRuleAndDeadline(context.Background(), fraudComplaint(), submitted)
	require.NoError(t, err)

	rules[0].ResolutionTime = 1
	assert.Equal(t, 72.0, res.Rule.ResolutionTime)
}

func TestEvaluateCaseEmitsEventsInThresholdOrder(t *testing.T) {
	rule := escalatingRule()
	engine := NewEngine(&fakeCatalog{}, nil)
	now := submitted.Add(9 * time.Hour)

	ev, err := engine.EvaluateCase(openCase(rule), rule, now)
	require.NoError(t, err)

	require.Len(t, ev.Events, 3)
	assert.Equal(t, EventEscalation, ev.Events[0].Kind)
	assert.Equal(t, 0, ev.Events[0].FromLevel)
	assert.Equal(t, 1, ev.Events[0].ToLevel)
	assert.Equal(t, ActionNotify, ev.Events[0].RequiredActions[0].Kind)

	assert.Equal(t, EventWarning, ev.Events[1].Kind)
	assert.Equal(t, 75.0, ev.Events[1].ThresholdPercent)

	assert.Equal(t, EventEscalation, ev.Events[2].Kind)
	assert.Equal(t, 1, ev.Events[2].FromLevel)
	assert.Equal(t, 2, ev.Events[2].ToLevel)
	assert.Equal(t, ActionReassign, ev.Events[2].RequiredActions[0].Kind)

	for _, e := range ev.Events {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "case-1", e.CaseID)
		assert.Equal(t, now, e.OccurredAt)
	}

	assert.Equal(t, 2, ev.Update.EscalationLevel)
	require.NotNil(t, ev.Update.EscalatedAt)
	assert.Equal(t, now, *ev.Update.EscalatedAt)
	assert.Equal(t, []float64{75}, ev.Update.FiredWarnings)
	assert.False(t, ev.Update.BreachNotified)
	assert.Equal(t, StateWarning, ev.State)
	assert.InDelta(t, 90.0, ev.ElapsedPercent, 1e-9)
	assert.True(t, ev.Changed())
}

func TestEvaluateCaseIsIdempotent(t *testing.T) {
	rule := escalatingRule()
	engine := NewEngine(&fakeCatalog{}, nil)
	now := submitted.Add(9 * time.Hour)

	c := openCase(rule)
	first, err := engine.EvaluateCase(c, rule, now)
	require.NoError(t, err)
	c = apply(c, first)

	second, err := engine.EvaluateCase(c, rule, now)
	require.NoError(t, err)
	assert.Empty(t, second.Events)
	assert.False(t, second.Changed())
	assert.Equal(t, 2, second.EscalationLevel)
}

func TestEvaluateCaseBreachFiresOnce(t *testing.T) {
	rule := escalatingRule()
	engine := NewEngine(&fakeCatalog{}, nil)

	c := openCase(rule)
	c.EscalationLevel = 2
	c.FiredWarnings = []float64{75}

	now := submitted.Add(11 * time.Hour)
	ev, err := engine.EvaluateCase(c, rule, now)
	require.NoError(t, err)
	require.Len(t, ev.Events, 1)
	assert.Equal(t, EventBreach, ev.Events[0].Kind)
	assert.Equal(t, ActionLogOnly, ev.Events[0].RequiredActions[0].Kind)
	assert.True(t, ev.Update.BreachNotified)
	assert.Equal(t, StateBreached, ev.State)

	c = apply(c, ev)
	again, err := engine.EvaluateCase(c, rule, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, again.Events)
	assert.Equal(t, StateBreached, again.State)
}

func TestEvaluateCaseLateFirstTick(t *testing.T) {
	rule := escalatingRule()
	engine := NewEngine(&fakeCatalog{}, nil)

	ev, err := engine.EvaluateCase(openCase(rule), rule, submitted.Add(12*time.Hour))
	require.NoError(t, err)

	var kinds []EventKind
	for _, e := range ev.Events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []EventKind{EventEscalation, EventWarning, EventEscalation, EventBreach}, kinds)
	assert.Equal(t, 2, ev.Update.EscalationLevel)
}

func TestEvaluateCaseWithoutAutoEscalate(t *testing.T) {
	rule := escalatingRule()
	rule.AutoEscalate = false
	engine := NewEngine(&fakeCatalog{}, nil)

	ev, err := engine.EvaluateCase(openCase(rule), rule, submitted.Add(9*time.Hour))
	require.NoError(t, err)

	require.Len(t, ev.Events, 1)
	assert.Equal(t, EventWarning, ev.Events[0].Kind)
	assert.Equal(t, 0, ev.Update.EscalationLevel)
	assert.Nil(t, ev.Update.EscalatedAt)
}

func TestEvaluateCaseResolvesMissingDeadline(t *testing.T) {
	rule := escalatingRule()
	engine := NewEngine(&fakeCatalog{}, nil)

	c := openCase(rule)
	c.SLADeadline = nil

	ev, err := engine.EvaluateCase(c, rule, submitted.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ev.Resolved)
	assert.True(t, ev.Changed())
	require.NotNil(t, ev.Update.SLADeadline)
	assert.Equal(t, submitted.Add(10*time.Hour), *ev.Update.SLADeadline)
	assert.Equal(t, StateWithinSLA, ev.State)
}

func TestEvaluateCaseBusinessHoursUsesWallClock(t *testing.T) {
	rule := escalatingRule()
	rule.BusinessHoursOnly = true
	rule.BusinessHours = DefaultBusinessHours()
	rule.Timezone = "UTC"
	engine := NewEngine(&fakeCatalog{}, nil)

	c := openCase(rule)
	c.SLADeadline = nil

	// Friday 15:00 to Saturday 00:00 is 9 wall-clock hours but only 2 operating hours
	now := submitted.Add(9 * time.Hour)
	ev, err := engine.EvaluateCase(c, rule, now)
	require.NoError(t, err)

	assert.InDelta(t, 9.0, ev.ElapsedHours, 1e-9)
	assert.InDelta(t, 90.0, ev.ElapsedPercent, 1e-9)
	assert.Equal(t, 2, ev.Update.EscalationLevel)
	assert.Equal(t, []float64{75}, ev.Update.FiredWarnings)

	require.NotNil(t, ev.Update.SLADeadline)
	assert.Equal(t, time.Date(2026, 10, 19, 17, 0, 0, 0, time.UTC), *ev.Update.SLADeadline)
	assert.False(t, ev.Update.BreachNotified)
	assert.Equal(t, StateWarning, ev.State)
}

func TestEvaluateCaseRejectsInvalidCases(t *testing.T) {
	rule := escalatingRule()
	engine := NewEngine(&fakeCatalog{}, nil)
	now := submitted.Add(time.Hour)

	closed := openCase(rule)
	closed.Terminal = true
	_, err := engine.EvaluateCase(closed, rule, now)
	assert.True(t, errors.Is(err, ErrInvalidCaseState))

	draft := openCase(rule)
	draft.SubmittedAt = nil
	_, err = engine.EvaluateCase(draft, rule, now)
	assert.True(t, errors.Is(err, ErrInvalidCaseState))

	broken := escalatingRule()
	broken.ResolutionTime = 0
	_, err = engine.EvaluateCase(openCase(rule), broken, now)
	assert.True(t, IsConfigurationError(err))
}

func TestRemainingTimeAndOverdue(t *testing.T) {
	deadline := submitted.Add(10 * time.Hour)
	c := Case{SLADeadline: &deadline}

	now := deadline.Add(-(2*time.Hour + 30*time.Minute + 30*time.Second))
	assert.False(t, IsOverdue(c, now))
	assert.Equal(t, &TimeRemaining{Hours: 2, Minutes: 30}, RemainingTime(c, now))

	assert.Equal(t, &TimeRemaining{}, RemainingTime(c, deadline.Add(-30*time.Second)))

	// at the deadline the case is not yet overdue but the countdown has run out
	assert.False(t, IsOverdue(c, deadline))
	assert.Equal(t, &TimeRemaining{Overdue: true}, RemainingTime(c, deadline))

	late := deadline.Add(time.Minute)
	assert.True(t, IsOverdue(c, late))
	assert.Equal(t, &TimeRemaining{Overdue: true}, RemainingTime(c, late))

	assert.Nil(t, RemainingTime(Case{}, late))
	assert.False(t, IsOverdue(Case{}, late))
}

func TestStateOf(t *testing.T) {
	deadline := submitted.Add(10 * time.Hour)
	before := submitted.Add(time.Hour)

	assert.Equal(t, StateNoDeadline, StateOf(Case{}, before))
	assert.Equal(t, StateWithinSLA, StateOf(Case{SLADeadline: &deadline}, before))
	assert.Equal(t, StateWarning, StateOf(Case{SLADeadline: &deadline, FiredWarnings: []float64{75}}, before))
	assert.Equal(t, StateBreached, StateOf(Case{SLADeadline: &deadline}, deadline.Add(time.Second)))
	assert.Equal(t, StateClosed, StateOf(Case{SLADeadline: &deadline, Terminal: true}, deadline.Add(time.Second)))

	status := StatusOf(Case{SLADeadline: &deadline, EscalationLevel: 1}, before)
	assert.Equal(t, StateWithinSLA, status.State)
	assert.Equal(t, 1, status.EscalationLevel)
	assert.Equal(t, int64(9), status.TimeRemaining.Hours)
}
