package sla

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RuleCatalog supplies candidate rules. It is read-only from the engine's point of view.
type RuleCatalog interface {
	CandidateRules(ctx context.Context, attrs CaseAttributes) ([]Rule, error)
	// DefaultRule returns the system fallback rule, or nil when none is configured.
	DefaultRule(ctx context.Context) (*Rule, error)
}

// State is the SLA state of a case, derived from its fields
type State string

const (
	StateNoDeadline State = "no_deadline"
	StateWithinSLA  State = "within_sla"
	StateWarning    State = "warning"
	StateBreached   State = "breached"
	StateClosed     State = "closed"
)

// Status is the read-only SLA summary of a case
type Status struct {
	State           State          `json:"state"`
	EscalationLevel int            `json:"escalation_level"`
	IsOverdue       bool           `json:"is_overdue"`
	TimeRemaining   *TimeRemaining `json:"time_remaining"`
	SLADeadline     *time.Time     `json:"sla_deadline,omitempty"`
}

// Engine ties rule selection, deadline computation and escalation tracking together.
// It holds no mutable state; concurrent calls for different cases are independent.
type Engine struct {
	catalog RuleCatalog
	clock   Clock
}

// NewEngine creates an engine reading rules from catalog and time from clock
func NewEngine(catalog RuleCatalog, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		catalog: catalog,
		clock:   clock,
	}
}

// Now is the engine clock's current instant
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// SelectRuleFor resolves the applicable rule for attrs at the given instant, falling back to
// the catalog's system default.
func (e *Engine) SelectRuleFor(ctx context.Context, attrs CaseAttributes, at time.Time) (*Rule, error) {
	candidates, err := e.catalog.CandidateRules(ctx, attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate rules: %w", err)
	}

	rule, err := SelectRule(attrs, candidates, at)
	if err == nil {
		return rule, nil
	}
	if !errors.Is(err, ErrNoApplicableRule) {
		return nil, err
	}

	def, err := e.catalog.DefaultRule(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load default rule: %w", err)
	}
	if def == nil || !def.IsActive {
		return nil, fmt.Errorf("%w: kind=%s type=%s priority=%s severity=%s",
			ErrNoApplicableRule, attrs.Kind, attrs.CaseType, attrs.Priority, attrs.Severity)
	}
	return def, nil
}

// ResolveRuleAndDeadline is called once at submission. The returned rule is a snapshot to
// be stored on the case so later rule edits do not change its deadline.
func (e *Engine) ResolveRuleAndDeadline(ctx context.Context, attrs CaseAttributes, submittedAt time.Time) (*Resolution, error) {
	rule, err := e.SelectRuleFor(ctx, attrs, submittedAt)
	if err != nil {
		return nil, err
	}
	return ResolveDeadlines(rule, submittedAt)
}

// ResolveDeadlines computes all configured deadlines of rule for a case submitted at start.
func ResolveDeadlines(rule *Rule, start time.Time) (*Resolution, error) {
	snapshot := *rule

	resolution, _, err := snapshot.Deadline(start, DeadlineResolution)
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		RuleID:      snapshot.RuleRef(),
		Rule:        &snapshot,
		SLADeadline: resolution,
	}

	if t, ok, err := snapshot.Deadline(start, DeadlineFirstResponse); err != nil {
		return nil, err
	} else if ok {
		res.FirstResponseDeadline = &t
	}

	if t, ok, err := snapshot.Deadline(start, DeadlineAcknowledgment); err != nil {
		return nil, err
	} else if ok {
		res.AcknowledgmentDeadline = &t
	}

	return res, nil
}

// EvaluateCase runs one evaluation tick for an open case against rule.
//
// It returns the SLA fields to persist and the events to dispatch: one escalation event per
// crossed level, one warning event per newly reached warning threshold, and a one-shot breach
// event once now is past the deadline. Terminal or never-submitted cases yield ErrInvalidCaseState.
func (e *Engine) EvaluateCase(c Case, rule *Rule, now time.Time) (*Evaluation, error) {
	if c.Terminal {
		return nil, fmt.Errorf("%w: case %s is closed", ErrInvalidCaseState, c.ID)
	}
	if c.SubmittedAt == nil {
		return nil, fmt.Errorf("%w: case %s has no submission time", ErrInvalidCaseState, c.ID)
	}
	if rule == nil {
		return nil, fmt.Errorf("%w: case %s has no SLA rule", ErrInvalidCaseState, c.ID)
	}

	ev := &Evaluation{
		CaseID:          c.ID,
		EscalationLevel: c.EscalationLevel,
		Update: SLAUpdate{
			RuleID:          rule.RuleRef(),
			SLADeadline:     c.SLADeadline,
			EscalationLevel: c.EscalationLevel,
			EscalatedAt:     c.EscalatedAt,
			FiredWarnings:   append([]float64(nil), c.FiredWarnings...),
			BreachNotified:  c.BreachNotified,
		},
	}

	if c.SLADeadline == nil {
		deadline, _, err := rule.Deadline(*c.SubmittedAt, DeadlineResolution)
		if err != nil {
			return nil, err
		}
		ev.Update.SLADeadline = &deadline
		ev.Update.Rule = rule
		ev.Resolved = true
	}

	// Escalation runs on wall-clock time since submission, for business-hours rules too.
	elapsed := math.Max(now.Sub(*c.SubmittedAt).Hours(), 0)
	ev.ElapsedHours = elapsed
	ev.ElapsedPercent = ElapsedPercent(elapsed, rule.ResolutionTime)

	ruleID := rule.RuleRef()
	newEvent := func(kind EventKind) Event {
		return Event{
			ID:             uuid.NewString(),
			Kind:           kind,
			CaseID:         c.ID,
			RuleID:         ruleID,
			FromLevel:      ev.Update.EscalationLevel,
			ToLevel:        ev.Update.EscalationLevel,
			ElapsedPercent: ev.ElapsedPercent,
			OccurredAt:     now,
		}
	}

	if rule.AutoEscalate {
		res, err := EvaluateEscalation(elapsed, rule.ResolutionTime, c.EscalationLevel, rule.EscalationLevels)
		if err != nil {
			return nil, configErr(rule, "resolution time must be positive")
		}
		for _, lvl := range res.Crossed {
			event := newEvent(EventEscalation)
			event.ToLevel = lvl.Level
			event.ThresholdPercent = lvl.ThresholdPercent
			event.Reason = fmt.Sprintf("%.1f%% of SLA time elapsed, escalation threshold %.0f%% reached", ev.ElapsedPercent, lvl.ThresholdPercent)
			event.RequiredActions = lvl.Actions
			ev.Events = append(ev.Events, event)
			ev.Update.EscalationLevel = lvl.Level
		}
		if res.ShouldEscalate {
			ev.Update.EscalationLevel = res.NewLevel
			at := now
			ev.Update.EscalatedAt = &at
		}
	}

	fresh := CheckWarnings(ev.ElapsedPercent, rule.WarningThresholds, c.FiredWarnings)
	for _, w := range fresh {
		event := newEvent(EventWarning)
		event.ThresholdPercent = w
		event.Reason = fmt.Sprintf("%.0f%% of SLA time elapsed", w)
		event.RequiredActions = rule.WarningActions
		ev.Events = append(ev.Events, event)
	}
	ev.NewlyFiredWarnings = fresh
	ev.Update.FiredWarnings = append(ev.Update.FiredWarnings, fresh...)

	if d := ev.Update.SLADeadline; d != nil && now.After(*d) && !c.BreachNotified {
		event := newEvent(EventBreach)
		event.ThresholdPercent = 100
		event.Reason = fmt.Sprintf("SLA deadline %s passed", d.Format(time.RFC3339))
		event.RequiredActions = rule.BreachActions
		ev.Events = append(ev.Events, event)
		ev.Update.BreachNotified = true
	}

	sort.SliceStable(ev.Events, func(i, j int) bool {
		return eventOrder(ev.Events[i]) < eventOrder(ev.Events[j])
	})

	ev.EscalationLevel = ev.Update.EscalationLevel
	ev.State = stateOf(false, ev.Update.SLADeadline, ev.Update.FiredWarnings, now)
	return ev, nil
}

// eventOrder sorts events by threshold; a breach always comes last.
func eventOrder(e Event) float64 {
	if e.Kind == EventBreach {
		return math.Inf(1)
	}
	return e.ThresholdPercent
}

// IsOverdue reports whether now is past the case deadline
func IsOverdue(c Case, now time.Time) bool {
	return c.SLADeadline != nil && now.After(*c.SLADeadline)
}

// RemainingTime is the countdown to the deadline, nil when the case has none.
// The countdown reports overdue once no time is left, including the deadline instant itself.
func RemainingTime(c Case, now time.Time) *TimeRemaining {
	if c.SLADeadline == nil {
		return nil
	}

	remaining := c.SLADeadline.Sub(now)
	if remaining <= 0 {
		return &TimeRemaining{Overdue: true}
	}

	return &TimeRemaining{
		Hours:   int64(remaining / time.Hour),
		Minutes: int64((remaining % time.Hour) / time.Minute),
	}
}

// StateOf derives the SLA state of a case
func StateOf(c Case, now time.Time) State {
	return stateOf(c.Terminal, c.SLADeadline, c.FiredWarnings, now)
}

func stateOf(terminal bool, deadline *time.Time, fired []float64, now time.Time) State {
	switch {
	case terminal:
		return StateClosed
	case deadline == nil:
		return StateNoDeadline
	case now.After(*deadline):
		return StateBreached
	case len(fired) > 0:
		return StateWarning
	default:
		return StateWithinSLA
	}
}

// StatusOf builds the read-only SLA summary shown in list and detail views
func StatusOf(c Case, now time.Time) Status {
	return Status{
		State:           StateOf(c, now),
		EscalationLevel: c.EscalationLevel,
		IsOverdue:       IsOverdue(c, now),
		TimeRemaining:   RemainingTime(c, now),
		SLADeadline:     c.SLADeadline,
	}
}
