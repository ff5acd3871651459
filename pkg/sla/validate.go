package sla

// Validate checks the rule invariants. Violations are returned as *ConfigurationError.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return configErr(r, "name is required")
	}
	if r.ResolutionTime <= 0 {
		return configErr(r, "resolution time must be positive")
	}
	if r.AcknowledgmentTime < 0 || r.FirstResponseTime < 0 {
		return configErr(r, "acknowledgment and first response times cannot be negative")
	}
	switch r.CaseKind {
	case "", CaseKindComplaint, CaseKindApplication:
	default:
		return configErr(r, "unknown case kind %q", r.CaseKind)
	}
	if r.EffectiveUntil != nil && !r.EffectiveFrom.IsZero() && r.EffectiveUntil.Before(r.EffectiveFrom) {
		return configErr(r, "effective_until is before effective_from")
	}

	prevThreshold, prevLevel := -1.0, 0
	for i, lvl := range r.EscalationLevels {
		if lvl.ThresholdPercent < 0 {
			return configErr(r, "escalation level %d has a negative threshold", i)
		}
		if lvl.ThresholdPercent <= prevThreshold {
			return configErr(r, "escalation levels must be sorted by ascending threshold")
		}
		if lvl.Level <= prevLevel {
			return configErr(r, "escalation level numbers must start at 1 and increase with the threshold")
		}
		if err := validateActions(r, lvl.Actions); err != nil {
			return err
		}
		prevThreshold, prevLevel = lvl.ThresholdPercent, lvl.Level
	}

	for _, w := range r.WarningThresholds {
		if w <= 0 {
			return configErr(r, "warning thresholds must be positive percentages")
		}
	}
	if err := validateActions(r, r.WarningActions); err != nil {
		return err
	}
	if err := validateActions(r, r.BreachActions); err != nil {
		return err
	}

	cal, err := NewCalendar(r)
	if err != nil {
		return err
	}
	if r.BusinessHoursOnly && !cal.hasWindows() {
		return configErr(r, "business-hours rule has no operating day")
	}

	return nil
}

// Validate checks that the variant payload matches the kind.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionNotify:
		if a.Notify == nil || len(a.Notify.Recipients) == 0 {
			return &ConfigurationError{Reason: "notify action needs recipients"}
		}
	case ActionReassign:
		if a.Reassign == nil || (a.Reassign.ToUserID == "" && a.Reassign.ToRole == "") {
			return &ConfigurationError{Reason: "reassign action needs a user or role"}
		}
	case ActionLogOnly:
	case ActionCustom:
		if a.Custom == nil || a.Custom.Name == "" {
			return &ConfigurationError{Reason: "custom action needs a name"}
		}
	default:
		return &ConfigurationError{Reason: "unknown action kind " + string(a.Kind)}
	}
	return nil
}

func validateActions(r *Rule, actions []Action) error {
	for _, a := range actions {
		if err := a.Validate(); err != nil {
			return configErr(r, "%s", err.(*ConfigurationError).Reason)
		}
	}
	return nil
}
