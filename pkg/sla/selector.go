package sla

import (
	"sort"
	"time"
)

// match is a surviving candidate with its specificity score
type match struct {
	rule      *Rule
	score     int
	exactType bool
}

// SelectRule picks the single applicable rule for a case at the given instant.
//
// A rule survives when it is effective at `at` and each of its filters is either unset or
// matches the case. Survivors are ordered by the number of non-wildcard filters they
// matched (case type, priority, severity, one per condition key). Ties go to an exact
// case-type match over "all", then to the most recently created rule, then to the highest id.
// ErrNoApplicableRule is returned when nothing survives.
func SelectRule(attrs CaseAttributes, rules []Rule, at time.Time) (*Rule, error) {
	var matches []match

	for i := range rules {
		r := &rules[i]
		if !r.IsEffective(at) {
			continue
		}
		if m, ok := score(r, attrs); ok {
			matches = append(matches, m)
		}
	}

	if len(matches) == 0 {
		return nil, ErrNoApplicableRule
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.exactType != b.exactType {
			return a.exactType
		}
		if !a.rule.CreatedAt.Equal(b.rule.CreatedAt) {
			return a.rule.CreatedAt.After(b.rule.CreatedAt)
		}
		return a.rule.ID.Hex() > b.rule.ID.Hex()
	})

	return matches[0].rule, nil
}

func score(r *Rule, attrs CaseAttributes) (match, bool) {
	m := match{rule: r}

	if r.CaseKind != "" && r.CaseKind != attrs.Kind {
		return m, false
	}

	switch r.CaseType {
	case "":
	case CaseTypeAll:
		m.score++
	default:
		if r.CaseType != attrs.CaseType {
			return m, false
		}
		m.score++
		m.exactType = true
	}

	if r.Priority != "" {
		if r.Priority != attrs.Priority {
			return m, false
		}
		m.score++
	}

	if r.Severity != "" {
		if r.Severity != attrs.Severity {
			return m, false
		}
		m.score++
	}

	if !MatchesConditions(r.Conditions, attrs.Attributes) {
		return m, false
	}
	m.score += len(r.Conditions)

	return m, true
}

// MatchesConditions reports whether every rule condition is present with the same value.
func MatchesConditions(ruleConditions, actual map[string]string) bool {
	for key, want := range ruleConditions {
		if got, ok := actual[key]; !ok || got != want {
			return false
		}
	}
	return true
}
