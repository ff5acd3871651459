package slarule

import (
	"encoding/json"

	"go-cats/pkg/sla"
)

// DefaultWarningThresholds are the elapsed percentages a new rule warns at
var DefaultWarningThresholds = []float64{75, 90}

// DecodeNewRule reads a create request. Fields the body leaves out keep the rule defaults:
// active, auto-escalating, warning at DefaultWarningThresholds.
func DecodeNewRule(body []byte) (*sla.Rule, error) {
	rule := &sla.Rule{
		IsActive:          true,
		AutoEscalate:      true,
		WarningThresholds: append([]float64(nil), DefaultWarningThresholds...),
	}
	if err := json.Unmarshal(body, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// MergeRuleJSON applies an update body onto r. Map fields present in the body replace the
// stored maps instead of merging into them, so keys can be removed.
func MergeRuleJSON(r *sla.Rule, body []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return err
	}
	if _, ok := fields["conditions"]; ok {
		r.Conditions = nil
	}
	if _, ok := fields["business_hours"]; ok {
		r.BusinessHours = nil
	}
	return json.Unmarshal(body, r)
}
