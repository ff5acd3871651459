package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go-cats/pkg/sla"
)

const legacyQuery = `
SELECT r.id, r.name, COALESCE(r.description, ''), ct.name, r.application_type,
       r.priority, r.severity, r.conditions,
       r.acknowledgment_time, r.first_response_time, r.resolution_time,
       r.escalation_levels, r.business_hours_only, r.business_hours, r.holidays, r.timezone,
       r.auto_escalate, r.escalation_notifications, r.breach_notifications, r.warning_thresholds,
       r.is_active, r.effective_from, r.effective_until, r.created_at, r.updated_at
FROM sla_rules r
LEFT JOIN complaint_types ct ON ct.id = r.complaint_type_id
ORDER BY r.created_at`

const importedBy = "migrate_rules"

// legacyRule is one row of the Postgres sla_rules table. JSONB columns stay raw until
// toRule decodes them.
type legacyRule struct {
	ID              string
	Name            string
	Description     string
	ComplaintType   sql.NullString
	ApplicationType sql.NullString
	Priority        sql.NullString
	Severity        sql.NullString
	Conditions      []byte

	AcknowledgmentTime sql.NullInt64
	FirstResponseTime  sql.NullInt64
	ResolutionTime     sql.NullInt64

	EscalationLevels        []byte
	BusinessHoursOnly       bool
	BusinessHours           []byte
	Holidays                []byte
	Timezone                sql.NullString
	AutoEscalate            bool
	EscalationNotifications []byte
	BreachNotifications     []byte
	WarningThresholds       []byte

	IsActive       bool
	EffectiveFrom  sql.NullTime
	EffectiveUntil sql.NullTime
	CreatedAt      sql.NullTime
	UpdatedAt      sql.NullTime
}

func scanLegacyRule(rows *sql.Rows) (*legacyRule, error) {
	var r legacyRule
	err := rows.Scan(
		&r.ID, &r.Name, &r.Description, &r.ComplaintType, &r.ApplicationType,
		&r.Priority, &r.Severity, &r.Conditions,
		&r.AcknowledgmentTime, &r.FirstResponseTime, &r.ResolutionTime,
		&r.EscalationLevels, &r.BusinessHoursOnly, &r.BusinessHours, &r.Holidays, &r.Timezone,
		&r.AutoEscalate, &r.EscalationNotifications, &r.BreachNotifications, &r.WarningThresholds,
		&r.IsActive, &r.EffectiveFrom, &r.EffectiveUntil, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type legacyLevel struct {
	Level     int     `json:"level"`
	Threshold float64 `json:"threshold"`
}

// toRule converts a legacy row. Escalation and breach notification lists become notify
// actions on every escalation level and on breach.
func toRule(row *legacyRule, defaultTimezone string) (*sla.Rule, error) {
	rule := &sla.Rule{
		Name:               row.Name,
		Description:        row.Description,
		Priority:           row.Priority.String,
		Severity:           row.Severity.String,
		AcknowledgmentTime: float64(row.AcknowledgmentTime.Int64),
		FirstResponseTime:  float64(row.FirstResponseTime.Int64),
		ResolutionTime:     float64(row.ResolutionTime.Int64),
		AutoEscalate:       row.AutoEscalate,
		BusinessHoursOnly:  row.BusinessHoursOnly,
		Timezone:           row.Timezone.String,
		IsActive:           row.IsActive,
		Revision:           1,
		CreatedBy:          importedBy,
		UpdatedBy:          importedBy,
	}

	switch {
	case row.ComplaintType.Valid:
		rule.CaseKind = sla.CaseKindComplaint
		rule.CaseType = row.ComplaintType.String
	case row.ApplicationType.Valid:
		rule.CaseKind = sla.CaseKindApplication
		rule.CaseType = row.ApplicationType.String
	}
	if rule.Timezone == "" {
		rule.Timezone = defaultTimezone
	}
	if row.EffectiveFrom.Valid {
		rule.EffectiveFrom = row.EffectiveFrom.Time
	}
	if row.EffectiveUntil.Valid {
		until := row.EffectiveUntil.Time
		rule.EffectiveUntil = &until
	}
	if row.CreatedAt.Valid {
		rule.CreatedAt = row.CreatedAt.Time
	}
	if row.UpdatedAt.Valid {
		rule.UpdatedAt = row.UpdatedAt.Time
	}

	conditions, err := decodeConditions(row.Conditions)
	if err != nil {
		return nil, fmt.Errorf("conditions: %w", err)
	}
	rule.Conditions = conditions

	if err := decodeJSON(row.BusinessHours, &rule.BusinessHours); err != nil {
		return nil, fmt.Errorf("business_hours: %w", err)
	}
	if len(rule.BusinessHours) == 0 {
		rule.BusinessHours = nil
	}
	if err := decodeJSON(row.Holidays, &rule.Holidays); err != nil {
		return nil, fmt.Errorf("holidays: %w", err)
	}
	if err := decodeJSON(row.WarningThresholds, &rule.WarningThresholds); err != nil {
		return nil, fmt.Errorf("warning_thresholds: %w", err)
	}

	escalationRecipients, err := decodeRecipients(row.EscalationNotifications)
	if err != nil {
		return nil, fmt.Errorf("escalation_notifications: %w", err)
	}
	breachRecipients, err := decodeRecipients(row.BreachNotifications)
	if err != nil {
		return nil, fmt.Errorf("breach_notifications: %w", err)
	}

	var levels []legacyLevel
	if err := decodeJSON(row.EscalationLevels, &levels); err != nil {
		return nil, fmt.Errorf("escalation_levels: %w", err)
	}
	// the legacy engine scanned levels highest threshold first
	sort.Slice(levels, func(i, j int) bool { return levels[i].Threshold < levels[j].Threshold })
	for _, l := range levels {
		level := sla.EscalationLevel{ThresholdPercent: l.Threshold, Level: l.Level}
		if len(escalationRecipients) > 0 {
			level.Actions = []sla.Action{notify(escalationRecipients, fmt.Sprintf("%s escalated to level %d", rule.Name, l.Level))}
		}
		rule.EscalationLevels = append(rule.EscalationLevels, level)
	}
	if len(breachRecipients) > 0 {
		rule.BreachActions = []sla.Action{notify(breachRecipients, rule.Name+" SLA breached")}
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func notify(recipients []string, message string) sla.Action {
	return sla.Action{
		Kind:   sla.ActionNotify,
		Notify: &sla.NotifyAction{Recipients: recipients, Message: message},
	}
}

func decodeJSON(raw []byte, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// decodeConditions keeps scalar condition values as strings and drops nested ones
func decodeConditions(raw []byte) (map[string]string, error) {
	var values map[string]interface{}
	if err := decodeJSON(raw, &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		switch v.(type) {
		case string, float64, bool:
			out[k] = fmt.Sprint(v)
		}
	}
	return out, nil
}

// decodeRecipients accepts plain strings or objects carrying a user_id, role or email
func decodeRecipients(raw []byte) ([]string, error) {
	var entries []interface{}
	if err := decodeJSON(raw, &entries); err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		switch v := e.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case map[string]interface{}:
			for _, key := range []string{"user_id", "role", "email"} {
				if s, ok := v[key].(string); ok && s != "" {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out, nil
}
