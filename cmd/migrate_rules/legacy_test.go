package main

import (
	"database/sql"
	"testing"
	"time"

	"go-cats/pkg/sla"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func legacyRow() *legacyRule {
	return &legacyRule{
		ID:                      "5b0f6d1e-7c55-4a8e-9d5a-2f4b7a9c1e01",
		Name:                    "Cyber fraud - high",
		ComplaintType:           sql.NullString{String: "cyber_fraud", Valid: true},
		Priority:                sql.NullString{String: "high", Valid: true},
		Conditions:              []byte(`{"district":"north","amount_over":100000,"nested":{"a":1}}`),
		AcknowledgmentTime:      sql.NullInt64{Int64: 4, Valid: true},
		ResolutionTime:          sql.NullInt64{Int64: 72, Valid: true},
		EscalationLevels:        []byte(`[{"level":2,"threshold":90},{"level":1,"threshold":50}]`),
		BusinessHoursOnly:       true,
		BusinessHours:           []byte(`{"monday":{"start":"09:00","end":"17:00"},"sunday":null}`),
		Holidays:                []byte(`["2026-01-26"]`),
		AutoEscalate:            true,
		EscalationNotifications: []byte(`["supervisor",{"user_id":"officer-7"},{"channel":"sms"}]`),
		BreachNotifications:     []byte(`[{"role":"district_sp"}]`),
		WarningThresholds:       []byte(`[75,90]`),
		IsActive:                true,
		EffectiveFrom:           sql.NullTime{Time: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), Valid: true},
	}
}

func TestToRule(t *testing.T) {
	rule, err := toRule(legacyRow(), "Asia/Kolkata")
	require.NoError(t, err)

	assert.Equal(t, sla.CaseKindComplaint, rule.CaseKind)
	assert.Equal(t, "cyber_fraud", rule.CaseType)
	assert.Equal(t, "Asia/Kolkata", rule.Timezone)
	assert.Equal(t, 72.0, rule.ResolutionTime)
	assert.Equal(t, 4.0, rule.AcknowledgmentTime)
	assert.Equal(t, map[string]string{"district": "north", "amount_over": "100000"}, rule.Conditions)
	assert.Equal(t, []float64{75, 90}, rule.WarningThresholds)
	assert.Equal(t, []string{"2026-01-26"}, rule.Holidays)
	assert.Nil(t, rule.BusinessHours["sunday"])
	assert.Equal(t, "17:00", rule.BusinessHours["monday"].End)
	assert.Equal(t, 1, rule.Revision)
	assert.Equal(t, importedBy, rule.CreatedBy)

	require.Len(t, rule.EscalationLevels, 2)
	assert.Equal(t, 50.0, rule.EscalationLevels[0].ThresholdPercent)
	assert.Equal(t, 1, rule.EscalationLevels[0].Level)
	require.Len(t, rule.EscalationLevels[1].Actions, 1)
	assert.Equal(t, []string{"supervisor", "officer-7"}, rule.EscalationLevels[1].Actions[0].Notify.Recipients)

	require.Len(t, rule.BreachActions, 1)
	assert.Equal(t, []string{"district_sp"}, rule.BreachActions[0].Notify.Recipients)
}

func TestToRuleApplicationWithNullJSON(t *testing.T) {
	row := &legacyRule{
		Name:            "Birth certificate",
		ApplicationType: sql.NullString{String: "birth_certificate", Valid: true},
		ResolutionTime:  sql.NullInt64{Int64: 168, Valid: true},
		BusinessHours:   []byte(`{}`),
		Holidays:        []byte(`null`),
		Timezone:        sql.NullString{String: "UTC", Valid: true},
		IsActive:        true,
	}

	rule, err := toRule(row, "Asia/Kolkata")
	require.NoError(t, err)
	assert.Equal(t, sla.CaseKindApplication, rule.CaseKind)
	assert.Equal(t, "UTC", rule.Timezone)
	assert.Nil(t, rule.BusinessHours)
	assert.Empty(t, rule.EscalationLevels)
	assert.Empty(t, rule.BreachActions)
}

func TestToRuleRejectsInvalid(t *testing.T) {
	row := legacyRow()
	row.ResolutionTime = sql.NullInt64{}

	_, err := toRule(row, "Asia/Kolkata")
	assert.True(t, sla.IsConfigurationError(err))

	row = legacyRow()
	row.Holidays = []byte(`{"not":"a list"}`)
	_, err = toRule(row, "Asia/Kolkata")
	assert.ErrorContains(t, err, "holidays")
}
