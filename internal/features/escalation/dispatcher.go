package escalation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-cats/internal/features/cases"
	"go-cats/internal/features/notification"
	"go-cats/internal/features/timeline"
	"go-cats/internal/metrics"
	"go-cats/pkg/sla"

	"github.com/d5/tengo/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const scriptTimeout = 5 * time.Second

// ActionDispatcher carries out the side effects of SLA events. Every action of every event
// is attempted; failures are joined into the returned error.
type ActionDispatcher struct {
	cases         cases.CaseService
	timeline      timeline.TimelineService
	notifications notification.NotificationService
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

func NewActionDispatcher(
	caseService cases.CaseService,
	timelineService timeline.TimelineService,
	notificationService notification.NotificationService,
	m *metrics.Metrics,
	logger *zap.Logger,
) sla.EventSink {
	return &ActionDispatcher{
		cases:         caseService,
		timeline:      timelineService,
		notifications: notificationService,
		metrics:       m,
		logger:        logger,
	}
}

func (d *ActionDispatcher) Dispatch(ctx context.Context, c sla.Case, events []sla.Event) error {
	var errs []error

	for _, ev := range events {
		if err := d.recordEvent(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("timeline entry for %s event: %w", ev.Kind, err))
		}

		for _, action := range ev.RequiredActions {
			err := d.execute(ctx, c, ev, action)
			d.metrics.ObserveAction(action.Kind, err)
			if err != nil {
				d.logger.Warn("SLA action failed",
					zap.String("case_id", c.ID),
					zap.String("rule_id", ev.RuleID),
					zap.String("event", string(ev.Kind)),
					zap.String("action", string(action.Kind)),
					zap.Error(err))
				errs = append(errs, fmt.Errorf("%s action for %s event: %w", action.Kind, ev.Kind, err))
			}
		}
	}

	return errors.Join(errs...)
}

func (d *ActionDispatcher) recordEvent(ctx context.Context, ev sla.Event) error {
	entry := &timeline.Entry{
		CaseID:      ev.CaseID,
		Description: ev.Reason,
		IsAutomated: true,
		EventID:     ev.ID,
		CreatedAt:   ev.OccurredAt,
		Metadata: map[string]interface{}{
			"rule_id":           ev.RuleID,
			"elapsed_percent":   ev.ElapsedPercent,
			"threshold_percent": ev.ThresholdPercent,
		},
	}

	switch ev.Kind {
	case sla.EventEscalation:
		entry.Type = timeline.EntryEscalated
		entry.Metadata["from_level"] = ev.FromLevel
		entry.Metadata["to_level"] = ev.ToLevel
	case sla.EventWarning:
		entry.Type = timeline.EntrySLAWarning
	case sla.EventBreach:
		entry.Type = timeline.EntrySLABreached
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	return d.timeline.Record(ctx, entry)
}

func (d *ActionDispatcher) execute(ctx context.Context, c sla.Case, ev sla.Event, action sla.Action) error {
	switch action.Kind {
	case sla.ActionNotify:
		return d.notify(ctx, c, ev, action.Notify)
	case sla.ActionReassign:
		return d.reassign(ctx, c, ev, action.Reassign)
	case sla.ActionLogOnly:
		d.logger.Info("SLA event",
			zap.String("case_id", c.ID),
			zap.String("rule_id", ev.RuleID),
			zap.String("event", string(ev.Kind)),
			zap.Int("level", ev.ToLevel),
			zap.Float64("elapsed_percent", ev.ElapsedPercent),
			zap.String("reason", ev.Reason))
		return nil
	case sla.ActionCustom:
		return d.custom(ctx, c, ev, action.Custom)
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}

func (d *ActionDispatcher) notify(ctx context.Context, c sla.Case, ev sla.Event, a *sla.NotifyAction) error {
	if a == nil {
		return errors.New("notify action without payload")
	}

	message := a.Message
	if message == "" {
		message = ev.Reason
	}

	return d.notifications.Notify(ctx, a.Recipients, notification.Notification{
		Channel: notification.ParseChannel(a.Channel),
		Title:   notificationTitle(ev),
		Message: message,
		Type:    notificationType(ev.Kind),
		CaseID:  c.ID,
		EventID: ev.ID,
		Link:    "/cases/" + c.ID,
	})
}

func notificationTitle(ev sla.Event) string {
	switch ev.Kind {
	case sla.EventEscalation:
		return fmt.Sprintf("Case escalated to level %d", ev.ToLevel)
	case sla.EventBreach:
		return "SLA breached"
	default:
		return fmt.Sprintf("SLA warning: %.0f%% of resolution time used", ev.ThresholdPercent)
	}
}

func notificationType(kind sla.EventKind) notification.NotificationType {
	switch kind {
	case sla.EventEscalation:
		return notification.NotificationTypeEscalation
	case sla.EventBreach:
		return notification.NotificationTypeBreach
	default:
		return notification.NotificationTypeWarning
	}
}

func (d *ActionDispatcher) reassign(ctx context.Context, c sla.Case, ev sla.Event, a *sla.ReassignAction) error {
	if a == nil {
		return errors.New("reassign action without payload")
	}

	_, err := d.cases.Assign(ctx, c.ID, cases.AssignRequest{
		UserID: a.ToUserID,
		Role:   a.ToRole,
		Reason: ev.Reason,
	})
	return err
}

// custom runs the action script, if any, with the event and payload bound as globals.
// A script may set `note` to have it recorded on the case timeline.
func (d *ActionDispatcher) custom(ctx context.Context, c sla.Case, ev sla.Event, a *sla.CustomAction) error {
	if a == nil {
		return errors.New("custom action without payload")
	}

	note := ""
	if a.Script != "" {
		var err error
		note, err = runScript(ctx, a.Script, eventValue(c, ev), scriptValue(a.Payload))
		if err != nil {
			return fmt.Errorf("custom action %s: %w", a.Name, err)
		}
	}

	metadata := map[string]interface{}{
		"action":  a.Name,
		"payload": a.Payload,
	}
	if note != "" {
		metadata["note"] = note
	}

	return d.timeline.Record(ctx, &timeline.Entry{
		CaseID:      c.ID,
		Type:        timeline.EntryActionLogged,
		Description: fmt.Sprintf("Custom action %s executed", a.Name),
		IsAutomated: true,
		EventID:     ev.ID,
		Metadata:    metadata,
	})
}

func runScript(ctx context.Context, source string, event, payload interface{}) (string, error) {
	script := tengo.NewScript([]byte(source))

	if err := script.Add("event", event); err != nil {
		return "", fmt.Errorf("failed to bind event: %w", err)
	}
	if err := script.Add("payload", payload); err != nil {
		return "", fmt.Errorf("failed to bind payload: %w", err)
	}

	compiled, err := script.Compile()
	if err != nil {
		return "", fmt.Errorf("failed to compile script: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, scriptTimeout)
	defer cancel()
	if err := compiled.RunContext(runCtx); err != nil {
		return "", fmt.Errorf("failed to run script: %w", err)
	}

	if v := compiled.Get("note"); !v.IsUndefined() {
		return v.String(), nil
	}
	return "", nil
}

func eventValue(c sla.Case, ev sla.Event) map[string]interface{} {
	return map[string]interface{}{
		"id":                ev.ID,
		"kind":              string(ev.Kind),
		"case_id":           c.ID,
		"case_type":         c.Attributes.CaseType,
		"priority":          c.Attributes.Priority,
		"rule_id":           ev.RuleID,
		"from_level":        ev.FromLevel,
		"to_level":          ev.ToLevel,
		"threshold_percent": ev.ThresholdPercent,
		"elapsed_percent":   ev.ElapsedPercent,
		"reason":            ev.Reason,
		"occurred_at":       ev.OccurredAt,
	}
}

// scriptValue converts decoded BSON/JSON values into the plain types tengo accepts
func scriptValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = plainValue(val)
		}
		return out
	default:
		return plainValue(v)
	}
}

func plainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return scriptValue(t)
	case primitive.M:
		return scriptValue(map[string]interface{}(t))
	case primitive.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case primitive.A:
		return plainValue([]interface{}(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case int32:
		return int64(t)
	case primitive.DateTime:
		return t.Time()
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}
