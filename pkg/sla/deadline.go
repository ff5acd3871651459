package sla

import (
	"time"
)

// DeadlineKind names one of a rule's targets
type DeadlineKind string

const (
	DeadlineAcknowledgment DeadlineKind = "acknowledgment"
	DeadlineFirstResponse  DeadlineKind = "first_response"
	DeadlineResolution     DeadlineKind = "resolution"
)

// Hours returns the rule's target for kind; zero means unset.
func (r *Rule) Hours(kind DeadlineKind) float64 {
	switch kind {
	case DeadlineAcknowledgment:
		return r.AcknowledgmentTime
	case DeadlineFirstResponse:
		return r.FirstResponseTime
	default:
		return r.ResolutionTime
	}
}

// ComputeDeadline returns the instant at which durationHours of SLA time have elapsed
// after start. 24/7 rules use absolute elapsed time, so DST shifts never stretch or
// shrink a deadline. Business-hours rules consume operating windows in the rule's zone.
func ComputeDeadline(start time.Time, durationHours float64, rule *Rule) (time.Time, error) {
	if durationHours <= 0 {
		return time.Time{}, configErr(rule, "duration must be positive, got %v hours", durationHours)
	}

	if !rule.BusinessHoursOnly {
		return start.Add(hoursToDuration(durationHours)), nil
	}

	cal, err := NewCalendar(rule)
	if err != nil {
		return time.Time{}, err
	}
	return businessDeadline(cal, start, hoursToDuration(durationHours))
}

func businessDeadline(cal *Calendar, start time.Time, remaining time.Duration) (time.Time, error) {
	current := start
	for i := 0; i < MaxLookaheadDays; i++ {
		next, err := cal.NextOperatingInstant(current)
		if err != nil {
			return time.Time{}, err
		}
		end, _ := cal.WindowEnd(next)

		available := end.Sub(next)
		if available >= remaining {
			return next.Add(remaining), nil
		}

		remaining -= available
		current = end
	}

	return time.Time{}, configErr(cal.rule, "deadline not reached within %d operating windows", MaxLookaheadDays)
}

// Deadline computes the deadline of one target. ok is false when the target is unset.
func (r *Rule) Deadline(start time.Time, kind DeadlineKind) (deadline time.Time, ok bool, err error) {
	hours := r.Hours(kind)
	if hours <= 0 {
		if kind == DeadlineResolution {
			return time.Time{}, false, configErr(r, "resolution time is required")
		}
		return time.Time{}, false, nil
	}

	deadline, err = ComputeDeadline(start, hours, r)
	if err != nil {
		return time.Time{}, false, err
	}
	return deadline, true, nil
}

// ElapsedHours measures rule time between from and to: wall-clock hours for 24/7 rules,
// operating hours for business-hours rules. Between a start and its deadline it equals the
// rule hours the deadline was computed from.
func ElapsedHours(rule *Rule, from, to time.Time) (float64, error) {
	if !rule.BusinessHoursOnly {
		return to.Sub(from).Hours(), nil
	}

	cal, err := NewCalendar(rule)
	if err != nil {
		return 0, err
	}
	return cal.OperatingHoursBetween(from, to), nil
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
